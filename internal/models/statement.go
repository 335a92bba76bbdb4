package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StatementFormat enumerates supported export formats.
type StatementFormat string

const (
	StatementFormatCSV StatementFormat = "csv"
	StatementFormatPDF StatementFormat = "pdf"
)

// StatementStatus captures background job lifecycle states.
type StatementStatus string

const (
	StatementStatusQueued     StatementStatus = "QUEUED"
	StatementStatusProcessing StatementStatus = "PROCESSING"
	StatementStatusFinished   StatementStatus = "FINISHED"
	StatementStatusFailed     StatementStatus = "FAILED"
)

// StatementJob tracks one asynchronous ledger statement export.
type StatementJob struct {
	ID           string          `db:"id" json:"id"`
	Params       StatementParams `db:"params" json:"params"`
	Status       StatementStatus `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// StatementParams stores request-scoped options persisted as JSONB.
type StatementParams struct {
	ChildID string          `json:"childId"`
	Format  StatementFormat `json:"format"`
	From    *time.Time      `json:"from,omitempty"`
	To      *time.Time      `json:"to,omitempty"`
}

// Value marshals params to JSON for persistence.
func (p StatementParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal statement params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *StatementParams) Scan(value interface{}) error {
	if value == nil {
		*p = StatementParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for StatementParams", value)
	}
	if len(data) == 0 {
		*p = StatementParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal statement params: %w", err)
	}
	return nil
}
