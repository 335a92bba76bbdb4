package models

import "time"

// TransactionType classifies ledger entries by origin.
type TransactionType string

const (
	TransactionEarn       TransactionType = "earn"
	TransactionRedemption TransactionType = "redemption"
	TransactionAdjustment TransactionType = "adjustment"
)

// PointTransaction is one append-only ledger entry. Positive points
// credit the child, negative points debit; entries are never updated or
// deleted once written.
type PointTransaction struct {
	ID           string          `db:"id" json:"id"`
	ChildID      string          `db:"child_id" json:"childId"`
	Points       int             `db:"points" json:"points"`
	Type         TransactionType `db:"type" json:"type"`
	Reason       string          `db:"reason" json:"reason"`
	SessionID    *string         `db:"session_id" json:"sessionId,omitempty"`
	RedemptionID *string         `db:"redemption_id" json:"redemptionId,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}

// TransactionFilter constrains ledger history queries.
type TransactionFilter struct {
	ChildID string
	Type    TransactionType
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}
