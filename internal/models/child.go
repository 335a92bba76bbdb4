package models

import "time"

// ChildProfile represents a child account within a family. The point
// balance is derived state: it always equals the sum of the child's
// point transactions and never goes negative.
type ChildProfile struct {
	ID                string    `db:"id" json:"id"`
	FamilyID          string    `db:"family_id" json:"familyId"`
	Name              string    `db:"name" json:"name"`
	PointBalance      int       `db:"point_balance" json:"pointBalance"`
	TotalPointsEarned int       `db:"total_points_earned" json:"totalPointsEarned"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// ChildSummary aggregates the read model shown on a child's dashboard.
type ChildSummary struct {
	Child                   *ChildProfile      `json:"child"`
	ActiveRedemptions       []Redemption       `json:"activeRedemptions"`
	RecentTransactions      []PointTransaction `json:"recentTransactions"`
	OutstandingMinutesToday int                `json:"outstandingMinutesToday"`
}

// ReconciliationReport compares the stored balance against the
// recomputed transaction sum for a child.
type ReconciliationReport struct {
	ChildID         string    `json:"childId"`
	StoredBalance   int       `json:"storedBalance"`
	ComputedBalance int       `json:"computedBalance"`
	Consistent      bool      `json:"consistent"`
	CheckedAt       time.Time `json:"checkedAt"`
}
