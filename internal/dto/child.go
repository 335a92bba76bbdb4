package dto

// CreateChildRequest registers a child profile within a family.
type CreateChildRequest struct {
	FamilyID string `json:"familyId" validate:"required"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
}

// BalanceResponse exposes a child's current spendable balance.
type BalanceResponse struct {
	ChildID           string `json:"childId"`
	PointBalance      int    `json:"pointBalance"`
	TotalPointsEarned int    `json:"totalPointsEarned"`
}
