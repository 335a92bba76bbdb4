package models

import "github.com/golang-jwt/jwt/v5"

// EntitlementClaims is the signed grant handed to the on-device agent
// after a successful redemption so it can unlock the reward app without
// calling home. The token expires with the redemption.
type EntitlementClaims struct {
	RedemptionID   string `json:"redemptionId"`
	ChildID        string `json:"childId"`
	AppID          string `json:"appId"`
	MinutesGranted int    `json:"minutesGranted"`
	jwt.RegisteredClaims
}
