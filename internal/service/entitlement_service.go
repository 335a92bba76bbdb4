package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/famtime/rewards-api/internal/models"
	"github.com/famtime/rewards-api/pkg/config"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
)

const entitlementIssuer = "rewards-api"

// EntitlementService mints and verifies the signed grant tokens that
// let the on-device agent unlock reward apps offline. When no signing
// secret is configured, minting quietly yields no token and redemptions
// proceed without one.
type EntitlementService struct {
	secret  []byte
	enabled bool
}

// NewEntitlementService constructs an EntitlementService.
func NewEntitlementService(cfg config.EntitlementConfig) *EntitlementService {
	return &EntitlementService{
		secret:  []byte(cfg.Secret),
		enabled: cfg.Secret != "",
	}
}

// Enabled reports whether tokens will be minted.
func (s *EntitlementService) Enabled() bool {
	return s != nil && s.enabled
}

// Mint signs a grant token for a committed redemption. The token's
// lifetime matches the redemption's expiry window exactly.
func (s *EntitlementService) Mint(red *models.Redemption) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	claims := &models.EntitlementClaims{
		RedemptionID:   red.ID,
		ChildID:        red.ChildID,
		AppID:          red.AppID,
		MinutesGranted: red.MinutesGranted,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    entitlementIssuer,
			Subject:   red.ChildID,
			ExpiresAt: jwt.NewNumericDate(red.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(red.RedeemedAt),
			NotBefore: jwt.NewNumericDate(red.RedeemedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign entitlement token")
	}
	return signed, nil
}

// Verify parses a grant token and returns its claims. Expired or
// tampered tokens are rejected.
func (s *EntitlementService) Verify(tokenString string) (*models.EntitlementClaims, error) {
	if !s.Enabled() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "entitlement tokens are not enabled")
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.EntitlementClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid entitlement token")
	}

	claims, ok := token.Claims.(*models.EntitlementClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid entitlement claims")
	}
	return claims, nil
}
