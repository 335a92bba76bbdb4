package service

import (
	"math"

	"github.com/famtime/rewards-api/internal/models"
	"github.com/famtime/rewards-api/pkg/config"
)

// PointCalculator converts validated usage time into point awards and
// points into redeemable screen-time minutes. All methods are pure so
// the same inputs always produce the same award.
type PointCalculator struct {
	defaultPointsPerHour  int
	rewardAdjustment      float64
	defaultConversionRate float64
}

// NewPointCalculator constructs a calculator with config-backed defaults.
func NewPointCalculator(cfg config.RewardsConfig) *PointCalculator {
	perHour := cfg.DefaultPointsPerHour
	if perHour <= 0 {
		perHour = 20
	}
	adjustment := cfg.RewardCategoryAdjustment
	if adjustment <= 0 {
		adjustment = 0.5
	}
	rate := cfg.DefaultConversionRate
	if rate <= 0 {
		rate = 10
	}
	return &PointCalculator{
		defaultPointsPerHour:  perHour,
		rewardAdjustment:      adjustment,
		defaultConversionRate: rate,
	}
}

// RatePerHour resolves the earn rate for an app categorization, falling
// back to the configured default when the app carries none.
func (c *PointCalculator) RatePerHour(app *models.AppCategorization) int {
	if app != nil && app.PointsPerHour > 0 {
		return app.PointsPerHour
	}
	return c.defaultPointsPerHour
}

// ConversionRate resolves points-per-minute for an app categorization.
// Zero means the rate was never configured; callers surface that as an
// economic outcome rather than substituting the default.
func (c *PointCalculator) ConversionRate(app *models.AppCategorization) float64 {
	if app == nil {
		return 0
	}
	return app.ConversionRate
}

// DefaultConversionRate is the rate applied to newly registered apps.
func (c *PointCalculator) DefaultConversionRate() float64 {
	return c.defaultConversionRate
}

// CategoryAdjustment maps an app category to its earn multiplier.
// Learning time earns at full rate; time in reward apps earns at the
// configured fraction so redeemed minutes cannot bootstrap themselves.
func (c *PointCalculator) CategoryAdjustment(category models.AppCategory) float64 {
	if category == models.CategoryReward {
		return c.rewardAdjustment
	}
	return 1.0
}

// BasePoints converts a duration into raw points at the given hourly
// rate, truncating fractional points.
func (c *PointCalculator) BasePoints(pointsPerHour int, durationSeconds float64) int {
	if pointsPerHour <= 0 || durationSeconds <= 0 {
		return 0
	}
	return int(float64(pointsPerHour) * durationSeconds / 3600.0)
}

// CalculatePoints produces the final award for a session. Base points
// truncate first, then the category and validation adjustments apply and
// the product truncates again, so awards only ever round down.
func (c *PointCalculator) CalculatePoints(session *models.UsageSession, pointsPerHour int, validationAdjustment float64) int {
	if session == nil {
		return 0
	}
	base := c.BasePoints(pointsPerHour, session.DurationSeconds())
	if base <= 0 {
		return 0
	}
	if validationAdjustment < 0 {
		validationAdjustment = 0
	}
	final := int(float64(base) * c.CategoryAdjustment(session.Category) * validationAdjustment)
	if final < 0 {
		return 0
	}
	return final
}

// MinutesForPoints converts spent points into granted minutes at the
// given conversion rate, rounding down so a grant never exceeds what
// the points paid for.
func (c *PointCalculator) MinutesForPoints(points int, rate float64) int {
	if points <= 0 || rate <= 0 {
		return 0
	}
	return int(math.Floor(float64(points) / rate))
}

// PointsForMinutes quotes the points required for a desired number of
// minutes, rounding up so the quote always covers the grant.
func (c *PointCalculator) PointsForMinutes(minutes int, rate float64) int {
	if minutes <= 0 || rate <= 0 {
		return 0
	}
	return int(math.Ceil(float64(minutes) * rate))
}
