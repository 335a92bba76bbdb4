package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/famtime/rewards-api/internal/models"
)

// SessionValidator inspects one session for signs of gaming the reward
// system. Implementations are pure, stateless and order independent:
// the composite verdict never depends on registration order.
type SessionValidator interface {
	Name() string
	Validate(session *models.UsageSession, settings *models.FamilySettings) (bool, *models.GamingPattern)
}

// Rapid switching: sessions shorter than this are point farming, not
// learning. A session of exactly the minimum length is legitimate.
const minSessionSeconds = 30.0

// RapidSwitchingValidator rejects ultra-short sessions.
type RapidSwitchingValidator struct{}

func (RapidSwitchingValidator) Name() string { return "rapid_switching" }

func (v RapidSwitchingValidator) Validate(session *models.UsageSession, _ *models.FamilySettings) (bool, *models.GamingPattern) {
	dur := session.DurationSeconds()
	if dur < minSessionSeconds {
		return false, &models.GamingPattern{
			Validator:   v.Name(),
			Violation:   models.ViolationFrequency,
			Description: fmt.Sprintf("session lasted %.0fs, under the %.0fs minimum", dur, minSessionSeconds),
			Observed:    dur,
			Threshold:   minSessionSeconds,
		}
	}
	return true, nil
}

// Timing pattern: automated or scripted usage tends to start or stop
// within a minute of a clock hour boundary.
const (
	hourEdgeMinuteLow  = 0
	hourEdgeMinuteHigh = 59
)

// TimingPatternValidator flags sessions hugging clock hour boundaries.
type TimingPatternValidator struct{}

func (TimingPatternValidator) Name() string { return "timing_pattern" }

func (v TimingPatternValidator) Validate(session *models.UsageSession, _ *models.FamilySettings) (bool, *models.GamingPattern) {
	if onHourEdge(session.StartedAt.Minute()) || onHourEdge(session.EndedAt.Minute()) {
		return false, &models.GamingPattern{
			Validator:   v.Name(),
			Violation:   models.ViolationTimeBased,
			Description: "session start or end within one minute of a clock hour boundary",
		}
	}
	return true, nil
}

func onHourEdge(minute int) bool {
	return minute == hourEdgeMinuteLow || minute == hourEdgeMinuteHigh
}

// Engagement heuristics. Without device sensors the pipeline estimates
// engagement from the session's shape alone.
const (
	stateChangeIntervalSeconds = 300.0
	densityDecayHours          = 3600.0
	minInteractionDensity      = 0.1
	maxInteractionDensity      = 1.0
	lowDensityThreshold        = 0.3
	longSessionSeconds         = 600.0
	minStateChangesLongSession = 3
	motionCorrelationLong      = 0.7
	motionCorrelationShort     = 0.3
)

// DeriveEngagement estimates engagement metrics for a session.
func DeriveEngagement(session *models.UsageSession) models.EngagementMetrics {
	dur := session.DurationSeconds()

	stateChanges := int(dur / stateChangeIntervalSeconds)
	if stateChanges < 1 {
		stateChanges = 1
	}

	density := 2.0 - dur/densityDecayHours
	if density < minInteractionDensity {
		density = minInteractionDensity
	}
	if density > maxInteractionDensity {
		density = maxInteractionDensity
	}

	motion := motionCorrelationShort
	if dur > longSessionSeconds {
		motion = motionCorrelationLong
	}

	return models.EngagementMetrics{
		AppStateChanges:      stateChanges,
		AverageSessionLength: dur,
		InteractionDensity:   density,
		MotionCorrelation:    motion,
	}
}

// EngagementValidator flags sessions whose derived engagement looks
// like an idle device left running.
type EngagementValidator struct{}

func (EngagementValidator) Name() string { return "engagement" }

func (v EngagementValidator) Validate(session *models.UsageSession, _ *models.FamilySettings) (bool, *models.GamingPattern) {
	metrics := DeriveEngagement(session)
	dur := session.DurationSeconds()

	if metrics.InteractionDensity < lowDensityThreshold {
		return false, &models.GamingPattern{
			Validator:   v.Name(),
			Violation:   models.ViolationTimeBased,
			Description: "interaction density below engaged-use threshold",
			Observed:    metrics.InteractionDensity,
			Threshold:   lowDensityThreshold,
		}
	}
	if dur > longSessionSeconds && metrics.AppStateChanges < minStateChangesLongSession {
		return false, &models.GamingPattern{
			Validator:   v.Name(),
			Violation:   models.ViolationTimeBased,
			Description: "long session with too few app state changes",
			Observed:    float64(metrics.AppStateChanges),
			Threshold:   minStateChangesLongSession,
		}
	}
	return true, nil
}

// BedtimeWindowValidator flags sessions touching the family's bedtime
// window. Families without a configured window always pass.
type BedtimeWindowValidator struct{}

func (BedtimeWindowValidator) Name() string { return "bedtime_window" }

func (v BedtimeWindowValidator) Validate(session *models.UsageSession, settings *models.FamilySettings) (bool, *models.GamingPattern) {
	if !settings.HasBedtimeWindow() {
		return true, nil
	}
	start, ok := parseClock(*settings.BedtimeStart)
	if !ok {
		return true, nil
	}
	end, ok := parseClock(*settings.BedtimeEnd)
	if !ok || start == end {
		return true, nil
	}

	if inClockWindow(minuteOfDay(session.StartedAt.Hour(), session.StartedAt.Minute()), start, end) ||
		inClockWindow(minuteOfDay(session.EndedAt.Hour(), session.EndedAt.Minute()), start, end) {
		return false, &models.GamingPattern{
			Validator:   v.Name(),
			Violation:   models.ViolationTimeBased,
			Description: fmt.Sprintf("session overlaps bedtime window %s-%s", *settings.BedtimeStart, *settings.BedtimeEnd),
		}
	}
	return true, nil
}

// parseClock converts "HH:MM" into minutes since midnight.
func parseClock(raw string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return minuteOfDay(hour, minute), true
}

func minuteOfDay(hour, minute int) int {
	return hour*60 + minute
}

// inClockWindow handles windows that wrap midnight, e.g. 21:00-07:00.
func inClockWindow(m, start, end int) bool {
	if start < end {
		return m >= start && m < end
	}
	return m >= start || m < end
}

// DefaultValidators returns the standard pipeline in its registration
// order. BedtimeWindowValidator is appended per family by the validation
// service when a bedtime window is configured, so that families without
// one keep a three-validator confidence denominator.
func DefaultValidators() []SessionValidator {
	return []SessionValidator{
		RapidSwitchingValidator{},
		TimingPatternValidator{},
		EngagementValidator{},
	}
}
