package models

// ValidationLevel controls how forgiving the session validation
// pipeline is when validators disagree.
type ValidationLevel string

const (
	ValidationLenient  ValidationLevel = "lenient"
	ValidationModerate ValidationLevel = "moderate"
	ValidationStrict   ValidationLevel = "strict"
)

// Valid reports whether the level is one of the known values.
func (l ValidationLevel) Valid() bool {
	switch l {
	case ValidationLenient, ValidationModerate, ValidationStrict:
		return true
	}
	return false
}

// ConfidenceThreshold returns the minimum share of passing validators a
// session needs for full point credit at this level. Thresholds grow
// with strictness so a stricter level can never award a higher
// adjustment factor than a looser one.
func (l ValidationLevel) ConfidenceThreshold() float64 {
	switch l {
	case ValidationLenient:
		return 0.60
	case ValidationStrict:
		return 0.90
	default:
		return 0.75
	}
}

// ViolationType tags the kind of suspicious behavior a validator found.
type ViolationType string

const (
	ViolationTimeBased   ViolationType = "timeBased"
	ViolationAppCategory ViolationType = "appCategory"
	ViolationFrequency   ViolationType = "frequency"
)

// GamingPattern describes one detected attempt to game the reward
// system, with the observed value and the threshold it crossed kept for
// parent-facing audit trails.
type GamingPattern struct {
	Validator   string        `json:"validator"`
	Violation   ViolationType `json:"violation"`
	Description string        `json:"description"`
	Observed    float64       `json:"observed,omitempty"`
	Threshold   float64       `json:"threshold,omitempty"`
}

// EngagementMetrics captures heuristic engagement signals derived from
// a session's shape. Values are estimates, not device measurements.
type EngagementMetrics struct {
	AppStateChanges      int     `json:"appStateChanges"`
	AverageSessionLength float64 `json:"averageSessionLength"`
	InteractionDensity   float64 `json:"interactionDensity"`
	MotionCorrelation    float64 `json:"motionCorrelation"`
}

// ValidationResult is the immutable outcome of running the validation
// pipeline over one session.
type ValidationResult struct {
	IsValid          bool              `json:"isValid"`
	ValidationScore  float64           `json:"validationScore"`
	ConfidenceLevel  float64           `json:"confidenceLevel"`
	Patterns         []GamingPattern   `json:"patterns,omitempty"`
	Engagement       EngagementMetrics `json:"engagement"`
	Level            ValidationLevel   `json:"level"`
	AdjustmentFactor float64           `json:"adjustmentFactor"`
}
