package models

// FitnessLevel is the self-reported training background used by the 180 formula.
type FitnessLevel string

const (
	FitnessBeginner     FitnessLevel = "beginner"
	FitnessIntermediate FitnessLevel = "intermediate"
	FitnessAdvanced     FitnessLevel = "advanced"
	FitnessRecovering   FitnessLevel = "recovering"
)

// FitnessLevels lists every known fitness level in display order.
var FitnessLevels = []FitnessLevel{FitnessBeginner, FitnessIntermediate, FitnessAdvanced, FitnessRecovering}

// Valid reports whether l is one of the known fitness levels.
func (l FitnessLevel) Valid() bool {
	for _, v := range FitnessLevels {
		if l == v {
			return true
		}
	}
	return false
}

// HealthStatus is the self-reported health condition used by the 180 formula.
type HealthStatus string

const (
	HealthHealthy          HealthStatus = "healthy"
	HealthRecoveringInjury HealthStatus = "recovering-injury"
	HealthMedication       HealthStatus = "medication"
	HealthRecentIllness    HealthStatus = "recent-illness"
)

// HealthStatuses lists every known health status in display order.
var HealthStatuses = []HealthStatus{HealthHealthy, HealthRecoveringInjury, HealthMedication, HealthRecentIllness}

// Valid reports whether s is one of the known health statuses.
func (s HealthStatus) Valid() bool {
	for _, v := range HealthStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Profile defaults applied on first launch.
const (
	DefaultAge           = 30
	DefaultDailyStepGoal = 10000
)

// UserProfile is the single physiological profile of an installation.
// It is always saved and loaded whole.
type UserProfile struct {
	Age           int          `json:"age"`
	FitnessLevel  FitnessLevel `json:"fitnessLevel"`
	HealthStatus  HealthStatus `json:"healthStatus"`
	Weight        *float64     `json:"weight,omitempty"` // kg
	Height        *float64     `json:"height,omitempty"` // cm
	DailyStepGoal int          `json:"dailyStepGoal"`
}

// DefaultProfile returns the profile used when none has been saved yet.
func DefaultProfile() UserProfile {
	return UserProfile{
		Age:           DefaultAge,
		FitnessLevel:  FitnessIntermediate,
		HealthStatus:  HealthHealthy,
		DailyStepGoal: DefaultDailyStepGoal,
	}
}
