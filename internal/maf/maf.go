// Package maf implements the 180 formula and heart-rate zone classification.
package maf

import (
	"fmt"

	"github.com/claude/mafwalk/internal/models"
)

// BaseHeartRate is the constant of the 180 formula.
const BaseHeartRate = 180

var fitnessAdjustments = map[models.FitnessLevel]int{
	models.FitnessBeginner:     -5,
	models.FitnessIntermediate: 0,
	models.FitnessAdvanced:     5,
	models.FitnessRecovering:   -10,
}

var healthAdjustments = map[models.HealthStatus]int{
	models.HealthHealthy:          0,
	models.HealthRecoveringInjury: -10,
	models.HealthMedication:       -10,
	models.HealthRecentIllness:    -5,
}

// Result is the target zone derived from a profile. It is never stored.
type Result struct {
	BaseMAF      int    `json:"baseMAF"`
	AdjustedMAF  int    `json:"adjustedMAF"`
	MinHeartRate int    `json:"minHeartRate"`
	MaxHeartRate int    `json:"maxHeartRate"`
	Zone         string `json:"zone"`
}

// FitnessAdjustment returns the bpm offset for a fitness level. Unknown levels adjust by 0.
func FitnessAdjustment(level models.FitnessLevel) int {
	return fitnessAdjustments[level]
}

// HealthAdjustment returns the bpm offset for a health status. Unknown statuses adjust by 0.
func HealthAdjustment(status models.HealthStatus) int {
	return healthAdjustments[status]
}

// Policy holds the tunable zone parameters.
type Policy struct {
	ZoneWidth int
}

// DefaultPolicy uses the standard 10 bpm zone.
var DefaultPolicy = Policy{ZoneWidth: models.ZoneWidthBPM}

// Calculate applies the 180 formula under DefaultPolicy.
func Calculate(age int, level models.FitnessLevel, status models.HealthStatus) Result {
	return DefaultPolicy.Calculate(age, level, status)
}

// ForProfile calculates the zone for a stored profile under DefaultPolicy.
func ForProfile(p models.UserProfile) Result {
	return DefaultPolicy.ForProfile(p)
}

// Calculate applies the 180 formula. Ages are not validated and the zone is not
// clamped, so implausible inputs yield implausible (even negative) zones.
func (p Policy) Calculate(age int, level models.FitnessLevel, status models.HealthStatus) Result {
	base := BaseHeartRate - age
	adjusted := base + FitnessAdjustment(level) + HealthAdjustment(status)
	minHR := adjusted - p.ZoneWidth
	return Result{
		BaseMAF:      base,
		AdjustedMAF:  adjusted,
		MinHeartRate: minHR,
		MaxHeartRate: adjusted,
		Zone:         fmt.Sprintf("%d-%d bpm", minHR, adjusted),
	}
}

func (p Policy) ForProfile(profile models.UserProfile) Result {
	return p.Calculate(profile.Age, profile.FitnessLevel, profile.HealthStatus)
}
