package service

import (
	"math"

	apperrors "ridebid/internal/errors"
	"ridebid/internal/models"
)

// Factor weights. They sum to 1.0 so the weighted score stays on the
// same 1..5 scale as the factors themselves.
const (
	weightPunctuality     = 0.30
	weightRouteEfficiency = 0.25
	weightDriverBehavior  = 0.20
	weightVehicle         = 0.15
	weightBaseline        = 0.10

	baselineScore  = 4.0
	maxBonus       = 0.5
	bonusThreshold = 4.0
)

var conditionMultipliers = map[string]float64{
	models.ConditionExcellent:    1.0,
	models.ConditionGood:         0.95,
	models.ConditionRainy:        0.85,
	models.ConditionHeavyTraffic: 0.8,
}

var timeMultipliers = map[string]float64{
	models.TimeMorning:   1.0,
	models.TimeAfternoon: 0.95,
	models.TimeEvening:   0.9,
	models.TimeNight:     0.85,
}

// RatingEngine scores a completed trip. The score is deterministic:
// the same trip facts always produce the same outcome.
type RatingEngine interface {
	ScoreTrip(estimatedMinutes, actualMinutes int, distanceKm, driverRating float64, condition, timeOfDay string) (*models.RatingOutcome, error)
}

type ratingEngine struct{}

func NewRatingEngine() RatingEngine {
	return &ratingEngine{}
}

func (e *ratingEngine) ScoreTrip(estimatedMinutes, actualMinutes int, distanceKm, driverRating float64, condition, timeOfDay string) (*models.RatingOutcome, error) {
	if estimatedMinutes <= 0 {
		return nil, apperrors.InvalidInput("estimated duration must be positive")
	}
	if actualMinutes <= 0 {
		return nil, apperrors.InvalidInput("actual duration must be positive")
	}
	conditionMult, ok := conditionMultipliers[condition]
	if !ok {
		return nil, apperrors.InvalidInput("unknown trip condition: " + condition)
	}
	timeMult, ok := timeMultipliers[timeOfDay]
	if !ok {
		return nil, apperrors.InvalidInput("unknown time of day: " + timeOfDay)
	}

	delay := actualMinutes - estimatedMinutes

	factors := models.RatingFactors{
		Punctuality:      punctualityScore(delay),
		RouteEfficiency:  efficiencyScore(estimatedMinutes, actualMinutes),
		DriverBehavior:   behaviorScore(driverRating),
		VehicleCondition: vehicleScore(condition),
		Baseline:         baselineScore,
	}

	weighted := factors.Punctuality*weightPunctuality +
		factors.RouteEfficiency*weightRouteEfficiency +
		factors.DriverBehavior*weightDriverBehavior +
		factors.VehicleCondition*weightVehicle +
		factors.Baseline*weightBaseline

	rating := weighted * conditionMult * timeMult

	// The bonus rewards the driver's running rating, not the trip score.
	bonus := 0.0
	if driverRating > bonusThreshold {
		bonus = math.Min(maxBonus, driverRating-bonusThreshold)
		rating += bonus
	}

	rating = clamp(rating, 1.0, 5.0)
	rating = roundToTenth(rating)

	return &models.RatingOutcome{
		FinalRating:         rating,
		Factors:             factors,
		DelayMinutes:        delay,
		ConditionMultiplier: conditionMult,
		TimeMultiplier:      timeMult,
		ExperienceBonus:     bonus,
		EstimatedMinutes:    estimatedMinutes,
		ActualMinutes:       actualMinutes,
		DistanceKm:          distanceKm,
		Condition:           condition,
		TimeOfDay:           timeOfDay,
	}, nil
}

func punctualityScore(delayMinutes int) float64 {
	switch {
	case delayMinutes <= 0:
		return 5.0
	case delayMinutes <= 5:
		return 4.5
	case delayMinutes <= 10:
		return 4.0
	case delayMinutes <= 15:
		return 3.5
	default:
		return 2.5
	}
}

func efficiencyScore(estimatedMinutes, actualMinutes int) float64 {
	ratio := float64(estimatedMinutes) / float64(actualMinutes)
	switch {
	case ratio >= 0.9:
		return 5.0
	case ratio >= 0.8:
		return 4.5
	case ratio >= 0.7:
		return 4.0
	case ratio >= 0.6:
		return 3.5
	default:
		return 3.0
	}
}

// behaviorScore uses the driver's running rating as a behavior proxy.
// A new driver starts at 5.0 and the floor keeps one bad streak from
// dragging every future trip score down with it.
func behaviorScore(driverRating float64) float64 {
	return clamp(driverRating, 3.0, 5.0)
}

func vehicleScore(condition string) float64 {
	switch condition {
	case models.ConditionExcellent:
		return 5.0
	case models.ConditionGood:
		return 4.5
	case models.ConditionRainy:
		return 4.0
	default:
		return 3.5
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundToTenth(f float64) float64 {
	return math.Round(f*10) / 10
}
