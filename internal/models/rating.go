package models

import (
	"database/sql/driver"
	"encoding/json"
)

// Trip conditions
const (
	ConditionExcellent    = "excellent"
	ConditionGood         = "good"
	ConditionRainy        = "rainy"
	ConditionHeavyTraffic = "heavy_traffic"
)

// Time-of-day buckets
const (
	TimeMorning   = "morning"
	TimeAfternoon = "afternoon"
	TimeEvening   = "evening"
	TimeNight     = "night"
)

// RatingFactors is the per-factor breakdown of a scored trip, each on
// the 1-5 scale before weighting.
type RatingFactors struct {
	Punctuality      float64 `json:"punctuality"`
	RouteEfficiency  float64 `json:"route_efficiency"`
	DriverBehavior   float64 `json:"driver_behavior"`
	VehicleCondition float64 `json:"vehicle_condition"`
	Baseline         float64 `json:"baseline"`
}

// RatingOutcome is the full result of scoring a completed trip. It is
// attached to the trip request row as an audit trail and consumed by the
// reputation engine; it is never re-derived afterwards.
type RatingOutcome struct {
	FinalRating         float64       `json:"final_rating"`
	Factors             RatingFactors `json:"factors"`
	DelayMinutes        int           `json:"delay_minutes"`
	ConditionMultiplier float64       `json:"condition_multiplier"`
	TimeMultiplier      float64       `json:"time_multiplier"`
	ExperienceBonus     float64       `json:"experience_bonus"`
	EstimatedMinutes    int           `json:"estimated_minutes"`
	ActualMinutes       int           `json:"actual_minutes"`
	DistanceKm          float64       `json:"distance_km"`
	Condition           string        `json:"condition"`
	TimeOfDay           string        `json:"time_of_day"`
}

func (o RatingOutcome) Value() (driver.Value, error) {
	return json.Marshal(o)
}

func (o *RatingOutcome) Scan(src interface{}) error {
	return scanJSON(src, o)
}
