package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Trip request status constants
const (
	RequestStatusPending   = "pending"
	RequestStatusAccepted  = "accepted"
	RequestStatusCompleted = "completed"
	RequestStatusCancelled = "cancelled"
)

// Driver offer status constants
const (
	OfferStatusPending  = "pending"
	OfferStatusAccepted = "accepted"
	OfferStatusRejected = "rejected"
)

// Actor roles. Closed set: every operation boundary checks one of these
// two, there is no open-ended role string.
const (
	RolePassenger = "passenger"
	RoleDriver    = "driver"
)

// Valid request state transitions
var ValidRequestTransitions = map[string][]string{
	RequestStatusPending:   {RequestStatusAccepted, RequestStatusCancelled},
	RequestStatusAccepted:  {RequestStatusCompleted, RequestStatusCancelled},
	RequestStatusCompleted: {},
	RequestStatusCancelled: {},
}

type Location struct {
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat" validate:"required,latitude"`
	Lng     float64 `json:"lng" validate:"required,longitude"`
}

func (l Location) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *Location) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// DriverOffer is a single driver's bid on a trip request. Offers live
// inside their parent request row, never on their own.
type DriverOffer struct {
	ID           string    `json:"id"`
	DriverID     string    `json:"driver_id"`
	OfferedPrice float64   `json:"offered_price"`
	Message      string    `json:"message,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// OfferList stores the ordered offer collection as a JSONB column so a
// single versioned UPDATE covers the request and all of its offers.
type OfferList []DriverOffer

func (ol OfferList) Value() (driver.Value, error) {
	if ol == nil {
		ol = OfferList{}
	}
	return json.Marshal(ol)
}

func (ol *OfferList) Scan(src interface{}) error {
	return scanJSON(src, ol)
}

type TripRequest struct {
	ID               string         `db:"id" json:"id"`
	PassengerID      string         `db:"passenger_id" json:"passenger_id"`
	Origin           Location       `db:"origin" json:"origin"`
	Destination      Location       `db:"destination" json:"destination"`
	TargetPrice      float64        `db:"target_price" json:"target_price"`
	SeatsNeeded      int            `db:"seats_needed" json:"seats_needed"`
	DepartureTime    time.Time      `db:"departure_time" json:"departure_time"`
	Status           string         `db:"status" json:"status"`
	Offers           OfferList      `db:"offers" json:"offers"`
	AcceptedDriverID *string        `db:"accepted_driver_id" json:"accepted_driver_id,omitempty"`
	FinalPrice       *float64       `db:"final_price" json:"final_price,omitempty"`
	EstimatedMinutes int            `db:"estimated_minutes" json:"estimated_minutes"`
	DistanceKm       float64        `db:"distance_km" json:"distance_km"`
	Outcome          *RatingOutcome `db:"outcome" json:"outcome,omitempty"`
	Version          int64          `db:"version" json:"-"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

type CreateTripRequestRequest struct {
	PassengerID      string    `json:"passenger_id" validate:"required,uuid"`
	Origin           Location  `json:"origin" validate:"required"`
	Destination      Location  `json:"destination" validate:"required"`
	TargetPrice      float64   `json:"target_price" validate:"gte=0"`
	SeatsNeeded      int       `json:"seats_needed" validate:"required,min=1,max=8"`
	DepartureTime    time.Time `json:"departure_time" validate:"required"`
	EstimatedMinutes int       `json:"estimated_minutes" validate:"required,min=1"`
	DistanceKm       float64   `json:"distance_km" validate:"required,gt=0"`
}

type SubmitOfferRequest struct {
	DriverID     string  `json:"driver_id" validate:"required,uuid"`
	OfferedPrice float64 `json:"offered_price" validate:"gte=0"`
	Message      string  `json:"message,omitempty" validate:"max=500"`
}

type AcceptOfferRequest struct {
	PassengerID string `json:"passenger_id" validate:"required,uuid"`
	OfferID     string `json:"offer_id" validate:"required,uuid"`
}

type CancelRequestRequest struct {
	ActorID string `json:"actor_id" validate:"required,uuid"`
	Role    string `json:"role" validate:"required,oneof=passenger driver"`
}

type CompleteTripRequest struct {
	PassengerID   string `json:"passenger_id" validate:"required,uuid"`
	ActualMinutes int    `json:"actual_minutes" validate:"required,min=1"`
	Condition     string `json:"condition" validate:"required,oneof=excellent good rainy heavy_traffic"`
	TimeOfDay     string `json:"time_of_day" validate:"required,oneof=morning afternoon evening night"`
}

// MyOfferView is the driver-facing projection of a request they bid on.
type MyOfferView struct {
	RequestID      string    `json:"request_id"`
	PassengerID    string    `json:"passenger_id"`
	Origin         Location  `json:"origin"`
	Destination    Location  `json:"destination"`
	TargetPrice    float64   `json:"target_price"`
	DepartureTime  time.Time `json:"departure_time"`
	RequestStatus  string    `json:"request_status"`
	MyOfferPrice   float64   `json:"my_offer_price"`
	MyOfferMessage string    `json:"my_offer_message,omitempty"`
	OfferStatus    string    `json:"offer_status"`
	CreatedAt      time.Time `json:"created_at"`
}

// CanTransitionTo checks if a request can move to a new status
func (r *TripRequest) CanTransitionTo(newStatus string) bool {
	validNextStates, exists := ValidRequestTransitions[r.Status]
	if !exists {
		return false
	}

	for _, state := range validNextStates {
		if state == newStatus {
			return true
		}
	}
	return false
}

// IsOpen returns true while the request still accepts offers
func (r *TripRequest) IsOpen() bool {
	return r.Status == RequestStatusPending
}

// OfferByID finds an offer by its id. Returns nil if absent.
func (r *TripRequest) OfferByID(offerID string) *DriverOffer {
	for i := range r.Offers {
		if r.Offers[i].ID == offerID {
			return &r.Offers[i]
		}
	}
	return nil
}

// OfferByDriver finds a driver's offer on this request. Returns nil if absent.
func (r *TripRequest) OfferByDriver(driverID string) *DriverOffer {
	for i := range r.Offers {
		if r.Offers[i].DriverID == driverID {
			return &r.Offers[i]
		}
	}
	return nil
}

// ToMyOfferView projects the request from the given driver's perspective.
// Returns nil if the driver never bid on it.
func (r *TripRequest) ToMyOfferView(driverID string) *MyOfferView {
	offer := r.OfferByDriver(driverID)
	if offer == nil {
		return nil
	}
	return &MyOfferView{
		RequestID:      r.ID,
		PassengerID:    r.PassengerID,
		Origin:         r.Origin,
		Destination:    r.Destination,
		TargetPrice:    r.TargetPrice,
		DepartureTime:  r.DepartureTime,
		RequestStatus:  r.Status,
		MyOfferPrice:   offer.OfferedPrice,
		MyOfferMessage: offer.Message,
		OfferStatus:    offer.Status,
		CreatedAt:      offer.CreatedAt,
	}
}

func scanJSON(src, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
