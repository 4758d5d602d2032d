package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Badge rarities
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Badge is a single earned achievement. A driver holds at most one
// badge per name.
type Badge struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Rarity      string    `json:"rarity"`
	EarnedAt    time.Time `json:"earned_at"`
}

type BadgeList []Badge

func (bl BadgeList) Value() (driver.Value, error) {
	if bl == nil {
		bl = BadgeList{}
	}
	return json.Marshal(bl)
}

func (bl *BadgeList) Scan(src interface{}) error {
	return scanJSON(src, bl)
}

// Has reports whether a badge with the given name was already earned.
func (bl BadgeList) Has(name string) bool {
	for _, b := range bl {
		if b.Name == name {
			return true
		}
	}
	return false
}

// VerificationFlags records which of a driver's credentials have been
// verified. The verification workflow itself lives outside this service;
// the flags only feed the trust score.
type VerificationFlags struct {
	IDCard              bool `json:"id_card"`
	DriverLicense       bool `json:"driver_license"`
	VehicleRegistration bool `json:"vehicle_registration"`
	BackgroundCheck     bool `json:"background_check"`
	Phone               bool `json:"phone"`
	Email               bool `json:"email"`
}

func (v VerificationFlags) Value() (driver.Value, error) {
	return json.Marshal(v)
}

func (v *VerificationFlags) Scan(src interface{}) error {
	return scanJSON(src, v)
}

// Count returns the number of verified credentials.
func (v VerificationFlags) Count() int {
	n := 0
	for _, ok := range []bool{v.IDCard, v.DriverLicense, v.VehicleRegistration, v.BackgroundCheck, v.Phone, v.Email} {
		if ok {
			n++
		}
	}
	return n
}

// DriverProfile is a driver's identity plus the reputation and
// progression state the reputation engine maintains. Rating, trust score
// and level are always recomputed, never set directly.
type DriverProfile struct {
	ID             string            `db:"id" json:"id"`
	Name           string            `db:"name" json:"name"`
	Email          string            `db:"email" json:"email"`
	Phone          string            `db:"phone" json:"phone"`
	LicenseNumber  string            `db:"license_number" json:"license_number"`
	Rating         float64           `db:"rating" json:"rating"`
	TotalTrips     int               `db:"total_trips" json:"total_trips"`
	CompletedTrips int               `db:"completed_trips" json:"completed_trips"`
	CancelledTrips int               `db:"cancelled_trips" json:"cancelled_trips"`
	TrustScore     float64           `db:"trust_score" json:"trust_score"`
	Points         int               `db:"points" json:"points"`
	Level          int               `db:"level" json:"level"`
	Badges         BadgeList         `db:"badges" json:"badges"`
	CurrentStreak  int               `db:"current_streak" json:"current_streak"`
	LongestStreak  int               `db:"longest_streak" json:"longest_streak"`
	LastActiveAt   *time.Time        `db:"last_active_at" json:"last_active_at,omitempty"`
	Verifications  VerificationFlags `db:"verifications" json:"verifications"`
	Version        int64             `db:"version" json:"-"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

type CreateDriverRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=100"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone" validate:"required,min=10,max=15"`
	LicenseNumber string `json:"license_number" validate:"required"`
}

// RewardsResponse is the progression slice of a profile.
type RewardsResponse struct {
	DriverID      string    `json:"driver_id"`
	Points        int       `json:"points"`
	Level         int       `json:"level"`
	Badges        BadgeList `json:"badges"`
	CurrentStreak int       `json:"current_streak"`
	LongestStreak int       `json:"longest_streak"`
}

type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	DriverID   string  `json:"driver_id"`
	Name       string  `json:"name"`
	Rating     float64 `json:"rating"`
	TrustScore float64 `json:"trust_score"`
	Points     int     `json:"points"`
	Level      int     `json:"level"`
	Score      int     `json:"score"`
}

func (p *DriverProfile) ToRewardsResponse() *RewardsResponse {
	return &RewardsResponse{
		DriverID:      p.ID,
		Points:        p.Points,
		Level:         p.Level,
		Badges:        p.Badges,
		CurrentStreak: p.CurrentStreak,
		LongestStreak: p.LongestStreak,
	}
}

// ProgressionScore flattens level + points into a single monotonically
// increasing career score, used for leaderboard ordering. Reaching level
// L means every threshold 100, 200, ... (L-1)*100 was paid.
func (p *DriverProfile) ProgressionScore() int {
	return (p.Level-1)*p.Level/2*100 + p.Points
}
