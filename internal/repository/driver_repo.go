package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ridebid/internal/models"
)

type DriverRepository interface {
	Create(ctx context.Context, profile *models.DriverProfile) error
	GetByID(ctx context.Context, id string) (*models.DriverProfile, error)
	GetByEmail(ctx context.Context, email string) (*models.DriverProfile, error)
	// UpdateVersioned commits the profile only if the stored row still
	// carries expectedVersion. On success profile.Version is bumped.
	UpdateVersioned(ctx context.Context, profile *models.DriverProfile, expectedVersion int64) error
	ListTopByProgression(ctx context.Context, limit int) ([]*models.DriverProfile, error)
}

type driverRepository struct {
	db *sqlx.DB
}

func NewDriverRepository(db *sqlx.DB) DriverRepository {
	return &driverRepository{db: db}
}

func (r *driverRepository) Create(ctx context.Context, profile *models.DriverProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	profile.Rating = 5.0
	profile.Level = 1
	profile.Version = 1
	if profile.Badges == nil {
		profile.Badges = models.BadgeList{}
	}

	query := `
		INSERT INTO driver_profiles (id, name, email, phone, license_number, rating,
			total_trips, completed_trips, cancelled_trips, trust_score, points, level,
			badges, current_streak, longest_streak, last_active_at, verifications,
			version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := r.db.ExecContext(ctx, query,
		profile.ID, profile.Name, profile.Email, profile.Phone, profile.LicenseNumber,
		profile.Rating, profile.TotalTrips, profile.CompletedTrips, profile.CancelledTrips,
		profile.TrustScore, profile.Points, profile.Level, profile.Badges,
		profile.CurrentStreak, profile.LongestStreak, profile.LastActiveAt,
		profile.Verifications, profile.Version, profile.CreatedAt, profile.UpdatedAt)
	return err
}

func (r *driverRepository) GetByID(ctx context.Context, id string) (*models.DriverProfile, error) {
	var profile models.DriverProfile
	query := `SELECT * FROM driver_profiles WHERE id = $1`
	err := r.db.GetContext(ctx, &profile, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &profile, err
}

func (r *driverRepository) GetByEmail(ctx context.Context, email string) (*models.DriverProfile, error) {
	var profile models.DriverProfile
	query := `SELECT * FROM driver_profiles WHERE email = $1`
	err := r.db.GetContext(ctx, &profile, query, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &profile, err
}

func (r *driverRepository) UpdateVersioned(ctx context.Context, profile *models.DriverProfile, expectedVersion int64) error {
	profile.UpdatedAt = time.Now()

	query := `
		UPDATE driver_profiles
		SET rating = $1, total_trips = $2, completed_trips = $3, cancelled_trips = $4,
			trust_score = $5, points = $6, level = $7, badges = $8,
			current_streak = $9, longest_streak = $10, last_active_at = $11,
			verifications = $12, version = $13, updated_at = $14
		WHERE id = $15 AND version = $16
	`
	res, err := r.db.ExecContext(ctx, query,
		profile.Rating, profile.TotalTrips, profile.CompletedTrips, profile.CancelledTrips,
		profile.TrustScore, profile.Points, profile.Level, profile.Badges,
		profile.CurrentStreak, profile.LongestStreak, profile.LastActiveAt,
		profile.Verifications, expectedVersion+1, profile.UpdatedAt,
		profile.ID, expectedVersion)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrVersionConflict
	}

	profile.Version = expectedVersion + 1
	return nil
}

func (r *driverRepository) ListTopByProgression(ctx context.Context, limit int) ([]*models.DriverProfile, error) {
	var profiles []*models.DriverProfile
	query := `
		SELECT * FROM driver_profiles
		ORDER BY level DESC, points DESC, rating DESC
		LIMIT $1
	`
	err := r.db.SelectContext(ctx, &profiles, query, limit)
	return profiles, err
}
