package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ridebid/internal/models"
)

// ErrVersionConflict is returned by versioned updates when the row
// changed since it was read. Callers decide whether the operation is
// safe to retry; the repository never retries on its own.
var ErrVersionConflict = errors.New("version conflict")

type TripRequestRepository interface {
	Create(ctx context.Context, req *models.TripRequest) error
	GetByID(ctx context.Context, id string) (*models.TripRequest, error)
	// UpdateVersioned commits the request only if the stored row still
	// carries expectedVersion. On success req.Version is bumped.
	UpdateVersioned(ctx context.Context, req *models.TripRequest, expectedVersion int64) error
	ListOpen(ctx context.Context, limit int) ([]*models.TripRequest, error)
	ListByPassenger(ctx context.Context, passengerID string) ([]*models.TripRequest, error)
	ListByDriverOffer(ctx context.Context, driverID string) ([]*models.TripRequest, error)
}

type tripRequestRepository struct {
	db *sqlx.DB
}

func NewTripRequestRepository(db *sqlx.DB) TripRequestRepository {
	return &tripRequestRepository{db: db}
}

func (r *tripRequestRepository) Create(ctx context.Context, req *models.TripRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now
	req.Status = models.RequestStatusPending
	req.Version = 1
	if req.Offers == nil {
		req.Offers = models.OfferList{}
	}

	query := `
		INSERT INTO trip_requests (id, passenger_id, origin, destination, target_price,
			seats_needed, departure_time, status, offers, estimated_minutes, distance_km,
			version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.PassengerID, req.Origin, req.Destination, req.TargetPrice,
		req.SeatsNeeded, req.DepartureTime, req.Status, req.Offers, req.EstimatedMinutes,
		req.DistanceKm, req.Version, req.CreatedAt, req.UpdatedAt)
	return err
}

func (r *tripRequestRepository) GetByID(ctx context.Context, id string) (*models.TripRequest, error) {
	var req models.TripRequest
	query := `SELECT * FROM trip_requests WHERE id = $1`
	err := r.db.GetContext(ctx, &req, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &req, err
}

func (r *tripRequestRepository) UpdateVersioned(ctx context.Context, req *models.TripRequest, expectedVersion int64) error {
	req.UpdatedAt = time.Now()

	query := `
		UPDATE trip_requests
		SET status = $1, offers = $2, accepted_driver_id = $3, final_price = $4,
			outcome = $5, version = $6, updated_at = $7
		WHERE id = $8 AND version = $9
	`
	res, err := r.db.ExecContext(ctx, query,
		req.Status, req.Offers, req.AcceptedDriverID, req.FinalPrice,
		req.Outcome, expectedVersion+1, req.UpdatedAt, req.ID, expectedVersion)
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

	req.Version = expectedVersion + 1
	return nil
}

func (r *tripRequestRepository) ListOpen(ctx context.Context, limit int) ([]*models.TripRequest, error) {
	var reqs []*models.TripRequest
	query := `
		SELECT * FROM trip_requests
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	err := r.db.SelectContext(ctx, &reqs, query, models.RequestStatusPending, limit)
	return reqs, err
}

func (r *tripRequestRepository) ListByPassenger(ctx context.Context, passengerID string) ([]*models.TripRequest, error) {
	var reqs []*models.TripRequest
	query := `
		SELECT * FROM trip_requests
		WHERE passenger_id = $1
		ORDER BY created_at DESC
	`
	err := r.db.SelectContext(ctx, &reqs, query, passengerID)
	return reqs, err
}

func (r *tripRequestRepository) ListByDriverOffer(ctx context.Context, driverID string) ([]*models.TripRequest, error) {
	var reqs []*models.TripRequest
	query := `
		SELECT * FROM trip_requests
		WHERE offers @> jsonb_build_array(jsonb_build_object('driver_id', $1::text))
		ORDER BY created_at DESC
	`
	err := r.db.SelectContext(ctx, &reqs, query, driverID)
	return reqs, err
}
