package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ridebid/internal/models"
)

type PassengerRepository interface {
	Create(ctx context.Context, passenger *models.Passenger) error
	GetByID(ctx context.Context, id string) (*models.Passenger, error)
	GetByEmail(ctx context.Context, email string) (*models.Passenger, error)
}

type passengerRepository struct {
	db *sqlx.DB
}

func NewPassengerRepository(db *sqlx.DB) PassengerRepository {
	return &passengerRepository{db: db}
}

func (r *passengerRepository) Create(ctx context.Context, passenger *models.Passenger) error {
	if passenger.ID == "" {
		passenger.ID = uuid.New().String()
	}
	now := time.Now()
	passenger.CreatedAt = now
	passenger.UpdatedAt = now

	query := `
		INSERT INTO passengers (id, name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		passenger.ID, passenger.Name, passenger.Email, passenger.Phone,
		passenger.CreatedAt, passenger.UpdatedAt)
	return err
}

func (r *passengerRepository) GetByID(ctx context.Context, id string) (*models.Passenger, error) {
	var passenger models.Passenger
	query := `SELECT * FROM passengers WHERE id = $1`
	err := r.db.GetContext(ctx, &passenger, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &passenger, err
}

func (r *passengerRepository) GetByEmail(ctx context.Context, email string) (*models.Passenger, error) {
	var passenger models.Passenger
	query := `SELECT * FROM passengers WHERE email = $1`
	err := r.db.GetContext(ctx, &passenger, query, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &passenger, err
}
