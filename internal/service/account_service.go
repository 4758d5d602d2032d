package service

import (
	"context"

	apperrors "ridebid/internal/errors"
	"ridebid/internal/models"
	"ridebid/internal/repository"
)

// AccountService manages the two account kinds. Roles are enforced
// structurally: passengers and drivers live in separate tables and an
// ID from one can never act as the other.
type AccountService interface {
	CreatePassenger(ctx context.Context, req *models.CreatePassengerRequest) (*models.Passenger, error)
	GetPassenger(ctx context.Context, id string) (*models.Passenger, error)
	CreateDriver(ctx context.Context, req *models.CreateDriverRequest) (*models.DriverProfile, error)
	GetDriver(ctx context.Context, id string) (*models.DriverProfile, error)
}

type accountService struct {
	passengerRepo repository.PassengerRepository
	driverRepo    repository.DriverRepository
}

func NewAccountService(passengerRepo repository.PassengerRepository, driverRepo repository.DriverRepository) AccountService {
	return &accountService{
		passengerRepo: passengerRepo,
		driverRepo:    driverRepo,
	}
}

func (s *accountService) CreatePassenger(ctx context.Context, req *models.CreatePassengerRequest) (*models.Passenger, error) {
	existing, err := s.passengerRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict("passenger with this email already exists")
	}

	passenger := &models.Passenger{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	}
	if err := s.passengerRepo.Create(ctx, passenger); err != nil {
		return nil, err
	}
	return passenger, nil
}

func (s *accountService) GetPassenger(ctx context.Context, id string) (*models.Passenger, error) {
	passenger, err := s.passengerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if passenger == nil {
		return nil, apperrors.NotFound("passenger")
	}
	return passenger, nil
}

func (s *accountService) CreateDriver(ctx context.Context, req *models.CreateDriverRequest) (*models.DriverProfile, error) {
	existing, err := s.driverRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict("driver with this email already exists")
	}

	profile := &models.DriverProfile{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		LicenseNumber: req.LicenseNumber,
		Verifications: models.VerificationFlags{Email: true},
	}
	if err := s.driverRepo.Create(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *accountService) GetDriver(ctx context.Context, id string) (*models.DriverProfile, error) {
	profile, err := s.driverRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apperrors.NotFound("driver")
	}
	return profile, nil
}
