package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	apperrors "ridebid/internal/errors"
	"ridebid/internal/models"
	"ridebid/internal/notifier"
	"ridebid/internal/observability"
	"ridebid/internal/repository"
)

const defaultListLimit = 50

func logReputationFailure(event, driverID string, err error) {
	log.Printf("failed to record %s for driver %s: %v", event, driverID, err)
}

// NegotiationService runs the bidding lifecycle of a trip request:
// open for offers, collect bids, settle on exactly one driver, then
// complete or cancel.
type NegotiationService interface {
	CreateRequest(ctx context.Context, req *models.CreateTripRequestRequest) (*models.TripRequest, error)
	SubmitOffer(ctx context.Context, requestID string, req *models.SubmitOfferRequest) (*models.TripRequest, error)
	AcceptOffer(ctx context.Context, requestID string, req *models.AcceptOfferRequest) (*models.TripRequest, error)
	CancelRequest(ctx context.Context, requestID string, req *models.CancelRequestRequest) (*models.TripRequest, error)
	CompleteTrip(ctx context.Context, requestID string, req *models.CompleteTripRequest) (*models.TripRequest, error)
	GetRequest(ctx context.Context, requestID string) (*models.TripRequest, error)
	ListOpenRequests(ctx context.Context) ([]*models.TripRequest, error)
	ListMyRequests(ctx context.Context, passengerID string) ([]*models.TripRequest, error)
	ListMyOffers(ctx context.Context, driverID string) ([]*models.MyOfferView, error)
}

type negotiationService struct {
	requestRepo   repository.TripRequestRepository
	driverRepo    repository.DriverRepository
	passengerRepo repository.PassengerRepository
	reputation    ReputationService
	ratingEngine  RatingEngine
	notifier      notifier.Notifier
	offerRetries  int
}

func NewNegotiationService(
	requestRepo repository.TripRequestRepository,
	driverRepo repository.DriverRepository,
	passengerRepo repository.PassengerRepository,
	reputation ReputationService,
	ratingEngine RatingEngine,
	eventNotifier notifier.Notifier,
	offerRetries int,
) NegotiationService {
	if offerRetries < 1 {
		offerRetries = 3
	}
	return &negotiationService{
		requestRepo:   requestRepo,
		driverRepo:    driverRepo,
		passengerRepo: passengerRepo,
		reputation:    reputation,
		ratingEngine:  ratingEngine,
		notifier:      eventNotifier,
		offerRetries:  offerRetries,
	}
}

func (s *negotiationService) CreateRequest(ctx context.Context, req *models.CreateTripRequestRequest) (*models.TripRequest, error) {
	passenger, err := s.passengerRepo.GetByID(ctx, req.PassengerID)
	if err != nil {
		return nil, err
	}
	if passenger == nil {
		return nil, apperrors.NotFound("passenger")
	}

	if req.SeatsNeeded < 1 {
		return nil, apperrors.InvalidInput("seats needed must be at least 1")
	}
	if req.TargetPrice < 0 {
		return nil, apperrors.InvalidInput("target price cannot be negative")
	}
	if !req.DepartureTime.After(time.Now()) {
		return nil, apperrors.InvalidInput("departure time must be in the future")
	}

	request := &models.TripRequest{
		PassengerID:      req.PassengerID,
		Origin:           req.Origin,
		Destination:      req.Destination,
		TargetPrice:      req.TargetPrice,
		SeatsNeeded:      req.SeatsNeeded,
		DepartureTime:    req.DepartureTime,
		EstimatedMinutes: req.EstimatedMinutes,
		DistanceKm:       req.DistanceKm,
	}

	if err := s.requestRepo.Create(ctx, request); err != nil {
		return nil, err
	}

	observability.RequestsCreated.Inc()

	if s.notifier != nil {
		s.notifier.BroadcastDrivers(ctx, "request_created", request)
	}

	return request, nil
}

// SubmitOffer appends a driver's bid. Appends from different drivers
// commute, so a version conflict here just means another offer landed
// first; the submission is re-validated against the fresh row and
// retried a bounded number of times.
func (s *negotiationService) SubmitOffer(ctx context.Context, requestID string, req *models.SubmitOfferRequest) (*models.TripRequest, error) {
	driver, err := s.driverRepo.GetByID(ctx, req.DriverID)
	if err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, apperrors.NotFound("driver")
	}

	for attempt := 0; attempt < s.offerRetries; attempt++ {
		request, err := s.requestRepo.GetByID(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if request == nil {
			return nil, apperrors.NotFound("trip request")
		}

		if !request.IsOpen() {
			return nil, apperrors.InvalidState("submit an offer on", request.Status)
		}
		if request.OfferByDriver(req.DriverID) != nil {
			return nil, apperrors.DuplicateOffer()
		}

		request.Offers = append(request.Offers, models.DriverOffer{
			ID:           uuid.New().String(),
			DriverID:     req.DriverID,
			OfferedPrice: req.OfferedPrice,
			Message:      req.Message,
			Status:       models.OfferStatusPending,
			CreatedAt:    time.Now(),
		})

		err = s.requestRepo.UpdateVersioned(ctx, request, request.Version)
		if err == repository.ErrVersionConflict {
			continue
		}
		if err != nil {
			return nil, err
		}

		observability.OffersSubmitted.Inc()

		if s.notifier != nil {
			s.notifier.Notify(ctx, request.PassengerID, "offer_received", map[string]interface{}{
				"request_id":    request.ID,
				"driver_id":     req.DriverID,
				"driver_name":   driver.Name,
				"driver_rating": driver.Rating,
				"offered_price": req.OfferedPrice,
				"message":       req.Message,
			})
		}

		return request, nil
	}

	return nil, apperrors.Unavailable()
}

// AcceptOffer settles the request on one offer. The versioned update is
// attempted exactly once: a conflict means someone else settled the
// request between our read and write, and accepting is not an operation
// that may silently re-run against changed state.
func (s *negotiationService) AcceptOffer(ctx context.Context, requestID string, req *models.AcceptOfferRequest) (*models.TripRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.NotFound("trip request")
	}

	if request.PassengerID != req.PassengerID {
		return nil, apperrors.Forbidden("only the requesting passenger can accept an offer")
	}

	offer := request.OfferByID(req.OfferID)
	if offer == nil {
		return nil, apperrors.NotFound("offer")
	}

	if request.Status == models.RequestStatusAccepted {
		return nil, apperrors.AlreadyDecided()
	}
	if !request.IsOpen() {
		return nil, apperrors.InvalidState("accept an offer on", request.Status)
	}

	if offer.Status != models.OfferStatusPending {
		return nil, apperrors.Conflict("offer is already " + offer.Status)
	}

	var rejectedDrivers []string
	for i := range request.Offers {
		if request.Offers[i].ID == req.OfferID {
			request.Offers[i].Status = models.OfferStatusAccepted
		} else {
			request.Offers[i].Status = models.OfferStatusRejected
			rejectedDrivers = append(rejectedDrivers, request.Offers[i].DriverID)
		}
	}

	request.Status = models.RequestStatusAccepted
	request.AcceptedDriverID = &offer.DriverID
	price := offer.OfferedPrice
	request.FinalPrice = &price

	err = s.requestRepo.UpdateVersioned(ctx, request, request.Version)
	if err == repository.ErrVersionConflict {
		observability.AcceptConflicts.Inc()
		return nil, apperrors.AlreadyDecided()
	}
	if err != nil {
		return nil, err
	}

	observability.OffersAccepted.Inc()
	observability.NegotiationDuration.Observe(time.Since(request.CreatedAt).Seconds())

	if s.notifier != nil {
		s.notifier.Notify(ctx, offer.DriverID, "offer_accepted", map[string]interface{}{
			"request_id":  request.ID,
			"offer_id":    offer.ID,
			"final_price": offer.OfferedPrice,
		})
		for _, driverID := range rejectedDrivers {
			s.notifier.Notify(ctx, driverID, "offer_rejected", map[string]interface{}{
				"request_id": request.ID,
			})
		}
	}

	return request, nil
}

func (s *negotiationService) CancelRequest(ctx context.Context, requestID string, req *models.CancelRequestRequest) (*models.TripRequest, error) {
	switch req.Role {
	case models.RolePassenger:
		return s.cancelByPassenger(ctx, requestID, req.ActorID)
	case models.RoleDriver:
		return s.cancelByDriver(ctx, requestID, req.ActorID)
	default:
		return nil, apperrors.InvalidInput("unknown role: " + req.Role)
	}
}

// cancelByPassenger withdraws a request that is still open for bids.
// Once a driver has been accepted the passenger can no longer back out
// this way.
func (s *negotiationService) cancelByPassenger(ctx context.Context, requestID, passengerID string) (*models.TripRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.NotFound("trip request")
	}

	if request.PassengerID != passengerID {
		return nil, apperrors.Forbidden("only the requesting passenger can cancel this request")
	}
	if !request.IsOpen() {
		return nil, apperrors.InvalidState("cancel", request.Status)
	}

	request.Status = models.RequestStatusCancelled

	err = s.requestRepo.UpdateVersioned(ctx, request, request.Version)
	if err == repository.ErrVersionConflict {
		// Lost the race to an accept or another offer. The request is no
		// longer in the state the passenger saw, so report the settlement.
		return nil, apperrors.AlreadyDecided()
	}
	if err != nil {
		return nil, err
	}

	observability.RequestsCancelled.Inc()

	if s.notifier != nil {
		s.notifier.BroadcastDrivers(ctx, "request_cancelled", map[string]interface{}{
			"request_id": request.ID,
		})
	}

	return request, nil
}

// cancelByDriver is the accepted driver abandoning a settled trip. It
// reopens nothing: the request ends cancelled and the driver takes the
// reputation penalty.
func (s *negotiationService) cancelByDriver(ctx context.Context, requestID, driverID string) (*models.TripRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.NotFound("trip request")
	}

	if request.Status != models.RequestStatusAccepted {
		return nil, apperrors.InvalidState("cancel", request.Status)
	}
	if request.AcceptedDriverID == nil || *request.AcceptedDriverID != driverID {
		return nil, apperrors.Forbidden("only the accepted driver can cancel this trip")
	}

	request.Status = models.RequestStatusCancelled

	err = s.requestRepo.UpdateVersioned(ctx, request, request.Version)
	if err == repository.ErrVersionConflict {
		return nil, apperrors.AlreadyDecided()
	}
	if err != nil {
		return nil, err
	}

	observability.RequestsCancelled.Inc()

	// The cancellation is already committed; a failed penalty write must
	// not turn it into an error response.
	if _, err := s.reputation.RecordCancellation(ctx, driverID); err != nil {
		logReputationFailure("cancellation", driverID, err)
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, request.PassengerID, "request_cancelled", map[string]interface{}{
			"request_id":   request.ID,
			"cancelled_by": models.RoleDriver,
		})
	}

	return request, nil
}

func (s *negotiationService) CompleteTrip(ctx context.Context, requestID string, req *models.CompleteTripRequest) (*models.TripRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.NotFound("trip request")
	}

	if request.PassengerID != req.PassengerID {
		return nil, apperrors.Forbidden("only the requesting passenger can complete this trip")
	}
	if request.Status != models.RequestStatusAccepted {
		return nil, apperrors.InvalidState("complete", request.Status)
	}

	driverID := *request.AcceptedDriverID
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, apperrors.NotFound("driver")
	}

	outcome, err := s.ratingEngine.ScoreTrip(
		request.EstimatedMinutes, req.ActualMinutes,
		request.DistanceKm, driver.Rating,
		req.Condition, req.TimeOfDay,
	)
	if err != nil {
		return nil, err
	}

	request.Status = models.RequestStatusCompleted
	request.Outcome = outcome

	err = s.requestRepo.UpdateVersioned(ctx, request, request.Version)
	if err == repository.ErrVersionConflict {
		return nil, apperrors.AlreadyDecided()
	}
	if err != nil {
		return nil, err
	}

	observability.TripsCompleted.Inc()

	if _, err := s.reputation.RecordCompletion(ctx, driverID, outcome.FinalRating); err != nil {
		logReputationFailure("completion", driverID, err)
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, driverID, "trip_completed", map[string]interface{}{
			"request_id": request.ID,
			"rating":     outcome.FinalRating,
			"outcome":    outcome,
		})
	}

	return request, nil
}

func (s *negotiationService) GetRequest(ctx context.Context, requestID string) (*models.TripRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.NotFound("trip request")
	}
	return request, nil
}

func (s *negotiationService) ListOpenRequests(ctx context.Context) ([]*models.TripRequest, error) {
	return s.requestRepo.ListOpen(ctx, defaultListLimit)
}

func (s *negotiationService) ListMyRequests(ctx context.Context, passengerID string) ([]*models.TripRequest, error) {
	passenger, err := s.passengerRepo.GetByID(ctx, passengerID)
	if err != nil {
		return nil, err
	}
	if passenger == nil {
		return nil, apperrors.NotFound("passenger")
	}
	return s.requestRepo.ListByPassenger(ctx, passengerID)
}

func (s *negotiationService) ListMyOffers(ctx context.Context, driverID string) ([]*models.MyOfferView, error) {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, apperrors.NotFound("driver")
	}

	requests, err := s.requestRepo.ListByDriverOffer(ctx, driverID)
	if err != nil {
		return nil, err
	}

	views := make([]*models.MyOfferView, 0, len(requests))
	for _, r := range requests {
		if v := r.ToMyOfferView(driverID); v != nil {
			views = append(views, v)
		}
	}
	return views, nil
}
