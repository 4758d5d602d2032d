package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "ridebid/internal/errors"
	"ridebid/internal/models"
	"ridebid/internal/repository"
)

// fakeRequestRepo mirrors the postgres repository's versioned update
// semantics: a write only lands if the stored version still matches.
type fakeRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*models.TripRequest
	nextID   int
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{requests: make(map[string]*models.TripRequest)}
}

func cloneRequest(r *models.TripRequest) *models.TripRequest {
	c := *r
	c.Offers = append(models.OfferList{}, r.Offers...)
	if r.AcceptedDriverID != nil {
		id := *r.AcceptedDriverID
		c.AcceptedDriverID = &id
	}
	if r.FinalPrice != nil {
		p := *r.FinalPrice
		c.FinalPrice = &p
	}
	if r.Outcome != nil {
		o := *r.Outcome
		c.Outcome = &o
	}
	return &c
}

func (r *fakeRequestRepo) Create(ctx context.Context, req *models.TripRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	if req.ID == "" {
		req.ID = fmt.Sprintf("req-%d", r.nextID)
	}
	req.Status = models.RequestStatusPending
	req.Version = 1
	if req.Offers == nil {
		req.Offers = models.OfferList{}
	}
	req.CreatedAt = time.Now()
	r.requests[req.ID] = cloneRequest(req)
	return nil
}

func (r *fakeRequestRepo) GetByID(ctx context.Context, id string) (*models.TripRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	return cloneRequest(req), nil
}

func (r *fakeRequestRepo) UpdateVersioned(ctx context.Context, req *models.TripRequest, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.requests[req.ID]
	if !ok || current.Version != expectedVersion {
		return repository.ErrVersionConflict
	}

	stored := cloneRequest(req)
	stored.Version = expectedVersion + 1
	r.requests[req.ID] = stored
	req.Version = stored.Version
	return nil
}

func (r *fakeRequestRepo) ListOpen(ctx context.Context, limit int) ([]*models.TripRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.TripRequest, 0)
	for _, req := range r.requests {
		if req.Status == models.RequestStatusPending {
			out = append(out, cloneRequest(req))
		}
	}
	return out, nil
}

func (r *fakeRequestRepo) ListByPassenger(ctx context.Context, passengerID string) ([]*models.TripRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.TripRequest, 0)
	for _, req := range r.requests {
		if req.PassengerID == passengerID {
			out = append(out, cloneRequest(req))
		}
	}
	return out, nil
}

func (r *fakeRequestRepo) ListByDriverOffer(ctx context.Context, driverID string) ([]*models.TripRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.TripRequest, 0)
	for _, req := range r.requests {
		if req.OfferByDriver(driverID) != nil {
			out = append(out, cloneRequest(req))
		}
	}
	return out, nil
}

type fakePassengerRepo struct {
	mu         sync.Mutex
	passengers map[string]*models.Passenger
}

func newFakePassengerRepo() *fakePassengerRepo {
	return &fakePassengerRepo{passengers: make(map[string]*models.Passenger)}
}

func (r *fakePassengerRepo) Create(ctx context.Context, p *models.Passenger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passengers[p.ID] = p
	return nil
}

func (r *fakePassengerRepo) GetByID(ctx context.Context, id string) (*models.Passenger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.passengers[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r *fakePassengerRepo) GetByEmail(ctx context.Context, email string) (*models.Passenger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.passengers {
		if p.Email == email {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

// fakeNotifier records delivered events for assertions.
type fakeNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Recipient string // empty for driver broadcasts
	Type      string
}

func (n *fakeNotifier) Notify(ctx context.Context, recipientID, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Recipient: recipientID, Type: event})
}

func (n *fakeNotifier) BroadcastDrivers(ctx context.Context, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Type: event})
}

func (n *fakeNotifier) count(recipient, event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Recipient == recipient && e.Type == event {
			c++
		}
	}
	return c
}

type negotiationHarness struct {
	svc        NegotiationService
	reputation ReputationService
	requests   *fakeRequestRepo
	drivers    *fakeDriverRepo
	passengers *fakePassengerRepo
	notifier   *fakeNotifier
}

func newNegotiationHarness(t *testing.T) *negotiationHarness {
	t.Helper()

	requests := newFakeRequestRepo()
	drivers := newFakeDriverRepo()
	passengers := newFakePassengerRepo()
	recorder := &fakeNotifier{}

	reputation := NewReputationService(drivers, nil, recorder)
	svc := NewNegotiationService(requests, drivers, passengers, reputation, NewRatingEngine(), recorder, 3)

	return &negotiationHarness{
		svc:        svc,
		reputation: reputation,
		requests:   requests,
		drivers:    drivers,
		passengers: passengers,
		notifier:   recorder,
	}
}

func (h *negotiationHarness) addPassenger(id string) {
	h.passengers.Create(context.Background(), &models.Passenger{ID: id, Email: id + "@example.com"})
}

func (h *negotiationHarness) addDriver(id string) {
	h.drivers.Create(context.Background(), &models.DriverProfile{ID: id, Rating: 4.5, Level: 1})
}

func (h *negotiationHarness) openRequest(t *testing.T, passengerID string) *models.TripRequest {
	t.Helper()
	request, err := h.svc.CreateRequest(context.Background(), &models.CreateTripRequestRequest{
		PassengerID:      passengerID,
		Origin:           models.Location{Lat: 12.97, Lng: 77.59},
		Destination:      models.Location{Lat: 12.93, Lng: 77.62},
		TargetPrice:      200,
		SeatsNeeded:      2,
		DepartureTime:    time.Now().Add(2 * time.Hour),
		EstimatedMinutes: 30,
		DistanceKm:       10,
	})
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	return request
}

func assertErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", wantCode)
	}
	apiErr, ok := err.(*apperrors.APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Code != wantCode {
		t.Fatalf("error code = %s, want %s (message: %s)", apiErr.Code, wantCode, apiErr.Message)
	}
}

func TestCreateRequest(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")

	request := h.openRequest(t, "p1")

	if request.Status != models.RequestStatusPending {
		t.Errorf("status = %s, want pending", request.Status)
	}
	if len(request.Offers) != 0 {
		t.Errorf("new request has %d offers, want 0", len(request.Offers))
	}
}

func TestCreateRequestUnknownPassenger(t *testing.T) {
	h := newNegotiationHarness(t)

	_, err := h.svc.CreateRequest(context.Background(), &models.CreateTripRequestRequest{
		PassengerID:      "ghost",
		Origin:           models.Location{Lat: 1, Lng: 1},
		Destination:      models.Location{Lat: 2, Lng: 2},
		SeatsNeeded:      1,
		DepartureTime:    time.Now().Add(time.Hour),
		EstimatedMinutes: 10,
		DistanceKm:       3,
	})
	assertErrorCode(t, err, "not_found")
}

func TestCreateRequestPastDeparture(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")

	_, err := h.svc.CreateRequest(context.Background(), &models.CreateTripRequestRequest{
		PassengerID:      "p1",
		Origin:           models.Location{Lat: 1, Lng: 1},
		Destination:      models.Location{Lat: 2, Lng: 2},
		SeatsNeeded:      1,
		DepartureTime:    time.Now().Add(-time.Hour),
		EstimatedMinutes: 10,
		DistanceKm:       3,
	})
	assertErrorCode(t, err, "invalid_input")
}

func TestCreateRequestRejectsBadInput(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")

	base := func() *models.CreateTripRequestRequest {
		return &models.CreateTripRequestRequest{
			PassengerID:      "p1",
			Origin:           models.Location{Lat: 1, Lng: 1},
			Destination:      models.Location{Lat: 2, Lng: 2},
			TargetPrice:      100,
			SeatsNeeded:      1,
			DepartureTime:    time.Now().Add(time.Hour),
			EstimatedMinutes: 10,
			DistanceKm:       3,
		}
	}

	zeroSeats := base()
	zeroSeats.SeatsNeeded = 0
	_, err := h.svc.CreateRequest(context.Background(), zeroSeats)
	assertErrorCode(t, err, "invalid_input")

	negativePrice := base()
	negativePrice.TargetPrice = -5
	_, err = h.svc.CreateRequest(context.Background(), negativePrice)
	assertErrorCode(t, err, "invalid_input")
}

func TestSubmitOffer(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	h.addDriver("d1")
	request := h.openRequest(t, "p1")

	updated, err := h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{
		DriverID:     "d1",
		OfferedPrice: 180,
		Message:      "can do it cheaper",
	})
	if err != nil {
		t.Fatalf("SubmitOffer() error = %v", err)
	}

	if len(updated.Offers) != 1 {
		t.Fatalf("offers = %d, want 1", len(updated.Offers))
	}
	offer := updated.Offers[0]
	if offer.DriverID != "d1" || offer.OfferedPrice != 180 || offer.Status != models.OfferStatusPending {
		t.Errorf("unexpected offer: %+v", offer)
	}

	if h.notifier.count("p1", "offer_received") != 1 {
		t.Error("passenger did not receive offer_received event")
	}
}

func TestSubmitOfferDuplicate(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	h.addDriver("d1")
	request := h.openRequest(t, "p1")

	if _, err := h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{DriverID: "d1", OfferedPrice: 180}); err != nil {
		t.Fatalf("first SubmitOffer() error = %v", err)
	}

	_, err := h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{DriverID: "d1", OfferedPrice: 170})
	assertErrorCode(t, err, "duplicate_offer")
}

func TestSubmitOfferOnSettledRequest(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	h.addDriver("d1")
	h.addDriver("d2")
	request := h.openRequest(t, "p1")

	updated, err := h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{DriverID: "d1", OfferedPrice: 180})
	if err != nil {
		t.Fatalf("SubmitOffer() error = %v", err)
	}
	if _, err := h.svc.AcceptOffer(context.Background(), request.ID, &models.AcceptOfferRequest{
		PassengerID: "p1",
		OfferID:     updated.Offers[0].ID,
	}); err != nil {
		t.Fatalf("AcceptOffer() error = %v", err)
	}

	_, err = h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{DriverID: "d2", OfferedPrice: 150})
	assertErrorCode(t, err, "invalid_state")
}

func TestSubmitOfferConcurrent(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	request := h.openRequest(t, "p1")

	const numDrivers = 8
	for i := 0; i < numDrivers; i++ {
		h.addDriver(fmt.Sprintf("d%d", i))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := make(map[string]bool)

	for i := 0; i < numDrivers; i++ {
		wg.Add(1)
		go func(driverID string) {
			defer wg.Done()
			_, err := h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{
				DriverID:     driverID,
				OfferedPrice: 150,
			})
			if err == nil {
				mu.Lock()
				succeeded[driverID] = true
				mu.Unlock()
			}
		}(fmt.Sprintf("d%d", i))
	}
	wg.Wait()

	stored, _ := h.requests.GetByID(context.Background(), request.ID)

	// Every acknowledged offer must be present exactly once.
	if len(stored.Offers) != len(succeeded) {
		t.Errorf("stored %d offers, %d submissions succeeded", len(stored.Offers), len(succeeded))
	}
	seen := make(map[string]bool)
	for _, offer := range stored.Offers {
		if seen[offer.DriverID] {
			t.Errorf("driver %s appears twice in offers", offer.DriverID)
		}
		seen[offer.DriverID] = true
		if !succeeded[offer.DriverID] {
			t.Errorf("offer from %s stored but submission reported failure", offer.DriverID)
		}
	}
}

func TestAcceptOffer(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	h.addDriver("d1")
	h.addDriver("d2")
	request := h.openRequest(t, "p1")

	h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{DriverID: "d1", OfferedPrice: 180})
	updated, _ := h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{DriverID: "d2", OfferedPrice: 160})

	winning := updated.OfferByDriver("d2")
	settled, err := h.svc.AcceptOffer(context.Background(), request.ID, &models.AcceptOfferRequest{
		PassengerID: "p1",
		OfferID:     winning.ID,
	})
	if err != nil {
		t.Fatalf("AcceptOffer() error = %v", err)
	}

	if settled.Status != models.RequestStatusAccepted {
		t.Errorf("status = %s, want accepted", settled.Status)
	}
	if settled.AcceptedDriverID == nil || *settled.AcceptedDriverID != "d2" {
		t.Errorf("accepted driver = %v, want d2", settled.AcceptedDriverID)
	}
	if settled.FinalPrice == nil || *settled.FinalPrice != 160 {
		t.Errorf("final price = %v, want 160", settled.FinalPrice)
	}
	if settled.OfferByDriver("d2").Status != models.OfferStatusAccepted {
		t.Error("winning offer not marked accepted")
	}
	if settled.OfferByDriver("d1").Status != models.OfferStatusRejected {
		t.Error("losing offer not marked rejected")
	}

	if h.notifier.count("d2", "offer_accepted") != 1 {
		t.Error("winner did not receive offer_accepted event")
	}
	if h.notifier.count("d1", "offer_rejected") != 1 {
		t.Error("loser did not receive offer_rejected event")
	}
}

func TestAcceptOfferRace(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	request := h.openRequest(t, "p1")

	const numOffers = 5
	var offerIDs []string
	for i := 0; i < numOffers; i++ {
		driverID := fmt.Sprintf("d%d", i)
		h.addDriver(driverID)
		updated, err := h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{
			DriverID:     driverID,
			OfferedPrice: float64(100 + i*10),
		})
		if err != nil {
			t.Fatalf("SubmitOffer() error = %v", err)
		}
		offerIDs = append(offerIDs, updated.OfferByDriver(driverID).ID)
	}

	var wg sync.WaitGroup
	results := make(chan error, numOffers)

	for _, offerID := range offerIDs {
		wg.Add(1)
		go func(offerID string) {
			defer wg.Done()
			_, err := h.svc.AcceptOffer(context.Background(), request.ID, &models.AcceptOfferRequest{
				PassengerID: "p1",
				OfferID:     offerID,
			})
			results <- err
		}(offerID)
	}
	wg.Wait()
	close(results)

	winners, conflicts := 0, 0
	for err := range results {
		if err == nil {
			winners++
			continue
		}
		apiErr, ok := err.(*apperrors.APIError)
		if !ok || apiErr.Code != "already_decided" {
			t.Errorf("loser got %v, want already_decided", err)
			continue
		}
		conflicts++
	}

	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
	if conflicts != numOffers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, numOffers-1)
	}

	stored, _ := h.requests.GetByID(context.Background(), request.ID)
	accepted := 0
	for _, offer := range stored.Offers {
		if offer.Status == models.OfferStatusAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Errorf("accepted offers in store = %d, want exactly 1", accepted)
	}
}

func TestAcceptOfferWrongPassenger(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	h.addPassenger("p2")
	h.addDriver("d1")
	request := h.openRequest(t, "p1")

	updated, _ := h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{DriverID: "d1", OfferedPrice: 150})

	_, err := h.svc.AcceptOffer(context.Background(), request.ID, &models.AcceptOfferRequest{
		PassengerID: "p2",
		OfferID:     updated.Offers[0].ID,
	})
	assertErrorCode(t, err, "forbidden")
}

func TestAcceptOfferOnCancelledRequest(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	h.addDriver("d1")
	request := h.openRequest(t, "p1")

	updated, _ := h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{DriverID: "d1", OfferedPrice: 150})
	if _, err := h.svc.CancelRequest(context.Background(), request.ID, &models.CancelRequestRequest{
		ActorID: "p1", Role: models.RolePassenger,
	}); err != nil {
		t.Fatalf("CancelRequest() error = %v", err)
	}

	// A cancelled request is a state error, not a lost race.
	_, err := h.svc.AcceptOffer(context.Background(), request.ID, &models.AcceptOfferRequest{
		PassengerID: "p1",
		OfferID:     updated.Offers[0].ID,
	})
	assertErrorCode(t, err, "invalid_state")
}

func TestAcceptOfferTwice(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	h.addDriver("d1")
	request := h.openRequest(t, "p1")

	updated, _ := h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{DriverID: "d1", OfferedPrice: 150})
	offerID := updated.Offers[0].ID

	if _, err := h.svc.AcceptOffer(context.Background(), request.ID, &models.AcceptOfferRequest{PassengerID: "p1", OfferID: offerID}); err != nil {
		t.Fatalf("first AcceptOffer() error = %v", err)
	}

	_, err := h.svc.AcceptOffer(context.Background(), request.ID, &models.AcceptOfferRequest{PassengerID: "p1", OfferID: offerID})
	assertErrorCode(t, err, "already_decided")
}

func TestAcceptUnknownOffer(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	request := h.openRequest(t, "p1")

	_, err := h.svc.AcceptOffer(context.Background(), request.ID, &models.AcceptOfferRequest{
		PassengerID: "p1",
		OfferID:     "no-such-offer",
	})
	assertErrorCode(t, err, "not_found")
}

func TestAcceptUnknownOfferOnCancelledRequest(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	request := h.openRequest(t, "p1")

	if _, err := h.svc.CancelRequest(context.Background(), request.ID, &models.CancelRequestRequest{
		ActorID: "p1", Role: models.RolePassenger,
	}); err != nil {
		t.Fatalf("CancelRequest() error = %v", err)
	}

	// A missing offer is reported before the request's state.
	_, err := h.svc.AcceptOffer(context.Background(), request.ID, &models.AcceptOfferRequest{
		PassengerID: "p1",
		OfferID:     "no-such-offer",
	})
	assertErrorCode(t, err, "not_found")
}

func TestCancelByPassengerTwice(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	request := h.openRequest(t, "p1")

	cancelled, err := h.svc.CancelRequest(context.Background(), request.ID, &models.CancelRequestRequest{
		ActorID: "p1", Role: models.RolePassenger,
	})
	if err != nil {
		t.Fatalf("CancelRequest() error = %v", err)
	}
	if cancelled.Status != models.RequestStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}

	_, err = h.svc.CancelRequest(context.Background(), request.ID, &models.CancelRequestRequest{
		ActorID: "p1", Role: models.RolePassenger,
	})
	assertErrorCode(t, err, "invalid_state")
}

func TestCancelByPassengerWrongActor(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	h.addPassenger("p2")
	request := h.openRequest(t, "p1")

	_, err := h.svc.CancelRequest(context.Background(), request.ID, &models.CancelRequestRequest{
		ActorID: "p2", Role: models.RolePassenger,
	})
	assertErrorCode(t, err, "forbidden")
}

func TestCancelByPassengerAfterAccept(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	h.addDriver("d1")
	request := h.openRequest(t, "p1")

	updated, _ := h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{DriverID: "d1", OfferedPrice: 150})
	h.svc.AcceptOffer(context.Background(), request.ID, &models.AcceptOfferRequest{PassengerID: "p1", OfferID: updated.Offers[0].ID})

	_, err := h.svc.CancelRequest(context.Background(), request.ID, &models.CancelRequestRequest{
		ActorID: "p1", Role: models.RolePassenger,
	})
	assertErrorCode(t, err, "invalid_state")
}

func TestCancelByDriverAppliesPenalty(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	h.addDriver("d1")
	h.drivers.mu.Lock()
	h.drivers.drivers["d1"].Points = 20
	h.drivers.mu.Unlock()
	request := h.openRequest(t, "p1")

	updated, _ := h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{DriverID: "d1", OfferedPrice: 150})
	h.svc.AcceptOffer(context.Background(), request.ID, &models.AcceptOfferRequest{PassengerID: "p1", OfferID: updated.Offers[0].ID})

	cancelled, err := h.svc.CancelRequest(context.Background(), request.ID, &models.CancelRequestRequest{
		ActorID: "d1", Role: models.RoleDriver,
	})
	if err != nil {
		t.Fatalf("CancelRequest() error = %v", err)
	}
	if cancelled.Status != models.RequestStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}

	driver, _ := h.drivers.GetByID(context.Background(), "d1")
	if driver.Points != 15 {
		t.Errorf("points = %d, want 15 after penalty", driver.Points)
	}
	if driver.CancelledTrips != 1 {
		t.Errorf("cancelled trips = %d, want 1", driver.CancelledTrips)
	}
	if driver.Rating != 4.5 {
		t.Errorf("rating changed on cancellation: %v", driver.Rating)
	}

	if h.notifier.count("p1", "request_cancelled") != 1 {
		t.Error("passenger did not receive request_cancelled event")
	}
}

func TestCancelByDriverNotAccepted(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	h.addDriver("d1")
	h.addDriver("d2")
	request := h.openRequest(t, "p1")

	updated, _ := h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{DriverID: "d1", OfferedPrice: 150})
	h.svc.AcceptOffer(context.Background(), request.ID, &models.AcceptOfferRequest{PassengerID: "p1", OfferID: updated.Offers[0].ID})

	_, err := h.svc.CancelRequest(context.Background(), request.ID, &models.CancelRequestRequest{
		ActorID: "d2", Role: models.RoleDriver,
	})
	assertErrorCode(t, err, "forbidden")
}

func TestCompleteTrip(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	h.addDriver("d1")
	request := h.openRequest(t, "p1")

	updated, _ := h.svc.SubmitOffer(context.Background(), request.ID, &models.SubmitOfferRequest{DriverID: "d1", OfferedPrice: 150})
	h.svc.AcceptOffer(context.Background(), request.ID, &models.AcceptOfferRequest{PassengerID: "p1", OfferID: updated.Offers[0].ID})

	completed, err := h.svc.CompleteTrip(context.Background(), request.ID, &models.CompleteTripRequest{
		PassengerID:   "p1",
		ActualMinutes: 28,
		Condition:     models.ConditionExcellent,
		TimeOfDay:     models.TimeMorning,
	})
	if err != nil {
		t.Fatalf("CompleteTrip() error = %v", err)
	}

	if completed.Status != models.RequestStatusCompleted {
		t.Errorf("status = %s, want completed", completed.Status)
	}
	if completed.Outcome == nil {
		t.Fatal("outcome not recorded")
	}
	if completed.Outcome.FinalRating < 1 || completed.Outcome.FinalRating > 5 {
		t.Errorf("rating %v outside [1,5]", completed.Outcome.FinalRating)
	}

	driver, _ := h.drivers.GetByID(context.Background(), "d1")
	if driver.CompletedTrips != 1 {
		t.Errorf("driver completed trips = %d, want 1", driver.CompletedTrips)
	}
	if !driver.Badges.Has("First Trip") {
		t.Error("First Trip badge not awarded on completion")
	}

	if h.notifier.count("d1", "trip_completed") != 1 {
		t.Error("driver did not receive trip_completed event")
	}
}

func TestCompleteTripWrongState(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	request := h.openRequest(t, "p1")

	_, err := h.svc.CompleteTrip(context.Background(), request.ID, &models.CompleteTripRequest{
		PassengerID:   "p1",
		ActualMinutes: 30,
		Condition:     models.ConditionGood,
		TimeOfDay:     models.TimeAfternoon,
	})
	assertErrorCode(t, err, "invalid_state")
}

func TestListMyOffers(t *testing.T) {
	h := newNegotiationHarness(t)
	h.addPassenger("p1")
	h.addDriver("d1")
	first := h.openRequest(t, "p1")
	second := h.openRequest(t, "p1")

	h.svc.SubmitOffer(context.Background(), first.ID, &models.SubmitOfferRequest{DriverID: "d1", OfferedPrice: 100})
	h.svc.SubmitOffer(context.Background(), second.ID, &models.SubmitOfferRequest{DriverID: "d1", OfferedPrice: 120})

	views, err := h.svc.ListMyOffers(context.Background(), "d1")
	if err != nil {
		t.Fatalf("ListMyOffers() error = %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d views, want 2", len(views))
	}
	for _, v := range views {
		if v.OfferStatus != models.OfferStatusPending {
			t.Errorf("offer status = %s, want pending", v.OfferStatus)
		}
	}
}
