package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	apperrors "ridebid/internal/errors"
	"ridebid/internal/models"
	"ridebid/internal/service"
	"ridebid/pkg/utils"
)

type RequestHandler struct {
	negotiation service.NegotiationService
	validate    *validator.Validate
}

func NewRequestHandler(negotiation service.NegotiationService) *RequestHandler {
	return &RequestHandler{
		negotiation: negotiation,
		validate:    validator.New(),
	}
}

func (h *RequestHandler) RegisterRoutes(r chi.Router) {
	r.Post("/requests", h.CreateRequest)
	r.Get("/requests", h.ListOpenRequests)
	r.Get("/requests/{id}", h.GetRequest)
	r.Post("/requests/{id}/offers", h.SubmitOffer)
	r.Post("/requests/{id}/accept", h.AcceptOffer)
	r.Post("/requests/{id}/cancel", h.CancelRequest)
	r.Post("/requests/{id}/complete", h.CompleteTrip)
}

// POST /v1/requests
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTripRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	request, err := h.negotiation.CreateRequest(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Created(w, request)
}

// GET /v1/requests
func (h *RequestHandler) ListOpenRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.negotiation.ListOpenRequests(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, requests)
}

// GET /v1/requests/{id}
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "request id is required")
		return
	}

	request, err := h.negotiation.GetRequest(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, request)
}

// POST /v1/requests/{id}/offers
func (h *RequestHandler) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "request id is required")
		return
	}

	var req models.SubmitOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	request, err := h.negotiation.SubmitOffer(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Created(w, request)
}

// POST /v1/requests/{id}/accept
func (h *RequestHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "request id is required")
		return
	}

	var req models.AcceptOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	request, err := h.negotiation.AcceptOffer(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, request)
}

// POST /v1/requests/{id}/cancel
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "request id is required")
		return
	}

	var req models.CancelRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	request, err := h.negotiation.CancelRequest(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, request)
}

// POST /v1/requests/{id}/complete
func (h *RequestHandler) CompleteTrip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "request id is required")
		return
	}

	var req models.CompleteTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	request, err := h.negotiation.CompleteTrip(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, request)
}

func handleError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*apperrors.APIError); ok {
		utils.Error(w, apiErr)
		return
	}

	switch err {
	case apperrors.ErrNotFound:
		utils.Error(w, apperrors.NotFound("resource"))
	case apperrors.ErrDuplicateOffer:
		utils.Error(w, apperrors.DuplicateOffer())
	case apperrors.ErrAlreadyDecided:
		utils.Error(w, apperrors.AlreadyDecided())
	case apperrors.ErrUnavailable:
		utils.Error(w, apperrors.Unavailable())
	default:
		utils.InternalError(w, "internal server error")
	}
}
