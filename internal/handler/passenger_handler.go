package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"ridebid/internal/models"
	"ridebid/internal/service"
	"ridebid/pkg/utils"
)

type PassengerHandler struct {
	accounts    service.AccountService
	negotiation service.NegotiationService
	validate    *validator.Validate
}

func NewPassengerHandler(accounts service.AccountService, negotiation service.NegotiationService) *PassengerHandler {
	return &PassengerHandler{
		accounts:    accounts,
		negotiation: negotiation,
		validate:    validator.New(),
	}
}

func (h *PassengerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/passengers", h.CreatePassenger)
	r.Get("/passengers/{id}", h.GetPassenger)
	r.Get("/passengers/{id}/requests", h.ListMyRequests)
}

// POST /v1/passengers
func (h *PassengerHandler) CreatePassenger(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePassengerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	passenger, err := h.accounts.CreatePassenger(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Created(w, passenger)
}

// GET /v1/passengers/{id}
func (h *PassengerHandler) GetPassenger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "passenger id is required")
		return
	}

	passenger, err := h.accounts.GetPassenger(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, passenger)
}

// GET /v1/passengers/{id}/requests
func (h *PassengerHandler) ListMyRequests(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "passenger id is required")
		return
	}

	requests, err := h.negotiation.ListMyRequests(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, requests)
}
