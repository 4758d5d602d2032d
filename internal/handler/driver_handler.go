package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"ridebid/internal/models"
	"ridebid/internal/service"
	"ridebid/pkg/utils"
)

type DriverHandler struct {
	accounts    service.AccountService
	reputation  service.ReputationService
	negotiation service.NegotiationService
	validate    *validator.Validate
}

func NewDriverHandler(accounts service.AccountService, reputation service.ReputationService, negotiation service.NegotiationService) *DriverHandler {
	return &DriverHandler{
		accounts:    accounts,
		reputation:  reputation,
		negotiation: negotiation,
		validate:    validator.New(),
	}
}

func (h *DriverHandler) RegisterRoutes(r chi.Router) {
	r.Post("/drivers", h.CreateDriver)
	// leaderboard before {id} so "leaderboard" never parses as a driver id
	r.Get("/drivers/leaderboard", h.Leaderboard)
	r.Get("/drivers/{id}", h.GetDriver)
	r.Get("/drivers/{id}/rewards", h.GetRewards)
	r.Get("/drivers/{id}/offers", h.ListMyOffers)
}

// POST /v1/drivers
func (h *DriverHandler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	profile, err := h.accounts.CreateDriver(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Created(w, profile)
}

// GET /v1/drivers/{id}
func (h *DriverHandler) GetDriver(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "driver id is required")
		return
	}

	profile, err := h.accounts.GetDriver(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, profile)
}

// GET /v1/drivers/{id}/rewards
func (h *DriverHandler) GetRewards(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "driver id is required")
		return
	}

	rewards, err := h.reputation.GetRewards(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, rewards)
}

// GET /v1/drivers/{id}/offers
func (h *DriverHandler) ListMyOffers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "driver id is required")
		return
	}

	offers, err := h.negotiation.ListMyOffers(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, offers)
}

// GET /v1/drivers/leaderboard?limit=10
func (h *DriverHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			utils.BadRequest(w, "limit must be an integer between 1 and 100")
			return
		}
		limit = parsed
	}

	entries, err := h.reputation.Leaderboard(r.Context(), limit)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, entries)
}
