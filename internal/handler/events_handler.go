package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ridebid/internal/notifier"
)

// EventsHandler serves the SSE streams. Passengers and drivers follow
// their own event feed; drivers additionally get every new open request
// on the shared feed.
type EventsHandler struct {
	hub *notifier.Hub
}

func NewEventsHandler(hub *notifier.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

func (h *EventsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/events/users/{id}", h.StreamUserEvents)
	r.Get("/events/drivers", h.StreamDriverFeed)
}

// GET /v1/events/users/{id}
func (h *EventsHandler) StreamUserEvents(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		http.Error(w, "user id required", http.StatusBadRequest)
		return
	}

	ch := h.hub.Subscribe(userID)
	defer h.hub.Unsubscribe(userID, ch)

	h.stream(w, r, ch)
}

// GET /v1/events/drivers
func (h *EventsHandler) StreamDriverFeed(w http.ResponseWriter, r *http.Request) {
	ch := h.hub.SubscribeDrivers()
	defer h.hub.UnsubscribeDrivers(ch)

	h.stream(w, r, ch)
}

func (h *EventsHandler) stream(w http.ResponseWriter, r *http.Request, ch chan []byte) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, "event: heartbeat\ndata: {\"time\": %q}\n\n", time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}
