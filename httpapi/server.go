package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lumenstay/copilot/agent"
	"github.com/lumenstay/copilot/logging"
	"github.com/lumenstay/copilot/search"
	"github.com/lumenstay/copilot/store"
)

// Server exposes the copilot over HTTP: hotel and booking lookups, direct
// vectorization and similarity search, and the conversational chat surface.
type Server struct {
	repo    store.Repository
	svc     *search.Service
	copilot *agent.Copilot
	log     *logging.Logger
}

// New builds a Server around the given dependencies.
func New(repo store.Repository, svc *search.Service, copilot *agent.Copilot, log *logging.Logger) *Server {
	return &Server{
		repo:    repo,
		svc:     svc,
		copilot: copilot,
		log:     log.Sub("http"),
	}
}

// Router returns the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/Hotels", s.handleHotels)
	r.Get("/Hotels/{hotelID}/Bookings", s.handleBookings)
	r.Get("/Hotels/{hotelID}/Bookings/{minDate}", s.handleBookingsSince)
	r.Post("/Chat", s.handleChat)
	r.Get("/Vectorize", s.handleVectorize)
	r.Post("/VectorSearch", s.handleVectorSearch)
	r.Post("/MaintenanceCopilotChat", s.handleCopilotChat)
	r.Get("/MaintenanceCopilotChat/ws", s.handleCopilotChatWS)

	return r
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
