package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumenstay/copilot/core"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "Welcome to the Lumenstay maintenance copilot API!")
}

func (s *Server) handleHotels(w http.ResponseWriter, r *http.Request) {
	hotels, err := s.repo.Hotels(r.Context())
	if err != nil {
		s.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hotels)
}

func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request) {
	hotelID, err := strconv.ParseInt(chi.URLParam(r, "hotelID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "hotel id must be an integer")
		return
	}
	bookings, err := s.repo.BookingsForHotel(r.Context(), hotelID)
	if err != nil {
		s.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *Server) handleBookingsSince(w http.ResponseWriter, r *http.Request) {
	hotelID, err := strconv.ParseInt(chi.URLParam(r, "hotelID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "hotel id must be an integer")
		return
	}
	minDate, err := time.Parse("2006-01-02", chi.URLParam(r, "minDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "minimum date must be YYYY-MM-DD")
		return
	}
	bookings, err := s.repo.BookingsSince(r.Context(), hotelID, minDate)
	if err != nil {
		s.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// handleChat answers a one-shot form-posted message with a fresh session,
// so each call is an independent conversation.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}
	message := r.PostFormValue("message")
	reply, err := s.copilot.Chat(r.Context(), uuid.New().String(), message)
	if err != nil && !errors.Is(err, core.ErrToolLoopExceeded) {
		s.writeMapped(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, reply)
}

func (s *Server) handleVectorize(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	vec, err := s.svc.Vectorize(r.Context(), text)
	if err != nil {
		s.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vec)
}

// handleVectorSearch runs a similarity query with a raw vector body.
// max_results defaults to 0 (all matches) and minimum_similarity_score
// to 0.8, matching the query parameters.
func (s *Server) handleVectorSearch(w http.ResponseWriter, r *http.Request) {
	var vec []float32
	if err := json.NewDecoder(r.Body).Decode(&vec); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON array of numbers")
		return
	}

	maxResults := 0
	if v := r.URL.Query().Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "max_results must be an integer")
			return
		}
		maxResults = n
	}

	minScore := 0.8
	if v := r.URL.Query().Get("minimum_similarity_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "minimum_similarity_score must be a number")
			return
		}
		minScore = f
	}

	results, err := s.svc.Search(vec, maxResults, minScore)
	if err != nil {
		s.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleCopilotChat carries a multi-turn conversation. The session is
// identified by the X-Session-Id header; without one a new session is
// started and its id returned in the response header.
func (s *Server) handleCopilotChat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	message := string(body)
	// Clients may post either raw text or a JSON-quoted string.
	if trimmed := strings.TrimSpace(message); strings.HasPrefix(trimmed, `"`) {
		var decoded string
		if json.Unmarshal([]byte(trimmed), &decoded) == nil {
			message = decoded
		}
	}

	sessionID := strings.TrimSpace(r.Header.Get("X-Session-Id"))
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	w.Header().Set("X-Session-Id", sessionID)

	reply, err := s.copilot.Chat(r.Context(), sessionID, message)
	if err != nil && !errors.Is(err, core.ErrToolLoopExceeded) {
		s.writeMapped(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, reply)
}

// writeMapped translates domain errors into HTTP statuses.
func (s *Server) writeMapped(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrSchemaViolation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrDimensionMismatch), errors.Is(err, core.ErrDuplicateKey):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, core.ErrProviderUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error().Err(err).Msg("unhandled request error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
