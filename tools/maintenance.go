package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenstay/copilot/search"
	"github.com/lumenstay/copilot/store"
)

// RegisterMaintenanceTools wires the hotel maintenance tool set into a
// registry: one mutating save operation and two read-only lookups.
func RegisterMaintenanceTools(r *Registry, repo store.Repository, svc *search.Service) error {
	defs := []struct {
		def     Definition
		handler Handler
	}{
		{
			def: Definition{
				Name: "save_maintenance_request",
				Description: "Save a new maintenance request to the database so the maintenance " +
					"team can address it. Requires user confirmation before running.",
				Mutating: true,
				InputSchema: ObjectSchema(map[string]any{
					"hotel_id": IntegerProperty("Numeric id of the hotel the request is for"),
					"room":     StringProperty("Room number or location, e.g. '204' or 'lobby'"),
					"details":  StringProperty("Full description of the problem"),
					"priority": StringEnumProperty("How urgent the problem is; defaults to normal",
						"low", "normal", "urgent"),
				}, "hotel_id", "room", "details"),
			},
			handler: saveRequestHandler(repo, svc),
		},
		{
			def: Definition{
				Name: "search_maintenance_requests",
				Description: "Search past maintenance requests by meaning, not keywords. " +
					"Use this to find whether a similar problem was reported before.",
				InputSchema: ObjectSchema(map[string]any{
					"query":       StringProperty("Free-text description of the issue to look for"),
					"max_results": IntegerProperty("Maximum results to return; 0 or omitted returns all matches"),
					"min_score":   NumberProperty("Minimum similarity score in [0, 1]; omitted uses 0.6"),
				}, "query"),
			},
			handler: searchRequestsHandler(svc),
		},
		{
			def: Definition{
				Name:        "lookup_bookings",
				Description: "Look up bookings for a hotel, optionally only stays checking in on or after a date.",
				InputSchema: ObjectSchema(map[string]any{
					"hotel_id": IntegerProperty("Numeric id of the hotel"),
					"since":    StringProperty("Optional minimum check-in date, YYYY-MM-DD"),
				}, "hotel_id"),
			},
			handler: lookupBookingsHandler(repo),
		},
	}

	for _, t := range defs {
		if err := r.Register(t.def, t.handler); err != nil {
			return err
		}
	}
	return nil
}

func saveRequestHandler(repo store.Repository, svc *search.Service) Handler {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var args struct {
			HotelID  int64  `json:"hotel_id"`
			Room     string `json:"room"`
			Details  string `json:"details"`
			Priority string `json:"priority"`
		}
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("parse arguments: %w", err)
		}
		switch args.Priority {
		case "":
			args.Priority = "normal"
		case "low", "normal", "urgent":
		default:
			return "", fmt.Errorf("unknown priority %q", args.Priority)
		}

		req := store.MaintenanceRequest{
			ID:        uuid.New().String(),
			HotelID:   args.HotelID,
			Room:      args.Room,
			Details:   args.Details,
			Priority:  args.Priority,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.SaveMaintenanceRequest(ctx, req); err != nil {
			return "", fmt.Errorf("save request: %w", err)
		}
		// Index the text so the new request is findable immediately.
		// Indexing failure is reported but the save already happened.
		if err := svc.Add(ctx, req.ID, req.Details, req); err != nil {
			return fmt.Sprintf(`{"id":%q,"saved":true,"indexed":false,"index_error":%q}`,
				req.ID, err.Error()), nil
		}
		return fmt.Sprintf(`{"id":%q,"saved":true,"indexed":true}`, req.ID), nil
	}
}

const searchMinScore = 0.6

func searchRequestsHandler(svc *search.Service) Handler {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var args struct {
			Query      string   `json:"query"`
			MaxResults int      `json:"max_results"`
			MinScore   *float64 `json:"min_score"`
		}
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("parse arguments: %w", err)
		}
		minScore := searchMinScore
		if args.MinScore != nil {
			minScore = *args.MinScore
		}

		vec, err := svc.Vectorize(ctx, args.Query)
		if err != nil {
			return "", fmt.Errorf("vectorize query: %w", err)
		}
		results, err := svc.Search(vec, args.MaxResults, minScore)
		if err != nil {
			return "", fmt.Errorf("search: %w", err)
		}

		out, err := json.Marshal(results)
		if err != nil {
			return "", fmt.Errorf("encode results: %w", err)
		}
		return string(out), nil
	}
}

func lookupBookingsHandler(repo store.Repository) Handler {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var args struct {
			HotelID int64  `json:"hotel_id"`
			Since   string `json:"since"`
		}
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("parse arguments: %w", err)
		}

		var (
			bookings []store.Booking
			err      error
		)
		if args.Since != "" {
			minDate, parseErr := time.Parse("2006-01-02", args.Since)
			if parseErr != nil {
				return "", fmt.Errorf("parse since date %q: %w", args.Since, parseErr)
			}
			bookings, err = repo.BookingsSince(ctx, args.HotelID, minDate)
		} else {
			bookings, err = repo.BookingsForHotel(ctx, args.HotelID)
		}
		if err != nil {
			return "", fmt.Errorf("look up bookings: %w", err)
		}

		out, err := json.Marshal(bookings)
		if err != nil {
			return "", fmt.Errorf("encode bookings: %w", err)
		}
		return string(out), nil
	}
}
