// Package store provides the persistence boundary for hotels,
// bookings, and maintenance requests.
package store

import (
	"context"
	"time"
)

// Hotel is one property in the chain.
type Hotel struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
}

// Booking is one guest stay at a hotel.
type Booking struct {
	ID        int64     `json:"id"`
	HotelID   int64     `json:"hotel_id"`
	GuestName string    `json:"guest_name"`
	Room      string    `json:"room"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
}

// MaintenanceRequest is one reported issue. Priority is one of "low",
// "normal", or "urgent".
type MaintenanceRequest struct {
	ID        string    `json:"id"`
	HotelID   int64     `json:"hotel_id"`
	Room      string    `json:"room"`
	Details   string    `json:"details"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository is the persistence interface consumed by the tool handlers
// and the HTTP layer. Implementations own engine choice and schema.
type Repository interface {
	Hotels(ctx context.Context) ([]Hotel, error)
	AddHotel(ctx context.Context, h Hotel) (int64, error)

	BookingsForHotel(ctx context.Context, hotelID int64) ([]Booking, error)
	BookingsSince(ctx context.Context, hotelID int64, minDate time.Time) ([]Booking, error)
	AddBooking(ctx context.Context, b Booking) (int64, error)

	SaveMaintenanceRequest(ctx context.Context, req MaintenanceRequest) error
	MaintenanceRequests(ctx context.Context) ([]MaintenanceRequest, error)

	Ping(ctx context.Context) error
	Close() error
}
