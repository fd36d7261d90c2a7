package store

import (
	"context"
	"time"
)

// SeedDemoData loads a small set of hotels and bookings for local
// development. It is a no-op when hotels already exist.
func SeedDemoData(ctx context.Context, repo Repository) error {
	existing, err := repo.Hotels(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	hotels := []Hotel{
		{ID: 1, Name: "Lumenstay Harbourfront", City: "Seattle"},
		{ID: 2, Name: "Lumenstay Grand Palms", City: "Miami"},
		{ID: 3, Name: "Lumenstay Alpine Lodge", City: "Denver"},
		{ID: 4, Name: "Lumenstay City Central", City: "Chicago"},
	}
	for _, h := range hotels {
		if _, err := repo.AddHotel(ctx, h); err != nil {
			return err
		}
	}

	day := func(offset int) time.Time {
		return time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, offset)
	}
	bookings := []Booking{
		{ID: 1, HotelID: 1, GuestName: "Amari Rivera", Room: "204", CheckIn: day(1), CheckOut: day(4)},
		{ID: 2, HotelID: 1, GuestName: "Taylor Chen", Room: "310", CheckIn: day(3), CheckOut: day(6)},
		{ID: 3, HotelID: 2, GuestName: "Jordan Ellis", Room: "117", CheckIn: day(-2), CheckOut: day(2)},
		{ID: 4, HotelID: 2, GuestName: "Priya Natarajan", Room: "502", CheckIn: day(7), CheckOut: day(12)},
		{ID: 5, HotelID: 3, GuestName: "Sam Okafor", Room: "021", CheckIn: day(0), CheckOut: day(5)},
	}
	for _, b := range bookings {
		if _, err := repo.AddBooking(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
