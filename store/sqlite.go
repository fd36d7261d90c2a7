package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository on an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at dbPath and bootstraps
// the schema. WAL mode keeps concurrent readers cheap.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS hotels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		city TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hotel_id INTEGER NOT NULL REFERENCES hotels(id),
		guest_name TEXT NOT NULL,
		room TEXT NOT NULL,
		check_in INTEGER NOT NULL,
		check_out INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bookings_hotel ON bookings(hotel_id, check_in);

	CREATE TABLE IF NOT EXISTS maintenance_requests (
		id TEXT PRIMARY KEY,
		hotel_id INTEGER NOT NULL,
		room TEXT NOT NULL,
		details TEXT NOT NULL,
		priority TEXT NOT NULL DEFAULT 'normal',
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Hotels(ctx context.Context) ([]Hotel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, city FROM hotels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query hotels: %w", err)
	}
	defer rows.Close()

	var hotels []Hotel
	for rows.Next() {
		var h Hotel
		if err := rows.Scan(&h.ID, &h.Name, &h.City); err != nil {
			return nil, fmt.Errorf("scan hotel row: %w", err)
		}
		hotels = append(hotels, h)
	}
	return hotels, rows.Err()
}

func (s *SQLiteStore) AddHotel(ctx context.Context, h Hotel) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO hotels (name, city) VALUES (?, ?)`, h.Name, h.City)
	if err != nil {
		return 0, fmt.Errorf("insert hotel: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) BookingsForHotel(ctx context.Context, hotelID int64) ([]Booking, error) {
	return s.queryBookings(ctx,
		`SELECT id, hotel_id, guest_name, room, check_in, check_out
		 FROM bookings WHERE hotel_id = ? ORDER BY check_in`, hotelID)
}

func (s *SQLiteStore) BookingsSince(ctx context.Context, hotelID int64, minDate time.Time) ([]Booking, error) {
	return s.queryBookings(ctx,
		`SELECT id, hotel_id, guest_name, room, check_in, check_out
		 FROM bookings WHERE hotel_id = ? AND check_in >= ? ORDER BY check_in`,
		hotelID, minDate.Unix())
}

func (s *SQLiteStore) queryBookings(ctx context.Context, query string, args ...any) ([]Booking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		var in, out int64
		if err := rows.Scan(&b.ID, &b.HotelID, &b.GuestName, &b.Room, &in, &out); err != nil {
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		b.CheckIn = time.Unix(in, 0).UTC()
		b.CheckOut = time.Unix(out, 0).UTC()
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (s *SQLiteStore) AddBooking(ctx context.Context, b Booking) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings (hotel_id, guest_name, room, check_in, check_out)
		 VALUES (?, ?, ?, ?, ?)`,
		b.HotelID, b.GuestName, b.Room, b.CheckIn.Unix(), b.CheckOut.Unix())
	if err != nil {
		return 0, fmt.Errorf("insert booking: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) SaveMaintenanceRequest(ctx context.Context, req MaintenanceRequest) error {
	priority := req.Priority
	if priority == "" {
		priority = "normal"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO maintenance_requests (id, hotel_id, room, details, priority, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		req.ID, req.HotelID, req.Room, req.Details, priority, req.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert maintenance request: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MaintenanceRequests(ctx context.Context) ([]MaintenanceRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hotel_id, room, details, priority, created_at
		 FROM maintenance_requests ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query maintenance requests: %w", err)
	}
	defer rows.Close()

	var reqs []MaintenanceRequest
	for rows.Next() {
		var r MaintenanceRequest
		var created int64
		if err := rows.Scan(&r.ID, &r.HotelID, &r.Room, &r.Details, &r.Priority, &created); err != nil {
			return nil, fmt.Errorf("scan maintenance request row: %w", err)
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
