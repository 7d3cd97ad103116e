package storage

import (
	"context"
	"errors"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
)

// ErrNotFound reports absence of a ride, user or location row. It is
// business data, not a fault: callers branch on it and translate it to
// the zero/absent result their contract requires.
var ErrNotFound = errors.New("not found")

// RideStore is the narrow persistence contract for ride records. The
// store is the single source of truth and the point of atomicity:
// every conditional transition is one compare-and-set statement, never
// a read followed by a write.
type RideStore interface {
	// CreateRide persists a new PENDING ride and returns its id.
	CreateRide(ctx context.Context, r *models.Ride) (int64, error)
	// GetRide returns the ride or ErrNotFound.
	GetRide(ctx context.Context, id int64) (*models.Ride, error)
	// AcceptRide atomically moves the ride PENDING -> ACCEPTED,
	// assigning the driver and the accepted stamp. It reports false
	// when the ride is missing or no longer PENDING; under concurrent
	// acceptance exactly one caller sees true.
	AcceptRide(ctx context.Context, driverID, rideID int64) (bool, error)
	// TransitionRide applies from -> to only if the current status is
	// exactly from, setting the timestamp owned by to (started_at for
	// IN_PROGRESS, completed_at for COMPLETED). False means the
	// precondition did not hold.
	TransitionRide(ctx context.Context, rideID int64, from, to models.RideStatus) (bool, error)
	// CancelRide moves any non-terminal ride to CANCELLED; false when
	// the ride is missing or already terminal.
	CancelRide(ctx context.Context, rideID int64) (bool, error)
	// PendingRidesIn returns PENDING rides whose pickup point lies in
	// the box. The box is a prefilter; callers refine by haversine.
	PendingRidesIn(ctx context.Context, box geo.Box) ([]models.Ride, error)
	// RidesForUser returns all rides where the user is rider or
	// driver, newest first.
	RidesForUser(ctx context.Context, userID int64) ([]models.Ride, error)
	// CurrentRideForUser returns the most recently created
	// non-terminal ride for the user, or ErrNotFound.
	CurrentRideForUser(ctx context.Context, userID int64) (*models.Ride, error)
}

// LocationStore is the persistence contract for last-known positions.
type LocationStore interface {
	// UpsertLocation writes the single row for loc.UserID as one
	// atomic insert-or-update. New rows start online. On existing rows
	// forceOnline (the driver tracking path) sets the flag and keeps
	// the stored address; the general path updates the address and
	// leaves the flag untouched.
	UpsertLocation(ctx context.Context, loc models.UserLocation, forceOnline bool) error
	// GetLocation returns the row or ErrNotFound.
	GetLocation(ctx context.Context, userID int64) (*models.UserLocation, error)
	// RemoveLocation deletes the row; false if none existed.
	RemoveLocation(ctx context.Context, userID int64) (bool, error)
	// OnlineDriversIn returns locations of online users with role
	// DRIVER inside the box, again as a prefilter for haversine.
	OnlineDriversIn(ctx context.Context, box geo.Box) ([]models.UserLocation, error)
}

// UserStore is the read-only slice of the users table the core needs.
type UserStore interface {
	// GetUserRole returns the user's role or ErrNotFound.
	GetUserRole(ctx context.Context, userID int64) (models.Role, error)
}

// Store is the full contract a backing implementation provides.
type Store interface {
	RideStore
	LocationStore
	UserStore
}
