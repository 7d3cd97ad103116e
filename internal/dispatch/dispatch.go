// Package dispatch is the single entry point collaborators talk to:
// it validates inputs, composes the state machine, matching engine and
// location service, and maps business-rule failures onto the zero and
// false results of the external contract. Only store faults surface as
// errors.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/example/ride-dispatch/internal/location"
	"github.com/example/ride-dispatch/internal/match"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/ride"
	"github.com/example/ride-dispatch/internal/storage"
)

// Validation failures, rejected before any store round trip.
var (
	ErrInvalidCoordinate = errors.New("coordinate out of range")
	ErrInvalidRadius     = errors.New("radius must be positive")
)

// Escrow is the optional payment hook: a flat deposit is held when a
// ride is accepted, captured on completion and released on
// cancellation. The facade never computes amounts.
type Escrow interface {
	Hold(ctx context.Context, rideID int64) (intentID string, err error)
	Capture(ctx context.Context, intentID string) error
	Release(ctx context.Context, intentID string) error
}

// GeoIndex is the optional driver position index kept warm by the
// location write path, mirroring what the ingest consumer does.
type GeoIndex interface {
	Upsert(ctx context.Context, driverID int64, loc models.Coord, online bool) error
	Remove(ctx context.Context, driverID int64) error
}

type Facade struct {
	Rides     *ride.Service
	Match     *match.Engine
	Locations *location.Service
	Payments  Escrow   // optional
	Index     GeoIndex // optional
	Logger    *slog.Logger

	mu      sync.Mutex
	intents map[int64]string // rideID -> payment intent, best-effort
}

func (f *Facade) log() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// RequestRide creates a PENDING ride and returns its id. Addresses are
// optional display hints; coordinates are the contract.
func (f *Facade) RequestRide(ctx context.Context, riderID int64, pickup, dest models.Coord, pickupAddr, destAddr string) (int64, error) {
	if !pickup.Valid() || !dest.Valid() {
		return 0, ErrInvalidCoordinate
	}
	id, err := f.Rides.Request(ctx, riderID, pickup, dest, pickupAddr, destAddr)
	if err != nil {
		return 0, err
	}
	f.log().Info("ride requested", "ride_id", id, "rider_id", riderID)
	return id, nil
}

// PendingRidesNear lists PENDING rides with pickup within radiusKm of
// the driver's position. No matches is an empty list, not a failure.
func (f *Facade) PendingRidesNear(ctx context.Context, at models.Coord, radiusKm float64) ([]models.Ride, error) {
	if !at.Valid() {
		return nil, ErrInvalidCoordinate
	}
	if radiusKm <= 0 {
		return nil, ErrInvalidRadius
	}
	return f.Match.PendingRidesNear(ctx, at, radiusKm)
}

// AcceptRide returns the ride id when this driver won the ride and 0
// when the ride was missing or no longer PENDING.
func (f *Facade) AcceptRide(ctx context.Context, driverID, rideID int64) (int64, error) {
	ok, err := f.Rides.Accept(ctx, driverID, rideID)
	if err != nil {
		return 0, err
	}
	if !ok {
		f.log().Info("accept lost", "ride_id", rideID, "driver_id", driverID)
		return 0, nil
	}
	f.log().Info("ride accepted", "ride_id", rideID, "driver_id", driverID)
	f.holdDeposit(ctx, rideID)
	return rideID, nil
}

func (f *Facade) StartDriveToPickup(ctx context.Context, rideID int64) (bool, error) {
	return f.Rides.StartDriveToPickup(ctx, rideID)
}

func (f *Facade) ArrivedAtPickup(ctx context.Context, rideID int64) (bool, error) {
	return f.Rides.ArrivedAtPickup(ctx, rideID)
}

func (f *Facade) StartRideToDestination(ctx context.Context, rideID int64) (bool, error) {
	return f.Rides.StartRideToDestination(ctx, rideID)
}

func (f *Facade) CompleteRide(ctx context.Context, rideID int64) (bool, error) {
	ok, err := f.Rides.Complete(ctx, rideID)
	if err != nil || !ok {
		return ok, err
	}
	f.log().Info("ride completed", "ride_id", rideID)
	f.settleDeposit(ctx, rideID, true)
	return true, nil
}

// CancelRide cancels any non-terminal ride; false when the ride is
// missing or already terminal.
func (f *Facade) CancelRide(ctx context.Context, rideID int64) (bool, error) {
	ok, err := f.Rides.Cancel(ctx, rideID)
	if err != nil || !ok {
		return ok, err
	}
	f.log().Info("ride cancelled", "ride_id", rideID)
	f.settleDeposit(ctx, rideID, false)
	return true, nil
}

// GetCurrentRide returns the user's most recent non-terminal ride, or
// nil when there is none.
func (f *Facade) GetCurrentRide(ctx context.Context, userID int64) (*models.Ride, error) {
	r, err := f.Rides.Current(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return r, err
}

// GetRideHistory returns all rides for the user, newest first.
func (f *Facade) GetRideHistory(ctx context.Context, userID int64) ([]models.Ride, error) {
	return f.Rides.History(ctx, userID)
}

// GetRideStatus returns the ride's status, or the empty string when
// the ride does not exist. An unmappable stored status is an error.
func (f *Facade) GetRideStatus(ctx context.Context, rideID int64) (models.RideStatus, error) {
	st, err := f.Rides.Status(ctx, rideID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	return st, err
}

// UpdateDriverLocation is the driver tracking path: role-checked, and
// the write forces the online flag. False when the user is unknown or
// not a driver.
func (f *Facade) UpdateDriverLocation(ctx context.Context, driverID int64, loc models.Coord) (bool, error) {
	if !loc.Valid() {
		return false, ErrInvalidCoordinate
	}
	ok, err := f.Locations.UpdateDriverLocation(ctx, driverID, loc)
	if err != nil || !ok {
		return ok, err
	}
	if f.Index != nil {
		if ierr := f.Index.Upsert(ctx, driverID, loc, true); ierr != nil {
			f.log().Warn("geo index upsert failed", "driver_id", driverID, "error", ierr)
		}
	}
	return true, nil
}

// UpdateUserLocation is the any-role path; it does not force the
// online flag on an existing row.
func (f *Facade) UpdateUserLocation(ctx context.Context, userID int64, loc models.Coord, address string) (bool, error) {
	if !loc.Valid() {
		return false, ErrInvalidCoordinate
	}
	return f.Locations.UpdateUserLocation(ctx, userID, loc, address)
}

// GetUserLocation returns the user's last-known location, or nil when
// the user has never reported one.
func (f *Facade) GetUserLocation(ctx context.Context, userID int64) (*models.UserLocation, error) {
	loc, err := f.Locations.Get(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return loc, err
}

// RemoveUserLocation drops the user's location row (offline/logout)
// and evicts any index entry for it.
func (f *Facade) RemoveUserLocation(ctx context.Context, userID int64) (bool, error) {
	removed, err := f.Locations.Remove(ctx, userID)
	if err != nil || !removed {
		return removed, err
	}
	if f.Index != nil {
		if ierr := f.Index.Remove(ctx, userID); ierr != nil {
			f.log().Warn("geo index remove failed", "user_id", userID, "error", ierr)
		}
	}
	return true, nil
}

// NearbyDrivers lists online drivers within radiusKm of the rider.
func (f *Facade) NearbyDrivers(ctx context.Context, at models.Coord, radiusKm float64) ([]models.NearbyDriver, error) {
	if !at.Valid() {
		return nil, ErrInvalidCoordinate
	}
	if radiusKm <= 0 {
		return nil, ErrInvalidRadius
	}
	return f.Match.NearbyDrivers(ctx, at, radiusKm)
}

// Deposit handling is best-effort: a payment hiccup is logged, never
// allowed to fail or roll back a ride transition the store already
// committed.
func (f *Facade) holdDeposit(ctx context.Context, rideID int64) {
	if f.Payments == nil {
		return
	}
	intent, err := f.Payments.Hold(ctx, rideID)
	if err != nil {
		f.log().Warn("deposit hold failed", "ride_id", rideID, "error", err)
		return
	}
	f.mu.Lock()
	if f.intents == nil {
		f.intents = make(map[int64]string)
	}
	f.intents[rideID] = intent
	f.mu.Unlock()
}

func (f *Facade) settleDeposit(ctx context.Context, rideID int64, capture bool) {
	if f.Payments == nil {
		return
	}
	f.mu.Lock()
	intent, ok := f.intents[rideID]
	delete(f.intents, rideID)
	f.mu.Unlock()
	if !ok {
		return
	}
	var err error
	if capture {
		err = f.Payments.Capture(ctx, intent)
	} else {
		err = f.Payments.Release(ctx, intent)
	}
	if err != nil {
		f.log().Warn("deposit settle failed", "ride_id", rideID, "capture", capture, "error", err)
	}
}
