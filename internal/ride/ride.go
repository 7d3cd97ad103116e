// Package ride owns the ride lifecycle: a state machine whose every
// transition is executed as a single conditional update at the store,
// so concurrent actors serialize on the record's current status.
package ride

import (
	"context"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/storage"
)

type Service struct {
	Store storage.RideStore
}

// Request creates a new PENDING ride and returns its store-assigned
// id. The only failure mode is the store itself.
func (s *Service) Request(ctx context.Context, riderID int64, pickup, dest models.Coord, pickupAddr, destAddr string) (int64, error) {
	id, err := s.Store.CreateRide(ctx, &models.Ride{
		RiderID:    riderID,
		Pickup:     pickup,
		PickupAddr: pickupAddr,
		Dest:       dest,
		DestAddr:   destAddr,
	})
	if err != nil {
		return 0, err
	}
	observability.RidesRequested.Inc()
	return id, nil
}

// Accept attempts the PENDING -> ACCEPTED transition for driverID.
// The store's compare-and-set guarantees that with N racing drivers
// exactly one sees ok=true; the rest lose without overwriting the
// winner.
func (s *Service) Accept(ctx context.Context, driverID, rideID int64) (bool, error) {
	ok, err := s.Store.AcceptRide(ctx, driverID, rideID)
	if err != nil {
		return false, err
	}
	if ok {
		observability.RidesAccepted.Inc()
	} else {
		observability.AcceptConflicts.Inc()
	}
	return ok, nil
}

// StartDriveToPickup moves ACCEPTED -> DRIVER_EN_ROUTE.
func (s *Service) StartDriveToPickup(ctx context.Context, rideID int64) (bool, error) {
	return s.Store.TransitionRide(ctx, rideID, models.StatusAccepted, models.StatusDriverEnRoute)
}

// ArrivedAtPickup moves DRIVER_EN_ROUTE -> ARRIVED.
func (s *Service) ArrivedAtPickup(ctx context.Context, rideID int64) (bool, error) {
	return s.Store.TransitionRide(ctx, rideID, models.StatusDriverEnRoute, models.StatusArrived)
}

// StartRideToDestination moves ARRIVED -> IN_PROGRESS and stamps
// started_at. There is no catch-up: calling it before the driver has
// arrived fails without touching the record.
func (s *Service) StartRideToDestination(ctx context.Context, rideID int64) (bool, error) {
	return s.Store.TransitionRide(ctx, rideID, models.StatusArrived, models.StatusInProgress)
}

// Complete moves IN_PROGRESS -> COMPLETED and stamps completed_at.
func (s *Service) Complete(ctx context.Context, rideID int64) (bool, error) {
	ok, err := s.Store.TransitionRide(ctx, rideID, models.StatusInProgress, models.StatusCompleted)
	if err != nil {
		return false, err
	}
	if ok {
		observability.RidesCompleted.Inc()
	}
	return ok, nil
}

// Cancel moves any non-terminal ride to CANCELLED. Rides already
// COMPLETED or CANCELLED are left untouched and report false. No
// actor check is made: cancellation is permissive by ride id.
func (s *Service) Cancel(ctx context.Context, rideID int64) (bool, error) {
	ok, err := s.Store.CancelRide(ctx, rideID)
	if err != nil {
		return false, err
	}
	if ok {
		observability.RidesCancelled.Inc()
	}
	return ok, nil
}

// Status returns the ride's current status, or storage.ErrNotFound.
func (s *Service) Status(ctx context.Context, rideID int64) (models.RideStatus, error) {
	r, err := s.Store.GetRide(ctx, rideID)
	if err != nil {
		return "", err
	}
	return r.Status, nil
}

// Current returns the most recently created non-terminal ride where
// the user is rider or driver, or storage.ErrNotFound.
func (s *Service) Current(ctx context.Context, userID int64) (*models.Ride, error) {
	return s.Store.CurrentRideForUser(ctx, userID)
}

// History returns every ride for the user, newest first.
func (s *Service) History(ctx context.Context, userID int64) ([]models.Ride, error) {
	return s.Store.RidesForUser(ctx, userID)
}
