// Package location tracks the last-known position and online flag per
// user. There is at most one live row per user; every write is a
// single atomic upsert at the store.
package location

import (
	"context"
	"errors"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/storage"
)

type Service struct {
	Locations storage.LocationStore
	Users     storage.UserStore
}

// UpdateUserLocation is the general "update my location" path, open to
// any role. It never forces the online flag on an existing row.
func (s *Service) UpdateUserLocation(ctx context.Context, userID int64, loc models.Coord, address string) (bool, error) {
	err := s.Locations.UpsertLocation(ctx, models.UserLocation{
		UserID:  userID,
		Loc:     loc,
		Address: address,
	}, false)
	if err != nil {
		return false, err
	}
	observability.LocationUpdates.Inc()
	return true, nil
}

// UpdateDriverLocation is the driver tracking path: it verifies the
// user really has the DRIVER role, then upserts with isOnline forced
// true. A missing user or a non-driver role reports false; an
// unmappable stored role surfaces as an error.
func (s *Service) UpdateDriverLocation(ctx context.Context, driverID int64, loc models.Coord) (bool, error) {
	role, err := s.Users.GetUserRole(ctx, driverID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if role != models.RoleDriver {
		return false, nil
	}
	if err := s.Locations.UpsertLocation(ctx, models.UserLocation{
		UserID: driverID,
		Loc:    loc,
	}, true); err != nil {
		return false, err
	}
	observability.LocationUpdates.Inc()
	return true, nil
}

// Get returns the current row, or storage.ErrNotFound for users that
// have never reported a location.
func (s *Service) Get(ctx context.Context, userID int64) (*models.UserLocation, error) {
	return s.Locations.GetLocation(ctx, userID)
}

// Remove deletes the user's row, used when a driver goes offline or a
// user logs out. False means there was nothing to remove.
func (s *Service) Remove(ctx context.Context, userID int64) (bool, error) {
	return s.Locations.RemoveLocation(ctx, userID)
}
