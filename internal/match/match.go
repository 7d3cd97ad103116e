// Package match answers the two proximity queries of the dispatch
// engine: pending rides near a driver and online drivers near a rider.
// Both are snapshot reads with no isolation guarantee; callers commit
// to a match through the conditional accept, never through these
// results alone.
package match

import (
	"context"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
)

// RideSource is the slice of the store the engine needs for ride
// candidates. The box argument is a planar prefilter; the engine
// always refines with the haversine metric.
type RideSource interface {
	PendingRidesIn(ctx context.Context, box geo.Box) ([]models.Ride, error)
}

// DriverSource yields online driver positions inside a box.
type DriverSource interface {
	OnlineDriversIn(ctx context.Context, box geo.Box) ([]models.UserLocation, error)
}

// Prefilter narrows driver candidates before the store snapshot is
// consulted, e.g. a Redis GEO index maintained by the ingest consumer.
type Prefilter interface {
	NearbyIDs(ctx context.Context, center models.Coord, radiusKm float64) ([]int64, error)
}

type Engine struct {
	Rides   RideSource
	Drivers DriverSource
	Index   Prefilter // optional
}

// PendingRidesNear returns every PENDING ride whose pickup point lies
// within radiusKm of the given position by great-circle distance.
// Result order is unspecified.
func (e *Engine) PendingRidesNear(ctx context.Context, at models.Coord, radiusKm float64) ([]models.Ride, error) {
	cands, err := e.Rides.PendingRidesIn(ctx, geo.BoundingBox(at, radiusKm))
	if err != nil {
		return nil, err
	}
	out := make([]models.Ride, 0, len(cands))
	for _, r := range cands {
		if geo.HaversineKm(at, r.Pickup) <= radiusKm {
			out = append(out, r)
		}
	}
	return out, nil
}

// NearbyDrivers returns online drivers within radiusKm of the given
// position, with their haversine distance attached. When an index is
// wired it narrows the candidate set, but every surviving candidate is
// validated against the store snapshot: an index entry can never
// invent a driver the store does not know. Index lag falls inside the
// same no-isolation window these queries already disclaim.
func (e *Engine) NearbyDrivers(ctx context.Context, at models.Coord, radiusKm float64) ([]models.NearbyDriver, error) {
	cands, err := e.Drivers.OnlineDriversIn(ctx, geo.BoundingBox(at, radiusKm))
	if err != nil {
		return nil, err
	}

	var indexed map[int64]bool
	if e.Index != nil {
		if ids, err := e.Index.NearbyIDs(ctx, at, radiusKm); err == nil {
			indexed = make(map[int64]bool, len(ids))
			for _, id := range ids {
				indexed[id] = true
			}
		}
		// index errors fall through to the plain store scan
	}

	out := make([]models.NearbyDriver, 0, len(cands))
	for _, loc := range cands {
		if indexed != nil && !indexed[loc.UserID] {
			continue
		}
		d := geo.HaversineKm(at, loc.Loc)
		if d > radiusKm {
			continue
		}
		out = append(out, models.NearbyDriver{
			DriverID:    loc.UserID,
			Loc:         loc.Loc,
			Address:     loc.Address,
			DistanceKm:  d,
			LastUpdated: loc.LastUpdated,
		})
	}
	return out, nil
}
