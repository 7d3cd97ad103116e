package match

import (
	"context"
	"errors"
	"testing"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/ride"
	"github.com/example/ride-dispatch/internal/storage"
)

var (
	newYork = models.Coord{Lat: 40.7128, Lng: -74.0060}
	midtown = models.Coord{Lat: 40.7589, Lng: -73.9851}
	chicago = models.Coord{Lat: 41.8781, Lng: -87.6298}
)

func seedPendingRide(t *testing.T, store *storage.MemoryStore, pickup models.Coord) int64 {
	t.Helper()
	rides := &ride.Service{Store: store}
	id, err := rides.Request(context.Background(), 1, pickup, midtown, "", "")
	if err != nil {
		t.Fatalf("seed ride: %v", err)
	}
	return id
}

func TestPendingRidesNearSameSpot(t *testing.T) {
	store := storage.NewMemoryStore()
	id := seedPendingRide(t, store, newYork)
	e := &Engine{Rides: store, Drivers: store}

	// driver standing on the pickup point, 1km radius
	got, err := e.PendingRidesNear(context.Background(), newYork, 1)
	if err != nil {
		t.Fatalf("PendingRidesNear: %v", err)
	}
	if len(got) != 1 || got[0].ID != id {
		t.Fatalf("expected ride %d, got %+v", id, got)
	}
}

func TestPendingRidesNearFarAway(t *testing.T) {
	store := storage.NewMemoryStore()
	seedPendingRide(t, store, newYork)
	e := &Engine{Rides: store, Drivers: store}

	// driver in Chicago, 10km radius: NYC pickup must not appear
	got, err := e.PendingRidesNear(context.Background(), chicago, 10)
	if err != nil {
		t.Fatalf("PendingRidesNear: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no rides, got %+v", got)
	}
}

func TestPendingRidesExcludesNonPending(t *testing.T) {
	store := storage.NewMemoryStore()
	id := seedPendingRide(t, store, newYork)
	rides := &ride.Service{Store: store}
	if ok, _ := rides.Accept(context.Background(), 2, id); !ok {
		t.Fatal("accept failed")
	}
	e := &Engine{Rides: store, Drivers: store}
	got, err := e.PendingRidesNear(context.Background(), newYork, 5)
	if err != nil {
		t.Fatalf("PendingRidesNear: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("accepted ride still listed: %+v", got)
	}
}

func TestPendingRidesRadiusBoundary(t *testing.T) {
	store := storage.NewMemoryStore()
	// ~5.3km north of the query point
	seedPendingRide(t, store, models.Coord{Lat: newYork.Lat + 0.048, Lng: newYork.Lng})
	e := &Engine{Rides: store, Drivers: store}
	ctx := context.Background()

	if got, _ := e.PendingRidesNear(ctx, newYork, 5); len(got) != 0 {
		t.Fatalf("ride outside 5km returned: %+v", got)
	}
	if got, _ := e.PendingRidesNear(ctx, newYork, 6); len(got) != 1 {
		t.Fatalf("ride inside 6km missing")
	}
}

func TestPendingRidesNearAcrossDateLine(t *testing.T) {
	store := storage.NewMemoryStore()
	// pickup just west of the 180th meridian, query just east of it:
	// ~11km apart on the globe despite the 359.9 degree longitude gap
	id := seedPendingRide(t, store, models.Coord{Lat: 0, Lng: -179.95})
	e := &Engine{Rides: store, Drivers: store}

	got, err := e.PendingRidesNear(context.Background(), models.Coord{Lat: 0, Lng: 179.95}, 50)
	if err != nil {
		t.Fatalf("PendingRidesNear: %v", err)
	}
	if len(got) != 1 || got[0].ID != id {
		t.Fatalf("expected ride %d across the date line, got %+v", id, got)
	}
}

func seedDriver(store *storage.MemoryStore, id int64, role models.Role, loc models.Coord, online bool) {
	store.AddUser(models.User{ID: id, Username: "u", Role: role})
	store.UpsertLocation(context.Background(), models.UserLocation{UserID: id, Loc: loc}, true)
	if !online {
		store.SetOnline(id, false)
	}
}

func TestNearbyDriversFiltersRoleOnlineAndRadius(t *testing.T) {
	store := storage.NewMemoryStore()
	// 2 in range, 3 wrong role, 4 out of radius, 5 offline, 6 ~0.8km north
	seedDriver(store, 2, models.RoleDriver, newYork, true)
	seedDriver(store, 3, models.RoleRider, newYork, true)
	seedDriver(store, 4, models.RoleDriver, chicago, true)
	seedDriver(store, 5, models.RoleDriver, newYork, false)
	seedDriver(store, 6, models.RoleDriver, models.Coord{Lat: 40.72, Lng: -74.0060}, true)

	e := &Engine{Rides: store, Drivers: store}
	got, err := e.NearbyDrivers(context.Background(), newYork, 5)
	if err != nil {
		t.Fatalf("NearbyDrivers: %v", err)
	}
	ids := map[int64]bool{}
	for _, d := range got {
		ids[d.DriverID] = true
		if d.DistanceKm > 5 {
			t.Fatalf("driver %d beyond radius: %f", d.DriverID, d.DistanceKm)
		}
	}
	if len(got) != 2 || !ids[2] || !ids[6] {
		t.Fatalf("expected drivers 2 and 6, got %+v", got)
	}
}

func TestNearbyDriversAcrossDateLine(t *testing.T) {
	store := storage.NewMemoryStore()
	seedDriver(store, 2, models.RoleDriver, models.Coord{Lat: 0, Lng: -179.95}, true)
	e := &Engine{Rides: store, Drivers: store}

	got, err := e.NearbyDrivers(context.Background(), models.Coord{Lat: 0, Lng: 179.95}, 50)
	if err != nil {
		t.Fatalf("NearbyDrivers: %v", err)
	}
	if len(got) != 1 || got[0].DriverID != 2 {
		t.Fatalf("driver across the date line missing: %+v", got)
	}
	if got[0].DistanceKm > 50 {
		t.Fatalf("reported distance %.2f exceeds radius", got[0].DistanceKm)
	}
}

type fakeIndex struct {
	ids []int64
	err error
}

func (f *fakeIndex) NearbyIDs(ctx context.Context, center models.Coord, radiusKm float64) ([]int64, error) {
	return f.ids, f.err
}

func TestNearbyDriversIndexNarrows(t *testing.T) {
	store := storage.NewMemoryStore()
	seedDriver(store, 2, models.RoleDriver, newYork, true)
	seedDriver(store, 6, models.RoleDriver, models.Coord{Lat: 40.72, Lng: -74.0060}, true)

	e := &Engine{Rides: store, Drivers: store, Index: &fakeIndex{ids: []int64{6}}}
	got, err := e.NearbyDrivers(context.Background(), newYork, 5)
	if err != nil {
		t.Fatalf("NearbyDrivers: %v", err)
	}
	if len(got) != 1 || got[0].DriverID != 6 {
		t.Fatalf("expected only indexed driver 6, got %+v", got)
	}
}

func TestNearbyDriversIndexErrorFallsBack(t *testing.T) {
	store := storage.NewMemoryStore()
	seedDriver(store, 2, models.RoleDriver, newYork, true)

	e := &Engine{Rides: store, Drivers: store, Index: &fakeIndex{err: errors.New("redis down")}}
	got, err := e.NearbyDrivers(context.Background(), newYork, 5)
	if err != nil {
		t.Fatalf("NearbyDrivers: %v", err)
	}
	if len(got) != 1 || got[0].DriverID != 2 {
		t.Fatalf("index failure must fall back to the store scan, got %+v", got)
	}
}
