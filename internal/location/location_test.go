package location

import (
	"context"
	"errors"
	"testing"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/storage"
)

func newService() (*Service, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return &Service{Locations: store, Users: store}, store
}

func TestUpdateAndGetRoundTrip(t *testing.T) {
	s, store := newService()
	store.AddUser(models.User{ID: 7, Username: "mg", Role: models.RoleRider})
	ctx := context.Background()

	ok, err := s.UpdateUserLocation(ctx, 7, models.Coord{Lat: 16.8661, Lng: 96.1951}, "")
	if err != nil || !ok {
		t.Fatalf("UpdateUserLocation = %v, %v", ok, err)
	}
	loc, err := s.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loc.Loc.Lat != 16.8661 || loc.Loc.Lng != 96.1951 {
		t.Fatalf("round trip lost coordinates: %+v", loc)
	}
	if !loc.Online {
		t.Fatalf("fresh row should be online")
	}
	if loc.LastUpdated.IsZero() {
		t.Fatalf("last_updated not stamped")
	}
}

func TestGeneralPathPreservesOfflineFlag(t *testing.T) {
	s, store := newService()
	store.AddUser(models.User{ID: 7, Username: "mg", Role: models.RoleDriver})
	ctx := context.Background()

	s.UpdateUserLocation(ctx, 7, models.Coord{Lat: 1, Lng: 1}, "")
	store.SetOnline(7, false)

	// general path must not resurrect the online flag
	s.UpdateUserLocation(ctx, 7, models.Coord{Lat: 2, Lng: 2}, "")
	loc, _ := s.Get(ctx, 7)
	if loc.Online {
		t.Fatalf("general path forced online")
	}
	if loc.Loc.Lat != 2 {
		t.Fatalf("position not updated: %+v", loc)
	}

	// the driver tracking path does force it
	if ok, err := s.UpdateDriverLocation(ctx, 7, models.Coord{Lat: 3, Lng: 3}); err != nil || !ok {
		t.Fatalf("UpdateDriverLocation = %v, %v", ok, err)
	}
	loc, _ = s.Get(ctx, 7)
	if !loc.Online {
		t.Fatalf("driver path must set online")
	}
}

func TestDriverPathPreservesAddress(t *testing.T) {
	s, store := newService()
	store.AddUser(models.User{ID: 7, Username: "mg", Role: models.RoleDriver})
	ctx := context.Background()

	s.UpdateUserLocation(ctx, 7, models.Coord{Lat: 1, Lng: 1}, "Sule Square")
	// tracking pings carry no address and must not erase the stored one
	s.UpdateDriverLocation(ctx, 7, models.Coord{Lat: 2, Lng: 2})
	loc, _ := s.Get(ctx, 7)
	if loc.Address != "Sule Square" {
		t.Fatalf("tracking ping erased the address: %+v", loc)
	}
	if loc.Loc.Lat != 2 || loc.Loc.Lng != 2 {
		t.Fatalf("position not updated: %+v", loc)
	}
}

func TestDriverPathRejectsNonDrivers(t *testing.T) {
	s, store := newService()
	store.AddUser(models.User{ID: 1, Username: "r", Role: models.RoleRider})
	ctx := context.Background()

	if ok, err := s.UpdateDriverLocation(ctx, 1, models.Coord{Lat: 1, Lng: 1}); err != nil || ok {
		t.Fatalf("rider accepted on driver path: %v, %v", ok, err)
	}
	// unknown user: same false-without-error contract
	if ok, err := s.UpdateDriverLocation(ctx, 42, models.Coord{Lat: 1, Lng: 1}); err != nil || ok {
		t.Fatalf("unknown user accepted: %v, %v", ok, err)
	}
	if _, err := s.Get(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("rejected write left a row behind")
	}
}

func TestSingleRowPerUser(t *testing.T) {
	s, store := newService()
	store.AddUser(models.User{ID: 5, Username: "d", Role: models.RoleDriver})
	ctx := context.Background()

	s.UpdateDriverLocation(ctx, 5, models.Coord{Lat: 1, Lng: 1})
	s.UpdateDriverLocation(ctx, 5, models.Coord{Lat: 2, Lng: 2})
	loc, err := s.Get(ctx, 5)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loc.Loc.Lat != 2 || loc.Loc.Lng != 2 {
		t.Fatalf("second write did not overwrite: %+v", loc)
	}
}

func TestRemove(t *testing.T) {
	s, store := newService()
	store.AddUser(models.User{ID: 5, Username: "d", Role: models.RoleDriver})
	ctx := context.Background()

	s.UpdateDriverLocation(ctx, 5, models.Coord{Lat: 1, Lng: 1})
	if ok, err := s.Remove(ctx, 5); err != nil || !ok {
		t.Fatalf("Remove = %v, %v", ok, err)
	}
	if _, err := s.Get(ctx, 5); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("row survived removal")
	}
	if ok, _ := s.Remove(ctx, 5); ok {
		t.Fatalf("second remove should report false")
	}
}
