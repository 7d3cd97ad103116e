package storage

import (
	"context"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
)

// MemoryStore implements Store with the same compare-and-set semantics
// as the Postgres backend. It serves tests and the no-DSN local
// fallback; the mutex gives it the atomicity the SQL statements give
// the real store.
type MemoryStore struct {
	mu        sync.Mutex
	nextID    int64
	rides     map[int64]*models.Ride
	locations map[int64]*models.UserLocation
	users     map[int64]*models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		rides:     make(map[int64]*models.Ride),
		locations: make(map[int64]*models.UserLocation),
		users:     make(map[int64]*models.User),
	}
}

// AddUser seeds a user row; the core only reads users.
func (m *MemoryStore) AddUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := u
	m.users[u.ID] = &cp
}

// SetOnline flips the online flag directly, a seeding hook for tests
// that need an offline row without going through the write paths.
func (m *MemoryStore) SetOnline(userID int64, online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loc, ok := m.locations[userID]; ok {
		loc.Online = online
	}
}

func (m *MemoryStore) CreateRide(_ context.Context, r *models.Ride) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	cp := *r
	cp.ID = m.nextID
	m.nextID++
	cp.DriverID = 0
	cp.Status = models.StatusPending
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.rides[cp.ID] = &cp
	return cp.ID, nil
}

func (m *MemoryStore) GetRide(_ context.Context, id int64) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) AcceptRide(_ context.Context, driverID, rideID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok || r.Status != models.StatusPending {
		return false, nil
	}
	now := time.Now()
	r.DriverID = driverID
	r.Status = models.StatusAccepted
	r.AcceptedAt = now
	r.UpdatedAt = now
	return true, nil
}

func (m *MemoryStore) TransitionRide(_ context.Context, rideID int64, from, to models.RideStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok || r.Status != from {
		return false, nil
	}
	now := time.Now()
	r.Status = to
	r.UpdatedAt = now
	switch to {
	case models.StatusInProgress:
		r.StartedAt = now
	case models.StatusCompleted:
		r.CompletedAt = now
	}
	return true, nil
}

func (m *MemoryStore) CancelRide(_ context.Context, rideID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok || r.Status.Terminal() {
		return false, nil
	}
	r.Status = models.StatusCancelled
	r.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) PendingRidesIn(_ context.Context, box geo.Box) ([]models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ride
	for _, r := range m.rides {
		if r.Status == models.StatusPending && box.Contains(r.Pickup) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *MemoryStore) RidesForUser(_ context.Context, userID int64) ([]models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ride
	for _, r := range m.rides {
		if r.RiderID == userID || r.DriverID == userID {
			out = append(out, *r)
		}
	}
	// newest first, matching the SQL ORDER BY created_at DESC
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) ||
				(out[j].CreatedAt.Equal(out[i].CreatedAt) && out[j].ID > out[i].ID) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) CurrentRideForUser(ctx context.Context, userID int64) (*models.Ride, error) {
	rides, err := m.RidesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, r := range rides {
		if !r.Status.Terminal() {
			cp := r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpsertLocation(_ context.Context, loc models.UserLocation, forceOnline bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if existing, ok := m.locations[loc.UserID]; ok {
		existing.Loc = loc.Loc
		existing.LastUpdated = now
		if forceOnline {
			existing.Online = true
		} else {
			existing.Address = loc.Address
		}
		return nil
	}
	m.locations[loc.UserID] = &models.UserLocation{
		UserID:      loc.UserID,
		Loc:         loc.Loc,
		Address:     loc.Address,
		Online:      true,
		LastUpdated: now,
	}
	return nil
}

func (m *MemoryStore) GetLocation(_ context.Context, userID int64) (*models.UserLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.locations[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *loc
	return &cp, nil
}

func (m *MemoryStore) RemoveLocation(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.locations[userID]; !ok {
		return false, nil
	}
	delete(m.locations, userID)
	return true, nil
}

func (m *MemoryStore) OnlineDriversIn(_ context.Context, box geo.Box) ([]models.UserLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserLocation
	for _, loc := range m.locations {
		if !loc.Online || !box.Contains(loc.Loc) {
			continue
		}
		u, ok := m.users[loc.UserID]
		if !ok || u.Role != models.RoleDriver {
			continue
		}
		out = append(out, *loc)
	}
	return out, nil
}

func (m *MemoryStore) GetUserRole(_ context.Context, userID int64) (models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return "", ErrNotFound
	}
	return u.Role, nil
}
