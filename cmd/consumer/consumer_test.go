package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// fakeIndex implements GeoUpserter for tests
type fakeIndex struct {
	fail  int // number of times to fail before succeeding
	calls int
}

func (f *fakeIndex) Upsert(ctx context.Context, driverID int64, loc models.Coord, online bool) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("index fail")
	}
	return nil
}

func TestUpdateIndexWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeIndex{fail: 2}
	u := models.LocationUpdate{DriverID: 7, Lat: 1, Lng: 2}
	start := time.Now()
	if err := updateIndexWithRetry(context.Background(), f, u, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestUpdateIndexWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeIndex{fail: 5}
	u := models.LocationUpdate{DriverID: 7, Lat: 1, Lng: 2}
	if err := updateIndexWithRetry(context.Background(), f, u, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls)
	}
}
