package models

import (
	"errors"
	"testing"
)

func TestParseRideStatusKnownValues(t *testing.T) {
	for _, s := range []RideStatus{
		StatusPending, StatusAccepted, StatusDriverEnRoute,
		StatusArrived, StatusInProgress, StatusCompleted, StatusCancelled,
	} {
		got, err := ParseRideStatus(string(s))
		if err != nil {
			t.Fatalf("ParseRideStatus(%q): %v", s, err)
		}
		if got != s {
			t.Fatalf("ParseRideStatus(%q) = %q", s, got)
		}
	}
}

func TestParseRideStatusRejectsUnknown(t *testing.T) {
	// A corrupt stored value must surface, never default to PENDING.
	got, err := ParseRideStatus("MATCHED")
	if err == nil {
		t.Fatalf("expected error, got %q", got)
	}
	var mapErr *MappingError
	if !errors.As(err, &mapErr) {
		t.Fatalf("expected MappingError, got %T", err)
	}
	if got == StatusPending {
		t.Fatalf("unknown status must not map to PENDING")
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []RideStatus{StatusCompleted, StatusCancelled} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []RideStatus{StatusPending, StatusAccepted, StatusDriverEnRoute, StatusArrived, StatusInProgress} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestParseRole(t *testing.T) {
	if _, err := ParseRole("DRIVER"); err != nil {
		t.Fatalf("DRIVER should parse: %v", err)
	}
	if _, err := ParseRole("driver"); err == nil {
		t.Fatalf("role parsing is case sensitive by contract")
	}
}

func TestCoordValid(t *testing.T) {
	cases := []struct {
		c  Coord
		ok bool
	}{
		{Coord{Lat: 40.7, Lng: -74.0}, true},
		{Coord{Lat: 90, Lng: 180}, true},
		{Coord{Lat: 91, Lng: 0}, false},
		{Coord{Lat: 0, Lng: -181}, false},
	}
	for _, tc := range cases {
		if tc.c.Valid() != tc.ok {
			t.Fatalf("Valid(%+v) = %v, want %v", tc.c, !tc.ok, tc.ok)
		}
	}
}
