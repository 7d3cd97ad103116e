package geo

import (
	"testing"

	"github.com/example/ride-dispatch/internal/models"
)

var (
	newYork = models.Coord{Lat: 40.7128, Lng: -74.0060}
	chicago = models.Coord{Lat: 41.8781, Lng: -87.6298}
)

func TestHaversineZero(t *testing.T) {
	if d := HaversineKm(newYork, newYork); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	d := HaversineKm(newYork, chicago)
	// great-circle NYC to Chicago is ~1145km
	if d < 1130 || d > 1160 {
		t.Fatalf("unexpected NYC-Chicago distance: %f km", d)
	}
}

func TestHaversineSymmetry(t *testing.T) {
	if a, b := HaversineKm(newYork, chicago), HaversineKm(chicago, newYork); a != b {
		t.Fatalf("asymmetric distance: %f vs %f", a, b)
	}
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	box := BoundingBox(newYork, 10)
	pts := []models.Coord{
		newYork,
		{Lat: newYork.Lat + 0.05, Lng: newYork.Lng},
		{Lat: newYork.Lat, Lng: newYork.Lng - 0.1},
	}
	for _, p := range pts {
		if HaversineKm(newYork, p) <= 10 && !box.Contains(p) {
			t.Fatalf("box excludes in-radius point %+v", p)
		}
	}
	if box.Contains(chicago) {
		t.Fatalf("10km box around NYC should not contain Chicago")
	}
}

func TestBoundingBoxWrapsAtDateLine(t *testing.T) {
	east := models.Coord{Lat: 0, Lng: 179.95}
	west := models.Coord{Lat: 0, Lng: -179.95}

	box := BoundingBox(east, 50)
	if !box.Wraps() {
		t.Fatalf("box at the date line should wrap: %+v", box)
	}
	// ~11km apart across the 180th meridian
	if d := HaversineKm(east, west); !box.Contains(west) {
		t.Fatalf("point %.2fkm away excluded by %+v", d, box)
	}
	if box.Contains(models.Coord{Lat: 0, Lng: 0}) {
		t.Fatalf("wrapped box must not cover the whole globe: %+v", box)
	}

	// mirror image, approaching from the west side
	if !BoundingBox(west, 50).Contains(east) {
		t.Fatalf("westward box excludes its eastern neighbour")
	}
}

func TestBoundingBoxNearPole(t *testing.T) {
	box := BoundingBox(models.Coord{Lat: 89.95, Lng: 10}, 50)
	if box.MaxLat > 90 {
		t.Fatalf("latitude not clamped: %f", box.MaxLat)
	}
	// near the pole the box must widen to the full longitude range
	if box.MinLng != -180 || box.MaxLng != 180 {
		t.Fatalf("expected full longitude range, got [%f, %f]", box.MinLng, box.MaxLng)
	}
}
