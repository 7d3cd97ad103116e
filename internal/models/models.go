package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies on the globe.
func (c Coord) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Ride is the shared record shape between the dispatch core, the store
// and the gateway. DriverID is zero until the ride is accepted; the
// AcceptedAt/StartedAt/CompletedAt stamps are zero until the transition
// that reaches the corresponding state sets them.
type Ride struct {
	ID          int64      `json:"id"`
	RiderID     int64      `json:"rider_id"`
	DriverID    int64      `json:"driver_id,omitempty"`
	Pickup      Coord      `json:"pickup"`
	PickupAddr  string     `json:"pickup_address,omitempty"`
	Dest        Coord      `json:"destination"`
	DestAddr    string     `json:"destination_address,omitempty"`
	Status      RideStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	AcceptedAt  time.Time  `json:"accepted_at,omitzero"`
	StartedAt   time.Time  `json:"started_at,omitzero"`
	CompletedAt time.Time  `json:"completed_at,omitzero"`
}

// UserLocation is the single live position row per user.
type UserLocation struct {
	UserID      int64     `json:"user_id"`
	Loc         Coord     `json:"loc"`
	Address     string    `json:"address,omitempty"`
	Online      bool      `json:"online"`
	LastUpdated time.Time `json:"last_updated"`
}

// User is consumed read-only by the core for role checks.
type User struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Phone         string `json:"phone,omitempty"`
	Role          Role   `json:"role"`
	CarType       string `json:"car_type,omitempty"`
	LicenseNumber string `json:"license_number,omitempty"`
}

// NearbyDriver is a matching result: an online driver with its
// last-known position and great-circle distance from the query point.
type NearbyDriver struct {
	DriverID    int64     `json:"driver_id"`
	Loc         Coord     `json:"loc"`
	Address     string    `json:"address,omitempty"`
	DistanceKm  float64   `json:"distance_km"`
	LastUpdated time.Time `json:"last_updated"`
}

// LocationUpdate is the wire shape for the driver location ingest
// pipeline (websocket frames and Kafka messages share it).
type LocationUpdate struct {
	DriverID int64   `json:"driver_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Address  string  `json:"address,omitempty"`
}
