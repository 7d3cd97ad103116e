package models

import "fmt"

// RideStatus is the closed set of lifecycle states a ride moves
// through. The only legal forward path is PENDING -> ACCEPTED ->
// DRIVER_EN_ROUTE -> ARRIVED -> IN_PROGRESS -> COMPLETED; CANCELLED is
// reachable from every non-terminal state.
type RideStatus string

const (
	StatusPending       RideStatus = "PENDING"
	StatusAccepted      RideStatus = "ACCEPTED"
	StatusDriverEnRoute RideStatus = "DRIVER_EN_ROUTE"
	StatusArrived       RideStatus = "ARRIVED"
	StatusInProgress    RideStatus = "IN_PROGRESS"
	StatusCompleted     RideStatus = "COMPLETED"
	StatusCancelled     RideStatus = "CANCELLED"
)

// Terminal reports whether no further transition is legal.
func (s RideStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// MappingError reports a stored value that does not map onto a known
// enum. It is distinct from not-found: the row exists but its contents
// are not trustworthy, and the core refuses to guess a default.
type MappingError struct {
	Field string
	Value string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("unmappable %s value %q", e.Field, e.Value)
}

// ParseRideStatus maps a stored status string onto the enum. Unknown
// values surface as a MappingError, never as a silent PENDING.
func ParseRideStatus(s string) (RideStatus, error) {
	switch RideStatus(s) {
	case StatusPending, StatusAccepted, StatusDriverEnRoute,
		StatusArrived, StatusInProgress, StatusCompleted, StatusCancelled:
		return RideStatus(s), nil
	}
	return "", &MappingError{Field: "ride status", Value: s}
}

// Role is the closed set of user roles.
type Role string

const (
	RoleRider  Role = "RIDER"
	RoleDriver Role = "DRIVER"
	RoleAdmin  Role = "ADMIN"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleRider, RoleDriver, RoleAdmin:
		return Role(s), nil
	}
	return "", &MappingError{Field: "role", Value: s}
}
