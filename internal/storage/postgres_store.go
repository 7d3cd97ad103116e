package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing handle, mainly for wiring
// from cmd binaries that also run migrations.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Close() error { return p.db.Close() }

const rideColumns = `id, rider_id, driver_id, pickup_latitude, pickup_longitude, pickup_address,
	destination_latitude, destination_longitude, destination_address,
	status, created_at, updated_at, accepted_at, started_at, completed_at`

func (p *PostgresStore) CreateRide(ctx context.Context, r *models.Ride) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO rides (rider_id, pickup_latitude, pickup_longitude, pickup_address,
			destination_latitude, destination_longitude, destination_address,
			status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 'PENDING', NOW(), NOW())
		 RETURNING id`,
		r.RiderID, r.Pickup.Lat, r.Pickup.Lng, r.PickupAddr,
		r.Dest.Lat, r.Dest.Lng, r.DestAddr).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create ride: %w", err)
	}
	return id, nil
}

func (p *PostgresStore) GetRide(ctx context.Context, id int64) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	r, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (p *PostgresStore) AcceptRide(ctx context.Context, driverID, rideID int64) (bool, error) {
	// The WHERE status='PENDING' clause is the compare-and-set that
	// makes acceptance exactly-once under racing drivers.
	res, err := p.db.ExecContext(ctx,
		`UPDATE rides SET driver_id = $1, status = 'ACCEPTED',
			accepted_at = NOW(), updated_at = NOW()
		 WHERE id = $2 AND status = 'PENDING'`,
		driverID, rideID)
	if err != nil {
		return false, fmt.Errorf("accept ride: %w", err)
	}
	return affected(res)
}

func (p *PostgresStore) TransitionRide(ctx context.Context, rideID int64, from, to models.RideStatus) (bool, error) {
	var stamp string
	switch to {
	case models.StatusInProgress:
		stamp = ", started_at = NOW()"
	case models.StatusCompleted:
		stamp = ", completed_at = NOW()"
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE rides SET status = $1, updated_at = NOW()`+stamp+
			` WHERE id = $2 AND status = $3`,
		string(to), rideID, string(from))
	if err != nil {
		return false, fmt.Errorf("transition ride to %s: %w", to, err)
	}
	return affected(res)
}

func (p *PostgresStore) CancelRide(ctx context.Context, rideID int64) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE rides SET status = 'CANCELLED', updated_at = NOW()
		 WHERE id = $1 AND status NOT IN ('COMPLETED', 'CANCELLED')`,
		rideID)
	if err != nil {
		return false, fmt.Errorf("cancel ride: %w", err)
	}
	return affected(res)
}

func (p *PostgresStore) PendingRidesIn(ctx context.Context, box geo.Box) ([]models.Ride, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+rideColumns+` FROM rides
		 WHERE status = 'PENDING'
		   AND pickup_latitude BETWEEN $1 AND $2
		   AND `+lngCondition(box, "pickup_longitude"),
		box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("pending rides: %w", err)
	}
	defer rows.Close()
	return collectRides(rows)
}

func (p *PostgresStore) RidesForUser(ctx context.Context, userID int64) ([]models.Ride, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+rideColumns+` FROM rides
		 WHERE rider_id = $1 OR driver_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("rides for user: %w", err)
	}
	defer rows.Close()
	return collectRides(rows)
}

func (p *PostgresStore) CurrentRideForUser(ctx context.Context, userID int64) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+rideColumns+` FROM rides
		 WHERE (rider_id = $1 OR driver_id = $1)
		   AND status NOT IN ('COMPLETED', 'CANCELLED')
		 ORDER BY created_at DESC LIMIT 1`, userID)
	r, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (p *PostgresStore) UpsertLocation(ctx context.Context, loc models.UserLocation, forceOnline bool) error {
	// One statement either way. The driver tracking path flips
	// is_online and keeps the stored address; the general path updates
	// the address and leaves the flag alone.
	q := `INSERT INTO user_locations (user_id, latitude, longitude, address, is_online, last_updated)
	      VALUES ($1, $2, $3, $4, TRUE, NOW())
	      ON CONFLICT (user_id) DO UPDATE SET
	        latitude = EXCLUDED.latitude,
	        longitude = EXCLUDED.longitude,
	        last_updated = EXCLUDED.last_updated`
	if forceOnline {
		q += `, is_online = TRUE`
	} else {
		q += `, address = EXCLUDED.address`
	}
	if _, err := p.db.ExecContext(ctx, q, loc.UserID, loc.Loc.Lat, loc.Loc.Lng, loc.Address); err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetLocation(ctx context.Context, userID int64) (*models.UserLocation, error) {
	var loc models.UserLocation
	err := p.db.QueryRowContext(ctx,
		`SELECT user_id, latitude, longitude, COALESCE(address, ''), is_online, last_updated
		 FROM user_locations WHERE user_id = $1`, userID).
		Scan(&loc.UserID, &loc.Loc.Lat, &loc.Loc.Lng, &loc.Address, &loc.Online, &loc.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &loc, nil
}

func (p *PostgresStore) RemoveLocation(ctx context.Context, userID int64) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM user_locations WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("remove location: %w", err)
	}
	return affected(res)
}

func (p *PostgresStore) OnlineDriversIn(ctx context.Context, box geo.Box) ([]models.UserLocation, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT ul.user_id, ul.latitude, ul.longitude, COALESCE(ul.address, ''), ul.is_online, ul.last_updated
		 FROM user_locations ul
		 JOIN users u ON ul.user_id = u.id
		 WHERE u.role = 'DRIVER' AND ul.is_online = TRUE
		   AND ul.latitude BETWEEN $1 AND $2
		   AND `+lngCondition(box, "ul.longitude"),
		box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("online drivers: %w", err)
	}
	defer rows.Close()
	var out []models.UserLocation
	for rows.Next() {
		var loc models.UserLocation
		if err := rows.Scan(&loc.UserID, &loc.Loc.Lat, &loc.Loc.Lng, &loc.Address, &loc.Online, &loc.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan driver location: %w", err)
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetUserRole(ctx context.Context, userID int64) (models.Role, error) {
	var raw string
	err := p.db.QueryRowContext(ctx,
		`SELECT role FROM users WHERE id = $1`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get user role: %w", err)
	}
	return models.ParseRole(raw)
}

// lngCondition renders the box's longitude span against $3/$4. A box
// that crosses the antimeridian covers two ranges, not one.
func lngCondition(box geo.Box, col string) string {
	if box.Wraps() {
		return "(" + col + " >= $3 OR " + col + " <= $4)"
	}
	return col + " BETWEEN $3 AND $4"
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*models.Ride, error) {
	var (
		r           models.Ride
		driverID    sql.NullInt64
		pickupAddr  sql.NullString
		destAddr    sql.NullString
		rawStatus   string
		acceptedAt  sql.NullTime
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.RiderID, &driverID,
		&r.Pickup.Lat, &r.Pickup.Lng, &pickupAddr,
		&r.Dest.Lat, &r.Dest.Lng, &destAddr,
		&rawStatus, &r.CreatedAt, &r.UpdatedAt,
		&acceptedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	status, err := models.ParseRideStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	r.Status = status
	r.DriverID = driverID.Int64
	r.PickupAddr = pickupAddr.String
	r.DestAddr = destAddr.String
	r.AcceptedAt = acceptedAt.Time
	r.StartedAt = startedAt.Time
	r.CompletedAt = completedAt.Time
	return &r, nil
}

func collectRides(rows *sql.Rows) ([]models.Ride, error) {
	var out []models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
