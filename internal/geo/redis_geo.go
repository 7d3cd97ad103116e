package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-dispatch/internal/models"
)

// RedisIndex mirrors driver positions into a Redis GEO set so the
// nearby-drivers hot path can prefilter candidates without scanning
// the store. The store stays the source of truth; index hits are
// always refined against it before use.
type RedisIndex struct {
	client *redis.Client
	key    string
}

func NewRedisIndex(addr, password, key string) *RedisIndex {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisIndex{client: c, key: key}
}

// NewRedisIndexWithClient wires an existing client, mainly for the
// ingest consumer which shares one connection across concerns.
func NewRedisIndexWithClient(c *redis.Client, key string) *RedisIndex {
	return &RedisIndex{client: c, key: key}
}

func (r *RedisIndex) Upsert(ctx context.Context, driverID int64, loc models.Coord, online bool) error {
	member := strconv.FormatInt(driverID, 10)
	if _, err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Longitude: loc.Lng,
		Latitude:  loc.Lat,
		Name:      member,
	}).Result(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(member), map[string]interface{}{
		"online":  strconv.FormatBool(online),
		"updated": time.Now().UTC().Format(time.RFC3339),
	}).Err()
}

func (r *RedisIndex) Remove(ctx context.Context, driverID int64) error {
	member := strconv.FormatInt(driverID, 10)
	if err := r.client.ZRem(ctx, r.key, member).Err(); err != nil {
		return err
	}
	return r.client.Del(ctx, metaKey(member)).Err()
}

// NearbyIDs returns ids of indexed drivers within radiusKm, nearest
// first. Offline drivers are filtered out via the metadata hash.
func (r *RedisIndex) NearbyIDs(ctx context.Context, center models.Coord, radiusKm float64) ([]int64, error) {
	res, err := r.client.GeoRadius(ctx, r.key, center.Lng, center.Lat, &redis.GeoRadiusQuery{
		Radius: radiusKm,
		Unit:   "km",
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(res))
	for _, g := range res {
		id, err := strconv.ParseInt(g.Name, 10, 64)
		if err != nil {
			continue
		}
		if m, err := r.client.HGetAll(ctx, metaKey(g.Name)).Result(); err == nil {
			if m["online"] == "false" {
				continue
			}
		}
		out = append(out, id)
	}
	return out, nil
}

func (r *RedisIndex) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisIndex) Close() error { return r.client.Close() }

func metaKey(member string) string { return "driver:meta:" + member }
