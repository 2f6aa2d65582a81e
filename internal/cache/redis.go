package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis connects to redis and checks the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		Protocol: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

const activityTTL = 24 * time.Hour

func shareActivityKey(shareID uint) string {
	return "share:activity:" + strconv.FormatUint(uint64(shareID), 10)
}

var _ Activity = (*RedisActivity)(nil)

// RedisActivity keeps the last change time of each share in redis so every
// api process sees the same marker.
type RedisActivity struct {
	client redis.Cmdable
}

func NewRedisActivity(client redis.Cmdable) *RedisActivity {
	return &RedisActivity{client: client}
}

func (r *RedisActivity) Touch(ctx context.Context, shareID uint, at time.Time) error {
	return r.client.Set(ctx, shareActivityKey(shareID), at.UTC().UnixNano(), activityTTL).Err()
}

func (r *RedisActivity) LastChange(ctx context.Context, shareID uint) (time.Time, bool, error) {
	nanos, err := r.client.Get(ctx, shareActivityKey(shareID)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(0, nanos).UTC(), true, nil
}
