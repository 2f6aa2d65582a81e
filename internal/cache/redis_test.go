package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisActivity(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedis(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	activity := NewRedisActivity(client)
	ctx := context.Background()

	_, ok, err := activity.LastChange(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2024, 9, 2, 8, 0, 0, 123, time.UTC)
	require.NoError(t, activity.Touch(ctx, 3, at))

	got, ok, err := activity.LastChange(ctx, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, at, got)
	assert.Equal(t, activityTTL, mr.TTL(shareActivityKey(3)))
}

func TestRedisActivity_Errors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	activity := NewRedisActivity(client)
	ctx := context.Background()

	mock.ExpectGet(shareActivityKey(9)).SetErr(errors.New("connection reset"))
	_, _, err := activity.LastChange(ctx, 9)
	assert.Error(t, err)

	mock.ExpectGet(shareActivityKey(9)).RedisNil()
	_, ok, err := activity.LastChange(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), RedisOptions{Addr: addr})
	assert.Error(t, err)
}

func TestMemoryActivity_KeepsNewest(t *testing.T) {
	m := NewMemoryActivity()
	ctx := context.Background()
	t1 := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)

	require.NoError(t, m.Touch(ctx, 1, t1.Add(time.Minute)))
	require.NoError(t, m.Touch(ctx, 1, t1))

	got, ok, err := m.LastChange(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, t1.Add(time.Minute), got)
}
