package cache

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/questboard-api/internal/platform/scorer"
)

// closedAddr returns an address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, Options{Addr: closedAddr(t), TTL: time.Minute})
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestRankingCache_ErrorsWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        closedAddr(t),
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := New(client, time.Minute)
	defer func() { _ = c.Close() }()

	ctx := context.Background()

	_, hit, err := c.Get(ctx, "abc")
	assert.Error(t, err)
	assert.False(t, hit)

	err = c.Set(ctx, "abc", []scorer.Record{{Complexity: 1}})
	assert.ErrorContains(t, err, "failed to cache ranking")
}

func TestNew_PanicsOnNilClient(t *testing.T) {
	assert.Panics(t, func() { New(nil, time.Minute) })
}
