//go:build integration

package scantoken

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pledgeit/pkg/platform/sentinel"
	"pledgeit/pkg/testutil/containers"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	rc := containers.NewRedisContainer(t)
	store := NewRedis(rc.Client)
	ctx := context.Background()

	token := New()
	require.NoError(t, store.Put(ctx, token, 42, time.Minute))

	id, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = store.Resolve(ctx, "no-such-token")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	// Redis-native TTL: a short-lived token lapses on its own.
	short := New()
	require.NoError(t, store.Put(ctx, short, 7, 50*time.Millisecond))
	require.Eventually(t, func() bool {
		_, err := store.Resolve(ctx, short)
		return err != nil
	}, 2*time.Second, 25*time.Millisecond)
}
