package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnreadStore_StartsAtZero(t *testing.T) {
	req := require.New(t)
	store := NewUnreadStore(newTestDB(t))

	count, err := store.Get("shop-1", "cust-1")

	req.NoError(err)
	req.Zero(count)
}

func TestUnreadStore_IncrementAndReset(t *testing.T) {
	req := require.New(t)
	store := NewUnreadStore(newTestDB(t))

	// When two customer messages arrive
	req.NoError(store.Increment("shop-1", "cust-1", 1))
	req.NoError(store.Increment("shop-1", "cust-1", 1))

	count, err := store.Get("shop-1", "cust-1")
	req.NoError(err)
	req.Equal(2, count)

	// When staff replies, the counter goes back to zero
	req.NoError(store.Reset("shop-1", "cust-1"))

	count, err = store.Get("shop-1", "cust-1")
	req.NoError(err)
	req.Zero(count)
}

func TestUnreadStore_ResetIsIdempotent(t *testing.T) {
	req := require.New(t)
	store := NewUnreadStore(newTestDB(t))

	// Resetting a counter that was never incremented stays at zero,
	// it never goes negative
	req.NoError(store.Reset("shop-1", "cust-1"))
	req.NoError(store.Reset("shop-1", "cust-1"))

	count, err := store.Get("shop-1", "cust-1")
	req.NoError(err)
	req.Zero(count)
}

func TestUnreadStore_IgnoresNonPositiveIncrements(t *testing.T) {
	req := require.New(t)
	store := NewUnreadStore(newTestDB(t))

	req.NoError(store.Increment("shop-1", "cust-1", 0))
	req.NoError(store.Increment("shop-1", "cust-1", -3))

	count, err := store.Get("shop-1", "cust-1")
	req.NoError(err)
	req.Zero(count)
}

func TestUnreadStore_CountersAreScopedPerSession(t *testing.T) {
	req := require.New(t)
	store := NewUnreadStore(newTestDB(t))

	req.NoError(store.Increment("shop-1", "cust-1", 1))
	req.NoError(store.Increment("shop-1", "cust-2", 1))
	req.NoError(store.Increment("shop-2", "cust-1", 1))

	// Resetting one session leaves the others alone
	req.NoError(store.Reset("shop-1", "cust-1"))

	count, err := store.Get("shop-1", "cust-2")
	req.NoError(err)
	req.Equal(1, count)

	count, err = store.Get("shop-2", "cust-1")
	req.NoError(err)
	req.Equal(1, count)
}
