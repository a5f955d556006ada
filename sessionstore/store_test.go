package sessionstore

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokio-labs/esimpay/types"
)

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()

	got, err := store.Get(context.Background(), "0x9876543210987654321098765432109876543210")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session := types.NewProvisioningSession(
		"0x9876543210987654321098765432109876543210",
		"Argentina_3GB_30days",
		decimal.NewFromInt(10),
	)
	require.NoError(t, store.Save(ctx, *session))

	got, err := store.Get(ctx, session.DeviceWallet)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, session.BundleID, got.BundleID)
	assert.Equal(t, types.StateUnregistered, got.State)
	assert.True(t, got.BundlePriceUSD.Equal(decimal.NewFromInt(10)))
}

func TestMemoryStore_SaveIsolatesCaller(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session := types.NewProvisioningSession(
		"0x9876543210987654321098765432109876543210",
		"Argentina_3GB_30days",
		decimal.NewFromInt(10),
	)
	require.NoError(t, store.Save(ctx, *session))

	// mutating the live session must not leak into the stored copy
	require.NoError(t, session.Advance(types.StateRegistering))

	got, err := store.Get(ctx, session.DeviceWallet)
	require.NoError(t, err)
	assert.Equal(t, types.StateUnregistered, got.State)
}

func TestMemoryStore_OverwritesOnSave(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session := types.NewProvisioningSession(
		"0x9876543210987654321098765432109876543210",
		"Argentina_3GB_30days",
		decimal.NewFromInt(10),
	)
	require.NoError(t, store.Save(ctx, *session))

	require.NoError(t, session.Advance(types.StateRegistering))
	require.NoError(t, store.Save(ctx, *session))

	got, err := store.Get(ctx, session.DeviceWallet)
	require.NoError(t, err)
	assert.Equal(t, types.StateRegistering, got.State)
}
