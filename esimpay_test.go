package esimpay

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokio-labs/esimpay/clients"
	"github.com/kokio-labs/esimpay/logger"
	"github.com/kokio-labs/esimpay/metrics"
	"github.com/kokio-labs/esimpay/pricing"
	"github.com/kokio-labs/esimpay/provisioning"
	"github.com/kokio-labs/esimpay/sessionstore"
	"github.com/kokio-labs/esimpay/types"
)

var (
	facadeAdmin   = common.HexToAddress("0xE4d365a5a8fC0DCEE9E3C5985D7FcBab8B4A0fE1")
	facadeDevice  = common.HexToAddress("0x9876543210987654321098765432109876543210")
	facadeWallet  = common.HexToAddress("0x4444444444444444444444444444444444444444")
	facadeFactory = "0x1111111111111111111111111111111111111111"

	walletAddedSig = crypto.Keccak256Hash([]byte("ESIMWalletAdded(address,bool,address)"))
)

type staticPrice struct {
	price decimal.Decimal
}

func (s staticPrice) LatestPriceUSD(context.Context) (decimal.Decimal, error) {
	return s.price, nil
}

// newProvisioningFacade assembles an EsimPay over a fake chain so the
// facade's session handling can be exercised without RPC.
func newProvisioningFacade(t *testing.T) (*EsimPay, *clients.FakeBackend, *sessionstore.MemoryStore) {
	t.Helper()

	backend := clients.NewFakeBackend(types.NetworkBaseSepolia, facadeAdmin)
	converter := pricing.NewConverter(staticPrice{price: decimal.NewFromInt(3000)}, nil)
	store := sessionstore.NewMemoryStore()

	orchestrator, err := provisioning.NewOrchestrator(backend, converter, facadeFactory,
		provisioning.WithSaltSource(provisioning.FixedSaltSource{Value: big.NewInt(923)}),
		provisioning.WithSessionStore(store),
	)
	require.NoError(t, err)

	e := &EsimPay{
		config:       &types.Config{Vault: "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"},
		clients:      make(map[types.Network]*clients.EVMClient),
		converter:    converter,
		orchestrator: orchestrator,
		store:        store,
		log:          logger.NoopLogger{},
		rec:          metrics.NoopRecorder{},
	}
	return e, backend, store
}

func stubFullRun(backend *clients.FakeBackend) {
	backend.StubRead("deviceWalletInfoAdded", false)
	backend.StubRead("deviceUniqueIdentifier", "Device_UID_01")
	backend.StubRead("owner", big.NewInt(11))
	backend.StubRead("owner", big.NewInt(22))
	backend.StubRead("eSIMWalletAdmin", facadeAdmin)
	backend.StubRead("isValidESIMWallet", true)

	backend.AddLog(gethtypes.Log{
		Address: facadeDevice,
		Topics: []common.Hash{
			walletAddedSig,
			common.BytesToHash(facadeWallet.Bytes()),
			common.BytesToHash(facadeAdmin.Bytes()),
		},
		BlockNumber: backend.ReceiptBlock,
	})
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), &types.Config{
		Vault: "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestNew_RejectsMalformedVault(t *testing.T) {
	_, err := New(context.Background(), &types.Config{
		Networks: []types.ClientConfig{
			{Network: types.NetworkBase, RPCUrl: "https://mainnet.base.org"},
		},
		Vault: "vault",
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidAddress, types.ErrorCode(err))
}

func TestProvisionBundle_FreshSessionAfterTerminal(t *testing.T) {
	e, backend, store := newProvisioningFacade(t)
	ctx := context.Background()

	done := types.NewProvisioningSession(facadeDevice.Hex(), "Argentina_3GB_30days", decimal.NewFromInt(10))
	done.State = types.StateBundlePurchased
	require.NoError(t, store.Save(ctx, *done))

	stubFullRun(backend)

	session, err := e.ProvisionBundle(ctx, facadeDevice.Hex(), "Test_HashedUiccID_02", "Chile_5GB_30days", decimal.NewFromInt(15))
	require.NoError(t, err)

	// the completed session did not short-circuit the new purchase
	assert.Equal(t, "Chile_5GB_30days", session.BundleID)
	assert.Equal(t, types.StateBundlePurchased, session.State)
	assert.Len(t, backend.Writes("buyDataBundle"), 1)

	saved, err := store.Get(ctx, facadeDevice.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Chile_5GB_30days", saved.BundleID)
}

func TestProvisionBundle_RejectsMismatchedResume(t *testing.T) {
	e, backend, store := newProvisioningFacade(t)
	ctx := context.Background()

	inflight := types.NewProvisioningSession(facadeDevice.Hex(), "Argentina_3GB_30days", decimal.NewFromInt(10))
	inflight.State = types.StateRegistered
	require.NoError(t, store.Save(ctx, *inflight))

	_, err := e.ProvisionBundle(ctx, facadeDevice.Hex(), "Test_HashedUiccID_02", "Chile_5GB_30days", decimal.NewFromInt(15))
	require.Error(t, err)
	assert.Equal(t, types.ErrSessionMismatch, types.ErrorCode(err))
	assert.Empty(t, backend.WriteCalls)

	// a differing price alone is also a mismatch
	_, err = e.ProvisionBundle(ctx, facadeDevice.Hex(), "Test_HashedUiccID_02", "Argentina_3GB_30days", decimal.NewFromInt(12))
	require.Error(t, err)
	assert.Equal(t, types.ErrSessionMismatch, types.ErrorCode(err))
}

func TestProvisionBundle_ResumesMatchingSession(t *testing.T) {
	e, backend, store := newProvisioningFacade(t)
	ctx := context.Background()

	inflight := types.NewProvisioningSession(facadeDevice.Hex(), "Argentina_3GB_30days", decimal.NewFromInt(10))
	inflight.State = types.StateWalletDeployed
	inflight.ESIMWallet = facadeWallet.Hex()
	require.NoError(t, store.Save(ctx, *inflight))

	backend.StubRead("isValidESIMWallet", true)

	session, err := e.ProvisionBundle(ctx, facadeDevice.Hex(), "Test_HashedUiccID_02", "Argentina_3GB_30days", decimal.NewFromInt(10))
	require.NoError(t, err)

	assert.Equal(t, types.StateBundlePurchased, session.State)
	assert.Empty(t, backend.Writes("postCreateAccount"))
	assert.Empty(t, backend.Writes("deployESIMWallet"))
	assert.Len(t, backend.Writes("buyDataBundle"), 1)
}
