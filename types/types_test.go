package types

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetwork_ChainIDs(t *testing.T) {
	assert.Equal(t, int64(1), NetworkMainnet.ChainID())
	assert.Equal(t, int64(8453), NetworkBase.ChainID())
	assert.Equal(t, int64(84532), NetworkBaseSepolia.ChainID())
	assert.Equal(t, int64(0), Network("dogecoin").ChainID())

	assert.True(t, NetworkBaseSepolia.IsTestnet())
	assert.False(t, NetworkBase.IsTestnet())
	assert.False(t, Network("dogecoin").IsSupported())
}

func TestTokenRegistry_Resolve(t *testing.T) {
	asset, ok := DefaultTokenRegistry.Resolve(NetworkBase, "usdc")
	require.True(t, ok)
	assert.Equal(t, "USDC", asset.Symbol)
	assert.Equal(t, int32(6), asset.Decimals)
	assert.False(t, asset.IsNative())

	_, ok = DefaultTokenRegistry.Resolve(NetworkBase, "DAI")
	assert.False(t, ok)

	_, ok = DefaultTokenRegistry.Resolve(NetworkBaseSepolia, "USDC")
	assert.False(t, ok)
}

func TestTokenRegistry_Validate(t *testing.T) {
	require.NoError(t, DefaultTokenRegistry.Validate())

	bad := TokenRegistry{
		NetworkBase: {
			"usdc": {Symbol: "USDC", Decimals: 6, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"},
		},
	}
	assert.Error(t, bad.Validate(), "lower-case symbol must be rejected")

	bad = TokenRegistry{
		NetworkBase: {
			"USDC": {Symbol: "USDC", Decimals: 0, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"},
		},
	}
	assert.Error(t, bad.Validate(), "zero decimals must be rejected")

	bad = TokenRegistry{
		Network("dogecoin"): {},
	}
	assert.Error(t, bad.Validate(), "unknown network must be rejected")
}

func TestTransferQuery_Validate(t *testing.T) {
	valid := TransferQuery{
		TxHash:  "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Network: NetworkBase,
		Token:   "USDC",
		Vault:   "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
	}
	require.NoError(t, valid.Validate())

	q := valid
	q.TxHash = "0x1234"
	assert.Error(t, q.Validate())

	q = valid
	q.Token = ""
	assert.Error(t, q.Validate())

	q = valid
	q.Vault = ""
	assert.Error(t, q.Validate())
}

func TestProvisioningSession_AdvanceForwardOnly(t *testing.T) {
	session := NewProvisioningSession(
		"0x9876543210987654321098765432109876543210",
		"Argentina_3GB_30days",
		decimal.NewFromInt(10),
	)
	assert.Equal(t, StateUnregistered, session.State)
	assert.False(t, session.State.Terminal())

	require.NoError(t, session.Advance(StateRegistering))
	require.NoError(t, session.Advance(StateRegistered))

	// regressions and self-transitions are rejected
	assert.Error(t, session.Advance(StateRegistering))
	assert.Error(t, session.Advance(StateRegistered))
	assert.Equal(t, StateRegistered, session.State)

	// skipping forward is allowed; resumed sessions do it routinely
	require.NoError(t, session.Advance(StateBundlePurchased))
	assert.True(t, session.State.Terminal())

	assert.Error(t, session.Advance(SessionState("LIMBO")))
}

func TestProvisioningSession_Require(t *testing.T) {
	session := NewProvisioningSession(
		"0x9876543210987654321098765432109876543210",
		"Argentina_3GB_30days",
		decimal.NewFromInt(10),
	)
	assert.NoError(t, session.Require(StateUnregistered))
	assert.Error(t, session.Require(StateRegistered))
}

func TestSessionState_Ordinal(t *testing.T) {
	assert.Equal(t, 0, StateUnregistered.Ordinal())
	assert.Equal(t, 8, StateBundlePurchased.Ordinal())
	assert.Equal(t, -1, SessionState("LIMBO").Ordinal())
}

func TestNormalizeAddress(t *testing.T) {
	addr, err := NormalizeAddress("0x742d35cc6634c0532925a3b844bc9e7595f0beb0")
	require.NoError(t, err)
	assert.Equal(t, "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", addr.Hex())

	_, err = NormalizeAddress("vault")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidAddress, ErrorCode(err))
}

func TestErrorCode(t *testing.T) {
	err := &EsimPayError{Code: ErrUnsupportedToken, Message: "nope"}
	assert.Equal(t, ErrUnsupportedToken, ErrorCode(err))
	assert.Equal(t, "nope", err.Error())
	assert.Equal(t, "", ErrorCode(assert.AnError))
}

func TestErrorCode_WrappedError(t *testing.T) {
	inner := &EsimPayError{Code: ErrRPCFailure, Message: "dial refused"}
	wrapped := fmt.Errorf("failed to create client for base: %w", inner)
	assert.Equal(t, ErrRPCFailure, ErrorCode(wrapped))
}
