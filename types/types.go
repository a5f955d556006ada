// Package types holds the shared data model of the esimpay library: the
// network and token registries, transfer-verification inputs and outputs,
// the provisioning session state machine and the error taxonomy.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// NativeDecimals is the smallest-unit scale of the native asset (wei).
const NativeDecimals int32 = 18

// DefaultConfirmations is the block depth a submitted mutation must reach
// before its effects, including emitted events, are trusted.
const DefaultConfirmations uint64 = 2

// AssetDescriptor describes one transferable asset on one chain. Address is
// empty for the chain's native asset.
type AssetDescriptor struct {
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
	Address  string `json:"address,omitempty"`
}

// IsNative reports whether the descriptor refers to the chain's base currency.
func (a AssetDescriptor) IsNative() bool {
	return a.Address == ""
}

// TokenRegistry enumerates the fungible tokens accepted per network.
type TokenRegistry map[Network]map[string]AssetDescriptor

// DefaultTokenRegistry covers the stablecoins the vault accepts today.
var DefaultTokenRegistry = TokenRegistry{
	NetworkMainnet: {
		"USDC": {Symbol: "USDC", Decimals: 6, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
		"USDT": {Symbol: "USDT", Decimals: 6, Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7"},
		"DAI":  {Symbol: "DAI", Decimals: 18, Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F"},
	},
	NetworkArbitrum: {
		"USDC": {Symbol: "USDC", Decimals: 6, Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"},
	},
	NetworkBase: {
		"USDC": {Symbol: "USDC", Decimals: 6, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"},
	},
	NetworkOptimism: {
		"USDC": {Symbol: "USDC", Decimals: 6, Address: "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"},
	},
}

// Resolve looks up the descriptor for (network, symbol). The symbol is
// matched case-insensitively.
func (r TokenRegistry) Resolve(network Network, symbol string) (AssetDescriptor, bool) {
	tokens, ok := r[network]
	if !ok {
		return AssetDescriptor{}, false
	}
	asset, ok := tokens[strings.ToUpper(symbol)]
	return asset, ok
}

// Validate checks every registry entry at startup so unsupported lookups
// fail before any chain traffic happens.
func (r TokenRegistry) Validate() error {
	for network, tokens := range r {
		if !network.IsSupported() {
			return fmt.Errorf("registry references unknown network %q", network)
		}
		for symbol, asset := range tokens {
			if symbol != strings.ToUpper(symbol) {
				return fmt.Errorf("registry symbol %q on %s must be upper case", symbol, network)
			}
			if asset.Decimals <= 0 {
				return fmt.Errorf("registry entry %s on %s has invalid decimals %d", symbol, network, asset.Decimals)
			}
			if !common.IsHexAddress(asset.Address) {
				return fmt.Errorf("registry entry %s on %s has invalid address %q", symbol, network, asset.Address)
			}
		}
	}
	return nil
}

// TransferQuery asks whether a transaction delivered an asset to the vault.
type TransferQuery struct {
	// TxHash is the transaction reference to inspect.
	TxHash string `json:"txHash" validate:"required"`

	// Network selects the chain the transaction lives on.
	Network Network `json:"network" validate:"required"`

	// Token is the asset symbol, either the native symbol ("ETH") or a
	// registry token such as "USDC".
	Token string `json:"token" validate:"required"`

	// Vault is the collection address that should have received funds.
	Vault string `json:"vault" validate:"required"`
}

// Validate checks that the query carries everything verification needs.
func (q *TransferQuery) Validate() error {
	if q.TxHash == "" {
		return fmt.Errorf("transferQuery.txHash is required")
	}
	if len(q.TxHash) != 66 || !strings.HasPrefix(q.TxHash, "0x") {
		return fmt.Errorf("transferQuery.txHash %q is not a 32-byte hex hash", q.TxHash)
	}
	if q.Network == "" {
		return fmt.Errorf("transferQuery.network is required")
	}
	if q.Token == "" {
		return fmt.Errorf("transferQuery.token is required")
	}
	if q.Vault == "" {
		return fmt.Errorf("transferQuery.vault is required")
	}
	return nil
}

// TransferResult reports the quantity of an asset delivered to the vault.
// A zero amount means no matching transfer was found, not an error.
type TransferResult struct {
	Amount decimal.Decimal `json:"amount"`
	Asset  string          `json:"asset"`
}

// NormalizeAddress canonicalizes a hex address for equality comparison.
func NormalizeAddress(addr string) (common.Address, error) {
	if !common.IsHexAddress(addr) {
		return common.Address{}, &EsimPayError{
			Code:    ErrInvalidAddress,
			Message: fmt.Sprintf("malformed address %q", addr),
			Data:    addr,
		}
	}
	return common.HexToAddress(addr), nil
}

// SessionState tags how far a provisioning session has progressed. States
// only ever advance; a session never regresses or retries on its own.
type SessionState string

const (
	StateUnregistered      SessionState = "UNREGISTERED"
	StateRegistering       SessionState = "REGISTERING"
	StateRegistered        SessionState = "REGISTERED"
	StateWalletDeploying   SessionState = "WALLET_DEPLOYING"
	StateWalletDeployed    SessionState = "WALLET_DEPLOYED"
	StateIdentifierBinding SessionState = "IDENTIFIER_BINDING"
	StateIdentifierBound   SessionState = "IDENTIFIER_BOUND"
	StatePurchasing        SessionState = "PURCHASING"
	StateBundlePurchased   SessionState = "BUNDLE_PURCHASED"
)

var stateOrder = map[SessionState]int{
	StateUnregistered:      0,
	StateRegistering:       1,
	StateRegistered:        2,
	StateWalletDeploying:   3,
	StateWalletDeployed:    4,
	StateIdentifierBinding: 5,
	StateIdentifierBound:   6,
	StatePurchasing:        7,
	StateBundlePurchased:   8,
}

// Ordinal returns the position of the state in the workflow, or -1 for an
// unknown tag.
func (s SessionState) Ordinal() int {
	ord, ok := stateOrder[s]
	if !ok {
		return -1
	}
	return ord
}

// Terminal reports whether the workflow is complete.
func (s SessionState) Terminal() bool {
	return s == StateBundlePurchased
}

// ProvisioningSession tracks one provisioning attempt for one device wallet.
// It is a plain serializable value so a host can persist it and resume after
// a crash or timeout without re-deriving which on-chain steps completed.
type ProvisioningSession struct {
	DeviceWallet   string          `json:"deviceWallet"`
	ESIMWallet     string          `json:"esimWallet,omitempty"`
	BundleID       string          `json:"bundleId"`
	BundlePriceUSD decimal.Decimal `json:"bundlePriceUsd"`
	State          SessionState    `json:"state"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// NewProvisioningSession starts a session in UNREGISTERED.
func NewProvisioningSession(deviceWallet, bundleID string, priceUSD decimal.Decimal) *ProvisioningSession {
	return &ProvisioningSession{
		DeviceWallet:   deviceWallet,
		BundleID:       bundleID,
		BundlePriceUSD: priceUSD,
		State:          StateUnregistered,
		UpdatedAt:      time.Now().UTC(),
	}
}

// Advance moves the session forward to next. Moving backwards, or to an
// unknown state, is rejected.
func (s *ProvisioningSession) Advance(next SessionState) error {
	nextOrd := next.Ordinal()
	if nextOrd < 0 {
		return fmt.Errorf("unknown session state %q", next)
	}
	if nextOrd <= s.State.Ordinal() {
		return fmt.Errorf("session for %s cannot move from %s back to %s", s.DeviceWallet, s.State, next)
	}
	s.State = next
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Require verifies the session reached exactly the given state, the
// precondition every workflow step checks before acting.
func (s *ProvisioningSession) Require(state SessionState) error {
	if s.State != state {
		return fmt.Errorf("session for %s is in state %s, want %s", s.DeviceWallet, s.State, state)
	}
	return nil
}
