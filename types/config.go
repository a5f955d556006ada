package types

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

// ClientConfig configures one per-network RPC client.
type ClientConfig struct {
	Network Network `json:"network" validate:"required"`
	RPCUrl  string  `json:"rpcUrl" validate:"required,url"`
}

// Config is the explicit configuration object constructed once by the host
// and passed into the library. The library never reads the process
// environment; credentials and endpoints arrive here.
type Config struct {
	// Networks lists every chain the verifier should be able to query.
	Networks []ClientConfig `json:"networks" validate:"required,min=1,dive"`

	// Vault is the collection address payments must land on.
	Vault string `json:"vault" validate:"required"`

	// ProvisioningNetwork hosts the eSIM contract suite.
	ProvisioningNetwork Network `json:"provisioningNetwork,omitempty"`

	// FactoryAddress is the device-wallet factory contract. Required when
	// provisioning is used.
	FactoryAddress string `json:"factoryAddress,omitempty"`

	// AdminKeyHex is the hex-encoded admin signing key. When empty every
	// client is read-only and provisioning is unavailable.
	AdminKeyHex string `json:"-"`

	// PriceFeedAddress is the ETH/USD aggregator. Defaults to the feed on
	// the provisioning network when empty.
	PriceFeedAddress string `json:"priceFeedAddress,omitempty"`

	// Confirmations is the finality threshold for mutations. Defaults to
	// DefaultConfirmations.
	Confirmations uint64 `json:"confirmations,omitempty"`

	// Registry maps (network, symbol) to token descriptors. Defaults to
	// DefaultTokenRegistry.
	Registry TokenRegistry `json:"registry,omitempty"`

	// DefaultTimeout bounds each library call when the caller's context
	// carries no deadline of its own.
	DefaultTimeout time.Duration `json:"defaultTimeout,omitempty"`
}

var validate = validator.New()

// Validate checks the configuration at startup, before any client is built.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if !common.IsHexAddress(c.Vault) {
		return &EsimPayError{
			Code:    ErrInvalidAddress,
			Message: fmt.Sprintf("vault address %q is malformed", c.Vault),
			Data:    c.Vault,
		}
	}
	for _, cc := range c.Networks {
		if !cc.Network.IsSupported() {
			return &EsimPayError{
				Code:    ErrUnsupportedNetwork,
				Message: fmt.Sprintf("unsupported network %q in config", cc.Network),
				Data:    cc.Network,
			}
		}
	}
	if c.ProvisioningNetwork != "" && !c.ProvisioningNetwork.IsSupported() {
		return &EsimPayError{
			Code:    ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported provisioning network %q", c.ProvisioningNetwork),
			Data:    c.ProvisioningNetwork,
		}
	}
	if c.FactoryAddress != "" && !common.IsHexAddress(c.FactoryAddress) {
		return &EsimPayError{
			Code:    ErrInvalidAddress,
			Message: fmt.Sprintf("factory address %q is malformed", c.FactoryAddress),
			Data:    c.FactoryAddress,
		}
	}
	if c.PriceFeedAddress != "" && !common.IsHexAddress(c.PriceFeedAddress) {
		return &EsimPayError{
			Code:    ErrInvalidAddress,
			Message: fmt.Sprintf("price feed address %q is malformed", c.PriceFeedAddress),
			Data:    c.PriceFeedAddress,
		}
	}
	registry := c.Registry
	if registry == nil {
		registry = DefaultTokenRegistry
	}
	return registry.Validate()
}
