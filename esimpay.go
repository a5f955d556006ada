// Package esimpay provisions pay-per-use data bundles settled on-chain and
// verifies that payment transactions actually delivered funds to the vault,
// across multiple chains and asset types.
package esimpay

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kokio-labs/esimpay/clients"
	"github.com/kokio-labs/esimpay/logger"
	"github.com/kokio-labs/esimpay/metrics"
	"github.com/kokio-labs/esimpay/oracle"
	"github.com/kokio-labs/esimpay/pricing"
	"github.com/kokio-labs/esimpay/provisioning"
	"github.com/kokio-labs/esimpay/sessionstore"
	"github.com/kokio-labs/esimpay/types"
	"github.com/kokio-labs/esimpay/verification"
)

// EsimPay is the library facade: it owns the per-network clients, the
// transfer verifier and, when a factory and admin key are configured, the
// provisioning orchestrator. Verification and provisioning are independent
// consumers of the chain and never call each other.
type EsimPay struct {
	config       *types.Config
	clients      map[types.Network]*clients.EVMClient
	converter    *pricing.Converter
	verifier     *verification.TransferVerifier
	orchestrator *provisioning.Orchestrator

	log      logger.Logger
	rec      metrics.Recorder
	store    sessionstore.Store
	salts    provisioning.SaltSource
	decimals verification.DecimalStrategy
	timeout  time.Duration
}

// New validates the configuration, dials a client per configured network
// and wires the verifier and orchestrator.
func New(ctx context.Context, config *types.Config, opts ...Option) (*EsimPay, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &EsimPay{
		config:  config,
		clients: make(map[types.Network]*clients.EVMClient),
		log:     logger.NoopLogger{},
		rec:     metrics.NoopRecorder{},
		timeout: config.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}

	registry := config.Registry
	if registry == nil {
		registry = types.DefaultTokenRegistry
	}
	confirmations := config.Confirmations
	if confirmations == 0 {
		confirmations = types.DefaultConfirmations
	}

	for _, cc := range config.Networks {
		var (
			client *clients.EVMClient
			err    error
		)
		if cc.Network == config.ProvisioningNetwork && config.AdminKeyHex != "" {
			client, err = clients.NewSigningEVMClient(ctx, cc.Network, cc.RPCUrl, config.AdminKeyHex)
		} else {
			client, err = clients.NewEVMClient(ctx, cc.Network, cc.RPCUrl)
		}
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to create client for %s: %w", cc.Network, err)
		}
		e.clients[cc.Network] = client
	}

	feedClient, err := e.priceFeedClient()
	if err != nil {
		e.Close()
		return nil, err
	}
	feedAddress := config.PriceFeedAddress
	if feedAddress == "" {
		feedAddress = oracle.DefaultETHUSDFeed
	}
	feed, err := oracle.NewPriceFeed(feedClient, feedAddress, e.log)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.converter = pricing.NewConverter(feed, e.log)

	verifierOpts := []verification.Option{
		verification.WithLogger(e.log),
		verification.WithMetrics(e.rec),
	}
	if e.decimals != nil {
		verifierOpts = append(verifierOpts, verification.WithDecimalStrategy(e.decimals))
	}
	e.verifier = verification.NewTransferVerifier(e.converter, registry, verifierOpts...)
	for network, client := range e.clients {
		if err := e.verifier.AddReader(network, client); err != nil {
			e.Close()
			return nil, err
		}
	}

	if config.FactoryAddress != "" {
		backend, ok := e.clients[config.ProvisioningNetwork]
		if !ok {
			e.Close()
			return nil, fmt.Errorf("provisioning network %s has no configured client", config.ProvisioningNetwork)
		}
		if config.AdminKeyHex == "" {
			e.Close()
			return nil, fmt.Errorf("provisioning requires an admin signing key")
		}

		orchOpts := []provisioning.Option{
			provisioning.WithConfirmations(confirmations),
			provisioning.WithLogger(e.log),
			provisioning.WithMetrics(e.rec),
		}
		if e.salts != nil {
			orchOpts = append(orchOpts, provisioning.WithSaltSource(e.salts))
		}
		if e.store != nil {
			orchOpts = append(orchOpts, provisioning.WithSessionStore(e.store))
		}
		e.orchestrator, err = provisioning.NewOrchestrator(backend, e.converter, config.FactoryAddress, orchOpts...)
		if err != nil {
			e.Close()
			return nil, err
		}
	}

	return e, nil
}

// VerifyTransfer determines the quantity of the queried asset delivered to
// the vault. When the query carries no vault, the configured vault is used.
func (e *EsimPay) VerifyTransfer(ctx context.Context, query types.TransferQuery) (*types.TransferResult, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()

	if query.Vault == "" {
		query.Vault = e.config.Vault
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}
	return e.verifier.VerifyTransfer(ctx, query)
}

// ProvisionBundle provisions a data bundle for the device wallet end to
// end. A persisted in-flight session for the device wallet is resumed when
// it matches the requested bundle; a completed one is superseded by a fresh
// session. The session is returned in its final state even when a step
// failed, so the caller can inspect or persist it.
func (e *EsimPay) ProvisionBundle(ctx context.Context, deviceWallet, esimIdentifier, bundleID string, priceUSD decimal.Decimal) (*types.ProvisioningSession, error) {
	if e.orchestrator == nil {
		return nil, fmt.Errorf("provisioning is not configured")
	}

	ctx, cancel := e.callContext(ctx)
	defer cancel()

	session, err := e.loadSession(ctx, deviceWallet)
	if err != nil {
		return nil, err
	}
	if session != nil && session.State.Terminal() {
		session = nil
	}
	if session != nil && (session.BundleID != bundleID || !session.BundlePriceUSD.Equal(priceUSD)) {
		return nil, &types.EsimPayError{
			Code: types.ErrSessionMismatch,
			Message: fmt.Sprintf("device wallet %s has an in-flight session for bundle %s at %s USD; requested %s at %s USD",
				deviceWallet, session.BundleID, session.BundlePriceUSD, bundleID, priceUSD),
			Data: map[string]interface{}{
				"deviceWallet":    deviceWallet,
				"sessionBundleId": session.BundleID,
				"sessionPriceUsd": session.BundlePriceUSD.String(),
				"bundleId":        bundleID,
				"priceUsd":        priceUSD.String(),
			},
		}
	}
	if session == nil {
		session = types.NewProvisioningSession(deviceWallet, bundleID, priceUSD)
	}

	err = e.orchestrator.Provision(ctx, session, esimIdentifier)
	return session, err
}

// Provision drives an existing session; see provisioning.Orchestrator.
func (e *EsimPay) Provision(ctx context.Context, session *types.ProvisioningSession, esimIdentifier string) error {
	if e.orchestrator == nil {
		return fmt.Errorf("provisioning is not configured")
	}

	ctx, cancel := e.callContext(ctx)
	defer cancel()
	return e.orchestrator.Provision(ctx, session, esimIdentifier)
}

// Converter exposes USD/native conversion backed by the live oracle.
func (e *EsimPay) Converter() *pricing.Converter {
	return e.converter
}

// IsNetworkSupported reports whether a client is configured for the network.
func (e *EsimPay) IsNetworkSupported(network types.Network) bool {
	_, ok := e.clients[network]
	return ok
}

// Close closes all client connections.
func (e *EsimPay) Close() {
	for _, client := range e.clients {
		client.Close()
	}
}

func (e *EsimPay) loadSession(ctx context.Context, deviceWallet string) (*types.ProvisioningSession, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.Get(ctx, deviceWallet)
}

// priceFeedClient picks the client the oracle reads through: the
// provisioning network when configured, the first configured network
// otherwise.
func (e *EsimPay) priceFeedClient() (*clients.EVMClient, error) {
	if e.config.ProvisioningNetwork != "" {
		if client, ok := e.clients[e.config.ProvisioningNetwork]; ok {
			return client, nil
		}
	}
	for _, cc := range e.config.Networks {
		if client, ok := e.clients[cc.Network]; ok {
			return client, nil
		}
	}
	return nil, fmt.Errorf("no client available for the price feed")
}

// callContext applies the configured default timeout when the caller's
// context carries no deadline. Confirmation waits can take unbounded time
// otherwise.
func (e *EsimPay) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			return context.WithTimeout(ctx, e.timeout)
		}
	}
	return context.WithCancel(ctx)
}

// Version information
const Version = "1.0.0"
