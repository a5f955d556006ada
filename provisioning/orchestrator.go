// Package provisioning drives the finality-gated sequence of contract
// mutations that provisions a data bundle: device-wallet registration, eSIM
// wallet deployment, identifier binding and bundle purchase. Steps are
// strictly sequential; each one waits out the confirmation threshold before
// the next is attempted, and nothing retries or rolls back automatically.
package provisioning

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/kokio-labs/esimpay/clients"
	"github.com/kokio-labs/esimpay/logger"
	"github.com/kokio-labs/esimpay/metrics"
	"github.com/kokio-labs/esimpay/pricing"
	"github.com/kokio-labs/esimpay/sessionstore"
	"github.com/kokio-labs/esimpay/types"
)

// dataBundleDetail mirrors the tuple buyDataBundle takes on-chain.
type dataBundleDetail struct {
	DataBundleID    string
	DataBundlePrice *big.Int
}

// Orchestrator executes provisioning workflows against one chain's contract
// suite. Distinct sessions may be driven concurrently; one session must
// never have more than one driver.
type Orchestrator struct {
	backend       clients.ContractBackend
	converter     *pricing.Converter
	factory       common.Address
	confirmations uint64
	salts         SaltSource
	store         sessionstore.Store
	log           logger.Logger
	rec           metrics.Recorder

	factoryABI abi.ABI
	deviceABI  abi.ABI
	esimABI    abi.ABI

	walletAddedTopic common.Hash
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithConfirmations overrides the finality threshold.
func WithConfirmations(n uint64) Option {
	return func(o *Orchestrator) {
		o.confirmations = n
	}
}

// WithSaltSource replaces the default keccak-derived salt strategy.
func WithSaltSource(s SaltSource) Option {
	return func(o *Orchestrator) {
		o.salts = s
	}
}

// WithSessionStore persists the session after every completed transition so
// a host can resume after a crash.
func WithSessionStore(s sessionstore.Store) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		o.rec = r
	}
}

// NewOrchestrator creates an orchestrator bound to the device-wallet
// factory at factoryAddress. The backend must carry a signing key; every
// step past the first read submits mutations from it.
func NewOrchestrator(backend clients.ContractBackend, converter *pricing.Converter, factoryAddress string, opts ...Option) (*Orchestrator, error) {
	factory, err := types.NormalizeAddress(factoryAddress)
	if err != nil {
		return nil, err
	}

	factoryABI, err := abi.JSON(strings.NewReader(deviceWalletFactoryABI))
	if err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}
	deviceABI, err := abi.JSON(strings.NewReader(deviceWalletABI))
	if err != nil {
		return nil, fmt.Errorf("parse device wallet abi: %w", err)
	}
	esimABI, err := abi.JSON(strings.NewReader(esimWalletABI))
	if err != nil {
		return nil, fmt.Errorf("parse esim wallet abi: %w", err)
	}

	o := &Orchestrator{
		backend:          backend,
		converter:        converter,
		factory:          factory,
		confirmations:    types.DefaultConfirmations,
		salts:            NewKeccakSaltSource(DefaultSaltPrefix),
		log:              logger.NoopLogger{},
		rec:              metrics.NoopRecorder{},
		factoryABI:       factoryABI,
		deviceABI:        deviceABI,
		esimABI:          esimABI,
		walletAddedTopic: deviceABI.Events["ESIMWalletAdded"].ID,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Provision drives the session from its current state to BUNDLE_PURCHASED.
// A session interrupted mid-step carries a possibly in-flight mutation and
// must be reconciled against chain state externally before resuming.
func (o *Orchestrator) Provision(ctx context.Context, session *types.ProvisioningSession, esimIdentifier string) error {
	if session == nil {
		return fmt.Errorf("session is nil")
	}
	if esimIdentifier == "" {
		return fmt.Errorf("esim identifier is required")
	}
	if _, err := types.NormalizeAddress(session.DeviceWallet); err != nil {
		return err
	}

	switch session.State {
	case types.StateRegistering, types.StateWalletDeploying,
		types.StateIdentifierBinding, types.StatePurchasing:
		return fmt.Errorf("session for %s was interrupted mid-step in %s; reconcile on-chain state before resuming",
			session.DeviceWallet, session.State)
	}

	started := time.Now()
	defer func() {
		o.rec.ObserveLatency("provision", time.Since(started), map[string]string{
			"network": o.backend.Network().String(),
		})
	}()

	if session.State.Ordinal() < types.StateRegistered.Ordinal() {
		if err := o.EnsureRegistered(ctx, session); err != nil {
			return err
		}
	}
	if session.State == types.StateRegistered {
		if _, err := o.DeployWallet(ctx, session, esimIdentifier); err != nil {
			return err
		}
	}
	if session.State == types.StateWalletDeployed {
		if err := o.BindIdentifier(ctx, session, esimIdentifier); err != nil {
			return err
		}
	}
	if session.State == types.StateIdentifierBound {
		if err := o.PurchaseBundle(ctx, session); err != nil {
			return err
		}
	}
	if !session.State.Terminal() {
		return fmt.Errorf("session for %s stalled in state %s", session.DeviceWallet, session.State)
	}

	o.rec.IncCounter("bundle_purchased", map[string]string{"network": o.backend.Network().String()})
	return nil
}

// EnsureRegistered checks the device wallet's registration flag and, only
// when it reads false, submits the factory registration mutation with the
// identifier and owner key components read from the device wallet.
func (o *Orchestrator) EnsureRegistered(ctx context.Context, session *types.ProvisioningSession) error {
	if err := session.Require(types.StateUnregistered); err != nil {
		return err
	}
	device := common.HexToAddress(session.DeviceWallet)

	added, err := o.readBool(ctx, o.factory, o.factoryABI, "deviceWalletInfoAdded", device)
	if err != nil {
		return err
	}
	if added {
		o.log.Info("device wallet already registered", map[string]any{"deviceWallet": device.Hex()})
		if err := session.Advance(types.StateRegistered); err != nil {
			return err
		}
		o.persist(ctx, session)
		return nil
	}

	identifier, err := o.readString(ctx, device, o.deviceABI, "deviceUniqueIdentifier")
	if err != nil {
		return err
	}
	ownerX, err := o.readBigInt(ctx, device, o.deviceABI, "owner", big.NewInt(0))
	if err != nil {
		return err
	}
	ownerY, err := o.readBigInt(ctx, device, o.deviceABI, "owner", big.NewInt(1))
	if err != nil {
		return err
	}

	if err := session.Advance(types.StateRegistering); err != nil {
		return err
	}
	o.persist(ctx, session)

	ownerKey := [2]*big.Int{ownerX, ownerY}
	txHash, err := o.backend.WriteContract(ctx, o.factory, o.factoryABI, "postCreateAccount", nil, device, identifier, ownerKey)
	if err != nil {
		return err
	}
	if _, err := o.backend.WaitForReceipt(ctx, txHash, o.confirmations); err != nil {
		return err
	}

	o.log.Info("device wallet registered", map[string]any{
		"deviceWallet": device.Hex(),
		"txHash":       txHash.Hex(),
	})
	if err := session.Advance(types.StateRegistered); err != nil {
		return err
	}
	o.persist(ctx, session)
	return nil
}

// DeployWallet verifies the caller is the factory's admin, then deploys the
// eSIM wallet and resolves its address from the deployment event emitted in
// the receipt's block. A confirmed receipt with no matching event leaves the
// sentinel zero address on the session and aborts it.
func (o *Orchestrator) DeployWallet(ctx context.Context, session *types.ProvisioningSession, esimIdentifier string) (common.Address, error) {
	if err := session.Require(types.StateRegistered); err != nil {
		return common.Address{}, err
	}
	device := common.HexToAddress(session.DeviceWallet)

	admin, err := o.readAddress(ctx, o.factory, o.factoryABI, "eSIMWalletAdmin")
	if err != nil {
		return common.Address{}, err
	}
	caller := o.backend.SignerAddress()
	if caller != admin {
		return common.Address{}, &types.EsimPayError{
			Code:    types.ErrUnauthorizedCaller,
			Message: fmt.Sprintf("caller %s is not the eSIM wallet admin %s", caller.Hex(), admin.Hex()),
			Data: map[string]interface{}{
				"caller": caller.Hex(),
				"admin":  admin.Hex(),
			},
		}
	}

	salt, err := o.salts.Salt(device, esimIdentifier)
	if err != nil {
		return common.Address{}, fmt.Errorf("derive salt: %w", err)
	}

	if err := session.Advance(types.StateWalletDeploying); err != nil {
		return common.Address{}, err
	}
	o.persist(ctx, session)

	txHash, err := o.backend.WriteContract(ctx, device, o.deviceABI, "deployESIMWallet", nil, true, salt)
	if err != nil {
		return common.Address{}, err
	}
	receipt, err := o.backend.WaitForReceipt(ctx, txHash, o.confirmations)
	if err != nil {
		return common.Address{}, err
	}

	logs, err := o.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: receipt.BlockNumber,
		ToBlock:   receipt.BlockNumber,
		Addresses: []common.Address{device},
		Topics:    [][]common.Hash{{o.walletAddedTopic}},
	})
	if err != nil {
		return common.Address{}, err
	}
	if len(logs) == 0 || len(logs[0].Topics) < 2 {
		session.ESIMWallet = (common.Address{}).Hex()
		return common.Address{}, &types.EsimPayError{
			Code:    types.ErrDeploymentFailed,
			Message: fmt.Sprintf("no wallet-deployment event found for %s in block %s", device.Hex(), receipt.BlockNumber),
			Data: map[string]interface{}{
				"deviceWallet": device.Hex(),
				"txHash":       txHash.Hex(),
				"block":        receipt.BlockNumber.String(),
			},
		}
	}

	wallet := common.BytesToAddress(logs[0].Topics[1].Bytes())
	session.ESIMWallet = wallet.Hex()
	o.log.Info("esim wallet deployed", map[string]any{
		"deviceWallet": device.Hex(),
		"esimWallet":   wallet.Hex(),
		"txHash":       txHash.Hex(),
	})
	if err := session.Advance(types.StateWalletDeployed); err != nil {
		return common.Address{}, err
	}
	o.persist(ctx, session)
	return wallet, nil
}

// BindIdentifier binds the externally supplied unique identifier to the
// deployed eSIM wallet.
func (o *Orchestrator) BindIdentifier(ctx context.Context, session *types.ProvisioningSession, esimIdentifier string) error {
	if err := session.Require(types.StateWalletDeployed); err != nil {
		return err
	}
	device := common.HexToAddress(session.DeviceWallet)
	wallet := common.HexToAddress(session.ESIMWallet)

	if err := session.Advance(types.StateIdentifierBinding); err != nil {
		return err
	}
	o.persist(ctx, session)

	txHash, err := o.backend.WriteContract(ctx, device, o.deviceABI, "setESIMUniqueIdentifierForAnESIMWallet", nil, wallet, esimIdentifier)
	if err != nil {
		return err
	}
	if _, err := o.backend.WaitForReceipt(ctx, txHash, o.confirmations); err != nil {
		return err
	}

	o.log.Info("esim identifier bound", map[string]any{
		"esimWallet": wallet.Hex(),
		"identifier": esimIdentifier,
		"txHash":     txHash.Hex(),
	})
	if err := session.Advance(types.StateIdentifierBound); err != nil {
		return err
	}
	o.persist(ctx, session)
	return nil
}

// PurchaseBundle validates the eSIM wallet before any funds are committed,
// converts the bundle's USD price into wei and submits the purchase with
// that amount attached as payment value.
func (o *Orchestrator) PurchaseBundle(ctx context.Context, session *types.ProvisioningSession) error {
	if err := session.Require(types.StateIdentifierBound); err != nil {
		return err
	}
	device := common.HexToAddress(session.DeviceWallet)
	wallet := common.HexToAddress(session.ESIMWallet)

	valid, err := o.readBool(ctx, device, o.deviceABI, "isValidESIMWallet", wallet)
	if err != nil {
		return err
	}
	if !valid {
		return &types.EsimPayError{
			Code:    types.ErrUnknownESIMWallet,
			Message: fmt.Sprintf("eSIM wallet %s is not associated with device wallet %s", wallet.Hex(), device.Hex()),
			Data: map[string]interface{}{
				"esimWallet":   wallet.Hex(),
				"deviceWallet": device.Hex(),
			},
		}
	}

	weiValue, err := o.converter.UsdToWei(ctx, session.BundlePriceUSD)
	if err != nil {
		return err
	}

	if err := session.Advance(types.StatePurchasing); err != nil {
		return err
	}
	o.persist(ctx, session)

	bundle := dataBundleDetail{
		DataBundleID:    session.BundleID,
		DataBundlePrice: weiValue,
	}
	txHash, err := o.backend.WriteContract(ctx, wallet, o.esimABI, "buyDataBundle", weiValue, bundle)
	if err != nil {
		return err
	}
	if _, err := o.backend.WaitForReceipt(ctx, txHash, o.confirmations); err != nil {
		return err
	}

	o.log.Info("data bundle purchased", map[string]any{
		"esimWallet": wallet.Hex(),
		"bundleId":   session.BundleID,
		"priceUsd":   session.BundlePriceUSD.String(),
		"weiValue":   weiValue.String(),
		"txHash":     txHash.Hex(),
	})
	if err := session.Advance(types.StateBundlePurchased); err != nil {
		return err
	}
	o.persist(ctx, session)
	return nil
}

// persist saves the session when a store is configured. Persistence failure
// never interrupts an in-flight workflow; the session value stays
// authoritative in memory.
func (o *Orchestrator) persist(ctx context.Context, session *types.ProvisioningSession) {
	if o.store == nil {
		return
	}
	if err := o.store.Save(ctx, *session); err != nil {
		o.log.Warn("session save failed", map[string]any{
			"deviceWallet": session.DeviceWallet,
			"state":        string(session.State),
			"error":        err.Error(),
		})
	}
}

func (o *Orchestrator) readBool(ctx context.Context, addr common.Address, contractABI abi.ABI, method string, args ...interface{}) (bool, error) {
	out, err := o.backend.ReadContract(ctx, addr, contractABI, method, args...)
	if err != nil {
		return false, err
	}
	v, ok := firstValue(out).(bool)
	if !ok {
		return false, fmt.Errorf("%s returned no boolean", method)
	}
	return v, nil
}

func (o *Orchestrator) readString(ctx context.Context, addr common.Address, contractABI abi.ABI, method string, args ...interface{}) (string, error) {
	out, err := o.backend.ReadContract(ctx, addr, contractABI, method, args...)
	if err != nil {
		return "", err
	}
	v, ok := firstValue(out).(string)
	if !ok {
		return "", fmt.Errorf("%s returned no string", method)
	}
	return v, nil
}

func (o *Orchestrator) readBigInt(ctx context.Context, addr common.Address, contractABI abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	out, err := o.backend.ReadContract(ctx, addr, contractABI, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := firstValue(out).(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned no uint256", method)
	}
	return v, nil
}

func (o *Orchestrator) readAddress(ctx context.Context, addr common.Address, contractABI abi.ABI, method string, args ...interface{}) (common.Address, error) {
	out, err := o.backend.ReadContract(ctx, addr, contractABI, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	v, ok := firstValue(out).(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s returned no address", method)
	}
	return v, nil
}

func firstValue(values []interface{}) interface{} {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}
