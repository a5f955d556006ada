// Package verification determines how much of an asset a transaction
// delivered to the vault, across the supported chains and asset types. It is
// read-only and side-effect-free beyond network queries, so callers may
// retry freely.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/kokio-labs/esimpay/clients"
	"github.com/kokio-labs/esimpay/logger"
	"github.com/kokio-labs/esimpay/metrics"
	"github.com/kokio-labs/esimpay/pricing"
	"github.com/kokio-labs/esimpay/types"
)

const erc20TransferABI = `
[
  {
    "type": "event",
    "name": "Transfer",
    "inputs": [
      { "name": "from", "type": "address", "indexed": true },
      { "name": "to", "type": "address", "indexed": true },
      { "name": "value", "type": "uint256", "indexed": false }
    ]
  }
]
`

var (
	transferABI   abi.ABI
	transferTopic common.Hash
)

func init() {
	var err error
	transferABI, err = abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		panic(fmt.Sprintf("parse transfer abi: %v", err))
	}
	transferTopic = transferABI.Events["Transfer"].ID
}

// TransferVerifier answers transfer queries across the configured networks.
type TransferVerifier struct {
	readers   map[types.Network]clients.ChainReader
	converter *pricing.Converter
	registry  types.TokenRegistry
	decimals  DecimalStrategy
	log       logger.Logger
	rec       metrics.Recorder
}

// Option customizes a TransferVerifier.
type Option func(*TransferVerifier)

func WithDecimalStrategy(s DecimalStrategy) Option {
	return func(v *TransferVerifier) {
		v.decimals = s
	}
}

func WithLogger(l logger.Logger) Option {
	return func(v *TransferVerifier) {
		v.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(v *TransferVerifier) {
		v.rec = r
	}
}

// NewTransferVerifier creates a verifier over the given token registry. By
// default it applies the length-override decimal heuristic, logs nowhere
// and records no metrics.
func NewTransferVerifier(converter *pricing.Converter, registry types.TokenRegistry, opts ...Option) *TransferVerifier {
	v := &TransferVerifier{
		readers:   make(map[types.Network]clients.ChainReader),
		converter: converter,
		registry:  registry,
		decimals:  LengthHeuristicStrategy{},
		log:       logger.NoopLogger{},
		rec:       metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// AddReader registers the chain reader for a network.
func (v *TransferVerifier) AddReader(network types.Network, reader clients.ChainReader) error {
	if !network.IsSupported() {
		return &types.EsimPayError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", network),
			Data:    network,
		}
	}
	v.readers[network] = reader
	return nil
}

// VerifyTransfer resolves the quantity of the queried asset delivered to the
// vault by the referenced transaction. A zero amount with a nil error means
// no matching transfer was found.
func (v *TransferVerifier) VerifyTransfer(ctx context.Context, query types.TransferQuery) (*types.TransferResult, error) {
	started := time.Now()
	defer func() {
		v.rec.ObserveLatency("verify_transfer", time.Since(started), map[string]string{
			"network": query.Network.String(),
		})
	}()

	reader, err := v.readerFor(query.Network)
	if err != nil {
		return nil, err
	}

	vault, err := types.NormalizeAddress(query.Vault)
	if err != nil {
		return nil, err
	}

	symbol := strings.ToUpper(query.Token)
	txHash := common.HexToHash(query.TxHash)

	if symbol == query.Network.NativeSymbol() {
		return v.verifyNative(ctx, reader, query.Network, txHash, vault)
	}
	return v.verifyToken(ctx, reader, query.Network, txHash, vault, symbol)
}

func (v *TransferVerifier) readerFor(network types.Network) (clients.ChainReader, error) {
	if !network.IsSupported() {
		return nil, &types.EsimPayError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", network),
			Data:    network,
		}
	}
	reader, ok := v.readers[network]
	if !ok {
		return nil, &types.EsimPayError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("no client configured for network %s", network),
			Data:    network,
		}
	}
	return reader, nil
}

// verifyNative checks the transaction's direct recipient and value, then
// expresses a positive amount in USD.
func (v *TransferVerifier) verifyNative(
	ctx context.Context,
	reader clients.ChainReader,
	network types.Network,
	txHash common.Hash,
	vault common.Address,
) (*types.TransferResult, error) {
	assetLabel := "USD in " + network.NativeSymbol()

	tx, _, err := reader.GetTransaction(ctx, txHash)
	if err != nil || tx == nil {
		if err == nil || errors.Is(err, ethereum.NotFound) {
			return nil, v.notFound(network, txHash)
		}
		return nil, err
	}

	amount := decimal.Zero
	if tx.To() != nil && *tx.To() == vault && tx.Value().Sign() > 0 {
		native := decimal.NewFromBigInt(tx.Value(), -types.NativeDecimals)
		usd, err := v.converter.NativeToUsd(ctx, native)
		if err != nil {
			return nil, err
		}
		amount = usd
	}

	v.log.Info("native transfer verified", map[string]any{
		"network": network.String(),
		"txHash":  txHash.Hex(),
		"vault":   vault.Hex(),
		"amount":  amount.String(),
	})
	v.rec.IncCounter("native_verified", map[string]string{"network": network.String()})

	return &types.TransferResult{Amount: amount, Asset: assetLabel}, nil
}

// verifyToken sums every decoded fungible-transfer event in the receipt
// whose recipient is the vault. Logs that fail to decode are expected and
// skipped silently.
func (v *TransferVerifier) verifyToken(
	ctx context.Context,
	reader clients.ChainReader,
	network types.Network,
	txHash common.Hash,
	vault common.Address,
	symbol string,
) (*types.TransferResult, error) {
	asset, ok := v.registry.Resolve(network, symbol)
	if !ok {
		return nil, &types.EsimPayError{
			Code:    types.ErrUnsupportedToken,
			Message: fmt.Sprintf("token %s not supported on %s or missing from the registry", symbol, network),
			Data: map[string]interface{}{
				"token":   symbol,
				"network": network,
			},
		}
	}

	receipt, err := reader.GetTransactionReceipt(ctx, txHash)
	if err != nil || receipt == nil {
		if err == nil || errors.Is(err, ethereum.NotFound) {
			return nil, v.notFound(network, txHash)
		}
		return nil, err
	}

	total := decimal.Zero
	for _, lg := range receipt.Logs {
		if lg == nil || len(lg.Topics) != 3 || lg.Topics[0] != transferTopic {
			continue
		}
		if common.BytesToAddress(lg.Topics[2].Bytes()) != vault {
			continue
		}

		values, err := transferABI.Unpack("Transfer", lg.Data)
		if err != nil || len(values) != 1 {
			continue
		}
		raw, ok := values[0].(*big.Int)
		if !ok {
			continue
		}

		dec := v.decimals.Resolve(asset, raw)
		total = total.Add(decimal.NewFromBigInt(raw, -dec))
	}

	v.log.Info("token transfer verified", map[string]any{
		"network": network.String(),
		"txHash":  txHash.Hex(),
		"vault":   vault.Hex(),
		"token":   symbol,
		"amount":  total.String(),
	})
	v.rec.IncCounter("token_verified", map[string]string{"network": network.String()})

	return &types.TransferResult{Amount: total, Asset: symbol}, nil
}

func (v *TransferVerifier) notFound(network types.Network, txHash common.Hash) error {
	return &types.EsimPayError{
		Code:    types.ErrTransactionNotFound,
		Message: fmt.Sprintf("transaction %s not found on %s", txHash.Hex(), network),
		Data: map[string]interface{}{
			"txHash":  txHash.Hex(),
			"network": network,
		},
	}
}
