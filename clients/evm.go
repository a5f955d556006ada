package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/kokio-labs/esimpay/types"
)

var (
	_ ChainReader     = (*EVMClient)(nil)
	_ ContractBackend = (*EVMClient)(nil)
)

// receiptPollInterval is how often WaitForReceipt re-queries the node.
const receiptPollInterval = 2 * time.Second

// EVMClient is a per-chain handle over go-ethereum's ethclient. It is safe
// for concurrent use. A client built without a signing key is read-only.
type EVMClient struct {
	network types.Network
	rpcURL  string
	client  *ethclient.Client

	signer     *bind.TransactOpts
	signerAddr common.Address
	chainID    *big.Int
}

// NewEVMClient dials a read-only client for the given network.
func NewEVMClient(ctx context.Context, network types.Network, rpcURL string) (*EVMClient, error) {
	if !network.IsSupported() {
		return nil, &types.EsimPayError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", network),
			Data:    network,
		}
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s RPC: %w", network, err)
	}

	return &EVMClient{
		network: network,
		rpcURL:  rpcURL,
		client:  client,
	}, nil
}

// NewSigningEVMClient dials a client that can submit mutations, signing with
// the given hex-encoded private key.
func NewSigningEVMClient(ctx context.Context, network types.Network, rpcURL, privateKeyHex string) (*EVMClient, error) {
	c, err := NewEVMClient(ctx, network, rpcURL)
	if err != nil {
		return nil, err
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	chainID, err := c.client.ChainID(ctx)
	if err != nil {
		return nil, c.rpcError("fetch chain id", err)
	}

	signer, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	signer.GasLimit = 0 // let node estimate

	c.signer = signer
	c.signerAddr = crypto.PubkeyToAddress(key.PublicKey)
	c.chainID = chainID
	return c, nil
}

func (c *EVMClient) Network() types.Network {
	return c.network
}

func (c *EVMClient) SignerAddress() common.Address {
	return c.signerAddr
}

// GetTransaction implements ChainReader.
func (c *EVMClient) GetTransaction(ctx context.Context, hash common.Hash) (*gethtypes.Transaction, bool, error) {
	tx, pending, err := c.client.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, false, err
		}
		return nil, false, c.rpcError("get transaction", err)
	}
	return tx, pending, nil
}

// GetTransactionReceipt implements ChainReader.
func (c *EVMClient) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	receipt, err := c.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		return nil, c.rpcError("get receipt", err)
	}
	return receipt, nil
}

// ReadContract performs a read-only contract call and returns the unpacked
// outputs.
func (c *EVMClient) ReadContract(ctx context.Context, addr common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, c.rpcError(method, err)
	}

	values, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// WriteContract submits a state-mutating call and returns the transaction
// hash. The client must have been built with a signing key.
func (c *EVMClient) WriteContract(ctx context.Context, addr common.Address, contractABI abi.ABI, method string, value *big.Int, args ...interface{}) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, fmt.Errorf("client for %s is read-only", c.network)
	}

	bound := bind.NewBoundContract(addr, contractABI, c.client, c.client, c.client)

	opts := *c.signer
	opts.Context = ctx
	opts.Value = value

	tx, err := bound.Transact(&opts, method, args...)
	if err != nil {
		return common.Hash{}, c.rpcError(method, err)
	}
	return tx.Hash(), nil
}

// WaitForReceipt polls until the transaction is included at the required
// block depth or the context is cancelled. A cancellation does not withdraw
// the submitted transaction; the chain may still advance.
func (c *EVMClient) WaitForReceipt(ctx context.Context, hash common.Hash, confirmations uint64) (*gethtypes.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	var receipt *gethtypes.Receipt
	for receipt == nil {
		r, err := c.client.TransactionReceipt(ctx, hash)
		if r != nil {
			receipt = r
			break
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, c.rpcError("poll receipt", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	if confirmations <= 1 {
		return receipt, nil
	}

	target := receipt.BlockNumber.Uint64() + confirmations - 1
	for {
		head, err := c.client.BlockNumber(ctx)
		if err != nil {
			return nil, c.rpcError("poll head", err)
		}
		if head >= target {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// FilterLogs implements ContractBackend.
func (c *EVMClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error) {
	logs, err := c.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, c.rpcError("filter logs", err)
	}
	return logs, nil
}

func (c *EVMClient) Close() {
	c.client.Close()
}

func (c *EVMClient) rpcError(op string, err error) error {
	return &types.EsimPayError{
		Code:    types.ErrRPCFailure,
		Message: fmt.Sprintf("%s failed on %s: %v", op, c.network, err),
		Data: map[string]interface{}{
			"network":   c.network,
			"operation": op,
		},
	}
}
