// Package clients wraps the per-chain RPC access the verifier and the
// provisioning orchestrator consume.
package clients

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/kokio-labs/esimpay/types"
)

// ChainReader is the read-only surface transfer verification needs.
type ChainReader interface {
	// GetTransaction fetches a transaction by hash. The bool reports
	// whether the transaction is still pending.
	GetTransaction(ctx context.Context, hash common.Hash) (*gethtypes.Transaction, bool, error)

	// GetTransactionReceipt fetches the receipt of a mined transaction.
	GetTransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error)

	Network() types.Network
}

// ContractBackend is the read/write surface the orchestrator drives. Reads
// never mutate chain state; writes return a transaction reference whose
// durability is established by WaitForReceipt.
type ContractBackend interface {
	ReadContract(ctx context.Context, addr common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error)

	// WriteContract submits a state-mutating call. A non-nil value is
	// attached to the call as native-asset payment in smallest units.
	WriteContract(ctx context.Context, addr common.Address, contractABI abi.ABI, method string, value *big.Int, args ...interface{}) (common.Hash, error)

	// WaitForReceipt blocks until the transaction is included at the given
	// block depth. It can take unbounded wall-clock time; the caller bounds
	// it through ctx.
	WaitForReceipt(ctx context.Context, hash common.Hash, confirmations uint64) (*gethtypes.Receipt, error)

	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)

	// SignerAddress is the address mutations are submitted from.
	SignerAddress() common.Address

	Network() types.Network
}
