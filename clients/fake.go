package clients

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kokio-labs/esimpay/types"
)

var (
	_ ChainReader     = (*FakeBackend)(nil)
	_ ContractBackend = (*FakeBackend)(nil)
)

// ReadCall records one contract read observed by the fake.
type ReadCall struct {
	Addr   common.Address
	Method string
	Args   []interface{}
}

// WriteCall records one submitted mutation observed by the fake.
type WriteCall struct {
	Addr   common.Address
	Method string
	Value  *big.Int
	Args   []interface{}
}

// FakeBackend deterministically emulates a chain in tests: reads are served
// from stubbed queues, writes are recorded and acknowledged with a
// keccak-derived hash, and receipts confirm instantly.
type FakeBackend struct {
	mu sync.Mutex

	network types.Network
	signer  common.Address

	reads     map[string][][]interface{}
	writeErrs map[string]error

	ReadCalls  []ReadCall
	WriteCalls []WriteCall

	logs     []gethtypes.Log
	txs      map[common.Hash]*gethtypes.Transaction
	receipts map[common.Hash]*gethtypes.Receipt

	// ReceiptBlock is the block number synthesized receipts report.
	ReceiptBlock uint64

	writeSeq int
}

func NewFakeBackend(network types.Network, signer common.Address) *FakeBackend {
	return &FakeBackend{
		network:      network,
		signer:       signer,
		reads:        make(map[string][][]interface{}),
		writeErrs:    make(map[string]error),
		txs:          make(map[common.Hash]*gethtypes.Transaction),
		receipts:     make(map[common.Hash]*gethtypes.Receipt),
		ReceiptBlock: 100,
	}
}

// StubRead queues a return tuple for the named method. Queued tuples are
// consumed in order; the last one keeps serving repeat reads.
func (f *FakeBackend) StubRead(method string, values ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[method] = append(f.reads[method], values)
}

// FailWrite makes WriteContract for the named method return err.
func (f *FakeBackend) FailWrite(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErrs[method] = err
}

func (f *FakeBackend) AddTransaction(hash common.Hash, tx *gethtypes.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs[hash] = tx
}

func (f *FakeBackend) AddReceipt(hash common.Hash, receipt *gethtypes.Receipt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[hash] = receipt
}

func (f *FakeBackend) AddLog(log gethtypes.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
}

func (f *FakeBackend) Network() types.Network {
	return f.network
}

func (f *FakeBackend) SignerAddress() common.Address {
	return f.signer
}

func (f *FakeBackend) ReadContract(_ context.Context, addr common.Address, _ abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ReadCalls = append(f.ReadCalls, ReadCall{Addr: addr, Method: method, Args: args})

	queue := f.reads[method]
	if len(queue) == 0 {
		return nil, fmt.Errorf("fake backend: no stubbed result for %s", method)
	}
	values := queue[0]
	if len(queue) > 1 {
		f.reads[method] = queue[1:]
	}
	return values, nil
}

func (f *FakeBackend) WriteContract(_ context.Context, addr common.Address, _ abi.ABI, method string, value *big.Int, args ...interface{}) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.writeErrs[method]; err != nil {
		return common.Hash{}, err
	}

	f.writeSeq++
	f.WriteCalls = append(f.WriteCalls, WriteCall{Addr: addr, Method: method, Value: value, Args: args})
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("%s-%d", method, f.writeSeq))), nil
}

func (f *FakeBackend) WaitForReceipt(_ context.Context, hash common.Hash, _ uint64) (*gethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return &gethtypes.Receipt{
		Status:      gethtypes.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(f.ReceiptBlock),
	}, nil
}

func (f *FakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []gethtypes.Log
	for _, lg := range f.logs {
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, lg.Address) {
			continue
		}
		if len(q.Topics) > 0 && len(q.Topics[0]) > 0 {
			if len(lg.Topics) == 0 || !containsHash(q.Topics[0], lg.Topics[0]) {
				continue
			}
		}
		if q.FromBlock != nil && lg.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && lg.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		out = append(out, lg)
	}
	return out, nil
}

func (f *FakeBackend) GetTransaction(_ context.Context, hash common.Hash) (*gethtypes.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx, ok := f.txs[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, false, nil
}

func (f *FakeBackend) GetTransactionReceipt(_ context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

// Writes returns the recorded mutations for the named method.
func (f *FakeBackend) Writes(method string) []WriteCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []WriteCall
	for _, w := range f.WriteCalls {
		if w.Method == method {
			out = append(out, w)
		}
	}
	return out
}

func containsAddress(addrs []common.Address, a common.Address) bool {
	for _, x := range addrs {
		if x == a {
			return true
		}
	}
	return false
}

func containsHash(hashes []common.Hash, h common.Hash) bool {
	for _, x := range hashes {
		if x == h {
			return true
		}
	}
	return false
}
