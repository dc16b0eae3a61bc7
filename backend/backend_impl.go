package backend

/*
 * Licensed under LGPL-3.0.
 *
 * You can get a copy of the LGPL-3.0 License at
 *
 * https://www.gnu.org/licenses/lgpl-3.0.en.html
 *
 * @wcgcyx - https://github.com/wcgcyx
 */

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	logging "github.com/ipfs/go-log"
	"github.com/wcgcyx/crucible/cheat"
	"github.com/wcgcyx/crucible/interp"
	"github.com/wcgcyx/crucible/statestore"
	itypes "github.com/wcgcyx/crucible/types"
)

// Logger
var log = logging.Logger("backend")

// BackendImpl implements Backend.
type BackendImpl struct {
	lock sync.Mutex

	store statestore.StateStore
	chain *itypes.ChainContext
	ic    *cheat.Interceptor
	in    *interp.Interpreter
}

// NewBackendImpl creates a new backend over the given state and chain context.
func NewBackendImpl(store statestore.StateStore, chain *itypes.ChainContext) (Backend, error) {
	ic := cheat.NewInterceptor()
	in, err := interp.NewInterpreter(store, chain, ic)
	if err != nil {
		return nil, err
	}
	return &BackendImpl{
		store: store,
		chain: chain,
		ic:    ic,
		in:    in,
	}, nil
}

// State gets the backing state store.
func (b *BackendImpl) State() statestore.StateStore {
	return b.store
}

// Chain gets the simulated chain context.
func (b *BackendImpl) Chain() *itypes.ChainContext {
	return b.chain
}

// Interceptor gets the cheat interceptor of this session.
func (b *BackendImpl) Interceptor() *cheat.Interceptor {
	return b.ic
}

// Deploy deploys the given init code from sender with instant inclusion.
func (b *BackendImpl) Deploy(ctx context.Context, sender common.Address, initcode []byte, value *uint256.Int, gas uint64) (common.Address, *itypes.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return common.Address{}, nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	addr, res := b.in.Deploy(sender, initcode, value, gas)
	if res.Success {
		log.Debugf("Deployed %v bytes of code at %v, gas used %v", b.store.GetCodeSize(addr), addr, res.GasUsed)
	}
	return addr, res, nil
}

// Execute runs a call frame against the session state.
func (b *BackendImpl) Execute(ctx context.Context, frame itypes.CallFrame) (*itypes.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.in.Execute(frame), nil
}

// Call runs a read call against a disposable copy of the session state.
func (b *BackendImpl) Call(ctx context.Context, frame itypes.CallFrame) (*itypes.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.lock.Lock()
	scratch := b.store.Copy()
	chain := b.chain.Copy()
	b.lock.Unlock()
	in, err := interp.NewInterpreter(scratch, chain, cheat.NewInterceptor())
	if err != nil {
		return nil, err
	}
	return in.Execute(frame), nil
}

// ApplyTransaction validates and applies a signed transaction with instant
// inclusion, advancing the simulated block.
func (b *BackendImpl) ApplyTransaction(ctx context.Context, tx *ethtypes.Transaction) (*itypes.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	signer := ethtypes.LatestSignerForChainID(b.chain.ChainID)
	sender, err := ethtypes.Sender(signer, tx)
	if err != nil {
		return nil, err
	}
	if tx.Nonce() != b.store.GetNonce(sender) {
		return nil, fmt.Errorf("invalid nonce for %v: got %v, expect %v", sender, tx.Nonce(), b.store.GetNonce(sender))
	}
	intrinsic := interp.IntrinsicGas(tx.Data())
	if tx.Gas() < intrinsic {
		return nil, fmt.Errorf("intrinsic gas too low: got %v, need %v", tx.Gas(), intrinsic)
	}
	value, overflow := uint256.FromBig(tx.Value())
	if overflow {
		return nil, fmt.Errorf("transaction value out of range")
	}
	var res *itypes.ExecutionResult
	if tx.To() == nil {
		// contract creation bumps the sender nonce itself
		var addr common.Address
		addr, res = b.in.Deploy(sender, tx.Data(), value, tx.Gas()-intrinsic)
		if res.Success {
			log.Infof("Applied creation tx %v: contract %v, gas used %v", tx.Hash(), addr, res.GasUsed+intrinsic)
		}
	} else {
		b.store.SetNonce(sender, tx.Nonce()+1)
		res = b.in.Execute(itypes.CallFrame{
			Caller: sender,
			Target: *tx.To(),
			Input:  tx.Data(),
			Value:  value,
			Gas:    tx.Gas() - intrinsic,
		})
		log.Infof("Applied tx %v to %v: success %v, gas used %v", tx.Hash(), tx.To(), res.Success, res.GasUsed+intrinsic)
	}
	res.GasUsed += intrinsic
	// instant inclusion, one transaction per block
	b.chain.BlockNumber++
	b.chain.Timestamp++
	return res, nil
}

// TouchClock moves the chain timestamp forward to now when it lags behind.
func (b *BackendImpl) TouchClock(now uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.chain.Timestamp < now {
		b.chain.Timestamp = now
	}
}

// Snapshot takes a snapshot of the session state.
func (b *BackendImpl) Snapshot() uint64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.store.Snapshot()
}

// Revert restores a previously taken snapshot.
func (b *BackendImpl) Revert(id uint64) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.store.Restore(id)
}

// Fork creates an independent session sharing frozen history with this one.
func (b *BackendImpl) Fork() (Backend, error) {
	b.lock.Lock()
	store := b.store.Copy()
	chain := b.chain.Copy()
	b.lock.Unlock()
	return NewBackendImpl(store, chain)
}

// Shutdown safely shuts the backend down.
func (b *BackendImpl) Shutdown() {
	log.Infof("Backend closed successfully.")
}
