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

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/wcgcyx/crucible/cheat"
	"github.com/wcgcyx/crucible/statestore"
	itypes "github.com/wcgcyx/crucible/types"
)

// Backend is one executing chain session: a state store, a simulated chain
// context and an interpreter bound together. It is the shared foundation of
// the test orchestrator, the broadcast dry run and the node facade.
type Backend interface {
	// State gets the backing state store.
	State() statestore.StateStore

	// Chain gets the simulated chain context.
	Chain() *itypes.ChainContext

	// Interceptor gets the cheat interceptor of this session.
	Interceptor() *cheat.Interceptor

	// Deploy deploys the given init code from sender with instant inclusion.
	Deploy(ctx context.Context, sender common.Address, initcode []byte, value *uint256.Int, gas uint64) (common.Address, *itypes.ExecutionResult, error)

	// Execute runs a call frame against the session state. Effects persist
	// unless the frame fails.
	Execute(ctx context.Context, frame itypes.CallFrame) (*itypes.ExecutionResult, error)

	// Call runs a read call against a disposable copy of the session state.
	// No state change is ever visible afterwards.
	Call(ctx context.Context, frame itypes.CallFrame) (*itypes.ExecutionResult, error)

	// ApplyTransaction validates and applies a signed transaction with
	// instant inclusion, advancing the simulated block.
	ApplyTransaction(ctx context.Context, tx *ethtypes.Transaction) (*itypes.ExecutionResult, error)

	// TouchClock moves the chain timestamp forward to now when it lags
	// behind. Cheat-set timestamps in the future are left alone.
	TouchClock(now uint64)

	// Snapshot takes a snapshot of the session state.
	Snapshot() uint64

	// Revert restores a previously taken snapshot.
	Revert(id uint64) error

	// Fork creates an independent session sharing frozen history with this
	// one: a state copy, a chain context copy and a fresh interceptor.
	Fork() (Backend, error)

	// Shutdown safely shuts the backend down.
	Shutdown()
}
