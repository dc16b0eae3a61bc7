package statestore

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
)

// StateStore is an in-memory ledger of accounts with copy-on-write snapshotting.
//
// Snapshots form a tree. Restore always moves to an ancestor of the current
// head (or the head's own snapshot), never sideways, which keeps only the
// active-path deltas live and allows pruning of abandoned branches.
type StateStore interface {
	// Snapshot freezes the current state and returns an identifier for it. O(1).
	Snapshot() uint64

	// Restore discards all deltas made after the given snapshot was taken.
	// It fails with ErrUnknownSnapshot if the snapshot was already discarded.
	Restore(id uint64) error

	// Checkpoint marks the current position of the frame journal.
	Checkpoint() int

	// RevertToCheckpoint undoes every write made after the given checkpoint,
	// giving call frames all-or-nothing semantics.
	RevertToCheckpoint(checkpoint int)

	// Exist reports whether the given account address exists.
	// Notably this also returns true for self-destructed accounts.
	Exist(addr common.Address) bool

	// CreateAccount explicitly creates the account if it does not exist yet.
	CreateAccount(addr common.Address)

	// GetBalance retrieves the balance of the given address or 0 if absent.
	GetBalance(addr common.Address) *uint256.Int

	// SetBalance sets the balance of the given address.
	SetBalance(addr common.Address, amt *uint256.Int)

	// AddBalance adds amount to the balance of the given address.
	AddBalance(addr common.Address, amt *uint256.Int)

	// SubBalance subtracts amount from the balance of the given address.
	SubBalance(addr common.Address, amt *uint256.Int)

	// Transfer moves amount from one account to the other. It fails with
	// ErrInsufficientBalance without any partial transfer.
	Transfer(from common.Address, to common.Address, amt *uint256.Int) error

	// GetNonce retrieves the nonce of the given address or 0 if absent.
	GetNonce(addr common.Address) uint64

	// SetNonce sets the nonce of the given address.
	SetNonce(addr common.Address, nonce uint64)

	// GetCode gets the code of the given address.
	GetCode(addr common.Address) []byte

	// GetCodeHash gets the code hash of the given address.
	GetCodeHash(addr common.Address) common.Hash

	// GetCodeSize gets the size of the code of the given address.
	GetCodeSize(addr common.Address) int

	// SetCode sets the code of the given address.
	SetCode(addr common.Address, code []byte)

	// GetState retrieves a value from the given account's storage, zero if unset.
	GetState(addr common.Address, key common.Hash) common.Hash

	// SetState sets the value associated with the given storage key.
	SetState(addr common.Address, key common.Hash, val common.Hash)

	// SelfDestruct zeroes the account's code, storage and balance.
	// The address stays resolvable until the state is discarded.
	SelfDestruct(addr common.Address)

	// HasSelfDestructed checks if the given account was self-destructed.
	HasSelfDestructed(addr common.Address) bool

	// AddLog appends a log to the ordered log list.
	AddLog(l *ethtypes.Log)

	// Logs returns the logs emitted since the last restored snapshot point.
	Logs() []*ethtypes.Log

	// Copy creates an independent state sharing frozen ancestor layers with
	// this one. Writes on either side are invisible to the other.
	Copy() StateStore
}

// ExportStore persists explicitly named snapshots of a state store on disk.
type ExportStore interface {
	// Export persists the flattened ledger of the given state under name.
	Export(ctx context.Context, name string, s StateStore) error

	// Import loads a previously exported ledger into a fresh state store.
	Import(ctx context.Context, name string) (StateStore, error)

	// List lists the names of all exported snapshots.
	List(ctx context.Context) ([]string, error)

	// Delete removes an exported snapshot.
	Delete(ctx context.Context, name string) error

	// Shutdown safely shuts the export store down.
	Shutdown()
}
