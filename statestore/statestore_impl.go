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
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	logging "github.com/ipfs/go-log"
	itypes "github.com/wcgcyx/crucible/types"
)

// Logger
var log = logging.Logger("statestore")

// layer is one node of the copy-on-write snapshot tree. A layer is mutable
// only while it is the head of some store, it is frozen the moment a child
// is stacked on top of it and never written again.
type layer struct {
	parent     *layer
	accounts   map[common.Address]*accountObject
	id         uint64
	registered bool
	logLen     int
}

func newLayer(parent *layer) *layer {
	return &layer{
		parent:   parent,
		accounts: make(map[common.Address]*accountObject),
	}
}

// stateStoreImpl implements StateStore.
type stateStoreImpl struct {
	head      *layer
	snapshots map[uint64]*layer
	nextID    uint64

	logs    []*ethtypes.Log
	journal []func()
}

// NewStateStoreImpl creates a new empty StateStore.
func NewStateStoreImpl() StateStore {
	return &stateStoreImpl{
		head:      newLayer(nil),
		snapshots: make(map[uint64]*layer),
		logs:      make([]*ethtypes.Log, 0),
		journal:   make([]func(), 0),
	}
}

// getAccount finds the newest version of the account along the active path.
func (s *stateStoreImpl) getAccount(addr common.Address) *accountObject {
	for l := s.head; l != nil; l = l.parent {
		if obj, ok := l.accounts[addr]; ok {
			return obj
		}
	}
	return nil
}

// mutateAccount returns a writable account object in the head layer,
// copying it out of a frozen ancestor on first write.
func (s *stateStoreImpl) mutateAccount(addr common.Address) *accountObject {
	if obj, ok := s.head.accounts[addr]; ok {
		return obj
	}
	var obj *accountObject
	if prev := s.getAccount(addr); prev != nil {
		obj = prev.deepCopy()
	} else {
		obj = newAccountObject()
	}
	s.head.accounts[addr] = obj
	return obj
}

// record appends a revert function to the frame journal.
func (s *stateStoreImpl) record(revert func()) {
	s.journal = append(s.journal, revert)
}

// Snapshot freezes the current state and returns an identifier for it.
func (s *stateStoreImpl) Snapshot() uint64 {
	s.nextID++
	id := s.nextID
	s.head.id = id
	s.head.registered = true
	s.head.logLen = len(s.logs)
	s.snapshots[id] = s.head
	s.head = newLayer(s.snapshots[id])
	log.Debugf("Snapshot taken: %v", id)
	return id
}

// Restore discards all deltas made after the given snapshot was taken.
func (s *stateStoreImpl) Restore(id uint64) error {
	target, ok := s.snapshots[id]
	if !ok {
		return itypes.ErrUnknownSnapshot
	}
	found := false
	for l := s.head; l != nil; l = l.parent {
		if l == target {
			found = true
			break
		}
	}
	if !found {
		return itypes.ErrUnknownSnapshot
	}
	// Prune: only snapshots on the restored path stay live.
	keep := make(map[uint64]*layer)
	for l := target; l != nil; l = l.parent {
		if l.registered {
			keep[l.id] = l
		}
	}
	s.snapshots = keep
	s.head = newLayer(target)
	s.logs = s.logs[:target.logLen]
	s.journal = s.journal[:0]
	log.Debugf("Restored snapshot: %v", id)
	return nil
}

// Checkpoint marks the current position of the frame journal.
func (s *stateStoreImpl) Checkpoint() int {
	return len(s.journal)
}

// RevertToCheckpoint undoes every write made after the given checkpoint.
func (s *stateStoreImpl) RevertToCheckpoint(checkpoint int) {
	if checkpoint >= len(s.journal) {
		// Stale checkpoint, the journal was already discarded by a restore.
		return
	}
	for i := len(s.journal) - 1; i >= checkpoint; i-- {
		s.journal[i]()
	}
	s.journal = s.journal[:checkpoint]
}

// Exist reports whether the given account address exists.
func (s *stateStoreImpl) Exist(addr common.Address) bool {
	obj := s.getAccount(addr)
	return obj != nil && obj.exists
}

// CreateAccount explicitly creates the account if it does not exist yet.
func (s *stateStoreImpl) CreateAccount(addr common.Address) {
	if s.Exist(addr) {
		return
	}
	obj := s.mutateAccount(addr)
	obj.exists = true
	s.record(func() {
		s.mutateAccount(addr).exists = false
	})
}

// GetBalance retrieves the balance of the given address or 0 if absent.
func (s *stateStoreImpl) GetBalance(addr common.Address) *uint256.Int {
	obj := s.getAccount(addr)
	if obj == nil || !obj.exists {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(obj.balance)
}

// SetBalance sets the balance of the given address.
func (s *stateStoreImpl) SetBalance(addr common.Address, amt *uint256.Int) {
	prevExists := s.Exist(addr)
	prev := s.GetBalance(addr)
	obj := s.mutateAccount(addr)
	obj.exists = true
	obj.balance = new(uint256.Int).Set(amt)
	s.record(func() {
		o := s.mutateAccount(addr)
		o.balance = prev
		o.exists = prevExists
	})
}

// AddBalance adds amount to the balance of the given address.
func (s *stateStoreImpl) AddBalance(addr common.Address, amt *uint256.Int) {
	res := new(uint256.Int).Add(s.GetBalance(addr), amt)
	s.SetBalance(addr, res)
}

// SubBalance subtracts amount from the balance of the given address.
func (s *stateStoreImpl) SubBalance(addr common.Address, amt *uint256.Int) {
	res := new(uint256.Int).Sub(s.GetBalance(addr), amt)
	s.SetBalance(addr, res)
}

// Transfer moves amount from one account to the other, no partial transfer.
func (s *stateStoreImpl) Transfer(from common.Address, to common.Address, amt *uint256.Int) error {
	if s.GetBalance(from).Lt(amt) {
		return itypes.ErrInsufficientBalance
	}
	s.SubBalance(from, amt)
	s.AddBalance(to, amt)
	return nil
}

// GetNonce retrieves the nonce of the given address or 0 if absent.
func (s *stateStoreImpl) GetNonce(addr common.Address) uint64 {
	obj := s.getAccount(addr)
	if obj == nil || !obj.exists {
		return 0
	}
	return obj.nonce
}

// SetNonce sets the nonce of the given address.
func (s *stateStoreImpl) SetNonce(addr common.Address, nonce uint64) {
	prevExists := s.Exist(addr)
	prev := s.GetNonce(addr)
	obj := s.mutateAccount(addr)
	obj.exists = true
	obj.nonce = nonce
	s.record(func() {
		o := s.mutateAccount(addr)
		o.nonce = prev
		o.exists = prevExists
	})
}

// GetCode gets the code of the given address.
func (s *stateStoreImpl) GetCode(addr common.Address) []byte {
	obj := s.getAccount(addr)
	if obj == nil || !obj.exists {
		return nil
	}
	return obj.code
}

// GetCodeHash gets the code hash of the given address.
func (s *stateStoreImpl) GetCodeHash(addr common.Address) common.Hash {
	obj := s.getAccount(addr)
	if obj == nil || !obj.exists {
		return common.Hash{}
	}
	return obj.codeHash
}

// GetCodeSize gets the size of the code of the given address.
func (s *stateStoreImpl) GetCodeSize(addr common.Address) int {
	return len(s.GetCode(addr))
}

// SetCode sets the code of the given address. Code is immutable once set
// in normal execution, overwriting it is reserved for cheats and deployment.
func (s *stateStoreImpl) SetCode(addr common.Address, code []byte) {
	prevExists := s.Exist(addr)
	prevCode := s.GetCode(addr)
	prevHash := s.GetCodeHash(addr)
	obj := s.mutateAccount(addr)
	obj.exists = true
	obj.code = code
	obj.codeHash = crypto.Keccak256Hash(code)
	s.record(func() {
		o := s.mutateAccount(addr)
		o.code = prevCode
		if prevExists {
			o.codeHash = prevHash
		} else {
			o.codeHash = crypto.Keccak256Hash(nil)
		}
		o.exists = prevExists
	})
}

// GetState retrieves a value from the given account's storage, zero if unset.
func (s *stateStoreImpl) GetState(addr common.Address, key common.Hash) common.Hash {
	obj := s.getAccount(addr)
	if obj == nil || !obj.exists {
		return common.Hash{}
	}
	return obj.storage[key]
}

// SetState sets the value associated with the given storage key.
func (s *stateStoreImpl) SetState(addr common.Address, key common.Hash, val common.Hash) {
	prevExists := s.Exist(addr)
	prev := s.GetState(addr, key)
	obj := s.mutateAccount(addr)
	obj.exists = true
	obj.storage[key] = val
	s.record(func() {
		o := s.mutateAccount(addr)
		o.storage[key] = prev
		o.exists = prevExists
	})
}

// SelfDestruct zeroes the account's code, storage and balance.
func (s *stateStoreImpl) SelfDestruct(addr common.Address) {
	var prev *accountObject
	if cur := s.getAccount(addr); cur != nil {
		prev = cur.deepCopy()
	}
	obj := s.mutateAccount(addr)
	obj.exists = true
	obj.balance = uint256.NewInt(0)
	obj.code = nil
	obj.codeHash = crypto.Keccak256Hash(nil)
	obj.storage = make(map[common.Hash]common.Hash)
	obj.selfDestructed = true
	s.record(func() {
		if prev != nil {
			s.head.accounts[addr] = prev.deepCopy()
		} else {
			o := newAccountObject()
			o.exists = false
			s.head.accounts[addr] = o
		}
	})
}

// HasSelfDestructed checks if the given account was self-destructed.
func (s *stateStoreImpl) HasSelfDestructed(addr common.Address) bool {
	obj := s.getAccount(addr)
	return obj != nil && obj.selfDestructed
}

// AddLog appends a log to the ordered log list.
func (s *stateStoreImpl) AddLog(l *ethtypes.Log) {
	s.logs = append(s.logs, l)
	s.record(func() {
		s.logs = s.logs[:len(s.logs)-1]
	})
}

// Logs returns the logs emitted since the last restored snapshot point.
func (s *stateStoreImpl) Logs() []*ethtypes.Log {
	res := make([]*ethtypes.Log, len(s.logs))
	copy(res, s.logs)
	return res
}

// Copy creates an independent state sharing frozen ancestor layers.
// The pending frame journal does not carry over, copy between executions.
func (s *stateStoreImpl) Copy() StateStore {
	frozen := s.head
	frozen.logLen = len(s.logs)
	s.head = newLayer(frozen)
	snapshots := make(map[uint64]*layer, len(s.snapshots))
	for id, l := range s.snapshots {
		snapshots[id] = l
	}
	logs := make([]*ethtypes.Log, len(s.logs))
	copy(logs, s.logs)
	return &stateStoreImpl{
		head:      newLayer(frozen),
		snapshots: snapshots,
		nextID:    s.nextID,
		logs:      logs,
		journal:   make([]func(), 0),
	}
}

// flatten resolves the newest version of every account along the active path.
func (s *stateStoreImpl) flatten() map[common.Address]*accountObject {
	res := make(map[common.Address]*accountObject)
	for l := s.head; l != nil; l = l.parent {
		for addr, obj := range l.accounts {
			if _, ok := res[addr]; !ok {
				res[addr] = obj
			}
		}
	}
	for addr, obj := range res {
		if !obj.exists {
			delete(res, addr)
		}
	}
	return res
}
