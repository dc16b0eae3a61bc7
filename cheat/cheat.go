package cheat

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
	"github.com/holiman/uint256"
	logging "github.com/ipfs/go-log"
	itypes "github.com/wcgcyx/crucible/types"
)

// Logger
var log = logging.Logger("cheat")

// Kind is the recognized set of cheat directive kinds.
type Kind byte

const (
	// SetBalance forces the balance of an account.
	SetBalance Kind = iota

	// SetNonce forces the nonce of an account.
	SetNonce

	// SetCode forces the code of an account.
	SetCode

	// SetStorage forces a storage slot of an account.
	SetStorage

	// SetTimestamp rolls the simulated clock.
	SetTimestamp

	// SetBlockNumber rolls the simulated block number.
	SetBlockNumber

	// ImpersonateSender overrides msg.sender of a call.
	ImpersonateSender

	// ExpectRevert expects the next call to revert with a matching reason.
	ExpectRevert

	// ExpectRevertAny expects the next call to revert with any reason.
	ExpectRevertAny

	// RecordLogs starts recording emitted logs.
	RecordLogs

	// TakeSnapshot takes a state snapshot.
	TakeSnapshot

	// RevertToSnapshot restores a previously taken snapshot.
	RevertToSnapshot

	kindCount
)

// Scope determines how long a directive stays in effect.
type Scope byte

const (
	// ScopeNextCall applies to the very next call only.
	ScopeNextCall Scope = iota

	// ScopeUntilCleared applies until explicitly cleared.
	ScopeUntilCleared
)

// Directive is a tagged out-of-band command altering simulated state or
// expectations. Directives are test-local, they die with the test's snapshot.
type Directive struct {
	// Kind of this directive
	Kind Kind

	// Scope of this directive
	Scope Scope

	// Addr is the account the directive targets, if any
	Addr common.Address

	// Key is the storage key, for SetStorage
	Key common.Hash

	// Val is the storage value, for SetStorage
	Val common.Hash

	// Amount is the balance amount, for SetBalance
	Amount *uint256.Int

	// Num is the nonce, timestamp, block number or snapshot id
	Num uint64

	// Data is the code, for SetCode
	Data []byte

	// Reason is the expected revert reason, for ExpectRevert
	Reason string
}

// Interceptor is the privileged side channel holding cheat directives for
// one test. It is threaded through the call context explicitly, a fresh
// interceptor per test keeps concurrent test execution safe.
type Interceptor struct {
	nextCall   []Directive
	persistent []Directive

	pendingExpect *Directive
	satisfied     bool
	violation     string

	recording bool
	recorded  []*ethtypes.Log
}

// NewInterceptor creates an empty interceptor.
func NewInterceptor() *Interceptor {
	return &Interceptor{
		nextCall:   make([]Directive, 0),
		persistent: make([]Directive, 0),
		recorded:   make([]*ethtypes.Log, 0),
	}
}

// Install registers a directive. Installation fails with ErrUnsupportedCheat
// for an unrecognized kind and with ErrConflictingExpectation if a second
// revert expectation is installed before the first is consumed. TakeSnapshot
// is rejected too, a directive cannot carry the snapshot id back to the
// caller; snapshots go through the cheat contract or the interpreter API.
func (i *Interceptor) Install(d Directive) error {
	if d.Kind >= kindCount {
		return itypes.ErrUnsupportedCheat
	}
	switch d.Kind {
	case TakeSnapshot:
		return itypes.ErrUnsupportedCheat
	case ExpectRevert, ExpectRevertAny:
		if i.pendingExpect != nil {
			return itypes.ErrConflictingExpectation
		}
		pending := d
		i.pendingExpect = &pending
		log.Debugf("Installed revert expectation (reason %q)", d.Reason)
		return nil
	case RecordLogs:
		i.recording = true
		i.recorded = i.recorded[:0]
		return nil
	}
	if d.Scope == ScopeUntilCleared {
		i.persistent = append(i.persistent, d)
	} else {
		i.nextCall = append(i.nextCall, d)
	}
	return nil
}

// ConsumeNextCallDirectives returns the one-shot directives and discards them.
func (i *Interceptor) ConsumeNextCallDirectives() []Directive {
	res := i.nextCall
	i.nextCall = make([]Directive, 0)
	return res
}

// ActiveDirectives returns the until-cleared directives currently in effect.
func (i *Interceptor) ActiveDirectives() []Directive {
	res := make([]Directive, len(i.persistent))
	copy(res, i.persistent)
	return res
}

// Drop removes all persistent directives of the given kind.
func (i *Interceptor) Drop(kind Kind) {
	kept := i.persistent[:0]
	for _, d := range i.persistent {
		if d.Kind != kind {
			kept = append(kept, d)
		}
	}
	i.persistent = kept
}

// ClearScope drops every directive, expectation and recording. It is invoked
// when the owning test's snapshot is discarded.
func (i *Interceptor) ClearScope() {
	i.nextCall = i.nextCall[:0]
	i.persistent = i.persistent[:0]
	i.pendingExpect = nil
	i.satisfied = false
	i.violation = ""
	i.recording = false
	i.recorded = i.recorded[:0]
}

// ConsumeExpectation takes the pending revert expectation, if any.
func (i *Interceptor) ConsumeExpectation() *Directive {
	d := i.pendingExpect
	i.pendingExpect = nil
	return d
}

// HasPendingExpectation reports whether a revert expectation awaits a call.
func (i *Interceptor) HasPendingExpectation() bool {
	return i.pendingExpect != nil
}

// ExpectationMatches checks a frame result against the given expectation.
func ExpectationMatches(d *Directive, reverted bool, revertData []byte) bool {
	if !reverted {
		return false
	}
	if d.Kind == ExpectRevertAny {
		return true
	}
	return itypes.DecodeRevertReason(revertData) == d.Reason
}

// MarkSatisfied records that the pending expectation was met.
func (i *Interceptor) MarkSatisfied() {
	i.satisfied = true
}

// Satisfied reports whether a consumed expectation was met.
func (i *Interceptor) Satisfied() bool {
	return i.satisfied
}

// RecordViolation records a cheat violation with the given description.
// Only the first violation is kept.
func (i *Interceptor) RecordViolation(msg string) {
	if i.violation == "" {
		i.violation = msg
	}
}

// Violation returns the recorded cheat violation, empty if none.
func (i *Interceptor) Violation() string {
	return i.violation
}

// Recording reports whether log recording is active.
func (i *Interceptor) Recording() bool {
	return i.recording
}

// RecordLog appends a log to the recording buffer if recording is active.
func (i *Interceptor) RecordLog(l *ethtypes.Log) {
	if i.recording {
		i.recorded = append(i.recorded, l)
	}
}

// RecordedLogs returns the logs captured since record-logs was installed.
func (i *Interceptor) RecordedLogs() []*ethtypes.Log {
	res := make([]*ethtypes.Log, len(i.recorded))
	copy(res, i.recorded)
	return res
}
