package types

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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// CallKind is the kind of a call frame.
type CallKind byte

const (
	// NormalCall is a plain message call.
	NormalCall CallKind = iota

	// DelegateCall executes the target's code in the caller's context.
	DelegateCall

	// StaticCall is a read-only call, any state mutation fails.
	StaticCall
)

func (k CallKind) String() string {
	switch k {
	case NormalCall:
		return "call"
	case DelegateCall:
		return "delegatecall"
	case StaticCall:
		return "staticcall"
	}
	return "unknown"
}

// CallFrame is one call's execution context.
type CallFrame struct {
	// Caller of this frame
	Caller common.Address

	// Target of this frame
	Target common.Address

	// Input data of this frame
	Input []byte

	// Value transferred in this frame
	Value *uint256.Int

	// Gas limit of this frame
	Gas uint64

	// Kind of this frame
	Kind CallKind

	// Depth of this frame in the frame tree
	Depth int
}

// ExecutionResult is the outcome of executing a single call frame tree.
type ExecutionResult struct {
	// Flag indicating if execution succeeded
	Success bool

	// Return data on success, revert data on revert
	ReturnData []byte

	// Gas used by the frame tree
	GasUsed uint64

	// Logs emitted during execution, ordered by emission
	Logs []*ethtypes.Log

	// Execution error, nil on success
	Err error
}

// Reverted returns true if the execution failed with an explicit revert
// as opposed to an internal error such as out of gas.
func (r *ExecutionResult) Reverted() bool {
	return !r.Success && r.Err == ErrExecutionReverted
}

// RevertReason returns the decoded revert reason if present.
func (r *ExecutionResult) RevertReason() string {
	if r.Success {
		return ""
	}
	return DecodeRevertReason(r.ReturnData)
}

// ChainContext is the simulated chain environment execution runs against.
type ChainContext struct {
	// Chain id used for signing and the CHAINID opcode
	ChainID *big.Int

	// Current simulated timestamp
	Timestamp uint64

	// Current simulated block number
	BlockNumber uint64

	// Transaction origin
	Origin common.Address

	// Block gas limit
	GasLimit uint64

	// Base fee of the simulated block
	BaseFee *uint256.Int
}

// Copy creates a deep copy of the chain context.
func (c *ChainContext) Copy() *ChainContext {
	res := &ChainContext{
		Timestamp:   c.Timestamp,
		BlockNumber: c.BlockNumber,
		Origin:      c.Origin,
		GasLimit:    c.GasLimit,
	}
	if c.ChainID != nil {
		res.ChainID = new(big.Int).Set(c.ChainID)
	}
	if c.BaseFee != nil {
		res.BaseFee = new(uint256.Int).Set(c.BaseFee)
	}
	return res
}

// TransactionIntent is a call to be turned into a signed transaction at broadcast time.
type TransactionIntent struct {
	// Sender of the transaction
	Sender common.Address

	// Target of the transaction, nil for contract creation
	Target *common.Address

	// Call data
	Data []byte

	// Value transferred
	Value *uint256.Int

	// Gas limit
	Gas uint64
}

// CaseSource tags where a fuzz case came from.
type CaseSource byte

const (
	// SourceBoundary is a deterministic boundary value draw.
	SourceBoundary CaseSource = iota

	// SourceRandom is a pseudo-random draw.
	SourceRandom

	// SourceShrink is a shrink candidate derived from a failing case.
	SourceShrink

	// SourceReplay is a replay of a previously recorded case.
	SourceReplay
)

func (s CaseSource) String() string {
	switch s {
	case SourceBoundary:
		return "boundary"
	case SourceRandom:
		return "random"
	case SourceShrink:
		return "shrink"
	case SourceReplay:
		return "replay"
	}
	return "unknown"
}

// FuzzCase is a concrete assignment of values to a test's declared parameters.
type FuzzCase struct {
	// Concrete values assigned to the parameters, in declaration order
	Values []interface{}

	// Source of this case
	Source CaseSource

	// Seed this case was derived from, sufficient for replay
	Seed int64

	// Index of this case within its run
	Index int
}

// TestOutcome is the terminal verdict of a single test.
type TestOutcome byte

const (
	// OutcomePassed indicates the test passed.
	OutcomePassed TestOutcome = iota

	// OutcomeFailedAssertion indicates an assertion failed.
	OutcomeFailedAssertion

	// OutcomeFailedRevert indicates an unexpected revert.
	OutcomeFailedRevert

	// OutcomeFailedCheat indicates a cheat expectation was violated.
	OutcomeFailedCheat

	// OutcomeErrored indicates the test could not execute properly.
	OutcomeErrored
)

func (o TestOutcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeFailedAssertion:
		return "failed (assertion)"
	case OutcomeFailedRevert:
		return "failed (unexpected revert)"
	case OutcomeFailedCheat:
		return "failed (cheat violation)"
	case OutcomeErrored:
		return "errored"
	}
	return "unknown"
}

// Failed returns true for any non-passing, non-errored outcome.
func (o TestOutcome) Failed() bool {
	return o == OutcomeFailedAssertion || o == OutcomeFailedRevert || o == OutcomeFailedCheat
}

// TestResult is the per-test entry of a run's verdict list.
type TestResult struct {
	// Name of the test
	Name string

	// Outcome of the test
	Outcome TestOutcome

	// Gas used by the test body
	GasUsed uint64

	// Reason describes a failure or error in more detail
	Reason string

	// Counterexample is the minimal failing case found by shrinking,
	// only set for fuzz tests that failed
	Counterexample *FuzzCase

	// Seed used for the fuzz run, only set for fuzz tests
	Seed int64
}
