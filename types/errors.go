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
	"errors"
)

// State errors. Always fatal to the current frame, never silently retried.
var (
	// ErrUnknownSnapshot is returned when restoring a snapshot that was already discarded.
	ErrUnknownSnapshot = errors.New("unknown snapshot")

	// ErrInsufficientBalance is returned when a transfer exceeds the sender's balance.
	ErrInsufficientBalance = errors.New("insufficient balance for transfer")
)

// Execution errors. Propagated up the call frame tree.
var (
	// ErrOutOfGas is returned when execution would exceed the frame's gas limit.
	ErrOutOfGas = errors.New("out of gas")

	// ErrStateMutationInStaticContext is returned when a static call attempts a write.
	ErrStateMutationInStaticContext = errors.New("state mutation in static context")

	// ErrExecutionReverted is returned when execution hits an explicit revert.
	ErrExecutionReverted = errors.New("execution reverted")

	// ErrInvalidOpcode is returned when execution hits an undefined opcode.
	ErrInvalidOpcode = errors.New("invalid opcode")

	// ErrStackUnderflow is returned when an operation pops an empty stack.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrStackOverflow is returned when the stack exceeds its limit.
	ErrStackOverflow = errors.New("stack overflow")

	// ErrInvalidJump is returned when a jump targets a non JUMPDEST position.
	ErrInvalidJump = errors.New("invalid jump destination")

	// ErrCallDepthExceeded is returned when the frame tree grows too deep.
	ErrCallDepthExceeded = errors.New("max call depth exceeded")

	// ErrContractCollision is returned when a create targets an occupied address.
	ErrContractCollision = errors.New("contract address collision")
)

// Cheat errors. Fail the directive's installation, never corrupt state.
var (
	// ErrConflictingExpectation is returned when a second expect-revert is
	// installed before the first is consumed.
	ErrConflictingExpectation = errors.New("conflicting revert expectation")

	// ErrUnsupportedCheat is returned for an unrecognized directive kind.
	ErrUnsupportedCheat = errors.New("unsupported cheat directive")
)

// Broadcast errors. Halt the remaining sequence for the run.
var (
	// ErrBroadcastDisabled is returned when commit is invoked without the broadcast flag.
	ErrBroadcastDisabled = errors.New("broadcast flag not set")

	// ErrSubmissionHalted wraps the submission failure that stopped a commit partway.
	ErrSubmissionHalted = errors.New("submission halted")
)
