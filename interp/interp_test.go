package interp

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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/wcgcyx/crucible/cheat"
	"github.com/wcgcyx/crucible/statestore"
	itypes "github.com/wcgcyx/crucible/types"
)

var (
	testSender   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testContract = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testOther    = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
)

func mkInterp(t *testing.T) (*Interpreter, statestore.StateStore, *cheat.Interceptor) {
	store := statestore.NewStateStoreImpl()
	chain := &itypes.ChainContext{
		ChainID:     big.NewInt(1337),
		Timestamp:   1000,
		BlockNumber: 10,
		Origin:      testSender,
		GasLimit:    30000000,
	}
	ic := cheat.NewInterceptor()
	in, err := NewInterpreter(store, chain, ic)
	assert.Nil(t, err)
	return in, store, ic
}

func mkFrame(target common.Address, input []byte) itypes.CallFrame {
	return itypes.CallFrame{
		Caller: testSender,
		Target: target,
		Input:  input,
		Gas:    1000000,
		Kind:   itypes.NormalCall,
	}
}

func cat(parts ...[]byte) []byte {
	res := []byte{}
	for _, p := range parts {
		res = append(res, p...)
	}
	return res
}

// trailingDataCode builds code that copies the data appended after the
// 14-byte prefix into memory and finishes with op (RETURN or REVERT).
func trailingDataCode(op OpCode, data []byte) []byte {
	dl := len(data)
	prefix := []byte{
		byte(PUSH2), byte(dl >> 8), byte(dl),
		byte(PUSH1), 14,
		byte(PUSH1), 0,
		byte(CODECOPY),
		byte(PUSH2), byte(dl >> 8), byte(dl),
		byte(PUSH1), 0,
		byte(op),
	}
	return append(prefix, data...)
}

// callCode builds a CALL to target with calldata taken from memory.
// The selector word is expected to already sit at memory offset 0.
func callCode(target common.Address, inOff byte, inSize byte) []byte {
	return cat(
		[]byte{byte(PUSH1), 0, byte(PUSH1), 0},
		[]byte{byte(PUSH1), inSize, byte(PUSH1), inOff},
		[]byte{byte(PUSH1), 0},
		append([]byte{byte(PUSH1) + 19}, target.Bytes()...), // PUSH20
		[]byte{byte(PUSH2), 0xff, 0xff},
		[]byte{byte(CALL)},
	)
}

// storeSelector builds code placing a 4-byte selector at memory 28..32.
func storeSelector(sig string) []byte {
	sel := crypto.Keccak256([]byte(sig))[:4]
	return cat(
		append([]byte{byte(PUSH1) + 3}, sel...), // PUSH4
		[]byte{byte(PUSH1), 0, byte(MSTORE)},
	)
}

func TestExecuteDeterministic(t *testing.T) {
	// identical frame, state and directives twice, the full results must match
	code := []byte{
		byte(PUSH1), 7,
		byte(PUSH1), 1,
		byte(SSTORE),
		byte(PUSH1), 42,
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 0xaa,
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(LOG1),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	run := func() *itypes.ExecutionResult {
		in, store, ic := mkInterp(t)
		store.SetCode(testContract, code)
		assert.Nil(t, ic.Install(cheat.Directive{
			Kind:   cheat.SetBalance,
			Scope:  cheat.ScopeNextCall,
			Addr:   testSender,
			Amount: uint256.NewInt(1000),
		}))
		frame := mkFrame(testContract, []byte{1, 2, 3})
		frame.Value = uint256.NewInt(5)
		return in.Execute(frame)
	}
	a := run()
	b := run()
	assert.True(t, a.Success)
	assert.Equal(t, uint256.NewInt(42).Bytes32(), [32]byte(a.ReturnData))
	assert.Equal(t, 1, len(a.Logs))
	assert.Equal(t, a, b)
}

func TestArithmeticReturn(t *testing.T) {
	in, store, _ := mkInterp(t)
	// 5 + 3, returned as one word
	code := []byte{
		byte(PUSH1), 5,
		byte(PUSH1), 3,
		byte(ADD),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	store.SetCode(testContract, code)

	res := in.Execute(mkFrame(testContract, nil))
	assert.True(t, res.Success)
	assert.Equal(t, uint256.NewInt(8).Bytes32(), [32]byte(res.ReturnData))
	assert.True(t, res.GasUsed > 0)
	assert.True(t, res.GasUsed < 1000000)
}

func TestStorageRoundTrip(t *testing.T) {
	in, store, _ := mkInterp(t)
	// store 42 at slot 1, read it back and return it
	code := []byte{
		byte(PUSH1), 42,
		byte(PUSH1), 1,
		byte(SSTORE),
		byte(PUSH1), 1,
		byte(SLOAD),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	store.SetCode(testContract, code)

	res := in.Execute(mkFrame(testContract, nil))
	assert.True(t, res.Success)
	assert.Equal(t, uint256.NewInt(42).Bytes32(), [32]byte(res.ReturnData))
	assert.Equal(t, common.BigToHash(big.NewInt(42)), store.GetState(testContract, common.BigToHash(big.NewInt(1))))
}

func TestRevertWithReason(t *testing.T) {
	in, store, _ := mkInterp(t)
	reason := itypes.EncodeRevertReason("bad input")
	store.SetCode(testContract, trailingDataCode(REVERT, reason))

	res := in.Execute(mkFrame(testContract, nil))
	assert.False(t, res.Success)
	assert.True(t, res.Reverted())
	assert.Equal(t, "bad input", res.RevertReason())
}

func TestRevertRollsBackWrites(t *testing.T) {
	in, store, _ := mkInterp(t)
	// write a slot then revert
	code := []byte{
		byte(PUSH1), 42,
		byte(PUSH1), 1,
		byte(SSTORE),
		byte(PUSH1), 0,
		byte(PUSH1), 0,
		byte(REVERT),
	}
	store.SetCode(testContract, code)

	res := in.Execute(mkFrame(testContract, nil))
	assert.False(t, res.Success)
	assert.Equal(t, common.Hash{}, store.GetState(testContract, common.BigToHash(big.NewInt(1))))
}

func TestOutOfGasConsumesEverything(t *testing.T) {
	in, store, _ := mkInterp(t)
	// infinite loop
	code := []byte{
		byte(JUMPDEST),
		byte(PUSH1), 0,
		byte(JUMP),
	}
	store.SetCode(testContract, code)

	frame := mkFrame(testContract, nil)
	frame.Gas = 10000
	res := in.Execute(frame)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, itypes.ErrOutOfGas)
	assert.Equal(t, uint64(10000), res.GasUsed)
}

func TestInvalidJump(t *testing.T) {
	in, store, _ := mkInterp(t)
	// jumps into a push immediate
	code := []byte{
		byte(PUSH1), 1,
		byte(JUMP),
	}
	store.SetCode(testContract, code)

	res := in.Execute(mkFrame(testContract, nil))
	assert.ErrorIs(t, res.Err, itypes.ErrInvalidJump)
}

func TestStackUnderflow(t *testing.T) {
	in, store, _ := mkInterp(t)
	store.SetCode(testContract, []byte{byte(ADD)})

	res := in.Execute(mkFrame(testContract, nil))
	assert.ErrorIs(t, res.Err, itypes.ErrStackUnderflow)
}

func TestInvalidOpcode(t *testing.T) {
	in, store, _ := mkInterp(t)
	store.SetCode(testContract, []byte{0xfe})

	res := in.Execute(mkFrame(testContract, nil))
	assert.ErrorIs(t, res.Err, itypes.ErrInvalidOpcode)
}

func TestStaticCallRejectsWrites(t *testing.T) {
	in, store, _ := mkInterp(t)
	code := []byte{
		byte(PUSH1), 42,
		byte(PUSH1), 1,
		byte(SSTORE),
	}
	store.SetCode(testContract, code)

	frame := mkFrame(testContract, nil)
	frame.Kind = itypes.StaticCall
	res := in.Execute(frame)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, itypes.ErrStateMutationInStaticContext)
	assert.Equal(t, common.Hash{}, store.GetState(testContract, common.BigToHash(big.NewInt(1))))
}

func TestPlainValueTransfer(t *testing.T) {
	in, store, _ := mkInterp(t)
	store.SetBalance(testSender, uint256.NewInt(1000))

	frame := mkFrame(testOther, nil)
	frame.Value = uint256.NewInt(400)
	res := in.Execute(frame)
	assert.True(t, res.Success)
	assert.Equal(t, uint64(0), res.GasUsed)
	assert.Equal(t, uint256.NewInt(600), store.GetBalance(testSender))
	assert.Equal(t, uint256.NewInt(400), store.GetBalance(testOther))
}

func TestTransferInsufficientBalance(t *testing.T) {
	in, store, _ := mkInterp(t)
	store.SetBalance(testSender, uint256.NewInt(10))

	frame := mkFrame(testOther, nil)
	frame.Value = uint256.NewInt(400)
	res := in.Execute(frame)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, itypes.ErrInsufficientBalance)
	assert.Equal(t, uint256.NewInt(10), store.GetBalance(testSender))
}

func TestChildCallRevertIsolated(t *testing.T) {
	in, store, _ := mkInterp(t)
	// child writes a slot then reverts
	childCode := []byte{
		byte(PUSH1), 42,
		byte(PUSH1), 1,
		byte(SSTORE),
		byte(PUSH1), 0,
		byte(PUSH1), 0,
		byte(REVERT),
	}
	store.SetCode(testOther, childCode)
	// parent calls child, writes the call's success flag to slot 0 and stops
	parentCode := cat(
		callCode(testOther, 0, 0),
		[]byte{byte(PUSH1), 0, byte(SSTORE)},
	)
	store.SetCode(testContract, parentCode)

	res := in.Execute(mkFrame(testContract, nil))
	assert.True(t, res.Success)
	// parent saw failure, child write rolled back
	assert.Equal(t, common.Hash{}, store.GetState(testContract, common.Hash{}))
	assert.Equal(t, common.Hash{}, store.GetState(testOther, common.BigToHash(big.NewInt(1))))
}

func TestEmittedLogsCollected(t *testing.T) {
	in, store, _ := mkInterp(t)
	code := []byte{
		byte(PUSH1), 7, // topic
		byte(PUSH1), 0, // size
		byte(PUSH1), 0, // offset
		byte(LOG1),
	}
	store.SetCode(testContract, code)

	res := in.Execute(mkFrame(testContract, nil))
	assert.True(t, res.Success)
	assert.Equal(t, 1, len(res.Logs))
	assert.Equal(t, testContract, res.Logs[0].Address)
	assert.Equal(t, common.BigToHash(big.NewInt(7)), res.Logs[0].Topics[0])
}

func TestCheatDealDirect(t *testing.T) {
	in, store, _ := mkInterp(t)
	sel := crypto.Keccak256([]byte("deal(address,uint256)"))[:4]
	arg1 := common.LeftPadBytes(testOther.Bytes(), 32)
	arg2 := common.BigToHash(big.NewInt(777)).Bytes()
	input := cat(sel, arg1, arg2)

	res := in.Execute(mkFrame(cheat.ContractAddress, input))
	assert.True(t, res.Success)
	assert.Equal(t, uint64(0), res.GasUsed)
	assert.Equal(t, uint256.NewInt(777), store.GetBalance(testOther))
}

func TestCheatUnknownSelectorReverts(t *testing.T) {
	in, _, ic := mkInterp(t)
	res := in.Execute(mkFrame(cheat.ContractAddress, []byte{0xde, 0xad, 0xbe, 0xef}))
	assert.False(t, res.Success)
	assert.True(t, res.Reverted())
	assert.NotEmpty(t, ic.Violation())
}

func TestExpectRevertSatisfied(t *testing.T) {
	in, store, ic := mkInterp(t)
	// child always reverts
	store.SetCode(testOther, []byte{byte(PUSH1), 0, byte(PUSH1), 0, byte(REVERT)})
	// parent arms expectRevert via the cheat contract, then calls the child
	parentCode := cat(
		storeSelector("expectRevert()"),
		callCode(cheat.ContractAddress, 28, 4),
		[]byte{byte(POP)},
		callCode(testOther, 0, 0),
		[]byte{byte(PUSH1), 0, byte(SSTORE)},
	)
	store.SetCode(testContract, parentCode)

	res := in.Execute(mkFrame(testContract, nil))
	assert.True(t, res.Success)
	assert.True(t, ic.Satisfied())
	assert.Empty(t, ic.Violation())
	// the judged call reported success to the parent
	assert.Equal(t, common.BigToHash(big.NewInt(1)), store.GetState(testContract, common.Hash{}))
}

func TestExpectRevertViolated(t *testing.T) {
	in, store, ic := mkInterp(t)
	// child succeeds
	store.SetCode(testOther, []byte{byte(STOP)})
	parentCode := cat(
		storeSelector("expectRevert()"),
		callCode(cheat.ContractAddress, 28, 4),
		[]byte{byte(POP)},
		callCode(testOther, 0, 0),
		[]byte{byte(PUSH1), 0, byte(SSTORE)},
	)
	store.SetCode(testContract, parentCode)

	res := in.Execute(mkFrame(testContract, nil))
	assert.True(t, res.Success)
	assert.False(t, ic.Satisfied())
	assert.NotEmpty(t, ic.Violation())
	// the judged call reported failure to the parent
	assert.Equal(t, common.Hash{}, store.GetState(testContract, common.Hash{}))
}

func TestPrankOverridesChildCaller(t *testing.T) {
	in, store, _ := mkInterp(t)
	pranked := common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
	// child records its caller at slot 0
	store.SetCode(testOther, []byte{byte(CALLER), byte(PUSH1), 0, byte(SSTORE)})
	// parent pranks then calls the child
	prankArg := common.LeftPadBytes(pranked.Bytes(), 32)
	parentCode := cat(
		storeSelector("prank(address)"),
		append([]byte{byte(PUSH1) + 31}, prankArg...), // PUSH32
		[]byte{byte(PUSH1), 32, byte(MSTORE)},
		callCode(cheat.ContractAddress, 28, 36),
		[]byte{byte(POP)},
		callCode(testOther, 0, 0),
		[]byte{byte(POP)},
	)
	store.SetCode(testContract, parentCode)

	res := in.Execute(mkFrame(testContract, nil))
	assert.True(t, res.Success)
	assert.Equal(t, common.BytesToHash(pranked.Bytes()), store.GetState(testOther, common.Hash{}))
}

func TestImpersonationAppliesAtTopLevel(t *testing.T) {
	in, store, ic := mkInterp(t)
	store.SetCode(testContract, []byte{byte(CALLER), byte(PUSH1), 0, byte(SSTORE)})
	err := ic.Install(cheat.Directive{Kind: cheat.ImpersonateSender, Scope: cheat.ScopeNextCall, Addr: testOther})
	assert.Nil(t, err)

	res := in.Execute(mkFrame(testContract, nil))
	assert.True(t, res.Success)
	assert.Equal(t, common.BytesToHash(testOther.Bytes()), store.GetState(testContract, common.Hash{}))

	// one-shot, a second call sees the real sender
	res = in.Execute(mkFrame(testContract, nil))
	assert.True(t, res.Success)
	assert.Equal(t, common.BytesToHash(testSender.Bytes()), store.GetState(testContract, common.Hash{}))
}

func TestDeployAndCall(t *testing.T) {
	in, store, _ := mkInterp(t)
	// runtime code returns 42
	runtime := []byte{
		byte(PUSH1), 42,
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	initcode := trailingDataCode(RETURN, runtime)

	addr, res := in.Deploy(testSender, initcode, nil, 1000000)
	assert.True(t, res.Success)
	assert.Equal(t, runtime, store.GetCode(addr))
	assert.Equal(t, uint64(1), store.GetNonce(testSender))

	callRes := in.Execute(mkFrame(addr, nil))
	assert.True(t, callRes.Success)
	assert.Equal(t, uint256.NewInt(42).Bytes32(), [32]byte(callRes.ReturnData))
}

func TestDeployRevertedInitcode(t *testing.T) {
	in, store, _ := mkInterp(t)
	initcode := []byte{byte(PUSH1), 0, byte(PUSH1), 0, byte(REVERT)}

	addr, res := in.Deploy(testSender, initcode, nil, 1000000)
	assert.False(t, res.Success)
	assert.True(t, res.Reverted())
	assert.Equal(t, 0, store.GetCodeSize(addr))
	// sender nonce still advances
	assert.Equal(t, uint64(1), store.GetNonce(testSender))
}

func TestChainOpcodes(t *testing.T) {
	in, store, _ := mkInterp(t)
	// returns timestamp
	code := []byte{
		byte(TIMESTAMP),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	store.SetCode(testContract, code)

	res := in.Execute(mkFrame(testContract, nil))
	assert.True(t, res.Success)
	assert.Equal(t, uint256.NewInt(1000).Bytes32(), [32]byte(res.ReturnData))

	in.Chain().Timestamp = 2000
	res = in.Execute(mkFrame(testContract, nil))
	assert.True(t, res.Success)
	assert.Equal(t, uint256.NewInt(2000).Bytes32(), [32]byte(res.ReturnData))
}

func TestIntrinsicGas(t *testing.T) {
	assert.Equal(t, uint64(21000), IntrinsicGas(nil))
	assert.Equal(t, uint64(21000+4+16), IntrinsicGas([]byte{0, 1}))
}

func TestCallDataEcho(t *testing.T) {
	in, store, _ := mkInterp(t)
	// echoes calldata back
	code := []byte{
		byte(CALLDATASIZE),
		byte(PUSH1), 0,
		byte(PUSH1), 0,
		byte(CALLDATACOPY),
		byte(CALLDATASIZE),
		byte(PUSH1), 0,
		byte(RETURN),
	}
	store.SetCode(testContract, code)

	input := []byte{0x01, 0x02, 0x03, 0x04}
	res := in.Execute(mkFrame(testContract, input))
	assert.True(t, res.Success)
	assert.Equal(t, input, res.ReturnData)
}
