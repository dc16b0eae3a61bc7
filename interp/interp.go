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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"
	logging "github.com/ipfs/go-log"
	"github.com/wcgcyx/crucible/cheat"
	"github.com/wcgcyx/crucible/statestore"
	itypes "github.com/wcgcyx/crucible/types"
)

// Logger
var log = logging.Logger("interp")

// jumpdestCacheSize bounds the per-interpreter jump destination cache.
const jumpdestCacheSize = 256

// Interpreter executes contract bytecode against a state store.
// It owns the frame tree of one top-level call at a time, so one
// interpreter must not be shared across concurrently running tests.
type Interpreter struct {
	store    statestore.StateStore
	chain    *itypes.ChainContext
	cheats   *cheat.Interceptor
	contract *cheat.Contract
	jdCache  *lru.Cache[common.Hash, []byte]
}

// NewInterpreter creates an interpreter bound to the given state, chain
// context and cheat interceptor.
func NewInterpreter(store statestore.StateStore, chain *itypes.ChainContext, cheats *cheat.Interceptor) (*Interpreter, error) {
	contract, err := cheat.NewContract()
	if err != nil {
		return nil, err
	}
	jdCache, err := lru.New[common.Hash, []byte](jumpdestCacheSize)
	if err != nil {
		return nil, err
	}
	return &Interpreter{
		store:    store,
		chain:    chain,
		cheats:   cheats,
		contract: contract,
		jdCache:  jdCache,
	}, nil
}

// State returns the ledger execution runs against.
func (in *Interpreter) State() statestore.StateStore {
	return in.store
}

// Chain returns the simulated chain context.
func (in *Interpreter) Chain() *itypes.ChainContext {
	return in.chain
}

// TakeSnapshot takes a state snapshot.
func (in *Interpreter) TakeSnapshot() uint64 {
	return in.store.Snapshot()
}

// RestoreSnapshot restores a previously taken snapshot.
func (in *Interpreter) RestoreSnapshot(id uint64) error {
	return in.store.Restore(id)
}

// Interceptor returns the cheat interceptor attached to this interpreter.
func (in *Interpreter) Interceptor() *cheat.Interceptor {
	return in.cheats
}

// Execute runs the given top-level call frame to completion and returns
// its result. Pending one-shot cheat directives are applied to the frame
// before execution starts.
func (in *Interpreter) Execute(frame itypes.CallFrame) *itypes.ExecutionResult {
	caller := in.applyPendingDirectives(frame.Caller)
	logStart := len(in.store.Logs())
	value := valOrZero(frame.Value)
	var (
		ret      []byte
		leftover uint64
		err      error
	)
	switch frame.Kind {
	case itypes.StaticCall:
		ret, leftover, err = in.call(caller, frame.Target, frame.Target, frame.Input, uint256.NewInt(0), frame.Gas, frame.Depth, true, false)
	case itypes.DelegateCall:
		ret, leftover, err = in.call(caller, frame.Target, frame.Target, frame.Input, value, frame.Gas, frame.Depth, false, false)
	default:
		ret, leftover, err = in.call(caller, frame.Target, frame.Target, frame.Input, value, frame.Gas, frame.Depth, false, true)
	}
	return in.finish(frame.Gas, ret, leftover, err, logStart)
}

// Deploy runs the given init code as a contract creation from caller and
// returns the created address together with the execution result.
func (in *Interpreter) Deploy(caller common.Address, initcode []byte, value *uint256.Int, gas uint64) (common.Address, *itypes.ExecutionResult) {
	caller = in.applyPendingDirectives(caller)
	logStart := len(in.store.Logs())
	addr, ret, leftover, err := in.create(caller, initcode, valOrZero(value), gas, 0)
	return addr, in.finish(gas, ret, leftover, err, logStart)
}

// finish assembles an execution result from a completed frame tree.
func (in *Interpreter) finish(gas uint64, ret []byte, leftover uint64, err error, logStart int) *itypes.ExecutionResult {
	logs := in.store.Logs()
	if logStart > len(logs) {
		// a snapshot restore inside the call discarded earlier logs
		logStart = len(logs)
	}
	res := &itypes.ExecutionResult{
		Success:    err == nil,
		ReturnData: ret,
		GasUsed:    gas - leftover,
		Logs:       append([]*ethtypes.Log{}, logs[logStart:]...),
		Err:        err,
	}
	if err != nil {
		log.Debugf("Execution failed after %v gas: %v", res.GasUsed, err.Error())
	}
	return res
}

// applyPendingDirectives applies every consumable directive to the state
// and returns the effective caller after sender impersonation.
func (in *Interpreter) applyPendingDirectives(caller common.Address) common.Address {
	if in.cheats == nil {
		return caller
	}
	for _, d := range in.cheats.ActiveDirectives() {
		caller = in.applyDirective(d, caller)
	}
	for _, d := range in.cheats.ConsumeNextCallDirectives() {
		caller = in.applyDirective(d, caller)
	}
	return caller
}

func (in *Interpreter) applyDirective(d cheat.Directive, caller common.Address) common.Address {
	switch d.Kind {
	case cheat.SetBalance:
		in.store.SetBalance(d.Addr, d.Amount)
	case cheat.SetNonce:
		in.store.SetNonce(d.Addr, d.Num)
	case cheat.SetCode:
		in.store.SetCode(d.Addr, d.Data)
	case cheat.SetStorage:
		in.store.SetState(d.Addr, d.Key, d.Val)
	case cheat.SetTimestamp:
		in.chain.Timestamp = d.Num
	case cheat.SetBlockNumber:
		in.chain.BlockNumber = d.Num
	case cheat.ImpersonateSender:
		caller = d.Addr
	case cheat.RevertToSnapshot:
		if err := in.store.Restore(d.Num); err != nil {
			log.Warnf("Fail to restore snapshot %v: %v", d.Num, err.Error())
		}
	}
	return caller
}

// scope is the execution context of one frame.
type scope struct {
	self     common.Address
	caller   common.Address
	value    *uint256.Int
	input    []byte
	code     []byte
	codeHash common.Hash
	gas      uint64
	readOnly bool
	depth    int
}

// call executes the code of codeAddr in the storage context of self.
// transfer moves value from caller to self first. It returns the output,
// the leftover gas and an error if the frame did not complete successfully.
// All state writes of a failing frame are rolled back.
func (in *Interpreter) call(caller, self, codeAddr common.Address, input []byte, value *uint256.Int, gas uint64, depth int, readOnly bool, transfer bool) ([]byte, uint64, error) {
	if depth > maxCallDepth {
		return nil, 0, itypes.ErrCallDepthExceeded
	}
	if codeAddr == cheat.ContractAddress {
		return in.runCheat(input, gas)
	}
	checkpoint := in.store.Checkpoint()
	if transfer && !value.IsZero() {
		if readOnly {
			return nil, 0, itypes.ErrStateMutationInStaticContext
		}
		if err := in.store.Transfer(caller, self, value); err != nil {
			return nil, gas, err
		}
	}
	code := in.store.GetCode(codeAddr)
	if len(code) == 0 {
		// plain transfer
		return nil, gas, nil
	}
	sc := &scope{
		self:     self,
		caller:   caller,
		value:    value,
		input:    input,
		code:     code,
		codeHash: in.store.GetCodeHash(codeAddr),
		gas:      gas,
		readOnly: readOnly,
		depth:    depth,
	}
	ret, err := in.run(sc)
	if err != nil {
		in.store.RevertToCheckpoint(checkpoint)
		if errors.Is(err, itypes.ErrExecutionReverted) {
			return ret, sc.gas, err
		}
		return nil, 0, err
	}
	return ret, sc.gas, nil
}

// create deploys initcode as a new contract from caller.
func (in *Interpreter) create(caller common.Address, initcode []byte, value *uint256.Int, gas uint64, depth int) (common.Address, []byte, uint64, error) {
	if depth > maxCallDepth {
		return common.Address{}, nil, 0, itypes.ErrCallDepthExceeded
	}
	nonce := in.store.GetNonce(caller)
	in.store.SetNonce(caller, nonce+1)
	addr := crypto.CreateAddress(caller, nonce)
	if in.store.GetCodeSize(addr) != 0 || in.store.GetNonce(addr) != 0 {
		return common.Address{}, nil, 0, itypes.ErrContractCollision
	}
	checkpoint := in.store.Checkpoint()
	in.store.CreateAccount(addr)
	in.store.SetNonce(addr, 1)
	if !value.IsZero() {
		if err := in.store.Transfer(caller, addr, value); err != nil {
			in.store.RevertToCheckpoint(checkpoint)
			return common.Address{}, nil, gas, err
		}
	}
	sc := &scope{
		self:   addr,
		caller: caller,
		value:  value,
		code:   initcode,
		gas:    gas,
		depth:  depth,
	}
	ret, err := in.run(sc)
	if err != nil {
		in.store.RevertToCheckpoint(checkpoint)
		if errors.Is(err, itypes.ErrExecutionReverted) {
			return common.Address{}, ret, sc.gas, err
		}
		return common.Address{}, nil, 0, err
	}
	depositCost := uint64(len(ret)) * GasCodeDeposit
	if sc.gas < depositCost {
		in.store.RevertToCheckpoint(checkpoint)
		return common.Address{}, nil, 0, itypes.ErrOutOfGas
	}
	sc.gas -= depositCost
	in.store.SetCode(addr, ret)
	return addr, nil, sc.gas, nil
}

// runCheat dispatches a call targeting the cheat contract address.
// Cheat calls are free of gas, a failing directive reverts the calling
// frame with the failure as its reason.
func (in *Interpreter) runCheat(input []byte, gas uint64) ([]byte, uint64, error) {
	ret, err := in.contract.Run(in, in.cheats, input)
	if err != nil {
		log.Warnf("Cheat call failed: %v", err.Error())
		if errors.Is(err, itypes.ErrUnsupportedCheat) || errors.Is(err, itypes.ErrConflictingExpectation) {
			in.cheats.RecordViolation(err.Error())
		}
		return itypes.EncodeRevertReason(err.Error()), gas, itypes.ErrExecutionReverted
	}
	return ret, gas, nil
}

// analyse returns the jump destination bitmap for the given code, cached
// by code hash. Init code runs uncached, its hash is not tracked.
func (in *Interpreter) analyse(codeHash common.Hash, code []byte) []byte {
	if codeHash == (common.Hash{}) {
		return codeBitmap(code)
	}
	if bits, ok := in.jdCache.Get(codeHash); ok {
		return bits
	}
	bits := codeBitmap(code)
	in.jdCache.Add(codeHash, bits)
	return bits
}

// run is the frame execution loop.
func (in *Interpreter) run(sc *scope) ([]byte, error) {
	var (
		st      = newStack()
		mem     = newMemory()
		pc      uint64
		memCost uint64
		retData []byte
		bits    = in.analyse(sc.codeHash, sc.code)
	)

	useGas := func(amount uint64) bool {
		if sc.gas < amount {
			return false
		}
		sc.gas -= amount
		return true
	}

	// memExpand charges for and performs expansion to cover [off, off+size).
	memExpand := func(off, size *uint256.Int) (uint64, uint64, error) {
		s, overflow := size.Uint64WithOverflow()
		if overflow {
			return 0, 0, itypes.ErrOutOfGas
		}
		if s == 0 {
			return 0, 0, nil
		}
		o, overflow := off.Uint64WithOverflow()
		if overflow {
			return 0, 0, itypes.ErrOutOfGas
		}
		end := o + s
		if end < o {
			return 0, 0, itypes.ErrOutOfGas
		}
		if end > uint64(mem.len()) {
			newCost := memoryGasCost(end)
			if newCost > memCost {
				if !useGas(newCost - memCost) {
					return 0, 0, itypes.ErrOutOfGas
				}
				memCost = newCost
			}
			mem.resize(end)
		}
		return o, s, nil
	}

	for {
		if pc >= uint64(len(sc.code)) {
			// implicit stop
			return nil, nil
		}
		op := OpCode(sc.code[pc])
		info := opTable[op]
		if !info.defined {
			return nil, itypes.ErrInvalidOpcode
		}
		if st.len() < info.minStack {
			return nil, itypes.ErrStackUnderflow
		}
		if st.len() > info.maxStack {
			return nil, itypes.ErrStackOverflow
		}
		if !useGas(info.constGas) {
			return nil, itypes.ErrOutOfGas
		}
		next := pc + 1

		switch {
		case op.isPush():
			size := op.pushSize()
			v := new(uint256.Int).SetBytes(getData(sc.code, pc+1, size))
			st.push(v)
			next = pc + 1 + size
		case op >= DUP1 && op <= DUP16:
			st.dup(int(op-DUP1) + 1)
		case op >= SWAP1 && op <= SWAP16:
			st.swap(int(op-SWAP1) + 1)
		case op >= LOG0 && op <= LOG4:
			if sc.readOnly {
				return nil, itypes.ErrStateMutationInStaticContext
			}
			off, size := st.pop(), st.pop()
			o, s, err := memExpand(&off, &size)
			if err != nil {
				return nil, err
			}
			if !useGas(GasLogByte * s) {
				return nil, itypes.ErrOutOfGas
			}
			n := int(op - LOG0)
			topics := make([]common.Hash, n)
			for i := 0; i < n; i++ {
				t := st.pop()
				topics[i] = common.Hash(t.Bytes32())
			}
			l := &ethtypes.Log{
				Address:     sc.self,
				Topics:      topics,
				Data:        mem.get(o, s),
				BlockNumber: in.chain.BlockNumber,
			}
			in.store.AddLog(l)
			if in.cheats != nil {
				in.cheats.RecordLog(l)
			}
		default:
			switch op {
			case STOP:
				return nil, nil
			case ADD:
				x := st.pop()
				y := st.peek(0)
				y.Add(&x, y)
			case MUL:
				x := st.pop()
				y := st.peek(0)
				y.Mul(&x, y)
			case SUB:
				x := st.pop()
				y := st.peek(0)
				y.Sub(&x, y)
			case DIV:
				x := st.pop()
				y := st.peek(0)
				y.Div(&x, y)
			case SDIV:
				x := st.pop()
				y := st.peek(0)
				y.SDiv(&x, y)
			case MOD:
				x := st.pop()
				y := st.peek(0)
				y.Mod(&x, y)
			case SMOD:
				x := st.pop()
				y := st.peek(0)
				y.SMod(&x, y)
			case ADDMOD:
				x := st.pop()
				y := st.pop()
				z := st.peek(0)
				z.AddMod(&x, &y, z)
			case MULMOD:
				x := st.pop()
				y := st.pop()
				z := st.peek(0)
				z.MulMod(&x, &y, z)
			case EXP:
				base := st.pop()
				exp := st.peek(0)
				if !useGas(GasExpByte * uint64((exp.BitLen()+7)/8)) {
					return nil, itypes.ErrOutOfGas
				}
				exp.Exp(&base, exp)
			case SIGNEXTEND:
				back := st.pop()
				num := st.peek(0)
				num.ExtendSign(num, &back)
			case LT:
				x := st.pop()
				y := st.peek(0)
				setBool(y, x.Lt(y))
			case GT:
				x := st.pop()
				y := st.peek(0)
				setBool(y, x.Gt(y))
			case SLT:
				x := st.pop()
				y := st.peek(0)
				setBool(y, x.Slt(y))
			case SGT:
				x := st.pop()
				y := st.peek(0)
				setBool(y, x.Sgt(y))
			case EQ:
				x := st.pop()
				y := st.peek(0)
				setBool(y, x.Eq(y))
			case ISZERO:
				x := st.peek(0)
				setBool(x, x.IsZero())
			case AND:
				x := st.pop()
				y := st.peek(0)
				y.And(&x, y)
			case OR:
				x := st.pop()
				y := st.peek(0)
				y.Or(&x, y)
			case XOR:
				x := st.pop()
				y := st.peek(0)
				y.Xor(&x, y)
			case NOT:
				x := st.peek(0)
				x.Not(x)
			case BYTE:
				th := st.pop()
				val := st.peek(0)
				val.Byte(&th)
			case SHL:
				shift := st.pop()
				val := st.peek(0)
				if shift.LtUint64(256) {
					val.Lsh(val, uint(shift.Uint64()))
				} else {
					val.Clear()
				}
			case SHR:
				shift := st.pop()
				val := st.peek(0)
				if shift.LtUint64(256) {
					val.Rsh(val, uint(shift.Uint64()))
				} else {
					val.Clear()
				}
			case SAR:
				shift := st.pop()
				val := st.peek(0)
				if shift.LtUint64(256) {
					val.SRsh(val, uint(shift.Uint64()))
				} else if val.Sign() >= 0 {
					val.Clear()
				} else {
					val.SetAllOne()
				}
			case KECCAK256:
				off, size := st.pop(), st.pop()
				o, s, err := memExpand(&off, &size)
				if err != nil {
					return nil, err
				}
				if !useGas(GasKeccak256Word * toWordSize(s)) {
					return nil, itypes.ErrOutOfGas
				}
				st.push(new(uint256.Int).SetBytes(crypto.Keccak256(mem.get(o, s))))
			case ADDRESS:
				st.push(new(uint256.Int).SetBytes(sc.self.Bytes()))
			case BALANCE:
				slot := st.peek(0)
				addr := common.Address(slot.Bytes20())
				slot.Set(in.store.GetBalance(addr))
			case ORIGIN:
				st.push(new(uint256.Int).SetBytes(in.chain.Origin.Bytes()))
			case CALLER:
				st.push(new(uint256.Int).SetBytes(sc.caller.Bytes()))
			case CALLVALUE:
				st.push(new(uint256.Int).Set(sc.value))
			case CALLDATALOAD:
				x := st.peek(0)
				if offset, overflow := x.Uint64WithOverflow(); !overflow {
					x.SetBytes(getData(sc.input, offset, 32))
				} else {
					x.Clear()
				}
			case CALLDATASIZE:
				st.push(new(uint256.Int).SetUint64(uint64(len(sc.input))))
			case CALLDATACOPY:
				memOff, dataOff, size := st.pop(), st.pop(), st.pop()
				o, s, err := memExpand(&memOff, &size)
				if err != nil {
					return nil, err
				}
				if !useGas(GasCopyWord * toWordSize(s)) {
					return nil, itypes.ErrOutOfGas
				}
				if s > 0 {
					mem.set(o, getData(sc.input, clampUint64(&dataOff), s))
				}
			case CODESIZE:
				st.push(new(uint256.Int).SetUint64(uint64(len(sc.code))))
			case CODECOPY:
				memOff, codeOff, size := st.pop(), st.pop(), st.pop()
				o, s, err := memExpand(&memOff, &size)
				if err != nil {
					return nil, err
				}
				if !useGas(GasCopyWord * toWordSize(s)) {
					return nil, itypes.ErrOutOfGas
				}
				if s > 0 {
					mem.set(o, getData(sc.code, clampUint64(&codeOff), s))
				}
			case GASPRICE:
				if in.chain.BaseFee != nil {
					st.push(new(uint256.Int).Set(in.chain.BaseFee))
				} else {
					st.push(new(uint256.Int))
				}
			case EXTCODESIZE:
				slot := st.peek(0)
				addr := common.Address(slot.Bytes20())
				slot.SetUint64(uint64(in.store.GetCodeSize(addr)))
			case EXTCODECOPY:
				addr := st.pop()
				memOff, codeOff, size := st.pop(), st.pop(), st.pop()
				o, s, err := memExpand(&memOff, &size)
				if err != nil {
					return nil, err
				}
				if !useGas(GasCopyWord * toWordSize(s)) {
					return nil, itypes.ErrOutOfGas
				}
				if s > 0 {
					code := in.store.GetCode(common.Address(addr.Bytes20()))
					mem.set(o, getData(code, clampUint64(&codeOff), s))
				}
			case RETURNDATASIZE:
				st.push(new(uint256.Int).SetUint64(uint64(len(retData))))
			case RETURNDATACOPY:
				memOff, dataOff, size := st.pop(), st.pop(), st.pop()
				o, s, err := memExpand(&memOff, &size)
				if err != nil {
					return nil, err
				}
				if !useGas(GasCopyWord * toWordSize(s)) {
					return nil, itypes.ErrOutOfGas
				}
				if s > 0 {
					mem.set(o, getData(retData, clampUint64(&dataOff), s))
				}
			case EXTCODEHASH:
				slot := st.peek(0)
				addr := common.Address(slot.Bytes20())
				slot.SetBytes(in.store.GetCodeHash(addr).Bytes())
			case BLOCKHASH:
				num := st.peek(0)
				n, overflow := num.Uint64WithOverflow()
				if !overflow && n < in.chain.BlockNumber && in.chain.BlockNumber-n <= 256 {
					var buf [8]byte
					binary.BigEndian.PutUint64(buf[:], n)
					num.SetBytes(crypto.Keccak256(buf[:]))
				} else {
					num.Clear()
				}
			case COINBASE:
				st.push(new(uint256.Int))
			case TIMESTAMP:
				st.push(new(uint256.Int).SetUint64(in.chain.Timestamp))
			case NUMBER:
				st.push(new(uint256.Int).SetUint64(in.chain.BlockNumber))
			case PREVRANDAO:
				st.push(new(uint256.Int))
			case GASLIMIT:
				st.push(new(uint256.Int).SetUint64(in.chain.GasLimit))
			case CHAINID:
				if in.chain.ChainID != nil {
					v, _ := uint256.FromBig(in.chain.ChainID)
					st.push(v)
				} else {
					st.push(new(uint256.Int))
				}
			case SELFBALANCE:
				st.push(new(uint256.Int).Set(in.store.GetBalance(sc.self)))
			case BASEFEE:
				if in.chain.BaseFee != nil {
					st.push(new(uint256.Int).Set(in.chain.BaseFee))
				} else {
					st.push(new(uint256.Int))
				}
			case POP:
				st.pop()
			case MLOAD:
				v := st.peek(0)
				o, _, err := memExpand(v, uint256.NewInt(32))
				if err != nil {
					return nil, err
				}
				v.SetBytes(mem.get(o, 32))
			case MSTORE:
				off, val := st.pop(), st.pop()
				o, _, err := memExpand(&off, uint256.NewInt(32))
				if err != nil {
					return nil, err
				}
				mem.set32(o, &val)
			case MSTORE8:
				off, val := st.pop(), st.pop()
				o, _, err := memExpand(&off, uint256.NewInt(1))
				if err != nil {
					return nil, err
				}
				mem.set(o, []byte{byte(val.Uint64())})
			case SLOAD:
				slot := st.peek(0)
				key := common.Hash(slot.Bytes32())
				slot.SetBytes(in.store.GetState(sc.self, key).Bytes())
			case SSTORE:
				if sc.readOnly {
					return nil, itypes.ErrStateMutationInStaticContext
				}
				if sc.gas <= GasCallStipend {
					return nil, itypes.ErrOutOfGas
				}
				key, val := st.pop(), st.pop()
				k := common.Hash(key.Bytes32())
				v := common.Hash(val.Bytes32())
				current := in.store.GetState(sc.self, k)
				cost := GasSstoreReset
				if current == v {
					cost = GasSstoreNoop
				} else if current == (common.Hash{}) {
					cost = GasSstoreSet
				}
				if !useGas(cost) {
					return nil, itypes.ErrOutOfGas
				}
				in.store.SetState(sc.self, k, v)
			case JUMP:
				dest := st.pop()
				d, overflow := dest.Uint64WithOverflow()
				if overflow || !validJumpDest(bits, d) {
					return nil, itypes.ErrInvalidJump
				}
				next = d
			case JUMPI:
				dest, cond := st.pop(), st.pop()
				if !cond.IsZero() {
					d, overflow := dest.Uint64WithOverflow()
					if overflow || !validJumpDest(bits, d) {
						return nil, itypes.ErrInvalidJump
					}
					next = d
				}
			case PC:
				st.push(new(uint256.Int).SetUint64(pc))
			case MSIZE:
				st.push(new(uint256.Int).SetUint64(uint64(mem.len())))
			case GAS:
				st.push(new(uint256.Int).SetUint64(sc.gas))
			case JUMPDEST:
				// no-op
			case PUSH0:
				st.push(new(uint256.Int))
			case CREATE:
				if sc.readOnly {
					return nil, itypes.ErrStateMutationInStaticContext
				}
				value, off, size := st.pop(), st.pop(), st.pop()
				o, s, err := memExpand(&off, &size)
				if err != nil {
					return nil, err
				}
				initcode := mem.get(o, s)
				childGas := sc.gas - sc.gas/64
				sc.gas -= childGas
				addr, ret, leftover, err := in.create(sc.self, initcode, &value, childGas, sc.depth+1)
				sc.gas += leftover
				retData = nil
				if err != nil {
					if errors.Is(err, itypes.ErrExecutionReverted) {
						retData = ret
					}
					st.push(new(uint256.Int))
				} else {
					st.push(new(uint256.Int).SetBytes(addr.Bytes()))
				}
			case CALL:
				gasReq, addrU, value := st.pop(), st.pop(), st.pop()
				inOff, inSize, outOff, outSize := st.pop(), st.pop(), st.pop(), st.pop()
				inO, inS, err := memExpand(&inOff, &inSize)
				if err != nil {
					return nil, err
				}
				outO, outS, err := memExpand(&outOff, &outSize)
				if err != nil {
					return nil, err
				}
				if !value.IsZero() {
					if sc.readOnly {
						return nil, itypes.ErrStateMutationInStaticContext
					}
					if !useGas(GasCallValue) {
						return nil, itypes.ErrOutOfGas
					}
				}
				childGas := childCallGas(sc.gas, &gasReq)
				sc.gas -= childGas
				if !value.IsZero() {
					childGas += GasCallStipend
				}
				toAddr := common.Address(addrU.Bytes20())
				childCaller, expect := in.prepareChildCall(sc.self, toAddr)
				ret, leftover, err := in.call(childCaller, toAddr, toAddr, mem.get(inO, inS), &value, childGas, sc.depth+1, sc.readOnly, true)
				sc.gas += leftover
				ret, err = in.judgeExpectation(expect, toAddr, ret, err)
				retData = ret
				if err == nil {
					st.push(new(uint256.Int).SetOne())
				} else {
					st.push(new(uint256.Int))
				}
				copyToMem(mem, outO, outS, ret)
			case DELEGATECALL:
				gasReq, addrU := st.pop(), st.pop()
				inOff, inSize, outOff, outSize := st.pop(), st.pop(), st.pop(), st.pop()
				inO, inS, err := memExpand(&inOff, &inSize)
				if err != nil {
					return nil, err
				}
				outO, outS, err := memExpand(&outOff, &outSize)
				if err != nil {
					return nil, err
				}
				childGas := childCallGas(sc.gas, &gasReq)
				sc.gas -= childGas
				toAddr := common.Address(addrU.Bytes20())
				var expect *cheat.Directive
				if toAddr != cheat.ContractAddress && in.cheats != nil {
					expect = in.cheats.ConsumeExpectation()
				}
				ret, leftover, err := in.call(sc.caller, sc.self, toAddr, mem.get(inO, inS), sc.value, childGas, sc.depth+1, sc.readOnly, false)
				sc.gas += leftover
				ret, err = in.judgeExpectation(expect, toAddr, ret, err)
				retData = ret
				if err == nil {
					st.push(new(uint256.Int).SetOne())
				} else {
					st.push(new(uint256.Int))
				}
				copyToMem(mem, outO, outS, ret)
			case STATICCALL:
				gasReq, addrU := st.pop(), st.pop()
				inOff, inSize, outOff, outSize := st.pop(), st.pop(), st.pop(), st.pop()
				inO, inS, err := memExpand(&inOff, &inSize)
				if err != nil {
					return nil, err
				}
				outO, outS, err := memExpand(&outOff, &outSize)
				if err != nil {
					return nil, err
				}
				childGas := childCallGas(sc.gas, &gasReq)
				sc.gas -= childGas
				toAddr := common.Address(addrU.Bytes20())
				childCaller, expect := in.prepareChildCall(sc.self, toAddr)
				ret, leftover, err := in.call(childCaller, toAddr, toAddr, mem.get(inO, inS), uint256.NewInt(0), childGas, sc.depth+1, true, false)
				sc.gas += leftover
				ret, err = in.judgeExpectation(expect, toAddr, ret, err)
				retData = ret
				if err == nil {
					st.push(new(uint256.Int).SetOne())
				} else {
					st.push(new(uint256.Int))
				}
				copyToMem(mem, outO, outS, ret)
			case RETURN:
				off, size := st.pop(), st.pop()
				o, s, err := memExpand(&off, &size)
				if err != nil {
					return nil, err
				}
				return mem.get(o, s), nil
			case REVERT:
				off, size := st.pop(), st.pop()
				o, s, err := memExpand(&off, &size)
				if err != nil {
					return nil, err
				}
				return mem.get(o, s), itypes.ErrExecutionReverted
			case SELFDESTRUCT:
				if sc.readOnly {
					return nil, itypes.ErrStateMutationInStaticContext
				}
				beneficiary := st.pop()
				addr := common.Address(beneficiary.Bytes20())
				balance := in.store.GetBalance(sc.self)
				in.store.AddBalance(addr, balance)
				in.store.SelfDestruct(sc.self)
				return nil, nil
			default:
				return nil, itypes.ErrInvalidOpcode
			}
		}
		pc = next
	}
}

// prepareChildCall resolves sender impersonation for a child call and
// takes the pending revert expectation if one is armed. Calls targeting
// the cheat contract never consume either.
func (in *Interpreter) prepareChildCall(self common.Address, to common.Address) (common.Address, *cheat.Directive) {
	if to == cheat.ContractAddress || in.cheats == nil {
		return self, nil
	}
	caller := in.applyPendingDirectives(self)
	return caller, in.cheats.ConsumeExpectation()
}

// judgeExpectation settles a consumed revert expectation against the
// child call's outcome. A matching revert is converted into success, a
// mismatch is recorded as a cheat violation.
func (in *Interpreter) judgeExpectation(expect *cheat.Directive, to common.Address, ret []byte, err error) ([]byte, error) {
	if expect == nil {
		return ret, err
	}
	reverted := errors.Is(err, itypes.ErrExecutionReverted)
	if cheat.ExpectationMatches(expect, reverted, ret) {
		in.cheats.MarkSatisfied()
		return nil, nil
	}
	if err == nil {
		in.cheats.RecordViolation(fmt.Sprintf("expected revert when calling %v, call succeeded", to))
		return nil, itypes.ErrExecutionReverted
	}
	if reverted {
		in.cheats.RecordViolation(fmt.Sprintf("expected revert reason %q when calling %v, got %q", expect.Reason, to, itypes.DecodeRevertReason(ret)))
	} else {
		in.cheats.RecordViolation(fmt.Sprintf("expected revert when calling %v, got error: %v", to, err.Error()))
	}
	return ret, err
}

// childCallGas applies the all-but-one-64th rule to the requested gas.
func childCallGas(available uint64, requested *uint256.Int) uint64 {
	limit := available - available/64
	if requested.IsUint64() && requested.Uint64() < limit {
		return requested.Uint64()
	}
	return limit
}

// copyToMem writes up to size bytes of ret into memory at offset.
func copyToMem(mem *memory, offset uint64, size uint64, ret []byte) {
	if size == 0 || len(ret) == 0 {
		return
	}
	n := size
	if uint64(len(ret)) < n {
		n = uint64(len(ret))
	}
	mem.set(offset, ret[:n])
}

// getData returns a zero-padded slice of data at the given range, clamped
// to the data's bounds.
func getData(data []byte, start uint64, size uint64) []byte {
	length := uint64(len(data))
	if start > length {
		start = length
	}
	end := start + size
	if end > length {
		end = length
	}
	return common.RightPadBytes(data[start:end], int(size))
}

// clampUint64 converts to uint64, saturating on overflow.
func clampUint64(v *uint256.Int) uint64 {
	res, overflow := v.Uint64WithOverflow()
	if overflow {
		return ^uint64(0)
	}
	return res
}

func setBool(v *uint256.Int, b bool) {
	if b {
		v.SetOne()
	} else {
		v.Clear()
	}
}

func valOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return uint256.NewInt(0)
	}
	return v
}
