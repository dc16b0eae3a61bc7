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
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/wcgcyx/crucible/statestore"
	itypes "github.com/wcgcyx/crucible/types"
)

// ContractAddress is the reserved address test bytecode calls to issue
// cheat directives.
var ContractAddress = common.HexToAddress("0x7109709ECfa91a80626fF3989D68f67F5b1DD12D")

// Environment is what cheat handlers are allowed to touch. It is implemented
// by the interpreter and threaded through explicitly, never ambient.
type Environment interface {
	// State is the ledger execution runs against.
	State() statestore.StateStore

	// Chain is the simulated chain context.
	Chain() *itypes.ChainContext

	// TakeSnapshot takes a state snapshot.
	TakeSnapshot() uint64

	// RestoreSnapshot restores a previously taken snapshot.
	RestoreSnapshot(id uint64) error
}

// contractMethod is one ABI-dispatched cheat entry.
type contractMethod struct {
	name    string
	inputs  abi.Arguments
	outputs abi.Arguments
	handler func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error)
}

// Contract is the pseudo-contract at ContractAddress translating calls from
// test bytecode into directives and environment mutations.
type Contract struct {
	methods map[[4]byte]*contractMethod
}

// NewContract builds the cheat contract's method table.
func NewContract() (*Contract, error) {
	c := &Contract{methods: make(map[[4]byte]*contractMethod)}

	typeAddress, err := abi.NewType("address", "", nil)
	if err != nil {
		return nil, err
	}
	typeUint256, err := abi.NewType("uint256", "", nil)
	if err != nil {
		return nil, err
	}
	typeUint64, err := abi.NewType("uint64", "", nil)
	if err != nil {
		return nil, err
	}
	typeBytes, err := abi.NewType("bytes", "", nil)
	if err != nil {
		return nil, err
	}
	typeBytes32, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		return nil, err
	}
	typeString, err := abi.NewType("string", "", nil)
	if err != nil {
		return nil, err
	}
	typeBool, err := abi.NewType("bool", "", nil)
	if err != nil {
		return nil, err
	}

	// deal: force an account balance
	c.addMethod("deal", abi.Arguments{{Type: typeAddress}, {Type: typeUint256}}, abi.Arguments{},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			env.State().SetBalance(args[0].(common.Address), uint256.MustFromBig(args[1].(*big.Int)))
			return nil, nil
		})

	// setNonce: force an account nonce
	c.addMethod("setNonce", abi.Arguments{{Type: typeAddress}, {Type: typeUint64}}, abi.Arguments{},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			env.State().SetNonce(args[0].(common.Address), args[1].(uint64))
			return nil, nil
		})

	// etch: force an account's code
	c.addMethod("etch", abi.Arguments{{Type: typeAddress}, {Type: typeBytes}}, abi.Arguments{},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			env.State().SetCode(args[0].(common.Address), args[1].([]byte))
			return nil, nil
		})

	// store: force a storage slot
	c.addMethod("store", abi.Arguments{{Type: typeAddress}, {Type: typeBytes32}, {Type: typeBytes32}}, abi.Arguments{},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			key := args[1].([32]byte)
			val := args[2].([32]byte)
			env.State().SetState(args[0].(common.Address), common.Hash(key), common.Hash(val))
			return nil, nil
		})

	// load: read a storage slot
	c.addMethod("load", abi.Arguments{{Type: typeAddress}, {Type: typeBytes32}}, abi.Arguments{{Type: typeBytes32}},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			key := args[1].([32]byte)
			val := env.State().GetState(args[0].(common.Address), common.Hash(key))
			return []interface{}{[32]byte(val)}, nil
		})

	// warp: roll the simulated clock
	c.addMethod("warp", abi.Arguments{{Type: typeUint256}}, abi.Arguments{},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			newTime := args[0].(*big.Int)
			if !newTime.IsUint64() {
				return nil, fmt.Errorf("warp: timestamp exceeds max value of uint64")
			}
			env.Chain().Timestamp = newTime.Uint64()
			return nil, nil
		})

	// roll: roll the simulated block number
	c.addMethod("roll", abi.Arguments{{Type: typeUint256}}, abi.Arguments{},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			newNumber := args[0].(*big.Int)
			if !newNumber.IsUint64() {
				return nil, fmt.Errorf("roll: block number exceeds max value of uint64")
			}
			env.Chain().BlockNumber = newNumber.Uint64()
			return nil, nil
		})

	// prank: impersonate a sender for the very next call
	c.addMethod("prank", abi.Arguments{{Type: typeAddress}}, abi.Arguments{},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			return nil, ic.Install(Directive{
				Kind:  ImpersonateSender,
				Scope: ScopeNextCall,
				Addr:  args[0].(common.Address),
			})
		})

	// startPrank: impersonate a sender until stopPrank
	c.addMethod("startPrank", abi.Arguments{{Type: typeAddress}}, abi.Arguments{},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			return nil, ic.Install(Directive{
				Kind:  ImpersonateSender,
				Scope: ScopeUntilCleared,
				Addr:  args[0].(common.Address),
			})
		})

	// stopPrank: stop impersonating
	c.addMethod("stopPrank", abi.Arguments{}, abi.Arguments{},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			ic.Drop(ImpersonateSender)
			return nil, nil
		})

	// expectRevert: expect the next call to revert with any reason
	c.addMethod("expectRevert", abi.Arguments{}, abi.Arguments{},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			return nil, ic.Install(Directive{Kind: ExpectRevertAny, Scope: ScopeNextCall})
		})

	// expectRevertWithReason: expect the next call to revert with the given reason
	c.addMethod("expectRevertWithReason", abi.Arguments{{Type: typeString}}, abi.Arguments{},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			return nil, ic.Install(Directive{
				Kind:   ExpectRevert,
				Scope:  ScopeNextCall,
				Reason: args[0].(string),
			})
		})

	// recordLogs: start recording emitted logs
	c.addMethod("recordLogs", abi.Arguments{}, abi.Arguments{},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			return nil, ic.Install(Directive{Kind: RecordLogs, Scope: ScopeUntilCleared})
		})

	// snapshot: take a state snapshot
	c.addMethod("snapshot", abi.Arguments{}, abi.Arguments{{Type: typeUint256}},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			id := env.TakeSnapshot()
			return []interface{}{new(big.Int).SetUint64(id)}, nil
		})

	// revertTo: restore a previously taken snapshot
	c.addMethod("revertTo", abi.Arguments{{Type: typeUint256}}, abi.Arguments{{Type: typeBool}},
		func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error) {
			id := args[0].(*big.Int)
			if !id.IsUint64() {
				return []interface{}{false}, nil
			}
			err := env.RestoreSnapshot(id.Uint64())
			return []interface{}{err == nil}, nil
		})

	return c, nil
}

// addMethod registers a cheat method under its ABI selector.
func (c *Contract) addMethod(name string, inputs abi.Arguments, outputs abi.Arguments,
	handler func(env Environment, ic *Interceptor, args []interface{}) ([]interface{}, error)) {
	sigTypes := make([]string, 0, len(inputs))
	for _, input := range inputs {
		sigTypes = append(sigTypes, input.Type.String())
	}
	sig := fmt.Sprintf("%v(%v)", name, strings.Join(sigTypes, ","))
	var selector [4]byte
	copy(selector[:], crypto.Keccak256([]byte(sig))[:4])
	c.methods[selector] = &contractMethod{
		name:    name,
		inputs:  inputs,
		outputs: outputs,
		handler: handler,
	}
}

// Run dispatches a call to the cheat contract. A call that does not match a
// recognized directive fails with ErrUnsupportedCheat rather than being
// silently ignored.
func (c *Contract) Run(env Environment, ic *Interceptor, input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, itypes.ErrUnsupportedCheat
	}
	var selector [4]byte
	copy(selector[:], input[:4])
	method, ok := c.methods[selector]
	if !ok {
		return nil, itypes.ErrUnsupportedCheat
	}
	args, err := method.inputs.Unpack(input[4:])
	if err != nil {
		return nil, fmt.Errorf("%v: malformed arguments: %w", method.name, err)
	}
	res, err := method.handler(env, ic, args)
	if err != nil {
		return nil, err
	}
	if len(method.outputs) == 0 {
		return nil, nil
	}
	return method.outputs.Pack(res...)
}
