package rpc

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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// TransactionArgs is the argument shape of eth_call and eth_estimateGas.
type TransactionArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Gas   *hexutil.Uint64 `json:"gas"`
	Value *hexutil.Big    `json:"value"`

	// Data and Input carry the same payload, Input takes priority
	Data  *hexutil.Bytes `json:"data"`
	Input *hexutil.Bytes `json:"input"`
}

// from gets the sender, zero when unset.
func (args *TransactionArgs) from() common.Address {
	if args.From == nil {
		return common.Address{}
	}
	return *args.From
}

// data gets the call payload.
func (args *TransactionArgs) data() []byte {
	if args.Input != nil {
		return *args.Input
	}
	if args.Data != nil {
		return *args.Data
	}
	return nil
}

// value gets the transferred value, nil for zero.
func (args *TransactionArgs) value() (*uint256.Int, error) {
	if args.Value == nil {
		return nil, nil
	}
	res, overflow := uint256.FromBig(args.Value.ToInt())
	if overflow {
		return nil, fmt.Errorf("value exceeds 256 bits")
	}
	return res, nil
}

// gas gets the gas limit capped at max.
func (args *TransactionArgs) gas(max uint64) uint64 {
	if args.Gas == nil || uint64(*args.Gas) > max {
		return max
	}
	return uint64(*args.Gas)
}
