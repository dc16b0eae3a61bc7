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
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/wcgcyx/crucible/backend"
	"github.com/wcgcyx/crucible/interp"
	itypes "github.com/wcgcyx/crucible/types"
)

// doEstimateGas binary searches for the smallest transaction gas limit that
// lets the call succeed. Every probe runs against a disposable state copy.
func doEstimateGas(ctx context.Context, session backend.Backend, args TransactionArgs, gasCap uint64) (hexutil.Uint64, error) {
	if args.To == nil {
		return 0, fmt.Errorf("missing call target")
	}
	value, err := args.value()
	if err != nil {
		return 0, err
	}
	intrinsic := interp.IntrinsicGas(args.data())
	executable := func(gas uint64) (bool, error) {
		if gas < intrinsic {
			return false, nil
		}
		res, err := session.Call(ctx, itypes.CallFrame{
			Caller: args.from(),
			Target: *args.To,
			Input:  args.data(),
			Value:  value,
			Gas:    gas - intrinsic,
		})
		if err != nil {
			return false, err
		}
		return res.Success, nil
	}

	hi := args.gas(gasCap)
	ok, err := executable(hi)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("gas required exceeds allowance (%v)", hi)
	}
	lo := intrinsic - 1
	for lo+1 < hi {
		mid := (lo + hi) / 2
		ok, err := executable(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hexutil.Uint64(hi), nil
}
