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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/wcgcyx/crucible/node"
	itypes "github.com/wcgcyx/crucible/types"
)

// ethAPIHandler is used to handle eth API. The node holds a single latest
// state, block number and hash arguments are not supported.
type ethAPIHandler struct {
	opts Opts

	node *node.Node
}

func (h *ethAPIHandler) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(h.node.Session().Chain().BlockNumber)
}

func (h *ethAPIHandler) ChainId() *hexutil.Big {
	return (*hexutil.Big)(h.node.Session().Chain().ChainID)
}

func (h *ethAPIHandler) GasPrice() *hexutil.Big {
	// instant inclusion, gas is never priced
	return (*hexutil.Big)(big.NewInt(0))
}

func (h *ethAPIHandler) Call(ctx context.Context, args TransactionArgs) (hexutil.Bytes, error) {
	if args.To == nil {
		return nil, fmt.Errorf("missing call target")
	}
	value, err := args.value()
	if err != nil {
		return nil, err
	}
	res, err := h.node.Session().Call(ctx, itypes.CallFrame{
		Caller: args.from(),
		Target: *args.To,
		Input:  args.data(),
		Value:  value,
		Gas:    args.gas(h.opts.RPCGasCap),
	})
	if err != nil {
		return nil, err
	}
	if res.Reverted() {
		return nil, newRevertError(res)
	}
	if !res.Success {
		return nil, res.Err
	}
	return res.ReturnData, nil
}

func (h *ethAPIHandler) EstimateGas(ctx context.Context, args TransactionArgs) (hexutil.Uint64, error) {
	return doEstimateGas(ctx, h.node.Session(), args, h.opts.RPCGasCap)
}

func (h *ethAPIHandler) GetBalance(ctx context.Context, address common.Address) (*hexutil.Big, error) {
	b := h.node.Session().State().GetBalance(address).ToBig()
	return (*hexutil.Big)(b), nil
}

func (h *ethAPIHandler) GetTransactionCount(ctx context.Context, address common.Address) (*hexutil.Uint64, error) {
	nonce := h.node.Session().State().GetNonce(address)
	return (*hexutil.Uint64)(&nonce), nil
}

func (h *ethAPIHandler) GetCode(ctx context.Context, address common.Address) (hexutil.Bytes, error) {
	return h.node.Session().State().GetCode(address), nil
}

func (h *ethAPIHandler) GetStorageAt(ctx context.Context, address common.Address, key common.Hash) (hexutil.Bytes, error) {
	res := h.node.Session().State().GetState(address, key)
	return res[:], nil
}

func (h *ethAPIHandler) SendRawTransaction(ctx context.Context, input hexutil.Bytes) (common.Hash, error) {
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(input); err != nil {
		return common.Hash{}, err
	}
	res, err := h.node.Session().ApplyTransaction(ctx, tx)
	if err != nil {
		return common.Hash{}, err
	}
	if res.Reverted() {
		return tx.Hash(), newRevertError(res)
	}
	return tx.Hash(), nil
}

// newRevertError carries the decoded revert reason to the caller.
func newRevertError(res *itypes.ExecutionResult) error {
	if reason := res.RevertReason(); reason != "" {
		return fmt.Errorf("execution reverted: %v", reason)
	}
	return fmt.Errorf("execution reverted")
}
