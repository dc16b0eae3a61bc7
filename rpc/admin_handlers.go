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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/wcgcyx/crucible/node"
)

// adminAPIHandler is used to handle admin API. It exposes the cheat surface
// of the session and the snapshot export store.
type adminAPIHandler struct {
	opts Opts

	node *node.Node
}

func (h *adminAPIHandler) Pause() error {
	h.node.Pause()
	return nil
}

func (h *adminAPIHandler) Unpause() error {
	h.node.Unpause()
	return nil
}

func (h *adminAPIHandler) SetBalance(ctx context.Context, address common.Address, balance *hexutil.Big) error {
	b, overflow := uint256.FromBig(balance.ToInt())
	if overflow {
		return fmt.Errorf("balance exceeds 256 bits")
	}
	h.node.Session().State().SetBalance(address, b)
	return nil
}

func (h *adminAPIHandler) SetNonce(ctx context.Context, address common.Address, nonce hexutil.Uint64) error {
	h.node.Session().State().SetNonce(address, uint64(nonce))
	return nil
}

func (h *adminAPIHandler) SetCode(ctx context.Context, address common.Address, code hexutil.Bytes) error {
	h.node.Session().State().SetCode(address, code)
	return nil
}

func (h *adminAPIHandler) SetStorageAt(ctx context.Context, address common.Address, key common.Hash, value common.Hash) error {
	h.node.Session().State().SetState(address, key, value)
	return nil
}

func (h *adminAPIHandler) SetTimestamp(ctx context.Context, timestamp hexutil.Uint64) error {
	h.node.Session().Chain().Timestamp = uint64(timestamp)
	return nil
}

func (h *adminAPIHandler) SetBlockNumber(ctx context.Context, number hexutil.Uint64) error {
	h.node.Session().Chain().BlockNumber = uint64(number)
	return nil
}

func (h *adminAPIHandler) Snapshot(ctx context.Context) (hexutil.Uint64, error) {
	return hexutil.Uint64(h.node.Session().Snapshot()), nil
}

func (h *adminAPIHandler) RevertToSnapshot(ctx context.Context, id hexutil.Uint64) (bool, error) {
	err := h.node.Session().Revert(uint64(id))
	return err == nil, err
}

func (h *adminAPIHandler) SaveState(ctx context.Context, name string) error {
	return h.node.SaveState(ctx, name)
}

func (h *adminAPIHandler) LoadState(ctx context.Context, name string) error {
	return h.node.LoadState(ctx, name)
}

func (h *adminAPIHandler) ListStates(ctx context.Context) ([]string, error) {
	if h.node.Snapshots == nil {
		return nil, fmt.Errorf("node is running without a snapshot store")
	}
	return h.node.Snapshots.List(ctx)
}

func (h *adminAPIHandler) DeleteState(ctx context.Context, name string) error {
	if h.node.Snapshots == nil {
		return fmt.Errorf("node is running without a snapshot store")
	}
	return h.node.Snapshots.Delete(ctx, name)
}
