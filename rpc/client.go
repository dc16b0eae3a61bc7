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
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/filecoin-project/go-jsonrpc"
)

type EthAPI struct {
	BlockNumber         func(ctx context.Context) (hexutil.Uint64, error)
	ChainId             func(ctx context.Context) (*hexutil.Big, error)
	GasPrice            func(ctx context.Context) (*hexutil.Big, error)
	Call                func(ctx context.Context, args TransactionArgs) (hexutil.Bytes, error)
	EstimateGas         func(ctx context.Context, args TransactionArgs) (hexutil.Uint64, error)
	GetBalance          func(ctx context.Context, address common.Address) (*hexutil.Big, error)
	GetTransactionCount func(ctx context.Context, address common.Address) (*hexutil.Uint64, error)
	GetCode             func(ctx context.Context, address common.Address) (hexutil.Bytes, error)
	GetStorageAt        func(ctx context.Context, address common.Address, key common.Hash) (hexutil.Bytes, error)
	SendRawTransaction  func(ctx context.Context, input hexutil.Bytes) (common.Hash, error)
}

type AdminAPI struct {
	Pause            func() error
	Unpause          func() error
	SetBalance       func(ctx context.Context, address common.Address, balance *hexutil.Big) error
	SetNonce         func(ctx context.Context, address common.Address, nonce hexutil.Uint64) error
	SetCode          func(ctx context.Context, address common.Address, code hexutil.Bytes) error
	SetStorageAt     func(ctx context.Context, address common.Address, key common.Hash, value common.Hash) error
	SetTimestamp     func(ctx context.Context, timestamp hexutil.Uint64) error
	SetBlockNumber   func(ctx context.Context, number hexutil.Uint64) error
	Snapshot         func(ctx context.Context) (hexutil.Uint64, error)
	RevertToSnapshot func(ctx context.Context, id hexutil.Uint64) (bool, error)
	SaveState        func(ctx context.Context, name string) error
	LoadState        func(ctx context.Context, name string) error
	ListStates       func(ctx context.Context) ([]string, error)
	DeleteState      func(ctx context.Context, name string) error
}

func NewEthClient(ctx context.Context, port uint64) (EthAPI, jsonrpc.ClientCloser, error) {
	var client EthAPI
	closer, err := jsonrpc.NewClient(ctx, fmt.Sprintf("http://localhost:%v", port), "eth", &client, http.Header{})
	return client, closer, err
}

func NewAdminClient(ctx context.Context, port uint64) (AdminAPI, jsonrpc.ClientCloser, error) {
	var client AdminAPI
	closer, err := jsonrpc.NewClient(ctx, fmt.Sprintf("http://localhost:%v", port), "admin", &client, http.Header{})
	return client, closer, err
}
