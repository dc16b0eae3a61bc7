package backend

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
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/wcgcyx/crucible/statestore"
	itypes "github.com/wcgcyx/crucible/types"
)

var (
	testSender = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testTarget = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

// storageWriter is code storing 42 at slot 1.
var storageWriter = []byte{0x60, 42, 0x60, 1, 0x55}

func mkBackend(t *testing.T) Backend {
	store := statestore.NewStateStoreImpl()
	chain := &itypes.ChainContext{
		ChainID:     big.NewInt(1337),
		Timestamp:   1000,
		BlockNumber: 1,
		Origin:      testSender,
		GasLimit:    30000000,
	}
	b, err := NewBackendImpl(store, chain)
	assert.Nil(t, err)
	return b
}

func TestExecutePersistsState(t *testing.T) {
	b := mkBackend(t)
	b.State().SetCode(testTarget, storageWriter)

	res, err := b.Execute(context.Background(), itypes.CallFrame{
		Caller: testSender,
		Target: testTarget,
		Gas:    100000,
	})
	assert.Nil(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, common.BigToHash(big.NewInt(42)), b.State().GetState(testTarget, common.BigToHash(big.NewInt(1))))
}

func TestCallDoesNotPersistState(t *testing.T) {
	b := mkBackend(t)
	b.State().SetCode(testTarget, storageWriter)

	res, err := b.Call(context.Background(), itypes.CallFrame{
		Caller: testSender,
		Target: testTarget,
		Gas:    100000,
	})
	assert.Nil(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, common.Hash{}, b.State().GetState(testTarget, common.BigToHash(big.NewInt(1))))
}

func TestDeployAndExecute(t *testing.T) {
	b := mkBackend(t)
	// init code returning the storage writer as runtime code
	runtime := storageWriter
	initcode := append([]byte{
		0x60, byte(len(runtime)), // PUSH1 len
		0x60, 12, // PUSH1 code offset
		0x60, 0, // PUSH1 0
		0x39,     // CODECOPY
		0x60, byte(len(runtime)),
		0x60, 0,
		0xf3, // RETURN
	}, runtime...)

	addr, res, err := b.Deploy(context.Background(), testSender, initcode, nil, 1000000)
	assert.Nil(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, runtime, b.State().GetCode(addr))

	execRes, err := b.Execute(context.Background(), itypes.CallFrame{Caller: testSender, Target: addr, Gas: 100000})
	assert.Nil(t, err)
	assert.True(t, execRes.Success)
	assert.Equal(t, common.BigToHash(big.NewInt(42)), b.State().GetState(addr, common.BigToHash(big.NewInt(1))))
}

func TestApplyTransaction(t *testing.T) {
	b := mkBackend(t)
	key, err := crypto.GenerateKey()
	assert.Nil(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)
	b.State().SetBalance(sender, uint256.NewInt(1000))

	startBlock := b.Chain().BlockNumber
	signer := ethtypes.LatestSignerForChainID(b.Chain().ChainID)
	tx, err := ethtypes.SignNewTx(key, signer, &ethtypes.LegacyTx{
		Nonce:    0,
		To:       &testTarget,
		Value:    big.NewInt(400),
		Gas:      100000,
		GasPrice: big.NewInt(0),
	})
	assert.Nil(t, err)

	res, err := b.ApplyTransaction(context.Background(), tx)
	assert.Nil(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.GasUsed >= 21000)
	assert.Equal(t, uint256.NewInt(400), b.State().GetBalance(testTarget))
	assert.Equal(t, uint64(1), b.State().GetNonce(sender))
	assert.Equal(t, startBlock+1, b.Chain().BlockNumber)
}

func TestApplyTransactionBadNonce(t *testing.T) {
	b := mkBackend(t)
	key, err := crypto.GenerateKey()
	assert.Nil(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)
	b.State().SetBalance(sender, uint256.NewInt(1000))

	signer := ethtypes.LatestSignerForChainID(b.Chain().ChainID)
	tx, err := ethtypes.SignNewTx(key, signer, &ethtypes.LegacyTx{
		Nonce:    5,
		To:       &testTarget,
		Value:    big.NewInt(1),
		Gas:      100000,
		GasPrice: big.NewInt(0),
	})
	assert.Nil(t, err)

	_, err = b.ApplyTransaction(context.Background(), tx)
	assert.NotNil(t, err)
}

func TestForkIsolation(t *testing.T) {
	b := mkBackend(t)
	b.State().SetBalance(testSender, uint256.NewInt(100))

	fork, err := b.Fork()
	assert.Nil(t, err)
	fork.State().SetBalance(testSender, uint256.NewInt(999))
	fork.Chain().BlockNumber = 555

	assert.Equal(t, uint256.NewInt(100), b.State().GetBalance(testSender))
	assert.NotEqual(t, uint64(555), b.Chain().BlockNumber)
	// forks get their own interceptor
	assert.NotSame(t, b.Interceptor(), fork.Interceptor())
}

func TestSnapshotRevert(t *testing.T) {
	b := mkBackend(t)
	b.State().SetBalance(testSender, uint256.NewInt(100))
	id := b.Snapshot()
	b.State().SetBalance(testSender, uint256.NewInt(999))
	assert.Nil(t, b.Revert(id))
	assert.Equal(t, uint256.NewInt(100), b.State().GetBalance(testSender))
	assert.ErrorIs(t, b.Revert(424242), itypes.ErrUnknownSnapshot)
}
