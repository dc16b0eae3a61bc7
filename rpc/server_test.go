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
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/wcgcyx/crucible/backend"
	"github.com/wcgcyx/crucible/node"
	"github.com/wcgcyx/crucible/statestore"
	itypes "github.com/wcgcyx/crucible/types"
)

var (
	testAcct     = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testContract = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

// returns42 is runtime code returning the word 42.
var returns42 = []byte{0x60, 42, 0x60, 0, 0x52, 0x60, 32, 0x60, 0, 0xf3}

func mkServer(t *testing.T, port uint64) *node.Node {
	store := statestore.NewStateStoreImpl()
	chain := &itypes.ChainContext{
		ChainID:     big.NewInt(1337),
		Timestamp:   1000,
		BlockNumber: 5,
		GasLimit:    30000000,
	}
	b, err := backend.NewBackendImpl(store, chain)
	assert.Nil(t, err)
	b.State().SetBalance(testAcct, uint256.NewInt(1000000))
	b.State().SetCode(testContract, returns42)

	n, err := node.NewNode(node.Opts{CheckFrequency: time.Hour}, b, nil)
	assert.Nil(t, err)
	go n.Mainloop()
	s, err := NewServer(Opts{Host: "localhost", Port: port, RPCGasCap: 30000000}, n)
	assert.Nil(t, err)
	t.Cleanup(func() {
		s.Shutdown()
		n.Shutdown()
	})
	return n
}

func TestEthAPI(t *testing.T) {
	port := uint64(39471)
	n := mkServer(t, port)
	ctx := context.Background()
	eth, closer, err := NewEthClient(ctx, port)
	assert.Nil(t, err)
	defer closer()

	bn, err := eth.BlockNumber(ctx)
	assert.Nil(t, err)
	assert.Equal(t, hexutil.Uint64(5), bn)
	cid, err := eth.ChainId(ctx)
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(1337), cid.ToInt())

	bal, err := eth.GetBalance(ctx, testAcct)
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(1000000), bal.ToInt())

	code, err := eth.GetCode(ctx, testContract)
	assert.Nil(t, err)
	assert.Equal(t, returns42, []byte(code))

	ret, err := eth.Call(ctx, TransactionArgs{From: &testAcct, To: &testContract})
	assert.Nil(t, err)
	assert.Equal(t, common.BigToHash(big.NewInt(42)).Bytes(), []byte(ret))

	est, err := eth.EstimateGas(ctx, TransactionArgs{From: &testAcct, To: &testContract})
	assert.Nil(t, err)
	assert.True(t, uint64(est) >= 21000)

	// a signed transfer goes through with instant inclusion
	key, err := crypto.GenerateKey()
	assert.Nil(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)
	n.Session().State().SetBalance(sender, uint256.NewInt(100000))
	signer := ethtypes.LatestSignerForChainID(big.NewInt(1337))
	tx, err := ethtypes.SignNewTx(key, signer, &ethtypes.LegacyTx{
		Nonce:    0,
		To:       &testAcct,
		Value:    big.NewInt(7),
		Gas:      100000,
		GasPrice: big.NewInt(0),
	})
	assert.Nil(t, err)
	raw, err := tx.MarshalBinary()
	assert.Nil(t, err)
	hash, err := eth.SendRawTransaction(ctx, raw)
	assert.Nil(t, err)
	assert.Equal(t, tx.Hash(), hash)
	bn, err = eth.BlockNumber(ctx)
	assert.Nil(t, err)
	assert.True(t, uint64(bn) > 5)
}

func TestAdminAPI(t *testing.T) {
	port := uint64(39472)
	n := mkServer(t, port)
	ctx := context.Background()
	admin, closer, err := NewAdminClient(ctx, port)
	assert.Nil(t, err)
	defer closer()

	assert.Nil(t, admin.SetBalance(ctx, testAcct, (*hexutil.Big)(big.NewInt(5555))))
	assert.Equal(t, uint256.NewInt(5555), n.Session().State().GetBalance(testAcct))

	assert.Nil(t, admin.SetNonce(ctx, testAcct, 9))
	assert.Equal(t, uint64(9), n.Session().State().GetNonce(testAcct))

	assert.Nil(t, admin.SetTimestamp(ctx, 424242))
	assert.Equal(t, uint64(424242), n.Session().Chain().Timestamp)

	assert.Nil(t, admin.SetBlockNumber(ctx, 777))
	assert.Equal(t, uint64(777), n.Session().Chain().BlockNumber)

	id, err := admin.Snapshot(ctx)
	assert.Nil(t, err)
	assert.Nil(t, admin.SetBalance(ctx, testAcct, (*hexutil.Big)(big.NewInt(1))))
	ok, err := admin.RevertToSnapshot(ctx, id)
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint256.NewInt(5555), n.Session().State().GetBalance(testAcct))
}
