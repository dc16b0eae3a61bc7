package broadcast

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
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/wcgcyx/crucible/backend"
	"github.com/wcgcyx/crucible/statestore"
	itypes "github.com/wcgcyx/crucible/types"
)

// fakeSubmitter records submitted transactions and can be made to fail
// from a given submission index on.
type fakeSubmitter struct {
	nonce    uint64
	sent     []*ethtypes.Transaction
	failFrom int
}

func (s *fakeSubmitter) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	return s.nonce, nil
}

func (s *fakeSubmitter) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	if s.failFrom >= 0 && len(s.sent) >= s.failFrom {
		return fmt.Errorf("connection lost")
	}
	s.sent = append(s.sent, tx)
	return nil
}

var testTarget = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

func mkSession(t *testing.T, sender common.Address) backend.Backend {
	store := statestore.NewStateStoreImpl()
	chain := &itypes.ChainContext{
		ChainID:     big.NewInt(1337),
		Timestamp:   1000,
		BlockNumber: 1,
		GasLimit:    30000000,
	}
	b, err := backend.NewBackendImpl(store, chain)
	assert.Nil(t, err)
	b.State().SetBalance(sender, uint256.NewInt(1000000))
	return b
}

func genKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	key, err := crypto.GenerateKey()
	assert.Nil(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

func TestPlanRepeatable(t *testing.T) {
	_, sender := genKey(t)
	session := mkSession(t, sender)
	intents := []itypes.TransactionIntent{
		{Sender: sender, Target: &testTarget, Value: uint256.NewInt(100)},
		{Sender: sender, Target: &testTarget, Value: uint256.NewInt(200)},
	}
	e := NewExecutorImpl(session, nil, Opts{})

	p1, err := e.Plan(context.Background(), intents)
	assert.Nil(t, err)
	assert.True(t, p1.Succeeded())
	p2, err := e.Plan(context.Background(), intents)
	assert.Nil(t, err)
	assert.True(t, p2.Succeeded())
	assert.Equal(t, len(p1.Results), len(p2.Results))
	for i := range p1.Results {
		assert.Equal(t, p1.Results[i].Success, p2.Results[i].Success)
		assert.Equal(t, p1.Results[i].GasUsed, p2.Results[i].GasUsed)
	}
	// the dry run never touches the session state
	assert.Equal(t, uint256.NewInt(0), session.State().GetBalance(testTarget))
	assert.Equal(t, uint256.NewInt(1000000), session.State().GetBalance(sender))
}

func TestPlanHaltsAtFailure(t *testing.T) {
	_, sender := genKey(t)
	session := mkSession(t, sender)
	// target carrying reverting code
	session.State().SetCode(testTarget, []byte{0x60, 0, 0x60, 0, 0xfd})
	intents := []itypes.TransactionIntent{
		{Sender: sender, Target: &testTarget},
		{Sender: sender, Target: &testTarget},
	}
	e := NewExecutorImpl(session, nil, Opts{})
	p, err := e.Plan(context.Background(), intents)
	assert.Nil(t, err)
	assert.False(t, p.Succeeded())
	assert.Equal(t, 1, len(p.Results))
}

func TestCommitWithoutFlag(t *testing.T) {
	key, sender := genKey(t)
	session := mkSession(t, sender)
	sub := &fakeSubmitter{nonce: 3, failFrom: -1}
	e := NewExecutorImpl(session, sub, Opts{})

	p, err := e.Plan(context.Background(), []itypes.TransactionIntent{
		{Sender: sender, Target: &testTarget, Value: uint256.NewInt(1)},
	})
	assert.Nil(t, err)

	_, err = e.Commit(context.Background(), p, key)
	assert.ErrorIs(t, err, itypes.ErrBroadcastDisabled)
	// zero transactions observed on the target
	assert.Empty(t, sub.sent)
}

func TestCommitSubmitsInOrder(t *testing.T) {
	key, sender := genKey(t)
	session := mkSession(t, sender)
	sub := &fakeSubmitter{nonce: 7, failFrom: -1}
	e := NewExecutorImpl(session, sub, Opts{Broadcast: true})

	intents := []itypes.TransactionIntent{
		{Sender: sender, Target: &testTarget, Value: uint256.NewInt(1)},
		{Sender: sender, Target: &testTarget, Value: uint256.NewInt(2)},
		{Sender: sender, Target: &testTarget, Value: uint256.NewInt(3)},
	}
	p, err := e.Plan(context.Background(), intents)
	assert.Nil(t, err)

	txs, err := e.Commit(context.Background(), p, key)
	assert.Nil(t, err)
	assert.Equal(t, 3, len(txs))
	assert.Equal(t, 3, len(sub.sent))
	signer := ethtypes.LatestSignerForChainID(p.ChainID)
	for i, tx := range sub.sent {
		// strictly ascending nonces from the on-chain nonce, plan order
		assert.Equal(t, uint64(7+i), tx.Nonce())
		assert.Equal(t, big.NewInt(int64(i+1)), tx.Value())
		from, err := ethtypes.Sender(signer, tx)
		assert.Nil(t, err)
		assert.Equal(t, sender, from)
	}
}

func TestCommitHaltsOnSubmissionFailure(t *testing.T) {
	key, sender := genKey(t)
	session := mkSession(t, sender)
	sub := &fakeSubmitter{nonce: 0, failFrom: 1}
	e := NewExecutorImpl(session, sub, Opts{Broadcast: true})

	p, err := e.Plan(context.Background(), []itypes.TransactionIntent{
		{Sender: sender, Target: &testTarget, Value: uint256.NewInt(1)},
		{Sender: sender, Target: &testTarget, Value: uint256.NewInt(2)},
		{Sender: sender, Target: &testTarget, Value: uint256.NewInt(3)},
	})
	assert.Nil(t, err)

	txs, err := e.Commit(context.Background(), p, key)
	assert.ErrorIs(t, err, itypes.ErrSubmissionHalted)
	// the first submission went through, nothing after the failure
	assert.Equal(t, 1, len(txs))
	assert.Equal(t, 1, len(sub.sent))
}

func TestCommitRefusesFailingPlan(t *testing.T) {
	key, sender := genKey(t)
	session := mkSession(t, sender)
	session.State().SetCode(testTarget, []byte{0x60, 0, 0x60, 0, 0xfd})
	sub := &fakeSubmitter{failFrom: -1}
	e := NewExecutorImpl(session, sub, Opts{Broadcast: true})

	p, err := e.Plan(context.Background(), []itypes.TransactionIntent{
		{Sender: sender, Target: &testTarget},
	})
	assert.Nil(t, err)
	_, err = e.Commit(context.Background(), p, key)
	assert.NotNil(t, err)
	assert.Empty(t, sub.sent)
}

func TestCommitRejectsForeignSender(t *testing.T) {
	key, sender := genKey(t)
	session := mkSession(t, sender)
	other := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	session.State().SetBalance(other, uint256.NewInt(1000))
	sub := &fakeSubmitter{failFrom: -1}
	e := NewExecutorImpl(session, sub, Opts{Broadcast: true})

	p, err := e.Plan(context.Background(), []itypes.TransactionIntent{
		{Sender: other, Target: &testTarget, Value: uint256.NewInt(1)},
	})
	assert.Nil(t, err)
	_, err = e.Commit(context.Background(), p, key)
	assert.NotNil(t, err)
	assert.Empty(t, sub.sent)
}
