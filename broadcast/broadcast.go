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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	itypes "github.com/wcgcyx/crucible/types"
)

// Submitter is the submission surface of a live chain endpoint. It is
// satisfied by *ethclient.Client.
type Submitter interface {
	// PendingNonceAt gets the next nonce of the given account.
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)

	// SendTransaction submits a signed transaction.
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

// Plan is the dry-run record of an intent sequence. Commit only accepts a
// plan whose every step succeeded.
type Plan struct {
	// Intents in submission order
	Intents []itypes.TransactionIntent

	// Results of the dry run, one per executed intent. Shorter than
	// Intents if the dry run halted early.
	Results []*itypes.ExecutionResult

	// ChainID the plan was simulated against
	ChainID *big.Int
}

// Succeeded reports whether every intent dry-ran successfully.
func (p *Plan) Succeeded() bool {
	if len(p.Results) != len(p.Intents) {
		return false
	}
	for _, res := range p.Results {
		if !res.Success {
			return false
		}
	}
	return true
}

// Executor turns simulated call intents into signed, submitted
// transactions.
type Executor interface {
	// Plan dry-runs a sequence of intents against a disposable copy of
	// the session state. No state persists beyond the simulation, so
	// repeated calls with the same intents yield the same plan. The dry
	// run halts at the first failing intent.
	Plan(ctx context.Context, intents []itypes.TransactionIntent) (*Plan, error)

	// Commit signs the planned transactions with the given key and
	// submits them in plan order with strictly ascending nonces, starting
	// from the signer's current on-chain nonce. Without the broadcast
	// flag set it refuses with ErrBroadcastDisabled before signing
	// anything. A submission failure stops the remaining sequence, the
	// already submitted transactions are returned alongside the error.
	Commit(ctx context.Context, plan *Plan, key *ecdsa.PrivateKey) ([]*ethtypes.Transaction, error)
}
