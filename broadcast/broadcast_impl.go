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

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	logging "github.com/ipfs/go-log"
	"github.com/wcgcyx/crucible/backend"
	"github.com/wcgcyx/crucible/interp"
	itypes "github.com/wcgcyx/crucible/types"
)

// Logger
var log = logging.Logger("broadcast")

// ExecutorImpl implements Executor.
type ExecutorImpl struct {
	session   backend.Backend
	submitter Submitter
	enabled   bool
	gasPrice  *big.Int
	dryRunGas uint64
}

// NewExecutorImpl creates a broadcast executor on top of an executing
// session. The submitter may be nil when broadcast is disabled.
func NewExecutorImpl(session backend.Backend, submitter Submitter, opts Opts) *ExecutorImpl {
	gasPrice := opts.GasPrice
	if gasPrice == nil {
		log.Debugf("Gas price not set, use default %v", defaultGasPrice)
		gasPrice = big.NewInt(defaultGasPrice)
	}
	dryRunGas := opts.DryRunGas
	if dryRunGas == 0 {
		log.Debugf("Dry run gas not set, use default %v", defaultDryRunGas)
		dryRunGas = defaultDryRunGas
	}
	return &ExecutorImpl{
		session:   session,
		submitter: submitter,
		enabled:   opts.Broadcast,
		gasPrice:  gasPrice,
		dryRunGas: dryRunGas,
	}
}

// Plan dry-runs the intent sequence on a fork of the session. State flows
// from one intent to the next within the fork and is discarded with it.
func (e *ExecutorImpl) Plan(ctx context.Context, intents []itypes.TransactionIntent) (*Plan, error) {
	fork, err := e.session.Fork()
	if err != nil {
		return nil, err
	}
	defer fork.Shutdown()

	plan := &Plan{
		Intents: intents,
		Results: make([]*itypes.ExecutionResult, 0, len(intents)),
		ChainID: new(big.Int).Set(fork.Chain().ChainID),
	}
	for i, intent := range intents {
		gas := intent.Gas
		if gas == 0 {
			gas = e.dryRunGas
		}
		var res *itypes.ExecutionResult
		if intent.Target == nil {
			_, res, err = fork.Deploy(ctx, intent.Sender, intent.Data, intent.Value, gas)
		} else {
			res, err = fork.Execute(ctx, itypes.CallFrame{
				Caller: intent.Sender,
				Target: *intent.Target,
				Input:  intent.Data,
				Value:  intent.Value,
				Gas:    gas,
			})
		}
		if err != nil {
			return nil, err
		}
		plan.Results = append(plan.Results, res)
		if !res.Success {
			log.Warnf("Dry run halted at step %v: %v", i, res.RevertReason())
			break
		}
	}
	return plan, nil
}

// Commit signs and submits the planned sequence.
func (e *ExecutorImpl) Commit(ctx context.Context, plan *Plan, key *ecdsa.PrivateKey) ([]*ethtypes.Transaction, error) {
	if !e.enabled {
		return nil, itypes.ErrBroadcastDisabled
	}
	if !plan.Succeeded() {
		return nil, fmt.Errorf("refuse to commit a plan with failing steps")
	}
	sender := crypto.PubkeyToAddress(key.PublicKey)
	for _, intent := range plan.Intents {
		if intent.Sender != (common.Address{}) && intent.Sender != sender {
			return nil, fmt.Errorf("intent sender %v does not match signer %v", intent.Sender, sender)
		}
	}
	nonce, err := e.submitter.PendingNonceAt(ctx, sender)
	if err != nil {
		return nil, err
	}
	signer := ethtypes.LatestSignerForChainID(plan.ChainID)

	submitted := make([]*ethtypes.Transaction, 0, len(plan.Intents))
	for i, intent := range plan.Intents {
		gas := intent.Gas
		if gas == 0 {
			// planned execution gas plus intrinsic, with headroom
			gas = (plan.Results[i].GasUsed + interp.IntrinsicGas(intent.Data)) * 6 / 5
		}
		value := big.NewInt(0)
		if intent.Value != nil {
			value = intent.Value.ToBig()
		}
		tx, err := ethtypes.SignNewTx(key, signer, &ethtypes.LegacyTx{
			Nonce:    nonce,
			To:       intent.Target,
			Value:    value,
			Gas:      gas,
			GasPrice: e.gasPrice,
			Data:     intent.Data,
		})
		if err != nil {
			return submitted, err
		}
		if err := e.submitter.SendTransaction(ctx, tx); err != nil {
			log.Errorf("Submission halted at step %v: %v", i, err.Error())
			return submitted, fmt.Errorf("%w: step %v: %v", itypes.ErrSubmissionHalted, i, err.Error())
		}
		log.Infof("Submitted %v (nonce %v)", tx.Hash(), nonce)
		submitted = append(submitted, tx)
		nonce++
	}
	return submitted, nil
}
