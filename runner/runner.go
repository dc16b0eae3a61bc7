package runner

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
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	logging "github.com/ipfs/go-log"
	"github.com/wcgcyx/crucible/backend"
	"github.com/wcgcyx/crucible/cheat"
	"github.com/wcgcyx/crucible/fuzz"
	itypes "github.com/wcgcyx/crucible/types"
)

// Logger
var log = logging.Logger("runner")

// SenderAddress is the account test bodies run as. It is funded before the
// test contract is deployed.
var SenderAddress = common.HexToAddress("0x0000000000000000000000000000000000031337")

// senderFunds keeps value-moving tests from draining the driver account.
var senderFunds = uint256.MustFromHex("0xffffffffffffffffffffffffffffffff")

// Runner is the test orchestrator: it deploys a compiled test contract,
// runs its fixture once, then executes every discovered test against an
// isolated fork of the post-fixture state.
type Runner struct {
	workers  int
	gasLimit uint64
	fuzzOpts fuzz.Opts
}

// NewRunner creates a test orchestrator with the given options. Out of
// range options fall back to defaults.
func NewRunner(opts Opts) *Runner {
	workers := opts.Workers
	if workers <= 0 {
		log.Debugf("Workers not set, use default %v", defaultWorkers)
		workers = defaultWorkers
	}
	gasLimit := opts.GasLimit
	if gasLimit == 0 {
		log.Debugf("Gas limit not set, use default %v", defaultGasLimit)
		gasLimit = defaultGasLimit
	}
	return &Runner{
		workers:  workers,
		gasLimit: gasLimit,
		fuzzOpts: fuzz.Opts{
			Iterations:   opts.FuzzIterations,
			Seed:         opts.Seed,
			Workers:      workers,
			ShrinkBudget: opts.ShrinkBudget,
		},
	}
}

// Run deploys initcode on the given session, runs the fixture once and then
// every discovered test. It always returns a complete verdict list; only a
// deployment failure aborts the run early.
func (r *Runner) Run(ctx context.Context, base backend.Backend, contractABI abi.ABI, initcode []byte) ([]*itypes.TestResult, error) {
	fixture, entries := Discover(contractABI)
	if len(entries) == 0 {
		log.Warnf("No test entry points discovered")
		return []*itypes.TestResult{}, nil
	}
	log.Infof("Discovered %v tests", len(entries))

	base.State().SetBalance(SenderAddress, senderFunds)
	addr, deployRes, err := base.Deploy(ctx, SenderAddress, initcode, nil, r.gasLimit)
	if err != nil {
		return nil, err
	}
	if !deployRes.Success {
		return nil, fmt.Errorf("fail to deploy test contract: %v", reasonOf(deployRes))
	}

	// fixture runs once, its state is the shared baseline of every test
	if fixture != nil {
		for _, e := range entries {
			e.state = stateSetupRunning
		}
		setupRes, err := base.Execute(ctx, itypes.CallFrame{
			Caller: SenderAddress,
			Target: addr,
			Input:  fixture.ID,
			Gas:    r.gasLimit,
		})
		if err != nil || !setupRes.Success {
			reason := "fixture failed"
			if err != nil {
				reason = fmt.Sprintf("fixture failed: %v", err.Error())
			} else {
				reason = fmt.Sprintf("fixture failed: %v", reasonOf(setupRes))
			}
			log.Errorf("Setup failed, all dependent tests errored: %v", reason)
			results := make([]*itypes.TestResult, 0, len(entries))
			for _, e := range entries {
				e.state = stateErrored
				results = append(results, &itypes.TestResult{
					Name:    e.Name,
					Outcome: itypes.OutcomeErrored,
					Reason:  reason,
				})
			}
			return results, nil
		}
	}
	for _, e := range entries {
		e.state = stateReady
	}

	results := make([]*itypes.TestResult, len(entries))
	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				results[i] = r.runOne(ctx, base, addr, entries[i])
			}
		}()
	}
dispatch:
	for i := range entries {
		select {
		case <-ctx.Done():
			break dispatch
		case indices <- i:
		}
	}
	close(indices)
	wg.Wait()

	// the verdict list always completes, undispatched tests are errored
	for i, e := range entries {
		if results[i] == nil {
			e.state = stateErrored
			results[i] = &itypes.TestResult{
				Name:    e.Name,
				Outcome: itypes.OutcomeErrored,
				Reason:  "run cancelled",
			}
		}
	}
	return results, nil
}

// runOne executes a single test against a fork of the baseline session.
func (r *Runner) runOne(ctx context.Context, base backend.Backend, addr common.Address, entry *TestEntry) *itypes.TestResult {
	if entry.Fuzz {
		entry.state = stateFuzzing
		return r.runFuzz(ctx, base, addr, entry)
	}
	entry.state = stateExecuting
	outcome, reason, gas, err := r.execCase(ctx, base, addr, entry, nil)
	if err != nil {
		entry.state = stateErrored
		return &itypes.TestResult{Name: entry.Name, Outcome: itypes.OutcomeErrored, Reason: err.Error()}
	}
	entry.state = terminalState(outcome)
	log.Infof("Test %v: %v", entry.Name, outcome)
	return &itypes.TestResult{Name: entry.Name, Outcome: outcome, GasUsed: gas, Reason: reason}
}

// runFuzz executes a parameterized test through the fuzz engine.
func (r *Runner) runFuzz(ctx context.Context, base backend.Backend, addr common.Address, entry *TestEntry) *itypes.TestResult {
	engine := fuzz.NewEngine(r.fuzzOpts)
	exec := func(ctx context.Context, c *itypes.FuzzCase) (bool, string, uint64, error) {
		outcome, reason, gas, err := r.execCase(ctx, base, addr, entry, c.Values)
		if err != nil {
			return false, "", 0, err
		}
		return outcome != itypes.OutcomePassed, reason, gas, nil
	}
	fuzzRes, err := engine.Run(ctx, entry.Method.Inputs, exec)
	if err != nil {
		entry.state = stateErrored
		return &itypes.TestResult{Name: entry.Name, Outcome: itypes.OutcomeErrored, Reason: err.Error(), Seed: engine.Seed()}
	}
	if !fuzzRes.Failed {
		entry.state = statePassed
		log.Infof("Test %v: passed (%v cases)", entry.Name, fuzzRes.Iterations)
		return &itypes.TestResult{Name: entry.Name, Outcome: itypes.OutcomePassed, GasUsed: fuzzRes.GasUsed, Seed: fuzzRes.Seed}
	}
	// classify the minimal counterexample by replaying it once
	outcome, reason, gas, err := r.execCase(ctx, base, addr, entry, fuzzRes.Counterexample.Values)
	if err != nil {
		entry.state = stateErrored
		return &itypes.TestResult{Name: entry.Name, Outcome: itypes.OutcomeErrored, Reason: err.Error(), Seed: fuzzRes.Seed}
	}
	if outcome == itypes.OutcomePassed {
		// should not happen, the engine re-verifies before reporting
		outcome = itypes.OutcomeFailedAssertion
		reason = fuzzRes.Reason
	}
	entry.state = terminalState(outcome)
	log.Infof("Test %v: %v with counterexample %v (seed %v)", entry.Name, outcome, fuzzRes.Counterexample.Values, fuzzRes.Seed)
	return &itypes.TestResult{
		Name:           entry.Name,
		Outcome:        outcome,
		GasUsed:        gas,
		Reason:         reason,
		Counterexample: fuzzRes.Counterexample,
		Seed:           fuzzRes.Seed,
	}
}

// execCase runs the test body once with the given parameter values against
// a fresh fork of the baseline and judges the outcome.
func (r *Runner) execCase(ctx context.Context, base backend.Backend, addr common.Address, entry *TestEntry, values []interface{}) (itypes.TestOutcome, string, uint64, error) {
	fork, err := base.Fork()
	if err != nil {
		return itypes.OutcomeErrored, "", 0, err
	}
	defer fork.Shutdown()
	input := append([]byte{}, entry.Method.ID...)
	if len(entry.Method.Inputs) > 0 {
		packed, err := entry.Method.Inputs.Pack(values...)
		if err != nil {
			return itypes.OutcomeErrored, "", 0, err
		}
		input = append(input, packed...)
	}
	res, err := fork.Execute(ctx, itypes.CallFrame{
		Caller: SenderAddress,
		Target: addr,
		Input:  input,
		Gas:    r.gasLimit,
	})
	if err != nil {
		return itypes.OutcomeErrored, "", 0, err
	}
	outcome, reason := judge(res, fork.Interceptor())
	return outcome, reason, res.GasUsed, nil
}

// judge maps an execution result and the interceptor's record onto a test
// outcome.
func judge(res *itypes.ExecutionResult, ic *cheat.Interceptor) (itypes.TestOutcome, string) {
	// a revert expectation never consumed by a call is judged against the
	// top level result
	if ic.HasPendingExpectation() {
		d := ic.ConsumeExpectation()
		if cheat.ExpectationMatches(d, res.Reverted(), res.ReturnData) {
			return itypes.OutcomePassed, ""
		}
		ic.RecordViolation("expected revert, test body did not revert as expected")
	}
	if v := ic.Violation(); v != "" {
		return itypes.OutcomeFailedCheat, v
	}
	if res.Success {
		return itypes.OutcomePassed, ""
	}
	if res.Reverted() {
		if itypes.IsAssertionFailure(res.ReturnData) {
			return itypes.OutcomeFailedAssertion, "assertion failed"
		}
		return itypes.OutcomeFailedRevert, fmt.Sprintf("unexpected revert: %v", res.RevertReason())
	}
	return itypes.OutcomeErrored, res.Err.Error()
}

func terminalState(outcome itypes.TestOutcome) entryState {
	switch {
	case outcome == itypes.OutcomePassed:
		return statePassed
	case outcome.Failed():
		return stateFailed
	}
	return stateErrored
}

func reasonOf(res *itypes.ExecutionResult) string {
	if res.Err == nil {
		return "unknown"
	}
	if reason := res.RevertReason(); reason != "" {
		return reason
	}
	return res.Err.Error()
}
