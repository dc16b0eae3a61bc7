package fuzz

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
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	logging "github.com/ipfs/go-log"
	itypes "github.com/wcgcyx/crucible/types"
)

// Logger
var log = logging.Logger("fuzz")

// indexSeedStride decorrelates the per-case rng streams.
const indexSeedStride = 0x9e3779b9

// Execute runs one case against a fresh restore of the baseline state and
// reports whether the case failed, with a human readable reason. An error
// means the case could not execute at all.
type Execute func(ctx context.Context, c *itypes.FuzzCase) (bool, string, uint64, error)

// Result is the outcome of one fuzz run.
type Result struct {
	// Failed reports whether any case failed.
	Failed bool

	// Reason describes the failure of the counterexample.
	Reason string

	// GasUsed is the gas used by the counterexample, or the last case if none failed.
	GasUsed uint64

	// Counterexample is the minimal failing case, nil if no case failed.
	Counterexample *itypes.FuzzCase

	// Iterations actually executed, shrink candidates excluded.
	Iterations int

	// Seed the run was derived from.
	Seed int64
}

// Engine draws, executes and shrinks fuzz cases for one parameterized test.
type Engine struct {
	iterations   int
	seed         int64
	workers      int
	shrinkBudget int
}

// NewEngine creates a fuzz engine with the given options. Out of range
// options fall back to defaults.
func NewEngine(opts Opts) *Engine {
	iterations := opts.Iterations
	if iterations <= 0 {
		log.Debugf("Iterations not set, use default %v", defaultIterations)
		iterations = defaultIterations
	}
	workers := opts.Workers
	if workers <= 0 {
		log.Debugf("Workers not set, use default %v", defaultWorkers)
		workers = defaultWorkers
	}
	shrinkBudget := opts.ShrinkBudget
	if shrinkBudget <= 0 {
		log.Debugf("Shrink budget not set, use default %v", defaultShrinkBudget)
		shrinkBudget = defaultShrinkBudget
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
		log.Debugf("Seed not set, use %v", seed)
	}
	return &Engine{
		iterations:   iterations,
		seed:         seed,
		workers:      workers,
		shrinkBudget: shrinkBudget,
	}
}

// Seed returns the seed in effect for this engine.
func (e *Engine) Seed() int64 {
	return e.seed
}

// CaseFor derives the case at the given index deterministically from the
// engine's seed. Boundary assignments occupy the first indices, random
// draws follow. Replaying an index always yields the same case.
func (e *Engine) CaseFor(strategies []Strategy, index int) *itypes.FuzzCase {
	boundary := 0
	for _, s := range strategies {
		if n := len(s.Boundaries()); n > boundary {
			boundary = n
		}
	}
	values := make([]interface{}, len(strategies))
	if index < boundary {
		for j, s := range strategies {
			bs := s.Boundaries()
			values[j] = bs[index%len(bs)]
		}
		return &itypes.FuzzCase{Values: values, Source: itypes.SourceBoundary, Seed: e.seed, Index: index}
	}
	rng := rand.New(rand.NewSource(e.seed + int64(index)*indexSeedStride))
	for j, s := range strategies {
		values[j] = s.Draw(rng)
	}
	return &itypes.FuzzCase{Values: values, Source: itypes.SourceRandom, Seed: e.seed, Index: index}
}

// caseOutcome is the recorded result of one executed case.
type caseOutcome struct {
	executed bool
	failed   bool
	reason   string
	gas      uint64
	err      error
}

// Run executes the fuzz loop for a test declaring the given parameters.
// Cases run concurrently up to the worker count, but failure selection is
// by lowest case index, never by arrival order, so the outcome is
// reproducible for a given seed regardless of scheduling.
func (e *Engine) Run(ctx context.Context, params abi.Arguments, exec Execute) (*Result, error) {
	strategies, err := StrategiesFor(params)
	if err != nil {
		return nil, err
	}

	outcomes := make([]caseOutcome, e.iterations)
	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				c := e.CaseFor(strategies, i)
				failed, reason, gas, err := exec(ctx, c)
				outcomes[i] = caseOutcome{executed: true, failed: failed, reason: reason, gas: gas, err: err}
			}
		}()
	}
dispatch:
	for i := 0; i < e.iterations; i++ {
		select {
		case <-ctx.Done():
			break dispatch
		case indices <- i:
		}
	}
	close(indices)
	wg.Wait()

	res := &Result{Seed: e.seed}
	for i := range outcomes {
		if !outcomes[i].executed {
			continue
		}
		res.Iterations++
	}
	// deterministic scan order
	for i := range outcomes {
		o := outcomes[i]
		if !o.executed {
			continue
		}
		if o.err != nil {
			return nil, o.err
		}
		if o.failed {
			failing := e.CaseFor(strategies, i)
			log.Debugf("Case %v failed (%v), start shrinking", i, o.reason)
			minimal, reason, gas := e.shrink(ctx, strategies, exec, failing, o.reason, o.gas)
			res.Failed = true
			res.Counterexample = minimal
			res.Reason = reason
			res.GasUsed = gas
			return res, nil
		}
		res.GasUsed = o.gas
	}
	return res, nil
}

// shrink searches below the failing case for a locally minimal assignment
// that still reproduces the failure, within the engine's shrink budget.
// The minimal case is re-verified before being reported; if verification
// cannot reproduce the failure the original case is reported instead.
func (e *Engine) shrink(ctx context.Context, strategies []Strategy, exec Execute, failing *itypes.FuzzCase, reason string, gas uint64) (*itypes.FuzzCase, string, uint64) {
	current := append([]interface{}{}, failing.Values...)
	budget := e.shrinkBudget
	// exec is deterministic, a candidate that passed once passes again.
	// Skipping known-passing candidates keeps each halving round at one
	// execution instead of re-walking the ladder prefix, which matters
	// when converging from a wide value like the uint256 max boundary.
	passed := make([]map[string]bool, len(strategies))
	for j := range passed {
		passed[j] = make(map[string]bool)
	}
	improved := true
	for improved && budget > 0 && ctx.Err() == nil {
		improved = false
		for j := range strategies {
			adopted := false
			for _, cand := range strategies[j].Shrink(current[j]) {
				if budget <= 0 || ctx.Err() != nil {
					break
				}
				key := fmt.Sprintf("%v", cand)
				if passed[j][key] {
					continue
				}
				trial := append([]interface{}{}, current...)
				trial[j] = cand
				budget--
				failed, r, g, err := exec(ctx, &itypes.FuzzCase{
					Values: trial,
					Source: itypes.SourceShrink,
					Seed:   failing.Seed,
					Index:  failing.Index,
				})
				if err != nil {
					continue
				}
				if failed {
					current = trial
					reason = r
					gas = g
					improved = true
					adopted = true
					break
				}
				passed[j][key] = true
			}
			if adopted {
				// re-derive candidates from the adopted value
				break
			}
		}
	}

	minimal := &itypes.FuzzCase{
		Values: current,
		Source: itypes.SourceShrink,
		Seed:   failing.Seed,
		Index:  failing.Index,
	}
	// the counterexample must reproduce without fuzzing
	failed, r, g, err := exec(ctx, minimal)
	if err != nil || !failed {
		log.Warnf("Shrunk case does not reproduce failure, report original case")
		return failing, reason, gas
	}
	return minimal, r, g
}
