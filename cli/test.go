package cli

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
	"fmt"

	logging "github.com/ipfs/go-log"
	"github.com/urfave/cli/v2"
	"github.com/wcgcyx/crucible/config"
	"github.com/wcgcyx/crucible/runner"
	itypes "github.com/wcgcyx/crucible/types"
)

// Logger
var log = logging.Logger("cli")

func runTest(c *cli.Context) error {
	// Load config
	conf, err := config.NewConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("fuzz-runs") {
		log.Infof("Override fuzz-runs to be %v", c.Int("fuzz-runs"))
		conf.FuzzRuns = c.Int("fuzz-runs")
	}
	if c.IsSet("seed") {
		log.Infof("Override seed to be %v", c.Int64("seed"))
		conf.FuzzSeed = c.Int64("seed")
	}
	if c.IsSet("workers") {
		log.Infof("Override workers to be %v", c.Int("workers"))
		conf.TestWorkers = c.Int("workers")
	}

	initcode, contractABI, err := loadArtifact(c.Path("bin"), c.Path("abi"))
	if err != nil {
		return err
	}
	session, err := newSession(conf)
	if err != nil {
		return err
	}
	defer session.Shutdown()

	r := runner.NewRunner(runner.Opts{
		Workers:        conf.TestWorkers,
		GasLimit:       conf.GasLimit,
		FuzzIterations: conf.FuzzRuns,
		Seed:           conf.FuzzSeed,
		ShrinkBudget:   conf.FuzzShrinkBudget,
	})
	results, err := r.Run(c.Context, session, contractABI, initcode)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		line := fmt.Sprintf("[%v] %v (gas %v)", res.Outcome, res.Name, res.GasUsed)
		if res.Reason != "" {
			line += fmt.Sprintf(": %v", res.Reason)
		}
		if res.Counterexample != nil {
			line += fmt.Sprintf(" counterexample=%v seed=%v", res.Counterexample.Values, res.Seed)
		}
		fmt.Println(line)
		if res.Outcome != itypes.OutcomePassed {
			failed++
		}
	}
	fmt.Printf("%v tests, %v failed\n", len(results), failed)
	if failed > 0 {
		return fmt.Errorf("%v test(s) failed", failed)
	}
	return nil
}
