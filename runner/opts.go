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

const (
	defaultWorkers  = 4
	defaultGasLimit = 30000000
)

// Opts is the options for the test orchestrator.
type Opts struct {
	// Workers is the number of tests executed concurrently.
	Workers int

	// GasLimit is the gas limit of one test body.
	GasLimit uint64

	// FuzzIterations is the number of cases per fuzz test.
	FuzzIterations int

	// Seed makes fuzz runs reproducible. 0 picks a seed from the clock.
	Seed int64

	// ShrinkBudget bounds the candidate executions spent shrinking.
	ShrinkBudget int
}
