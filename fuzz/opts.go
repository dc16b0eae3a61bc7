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

const (
	defaultIterations   = 256
	defaultWorkers      = 4
	defaultShrinkBudget = 512
)

// Opts is the options for the fuzz engine.
type Opts struct {
	// Iterations is the number of cases drawn per run, boundary cases included.
	Iterations int

	// Seed makes the run reproducible. 0 picks a seed from the clock.
	Seed int64

	// Workers is the number of cases executed concurrently.
	Workers int

	// ShrinkBudget bounds the number of candidate executions spent shrinking
	// a failing case.
	ShrinkBudget int
}
