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
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	// testPrefix marks an entry point as a test.
	testPrefix = "test"

	// fixtureName is the reserved fixture entry point, run once per group
	// before any test.
	fixtureName = "setUp"
)

// entryState is the lifecycle state of one discovered test.
type entryState byte

const (
	stateDiscovered entryState = iota
	stateSetupRunning
	stateReady
	stateExecuting
	stateFuzzing
	statePassed
	stateFailed
	stateErrored
)

func (s entryState) String() string {
	switch s {
	case stateDiscovered:
		return "discovered"
	case stateSetupRunning:
		return "setup-running"
	case stateReady:
		return "ready"
	case stateExecuting:
		return "executing"
	case stateFuzzing:
		return "fuzzing"
	case statePassed:
		return "passed"
	case stateFailed:
		return "failed"
	case stateErrored:
		return "errored"
	}
	return "unknown"
}

// TestEntry is one discovered test entry point.
type TestEntry struct {
	// Name of the entry point
	Name string

	// Method is the ABI method of the entry point
	Method abi.Method

	// Fuzz reports whether the entry declares unbound parameters
	Fuzz bool

	state entryState
}

// Discover scans an ABI for the fixture and the test entry points. An entry
// is a test if its name carries the test prefix, and a fuzz test if it
// declares one or more unbound parameters. Entries are returned in name
// order so runs are deterministic.
func Discover(contractABI abi.ABI) (*abi.Method, []*TestEntry) {
	var fixture *abi.Method
	entries := make([]*TestEntry, 0)
	for name, method := range contractABI.Methods {
		if name == fixtureName {
			m := method
			fixture = &m
			continue
		}
		if !strings.HasPrefix(name, testPrefix) {
			continue
		}
		entries = append(entries, &TestEntry{
			Name:   name,
			Method: method,
			Fuzz:   len(method.Inputs) > 0,
			state:  stateDiscovered,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return fixture, entries
}
