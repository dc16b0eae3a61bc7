package node

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
	"time"

	logging "github.com/ipfs/go-log"
	"github.com/wcgcyx/crucible/backend"
	"github.com/wcgcyx/crucible/statestore"
)

// Logger
var log = logging.Logger("node")

// Node is the long-running facade over one executing session. It answers
// read calls and accepts transactions through the RPC server and owns the
// snapshot export store.
type Node struct {
	opts Opts

	// Snapshot export store, nil when the node runs without a data dir
	Snapshots statestore.ExportStore

	// Current session
	session     backend.Backend
	sessionLock sync.RWMutex

	// Process related
	routineCtx context.Context
	exitLoop   chan bool

	// Pausing related
	paused     bool
	pausedLock sync.RWMutex

	// Shutdown function
	shutdown func()
}

// NewNode creates the main node.
func NewNode(
	opts Opts,
	b backend.Backend,
	snapshots statestore.ExportStore,
) (*Node, error) {
	routineCtx, cancel := context.WithCancel(context.Background())
	node := &Node{
		opts:       opts,
		Snapshots:  snapshots,
		session:    b,
		routineCtx: routineCtx,
		exitLoop:   make(chan bool),
		paused:     false,
		pausedLock: sync.RWMutex{},
		shutdown:   func() { cancel() },
	}
	return node, nil
}

// Session gets the current executing session.
func (node *Node) Session() backend.Backend {
	node.sessionLock.RLock()
	defer node.sessionLock.RUnlock()
	return node.session
}

// The mainloop of node. It keeps the simulated clock roughly in line with
// the wall clock between transactions.
func (node *Node) Mainloop() {
	defer func() {
		node.exitLoop <- true
	}()
	log.Infof("Start main routine...")

	after := time.NewTicker(node.opts.CheckFrequency)
	for ; true; <-after.C {
		select {
		case <-node.routineCtx.Done():
			log.Infof("Shutdown node mainloop")
			return
		default:
			node.pausedLock.RLock()
			paused := node.paused
			node.pausedLock.RUnlock()
			if paused {
				log.Warnf("Mainloop is paused, waiting to resume...")
				continue
			}
			node.Session().TouchClock(uint64(time.Now().Unix()))
		}
		if node.routineCtx.Err() != nil {
			log.Warnf("Exit mainloop due to context cancelled: %v", node.routineCtx.Err().Error())
			return
		}
	}
}

// SaveState exports the session ledger under name.
func (node *Node) SaveState(ctx context.Context, name string) error {
	if node.Snapshots == nil {
		return fmt.Errorf("node is running without a snapshot store")
	}
	return node.Snapshots.Export(ctx, name, node.Session().State())
}

// LoadState replaces the session with one built from a previously exported
// ledger. The chain context carries over.
func (node *Node) LoadState(ctx context.Context, name string) error {
	if node.Snapshots == nil {
		return fmt.Errorf("node is running without a snapshot store")
	}
	store, err := node.Snapshots.Import(ctx, name)
	if err != nil {
		return err
	}
	node.sessionLock.Lock()
	defer node.sessionLock.Unlock()
	chain := node.session.Chain().Copy()
	fresh, err := backend.NewBackendImpl(store, chain)
	if err != nil {
		return err
	}
	old := node.session
	node.session = fresh
	old.Shutdown()
	log.Infof("Loaded state %v", name)
	return nil
}

// Pause pauses the mainloop clock.
func (node *Node) Pause() {
	node.pausedLock.Lock()
	defer node.pausedLock.Unlock()
	node.paused = true
}

// Unpause resumes the mainloop clock.
func (node *Node) Unpause() {
	node.pausedLock.Lock()
	defer node.pausedLock.Unlock()
	node.paused = false
}

// Shutdown safely shuts down the main routine.
func (node *Node) Shutdown() {
	log.Infof("Close main routine...")
	node.shutdown()
	<-node.exitLoop
	node.Session().Shutdown()
	if node.Snapshots != nil {
		node.Snapshots.Shutdown()
	}
}
