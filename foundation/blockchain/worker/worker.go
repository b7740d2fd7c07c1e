// Package worker implements the slot production workflow for the ledger
// node.
package worker

import (
	"sync"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/state"
)

// Defaults used when the configuration leaves a value unset.
const (
	DefaultSlotDuration      = 400 * time.Millisecond
	DefaultConfirmationDepth = 32
)

// Config represents the cadence of the slot workflow.
type Config struct {
	SlotDuration      time.Duration
	ConfirmationDepth uint64
}

// =============================================================================

// Worker manages the slot workflow for the node.
type Worker struct {
	state             *state.State
	wg                sync.WaitGroup
	shut              chan struct{}
	processMempool    chan bool
	slotDuration      time.Duration
	confirmationDepth uint64
	evHandler         state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, cfg Config, evHandler state.EventHandler) *Worker {
	if cfg.SlotDuration == 0 {
		cfg.SlotDuration = DefaultSlotDuration
	}
	if cfg.ConfirmationDepth == 0 {
		cfg.ConfirmationDepth = DefaultConfirmationDepth
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	w := Worker{
		state:             st,
		shut:              make(chan struct{}),
		processMempool:    make(chan bool, 1),
		slotDuration:      cfg.SlotDuration,
		confirmationDepth: cfg.ConfirmationDepth,
		evHandler:         ev,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.slotOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for range g {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalProcessMempool asks the slot G to execute the mempool against the
// working bank. If there is already a signal pending in the channel, just
// return since the mempool will be processed.
func (w *Worker) SignalProcessMempool() {
	select {
	case w.processMempool <- true:
	default:
	}
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
