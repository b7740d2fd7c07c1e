package worker

import (
	"context"
	"time"
)

// CORE NOTE: The slot workflow is managed by this function which runs on its
// own goroutine. Each cycle creates the bank of the next slot on top of the
// working bank and executes the mempool against it until the slot duration
// has elapsed. The bank is then filled with ticks and frozen, and the slot
// that is confirmationDepth slots behind it becomes the new root.

// slotOperations handles producing slots.
func (w *Worker) slotOperations() {
	w.evHandler("worker: slotOperations: G started")
	defer w.evHandler("worker: slotOperations: G completed")

	for {
		if w.isShutdown() {
			w.evHandler("worker: slotOperations: received shut signal")
			return
		}

		if !w.runSlotOperation() {
			w.evHandler("worker: slotOperations: received shut signal")
			return
		}
	}
}

// runSlotOperation produces one slot. It returns false when a shutdown was
// signaled while the slot was open.
func (w *Worker) runSlotOperation() bool {
	parent := w.state.WorkingBank()
	slot := parent.Slot() + 1

	if _, err := w.state.NewSlot(parent.Slot(), slot); err != nil {
		w.evHandler("worker: runSlotOperation: slot[%d]: new slot: ERROR: %s", slot, err)
		return w.wait(w.slotDuration)
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.slotDuration)
	defer cancel()

	// Run the mempool once at the start of the slot and again each time a
	// transaction is submitted, until the slot deadline.
	w.process(ctx, slot)

	open := true
	for open {
		select {
		case <-w.processMempool:
			w.process(ctx, slot)

		case <-ctx.Done():
			open = false

		case <-w.shut:
			return false
		}
	}

	b, err := w.state.FreezeWorkingBank()
	if err != nil {
		w.evHandler("worker: runSlotOperation: slot[%d]: freeze: ERROR: %s", slot, err)
		return true
	}

	w.evHandler("worker: runSlotOperation: slot[%d]: frozen: hash[%s]", b.Slot(), b.Hash())

	w.root(b.Slot())

	return true
}

// process executes the mempool against the working bank.
func (w *Worker) process(ctx context.Context, slot uint64) {
	if w.state.QueryMempoolLength() == 0 {
		return
	}

	committed, err := w.state.ProcessMempool(ctx)
	if err != nil {
		w.evHandler("worker: runSlotOperation: slot[%d]: process mempool: ERROR: %s", slot, err)
		return
	}

	w.evHandler("worker: runSlotOperation: slot[%d]: committed[%d]", slot, committed)
}

// root moves the root to the slot confirmationDepth slots behind the
// frozen slot.
func (w *Worker) root(frozen uint64) {
	if frozen < w.confirmationDepth {
		return
	}

	target := frozen - w.confirmationDepth
	if target <= w.state.Root().Slot() {
		return
	}

	if err := w.state.SetRoot(target); err != nil {
		w.evHandler("worker: runSlotOperation: set root[%d]: ERROR: %s", target, err)
	}
}

// wait blocks for the duration. It returns false when a shutdown was
// signaled while waiting.
func (w *Worker) wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-w.shut:
		return false
	}
}
