package attach

import "sync/atomic"

type MonitorState int

const (
	// StateIdle indicates the monitor hasn't been run.
	StateIdle MonitorState = iota

	// StateSubmitting indicates the job is being submitted to the queue.
	StateSubmitting

	// StateWaitingForLaunch indicates the job is enqueued and the monitor is
	// polling until it leaves the queue.
	StateWaitingForLaunch

	// StateAttached indicates the job's output streams are being rendered.
	StateAttached

	// StateDraining indicates rendering has finished and the monitor is
	// wrapping up.
	StateDraining

	// StateCancelling indicates the monitor was interrupted and is requesting
	// cancellation of the job.
	StateCancelling

	// StateDone indicates the monitor has finished.
	StateDone
)

// NOTE: This slice needs to be kept in sync with the MonitorState values.
var monitorStates = []string{
	"Idle",
	"Submitting",
	"WaitingForLaunch",
	"Attached",
	"Draining",
	"Cancelling",
	"Done",
}

// String implements the Stringer interface for MonitorState.
func (s MonitorState) String() string {
	if int(s) < 0 || int(s) >= len(monitorStates) {
		return "Unknown"
	}

	return monitorStates[s]
}

// AtomicMonitorState is a wrapper around an atomic.Int32 to provide atomic
// operations on a MonitorState.
type AtomicMonitorState struct {
	v atomic.Int32
}

// Load atomically loads the MonitorState value.
func (a *AtomicMonitorState) Load() MonitorState {
	return MonitorState(a.v.Load())
}

// Store atomically stores the MonitorState value.
func (a *AtomicMonitorState) Store(s MonitorState) {
	a.v.Store(int32(s))
}

// CompareAndSwap performs an atomic compare-and-swap operation with an old and
// new MonitorState.
func (a *AtomicMonitorState) CompareAndSwap(o, n MonitorState) bool {
	return a.v.CompareAndSwap(int32(o), int32(n))
}
