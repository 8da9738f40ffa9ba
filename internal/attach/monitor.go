package attach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nixpig/jobattach/internal/display"
	"github.com/nixpig/jobattach/internal/queue"
	"golang.org/x/sync/errgroup"
)

// DefaultCancelTimeout bounds the cancellation request sent on interrupt.
const DefaultCancelTimeout = 5 * time.Second

// Queue is the batch-queue service a Monitor drives.
type Queue interface {
	StatusQuerier
	Submit(ctx context.Context, args []string) (queue.JobHandle, error)
	Cancel(ctx context.Context, id string) error
}

// Progress receives progress of the attach lifecycle for display on a
// diagnostic channel.
type Progress interface {
	Enqueued(name string)
	Waiting(attempt int)
	Launched()
	Finished()
	Aborting()
}

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	Poll   PollerConfig
	Render RendererConfig

	// CancelTimeout bounds the cancellation request sent on interrupt.
	CancelTimeout time.Duration
}

// Monitor submits a job and follows it until it finishes. Interrupting a
// Monitor, by cancelling the context passed to Run or Attach, requests
// cancellation of the job exactly once and returns without waiting for the
// job to stop.
//
// A Monitor follows a single job; create a new one per job.
type Monitor struct {
	queue    Queue
	sink     LineWriter
	progress Progress
	clock    Clock
	cfg      MonitorConfig
	logger   *slog.Logger

	state      AtomicMonitorState
	cancelOnce sync.Once
}

// NewMonitor creates a Monitor.
func NewMonitor(
	q Queue,
	sink LineWriter,
	progress Progress,
	clock Clock,
	cfg MonitorConfig,
	logger *slog.Logger,
) *Monitor {
	if cfg.CancelTimeout <= 0 {
		cfg.CancelTimeout = DefaultCancelTimeout
	}

	return &Monitor{
		queue:    q,
		sink:     sink,
		progress: progress,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// State returns the state of the Monitor.
func (m *Monitor) State() MonitorState {
	return m.state.Load()
}

// Run submits a job with args forwarded verbatim, removes stale output files
// left at the job's output paths, then attaches to the job.
//
// Submission isn't interrupted by ctx, so a job enqueued while the user
// interrupts is still cancelled. The only error returned is a failed
// submission. An interrupt is not an error.
func (m *Monitor) Run(ctx context.Context, args []string) error {
	if !m.state.CompareAndSwap(StateIdle, StateSubmitting) {
		return ErrMonitorUsed
	}

	handle, err := m.queue.Submit(context.WithoutCancel(ctx), args)
	if err != nil {
		m.state.Store(StateDone)
		return fmt.Errorf("submit job: %w", err)
	}

	m.logger.Info(
		"job submitted",
		"id", handle.ID,
		"name", handle.Name,
		"stdout", handle.StdoutPath,
		"stderr", handle.StderrPath,
	)

	m.state.Store(StateWaitingForLaunch)

	for _, path := range []string{handle.StdoutPath, handle.StderrPath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("remove stale output file", "path", path, "err", err)
		}
	}

	return m.attach(ctx, handle)
}

// Attach follows an already submitted job: it waits for the job to leave the
// queue, renders both output streams concurrently until the job stops
// running, and returns. Output files are left as they are.
func (m *Monitor) Attach(ctx context.Context, handle queue.JobHandle) error {
	if !m.state.CompareAndSwap(StateIdle, StateWaitingForLaunch) {
		return ErrMonitorUsed
	}

	return m.attach(ctx, handle)
}

func (m *Monitor) attach(ctx context.Context, handle queue.JobHandle) error {
	logger := m.logger.With("id", handle.ID)

	if ctx.Err() != nil {
		m.abort(ctx, handle)
		return nil
	}

	poller := NewPoller(m.queue, m.clock, m.cfg.Poll, logger)

	m.progress.Enqueued(handle.Name)

	status, err := poller.PollUntil(
		ctx,
		handle.ID,
		Not(queue.StatusEnqueued),
		func(attempt int, _ queue.Status) {
			m.progress.Waiting(attempt)
		},
	)
	if err != nil {
		if ctx.Err() != nil {
			m.abort(ctx, handle)
			return nil
		}

		// Only ErrJobVanished remains.
		logger.Warn("job vanished before launch", "err", err)
		m.finish()

		return nil
	}

	if status.Terminal() {
		logger.Info("job finished before launch was seen", "status", status)
	} else {
		logger.Info("job launched", "status", status)
	}

	m.progress.Launched()
	m.state.Store(StateAttached)

	renderer := NewRenderer(poller, m.clock, m.sink, m.cfg.Render, logger)

	var g errgroup.Group

	g.Go(func() error {
		return renderer.Render(ctx, handle.ID, handle.StdoutPath, display.Stdout)
	})

	g.Go(func() error {
		return renderer.Render(ctx, handle.ID, handle.StderrPath, display.Stderr)
	})

	done := make(chan error, 1)

	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if ctx.Err() != nil {
			m.abort(ctx, handle)
			return nil
		}

		if err != nil {
			logger.Warn("render job output", "err", err)
		}

	case <-ctx.Done():
		// Renderers observe ctx themselves; don't wait for them.
		m.abort(ctx, handle)
		return nil
	}

	latest := poller.Latest()
	logger.Info("job finished", "status", latest, "terminal", latest.Terminal())

	m.finish()

	return nil
}

func (m *Monitor) finish() {
	m.state.Store(StateDraining)
	m.progress.Finished()
	m.state.Store(StateDone)
}

// abort requests cancellation of the job. The request is sent at most once
// per Monitor and its result is only logged.
func (m *Monitor) abort(ctx context.Context, handle queue.JobHandle) {
	m.cancelOnce.Do(func() {
		m.state.Store(StateCancelling)
		m.progress.Aborting()

		cancelCtx, cancel := context.WithTimeout(
			context.WithoutCancel(ctx),
			m.cfg.CancelTimeout,
		)
		defer cancel()

		if err := m.queue.Cancel(cancelCtx, handle.ID); err != nil {
			m.logger.Warn("cancel job", "id", handle.ID, "err", err)
		} else {
			m.logger.Info("job cancellation requested", "id", handle.ID)
		}

		m.state.Store(StateDone)
	})
}
