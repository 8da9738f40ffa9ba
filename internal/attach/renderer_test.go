package attach_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/nixpig/jobattach/internal/attach"
	"github.com/nixpig/jobattach/internal/display"
	"github.com/nixpig/jobattach/internal/queue"
)

func newTestRenderer(
	q attach.StatusQuerier,
	clock *fakeClock,
	sink attach.LineWriter,
) *attach.Renderer {
	poller := attach.NewPoller(
		q,
		clock,
		attach.PollerConfig{VanishGrace: time.Second},
		discardLogger,
	)

	return attach.NewRenderer(
		poller,
		clock,
		sink,
		attach.RendererConfig{
			ReadInterval:  10 * time.Millisecond,
			ReadsPerCheck: 5,
		},
		discardLogger,
	)
}

func TestRenderer(t *testing.T) {
	t.Parallel()

	t.Run("Test renders lines written while running", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		handle := queue.NewJobHandle("42", "", dir)
		clock := newFakeClock()

		sim := newSimulation(
			t,
			clock,
			handle,
			setStatus(0, queue.StatusEnqueued),
			setStatus(100*time.Millisecond, queue.StatusRunning),
			write(100*time.Millisecond, handle.StdoutPath, "a\n"),
			write(180*time.Millisecond, handle.StdoutPath, "\nb\n"),
			setStatus(300*time.Millisecond, "Succeeded"),
		)

		sink := &recordingSink{}

		if err := newTestRenderer(sim, clock, sink).Render(
			t.Context(),
			handle.ID,
			handle.StdoutPath,
			display.Stdout,
		); err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		if got := sink.stream(display.Stdout); !slices.Equal(got, []string{"a", "b"}) {
			t.Errorf("expected stdout lines: got '%q', want '%q'", got, []string{"a", "b"})
		}

		if got := sink.stream(display.Stderr); len(got) != 0 {
			t.Errorf("expected no stderr lines: got '%q'", got)
		}
	})

	t.Run("Test file is not read before running", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		handle := queue.NewJobHandle("42", "mosaic", dir)
		clock := newFakeClock()

		// Written while enqueued, e.g. a stale file, and never rendered because
		// the job finishes without running.
		appendFile(t, handle.StderrPath, "stale\n")

		sim := newSimulation(
			t,
			clock,
			handle,
			setStatus(0, queue.StatusEnqueued),
			setStatus(200*time.Millisecond, "Killed"),
		)

		sink := &recordingSink{}

		if err := newTestRenderer(sim, clock, sink).Render(
			t.Context(),
			handle.ID,
			handle.StderrPath,
			display.Stderr,
		); err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		if got := sink.stream(display.Stderr); len(got) != 0 {
			t.Errorf("expected no lines: got '%q'", got)
		}
	})

	t.Run("Test output file created late", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		handle := queue.NewJobHandle("7", "", dir)
		clock := newFakeClock()

		sim := newSimulation(
			t,
			clock,
			handle,
			setStatus(0, queue.StatusRunning),
			write(500*time.Millisecond, handle.StderrPath, "warning: low memory\n"),
			write(520*time.Millisecond, handle.StderrPath, "partial"),
			setStatus(600*time.Millisecond, "Finished"),
		)

		sink := &recordingSink{}

		if err := newTestRenderer(sim, clock, sink).Render(
			t.Context(),
			handle.ID,
			handle.StderrPath,
			display.Stderr,
		); err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		want := []string{"warning: low memory", "partial"}
		if got := sink.stream(display.Stderr); !slices.Equal(got, want) {
			t.Errorf("expected stderr lines: got '%q', want '%q'", got, want)
		}
	})

	t.Run("Test status is checked once per reads", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		handle := queue.NewJobHandle("42", "", dir)
		clock := newFakeClock()

		q := &sequenceQueue{statuses: []queue.Status{
			queue.StatusRunning,
			queue.StatusRunning,
			queue.StatusRunning,
			"Finished",
		}}

		if err := newTestRenderer(q, clock, &recordingSink{}).Render(
			t.Context(),
			handle.ID,
			handle.StdoutPath,
			display.Stdout,
		); err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		// One query to wait for launch, then one per five reads, including the
		// reads after the check that saw Finished.
		if q.queries() != 4 {
			t.Errorf("expected queries: got '%d', want '%d'", q.queries(), 4)
		}

		if got := len(clock.slept()); got != 15 {
			t.Errorf("expected read pauses: got '%d', want '%d'", got, 15)
		}
	})

	t.Run("Test vanished while running", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		handle := queue.NewJobHandle("42", "", dir)
		clock := newFakeClock()

		q := &sequenceQueue{statuses: []queue.Status{
			queue.StatusRunning,
			queue.StatusUnknown,
		}}

		done := make(chan error, 1)

		go func() {
			done <- newTestRenderer(q, clock, &recordingSink{}).Render(
				t.Context(),
				handle.ID,
				handle.StdoutPath,
				display.Stdout,
			)
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected not to receive error: got '%v'", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("expected renderer to stop once job vanished")
		}
	})

	t.Run("Test cancelled while running", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		handle := queue.NewJobHandle("42", "", dir)
		clock := newFakeClock()

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		sim := newSimulation(
			t,
			clock,
			handle,
			setStatus(0, queue.StatusRunning),
			write(10*time.Millisecond, filepath.Join(dir, "task_42.stdout"), "a\n"),
		)
		sim.interruptAt = 200 * time.Millisecond
		sim.interrupt = cancel

		sink := &recordingSink{}

		err := newTestRenderer(sim, clock, sink).Render(
			ctx,
			handle.ID,
			handle.StdoutPath,
			display.Stdout,
		)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected to receive context.Canceled: got '%v'", err)
		}

		if got := sink.stream(display.Stdout); !slices.Equal(got, []string{"a"}) {
			t.Errorf("expected stdout lines: got '%q', want '%q'", got, []string{"a"})
		}
	})
}
