package attach_test

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/nixpig/jobattach/internal/display"
	"github.com/nixpig/jobattach/internal/queue"
)

var discardLogger = slog.New(slog.DiscardHandler)

// fakeClock advances only when slept on.
type fakeClock struct {
	mu     sync.Mutex
	start  time.Time
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	start := time.Date(2017, 6, 1, 0, 0, 0, 0, time.UTC)
	return &fakeClock{start: start, now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()

	runtime.Gosched()

	return ctx.Err()
}

func (c *fakeClock) elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now.Sub(c.start)
}

func (c *fakeClock) slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]time.Duration(nil), c.sleeps...)
}

// sequenceQueue reports statuses in order, repeating the last one once the
// sequence is exhausted.
type sequenceQueue struct {
	mu       sync.Mutex
	statuses []queue.Status
	errs     []error
	calls    int
}

func (q *sequenceQueue) QueryStatus(
	ctx context.Context,
	id string,
) (queue.Status, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := min(q.calls, len(q.statuses)-1)
	q.calls++

	var err error
	if i < len(q.errs) {
		err = q.errs[i]
	}

	return q.statuses[i], err
}

func (q *sequenceQueue) queries() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.calls
}

// event is something that happens to the simulated job once the simulation's
// clock reaches at: its status changes, or data is appended to a file.
type event struct {
	at     time.Duration
	status queue.Status
	path   string
	data   string
}

func setStatus(at time.Duration, status queue.Status) event {
	return event{at: at, status: status}
}

func write(at time.Duration, path, data string) event {
	return event{at: at, path: path, data: data}
}

// simulation is a queue service running a single job along a timeline of
// events driven by a fakeClock.
type simulation struct {
	t      *testing.T
	clock  *fakeClock
	handle queue.JobHandle

	mu         sync.Mutex
	events     []event
	next       int
	status     queue.Status
	submitErr  error
	submitArgs []string
	submitCtx  error
	cancels    []string

	// interruptAt cancels interrupt once the clock reaches it.
	interruptAt time.Duration
	interrupt   context.CancelFunc
}

func newSimulation(
	t *testing.T,
	clock *fakeClock,
	handle queue.JobHandle,
	events ...event,
) *simulation {
	t.Helper()

	return &simulation{t: t, clock: clock, handle: handle, events: events}
}

func (s *simulation) Submit(
	ctx context.Context,
	args []string,
) (queue.JobHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submitArgs = args
	s.submitCtx = ctx.Err()

	if s.submitErr != nil {
		return queue.JobHandle{}, s.submitErr
	}

	return s.handle, nil
}

func (s *simulation) QueryStatus(
	ctx context.Context,
	id string,
) (queue.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := s.clock.elapsed()

	for s.next < len(s.events) && s.events[s.next].at <= elapsed {
		e := s.events[s.next]
		s.next++

		if e.path != "" {
			appendFile(s.t, e.path, e.data)
			continue
		}

		s.status = e.status
	}

	if s.interrupt != nil && elapsed >= s.interruptAt {
		s.interrupt()
	}

	if id != s.handle.ID {
		return queue.StatusUnknown, nil
	}

	return s.status, nil
}

func (s *simulation) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancels = append(s.cancels, id)

	return nil
}

func (s *simulation) cancelled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.cancels...)
}

func appendFile(t *testing.T, path, data string) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Errorf("failed to open '%s': '%v'", path, err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(data); err != nil {
		t.Errorf("failed to write '%s': '%v'", path, err)
	}
}

type renderedLine struct {
	stream display.Stream
	line   string
}

// recordingSink records lines per stream.
type recordingSink struct {
	mu    sync.Mutex
	lines []renderedLine
}

func (s *recordingSink) WriteLine(stream display.Stream, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = append(s.lines, renderedLine{stream: stream, line: line})

	return nil
}

func (s *recordingSink) stream(stream display.Stream) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lines []string
	for _, l := range s.lines {
		if l.stream == stream {
			lines = append(lines, l.line)
		}
	}

	return lines
}

// recordingProgress records the progress steps reported, except Waiting.
type recordingProgress struct {
	mu    sync.Mutex
	steps []string
	polls int
}

func (p *recordingProgress) record(step string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.steps = append(p.steps, step)
}

func (p *recordingProgress) Enqueued(name string) { p.record("Enqueued " + name) }
func (p *recordingProgress) Launched()            { p.record("Launched") }
func (p *recordingProgress) Finished()            { p.record("Finished") }
func (p *recordingProgress) Aborting()            { p.record("Aborting") }

func (p *recordingProgress) Waiting(attempt int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.polls = attempt
}

func (p *recordingProgress) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.steps...)
}
