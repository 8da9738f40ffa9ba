package attach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nixpig/jobattach/internal/attach/output"
	"github.com/nixpig/jobattach/internal/display"
	"github.com/nixpig/jobattach/internal/queue"
)

const (
	// DefaultReadInterval is the pause after each read of an output file.
	DefaultReadInterval = 10 * time.Millisecond

	// DefaultReadsPerCheck is the number of reads between status checks.
	DefaultReadsPerCheck = 5
)

// LineWriter writes a line of job output for a stream.
type LineWriter interface {
	WriteLine(stream display.Stream, line string) error
}

// RendererConfig configures a Renderer.
type RendererConfig struct {
	// ReadInterval is the pause after each read of the output file.
	ReadInterval time.Duration

	// ReadsPerCheck is the number of reads made after each status check.
	ReadsPerCheck int
}

// Renderer tails one output stream of a job while the job is running.
type Renderer struct {
	poller *Poller
	clock  Clock
	sink   LineWriter
	cfg    RendererConfig
	logger *slog.Logger
}

// NewRenderer creates a Renderer. Zero config values take the defaults.
func NewRenderer(
	poller *Poller,
	clock Clock,
	sink LineWriter,
	cfg RendererConfig,
	logger *slog.Logger,
) *Renderer {
	if cfg.ReadInterval <= 0 {
		cfg.ReadInterval = DefaultReadInterval
	}

	if cfg.ReadsPerCheck <= 0 {
		cfg.ReadsPerCheck = DefaultReadsPerCheck
	}

	return &Renderer{
		poller: poller,
		clock:  clock,
		sink:   sink,
		cfg:    cfg,
		logger: logger,
	}
}

// Render waits for the job with the given id to leave the queue and, while it
// is running, writes every non-empty line appended to the file at path to the
// sink as stream.
//
// The status is checked once per ReadsPerCheck reads. When a check reports
// the job is no longer running, the reads that follow that check still
// happen, then rendering stops. The file isn't opened before the job runs.
//
// Render returns nil when the job stops running, the context's error if ctx
// is done first, or the sink's error if a write fails.
func (r *Renderer) Render(
	ctx context.Context,
	id string,
	path string,
	stream display.Stream,
) error {
	logger := r.logger.With("id", id, "stream", stream)

	status, err := r.poller.PollUntil(ctx, id, Not(queue.StatusEnqueued), nil)
	if err != nil {
		if errors.Is(err, ErrJobVanished) {
			logger.Warn("job vanished before launch")
			return nil
		}

		return err
	}

	if status != queue.StatusRunning {
		logger.Debug("job not running, nothing to render", "status", status)
		return nil
	}

	f := output.NewFollower(path)
	defer f.Close()

	for status == queue.StatusRunning {
		status, err = r.poller.Status(ctx, id)
		if err != nil {
			if !errors.Is(err, ErrJobVanished) {
				return err
			}

			logger.Warn("job vanished while running")
		}

		for range r.cfg.ReadsPerCheck {
			if err := r.emit(stream, f.Next()); err != nil {
				return err
			}

			if err := r.clock.Sleep(ctx, r.cfg.ReadInterval); err != nil {
				return err
			}
		}
	}

	if err := r.emit(stream, f.Flush()); err != nil {
		return err
	}

	logger.Debug("rendering finished", "status", status, "opened", f.Opened())

	return nil
}

func (r *Renderer) emit(stream display.Stream, lines []string) error {
	for _, line := range lines {
		if line == "" {
			continue
		}

		if err := r.sink.WriteLine(stream, line); err != nil {
			return fmt.Errorf("write %s line: %w", stream, err)
		}
	}

	return nil
}
