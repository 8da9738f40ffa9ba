package attach

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nixpig/jobattach/internal/queue"
)

const (
	// DefaultPollInterval is the cadence of status queries.
	DefaultPollInterval = 50 * time.Millisecond

	// DefaultVanishGrace is how long a job that has been seen may be missing
	// from the listing before it's treated as gone.
	DefaultVanishGrace = 10 * time.Second
)

// StatusQuerier returns the status of a job.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, id string) (queue.Status, error)
}

// Predicate reports whether a status is the one being waited for.
type Predicate func(queue.Status) bool

// Not returns a Predicate satisfied by any status other than s.
func Not(s queue.Status) Predicate {
	return func(got queue.Status) bool {
		return got != s
	}
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	// Interval between status queries.
	Interval time.Duration

	// VanishGrace is how long a job that has been seen with a concrete status
	// may read as StatusUnknown before Status returns ErrJobVanished. Zero
	// disables vanishing.
	VanishGrace time.Duration
}

// Poller is a read-through mirror of a job's status in the queue. It folds
// transient StatusUnknown results into the last concrete status and logs
// status transitions. Safe for concurrent use; the monitor and both renderers
// share one Poller.
type Poller struct {
	querier StatusQuerier
	clock   Clock
	cfg     PollerConfig
	logger  *slog.Logger

	mu       sync.Mutex
	last     queue.Status
	lastSeen time.Time
}

// NewPoller creates a Poller that queries querier. A zero Interval defaults
// to DefaultPollInterval.
func NewPoller(
	querier StatusQuerier,
	clock Clock,
	cfg PollerConfig,
	logger *slog.Logger,
) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}

	return &Poller{
		querier: querier,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// Status queries the job's status once.
//
// Before the job has been seen, StatusUnknown is returned as is: a job that
// was just submitted may not be listed yet. Once seen, StatusUnknown is
// reported as the last concrete status until the vanish grace period runs
// out, after which ErrJobVanished is returned. Query failures are logged and
// treated as StatusUnknown. The only other error is the context's.
func (p *Poller) Status(ctx context.Context, id string) (queue.Status, error) {
	status, err := p.querier.QueryStatus(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return queue.StatusUnknown, ctx.Err()
		}

		p.logger.Debug("query job status", "id", id, "err", err)

		status = queue.StatusUnknown
	}

	return p.observe(id, status)
}

// PollUntil queries the job's status every interval until a concrete status
// satisfies until, and returns that status. StatusUnknown never satisfies
// until. If observe is not nil, it's called with every status read.
//
// There's no retry limit: PollUntil returns early only when ctx is done or
// the job vanishes.
func (p *Poller) PollUntil(
	ctx context.Context,
	id string,
	until Predicate,
	observe func(attempt int, status queue.Status),
) (queue.Status, error) {
	for attempt := 1; ; attempt++ {
		status, err := p.Status(ctx, id)
		if err != nil {
			return status, err
		}

		if observe != nil {
			observe(attempt, status)
		}

		if status != queue.StatusUnknown && until(status) {
			return status, nil
		}

		if err := p.clock.Sleep(ctx, p.cfg.Interval); err != nil {
			return status, err
		}
	}
}

// Latest returns the last concrete status seen, or StatusUnknown if the job
// hasn't been seen.
func (p *Poller) Latest() queue.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.last
}

func (p *Poller) observe(id string, status queue.Status) (queue.Status, error) {
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if status != queue.StatusUnknown {
		if status != p.last {
			p.logger.Debug("job status changed", "id", id, "from", p.last, "to", status)
		}

		p.last = status
		p.lastSeen = now

		return status, nil
	}

	if p.last == queue.StatusUnknown {
		return queue.StatusUnknown, nil
	}

	if p.cfg.VanishGrace > 0 && now.Sub(p.lastSeen) >= p.cfg.VanishGrace {
		return queue.StatusUnknown, ErrJobVanished
	}

	return p.last, nil
}
