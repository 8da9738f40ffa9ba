package queue

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// DefaultCommand is the queue service's command-line tool.
const DefaultCommand = "thorq"

// Runner runs a command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

// Run executes name with args and returns its standard output. Standard error
// is included in the returned error when the command fails.
func (ExecRunner) Run(
	ctx context.Context,
	name string,
	args ...string,
) ([]byte, error) {
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}

		return out, err
	}

	return out, nil
}

// Client submits, queries and cancels jobs through the queue service's
// command-line tool. Safe for concurrent use.
type Client struct {
	command string
	runner  Runner
	logger  *slog.Logger
}

// NewClient creates a Client that invokes command using runner.
func NewClient(command string, runner Runner, logger *slog.Logger) *Client {
	if command == "" {
		command = DefaultCommand
	}

	if runner == nil {
		runner = ExecRunner{}
	}

	return &Client{command: command, runner: runner, logger: logger}
}

// Submit enqueues a new job, forwarding args verbatim. A reply that can't be
// parsed returns a ProtocolError.
func (c *Client) Submit(ctx context.Context, args []string) (JobHandle, error) {
	out, err := c.runner.Run(ctx, c.command, append([]string{"--add"}, args...)...)
	if err != nil {
		return JobHandle{}, fmt.Errorf("run %s --add: %w", c.command, err)
	}

	reply, err := ParseSubmitReply(out)
	if err != nil {
		return JobHandle{}, err
	}

	c.logger.Debug(
		"parsed submit reply",
		"id", reply.JobID,
		"name", reply.Name,
		"mode", reply.Mode,
		"device", reply.Device,
		"path", reply.Path,
	)

	return reply.Handle(), nil
}

// List returns the status of every job known to the queue service.
func (c *Client) List(ctx context.Context) ([]Entry, error) {
	out, err := c.runner.Run(ctx, c.command, "--stat-all")
	if err != nil {
		return nil, fmt.Errorf("run %s --stat-all: %w", c.command, err)
	}

	return ParseStatusListing(out)
}

// QueryStatus returns the status of the job with the given id. A job missing
// from the listing is StatusUnknown, not an error.
func (c *Client) QueryStatus(ctx context.Context, id string) (Status, error) {
	entries, err := c.List(ctx)
	if err != nil {
		return StatusUnknown, err
	}

	return Lookup(entries, id), nil
}

// Cancel requests cancellation of the job with the given id. It doesn't wait
// for the job to stop.
func (c *Client) Cancel(ctx context.Context, id string) error {
	out, err := c.runner.Run(ctx, c.command, "--kill", id)
	if err != nil {
		return fmt.Errorf("run %s --kill: %w", c.command, err)
	}

	c.logger.Debug("cancel requested", "id", id, "reply", strings.TrimSpace(string(out)))

	return nil
}
