package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/nixpig/jobattach/internal/attach"
	"github.com/nixpig/jobattach/internal/display"
	"github.com/nixpig/jobattach/internal/queue"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// TODO: Inject version at build time.
const version = "0.0.1"

type cli struct {
	// runner executes the queue service's command-line tool. Nil uses
	// queue.ExecRunner.
	runner queue.Runner
	getenv func(string) string
	clock  attach.Clock

	cfg    *config
	logger *slog.Logger
	client *queue.Client
}

func newCLI() *cli {
	return &cli{getenv: os.Getenv, clock: attach.RealClock()}
}

func (c *cli) rootCmd() *cobra.Command {
	flags := &flagValues{}

	command := &cobra.Command{
		Use:          "jobattach",
		Short:        "Submit a job to a batch queue and attach to its output",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), flags, c.getenv)
			if err != nil {
				return err
			}

			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}

			c.cfg = cfg
			c.logger = logger
			c.client = queue.NewClient(cfg.Queue.Command, c.runner, logger)

			logger.Debug("config loaded", "queue", cfg.Queue.Command, "poll", cfg.Poll.Interval)

			return nil
		},
	}

	command.AddCommand(
		c.runCmd(),
		c.attachCmd(),
		c.statusCmd(),
		c.cancelCmd(),
	)

	command.CompletionOptions.HiddenDefaultCmd = true

	flags.register(command.PersistentFlags())

	return command
}

func (c *cli) runCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "run [flags] -- QUEUE_ARGS",
		Short: "Submit a job and attach to it until it finishes",
		Long: `Submit a job and attach to it until it finishes.

QUEUE_ARGS are forwarded verbatim to the queue's submit command. Separate them
with -- whenever they start with a flag, otherwise they are parsed as flags of
jobattach itself. Everything after the first positional argument is forwarded
as-is.`,
		Example: "  jobattach run -- --mode single --device gpu ./photomosaic input.jpg\n" +
			"  jobattach run ./photomosaic --verbose",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.monitor(cmd).Run(cmd.Context(), args)
		},
	}

	// Flags after the first positional belong to the job, not to jobattach.
	// Queue flags before it still need --:
	//	`jobattach run -- --mode single ./photomosaic`
	command.Flags().SetInterspersed(false)
	command.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w (separate queue arguments with --)", err)
	})

	return command
}

func (c *cli) attachCmd() *cobra.Command {
	var dir, name string

	command := &cobra.Command{
		Use:     "attach [flags] JOB_ID",
		Short:   "Attach to a submitted job until it finishes",
		Example: "  jobattach attach 42 --dir /home/user/photomosaic",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle := queue.NewJobHandle(args[0], name, dir)

			return c.monitor(cmd).Attach(cmd.Context(), handle)
		},
	}

	command.Flags().StringVar(&dir, "dir", "", "Directory holding the job's output files")
	command.Flags().StringVar(&name, "name", "", "Name of the job (default task_JOB_ID)")
	command.MarkFlagRequired("dir")

	return command
}

func (c *cli) statusCmd() *cobra.Command {
	command := &cobra.Command{
		Use:     "status [flags] [JOB_ID]",
		Short:   "Query status of a job, or of every job",
		Example: "  jobattach status 42",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := c.client.List(cmd.Context())
			if err != nil {
				return err
			}

			if len(args) == 1 {
				i := slices.IndexFunc(entries, func(e queue.Entry) bool {
					return e.JobID == args[0]
				})
				if i < 0 {
					return fmt.Errorf("job '%s' not found", args[0])
				}

				entries = entries[i : i+1]
			}

			writeEntries(cmd.OutOrStdout(), entries)

			return nil
		},
	}

	return command
}

func (c *cli) cancelCmd() *cobra.Command {
	command := &cobra.Command{
		Use:     "cancel [flags] JOB_ID",
		Short:   "Request cancellation of a job",
		Example: "  jobattach cancel 42",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.client.Cancel(cmd.Context(), args[0])
		},
	}

	return command
}

// monitor creates a Monitor writing job output to the command's stdout and
// progress to its stderr.
func (c *cli) monitor(cmd *cobra.Command) *attach.Monitor {
	mode, _ := display.ParseColorMode(c.cfg.Render.Color)

	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	return attach.NewMonitor(
		c.client,
		display.NewSink(stdout, display.NewTheme(stdout, mode)),
		display.NewProgress(stderr, display.NewTheme(stderr, mode), isTerminal(stderr)),
		c.clock,
		c.cfg.monitorConfig(),
		c.logger,
	)
}

func writeEntries(w io.Writer, entries []queue.Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "ID\tNAME\tSTATUS\t\n")

	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", e.JobID, e.Name, e.Status)
	}

	tw.Flush()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(f.Fd()))
}
