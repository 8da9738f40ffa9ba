package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nixpig/jobattach/internal/attach"
	"github.com/nixpig/jobattach/internal/display"
	"github.com/nixpig/jobattach/internal/queue"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const envPrefix = "JOBATTACH_"

type config struct {
	Queue  queueConfig  `yaml:"queue"`
	Poll   pollConfig   `yaml:"poll"`
	Render renderConfig `yaml:"render"`
	Log    logConfig    `yaml:"log"`
}

type queueConfig struct {
	Command       string        `yaml:"command"`
	CancelTimeout time.Duration `yaml:"cancel_timeout"`
}

type pollConfig struct {
	Interval    time.Duration `yaml:"interval"`
	VanishGrace time.Duration `yaml:"vanish_grace"`
}

type renderConfig struct {
	ReadInterval  time.Duration `yaml:"read_interval"`
	ReadsPerCheck int           `yaml:"reads_per_check"`
	Color         string        `yaml:"color"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaultConfig() *config {
	return &config{
		Queue: queueConfig{
			Command:       queue.DefaultCommand,
			CancelTimeout: attach.DefaultCancelTimeout,
		},
		Poll: pollConfig{
			Interval:    attach.DefaultPollInterval,
			VanishGrace: attach.DefaultVanishGrace,
		},
		Render: renderConfig{
			ReadInterval:  attach.DefaultReadInterval,
			ReadsPerCheck: attach.DefaultReadsPerCheck,
			Color:         string(display.ColorAuto),
		},
		Log: logConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// monitorConfig maps the config onto the attach monitor's settings.
func (c *config) monitorConfig() attach.MonitorConfig {
	return attach.MonitorConfig{
		Poll: attach.PollerConfig{
			Interval:    c.Poll.Interval,
			VanishGrace: c.Poll.VanishGrace,
		},
		Render: attach.RendererConfig{
			ReadInterval:  c.Render.ReadInterval,
			ReadsPerCheck: c.Render.ReadsPerCheck,
		},
		CancelTimeout: c.Queue.CancelTimeout,
	}
}

func (c *config) validate() error {
	if strings.TrimSpace(c.Queue.Command) == "" {
		return errors.New("queue command cannot be empty")
	}

	if c.Queue.CancelTimeout <= 0 {
		return errors.New("cancel timeout must be positive")
	}

	if c.Poll.Interval <= 0 {
		return errors.New("poll interval must be positive")
	}

	if c.Poll.VanishGrace < 0 {
		return errors.New("vanish grace cannot be negative")
	}

	if c.Render.ReadInterval <= 0 {
		return errors.New("read interval must be positive")
	}

	if c.Render.ReadsPerCheck < 1 {
		return errors.New("reads per check must be at least 1")
	}

	if _, err := display.ParseColorMode(c.Render.Color); err != nil {
		return err
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format '%s'", c.Log.Format)
	}

	return nil
}

// loadConfigFile overlays the YAML file at path onto c. Keys missing from the
// file keep their current values.
func (c *config) loadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file '%s': %w", path, err)
	}

	return nil
}

// applyEnv overlays JOBATTACH_* environment variables onto c.
func (c *config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"QUEUE_COMMAND": &c.Queue.Command,
		"RENDER_COLOR":  &c.Render.Color,
		"LOG_LEVEL":     &c.Log.Level,
		"LOG_FORMAT":    &c.Log.Format,
	}

	for key, dst := range strs {
		if v := getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"QUEUE_CANCEL_TIMEOUT": &c.Queue.CancelTimeout,
		"POLL_INTERVAL":        &c.Poll.Interval,
		"POLL_VANISH_GRACE":    &c.Poll.VanishGrace,
		"RENDER_READ_INTERVAL": &c.Render.ReadInterval,
	}

	for key, dst := range durations {
		v := getenv(envPrefix + key)
		if v == "" {
			continue
		}

		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", envPrefix, key, err)
		}

		*dst = d
	}

	if v := getenv(envPrefix + "RENDER_READS_PER_CHECK"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sRENDER_READS_PER_CHECK: %w", envPrefix, err)
		}

		c.Render.ReadsPerCheck = n
	}

	return nil
}

// flagValues holds the persistent flags. Only flags set on the command line
// override the config.
type flagValues struct {
	configPath    string
	debug         bool
	queueCommand  string
	cancelTimeout time.Duration
	pollInterval  time.Duration
	vanishGrace   time.Duration
	readInterval  time.Duration
	readsPerCheck int
	color         string
	logFormat     string
}

func (f *flagValues) register(fs *pflag.FlagSet) {
	d := defaultConfig()

	fs.StringVar(
		&f.configPath,
		"config",
		"",
		"Path to YAML config file (default $"+envPrefix+"CONFIG)",
	)

	fs.BoolVar(&f.debug, "debug", false, "Enable debug logs")

	fs.StringVar(
		&f.queueCommand,
		"queue-command",
		d.Queue.Command,
		"Queue service command-line tool",
	)

	fs.DurationVar(
		&f.cancelTimeout,
		"cancel-timeout",
		d.Queue.CancelTimeout,
		"Timeout of the cancellation request sent on interrupt",
	)

	fs.DurationVar(
		&f.pollInterval,
		"poll-interval",
		d.Poll.Interval,
		"Interval between job status queries",
	)

	fs.DurationVar(
		&f.vanishGrace,
		"vanish-grace",
		d.Poll.VanishGrace,
		"How long a job may be missing from the queue before it's treated as gone (0 disables)",
	)

	fs.DurationVar(
		&f.readInterval,
		"read-interval",
		d.Render.ReadInterval,
		"Pause after each read of an output file",
	)

	fs.IntVar(
		&f.readsPerCheck,
		"reads-per-check",
		d.Render.ReadsPerCheck,
		"Output file reads between job status checks",
	)

	fs.StringVar(
		&f.color,
		"color",
		d.Render.Color,
		"Colorize output: auto, always or never",
	)

	fs.StringVar(
		&f.logFormat,
		"log-format",
		d.Log.Format,
		"Log format: text or json",
	)
}

func (f *flagValues) apply(fs *pflag.FlagSet, c *config) {
	if fs.Changed("debug") && f.debug {
		c.Log.Level = "debug"
	}

	if fs.Changed("queue-command") {
		c.Queue.Command = f.queueCommand
	}

	if fs.Changed("cancel-timeout") {
		c.Queue.CancelTimeout = f.cancelTimeout
	}

	if fs.Changed("poll-interval") {
		c.Poll.Interval = f.pollInterval
	}

	if fs.Changed("vanish-grace") {
		c.Poll.VanishGrace = f.vanishGrace
	}

	if fs.Changed("read-interval") {
		c.Render.ReadInterval = f.readInterval
	}

	if fs.Changed("reads-per-check") {
		c.Render.ReadsPerCheck = f.readsPerCheck
	}

	if fs.Changed("color") {
		c.Render.Color = f.color
	}

	if fs.Changed("log-format") {
		c.Log.Format = f.logFormat
	}
}

// loadConfig builds the config from defaults, then the config file, then the
// environment, then flags set on the command line.
func loadConfig(
	fs *pflag.FlagSet,
	f *flagValues,
	getenv func(string) string,
) (*config, error) {
	cfg := defaultConfig()

	path := f.configPath
	if path == "" {
		path = getenv(envPrefix + "CONFIG")
	}

	if path != "" {
		if err := cfg.loadConfigFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	f.apply(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
