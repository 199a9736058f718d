// Package config defines solvelog configuration and its layered loading:
// defaults, then an optional YAML file, then SOLVELOG_* environment
// variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/solvelog/internal/puzzle"
	"github.com/roach88/solvelog/internal/recorder"
	"github.com/roach88/solvelog/internal/replay"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// DBPath is the SQLite database file holding session records.
	DBPath string `koanf:"db_path"`

	// SolverName is stored on records when set.
	SolverName string `koanf:"solver_name"`

	// LogUserAgent stores UserAgent on records when true.
	LogUserAgent bool   `koanf:"log_user_agent"`
	UserAgent    string `koanf:"user_agent"`

	// EventLogLevel is full or minimal; minimal skips selection events.
	EventLogLevel string `koanf:"event_log_level"`

	// FlushThreshold writes the record after this many accepted events.
	// Zero disables count-based writes.
	FlushThreshold int `koanf:"flush_threshold"`

	ResumeAfterSolve bool `koanf:"resume_after_solve"`

	// AcrossSection and DownSection name the clue sections used for replay
	// highlighting.
	AcrossSection string `koanf:"across_section"`
	DownSection   string `koanf:"down_section"`

	// AnimationSpeed is the replay playback rate; 2 plays twice as fast.
	AnimationSpeed float64 `koanf:"animation_speed"`

	// HTTPAddr is the listen address of the API server.
	HTTPAddr string `koanf:"http_addr"`

	// ReplayWorkers bounds concurrent timeline builds.
	ReplayWorkers int `koanf:"replay_workers"`

	// QueueSize bounds the candidate batch queue.
	QueueSize int `koanf:"queue_size"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		DBPath:         "solvelog.db",
		EventLogLevel:  string(recorder.LogFull),
		FlushThreshold: recorder.DefaultFlushThreshold,
		AcrossSection:  "Across",
		DownSection:    "Down",
		AnimationSpeed: 1.0,
		HTTPAddr:       "127.0.0.1:8787",
		ReplayWorkers:  4,
		QueueSize:      1024,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if _, err := recorder.ParseLogLevel(c.EventLogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch {
	case c.FlushThreshold < 0:
		return fmt.Errorf("%w: flush_threshold must be >= 0, got %d", ErrInvalidConfig, c.FlushThreshold)
	case c.AnimationSpeed <= 0:
		return fmt.Errorf("%w: animation_speed must be > 0, got %g", ErrInvalidConfig, c.AnimationSpeed)
	case c.ReplayWorkers <= 0:
		return fmt.Errorf("%w: replay_workers must be > 0, got %d", ErrInvalidConfig, c.ReplayWorkers)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be > 0, got %d", ErrInvalidConfig, c.QueueSize)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.AcrossSection == "" || c.DownSection == "":
		return fmt.Errorf("%w: clue section names must not be empty", ErrInvalidConfig)
	case c.AcrossSection == c.DownSection:
		return fmt.Errorf("%w: across_section and down_section must differ", ErrInvalidConfig)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
}

// Policy returns the recorder policy described by c. Call Validate first.
func (c *Config) Policy() recorder.Policy {
	level, _ := recorder.ParseLogLevel(c.EventLogLevel)
	return recorder.Policy{
		FlushThreshold:   c.FlushThreshold,
		ResumeAfterSolve: c.ResumeAfterSolve,
		LogLevel:         level,
	}
}

// Layout returns the clue section layout.
func (c *Config) Layout() puzzle.Layout {
	return puzzle.Layout{Across: c.AcrossSection, Down: c.DownSection}
}

// ReplayOptions returns the timeline build options.
func (c *Config) ReplayOptions() replay.Options {
	return replay.Options{Layout: c.Layout(), Speed: c.AnimationSpeed}
}

// UserAgentInfo is the user agent to store on records, or "" when user agent
// logging is off.
func (c *Config) UserAgentInfo() string {
	if !c.LogUserAgent {
		return ""
	}
	return c.UserAgent
}
