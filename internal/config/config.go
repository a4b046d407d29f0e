// Package config loads agent configuration from an optional config file,
// environment overrides, and programmatic defaults, with live reload of the
// detection thresholds on file change.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the full agent configuration.
type Config struct {
	Logs      LogsSettings      `mapstructure:"logs"`
	Detection DetectionSettings `mapstructure:"detection"`
	Intervals IntervalSettings  `mapstructure:"intervals"`
	Queue     QueueSettings     `mapstructure:"queue"`
	Backend   BackendSettings   `mapstructure:"backend"`
	Server    ServerSettings    `mapstructure:"server"`
}

// LogsSettings controls log output.
type LogsSettings struct {
	Level            string `mapstructure:"level"`
	EnableJSONOutput bool   `mapstructure:"enable-json-output"`
}

// DetectionSettings holds the tunable pattern-analysis thresholds. These are
// the live-reloadable part of the configuration.
type DetectionSettings struct {
	SuspiciousActivityThreshold int           `mapstructure:"suspicious-activity-threshold"`
	PatternWindow               time.Duration `mapstructure:"pattern-window"`
	MinMouseDistance            float64       `mapstructure:"min-mouse-distance"`
	KeyboardDiversity           int           `mapstructure:"keyboard-diversity"`
	AlertsPerMinute             float64       `mapstructure:"alerts-per-minute"`
}

// IntervalSettings holds the periodic cadences.
type IntervalSettings struct {
	Analyze time.Duration `mapstructure:"analyze"`
	Risk    time.Duration `mapstructure:"risk"`
	Flush   time.Duration `mapstructure:"flush"`
	Probe   time.Duration `mapstructure:"probe"`
	Steward time.Duration `mapstructure:"steward"`
}

// QueueSettings configures the delivery queue.
type QueueSettings struct {
	StatePath     string        `mapstructure:"state-path"`
	MaxRetries    int           `mapstructure:"max-retries"`
	UploadTimeout time.Duration `mapstructure:"upload-timeout"`
}

// BackendSettings configures the backend API client.
type BackendSettings struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api-key"`
	UserID   string        `mapstructure:"user-id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ServerSettings configures the local status HTTP server.
type ServerSettings struct {
	HTTPAddr        string        `mapstructure:"http-addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logs.level", "info")
	v.SetDefault("logs.enable-json-output", true)

	v.SetDefault("detection.suspicious-activity-threshold", 10)
	v.SetDefault("detection.pattern-window", "15m")
	v.SetDefault("detection.min-mouse-distance", 50.0)
	v.SetDefault("detection.keyboard-diversity", 5)
	v.SetDefault("detection.alerts-per-minute", 1.0)

	v.SetDefault("intervals.analyze", "2s")
	v.SetDefault("intervals.risk", "30s")
	v.SetDefault("intervals.flush", "30s")
	v.SetDefault("intervals.probe", "60s")
	v.SetDefault("intervals.steward", "5m")

	v.SetDefault("queue.state-path", "queue-state.json")
	v.SetDefault("queue.max-retries", 5)
	v.SetDefault("queue.upload-timeout", "10s")

	v.SetDefault("backend.endpoint", "")
	v.SetDefault("backend.api-key", "")
	v.SetDefault("backend.user-id", "")
	v.SetDefault("backend.timeout", "30s")

	v.SetDefault("server.http-addr", ":8099")
	v.SetDefault("server.shutdown-timeout", "30s")
}

// Loader owns the viper instance so the config file can be watched after
// the initial load.
type Loader struct {
	v   *viper.Viper
	log *logrus.Logger
}

// NewLoader creates a Loader reading path (empty means defaults and
// environment only). Environment variables use the AGENT_ prefix with dots
// and dashes mapped to underscores, e.g. AGENT_BACKEND_API_KEY.
func NewLoader(path string, log *logrus.Logger) *Loader {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("agent")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return &Loader{v: v, log: log}
}

// Load reads the config file (when one was given) and unmarshals the full
// configuration. A missing file is not an error; defaults and environment
// apply.
func (l *Loader) Load() (Config, error) {
	if l.v.ConfigFileUsed() != "" {
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("failed to read config file: %w", err)
			}
			l.log.WithField("path", l.v.ConfigFileUsed()).Info("Config file not found, using defaults")
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Watch re-reads the config on file change and invokes onChange with the
// fresh configuration. Unparseable updates are logged and skipped.
func (l *Loader) Watch(onChange func(Config)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		var cfg Config
		if err := l.v.Unmarshal(&cfg); err != nil {
			l.log.WithError(err).Warn("Ignoring config change, unmarshal failed")
			return
		}
		l.log.WithField("file", e.Name).Info("Configuration reloaded")
		onChange(cfg)
	})
	l.v.WatchConfig()
}
