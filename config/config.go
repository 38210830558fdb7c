package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/benz9527/xrbt/lib/infra"
	"github.com/benz9527/xrbt/lib/tree"
	"github.com/benz9527/xrbt/xlog"
)

const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"

	PromptLine        = "line"
	PromptInteractive = "interactive"
)

type LogConfig struct {
	Level   string               `yaml:"level"`
	Encoder string               `yaml:"encoder"`
	File    *xlog.FileCoreConfig `yaml:"file,omitempty"`
}

type MetricsConfig struct {
	Exporter string        `yaml:"exporter"`
	Addr     string        `yaml:"addr"`
	Interval time.Duration `yaml:"interval"`
}

type TreeConfig struct {
	DuplicatePolicy string `yaml:"duplicatePolicy"`
}

type ShellConfig struct {
	Prompt string `yaml:"prompt"`
}

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tree    TreeConfig    `yaml:"tree"`
	Shell   ShellConfig   `yaml:"shell"`

	// path is the YAML source, empty without --config.
	path string
	// levelPinned is set when --log-level wins over the file.
	levelPinned bool
}

func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:   xlog.LogLevelInfo.String(),
			Encoder: xlog.PlainText.String(),
		},
		Metrics: MetricsConfig{
			Exporter: ExporterNone,
			Addr:     ":9464",
			Interval: 10 * time.Second,
		},
		Tree: TreeConfig{
			DuplicatePolicy: tree.DuplicateOverwrite.String(),
		},
		Shell: ShellConfig{
			Prompt: PromptLine,
		},
	}
}

func (cfg *Config) Path() string {
	return cfg.path
}

// envDefault is the base the YAML file is laid over.
func envDefault() *Config {
	cfg := Default()
	if lvl := os.Getenv("XLOG_LVL"); strings.TrimSpace(lvl) != "" {
		cfg.Log.Level = lvl
	}
	return cfg
}

// Load resolves the configuration from the flags, then the YAML file named
// by --config, then the XLOG_LVL env, then the defaults.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("xrbt", pflag.ContinueOnError)
	var (
		cfgPath  = fs.StringP("config", "c", "", "YAML config file")
		level    = fs.String("log-level", "", "log level: DEBUG|INFO|WARN|ERROR")
		encoder  = fs.String("log-encoder", "", "log encoder: json|plaintext")
		logDir   = fs.String("log-dir", "", "log file dir, file logging is off if empty")
		logFile  = fs.String("log-file", "xrbt.log", "log file name beneath --log-dir")
		exporter = fs.String("metrics-exporter", "", "metrics exporter: none|stdout|prometheus")
		addr     = fs.String("metrics-addr", "", "prometheus scrape listen address")
		interval = fs.Duration("metrics-interval", 0, "stdout metrics export interval")
		policy   = fs.String("duplicate-policy", "", "duplicate name policy: keep|overwrite|reject")
		prompt   = fs.String("prompt", "", "prompt mode: line|interactive")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := envDefault()
	if *cfgPath != "" {
		if err := cfg.loadFile(*cfgPath); err != nil {
			return nil, err
		}
	}

	if fs.Changed("log-level") {
		cfg.Log.Level = *level
		cfg.levelPinned = true
	}
	if fs.Changed("log-encoder") {
		cfg.Log.Encoder = *encoder
	}
	if fs.Changed("log-dir") {
		cfg.Log.File = &xlog.FileCoreConfig{FilePath: *logDir, Filename: *logFile}
	} else if fs.Changed("log-file") && cfg.Log.File != nil {
		cfg.Log.File.Filename = *logFile
	}
	if fs.Changed("metrics-exporter") {
		cfg.Metrics.Exporter = *exporter
	}
	if fs.Changed("metrics-addr") {
		cfg.Metrics.Addr = *addr
	}
	if fs.Changed("metrics-interval") {
		cfg.Metrics.Interval = *interval
	}
	if fs.Changed("duplicate-policy") {
		cfg.Tree.DuplicatePolicy = *policy
	}
	if fs.Changed("prompt") {
		cfg.Shell.Prompt = *prompt
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays the YAML document on the current values.
func (cfg *Config) loadFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, "[config] resolve "+path)
	}
	data, err := os.ReadFile(abs) // #nosec G304 -- path is the intended file to load
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, "[config] read "+abs)
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return infra.WrapErrorStackWithMessage(err, "[config] parse "+abs)
	}
	cfg.path = abs
	return nil
}

// Validate reports every invalid field at once.
func (cfg *Config) Validate() error {
	var err error
	if _, e := xlog.ParseLogLevel(cfg.Log.Level); e != nil {
		err = multierr.Append(err, e)
	}
	if _, e := xlog.ParseLogEncoder(cfg.Log.Encoder); e != nil {
		err = multierr.Append(err, e)
	}
	if f := cfg.Log.File; f != nil && strings.TrimSpace(f.FilePath) == "" {
		err = multierr.Append(err, infra.NewErrorStack("[config] log file dir is empty"))
	}
	switch cfg.Metrics.Exporter {
	case ExporterNone:
	case ExporterStdout:
		if cfg.Metrics.Interval <= 0 {
			err = multierr.Append(err, infra.NewErrorStack("[config] metrics interval must be positive"))
		}
	case ExporterPrometheus:
		if strings.TrimSpace(cfg.Metrics.Addr) == "" {
			err = multierr.Append(err, infra.NewErrorStack("[config] metrics addr is empty"))
		}
	default:
		err = multierr.Append(err, infra.NewErrorStack("[config] unknown metrics exporter "+cfg.Metrics.Exporter))
	}
	if _, e := tree.ParseDuplicatePolicy(cfg.Tree.DuplicatePolicy); e != nil {
		err = multierr.Append(err, e)
	}
	switch cfg.Shell.Prompt {
	case PromptLine, PromptInteractive:
	default:
		err = multierr.Append(err, infra.NewErrorStack("[config] unknown prompt mode "+cfg.Shell.Prompt))
	}
	return err
}

// The accessors below expect a validated config.

func (cfg *Config) LogLevel() zapcore.Level {
	lvl, _ := xlog.ParseLogLevel(cfg.Log.Level)
	return lvl.ZapLevel()
}

func (cfg *Config) LoggerOptions() []xlog.XLoggerOption {
	lvl, _ := xlog.ParseLogLevel(cfg.Log.Level)
	enc, _ := xlog.ParseLogEncoder(cfg.Log.Encoder)
	opts := []xlog.XLoggerOption{
		xlog.WithXLoggerLevel(lvl),
		xlog.WithXLoggerEncoder(enc),
		xlog.WithXLoggerConsoleWriter(nil),
	}
	if cfg.Log.File != nil {
		opts = append(opts, xlog.WithXLoggerFileWriter(cfg.Log.File))
	}
	return opts
}

func (cfg *Config) DuplicatePolicy() tree.DuplicatePolicy {
	policy, _ := tree.ParseDuplicatePolicy(cfg.Tree.DuplicatePolicy)
	return policy
}
