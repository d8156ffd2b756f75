package cfg

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	ConfigFile string `long:"config" env:"BROOK_CONFIG" description:"Path to an optional YAML configuration file"`

	// Storage
	DBPath string `long:"db-path" env:"BROOK_DB_PATH" description:"SQLite database path (defaults to the user config directory)"`

	// Synchronization
	TickInterval   time.Duration `long:"tick-interval" env:"BROOK_TICK_INTERVAL" default:"10m" description:"Interval between automatic refreshes of all feeds (0 disables)"`
	NetworkTimeout time.Duration `long:"network-timeout" env:"BROOK_NETWORK_TIMEOUT" default:"30s" description:"Timeout for a single feed fetch"`
	WorkerCount    int           `long:"worker-count" env:"BROOK_WORKER_COUNT" default:"8" description:"Upper bound on concurrent database connections during batch refresh"`
	UserAgent      string        `long:"user-agent" env:"BROOK_USER_AGENT" default:"brook/1.0" description:"User agent string for HTTP requests"`

	// Presentation
	LineLength    int           `long:"line-length" env:"BROOK_LINE_LENGTH" default:"90" description:"Column entry content is wrapped at"`
	FlashDuration time.Duration `long:"flash-duration" env:"BROOK_FLASH_DURATION" default:"4s" description:"How long transient status messages stay visible"`

	Debug bool `long:"debug" env:"BROOK_DEBUG" description:"Enable debug logging"`
}

// fileCfg mirrors rawCfg for the optional YAML file. Durations are strings so
// the file can use the same "10m" / "30s" notation as the flags.
type fileCfg struct {
	DBPath         string `yaml:"db_path"`
	TickInterval   string `yaml:"tick_interval"`
	NetworkTimeout string `yaml:"network_timeout"`
	WorkerCount    int    `yaml:"worker_count"`
	UserAgent      string `yaml:"user_agent"`
	LineLength     int    `yaml:"line_length"`
	FlashDuration  string `yaml:"flash_duration"`
	Debug          bool   `yaml:"debug"`
}

var globalCfg *Cfg

// Load parses flags and environment, layers in the YAML file when one is
// given (flags and env win over the file, the file wins over built-in
// defaults), and stores the result for Get.
func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	var file fileCfg
	if raw.ConfigFile != "" {
		loaded, err := loadConfigFile(raw.ConfigFile)
		if err != nil {
			return nil, err
		}
		file = loaded
	}

	cfg := &Cfg{
		DBPath:         pick(parser, "db-path", raw.DBPath, file.DBPath),
		TickInterval:   pickDuration(parser, "tick-interval", raw.TickInterval, file.TickInterval),
		NetworkTimeout: pickDuration(parser, "network-timeout", raw.NetworkTimeout, file.NetworkTimeout),
		WorkerCount:    pick(parser, "worker-count", raw.WorkerCount, file.WorkerCount),
		UserAgent:      pick(parser, "user-agent", raw.UserAgent, file.UserAgent),
		LineLength:     pick(parser, "line-length", raw.LineLength, file.LineLength),
		FlashDuration:  pickDuration(parser, "flash-duration", raw.FlashDuration, file.FlashDuration),
		Debug:          raw.Debug || file.Debug,
		Version:        GetVersion(),
	}

	if cfg.DBPath == "" {
		path, err := defaultDBPath()
		if err != nil {
			return nil, err
		}
		cfg.DBPath = path
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func loadConfigFile(path string) (fileCfg, error) {
	var file fileCfg

	data, err := os.ReadFile(path)
	if err != nil {
		return file, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("failed to parse config file: %w", err)
	}

	return file, nil
}

func defaultDBPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config directory: %w", err)
	}
	return filepath.Join(dir, "brook", "brook.db"), nil
}

// pick resolves one setting: an explicitly passed flag or env var beats the
// config file, which beats the flag's default.
func pick[T comparable](parser *flags.Parser, name string, flagValue, fileValue T) T {
	if opt := parser.FindOptionByLongName(name); opt != nil && opt.IsSet() && !opt.IsSetDefault() {
		return flagValue
	}
	var zero T
	if fileValue != zero {
		return fileValue
	}
	return flagValue
}

func pickDuration(parser *flags.Parser, name string, flagValue time.Duration, fileValue string) time.Duration {
	parsed, err := time.ParseDuration(fileValue)
	if err != nil {
		parsed = 0
	}
	return pick(parser, name, flagValue, parsed)
}
