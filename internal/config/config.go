package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g.
// PLANCAST_FORECAST_ITERATIONS.
const EnvPrefix = "PLANCAST"

// Config represents the complete plancast configuration
type Config struct {
	Calendar CalendarConfig `mapstructure:"calendar"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Output   OutputConfig   `mapstructure:"output"`
}

// CalendarConfig is the default project calendar. A project file's own
// calendar section overrides it field by field.
type CalendarConfig struct {
	// WorkingDays are weekday indices, 0 = Monday .. 6 = Sunday (default: Monday to Friday)
	WorkingDays []int `mapstructure:"working_days"`
	// WorkStart is the daily window start as "HH:MM" (default: "08:00")
	WorkStart string `mapstructure:"work_start"`
	// WorkEnd is the daily window end as "HH:MM". It may be earlier than
	// WorkStart for a window that wraps midnight. (default: "16:00")
	WorkEnd string `mapstructure:"work_end"`
}

// ScheduleConfig controls dependency propagation
type ScheduleConfig struct {
	// Propagation is "single-pass" or "fixed-point" (default: "single-pass")
	Propagation string `mapstructure:"propagation"`
	// MaxPasses bounds fixed-point propagation (default: 16)
	MaxPasses int `mapstructure:"max_passes"`
}

// ForecastConfig controls Monte Carlo runs
type ForecastConfig struct {
	// Iterations is the number of simulated schedules (default: 1000)
	Iterations int `mapstructure:"iterations"`
	// Workers is the goroutine count, 0 = one per CPU
	Workers int `mapstructure:"workers"`
	// Seed fixes the random sequence, 0 = seeded from the clock
	Seed uint64 `mapstructure:"seed"`
	// TopDrivers caps the risk driver list (default: 5)
	TopDrivers int `mapstructure:"top_drivers"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled turns on the JSON log file (default: false)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is where plancast.log is written. Empty means ConfigDir()/logs.
	Dir string `mapstructure:"dir"`
}

// OutputConfig controls CLI rendering
type OutputConfig struct {
	// DateFormat is a Go time layout (default: "2006-01-02 15:04")
	DateFormat string `mapstructure:"date_format"`
	// Color enables styled output when stdout is a terminal (default: true)
	Color bool `mapstructure:"color"`
}

// ResolveDir returns the log directory, expanding ~ and falling back to
// ConfigDir()/logs when Dir is empty.
func (l *LoggingConfig) ResolveDir() string {
	if l.Dir == "" {
		return filepath.Join(ConfigDir(), "logs")
	}

	path := l.Dir
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}
	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Calendar: CalendarConfig{
			WorkingDays: []int{0, 1, 2, 3, 4},
			WorkStart:   "08:00",
			WorkEnd:     "16:00",
		},
		Schedule: ScheduleConfig{
			Propagation: "single-pass",
			MaxPasses:   16,
		},
		Forecast: ForecastConfig{
			Iterations: 1000,
			Workers:    0, // one per CPU
			Seed:       0, // time-based
			TopDrivers: 5,
		},
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
			Dir:     "",
		},
		Output: OutputConfig{
			DateFormat: "2006-01-02 15:04",
			Color:      true,
		},
	}
}

// SetDefaults registers default values with viper and binds environment
// overrides under EnvPrefix.
func SetDefaults() {
	defaults := Default()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Calendar defaults
	viper.SetDefault("calendar.working_days", defaults.Calendar.WorkingDays)
	viper.SetDefault("calendar.work_start", defaults.Calendar.WorkStart)
	viper.SetDefault("calendar.work_end", defaults.Calendar.WorkEnd)

	// Schedule defaults
	viper.SetDefault("schedule.propagation", defaults.Schedule.Propagation)
	viper.SetDefault("schedule.max_passes", defaults.Schedule.MaxPasses)

	// Forecast defaults
	viper.SetDefault("forecast.iterations", defaults.Forecast.Iterations)
	viper.SetDefault("forecast.workers", defaults.Forecast.Workers)
	viper.SetDefault("forecast.seed", defaults.Forecast.Seed)
	viper.SetDefault("forecast.top_drivers", defaults.Forecast.TopDrivers)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	// Output defaults
	viper.SetDefault("output.date_format", defaults.Output.DateFormat)
	viper.SetDefault("output.color", defaults.Output.Color)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when it
// cannot be loaded.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "plancast")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".plancast"
	}
	return filepath.Join(home, ".config", "plancast")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidPropagationModes returns the accepted schedule.propagation values
func ValidPropagationModes() []string {
	return []string{"single-pass", "fixed-point"}
}
