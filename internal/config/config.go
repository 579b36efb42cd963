// Package config loads mudra's settings from defaults, an optional config
// file, MUDRA_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/mudra/internal/logs"
)

const (
	// EnvPrefix prefixes every environment variable read by mudra.
	EnvPrefix      = "MUDRA"
	DefaultDataDir = ".mudra"
	DefaultHost    = "localhost"
	DefaultPort    = 5000
	DefaultListen  = "127.0.0.1:8765"
)

// ErrInvalidPort is returned when the port does not parse as an integer in range.
var ErrInvalidPort = errors.New("port must be an integer between 1 and 65535")

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  bool   `mapstructure:"file" yaml:"file"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// Config is the effective configuration.
type Config struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	Executable   string        `mapstructure:"executable" yaml:"executable"`
	Script       string        `mapstructure:"script" yaml:"script"`
	MaxAttempts  int           `mapstructure:"max-attempts" yaml:"max-attempts"`
	ConnectDelay time.Duration `mapstructure:"connect-delay" yaml:"connect-delay"`
	DialTimeout  time.Duration `mapstructure:"dial-timeout" yaml:"dial-timeout"`
	StopTimeout  time.Duration `mapstructure:"stop-timeout" yaml:"stop-timeout"`

	Listen        string    `mapstructure:"listen" yaml:"listen"`
	DataDir       string    `mapstructure:"data-dir" yaml:"data-dir"`
	Tray          bool      `mapstructure:"tray" yaml:"tray"`
	Notifications bool      `mapstructure:"notifications" yaml:"notifications"`
	Log           LogConfig `mapstructure:"log" yaml:"log"`
}

// New returns a viper instance with mudra's defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("config", "")
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("executable", "")
	v.SetDefault("script", "")
	v.SetDefault("max-attempts", 5)
	v.SetDefault("connect-delay", time.Second)
	v.SetDefault("dial-timeout", 2*time.Second)
	v.SetDefault("stop-timeout", 5*time.Second)
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("data-dir", "")
	v.SetDefault("tray", false)
	v.SetDefault("notifications", true)
	v.SetDefault("log.level", logs.LevelInfo)
	v.SetDefault("log.file", false)
	v.SetDefault("log.json", false)
	return v
}

// AddFlags registers the command-line flags mirroring the configuration keys.
func AddFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "Configuration file path (yaml, json or toml)")
	flags.String("host", DefaultHost, "Recognizer host")
	flags.IntP("port", "p", DefaultPort, "Recognizer port")
	flags.String("executable", "", "Interpreter used to run the recognizer (default: discovered venv python or python3)")
	flags.String("script", "", "Recognizer script path")
	flags.Int("max-attempts", 5, "Connection attempts before giving up")
	flags.Duration("connect-delay", time.Second, "Delay before every connection attempt")
	flags.Duration("dial-timeout", 2*time.Second, "Timeout of a single connection attempt")
	flags.Duration("stop-timeout", 5*time.Second, "Time the recognizer gets to exit before it is killed")
	flags.StringP("listen", "l", DefaultListen, "HTTP listen address (empty disables the API)")
	flags.StringP("data-dir", "d", "", "Data directory (default: ~/.mudra)")
	flags.Bool("tray", false, "Show the system tray icon")
	flags.Bool("notifications", true, "Show desktop notifications for failures")
	flags.String("log-level", logs.LevelInfo, "Log level (debug, info, warn, error)")
	flags.Bool("log-file", false, "Also log to a rotated file in the data directory")
}

// BindFlags binds flags registered by AddFlags to v.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	keys := map[string]string{
		"log-level": "log.level",
		"log-file":  "log.file",
	}
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		key := f.Name
		if mapped, ok := keys[key]; ok {
			key = mapped
		}
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("bind flag %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// Load reads the configuration file named by the "config" key, if any, and
// returns the validated configuration.
func Load(v *viper.Viper) (*Config, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if raw, ok := v.Get("port").(string); ok {
		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPort, raw)
		}
		v.Set("port", port)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration and fills in derived defaults.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max-attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.ConnectDelay < 0 || c.DialTimeout <= 0 || c.StopTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, DefaultDataDir)
	} else if strings.HasPrefix(c.DataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, c.DataDir[2:])
	}
	return nil
}

// EnsureDataDir creates the data directory.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", c.DataDir, err)
	}
	return nil
}

// DatabasePath is the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "mudra.db")
}

// ScriptsDir is searched for the recognizer script.
func (c *Config) ScriptsDir() string {
	return filepath.Join(c.DataDir, "scripts")
}

// Logging converts the log settings for the logs package.
func (c *Config) Logging() logs.Config {
	lc := logs.DefaultConfig()
	lc.Level = c.Log.Level
	lc.File = c.Log.File
	lc.JSON = c.Log.JSON
	lc.Dir = filepath.Join(c.DataDir, "logs")
	return lc
}

// YAML renders the configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
