package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from flags, environment variables and .env files.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	RPCHost          string        `mapstructure:"rpc_host"`
	RPCPort          int           `mapstructure:"rpc_port"`
	RPCPath          string        `mapstructure:"rpc_path"`
	Endpoint         string        `mapstructure:"endpoint"`
	EndpointsFile    string        `mapstructure:"endpoints_file"`
	ConnectTimeoutMs int64         `mapstructure:"connect_timeout_ms"`
	ConnectTimeout   time.Duration `mapstructure:"-"`

	NoTTY             bool    `mapstructure:"no_tty"`
	MaxCallsPerSecond float64 `mapstructure:"max_calls_per_second"`

	JournalType            string        `mapstructure:"journal_type"`
	JournalPath            string        `mapstructure:"journal_path"`
	JournalTTLSeconds      int64         `mapstructure:"journal_ttl_seconds"`
	JournalCleanupSeconds  int64         `mapstructure:"journal_cleanup_seconds"`
	JournalTTL             time.Duration `mapstructure:"-"`
	JournalCleanupInterval time.Duration `mapstructure:"-"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"log-level":       "log_level",
	"rpc-host":        "rpc_host",
	"rpc-port":        "rpc_port",
	"rpc-path":        "rpc_path",
	"endpoint":        "endpoint",
	"endpoints-file":  "endpoints_file",
	"connect-timeout": "connect_timeout_ms",
	"no-tty":          "no_tty",
	"max-rate":        "max_calls_per_second",
	"journal":         "journal_type",
	"journal-path":    "journal_path",
}

// RegisterFlags declares the flags Load understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	fs.String("rpc-host", "", "RPC server host")
	fs.Int("rpc-port", 80, "RPC server port")
	fs.String("rpc-path", "/", "RPC route on the server")
	fs.String("endpoint", "", "named endpoint from the endpoints file")
	fs.String("endpoints-file", "./configs/endpoints.yaml", "endpoints registry file (yaml or json)")
	fs.Int64("connect-timeout", 1000, "connect timeout in milliseconds")
	fs.Bool("no-tty", false, "do not print the interactive prompt")
	fs.Float64("max-rate", 0, "maximum calls per second (0 = unlimited)")
	fs.String("journal", "none", "call journal backend (none, bbolt)")
	fs.String("journal-path", "./data/journal.db", "bbolt journal file")
}

// Load reads configuration from environment variables, .env files and the given flags.
// flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-rpc-client")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "warn")
	v.SetDefault("rpc_host", "")
	v.SetDefault("rpc_port", 80)
	v.SetDefault("rpc_path", "/")
	v.SetDefault("endpoint", "")
	v.SetDefault("endpoints_file", "./configs/endpoints.yaml")
	v.SetDefault("connect_timeout_ms", 1000)
	v.SetDefault("no_tty", false)
	v.SetDefault("max_calls_per_second", 0)
	v.SetDefault("journal_type", "none")
	v.SetDefault("journal_path", "./data/journal.db")
	v.SetDefault("journal_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("journal_cleanup_seconds", int64(time.Hour/time.Second))

	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *Config) error {
	cfg.RPCHost = strings.TrimSpace(cfg.RPCHost)
	cfg.RPCPath = strings.TrimSpace(cfg.RPCPath)
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.JournalType = strings.ToLower(strings.TrimSpace(cfg.JournalType))

	if cfg.Endpoint == "" && cfg.RPCHost == "" {
		return fmt.Errorf("rpc_host is required when no endpoint is selected")
	}
	if cfg.Endpoint != "" && strings.TrimSpace(cfg.EndpointsFile) == "" {
		return fmt.Errorf("endpoints_file is required to resolve endpoint %q", cfg.Endpoint)
	}
	if cfg.RPCPort < 0 || cfg.RPCPort > math.MaxUint16 {
		return fmt.Errorf("invalid rpc_port %d (must fit in 16 bits)", cfg.RPCPort)
	}

	if cfg.ConnectTimeoutMs <= 0 {
		return fmt.Errorf("invalid connect_timeout_ms (must be positive milliseconds)")
	}
	cfg.ConnectTimeout = time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond

	if cfg.MaxCallsPerSecond < 0 {
		return fmt.Errorf("invalid max_calls_per_second (must not be negative)")
	}

	if cfg.JournalTTLSeconds <= 0 {
		return fmt.Errorf("invalid journal_ttl_seconds (must be positive seconds)")
	}
	if cfg.JournalCleanupSeconds <= 0 {
		return fmt.Errorf("invalid journal_cleanup_seconds (must be positive seconds)")
	}
	cfg.JournalTTL = time.Duration(cfg.JournalTTLSeconds) * time.Second
	cfg.JournalCleanupInterval = time.Duration(cfg.JournalCleanupSeconds) * time.Second

	return nil
}

// Port returns RPCPort as the 16-bit value the rpc client expects.
func (c *Config) Port() uint16 {
	return uint16(c.RPCPort)
}
