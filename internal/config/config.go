// ABOUTME: Loader configuration from defaults, an optional YAML file, DATALOADER_* env, and flags.
// ABOUTME: A .env file in the working directory is loaded into the environment first.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "DATALOADER"

// Keys double as flag names and YAML keys. DATALOADER_MOCK_DIR sets "mock-dir".
const (
	KeyConnectionString = "connection-string"
	KeyMockDir          = "mock-dir"
	KeyCount            = "count"
	KeyExtended         = "extended"
	KeyOnError          = "on-error"
	KeySeed             = "seed"
	KeyTimeout          = "timeout"
)

// Defaults.
const (
	DefaultMockDir = "mockdata"
	DefaultCount   = 50
	DefaultTimeout = 30 * time.Second
)

// ErrMissingConnectionString is returned by Validate when no connection string was given.
var ErrMissingConnectionString = errors.New("connection string is required")

// Config holds the settings of one loader run.
type Config struct {
	ConnectionString string        `mapstructure:"connection-string"`
	MockDataDir      string        `mapstructure:"mock-dir"`
	RecordCount      int           `mapstructure:"count"`
	Extended         bool          `mapstructure:"extended"`
	FailurePolicy    string        `mapstructure:"on-error"`
	Seed             int64         `mapstructure:"seed"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// Load resolves configuration. configFile may be empty, in which case
// ./dataloader.yaml is read when present. Flags that were set on the command
// line override every other source.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault(KeyConnectionString, "")
	v.SetDefault(KeyMockDir, DefaultMockDir)
	v.SetDefault(KeyCount, DefaultCount)
	v.SetDefault(KeyExtended, true)
	v.SetDefault(KeyOnError, "abort")
	v.SetDefault(KeySeed, 0)
	v.SetDefault(KeyTimeout, DefaultTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("dataloader")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if flags != nil {
		for _, key := range []string{KeyMockDir, KeyCount, KeyExtended, KeyOnError, KeySeed, KeyTimeout} {
			if f := flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", key, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.ConnectionString = strings.TrimSpace(cfg.ConnectionString)
	cfg.FailurePolicy = strings.ToLower(strings.TrimSpace(cfg.FailurePolicy))
	return &cfg, nil
}

// Validate checks the settings needed for a run against the CRM.
func (c *Config) Validate() error {
	if c.ConnectionString == "" {
		return ErrMissingConnectionString
	}
	if c.RecordCount < 0 {
		return fmt.Errorf("count must not be negative, got %d", c.RecordCount)
	}
	switch c.FailurePolicy {
	case "", "abort", "continue":
	default:
		return fmt.Errorf("on-error must be abort or continue, got %q", c.FailurePolicy)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}
