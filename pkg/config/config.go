package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/small-frappuccino/activityboard/pkg/util"
)

// Config holds the runtime settings of the service. All values have working
// defaults; a config file and ACTIVITYBOARD_* environment variables can
// override them.
type Config struct {
	// UpdateInterval is how often registered leaderboards are reconciled.
	UpdateInterval time.Duration `mapstructure:"update_interval"`

	// DisplaySize is the number of ranked entries shown per leaderboard.
	DisplaySize int `mapstructure:"display_size"`

	// OverFetchFactor multiplies DisplaySize when pulling ranking candidates
	// from storage, so that filtered-out members and bots do not leave the
	// board under-filled.
	OverFetchFactor int `mapstructure:"over_fetch_factor"`

	// MaxConcurrentTicks bounds how many guilds reconcile in parallel.
	MaxConcurrentTicks int `mapstructure:"max_concurrent_ticks"`

	// DatabasePath is the SQLite file holding counters and settings.
	DatabasePath string `mapstructure:"database_path"`

	// RegistryPath is the JSON file tracking posted leaderboard messages.
	RegistryPath string `mapstructure:"registry_path"`

	// LogDir is the directory for rotated log files.
	LogDir string `mapstructure:"log_dir"`

	// ControlAddr, when non-empty, enables the liveness HTTP server.
	ControlAddr string `mapstructure:"control_addr"`
}

// Load reads the optional config file and environment overrides into a
// Config. A missing config file is not an error; a malformed one is.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("update_interval", 10*time.Minute)
	v.SetDefault("display_size", 10)
	v.SetDefault("over_fetch_factor", 3)
	v.SetDefault("max_concurrent_ticks", 4)
	v.SetDefault("database_path", util.DefaultDatabasePath())
	v.SetDefault("registry_path", util.DefaultRegistryPath())
	v.SetDefault("log_dir", util.LogDir())
	v.SetDefault("control_addr", "")

	v.SetEnvPrefix("activityboard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, missing := err.(viper.ConfigFileNotFoundError); !missing && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", configFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("update_interval must be positive, got %s", c.UpdateInterval)
	}
	if c.DisplaySize <= 0 {
		return fmt.Errorf("display_size must be positive, got %d", c.DisplaySize)
	}
	if c.OverFetchFactor < 1 {
		return fmt.Errorf("over_fetch_factor must be at least 1, got %d", c.OverFetchFactor)
	}
	if c.MaxConcurrentTicks < 1 {
		return fmt.Errorf("max_concurrent_ticks must be at least 1, got %d", c.MaxConcurrentTicks)
	}
	return nil
}
