package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ledger/internal/log"
)

const EnvPrefix = "LEDGER"

var validBackends = []string{"memory", "sqlite"}

type Config struct {
	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// Logging
	LogLevel  string
	LogFormat string

	// Sample data
	RandomSeed uint64 // zero picks a random seed per run
	SeedMonths int

	// Projections
	CacheSize int
	CacheTTL  time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", "sqlite")
	v.SetDefault("sqlite_db_path", "./data/ledger.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("seed.random_seed", 0)
	v.SetDefault("seed.months", 7)
	v.SetDefault("projection.cache_size", 256)
	v.SetDefault("projection.cache_ttl", 10*time.Minute)
}

// Load reads the configuration from defaults, an optional config file and
// LEDGER_* environment variables, in increasing priority. An empty file
// searches ./ledger.yaml and $HOME/.config/ledger/ledger.yaml; a missing
// file is not an error unless it was named explicitly.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("ledger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "ledger"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &Config{
		DataBackend:  v.GetString("backend"),
		SQLiteDBPath: v.GetString("sqlite_db_path"),
		LogLevel:     v.GetString("log.level"),
		LogFormat:    v.GetString("log.format"),
		RandomSeed:   v.GetUint64("seed.random_seed"),
		SeedMonths:   v.GetInt("seed.months"),
		CacheSize:    v.GetInt("projection.cache_size"),
		CacheTTL:     v.GetDuration("projection.cache_ttl"),
	}, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var problems []string

	if !slices.Contains(validBackends, c.DataBackend) {
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						problems = append(problems, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if c.SeedMonths < 1 {
		problems = append(problems, fmt.Sprintf("invalid seed months %d: must be at least 1", c.SeedMonths))
	} else if c.SeedMonths > 120 {
		problems = append(problems, fmt.Sprintf("invalid seed months %d: must be at most 120", c.SeedMonths))
	}

	if c.CacheSize < 1 {
		problems = append(problems, fmt.Sprintf("invalid projection cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < 0 {
		problems = append(problems, fmt.Sprintf("invalid projection cache TTL %v: must not be negative", c.CacheTTL))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}

	return nil
}
