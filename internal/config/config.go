package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MemorySource selects the in-process store instead of PostgreSQL.
const MemorySource = "memory"

type Config struct {
	DBSource       string        `mapstructure:"db_source"`
	Port           string        `mapstructure:"server_port"`
	Env            string        `mapstructure:"environment"`
	LogLevel       string        `mapstructure:"log_level"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTIssuer      string        `mapstructure:"jwt_issuer"`
	JWTTTL         time.Duration `mapstructure:"jwt_ttl"`
	TxMaxAttempts  int           `mapstructure:"tx_max_attempts"`
	LockTimeout    time.Duration `mapstructure:"lock_timeout"`
	StartingPoints int64         `mapstructure:"starting_points"`
	AutoMigrate    bool          `mapstructure:"auto_migrate"`
}

// Load reads configuration from the environment, optionally layered over a
// config file. Environment variables always win.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server_port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("jwt_issuer", "swapledger")
	v.SetDefault("jwt_ttl", 24*time.Hour)
	v.SetDefault("tx_max_attempts", 3)
	v.SetDefault("lock_timeout", 2*time.Second)
	v.SetDefault("starting_points", 100)
	v.SetDefault("auto_migrate", true)
	// Bind keys without defaults so AutomaticEnv sees them during Unmarshal.
	v.SetDefault("db_source", "")
	v.SetDefault("jwt_secret", "")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.DBSource == "" {
		return fmt.Errorf("DB_SOURCE environment variable is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if c.TxMaxAttempts < 1 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be positive, got %d", c.TxMaxAttempts)
	}
	if c.StartingPoints < 0 {
		return fmt.Errorf("STARTING_POINTS must not be negative, got %d", c.StartingPoints)
	}
	return nil
}

func (c *Config) UseMemoryStore() bool {
	return c.DBSource == MemorySource
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
