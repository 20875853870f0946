// Package config loads runtime configuration from file and environment.
// The secret salt is sourced from the environment only and is never written
// to logs or evidence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// ShiftBoundsConfig bounds the derived date-shift offset, in days.
type ShiftBoundsConfig struct {
	MinDays int `mapstructure:"min_days"`
	MaxDays int `mapstructure:"max_days"`
}

// ZoneConfig holds header/footer banding fractions for pixel review.
type ZoneConfig struct {
	Header float64 `mapstructure:"header"`
	Footer float64 `mapstructure:"footer"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// Config is the full runtime configuration surface.
type Config struct {
	Profile       string                       `mapstructure:"profile"`
	Strict        bool                         `mapstructure:"strict"`
	SaltEnv       string                       `mapstructure:"salt_env"`
	ShiftBounds   map[string]ShiftBoundsConfig `mapstructure:"shift_bounds"` // keyed by profile
	Zones         ZoneConfig                   `mapstructure:"zones"`
	ZoneOverrides map[string]ZoneConfig        `mapstructure:"zone_overrides"` // keyed by modality
	LedgerPath    string                       `mapstructure:"ledger_path"`
	EvidenceDir   string                       `mapstructure:"evidence_dir"`
	Logging       LoggingConfig                `mapstructure:"logging"`

	// salt is populated from the environment, never from the config file,
	// and is unexported so no encoder can ever serialize it.
	salt []byte
}

// GetDefaults returns the default configuration.
func GetDefaults() *Config {
	return &Config{
		Profile: "safe-harbor",
		SaltEnv: "DEIDENT_SALT",
		ShiftBounds: map[string]ShiftBoundsConfig{
			"safe-harbor":           {MinDays: -365, MaxDays: -30},
			"strict-jurisdictional": {MinDays: -730, MaxDays: -30},
		},
		Zones:       ZoneConfig{Header: 0.12, Footer: 0.10},
		LedgerPath:  "decisions.db",
		EvidenceDir: "evidence",
		Logging:     LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	viper.SetConfigName("deident")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.deident/")

	viper.SetEnvPrefix("DEIDENT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if v := os.Getenv(config.SaltEnv); v != "" {
		config.salt = []byte(v)
	}

	return config, nil
}

// Salt returns the operator-supplied secret salt.
func (c *Config) Salt() []byte {
	return c.salt
}

// SetSalt injects the salt directly (tests, callers that source it from a
// key store).
func (c *Config) SetSalt(salt []byte) {
	c.salt = salt
}

// Validate checks the loaded configuration.
func Validate(config *Config) error {
	switch config.Profile {
	case "minimal-repair", "safe-harbor", "strict-jurisdictional", "legal-disclosure":
	default:
		return fmt.Errorf("invalid profile: %s", config.Profile)
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	for profile, b := range config.ShiftBounds {
		if b.MinDays > b.MaxDays {
			return fmt.Errorf("shift bounds for %s: min %d exceeds max %d", profile, b.MinDays, b.MaxDays)
		}
		if b.MinDays <= 0 && b.MaxDays >= 0 {
			return fmt.Errorf("shift bounds for %s must exclude zero", profile)
		}
	}

	if config.Zones.Header < 0 || config.Zones.Header > 1 ||
		config.Zones.Footer < 0 || config.Zones.Footer > 1 {
		return fmt.Errorf("zone thresholds must be fractions in [0,1]")
	}

	return nil
}
