// Package config loads the simulator's layered configuration: flags
// override environment variables, which override a TOML file, which
// overrides built-in defaults.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config is the simulator's full set of runtime settings.
type Config struct {
	TCPPort        int    `mapstructure:"tcp_port" toml:"tcp_port"`
	HTTPPort       int    `mapstructure:"http_port" toml:"http_port"`
	BindAddress    string `mapstructure:"bind_address" toml:"bind_address"`
	CellID         uint32 `mapstructure:"cell_id" toml:"cell_id"`
	ChannelID      uint32 `mapstructure:"channel_id" toml:"channel_id"`
	ControllerName string `mapstructure:"controller_name" toml:"controller_name"`
	SupplierCode   string `mapstructure:"supplier_code" toml:"supplier_code"`

	DefaultAutoIntervalMS int64   `mapstructure:"default_auto_interval_ms" toml:"default_auto_interval_ms"`
	DefaultAutoDurationMS int64   `mapstructure:"default_auto_duration_ms" toml:"default_auto_duration_ms"`
	DefaultFailureRate    float64 `mapstructure:"default_failure_rate" toml:"default_failure_rate"`

	DBPath string `mapstructure:"db_path" toml:"db_path"`
}

// Defaults returns the simulator's built-in configuration, used when no
// file, environment variable, or flag overrides a field.
func Defaults() Config {
	return Config{
		TCPPort:        4545,
		HTTPPort:       8080,
		BindAddress:    "0.0.0.0",
		CellID:         1,
		ChannelID:      1,
		ControllerName: "OpenProtocolSimulator",
		SupplierCode:   "SIM",

		DefaultAutoIntervalMS: 1000,
		DefaultAutoDurationMS: 500,
		DefaultFailureRate:    0.05,

		DBPath: "",
	}
}

// envPrefix matches the teacher's BEADS_-prefixed environment variables
// (internal/config/local_config.go's BEADS_SYNC_BRANCH), generalized to
// viper's AutomaticEnv binding instead of individual os.Getenv checks.
const envPrefix = "SIMULATOR"

// Load reads a TOML config file at path (if it exists), layers
// SIMULATOR_*-prefixed environment variables on top, and falls back to
// Defaults() for anything left unset. path may be empty, in which case
// only defaults and environment variables apply.
//
// Grounded on steveyegge-beads/cmd/bd/config.go and
// internal/labelmutex/policy.go's `v := viper.New(); v.SetConfigFile(...);
// v.ReadInConfig()` pattern, generalized from that repo's single-purpose
// "read one key" calls to a full struct unmarshal, and extended with
// viper's native AutomaticEnv/SetEnvPrefix layering in place of the
// teacher's manual os.Getenv overrides (local_config.go's
// LoadLocalConfigWithEnv).
func Load(path string) (Config, error) {
	defaults := Defaults()

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	setDefaults(v, defaults)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("tcp_port", d.TCPPort)
	v.SetDefault("http_port", d.HTTPPort)
	v.SetDefault("bind_address", d.BindAddress)
	v.SetDefault("cell_id", d.CellID)
	v.SetDefault("channel_id", d.ChannelID)
	v.SetDefault("controller_name", d.ControllerName)
	v.SetDefault("supplier_code", d.SupplierCode)
	v.SetDefault("default_auto_interval_ms", d.DefaultAutoIntervalMS)
	v.SetDefault("default_auto_duration_ms", d.DefaultAutoDurationMS)
	v.SetDefault("default_failure_rate", d.DefaultFailureRate)
	v.SetDefault("db_path", d.DBPath)
}

// WriteTOML writes cfg to path in TOML format, using the same codec
// (github.com/BurntSushi/toml) the teacher uses for its recipe and
// formula files (internal/recipes/recipes.go, internal/formula/parser.go).
func WriteTOML(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: creating %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: encoding %s: %w", path, err)
	}
	return nil
}
