// Package config loads simulation parameters from config.yaml with Viper,
// following the teacher's LoadConfig shape, and resolves the TOPIC_ROOT
// environment convention spec.md §6.5 specifies.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Range is an inclusive (min, max) sampling range, used for every
// uniformly-distributed duration in the config (processing times, fault
// durations, order inter-arrival times).
type Range struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// Config is the full set of tunables the simulation kernel reads at start.
// Fields not present in config.yaml fall back to the SetDefault values
// LoadConfig installs, matching the teacher's step_delay_ms default.
type Config struct {
	LineIDs []string `mapstructure:"line_ids"`

	AGVSpeedMPS         float64 `mapstructure:"agv_speed_mps"`
	AGVBatteryThreshold float64 `mapstructure:"agv_battery_threshold"`
	AGVChargeRatePctSec float64 `mapstructure:"agv_charge_rate_pct_sec"`
	AGVDefaultChargeTo  float64 `mapstructure:"agv_default_charge_to"`

	OrderIntervalSec Range `mapstructure:"order_interval_sec"`
	FaultIntervalSec Range `mapstructure:"fault_interval_sec"`
	FaultDurationSec Range `mapstructure:"fault_duration_sec"`

	KPIPublishIntervalSec float64 `mapstructure:"kpi_publish_interval_sec"`
	SnapshotDebounceMs    int     `mapstructure:"snapshot_debounce_ms"`

	TopicRoot string `mapstructure:"topic_root"`
}

// LoadConfig reads config.yaml from the current directory (if present — a
// missing file is not an error, the defaults below stand on their own) and
// resolves TOPIC_ROOT, matching spec.md §6.5's fallback chain.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("line_ids", []string{"line1", "line2", "line3"})
	viper.SetDefault("agv_speed_mps", 2.0)
	viper.SetDefault("agv_battery_threshold", 5.0)
	viper.SetDefault("agv_charge_rate_pct_sec", 3.33)
	viper.SetDefault("agv_default_charge_to", 80.0)
	viper.SetDefault("order_interval_sec", map[string]float64{"min": 30, "max": 60})
	viper.SetDefault("fault_interval_sec", map[string]float64{"min": 120, "max": 300})
	viper.SetDefault("fault_duration_sec", map[string]float64{"min": 20, "max": 60})
	viper.SetDefault("kpi_publish_interval_sec", 10.0)
	viper.SetDefault("snapshot_debounce_ms", 500)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.TopicRoot = ResolveTopicRoot(cfg.TopicRoot)

	return &cfg, nil
}

// ResolveTopicRoot implements spec.md §6.5: TOPIC_ROOT env var, else
// USERNAME, else USER, else "NLDF_TEST". An explicit value from config.yaml
// (passed in as preset) wins over all of them.
func ResolveTopicRoot(preset string) string {
	if preset != "" {
		return preset
	}
	if v := os.Getenv("TOPIC_ROOT"); v != "" {
		return v
	}
	if v := os.Getenv("USERNAME"); v != "" {
		return v
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "NLDF_TEST"
}
