package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps CLI flag names to config keys. Flags win over the file
// and environment.
var flagKeys = map[string]string{
	"interface":      "interface",
	"read-file":      "read_file",
	"capture-filter": "capture_filter",
	"display-filter": "display_filter",
	"inactive-time":  "burst_quiet",
	"ignore-ports":   "port_aggregation",
	"write-capture":  "write_capture",
	"write-bursts":   "write_bursts",
	"suppress":       "suppress",
	"min-bytes":      "min_bytes",
	"max-bytes":      "max_bytes",
	"min-packets":    "min_packets",
	"max-packets":    "max_packets",
	"time-format":    "time_format",
	"monitor-mode":   "monitor_mode",
	"no-guess":       "no_guess",
	"max-deviation":  "max_deviation",
	"source":         "source",
}

// Load reads the optional config file, layers BURSTSHARK_* environment
// variables and the given flags on top, and validates the result.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("mode", "ip")
	v.SetDefault("source", SourceTshark)
	v.SetDefault("burst_quiet", 1.0)
	v.SetDefault("estimate_missing", true)
	v.SetDefault("max_deviation", 50)
	v.SetDefault("time_format", "relative")

	if path != "" {
		dir := filepath.Dir(path)
		base := filepath.Base(path)
		ext := filepath.Ext(base)

		v.SetConfigName(strings.TrimSuffix(base, ext))
		v.SetConfigType(strings.TrimPrefix(ext, "."))
		v.AddConfigPath(dir)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("BURSTSHARK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if flags != nil {
		for flagName, key := range flagKeys {
			if f := flags.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flagName, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The CLI spells the WLAN toggles the way the original tool did:
	// --monitor-mode switches the mode, --no-guess disables estimation.
	if v.GetBool("monitor_mode") {
		cfg.Mode = "wlan"
	}
	if v.GetBool("no_guess") {
		cfg.EstimateMissing = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
