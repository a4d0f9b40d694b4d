// Package config handles configuration loading using viper. Values
// come from an optional YAML file, BURSTSHARK_* environment variables
// and CLI flags, in ascending precedence.
package config

import (
	"fmt"

	"firestige.xyz/burstshark/internal/core"
	"firestige.xyz/burstshark/internal/log"
)

// Config is the full operator-facing configuration.
type Config struct {
	// Mode selects ip or wlan aggregation.
	Mode string `mapstructure:"mode"`

	// Source selects the upstream decoder: "tshark" spawns the tshark
	// field decoder, "pcap" captures natively through libpcap.
	Source string `mapstructure:"source"`

	// Interface for live capture; empty picks the first non-loopback
	// interface.
	Interface string `mapstructure:"interface"`

	// ReadFile replays a capture file instead of capturing live.
	ReadFile string `mapstructure:"read_file"`

	// CaptureFilter (libpcap syntax, live only) and DisplayFilter
	// (Wireshark syntax, file reads with the tshark source only) are
	// merged with the per-mode default data-packet filter.
	CaptureFilter string `mapstructure:"capture_filter"`
	DisplayFilter string `mapstructure:"display_filter"`

	// BurstQuiet is the inter-packet gap in seconds that closes a
	// burst.
	BurstQuiet float64 `mapstructure:"burst_quiet"`

	// PortAggregation keys IP flows on the address pair only.
	PortAggregation bool `mapstructure:"port_aggregation"`

	// EstimateMissing guesses count and size of WLAN frames the
	// monitor-mode device missed.
	EstimateMissing bool `mapstructure:"estimate_missing"`

	// MaxDeviation bounds the sequence-number window for WLAN
	// retransmit/loss reasoning.
	MaxDeviation uint16 `mapstructure:"max_deviation"`

	// Output bounds; zero means unset. Strict comparisons.
	MinBytes   uint32 `mapstructure:"min_bytes"`
	MaxBytes   uint32 `mapstructure:"max_bytes"`
	MinPackets uint16 `mapstructure:"min_packets"`
	MaxPackets uint16 `mapstructure:"max_packets"`

	// WriteBursts mirrors the burst lines to a file; Suppress drops
	// the standard output copy.
	WriteBursts string `mapstructure:"write_bursts"`
	Suppress    bool   `mapstructure:"suppress"`

	// WriteCapture mirrors the raw capture to a file (tshark source
	// only).
	WriteCapture string `mapstructure:"write_capture"`

	// TimeFormat is "relative" (seconds since the first packet) or
	// "epoch".
	TimeFormat string `mapstructure:"time_format"`

	Logger *log.Config `mapstructure:"log"`
}

const (
	SourceTshark = "tshark"
	SourcePcap   = "pcap"
)

// CaptureMode returns the parsed mode. Only meaningful after a
// successful Validate.
func (c *Config) CaptureMode() core.Mode {
	m, _ := core.ParseMode(c.Mode)
	return m
}

// Validate rejects contradictory or out-of-range settings.
func (c *Config) Validate() error {
	mode, err := core.ParseMode(c.Mode)
	if err != nil {
		return err
	}

	if c.Source != SourceTshark && c.Source != SourcePcap {
		return fmt.Errorf("unknown source %q (must be tshark or pcap)", c.Source)
	}
	if c.BurstQuiet <= 0 {
		return fmt.Errorf("burst_quiet must be positive, got %g", c.BurstQuiet)
	}

	if mode == core.ModeWLAN {
		if c.PortAggregation {
			return fmt.Errorf("port_aggregation only applies to ip mode")
		}
		if c.MaxDeviation == 0 || c.MaxDeviation > core.SeqModulo/2 {
			return fmt.Errorf("max_deviation must be in 1..%d, got %d", core.SeqModulo/2, c.MaxDeviation)
		}
	}

	if c.Interface != "" && c.ReadFile != "" {
		return fmt.Errorf("interface and read_file are mutually exclusive")
	}
	if c.DisplayFilter != "" && c.ReadFile == "" {
		return fmt.Errorf("display_filter requires read_file")
	}
	if c.Source == SourceTshark && c.CaptureFilter != "" && c.ReadFile != "" {
		return fmt.Errorf("capture_filter applies to live capture only; use display_filter for file reads")
	}
	if c.Source == SourcePcap {
		if c.DisplayFilter != "" {
			return fmt.Errorf("the pcap source has no display filter; use capture_filter")
		}
		if c.WriteCapture != "" {
			return fmt.Errorf("write_capture requires the tshark source")
		}
	}

	if c.MinBytes != 0 && c.MaxBytes != 0 && c.MinBytes > c.MaxBytes {
		return fmt.Errorf("min_bytes %d exceeds max_bytes %d", c.MinBytes, c.MaxBytes)
	}
	if c.MinPackets != 0 && c.MaxPackets != 0 && c.MinPackets > c.MaxPackets {
		return fmt.Errorf("min_packets %d exceeds max_packets %d", c.MinPackets, c.MaxPackets)
	}

	if c.TimeFormat != "relative" && c.TimeFormat != "epoch" {
		return fmt.Errorf("unknown time_format %q (must be relative or epoch)", c.TimeFormat)
	}

	return nil
}
