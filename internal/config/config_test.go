package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "ip", cfg.Mode)
	assert.Equal(t, SourceTshark, cfg.Source)
	assert.Equal(t, 1.0, cfg.BurstQuiet)
	assert.True(t, cfg.EstimateMissing)
	assert.Equal(t, uint16(50), cfg.MaxDeviation)
	assert.Equal(t, "relative", cfg.TimeFormat)
	assert.False(t, cfg.PortAggregation)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "burstshark.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: wlan
burst_quiet: 0.5
max_deviation: 200
min_bytes: 1000
log:
  level: debug
`), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "wlan", cfg.Mode)
	assert.Equal(t, 0.5, cfg.BurstQuiet)
	assert.Equal(t, uint16(200), cfg.MaxDeviation)
	assert.Equal(t, uint32(1000), cfg.MinBytes)
	require.NotNil(t, cfg.Logger)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/burstshark.yaml", nil)
	assert.Error(t, err)
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Float64P("inactive-time", "t", 1.0, "")
	flags.BoolP("monitor-mode", "I", false, "")
	flags.BoolP("no-guess", "G", false, "")
	flags.BoolP("ignore-ports", "p", false, "")
	flags.Uint32P("min-bytes", "b", 0, "")
	return flags
}

func TestLoad_FlagsOverride(t *testing.T) {
	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"-t", "2.5", "-I", "-G", "-b", "500"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, 2.5, cfg.BurstQuiet)
	assert.Equal(t, "wlan", cfg.Mode)
	assert.False(t, cfg.EstimateMissing)
	assert.Equal(t, uint32(500), cfg.MinBytes)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Mode:            "ip",
			Source:          SourceTshark,
			BurstQuiet:      1.0,
			MaxDeviation:    50,
			EstimateMissing: true,
			TimeFormat:      "relative",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad mode", mutate: func(c *Config) { c.Mode = "bluetooth" }, wantErr: "unknown mode"},
		{name: "bad source", mutate: func(c *Config) { c.Source = "dumpcap" }, wantErr: "unknown source"},
		{name: "zero quiet", mutate: func(c *Config) { c.BurstQuiet = 0 }, wantErr: "burst_quiet"},
		{name: "wlan with port aggregation", mutate: func(c *Config) {
			c.Mode = "wlan"
			c.PortAggregation = true
		}, wantErr: "port_aggregation"},
		{name: "wlan deviation too large", mutate: func(c *Config) {
			c.Mode = "wlan"
			c.MaxDeviation = 4000
		}, wantErr: "max_deviation"},
		{name: "interface and file", mutate: func(c *Config) {
			c.Interface = "eth0"
			c.ReadFile = "x.pcap"
		}, wantErr: "mutually exclusive"},
		{name: "display filter without file", mutate: func(c *Config) {
			c.DisplayFilter = "tcp"
		}, wantErr: "display_filter requires read_file"},
		{name: "capture filter on file read", mutate: func(c *Config) {
			c.ReadFile = "x.pcap"
			c.CaptureFilter = "udp"
		}, wantErr: "capture_filter"},
		{name: "pcap source with display filter", mutate: func(c *Config) {
			c.Source = SourcePcap
			c.ReadFile = "x.pcap"
			c.DisplayFilter = "tcp"
		}, wantErr: "display filter"},
		{name: "pcap source with write capture", mutate: func(c *Config) {
			c.Source = SourcePcap
			c.WriteCapture = "out.pcapng"
		}, wantErr: "write_capture"},
		{name: "byte bounds crossed", mutate: func(c *Config) {
			c.MinBytes = 100
			c.MaxBytes = 50
		}, wantErr: "min_bytes"},
		{name: "packet bounds crossed", mutate: func(c *Config) {
			c.MinPackets = 10
			c.MaxPackets = 2
		}, wantErr: "min_packets"},
		{name: "bad time format", mutate: func(c *Config) { c.TimeFormat = "iso" }, wantErr: "time_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
