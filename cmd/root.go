// Package cmd implements the CLI using the cobra framework.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/burstshark/internal/app"
	"firestige.xyz/burstshark/internal/config"
)

var configFile string

// rootCmd runs one capture; burstshark is a one-shot tool, not a
// daemon, so there are no subcommands.
var rootCmd = &cobra.Command{
	Use:   "burstshark [filter]",
	Short: "Group captured traffic into per-flow bursts",
	Long: `burstshark groups a live or replayed stream of packets into per-flow
bursts: maximal runs of packets of one flow in which no inter-packet
gap exceeds the quiet interval. IP mode aggregates UDP and
payload-bearing TCP keyed on addresses and ports; WLAN monitor mode
aggregates 802.11 QoS data frames keyed on MAC pairs, tolerating
frames the capture device missed or saw twice.

Examples:
  burstshark -i eth0                       # live capture on eth0
  burstshark -r trace.pcapng -t 0.5        # replay a capture file
  burstshark -I -i wlan0mon -M 100         # WLAN monitor mode
  burstshark -p -b 10000 'host 10.0.0.9'   # extra filter, min 10 kB`,
	Version: "0.1.0",
	Args:    cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// A trailing positional filter merges into the capture or
		// display filter, whichever applies.
		if len(args) > 0 {
			positional := strings.Join(args, " ")
			if f := cmd.Flags(); !f.Changed("capture-filter") && !f.Changed("display-filter") {
				if f.Changed("read-file") {
					_ = f.Set("display-filter", positional)
				} else {
					_ = f.Set("capture-filter", positional)
				}
			}
		}

		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true
		return app.Run(cfg)
	},
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.Flags()

	flags.StringVarP(&configFile, "config", "c", "", "config file path")

	flags.StringP("interface", "i", "", "network interface for live capture; first non-loopback if unset")
	flags.StringP("read-file", "r", "", "read packet data from a capture file")
	flags.StringP("capture-filter", "f", "", "packet filter in libpcap syntax, merged with the data-packet default")
	flags.StringP("display-filter", "Y", "", "packet filter in Wireshark display syntax (file reads only)")
	flags.Float64P("inactive-time", "t", 1.0, "seconds with no activity that close a burst")
	flags.BoolP("ignore-ports", "p", false, "aggregate on address pairs only, ignoring ports")
	flags.StringP("write-capture", "w", "", "mirror the raw capture to a file")
	flags.StringP("write-bursts", "W", "", "mirror the burst output to a file")
	flags.BoolP("suppress", "q", false, "do not print bursts on standard output")
	flags.Uint32P("min-bytes", "b", 0, "only output bursts with at least this many bytes")
	flags.Uint32P("max-bytes", "B", 0, "only output bursts with at most this many bytes")
	flags.Uint16P("min-packets", "n", 0, "only output bursts with at least this many packets")
	flags.Uint16P("max-packets", "N", 0, "only output bursts with at most this many packets")
	flags.StringP("time-format", "T", "relative", "timestamp format: relative or epoch")
	flags.BoolP("monitor-mode", "I", false, "capture 802.11 WLAN frames instead of IP packets")
	flags.BoolP("no-guess", "G", false, "disable size estimation for WLAN frames missed by the device")
	flags.Uint16P("max-deviation", "M", 50, "maximum deviation from the expected WLAN sequence number")
	flags.String("source", config.SourceTshark, "packet decoder: tshark or pcap")
}
