package decoder

import "firestige.xyz/burstshark/internal/core"

// Options describes one tshark invocation.
type Options struct {
	Mode core.Mode

	// Infile reads packets from a capture file instead of a live
	// interface.
	Infile string

	// Interface for live capture. Empty lets tshark pick the first
	// non-loopback interface.
	Interface string

	// Filter is merged with the per-mode default filter. It is a
	// libpcap capture filter for live capture and a Wireshark display
	// filter when reading from a file.
	Filter string

	// CaptureOutfile mirrors the raw capture to a file (tshark -w).
	CaptureOutfile string

	// TimeEpoch emits seconds since the UNIX epoch instead of seconds
	// relative to the first packet.
	TimeEpoch bool

	// PortAggregation drops the port fields from the stream; both
	// ports parse to the null sentinel.
	PortAggregation bool
}

// defaultFilter admits only the traffic the flow machines understand:
// UDP and payload-bearing TCP in IP mode, QoS data frames in WLAN mode.
// Live capture uses libpcap syntax, file reads use display filters.
func defaultFilter(mode core.Mode, fromFile bool) string {
	switch {
	case !fromFile && mode == core.ModeIP:
		return "udp or (tcp and (((ip[2:2] - ((ip[0]&0xf)<<2)) - ((tcp[12]&0xf0)>>2)) != 0))"
	case !fromFile && mode == core.ModeWLAN:
		return "wlan type data subtype qos-data"
	case fromFile && mode == core.ModeIP:
		return "udp or (tcp and tcp.len > 0)"
	default:
		return "wlan and wlan.fc.type_subtype == 40"
	}
}

// Args builds the tshark argument vector for the given options.
func Args(opts Options) []string {
	filter := defaultFilter(opts.Mode, opts.Infile != "")
	if opts.Filter != "" {
		filter = "(" + filter + ") and (" + opts.Filter + ")"
	}

	var args []string
	if opts.Infile != "" {
		args = append(args, "-r", opts.Infile, "-Y", filter)
	} else {
		args = append(args, "-n", "-f", filter)
	}

	if opts.Interface != "" {
		args = append(args, "-i", opts.Interface)
	}
	if opts.CaptureOutfile != "" {
		args = append(args, "-w", opts.CaptureOutfile, "-P")
	}

	timeField := "frame.time_relative"
	if opts.TimeEpoch {
		timeField = "frame.time_epoch"
	}
	args = append(args, "-Q", "-l", "-T", "fields", "-e", timeField)

	if opts.Mode == core.ModeWLAN {
		return append(args,
			"-e", "wlan.sa",
			"-e", "wlan.da",
			"-e", "data.len",
			"-e", "wlan.seq",
		)
	}

	args = append(args,
		"-e", "ip.src",
		"-e", "ip.dst",
		"-e", "data.len",
		"-e", "udp.length",
		"-e", "tcp.len",
	)
	if !opts.PortAggregation {
		args = append(args,
			"-e", "udp.srcport",
			"-e", "tcp.srcport",
			"-e", "udp.dstport",
			"-e", "tcp.dstport",
		)
	}
	return args
}
