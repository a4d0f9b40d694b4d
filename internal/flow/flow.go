// Package flow implements the per-flow burst state machines.
//
// Both variants share the same contract: feed packets in arrival order,
// inspect the current burst, clear it after emission. The set of
// variants is closed; callers pick one through Options.
package flow

import "firestige.xyz/burstshark/internal/core"

// Flow accumulates packets of a single flow into its current burst.
// Implementations are not safe for concurrent use; each flow worker
// owns exactly one.
type Flow interface {
	// Add incorporates a packet. On an empty flow it starts a new
	// burst from the packet.
	Add(r *core.Record)

	// Current returns the burst in progress, or nil. The returned
	// burst stays owned by the flow until Reset is called.
	Current() *core.Burst

	// Reset clears the current burst. Called right after emission;
	// the emitted burst is never touched by the flow again.
	Reset()
}

// Options selects the flow variant and its WLAN tuning knobs.
type Options struct {
	Mode core.Mode

	// EstimateMissing enables count/size estimation for WLAN frames
	// the capture device missed. Ignored in IP mode.
	EstimateMissing bool

	// MaxDeviation is the symmetric window around the expected
	// sequence number within which an observation is treated as a
	// retransmit (below) or a loss (above). Beyond it, as an outlier.
	// Ignored in IP mode.
	MaxDeviation uint16
}

// New builds the flow variant for the given options.
func New(opts Options) Flow {
	if opts.Mode == core.ModeWLAN {
		return &wlanFlow{
			estimateMissing: opts.EstimateMissing,
			maxDeviation:    int(opts.MaxDeviation),
		}
	}
	return &ipFlow{}
}
