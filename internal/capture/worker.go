package capture

import (
	"time"

	"firestige.xyz/burstshark/internal/core"
	"firestige.xyz/burstshark/internal/flow"
)

// worker drives one flow. It owns the flow state machine and the two
// timers: burst-quiet while a burst is in progress, flow-idle while the
// flow is empty.
//
// The quiet timer closes bursts promptly under wall-clock time during
// live capture. The explicit timestamp-gap check in the packet path
// covers offline replay, where packets arrive back to back but their
// timestamps still encode the original gaps.
type worker struct {
	key   core.FlowKey
	fl    flow.Flow
	quiet float64
	idle  time.Duration
	in    <-chan *core.Record
	out   chan<- *core.Burst
	reap  chan<- core.FlowKey
}

func newWorker(key core.FlowKey, fl flow.Flow, quiet float64, idle time.Duration,
	in <-chan *core.Record, out chan<- *core.Burst, reap chan<- core.FlowKey) *worker {
	return &worker{
		key:   key,
		fl:    fl,
		quiet: quiet,
		idle:  idle,
		in:    in,
		out:   out,
		reap:  reap,
	}
}

// run loops until the inbound channel is closed. After announcing
// itself on the reap channel the worker keeps serving its inbound
// channel; records routed to it in the instant before the dispatcher
// removes the table entry are still processed, not lost. A burst in
// progress when the channel closes is discarded.
func (w *worker) run() {
	quiet := time.Duration(w.quiet * float64(time.Second))

	for {
		burst := w.fl.Current()

		wait := w.idle
		if burst != nil {
			wait = quiet
		}
		timer := time.NewTimer(wait)

		select {
		case <-timer.C:
			if burst != nil {
				w.out <- burst
				w.fl.Reset()
				continue
			}
			w.reap <- w.key

		case rec, ok := <-w.in:
			timer.Stop()
			if !ok {
				return
			}
			if burst != nil && rec.Time-burst.End > w.quiet {
				w.out <- burst
				w.fl.Reset()
			}
			w.fl.Add(rec)
		}
	}
}
