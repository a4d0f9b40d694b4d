package flow

import "firestige.xyz/burstshark/internal/core"

// ipFlow keeps no state beyond the burst itself. The upstream filter
// only admits UDP and payload-bearing TCP, and quiet splitting happens
// in the worker, so every packet simply extends the current burst.
type ipFlow struct {
	current *core.Burst
}

func (f *ipFlow) Add(r *core.Record) {
	if f.current == nil {
		f.current = core.NewBurst(r)
		return
	}
	f.current.End = r.Time
	f.current.Packets++
	f.current.Size += r.Length
}

func (f *ipFlow) Current() *core.Burst { return f.current }

func (f *ipFlow) Reset() { f.current = nil }
