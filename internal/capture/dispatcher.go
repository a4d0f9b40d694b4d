// Package capture implements the per-flow burst aggregation engine: a
// dispatcher that routes decoder records to one worker goroutine per
// live flow, and the workers that emit quiesced bursts downstream.
package capture

import (
	"sync"
	"time"

	"firestige.xyz/burstshark/internal/core"
	"firestige.xyz/burstshark/internal/flow"
	"firestige.xyz/burstshark/internal/log"
)

// FlowIdle is how long a flow may stay empty (no burst in progress)
// before its worker self-reaps and its resources are released.
const FlowIdle = 30 * time.Second

// Channel capacity for per-flow records, reap notifications and
// emitted bursts. A full channel blocks the sender, ultimately slowing
// the decoder reader.
const chanCap = 100

// Config parameterizes a Dispatcher.
type Config struct {
	Mode core.Mode

	// BurstQuiet is the inter-packet gap in seconds that closes a
	// burst.
	BurstQuiet float64

	// EstimateMissing and MaxDeviation tune the WLAN state machine.
	EstimateMissing bool
	MaxDeviation    uint16

	// FlowIdle overrides the idle reap threshold; zero means FlowIdle.
	// Only tests shorten it.
	FlowIdle time.Duration
}

// Dispatcher owns the flow table. It is the only goroutine touching the
// table; workers communicate back exclusively through the reap channel.
type Dispatcher struct {
	cfg   Config
	out   chan<- *core.Burst
	flows map[core.FlowKey]chan *core.Record
	reap  chan core.FlowKey
	wg    sync.WaitGroup
	log   log.Logger
}

// NewDispatcher builds a dispatcher emitting bursts on out.
func NewDispatcher(cfg Config, out chan<- *core.Burst) *Dispatcher {
	if cfg.FlowIdle == 0 {
		cfg.FlowIdle = FlowIdle
	}
	return &Dispatcher{
		cfg:   cfg,
		out:   out,
		flows: make(map[core.FlowKey]chan *core.Record),
		reap:  make(chan core.FlowKey, chanCap),
		log:   log.GetLogger().WithField("component", "dispatcher"),
	}
}

// Run consumes records until in is closed, then closes every flow
// channel, waits for the workers to drain and exits after closing the
// burst channel. In-progress bursts are discarded at end of input: the
// operator has stopped the capture and the reference behavior is not to
// flush a partial burst.
//
// Pending reap notifications are always handled before the next record
// is routed, so a worker that announced idle-exit cannot be handed a
// record through a stale table entry. A reap and a record for the same
// key arriving in the same instant are still safe: the worker keeps
// serving its channel until the dispatcher closes it.
func (d *Dispatcher) Run(in <-chan *core.Record) {
	for {
		d.drainReaps()

		select {
		case key := <-d.reap:
			d.release(key)

		case rec, ok := <-in:
			if !ok {
				d.shutdown()
				return
			}
			d.route(rec)
		}
	}
}

// drainReaps releases every worker that has announced idle-exit.
func (d *Dispatcher) drainReaps() {
	for {
		select {
		case key := <-d.reap:
			d.release(key)
		default:
			return
		}
	}
}

// route forwards the record to its flow worker, spawning one for an
// unknown key. Sending on a full flow channel blocks; that is the
// backpressure path.
func (d *Dispatcher) route(rec *core.Record) {
	key := rec.Key()
	ch, ok := d.flows[key]
	if !ok {
		ch = make(chan *core.Record, chanCap)
		d.flows[key] = ch

		w := newWorker(key, flow.New(flow.Options{
			Mode:            d.cfg.Mode,
			EstimateMissing: d.cfg.EstimateMissing,
			MaxDeviation:    d.cfg.MaxDeviation,
		}), d.cfg.BurstQuiet, d.cfg.FlowIdle, ch, d.out, d.reap)

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			w.run()
		}()

		if d.log.IsDebugEnabled() {
			d.log.WithField("flow", key.String()).Debug("new flow")
		}
	}
	ch <- rec
}

// release closes a reaped worker's channel and forgets the flow. The
// no-op case covers a duplicate reap from a worker whose entry was
// already replaced.
func (d *Dispatcher) release(key core.FlowKey) {
	ch, ok := d.flows[key]
	if !ok {
		return
	}
	delete(d.flows, key)
	close(ch)
	if d.log.IsDebugEnabled() {
		d.log.WithField("flow", key.String()).Debug("flow idle, released")
	}
}

// shutdown closes all flow channels and waits for the workers. The
// reap channel keeps being drained meanwhile so an idle worker blocked
// on announcing itself cannot stall the exit.
func (d *Dispatcher) shutdown() {
	for key, ch := range d.flows {
		delete(d.flows, key)
		close(ch)
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-d.reap:
		case <-done:
			close(d.out)
			return
		}
	}
}
