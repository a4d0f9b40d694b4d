package flow

import "firestige.xyz/burstshark/internal/core"

// wlanFlow reasons about the circular 12-bit sequence space of 802.11
// QoS data frames. A monitor-mode receiver drops frames silently and
// sees sender retransmissions, so the flow tracks the sequence number
// it expects next and the payload length it last accepted.
type wlanFlow struct {
	estimateMissing bool
	maxDeviation    int
	expected        int
	lastLength      uint32
	current         *core.Burst
}

func (f *wlanFlow) Add(r *core.Record) {
	if f.current == nil {
		f.current = core.NewBurst(r)
		f.expected = (int(r.Seq) + 1) % core.SeqModulo
		f.lastLength = r.Length
		return
	}

	burst := f.current
	seq := int(r.Seq)

	if seq == f.expected {
		f.expected = (seq + 1) % core.SeqModulo
		f.lastLength = r.Length
		burst.End = r.Time
		burst.Packets++
		burst.Size += r.Length
		return
	}

	// Signed distance from the expected number, in (-2048, 2048].
	diff := (seq - f.expected) & (core.SeqModulo - 1)
	signed := diff
	if signed > core.SeqModulo/2 {
		signed -= core.SeqModulo
	}

	// Recent past: the frame was already counted and this is a
	// retransmission. Filtering on the retry bit is not enough since
	// the first transmission might have been the one we missed, so
	// only the burst end moves.
	if -f.maxDeviation < signed && signed < 0 {
		burst.End = r.Time
		return
	}

	// Near future: the frames between expected and seq were lost on
	// the air or by the capture device.
	if 0 < signed && signed < f.maxDeviation {
		if f.estimateMissing {
			estimate := (f.lastLength + r.Length) / 2
			burst.Packets += uint16(diff)
			burst.Size += estimate * uint32(diff)
		} else {
			burst.Packets++
			burst.Size += r.Length
		}
		f.expected = (seq + 1) % core.SeqModulo
		f.lastLength = r.Length
		burst.End = r.Time
		return
	}

	// Deviation too large to be a plausible loss. Discard the frame
	// as an outlier and let the expected number creep forward.
	f.expected = (f.expected + 1) % core.SeqModulo
}

func (f *wlanFlow) Current() *core.Burst { return f.current }

func (f *wlanFlow) Reset() { f.current = nil }
