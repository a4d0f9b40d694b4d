// Package core defines the value types shared across the capture pipeline.
package core

import "fmt"

// NullPort is the sentinel carried by endpoints that have no port: WLAN
// flows, and IP flows keyed with port aggregation enabled.
const NullPort uint16 = 0

// SeqModulo is the size of the 802.11 sequence number space.
const SeqModulo = 4096

// Mode selects the kind of traffic the flow table keys on.
type Mode int

const (
	// ModeIP aggregates UDP and payload-bearing TCP keyed on
	// addresses and ports.
	ModeIP Mode = iota
	// ModeWLAN aggregates 802.11 QoS data frames keyed on MAC pairs.
	ModeWLAN
)

func (m Mode) String() string {
	switch m {
	case ModeIP:
		return "ip"
	case ModeWLAN:
		return "wlan"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts the config/CLI spelling of a mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "ip":
		return ModeIP, nil
	case "wlan":
		return ModeWLAN, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (must be ip or wlan)", s)
	}
}

// Record is one packet summary parsed from a single line of the decoder
// field stream. Timestamps are seconds since an arbitrary origin and
// monotonic within a capture. Seq is only meaningful in WLAN mode.
type Record struct {
	Time    float64
	Src     string
	Dst     string
	Length  uint32
	SrcPort uint16
	DstPort uint16
	Seq     uint16
}

// FlowKey identifies a directional flow. A->B and B->A are distinct.
type FlowKey struct {
	Src     string
	Dst     string
	SrcPort uint16
	DstPort uint16
}

// Key returns the flow key of the record. Ports already carry NullPort
// when the record was parsed under port aggregation or in WLAN mode.
func (r *Record) Key() FlowKey {
	return FlowKey{Src: r.Src, Dst: r.Dst, SrcPort: r.SrcPort, DstPort: r.DstPort}
}

func (k FlowKey) String() string {
	return fmt.Sprintf("%s:%d->%s:%d", k.Src, k.SrcPort, k.Dst, k.DstPort)
}

// Burst is a maximal run of packets of one flow in which no
// inter-packet gap exceeds the configured quiet interval. A burst is
// mutable while it is a flow's current burst and never modified after
// it has been emitted downstream.
type Burst struct {
	Src     string
	Dst     string
	SrcPort uint16
	DstPort uint16
	Start   float64
	End     float64
	Packets uint16
	Size    uint32
}

// NewBurst starts a burst from its first packet.
func NewBurst(r *Record) *Burst {
	return &Burst{
		Src:     r.Src,
		Dst:     r.Dst,
		SrcPort: r.SrcPort,
		DstPort: r.DstPort,
		Start:   r.Time,
		End:     r.Time,
		Packets: 1,
		Size:    r.Length,
	}
}
