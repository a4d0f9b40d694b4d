// Package pcap is a native capture source built on gopacket. It reads
// a capture file or a live interface directly and produces the same
// records as the tshark decoder, for hosts where tshark is not
// available.
package pcap

import (
	"context"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/burstshark/internal/core"
	"firestige.xyz/burstshark/internal/log"
)

const snapLen = 65535

// Config describes one capture.
type Config struct {
	Mode core.Mode

	// Infile reads from a capture file; empty means live capture on
	// Interface.
	Infile    string
	Interface string

	// Filter is a BPF expression merged with the per-mode default.
	Filter string

	// TimeEpoch reports seconds since the UNIX epoch instead of
	// seconds relative to the first packet.
	TimeEpoch bool

	// PortAggregation nulls both ports in IP mode.
	PortAggregation bool
}

// Source decodes packets into records.
type Source struct {
	cfg Config
	log log.Logger
}

func New(cfg Config) *Source {
	return &Source{
		cfg: cfg,
		log: log.GetLogger().WithField("component", "pcap"),
	}
}

// bpfFilter admits the same traffic as the tshark decoder's capture
// filter.
func bpfFilter(mode core.Mode, extra string) string {
	filter := "udp or (tcp and (((ip[2:2] - ((ip[0]&0xf)<<2)) - ((tcp[12]&0xf0)>>2)) != 0))"
	if mode == core.ModeWLAN {
		filter = "wlan type data subtype qos-data"
	}
	if extra != "" {
		filter = "(" + filter + ") and (" + extra + ")"
	}
	return filter
}

// Run streams records on out until the capture ends or ctx is
// cancelled, then returns. out is not closed; that is the caller's job.
func (s *Source) Run(ctx context.Context, out chan<- *core.Record) error {
	handle, err := s.open()
	if err != nil {
		return err
	}
	defer handle.Close()

	if err := handle.SetBPFFilter(bpfFilter(s.cfg.Mode, s.cfg.Filter)); err != nil {
		return fmt.Errorf("failed to set capture filter: %w", err)
	}

	src := gopacket.NewPacketSource(handle, handle.LinkType())
	src.Lazy = true
	src.NoCopy = true

	var origin float64
	haveOrigin := false

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		packet, err := src.NextPacket()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			// Per-packet decode trouble is not fatal to the capture.
			s.log.WithError(err).Debug("skipping packet")
			continue
		}

		rec := s.toRecord(packet)
		if rec == nil {
			continue
		}

		ts := float64(packet.Metadata().Timestamp.UnixNano()) / 1e9
		if !haveOrigin {
			origin = ts
			haveOrigin = true
		}
		if s.cfg.TimeEpoch {
			rec.Time = ts
		} else {
			rec.Time = ts - origin
		}

		select {
		case out <- rec:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Source) open() (*pcap.Handle, error) {
	if s.cfg.Infile != "" {
		handle, err := pcap.OpenOffline(s.cfg.Infile)
		if err != nil {
			return nil, fmt.Errorf("failed to open capture file %s: %w", s.cfg.Infile, err)
		}
		return handle, nil
	}

	iface := s.cfg.Interface
	if iface == "" {
		picked, err := firstUpInterface()
		if err != nil {
			return nil, err
		}
		iface = picked
		s.log.WithField("interface", iface).Info("no interface given, picked default")
	}

	handle, err := pcap.OpenLive(iface, snapLen, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("failed to open interface %s: %w", iface, err)
	}
	return handle, nil
}

// firstUpInterface picks the first non-loopback interface with an
// address, mirroring tshark's default.
func firstUpInterface() (string, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return "", fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, dev := range devs {
		if dev.Flags&0x1 != 0 { // PCAP_IF_LOOPBACK
			continue
		}
		if len(dev.Addresses) == 0 {
			continue
		}
		return dev.Name, nil
	}
	return "", fmt.Errorf("no capturable interface found")
}

func (s *Source) toRecord(packet gopacket.Packet) *core.Record {
	if s.cfg.Mode == core.ModeWLAN {
		return wlanRecord(packet)
	}
	return s.ipRecord(packet)
}

// ipRecord keeps UDP datagrams and payload-bearing TCP segments.
func (s *Source) ipRecord(packet gopacket.Packet) *core.Record {
	var src, dst string
	switch {
	case packet.Layer(layers.LayerTypeIPv4) != nil:
		ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		src, dst = ip.SrcIP.String(), ip.DstIP.String()
	case packet.Layer(layers.LayerTypeIPv6) != nil:
		ip := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		src, dst = ip.SrcIP.String(), ip.DstIP.String()
	default:
		return nil
	}

	rec := &core.Record{Src: src, Dst: dst, SrcPort: core.NullPort, DstPort: core.NullPort}

	switch {
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		rec.Length = uint32(len(udp.Payload))
		if !s.cfg.PortAggregation {
			rec.SrcPort = uint16(udp.SrcPort)
			rec.DstPort = uint16(udp.DstPort)
		}
	case packet.Layer(layers.LayerTypeTCP) != nil:
		tcp := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		if len(tcp.Payload) == 0 {
			return nil
		}
		rec.Length = uint32(len(tcp.Payload))
		if !s.cfg.PortAggregation {
			rec.SrcPort = uint16(tcp.SrcPort)
			rec.DstPort = uint16(tcp.DstPort)
		}
	default:
		return nil
	}

	return rec
}

// wlanRecord keeps 802.11 QoS data frames. Source and destination
// addresses sit in different header slots depending on the DS flags.
func wlanRecord(packet gopacket.Packet) *core.Record {
	dot11Layer := packet.Layer(layers.LayerTypeDot11)
	if dot11Layer == nil {
		return nil
	}
	dot11 := dot11Layer.(*layers.Dot11)
	if dot11.Type != layers.Dot11TypeDataQOSData {
		return nil
	}

	var sa, da string
	switch {
	case !dot11.Flags.ToDS() && !dot11.Flags.FromDS():
		da, sa = dot11.Address1.String(), dot11.Address2.String()
	case dot11.Flags.ToDS() && !dot11.Flags.FromDS():
		da, sa = dot11.Address3.String(), dot11.Address2.String()
	case !dot11.Flags.ToDS() && dot11.Flags.FromDS():
		da, sa = dot11.Address1.String(), dot11.Address3.String()
	default:
		da, sa = dot11.Address3.String(), dot11.Address4.String()
	}

	length := uint32(len(dot11.Payload))
	if app := packet.ApplicationLayer(); app != nil {
		length = uint32(len(app.Payload()))
	}

	return &core.Record{
		Src:     sa,
		Dst:     da,
		Length:  length,
		Seq:     dot11.SequenceNumber,
		SrcPort: core.NullPort,
		DstPort: core.NullPort,
	}
}
