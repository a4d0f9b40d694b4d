// Package decoder turns the external packet decoder's field stream into
// records. It owns the tshark invocation (argument construction,
// subprocess lifecycle) and the line parser; any decoder producing the
// same fields in the same order can feed the parser.
package decoder

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"firestige.xyz/burstshark/internal/core"
)

// ErrMalformedRecord marks a line that could not be parsed. The caller
// skips the line; the stream continues.
var ErrMalformedRecord = errors.New("malformed record")

// ParseRecord parses one whitespace-separated line of the decoder field
// stream. Field order is fixed per mode:
//
//	ip:   time src_addr dst_addr payload_len src_port dst_port
//	ip +port aggregation: time src_addr dst_addr payload_len
//	wlan: time src_mac dst_mac payload_len seq_number
//
// Extra trailing fields are ignored.
func ParseRecord(line string, mode core.Mode, portAggregation bool) (*core.Record, error) {
	return parseFields(strings.Fields(line), mode, portAggregation)
}

func parseFields(fields []string, mode core.Mode, portAggregation bool) (*core.Record, error) {
	next := func(name string) (string, error) {
		if len(fields) == 0 {
			return "", fmt.Errorf("%w: no %s", ErrMalformedRecord, name)
		}
		f := fields[0]
		fields = fields[1:]
		if f == "" {
			return "", fmt.Errorf("%w: no %s", ErrMalformedRecord, name)
		}
		return f, nil
	}

	timeField, err := next("time")
	if err != nil {
		return nil, err
	}
	t, err := strconv.ParseFloat(timeField, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad time %q", ErrMalformedRecord, timeField)
	}

	src, err := next("source")
	if err != nil {
		return nil, err
	}
	dst, err := next("destination")
	if err != nil {
		return nil, err
	}
	if err := checkAddress(src, mode); err != nil {
		return nil, err
	}
	if err := checkAddress(dst, mode); err != nil {
		return nil, err
	}

	lengthField, err := next("length")
	if err != nil {
		return nil, err
	}
	length, err := strconv.ParseUint(lengthField, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: bad length %q", ErrMalformedRecord, lengthField)
	}

	rec := &core.Record{
		Time:    t,
		Src:     src,
		Dst:     dst,
		Length:  uint32(length),
		SrcPort: core.NullPort,
		DstPort: core.NullPort,
	}

	switch {
	case mode == core.ModeWLAN:
		seqField, err := next("sequence number")
		if err != nil {
			return nil, err
		}
		seq, err := strconv.ParseUint(seqField, 10, 16)
		if err != nil || seq >= core.SeqModulo {
			return nil, fmt.Errorf("%w: bad sequence number %q", ErrMalformedRecord, seqField)
		}
		rec.Seq = uint16(seq)

	case !portAggregation:
		srcPort, err := parsePort(next, "source port")
		if err != nil {
			return nil, err
		}
		dstPort, err := parsePort(next, "destination port")
		if err != nil {
			return nil, err
		}
		rec.SrcPort = srcPort
		rec.DstPort = dstPort
	}

	return rec, nil
}

func parsePort(next func(string) (string, error), name string) (uint16, error) {
	f, err := next(name)
	if err != nil {
		return 0, err
	}
	p, err := strconv.ParseUint(f, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s %q", ErrMalformedRecord, name, f)
	}
	return uint16(p), nil
}

func checkAddress(addr string, mode core.Mode) error {
	if mode == core.ModeWLAN {
		if _, err := net.ParseMAC(addr); err != nil {
			return fmt.Errorf("%w: bad mac %q", ErrMalformedRecord, addr)
		}
		return nil
	}
	if net.ParseIP(addr) == nil {
		return fmt.Errorf("%w: bad address %q", ErrMalformedRecord, addr)
	}
	return nil
}
