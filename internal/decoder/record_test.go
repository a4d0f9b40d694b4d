package decoder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/burstshark/internal/core"
)

func TestParseRecord_IP(t *testing.T) {
	rec, err := ParseRecord("1.500000000\t10.0.0.1\t10.0.0.2\t1400\t51234\t443", core.ModeIP, false)
	require.NoError(t, err)
	assert.Equal(t, 1.5, rec.Time)
	assert.Equal(t, "10.0.0.1", rec.Src)
	assert.Equal(t, "10.0.0.2", rec.Dst)
	assert.Equal(t, uint32(1400), rec.Length)
	assert.Equal(t, uint16(51234), rec.SrcPort)
	assert.Equal(t, uint16(443), rec.DstPort)
}

func TestParseRecord_IPv6(t *testing.T) {
	rec, err := ParseRecord("0.25 2001:db8::1 2001:db8::2 100 1000 2000", core.ModeIP, false)
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", rec.Src)
	assert.Equal(t, "2001:db8::2", rec.Dst)
}

func TestParseRecord_PortAggregation(t *testing.T) {
	rec, err := ParseRecord("2.0 10.0.0.1 10.0.0.2 500", core.ModeIP, true)
	require.NoError(t, err)
	assert.Equal(t, core.NullPort, rec.SrcPort)
	assert.Equal(t, core.NullPort, rec.DstPort)
}

func TestParseRecord_WLAN(t *testing.T) {
	rec, err := ParseRecord("3.25\taa:bb:cc:dd:ee:01\taa:bb:cc:dd:ee:02\t1400\t2047", core.ModeWLAN, false)
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:01", rec.Src)
	assert.Equal(t, "aa:bb:cc:dd:ee:02", rec.Dst)
	assert.Equal(t, uint16(2047), rec.Seq)
	assert.Equal(t, core.NullPort, rec.SrcPort)
	assert.Equal(t, core.NullPort, rec.DstPort)
}

func TestParseRecord_ExtraFieldsIgnored(t *testing.T) {
	rec, err := ParseRecord("1.0 10.0.0.1 10.0.0.2 100 1000 2000 junk", core.ModeIP, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), rec.Length)
}

func TestParseRecord_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		mode    core.Mode
		portAgg bool
	}{
		{name: "empty line", line: "", mode: core.ModeIP},
		{name: "missing ports", line: "1.0 10.0.0.1 10.0.0.2 100", mode: core.ModeIP},
		{name: "bad time", line: "soon 10.0.0.1 10.0.0.2 100 1 2", mode: core.ModeIP},
		{name: "bad address", line: "1.0 nowhere 10.0.0.2 100 1 2", mode: core.ModeIP},
		{name: "bad length", line: "1.0 10.0.0.1 10.0.0.2 big 1 2", mode: core.ModeIP},
		{name: "bad port", line: "1.0 10.0.0.1 10.0.0.2 100 x 2", mode: core.ModeIP},
		{name: "port out of range", line: "1.0 10.0.0.1 10.0.0.2 100 70000 2", mode: core.ModeIP},
		{name: "length only under aggregation", line: "1.0 10.0.0.1 10.0.0.2", mode: core.ModeIP, portAgg: true},
		{name: "mac in ip mode", line: "1.0 aa:bb:cc:dd:ee:01 10.0.0.2 100 1 2", mode: core.ModeIP},
		{name: "missing seq", line: "1.0 aa:bb:cc:dd:ee:01 aa:bb:cc:dd:ee:02 100", mode: core.ModeWLAN},
		{name: "seq out of ring", line: "1.0 aa:bb:cc:dd:ee:01 aa:bb:cc:dd:ee:02 100 4096", mode: core.ModeWLAN},
		{name: "ip as mac", line: "1.0 10.0.0.1 aa:bb:cc:dd:ee:02 100 7", mode: core.ModeWLAN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord(tt.line, tt.mode, tt.portAgg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRecord), "want ErrMalformedRecord, got %v", err)
		})
	}
}

func TestRunnerParseLine_PicksFirstNonEmptyAlternative(t *testing.T) {
	r := NewRunner(Options{Mode: core.ModeIP})

	// A UDP packet: data.len and udp.length both present, tcp columns
	// empty.
	rec, err := r.parseLine("0.5\t10.0.0.1\t10.0.0.2\t92\t100\t\t5353\t\t5353\t")
	require.NoError(t, err)
	assert.Equal(t, uint32(92), rec.Length)
	assert.Equal(t, uint16(5353), rec.SrcPort)
	assert.Equal(t, uint16(5353), rec.DstPort)

	// A TCP packet: only tcp.len and the tcp port columns are set.
	rec, err = r.parseLine("0.6\t10.0.0.1\t10.0.0.2\t\t\t1400\t\t50000\t\t443")
	require.NoError(t, err)
	assert.Equal(t, uint32(1400), rec.Length)
	assert.Equal(t, uint16(50000), rec.SrcPort)
	assert.Equal(t, uint16(443), rec.DstPort)
}

func TestRunnerParseLine_WLAN(t *testing.T) {
	r := NewRunner(Options{Mode: core.ModeWLAN})
	rec, err := r.parseLine("1.0\t11:22:33:44:55:66\t66:55:44:33:22:11\t1500\t99")
	require.NoError(t, err)
	assert.Equal(t, uint16(99), rec.Seq)
	assert.Equal(t, uint32(1500), rec.Length)
}

func TestRunnerParseLine_TruncatedLine(t *testing.T) {
	r := NewRunner(Options{Mode: core.ModeIP})
	_, err := r.parseLine("0.5\t10.0.0.1")
	assert.True(t, errors.Is(err, ErrMalformedRecord))
}
