// Package output is the single consumer of emitted bursts: it applies
// the size/count bounds and renders survivors as fixed-width lines.
package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"firestige.xyz/burstshark/internal/core"
)

// Filter holds the output bounds. A zero value means the bound is not
// set. Bounds are strict: a burst is dropped when size < MinBytes or
// size > MaxBytes, and likewise for packets.
type Filter struct {
	MinBytes   uint32
	MaxBytes   uint32
	MinPackets uint16
	MaxPackets uint16
}

func (f Filter) drop(b *core.Burst) bool {
	return (f.MinBytes != 0 && b.Size < f.MinBytes) ||
		(f.MaxBytes != 0 && b.Size > f.MaxBytes) ||
		(f.MinPackets != 0 && b.Packets < f.MinPackets) ||
		(f.MaxPackets != 0 && b.Packets > f.MaxPackets)
}

// Writer numbers surviving bursts from 1 and writes one line each to
// its sink. Indices reflect emission order; bursts of different flows
// arrive in whatever order their workers emitted them and are not
// sorted.
type Writer struct {
	filter Filter
	sink   io.Writer
	file   *os.File
	start  time.Time
	count  uint64

	now func() time.Time
}

// Option tweaks a Writer.
type Option func(*Writer)

// WithClock replaces the wall clock. Tests only.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// NewWriter builds a writer for the given sink. The elapsed column is
// measured from the moment the writer is created.
func NewWriter(filter Filter, sink io.Writer, opts ...Option) *Writer {
	w := &Writer{
		filter: filter,
		sink:   sink,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.start = w.now()
	return w
}

// NewMirroredWriter builds a writer that also appends every line to the
// named file. Pass a nil console sink to suppress standard output.
func NewMirroredWriter(filter Filter, console io.Writer, path string, opts ...Option) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open burst output file: %w", err)
	}
	var sink io.Writer = f
	if console != nil {
		sink = io.MultiWriter(console, f)
	}
	w := NewWriter(filter, sink, opts...)
	w.file = f
	return w, nil
}

// Run consumes bursts until in is closed. A write failure is fatal and
// returned as-is; bursts already consumed are gone.
func (w *Writer) Run(in <-chan *core.Burst) error {
	defer w.Close()
	for b := range in {
		if w.filter.drop(b) {
			continue
		}
		w.count++
		elapsed := w.now().Sub(w.start).Seconds()
		delay := float64(w.now().UnixNano())/float64(time.Second) - b.End
		if _, err := io.WriteString(w.sink, w.format(b, elapsed, delay)); err != nil {
			return fmt.Errorf("failed to write burst: %w", err)
		}
	}
	return nil
}

// Count reports how many bursts survived the filter so far.
func (w *Writer) Count() uint64 { return w.count }

// Close releases the mirror file, if any.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	f := w.file
	w.file = nil
	return f.Close()
}

// format renders one burst line: index, elapsed, src, src port, dst,
// dst port, start, end, emission delay, packets, size. Column widths
// match the original tool so downstream parsers keep working.
func (w *Writer) format(b *core.Burst, elapsed, delay float64) string {
	return fmt.Sprintf("%5d %13.9f %15s %6d %15s %5d %13.9f %13.9f %13.9f %4d %d\n",
		w.count, elapsed,
		b.Src, b.SrcPort,
		b.Dst, b.DstPort,
		b.Start, b.End, delay,
		b.Packets, b.Size,
	)
}
