package decoder

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"syscall"

	"firestige.xyz/burstshark/internal/core"
	"firestige.xyz/burstshark/internal/log"
)

const tsharkBin = "tshark"

// Runner spawns tshark and streams its field output as records.
type Runner struct {
	opts      Options
	malformed atomic.Uint64
	log       log.Logger
}

func NewRunner(opts Options) *Runner {
	return &Runner{
		opts: opts,
		log:  log.GetLogger().WithField("component", "tshark"),
	}
}

// Run spawns tshark, parses each stdout line into a record and sends it
// on out. It blocks until the stream ends and the process has been
// reaped, then returns nil on a clean exit.
//
// Cancelling ctx forwards SIGTERM to tshark; the process flushes and
// exits, which ends the stream with a normal EOF. Malformed lines are
// counted and skipped. out is not closed; that is the caller's job.
func (r *Runner) Run(ctx context.Context, out chan<- *core.Record) error {
	cmd := exec.Command(tsharkBin, Args(r.opts)...)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open tshark stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start tshark: %w", err)
	}
	r.log.WithField("pid", cmd.Process.Pid).Debug("decoder started")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = cmd.Process.Signal(syscall.SIGTERM)
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := r.parseLine(line)
		if err != nil {
			r.malformed.Add(1)
			if r.log.IsDebugEnabled() {
				r.log.WithError(err).Debug("skipping line")
			}
			continue
		}
		out <- rec
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()
	if n := r.malformed.Load(); n > 0 {
		r.log.WithField("lines", n).Info("skipped undecodable decoder output")
	}
	if scanErr != nil {
		return fmt.Errorf("reading tshark output: %w", scanErr)
	}
	// SIGTERM on cancellation makes a non-zero exit expected.
	if waitErr != nil && ctx.Err() == nil {
		return fmt.Errorf("tshark terminated abnormally: %w", waitErr)
	}
	return nil
}

// Malformed reports how many stdout lines were skipped so far.
func (r *Runner) Malformed() uint64 {
	return r.malformed.Load()
}

// parseLine normalizes one raw tab-separated tshark line into the
// contract field order and parses it. tshark emits one column per -e
// flag; of the alternative length and port columns, the first non-empty
// one wins.
func (r *Runner) parseLine(line string) (*core.Record, error) {
	cols := strings.Split(line, "\t")
	pick := func(lo, hi int) string {
		for i := lo; i < hi && i < len(cols); i++ {
			if cols[i] != "" {
				return cols[i]
			}
		}
		return ""
	}

	var fields []string
	switch {
	case r.opts.Mode == core.ModeWLAN:
		fields = []string{pick(0, 1), pick(1, 2), pick(2, 3), pick(3, 4), pick(4, 5)}
	case r.opts.PortAggregation:
		fields = []string{pick(0, 1), pick(1, 2), pick(2, 3), pick(3, 6)}
	default:
		fields = []string{pick(0, 1), pick(1, 2), pick(2, 3), pick(3, 6), pick(6, 8), pick(8, 10)}
	}
	return parseFields(fields, r.opts.Mode, r.opts.PortAggregation)
}
