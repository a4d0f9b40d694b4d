// Package app wires the capture pipeline together: one record source,
// the per-flow dispatcher and the burst writer, joined by bounded
// channels.
package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"firestige.xyz/burstshark/internal/capture"
	"firestige.xyz/burstshark/internal/config"
	"firestige.xyz/burstshark/internal/core"
	"firestige.xyz/burstshark/internal/decoder"
	"firestige.xyz/burstshark/internal/log"
	"firestige.xyz/burstshark/internal/output"
	pcapsource "firestige.xyz/burstshark/internal/source/pcap"
)

const chanCap = 100

// source is any upstream producing records until EOF or cancellation.
type source interface {
	Run(ctx context.Context, out chan<- *core.Record) error
}

// Run executes one capture until the source is exhausted. SIGINT and
// SIGTERM cancel the source (the tshark runner forwards SIGTERM to the
// decoder); the natural end-of-stream path then drains the pipeline.
// Shutdown order is source, then dispatcher and its workers, then the
// writer when the burst channel closes.
func Run(cfg *config.Config) error {
	if err := log.Init(cfg.Logger); err != nil {
		return err
	}
	logger := log.GetLogger()

	writer, err := buildWriter(cfg)
	if err != nil {
		return err
	}

	mode := cfg.CaptureMode()
	records := make(chan *core.Record, chanCap)
	bursts := make(chan *core.Burst, chanCap)

	dispatcher := capture.NewDispatcher(capture.Config{
		Mode:            mode,
		BurstQuiet:      cfg.BurstQuiet,
		EstimateMissing: cfg.EstimateMissing,
		MaxDeviation:    cfg.MaxDeviation,
	}, bursts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(map[string]interface{}{
		"mode":   mode.String(),
		"source": cfg.Source,
		"quiet":  cfg.BurstQuiet,
	}).Info("starting capture")

	srcErr := make(chan error, 1)
	go func() {
		srcErr <- buildSource(cfg, mode).Run(ctx, records)
		close(records)
	}()

	dispatcherDone := make(chan struct{})
	go func() {
		dispatcher.Run(records)
		close(dispatcherDone)
	}()

	// A sink write failure is fatal; the process exits without
	// waiting for upstream.
	if err := writer.Run(bursts); err != nil {
		return err
	}

	<-dispatcherDone
	if err := <-srcErr; err != nil {
		return err
	}

	logger.WithField("bursts", writer.Count()).Info("capture finished")
	return nil
}

func buildSource(cfg *config.Config, mode core.Mode) source {
	if cfg.Source == config.SourcePcap {
		return pcapsource.New(pcapsource.Config{
			Mode:            mode,
			Infile:          cfg.ReadFile,
			Interface:       cfg.Interface,
			Filter:          cfg.CaptureFilter,
			TimeEpoch:       cfg.TimeFormat == "epoch",
			PortAggregation: cfg.PortAggregation,
		})
	}

	filter := cfg.CaptureFilter
	if cfg.ReadFile != "" {
		filter = cfg.DisplayFilter
	}
	return decoder.NewRunner(decoder.Options{
		Mode:            mode,
		Infile:          cfg.ReadFile,
		Interface:       cfg.Interface,
		Filter:          filter,
		CaptureOutfile:  cfg.WriteCapture,
		TimeEpoch:       cfg.TimeFormat == "epoch",
		PortAggregation: cfg.PortAggregation,
	})
}

func buildWriter(cfg *config.Config) (*output.Writer, error) {
	filter := output.Filter{
		MinBytes:   cfg.MinBytes,
		MaxBytes:   cfg.MaxBytes,
		MinPackets: cfg.MinPackets,
		MaxPackets: cfg.MaxPackets,
	}

	var console io.Writer = os.Stdout
	if cfg.Suppress {
		console = nil
	}

	if cfg.WriteBursts != "" {
		return output.NewMirroredWriter(filter, console, cfg.WriteBursts)
	}
	if console == nil {
		console = io.Discard
	}
	return output.NewWriter(filter, console), nil
}
