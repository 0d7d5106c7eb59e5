/*
NAME
  eas-station

DESCRIPTION
  eas-station is the EAS station core's standalone entrypoint: it
  registers one or more audio sources from flags, wires them through
  the manager, decoder, validator and emitter, and runs until asked to
  stop, notifying systemd of readiness and liveness the way this
  repository's other daemons do.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"

	"github.com/kr8mer/eas-station/alert"
	"github.com/kr8mer/eas-station/audio"
	"github.com/kr8mer/eas-station/config"
	"github.com/kr8mer/eas-station/metrics"
	"github.com/kr8mer/eas-station/pipeline"
	"github.com/kr8mer/eas-station/same"
)

// statusInterval bounds how often a status snapshot is logged, giving
// operators a concrete, poll-based picture of the running station
// without standing up a metrics server.
const statusInterval = 30 * time.Second

// Logging defaults, matching this repository's other daemons
// (cmd/looper, cmd/rv): lumberjack-rotated file plus stdout.
const (
	logPath      = "/var/log/eas-station/eas-station.log"
	logMaxSize   = 100 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
)

func main() {
	var (
		filePath   = flag.String("file", "", "path to a WAV file audio source")
		fileLoop   = flag.Bool("file-loop", true, "loop the file source when it reaches EOF")
		cardTitle  = flag.String("sound-card", "", "ALSA card title to capture from (empty: first recording-capable device)")
		sdrAddr    = flag.String("sdr-addr", "", "rtl_tcp host:port to capture from")
		sdrFreq    = flag.Uint64("sdr-freq", 0, "SDR center frequency in Hz")
		sdrRate    = flag.Uint64("sdr-rate", 960000, "SDR raw I/Q sample rate in Hz")
		streamURL  = flag.String("stream-url", "", "HTTP URL of a raw-PCM audio stream")
		archiveDir = flag.String("archive-dir", "", "directory to archive alert audio clips into (empty disables archival)")
		orgsFile   = flag.String("allowed-originators-file", "", "path to a hot-reloaded allowed-ORG-codes list (empty disables the allow list)")
		eventsFile = flag.String("allowed-event-codes-file", "", "path to a hot-reloaded allowed-EEE-codes list (empty disables the allow list)")
		verbosity  = flag.Int("verbosity", int(logging.Info), "log verbosity (0=debug .. 4=fatal)")
	)
	flag.Parse()

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(int8(*verbosity), io.MultiWriter(fileLog, os.Stdout), true)

	cfg := config.Default(log)
	if errs := cfg.Validate(); errs != nil {
		log.Warning("config defaulted", "detail", errs.Error())
	}

	mgr, p := buildPipeline(cfg, *archiveDir, log)
	if err := registerSources(mgr, *filePath, *fileLoop, *cardTitle, *sdrAddr, uint32(*sdrFreq), uint32(*sdrRate), *streamURL); err != nil {
		log.Fatal("no usable audio source configured", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *orgsFile != "" || *eventsFile != "" {
		w, err := config.NewWatcher(*orgsFile, *eventsFile, log)
		if err != nil {
			log.Fatal("could not watch allow-list files", "error", err.Error())
		}
		p.SetAllowListSource(w.Updates())
		go w.Run(ctx)
	}

	if err := p.Start(ctx); err != nil {
		log.Fatal("pipeline failed to start", "error", err.Error())
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warning("systemd notify failed", "error", err.Error())
	} else if ok {
		log.Info("notified systemd of readiness")
	}

	go watchdog(ctx, p, log)
	go logStatus(ctx, &metrics.Collector{Manager: mgr, Decoder: p.Decoder, Emitter: p.Emitter}, log)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warning("pipeline did not shut down within 5s")
	}
}

// buildPipeline constructs the manager, validator, emitter and
// pipeline value, wiring the manager's onSwitch hook back to the
// pipeline's decoder reset through Pipeline.OnSourceSwitch.
func buildPipeline(cfg config.Config, archiveDir string, log logging.Logger) (*audio.Manager, *pipeline.Pipeline) {
	var p *pipeline.Pipeline
	mgr := audio.NewManager(cfg, func(from, to string) {
		if p != nil {
			p.OnSourceSwitch(from, to)
		}
	})

	sinkList := []alert.Sink{alert.LogSink{Log: log}}
	var archiveSink *alert.ArchiveSink
	if archiveDir != "" {
		sink, err := alert.NewArchiveSink(archiveDir, int(cfg.SampleRate))
		if err != nil {
			log.Fatal("could not create archive sink", "error", err.Error())
		}
		archiveSink = sink
		sinkList = append(sinkList, sink)
	}
	emitter := alert.NewEmitter(alert.NewMultiSink(sinkList...), log)

	validator := same.NewValidator(same.ValidatorConfig{
		Window:        same.TripletWindow,
		DedupWindow:   cfg.DedupWindow,
		MinConfidence: cfg.MinConfidenceEmit,
		CacheSize:     cfg.DedupCacheSize,
		AllowedOrgs:   cfg.AllowedOriginators,
		AllowedEvents: cfg.AllowedEventCodes,
	})

	p = pipeline.New(cfg, mgr, validator, emitter, archiveSink)
	return mgr, p
}

// registerSources registers every audio source flag-enabled on the
// command line. At least one source must be configured.
func registerSources(mgr *audio.Manager, filePath string, fileLoop bool, cardTitle, sdrAddr string, sdrFreq, sdrRate uint32, streamURL string) error {
	registered := 0
	priority := 0

	if filePath != "" {
		err := mgr.Register(audio.Descriptor{
			Name:             "file",
			Kind:             audio.KindFile,
			Priority:         priority,
			TargetSampleRate: config.DefaultSampleRate,
			Config:           audio.FileConfig{Path: filePath, Loop: fileLoop},
		}, audio.NewFileSource())
		if err != nil {
			return fmt.Errorf("register file source: %w", err)
		}
		priority++
		registered++
	}

	if sdrAddr != "" {
		err := mgr.Register(audio.Descriptor{
			Name:             "sdr",
			Kind:             audio.KindSDR,
			Priority:         priority,
			TargetSampleRate: config.DefaultSampleRate,
			Config:           audio.SDRConfig{Addr: sdrAddr, CenterFreq: sdrFreq, IQRate: sdrRate},
		}, audio.NewSDRSource())
		if err != nil {
			return fmt.Errorf("register sdr source: %w", err)
		}
		priority++
		registered++
	}

	if cardTitle != "" || (filePath == "" && sdrAddr == "" && streamURL == "") {
		err := mgr.Register(audio.Descriptor{
			Name:             "sound-card",
			Kind:             audio.KindSoundCard,
			Priority:         priority,
			TargetSampleRate: config.DefaultSampleRate,
			Config:           audio.SoundCardConfig{CardTitle: cardTitle},
		}, audio.NewSoundCardSource())
		if err != nil {
			return fmt.Errorf("register sound-card source: %w", err)
		}
		priority++
		registered++
	}

	if streamURL != "" {
		err := mgr.Register(audio.Descriptor{
			Name:             "stream",
			Kind:             audio.KindStream,
			Priority:         priority,
			TargetSampleRate: config.DefaultSampleRate,
			Config:           audio.StreamConfig{URL: streamURL, Format: 0, SourceRate: config.DefaultSampleRate},
		}, audio.NewStreamSource())
		if err != nil {
			return fmt.Errorf("register stream source: %w", err)
		}
		registered++
	}

	if registered == 0 {
		return fmt.Errorf("no sources configured: pass -file, -sound-card, -sdr-addr or -stream-url")
	}
	return nil
}

// watchdog pings systemd's watchdog, when enabled, as long as the
// decoder is actively processing samples, tying liveness detection to
// real decode activity rather than mere process existence.
func watchdog(ctx context.Context, p *pipeline.Pipeline, log logging.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	var lastProcessed uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := p.Decoder.Snapshot()
			if stats.SamplesProcessed == lastProcessed && stats.SamplesProcessed != 0 {
				log.Warning("decoder appears stalled, skipping watchdog ping", "samplesProcessed", stats.SamplesProcessed)
				continue
			}
			lastProcessed = stats.SamplesProcessed
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				log.Warning("systemd watchdog notify failed", "error", err.Error())
			}
		}
	}
}

// logStatus periodically logs a metrics.Snapshot at Info level, the
// poll-based status surface an operator tails instead of a push-based
// metrics client.
func logStatus(ctx context.Context, c *metrics.Collector, log logging.Logger) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := c.Collect()
			log.Info("status", "activeSource", s.ActiveSource, "decoderState", s.Decoder.State.String(),
				"samplesProcessed", s.Decoder.SamplesProcessed, "emitted", s.Emitted,
				"suppressed", s.Suppressed, "failed", s.Failed)
		}
	}
}
