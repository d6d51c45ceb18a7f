package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/camrelay/cmd"
	"github.com/smazurov/camrelay/internal/api"
	"github.com/smazurov/camrelay/internal/capture"
	"github.com/smazurov/camrelay/internal/codec"
	"github.com/smazurov/camrelay/internal/config"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/framebuf"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/recognition"
	"github.com/smazurov/camrelay/internal/records"
	"github.com/smazurov/camrelay/internal/systemd"
	"github.com/smazurov/camrelay/internal/version"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 5 * time.Second
	recognizerTimeout = 10 * time.Second
)

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *config.Options) {
		// Load configuration file and environment on top of flag defaults
		loadErr := config.LoadConfig(opts, cli.Root())

		logging.Initialize(opts.LoggingConfig())
		logger := logging.GetLogger("main")
		if loadErr != nil {
			logger.Warn("Failed to load config", "path", opts.Config, "error", loadErr)
		}
		if err := opts.Validate(); err != nil {
			logger.Error("Invalid configuration", "error", err)
			os.Exit(1)
		}

		// Create event bus and mirror log records onto it for /api/logs/stream
		eventBus := events.New()
		logging.SetEntryCallback(func(e logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        e.Seq,
				Timestamp:  e.Timestamp,
				Level:      e.Level,
				Module:     e.Module,
				Message:    e.Message,
				Attributes: e.Attributes,
			})
		})

		frames := framebuf.New()
		decoder := codec.NewFFmpeg(opts.DecoderConfig(), logging.GetLogger("ffmpeg"))
		prober := capture.NewProber(decoder, opts.ProbeConfig(), eventBus, logging.GetLogger("probe"))
		session := capture.NewSession(
			capture.BuildCandidates(opts.CameraConfig()),
			prober,
			frames,
			opts.SessionConfig(),
			logging.GetLogger("capture"),
			capture.WithEvents(eventBus),
		)

		recordsLogger := logging.GetLogger("records")
		initialLabels, labelErr := records.LoadLabelMap(opts.RecordsLabelMapPath)
		switch {
		case errors.Is(labelErr, fs.ErrNotExist):
			recordsLogger.Warn("Label map not found, names will be unresolved", "path", opts.RecordsLabelMapPath)
		case labelErr != nil:
			recordsLogger.Warn("Failed to load label map", "path", opts.RecordsLabelMapPath, "error", labelErr)
		}
		labels := records.NewLabelMap(initialLabels)

		labelWatcher := config.NewWatcher(opts.RecordsLabelMapPath, records.LoadLabelMap, recordsLogger)
		labelWatcher.OnReload(func(m map[string]string) {
			labels.Replace(m)
			recordsLogger.Info("Label map reloaded", "labels", len(m))
		})

		var runtime *recognition.Runtime
		if opts.RecognitionEnabled {
			threshold, _ := opts.Threshold()
			recognitionLogger := logging.GetLogger("recognition")
			runtime = recognition.NewRuntime(
				recognition.NewHTTPRecognizer(opts.RecognitionURL, recognizerTimeout, recognitionLogger),
				frames,
				labels,
				records.NewLog(opts.RecordsCSVPath),
				recognition.Config{
					Threshold: threshold,
					MaxPerSec: float64(opts.RecognitionMaxPerSec),
					Poll:      opts.StreamPoll(),
				},
				recognitionLogger,
				eventBus,
			)
		}

		apiOpts := &api.Options{
			Frames:       frames,
			Session:      session,
			Bus:          eventBus,
			RecordsPath:  opts.RecordsCSVPath,
			Labels:       labels,
			StreamPoll:   opts.StreamPoll(),
			StreamPacing: opts.StreamPacing(),
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = promhttp.Handler()
		}
		server := api.NewServer(apiOpts)

		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		eventBus.Subscribe(func(e events.SessionStateChangedEvent) {
			notifier.Status(strings.TrimSpace(e.To + " " + e.Candidate))
		})
		// A live session must keep publishing frames between watchdog pings.
		var lastSeq uint64
		capturing := func() bool {
			seq := frames.Seq()
			progressed := seq != lastSeq
			lastSeq = seq
			return progressed || !session.State().Live()
		}

		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})

		hooks.OnStart(func() {
			defer close(stopped)
			logger.Info("Starting camrelay", "version", version.String(), "addr", opts.ListenAddr())

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return session.Run(gctx) })
			g.Go(func() error {
				// The label map is optional; losing the watch only disables hot reload.
				if err := labelWatcher.Run(gctx); err != nil {
					recordsLogger.Warn("Label map hot reload disabled", "error", err)
				}
				return nil
			})
			if runtime != nil {
				g.Go(func() error { return runtime.Run(gctx) })
			}
			g.Go(func() error { return notifier.RunWatchdog(gctx, capturing) })
			g.Go(func() error {
				if err := server.Start(opts.ListenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				notifier.Stopping()
				shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
				defer done()
				return server.Shutdown(shutdownCtx)
			})

			notifier.Ready()

			if err := g.Wait(); err != nil {
				logger.Error("camrelay stopped", "error", err)
				logging.Close()
				os.Exit(1)
			}
			logging.Close()
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
			select {
			case <-stopped:
			case <-time.After(2 * shutdownTimeout):
				logger.Warn("Shutdown timed out")
			}
		})
	})

	cli.Root().Use = "camrelay"
	cli.Root().Version = version.String()
	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateRecordsCmd())

	cli.Run()
}
