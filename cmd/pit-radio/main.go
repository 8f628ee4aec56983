package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sjawhar/pit-radio/internal/announce"
	"github.com/sjawhar/pit-radio/internal/audio"
	"github.com/sjawhar/pit-radio/internal/config"
	"github.com/sjawhar/pit-radio/internal/debrief"
	"github.com/sjawhar/pit-radio/internal/detect"
	"github.com/sjawhar/pit-radio/internal/engineer"
	"github.com/sjawhar/pit-radio/internal/gdrive"
	"github.com/sjawhar/pit-radio/internal/llm"
	"github.com/sjawhar/pit-radio/internal/logging"
	"github.com/sjawhar/pit-radio/internal/persona"
	"github.com/sjawhar/pit-radio/internal/server"
	"github.com/sjawhar/pit-radio/internal/speech"
	"github.com/sjawhar/pit-radio/internal/storage"
	"github.com/sjawhar/pit-radio/internal/telemetry"
	"github.com/sjawhar/pit-radio/internal/transcribe"
	"github.com/sjawhar/pit-radio/internal/trigger"
	"github.com/sjawhar/pit-radio/internal/voice"
)

//go:embed static/*
var staticFiles embed.FS

const (
	connectAttempts = 3
	connectDelay    = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "pit-radio.yaml", "path to the YAML config file")
	envFile := flag.String("env", ".env", "path to a KEY=value env file")
	replayPath := flag.String("replay", "", "replay a JSON-lines telemetry file instead of the console")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		slog.Error("load env file", "err", err)
		os.Exit(1)
	}
	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	if *replayPath != "" {
		cfg.Telemetry.Source = "replay"
		cfg.Telemetry.ReplayPath = *replayPath
	}

	logger, logFile := logging.Setup(cfg.Log.Level, cfg.Log.File)
	defer func() { _ = logFile.Close() }()
	for _, w := range warnings {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, warnings, logger); err != nil {
		logger.Error("pit-radio stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, warnings []string, logger *slog.Logger) error {
	logger.Info("pit-radio: starting", "driver", cfg.DriverName)

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer func() { _ = store.Close() }()

	g, ctx := errgroup.WithContext(ctx)

	source := openTelemetry(ctx, g, cfg, logger)

	transport, closeTransport := openTransport(cfg, logger)
	defer closeTransport()
	radio := voice.NewSwitch(transport)

	synth, err := newSynthesizer(cfg)
	if err != nil {
		return err
	}
	effect, err := audio.LoadRadio(ctx, cfg.Audio.FX, cfg.Audio.SquelchStart, cfg.Audio.SquelchEnd)
	if err != nil {
		return fmt.Errorf("radio effect: %w", err)
	}

	textClient := newTextClient(cfg, logger,
		llm.WithMaxTokens(persona.MaxReplyTokens),
		llm.WithTemperature(persona.Temperature),
	)
	composer := persona.NewComposer(textClient, cfg.DriverName, cfg.ParsedLLMTimeout(), logger)

	hub := server.NewHub()
	gate := engineer.NewGate()

	var debriefer engineer.Debriefer
	if textClient != nil {
		debriefer = debrief.New(newTextClient(cfg, logger), cfg.DriverName, store)
	}
	radioLog := storage.NewWriter(cfg.RadioLogDir)
	recorder := audio.NewRecorder(cfg.Audio.RecordingsDir, cfg.Audio.SampleRate)
	races := engineer.NewRaces(store, recorder, debriefer, hub, radioLog, logger)

	pipeline := announce.NewPipeline(gate, radio, synth, effect,
		announce.WithJournal(races),
		announce.WithClipDir(cfg.Audio.Dir),
		announce.WithLogger(logger),
	)

	opts := []engineer.Option{
		engineer.WithRaces(races),
		engineer.WithEvents(hub),
		engineer.WithLogger(logger),
		engineer.WithTickInterval(cfg.ParsedTickInterval()),
		engineer.WithCaptureWindow(cfg.ParsedCaptureWindow()),
		engineer.WithComposer(composer),
		engineer.WithDetectors(detect.Standard(cfg.ParsedOvertakeCooldown(), cfg.FuelThresholds)...),
	}
	if listener := newListener(cfg, logger); listener != nil {
		opts = append(opts, engineer.WithListener(listener, trigger.NewHandler(cfg.TriggerWords, composer)))
	}
	if cfg.Audio.AckPath != "" {
		ack, err := audio.DecodeFile(ctx, cfg.Audio.AckPath, cfg.Audio.SampleRate)
		if err != nil {
			logger.Warn("ack chirp unavailable", "path", cfg.Audio.AckPath, "err", err)
		} else {
			opts = append(opts, engineer.WithAck(ack))
		}
	}
	eng := engineer.New(source, radio, pipeline, gate, opts...)

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("static assets: %w", err)
	}
	handler, err := server.Handler(assets, hub, store, server.ControlHooks{
		Mute:          radio.Mute,
		Unmute:        radio.Unmute,
		IsMuted:       radio.Muted,
		OnMuteChanged: hub.BroadcastRadioChanged,
		State:         func() string { return gate.State().String() },
		CurrentRace: func() string {
			id, _ := races.Current()
			return id
		},
		Warnings:  func() []string { return warnings },
		Redebrief: races.Redebrief,
	})
	if err != nil {
		return fmt.Errorf("build http handler: %w", err)
	}
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}

	g.Go(func() error {
		logger.Info("web UI listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.GDriveFolderID != "" {
		syncer, err := gdrive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if err != nil {
			logger.Warn("gdrive sync disabled", "err", err)
		} else {
			g.Go(func() error {
				syncer.Run(ctx, gdrive.DefaultInterval, radioLog.PathFor)
				return nil
			})
		}
	}

	if source == nil {
		logger.Warn("no telemetry source, serving the UI only")
	} else {
		g.Go(func() error {
			if err := telemetry.WaitForData(ctx, source, connectAttempts, connectDelay); err != nil {
				logger.Warn("no telemetry yet, the engineer keeps listening", "err", err)
			}
			return eng.Run(ctx)
		})
	}

	err = g.Wait()
	races.Wait()
	logger.Info("pit-radio: stopped")
	return err
}

func openTelemetry(ctx context.Context, g *errgroup.Group, cfg config.Config, logger *slog.Logger) telemetry.Source {
	switch cfg.Telemetry.Source {
	case "replay":
		if cfg.Telemetry.ReplayPath == "" {
			return nil
		}
		replay, err := telemetry.OpenReplay(cfg.Telemetry.ReplayPath, cfg.ParsedReplayInterval())
		if err != nil {
			logger.Warn("replay unavailable", "path", cfg.Telemetry.ReplayPath, "err", err)
			return nil
		}
		logger.Info("replaying telemetry", "path", cfg.Telemetry.ReplayPath, "frames", replay.Len())
		return replay
	case "gt7":
		if cfg.Telemetry.PlayStationIP == "" {
			return nil
		}
		client := telemetry.NewClient(cfg.Telemetry.PlayStationIP,
			telemetry.WithStaleAfter(cfg.ParsedStaleAfter()),
			telemetry.WithLogger(logger),
		)
		g.Go(func() error {
			if err := client.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("telemetry stopped", "err", err)
			}
			return nil
		})
		return client
	default:
		return nil
	}
}

// openTransport opens the sound devices, trying the configured capture rate
// first and then the common ones. Without devices the radio runs headless.
func openTransport(cfg config.Config, logger *slog.Logger) (voice.Transport, func()) {
	if cfg.Audio.Headless {
		logger.Info("headless radio, clips are timed but not played")
		return voice.NewDiscard(logger, true), func() {}
	}

	for _, rate := range captureRates(cfg.Audio.SampleRate) {
		local, err := voice.OpenLocal(rate, cfg.Audio.PlaybackRate)
		if err != nil {
			logger.Warn("sound devices unavailable", "capture_rate", rate, "err", err)
			continue
		}
		logger.Info("radio on local sound devices", "capture_rate", rate)
		return local, func() { _ = local.Close() }
	}

	logger.Warn("no usable sound devices, running headless")
	return voice.NewDiscard(logger, true), func() {}
}

func captureRates(preferred int) []int {
	rates := []int{preferred, 16000, 48000, 44100}
	seen := make(map[int]struct{}, len(rates))
	out := make([]int, 0, len(rates))
	for _, r := range rates {
		if r <= 0 {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func newSynthesizer(cfg config.Config) (announce.Synthesizer, error) {
	switch cfg.TTS.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("speech synthesis needs an OpenAI API key")
		}
		return speech.NewOpenAI(cfg.OpenAIAPIKey, cfg.TTS.Voice,
			speech.WithModel(cfg.TTS.Model),
			speech.WithSpeed(cfg.TTS.Speed),
			speech.WithInstructions(cfg.TTS.Instructions),
		), nil
	case "command":
		synth, err := speech.NewCommand(cfg.TTS.Command, cfg.Audio.PlaybackRate)
		if err != nil {
			return nil, fmt.Errorf("speech command: %w", err)
		}
		return synth, nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", cfg.TTS.Provider)
	}
}

// newTextClient returns nil when no model is usable; the engineer then
// speaks its canned lines.
func newTextClient(cfg config.Config, logger *slog.Logger, opts ...llm.Option) llm.Client {
	client, err := llm.NewFromModel(cfg.LLM.Model, cfg.APIKey, opts...)
	if err != nil {
		logger.Warn("text generation disabled", "model", cfg.LLM.Model, "err", err)
		return nil
	}
	return client
}

func newListener(cfg config.Config, logger *slog.Logger) transcribe.Transcriber {
	if cfg.ParsedCaptureWindow() <= 0 {
		return nil
	}
	switch cfg.STT.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil
		}
		return transcribe.NewSafe(transcribe.NewWhisper(cfg.OpenAIAPIKey, cfg.STT.Language), logger)
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			return nil
		}
		return transcribe.NewSafe(transcribe.NewDeepgram(cfg.DeepgramAPIKey, cfg.STT.Language, logger), logger)
	default:
		return nil
	}
}
