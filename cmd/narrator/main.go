// Narrator - speaks a short summary of the objects in front of the camera.
// Detects with YOLOv8 (OpenCV DNN), speaks through OpenAI or ElevenLabs TTS
// with an espeak/say fallback, and serves controls on a small web API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-narrator/internal/config"
	"github.com/teslashibe/go-narrator/internal/log"
	"github.com/teslashibe/go-narrator/internal/notify"
	"github.com/teslashibe/go-narrator/pkg/camera"
	"github.com/teslashibe/go-narrator/pkg/detection/yolo"
	"github.com/teslashibe/go-narrator/pkg/display"
	"github.com/teslashibe/go-narrator/pkg/narrator"
	"github.com/teslashibe/go-narrator/pkg/overlay"
	"github.com/teslashibe/go-narrator/pkg/playback"
	"github.com/teslashibe/go-narrator/pkg/preview"
	"github.com/teslashibe/go-narrator/pkg/speech"
	"github.com/teslashibe/go-narrator/pkg/tts"
	"github.com/teslashibe/go-narrator/pkg/vision"
	"github.com/teslashibe/go-narrator/pkg/web"
)

type options struct {
	config.Settings
	Preset        string
	PreviewFormat string
	AutoStart     bool
}

func main() {
	opts := parseFlags()
	log.Init(opts.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cancel, opts); err != nil {
		log.Error("narrator failed", "error", err)
		os.Exit(1)
	}
}

// parseFlags reads the environment, then lets flags override it.
func parseFlags() options {
	s := config.Load()

	cam := flag.String("camera", s.Camera, "Camera index or video file (NARRATOR_CAMERA)")
	model := flag.String("model", s.ModelPath, "YOLOv8 ONNX model path (NARRATOR_MODEL)")
	port := flag.String("port", s.WebPort, "Control surface port, empty to disable (NARRATOR_WEB_PORT)")
	level := flag.String("log-level", s.LogLevel, "debug, info, warn or error (LOG_LEVEL)")
	voice := flag.Bool("voice", s.VoiceEnabled, "Start with voice output on (NARRATOR_VOICE)")
	window := flag.Bool("window", s.Window, "Show the annotated video window (NARRATOR_WINDOW)")
	notifications := flag.Bool("notify", s.Notifications, "Desktop notifications (NARRATOR_NOTIFY)")
	speechCmd := flag.String("speech-command", s.SpeechCommand, "Offline speech program (NARRATOR_SPEECH_COMMAND)")
	ttsVoice := flag.String("tts-voice", "", "ElevenLabs voice preset or ID (ELEVENLABS_VOICE_ID)")
	preset := flag.String("resolution", camera.PresetVGA, "Camera resolution: vga, 720p, 1080p")
	format := flag.String("preview-format", string(preview.FormatJPEG), "Web preview encoding: jpeg or webp")
	autoStart := flag.Bool("autostart", true, "Start detection immediately")
	flag.Parse()

	s.Camera, s.ModelPath, s.WebPort, s.LogLevel = *cam, *model, *port, *level
	s.VoiceEnabled, s.Window, s.Notifications = *voice, *window, *notifications
	s.SpeechCommand = *speechCmd
	if *ttsVoice != "" {
		s.ElevenLabsVoiceID = *ttsVoice
	} else if s.ElevenLabsVoiceID == "" {
		s.ElevenLabsVoiceID = tts.DefaultElevenLabsVoice
	}

	return options{Settings: s, Preset: *preset, PreviewFormat: *format, AutoStart: *autoStart}
}

func run(ctx context.Context, quit context.CancelFunc, opts options) error {
	logger := log.L()

	camCfg := camera.Preset(opts.Preset)
	if camCfg == nil {
		return fmt.Errorf("unknown resolution %q (have %v)", opts.Preset, camera.PresetNames())
	}
	camCfg.Device = opts.Camera

	format, err := preview.ParseFormat(opts.PreviewFormat)
	if err != nil {
		return err
	}

	yoloCfg := yolo.DefaultConfig()
	yoloCfg.ModelPath = opts.ModelPath
	yoloCfg.Logger = logger
	detector, err := yolo.New(yoloCfg)
	if err != nil {
		return fmt.Errorf("load detector: %w", err)
	}
	defer detector.Close()

	speaker, closeSpeaker := buildSpeaker(opts.Settings, logger)
	defer closeSpeaker()

	notifier := notify.New(opts.Notifications, logger)

	// Sinks and hooks are late-bound: the web server needs the controller,
	// and the controller needs the narrator.
	var (
		srv   *web.Server
		win   *display.Window
		ctrl  *narrator.Controller
		sinks narrator.MultiSink
	)

	cfg := narrator.DefaultConfig()
	cfg.VoiceEnabled = opts.VoiceEnabled

	n, err := narrator.New(cfg, detector, speaker,
		narrator.WithLogger(logger),
		narrator.WithSink(narrator.SinkFunc(func(f *vision.Frame, anns []overlay.Annotation) error {
			return sinks.Render(f, anns)
		})),
		narrator.WithResultHook(func(res narrator.Result) {
			if srv != nil {
				srv.Publish(res)
			}
		}),
		narrator.WithVoiceHook(notifier.Voice),
		narrator.WithSpeechErrorHook(notifier.SpeechFailed),
	)
	if err != nil {
		return err
	}
	defer n.Close()

	ctrl = narrator.NewController(ctx, n, camera.Opener(*camCfg, logger), logger)

	if opts.Window {
		// On macOS, OpenCV windows must be driven from the main thread;
		// run with -window=false there and use the web preview instead.
		win = display.NewWindow("Narrator", overlay.NewRenderer(overlay.DefaultStyle()), display.Handlers{
			OnQuit:        quit,
			OnToggleVoice: func() { n.ToggleVoice() },
		}, logger)
		defer win.Close()
		sinks = append(sinks, win)
	}

	if opts.WebPort != "" {
		srv = web.NewServer(web.Config{
			Port:    opts.WebPort,
			Preview: preview.Config{Format: format},
			Style:   overlay.DefaultStyle(),
			Logger:  logger,
		}, ctrl)
		sinks = append(sinks, srv)

		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("web server failed", "error", err)
				quit()
			}
		}()
	}

	if opts.AutoStart {
		if err := ctrl.Start(); err != nil {
			return err
		}
		notifier.Started()
	}

	logger.Info("narrator ready",
		"session", n.Session().ID,
		"camera", opts.Camera,
		"voice", n.VoiceEnabled(),
		"web", opts.WebPort,
	)

	// Without a control surface there is nothing to restart, so the end of
	// the stream ends the program.
	if srv == nil {
		select {
		case <-ctx.Done():
		case <-ctrl.Done():
		}
	} else {
		<-ctx.Done()
	}

	ctrl.Stop()
	err = ctrl.Wait()
	notifier.Stopped()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildSpeaker prefers hosted TTS played through PortAudio and falls back
// to a local speech program, then to stdout.
func buildSpeaker(s config.Settings, logger *slog.Logger) (speech.Speaker, func()) {
	var speakers []speech.Speaker
	var closers []func()

	var providers []tts.Provider
	if s.OpenAIKey != "" {
		p, err := tts.NewOpenAI(tts.WithAPIKey(s.OpenAIKey), tts.WithLogger(logger))
		if err != nil {
			logger.Warn("openai tts unavailable", "error", err)
		} else {
			providers = append(providers, p)
		}
	}
	if s.ElevenLabsKey != "" {
		p, err := tts.NewElevenLabs(
			tts.WithAPIKey(s.ElevenLabsKey),
			tts.WithVoice(s.ElevenLabsVoiceID),
			tts.WithLogger(logger),
		)
		if err != nil {
			logger.Warn("elevenlabs tts unavailable", "error", err)
		} else {
			providers = append(providers, p)
		}
	}

	if len(providers) > 0 {
		chain, err := tts.NewChain(logger, providers...)
		player, perr := playback.New(logger)
		switch {
		case err != nil:
			logger.Warn("tts chain unavailable", "error", err)
		case perr != nil:
			logger.Warn("audio output unavailable", "error", perr)
			chain.Close()
		default:
			speakers = append(speakers, speech.NewTTS(chain, player, logger))
			closers = append(closers, func() { chain.Close() }, func() { player.Close() })
		}
	}

	if s.SpeechCommand != "" {
		cmd := speech.NewCommand(s.SpeechCommand)
		if cmd.Available() {
			speakers = append(speakers, cmd)
		} else {
			logger.Warn("speech command not found", "command", s.SpeechCommand)
		}
	}

	if len(speakers) == 0 {
		logger.Warn("no speech output configured, printing announcements")
		speakers = append(speakers, speech.Writer{W: os.Stdout})
	}

	return speech.NewFallback(logger, speakers...), func() {
		for _, c := range closers {
			c()
		}
	}
}
