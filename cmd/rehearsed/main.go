package main

import (
	"context"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"rehearse/internal/app"
	"rehearse/internal/appctx"
	"rehearse/internal/audio"
	"rehearse/internal/capture"
	"rehearse/internal/config"
	"rehearse/internal/daemon"
	"rehearse/internal/events"
	"rehearse/internal/ipc"
	"rehearse/internal/listen"
	"rehearse/internal/session"
	"rehearse/internal/synth"
	"rehearse/internal/tts"
	"rehearse/pkg/stt"
)

func main() {
	config.Flags(cli.CommandLine)
	noAudio := cli.Bool("no-audio", false, "Run without microphone and speakers")
	cli.Parse()

	cfg, err := config.Load(cli.CommandLine)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	logger, closeLog := config.SetupLogger(cfg.LogLevel, cfg.LogFile)
	defer closeLog()
	log.SetDefault(logger)

	log.Info("Booting up")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := appctx.Load(cfg.Daemon.State)
	if err != nil {
		log.Error("Failed to load app context", "path", cfg.Daemon.State, "err", err)
		os.Exit(1)
	}
	if cfg.Owner != "" {
		state.Profile.OwnerID = cfg.Owner
	}
	if state.Profile.Role == "" || cli.CommandLine.Changed("role") {
		state.Profile.Role = cfg.Session.Role
	}

	log.Debug("Loaded app context", "owner", state.Profile.OwnerID, "role", state.Profile.Role)

	var (
		player *audio.Player
		device synth.Device
	)
	if !*noAudio {
		var ducker audio.Ducking
		if cfg.Audio.Duck {
			ducker = audio.NewDucker(audio.Pactl{}, []string{"rehearsed"}, cfg.Audio.DuckFloor)
		}
		player, err = audio.NewPlayer(ducker, cfg.Audio.Cue)
		if err != nil {
			log.Error("Failed to init player", "err", err)
			os.Exit(1)
		}
		device = tts.NewEspeak(cfg.Audio.Voice, 0)
	}

	var synthPlayer synth.Player
	if player != nil {
		synthPlayer = player
	}
	stack, err := app.Build(ctx, cfg, synthPlayer, device)
	if err != nil {
		log.Error("Failed to build stack", "err", err)
		os.Exit(1)
	}
	defer stack.Close(context.Background())

	log.Debug("Loaded providers and stores")

	var publisher events.Publisher = events.Logger{}
	var bus *events.Bus
	if cfg.Daemon.BusURL != "" {
		bus, err = events.NewBus(cfg.Daemon.BusURL, "rehearsed", time.Second)
		if err != nil {
			log.Error("Failed to connect to bus", "url", cfg.Daemon.BusURL, "err", err)
			os.Exit(1)
		}
		defer bus.Close()
		publisher = events.Fanout{events.Logger{}, bus}
	}

	opts := daemon.Options{
		Deps: session.Deps{
			Interviewer: stack.Gateway,
			Memories:    stack.Memories,
			Speaker:     stack.Voice,
			Summarizer:  session.NewSummarizer(stack.Gateway, stack.History),
			Events:      publisher,
		},
		Session:   session.Config{Inactivity: cfg.Session.Inactivity},
		State:     state,
		StatePath: cfg.Daemon.State,
		History:   stack.History,
	}
	if player != nil {
		opts.Cue = player.Cue
	}

	if !*noAudio {
		whisper, err := stt.NewTranscriber(cfg.Capture.WhisperModel)
		if err != nil {
			log.Warn("Speech recognition unavailable", "model", cfg.Capture.WhisperModel, "err", err)
		} else {
			defer whisper.Close()

			rec := audio.NewRecorder()
			if err := rec.Init(); err != nil {
				log.Error("Failed to init audio", "err", err)
				os.Exit(1)
			}
			defer rec.Close()

			sttOpts := stt.Options{Language: cfg.Capture.Language, InitialPrompt: "Job interview for " + state.Profile.Role}
			vad := audio.DefaultVAD()
			vad.Threshold = cfg.Capture.Threshold

			unit := capture.New(listen.NewMic(rec, whisper, vad, sttOpts),
				capture.WithSilence(cfg.Capture.Silence),
				capture.OnError(func(err error) {
					publisher.Publish(events.Event{Kind: events.KindError, Content: err.Error(), At: time.Now()})
				}),
			)
			opts.Deps.Listener = unit
			opts.Transcribe = func(ctx context.Context, path string) (string, error) {
				return listen.TranscribeFile(ctx, whisper, path, sttOpts)
			}
			log.Debug("Loaded whisper")
		}
	}

	ctl := daemon.New(opts)

	srv, err := ipc.Listen(cfg.Daemon.Socket, ctl.Handle)
	if err != nil {
		log.Error("Failed ipc server", "socket", cfg.Daemon.Socket, "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	if bus != nil {
		go ctl.ServeBus(ctx, bus)
	}

	log.Info("Boot up - successful", "socket", cfg.Daemon.Socket)

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctl.Shutdown(shutdownCtx)
}
