package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/gordonklaus/portaudio"
	"github.com/jroimartin/gocui"

	"karaoke/capture"
	"karaoke/catalog"
	"karaoke/pitch"
	"karaoke/playback"
	"karaoke/session"
	"karaoke/spectrum"
)

func listDevices() {
	fmt.Println()
	fmt.Printf("Usage: %v [options] [take.wav]\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
	fmt.Println()

	l, err := capture.ListDevices(capture.InOut)
	if err != nil {
		log.Fatal(err)
	}

	bold := color.New(color.Bold)
	index := color.New(color.FgYellow)
	faint := color.New(color.Faint)

	bold.Println("Available audio devices")
	for i, d := range l {
		index.Printf(" %d", i+1)
		fmt.Print(" ", d.Name)
		faint.Printf(" in:%d out:%d %.0fHz\n", d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
	}

	din, _ := portaudio.DefaultInputDevice()
	dout, _ := portaudio.DefaultOutputDevice()

	fmt.Println()
	if din != nil {
		fmt.Println("Default input device:", color.CyanString(din.Name))
	}
	if dout != nil {
		fmt.Println("Default output device:", color.CyanString(dout.Name))
	}
}

func newLogger(cfg Config) (*slog.Logger, func() error, error) {
	nop := func() error { return nil }

	if cfg.NoUI && cfg.Log == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, nil)), nop, nil
	}

	// the terminal belongs to the UI
	if cfg.Log == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nop, nil
	}

	f, err := os.OpenFile(cfg.Log, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})), f.Close, nil
}

func loadCurve(cfg Config) (pitch.Curve, error) {
	if cfg.Curve == "" {
		return pitch.Constant(cfg.Pitch), nil
	}

	f, err := os.Open(cfg.Curve)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return pitch.LoadSteps(f)
}

func main() {
	cfg := defaultConfig()
	cfg.flags(flag.CommandLine)
	flag.Parse()

	if err := cfg.validate(); err != nil {
		log.Fatal(err)
	}

	take := flag.Arg(0) // a recorded take replaces the microphone

	if take == "" || cfg.Play != "" || cfg.List {
		// Initialize PortAudio
		err := portaudio.Initialize()
		if err != nil {
			log.Fatalf("Failed to initialize PortAudio: %v", err)
		}
		defer portaudio.Terminate()
	}

	if cfg.List {
		listDevices()
		return
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := catalog.Open(cfg.DB)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if cfg.Serve != "" {
		srv := &catalog.Server{
			Store:     store,
			Search:    &catalog.VideoSearch{APIKey: cfg.APIKey},
			UploadDir: cfg.Uploads,
			StaticDir: cfg.Static,
			Log:       logger,
		}

		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Serve); err != nil {
				logger.Error("songs API", "error", err)
			}
		}()
	}

	curve, err := loadCurve(cfg)
	if err != nil {
		log.Fatalf("expected pitch curve: %v", err)
	}

	songs, err := store.Songs()
	if err != nil {
		log.Fatal(err)
	}

	if take == "" && cfg.Device == "" && !cfg.NoUI {
		cfg.Device, err = guiSelectAudio()
		if err != nil {
			log.Fatal(err)
		}
	}

	var spk *speaker

	transport := &playback.Transport{Log: logger}
	if cfg.Play != "" {
		spk = newSpeaker(cfg.Play, cfg.Buffer)
		transport.OpenOutput = spk.open
	}
	defer transport.Close()

	current := -1
	for i, s := range songs {
		if s.ID == cfg.Song {
			current = i
		}
	}
	if cfg.Song > 0 && current < 0 {
		log.Fatalf("song not found: %d", cfg.Song)
	}
	if current < 0 && len(songs) > 0 {
		if cfg.NoUI {
			current = 0
		} else if current, err = guiSelectSong(songs); err != nil {
			log.Fatal(err)
		}
	}
	if current >= 0 {
		transport.Load(songs[current])
	}

	mic := &session.Mic{
		FFTSize:  spectrum.FFTSize,
		Curve:    curve,
		Playback: transport,
		Log:      logger,
		Open: func() (capture.Device, error) {
			if take != "" {
				return capture.OpenWaveFile(take)
			}
			return capture.OpenMicrophone(cfg.Device, cfg.Buffer, spectrum.FFTSize*2)
		},
	}
	defer mic.Disable()

	if cfg.NoUI {
		p := newPrinter(mic)
		mic.SetScore = p.setScore
		mic.SetStatus = p.setStatus

		if err := mic.Enable(ctx); err != nil {
			return
		}
		if !transport.Play() {
			color.Yellow("No song loaded, nothing will be scored")
		}

		<-ctx.Done()
		fmt.Println()
		color.New(color.Bold).Printf("Final score: %d\n", mic.Reading().Score)
		return
	}

	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		log.Panicln(err)
	}
	defer g.Close()

	app := &App{
		Mic:       mic,
		Transport: transport,
		Store:     store,
		Speaker:   spk,
		ctx:       ctx,
		gui:       g,
		songs:     songs,
		current:   current,
		status:    session.StatusDisabled,
	}

	mic.SetScore = app.setScore
	mic.SetStatus = app.setStatus

	g.SetManagerFunc(app.Layout)
	if err := app.SetKeyBinding(); err != nil {
		log.Panicln(err)
	}

	go app.redraw(ctx)
	go func() {
		<-ctx.Done()
		g.Update(func(g *gocui.Gui) error { return gocui.ErrQuit })
	}()

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		log.Panicln(err)
	}
}
