package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"go-stompbox/audio"
	"go-stompbox/config"
	"go-stompbox/debug"
	"go-stompbox/device"
	"go-stompbox/flash"
	"go-stompbox/midi"
	"go-stompbox/sample"
	"go-stompbox/settings"
	"go-stompbox/theme"
	"go-stompbox/tone"
	"go-stompbox/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.UI.DebugLog {
		if err := debug.Enable(); err != nil {
			return err
		}
		defer debug.Disable()
	}

	th := theme.New(nil)
	if cfg.UI.Palette != "" {
		p, err := theme.LoadGPL(cfg.UI.Palette)
		if err != nil {
			return err
		}
		th = theme.New(p)
	}

	// Flash image standing in for the reserved sector
	imgPath, err := cfg.FlashImage()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(imgPath), 0755); err != nil {
		return err
	}
	img, err := flash.OpenFile(imgPath, flash.SectorSize, flash.PageSize)
	if err != nil {
		return fmt.Errorf("open flash image: %w", err)
	}
	defer img.Close()
	store := settings.NewStore(img, &flash.Mutex{})

	bank, err := loadBank(cfg.Samples)
	if err != nil {
		return err
	}
	streamer := sample.NewStreamer(bank)
	synth := tone.New(tone.SampleRate, nil)
	pool := audio.NewBufferPool(cfg.Audio.Buffers, cfg.Audio.BufferSize)
	defer pool.Close()

	leds := &device.LEDs{}
	knob := device.NewKnob(tone.MaxPot / 2)
	edges := make(chan device.Edge, 32)
	indicators := device.IndicatorGroup{leds}

	var mgr *midi.Manager
	if cfg.MIDI.AutoConnect {
		mapping := midi.Mapping{
			Channel:     cfg.MIDI.Channel,
			SampleNote:  cfg.MIDI.SampleNote,
			ToneNote:    cfg.MIDI.ToneNote,
			PotCC:       cfg.MIDI.PotCC,
			SampleColor: th.RGB(theme.RoleSample),
			ToneColor:   th.RGB(theme.RoleTone),
		}
		mgr = midi.NewManager(mapping, cfg.MIDI.PortName, edges, knob)
		indicators = append(indicators, mgr)
	}

	dev := device.New(store, synth, streamer, pool, device.Platform{
		Scheduler:  device.SystemScheduler,
		Pot:        knob,
		Indicators: indicators,
	})
	dev.Controller.SaveDelay = cfg.SaveDelay()
	dev.Controller.SetPotThreshold(uint16(cfg.Controls.PotThreshold))

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	// a failed save halts the device
	dev.Controller.OnFatal = func(err error) { cancel(err) }

	dev.Boot()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dev.Run(gctx) })
	g.Go(func() error { return dev.Events(gctx, edges) })
	if mgr != nil {
		g.Go(func() error { return mgr.Run(gctx) })
	}
	if cfg.Samples.Watch && cfg.Samples.Dir != "" {
		w, err := sample.NewWatcher(cfg.Samples.Dir, sample.SampleRate, streamer.SetBank)
		if err != nil {
			return fmt.Errorf("watch samples: %w", err)
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	if cfg.Audio.Mute {
		g.Go(func() error { return drain(gctx, pool, cfg.Audio.BufferSize) })
	} else {
		sink, err := audio.NewOtoSink(tone.SampleRate, pool, cfg.Latency())
		if err != nil {
			return fmt.Errorf("open audio: %w", err)
		}
		sink.Start()
		defer sink.Close()
	}

	model := tui.NewModel(dev, leds, knob, edges, th, cfg.Controls)
	model.MIDI = mgr
	p := tea.NewProgram(model, tea.WithAltScreen())
	g.Go(func() error {
		_, err := p.Run()
		cancel(nil)
		return err
	})
	go func() {
		<-gctx.Done()
		p.Quit()
	}()

	err = g.Wait()
	if ferr := dev.Flush(); ferr != nil {
		err = errors.Join(err, ferr)
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func loadBank(c config.SamplesConfig) (*sample.Bank, error) {
	switch {
	case len(c.Files) > 0:
		return sample.LoadFiles(c.Files, sample.SampleRate)
	case c.Dir != "":
		return sample.LoadDir(c.Dir, sample.SampleRate)
	default:
		return sample.BuiltinBank(), nil
	}
}

// drain plays the pool into nothing at real-time pace.
func drain(ctx context.Context, pool *audio.BufferPool, size int) error {
	period := time.Duration(size) * time.Second / tone.SampleRate
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	buf := make([]byte, 2*size)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pool.Read(buf)
		}
	}
}
