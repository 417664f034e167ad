package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"go-stompbox/audio"
	"go-stompbox/sample"
	"go-stompbox/settings"
	"go-stompbox/tone"
)

// renderClock advances with the rendered audio instead of the wall clock,
// so rests between plucks take no real time.
type renderClock struct {
	now time.Time
}

func (c *renderClock) Now() time.Time { return c.now }

func main() {
	if len(os.Args) < 3 {
		usage()
		return
	}
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Render the stompbox output to a wav file")
	fmt.Println("")
	fmt.Println("Usage: render <out.wav> <sample|tone> [index] [seconds] [pot] [sample dir]")
	fmt.Println("  index    clip or tone index (default 0)")
	fmt.Println("  seconds  length (default 4)")
	fmt.Println("  pot      speed pot 0-4095 for plucked tones (default 2047)")
}

type job struct {
	out     string
	mode    settings.Mode
	index   uint8
	seconds float64
	pot     uint16
	dir     string
}

func parseArgs(args []string) (job, error) {
	j := job{out: args[0], seconds: 4, pot: tone.MaxPot / 2}
	switch args[1] {
	case "sample":
		j.mode = settings.ModeSample
	case "tone":
		j.mode = settings.ModeTone
	default:
		return j, fmt.Errorf("unknown mode %q", args[1])
	}
	if len(args) > 2 {
		v, err := strconv.ParseUint(args[2], 10, 8)
		if err != nil {
			return j, fmt.Errorf("index: %w", err)
		}
		j.index = uint8(v)
	}
	if len(args) > 3 {
		v, err := strconv.ParseFloat(args[3], 64)
		if err != nil || v <= 0 {
			return j, fmt.Errorf("seconds: %q", args[3])
		}
		j.seconds = v
	}
	if len(args) > 4 {
		v, err := strconv.ParseUint(args[4], 10, 16)
		if err != nil || v > tone.MaxPot {
			return j, fmt.Errorf("pot: %q", args[4])
		}
		j.pot = uint16(v)
	}
	if len(args) > 5 {
		j.dir = args[5]
	}
	return j, nil
}

func run(args []string) error {
	j, err := parseArgs(args)
	if err != nil {
		return err
	}

	bank := sample.BuiltinBank()
	if j.dir != "" {
		if bank, err = sample.LoadDir(j.dir, sample.SampleRate); err != nil {
			return err
		}
	}

	f, err := os.Create(j.out)
	if err != nil {
		return err
	}
	defer f.Close()

	const bufSize = 256
	clock := &renderClock{now: time.Unix(0, 0)}
	synth := tone.New(tone.SampleRate, clock)
	synth.SetSpeed(j.pot)
	synth.SetIndex(j.index)
	streamer := sample.NewStreamer(bank)
	streamer.SetIndex(j.index)

	pool := audio.NewBufferPool(3, bufSize)
	pl := audio.NewPipeline(pool, clock)
	pl.Register(settings.ModeSample, streamer)
	pl.Register(settings.ModeTone, synth)

	// Rests are rendered as silence: the clock jumps over them.
	pl.Wait = func(ctx context.Context, _ time.Duration) error {
		b, err := pool.Acquire(ctx)
		if err != nil {
			return err
		}
		clear(b.Samples)
		pool.Release(b)
		return nil
	}

	total := int(j.seconds * sample.SampleRate)
	sink := audio.NewWAVSink(f, sample.SampleRate, pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return sink.Run(gctx, total)
	})
	g.Go(func() error {
		for gctx.Err() == nil {
			if err := pl.Step(gctx, j.mode); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
			clock.now = clock.now.Add(time.Duration(bufSize) * time.Second / tone.SampleRate)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := sink.Close(); err != nil {
		return err
	}

	fmt.Printf("wrote %s: %d samples, %s index %d\n", j.out, sink.Written(), j.mode, j.index)
	return nil
}
