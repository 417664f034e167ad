package device

import (
	"context"
	"errors"

	"go-stompbox/audio"
	"go-stompbox/debug"
	"go-stompbox/sample"
	"go-stompbox/settings"
	"go-stompbox/tone"
)

// Device is the assembled stompbox.
type Device struct {
	Store      *settings.Store
	Synth      *tone.Synth
	Streamer   *sample.Streamer
	Pipeline   *audio.Pipeline
	Controller *Controller
}

// New wires the sound sources into a pipeline over pool and puts a
// controller in front of them. The pipeline checks for idle time on the
// synth's clock.
func New(store *settings.Store, synth *tone.Synth, streamer *sample.Streamer, pool audio.Pool, plat Platform) *Device {
	pl := audio.NewPipeline(pool, synth.Clock())
	pl.Register(settings.ModeSample, streamer)
	pl.Register(settings.ModeTone, synth)

	return &Device{
		Store:      store,
		Synth:      synth,
		Streamer:   streamer,
		Pipeline:   pl,
		Controller: NewController(store, streamer, synth, synth, plat),
	}
}

// Boot restores the saved settings once. Indices beyond the current bank or
// tone set wrap, and an unknown mode falls back to sample mode. The pot is
// read so the tempo is right before the first note.
func (d *Device) Boot() settings.Settings {
	rec := d.Store.Read()

	mode := rec.Mode
	if !mode.Valid() {
		debug.Log("device", "unknown saved mode %v, using sample", mode)
		mode = settings.ModeSample
	}
	d.Streamer.SetIndex(rec.SampleIndex)
	d.Synth.SetIndex(rec.ToneIndex)
	d.Controller.Restore(mode, rec)

	// the first reading is always applied, whatever the mode
	if v := d.Controller.plat.Pot.ReadAnalog(); d.Controller.acceptPot(v) {
		d.Synth.SetSpeed(v)
	}

	debug.Log("device", "boot %v -> mode=%v sample=%d tone=%d",
		rec, mode, d.Streamer.Index(), d.Synth.Index())
	return d.Controller.Snapshot()
}

// Run renders audio for the active mode until ctx is done. In tone mode the
// pot is polled between buffers.
func (d *Device) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		mode := d.Controller.Mode()
		if mode == settings.ModeTone {
			d.Controller.PollPot()
		}
		if err := d.Pipeline.Step(ctx, mode); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return err
		}
	}
}

// Events feeds button edges to the controller until ctx is done or edges
// is closed.
func (d *Device) Events(ctx context.Context, edges <-chan Edge) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-edges:
			if !ok {
				return nil
			}
			d.Controller.HandleEdge(e.Button, e.Pressed)
		}
	}
}

// Flush writes any pending save immediately.
func (d *Device) Flush() error {
	return d.Controller.Flush()
}
