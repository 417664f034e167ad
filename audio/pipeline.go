package audio

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go-stompbox/debug"
	"go-stompbox/settings"
)

var ErrNoRenderer = errors.New("audio: no renderer for mode")

// MaxIdleWait bounds one idle wait so a mode change is picked up promptly.
const MaxIdleWait = 10 * time.Millisecond

// Renderer fills a whole buffer with audio.
type Renderer interface {
	Render(buf []int16)
}

// Idler is a Renderer that can have nothing to play for a while, such as
// the rest between plucked notes.
type Idler interface {
	IdleFor(now time.Time) time.Duration
}

// Clock is the time source for idle checks.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Pipeline routes buffer filling to the renderer for the active mode.
type Pipeline struct {
	pool      Pool
	clock     Clock
	renderers map[settings.Mode]Renderer

	// Wait pauses the render loop while the active renderer is idle.
	Wait func(ctx context.Context, d time.Duration) error

	rendered atomic.Uint64
}

// NewPipeline creates a pipeline over pool. A nil clock uses wall time.
func NewPipeline(pool Pool, clock Clock) *Pipeline {
	if clock == nil {
		clock = wallClock{}
	}
	return &Pipeline{
		pool:      pool,
		clock:     clock,
		renderers: make(map[settings.Mode]Renderer),
		Wait:      sleep,
	}
}

// Register sets the renderer for a mode.
func (p *Pipeline) Register(m settings.Mode, r Renderer) {
	p.renderers[m] = r
}

// Step produces at most one buffer for mode m. If the renderer is idle it
// waits (at most MaxIdleWait) instead and returns, so the caller can look at
// the mode again.
func (p *Pipeline) Step(ctx context.Context, m settings.Mode) error {
	r, ok := p.renderers[m]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNoRenderer, m)
	}

	if idler, ok := r.(Idler); ok {
		if d := idler.IdleFor(p.clock.Now()); d > 0 {
			return p.Wait(ctx, min(d, MaxIdleWait))
		}
	}

	buf, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	r.Render(buf.Samples)
	p.pool.Release(buf)

	n := p.rendered.Add(1)
	debug.LogEvery(1000, "audio", "buffers rendered=%d mode=%v", n, m)
	return nil
}

// Rendered counts buffers released to the pool.
func (p *Pipeline) Rendered() uint64 { return p.rendered.Load() }

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
