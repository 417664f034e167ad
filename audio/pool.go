// Package audio moves rendered buffers to the playback device.
//
// A fixed set of buffers cycles between the renderer and the device. The
// renderer acquires a free buffer (blocking until one comes back), fills it
// completely and releases it; the device side consumes released buffers in
// order and hands them back. A buffer belongs to exactly one side at a time.
package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go-stompbox/debug"
)

var ErrClosed = errors.New("audio: pool closed")

// Buffer is a fixed-capacity block of mono 16-bit samples.
type Buffer struct {
	Samples []int16
}

// Pool is the producer side of the buffer exchange.
type Pool interface {
	// Acquire blocks until a free buffer is available.
	Acquire(ctx context.Context) (*Buffer, error)
	// Release queues a completely filled buffer for playback. It does not
	// block.
	Release(b *Buffer)
}

// BufferPool is a Pool whose consumer side is an io.Reader of s16le bytes,
// suitable for an audio output that pulls.
type BufferPool struct {
	free   chan *Buffer
	ready  chan *Buffer
	closed chan struct{}
	once   sync.Once

	// consumer side
	mu  sync.Mutex
	cur *Buffer
	pos int

	underflows atomic.Uint64
	played     atomic.Uint64
}

// NewBufferPool allocates count buffers of size samples each.
func NewBufferPool(count, size int) *BufferPool {
	p := &BufferPool{
		free:   make(chan *Buffer, count),
		ready:  make(chan *Buffer, count),
		closed: make(chan struct{}),
	}
	for i := 0; i < count; i++ {
		p.free <- &Buffer{Samples: make([]int16, size)}
	}
	return p
}

func (p *BufferPool) Acquire(ctx context.Context) (*Buffer, error) {
	select {
	case b := <-p.free:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, ErrClosed
	}
}

// Release never blocks: ready has room for every buffer the pool owns.
func (p *BufferPool) Release(b *Buffer) {
	p.ready <- b
}

// Consume blocks until a released buffer is available. The caller must
// Recycle it once played.
func (p *BufferPool) Consume(ctx context.Context) (*Buffer, error) {
	select {
	case b := <-p.ready:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, ErrClosed
	}
}

// Recycle returns a consumed buffer to the free list.
func (p *BufferPool) Recycle(b *Buffer) {
	p.played.Add(1)
	p.free <- b
}

// Read implements io.Reader for a pulling output. When no released buffer
// is waiting it plays silence rather than block the audio callback.
func (p *BufferPool) Read(out []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(out) / 2
	for i := 0; i < n; i++ {
		if p.cur == nil {
			select {
			case p.cur = <-p.ready:
				p.pos = 0
			default:
				p.underflows.Add(1)
				debug.LogEvery(100, "audio", "underflow")
				for j := 2 * i; j < len(out); j++ {
					out[j] = 0
				}
				return len(out), nil
			}
		}

		v := p.cur.Samples[p.pos]
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)

		p.pos++
		if p.pos >= len(p.cur.Samples) {
			p.Recycle(p.cur)
			p.cur = nil
		}
	}
	if len(out)%2 == 1 {
		out[len(out)-1] = 0
	}
	return len(out), nil
}

// Close wakes anything blocked in Acquire or Consume.
func (p *BufferPool) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

// Underflows counts reads that found no buffer ready.
func (p *BufferPool) Underflows() uint64 { return p.underflows.Load() }

// Played counts buffers handed back after playback.
func (p *BufferPool) Played() uint64 { return p.played.Load() }
