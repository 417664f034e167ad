package sample

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBank(t *testing.T, clips ...Clip) *Bank {
	t.Helper()
	b, err := NewBank(clips)
	require.NoError(t, err)
	return b
}

func ramp(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(i)
	}
	return s
}

func TestShortClipWrapsMidBuffer(t *testing.T) {
	s := NewStreamer(mustBank(t, Clip{Name: "short", Samples: ramp(5)}))

	buf := make([]int16, 12)
	s.Render(buf)
	assert.Equal(t, []int16{0, 1, 2, 3, 4, 0, 1, 2, 3, 4, 0, 1}, buf)
	assert.Equal(t, 2, s.Offset())

	for i := 0; i < 50; i++ {
		s.Render(buf)
		require.Less(t, s.Offset(), 5)
	}
}

func TestRenderContinuesAcrossBuffers(t *testing.T) {
	s := NewStreamer(mustBank(t, Clip{Name: "long", Samples: ramp(300)}))

	buf := make([]int16, 256)
	s.Render(buf)
	s.Render(buf)
	assert.Equal(t, int16(256), buf[0])
	assert.Equal(t, int16(299), buf[43])
	assert.Equal(t, int16(0), buf[44])
}

func TestAdvanceWrapsAndRestarts(t *testing.T) {
	s := NewStreamer(mustBank(t,
		Clip{Name: "a", Samples: ramp(10)},
		Clip{Name: "b", Samples: ramp(10)},
		Clip{Name: "c", Samples: ramp(10)},
	))

	s.Render(make([]int16, 4))
	s.Advance()
	assert.Equal(t, uint8(1), s.Index())
	assert.Zero(t, s.Offset())
	assert.Equal(t, "b", s.Current())

	s.Advance()
	s.Advance()
	assert.Equal(t, uint8(0), s.Index())

	s.SetIndex(7)
	assert.Equal(t, uint8(1), s.Index())
}

func TestNewBankValidates(t *testing.T) {
	_, err := NewBank(nil)
	assert.ErrorIs(t, err, ErrEmptyBank)

	_, err = NewBank([]Clip{{Name: "x"}})
	assert.ErrorIs(t, err, ErrEmptyClip)

	many := make([]Clip, MaxClips+1)
	for i := range many {
		many[i] = Clip{Samples: []int16{0}}
	}
	_, err = NewBank(many)
	assert.ErrorIs(t, err, ErrBankSize)
}

func TestBuiltinBank(t *testing.T) {
	b := BuiltinBank()
	require.Greater(t, b.Len(), 1)
	assert.Equal(t, "kick", b.Names()[0])
	for i := 0; i < b.Len(); i++ {
		assert.NotEmpty(t, b.Clip(i).Samples, b.Clip(i).Name)
	}

	// At least one clip is shorter than an output buffer.
	short := false
	for i := 0; i < b.Len(); i++ {
		short = short || len(b.Clip(i).Samples) < 256
	}
	assert.True(t, short)
}

func TestSetBankKeepsValidIndex(t *testing.T) {
	s := NewStreamer(mustBank(t, Clip{Samples: ramp(10)}, Clip{Samples: ramp(10)}, Clip{Samples: ramp(10)}))
	s.SetIndex(2)
	s.Render(make([]int16, 8))

	s.SetBank(mustBank(t, Clip{Samples: ramp(4)}, Clip{Samples: ramp(4)}, Clip{Samples: ramp(4)}))
	assert.Equal(t, uint8(2), s.Index())
	assert.Zero(t, s.Offset(), "offset past the new clip end restarts it")

	s.SetBank(mustBank(t, Clip{Samples: ramp(4)}))
	assert.Equal(t, uint8(0), s.Index())
}

func writeWAV(t *testing.T, path string, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, SampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: SampleRate, NumChannels: channels},
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestLoadWAV(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "mono.wav"), 1, []int{0, 100, -100, 32767})
	writeWAV(t, filepath.Join(dir, "stereo.wav"), 2, []int{100, 300, -50, -150})

	c, err := LoadWAV(filepath.Join(dir, "mono.wav"), SampleRate)
	require.NoError(t, err)
	assert.Equal(t, "mono", c.Name)
	assert.Equal(t, []int16{0, 100, -100, 32767}, c.Samples)

	c, err = LoadWAV(filepath.Join(dir, "stereo.wav"), SampleRate)
	require.NoError(t, err)
	assert.Equal(t, []int16{200, -100}, c.Samples)

	_, err = LoadWAV(filepath.Join(dir, "mono.wav"), 44100)
	assert.Error(t, err)
}

func TestLoadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a riff file at all"), 0644))

	_, err := LoadWAV(path, SampleRate)
	assert.ErrorIs(t, err, ErrNotWAV)
}

func TestLoadDirSortsByName(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "b.wav"), 1, []int{2})
	writeWAV(t, filepath.Join(dir, "a.wav"), 1, []int{1})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	b, err := LoadDir(dir, SampleRate)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, b.Names())
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "a.wav"), 1, []int{1})

	reloaded := make(chan *Bank, 1)
	w, err := NewWatcher(dir, SampleRate, func(b *Bank) {
		select {
		case reloaded <- b:
		default:
		}
	})
	require.NoError(t, err)
	w.Settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeWAV(t, filepath.Join(dir, "b.wav"), 1, []int{2})

	select {
	case b := <-reloaded:
		assert.Equal(t, []string{"a", "b"}, b.Names())
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after adding a clip")
	}

	cancel()
	assert.NoError(t, <-done)
}
