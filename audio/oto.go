package audio

import (
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoSink plays a pulled stream of s16le mono audio on the host sound card.
type OtoSink struct {
	ctx     *oto.Context
	player  *oto.Player
	started bool
	mutex   sync.Mutex
}

// NewOtoSink opens the audio device. Only one oto context may exist per
// process.
func NewOtoSink(sampleRate int, src io.Reader, latency time.Duration) (*OtoSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   latency,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	player := ctx.NewPlayer(src)
	// bytes of 16-bit mono audio covering the requested latency
	player.SetBufferSize(int(latency.Seconds()*float64(sampleRate)) * 2)

	return &OtoSink{ctx: ctx, player: player}, nil
}

func (s *OtoSink) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.started {
		s.player.Play()
		s.started = true
	}
}

func (s *OtoSink) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.started = false
	return s.player.Close()
}
