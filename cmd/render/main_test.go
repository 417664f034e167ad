package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-stompbox/settings"
)

func TestParseArgs(t *testing.T) {
	j, err := parseArgs([]string{"out.wav", "tone", "3", "1.5", "4095"})
	require.NoError(t, err)
	assert.Equal(t, settings.ModeTone, j.mode)
	assert.Equal(t, uint8(3), j.index)
	assert.Equal(t, 1.5, j.seconds)
	assert.Equal(t, uint16(4095), j.pot)

	_, err = parseArgs([]string{"out.wav", "loud"})
	assert.Error(t, err)
	_, err = parseArgs([]string{"out.wav", "tone", "0", "1", "5000"})
	assert.Error(t, err)
}

func TestRenderPluckedTone(t *testing.T) {
	out := filepath.Join(t.TempDir(), "pluck.wav")
	require.NoError(t, run([]string{out, "tone", "1", "1", "1365"}))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(buf.Data), 16000)

	// 1365/4095 of 3s is a 1000ms period with 800ms of sound, so the
	// stretch just before the second note is silent
	for _, v := range buf.Data[14000:15800] {
		require.Zero(t, v)
	}
	var loud bool
	for _, v := range buf.Data[:2000] {
		loud = loud || v > 1000
	}
	assert.True(t, loud)
}
