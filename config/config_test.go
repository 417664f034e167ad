package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4*time.Second, cfg.SaveDelay())
	assert.Equal(t, 50*time.Millisecond, cfg.Latency())
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"controls":{"saveDelayMs":1000},"midi":{"portName":"nano"}}`), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.SaveDelay())
	assert.Equal(t, 4, cfg.Controls.PotThreshold)
	assert.Equal(t, "nano", cfg.MIDI.PortName)
	assert.Equal(t, uint8(11), cfg.MIDI.SampleNote)
	assert.Equal(t, 3, cfg.Audio.Buffers)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"audio":{"buffers":1},"midi":{"channel":16}}`), 0644))

	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "audio.buffers")
	assert.ErrorContains(t, err, "midi.channel")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := DefaultConfig()
	cfg.Samples.Dir = "/tmp/clips"
	cfg.Flash.Image = "/tmp/flash.img"
	require.NoError(t, cfg.SaveTo(path))

	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	img, err := got.FlashImage()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/flash.img", img)
}
