package sample

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-audio/wav"
)

var ErrNotWAV = errors.New("sample: not a wav file")

// LoadWAV decodes a PCM wav file into a clip named after the file. Stereo
// is averaged to mono; 24 and 32 bit audio is reduced to 16 bits.
func LoadWAV(path string, sampleRate int) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return Clip{}, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}
	if int(decoder.SampleRate) != sampleRate {
		return Clip{}, fmt.Errorf("%s: expected %dHz wav, got %d", path, sampleRate, decoder.SampleRate)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode %s: %w", path, err)
	}

	var shift uint
	switch depth := int(decoder.BitDepth); depth {
	case 16:
	case 24, 32:
		shift = uint(depth - 16)
	default:
		return Clip{}, fmt.Errorf("%s: unsupported bit depth %d", path, depth)
	}

	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 1 {
		channels = buf.Format.NumChannels
	}

	samples := make([]int16, len(buf.Data)/channels)
	for i := range samples {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c] >> shift
		}
		samples[i] = int16(sum / channels)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if len(samples) == 0 {
		return Clip{}, fmt.Errorf("clip %q: %w", name, ErrEmptyClip)
	}
	return Clip{Name: name, Samples: samples}, nil
}

// LoadFiles builds a bank from paths, in the given order.
func LoadFiles(paths []string, sampleRate int) (*Bank, error) {
	clips := make([]Clip, 0, len(paths))
	for _, p := range paths {
		c, err := LoadWAV(p, sampleRate)
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return NewBank(clips)
}

// LoadDir builds a bank from every .wav file in dir, sorted by name.
func LoadDir(dir string, sampleRate int) (*Bank, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sample dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() && isWAV(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return LoadFiles(paths, sampleRate)
}

func isWAV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".wav")
}
