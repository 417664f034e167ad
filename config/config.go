package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FlashConfig locates the image file that plays the part of the flash chip.
type FlashConfig struct {
	Image string `json:"image,omitempty"` // default: <config dir>/flash.img
}

// AudioConfig sizes the output buffers.
type AudioConfig struct {
	Buffers    int  `json:"buffers"`
	BufferSize int  `json:"bufferSize"` // samples per buffer
	LatencyMs  int  `json:"latencyMs"`
	Mute       bool `json:"mute,omitempty"` // run without a sound card
}

// KeyBindings are the front-panel keys.
type KeyBindings struct {
	Sample  string `json:"sample"`
	Tone    string `json:"tone"`
	PotUp   string `json:"potUp"`
	PotDown string `json:"potDown"`
	Quit    string `json:"quit"`
}

// ControlsConfig tunes the buttons and pot.
type ControlsConfig struct {
	SaveDelayMs  int         `json:"saveDelayMs"`
	PotThreshold int         `json:"potThreshold"`
	PotStep      int         `json:"potStep"` // per key press
	Keys         KeyBindings `json:"keys"`
}

// MIDIConfig maps a MIDI controller onto the buttons and pot.
type MIDIConfig struct {
	PortName    string `json:"portName,omitempty"` // substring; empty matches any
	AutoConnect bool   `json:"autoConnect"`
	Channel     int    `json:"channel"` // -1 for any
	SampleNote  uint8  `json:"sampleNote"`
	ToneNote    uint8  `json:"toneNote"`
	PotCC       uint8  `json:"potCC"`
}

// SamplesConfig picks the clips. With neither Dir nor Files the built-in
// clips are used.
type SamplesConfig struct {
	Dir   string   `json:"dir,omitempty"`
	Files []string `json:"files,omitempty"`
	Watch bool     `json:"watch,omitempty"` // reload when Dir changes
}

// UIConfig covers the terminal front panel.
type UIConfig struct {
	Palette  string `json:"palette,omitempty"` // .gpl file
	DebugLog bool   `json:"debugLog,omitempty"`
}

// Config is everything the host build reads from config.json.
type Config struct {
	Flash    FlashConfig    `json:"flash"`
	Audio    AudioConfig    `json:"audio"`
	Controls ControlsConfig `json:"controls"`
	MIDI     MIDIConfig     `json:"midi"`
	Samples  SamplesConfig  `json:"samples"`
	UI       UIConfig       `json:"ui"`
}

// DefaultConfig matches the hardware: 4 s save delay, pot threshold 4.
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			Buffers:    3,
			BufferSize: 256,
			LatencyMs:  50,
		},
		Controls: ControlsConfig{
			SaveDelayMs:  4000,
			PotThreshold: 4,
			PotStep:      128,
			Keys: KeyBindings{
				Sample:  "s",
				Tone:    "t",
				PotUp:   "+",
				PotDown: "-",
				Quit:    "q",
			},
		},
		MIDI: MIDIConfig{
			AutoConnect: true,
			Channel:     -1,
			SampleNote:  11,
			ToneNote:    12,
			PotCC:       1,
		},
	}
}

// Validate rejects settings the device cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Audio.Buffers < 2 {
		errs = append(errs, fmt.Errorf("audio.buffers must be at least 2, got %d", c.Audio.Buffers))
	}
	if c.Audio.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.bufferSize must be positive, got %d", c.Audio.BufferSize))
	}
	if c.Controls.SaveDelayMs <= 0 {
		errs = append(errs, fmt.Errorf("controls.saveDelayMs must be positive, got %d", c.Controls.SaveDelayMs))
	}
	if c.Controls.PotThreshold < 0 {
		errs = append(errs, fmt.Errorf("controls.potThreshold must not be negative"))
	}
	if c.MIDI.Channel < -1 || c.MIDI.Channel > 15 {
		errs = append(errs, fmt.Errorf("midi.channel must be -1..15, got %d", c.MIDI.Channel))
	}
	return errors.Join(errs...)
}

func (c *Config) SaveDelay() time.Duration {
	return time.Duration(c.Controls.SaveDelayMs) * time.Millisecond
}

func (c *Config) Latency() time.Duration {
	return time.Duration(c.Audio.LatencyMs) * time.Millisecond
}

// FlashImage returns the flash image path, defaulting into the config dir.
func (c *Config) FlashImage() (string, error) {
	if c.Flash.Image != "" {
		return c.Flash.Image, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "flash.img"), nil
}

// ConfigDir is ~/.config/go-stompbox.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-stompbox"), nil
}

// ConfigPath is the config.json inside ConfigDir.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads ConfigPath. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads path over the defaults, so missing fields keep their
// default values. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes c to ConfigPath.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
