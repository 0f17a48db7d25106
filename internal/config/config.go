// Package config loads and merges chatrake settings from YAML config files.
// Precedence: built-in defaults < global config < project config.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the capture pipeline exposes.
type Config struct {
	// OutputDir is the root under which capture sessions create their
	// batch directories.
	OutputDir string `yaml:"output_dir"`

	// Display names applied by the cleaner. The capture side only records
	// self/other.
	SelfName    string `yaml:"self_name"`
	PartnerName string `yaml:"partner_name"`

	// Emitter.
	BatchSize int `yaml:"batch_size"`

	// Identity window.
	WindowCapacity   int `yaml:"window_capacity"`
	SignatureTextLen int `yaml:"signature_text_len"`   // leading bytes of text in a signature
	SignatureMediaN  int `yaml:"signature_media_refs"` // leading media refs in a signature

	// Pacing controller, delays in milliseconds.
	BaseDelayMs      int `yaml:"base_delay_ms"`
	MaxDelayMs       int `yaml:"max_delay_ms"`
	DelayStepMs      int `yaml:"delay_step_ms"`
	SettleDelayMs    int `yaml:"settle_delay_ms"`
	NudgeAfterStalls int `yaml:"nudge_after_stalls"`
	NudgePx          int `yaml:"nudge_px"`
	MemoryPressure   int `yaml:"memory_pressure_pct"` // slow down above this usage percentage

	// Memory reclaimer.
	StripGraceMs       int `yaml:"strip_grace_ms"`
	CollapseEvery      int `yaml:"collapse_every_cycles"`
	CollapseDistancePx int `yaml:"collapse_distance_px"` // ahead of the scroll direction
	ScrollbackBufferPx int `yaml:"scrollback_buffer_px"` // behind it, deliberately larger

	// Cleaner.
	NoiseAttachmentThreshold int `yaml:"noise_attachment_threshold"`

	// Logging.
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "console" | "json"
}

// Defaults returns the built-in configuration values.
func Defaults() Config {
	return Config{
		OutputDir:                "data/raw",
		SelfName:                 "You",
		PartnerName:              "Partner",
		BatchSize:                200,
		WindowCapacity:           2000,
		SignatureTextLen:         80,
		SignatureMediaN:          2,
		BaseDelayMs:              600,
		MaxDelayMs:               3000,
		DelayStepMs:              300,
		SettleDelayMs:            150,
		NudgeAfterStalls:         3,
		NudgePx:                  120,
		MemoryPressure:           85,
		StripGraceMs:             250,
		CollapseEvery:            5,
		CollapseDistancePx:       1500,
		ScrollbackBufferPx:       3000,
		NoiseAttachmentThreshold: 25,
		LogLevel:                 "info",
		LogFormat:                "console",
	}
}

// LoadGlobal reads ~/.config/chatrake/config.yaml.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(home, ".config", "chatrake", "config.yaml")
	return loadFile(path, true)
}

// LoadProject reads .chatrakerc in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".chatrakerc", false)
}

// loadFile reads and parses a YAML config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults. Every numeric tunable is
// strictly positive, so zero means unset.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, src := range []*Config{global, project} {
		if src == nil {
			continue
		}
		mergeStr(&result.OutputDir, src.OutputDir)
		mergeStr(&result.SelfName, src.SelfName)
		mergeStr(&result.PartnerName, src.PartnerName)
		mergeInt(&result.BatchSize, src.BatchSize)
		mergeInt(&result.WindowCapacity, src.WindowCapacity)
		mergeInt(&result.SignatureTextLen, src.SignatureTextLen)
		mergeInt(&result.SignatureMediaN, src.SignatureMediaN)
		mergeInt(&result.BaseDelayMs, src.BaseDelayMs)
		mergeInt(&result.MaxDelayMs, src.MaxDelayMs)
		mergeInt(&result.DelayStepMs, src.DelayStepMs)
		mergeInt(&result.SettleDelayMs, src.SettleDelayMs)
		mergeInt(&result.NudgeAfterStalls, src.NudgeAfterStalls)
		mergeInt(&result.NudgePx, src.NudgePx)
		mergeInt(&result.MemoryPressure, src.MemoryPressure)
		mergeInt(&result.StripGraceMs, src.StripGraceMs)
		mergeInt(&result.CollapseEvery, src.CollapseEvery)
		mergeInt(&result.CollapseDistancePx, src.CollapseDistancePx)
		mergeInt(&result.ScrollbackBufferPx, src.ScrollbackBufferPx)
		mergeInt(&result.NoiseAttachmentThreshold, src.NoiseAttachmentThreshold)
		mergeStr(&result.LogLevel, src.LogLevel)
		mergeStr(&result.LogFormat, src.LogFormat)
	}
	return result
}

func mergeStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
