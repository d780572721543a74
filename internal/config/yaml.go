// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main application configuration, loaded from YAML.
type Config struct {
	Debug    bool            `yaml:"debug"`
	LogLevel string          `yaml:"log_level"` // "debug", "info", "warn", "error"
	Timing   TimingConfig    `yaml:"timing"`
	Analysis AnalysisConfig  `yaml:"analysis"`
	Schedule ScheduleConfig  `yaml:"schedule"`
	Server   ServerConfig    `yaml:"server"`
	Audio    AudioConfig     `yaml:"audio"`
	Position TransportConfig `yaml:"position"`
}

// TimingConfig holds tempo defaults used before any tempo map is loaded.
type TimingConfig struct {
	BPM         float64 `yaml:"bpm"`
	BeatsPerBar int     `yaml:"beats_per_bar"`
}

// AnalysisConfig holds feature extraction settings.
type AnalysisConfig struct {
	WindowSize int      `yaml:"window_size"` // samples per analysis window
	HopSize    int      `yaml:"hop_size"`    // samples between frames
	ProfileID  string   `yaml:"profile_id"`  // profile tag stamped on results
	Features   []string `yaml:"features"`    // calculator IDs to run; empty means all
}

// ScheduleConfig holds playback scheduling settings.
type ScheduleConfig struct {
	LookAheadSec float64 `yaml:"lookahead_seconds"`
}

// ServerConfig holds the WebSocket schedule service settings.
type ServerConfig struct {
	Addr string `yaml:"addr"` // listen address, e.g. ":8080"
}

// AudioConfig holds output clock settings.
type AudioConfig struct {
	OutputDevice    int     `yaml:"output_device"` // PortAudio device index (-1 for default)
	SampleRate      float64 `yaml:"sample_rate"`
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	ClockEnabled    bool    `yaml:"clock_enabled"` // drive playback from the audio device clock
}

// TransportConfig holds the UDP position broadcast settings.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090"
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// LoadConfig loads configuration from a YAML file at path. If path is
// empty it searches default locations ("config.yaml"); with no file found
// the built-in defaults apply. Environment variable overrides run after
// loading, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Config{
		Debug:    false,
		LogLevel: "info",
		Timing: TimingConfig{
			BPM:         DefaultBPM,
			BeatsPerBar: DefaultBeatsPerBar,
		},
		Analysis: AnalysisConfig{
			WindowSize: DefaultWindowSize,
			HopSize:    DefaultHopSize,
			ProfileID:  "default",
		},
		Schedule: ScheduleConfig{
			LookAheadSec: DefaultLookAheadSec,
		},
		Server: ServerConfig{
			Addr: DefaultWebSocketAddr,
		},
		Audio: AudioConfig{
			OutputDevice:    DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			ClockEnabled:    false,
		},
		Position: TransportConfig{
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  16 * time.Millisecond,
		},
	}

	if path == "" {
		candidates := []string{
			"config.yaml",
		}
		found := false
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				found = true
				break
			}
		}
		if !found {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Env overrides apply after the file so deployment can pin values.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Timing.BPM <= 0 {
		return fmt.Errorf("timing.bpm must be positive, got %.2f", c.Timing.BPM)
	}
	if c.Analysis.WindowSize <= 0 || c.Analysis.WindowSize > MaxWindowSize {
		return fmt.Errorf("analysis.window_size %d out of range (1..%d)", c.Analysis.WindowSize, MaxWindowSize)
	}
	if c.Analysis.HopSize <= 0 || c.Analysis.HopSize > c.Analysis.WindowSize {
		return fmt.Errorf("analysis.hop_size %d must be in 1..window_size (%d)", c.Analysis.HopSize, c.Analysis.WindowSize)
	}
	if c.Schedule.LookAheadSec < 0 {
		return fmt.Errorf("schedule.lookahead_seconds must not be negative, got %.3f", c.Schedule.LookAheadSec)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f out of range (%d..%d)", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Position.UDPEnabled {
		if c.Position.UDPTargetAddress == "" {
			return fmt.Errorf("position.udp_target_address must be set when UDP is enabled")
		}
		if c.Position.UDPSendInterval <= 0 {
			return fmt.Errorf("position.udp_send_interval must be positive when UDP is enabled")
		}
	}
	return nil
}

func (cfg *Config) applyEnvOverrides() {
	// ENV_{...} are general overrides.
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
	}
	if val, ok := os.LookupEnv("ENV_WS_ADDR"); ok {
		cfg.Server.Addr = val
	}

	// ENV_UDP_{...} are specific to the position broadcast.
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Position.UDPEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Position.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Position.UDPSendInterval = dur
		}
	}
}
