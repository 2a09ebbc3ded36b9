package config

import (
	"fmt"
	"time"
)

func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Plugin.Validate(); err != nil {
		return fmt.Errorf("plugin config: %w", err)
	}

	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("sync config: %w", err)
	}

	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation config: %w", err)
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", l.Format)
	}

	if l.Output == "" {
		return fmt.Errorf("log output is required")
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}

	if m.Port < 1 || m.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", m.Port)
	}

	if m.Path == "" || m.Path[0] != '/' {
		return fmt.Errorf("metrics path must start with /: %q", m.Path)
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid status server port: %d", s.Port)
	}

	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	return nil
}

func (p *PluginConfig) Validate() error {
	if p.ConfigFileName == "" {
		return fmt.Errorf("config_file_name is required")
	}

	if p.ConfigLockTimeout < 0 || p.VideoLockTimeout < 0 {
		return fmt.Errorf("lock timeouts must not be negative")
	}

	if p.VolumeScale < 0 || p.VolumeScale > 1 {
		return fmt.Errorf("volume_scale must be within [0, 1]: %v", p.VolumeScale)
	}

	return nil
}

func (s *SyncConfig) Validate() error {
	positive := map[string]time.Duration{
		"drift_threshold":       s.DriftThreshold,
		"resync_tolerance":      s.ResyncTolerance,
		"seek_detect_threshold": s.SeekDetectThreshold,
		"end_fade_window":       s.EndFadeWindow,
		"audio_source_timeout":  s.AudioSourceTimeout,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if s.ResyncTolerance > s.DriftThreshold {
		return fmt.Errorf("resync_tolerance (%v) must not exceed drift_threshold (%v)", s.ResyncTolerance, s.DriftThreshold)
	}

	if s.LoopGuard < 0 || s.SeekSnapThreshold < 0 || s.StartLagCompensation < 0 {
		return fmt.Errorf("loop_guard, seek_snap_threshold and start_lag_compensation must not be negative")
	}

	if s.FadeInDuration < 0 || s.FadeOutDuration < 0 || s.QuickFadeOutDuration < 0 {
		return fmt.Errorf("fade durations must not be negative")
	}

	if s.DriftLogEveryFrames < 1 {
		return fmt.Errorf("drift_log_every_frames must be at least 1")
	}

	return nil
}

func (s *SimulationConfig) Validate() error {
	if s.TickRate < 1 || s.TickRate > 1000 {
		return fmt.Errorf("invalid tick rate: %d", s.TickRate)
	}

	if s.LevelID == "" {
		return fmt.Errorf("level_id is required")
	}

	if s.SongSpeed <= 0 {
		return fmt.Errorf("song_speed must be positive")
	}

	if s.VideoDuration <= 0 || s.SongDuration <= 0 {
		return fmt.Errorf("song_duration and video_duration must be positive")
	}

	return nil
}
