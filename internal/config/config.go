package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Server     ServerConfig     `mapstructure:"server"`
	Plugin     PluginConfig     `mapstructure:"plugin"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Simulation SimulationConfig `mapstructure:"simulation"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or text
	Output     string `mapstructure:"output"` // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// ServerConfig configures the local status API.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ListenAddr      string        `mapstructure:"listen_addr"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PluginConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	CoverEnabled        bool          `mapstructure:"cover_enabled"`
	TransparencyEnabled bool          `mapstructure:"transparency_enabled"`
	VideoDir            string        `mapstructure:"video_dir"`        // root holding one folder per level
	ConfigFileName      string        `mapstructure:"config_file_name"` // per-level video config
	LegacyFileName      string        `mapstructure:"legacy_file_name"` // read instead when present
	ConfigLockTimeout   time.Duration `mapstructure:"config_lock_timeout"`
	VideoLockTimeout    time.Duration `mapstructure:"video_lock_timeout"`
	VolumeScale         float64       `mapstructure:"volume_scale"`
}

// SyncConfig holds the tuned thresholds of the playback controller.
// The defaults were found empirically; change them with care.
type SyncConfig struct {
	DriftThreshold       time.Duration `mapstructure:"drift_threshold"`        // error that triggers a resync
	ResyncTolerance      time.Duration `mapstructure:"resync_tolerance"`       // seeks smaller than this are skipped
	LoopGuard            time.Duration `mapstructure:"loop_guard"`             // no drift correction this close to the end
	SeekDetectThreshold  time.Duration `mapstructure:"seek_detect_threshold"`  // audio jump treated as a scrub
	SeekSnapThreshold    time.Duration `mapstructure:"seek_snap_threshold"`    // positions below are snapped to 0
	StartLagCompensation time.Duration `mapstructure:"start_lag_compensation"` // added to the start offset outside previews
	EndFadeWindow        time.Duration `mapstructure:"end_fade_window"`
	AudioSourceTimeout   time.Duration `mapstructure:"audio_source_timeout"`
	FadeInDuration       time.Duration `mapstructure:"fade_in_duration"`
	FadeOutDuration      time.Duration `mapstructure:"fade_out_duration"`
	QuickFadeOutDuration time.Duration `mapstructure:"quick_fade_out_duration"`

	PreviewDefaultRemaining   time.Duration `mapstructure:"preview_default_remaining"`
	PreviewRemainingTolerance time.Duration `mapstructure:"preview_remaining_tolerance"`
	PreviewMinRemaining       time.Duration `mapstructure:"preview_min_remaining"`

	DriftLogEveryFrames int `mapstructure:"drift_log_every_frames"`
}

// SimulationConfig drives the headless host used by cmd/theater.
type SimulationConfig struct {
	TickRate      int           `mapstructure:"tick_rate"`
	LevelID       string        `mapstructure:"level_id"`
	SongDuration  time.Duration `mapstructure:"song_duration"`
	VideoDuration time.Duration `mapstructure:"video_duration"`
	SongSpeed     float64       `mapstructure:"song_speed"`
	AudioDelay    time.Duration `mapstructure:"audio_delay"`
	Loop          bool          `mapstructure:"loop"`
}

// DefaultSyncConfig returns the thresholds used when nothing is configured.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		DriftThreshold:            300 * time.Millisecond,
		ResyncTolerance:           200 * time.Millisecond,
		LoopGuard:                 500 * time.Millisecond,
		SeekDetectThreshold:       300 * time.Millisecond,
		SeekSnapThreshold:         time.Millisecond,
		StartLagCompensation:      66700 * time.Microsecond,
		EndFadeWindow:             time.Second,
		AudioSourceTimeout:        10 * time.Second,
		FadeInDuration:            400 * time.Millisecond,
		FadeOutDuration:           700 * time.Millisecond,
		QuickFadeOutDuration:      100 * time.Millisecond,
		PreviewDefaultRemaining:   2500 * time.Millisecond,
		PreviewRemainingTolerance: time.Millisecond,
		PreviewMinRemaining:       time.Second,
		DriftLogEveryFrames:       120,
	}
}

// DefaultPluginConfig returns the plugin settings used when nothing is configured.
func DefaultPluginConfig() *PluginConfig {
	return &PluginConfig{
		Enabled:             true,
		TransparencyEnabled: true,
		VideoDir:            "CustomLevels",
		ConfigFileName:      "theater-video.json",
		LegacyFileName:      "cinema-video.json",
		ConfigLockTimeout:   3 * time.Second,
		VideoLockTimeout:    250 * time.Millisecond,
		VolumeScale:         1.0,
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configPath)

	v.SetEnvPrefix("THEATER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9091)

	// Status server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen_addr", "127.0.0.1")
	v.SetDefault("server.port", 8791)
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "5s")
	v.SetDefault("server.shutdown_timeout", "3s")

	plugin := DefaultPluginConfig()
	v.SetDefault("plugin.enabled", plugin.Enabled)
	v.SetDefault("plugin.cover_enabled", plugin.CoverEnabled)
	v.SetDefault("plugin.transparency_enabled", plugin.TransparencyEnabled)
	v.SetDefault("plugin.video_dir", plugin.VideoDir)
	v.SetDefault("plugin.config_file_name", plugin.ConfigFileName)
	v.SetDefault("plugin.legacy_file_name", plugin.LegacyFileName)
	v.SetDefault("plugin.config_lock_timeout", plugin.ConfigLockTimeout)
	v.SetDefault("plugin.video_lock_timeout", plugin.VideoLockTimeout)
	v.SetDefault("plugin.volume_scale", plugin.VolumeScale)

	s := DefaultSyncConfig()
	v.SetDefault("sync.drift_threshold", s.DriftThreshold)
	v.SetDefault("sync.resync_tolerance", s.ResyncTolerance)
	v.SetDefault("sync.loop_guard", s.LoopGuard)
	v.SetDefault("sync.seek_detect_threshold", s.SeekDetectThreshold)
	v.SetDefault("sync.seek_snap_threshold", s.SeekSnapThreshold)
	v.SetDefault("sync.start_lag_compensation", s.StartLagCompensation)
	v.SetDefault("sync.end_fade_window", s.EndFadeWindow)
	v.SetDefault("sync.audio_source_timeout", s.AudioSourceTimeout)
	v.SetDefault("sync.fade_in_duration", s.FadeInDuration)
	v.SetDefault("sync.fade_out_duration", s.FadeOutDuration)
	v.SetDefault("sync.quick_fade_out_duration", s.QuickFadeOutDuration)
	v.SetDefault("sync.preview_default_remaining", s.PreviewDefaultRemaining)
	v.SetDefault("sync.preview_remaining_tolerance", s.PreviewRemainingTolerance)
	v.SetDefault("sync.preview_min_remaining", s.PreviewMinRemaining)
	v.SetDefault("sync.drift_log_every_frames", s.DriftLogEveryFrames)

	// Simulation defaults
	v.SetDefault("simulation.tick_rate", 60)
	v.SetDefault("simulation.level_id", "demo")
	v.SetDefault("simulation.song_duration", "180s")
	v.SetDefault("simulation.video_duration", "180s")
	v.SetDefault("simulation.song_speed", 1.0)
	v.SetDefault("simulation.audio_delay", "1s")
	v.SetDefault("simulation.loop", false)
}
