package videoconfig

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/zsiec/theater/internal/config"
	"github.com/zsiec/theater/internal/errors"
	"github.com/zsiec/theater/internal/lifecycle"
	"github.com/zsiec/theater/internal/logger"
	"github.com/zsiec/theater/internal/metrics"
)

// Loader reads and writes video configs on an afero filesystem.
type Loader struct {
	fs     afero.Fs
	cfg    *config.PluginConfig
	cache  *Cache
	logger logger.Logger

	mu         sync.Mutex
	ignoreNext string // path of our own last save
}

func NewLoader(fs afero.Fs, cfg *config.PluginConfig, cache *Cache, l logger.Logger) *Loader {
	if l == nil {
		l = logger.NewNullLogger()
	}
	return &Loader{
		fs:     fs,
		cfg:    cfg,
		cache:  cache,
		logger: logger.WithComponent(l, "videoconfig"),
	}
}

func (l *Loader) Fs() afero.Fs { return l.fs }

func (l *Loader) Cache() *Cache { return l.cache }

// LevelDir is the folder holding the video of level. Levels without their
// own folder keep videos under the OST folder of the video dir.
func (l *Loader) LevelDir(level lifecycle.Level) string {
	if level.Dir != "" {
		return level.Dir
	}
	folder := SanitizeFileName(strings.TrimSpace(level.SongName)) + " - " + level.ID
	return filepath.Join(l.cfg.VideoDir, OSTFolder, folder)
}

// ConfigPath prefers an existing legacy config file.
func (l *Loader) ConfigPath(levelDir string) string {
	if l.cfg.LegacyFileName != "" {
		legacy := filepath.Join(levelDir, l.cfg.LegacyFileName)
		if ok, _ := afero.Exists(l.fs, legacy); ok {
			return legacy
		}
	}
	return filepath.Join(levelDir, l.cfg.ConfigFileName)
}

// IsConfigFile reports whether name is one of the config file names.
func (l *Loader) IsConfigFile(name string) bool {
	base := filepath.Base(name)
	return base == l.cfg.ConfigFileName || (l.cfg.LegacyFileName != "" && base == l.cfg.LegacyFileName)
}

// Load parses the config at path and refreshes its download state.
func (l *Loader) Load(path string) (*VideoConfig, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			metrics.IncrementConfigLoad("absent")
			return nil, errors.NewConfigAbsentError(filepath.Base(filepath.Dir(path))).
				WithDetails(map[string]interface{}{"path": path})
		}
		metrics.IncrementConfigLoad("error")
		return nil, errors.WrapInternalError(err, "failed to read video config")
	}

	var vc VideoConfig
	if err := json.Unmarshal(data, &vc); err != nil {
		metrics.IncrementConfigLoad("invalid")
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "malformed video config", http.StatusBadRequest).
			WithDetails(map[string]interface{}{"path": path})
	}

	vc.LevelDir = filepath.Dir(path)
	vc.UpdateDownloadState(l.fs)
	metrics.IncrementConfigLoad("ok")
	l.logger.WithFields(map[string]interface{}{
		"path":           path,
		"download_state": vc.DownloadState.String(),
	}).Debug("Loaded video config")
	return &vc, nil
}

// LoadDir loads the config of levelDir. Missing and malformed files yield
// nil; malformed ones are logged.
func (l *Loader) LoadDir(levelDir string) *VideoConfig {
	path := l.ConfigPath(levelDir)
	vc, err := l.Load(path)
	if err != nil {
		if !errors.IsType(err, errors.ErrorTypeConfigAbsent) {
			l.logger.WithError(err).WithField("path", path).Error("Error parsing video config")
		}
		return nil
	}
	return vc
}

// ForLevel returns the cached config of level or loads it. A cached config
// whose video is downloaded is handed out once and then dropped from the
// cache so the next lookup sees the file on disk.
func (l *Loader) ForLevel(level lifecycle.Level) *VideoConfig {
	if vc, ok := l.cache.Get(level.ID); ok {
		l.logger.WithField("level_id", level.ID).Debug("Loading config from cache")
		if vc.DownloadState == Downloaded {
			l.cache.Remove(level.ID)
		}
		return vc
	}

	dir := l.LevelDir(level)
	if ok, _ := afero.DirExists(l.fs, dir); !ok {
		l.logger.WithField("path", dir).Debug("Level directory does not exist")
		return nil
	}
	vc := l.LoadDir(dir)
	if vc != nil {
		l.cache.MarkHasVideo(level.ID)
	}
	return vc
}

// IndexLevels records which levels have a config file.
func (l *Loader) IndexLevels(levels []lifecycle.Level) int {
	found := 0
	for _, level := range levels {
		if ok, _ := afero.Exists(l.fs, l.ConfigPath(l.LevelDir(level))); ok {
			l.cache.MarkHasVideo(level.ID)
			found++
		}
	}
	return found
}

// Save writes vc to its level folder. The watcher event caused by the
// write is ignored.
func (l *Loader) Save(vc *VideoConfig) error {
	if vc.LevelDir == "" {
		return errors.NewValidationError("video config has no level directory")
	}
	if ok, _ := afero.DirExists(l.fs, vc.LevelDir); !ok {
		return errors.NewNotFoundError("level directory " + vc.LevelDir)
	}
	if vc.IsWIPLevel() {
		vc.ConfigByMapper = true
	}

	data, err := json.MarshalIndent(vc, "", "  ")
	if err != nil {
		return errors.WrapInternalError(err, "failed to encode video config")
	}

	path := l.ConfigPath(vc.LevelDir)
	l.IgnoreNextEvent(path)
	if err := afero.WriteFile(l.fs, path, data, 0o644); err != nil {
		return errors.WrapInternalError(err, "failed to save video config")
	}
	l.logger.WithField("path", path).Info("Saved video config")
	return nil
}

// Delete removes the config file of vc and forgets level.
func (l *Loader) Delete(vc *VideoConfig, level lifecycle.Level) error {
	if vc.LevelDir == "" {
		return errors.NewValidationError("video config has no level directory")
	}
	path := l.ConfigPath(vc.LevelDir)
	if err := l.fs.Remove(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.WrapInternalError(err, "failed to delete video config")
	}
	l.cache.Remove(level.ID)
	l.cache.ForgetVideo(level.ID)
	l.logger.WithField("path", path).Info("Deleted video config")
	return nil
}

// RefreshDownloadState re-checks the video file of vc.
func (l *Loader) RefreshDownloadState(vc *VideoConfig) {
	vc.UpdateDownloadState(l.fs)
}

// FileLocked reports whether path exists but cannot be opened for writing,
// which is how a file still being written by another process shows up.
func (l *Loader) FileLocked(path string) bool {
	f, err := l.fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return !stderrors.Is(err, fs.ErrNotExist)
	}
	_ = f.Close()
	return false
}

// IgnoreNextEvent suppresses the next watcher event for path.
func (l *Loader) IgnoreNextEvent(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ignoreNext = path
}

// consumeIgnored reports whether an event for path should be dropped, and
// clears the mark if so.
func (l *Loader) consumeIgnored(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ignoreNext != "" && filepath.Clean(l.ignoreNext) == filepath.Clean(path) {
		l.ignoreNext = ""
		return true
	}
	return false
}
