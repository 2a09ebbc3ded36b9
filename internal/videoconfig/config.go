// Package videoconfig loads, caches and watches the per-level video
// configuration files.
package videoconfig

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/samber/mo"
	"github.com/spf13/afero"
	"github.com/zsiec/theater/internal/refclock"
)

const (
	// WIPFolder is the folder holding work-in-progress levels.
	WIPFolder = "CustomWIPLevels"
	// OSTFolder holds videos of levels without their own folder.
	OSTFolder = "TheaterOSTVideos"

	defaultVideoExt = ".mp4"
)

type DownloadState int

const (
	NotDownloaded DownloadState = iota
	Downloaded
)

func (s DownloadState) String() string {
	if s == Downloaded {
		return "downloaded"
	}
	return "not_downloaded"
}

// VideoConfig is the content of a level's video config file plus the state
// derived from the level folder.
type VideoConfig struct {
	VideoID        string `json:"videoID,omitempty"`
	VideoURL       string `json:"videoUrl,omitempty"`
	Title          string `json:"title,omitempty"`
	Author         string `json:"author,omitempty"`
	VideoFile      string `json:"videoFile,omitempty"`
	Duration       int    `json:"duration,omitempty"`
	Offset         int    `json:"offset"` // milliseconds
	ConfigByMapper bool   `json:"configByMapper,omitempty"`

	Loop                          mo.Option[bool]    `json:"loop"`
	EndVideoAt                    mo.Option[float64] `json:"endVideoAt"`
	Speed                         mo.Option[float64] `json:"playbackSpeed"`
	ForceEnvironmentModifications mo.Option[bool]    `json:"forceEnvironmentModifications"`

	LevelDir                            string        `json:"-"`
	DownloadState                       DownloadState `json:"-"`
	PlaybackDisabledByMissingSuggestion bool          `json:"-"`
	ErrorMessage                        string        `json:"-"`
}

// MarshalJSON writes optional fields only when present, so an explicit
// false or zero survives a save.
func (c VideoConfig) MarshalJSON() ([]byte, error) {
	type plain VideoConfig
	return json.Marshal(struct {
		plain
		Loop                          *bool    `json:"loop,omitempty"`
		EndVideoAt                    *float64 `json:"endVideoAt,omitempty"`
		Speed                         *float64 `json:"playbackSpeed,omitempty"`
		ForceEnvironmentModifications *bool    `json:"forceEnvironmentModifications,omitempty"`
	}{
		plain:                         plain(c),
		Loop:                          c.Loop.ToPointer(),
		EndVideoAt:                    c.EndVideoAt.ToPointer(),
		Speed:                         c.Speed.ToPointer(),
		ForceEnvironmentModifications: c.ForceEnvironmentModifications.ToPointer(),
	})
}

// IsPlayable is true when the video file is present and no difficulty
// disabled playback.
func (c *VideoConfig) IsPlayable() bool {
	return c.DownloadState == Downloaded && !c.PlaybackDisabledByMissingSuggestion
}

func (c *VideoConfig) Loops() bool {
	return c.Loop.OrElse(false)
}

func (c *VideoConfig) PlaybackSpeed() float64 {
	return c.Speed.OrElse(1)
}

func (c *VideoConfig) ForcesEnvironment() bool {
	return c.ForceEnvironmentModifications.OrElse(false)
}

func (c *VideoConfig) IsWIPLevel() bool {
	return c.LevelDir != "" && strings.Contains(c.LevelDir, WIPFolder)
}

// Timing resolves the offset and speed used by the reference clock.
func (c *VideoConfig) Timing() refclock.Timing {
	return refclock.NewTiming(c.Offset, c.PlaybackSpeed())
}

// VideoFileName is the configured file name, or one derived from the title.
func (c *VideoConfig) VideoFileName() string {
	if c.VideoFile != "" {
		return c.VideoFile
	}
	return c.expectedFileName()
}

func (c *VideoConfig) expectedFileName() string {
	name := c.Title
	if name == "" {
		name = c.VideoID
	}
	if name == "" {
		name = "video"
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return SanitizeFileName(name) + defaultVideoExt
}

// VideoPath is empty when the level folder is unknown.
func (c *VideoConfig) VideoPath() string {
	if c.LevelDir == "" {
		return ""
	}
	name := c.VideoFileName()
	if filepath.Ext(name) == "" {
		name += defaultVideoExt
	}
	return filepath.Join(c.LevelDir, name)
}

// UpdateDownloadState checks the level folder for the video file. A file
// found under the title-derived name becomes the configured file.
func (c *VideoConfig) UpdateDownloadState(fs afero.Fs) DownloadState {
	c.DownloadState = NotDownloaded
	if c.LevelDir == "" {
		return c.DownloadState
	}

	if ok, _ := afero.Exists(fs, c.VideoPath()); ok {
		c.DownloadState = Downloaded
		return c.DownloadState
	}

	expected := c.expectedFileName()
	if ok, _ := afero.Exists(fs, filepath.Join(c.LevelDir, expected)); ok {
		c.VideoFile = expected
		c.DownloadState = Downloaded
	}
	return c.DownloadState
}

// SanitizeFileName replaces characters that are not allowed in file names
// on common filesystems.
func SanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, name)
}
