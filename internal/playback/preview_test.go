package playback

import (
	"fmt"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/theater/internal/lifecycle"
	"github.com/zsiec/theater/internal/media"
	"github.com/zsiec/theater/internal/videoconfig"
)

func (h *harness) enterMenu() {
	h.c.OnSceneLifecycle(lifecycle.Event{Kind: lifecycle.MenuLoaded})
	h.c.SetSelectedLevel(mo.Some(h.level), h.vc)
}

func (h *harness) previewClip(start, remaining float64) {
	h.c.UpdatePreview(lifecycle.PreviewUpdate{
		Sources:       []lifecycle.AudioTransport{h.transport},
		Active:        h.transport,
		StartTime:     start,
		TimeRemaining: remaining,
	})
}

func (h *harness) previewDefault() {
	h.c.UpdatePreview(lifecycle.PreviewUpdate{
		Sources:   []lifecycle.AudioTransport{h.transport},
		Active:    h.transport,
		IsDefault: true,
	})
}

func TestSongPreviewStartsWithClip(t *testing.T) {
	h := newHarness(t, testVideoConfig(0))
	h.enterMenu()
	assert.Zero(t, h.backend.PlayCalls, "no clip yet")

	h.audioPos = 30
	h.transport.playing = true
	h.previewClip(30, 2.5)

	assert.Equal(t, 1, h.backend.PlayCalls)
	assert.Equal(t, 30.0, h.backend.LastSeek)
	assert.Equal(t, Playing, h.c.phase)
	assert.False(t, h.c.IsPreviewPlaying(), "song previews are not manual previews")

	h.step(30)
	assert.Equal(t, Playing, h.c.State())
	assert.InDelta(t, h.audioPos-frameDt.Seconds(), h.backend.Time(), 0.05)
}

func TestSongPreviewUnexpectedRemainingFadesOut(t *testing.T) {
	h := newHarness(t, testVideoConfig(0))
	h.enterMenu()
	h.audioPos = 30
	h.transport.playing = true
	h.previewClip(30, 2.5)
	h.step(30)

	h.previewClip(45, 10)
	assert.Equal(t, media.FadingOut, h.c.PlayerState().Visual)

	h.step(40)
	assert.Equal(t, media.Hidden, h.c.PlayerState().Visual)
	assert.False(t, h.backend.IsPlaying(), "the fade out stops the video")
}

func TestSongPreviewAfterDefaultClip(t *testing.T) {
	h := newHarness(t, testVideoConfig(0))
	h.enterMenu()

	h.previewDefault()
	assert.True(t, h.c.preview.waitingForPreviewPlayer)

	h.previewClip(12, 10)
	assert.Equal(t, 1, h.backend.PlayCalls, "the first clip after the default is accepted")
	assert.Equal(t, 12.0, h.backend.LastSeek)
}

func TestSongPreviewLatePrepare(t *testing.T) {
	tests := []struct {
		name      string
		remaining float64
		plays     int
	}{
		{"too little time left", 2.5, 0},
		{"clip without end", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testVideoConfig(0))
			h.backend.SetPrepareDelay(2 * time.Second)
			h.enterMenu()
			h.previewClip(30, tt.remaining)
			assert.Zero(t, h.backend.PlayCalls, "video still preparing")

			h.step(100)
			require.True(t, h.backend.IsPrepared())
			assert.Equal(t, tt.plays, h.backend.PlayCalls)
			if tt.plays > 0 {
				assert.InDelta(t, 31.98, h.backend.LastSeek, 1e-6, "start advanced by the prepare time")
			}
		})
	}
}

func TestSongPreviewOnlyInMenu(t *testing.T) {
	h := newHarness(t, testVideoConfig(0))
	h.c.SetSelectedLevel(mo.Some(h.level), h.vc)
	h.previewClip(30, 2.5)
	assert.Zero(t, h.backend.PlayCalls)
}

func TestSongPreviewSkipsDLC(t *testing.T) {
	h := newHarness(t, testVideoConfig(0))
	h.level.IsDLC = true
	h.enterMenu()
	h.previewClip(30, 2.5)
	assert.Zero(t, h.backend.PlayCalls)
}

func TestSongPreviewStartBeyondSong(t *testing.T) {
	h := newHarness(t, testVideoConfig(0))
	h.enterMenu()
	h.previewClip(250, 2.5)
	assert.Equal(t, 1, h.backend.PlayCalls)
	assert.Zero(t, h.backend.LastSeek)
}

func TestTogglePreview(t *testing.T) {
	h := newHarness(t, testVideoConfig(-500))
	h.enterMenu()
	h.previewDefault()

	h.c.TogglePreview()
	require.True(t, h.c.IsPreviewPlaying())
	require.Len(t, h.preview.crossfades, 1)
	cf := h.preview.crossfades[0]
	assert.Equal(t, h.level.ID, cf.level.ID)
	assert.Equal(t, -5.0, cf.volumeDB)
	assert.Equal(t, 0.5, cf.start, "negative offsets start the song later")
	assert.Equal(t, 0.9, h.transport.pan)
	assert.Equal(t, -1.0, h.backend.PanStereo())
	assert.False(t, h.c.Clock().IsMuted())
	assert.Equal(t, AwaitingAudioSource, h.c.State())

	h.audioPos = 0.5
	h.transport.playing = true
	h.step(1)
	assert.Equal(t, 1, h.backend.PlayCalls)
	assert.Equal(t, Playing, h.c.phase)
	assert.Zero(t, h.backend.Time())

	h.c.TogglePreview()
	assert.False(t, h.c.IsPreviewPlaying())
	assert.Equal(t, 1, h.preview.defaults)
	assert.Zero(t, h.transport.pan)
	assert.True(t, h.c.Clock().IsMuted())
	assert.Equal(t, Idle, h.c.State())
	assert.Empty(t, h.c.sched.Kinds())
}

func TestTogglePreviewFailures(t *testing.T) {
	t.Run("no preview player", func(t *testing.T) {
		h := newHarness(t, testVideoConfig(0), withoutPreviewPlayer())
		h.enterMenu()
		h.c.TogglePreview()
		assert.False(t, h.c.IsPreviewPlaying())
	})

	t.Run("crossfade fails", func(t *testing.T) {
		h := newHarness(t, testVideoConfig(0))
		h.preview.err = fmt.Errorf("no audio clip")
		h.enterMenu()
		h.c.TogglePreview()
		assert.False(t, h.c.IsPreviewPlaying())
		assert.Empty(t, h.c.sched.Kinds())
	})

	t.Run("nothing selected", func(t *testing.T) {
		h := newHarness(t, testVideoConfig(0))
		h.c.TogglePreview()
		assert.False(t, h.c.IsPreviewPlaying())
		assert.Empty(t, h.preview.crossfades)
	})
}

func TestPreviewUpdatesDuringManualPreview(t *testing.T) {
	h := newHarness(t, testVideoConfig(0))
	h.enterMenu()
	h.previewDefault()
	h.c.TogglePreview()
	require.True(t, h.c.IsPreviewPlaying())

	h.previewClip(0, 200)
	assert.True(t, h.c.IsPreviewPlaying(), "the crossfade to our own clip is ignored")
	assert.True(t, h.c.preview.waitingForPreviewPlayer)

	h.previewDefault()
	assert.False(t, h.c.IsPreviewPlaying())
	assert.Zero(t, h.preview.defaults, "the host already returned to the default clip")
}

func TestManualPreviewIsNotReplacedBySongPreview(t *testing.T) {
	h := newHarness(t, testVideoConfig(0))
	h.enterMenu()
	h.previewClip(40, 2.5)
	require.Equal(t, 1, h.backend.PlayCalls)

	h.c.TogglePreview()
	require.True(t, h.c.IsPreviewPlaying())
	require.Equal(t, AwaitingAudioSource, h.c.State())

	h.c.OnDifficultySelected(lifecycle.DifficultySelection{})
	assert.Equal(t, 1, h.backend.PlayCalls, "the song clip does not restart the video")
	assert.Zero(t, h.backend.Time())
	assert.Equal(t, AwaitingAudioSource, h.c.State())
	assert.True(t, h.c.IsPreviewPlaying())
}

func TestStopAndUnload(t *testing.T) {
	h := newHarness(t, testVideoConfig(0))
	h.enterMenu()
	h.c.TogglePreview()
	require.True(t, h.c.IsPreviewPlaying())
	require.True(t, h.backend.IsPrepared())

	h.c.StopAndUnload()
	assert.False(t, h.c.IsPreviewPlaying())
	assert.Equal(t, 1, h.preview.defaults, "menu music returns")
	assert.False(t, h.backend.IsPlaying())
	assert.False(t, h.backend.IsPrepared())
	assert.Empty(t, h.backend.URL())
	assert.Empty(t, h.c.ErrorMessage())
	assert.Equal(t, Idle, h.c.State())
}

func TestDifficultySelection(t *testing.T) {
	tests := []struct {
		name     string
		wip      bool
		has      mo.Option[bool]
		anyHas   mo.Option[bool]
		disabled bool
	}{
		{"lacks while another has", false, mo.Some(false), mo.Some(true), true},
		{"no difficulty has one", false, mo.Some(false), mo.Some(false), false},
		{"has suggestion", false, mo.Some(true), mo.Some(true), false},
		{"unknown", false, mo.None[bool](), mo.Some(true), false},
		{"wip lacks", true, mo.Some(false), mo.None[bool](), true},
		{"wip unknown", true, mo.None[bool](), mo.None[bool](), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vc := testVideoConfig(0)
			if tt.wip {
				vc.LevelDir = "/game/" + videoconfig.WIPFolder + "/lv"
			}
			h := newHarness(t, vc)
			h.enterMenu()
			h.c.Clock().SetBrightness(1)

			h.c.OnDifficultySelected(lifecycle.DifficultySelection{HasSuggestion: tt.has, AnyHasSuggestion: tt.anyHas})
			assert.Equal(t, tt.disabled, vc.PlaybackDisabledByMissingSuggestion)
			assert.Equal(t, !tt.disabled, vc.IsPlayable())
			if tt.disabled {
				assert.Equal(t, media.FadingOut, h.c.PlayerState().Visual)
			}
		})
	}
}
