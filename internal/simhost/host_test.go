package simhost

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/theater/internal/app"
	"github.com/zsiec/theater/internal/config"
	"github.com/zsiec/theater/internal/lifecycle"
	"github.com/zsiec/theater/internal/videoconfig"
)

const step = 20 * time.Millisecond

func testConfig(loop bool) *config.Config {
	cfg := &config.Config{
		Plugin: *config.DefaultPluginConfig(),
		Sync:   *config.DefaultSyncConfig(),
		Simulation: config.SimulationConfig{
			TickRate:      50,
			LevelID:       "demo",
			SongDuration:  3 * time.Second,
			VideoDuration: 10 * time.Second,
			SongSpeed:     1,
			AudioDelay:    200 * time.Millisecond,
			Loop:          loop,
		},
	}
	cfg.Plugin.VideoDir = "/levels"
	return cfg
}

func newLoader(fs afero.Fs, cfg *config.Config) *videoconfig.Loader {
	return videoconfig.NewLoader(fs, &cfg.Plugin, videoconfig.NewCache(), nil)
}

func TestTransport(t *testing.T) {
	tr := NewTransport("song", 1.5)
	tr.advance(time.Second)
	assert.Zero(t, tr.Position(), "paused transports do not move")

	tr.Play()
	tr.advance(2 * time.Second)
	assert.InDelta(t, 3.0, tr.Position(), 1e-9)
	assert.True(t, tr.IsPlaying())

	tr.SetPanStereo(-0.5)
	assert.Equal(t, -0.5, tr.Pan())
	assert.Equal(t, "song", tr.Name())
}

func TestResolver(t *testing.T) {
	r := &Resolver{transport: NewTransport("song", 1)}
	_, ok := r.ResolveAudio()
	assert.False(t, ok)

	r.ready = true
	got, ok := r.ResolveAudio()
	require.True(t, ok)
	assert.Equal(t, "song", got.Name())
}

func TestPreviewPlayer(t *testing.T) {
	ch := NewTransport("preview", 1)
	p := &PreviewPlayer{channel: ch}
	level := lifecycle.Level{ID: "demo"}

	tests := []struct {
		name     string
		start    float64
		duration float64
		wantErr  bool
	}{
		{name: "within clip", start: 4, duration: 10},
		{name: "unknown length", start: 40, duration: 0},
		{name: "beyond clip", start: 12, duration: 10, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch.Pause()
			err := p.CrossfadeTo(level, -4, tt.start, tt.duration)
			if tt.wantErr {
				require.Error(t, err)
				assert.False(t, ch.IsPlaying())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, ch.Position())
			assert.True(t, ch.IsPlaying())
		})
	}
	assert.Equal(t, 2, p.Crossfades)

	p.CrossfadeToDefault()
	assert.Equal(t, 1, p.Defaults)
	assert.Zero(t, ch.Position())
}

func TestSeed(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := testConfig(true)
	loader := newLoader(fs, cfg)

	level, path, err := Seed(fs, loader, cfg)
	require.NoError(t, err)
	assert.Equal(t, "demo", level.ID)
	assert.Equal(t, "/levels/demo", level.Dir)
	assert.Equal(t, 3.0, level.SongDuration)
	assert.Equal(t, filepath.Join("/levels/demo", "demo.mp4"), path)

	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.True(t, exists)

	vc := loader.LoadDir(level.Dir)
	require.NotNil(t, vc)
	assert.Equal(t, videoconfig.Downloaded, vc.DownloadState)
	assert.True(t, vc.Loops())
	assert.Equal(t, 10, vc.Duration)
}

func TestSeedKeepsExistingConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := testConfig(false)
	require.NoError(t, fs.MkdirAll("/levels/demo", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/levels/demo/theater-video.json",
		[]byte(`{"videoID":"xyz","videoFile":"mine.mp4","offset":300}`), 0o644))

	_, path, err := Seed(fs, newLoader(fs, cfg), cfg)
	require.NoError(t, err)
	assert.Equal(t, "/levels/demo/mine.mp4", path)

	exists, _ := afero.Exists(fs, "/levels/demo/demo.mp4")
	assert.False(t, exists, "no placeholder for an existing config")
}

func newSession(t *testing.T, loop bool) (*Host, *app.App) {
	t.Helper()
	fs := afero.NewMemMapFs()
	cfg := testConfig(loop)

	level, path, err := Seed(fs, newLoader(fs, cfg), cfg)
	require.NoError(t, err)

	h := New(&cfg.Simulation, level, path, nil)
	a, err := app.New(context.Background(), cfg, nil, h.AppHost(), app.Options{Fs: fs})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	h.Start(a)
	return h, a
}

func TestStartSelectsLevel(t *testing.T) {
	h, a := newSession(t, false)
	assert.Equal(t, PhaseMenu, h.Phase())

	h.Step(step)
	st, ok := a.Status()
	require.True(t, ok)
	assert.Equal(t, "level_with_video", st.Session)
	assert.Equal(t, "demo", st.LevelID)
	assert.True(t, h.Backend().IsPrepared())
}

func TestPreviewToggle(t *testing.T) {
	h, a := newSession(t, false)
	h.Step(step)

	require.NoError(t, a.TogglePreview())
	h.Step(step)
	assert.Equal(t, 1, h.player.Crossfades)
	assert.True(t, a.Controller().IsPreviewPlaying())

	require.NoError(t, a.TogglePreview())
	h.Step(step)
	assert.Equal(t, 1, h.player.Defaults)
	assert.False(t, a.Controller().IsPreviewPlaying())
}

func TestScriptedSession(t *testing.T) {
	h, _ := newSession(t, false)

	sawGameplay, sawVideo := false, false
	for i := 0; i < 1000 && !h.Done(); i++ {
		h.Step(step)
		if h.Phase() == PhaseGameplay {
			sawGameplay = true
			sawVideo = sawVideo || h.Backend().IsPlaying()
		}
	}

	require.True(t, h.Done())
	assert.Equal(t, PhaseDone, h.Phase())
	assert.Equal(t, 1, h.Rounds())
	assert.True(t, sawGameplay)
	assert.True(t, sawVideo, "the video played along with the song")
	assert.GreaterOrEqual(t, h.Song().Position(), 3.0)
	assert.False(t, h.Backend().IsPlaying(), "leaving the scene stops the video")

	h.Step(step)
	assert.Equal(t, 1, h.Rounds(), "a finished session ignores steps")
}

func TestScriptedSessionLoops(t *testing.T) {
	h, _ := newSession(t, true)

	for i := 0; i < 1000 && h.Rounds() < 2; i++ {
		h.Step(step)
	}

	assert.Equal(t, 2, h.Rounds())
	assert.False(t, h.Done())
	assert.Equal(t, PhaseMenu, h.Phase())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "menu", PhaseMenu.String())
	assert.Equal(t, "gameplay", PhaseGameplay.String())
	assert.Equal(t, "done", PhaseDone.String())
}
