package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/theater/internal/config"
	"github.com/zsiec/theater/internal/errors"
	"github.com/zsiec/theater/internal/health"
	"github.com/zsiec/theater/internal/lifecycle"
	"github.com/zsiec/theater/internal/media"
	"github.com/zsiec/theater/internal/playback"
	"github.com/zsiec/theater/internal/videoconfig"
)

const (
	videoDir = "/levels"
	levelDir = "/levels/lv"
	tickDt   = 20 * time.Millisecond
)

var (
	configPath = filepath.Join(levelDir, "theater-video.json")
	videoPath  = filepath.Join(levelDir, "clip.mp4")
)

func testConfig() *config.Config {
	cfg := &config.Config{
		Plugin:     *config.DefaultPluginConfig(),
		Sync:       *config.DefaultSyncConfig(),
		Simulation: config.SimulationConfig{TickRate: 50},
	}
	cfg.Plugin.VideoDir = videoDir
	return cfg
}

func writeConfig(t *testing.T, fs afero.Fs, offset int) {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{"videoID": "abc", "videoFile": "clip.mp4", "offset": offset})
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, configPath, data, 0o644))
}

func newTestApp(t *testing.T, fs afero.Fs, opts Options) (*App, *media.SimulatedBackend) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(levelDir, 0o755))
	require.NoError(t, afero.WriteFile(fs, videoPath, nil, 0o644))
	writeConfig(t, fs, 0)

	backend := media.NewSimulatedBackend(map[string]float64{videoPath: 180})
	opts.Fs = fs
	a, err := New(context.Background(), testConfig(), nil, Host{Backend: backend}, opts)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, backend
}

var level = lifecycle.Level{ID: "lv", Dir: levelDir, SongDuration: 200}

func TestStatusSnapshot(t *testing.T) {
	a, _ := newTestApp(t, afero.NewMemMapFs(), Options{})

	_, ok := a.Status()
	assert.False(t, ok, "no tick yet")

	a.Tick(tickDt)
	st, ok := a.Status()
	require.True(t, ok)
	assert.Equal(t, playback.Idle, st.State)
	assert.Equal(t, "no_level", st.Session)
}

func TestSelectLevel(t *testing.T) {
	a, backend := newTestApp(t, afero.NewMemMapFs(), Options{})

	a.SelectLevel(level)
	a.Tick(tickDt)

	st, _ := a.Status()
	assert.Equal(t, "level_with_video", st.Session)
	assert.Equal(t, "lv", st.LevelID)
	assert.Equal(t, videoPath, st.VideoPath)
	assert.True(t, backend.IsPrepared())
}

func TestApplyOffsetSavesConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	a, _ := newTestApp(t, fs, Options{})
	a.SelectLevel(level)

	require.NoError(t, a.ApplyOffset(-250))
	assert.Zero(t, a.Controller().VideoConfig().Offset, "applied on the next tick")

	a.Tick(tickDt)
	assert.Equal(t, -250, a.Controller().VideoConfig().Offset)

	data, err := afero.ReadFile(fs, configPath)
	require.NoError(t, err)
	var saved map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, float64(-250), saved["offset"])
}

func TestCommandQueueFull(t *testing.T) {
	a, _ := newTestApp(t, afero.NewMemMapFs(), Options{})

	for i := 0; i < commandQueueSize; i++ {
		require.NoError(t, a.TogglePreview())
	}
	err := a.TogglePreview()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))

	a.Tick(tickDt)
	assert.NoError(t, a.TogglePreview(), "the tick drained the queue")
}

func TestCommandPanicIsContained(t *testing.T) {
	a, _ := newTestApp(t, afero.NewMemMapFs(), Options{})
	require.NoError(t, a.enqueue(func() { panic("boom") }))

	assert.NotPanics(t, func() { a.Tick(tickDt) })
	_, ok := a.Status()
	assert.True(t, ok)
}

func TestApplyConfigChange(t *testing.T) {
	fs := afero.NewMemMapFs()
	a, _ := newTestApp(t, fs, Options{})
	a.SelectLevel(level)
	a.Tick(tickDt)

	writeConfig(t, fs, 120)
	a.ApplyConfigChange(videoconfig.Change{Path: configPath})
	require.NotNil(t, a.Controller().VideoConfig())
	assert.Equal(t, 120, a.Controller().VideoConfig().Offset)

	cached, ok := a.Loader().Cache().Get("lv")
	require.True(t, ok)
	assert.Equal(t, 120, cached.Offset)

	a.ApplyConfigChange(videoconfig.Change{Path: configPath, Deleted: true})
	assert.Nil(t, a.Controller().VideoConfig())
}

func TestDeleteConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	a, backend := newTestApp(t, fs, Options{})
	a.SelectLevel(level)
	a.Tick(tickDt)
	require.True(t, backend.IsPrepared())

	require.NoError(t, a.DeleteConfig())
	a.Tick(tickDt)

	exists, err := afero.Exists(fs, configPath)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, a.Controller().VideoConfig())
	assert.False(t, backend.IsPrepared())
	assert.Empty(t, backend.URL())
	_, cached := a.Loader().Cache().Get("lv")
	assert.False(t, cached)

	st, _ := a.Status()
	assert.Equal(t, "level_no_video", st.Session)
	assert.Equal(t, "lv", st.LevelID)
	assert.Empty(t, st.ErrorMessage, "unloading is not a playback error")

	require.NoError(t, a.DeleteConfig())
	assert.NotPanics(t, func() { a.Tick(tickDt) }, "nothing left to delete")
}

func TestHealthChecks(t *testing.T) {
	a, _ := newTestApp(t, afero.NewMemMapFs(), Options{})

	results := a.Health().RunChecks(context.Background())
	assert.Equal(t, health.StatusDown, results["tick_loop"].Status)
	assert.Equal(t, health.StatusOK, results["video_dir"].Status)

	a.Tick(tickDt)
	results = a.Health().RunChecks(context.Background())
	assert.Equal(t, health.StatusOK, results["tick_loop"].Status)
}

func TestTickDeadline(t *testing.T) {
	assert.Equal(t, time.Second, tickDeadline(0))
	assert.Equal(t, 250*time.Millisecond, tickDeadline(60))
	assert.Equal(t, time.Second, tickDeadline(10))
}

func TestWatcherFollowsLevel(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "lv")
	fs := afero.NewOsFs()
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "clip.mp4"), nil, 0o644))

	cfg := testConfig()
	cfg.Plugin.VideoDir = root
	backend := media.NewSimulatedBackend(map[string]float64{filepath.Join(dir, "clip.mp4"): 60})
	a, err := New(context.Background(), cfg, nil, Host{Backend: backend}, Options{Fs: fs, WatchConfigs: true})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	a.SelectLevel(lifecycle.Level{ID: "lv", Dir: dir})
	a.Tick(tickDt)
	require.Equal(t, dir, a.Watcher().Dir())
	assert.Nil(t, a.Controller().VideoConfig())

	data := []byte(`{"videoID":"abc","videoFile":"clip.mp4","offset":40}`)
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "theater-video.json"), data, 0o644))

	require.Eventually(t, func() bool {
		a.Tick(tickDt)
		vc := a.Controller().VideoConfig()
		return vc != nil && vc.Offset == 40
	}, 3*time.Second, 20*time.Millisecond)
}
