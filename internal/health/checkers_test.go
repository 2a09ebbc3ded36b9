package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickChecker(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewTickChecker(100 * time.Millisecond)
	c.now = func() time.Time { return now }

	assert.Error(t, c.Check(context.Background()), "no tick yet")

	c.Beat()
	c.Beat()
	assert.NoError(t, c.Check(context.Background()))
	assert.Equal(t, int64(2), c.Details()["ticks"])

	now = now.Add(150 * time.Millisecond)
	err := c.Check(context.Background())
	var degraded *DegradedError
	require.True(t, errors.As(err, &degraded))
	assert.Equal(t, "tick late by 50ms", degraded.Reason)

	now = now.Add(time.Second)
	err = c.Check(context.Background())
	require.Error(t, err)
	assert.False(t, errors.As(err, &degraded))
	assert.Contains(t, err.Error(), "no tick for")
}

func TestVideoDirChecker(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/game/Beat Saber_Data/CustomLevels/a", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/game/file.txt", []byte("x"), 0o644))

	tests := []struct {
		name     string
		dir      string
		wantErr  bool
		degraded bool
	}{
		{"readable", "/game/Beat Saber_Data/CustomLevels", false, false},
		{"missing", "/nope", true, false},
		{"not a directory", "/game/file.txt", true, false},
		{"unset", "", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewVideoDirChecker(fs, tt.dir)
			err := c.Check(context.Background())
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, int64(1), c.Details()["entries"])
				return
			}
			require.Error(t, err)
			var degraded *DegradedError
			assert.Equal(t, tt.degraded, errors.As(err, &degraded))
		})
	}
}

func TestCheckersWithManager(t *testing.T) {
	tick := NewTickChecker(time.Minute)
	tick.Beat()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/videos", 0o755))

	m := NewManager(nil)
	m.Register(tick)
	m.Register(NewVideoDirChecker(fs, "/videos"))

	results := m.RunChecks(context.Background())
	assert.Equal(t, StatusOK, results["tick_loop"].Status)
	assert.Equal(t, StatusOK, results["video_dir"].Status)
	assert.Equal(t, "/videos", results["video_dir"].Details["path"])
	assert.Equal(t, StatusOK, m.GetOverallStatus())
}
