package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/theater/internal/config"
)

func bufferLogger(level logrus.Level) (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{})
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.LoggingConfig
		wantErr bool
		check   func(t *testing.T, logger *logrus.Logger)
	}{
		{
			name:   "json format stdout",
			config: &config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			check: func(t *testing.T, logger *logrus.Logger) {
				assert.Equal(t, logrus.InfoLevel, logger.Level)
				_, ok := logger.Formatter.(*logrus.JSONFormatter)
				assert.True(t, ok)
			},
		},
		{
			name:   "text format stderr",
			config: &config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"},
			check: func(t *testing.T, logger *logrus.Logger) {
				assert.Equal(t, logrus.DebugLevel, logger.Level)
				_, ok := logger.Formatter.(*logrus.TextFormatter)
				assert.True(t, ok)
			},
		},
		{
			name:    "invalid log level",
			config:  &config.LoggingConfig{Level: "invalid", Format: "json", Output: "stdout"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, logger)
			}
		})
	}
}

func TestFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "theater.log")

	logger, err := New(&config.LoggingConfig{
		Level:      "info",
		Format:     "text",
		Output:     logFile,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	})
	require.NoError(t, err)

	logger.Info("video prepared")

	_, err = os.Stat(logFile)
	assert.NoError(t, err)
}

func TestBaseAndHelpers(t *testing.T) {
	l, buf := bufferLogger(logrus.InfoLevel)

	log := WithLevel(WithComponent(Base(l), "playback"), "level-1")
	log.WithError(assert.AnError).Info("resync")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "theater", lines[0]["service"])
	assert.Equal(t, "playback", lines[0]["component"])
	assert.Equal(t, "level-1", lines[0]["level_id"])
	assert.Equal(t, assert.AnError.Error(), lines[0][logrus.ErrorKey])
	assert.Equal(t, "resync", lines[0]["msg"])
}

func TestNullLogger(t *testing.T) {
	l := NewNullLogger()
	assert.NotPanics(t, func() {
		l.WithField("a", 1).WithFields(Fields{"b": 2}).WithError(assert.AnError).Info("dropped")
		l.Errorf("dropped %d", 1)
		l.Log(logrus.WarnLevel, "dropped")
	})
}

func TestSessionContext(t *testing.T) {
	l, buf := bufferLogger(logrus.InfoLevel)

	ctx := WithLogger(context.Background(), NewLogrusAdapter(logrus.NewEntry(l)))
	id := NewSessionID()
	ctx = WithSession(ctx, id)

	assert.Equal(t, id, SessionID(ctx))
	FromContext(ctx).Info("session started")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, id, lines[0]["session_id"])
}

func TestFromContextDefault(t *testing.T) {
	assert.IsType(t, NullLogger{}, FromContext(context.Background()))
	assert.Empty(t, SessionID(context.Background()))
	assert.NotEqual(t, NewSessionID(), NewSessionID())
}

func TestFrameSampler(t *testing.T) {
	l, buf := bufferLogger(logrus.DebugLevel)
	s := NewFrameSampler(NewLogrusAdapter(logrus.NewEntry(l)), 120)

	for i := 0; i < 241; i++ {
		s.Debug(CategoryDrift, "drift", Fields{"frame": i})
	}
	s.Debug(CategoryPreview, "preview", nil)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)
	assert.EqualValues(t, 0, lines[0]["frame"])
	assert.EqualValues(t, 120, lines[1]["frame"])
	assert.EqualValues(t, 240, lines[2]["frame"])
	assert.Equal(t, CategoryPreview, lines[3]["category"])
}

func TestFrameSamplerEveryClamp(t *testing.T) {
	l, buf := bufferLogger(logrus.DebugLevel)
	s := NewFrameSampler(NewLogrusAdapter(logrus.NewEntry(l)), 0)

	s.Debug(CategoryFrame, "a", nil)
	s.Debug(CategoryFrame, "b", nil)
	assert.Len(t, decodeLines(t, buf), 2)
}
