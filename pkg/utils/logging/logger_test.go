package logging_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

func TestNewLevels(t *testing.T) {
	testCases := []struct {
		level      string
		expectInfo bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", false},
		{"WARNING", false},
		{"error", false},
		{"invalid", true}, // falls back to info
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.New(tc.level, buf)

			logger.Info("info message")
			if tc.expectInfo {
				gt.S(t, buf.String()).Contains("info message")
			} else {
				gt.S(t, buf.String()).NotContains("info message")
			}
		})
	}
}

func TestWithAndFrom(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("debug", buf)

	ctx := logging.With(context.Background(), logger)
	retrieved := logging.From(ctx)
	gt.Equal(t, retrieved, logger)

	retrieved.Info("context message")
	gt.S(t, buf.String()).Contains("context message")
}

func TestFromFallsBackToDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	custom := logging.New("warn", buf)
	logging.SetDefault(custom)
	defer logging.SetDefault(logging.New("info", nil))

	retrieved := logging.From(context.Background())
	gt.Equal(t, retrieved, custom)

	retrieved.Warn("warning from default")
	gt.S(t, buf.String()).Contains("warning from default")
}
