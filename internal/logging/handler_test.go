package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerFormatsLevelAndMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))

	logger.Warn("disk nearly full", "dataset", "tank/data")

	out := buf.String()
	require.Contains(t, out, "WARN]: disk nearly full dataset=tank/data")
}

func TestHandlerFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))

	logger.Debug("should not appear")
	require.Empty(t, buf.String())
}

func TestHandlerWithAttrsPersists(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo)).With("dataset", "tank/data")

	logger.Info("created snapshot")
	require.Contains(t, buf.String(), "dataset=tank/data")
}

func TestCriticalUsesCritTag(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))

	Critical(logger, "uncaught exception")
	require.Contains(t, buf.String(), "CRIT]: uncaught exception")
}
