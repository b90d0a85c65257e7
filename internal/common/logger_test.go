package common

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLogger(&buf, slog.LevelInfo, "json")
	require.NoError(t, err)
	logger.Info("reconciled", "matches", 3)
	assert.Contains(t, buf.String(), `"matches":3`)

	buf.Reset()
	logger, err = NewLogger(&buf, slog.LevelWarn, "console")
	require.NoError(t, err)
	logger.Info("hidden")
	assert.Empty(t, buf.String())

	_, err = NewLogger(&buf, slog.LevelInfo, "xml")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
