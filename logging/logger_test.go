package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	require.Equal(t, "info", cfg.Level)
	require.Equal(t, "console", cfg.Format)
	require.Equal(t, "stderr", cfg.Output)

	cfg = Config{Level: "debug", Format: "json", Output: "stdout"}
	cfg.ApplyDefaults()
	require.Equal(t, Config{Level: "debug", Format: "json", Output: "stdout"}, cfg)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "valid", cfg: Config{Level: "warn", Format: "json", Output: "stdout"}},
		{name: "bad level", cfg: Config{Level: "loud", Format: "json", Output: "stdout"}, wantErr: "logging.level"},
		{name: "bad format", cfg: Config{Level: "info", Format: "xml", Output: "stdout"}, wantErr: "logging.format"},
		{name: "bad output", cfg: Config{Level: "info", Format: "json", Output: "file"}, wantErr: "logging.output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(Config{Level: "info", Format: "json", Timestamp: true}, &buf)
	require.NoError(t, err)

	l.Debug().Msg("hidden")
	l.Info().Str("component", "producer").Msg("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "visible", entry["message"])
	require.Equal(t, "producer", entry["component"])
	require.Contains(t, entry, "time")
}

func TestNewWithWriter_ConsoleNoColor(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(Config{Level: "debug", Format: "console", NoColor: true}, &buf)
	require.NoError(t, err)

	l.Debug().Int("worker", 3).Msg("sentinel received")
	out := buf.String()
	require.Contains(t, out, "sentinel received")
	require.Contains(t, out, "worker=3")
	require.NotContains(t, out, "\x1b[")
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "nope"})
	require.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	require.NotPanics(t, func() { l.Info().Msg("ok") })
}
