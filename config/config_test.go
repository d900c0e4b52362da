package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/pipeline"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	f, err := Load()
	require.NoError(t, err)
	require.Equal(t, PipelineConfig{
		Workers:            4,
		HighWater:          6,
		LowWater:           2,
		CapacityMultiplier: 2,
		ErrorMode:          "fail_fast",
	}, f.Pipeline)
	require.Equal(t, "info", f.Logging.Level)
	require.Equal(t, "console", f.Logging.Format)
	require.True(t, f.Logging.Timestamp)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "config.yml", `
pipeline:
  workers: 8
  high_water: 10
  low_water: 3
  error_mode: collect
logging:
  level: debug
  format: json
`)
	f, err := Load(WithConfigFile(path))
	require.NoError(t, err)
	require.Equal(t, 8, f.Pipeline.Workers)
	require.Equal(t, 10, f.Pipeline.HighWater)
	require.Equal(t, 3, f.Pipeline.LowWater)
	require.Equal(t, 2, f.Pipeline.CapacityMultiplier)
	require.Equal(t, "collect", f.Pipeline.ErrorMode)
	require.Equal(t, "debug", f.Logging.Level)
	require.Equal(t, "json", f.Logging.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(WithConfigFile(filepath.Join(t.TempDir(), "absent.yml")))
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yml", "pipeline:\n  workers: 8\n")
	t.Setenv("PIPELINE_WORKERS", "2")
	t.Setenv("LOGGING_LEVEL", "warn")

	f, err := Load(WithConfigFile(path))
	require.NoError(t, err)
	require.Equal(t, 2, f.Pipeline.Workers)
	require.Equal(t, "warn", f.Logging.Level)
}

func TestLoad_EnvFile(t *testing.T) {
	// Registered so the variable set by godotenv is removed after the test.
	t.Setenv("PIPELINE_HIGH_WATER", "")
	require.NoError(t, os.Unsetenv("PIPELINE_HIGH_WATER"))

	path := writeFile(t, ".env", "PIPELINE_HIGH_WATER=12\n")
	f, err := Load(WithEnvFile(path))
	require.NoError(t, err)
	require.Equal(t, 12, f.Pipeline.HighWater)
}

func TestLoad_BoundFlagsWin(t *testing.T) {
	t.Setenv("PIPELINE_WORKERS", "2")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("workers", 4, "")
	require.NoError(t, fs.Parse([]string{"--workers=6"}))

	v := viper.New()
	require.NoError(t, v.BindPFlag("pipeline.workers", fs.Lookup("workers")))

	f, err := Load(WithViper(v))
	require.NoError(t, err)
	require.Equal(t, 6, f.Pipeline.Workers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "zero workers", yaml: "pipeline:\n  workers: 0\n"},
		{name: "negative low water", yaml: "pipeline:\n  low_water: -1\n  high_water: 3\n"},
		{name: "high not above low", yaml: "pipeline:\n  high_water: 2\n  low_water: 2\n"},
		{name: "multiplier", yaml: "pipeline:\n  capacity_multiplier: 0\n"},
		{name: "work capacity at high water", yaml: "pipeline:\n  work_capacity: 6\n"},
		{name: "work capacity negative", yaml: "pipeline:\n  work_capacity: -1\n"},
		{name: "error mode", yaml: "pipeline:\n  error_mode: retry\n"},
		{name: "log level", yaml: "logging:\n  level: chatty\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(WithConfigFile(writeFile(t, "config.yml", tt.yaml)))
			require.ErrorIs(t, err, pipeline.ErrInvalidConfig)
		})
	}
}

func TestPipelineConfig_Options(t *testing.T) {
	cfg := PipelineConfig{
		Workers:            3,
		HighWater:          5,
		LowWater:           1,
		CapacityMultiplier: 1,
		WorkCapacity:       8,
		ResultsCapacity:    4,
		ErrorMode:          "collect",
	}
	opts, err := cfg.Options()
	require.NoError(t, err)

	items := []int{1, 2, 3, 4, 5, 6, 7}
	results, stats, err := pipeline.Run(context.Background(), items,
		pipeline.TransformPure(func(v int) int { return v * 10 }), opts...)
	require.NoError(t, err)
	require.Equal(t, []int{10, 20, 30, 40, 50, 60, 70}, results)
	require.Equal(t, int64(7), stats.Consumed)
}

func TestPipelineConfig_OptionsRejectsUnknownMode(t *testing.T) {
	_, err := PipelineConfig{Workers: 1, HighWater: 2, CapacityMultiplier: 1, ErrorMode: "later"}.Options()
	require.ErrorIs(t, err, pipeline.ErrInvalidConfig)
}
