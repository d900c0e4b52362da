package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/pipeline"
)

// defaults are registered on viper so every key exists for env lookups.
var defaults = map[string]any{
	"pipeline.workers":             4,
	"pipeline.high_water":          6,
	"pipeline.low_water":           2,
	"pipeline.capacity_multiplier": 2,
	"pipeline.work_capacity":       0,
	"pipeline.results_capacity":    0,
	"pipeline.error_mode":          "fail_fast",
	"logging.level":                "info",
	"logging.format":               "console",
	"logging.output":               "stderr",
	"logging.no_color":             false,
	"logging.timestamp":            true,
	"logging.caller":               false,
}

// LoaderConfig holds optional file locations and an optional viper instance.
type LoaderConfig struct {
	ConfigFile string
	EnvFile    string
	Viper      *viper.Viper
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithConfigFile sets the YAML file to read. A missing file is an error.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets a .env file whose variables are loaded into the process environment.
// Variables that are already set win over the file.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithViper makes Load use v, typically one with command-line flags already bound.
func WithViper(v *viper.Viper) LoaderOption {
	return func(lc *LoaderConfig) { lc.Viper = v }
}

// Load assembles, unmarshals and validates the configuration.
func Load(opts ...LoaderOption) (File, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&lc)
		}
	}

	v := lc.Viper
	if v == nil {
		v = viper.New()
	}
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if lc.ConfigFile != "" {
		v.SetConfigFile(lc.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return File{}, fmt.Errorf("read config file %s: %w", lc.ConfigFile, err)
		}
	}

	if lc.EnvFile != "" {
		if err := godotenv.Load(lc.EnvFile); err != nil {
			return File{}, fmt.Errorf("load env file %s: %w", lc.EnvFile, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return File{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(f); err != nil {
		return File{}, err
	}
	return f, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks f with its struct tags and the logging rules.
// Failures match pipeline.ErrInvalidConfig.
func Validate(f File) error {
	if err := validate.Struct(f.Pipeline); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) || len(ves) == 0 {
			return errorc.With(pipeline.ErrInvalidConfig, errorc.String("pipeline", err.Error()))
		}
		fe := ves[0]
		return errorc.With(pipeline.ErrInvalidConfig,
			errorc.String("pipeline."+toSnakeCase(fe.Field()), formatValidationError(fe)))
	}
	if err := f.Logging.Validate(); err != nil {
		return errorc.With(pipeline.ErrInvalidConfig, errorc.String("logging", err.Error()))
	}
	return nil
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must be >= %s (got: %v)", fe.Param(), fe.Value())
	case "gtfield":
		return fmt.Sprintf("must be greater than %s (got: %v)", toSnakeCase(fe.Param()), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of: %s (got: %v)", fe.Param(), fe.Value())
	default:
		return "is invalid"
	}
}

// toSnakeCase converts a Go field name to its config key.
func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
