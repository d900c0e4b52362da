// Package config loads pipeline and logging settings from a YAML file, a .env file and
// the environment, and turns them into pipeline options.
//
// Precedence, highest first: bound command-line flags, environment variables, the YAML
// file, built-in defaults. Environment keys are the upper-cased config keys with dots
// replaced by underscores (pipeline.workers -> PIPELINE_WORKERS).
package config

import (
	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/pipeline"
	"github.com/ygrebnov/pipeline/logging"
)

// File is the root of the configuration document.
type File struct {
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Logging  logging.Config `yaml:"logging" mapstructure:"logging"`
}

// PipelineConfig mirrors the pipeline options that make sense outside of code.
type PipelineConfig struct {
	Workers            int    `yaml:"workers" mapstructure:"workers" validate:"min=1"`
	HighWater          int    `yaml:"high_water" mapstructure:"high_water" validate:"gtfield=LowWater"`
	LowWater           int    `yaml:"low_water" mapstructure:"low_water" validate:"min=0"`
	CapacityMultiplier int    `yaml:"capacity_multiplier" mapstructure:"capacity_multiplier" validate:"min=1"`
	WorkCapacity       int    `yaml:"work_capacity" mapstructure:"work_capacity" validate:"omitempty,gtfield=HighWater"`
	ResultsCapacity    int    `yaml:"results_capacity" mapstructure:"results_capacity" validate:"min=0"`
	ErrorMode          string `yaml:"error_mode" mapstructure:"error_mode" validate:"oneof=fail_fast collect"`
}

// Options converts the settings into pipeline options. Zero capacities keep the
// derived defaults.
func (c PipelineConfig) Options() ([]pipeline.Option, error) {
	opts := []pipeline.Option{
		pipeline.WithWorkers(c.Workers),
		pipeline.WithWatermarks(c.HighWater, c.LowWater),
		pipeline.WithCapacityMultiplier(c.CapacityMultiplier),
	}
	if c.WorkCapacity > 0 {
		opts = append(opts, pipeline.WithWorkCapacity(c.WorkCapacity))
	}
	if c.ResultsCapacity > 0 {
		opts = append(opts, pipeline.WithResultsCapacity(c.ResultsCapacity))
	}

	switch c.ErrorMode {
	case "", pipeline.ErrorModeFailFast.String():
		opts = append(opts, pipeline.WithErrorMode(pipeline.ErrorModeFailFast))
	case pipeline.ErrorModeCollect.String():
		opts = append(opts, pipeline.WithErrorMode(pipeline.ErrorModeCollect))
	default:
		return nil, errorc.With(pipeline.ErrInvalidConfig, errorc.String("pipeline.error_mode", c.ErrorMode))
	}
	return opts, nil
}
