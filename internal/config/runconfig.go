package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"

	"github.com/banshee-data/voxlabel/internal/fsutil"
)

// MaxConfigFileSize caps run configuration files.
const MaxConfigFileSize = 1 * 1024 * 1024 // 1MB

// AlgorithmConfig names an algorithm and its options.
type AlgorithmConfig struct {
	Name   string `json:"name"`
	Params Params `json:"params,omitempty"`
}

// RunConfig selects and configures the grid builder and the labeling
// pipeline for a batch of events.
type RunConfig struct {
	BBox    AlgorithmConfig `json:"bbox"`
	Label   AlgorithmConfig `json:"label"`
	Workers *int            `json:"workers,omitempty"`
}

// UnmarshalJSON accepts option values as JSON strings, used verbatim, or as
// any other JSON value, whose compact text becomes the option value.
func (p *Params) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Params, len(raw))
	for k, v := range raw {
		trimmed := bytes.TrimSpace(v)
		if len(trimmed) > 0 && trimmed[0] == '"' {
			var s string
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return fmt.Errorf("option %q: %w", k, err)
			}
			out[k] = s
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return fmt.Errorf("option %q: %w", k, err)
		}
		out[k] = buf.String()
	}
	*p = out
	return nil
}

// DefaultRunConfig returns the configuration used by the regression
// events: a fixed 740x320x530 cm box at 0.4 cm pitch and no energy
// threshold.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		BBox: AlgorithmConfig{
			Name: "BBoxInteraction",
			Params: Params{
				"BBoxSize":   "[740, 320, 530]",
				"VoxelSize":  "[0.4, 0.4, 0.4]",
				"BBoxBottom": "[-370, -160, 400]",
			},
		},
		Label: AlgorithmConfig{
			Name: "LArTPCMLReco3D",
			Params: Params{
				"LogLevel":                  "WARNING",
				"EnergyDepositThreshold":    "0",
				"UseSimEnergyDeposit":       "True",
				"UseSimEnergyDepositPoints": "False",
			},
		},
	}
}

// LoadRunConfig loads a RunConfig from a JSON file.
// The file must have a .json extension and be under MaxConfigFileSize.
func LoadRunConfig(fs fsutil.FileSystem, path string) (*RunConfig, error) {
	data, err := fsutil.ReadBounded(fs, path, ".json", "config", MaxConfigFileSize)
	if err != nil {
		return nil, err
	}

	cfg := &RunConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that both algorithms are named.
func (c *RunConfig) Validate() error {
	if c.BBox.Name == "" {
		return errors.New("bbox.name is required")
	}
	if c.Label.Name == "" {
		return errors.New("label.name is required")
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	return nil
}

// GetWorkers returns the batch worker count, defaulting to GOMAXPROCS.
func (c *RunConfig) GetWorkers() int {
	if c.Workers == nil {
		return runtime.GOMAXPROCS(0)
	}
	return *c.Workers
}
