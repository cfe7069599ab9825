package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoriesMatchSentinels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"config", Config("BBoxInteraction", "VoxelSize", "must be positive"), ErrConfiguration},
		{"data", Data("evt-1", "duplicate track id %d", 4), ErrData},
		{"state", &StateError{Op: "GenerateLabel", State: "Configured", Want: "MetaReady"}, ErrState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.want)
			for _, other := range []error{ErrConfiguration, ErrData, ErrState} {
				if other != tt.want {
					assert.NotErrorIs(t, wrapped, other)
				}
			}
		})
	}
}

func TestConfigErrorMessage(t *testing.T) {
	err := Config("BBoxInteraction", "VoxelSize", "must be positive, got %g", -1.0)
	assert.Equal(t, `BBoxInteraction: option "VoxelSize": must be positive, got -1`, err.Error())

	var ce *ConfigError
	if assert.True(t, errors.As(err, &ce)) {
		assert.Equal(t, "VoxelSize", ce.Option)
	}
}

func TestStateErrorMessage(t *testing.T) {
	err := &StateError{Op: "Meta", State: "Configured", Want: "MetaReady"}
	assert.Equal(t, "Meta: invalid in state Configured (requires MetaReady)", err.Error())
}
