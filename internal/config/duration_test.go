package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_UnmarshalYAML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "seconds", input: "timeout: 30s", expected: 30 * time.Second},
		{name: "compound", input: "timeout: 1m30s", expected: 90 * time.Second},
		{name: "milliseconds", input: "timeout: 250ms", expected: 250 * time.Millisecond},
		{name: "empty string", input: `timeout: ""`, expected: 0},
		{name: "null", input: "timeout: null", expected: 0},
		{name: "invalid", input: "timeout: later", wantErr: true},
		{name: "not a scalar", input: "timeout: [1s]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out struct {
				Timeout Duration `yaml:"timeout"`
			}
			err := yaml.Unmarshal([]byte(tt.input), &out)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out.Timeout.Duration())
		})
	}
}

func TestDuration_MarshalYAML(t *testing.T) {
	t.Parallel()

	data, err := yaml.Marshal(struct {
		Timeout Duration `yaml:"timeout"`
	}{Timeout: Duration(90 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, "timeout: 1m30s\n", string(data))
}
