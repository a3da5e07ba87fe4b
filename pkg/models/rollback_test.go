package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		input   string
		want    Environment
		wantErr bool
	}{
		{"test", EnvTest, false},
		{"staging", EnvStaging, false},
		{"production", EnvProduction, false},
		{"PRODUCTION", EnvProduction, false},
		{" staging ", EnvStaging, false},
		{"prod", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseEnvironment(tt.input)
		if tt.wantErr {
			require.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got)
	}
}
