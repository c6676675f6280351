package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartb55/octopusagile/internal/config"
)

func TestResolveDays(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)

	tests := []struct {
		flag    int
		want    int
		wantErr bool
	}{
		{0, 3, false},
		{1, 1, false},
		{30, 30, false},
		{31, 0, true},
		{-2, 0, true},
	}

	for _, tt := range tests {
		got, err := resolveDays(cfg, tt.flag)
		if tt.wantErr {
			assert.Error(t, err, "flag %d", tt.flag)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "version: dev")
	assert.Nil(t, appHandle, "version must not load configuration")
}
