package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsFromFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, DefaultOptions())

	opts, err := Load(fs, "")
	require.NoError(t, err)
	require.False(t, opts.Debug)
	require.True(t, opts.PreferManagedShortcuts)
	require.Equal(t, "out", opts.OutputDir)
}

func TestLoad_FlagOverridesDefault(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, DefaultOptions())
	require.NoError(t, fs.Set("debug", "true"))
	require.NoError(t, fs.Set("prefer-managed-shortcuts", "false"))

	opts, err := Load(fs, "")
	require.NoError(t, err)
	require.True(t, opts.Debug)
	require.False(t, opts.PreferManagedShortcuts)
}
