// Package config binds the build settings spec.md §6 recognizes (debug vs
// release, read-debug-symbols, multi-assembly mode, managed-shortcut
// elision) to flags, environment variables and an optional runtime
// configuration file.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BuildOptions are the recognized build settings (spec §6 "Configuration
// options").
type BuildOptions struct {
	Debug                  bool `mapstructure:"debug"`
	ReadDebugSymbols       bool `mapstructure:"read_debug_symbols"`
	MultiAssembly          bool `mapstructure:"multi_assembly"`
	PreferManagedShortcuts bool `mapstructure:"prefer_managed_shortcuts"`
	OutputDir              string `mapstructure:"output_dir"`
}

// DefaultOptions matches the spec's stated default: prefer shortcuts over
// compiling a managed body even when one is available (spec §9 open
// question — this is the chosen default, see DESIGN.md).
func DefaultOptions() BuildOptions {
	return BuildOptions{
		Debug:                  false,
		ReadDebugSymbols:       false,
		MultiAssembly:          false,
		PreferManagedShortcuts: true,
		OutputDir:              "out",
	}
}

// RegisterFlags attaches the build options to a pflag.FlagSet so cobra
// commands can bind them uniformly.
func RegisterFlags(fs *pflag.FlagSet, defaults BuildOptions) {
	fs.Bool("debug", defaults.Debug, "emit a debug build (line directives, unoptimized)")
	fs.Bool("read-debug-symbols", defaults.ReadDebugSymbols, "read debug symbols next to the input module for line-table emission")
	fs.Bool("multi-assembly", defaults.MultiAssembly, "enable reachability-filtered build across a dependency set")
	fs.Bool("prefer-managed-shortcuts", defaults.PreferManagedShortcuts, "prefer a runtime shortcut over compiling a managed body when both are available")
	fs.String("output-dir", defaults.OutputDir, "directory to write generated C++ translation units into")
}

// Load builds a BuildOptions value from (in increasing priority) an
// optional TOML runtime-configuration file, environment variables prefixed
// ILFORGE_, and bound pflags.
func Load(fs *pflag.FlagSet, configPath string) (BuildOptions, error) {
	v := viper.New()
	v.SetEnvPrefix("ILFORGE")
	v.AutomaticEnv()
	// Dashed option names have no portable environment-variable spelling,
	// so each is bound to its underscore form explicitly.
	_ = v.BindEnv("read-debug-symbols", "ILFORGE_READ_DEBUG_SYMBOLS")
	_ = v.BindEnv("multi-assembly", "ILFORGE_MULTI_ASSEMBLY")
	_ = v.BindEnv("prefer-managed-shortcuts", "ILFORGE_PREFER_MANAGED_SHORTCUTS")
	_ = v.BindEnv("output-dir", "ILFORGE_OUTPUT_DIR")

	if configPath != "" {
		var fileOpts BuildOptions
		if _, err := toml.DecodeFile(configPath, &fileOpts); err != nil {
			return BuildOptions{}, fmt.Errorf("read runtime configuration %q: %w", configPath, err)
		}
		v.SetDefault("debug", fileOpts.Debug)
		v.SetDefault("read-debug-symbols", fileOpts.ReadDebugSymbols)
		v.SetDefault("multi-assembly", fileOpts.MultiAssembly)
		v.SetDefault("prefer-managed-shortcuts", fileOpts.PreferManagedShortcuts)
		if fileOpts.OutputDir != "" {
			v.SetDefault("output-dir", fileOpts.OutputDir)
		}
	}

	if err := v.BindPFlags(fs); err != nil {
		return BuildOptions{}, fmt.Errorf("bind build flags: %w", err)
	}

	var opts BuildOptions
	opts.Debug = v.GetBool("debug")
	opts.ReadDebugSymbols = v.GetBool("read-debug-symbols")
	opts.MultiAssembly = v.GetBool("multi-assembly")
	opts.PreferManagedShortcuts = v.GetBool("prefer-managed-shortcuts")
	opts.OutputDir = v.GetString("output-dir")
	if opts.OutputDir == "" {
		opts.OutputDir = "out"
	}
	return opts, nil
}
