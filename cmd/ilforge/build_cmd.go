package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ilforge/ilforge/internal/bcl"
	"github.com/ilforge/ilforge/internal/build"
	"github.com/ilforge/ilforge/internal/config"
	"github.com/ilforge/ilforge/internal/emit"
	"github.com/ilforge/ilforge/internal/metadata"
)

func newBuildCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "build <metadata.json>",
		Short: "compile a decoded managed module into C++ translation units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Load(cmd.Flags(), configPath)
			if err != nil {
				return err
			}
			return runBuild(args[0], opts)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "optional TOML runtime-configuration file")
	config.RegisterFlags(cmd.Flags(), config.DefaultOptions())
	return cmd
}

func runBuild(inputPath string, opts config.BuildOptions) error {
	assemblies, err := loadAssemblies(inputPath, opts)
	if err != nil {
		return err
	}

	b := build.NewBuilder()
	// Managed-shortcut elision only takes effect in multi-assembly mode.
	b.PreferManagedShortcuts = opts.PreferManagedShortcuts || !opts.MultiAssembly
	b.Interceptors = bcl.NewChain(b.Mangler)

	module, err := b.Build(assemblies)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	gen := emit.NewGenerator(emit.Options{Debug: opts.Debug}, b.Diag)
	units := gen.Generate(module)

	if err := writeUnits(opts.OutputDir, units); err != nil {
		return err
	}

	if b.Diag.HasErrors() {
		return fmt.Errorf("build finished with unresolved references, see diagnostics above")
	}
	return nil
}

// loadAssemblies reads the decoded-metadata hand-off file the (out of
// scope) ECMA-335 reader produces, plus the optional dependency manifest
// when multi-assembly mode is enabled (spec §6).
func loadAssemblies(inputPath string, opts config.BuildOptions) ([]metadata.AssemblyInfo, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("read input module %q: %w", inputPath, err)
	}
	var assemblies []metadata.AssemblyInfo
	if err := json.Unmarshal(data, &assemblies); err != nil {
		return nil, fmt.Errorf("parse decoded metadata %q: %w", inputPath, err)
	}

	if opts.MultiAssembly {
		manifestPath := filepath.Join(filepath.Dir(inputPath), "dependencies.json")
		if _, statErr := os.Stat(manifestPath); statErr == nil {
			if _, err := metadata.LoadDependencyManifest(manifestPath); err != nil {
				return nil, err
			}
		}
	}

	return assemblies, nil
}

func writeUnits(outputDir string, units map[string]string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory %q: %w", outputDir, err)
	}
	for name, text := range units {
		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return fmt.Errorf("write %q: %w", path, err)
		}
	}
	return nil
}
