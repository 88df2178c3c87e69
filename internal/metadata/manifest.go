package metadata

import (
	"encoding/json"
	"fmt"
	"os"
)

// DependencyEntry is one row of the optional dependency manifest: a flat
// list of name-version-type entries locating base-library and third-party
// modules (spec §6).
type DependencyEntry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type"` // "base-library", "third-party", "user"
	Path    string `json:"path"`
}

// DependencyManifest is the optional JSON manifest accompanying the input
// module.
type DependencyManifest struct {
	Entries []DependencyEntry `json:"dependencies"`
}

// LoadDependencyManifest reads and parses the JSON dependency manifest at
// path. A missing file is returned as a wrapped read error like any other
// failure; since multi-assembly mode is optional, callers that can do
// without the manifest check for it before calling.
func LoadDependencyManifest(path string) (*DependencyManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dependency manifest %q: %w", path, err)
	}
	var manifest DependencyManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse dependency manifest %q: %w", path, err)
	}
	return &manifest, nil
}

// OriginFor classifies a dependency entry's declared type into the Origin
// enum the IR builder uses to decide runtime-provided vs. user-compiled
// handling (spec §4.6 pass 1: "Classify each type's origin").
func (e DependencyEntry) OriginFor() Origin {
	switch e.Type {
	case "base-library":
		return OriginBaseLibrary
	case "third-party":
		return OriginThirdParty
	case "runtime-provided":
		return OriginRuntimeProvided
	default:
		return OriginUser
	}
}
