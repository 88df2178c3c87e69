package metadata

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// ModuleFile memory-maps the input managed-executable module so the
// (external) metadata reader can parse its header and tables without a
// full read into the heap — the module can be hundreds of megabytes for a
// large multi-assembly build (spec §6: "a path to a binary module").
type ModuleFile struct {
	Path string
	data mmap.MMap
	f    *os.File
}

// OpenModuleFile memory-maps path read-only. The caller must call Close.
func OpenModuleFile(path string) (*ModuleFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open module file %q: %w", path, err)
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap module file %q: %w", path, err)
	}

	return &ModuleFile{Path: path, data: data, f: f}, nil
}

// Bytes returns the mapped file content. The slice is only valid until
// Close is called.
func (m *ModuleFile) Bytes() []byte { return m.data }

func (m *ModuleFile) Close() error {
	if err := m.data.Unmap(); err != nil {
		m.f.Close()
		return fmt.Errorf("unmap module file %q: %w", m.Path, err)
	}
	return m.f.Close()
}
