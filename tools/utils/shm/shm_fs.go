// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>
//go:build linux || netbsd

package shm

import (
	"fmt"
	"os"
	"path/filepath"
)

var _ = fmt.Print

func create_temp(pattern string, size uint64) (MMap, error) {
	ans, err := os.CreateTemp(SHM_DIR, pattern)
	if err != nil {
		return nil, err
	}
	return file_mmap_open(ans, size, WRITE, true)
}

func Open(name string, size uint64) (MMap, error) {
	return OpenAt(name, size, 0)
}

// OpenAt mmaps the file at the given byte offset read-only, resolving a bare
// name against SHM_DIR the way Open does. Used by the graphics transmission
// assembler for data_offset on file/tempfile/shm payloads.
func OpenAt(name string, size uint64, offset int64) (MMap, error) {
	if !filepath.IsAbs(name) {
		name = filepath.Join(SHM_DIR, name)
	}
	ans, err := os.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		s, err := ans.Stat()
		if err != nil {
			ans.Close()
			return nil, fmt.Errorf("Failed to stat file for graphics transmission with error: %w", err)
		}
		size = uint64(s.Size())
	}
	return file_mmap_open_at(ans, size, offset)
}
