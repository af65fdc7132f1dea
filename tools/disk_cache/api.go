package disk_cache

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kittygfx/graphicscore/tools/utils"
	"github.com/zeebo/xxh3"
)

var _ = fmt.Print

type Entry struct {
	Key      string
	Size     int64
	LastUsed time.Time
}

type Metadata struct {
	TotalSize     int64
	SortedEntries []*Entry
	PathMap       map[string]string
}

type DiskCache struct {
	Path    string
	MaxSize int64

	lock_file               *os.File
	lock_mutex              sync.Mutex
	entries                 Metadata
	entry_map               map[string]*Entry
	entries_dirty           bool
	entries_last_read_state *file_state
	read_count              int
	get_dir                 string
}

func NewDiskCache(path string, max_size int64) (dc *DiskCache, err error) {
	return new_disk_cache(path, max_size)
}

func KeyForPath(path string) (key string, err error) {
	if path, err = filepath.EvalSymlinks(path); err != nil {
		return
	}
	if path, err = filepath.Abs(path); err != nil {
		return
	}

	s, err := os.Stat(path)
	if err != nil {
		return
	}
	data := fmt.Sprintf("%s\x00%d\x00%d", path, s.Size(), s.ModTime().UnixNano())
	sum := xxh3.Hash128(utils.UnsafeStringToBytes(data)).Bytes()
	return hex.EncodeToString(sum[:]), nil
}

func (dc *DiskCache) Get(key string, items ...string) (map[string]string, error) {
	dc.lock()
	defer dc.unlock()
	return dc.get(key, items)
}

func (dc *DiskCache) Remove(key string) (err error) {
	dc.lock()
	defer dc.unlock()
	return dc.remove(key)
}

func (dc *DiskCache) Add(key string, items map[string][]byte) (map[string]string, error) {
	dc.lock()
	defer dc.unlock()
	return dc.add(key, items)
}

// GetPath resolves path to its content-derived key via KeyForPath and
// returns any cached items previously stored under that key, exporting
// them as hardlinks the way Get does.
func (dc *DiskCache) GetPath(path string) (key string, items map[string]string, err error) {
	if key, err = KeyForPath(path); err != nil {
		return
	}
	dc.lock()
	defer dc.unlock()
	items, err = dc.get(key, nil)
	return
}

// AddPath stores items under key and records path -> key in the PathMap,
// evicting whatever was previously cached for path under a different key.
func (dc *DiskCache) AddPath(path, key string, items map[string][]byte) (map[string]string, error) {
	dc.lock()
	defer dc.unlock()
	return dc.add_path(path, key, items)
}
