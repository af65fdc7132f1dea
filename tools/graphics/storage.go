// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package graphics

import (
	"fmt"
	"sort"
)

// defaultStorageLimit mirrors the source's STORAGE_LIMIT: roughly 320 MiB
// of resident decoded bitmap bytes across all images.
const defaultStorageLimit int64 = 320 * 1024 * 1024

// Limits bundles the manager's tunables; a zero-value Limits gets
// defaultStorageLimit applied lazily so test harnesses can construct a bare
// GraphicsManager{} and still evict correctly.
type Limits struct {
	StorageLimit int64
}

func (l Limits) storageLimit() int64 {
	if l.StorageLimit > 0 {
		return l.StorageLimit
	}
	return defaultStorageLimit
}

// ColdStore is the disk-cache collaborator: before an evicted-but-still-
// referenced image's bitmap is discarded, its pixels are handed here. The
// evicted image itself is removed, and nothing in this package reads the
// stored copy back (put does not consult the cold store).
type ColdStore interface {
	Add(key string, items map[string][]byte) (map[string]string, error)
	Get(key string, items ...string) (map[string]string, error)
}

const coldStoreBitmapItem = "bitmap"

func diskCacheKey(img *Image) string {
	return fmt.Sprintf("%d-%dx%d", img.InternalId, img.Width, img.Height)
}

// persistCold writes img's decoded bitmap to the cold store, when one is
// configured, prior to discarding it during eviction. Only referenced
// images whose bitmap is still resident in LoadData.Data (not uploaded to a
// GPU texture) are written; placement-less images are simply dropped.
func (m *GraphicsManager) persistCold(img *Image) {
	if m.ColdStore == nil || img.refcnt() == 0 || len(img.LoadData.Data) == 0 {
		return
	}
	key := diskCacheKey(img)
	if _, err := m.ColdStore.Add(key, map[string][]byte{coldStoreBitmapItem: img.LoadData.Data}); err == nil {
		img.DiskCacheKey = key
	}
}

// removeImageAt destroys and removes m.Images[i], releasing its GPU texture
// and adjusting storage accounting.
func (m *GraphicsManager) removeImageAt(i int) {
	img := m.Images[i]
	m.storageUsed -= img.UsedStorage
	img.destroy(m.Uploader)
	m.Images = append(m.Images[:i], m.Images[i+1:]...)
	m.layersDirty = true
}

// applyStorageQuota evicts images until resident storage is back under the
// configured limit, per §4.6's two-phase algorithm: first drop every
// unreferenced or not-yet-loaded image, then, if still over quota, evict by
// oldest access time until under budget (persisting referenced bitmaps to
// the disk cache before each removal). skipInternalId names the image
// just added by this command: phase 1 always preserves it (mirroring the
// source's skip_image_internal_id), though phase 2's LRU pass may still
// reclaim it if nothing older is left to evict.
func (m *GraphicsManager) applyStorageQuota(skipInternalId uint64) {
	limit := m.Limits.storageLimit()
	if m.storageUsed <= limit {
		return
	}

	for i := len(m.Images) - 1; i >= 0; i-- {
		img := m.Images[i]
		if img.InternalId == skipInternalId {
			continue
		}
		if img.refcnt() == 0 || !img.DataLoaded {
			m.removeImageAt(i)
		}
	}
	if m.storageUsed <= limit {
		return
	}

	type aged struct {
		idx   int
		atime int64
	}
	candidates := make([]aged, 0, len(m.Images))
	for i, img := range m.Images {
		candidates = append(candidates, aged{idx: i, atime: img.Atime.UnixNano()})
	}
	sort.Slice(candidates, func(a, b int) bool { return candidates[a].atime > candidates[b].atime })

	for m.storageUsed > limit && len(candidates) > 0 {
		last := candidates[len(candidates)-1]
		candidates = candidates[:len(candidates)-1]
		img := m.Images[last.idx]
		m.persistCold(img)
		m.removeImageAt(last.idx)
		for i := range candidates {
			if candidates[i].idx > last.idx {
				candidates[i].idx--
			}
		}
	}

	if len(m.Images) == 0 {
		m.storageUsed = 0
	}
}
