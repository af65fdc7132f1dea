// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package graphics

import (
	"time"

	"github.com/kittygfx/graphicscore/tools/utils/shm"
)

// Rect is a normalized crop/placement rectangle, left/top/right/bottom in
// OpenGL-style [0, 1] (src_rect) or NDC [-1, 1] (dest_rect) coordinates.
type Rect struct {
	Left, Top, Right, Bottom float32
}

// LoadData is the transient staging area for an in-progress or just-decoded
// image. At most one of Buf (owned) and MappedFile (borrowed from the
// kernel) is ever non-nil: setOwnedBuf closes any mapped file before
// installing a buffer, and the assembler clears Buf before installing a
// mapping.
type LoadData struct {
	Buf         []byte
	BufUsed     int
	BufCapacity int

	MappedFile shm.MMap

	DataSize       int64
	IsOpaque       bool
	Is4ByteAligned bool

	// Data is the final decoded bitmap, pointing into either Buf or a
	// region read from MappedFile; populated once decode succeeds.
	Data []byte
}

func (ld *LoadData) setOwnedBuf(b []byte) {
	ld.closeMappedFile()
	ld.Buf = b
}

func (ld *LoadData) closeMappedFile() {
	if ld.MappedFile != nil {
		ld.MappedFile.Close()
		ld.MappedFile = nil
	}
}

func (ld *LoadData) reset() {
	ld.Buf = nil
	ld.BufUsed = 0
	ld.BufCapacity = 0
	ld.closeMappedFile()
	ld.DataSize = 0
	ld.IsOpaque = false
	ld.Is4ByteAligned = false
	ld.Data = nil
}

// ImageRef is one on-screen placement of an Image.
type ImageRef struct {
	ClientId uint32

	SrcX, SrcY, SrcWidth, SrcHeight int
	ZIndex                          int32
	StartRow, StartColumn           int32
	NumCols, NumRows                int
	CellXOffset, CellYOffset        int
	EffectiveNumCols                int
	EffectiveNumRows                int
	SrcRect                         Rect
}

// BelowTextZIndexThreshold mirrors the C source's INT32_MIN/2 z-band cutoff.
const BelowTextZIndexThreshold int32 = -1 << 30

// Image is a logical bitmap: identity, staging buffers, and placements.
type Image struct {
	InternalId    uint64
	ClientId      uint32
	ClientNumber  uint32
	Width, Height int
	TextureId     uint32
	Atime         time.Time
	UsedStorage   int64
	DataLoaded    bool
	LoadData      LoadData
	Refs          []*ImageRef

	// DiskCacheKey is set once this image's bitmap has been persisted to
	// the disk cache collaborator during LRU eviction (see storage.go);
	// empty means no cold copy exists.
	DiskCacheKey string
}

func (img *Image) refcnt() int { return len(img.Refs) }

// destroy releases the load buffer/mapped region and the GPU texture, the
// Go equivalent of the source's free_image: an Image exclusively owns these
// resources and nothing outlives removal from the owning GraphicsManager.
func (img *Image) destroy(gpu Uploader) {
	if img.TextureId != 0 && gpu != nil {
		gpu.FreeTexture(img.TextureId)
		img.TextureId = 0
	}
	img.Refs = nil
	img.LoadData.reset()
}
