// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package graphics

// Uploader is the GPU collaborator: it consumes a fully decoded bitmap and
// hands back an opaque handle, or frees one when an Image is destroyed.
type Uploader interface {
	UploadTexture(bitmap []byte, width, height int, isOpaque, is4ByteAligned bool) (textureId uint32, err error)
	FreeTexture(textureId uint32)
}

// NullUploader is the test-mode collaborator: it never sends bitmaps to a
// GPU, leaving the decoded bytes resident in LoadData.Data so tests can
// assert on them directly (§4.3 "GPU uploads disabled").
type NullUploader struct{}

func (NullUploader) UploadTexture([]byte, int, int, bool, bool) (uint32, error) { return 0, nil }
func (NullUploader) FreeTexture(uint32)                                        {}
