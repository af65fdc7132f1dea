// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package graphics

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func zlibCompress(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func defaultCell() CellPixelSize { return CellPixelSize{Width: 10, Height: 20} }

func TestAddChunkedDirectRGB(t *testing.T) {
	m := &GraphicsManager{SendToGPU: true, Uploader: NullUploader{}}
	raw := bytes.Repeat([]byte{1, 2, 3}, 4) // 2x2 RGB
	cmd := &Command{Action: ActionAdd, Id: 7, Format: FormatRGB, DataWidth: 2, DataHeight: 2, DataSize: int64(len(raw)), More: true}
	resp := m.Dispatch(cmd, raw[:6], &Cursor{}, defaultCell())
	if resp.Err != nil {
		t.Fatalf("unexpected error on first chunk: %v", resp.Err)
	}
	cmd2 := &Command{Action: ActionAdd, Id: 7}
	resp = m.Dispatch(cmd2, raw[6:], &Cursor{}, defaultCell())
	if resp.Err != nil {
		t.Fatalf("unexpected error on final chunk: %v", resp.Err)
	}
	if len(m.Images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(m.Images))
	}
	img := m.Images[0]
	if !img.DataLoaded || img.Width != 2 || img.Height != 2 {
		t.Fatalf("image not loaded correctly: %+v", img)
	}
	if diff := cmp.Diff(raw, img.LoadData.Data); diff != "" {
		t.Fatalf("pixel mismatch (-want +got):\n%s", diff)
	}
}

func TestAddZlibCompressedRGBA(t *testing.T) {
	m := &GraphicsManager{}
	raw := bytes.Repeat([]byte{10, 20, 30, 40}, 4) // 2x2 RGBA
	compressed := zlibCompress(t, raw)
	cmd := &Command{Action: ActionAdd, Id: 3, Format: FormatRGBA, Compressed: CompressionZlib, DataWidth: 2, DataHeight: 2, DataSize: int64(len(raw))}
	resp := m.Dispatch(cmd, compressed, &Cursor{}, defaultCell())
	if resp.Err != nil {
		t.Fatalf("unexpected error: %v", resp.Err)
	}
	img := m.imgByClientId(3)
	if img == nil || !img.DataLoaded {
		t.Fatalf("image not loaded")
	}
	if diff := cmp.Diff(raw, img.LoadData.Data); diff != "" {
		t.Fatalf("pixel mismatch (-want +got):\n%s", diff)
	}
}

func TestAddRejectsMismatchedDataSize(t *testing.T) {
	m := &GraphicsManager{}
	raw := bytes.Repeat([]byte{1, 2, 3}, 2) // only 2 pixels, claims 2x2 = 4
	cmd := &Command{Action: ActionAdd, Id: 9, Format: FormatRGB, DataWidth: 2, DataHeight: 2, DataSize: int64(len(raw))}
	resp := m.Dispatch(cmd, raw, &Cursor{}, defaultCell())
	if resp.Err == nil {
		t.Fatalf("expected an error for undersized payload")
	}
	if resp.Err.Kind != EINVAL {
		t.Fatalf("expected EINVAL, got %v", resp.Err.Kind)
	}
}

func TestAddAndDisplayPutsAtCursor(t *testing.T) {
	m := &GraphicsManager{}
	raw := bytes.Repeat([]byte{1, 2, 3}, 4)
	cmd := &Command{Action: ActionAddAndDisplay, Id: 5, Format: FormatRGB, DataWidth: 2, DataHeight: 2, DataSize: int64(len(raw))}
	cursor := &Cursor{X: 3, Y: 2}
	resp := m.Dispatch(cmd, raw, cursor, defaultCell())
	if resp.Err != nil {
		t.Fatalf("unexpected error: %v", resp.Err)
	}
	img := m.imgByClientId(5)
	if len(img.Refs) != 1 {
		t.Fatalf("expected 1 placement, got %d", len(img.Refs))
	}
	ref := img.Refs[0]
	if ref.StartColumn != 3 || ref.StartRow != 2 {
		t.Fatalf("placement not anchored at cursor: %+v", ref)
	}
}

func TestPutNonExistentImageIsENOENT(t *testing.T) {
	m := &GraphicsManager{}
	cmd := &Command{Action: ActionDisplay, Id: 42}
	resp := m.Dispatch(cmd, nil, &Cursor{}, defaultCell())
	if resp.Err == nil || resp.Err.Kind != ENOENT {
		t.Fatalf("expected ENOENT, got %v", resp.Err)
	}
}

func TestDeleteAllFreesImages(t *testing.T) {
	m := &GraphicsManager{}
	raw := bytes.Repeat([]byte{1, 2, 3}, 4)
	for _, id := range []uint32{1, 2} {
		cmd := &Command{Action: ActionAddAndDisplay, Id: id, Format: FormatRGB, DataWidth: 2, DataHeight: 2, DataSize: int64(len(raw))}
		m.Dispatch(cmd, raw, &Cursor{}, defaultCell())
	}
	m.Dispatch(&Command{Action: ActionDelete, DeleteAction: DeleteAction('A')}, nil, &Cursor{}, defaultCell())
	if len(m.Images) != 0 {
		t.Fatalf("expected all images freed, got %d", len(m.Images))
	}
}

func TestDeleteByIdKeepsOthers(t *testing.T) {
	m := &GraphicsManager{}
	raw := bytes.Repeat([]byte{1, 2, 3}, 4)
	for _, id := range []uint32{1, 2} {
		cmd := &Command{Action: ActionAddAndDisplay, Id: id, Format: FormatRGB, DataWidth: 2, DataHeight: 2, DataSize: int64(len(raw))}
		m.Dispatch(cmd, raw, &Cursor{}, defaultCell())
	}
	m.Dispatch(&Command{Action: ActionDelete, DeleteAction: DeleteAction('I'), Id: 1}, nil, &Cursor{}, defaultCell())
	if len(m.Images) != 1 || m.Images[0].ClientId != 2 {
		t.Fatalf("expected only image 2 to survive, got %+v", m.Images)
	}
}

func TestScrollWithoutMarginsReapsOffscreen(t *testing.T) {
	m := &GraphicsManager{}
	raw := bytes.Repeat([]byte{1, 2, 3}, 4)
	cmd := &Command{Action: ActionAddAndDisplay, Id: 1, Format: FormatRGB, DataWidth: 2, DataHeight: 2, DataSize: int64(len(raw))}
	cursor := &Cursor{X: 0, Y: 0}
	m.Dispatch(cmd, raw, cursor, defaultCell())
	m.Scroll(&ScrollData{Amt: -5, Limit: 24}, defaultCell())
	if len(m.Images) != 0 {
		t.Fatalf("expected placement scrolled off screen to be reaped, got %+v", m.Images)
	}
}

func TestFreeClientIdPicksSmallestUnused(t *testing.T) {
	m := &GraphicsManager{Images: []*Image{{ClientId: 1}, {ClientId: 3}}}
	if got := m.freeClientId(); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestStorageQuotaEvictsUnreferencedFirst(t *testing.T) {
	m := &GraphicsManager{Limits: Limits{StorageLimit: 20}}
	raw := bytes.Repeat([]byte{1, 2, 3}, 16) // 48 bytes, 4x4 RGB
	cmd := &Command{Action: ActionAdd, Id: 1, Format: FormatRGB, DataWidth: 4, DataHeight: 4, DataSize: int64(len(raw))}
	m.Dispatch(cmd, raw, &Cursor{}, defaultCell())
	if len(m.Images) != 0 {
		t.Fatalf("expected the unreferenced over-quota image evicted, got %d images", len(m.Images))
	}
}

func TestStorageQuotaPreservesJustAddedImage(t *testing.T) {
	m := &GraphicsManager{Limits: Limits{StorageLimit: 60}}
	raw := bytes.Repeat([]byte{1, 2, 3}, 16) // 48 bytes, 4x4 RGB
	m.Dispatch(&Command{Action: ActionAdd, Id: 1, Format: FormatRGB, DataWidth: 4, DataHeight: 4, DataSize: int64(len(raw))}, raw, &Cursor{}, defaultCell())
	m.Dispatch(&Command{Action: ActionAdd, Id: 2, Format: FormatRGB, DataWidth: 4, DataHeight: 4, DataSize: int64(len(raw))}, raw, &Cursor{}, defaultCell())
	if len(m.Images) != 1 || m.Images[0].ClientId != 2 {
		t.Fatalf("expected only the just-added image 2 to survive phase 1 eviction, got %+v", m.Images)
	}
}

func TestDispatchRejectsIdAndImageNumberTogether(t *testing.T) {
	m := &GraphicsManager{}
	resp := m.Dispatch(&Command{Action: ActionDisplay, Id: 1, ImageNumber: 1}, nil, &Cursor{}, defaultCell())
	if resp.Err == nil || resp.Err.Kind != EINVAL {
		t.Fatalf("expected EINVAL, got %v", resp.Err)
	}
}

func TestAddAssignsFreeClientIdWhenIdZero(t *testing.T) {
	m := &GraphicsManager{Images: []*Image{{ClientId: 1, DataLoaded: true}}}
	raw := bytes.Repeat([]byte{1, 2, 3}, 4)
	cmd := &Command{Action: ActionAdd, ImageNumber: 9, Format: FormatRGB, DataWidth: 2, DataHeight: 2, DataSize: int64(len(raw))}
	resp := m.Dispatch(cmd, raw, &Cursor{}, defaultCell())
	if resp.Err != nil {
		t.Fatalf("unexpected error: %v", resp.Err)
	}
	if resp.Id != 2 {
		t.Fatalf("expected free id 2 to be assigned, got %d", resp.Id)
	}
}

func TestAddRejectsPNGDataSizeTooLarge(t *testing.T) {
	m := &GraphicsManager{}
	cmd := &Command{Action: ActionAdd, Id: 1, Format: FormatPNG, DataSize: maxDirectDataSize + 1}
	resp := m.Dispatch(cmd, []byte{0}, &Cursor{}, defaultCell())
	if resp.Err == nil || resp.Err.Kind != EINVAL {
		t.Fatalf("expected EINVAL for oversized PNG data_sz, got %v", resp.Err)
	}
}

func TestAddRejectsZeroDimensions(t *testing.T) {
	m := &GraphicsManager{}
	cmd := &Command{Action: ActionAdd, Id: 1, Format: FormatRGBA, DataWidth: 0, DataHeight: 0, DataSize: 0}
	resp := m.Dispatch(cmd, nil, &Cursor{}, defaultCell())
	if resp.Err == nil || resp.Err.Kind != EINVAL {
		t.Fatalf("expected EINVAL for zero width/height, got %v", resp.Err)
	}
}

func TestContinuationAfterImageRemovedReturnsEILSEQ(t *testing.T) {
	m := &GraphicsManager{}
	raw := bytes.Repeat([]byte{1, 2, 3}, 4)
	cmd := &Command{Action: ActionAdd, Id: 1, Format: FormatRGB, DataWidth: 2, DataHeight: 2, DataSize: int64(len(raw)), More: true}
	m.Dispatch(cmd, raw[:6], &Cursor{}, defaultCell())
	if len(m.Images) != 1 {
		t.Fatalf("expected the in-progress image to exist")
	}
	m.removeImageAt(0)
	resp := m.Dispatch(&Command{Action: ActionAdd, Id: 1}, raw[6:], &Cursor{}, defaultCell())
	if resp.Err == nil || resp.Err.Kind != EILSEQ {
		t.Fatalf("expected EILSEQ for a continuation of a removed image, got %v", resp.Err)
	}
}
