// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package graphics

import "testing"

func addDisplayedImage(t *testing.T, m *GraphicsManager, id uint32, texId uint32, z int32) *Image {
	t.Helper()
	raw := make([]byte, 48) // 4x4 RGB
	m.Dispatch(&Command{Action: ActionAddAndDisplay, Id: id, Format: FormatRGB, DataWidth: 4, DataHeight: 4, DataSize: int64(len(raw)), ZIndex: z}, raw, &Cursor{}, defaultCell())
	img := m.imgByClientId(id)
	img.TextureId = texId
	m.layersDirty = true
	return img
}

func TestRenderDataUsesInternalIdNotClientId(t *testing.T) {
	m := &GraphicsManager{}
	img := addDisplayedImage(t, m, 7, 1, 0)
	rd := m.UpdateLayers(defaultCell(), ScreenSize{Width: 800, Height: 600})
	if len(rd) != 1 {
		t.Fatalf("expected 1 render entry, got %d", len(rd))
	}
	if rd[0].ImageId != img.InternalId {
		t.Fatalf("expected ImageId to be the internal id %d, got %d", img.InternalId, rd[0].ImageId)
	}
}

func TestRenderDataGroupCountOnlyOnRunStart(t *testing.T) {
	m := &GraphicsManager{}
	addDisplayedImage(t, m, 1, 5, 0)
	for _, x := range []int32{10, 20} {
		m.Dispatch(&Command{Action: ActionDisplay, Id: 1}, nil, &Cursor{X: x}, defaultCell())
	}
	rd := m.UpdateLayers(defaultCell(), ScreenSize{Width: 800, Height: 600})
	if len(rd) != 3 {
		t.Fatalf("expected 3 render entries, got %d", len(rd))
	}
	if rd[0].GroupCount != 3 {
		t.Fatalf("expected the run's first entry to carry GroupCount 3, got %d", rd[0].GroupCount)
	}
	for i := 1; i < len(rd); i++ {
		if rd[i].GroupCount != 0 {
			t.Fatalf("expected non-first run entries to carry GroupCount 0, got %d at index %d", rd[i].GroupCount, i)
		}
	}
}

func TestScrolledByShiftsProjectionAndDirtiesLayers(t *testing.T) {
	m := &GraphicsManager{}
	addDisplayedImage(t, m, 1, 1, 0)
	first := m.UpdateLayers(defaultCell(), ScreenSize{Width: 800, Height: 600})
	top0 := first[0].Vertices[3]

	m.SetScrolledBy(5)
	second := m.UpdateLayers(defaultCell(), ScreenSize{Width: 800, Height: 600})
	top1 := second[0].Vertices[3]

	if top0 == top1 {
		t.Fatalf("expected scrolled_by to change the projected top coordinate")
	}
}
