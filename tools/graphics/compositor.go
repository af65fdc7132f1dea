// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package graphics

import "sort"

// RenderData is one placement's worth of GPU vertex data: a quad in NDC
// space carrying its source-rect UV corners, emitted in the source's vertex
// order (right-top, right-bottom, left-bottom, left-top), each vertex laid
// out as (src_u, src_v, dst_x, dst_y).
type RenderData struct {
	ImageId    uint64
	TextureId  uint32
	ZIndex     int32
	GroupCount int
	Vertices   [16]float32
}

// destRect projects a placement into NDC space. scrolledBy is the extra row
// offset accumulated by scrollback (§4.5): it shifts the placement's
// effective row the same way an explicit Scroll() call would, without
// actually mutating StartRow, so the projection tracks scrollback smoothly
// between reflow events.
func destRect(ref *ImageRef, cell CellPixelSize, scrolledBy int32, screenWidth, screenHeight int) Rect {
	cellW, cellH := float32(cell.Width), float32(cell.Height)
	left := float32(ref.StartColumn)*cellW - float32(ref.CellXOffset)
	top := float32(ref.StartRow+scrolledBy)*cellH - float32(ref.CellYOffset)
	right := left + float32(ref.SrcWidth)
	bottom := top + float32(ref.SrcHeight)
	if ref.EffectiveNumCols > 0 {
		right = left + float32(ref.EffectiveNumCols)*cellW
	}
	if ref.EffectiveNumRows > 0 {
		bottom = top + float32(ref.EffectiveNumRows)*cellH
	}
	sw, sh := float32(screenWidth), float32(screenHeight)
	return Rect{
		Left:   2*left/sw - 1,
		Right:  2*right/sw - 1,
		Top:    1 - 2*top/sh,
		Bottom: 1 - 2*bottom/sh,
	}
}

func emitVertices(dst *Rect, src *Rect) [16]float32 {
	return [16]float32{
		src.Right, src.Top, dst.Right, dst.Top,
		src.Right, src.Bottom, dst.Right, dst.Bottom,
		src.Left, src.Bottom, dst.Left, dst.Bottom,
		src.Left, src.Top, dst.Left, dst.Top,
	}
}

type placementEntry struct {
	img *Image
	ref *ImageRef
}

// updateLayers rebuilds m.RenderData from every image's placements, sorted
// into z-index bands the way the source's grman_update_layers does: below
// text (z < BelowTextZIndexThreshold), negative, then non-negative, each
// band independently sorted by (z_index, image_id) and run-length encoded
// into GroupCount for the renderer's instanced draw calls.
func (m *GraphicsManager) updateLayers(cell CellPixelSize, screenWidth, screenHeight int) {
	if !m.layersDirty {
		return
	}
	m.layersDirty = false
	m.RenderData = m.RenderData[:0]

	var below, negative, nonNegative []placementEntry
	for _, img := range m.Images {
		if !img.DataLoaded || img.TextureId == 0 {
			continue
		}
		for _, ref := range img.Refs {
			e := placementEntry{img: img, ref: ref}
			switch {
			case ref.ZIndex < BelowTextZIndexThreshold:
				below = append(below, e)
			case ref.ZIndex < 0:
				negative = append(negative, e)
			default:
				nonNegative = append(nonNegative, e)
			}
		}
	}

	for _, band := range [][]placementEntry{below, negative, nonNegative} {
		sort.SliceStable(band, func(i, j int) bool {
			if band[i].ref.ZIndex != band[j].ref.ZIndex {
				return band[i].ref.ZIndex < band[j].ref.ZIndex
			}
			return band[i].img.InternalId < band[j].img.InternalId
		})
		m.appendRenderGroup(band, cell, screenWidth, screenHeight)
	}
}

// appendRenderGroup emits one RenderData entry per placement in band and
// run-length-encodes consecutive placements of the same image (same
// InternalId) into the run's first entry's GroupCount (every other entry in
// the run carries 0), so the renderer can use render_data[start].group_count
// to skip ahead one instanced draw per run, matching the source.
func (m *GraphicsManager) appendRenderGroup(band []placementEntry, cell CellPixelSize, screenWidth, screenHeight int) {
	i := 0
	for i < len(band) {
		j := i + 1
		for j < len(band) && band[j].img.InternalId == band[i].img.InternalId {
			j++
		}
		for k := i; k < j; k++ {
			e := band[k]
			dst := destRect(e.ref, cell, m.scrolledBy, screenWidth, screenHeight)
			groupCount := 0
			if k == i {
				groupCount = j - i
			}
			rd := RenderData{
				ImageId:    e.img.InternalId,
				TextureId:  e.img.TextureId,
				ZIndex:     e.ref.ZIndex,
				GroupCount: groupCount,
				Vertices:   emitVertices(&dst, &e.ref.SrcRect),
			}
			m.RenderData = append(m.RenderData, rd)
		}
		i = j
	}
}
