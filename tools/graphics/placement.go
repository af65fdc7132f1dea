// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package graphics

import "time"

// CellPixelSize is the current cell geometry in pixels, supplied by the host
// on every call that needs to quantize a placement into cells.
type CellPixelSize struct {
	Width, Height int
}

// Cursor is the external cell-grid cursor the placement manager reads and
// advances; owned by the host, not this package.
type Cursor struct {
	X, Y int32
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	q := a / b
	if a > q*b {
		q++
	}
	return q
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func updateSrcRect(ref *ImageRef, img *Image) {
	if img.Width == 0 || img.Height == 0 {
		ref.SrcRect = Rect{}
		return
	}
	ref.SrcRect = Rect{
		Left:   float32(ref.SrcX) / float32(img.Width),
		Right:  float32(ref.SrcX+ref.SrcWidth) / float32(img.Width),
		Top:    float32(ref.SrcY) / float32(img.Height),
		Bottom: float32(ref.SrcY+ref.SrcHeight) / float32(img.Height),
	}
}

func updateDestSpan(ref *ImageRef, numCols, numRows int, cell CellPixelSize) {
	if numCols == 0 {
		numCols = ceilDiv(ref.SrcWidth+ref.CellXOffset, cell.Width)
	}
	if numRows == 0 {
		numRows = ceilDiv(ref.SrcHeight+ref.CellYOffset, cell.Height)
	}
	ref.EffectiveNumCols = numCols
	ref.EffectiveNumRows = numRows
}

// imgByClientId finds the image with the given nonzero client id.
func (m *GraphicsManager) imgByClientId(id uint32) *Image {
	if id == 0 {
		return nil
	}
	for _, img := range m.Images {
		if img.ClientId == id {
			return img
		}
	}
	return nil
}

// imgByClientNumber finds the newest image carrying the given client number.
func (m *GraphicsManager) imgByClientNumber(number uint32) *Image {
	if number == 0 {
		return nil
	}
	for i := len(m.Images) - 1; i >= 0; i-- {
		if m.Images[i].ClientNumber == number {
			return m.Images[i]
		}
	}
	return nil
}

func (m *GraphicsManager) imgByInternalId(id uint64) *Image {
	if id == 0 {
		return nil
	}
	for _, img := range m.Images {
		if img.InternalId == id {
			return img
		}
	}
	return nil
}

// freeClientId returns the smallest positive client id not already in use.
func (m *GraphicsManager) freeClientId() uint32 {
	used := make(map[uint32]bool, len(m.Images))
	for _, img := range m.Images {
		if img.ClientId != 0 {
			used[img.ClientId] = true
		}
	}
	var id uint32 = 1
	for used[id] {
		id++
	}
	return id
}

// put resolves the target image and creates or updates a placement on it,
// per §4.4. When img is non-nil the resolution step is skipped (the T
// continuation path already knows its image).
func (m *GraphicsManager) put(cmd *Command, cursor *Cursor, cell CellPixelSize, img *Image) (uint32, error) {
	if img == nil {
		if cmd.Id != 0 {
			img = m.imgByClientId(cmd.Id)
		} else if cmd.ImageNumber != 0 {
			img = m.imgByClientNumber(cmd.ImageNumber)
		}
		if img == nil {
			return cmd.Id, newError(ENOENT, "put command refers to non-existent image with id: %d and number: %d", cmd.Id, cmd.ImageNumber)
		}
	}
	if !img.DataLoaded {
		return img.ClientId, newError(ENOENT, "put command refers to image with id: %d that could not load its data", cmd.Id)
	}

	m.layersDirty = true

	var ref *ImageRef
	if cmd.PlacementId != 0 && img.ClientId != 0 {
		for _, r := range img.Refs {
			if r.ClientId == cmd.PlacementId {
				ref = r
				break
			}
		}
	}
	if ref == nil {
		ref = &ImageRef{}
		img.Refs = append(img.Refs, ref)
	}

	img.Atime = time.Now()

	ref.SrcX, ref.SrcY = cmd.XOffset, cmd.YOffset
	srcWidth, srcHeight := cmd.Width, cmd.Height
	if srcWidth == 0 {
		srcWidth = img.Width
	}
	if srcHeight == 0 {
		srcHeight = img.Height
	}
	// Degenerate when src_x/src_y is at or beyond the image edge: clamp to
	// zero width/height rather than underflow (§9 open question).
	ref.SrcWidth = minInt(srcWidth, img.Width-minInt(ref.SrcX, img.Width))
	ref.SrcHeight = minInt(srcHeight, img.Height-minInt(ref.SrcY, img.Height))

	ref.ZIndex = cmd.ZIndex
	ref.StartRow, ref.StartColumn = cursor.Y, cursor.X
	ref.CellXOffset = minInt(cmd.CellXOffset, cell.Width-1)
	ref.CellYOffset = minInt(cmd.CellYOffset, cell.Height-1)
	ref.NumCols, ref.NumRows = cmd.NumCells, cmd.NumLines
	if img.ClientId != 0 {
		ref.ClientId = cmd.PlacementId
	}

	updateSrcRect(ref, img)
	updateDestSpan(ref, cmd.NumCells, cmd.NumLines, cell)

	cursor.X += int32(ref.EffectiveNumCols)
	cursor.Y += int32(ref.EffectiveNumRows - 1)

	return img.ClientId, nil
}

// deleteFilter decides whether a single placement matches a delete/clear/
// scroll pass; the tagged closure over Command fields stands in for the
// source's function-pointer-plus-void* filter pattern (§9).
type deleteFilter func(ref *ImageRef, img *Image) bool

func clearFilter(ref *ImageRef) bool {
	return ref.StartRow+int32(ref.EffectiveNumRows) > 0
}

func xFilter(cmd *Command) deleteFilter {
	return func(ref *ImageRef, img *Image) bool {
		x := int32(cmd.XOffset) - 1
		return ref.StartColumn <= x && x < ref.StartColumn+int32(ref.EffectiveNumCols)
	}
}

// yFilter is the corrected form of the source's y_filter_func: "the query
// row falls inside the placement's row span" (§9 open question).
func yFilter(cmd *Command) deleteFilter {
	return func(ref *ImageRef, img *Image) bool {
		y := int32(cmd.YOffset) - 1
		return ref.StartRow <= y && y < ref.StartRow+int32(ref.EffectiveNumRows)
	}
}

func zFilter(cmd *Command) deleteFilter {
	return func(ref *ImageRef, img *Image) bool {
		return ref.ZIndex == cmd.ZIndex
	}
}

func pointFilter(cmd *Command) deleteFilter {
	xf, yf := xFilter(cmd), yFilter(cmd)
	return func(ref *ImageRef, img *Image) bool {
		return xf(ref, img) && yf(ref, img)
	}
}

func point3DFilter(cmd *Command) deleteFilter {
	pf, zf := pointFilter(cmd), zFilter(cmd)
	return func(ref *ImageRef, img *Image) bool {
		return zf(ref, img) && pf(ref, img)
	}
}

func idFilter(cmd *Command) deleteFilter {
	return func(ref *ImageRef, img *Image) bool {
		if cmd.Id != 0 && img.ClientId == cmd.Id {
			return cmd.PlacementId == 0 || ref.ClientId == cmd.PlacementId
		}
		return false
	}
}

func numberFilter(cmd *Command) deleteFilter {
	return func(ref *ImageRef, img *Image) bool {
		if cmd.ImageNumber != 0 && img.ClientNumber == cmd.ImageNumber {
			return cmd.PlacementId == 0 || ref.ClientId == cmd.PlacementId
		}
		return false
	}
}

// filterRefs removes every placement matched by filter, freeing images left
// with no placements when freeImages is set or the image is anonymous; when
// onlyFirstImage is set, it stops after the first image with any match
// (used by the 'n'/'N' delete action, which targets only the newest match).
func (m *GraphicsManager) filterRefs(filter deleteFilter, freeImages bool, onlyFirstImage bool) {
	matched := false
	for i := len(m.Images) - 1; i >= 0; i-- {
		img := m.Images[i]
		kept := img.Refs[:0]
		for _, ref := range img.Refs {
			if filter(ref, img) {
				m.layersDirty = true
				matched = true
			} else {
				kept = append(kept, ref)
			}
		}
		img.Refs = kept
		if len(img.Refs) == 0 && (freeImages || img.ClientId == 0) {
			m.removeImageAt(i)
		}
		if onlyFirstImage && matched {
			break
		}
	}
}

// modifyRefs applies a mutating filter (one that both updates and decides
// removal, e.g. scroll) over every placement.
func (m *GraphicsManager) modifyRefs(filter deleteFilter, freeImages bool) {
	for i := len(m.Images) - 1; i >= 0; i-- {
		img := m.Images[i]
		kept := img.Refs[:0]
		for _, ref := range img.Refs {
			if !filter(ref, img) {
				kept = append(kept, ref)
			}
		}
		img.Refs = kept
		if len(img.Refs) == 0 && (freeImages || img.ClientId == 0) {
			m.removeImageAt(i)
		}
	}
}

// handleDelete dispatches a delete command to the matching filter, per the
// closed action table in §4.4.
func (m *GraphicsManager) handleDelete(cmd *Command, cursor *Cursor) {
	action := cmd.DeleteAction.Lower()
	freeImages := cmd.DeleteAction.FreeImages() || cmd.DeleteAction == 0
	switch action {
	case 0:
		m.filterRefs(func(ref *ImageRef, img *Image) bool { return clearFilter(ref) }, freeImages, false)
	case 'a':
		m.filterRefs(func(ref *ImageRef, img *Image) bool { return true }, freeImages, false)
	case 'i':
		m.filterRefs(idFilter(cmd), freeImages, false)
	case 'p':
		m.filterRefs(pointFilter(cmd), freeImages, false)
	case 'q':
		m.filterRefs(point3DFilter(cmd), freeImages, false)
	case 'x':
		m.filterRefs(xFilter(cmd), freeImages, false)
	case 'y':
		m.filterRefs(yFilter(cmd), freeImages, false)
	case 'z':
		m.filterRefs(zFilter(cmd), freeImages, false)
	case 'c':
		d := *cmd
		d.XOffset = int(cursor.X) + 1
		d.YOffset = int(cursor.Y) + 1
		m.filterRefs(pointFilter(&d), freeImages, false)
	case 'n':
		m.filterRefs(numberFilter(cmd), freeImages, true)
	default:
		// Unknown delete action: ignored, matching the source's
		// REPORT_ERROR-and-continue behavior.
	}
	if len(m.Images) == 0 {
		m.RenderData = m.RenderData[:0]
	}
}

// ScrollData parameterizes a scroll pass over every placement.
type ScrollData struct {
	Amt                      int32
	Limit                    int32
	MarginTop, MarginBottom  int32
	HasMargins               bool
}

func refWithinRegion(ref *ImageRef, marginTop, marginBottom int32) bool {
	return ref.StartRow >= marginTop && ref.StartRow+int32(ref.EffectiveNumRows) <= marginBottom
}

func refOutsideRegion(ref *ImageRef, marginTop, marginBottom int32) bool {
	return ref.StartRow+int32(ref.EffectiveNumRows) <= marginTop || ref.StartRow > marginBottom
}

// scrollFilter shifts a placement by d.Amt and reports whether it has
// scrolled past d.Limit: its bottom edge (start row plus effective rows) is
// at or above row d.Limit.
func scrollFilter(d *ScrollData) deleteFilter {
	return func(ref *ImageRef, img *Image) bool {
		ref.StartRow += d.Amt
		return ref.StartRow+int32(ref.EffectiveNumRows) <= d.Limit
	}
}

func scrollMarginsFilter(d *ScrollData, cell CellPixelSize) deleteFilter {
	return func(ref *ImageRef, img *Image) bool {
		if !refWithinRegion(ref, d.MarginTop, d.MarginBottom) {
			return false
		}
		ref.StartRow += d.Amt
		if refOutsideRegion(ref, d.MarginTop, d.MarginBottom) {
			return true
		}
		if ref.StartRow < d.MarginTop {
			clippedRows := d.MarginTop - ref.StartRow
			clipAmt := cell.Height * int(clippedRows)
			if ref.SrcHeight <= clipAmt {
				return true
			}
			ref.SrcY += clipAmt
			ref.SrcHeight -= clipAmt
			ref.EffectiveNumRows -= int(clippedRows)
			updateSrcRect(ref, img)
			ref.StartRow += clippedRows
		} else if ref.StartRow+int32(ref.EffectiveNumRows) > d.MarginBottom {
			clippedRows := ref.StartRow + int32(ref.EffectiveNumRows) - d.MarginBottom
			clipAmt := cell.Height * int(clippedRows)
			if ref.SrcHeight <= clipAmt {
				return true
			}
			ref.SrcHeight -= clipAmt
			ref.EffectiveNumRows -= int(clippedRows)
			updateSrcRect(ref, img)
		}
		return refOutsideRegion(ref, d.MarginTop, d.MarginBottom)
	}
}

// scrollImages shifts every placement's start_row by d.Amt, removing
// whatever scrolls off per §4.4.
func (m *GraphicsManager) scrollImages(d *ScrollData, cell CellPixelSize) {
	if len(m.Images) == 0 {
		return
	}
	m.layersDirty = true
	if d.HasMargins {
		m.modifyRefs(scrollMarginsFilter(d, cell), true)
	} else {
		m.modifyRefs(scrollFilter(d), true)
	}
}

// clear removes placements, either only those whose rows still reach the
// visible screen (all=false) or unconditionally (all=true).
func (m *GraphicsManager) clear(all bool) {
	if all {
		m.filterRefs(func(ref *ImageRef, img *Image) bool { return true }, true, false)
	} else {
		m.filterRefs(func(ref *ImageRef, img *Image) bool { return clearFilter(ref) }, true, false)
	}
}

// rescale reclamps every placement's cell offsets and recomputes effective
// spans after the host's cell pixel geometry changes.
func (m *GraphicsManager) rescale(cell CellPixelSize) {
	m.layersDirty = true
	for i := len(m.Images) - 1; i >= 0; i-- {
		img := m.Images[i]
		for j := len(img.Refs) - 1; j >= 0; j-- {
			ref := img.Refs[j]
			ref.CellXOffset = minInt(ref.CellXOffset, cell.Width-1)
			ref.CellYOffset = minInt(ref.CellYOffset, cell.Height-1)
			updateDestSpan(ref, ref.NumCols, ref.NumRows, cell)
		}
	}
}
