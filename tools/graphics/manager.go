// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package graphics

import "time"

// ScreenSize is the host's current pixel viewport, needed only to project
// placements into NDC space during compositing.
type ScreenSize struct {
	Width, Height int
}

// Response is the dispatcher's structured reply to one command; the host's
// escape-sequence writer turns it into wire bytes, so this package never
// builds the "_G...\x1b\\" string itself.
type Response struct {
	Id          uint32
	ImageNumber uint32
	PlacementId uint32
	Err         *Error
}

func (r *Response) ok() bool { return r.Err == nil }

// ShouldSend applies the quiet grammar: 0 always responds, 1 suppresses a
// success response, 2 suppresses every response.
func (r *Response) ShouldSend(q Quiet) bool {
	switch q {
	case QuietAlways:
		return false
	case QuietOnSuccess:
		return !r.ok()
	default:
		return true
	}
}

// GraphicsManager is the single-threaded, cooperative core owning every
// Image, its placements, render data, and storage accounting for one
// terminal screen.
type GraphicsManager struct {
	Images     []*Image
	RenderData []RenderData
	Limits     Limits

	Uploader  Uploader
	ColdStore ColdStore
	Unlinker  TempFileUnlinker
	SendToGPU bool

	layersDirty       bool
	storageUsed       int64
	internalIdCounter uint64
	// loadingImgId identifies the image mid chunked-transfer by internal_id
	// rather than by a raw *Image pointer, so a trim pass that removes it
	// out from under a later continuation chunk is detectable (EILSEQ)
	// instead of silently dereferencing a stale pointer.
	loadingImgId    uint64
	loadingCmd      *Command
	lastInitCommand *Command
	scrolledBy      int32
}

func (m *GraphicsManager) nextInternalId() uint64 {
	m.internalIdCounter++
	return m.internalIdCounter
}

// Dispatch routes one parsed command (plus, for add/query commands, its raw
// payload bytes) through the appropriate handler and returns a response for
// every command, a partial chunk included. It does not apply the quiet
// level; the host decides whether to relay the response via ShouldSend.
func (m *GraphicsManager) Dispatch(cmd *Command, payload []byte, cursor *Cursor, cell CellPixelSize) *Response {
	if cmd.Id != 0 && cmd.ImageNumber != 0 {
		return &Response{Id: cmd.Id, ImageNumber: cmd.ImageNumber, Err: newError(EINVAL, "Must not specify both image id and image number")}
	}
	switch cmd.Action {
	case ActionAdd, ActionAddAndDisplay:
		return m.handleAdd(cmd, payload, cursor, cell)
	case ActionDisplay:
		id, err := m.put(cmd, cursor, cell, nil)
		return &Response{Id: id, ImageNumber: cmd.ImageNumber, PlacementId: cmd.PlacementId, Err: asGraphicsError(err)}
	case ActionDelete:
		m.handleDelete(cmd, cursor)
		return &Response{Id: cmd.Id, ImageNumber: cmd.ImageNumber}
	case ActionQuery:
		return m.handleQuery(cmd, payload)
	default:
		return &Response{Err: newError(EINVAL, "unknown action")}
	}
}

func asGraphicsError(err error) *Error {
	if err == nil {
		return nil
	}
	if ge, ok := err.(*Error); ok {
		return ge
	}
	return wrapError(EINVAL, err, "%v", err)
}

// handleQuery runs a full add without ever retaining or uploading the
// image: a client probe to check whether the terminal supports a given
// format/compression/transmission combination.
func (m *GraphicsManager) handleQuery(cmd *Command, payload []byte) *Response {
	img := &Image{InternalId: m.nextInternalId(), ClientId: cmd.Id, Width: cmd.DataWidth, Height: cmd.DataHeight}
	if err := m.assemble(img, cmd, payload); err != nil {
		return &Response{Id: cmd.Id, Err: asGraphicsError(err)}
	}
	if _, err := decode(img, cmd.Format, cmd.Compressed); err != nil {
		return &Response{Id: cmd.Id, Err: asGraphicsError(err)}
	}
	img.destroy(nil)
	return &Response{Id: cmd.Id}
}

// findExistingForAdd resolves the image an add command targets when it is
// not a chunk continuation: a nonzero client id names an existing image
// whose data is being replaced in place.
func (m *GraphicsManager) findExistingForAdd(cmd *Command) *Image {
	if cmd.Id == 0 {
		return nil
	}
	return m.imgByClientId(cmd.Id)
}

// trimForAdd removes every image with no data fully loaded yet, or that is
// both anonymous and unreferenced, at the start of each new (non-
// continuation) add command, matching the source's add_trim_predicate pass
// so stale partial loads and unreferenced anonymous images never accumulate.
func (m *GraphicsManager) trimForAdd() {
	for i := len(m.Images) - 1; i >= 0; i-- {
		img := m.Images[i]
		if !img.DataLoaded || (img.ClientId == 0 && img.refcnt() == 0) {
			m.removeImageAt(i)
		}
	}
}

// handleAdd implements the transmission/add state machine: chunk
// accumulation across repeated More=true commands, then decode, storage
// accounting, optional GPU upload, eviction, and (for the "T" action) an
// immediate put at the cursor.
func (m *GraphicsManager) handleAdd(cmd *Command, payload []byte, cursor *Cursor, cell CellPixelSize) *Response {
	var img *Image
	// A continuation chunk (loadingImgId != 0) carries no control data of
	// its own beyond the payload; every decode/put/quiet decision uses the
	// command that opened the transfer, matching the protocol's convention
	// that format/compression/placement keys are only meaningful on it.
	ctrl := cmd
	if m.loadingImgId != 0 {
		img = m.imgByInternalId(m.loadingImgId)
		if img == nil {
			m.loadingImgId = 0
			m.loadingCmd = nil
			return &Response{Id: cmd.Id, ImageNumber: cmd.ImageNumber, Err: newError(EILSEQ, "received more data for an image that was discarded")}
		}
		ctrl = m.loadingCmd
	} else {
		m.trimForAdd()
		if existing := m.findExistingForAdd(cmd); existing != nil {
			existing.LoadData.reset()
			existing.DataLoaded = false
			existing.Width, existing.Height = cmd.DataWidth, cmd.DataHeight
			existing.ClientNumber = cmd.ImageNumber
			img = existing
		} else {
			clientId := cmd.Id
			if clientId == 0 && cmd.ImageNumber != 0 {
				clientId = m.freeClientId()
			}
			img = &Image{
				InternalId:   m.nextInternalId(),
				ClientId:     clientId,
				ClientNumber: cmd.ImageNumber,
				Width:        cmd.DataWidth,
				Height:       cmd.DataHeight,
			}
			m.Images = append(m.Images, img)
		}
		m.loadingCmd = cmd
	}

	if ctrl.Format == FormatPNG && ctrl.DataSize > maxDirectDataSize {
		m.loadingImgId = 0
		m.removeImageIfUseless(img)
		return &Response{Id: img.ClientId, ImageNumber: img.ClientNumber, Err: newError(EINVAL, "PNG data size too large")}
	}

	if err := m.assemble(img, ctrl, payload); err != nil {
		m.loadingImgId = 0
		return &Response{Id: img.ClientId, ImageNumber: img.ClientNumber, Err: asGraphicsError(err)}
	}

	if cmd.More {
		m.loadingImgId = img.InternalId
		return &Response{Id: img.ClientId, ImageNumber: img.ClientNumber}
	}
	m.loadingImgId = 0

	bitmap, err := decode(img, ctrl.Format, ctrl.Compressed)
	if err != nil {
		m.removeImageIfUseless(img)
		return &Response{Id: img.ClientId, ImageNumber: img.ClientNumber, Err: asGraphicsError(err)}
	}

	img.Atime = time.Now()
	img.DataLoaded = true
	img.UsedStorage = int64(len(bitmap.Pixels))
	m.storageUsed += img.UsedStorage

	if m.SendToGPU && m.Uploader != nil {
		texId, uerr := m.Uploader.UploadTexture(bitmap.Pixels, bitmap.Width, bitmap.Height, bitmap.IsOpaque, bitmap.Is4ByteAligned)
		if uerr != nil {
			m.storageUsed -= img.UsedStorage
			m.removeImageIfUseless(img)
			return &Response{Id: img.ClientId, ImageNumber: img.ClientNumber, Err: asGraphicsError(uerr)}
		}
		img.TextureId = texId
		if texId != 0 {
			img.LoadData.reset()
		}
	}

	resp := &Response{Id: img.ClientId, ImageNumber: img.ClientNumber}
	if ctrl.Action == ActionAddAndDisplay {
		id, perr := m.put(ctrl, cursor, cell, img)
		resp.Id = id
		resp.PlacementId = ctrl.PlacementId
		resp.Err = asGraphicsError(perr)
	}

	m.applyStorageQuota(img.InternalId)
	return resp
}

// removeImageIfUseless drops img from the manager, whatever its client id,
// when a failed add left it with no placements.
func (m *GraphicsManager) removeImageIfUseless(img *Image) {
	if img.refcnt() > 0 {
		return
	}
	for i, other := range m.Images {
		if other == img {
			m.removeImageAt(i)
			return
		}
	}
}

// assemble routes a command's payload chunk into the image's load buffer
// per its transmission type, per §4.2.
func (m *GraphicsManager) assemble(img *Image, cmd *Command, payload []byte) error {
	switch cmd.TransmissionType {
	case TransmissionDirect:
		ld := &img.LoadData
		if ld.Buf == nil && ld.MappedFile == nil {
			if err := allocateDirectBuffer(ld, cmd.DataSize, cmd.Compressed); err != nil {
				return err
			}
			ld.DataSize = cmd.DataSize
		}
		return appendDirect(ld, payload)
	default:
		filename := string(payload)
		mapped, err := openMapped(cmd.TransmissionType, filename, cmd.DataSize, cmd.DataOffset, m.Unlinker)
		if err != nil {
			return err
		}
		img.LoadData.setOwnedBuf(nil)
		img.LoadData.MappedFile = mapped
		img.LoadData.DataSize = cmd.DataSize
		if img.LoadData.DataSize == 0 {
			img.LoadData.DataSize = int64(len(mapped.Slice()))
		}
		return nil
	}
}

// Rescale re-clamps every placement after the host's cell pixel geometry
// changes (a font size change, typically).
func (m *GraphicsManager) Rescale(cell CellPixelSize) {
	m.rescale(cell)
}

// Scroll shifts every placement's row per d, reaping whatever scrolls out
// of the scroll region.
func (m *GraphicsManager) Scroll(d *ScrollData, cell CellPixelSize) {
	m.scrollImages(d, cell)
}

// Clear removes every placement; onlyOnScreen restricts it to those whose
// rows still reach the visible screen, leaving placements already scrolled
// off into scrollback in place.
func (m *GraphicsManager) Clear(onlyOnScreen bool) {
	m.clear(!onlyOnScreen)
}

// SetScrolledBy records the host's current scrollback offset; a change
// flips layersDirty so the next UpdateLayers reprojects every placement at
// its new effective row, per §4.5.
func (m *GraphicsManager) SetScrolledBy(amt int32) {
	if amt != m.scrolledBy {
		m.scrolledBy = amt
		m.layersDirty = true
	}
}

// UpdateLayers rebuilds RenderData when dirty and returns it.
func (m *GraphicsManager) UpdateLayers(cell CellPixelSize, screen ScreenSize) []RenderData {
	m.updateLayers(cell, screen.Width, screen.Height)
	return m.RenderData
}
