// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package graphics

import "fmt"

// Action is the command's verb: add/query/put/delete.
type Action int

const (
	ActionAdd Action = iota
	ActionAddAndDisplay
	ActionQuery
	ActionDisplay
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionAddAndDisplay:
		return "T"
	case ActionQuery:
		return "q"
	case ActionDisplay:
		return "p"
	case ActionDelete:
		return "d"
	default:
		return "t"
	}
}

func ActionFromRune(r rune) (ans Action, err error) {
	switch r {
	case 0, 't':
	case 'T':
		ans = ActionAddAndDisplay
	case 'q':
		ans = ActionQuery
	case 'p':
		ans = ActionDisplay
	case 'd':
		ans = ActionDelete
	default:
		err = fmt.Errorf("not a valid action: %q", r)
	}
	return
}

// TransmissionType is the payload transport.
type TransmissionType int

const (
	TransmissionDirect TransmissionType = iota
	TransmissionFile
	TransmissionTempFile
	TransmissionSharedMemory
)

func (t TransmissionType) String() string {
	switch t {
	case TransmissionFile:
		return "f"
	case TransmissionTempFile:
		return "t"
	case TransmissionSharedMemory:
		return "s"
	default:
		return "d"
	}
}

func TransmissionTypeFromRune(r rune) (ans TransmissionType, err error) {
	switch r {
	case 0, 'd':
	case 'f':
		ans = TransmissionFile
	case 't':
		ans = TransmissionTempFile
	case 's':
		ans = TransmissionSharedMemory
	default:
		err = fmt.Errorf("not a valid transmission type: %q", r)
	}
	return
}

// Format is the pixel encoding of the payload prior to decompression.
type Format int

const (
	FormatRGBA Format = iota
	FormatRGB
	FormatPNG
)

func (f Format) String() string {
	switch f {
	case FormatRGB:
		return "24"
	case FormatPNG:
		return "100"
	default:
		return "32"
	}
}

func FormatFromInt(v int) (ans Format, err error) {
	switch v {
	case 0, 32:
	case 24:
		ans = FormatRGB
	case 100:
		ans = FormatPNG
	default:
		err = fmt.Errorf("not a valid format: %d", v)
	}
	return
}

func (f Format) BytesPerPixel() int {
	if f == FormatRGB {
		return 3
	}
	return 4
}

// Compression is applied to the payload before the format's own decode.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZlib
)

func (c Compression) String() string {
	if c == CompressionZlib {
		return "z"
	}
	return ""
}

func CompressionFromRune(r rune) (ans Compression, err error) {
	switch r {
	case 0:
	case 'z':
		ans = CompressionZlib
	default:
		err = fmt.Errorf("not a valid compression: %q", r)
	}
	return
}

// DeleteAction selects the delete filter; the upper-case variants additionally
// free the image once it has no remaining placements.
type DeleteAction rune

func (d DeleteAction) FreeImages() bool {
	r := rune(d)
	return r >= 'A' && r <= 'Z'
}

func (d DeleteAction) Lower() rune {
	r := rune(d)
	if r >= 'A' && r <= 'Z' {
		return r - 'A' + 'a'
	}
	return r
}

// Quiet is the response suppression level: 0 respond always, 1 suppress OK,
// 2 suppress everything.
type Quiet int

const (
	QuietNever Quiet = iota
	QuietOnSuccess
	QuietAlways
)

// Command is the parsed header of one APC graphics escape, handed to the
// dispatcher together with its payload bytes. It mirrors the field set the
// terminal's escape-sequence parser produces; this package never parses the
// wire format itself.
type Command struct {
	Action           Action
	Id               uint32
	ImageNumber      uint32
	PlacementId      uint32
	DeleteAction     DeleteAction
	TransmissionType TransmissionType
	Format           Format
	Compressed       Compression
	DataWidth        int
	DataHeight       int
	DataSize         int64
	DataOffset       int64
	PayloadSize      int64
	More             bool
	Quiet            Quiet

	XOffset, YOffset int
	Width, Height    int
	NumCells         int
	NumLines         int
	CellXOffset      int
	CellYOffset      int
	ZIndex           int32
}
