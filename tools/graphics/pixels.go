// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package graphics

import (
	"bytes"
	"image"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/kovidgoyal/imaging"
)

// inflateZlib fully consumes buf into a pre-sized output of exactly
// expectedSize bytes; leftover space or stream errors are EINVAL, mirroring
// inflate_zlib's "avail_out must reach zero" check.
func inflateZlib(buf []byte, expectedSize int64) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(buf))
	if err != nil {
		return nil, wrapError(EINVAL, err, "failed to initialize inflate with error: %v", err)
	}
	defer zr.Close()
	out := make([]byte, expectedSize)
	n, err := io.ReadFull(zr, out)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, wrapError(EINVAL, err, "failed to inflate image data with error: %v", err)
	}
	if int64(n) != expectedSize {
		return nil, newError(EINVAL, "image data size post inflation does not match expected size")
	}
	// Bytes after the end of the zlib stream are ignored, but decompressed
	// output beyond expectedSize is rejected: confirm the stream actually
	// ends here.
	var probe [1]byte
	if _, perr := zr.Read(probe[:]); perr != io.EOF {
		return nil, newError(EINVAL, "image data size post inflation does not match expected size")
	}
	return out, nil
}

// inflatePNG decodes a PNG payload and normalizes it to 8-bit RGB/RGBA,
// overriding width/height/size from the decoded stream the way the source's
// inflate_png does (it always trusts libpng's output dimensions, not the
// command header's hints).
func inflatePNG(buf []byte) (pixels []byte, width, height int, isOpaque bool, err error) {
	img, decErr := imaging.Decode(bytes.NewReader(buf))
	if decErr != nil {
		return nil, 0, 0, false, wrapError(EINVAL, decErr, "failed to decode PNG image with error: %v", decErr)
	}
	b := img.Bounds()
	width, height = b.Dx(), b.Dy()
	isOpaque = isImageOpaque(img)
	if isOpaque {
		pixels = toRGB(img)
	} else {
		pixels = toRGBA(img)
	}
	return pixels, width, height, isOpaque, nil
}

func isImageOpaque(img image.Image) bool {
	type opaquer interface{ Opaque() bool }
	if o, ok := img.(opaquer); ok {
		return o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a != 0xffff {
				return false
			}
		}
	}
	return true
}

func toRGBA(img image.Image) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*4)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			out[i] = byte(r >> 8)
			out[i+1] = byte(g >> 8)
			out[i+2] = byte(bl >> 8)
			out[i+3] = byte(a >> 8)
			i += 4
		}
	}
	return out
}

func toRGB(img image.Image) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*3)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out[i] = byte(r >> 8)
			out[i+1] = byte(g >> 8)
			out[i+2] = byte(bl >> 8)
			i += 3
		}
	}
	return out
}
