// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package graphics

// decodedBitmap is the result of applying compression/format transforms to
// an image's load buffer: the final pixel bytes plus the flags the GPU
// uploader and compositor need.
type decodedBitmap struct {
	Pixels         []byte
	Width, Height  int
	IsOpaque       bool
	Is4ByteAligned bool
}

// rawBytes returns whichever of Buf/MappedFile currently backs the load
// data, mirroring the source's IB macro.
func (ld *LoadData) rawBytes() []byte {
	if ld.Buf != nil {
		return ld.Buf[:ld.BufUsed]
	}
	if ld.MappedFile != nil {
		return ld.MappedFile.Slice()
	}
	return nil
}

// decode applies compression then format transforms to img's load data and
// validates the final pixel size, per §4.3. It does not touch the GPU or
// storage accounting; that is the caller's job (handleAdd in manager.go).
func decode(img *Image, format Format, compressed Compression) (*decodedBitmap, error) {
	ld := &img.LoadData
	needsProcessing := compressed != CompressionNone || format == FormatPNG

	width, height := img.Width, img.Height
	isOpaque := format == FormatRGB
	is4Aligned := format == FormatRGBA || width%4 == 0

	if format == FormatPNG && ld.DataSize > maxDirectDataSize {
		return nil, newError(EINVAL, "PNG data size too large")
	}

	if needsProcessing {
		buf := ld.rawBytes()
		switch compressed {
		case CompressionZlib:
			// The decompressed size is known ahead of time only for raw
			// RGB/RGBA payloads (width*height*bytes_per_pixel); a PNG's
			// decompressed byte count is whatever the client declared in
			// data_sz, since the pixel dimensions aren't known until the
			// PNG stream itself is decoded below.
			expected := ld.DataSize
			if format != FormatPNG {
				expected = int64(width) * int64(height) * int64(format.BytesPerPixel())
			}
			out, err := inflateZlib(buf, expected)
			if err != nil {
				return nil, err
			}
			ld.setOwnedBuf(out)
			ld.BufUsed = len(out)
			ld.BufCapacity = len(out)
			buf = out
		case CompressionNone:
		default:
			return nil, newError(EINVAL, "unknown image compression")
		}
		if format == FormatPNG {
			pixels, w, h, opaque, err := inflatePNG(buf)
			if err != nil {
				return nil, err
			}
			ld.setOwnedBuf(pixels)
			ld.BufUsed = len(pixels)
			ld.BufCapacity = len(pixels)
			ld.DataSize = int64(len(pixels))
			width, height = w, h
			isOpaque = opaque
			is4Aligned = !opaque || w%4 == 0
		}
		ld.Data = ld.Buf
		if int64(ld.BufUsed) < ld.DataSize {
			return nil, newError(ENODATA, "insufficient image data: %d < %d", ld.BufUsed, ld.DataSize)
		}
		ld.closeMappedFile()
	} else {
		raw := ld.rawBytes()
		if int64(len(raw)) < ld.DataSize {
			return nil, newError(ENODATA, "insufficient image data: %d < %d", len(raw), ld.DataSize)
		}
		ld.Data = raw
	}

	if width == 0 || height == 0 {
		return nil, newError(EINVAL, "Zero width/height not allowed")
	}

	requiredSize := int64(width) * int64(height)
	if isOpaque {
		requiredSize *= 3
	} else {
		requiredSize *= 4
	}
	if int64(len(ld.Data)) != requiredSize {
		return nil, newError(EINVAL, "image dimensions: %dx%d do not match data size: %d, expected size: %d",
			width, height, len(ld.Data), requiredSize)
	}

	img.Width, img.Height = width, height
	return &decodedBitmap{Pixels: ld.Data, Width: width, Height: height, IsOpaque: isOpaque, Is4ByteAligned: is4Aligned}, nil
}
