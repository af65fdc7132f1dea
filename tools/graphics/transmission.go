// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package graphics

import (
	"os"

	"github.com/kittygfx/graphicscore/tools/utils/shm"
)

// maxDirectDataSize is the hard cap on an accumulated direct-transmission
// buffer (4e8 bytes in the source).
const maxDirectDataSize = 4 * 100_000_000

const maxTransmissionFilenameLength = 2048

// TempFileUnlinker is the out-of-scope host collaborator that schedules a
// temp file for deletion off the calling thread. When absent the assembler
// unlinks directly, per §4.2.
type TempFileUnlinker interface {
	ScheduleUnlink(path string) error
}

// allocateDirectBuffer sizes the first chunk's buffer: data_sz plus slack
// for a compression header, matching the source's buf_capacity formula.
func allocateDirectBuffer(ld *LoadData, dataSize int64, compressed Compression) error {
	slack := int64(10)
	if compressed != CompressionNone {
		slack = 1024
	}
	capacity := dataSize + slack
	if capacity < 0 || capacity > maxDirectDataSize {
		capacity = maxDirectDataSize
	}
	ld.setOwnedBuf(make([]byte, capacity))
	ld.BufCapacity = int(capacity)
	ld.BufUsed = 0
	return nil
}

// appendDirect appends a chunk's payload to the direct-transmission buffer,
// growing geometrically (doubling, clamped to maxDirectDataSize) when short
// of room, and failing EFBIG once the cap itself is exceeded.
func appendDirect(ld *LoadData, payload []byte) error {
	need := ld.BufUsed + len(payload)
	if ld.BufCapacity-ld.BufUsed < len(payload) {
		if need > maxDirectDataSize {
			return newError(EFBIG, "too much data")
		}
		newCap := 2 * ld.BufCapacity
		if newCap > maxDirectDataSize {
			newCap = maxDirectDataSize
		}
		if newCap < need {
			newCap = need
		}
		grown := make([]byte, newCap)
		copy(grown, ld.Buf[:ld.BufUsed])
		ld.Buf = grown
		ld.BufCapacity = newCap
	}
	copy(ld.Buf[ld.BufUsed:], payload)
	ld.BufUsed += len(payload)
	return nil
}

// openMapped resolves a file/tempfile/shm transmission's filename payload
// to a read-only mapped region of dataSize bytes at dataOffset (or the
// whole file when dataSize is 0), per §4.2.
func openMapped(tt TransmissionType, filename string, dataSize int64, dataOffset int64, unlinker TempFileUnlinker) (shm.MMap, error) {
	if len(filename) > maxTransmissionFilenameLength {
		return nil, newError(EINVAL, "filename too long")
	}
	var mapped shm.MMap
	var err error
	switch tt {
	case TransmissionSharedMemory:
		mapped, err = shm.OpenAt(filename, uint64(dataSize), dataOffset)
	default:
		mapped, err = openFileAt(filename, uint64(dataSize), dataOffset)
	}
	if err != nil {
		return nil, wrapError(EBADF, err, "failed to open file for graphics transmission with error: %v", err)
	}
	switch tt {
	case TransmissionTempFile:
		if unlinker != nil {
			_ = unlinker.ScheduleUnlink(filename)
		} else {
			_ = os.Remove(filename)
		}
	case TransmissionSharedMemory:
		_ = mapped.Unlink()
	}
	return mapped, nil
}

// openFileAt mmaps an ordinary file at the given offset read-only, for the
// 'f' and 't' transmission types (plain files, not POSIX shm segments).
func openFileAt(path string, size uint64, offset int64) (shm.MMap, error) {
	return shm.OpenAt(path, size, offset)
}
