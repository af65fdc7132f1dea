// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>
//go:build linux || netbsd

package shm

import (
	"fmt"
	"io"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

var _ = fmt.Print

// file_mmap backs an MMap with a plain file, used on platforms (linux,
// netbsd) where POSIX shared memory segments live on a tmpfs and can be
// manipulated with ordinary file syscalls instead of shm_open()/shm_unlink().
type file_mmap struct {
	f        *os.File
	pos      int64
	region   []byte
	unlinked bool
}

func file_mmap_open(f *os.File, size uint64, access AccessFlags, truncate bool) (MMap, error) {
	if truncate {
		if err := truncate_or_unlink(f, size, os.Remove); err != nil {
			return nil, fmt.Errorf("truncate failed with error: %w", err)
		}
	}
	region, err := mmap(int(size), access, int(f.Fd()), 0)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("mmap failed with error: %w", err)
	}
	return &file_mmap{f: f, region: region}, nil
}

// file_mmap_open_at maps an already-open read-only file at the given byte
// offset, without truncating it. Used for pre-existing payload files handed
// to us by the client (transmission types f/t/s) rather than ones we create.
func file_mmap_open_at(f *os.File, size uint64, offset int64) (MMap, error) {
	region, err := mmap(int(size), READ, int(f.Fd()), offset)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap failed with error: %w", err)
	}
	return &file_mmap{f: f, region: region}, nil
}

func (self *file_mmap) Name() string { return self.f.Name() }

func (self *file_mmap) Stat() (fs.FileInfo, error) { return self.f.Stat() }

func (self *file_mmap) Flush() error { return unix.Msync(self.region, unix.MS_SYNC) }

func (self *file_mmap) Slice() []byte { return self.region }

func (self *file_mmap) Close() (err error) {
	if self.region != nil {
		self.f.Close()
		munmap(self.region)
		self.region = nil
	}
	return
}

func (self *file_mmap) Unlink() (err error) {
	if self.unlinked {
		return nil
	}
	self.unlinked = true
	return os.Remove(self.Name())
}

func (self *file_mmap) Seek(offset int64, whence int) (ret int64, err error) {
	switch whence {
	case io.SeekStart:
		self.pos = offset
	case io.SeekEnd:
		self.pos = int64(len(self.region)) + offset
	case io.SeekCurrent:
		self.pos += offset
	}
	return self.pos, nil
}

func (self *file_mmap) Read(b []byte) (n int, err error) { return Read(self, b) }

func (self *file_mmap) Write(b []byte) (n int, err error) { return Write(self, b) }

func (self *file_mmap) IsFileSystemBacked() bool { return true }
func (self *file_mmap) FileSystemName() string   { return self.f.Name() }
