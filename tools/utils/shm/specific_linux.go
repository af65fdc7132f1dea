// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>
//go:build linux

package shm

import (
	"fmt"
)

var _ = fmt.Print

// On Linux POSIX shared memory objects are just files on the tmpfs mounted
// at /dev/shm, so we implement them with plain file operations rather than
// the shm_open()/shm_unlink() syscalls used on BSD/macOS.
const SHM_DIR = "/dev/shm"
const SHM_REQUIRED_PREFIX = ""
const SHM_NAME_MAX = 255
