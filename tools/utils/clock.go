// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package utils

import "time"

// Monotonic returns a timestamp suitable for LRU age comparisons (img.atime).
// It never goes backwards, unlike the wall clock.
func Monotonic() time.Time {
	t, err := MonotonicRaw()
	if err != nil {
		return time.Now()
	}
	return t
}
