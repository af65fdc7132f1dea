// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package utils

import (
	"crypto/rand"
	"encoding/base32"
	not_rand "math/rand/v2"
	"strconv"

	"golang.org/x/exp/constraints"
)

func Max[T constraints.Ordered](a T, items ...T) (ans T) {
	ans = a
	for _, x := range items {
		if x > ans {
			ans = x
		}
	}
	return
}

func Min[T constraints.Ordered](a T, items ...T) (ans T) {
	ans = a
	for _, x := range items {
		if x < ans {
			ans = x
		}
	}
	return
}

func Filter[T any](s []T, f func(x T) bool) []T {
	ans := make([]T, 0, len(s))
	for _, x := range s {
		if f(x) {
			ans = append(ans, x)
		}
	}
	return ans
}

func Values[K comparable, V any](m map[K]V) []V {
	ans := make([]V, 0, len(m))
	for _, v := range m {
		ans = append(ans, v)
	}
	return ans
}

func Keys[K comparable, V any](m map[K]V) []K {
	ans := make([]K, 0, len(m))
	for k := range m {
		ans = append(ans, k)
	}
	return ans
}

// RandomFilename returns a random, filesystem-safe basename component, used
// for temp file/shm segment names that must not collide across concurrent
// transmissions.
func RandomFilename() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatUint(uint64(not_rand.Uint32()), 16)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b)
}
