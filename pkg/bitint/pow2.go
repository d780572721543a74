// SPDX-License-Identifier: MIT
/*
Package bitint provides power-of-2 helpers for FFT and buffer sizing.
All operations are allocation-free and constant time.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size. Powers of 2 map to
// themselves; zero and negatives map to 1. The size-1 before Len is what
// keeps exact powers from doubling.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	if ^uint(0)>>63 == 0 {
		// 64-bit platforms (where int is 64-bit)
		return int(1 << (bits.Len64(uint64(size - 1))))
	}
	return int(1 << (bits.Len32(uint32(size - 1))))
}

func NextPowerOfTwo32(size int32) int32 {
	if size <= 0 {
		return 1
	}
	return int32(1 << (bits.Len32(uint32(size - 1))))
}

func NextPowerOfTwo64(size int64) int64 {
	if size <= 0 {
		return 1
	}
	return int64(1 << (bits.Len64(uint64(size - 1))))
}

// IsPowerOfTwo reports whether n is a positive power of 2. Powers of 2
// have exactly one bit set, so n&(n-1) clears to zero only for them.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

func IsPowerOfTwo32(n int32) bool {
	return n > 0 && (n&(n-1)) == 0
}

func IsPowerOfTwo64(n int64) bool {
	return n > 0 && (n&(n-1)) == 0
}
