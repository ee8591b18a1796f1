// Package bitmap manipulates presence bitmaps stored inline in page bytes.
// Bit i lives in byte i/8 at position i%8 (LSB first). The helpers never
// own memory; they operate on a slice of an existing page buffer.
package bitmap

import "math/bits"

// Size returns the number of bytes needed for n bits.
func Size(n int) int {
	return (n + 7) / 8
}

func GetBit(bm []byte, i int) bool {
	return bm[i>>3]&(1<<(uint(i)&7)) != 0
}

// SetBit sets bit i and returns its previous value.
func SetBit(bm []byte, i int, on bool) bool {
	mask := byte(1) << (uint(i) & 7)
	prev := bm[i>>3]&mask != 0
	if on {
		bm[i>>3] |= mask
	} else {
		bm[i>>3] &^= mask
	}
	return prev
}

// FindFirst returns the first index in [start, n) whose bit equals value,
// or n when there is none.
func FindFirst(bm []byte, n, start int, value bool) int {
	if start < 0 {
		start = 0
	}
	// a byte with no candidate bit can be skipped whole
	skip := byte(0x00)
	if !value {
		skip = 0xff
	}
	for i := start; i < n; {
		if i&7 == 0 && i+8 <= n && bm[i>>3] == skip {
			i += 8
			continue
		}
		if GetBit(bm, i) == value {
			return i
		}
		i++
	}
	return n
}

// Count returns the number of set bits among the first n.
func Count(bm []byte, n int) int {
	full := n >> 3
	c := 0
	for _, b := range bm[:full] {
		c += bits.OnesCount8(b)
	}
	for i := full << 3; i < n; i++ {
		if GetBit(bm, i) {
			c++
		}
	}
	return c
}
