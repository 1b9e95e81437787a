package stackslot

import "math/bits"

// bitset 以槽 ID 为下标的定长位集
type bitset struct {
	words []uint64
}

func newBitset(n int) bitset {
	return bitset{words: make([]uint64, (n+63)/64)}
}

func (b bitset) has(i int) bool {
	return b.words[i/64]&(1<<uint(i%64)) != 0
}

func (b bitset) set(i int) {
	b.words[i/64] |= 1 << uint(i%64)
}

func (b bitset) clear(i int) {
	b.words[i/64] &^= 1 << uint(i%64)
}

// union b |= o
func (b bitset) union(o bitset) {
	for i, w := range o.words {
		b.words[i] |= w
	}
}

func (b bitset) equal(o bitset) bool {
	if len(b.words) != len(o.words) {
		return false
	}
	for i, w := range b.words {
		if o.words[i] != w {
			return false
		}
	}
	return true
}

func (b bitset) clone() bitset {
	c := bitset{words: make([]uint64, len(b.words))}
	copy(c.words, b.words)
	return c
}

func (b bitset) count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// scan 按升序访问所有置位的下标
func (b bitset) scan(f func(int)) {
	for i, w := range b.words {
		for w != 0 {
			n := bits.TrailingZeros64(w)
			f(i*64 + n)
			w &= w - 1
		}
	}
}

// slice 返回所有置位下标
func (b bitset) slice() []int {
	var out []int
	b.scan(func(i int) { out = append(out, i) })
	return out
}
