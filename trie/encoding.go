package trie

// Hex-prefix (HP) encoding as specified in the Ethereum Yellow Paper,
// Appendix C.
//
// Keys are expanded to nibble sequences, high nibble first. A nibble path is
// encoded with a prefix byte that carries both the parity of the path length
// and a flag distinguishing leaf paths from extension paths:
//
//	prefix = (leaf << 5) | (odd << 4) | (odd ? first_nibble : 0)
//
// The two high bits of the prefix are reserved and must be zero.

import "sync"

// maxStackNibbles is the nibble count covered by the caller's stack buffer:
// 64 nibbles correspond to a 32-byte key, the common case for hashed state
// and storage keys. Longer keys borrow a pooled buffer.
const maxStackNibbles = 64

// nibblePool recycles nibble buffers for keys longer than maxStackNibbles.
var nibblePool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 4*maxStackNibbles)
		return &b
	},
}

// appendNibbles appends the nibble expansion of key to dst, high nibble of
// each byte first.
func appendNibbles(dst, key []byte) []byte {
	for _, b := range key {
		dst = append(dst, b>>4, b&0x0f)
	}
	return dst
}

// keyNibbles expands key into a nibble buffer. Keys that fit use the
// caller-provided stack buffer; longer keys use a pooled buffer that must be
// returned with releaseNibbles. The returned slice must not be retained past
// the current operation.
func keyNibbles(key []byte, stack *[maxStackNibbles]byte) (nibbles []byte, pooled *[]byte) {
	if 2*len(key) <= maxStackNibbles {
		return appendNibbles(stack[:0], key), nil
	}
	bufp := nibblePool.Get().(*[]byte)
	*bufp = appendNibbles((*bufp)[:0], key)
	return *bufp, bufp
}

// releaseNibbles returns a pooled nibble buffer. It is a no-op for stack
// buffers.
func releaseNibbles(pooled *[]byte) {
	if pooled != nil {
		nibblePool.Put(pooled)
	}
}

// nibblesToKey packs an even-length nibble sequence back into bytes.
func nibblesToKey(nibbles []byte) []byte {
	if len(nibbles)%2 != 0 {
		panic("trie: odd nibble count in key")
	}
	key := make([]byte, len(nibbles)/2)
	for i := 0; i < len(key); i++ {
		key[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return key
}

// hexPrefixEncode returns the compact encoding of a nibble path with the
// given leaf flag.
func hexPrefixEncode(path []byte, isLeaf bool) []byte {
	buf := make([]byte, len(path)/2+1)
	if isLeaf {
		buf[0] = 1 << 5
	}
	if len(path)%2 == 1 {
		buf[0] |= 1<<4 | path[0]
		path = path[1:]
	}
	for i := 0; i < len(path); i += 2 {
		buf[i/2+1] = path[i]<<4 | path[i+1]
	}
	return buf
}

// hexPrefixDecode parses a compact path encoding back into a nibble path
// and a leaf flag. It fails with ErrMalformedPath when the reserved high
// bits of the prefix are set.
func hexPrefixDecode(data []byte) (path []byte, isLeaf bool, err error) {
	if len(data) == 0 {
		return nil, false, ErrMalformedPath
	}
	prefix := data[0]
	if prefix&0xc0 != 0 {
		return nil, false, ErrMalformedPath
	}
	isLeaf = prefix&(1<<5) != 0
	odd := prefix&(1<<4) != 0

	n := 2 * (len(data) - 1)
	if odd {
		n++
	}
	path = make([]byte, 0, n)
	if odd {
		path = append(path, prefix&0x0f)
	}
	path = appendNibbles(path, data[1:])
	return path, isLeaf, nil
}

// prefixLen returns the length of the common prefix of a and b.
func prefixLen(a, b []byte) int {
	length := len(a)
	if len(b) < length {
		length = len(b)
	}
	for i := 0; i < length; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return length
}
