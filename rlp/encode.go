// Package rlp implements the Recursive Length Prefix serialization used for
// trie nodes and account bodies. It exposes an append-style writer API and a
// stream reader over length-prefixed items.
//
// The encoding rules are those of the Ethereum Yellow Paper, Appendix B:
// a single byte below 0x80 encodes itself; longer strings carry a 0x80- or
// 0xb7-based length prefix; lists carry a 0xc0- or 0xf7-based prefix over
// the concatenation of their encoded items.
package rlp

// EmptyString is the encoding of the empty byte string.
const EmptyString = 0x80

// EmptyList is the encoding of the empty list.
const EmptyList = 0xc0

// AppendString appends the encoding of data as a string item to dst and
// returns the extended buffer.
func AppendString(dst, data []byte) []byte {
	if len(data) == 1 && data[0] < 0x80 {
		return append(dst, data[0])
	}
	dst = appendStringHeader(dst, len(data))
	return append(dst, data...)
}

// AppendUint appends the encoding of i as a minimal big-endian string item.
func AppendUint(dst []byte, i uint64) []byte {
	switch {
	case i == 0:
		return append(dst, EmptyString)
	case i < 0x80:
		return append(dst, byte(i))
	default:
		return AppendString(dst, putUintBigEndian(i))
	}
}

// AppendRaw appends an already-encoded item verbatim.
func AppendRaw(dst, item []byte) []byte {
	return append(dst, item...)
}

// WrapList prefixes payload, the concatenation of encoded items, with a
// list header and returns the complete list encoding.
func WrapList(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+9)
	out = appendListHeader(out, len(payload))
	return append(out, payload...)
}

// AppendList appends a list header for a payload of the given length.
// The caller appends the payload items afterwards.
func AppendList(dst []byte, payloadLen int) []byte {
	return appendListHeader(dst, payloadLen)
}

// StringSize returns the encoded size of data as a string item,
// including its header. A single-byte string below 0x80 has size 1.
func StringSize(data []byte) int {
	if len(data) == 1 && data[0] < 0x80 {
		return 1
	}
	return headerSize(len(data)) + len(data)
}

// ListSize returns the encoded size of a list with the given payload length,
// including its header.
func ListSize(payloadLen int) int {
	return headerSize(payloadLen) + payloadLen
}

func appendStringHeader(dst []byte, n int) []byte {
	if n <= 55 {
		return append(dst, 0x80+byte(n))
	}
	lenBytes := putUintBigEndian(uint64(n))
	dst = append(dst, 0xb7+byte(len(lenBytes)))
	return append(dst, lenBytes...)
}

func appendListHeader(dst []byte, n int) []byte {
	if n <= 55 {
		return append(dst, 0xc0+byte(n))
	}
	lenBytes := putUintBigEndian(uint64(n))
	dst = append(dst, 0xf7+byte(len(lenBytes)))
	return append(dst, lenBytes...)
}

func headerSize(n int) int {
	if n <= 55 {
		return 1
	}
	return 1 + len(putUintBigEndian(uint64(n)))
}

// putUintBigEndian returns the minimal big-endian representation of i
// with no leading zero bytes.
func putUintBigEndian(i uint64) []byte {
	var buf [8]byte
	n := 0
	for shift := 56; shift >= 0; shift -= 8 {
		b := byte(i >> shift)
		if n == 0 && b == 0 {
			continue
		}
		buf[n] = b
		n++
	}
	return buf[:n:n]
}
