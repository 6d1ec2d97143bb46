package rlp

// Kind identifies the shape of the next item in a Reader.
type Kind byte

const (
	// KindString is a byte string item (including single bytes).
	KindString Kind = iota
	// KindList is a list item.
	KindList
)

// Reader consumes length-prefixed items from an encoded byte sequence.
// It never copies the input: all returned slices alias it.
type Reader struct {
	data []byte
	pos  int
}

// NewReader returns a Reader positioned at the first item of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// More reports whether any input remains.
func (r *Reader) More() bool {
	return r.pos < len(r.data)
}

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// PeekKind reports the kind of the next item without consuming it.
func (r *Reader) PeekKind() (Kind, error) {
	if !r.More() {
		return 0, ErrUnexpectedEOF
	}
	if r.data[r.pos] >= 0xc0 {
		return KindList, nil
	}
	return KindString, nil
}

// PeekSize returns the total encoded size of the next item, header included,
// without consuming it.
func (r *Reader) PeekSize() (int, error) {
	_, payloadLen, headerLen, err := r.peekHeader()
	if err != nil {
		return 0, err
	}
	return headerLen + payloadLen, nil
}

// ReadBytes consumes the next item, which must be a string, and returns its
// content without the header.
func (r *Reader) ReadBytes() ([]byte, error) {
	kind, payloadLen, headerLen, err := r.peekHeader()
	if err != nil {
		return nil, err
	}
	if kind != KindString {
		return nil, ErrExpectedString
	}
	content := r.data[r.pos+headerLen : r.pos+headerLen+payloadLen]
	r.pos += headerLen + payloadLen
	return content, nil
}

// ReadUint consumes the next item, which must be a string of at most eight
// bytes with no leading zeros, and returns it as a big-endian integer.
func (r *Reader) ReadUint() (uint64, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return 0, err
	}
	if len(b) > 8 {
		return 0, ErrUintOverflow
	}
	if len(b) > 1 && b[0] == 0 {
		return 0, ErrCanonical
	}
	var u uint64
	for _, c := range b {
		u = u<<8 | uint64(c)
	}
	return u, nil
}

// ReadRaw consumes the next item and returns it verbatim, header included.
// Both string and list items are accepted.
func (r *Reader) ReadRaw() ([]byte, error) {
	_, payloadLen, headerLen, err := r.peekHeader()
	if err != nil {
		return nil, err
	}
	raw := r.data[r.pos : r.pos+headerLen+payloadLen]
	r.pos += headerLen + payloadLen
	return raw, nil
}

// ReadList consumes the next item, which must be a list, and returns a
// Reader over its payload.
func (r *Reader) ReadList() (*Reader, error) {
	kind, payloadLen, headerLen, err := r.peekHeader()
	if err != nil {
		return nil, err
	}
	if kind != KindList {
		return nil, ErrExpectedList
	}
	payload := r.data[r.pos+headerLen : r.pos+headerLen+payloadLen]
	r.pos += headerLen + payloadLen
	return NewReader(payload), nil
}

// Skip consumes the next item without decoding it.
func (r *Reader) Skip() error {
	_, payloadLen, headerLen, err := r.peekHeader()
	if err != nil {
		return err
	}
	r.pos += headerLen + payloadLen
	return nil
}

// peekHeader parses the header of the next item, returning its kind, the
// payload length, and the header length. The reader position is unchanged.
func (r *Reader) peekHeader() (kind Kind, payloadLen, headerLen int, err error) {
	if !r.More() {
		return 0, 0, 0, ErrUnexpectedEOF
	}
	data := r.data[r.pos:]
	prefix := data[0]
	switch {
	case prefix < 0x80:
		// Single byte encodes itself; the byte is the payload.
		return KindString, 1, 0, nil
	case prefix <= 0xb7:
		payloadLen = int(prefix - 0x80)
		headerLen = 1
		kind = KindString
		if payloadLen == 1 && len(data) > 1 && data[1] < 0x80 {
			return 0, 0, 0, ErrCanonical
		}
	case prefix <= 0xbf:
		lenLen := int(prefix - 0xb7)
		payloadLen, err = parseLength(data, lenLen)
		if err != nil {
			return 0, 0, 0, err
		}
		headerLen = 1 + lenLen
		kind = KindString
	case prefix <= 0xf7:
		payloadLen = int(prefix - 0xc0)
		headerLen = 1
		kind = KindList
	default:
		lenLen := int(prefix - 0xf7)
		payloadLen, err = parseLength(data, lenLen)
		if err != nil {
			return 0, 0, 0, err
		}
		headerLen = 1 + lenLen
		kind = KindList
	}
	if headerLen+payloadLen > len(data) {
		return 0, 0, 0, ErrUnexpectedEOF
	}
	return kind, payloadLen, headerLen, nil
}

// parseLength reads a lenLen-byte big-endian length following the prefix
// byte and checks it for canonical form.
func parseLength(data []byte, lenLen int) (int, error) {
	if 1+lenLen > len(data) {
		return 0, ErrUnexpectedEOF
	}
	if data[1] == 0 {
		return 0, ErrCanonical
	}
	length := 0
	for i := 1; i <= lenLen; i++ {
		length = length<<8 | int(data[i])
	}
	if length <= 55 {
		return 0, ErrCanonical
	}
	return length, nil
}

// SplitList parses data as a single list item and returns its elements.
// String elements are returned as their content; nested list elements are
// returned verbatim, header included, so callers can recurse into them.
func SplitList(data []byte) ([][]byte, error) {
	r := NewReader(data)
	inner, err := r.ReadList()
	if err != nil {
		return nil, err
	}
	if r.More() {
		return nil, ErrCanonical
	}
	var items [][]byte
	for inner.More() {
		kind, err := inner.PeekKind()
		if err != nil {
			return nil, err
		}
		if kind == KindList {
			raw, err := inner.ReadRaw()
			if err != nil {
				return nil, err
			}
			items = append(items, raw)
		} else {
			content, err := inner.ReadBytes()
			if err != nil {
				return nil, err
			}
			items = append(items, content)
		}
	}
	return items, nil
}

// IsList reports whether data begins with a list header.
func IsList(data []byte) bool {
	return len(data) > 0 && data[0] >= 0xc0
}
