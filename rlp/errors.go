package rlp

import "errors"

var (
	// ErrUnexpectedEOF is returned when an item header promises more bytes
	// than the input contains.
	ErrUnexpectedEOF = errors.New("rlp: unexpected end of input")

	// ErrExpectedString is returned when a list item is found where a
	// string item is required.
	ErrExpectedString = errors.New("rlp: expected string item, got list")

	// ErrExpectedList is returned when a string item is found where a
	// list item is required.
	ErrExpectedList = errors.New("rlp: expected list item, got string")

	// ErrCanonical is returned for non-canonical encodings: a length
	// prefix with leading zeros, a long form used where the short form
	// would fit, or a single byte below 0x80 wrapped in a string header.
	ErrCanonical = errors.New("rlp: non-canonical encoding")

	// ErrUintOverflow is returned when an integer item does not fit in
	// a uint64.
	ErrUintOverflow = errors.New("rlp: uint overflow")
)
