// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pack implements an lz4 backed archive for shipping compiled
// shaders. The archive itself is not compressed. Every entry is
// compressed on its own and the index is stored up front, so a single
// entry can be located and decompressed without touching the rest.
// Archives are meant to be memory mapped and can be read concurrently.
//
// Layout:
//
//	magic       4 bytes  "VKP\x00"
//	header size 8 bytes  little endian
//	header      gob encoded Header
//	data        compressed entries, offsets relative to the end of the header
package pack

import (
	"encoding/binary"
	"errors"
)

// Package errors
var (
	ErrFormat   = errors.New("corrupted or not a shader pack")
	ErrNotFound = errors.New("no such entry in pack")
	ErrExists   = errors.New("entry already added")
)

// Sizes of the fixed part of the file.
const (
	MagicLength      = 4
	HeaderSizeLength = 8
)

var magic = [MagicLength]byte{'V', 'K', 'P', '\x00'}

// Entry describes one file in the index.
type Entry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
}

// Header is the pack header.
type Header struct {
	Author      string
	DateCreated int64
	Version     int64
	Index       []Entry
}

func putSize(n int64) []byte {
	b := make([]byte, HeaderSizeLength)
	binary.LittleEndian.PutUint64(b, uint64(n))
	return b
}

func readSize(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b))
}
