// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pack

import (
	"bytes"
	"encoding/gob"
	"io"
	"sort"
	"sync"

	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
)

type pending struct {
	size       int64
	compressed []byte
}

// Builder assembles a pack. Packs are versioned and cannot be appended
// to once written. Entries are compressed as they are added and the
// whole pack is laid out by WriteTo.
type Builder struct {
	header Header

	mutex   sync.Mutex
	entries map[string]pending
}

// NewBuilder creates a Builder. The Index of header is ignored,
// it is filled in by WriteTo.
func NewBuilder(header Header) *Builder {
	header.Index = nil
	return &Builder{
		header:  header,
		entries: make(map[string]pending),
	}
}

// Add compresses everything read from r under name. Blocks until
// compression is done and is safe to call from several goroutines.
func (b *Builder) Add(name string, r io.Reader) error {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	size, err := io.Copy(w, r)
	if err != nil {
		return errors.Wrapf(err, "compress %s", name)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "compress %s", name)
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if _, ok := b.entries[name]; ok {
		return errors.Wrap(ErrExists, name)
	}
	b.entries[name] = pending{size: size, compressed: buf.Bytes()}
	return nil
}

// Len returns the number of entries added so far.
func (b *Builder) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.entries)
}

// WriteTo writes the pack to w. Entries are stored in name order.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	names := make([]string, 0, len(b.entries))
	for name := range b.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	header := b.header
	var offset int64
	for _, name := range names {
		e := b.entries[name]
		header.Index = append(header.Index, Entry{
			Name:           name,
			Offset:         offset,
			Size:           e.size,
			CompressedSize: int64(len(e.compressed)),
		})
		offset += int64(len(e.compressed))
	}

	var rawHeader bytes.Buffer
	if err := gob.NewEncoder(&rawHeader).Encode(header); err != nil {
		return 0, errors.Wrap(err, "encode header")
	}

	var written int64
	write := func(p []byte) error {
		n, err := w.Write(p)
		written += int64(n)
		return err
	}
	if err := write(magic[:]); err != nil {
		return written, err
	}
	if err := write(putSize(int64(rawHeader.Len()))); err != nil {
		return written, err
	}
	if err := write(rawHeader.Bytes()); err != nil {
		return written, err
	}
	for _, name := range names {
		if err := write(b.entries[name].compressed); err != nil {
			return written, errors.Wrapf(err, "write %s", name)
		}
	}
	return written, nil
}
