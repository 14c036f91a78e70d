// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pack

import (
	"bytes"
	"encoding/gob"
	"io"
	"io/ioutil"
	"sort"

	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// Archive reads entries of a pack. All methods are safe for
// concurrent use as long as the underlying io.ReaderAt is.
type Archive struct {
	reader io.ReaderAt
	closer io.Closer
	header Header
	base   int64
	index  map[string]Entry
}

// Open reads the pack header from r and checks the index
// fits the data when the size of r is known.
func Open(r io.ReaderAt) (*Archive, error) {
	fixed := make([]byte, MagicLength+HeaderSizeLength)
	if err := readFull(r, fixed, 0); err != nil {
		return nil, err
	}
	if !bytes.Equal(fixed[:MagicLength], magic[:]) {
		return nil, ErrFormat
	}

	headerSize := readSize(fixed[MagicLength:])
	if headerSize <= 0 || headerSize > 1<<24 {
		return nil, errors.Wrapf(ErrFormat, "header size %d", headerSize)
	}
	rawHeader := make([]byte, headerSize)
	if err := readFull(r, rawHeader, int64(len(fixed))); err != nil {
		return nil, err
	}

	ar := &Archive{
		reader: r,
		base:   int64(len(fixed)) + headerSize,
		index:  make(map[string]Entry),
	}
	if err := gob.NewDecoder(bytes.NewReader(rawHeader)).Decode(&ar.header); err != nil {
		return nil, errors.Wrapf(ErrFormat, "decode header: %v", err)
	}

	size, sized := readerSize(r)
	for _, e := range ar.header.Index {
		if e.Offset < 0 || e.CompressedSize < 0 || e.Size < 0 {
			return nil, errors.Wrapf(ErrFormat, "entry %s", e.Name)
		}
		if sized && ar.base+e.Offset+e.CompressedSize > size {
			return nil, errors.Wrapf(ErrFormat, "entry %s past end of pack", e.Name)
		}
		ar.index[e.Name] = e
	}
	return ar, nil
}

// OpenFile memory maps the pack at path. The Archive must be closed.
func OpenFile(path string) (*Archive, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "map %s", path)
	}
	ar, err := Open(r)
	if err != nil {
		r.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	ar.closer = r
	return ar, nil
}

func readFull(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		return ErrFormat
	}
	return err
}

func readerSize(r io.ReaderAt) (int64, bool) {
	switch s := r.(type) {
	case interface{ Size() int64 }:
		return s.Size(), true
	case interface{ Len() int }:
		return int64(s.Len()), true
	}
	return 0, false
}

// Header returns the pack header.
func (a *Archive) Header() Header {
	return a.header
}

// Names returns the entry names in sorted order.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.index))
	for name := range a.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stat returns the index entry for name.
func (a *Archive) Stat(name string) (Entry, error) {
	e, ok := a.index[name]
	if !ok {
		return Entry{}, errors.Wrap(ErrNotFound, name)
	}
	return e, nil
}

// Open returns a reader producing the decompressed contents of name.
func (a *Archive) Open(name string) (io.Reader, error) {
	e, err := a.Stat(name)
	if err != nil {
		return nil, err
	}
	return lz4.NewReader(io.NewSectionReader(a.reader, a.base+e.Offset, e.CompressedSize)), nil
}

// ReadAll returns the entire decompressed contents of name.
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "decompress %s", name)
	}
	if int64(len(data)) != a.index[name].Size {
		return nil, errors.Wrapf(ErrFormat, "%s: %d bytes, index says %d", name, len(data), a.index[name].Size)
	}
	return data, nil
}

// Close releases the mapping of packs opened with OpenFile.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}
