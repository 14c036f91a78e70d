// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import (
	"errors"
	"sync"
)

// Handle is an opaque reference to a driver object. The low 32 bits
// hold the slot index plus one, the high 32 bits the slot generation.
type Handle uint64

// Errors returned by HandleTable lookups.
var (
	ErrNullHandle  = errors.New("gfx: null handle")
	ErrStaleHandle = errors.New("gfx: stale handle")
)

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index+1))
}

func (h Handle) index() uint32 {
	return uint32(h) - 1
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

type slot struct {
	generation uint32
	live       bool
	value      interface{}
}

// HandleTable maps handles to backend objects. Removing an entry bumps
// the slot generation, so handles to destroyed objects never resolve,
// even once the slot is reused. Safe for concurrent use.
type HandleTable struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
}

// Insert stores value and returns its handle.
func (t *HandleTable) Insert(value interface{}) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		s := &t.slots[idx]
		s.live = true
		s.value = value
		return makeHandle(idx, s.generation)
	}

	t.slots = append(t.slots, slot{generation: 1, live: true, value: value})
	return makeHandle(uint32(len(t.slots)-1), 1)
}

func (t *HandleTable) lookup(h Handle) (*slot, error) {
	if h == 0 {
		return nil, ErrNullHandle
	}
	idx := h.index()
	if int(idx) >= len(t.slots) {
		return nil, ErrStaleHandle
	}
	s := &t.slots[idx]
	if !s.live || s.generation != h.generation() {
		return nil, ErrStaleHandle
	}
	return s, nil
}

// Get returns the value stored under h.
func (t *HandleTable) Get(h Handle) (interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	return s.value, nil
}

// Remove invalidates h and returns the value it referred to.
func (t *HandleTable) Remove(h Handle) (interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	value := s.value
	s.value = nil
	s.live = false
	s.generation++
	t.free = append(t.free, h.index())
	return value, nil
}

// Len returns the number of live entries.
func (t *HandleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots) - len(t.free)
}
