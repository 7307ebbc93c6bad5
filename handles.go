package apkres

import (
	"sync"
)

// Handle is an opaque reference to an object held by a HandleArena. The
// zero Handle is never valid.
type Handle uint64

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) index() uint32      { return uint32(h) }
func (h Handle) generation() uint32 { return uint32(h >> 32) }

type arenaSlot[T any] struct {
	value      T
	generation uint32
	used       bool
}

// HandleArena hands out generation-checked handles to values, so a released
// handle can't reach a value stored later in the same slot.
type HandleArena[T any] struct {
	mu    sync.Mutex
	slots []arenaSlot[T]
	free  []uint32
}

// Put stores v and returns its handle.
func (a *HandleArena[T]) Put(v T) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n != 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, arenaSlot[T]{})
	}

	s := &a.slots[idx]
	s.generation++
	if s.generation == 0 {
		// generation 0 would make the zero Handle valid
		s.generation = 1
	}
	s.value = v
	s.used = true
	return makeHandle(idx, s.generation)
}

func (a *HandleArena[T]) slot(h Handle) (*arenaSlot[T], error) {
	idx := h.index()
	if int(idx) >= len(a.slots) {
		return nil, badIndex("handle 0x%x out of range", uint64(h))
	}
	s := &a.slots[idx]
	if !s.used || s.generation != h.generation() {
		return nil, badIndex("stale handle 0x%x", uint64(h))
	}
	return s, nil
}

// Get returns the value of h, ErrBadIndex if h was released.
func (a *HandleArena[T]) Get(h Handle) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.slot(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.value, nil
}

// Release frees the slot of h and returns the value it held.
func (a *HandleArena[T]) Release(h Handle) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	s, err := a.slot(h)
	if err != nil {
		return zero, err
	}
	v := s.value
	s.value = zero
	s.used = false
	a.free = append(a.free, h.index())
	return v, nil
}

// Len returns the number of live handles.
func (a *HandleArena[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slots) - len(a.free)
}
