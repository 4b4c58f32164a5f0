package audio

import (
	"errors"
	"fmt"
)

// ErrChunkSize is returned when a pushed chunk does not match the ring's chunk size
var ErrChunkSize = errors.New("chunk size mismatch")

// ChunkRing is a fixed-capacity FIFO of equally sized audio chunks.
// All chunks live in one preallocated arena; head and length index into it.
//
// ChunkRing has no lock. Push may only run on the capture goroutine, and
// Snapshot/Clear may only run after that goroutine has been joined. The
// capture.Recorder upholds this by waiting on the loop's done channel before
// touching the ring. If capture and export are ever allowed to overlap, a
// mutex has to be added here.
type ChunkRing struct {
	arena     []byte
	chunkSize int
	capacity  int
	head      int // index of the oldest chunk
	length    int
}

// NewChunkRing creates a ring holding up to capacity chunks of chunkSize bytes
func NewChunkRing(capacity, chunkSize int) *ChunkRing {
	if capacity < 0 {
		capacity = 0
	}
	return &ChunkRing{
		arena:     make([]byte, capacity*chunkSize),
		chunkSize: chunkSize,
		capacity:  capacity,
	}
}

// NewChunkRingForFormat sizes a ring to hold maxSeconds of audio in format f
func NewChunkRingForFormat(f Format, maxSeconds int) *ChunkRing {
	return NewChunkRing(f.ChunksFor(maxSeconds), f.ChunkBytes())
}

// Push appends a copy of chunk, evicting the oldest chunk when full
func (r *ChunkRing) Push(chunk []byte) error {
	if len(chunk) != r.chunkSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrChunkSize, len(chunk), r.chunkSize)
	}
	if r.capacity == 0 {
		return nil
	}

	var slot int
	if r.length < r.capacity {
		slot = (r.head + r.length) % r.capacity
		r.length++
	} else {
		// Full: overwrite the oldest and advance head
		slot = r.head
		r.head = (r.head + 1) % r.capacity
	}

	copy(r.slot(slot), chunk)
	return nil
}

// Snapshot returns the last n chunks, oldest first, clamped to Len.
// The returned slices alias the arena and are only valid until the next Push or Clear.
func (r *ChunkRing) Snapshot(n int) [][]byte {
	if n > r.length {
		n = r.length
	}
	if n <= 0 {
		return [][]byte{}
	}

	out := make([][]byte, n)
	start := r.length - n
	for i := 0; i < n; i++ {
		out[i] = r.slot((r.head + start + i) % r.capacity)
	}
	return out
}

// Clear empties the ring without releasing the arena
func (r *ChunkRing) Clear() {
	r.head = 0
	r.length = 0
}

// Len returns the number of chunks held
func (r *ChunkRing) Len() int {
	return r.length
}

// Cap returns the maximum number of chunks held
func (r *ChunkRing) Cap() int {
	return r.capacity
}

func (r *ChunkRing) slot(i int) []byte {
	off := i * r.chunkSize
	return r.arena[off : off+r.chunkSize : off+r.chunkSize]
}
