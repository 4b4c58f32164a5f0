package audio

import (
	"errors"
	"testing"
)

// chunkOf returns a chunk of the given size filled with a single marker byte
func chunkOf(size int, marker byte) []byte {
	c := make([]byte, size)
	for i := range c {
		c[i] = marker
	}
	return c
}

func markers(chunks [][]byte) []byte {
	out := make([]byte, len(chunks))
	for i, c := range chunks {
		out[i] = c[0]
	}
	return out
}

func TestChunkRing_Push(t *testing.T) {
	rb := NewChunkRing(4, 6)

	for i := 1; i <= 3; i++ {
		if err := rb.Push(chunkOf(6, byte(i))); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}

	if rb.Len() != 3 {
		t.Errorf("Expected length 3, got %d", rb.Len())
	}
	if rb.Cap() != 4 {
		t.Errorf("Expected capacity 4, got %d", rb.Cap())
	}

	got := markers(rb.Snapshot(3))
	if string(got) != string([]byte{1, 2, 3}) {
		t.Errorf("Expected chunks [1 2 3], got %v", got)
	}
}

func TestChunkRing_PushWrongSize(t *testing.T) {
	rb := NewChunkRing(4, 6)

	err := rb.Push(make([]byte, 5))
	if !errors.Is(err, ErrChunkSize) {
		t.Errorf("Expected ErrChunkSize, got %v", err)
	}
	if rb.Len() != 0 {
		t.Errorf("Expected rejected chunk not to be stored, length %d", rb.Len())
	}
}

func TestChunkRing_EvictsOldest(t *testing.T) {
	const capacity = 5
	rb := NewChunkRing(capacity, 2)

	for i := 1; i <= 23; i++ {
		rb.Push(chunkOf(2, byte(i)))

		if rb.Len() > capacity {
			t.Fatalf("Length %d exceeds capacity %d after %d pushes", rb.Len(), capacity, i)
		}

		// The ring must always hold the most recent pushes in order
		want := []byte{}
		first := i - rb.Len() + 1
		for m := first; m <= i; m++ {
			want = append(want, byte(m))
		}
		if got := markers(rb.Snapshot(rb.Len())); string(got) != string(want) {
			t.Fatalf("After %d pushes expected %v, got %v", i, want, got)
		}
	}
}

func TestChunkRing_Snapshot(t *testing.T) {
	rb := NewChunkRing(8, 2)
	for i := 1; i <= 5; i++ {
		rb.Push(chunkOf(2, byte(i)))
	}

	tests := []struct {
		name string
		n    int
		want []byte
	}{
		{"zero", 0, []byte{}},
		{"negative", -3, []byte{}},
		{"last two", 2, []byte{4, 5}},
		{"exactly length", 5, []byte{1, 2, 3, 4, 5}},
		{"more than length", 50, []byte{1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rb.Snapshot(tt.n)
			if got == nil {
				t.Fatal("Expected non-nil snapshot")
			}
			if string(markers(got)) != string(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, markers(got))
			}
		})
	}

	if rb.Len() != 5 {
		t.Errorf("Snapshot must not mutate the ring, length now %d", rb.Len())
	}
}

func TestChunkRing_SnapshotAfterWrap(t *testing.T) {
	rb := NewChunkRing(3, 2)
	for i := 1; i <= 7; i++ {
		rb.Push(chunkOf(2, byte(i)))
	}

	if got := markers(rb.Snapshot(2)); string(got) != string([]byte{6, 7}) {
		t.Errorf("Expected [6 7], got %v", got)
	}
	if got := markers(rb.Snapshot(10)); string(got) != string([]byte{5, 6, 7}) {
		t.Errorf("Expected [5 6 7], got %v", got)
	}
}

func TestChunkRing_PushCopies(t *testing.T) {
	rb := NewChunkRing(2, 2)
	src := chunkOf(2, 9)
	rb.Push(src)
	src[0] = 0

	if rb.Snapshot(1)[0][0] != 9 {
		t.Error("Expected ring to keep its own copy of the pushed chunk")
	}
}

func TestChunkRing_Clear(t *testing.T) {
	rb := NewChunkRing(3, 2)
	for i := 1; i <= 4; i++ {
		rb.Push(chunkOf(2, byte(i)))
	}

	rb.Clear()
	if rb.Len() != 0 {
		t.Errorf("Expected length 0 after clear, got %d", rb.Len())
	}
	if len(rb.Snapshot(3)) != 0 {
		t.Error("Expected empty snapshot after clear")
	}
	if rb.Cap() != 3 {
		t.Errorf("Expected capacity 3 after clear, got %d", rb.Cap())
	}

	rb.Push(chunkOf(2, 42))
	if got := markers(rb.Snapshot(3)); string(got) != string([]byte{42}) {
		t.Errorf("Expected [42] after clear and push, got %v", got)
	}
}

func TestChunkRing_ZeroCapacity(t *testing.T) {
	rb := NewChunkRing(0, 2)
	if err := rb.Push(chunkOf(2, 1)); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if rb.Len() != 0 {
		t.Errorf("Expected zero-capacity ring to stay empty, got %d", rb.Len())
	}
}

func TestNewChunkRingForFormat(t *testing.T) {
	f := Format{SampleRate: 44100, Channels: 3, FramesPerChunk: 1024}
	rb := NewChunkRingForFormat(f, 60)

	if rb.Cap() != 2584 {
		t.Errorf("Expected capacity 2584 for 60s, got %d", rb.Cap())
	}
	if err := rb.Push(make([]byte, f.ChunkBytes())); err != nil {
		t.Errorf("Expected a %d-byte chunk to be accepted, got %v", f.ChunkBytes(), err)
	}
	if err := rb.Push(make([]byte, 1024*2)); !errors.Is(err, ErrChunkSize) {
		t.Errorf("Expected a mono-sized chunk to be rejected, got %v", err)
	}
}
