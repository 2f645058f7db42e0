// Package ring implements the lock-free sample queue that carries stereo
// audio from the audio callback to the render tick.
package ring

import "sync/atomic"

// DefaultCapacity is the number of sample pairs held by a ring created with
// a non-positive capacity.
const DefaultCapacity = 1 << 17

// Segment is a contiguous run of slots inside the ring.
type Segment struct {
	Offset int
	Length int
}

// Segments describes a region of the ring split at the wrap boundary into at
// most two contiguous runs. Second is empty unless the region wraps.
type Segments struct {
	First  Segment
	Second Segment
}

// Total returns the number of slots covered by both segments.
func (s Segments) Total() int {
	return s.First.Length + s.Second.Length
}

// Ring is a fixed-capacity stereo FIFO for exactly one producer and one
// consumer.
//
// The producer owns the write cursor, the consumer owns the read cursor.
// Both cursors increase monotonically and are reduced modulo the capacity
// with a mask. The producer publishes the write cursor only after copying
// samples, and the consumer publishes the read cursor only after copying
// them out, so neither side observes a slot the other is still using.
//
// When a write exceeds the free space the excess (newest) samples are
// dropped and counted; the read cursor is never touched by the producer.
type Ring struct {
	write atomic.Uint64
	_     [56]byte
	read  atomic.Uint64
	_     [56]byte

	dropped atomic.Uint64

	left  []float32
	right []float32
	size  uint64
	mask  uint64
}

// New creates a ring holding capacity sample pairs, rounded up to the next
// power of two.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	size := 2
	for size < capacity {
		size <<= 1
	}
	return &Ring{
		left:  make([]float32, size),
		right: make([]float32, size),
		size:  uint64(size),
		mask:  uint64(size - 1),
	}
}

// Capacity returns the number of sample pairs the ring can hold.
func (r *Ring) Capacity() int {
	return int(r.size)
}

// Available returns the number of unread sample pairs.
func (r *Ring) Available() int {
	return int(r.fill(r.write.Load(), r.read.Load()))
}

// Dropped returns the total number of sample pairs rejected on overflow.
func (r *Ring) Dropped() uint64 {
	return r.dropped.Load()
}

// PrepareWrite reserves up to n slots after the write cursor. The returned
// segments may cover fewer than n slots when the ring is nearly full. Only
// the producer may call it.
func (r *Ring) PrepareWrite(n int) Segments {
	w := r.write.Load()
	free := r.size - r.fill(w, r.read.Load())
	return r.segments(w, clampCount(n, free))
}

// FinishWrite publishes n slots previously reserved with PrepareWrite.
func (r *Ring) FinishWrite(n int) {
	if n <= 0 {
		return
	}
	w := r.write.Load()
	free := r.size - r.fill(w, r.read.Load())
	r.write.Store(w + clampCount(n, free))
}

// PrepareRead locates up to n unread slots after the read cursor. Only the
// consumer may call it.
func (r *Ring) PrepareRead(n int) Segments {
	rd := r.read.Load()
	avail := r.fill(r.write.Load(), rd)
	return r.segments(rd, clampCount(n, avail))
}

// FinishRead releases n slots previously located with PrepareRead.
func (r *Ring) FinishRead(n int) {
	if n <= 0 {
		return
	}
	rd := r.read.Load()
	avail := r.fill(r.write.Load(), rd)
	r.read.Store(rd + clampCount(n, avail))
}

// Span returns the left and right backing slices covered by seg.
func (r *Ring) Span(seg Segment) (left, right []float32) {
	end := seg.Offset + seg.Length
	return r.left[seg.Offset:end:end], r.right[seg.Offset:end:end]
}

// Write copies min(len(left), len(right)) sample pairs into the ring and
// returns how many were stored. Pairs that do not fit are dropped.
func (r *Ring) Write(left, right []float32) int {
	n := min(len(left), len(right))
	if n == 0 {
		return 0
	}
	segs := r.PrepareWrite(n)
	done := 0
	for _, seg := range [2]Segment{segs.First, segs.Second} {
		if seg.Length == 0 {
			continue
		}
		dl, dr := r.Span(seg)
		copy(dl, left[done:done+seg.Length])
		copy(dr, right[done:done+seg.Length])
		done += seg.Length
	}
	r.FinishWrite(done)
	if done < n {
		r.dropped.Add(uint64(n - done))
	}
	return done
}

// Read drains up to min(len(left), len(right)) sample pairs in FIFO order
// and returns how many were copied. It never blocks.
func (r *Ring) Read(left, right []float32) int {
	n := min(len(left), len(right))
	if n == 0 {
		return 0
	}
	segs := r.PrepareRead(n)
	done := 0
	for _, seg := range [2]Segment{segs.First, segs.Second} {
		if seg.Length == 0 {
			continue
		}
		sl, sr := r.Span(seg)
		copy(left[done:], sl)
		copy(right[done:], sr)
		done += seg.Length
	}
	r.FinishRead(done)
	return done
}

// Reset discards unread samples. It belongs to the consumer and may run
// while the producer writes.
func (r *Ring) Reset() {
	r.read.Store(r.write.Load())
}

func (r *Ring) segments(cursor, n uint64) Segments {
	if n == 0 {
		return Segments{}
	}
	pos := cursor & r.mask
	first := min(n, r.size-pos)
	return Segments{
		First:  Segment{Offset: int(pos), Length: int(first)},
		Second: Segment{Offset: 0, Length: int(n - first)},
	}
}

// fill returns write-read, clamped to the capacity.
func (r *Ring) fill(w, rd uint64) uint64 {
	used := w - rd
	if used > r.size {
		invariantViolated(used, r.size)
		if w < rd {
			return 0
		}
		return r.size
	}
	return used
}

func clampCount(n int, limit uint64) uint64 {
	if n <= 0 {
		return 0
	}
	if uint64(n) > limit {
		return limit
	}
	return uint64(n)
}
