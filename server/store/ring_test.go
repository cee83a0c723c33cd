package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingPushAndOrder(t *testing.T) {
	r := NewRing[int](5)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 5, r.Cap())

	for i := 1; i <= 3; i++ {
		r.Push(i)
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{1, 2, 3}, r.Items())

	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, 3, last)
}

func TestRingOverflowEvictsOldest(t *testing.T) {
	r := NewRing[int](100)
	for i := 0; i < 105; i++ {
		r.Push(i)
	}

	assert.Equal(t, 100, r.Len())
	assert.Equal(t, 5, r.At(0))
	assert.Equal(t, 104, r.At(99))
}

func TestRingTail(t *testing.T) {
	r := NewRing[int](4)
	for i := 1; i <= 6; i++ {
		r.Push(i)
	}

	assert.Equal(t, []int{5, 6}, r.Tail(2))
	// Asking for more than is buffered returns everything.
	assert.Equal(t, []int{3, 4, 5, 6}, r.Tail(10))
}

func TestRingClear(t *testing.T) {
	r := NewRing[int](3)
	r.Push(1)
	r.Push(2)
	r.Clear()

	assert.Equal(t, 0, r.Len())
	_, ok := r.Last()
	assert.False(t, ok)

	r.Push(7)
	assert.Equal(t, []int{7}, r.Items())
}

func TestRingFilterPreservesOrder(t *testing.T) {
	r := NewRing[int](5)
	for i := 1; i <= 7; i++ {
		r.Push(i)
	}

	r.Filter(func(v int) bool { return v%2 == 1 })
	assert.Equal(t, []int{3, 5, 7}, r.Items())
}

func TestRingZeroCapacityClamped(t *testing.T) {
	r := NewRing[int](0)
	r.Push(1)
	r.Push(2)

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []int{2}, r.Items())
}
