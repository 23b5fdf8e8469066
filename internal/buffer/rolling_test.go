package buffer_test

import (
	"testing"

	"codeberg.org/mutker/plantsim/internal/buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendRange(b *buffer.Rolling[int], from, to int) {
	for i := from; i <= to; i++ {
		b.Append(i)
	}
}

func seq(from, to int) []int {
	out := []int{}
	if from <= to {
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
		return out
	}
	for i := from; i >= to; i-- {
		out = append(out, i)
	}
	return out
}

func TestNewIsEmpty(t *testing.T) {
	b := buffer.NewSeries[int](5)

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 5, b.Cap())
	assert.Empty(t, b.Snapshot())

	_, ok := b.Latest()
	assert.False(t, ok)
}

func TestLengthNeverExceedsCapacity(t *testing.T) {
	for _, capacity := range []int{1, 2, 12, 20, 24, 30} {
		b := buffer.NewSeries[int](capacity)
		for i := 1; i <= 3*capacity+1; i++ {
			b.Append(i)
			require.LessOrEqual(t, b.Len(), capacity)

			if i >= capacity {
				assert.Equal(t, seq(i-capacity+1, i), b.Snapshot())
			}
		}
	}
}

func TestTableKeepsNewestFirst(t *testing.T) {
	b := buffer.NewTable[int](20)
	appendRange(b, 1, 25)

	assert.Equal(t, seq(25, 6), b.Snapshot())
	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, 25, latest)
}

func TestSeriesKeepsOldestFirst(t *testing.T) {
	b := buffer.NewSeries[int](20)
	appendRange(b, 1, 25)

	assert.Equal(t, seq(6, 25), b.Snapshot())
}

func TestClearBehavesLikeFresh(t *testing.T) {
	for _, order := range []buffer.Order{buffer.OldestFirst, buffer.NewestFirst} {
		t.Run(order.String(), func(t *testing.T) {
			used := buffer.New[int](4, order)
			appendRange(used, 1, 9)
			used.Clear()

			fresh := buffer.New[int](4, order)

			assert.Equal(t, fresh.Snapshot(), used.Snapshot())
			for i := 100; i < 107; i++ {
				used.Append(i)
				fresh.Append(i)
				assert.Equal(t, fresh.Snapshot(), used.Snapshot())
				assert.Equal(t, fresh.Len(), used.Len())
			}
		})
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	b := buffer.NewSeries[int](3)
	appendRange(b, 1, 3)

	snap := b.Snapshot()
	snap[0] = 99

	assert.Equal(t, []int{1, 2, 3}, b.Snapshot())
}

func TestZeroCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { buffer.NewTable[int](0) })
}
