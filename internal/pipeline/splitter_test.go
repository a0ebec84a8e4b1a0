package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSplitterDropsUndersizedRun(t *testing.T) {
	s := NewSplitter(5)
	s.PushByte(0, 'a')
	s.PushByte(1, 'b')
	_, kept := s.Close()
	assert.False(t, kept)
}

func TestSplitterKeepsRunMeetingMinimum(t *testing.T) {
	s := NewSplitter(2)
	s.PushByte(10, 'a')
	s.PushByte(11, 'b')
	run, kept := s.Close()
	require.True(t, kept)
	assert.Equal(t, 10, run.StartIndex)
	assert.Equal(t, []byte{'a', 'b'}, run.Data)
}

func TestSplitterResetsAfterClose(t *testing.T) {
	s := NewSplitter(1)
	s.PushByte(0, 'x')
	s.Close()
	s.PushByte(100, 'y')
	run, kept := s.Close()
	require.True(t, kept)
	assert.Equal(t, 100, run.StartIndex)
	assert.Equal(t, []byte{'y'}, run.Data)
}

// With no minimum-size floor, every pushed byte is emitted exactly once,
// in order: the concatenation of closed runs equals the pushed stream.
func TestSplitterEmitsEveryByteWhenNoFloor(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		runLengths := rapid.SliceOfN(rapid.IntRange(0, 8), 0, 10).Draw(t, "runLengths")

		s := NewSplitter(0)
		var pushed []byte
		var emitted []byte
		index := 0
		for _, n := range runLengths {
			for i := 0; i < n; i++ {
				b := byte(rapid.IntRange(0, 255).Draw(t, "b"))
				s.PushByte(index, b)
				pushed = append(pushed, b)
				index++
			}
			run, kept := s.Close()
			require.True(t, kept)
			emitted = append(emitted, run.Data...)
		}
		assert.Equal(t, pushed, emitted)
	})
}

// Every kept run's start index is at least as large as the previous kept
// run's end, so runs never overlap and never appear out of order.
func TestSplitterRunsAreOrderedAndNonOverlapping(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		minBytes := rapid.IntRange(0, 5).Draw(t, "minBytes")
		runLengths := rapid.SliceOfN(rapid.IntRange(0, 8), 0, 10).Draw(t, "runLengths")

		s := NewSplitter(minBytes)
		index := 0
		lastEnd := -1
		for _, n := range runLengths {
			for i := 0; i < n; i++ {
				s.PushByte(index, byte(index))
				index++
			}
			if run, kept := s.Close(); kept {
				assert.GreaterOrEqual(t, run.StartIndex, lastEnd)
				lastEnd = run.StartIndex + len(run.Data)
			}
		}
	})
}
