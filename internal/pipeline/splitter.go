package pipeline

// Run is one contiguous error-free run of decoded bytes, labeled with the
// sample index at which it started.
type Run struct {
	StartIndex int
	Data       []byte
}

// Splitter accumulates successful bytes into a buffer and closes it as a
// Run on every framing error or at end of stream. Buffers smaller than
// minBytes are silently discarded.
type Splitter struct {
	minBytes   int
	buffer     []byte
	startIndex int
	nextIndex  int
}

// NewSplitter constructs a Splitter with the given minimum run size.
func NewSplitter(minBytes int) *Splitter {
	return &Splitter{minBytes: minBytes}
}

// PushByte accumulates a successfully framed byte at the given sample
// index. The first byte of a fresh buffer sets the run's start index.
func (s *Splitter) PushByte(index int, b byte) {
	if len(s.buffer) == 0 {
		s.startIndex = index
	}
	s.buffer = append(s.buffer, b)
	s.nextIndex = index + 1
}

// Close ends the current run, returning it if it meets the minimum size.
// It is called on every framing error and once more at end of stream. A
// discarded run's Data is still populated (though not kept == true) so
// callers can tell an empty close from one that dropped an undersized run.
// An empty buffer reports StartIndex as the index just past the last
// pushed byte, not the previous run's start, so two Closes in a row with
// no intervening PushByte never replay a stale position.
func (s *Splitter) Close() (Run, bool) {
	start := s.startIndex
	if len(s.buffer) == 0 {
		start = s.nextIndex
	}
	run := Run{StartIndex: start, Data: s.buffer}
	s.buffer = nil
	return run, len(run.Data) >= s.minBytes
}
