package pipeline

import (
	"kcsdecode/internal/config"
)

// FramingKind identifies why a UART framing attempt failed.
type FramingKind int

const (
	// Sync: expected a specific level, saw the wrong steady level.
	Sync FramingKind = iota
	// Parity: the parity check failed.
	Parity
	// Signal: the upstream classifier reported Error.
	Signal
)

func (k FramingKind) String() string {
	switch k {
	case Sync:
		return "sync"
	case Parity:
		return "parity"
	default:
		return "signal"
	}
}

// FramingError reports a UART framing failure. The UART has already
// reset its internal state by the time this is returned.
type FramingError struct {
	Kind FramingKind
}

func (e *FramingError) Error() string {
	return "framing error: " + e.Kind.String()
}

// uartState is the tagged-union state of the UART framing state machine,
// rendered as one small type per variant behind a common step capability
// — the idiomatic Go equivalent of a discriminated union.
type uartState interface {
	step(u *UART, level config.SignalCondition) (next uartState, byteOut byte, haveByte bool, ferr *FramingError)
}

// UART is the asynchronous-serial framing state machine: it parses a
// stream of Mark/Space/Error symbols into start/data/parity/stop bit
// sequences and emits whole bytes.
type UART struct {
	cfg   config.DecoderConfig
	state uartState
}

// NewUART constructs a UART for the given configuration, starting in
// WaitStart.
func NewUART(cfg config.DecoderConfig) *UART {
	u := &UART{cfg: cfg}
	u.reset()
	return u
}

func (u *UART) reset() {
	u.state = &waitStart{need: u.cfg.StartBits.Count}
}

// Process consumes one SignalCondition and advances the state machine.
// It returns (byte, true, nil) when a complete byte was framed this step,
// (0, false, nil) when the input was consumed with no byte produced yet,
// or (0, false, err) when framing failed — in which case the UART has
// already reset to WaitStart before returning.
func (u *UART) Process(level config.SignalCondition) (byte, bool, *FramingError) {
	next, out, ok, ferr := u.state.step(u, level)
	if ferr != nil {
		u.reset()
		return 0, false, ferr
	}
	u.state = next
	return out, ok, nil
}

// waitStart accumulates the configured number of start-level inputs
// before moving to data-bit collection.
type waitStart struct {
	idx  int
	need int
}

func (s *waitStart) step(u *UART, level config.SignalCondition) (uartState, byte, bool, *FramingError) {
	switch {
	case level == u.cfg.StartBits.Level:
		idx := s.idx + 1
		if idx >= s.need {
			return &waitData{numDataBits: u.cfg.NumDataBits}, 0, false, nil
		}
		return &waitStart{idx: idx, need: s.need}, 0, false, nil

	case level == config.Error:
		return nil, 0, false, &FramingError{Kind: Signal}

	case s.idx > 0:
		// Partial start-bit sequence broken mid-way.
		return nil, 0, false, &FramingError{Kind: Sync}

	default:
		// Still idling.
		return s, 0, false, nil
	}
}

// waitData collects data bits LSB-first into buffer, one bit per input;
// idx counts the bits collected so far.
type waitData struct {
	buffer      [8]bool
	idx         int
	numDataBits int
}

func (s *waitData) step(u *UART, level config.SignalCondition) (uartState, byte, bool, *FramingError) {
	switch level {
	case config.Space:
		s.buffer[s.idx] = false
	case config.Mark:
		s.buffer[s.idx] = true
	default:
		return nil, 0, false, &FramingError{Kind: Signal}
	}
	s.idx++

	if s.idx >= s.numDataBits {
		if u.cfg.Parity != config.ParityNone {
			return &waitParity{buffer: s.buffer}, 0, false, nil
		}
		return &waitStop{buffer: s.buffer, need: u.cfg.StopBits.Count}, 0, false, nil
	}
	return s, 0, false, nil
}

// waitParity validates the parity bit against the accumulated data bits.
type waitParity struct {
	buffer [8]bool
}

func popcount(buffer [8]bool) int {
	n := 0
	for _, b := range buffer {
		if b {
			n++
		}
	}
	return n
}

func (s *waitParity) step(u *UART, level config.SignalCondition) (uartState, byte, bool, *FramingError) {
	marksEven := popcount(s.buffer)%2 == 0
	if level == config.Space {
		marksEven = !marksEven
	}

	valid := false
	switch u.cfg.Parity {
	case config.ParityEven:
		valid = level != config.Error && marksEven
	case config.ParityOdd:
		valid = level != config.Error && !marksEven
	case config.ParityMark:
		valid = level == config.Mark
	case config.ParitySpace:
		valid = level == config.Space
	}
	// An Error input falls through every arm above as invalid, which
	// reports Parity rather than Signal — see DESIGN.md Open Question 1.

	if !valid {
		return nil, 0, false, &FramingError{Kind: Parity}
	}
	return &waitStop{buffer: s.buffer, need: u.cfg.StopBits.Count}, 0, false, nil
}

// waitStop accumulates the configured number of stop-level inputs before
// packing the buffer into a byte.
type waitStop struct {
	buffer   [8]bool
	received int
	need     int
}

func (s *waitStop) step(u *UART, level config.SignalCondition) (uartState, byte, bool, *FramingError) {
	switch {
	case level == u.cfg.StopBits.Level:
		received := s.received + 1
		if received >= s.need {
			return &waitStart{need: u.cfg.StartBits.Count}, packLSBFirst(s.buffer, u.cfg.NumDataBits), true, nil
		}
		return &waitStop{buffer: s.buffer, received: received, need: s.need}, 0, false, nil

	case level == config.Error:
		return nil, 0, false, &FramingError{Kind: Signal}

	default:
		return nil, 0, false, &FramingError{Kind: Sync}
	}
}

// packLSBFirst packs the first numBits of buffer into a byte, bit i
// contributing 2^i. Bits beyond numBits are left as zero.
func packLSBFirst(buffer [8]bool, numBits int) byte {
	var out byte
	for i := 0; i < numBits; i++ {
		if buffer[i] {
			out |= 1 << uint(i)
		}
	}
	return out
}
