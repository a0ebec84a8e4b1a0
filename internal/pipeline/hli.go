package pipeline

import (
	"fmt"

	"kcsdecode/internal/config"
)

// band is a tolerance band [lo, hi) around a center frequency.
type band struct {
	lo, hi float64
}

func (b band) contains(f float64) bool {
	return f >= b.lo && f < b.hi
}

func newBand(freq, tolerancePercent float64) band {
	width := freq * tolerancePercent / 100
	return band{lo: freq - width, hi: freq + width}
}

// symbolSpec pairs a band with the number of periods required and the
// signal it represents once that many periods have accumulated.
type symbolSpec struct {
	band            band
	requiredPeriods int
	signal          config.SignalCondition
}

// ToneSpec is the (periods, signal) half of a Symbol that HLI needs once
// the frequency has already been assigned to the high or low band.
type ToneSpec struct {
	Periods int
	Signal  config.SignalCondition
}

// HighLowClassifier maps an instantaneous frequency to a Mark/Space/Error
// condition, waiting until enough periods have accumulated before emitting
// a symbol. Every input since the last emitted symbol counts as one
// period, whichever band it fell in.
type HighLowClassifier struct {
	high               symbolSpec
	low                symbolSpec
	accumulatedPeriods int
}

// NewHighLowClassifier validates and constructs a classifier. It fails if
// the two tolerance bands overlap, if tolerancePercent exceeds 50, or if
// the two symbols map to the same signal.
func NewHighLowClassifier(freqHighHz, freqLowHz float64, tolerancePercent int, lowSymbol, highSymbol ToneSpec) (*HighLowClassifier, error) {
	if tolerancePercent > 50 {
		return nil, fmt.Errorf("hli: tolerance_percent must be <= 50, got %d", tolerancePercent)
	}
	if lowSymbol.Signal == highSymbol.Signal {
		return nil, fmt.Errorf("hli: low and high symbols must map to different signals")
	}

	tol := float64(tolerancePercent)
	highBand := newBand(freqHighHz, tol)
	lowBand := newBand(freqLowHz, tol)

	if highBand.contains(freqLowHz) || lowBand.contains(freqHighHz) {
		return nil, fmt.Errorf("hli: tolerance bands for %.1fHz and %.1fHz overlap at %d%%", freqHighHz, freqLowHz, tolerancePercent)
	}

	return &HighLowClassifier{
		high: symbolSpec{band: highBand, requiredPeriods: highSymbol.Periods, signal: highSymbol.Signal},
		low:  symbolSpec{band: lowBand, requiredPeriods: lowSymbol.Periods, signal: lowSymbol.Signal},
	}, nil
}

// NewHighLowClassifierFromSymbols builds a classifier directly from a pair
// of config.Symbol, assigning freq_high_hz/freq_low_hz by comparing their
// actual frequency values rather than their array position. See
// DESIGN.md for why this differs from the reference implementation's
// fixed-index wiring.
func NewHighLowClassifierFromSymbols(symbols [2]config.Symbol, tolerancePercent int) (*HighLowClassifier, error) {
	a, b := symbols[0], symbols[1]
	high, low := a, b
	if b.FrequencyHz > a.FrequencyHz {
		high, low = b, a
	}
	return NewHighLowClassifier(high.FrequencyHz, low.FrequencyHz, tolerancePercent,
		ToneSpec{Periods: low.RequiredPeriods, Signal: low.Signal},
		ToneSpec{Periods: high.RequiredPeriods, Signal: high.Signal},
	)
}

// Process consumes one frequency measurement, incrementing the
// accumulated-period counter on every call, and emits a SignalCondition
// once enough periods of a recognized tone have accumulated, or Error
// immediately if the frequency falls outside both bands (the accumulator
// is not reset in the Error case).
func (h *HighLowClassifier) Process(p FreqPoint) (int, config.SignalCondition, bool) {
	h.accumulatedPeriods++

	switch {
	case h.high.band.contains(p.FrequencyHz):
		if h.accumulatedPeriods < h.high.requiredPeriods {
			return 0, 0, false
		}
		h.accumulatedPeriods = 0
		return p.Index, h.high.signal, true

	case h.low.band.contains(p.FrequencyHz):
		if h.accumulatedPeriods < h.low.requiredPeriods {
			return 0, 0, false
		}
		h.accumulatedPeriods = 0
		return p.Index, h.low.signal, true

	default:
		return p.Index, config.Error, true
	}
}
