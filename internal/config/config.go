// Package config defines the decoder configuration: the closed enumerations
// (channel selector, preset, parity, signal level), the symbol table for a
// decode run, and the named presets for the tape encodings this decoder
// understands (standard KCS, NASCOM/Acorn, MSX1200, MSX2400).
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// SignalCondition is the Mark/Space/Error alphabet produced by the
// high/low classifier and consumed by the UART framing state machine.
type SignalCondition int

const (
	Mark SignalCondition = iota
	Space
	Error
)

func (s SignalCondition) String() string {
	switch s {
	case Mark:
		return "Mark"
	case Space:
		return "Space"
	default:
		return "Error"
	}
}

// ParseSignalCondition parses the first character of value, case
// insensitively. Unknown input falls back to Error, per the "parsing is
// total" rule for closed enumerations.
func ParseSignalCondition(value string) SignalCondition {
	switch firstUpper(value) {
	case 'M':
		return Mark
	case 'S':
		return Space
	default:
		return Error
	}
}

// Parity is the configured parity discipline for a decode run.
type Parity int

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
	ParityMark
	ParitySpace
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "Even"
	case ParityOdd:
		return "Odd"
	case ParityMark:
		return "Mark"
	case ParitySpace:
		return "Space"
	default:
		return "None"
	}
}

// ParseParity parses the first character of value, case insensitively.
// Unknown input falls back to ParityNone.
func ParseParity(value string) Parity {
	switch firstUpper(value) {
	case 'E':
		return ParityEven
	case 'O':
		return ParityOdd
	case 'M':
		return ParityMark
	case 'S':
		return ParitySpace
	default:
		return ParityNone
	}
}

// Preset names a bundled decoder configuration for a known tape format.
type Preset int

const (
	PresetStd Preset = iota
	PresetNASCOM
	PresetAcorn
	PresetMSX1200
	PresetMSX2400
)

func (p Preset) String() string {
	switch p {
	case PresetNASCOM:
		return "NASCOM"
	case PresetAcorn:
		return "Acorn"
	case PresetMSX1200:
		return "MSX1200"
	case PresetMSX2400:
		return "MSX2400"
	default:
		return "Standard"
	}
}

// ParsePreset disambiguates MSX1200/MSX2400 by substring, per spec §9;
// everything else goes by first character. Unknown input falls back to
// PresetNASCOM, matching the reference implementation's default.
func ParsePreset(value string) Preset {
	switch firstUpper(value) {
	case 'S':
		return PresetStd
	case 'N':
		return PresetNASCOM
	case 'A':
		return PresetAcorn
	case 'M':
		if strings.Contains(value, "2400") {
			return PresetMSX2400
		}
		return PresetMSX1200
	default:
		return PresetNASCOM
	}
}

// Channels selects which channel(s) of a multi-channel WAV file to decode.
type Channels struct {
	All      bool
	Specific uint8
}

func (c Channels) String() string {
	if c.All {
		return "All"
	}
	return strconv.Itoa(int(c.Specific))
}

// ParseChannels follows the same first-character dispatch as the other
// enums: a leading digit selects a specific channel, anything else (or a
// digit out of byte range) falls back to All.
func ParseChannels(value string) Channels {
	if value == "" {
		return Channels{All: true}
	}
	r := rune(strings.ToUpper(value)[0])
	if r >= '0' && r <= '9' {
		n, err := strconv.Atoi(value)
		if err == nil && n >= 0 && n < 256 {
			return Channels{Specific: uint8(n)}
		}
	}
	return Channels{All: true}
}

func firstUpper(value string) rune {
	if value == "" {
		return 'N'
	}
	return rune(strings.ToUpper(value)[0])
}

// Symbol is one of the two tones used to encode a bit: a frequency, the
// number of periods of that frequency a bit occupies, and which logical
// signal level (Mark or Space) the tone represents.
type Symbol struct {
	FrequencyHz     float64
	RequiredPeriods int
	Signal          SignalCondition
}

// BitLevel is a (count, level) pair used for both start and stop bits.
type BitLevel struct {
	Count int
	Level SignalCondition
}

// DecoderConfig is the immutable configuration for one decode run.
type DecoderConfig struct {
	StartBits          BitLevel
	NumDataBits        int
	Parity             Parity
	StopBits           BitLevel
	Symbols            [2]Symbol
	FrequencyTolerance int // percent, [0, 50]
	Channels           Channels
	MinRunBytes        int
}

// Validate enforces the construction-time invariants of §4.6: databit
// count in [7,8], start/stop bit counts in [1,2]. HLI has its own
// construction-time checks, applied when the pipeline is built from this
// config.
func (c DecoderConfig) Validate() error {
	if c.NumDataBits < 7 || c.NumDataBits > 8 {
		return fmt.Errorf("config: num_databits must be 7 or 8, got %d", c.NumDataBits)
	}
	if c.StartBits.Count < 1 || c.StartBits.Count > 2 {
		return fmt.Errorf("config: startbits.count must be 1 or 2, got %d", c.StartBits.Count)
	}
	if c.StopBits.Count < 1 || c.StopBits.Count > 2 {
		return fmt.Errorf("config: stopbits.count must be 1 or 2, got %d", c.StopBits.Count)
	}
	if c.FrequencyTolerance < 0 || c.FrequencyTolerance > 50 {
		return fmt.Errorf("config: frequency_tolerance must be in [0,50], got %d", c.FrequencyTolerance)
	}
	if c.MinRunBytes < 0 {
		return fmt.Errorf("config: min_run_bytes must be >= 0, got %d", c.MinRunBytes)
	}
	return nil
}

func (c DecoderConfig) String() string {
	return fmt.Sprintf(
		"Channels:  %s\nStartbits: %d (%s)\nDatabits:  %d\nParity:    %s\nStopbits:  %d (%s)",
		c.Channels, c.StartBits.Count, c.StartBits.Level, c.NumDataBits, c.Parity,
		c.StopBits.Count, c.StopBits.Level,
	)
}

// PresetConfig returns the fully-populated DecoderConfig for a named preset.
// All presets use 1 start bit (Space), 8 data bits, no parity, a stop bit
// (Mark), and 10% frequency tolerance.
func PresetConfig(p Preset) DecoderConfig {
	base := DecoderConfig{
		StartBits:          BitLevel{Count: 1, Level: Space},
		NumDataBits:        8,
		Parity:             ParityNone,
		StopBits:           BitLevel{Count: 2, Level: Mark},
		Channels:           Channels{All: true},
		FrequencyTolerance: 10,
		MinRunBytes:        10,
	}
	switch p {
	case PresetStd:
		base.Symbols = [2]Symbol{
			{FrequencyHz: 1200, RequiredPeriods: 4, Signal: Space},
			{FrequencyHz: 2400, RequiredPeriods: 8, Signal: Mark},
		}
		return base
	case PresetNASCOM, PresetAcorn:
		base.StopBits = BitLevel{Count: 1, Level: Mark}
		base.Symbols = [2]Symbol{
			{FrequencyHz: 1200, RequiredPeriods: 1, Signal: Space},
			{FrequencyHz: 2400, RequiredPeriods: 2, Signal: Mark},
		}
		return base
	case PresetMSX1200:
		base.Symbols = [2]Symbol{
			{FrequencyHz: 1200, RequiredPeriods: 1, Signal: Space},
			{FrequencyHz: 2400, RequiredPeriods: 2, Signal: Mark},
		}
		return base
	case PresetMSX2400:
		base.Symbols = [2]Symbol{
			{FrequencyHz: 2400, RequiredPeriods: 1, Signal: Space},
			{FrequencyHz: 4800, RequiredPeriods: 2, Signal: Mark},
		}
		return base
	default:
		return PresetConfig(PresetStd)
	}
}

// WithBaudRate overrides c's symbol table for a custom baud rate: B Hz one
// period as Space, 2B Hz two periods as Mark, per CLI surface §6.3.
func (c DecoderConfig) WithBaudRate(baud uint16) DecoderConfig {
	c.Symbols = [2]Symbol{
		{FrequencyHz: float64(baud), RequiredPeriods: 1, Signal: Space},
		{FrequencyHz: float64(baud) * 2, RequiredPeriods: 2, Signal: Mark},
	}
	return c
}
