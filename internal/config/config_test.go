package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSignalCondition(t *testing.T) {
	cases := []struct {
		in   string
		want SignalCondition
	}{
		{"Mark", Mark},
		{"mark", Mark},
		{"Space", Space},
		{"s", Space},
		{"", Error},
		{"xyz", Error},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ParseSignalCondition(c.in), "input %q", c.in)
	}
}

func TestParsePreset(t *testing.T) {
	cases := []struct {
		in   string
		want Preset
	}{
		{"Standard", PresetStd},
		{"NASCOM", PresetNASCOM},
		{"Acorn", PresetAcorn},
		{"MSX1200", PresetMSX1200},
		{"MSX2400", PresetMSX2400},
		{"msx2400", PresetMSX2400},
		{"", PresetNASCOM},
		{"???", PresetNASCOM},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ParsePreset(c.in), "input %q", c.in)
	}
}

func TestParseChannels(t *testing.T) {
	assert.Equal(t, Channels{All: true}, ParseChannels(""))
	assert.Equal(t, Channels{All: true}, ParseChannels("All"))
	assert.Equal(t, Channels{Specific: 3}, ParseChannels("3"))
	assert.Equal(t, Channels{All: true}, ParseChannels("999"))
}

func TestPresetTable(t *testing.T) {
	cases := []struct {
		preset       Preset
		lowHz, highHz float64
		lowPeriods, highPeriods int
		stopBits int
	}{
		{PresetStd, 1200, 2400, 4, 8, 2},
		{PresetNASCOM, 1200, 2400, 1, 2, 1},
		{PresetAcorn, 1200, 2400, 1, 2, 1},
		{PresetMSX1200, 1200, 2400, 1, 2, 2},
		{PresetMSX2400, 2400, 4800, 1, 2, 2},
	}
	for _, c := range cases {
		cfg := PresetConfig(c.preset)
		assert.Equal(t, BitLevel{Count: 1, Level: Space}, cfg.StartBits, c.preset)
		assert.Equal(t, 8, cfg.NumDataBits, c.preset)
		assert.Equal(t, ParityNone, cfg.Parity, c.preset)
		assert.Equal(t, c.stopBits, cfg.StopBits.Count, c.preset)
		assert.Equal(t, Mark, cfg.StopBits.Level, c.preset)
		assert.Equal(t, 10, cfg.FrequencyTolerance, c.preset)
		assert.Equal(t, 10, cfg.MinRunBytes, c.preset)

		low, high := cfg.Symbols[0], cfg.Symbols[1]
		if low.FrequencyHz > high.FrequencyHz {
			low, high = high, low
		}
		assert.Equal(t, c.lowHz, low.FrequencyHz, c.preset)
		assert.Equal(t, c.highHz, high.FrequencyHz, c.preset)
		assert.Equal(t, c.lowPeriods, low.RequiredPeriods, c.preset)
		assert.Equal(t, c.highPeriods, high.RequiredPeriods, c.preset)
		assert.Equal(t, Space, low.Signal, c.preset)
		assert.Equal(t, Mark, high.Signal, c.preset)
	}
}

func TestValidate(t *testing.T) {
	cfg := PresetConfig(PresetStd)
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.NumDataBits = 6
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.StartBits.Count = 3
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.StopBits.Count = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.FrequencyTolerance = 51
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.MinRunBytes = -1
	assert.Error(t, bad.Validate())
}

func TestWithBaudRate(t *testing.T) {
	cfg := PresetConfig(PresetStd).WithBaudRate(300)
	assert.Equal(t, Symbol{FrequencyHz: 300, RequiredPeriods: 1, Signal: Space}, cfg.Symbols[0])
	assert.Equal(t, Symbol{FrequencyHz: 600, RequiredPeriods: 2, Signal: Mark}, cfg.Symbols[1])
}
