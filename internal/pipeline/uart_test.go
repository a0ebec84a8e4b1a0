package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"kcsdecode/internal/config"
)

func stdUARTConfig() config.DecoderConfig {
	return config.DecoderConfig{
		StartBits:   config.BitLevel{Count: 1, Level: config.Space},
		NumDataBits: 8,
		Parity:      config.ParityNone,
		StopBits:    config.BitLevel{Count: 1, Level: config.Mark},
	}
}

func TestUART8N1HappyPath(t *testing.T) {
	u := NewUART(stdUARTConfig())

	inputs := []config.SignalCondition{
		config.Mark, config.Mark, config.Space,
		config.Space, config.Space, config.Space, config.Space, config.Space, config.Space, config.Space, config.Mark,
		config.Mark,
		config.Space,
		config.Mark, config.Space, config.Mark, config.Space, config.Mark, config.Space, config.Mark, config.Space,
		config.Mark,
	}

	var gotBytes []byte
	for _, level := range inputs {
		b, ok, ferr := u.Process(level)
		require.Nil(t, ferr)
		if ok {
			gotBytes = append(gotBytes, b)
		}
	}
	assert.Equal(t, []byte{0x80, 0x55}, gotBytes)
}

func TestUARTSyncError(t *testing.T) {
	u := NewUART(stdUARTConfig())
	levels := []config.SignalCondition{
		config.Space, // start
		config.Mark, config.Mark, config.Mark, config.Mark, config.Mark, config.Mark, config.Mark, config.Mark, // 8 data bits
	}
	for _, level := range levels {
		_, _, ferr := u.Process(level)
		require.Nil(t, ferr)
	}

	_, _, ferr := u.Process(config.Space) // expected stop-Mark, got Space
	require.NotNil(t, ferr)
	assert.Equal(t, Sync, ferr.Kind)
	assert.IsType(t, &waitStart{}, u.state)
}

func TestUARTSignalError(t *testing.T) {
	u := NewUART(stdUARTConfig())
	_, _, ferr := u.Process(config.Space) // start
	require.Nil(t, ferr)

	_, _, ferr = u.Process(config.Mark)
	require.Nil(t, ferr)

	_, _, ferr = u.Process(config.Error)
	require.NotNil(t, ferr)
	assert.Equal(t, Signal, ferr.Kind)
	assert.IsType(t, &waitStart{}, u.state)
}

// After any framing error, the next state is the initial WaitStart
// regardless of prior state.
func TestUARTResetsToWaitStartAfterFramingError(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := stdUARTConfig()
		u := NewUART(cfg)
		steps := rapid.IntRange(0, 12).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			level := rapid.SampledFrom([]config.SignalCondition{config.Mark, config.Space}).Draw(t, "level")
			u.Process(level)
		}
		_, _, ferr := u.Process(config.Error)
		if ferr != nil {
			assert.IsType(t, &waitStart{}, u.state)
		}
	})
}

// Encoding an arbitrary byte as a correctly timed Space/Mark sequence and
// feeding it through the UART yields that same byte back.
func TestUARTByteRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := byte(rapid.IntRange(0, 255).Draw(t, "b"))
		cfg := stdUARTConfig()
		u := NewUART(cfg)

		var levels []config.SignalCondition
		levels = append(levels, cfg.StartBits.Level)
		for i := 0; i < cfg.NumDataBits; i++ {
			if b&(1<<uint(i)) != 0 {
				levels = append(levels, config.Mark)
			} else {
				levels = append(levels, config.Space)
			}
		}
		levels = append(levels, cfg.StopBits.Level)

		var got byte
		var ok bool
		for _, level := range levels {
			var b2 byte
			var o bool
			var ferr *FramingError
			b2, o, ferr = u.Process(level)
			require.Nil(t, ferr)
			if o {
				got, ok = b2, true
			}
		}
		require.True(t, ok)
		assert.Equal(t, b, got)
	})
}
