package pipeline

import (
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"kcsdecode/internal/config"
)

// SampleSource pulls the next sample from the adapter stage. It returns
// ok == false once the stream is exhausted.
type SampleSource func() (sample float64, index int, ok bool)

// Pipeline wires ZCD -> FID -> HLI -> UART -> Splitter into a single
// pull-driven decoder for one (channel, direction) pair. It is
// stateful and must be owned by exactly one goroutine.
type Pipeline struct {
	zcd      *ZeroCrossingDetector
	fid      *FrequencyIdentifier
	hli      *HighLowClassifier
	uart     *UART
	splitter *Splitter
	sampleHz float64

	channel   int
	direction Direction
	log       *charmlog.Logger

	stats Stats
}

// Stats accumulates the counts a caller typically reports to metrics
// after draining a Pipeline.
type Stats struct {
	BytesDecoded  int
	RunsEmitted   int
	RunsDropped   int
	FramingErrors map[FramingKind]int
}

// Stats returns the accumulated counters for this Pipeline's lifetime.
func (p *Pipeline) Stats() Stats { return p.stats }

// Options configures a Pipeline. SampleRateHz and Config are required;
// Hysteresis defaults to 0, and the splitter's minimum run size is taken
// from Config.MinRunBytes.
type Options struct {
	Config       config.DecoderConfig
	SampleRateHz float64
	Hysteresis   float64
	Channel      int
	Direction    Direction
	Log          *charmlog.Logger
}

// New constructs a Pipeline from Options, validating the configuration
// and the HLI's frequency-band construction.
func New(opts Options) (*Pipeline, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, errors.Wrap(err, "pipeline: invalid config")
	}

	hli, err := NewHighLowClassifierFromSymbols(opts.Config.Symbols, opts.Config.FrequencyTolerance)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline: invalid symbol table")
	}

	logger := opts.Log
	if logger == nil {
		logger = charmlog.New(os.Stderr)
	}

	return &Pipeline{
		zcd:       NewZeroCrossingDetector(opts.Hysteresis),
		fid:       NewFrequencyIdentifier(opts.Direction, opts.SampleRateHz),
		hli:       hli,
		uart:      NewUART(opts.Config),
		splitter:  NewSplitter(opts.Config.MinRunBytes),
		stats:     Stats{FramingErrors: make(map[FramingKind]int)},
		sampleHz:  opts.SampleRateHz,
		channel:   opts.Channel,
		direction: opts.Direction,
		log:       logger.With("channel", opts.Channel, "direction", opts.Direction),
	}, nil
}

// Drain pulls every sample from src through the pipeline to completion,
// flushing the splitter at end of stream, and returns every run that met
// the minimum size. A synthetic trailing Mark symbol is fed through the
// UART at EOF so a byte in progress at the last stop bit is still clocked
// out (spec §9 Open Question 4).
func (p *Pipeline) Drain(src SampleSource) []Run {
	var runs []Run

	emit := func(level config.SignalCondition, index int) {
		b, ok, ferr := p.uart.Process(level)
		if ferr != nil {
			p.stats.FramingErrors[ferr.Kind]++
			p.logFramingError(ferr, index)
			p.closeSplitter(&runs)
			return
		}
		if ok {
			p.splitter.PushByte(index, b)
		}
	}

	lastIndex := 0
	for {
		sample, index, ok := src()
		if !ok {
			break
		}
		lastIndex = index

		crossing, ok := p.zcd.Process(index, sample)
		if !ok {
			continue
		}
		freq, ok := p.fid.Process(crossing)
		if !ok {
			continue
		}
		idx, signal, ok := p.hli.Process(freq)
		if !ok {
			continue
		}
		emit(signal, idx)
	}

	emit(config.Mark, lastIndex)
	p.closeSplitter(&runs)
	return runs
}

func (p *Pipeline) closeSplitter(runs *[]Run) {
	run, kept := p.splitter.Close()
	if !kept {
		if len(run.Data) > 0 {
			p.stats.RunsDropped++
		}
		return
	}
	p.stats.RunsEmitted++
	p.stats.BytesDecoded += len(run.Data)
	*runs = append(*runs, run)
}

func (p *Pipeline) logFramingError(ferr *FramingError, index int) {
	ts := timestampString(index, p.sampleHz)
	switch ferr.Kind {
	case Signal:
		p.log.Debug("signal error", "at", ts)
	case Sync:
		p.log.Warn("sync error", "at", ts)
	case Parity:
		p.log.Warn("parity error", "at", ts)
	}
}

// timestampString renders a sample index as the mm:ss timestamp used in
// both log lines and output filenames.
func timestampString(index int, sampleRateHz float64) string {
	seconds := 0
	if sampleRateHz > 0 {
		seconds = int(float64(index) / sampleRateHz)
	}
	return fmt.Sprintf("%02dm%02ds", seconds/60, seconds%60)
}
