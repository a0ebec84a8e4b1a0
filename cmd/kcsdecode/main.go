// Command kcsdecode decodes a Kansas City Standard cassette-tape audio
// recording into the byte stream it originally encoded.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	charmlog "github.com/charmbracelet/log"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"kcsdecode/internal/config"
	"kcsdecode/internal/metrics"
	"kcsdecode/internal/output"
	"kcsdecode/internal/pcm"
	"kcsdecode/internal/pipeline"
)

var log = charmlog.New(os.Stderr)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

type cliFlags struct {
	prefix       string
	channel      string
	preset       string
	baudRate     uint16
	numStartBits uint8
	numDataBits  uint8
	numStopBits  uint8
	parity       string
	startBit     string
	stopBit      string
	minRunBytes  int
	configPath   string
	metricsAddr  string
	verbose      bool
}

func run(args []string) error {
	fs := flag.NewFlagSet("kcsdecode", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: kcsdecode [flags] <input.wav>")
		fs.PrintDefaults()
	}

	var f cliFlags
	fs.StringVar(&f.prefix, "prefix", "", "output file prefix (default: input filename minus .wav)")
	fs.StringVarP(&f.channel, "channel", "c", "All", "channel selector: All|0|1|...")
	fs.StringVarP(&f.preset, "preset", "p", "Standard", "Standard|NASCOM|Acorn|MSX1200|MSX2400")
	fs.Uint16Var(&f.baudRate, "baud-rate", 0, "overrides symbols: {B Hz -> Space, 1 period}, {2B Hz -> Mark, 2 periods}")
	fs.Uint8Var(&f.numStartBits, "num-startbits", 0, "override start bit count")
	fs.Uint8Var(&f.numDataBits, "num-databits", 0, "override data bit count")
	fs.Uint8Var(&f.numStopBits, "num-stopbits", 0, "override stop bit count")
	fs.StringVar(&f.parity, "parity", "", "None|Even|Odd|Mark|Space")
	fs.StringVar(&f.startBit, "startbit", "", "Mark|Space")
	fs.StringVar(&f.stopBit, "stopbit", "", "Mark|Space")
	fs.IntVar(&f.minRunBytes, "min-run-bytes", 0, "minimum bytes for a run to be written (default 10)")
	fs.StringVar(&f.configPath, "config", "", "YAML file of DecoderConfig field overrides, applied after preset, before flags")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics at this address until decode completes")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug-level logging (surfaces Signal errors too)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("kcsdecode: expected exactly one input WAV path")
	}
	inputPath := fs.Arg(0)
	if strings.ToLower(filepath.Ext(inputPath)) != ".wav" {
		return errors.Errorf("kcsdecode: input file %q is not a .wav file", inputPath)
	}

	if f.verbose {
		log.SetLevel(charmlog.DebugLevel)
	}

	cfg, err := resolveConfig(f)
	if err != nil {
		return errors.Wrap(err, "kcsdecode: resolving configuration")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "kcsdecode: invalid configuration")
	}

	prefix := f.prefix
	if prefix == "" {
		base := filepath.Base(inputPath)
		prefix = strings.TrimSuffix(base, filepath.Ext(base))
	}

	m, reg := metrics.New()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if f.metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, f.metricsAddr, reg); err != nil {
				log.Error("metrics server stopped", "err", err)
			}
		}()
		log.Info("metrics listening", "addr", f.metricsAddr)
	}

	channels, err := resolveChannels(inputPath, cfg.Channels)
	if err != nil {
		return errors.Wrap(err, "kcsdecode: resolving channel list")
	}

	return decodeAll(inputPath, prefix, cfg, channels, m)
}

// resolveConfig layers preset < YAML config file < individual flags, per
// the precedence described in the CLI surface.
func resolveConfig(f cliFlags) (config.DecoderConfig, error) {
	cfg := config.PresetConfig(config.ParsePreset(f.preset))
	cfg.Channels = config.ParseChannels(f.channel)

	if f.configPath != "" {
		overridden, err := applyYAMLOverrides(cfg, f.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = overridden
	}

	if f.baudRate != 0 {
		cfg = cfg.WithBaudRate(f.baudRate)
	}
	if f.numStartBits != 0 {
		cfg.StartBits.Count = int(f.numStartBits)
	}
	if f.numDataBits != 0 {
		cfg.NumDataBits = int(f.numDataBits)
	}
	if f.numStopBits != 0 {
		cfg.StopBits.Count = int(f.numStopBits)
	}
	if f.parity != "" {
		cfg.Parity = config.ParseParity(f.parity)
	}
	if f.startBit != "" {
		cfg.StartBits.Level = config.ParseSignalCondition(f.startBit)
	}
	if f.stopBit != "" {
		cfg.StopBits.Level = config.ParseSignalCondition(f.stopBit)
	}
	if f.minRunBytes != 0 {
		cfg.MinRunBytes = f.minRunBytes
	}
	return cfg, nil
}

// yamlOverrides mirrors the subset of DecoderConfig a YAML file may set;
// zero/absent fields leave the preset's value untouched.
type yamlOverrides struct {
	NumDataBits        *int    `yaml:"num_databits"`
	Parity             *string `yaml:"parity"`
	FrequencyTolerance *int    `yaml:"frequency_tolerance"`
	MinRunBytes        *int    `yaml:"min_run_bytes"`
}

func applyYAMLOverrides(cfg config.DecoderConfig, path string) (config.DecoderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config file %s", path)
	}
	var o yamlOverrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return cfg, errors.Wrapf(err, "parsing config file %s", path)
	}
	if o.NumDataBits != nil {
		cfg.NumDataBits = *o.NumDataBits
	}
	if o.Parity != nil {
		cfg.Parity = config.ParseParity(*o.Parity)
	}
	if o.FrequencyTolerance != nil {
		cfg.FrequencyTolerance = *o.FrequencyTolerance
	}
	if o.MinRunBytes != nil {
		cfg.MinRunBytes = *o.MinRunBytes
	}
	return cfg, nil
}

// resolveChannels expands a Channels selector into the concrete channel
// indices present in the input file.
func resolveChannels(inputPath string, sel config.Channels) ([]int, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", inputPath)
	}
	defer f.Close()

	src, err := pcm.Open(f, 0)
	if err != nil {
		return nil, err
	}
	n := src.NumChannels()

	if !sel.All {
		if int(sel.Specific) >= n {
			return nil, errors.Errorf("channel %d out of range for %d-channel file", sel.Specific, n)
		}
		return []int{int(sel.Specific)}, nil
	}
	channels := make([]int, n)
	for i := range channels {
		channels[i] = i
	}
	return channels, nil
}

// decodeAll fans out one goroutine per (channel, direction) pair, each
// owning an independently constructed Pipeline and its own pcm.Source, and
// collects every channel's output runs to disk as they complete. A single
// pipeline's error is logged and recorded but does not cancel its siblings;
// once every goroutine has finished, the first recorded error is returned.
func decodeAll(inputPath, prefix string, cfg config.DecoderConfig, channels []int, m *metrics.Metrics) error {
	g := new(errgroup.Group)
	var mu sync.Mutex
	var writeErr error

	for _, ch := range channels {
		for _, dir := range []pipeline.Direction{pipeline.Pos, pipeline.Neg} {
			ch, dir := ch, dir
			g.Go(func() error {
				err := decodeOne(inputPath, prefix, cfg, ch, dir, m)
				if err != nil {
					log.Error("channel decode failed", "channel", ch, "direction", dir, "err", err)
					mu.Lock()
					if writeErr == nil {
						writeErr = err
					}
					mu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	return writeErr
}

func decodeOne(inputPath, prefix string, cfg config.DecoderConfig, channel int, dir pipeline.Direction, m *metrics.Metrics) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", inputPath)
	}
	defer f.Close()

	src, err := pcm.Open(f, channel)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Options{
		Config:       cfg,
		SampleRateHz: src.SampleRateHz(),
		Channel:      channel,
		Direction:    dir,
		Log:          log,
	})
	if err != nil {
		return errors.Wrap(err, "constructing pipeline")
	}

	runs := p.Drain(src.Next)

	namer := output.Namer{Prefix: prefix, Channel: channel, Direction: dir, SampleRateHz: src.SampleRateHz()}
	paths, err := output.WriteRuns(namer, runs)
	if err != nil {
		return errors.Wrap(err, "writing output runs")
	}
	for i, path := range paths {
		log.Info("wrote run", "path", path, "channel", channel, "direction", dir,
			"bytes", len(runs[i].Data), "preview", truncate(output.ASCIIPreview(runs[i].Data), 40))
	}

	stats := p.Stats()
	labels := map[string]string{"channel": strconv.Itoa(channel), "direction": dir.String()}
	m.BytesDecoded.With(labels).Add(float64(stats.BytesDecoded))
	m.RunsEmitted.With(labels).Add(float64(stats.RunsEmitted))
	m.RunsDropped.With(labels).Add(float64(stats.RunsDropped))
	for kind, count := range stats.FramingErrors {
		m.FramingErrors.With(map[string]string{
			"channel": labels["channel"], "direction": labels["direction"], "kind": kind.String(),
		}).Add(float64(count))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
