// Package output names and writes the decoded byte runs a Pipeline
// produces, one file per run, using the timestamped naming scheme of
// spec.md §6.2.
package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"kcsdecode/internal/pipeline"
)

// Namer renders a Run's output filename. Direction is included so the
// positive- and negative-edge pipelines for the same channel never
// collide.
type Namer struct {
	Prefix       string
	Channel      int
	Direction    pipeline.Direction
	SampleRateHz float64
}

// Path returns "<prefix>-ch<channel>-<mm>m<ss>s-<dir>.dat" for the run's
// start index. Prefix may itself include a directory component.
func (n Namer) Path(run pipeline.Run) string {
	seconds := 0
	if n.SampleRateHz > 0 {
		seconds = int(float64(run.StartIndex) / n.SampleRateHz)
	}
	return fmt.Sprintf("%s-ch%d-%02dm%02ds-%s.dat", n.Prefix, n.Channel, seconds/60, seconds%60, n.Direction)
}

// WriteRun writes a run's bytes to path, creating its parent directory if
// needed.
func WriteRun(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "output: create directory %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "output: write %s", path)
	}
	return nil
}

// WriteRuns names and writes every run, returning the paths written in
// order. It stops at the first write error.
func WriteRuns(namer Namer, runs []pipeline.Run) ([]string, error) {
	paths := make([]string, 0, len(runs))
	for _, run := range runs {
		path := namer.Path(run)
		if err := WriteRun(path, run.Data); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ASCIIPreview renders a run's bytes in the range 32 through 127 (space
// through DEL), plus CR and LF, as a string, dropping everything else. It is a best-effort log
// preview, not a decode of the run's actual encoding.
func ASCIIPreview(data []byte) string {
	out := make([]byte, 0, len(data))
	for _, c := range data {
		if (c >= 32 && c <= 127) || c == '\r' || c == '\n' {
			out = append(out, c)
		}
	}
	return string(out)
}
