package tickfeed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"sim-broker/internal/engine"
	"sim-broker/pkg/utils"
)

// JSONLReplay reads one JSON encoded tick per line. Blank lines and lines
// starting with '#' are skipped.
type JSONLReplay struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

func NewJSONLReplay(r io.Reader) *JSONLReplay {
	return &JSONLReplay{scanner: bufio.NewScanner(r)}
}

// Open replays the ticks stored in the file at path.
func Open(path string) (*JSONLReplay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tick file: %w", err)
	}
	r := NewJSONLReplay(f)
	r.closer = f
	return r, nil
}

func (r *JSONLReplay) Next(ctx context.Context) (engine.Tick, error) {
	for {
		if err := ctx.Err(); err != nil {
			return engine.Tick{}, err
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return engine.Tick{}, err
			}
			return engine.Tick{}, io.EOF
		}
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var t engine.Tick
		if err := json.Unmarshal([]byte(text), &t); err != nil {
			return engine.Tick{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return t, nil
	}
}

func (r *JSONLReplay) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Run feeds every tick of src to exec until the source is exhausted or ctx is
// done. It returns the number of ticks executed and fills produced.
func Run(ctx context.Context, src Source, exec Executor) (ticks, fills int, err error) {
	for {
		t, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ticks, fills, err
		}
		ticks++
		fills += exec.Execute(t)
	}
	utils.Logger.WithFields(logrus.Fields{
		"ticks": ticks,
		"fills": fills,
	}).Info("Replay finished")
	return ticks, fills, nil
}
