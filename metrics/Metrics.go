// Package metrics implements the run-metrics sink consumed by the
// simulation driver: named scalars and video tensors, flushed to an
// append-only JSON-lines file keyed by global step.
package metrics

import (
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorgonia.org/tensor"
)

// Sink accumulates metrics between writes. The driver only consumes
// this interface; Logger is the bundled implementation.
type Sink interface {
	// Scalar records a named scalar value for the next Write.
	Scalar(name string, value float64)

	// Video records a named video tensor for the next Write.
	Video(name string, frames *tensor.Dense)

	// Write flushes accumulated metrics keyed by the global step.
	Write(step int) error
}

// Logger writes scalars as JSON lines to metrics.jsonl in its log
// directory and archives video tensors as compressed gob files next to
// it. Metrics accumulate between Write calls; Write empties them.
type Logger struct {
	logdir  string
	scalars map[string]float64
	names   []string // scalar insertion order, for stable output
	videos  map[string]*tensor.Dense

	lastStep int
	lastTime time.Time
}

var _ Sink = (*Logger)(nil)

// NewLogger returns a Logger writing under logdir, creating it if
// needed.
func NewLogger(logdir string) (*Logger, error) {
	if err := os.MkdirAll(logdir, 0o755); err != nil {
		return nil, fmt.Errorf("newLogger: %v", err)
	}
	return &Logger{
		logdir:   logdir,
		scalars:  make(map[string]float64),
		videos:   make(map[string]*tensor.Dense),
		lastStep: -1,
	}, nil
}

// Scalar records a named scalar value for the next Write.
func (l *Logger) Scalar(name string, value float64) {
	if _, ok := l.scalars[name]; !ok {
		l.names = append(l.names, name)
	}
	l.scalars[name] = value
}

// Video records a named video tensor for the next Write.
func (l *Logger) Video(name string, frames *tensor.Dense) {
	l.videos[name] = frames
}

// Write appends one JSON line holding every accumulated scalar plus the
// steps-per-second rate since the previous Write, prints a summary, and
// archives accumulated videos. Accumulated metrics are cleared.
func (l *Logger) Write(step int) error {
	record := map[string]interface{}{"step": step}
	summary := fmt.Sprintf("[%d]", step)
	for _, name := range l.names {
		record[name] = l.scalars[name]
		summary += fmt.Sprintf(" / %s %.4f", name, l.scalars[name])
	}
	if fps := l.fps(step); fps >= 0 {
		record["fps"] = fps
	}
	fmt.Println(summary)

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("write: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(l.logdir, "metrics.jsonl"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("write: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write: %v", err)
	}

	for name, frames := range l.videos {
		if err := l.writeVideo(name, step, frames); err != nil {
			return fmt.Errorf("write: %v", err)
		}
	}

	l.scalars = make(map[string]float64)
	l.names = l.names[:0]
	l.videos = make(map[string]*tensor.Dense)
	return nil
}

// fps returns steps per second since the last Write, or -1 on the
// first Write.
func (l *Logger) fps(step int) float64 {
	now := time.Now()
	if l.lastStep < 0 {
		l.lastStep = step
		l.lastTime = now
		return -1
	}
	duration := now.Sub(l.lastTime).Seconds()
	steps := float64(step - l.lastStep)
	l.lastStep = step
	l.lastTime = now
	if duration <= 0 {
		return 0
	}
	return steps / duration
}

// writeVideo archives one video tensor as {name}-{step}.gob.gz.
func (l *Logger) writeVideo(name string, step int,
	frames *tensor.Dense) error {
	filename := filepath.Join(l.logdir, fmt.Sprintf("%s-%d.gob.gz", name,
		step))
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if err := gob.NewEncoder(zw).Encode(frames); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
