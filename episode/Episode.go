// Package episode implements the episodic data model of the
// agent-environment interaction: an episode maps field names to
// equal-length time series of dense tensors.
package episode

import (
	"fmt"
	"sort"
	"strings"

	"gorgonia.org/tensor"
)

// LogPrefix marks diagnostic fields. Fields carrying this prefix are
// aggregated into the metrics sink when an episode completes and are
// never part of a training window.
const LogPrefix = "log_"

// ID identifies an episode. IDs are orderable strings; within a run
// they must sort in creation order, since the eviction policy uses ID
// ordering as its recency proxy.
type ID string

// NewID mints an ID from a global monotone counter and the slot that
// produced the episode. The counter is zero-padded so lexicographic
// order equals numeric order.
func NewID(counter int, slot string) ID {
	return ID(fmt.Sprintf("%08d-%v", counter, slot))
}

// Transition is one step's worth of raw recorded values, keyed by field
// name, before dtype normalization.
type Transition map[string]interface{}

// Episode is an ordered mapping from field name to a time series of
// tensors. All series of one episode have equal length; Append
// maintains the invariant by zero-backfilling fields that first appear
// after the episode has already recorded steps.
type Episode struct {
	fields map[string][]*tensor.Dense
	names  []string // field names in first-seen order
	steps  int
}

// New returns an empty Episode.
func New() *Episode {
	return &Episode{fields: make(map[string][]*tensor.Dense)}
}

// Steps returns the number of recorded steps, including the seed reset
// step.
func (e *Episode) Steps() int {
	return e.steps
}

// Transitions returns the number of transitions, which excludes the
// seed reset step.
func (e *Episode) Transitions() int {
	if e.steps == 0 {
		return 0
	}
	return e.steps - 1
}

// Names returns the field names in first-seen order.
func (e *Episode) Names() []string {
	names := make([]string, len(e.names))
	copy(names, e.names)
	return names
}

// Field returns the time series recorded under name, or nil if the
// episode has no such field. The returned slice is owned by the
// episode.
func (e *Episode) Field(name string) []*tensor.Dense {
	return e.fields[name]
}

// Append records one step. Every value is normalized with Convert. A
// field never seen before on a non-empty episode is backfilled with
// zero-valued placeholders so all series keep equal length.
func (e *Episode) Append(t Transition) error {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		val, err := Convert(t[name])
		if err != nil {
			return fmt.Errorf("append: field %q: %v", name, err)
		}

		series, ok := e.fields[name]
		if !ok {
			e.names = append(e.names, name)
			// Fields that show up late (the action field is absent on
			// the reset step) get one zero placeholder per missed step.
			for i := 0; i < e.steps; i++ {
				series = append(series, ZeroLike(val))
			}
		}
		e.fields[name] = append(series, val)
	}

	e.steps++

	for _, name := range e.names {
		if len(e.fields[name]) != e.steps {
			return fmt.Errorf("append: field %q has %d values, want %d",
				name, len(e.fields[name]), e.steps)
		}
	}
	return nil
}

// Slice returns the window [start, stop) of every non-diagnostic field.
// The returned slices alias the episode's tensors.
func (e *Episode) Slice(start, stop int) map[string][]*tensor.Dense {
	window := make(map[string][]*tensor.Dense, len(e.fields))
	for _, name := range e.names {
		if strings.HasPrefix(name, LogPrefix) {
			continue
		}
		window[name] = e.fields[name][start:stop]
	}
	return window
}

// FieldSum sums a scalar field over the whole episode. It is used for
// episode scores and for aggregating diagnostic fields.
func (e *Episode) FieldSum(name string) float64 {
	var total float64
	for _, val := range e.fields[name] {
		switch val.Dtype() {
		case tensor.Float32:
			for _, f := range val.Float32s() {
				total += float64(f)
			}
		case tensor.Int32:
			for _, n := range val.Int32s() {
				total += float64(n)
			}
		case tensor.Uint8:
			for _, n := range val.Uint8s() {
				total += float64(n)
			}
		case tensor.Bool:
			for _, b := range val.Bools() {
				if b {
					total++
				}
			}
		}
	}
	return total
}

// StripLogs removes every diagnostic field and returns the sum of each,
// keyed by field name.
func (e *Episode) StripLogs() map[string]float64 {
	sums := make(map[string]float64)
	kept := e.names[:0]
	for _, name := range e.names {
		if !strings.HasPrefix(name, LogPrefix) {
			kept = append(kept, name)
			continue
		}
		sums[name] = e.FieldSum(name)
		delete(e.fields, name)
	}
	e.names = kept
	return sums
}

// SetField replaces the series stored under name. Series length must
// equal the episode's step count unless the episode is empty.
func (e *Episode) SetField(name string, series []*tensor.Dense) error {
	if e.steps > 0 && len(series) != e.steps {
		return fmt.Errorf("setField: field %q has %d values, want %d",
			name, len(series), e.steps)
	}
	if _, ok := e.fields[name]; !ok {
		e.names = append(e.names, name)
	}
	if e.steps == 0 {
		e.steps = len(series)
	}
	e.fields[name] = series
	return nil
}
