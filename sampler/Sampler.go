// Package sampler reconstitutes fixed-length training windows from
// cached or reloaded episodes, stitching across episode boundaries so
// throughput is independent of the episode length distribution.
package sampler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rollouts/episode"
	"github.com/samuelfneumann/rollouts/utils/intutils"
)

// isFirst marks true episode starts inside a stitched window.
const isFirst = "is_first"

var errNoSampleable = errors.New("no episode with at least 2 steps")

// IsNoSampleable returns whether or not an error reports that every
// episode presented to the sampler is too short to take a window from.
func IsNoSampleable(err error) bool {
	return errors.Is(err, errNoSampleable)
}

// Window is a fixed-length training slice: field name to a time series
// of exactly the requested length, possibly concatenated from several
// episodes.
type Window map[string][]*tensor.Dense

// Sampler produces an endless sequence of fixed-length windows from a
// snapshot of episodes. Episodes are drawn from a categorical
// distribution weighted by transition count, so short episodes are
// stitched together more often than long ones, by design.
//
// The sampler is driven by a single seeded generator and is not safe
// for concurrent use; it reads the snapshot only between driver ticks.
type Sampler struct {
	episodes map[episode.ID]*episode.Episode
	ids      []episode.ID
	length   int
	src      rand.Source
	rng      *rand.Rand
}

// New returns a Sampler over the given episode snapshot yielding
// windows of exactly length steps. Sequences are reproducible given the
// same seed and snapshot.
func New(episodes map[episode.ID]*episode.Episode, length int,
	seed uint64) (*Sampler, error) {
	if length < 1 {
		return nil, fmt.Errorf("new: window length must be >= 1, got %d",
			length)
	}

	ids := make([]episode.ID, 0, len(episodes))
	for id := range episodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	src := rand.NewSource(seed)
	return &Sampler{
		episodes: episodes,
		ids:      ids,
		length:   length,
		src:      src,
		rng:      rand.New(src),
	}, nil
}

// categorical builds the episode distribution, weighted by each
// episode's transition count.
func (s *Sampler) categorical() (distuv.Categorical, error) {
	weights := make([]float64, len(s.ids))
	var total float64
	for i, id := range s.ids {
		weights[i] = float64(s.episodes[id].Transitions())
		total += weights[i]
	}
	if total <= 0 {
		return distuv.Categorical{}, &SamplerError{Op: "categorical",
			Err: errNoSampleable}
	}
	return distuv.NewCategorical(weights, s.src), nil
}

// Next yields one window of exactly the configured length.
func (s *Sampler) Next() (Window, error) {
	dist, err := s.categorical()
	if err != nil {
		return nil, err
	}

	var window Window
	size := 0
	for size < s.length {
		ep := s.episodes[s.ids[int(dist.Rand())]]
		total := ep.Steps()
		// A degenerate episode holds only its reset step; redraw.
		if total < 2 {
			continue
		}

		if window == nil {
			index := s.rng.Intn(total - 1)
			stop := intutils.Min(index+s.length, total)
			window = copySlices(ep.Slice(index, stop))
			// The slice may begin mid-episode; index 0 of a window is
			// a true start regardless.
			forceFirst(window, 0)
			size = stop - index
			continue
		}

		possible := s.length - size
		stop := intutils.Min(possible, total)
		appendFragment(window, ep.Slice(0, stop), stop)
		forceFirst(window, size)
		size += stop
	}
	return window, nil
}

// copySlices duplicates the slice headers of a window so that forcing
// is_first never mutates tensors owned by the cache.
func copySlices(fields map[string][]*tensor.Dense) Window {
	window := make(Window, len(fields))
	for name, series := range fields {
		window[name] = append([]*tensor.Dense{}, series...)
	}
	return window
}

// appendFragment concatenates a fresh episode fragment onto the
// accumulated window along the time axis. Episodes are allowed to have
// heterogeneous schemas: fields missing from the fragment are
// zero-extended, fields missing from the window are ignored.
func appendFragment(window Window, fragment map[string][]*tensor.Dense,
	n int) {
	for name, series := range window {
		frag, ok := fragment[name]
		if !ok {
			last := series[len(series)-1]
			for i := 0; i < n; i++ {
				window[name] = append(window[name], episode.ZeroLike(last))
			}
			continue
		}
		window[name] = append(window[name], frag...)
	}
}

// forceFirst marks position i of the window's is_first field true, if
// the field exists. The tensor at i is replaced, never written through,
// since it may be shared with the cache.
func forceFirst(window Window, i int) {
	if _, ok := window[isFirst]; !ok {
		return
	}
	window[isFirst][i] = tensor.New(tensor.WithBacking([]bool{true}))
}

// Len returns the time length of the window.
func (w Window) Len() int {
	for _, series := range w {
		return len(series)
	}
	return 0
}

// Stack stacks every field of the window along a new leading time
// axis, yielding one [T, ...] tensor per field.
func (w Window) Stack() (map[string]*tensor.Dense, error) {
	stacked := make(map[string]*tensor.Dense, len(w))
	for name, series := range w {
		if strings.HasPrefix(name, episode.LogPrefix) {
			continue
		}
		t, err := stackAll(series)
		if err != nil {
			return nil, fmt.Errorf("stack: field %q: %v", name, err)
		}
		stacked[name] = t
	}
	return stacked, nil
}

// stackAll stacks a series of equally-shaped tensors along a new
// leading axis.
func stackAll(series []*tensor.Dense) (*tensor.Dense, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("stackAll: empty series")
	}
	first := series[0].Clone().(*tensor.Dense)
	if len(series) == 1 {
		shape := append([]int{1}, first.Shape()...)
		if err := first.Reshape(shape...); err != nil {
			return nil, err
		}
		return first, nil
	}
	return first.Stack(0, series[1:]...)
}

// SamplerError implements errors unique to the window sampler.
type SamplerError struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *SamplerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the wrapped error
func (e *SamplerError) Unwrap() error {
	return e.Err
}
