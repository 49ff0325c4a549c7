package sampler

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Batch draws b windows and stacks them field-wise into [B, T, ...]
// tensors ready for the learner. Fields are taken from the first
// window's schema; windows drawn from one snapshot share a schema
// because stitching zero-extends missing fields.
func (s *Sampler) Batch(b int) (map[string]*tensor.Dense, error) {
	if b < 1 {
		return nil, fmt.Errorf("batch: batch size must be >= 1, got %d", b)
	}

	stacked := make([]map[string]*tensor.Dense, b)
	for i := 0; i < b; i++ {
		window, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("batch: %v", err)
		}
		if stacked[i], err = window.Stack(); err != nil {
			return nil, fmt.Errorf("batch: %v", err)
		}
	}

	batch := make(map[string]*tensor.Dense, len(stacked[0]))
	for name := range stacked[0] {
		series := make([]*tensor.Dense, b)
		for i := 0; i < b; i++ {
			field, ok := stacked[i][name]
			if !ok {
				return nil, fmt.Errorf("batch: window %d missing field %q",
					i, name)
			}
			series[i] = field
		}
		t, err := stackAll(series)
		if err != nil {
			return nil, fmt.Errorf("batch: field %q: %v", name, err)
		}
		batch[name] = t
	}
	return batch, nil
}
