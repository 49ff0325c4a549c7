// Package agent defines the contract between the simulation driver and
// the acting policy. The driver treats the agent as an opaque callable:
// stacked observations in, one action per environment slot out, with a
// recurrent state threaded between ticks.
package agent

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rollouts/utils/tensorutils"
)

// State is the agent's opaque recurrent state, threaded from tick to
// tick by the driver. Implementations that want resumable simulation
// state must be gob-encodable.
type State interface{}

// Fn is the acting policy. Observations arrive stacked field-wise over
// environment slots, done flags one per slot. Fn returns one action per
// slot and the updated recurrent state.
type Fn func(obs map[string]*tensor.Dense, done []bool, state State,
	training bool) (Action, State, error)

// Action is either one batched array or a mapping of batched arrays,
// each sliceable per slot. The variant is resolved once per tick, not
// per element: exactly one of Single and Fields is set. Batched arrays
// are shaped [slots, ...] with at least one trailing dimension so that
// per-slot slices remain stackable.
type Action struct {
	Single *tensor.Dense
	Fields map[string]*tensor.Dense
}

// IsMapping returns whether the action is the mapping variant.
func (a Action) IsMapping() bool {
	return a.Fields != nil
}

// Slots returns the batch dimension of the action.
func (a Action) Slots() int {
	if a.IsMapping() {
		for _, t := range a.Fields {
			return t.Shape()[0]
		}
		return 0
	}
	if a.Single == nil {
		return 0
	}
	return a.Single.Shape()[0]
}

// Slot extracts slot i's share of the action as named tensors. The
// single variant yields one entry under "action"; the mapping variant
// yields each field under its own name.
func (a Action) Slot(i int) (map[string]*tensor.Dense, error) {
	if !a.IsMapping() {
		val, err := sliceSlot(a.Single, i)
		if err != nil {
			return nil, fmt.Errorf("slot: %v", err)
		}
		return map[string]*tensor.Dense{"action": val}, nil
	}

	fields := make(map[string]*tensor.Dense, len(a.Fields))
	for name, t := range a.Fields {
		val, err := sliceSlot(t, i)
		if err != nil {
			return nil, fmt.Errorf("slot: field %q: %v", name, err)
		}
		fields[name] = val
	}
	return fields, nil
}

// sliceSlot takes row i of a batched tensor, materialized so the
// returned tensor owns its data.
func sliceSlot(t *tensor.Dense, i int) (*tensor.Dense, error) {
	view, err := t.Slice(tensorutils.Index(i))
	if err != nil {
		return nil, err
	}
	return view.Materialize().(*tensor.Dense), nil
}
