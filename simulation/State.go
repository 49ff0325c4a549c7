package simulation

import (
	"encoding/gob"
	"fmt"
	"io"

	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rollouts/agent"
	"github.com/samuelfneumann/rollouts/episode"
)

// State is the full resumable state of the driver: counters, per-slot
// flags and observations, the agent's recurrent state, and the
// identifiers of in-flight episodes. A run can be paused and resumed
// from a State without losing in-flight episodes.
//
// State is gob-serializable. Agents carrying a recurrent state must
// register its concrete type with gob before Encode/DecodeState are
// used.
type State struct {
	Step    int
	Episode int

	Done       []bool
	Length     []int
	Obs        []map[string]*tensor.Dense
	AgentState agent.State
	Reward     []float64

	// Current holds each slot's in-flight episode identifier; NextID is
	// the global counter episodes are minted from.
	Current []episode.ID
	NextID  int
}

// newState returns the initial state for n slots: every slot flagged
// done so the first tick resets it.
func newState(n int) *State {
	done := make([]bool, n)
	for i := range done {
		done[i] = true
	}
	return &State{
		Done:    done,
		Length:  make([]int, n),
		Obs:     make([]map[string]*tensor.Dense, n),
		Reward:  make([]float64, n),
		Current: make([]episode.ID, n),
	}
}

// slots returns the number of environment slots the state tracks.
func (s *State) slots() int {
	return len(s.Done)
}

// Encode serializes the state to w.
func (s *State) Encode(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("encode: %v", err)
	}
	return nil
}

// DecodeState deserializes a State from r.
func DecodeState(r io.Reader) (*State, error) {
	var s State
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decodeState: %v", err)
	}
	return &s, nil
}
