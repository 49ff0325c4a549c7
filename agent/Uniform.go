package agent

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

// Uniform returns an acting policy that samples each action dimension
// from a uniform categorical distribution over {0, ..., n-1},
// independently per slot. It carries no recurrent state. Useful for
// seeding an experience cache and for driving tests.
func Uniform(actions int, seed uint64) Fn {
	source := rand.NewSource(seed)

	weights := make([]float64, actions)
	for i := range weights {
		weights[i] = 1.0 / float64(len(weights))
	}
	dist := distuv.NewCategorical(weights, source)

	return func(obs map[string]*tensor.Dense, done []bool, state State,
		training bool) (Action, State, error) {
		slots := len(done)
		backing := make([]int32, slots)
		for i := range backing {
			backing[i] = int32(dist.Rand())
		}

		action := tensor.New(tensor.WithShape(slots, 1),
			tensor.WithBacking(backing))
		return Action{Single: action}, state, nil
	}
}
