// Package environment outlines the interfaces a simulated environment
// must satisfy to be driven by the simulation driver. Environments run
// one per slot; a backend shared between slots may batch its physics
// behind the BatchStepper/Simulator split.
package environment

import "gorgonia.org/tensor"

// Observation is one slot's raw observation, keyed by field name.
// Values are normalized by episode.Convert before they reach the cache
// or the agent.
type Observation map[string]interface{}

// Action is one slot's share of the agent's action, keyed by field
// name. Agents emitting a single array deliver it under "action".
type Action map[string]*tensor.Dense

// Outcome is the result of stepping an environment once.
type Outcome struct {
	Observation Observation
	Reward      float64
	Done        bool

	// Info carries auxiliary values. A "discount" entry overrides the
	// 1-done continuation weight, distinguishing time-limit truncation
	// from true termination.
	Info map[string]interface{}
}

// Environment is one environment slot. Reset and Step are synchronous:
// they return only when the result is available.
type Environment interface {
	// ID returns a stable identifier for this slot, used to mint
	// episode identifiers.
	ID() string

	// Reset starts a new episode and returns its initial observation.
	Reset() (Observation, error)

	// Step advances the slot by one action.
	Step(action Action) (Outcome, error)
}

// BatchStepper is implemented by environments whose shared backend
// batches physics across slots. The driver submits every slot's action
// with PreStep, advances the shared backend once through Simulator,
// then collects each slot's result with PostStep. All submissions
// complete before the shared step, and the shared step completes before
// any result is read.
type BatchStepper interface {
	Environment

	// PreStep submits an action without advancing the backend.
	PreStep(action Action) error

	// PostStep retrieves the slot's outcome after the shared backend
	// has advanced.
	PostStep(action Action) (Outcome, error)
}

// Simulator advances a shared simulation backend once for every slot
// with a pending action. One Simulator typically backs all slots; the
// driver invokes it through the first slot.
type Simulator interface {
	SimulateSteps() error
}
