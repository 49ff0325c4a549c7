// Package simulation implements the vectorized simulation driver: it
// steps N environment slots in lockstep, records every transition into
// the episodic experience cache, manages episode boundaries, and drives
// the curriculum state machine.
package simulation

import (
	"fmt"
	"strings"

	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rollouts/agent"
	"github.com/samuelfneumann/rollouts/cache"
	"github.com/samuelfneumann/rollouts/environment"
	"github.com/samuelfneumann/rollouts/episode"
	"github.com/samuelfneumann/rollouts/episodeio"
	"github.com/samuelfneumann/rollouts/metrics"
	"github.com/samuelfneumann/rollouts/simulation/curriculum"
	"github.com/samuelfneumann/rollouts/utils/progressbar"
)

// Driver owns N environment slots and the only write access to the
// experience cache. All slots execute within one logical thread of
// control; the environments' shared backend may parallelize internally
// but every call from the driver is synchronous.
type Driver struct {
	envs   []environment.Environment
	policy agent.Fn
	cache  *cache.Cache
	sink   metrics.Sink
	conf   Config

	// Two-phase stepping, available when every slot batches physics
	// through a shared backend.
	batch []environment.BatchStepper
	sim   environment.Simulator

	controller *curriculum.Controller
	curEnvs    []curriculum.Env
}

// NewDriver returns a Driver over the given slots. The cache must be
// the driver's to mutate; the sampler may read it only between ticks.
func NewDriver(envs []environment.Environment, policy agent.Fn,
	c *cache.Cache, sink metrics.Sink, conf Config) (*Driver, error) {
	if len(envs) == 0 {
		return nil, fmt.Errorf("newDriver: need at least one environment")
	}
	if conf.Steps <= 0 && conf.Episodes <= 0 {
		return nil, fmt.Errorf("newDriver: need a step or episode budget")
	}

	d := &Driver{
		envs:   envs,
		policy: policy,
		cache:  c,
		sink:   sink,
		conf:   conf,
	}

	// The two-phase step is used only when every slot supports it and
	// the first slot reaches the shared backend.
	batch := make([]environment.BatchStepper, 0, len(envs))
	for _, env := range envs {
		b, ok := env.(environment.BatchStepper)
		if !ok {
			break
		}
		batch = append(batch, b)
	}
	if sim, ok := envs[0].(environment.Simulator); ok &&
		len(batch) == len(envs) {
		d.batch = batch
		d.sim = sim
	}

	if conf.Curriculum && !conf.Eval {
		curEnvs := make([]curriculum.Env, 0, len(envs))
		for _, env := range envs {
			ce, ok := env.(curriculum.Env)
			if !ok {
				break
			}
			curEnvs = append(curEnvs, ce)
		}
		if len(curEnvs) == len(envs) {
			d.controller = curriculum.NewController()
			d.curEnvs = curEnvs
		}
	}

	return d, nil
}

// Controller returns the curriculum controller, or nil when the
// curriculum is disabled.
func (d *Driver) Controller() *curriculum.Controller {
	return d.controller
}

// Run steps the slots until the configured step or episode budget is
// exhausted, then returns the full simulation state for resumption.
// Passing a previously returned state resumes the run, in-flight
// episodes included; passing nil starts fresh.
func (d *Driver) Run(state *State) (*State, error) {
	if state == nil {
		state = newState(len(d.envs))
	}
	if state.slots() != len(d.envs) {
		return nil, fmt.Errorf("run: state tracks %d slots, have %d "+
			"environments", state.slots(), len(d.envs))
	}

	var bar *progressbar.ProgressBar
	if d.conf.ProgressWidth > 0 && d.conf.Steps > 0 {
		bar = progressbar.New(d.conf.ProgressWidth, d.conf.Steps)
	}

	eval := newEvalSession(d.conf.Episodes)
	startStep, startEpisode := state.Step, state.Episode

	for d.keepRunning(state.Step-startStep, state.Episode-startEpisode) {
		if err := d.tick(state, eval); err != nil {
			return nil, fmt.Errorf("run: %v", err)
		}
		if bar != nil {
			bar.Add(len(d.envs))
			bar.Display()
		}
	}
	if bar != nil {
		bar.Close()
	}

	// An evaluation cache is kept only for diagnostic export; one
	// episode bounds its memory.
	if d.conf.Eval {
		d.cache.PruneTo(1)
	}
	return state, nil
}

// keepRunning checks the run budgets. Budgets are checked only between
// ticks; a tick always runs to completion.
func (d *Driver) keepRunning(steps, episodes int) bool {
	return (d.conf.Steps > 0 && steps < d.conf.Steps) ||
		(d.conf.Episodes > 0 && episodes < d.conf.Episodes)
}

// tick advances every slot by one step.
func (d *Driver) tick(state *State, eval *evalSession) error {
	if err := d.resetDone(state); err != nil {
		return err
	}

	obs, err := stackObservations(state.Obs)
	if err != nil {
		return err
	}
	action, agentState, err := d.policy(obs, state.Done, state.AgentState,
		!d.conf.Eval)
	if err != nil {
		return fmt.Errorf("agent: %v", err)
	}
	if action.Slots() != len(d.envs) {
		return fmt.Errorf("agent returned %d actions for %d slots",
			action.Slots(), len(d.envs))
	}
	state.AgentState = agentState

	outcomes, slotActions, err := d.step(action)
	if err != nil {
		return err
	}

	var tickReward float64
	completed := 0
	for i, out := range outcomes {
		if err := d.record(state, i, out, slotActions[i]); err != nil {
			return err
		}
		tickReward += out.Reward
		state.Length[i]++
		if out.Done {
			completed++
			state.Length[i] = 0
		}
	}
	state.Episode += completed
	state.Step += len(d.envs)

	if d.controller != nil {
		d.controller.Observe(tickReward, completed)
		d.controller.Update(d.curEnvs)
	}

	for i, out := range outcomes {
		if !out.Done {
			continue
		}
		if err := d.finishEpisode(state, i, eval); err != nil {
			return err
		}
	}
	return nil
}

// resetDone resets every slot flagged done, minting a fresh episode
// seeded with a zero-reward, full-discount transition.
func (d *Driver) resetDone(state *State) error {
	for i, done := range state.Done {
		if !done {
			continue
		}
		raw, err := d.envs[i].Reset()
		if err != nil {
			return fmt.Errorf("reset slot %d: %v", i, err)
		}

		trans := episode.Transition{}
		for name, val := range raw {
			trans[name] = val
		}
		// The seed transition has no preceding action.
		trans["reward"] = 0.0
		trans["discount"] = 1.0
		trans["is_first"] = true

		id := episode.NewID(state.NextID, d.envs[i].ID())
		state.NextID++
		state.Current[i] = id
		if err := d.cache.Insert(id, trans); err != nil {
			return err
		}

		if state.Obs[i], err = convertObservation(raw); err != nil {
			return fmt.Errorf("reset slot %d: %v", i, err)
		}
		state.Done[i] = false
	}
	return nil
}

// step advances every slot, two-phase when the backend supports it.
func (d *Driver) step(action agent.Action) ([]environment.Outcome,
	[]environment.Action, error) {
	slotActions := make([]environment.Action, len(d.envs))
	for i := range d.envs {
		fields, err := action.Slot(i)
		if err != nil {
			return nil, nil, err
		}
		slotActions[i] = fields
	}

	outcomes := make([]environment.Outcome, len(d.envs))
	if d.sim != nil {
		// Submit every slot's action before the shared backend
		// advances, and advance before any result is read.
		for i, env := range d.batch {
			if err := env.PreStep(slotActions[i]); err != nil {
				return nil, nil, fmt.Errorf("preStep slot %d: %v", i, err)
			}
		}
		if err := d.sim.SimulateSteps(); err != nil {
			return nil, nil, fmt.Errorf("simulate: %v", err)
		}
		for i, env := range d.batch {
			out, err := env.PostStep(slotActions[i])
			if err != nil {
				return nil, nil, fmt.Errorf("postStep slot %d: %v", i, err)
			}
			outcomes[i] = out
		}
		return outcomes, slotActions, nil
	}

	for i, env := range d.envs {
		out, err := env.Step(slotActions[i])
		if err != nil {
			return nil, nil, fmt.Errorf("step slot %d: %v", i, err)
		}
		outcomes[i] = out
	}
	return outcomes, slotActions, nil
}

// record appends one slot's outcome to its in-flight episode and
// updates the slot's state.
func (d *Driver) record(state *State, i int, out environment.Outcome,
	action environment.Action) error {
	trans := episode.Transition{}
	for name, val := range out.Observation {
		trans[name] = val
	}
	for name, val := range action {
		trans[name] = val
	}
	trans["reward"] = out.Reward
	trans["discount"] = discountOf(out)
	trans["is_first"] = false

	if err := d.cache.Insert(state.Current[i], trans); err != nil {
		return err
	}

	converted, err := convertObservation(out.Observation)
	if err != nil {
		return fmt.Errorf("slot %d: %v", i, err)
	}
	state.Obs[i] = converted
	state.Reward[i] = out.Reward
	state.Done[i] = out.Done
	return nil
}

// finishEpisode persists a completed episode, folds its diagnostics
// into the metrics sink, and applies the mode's bookkeeping.
func (d *Driver) finishEpisode(state *State, i int, eval *evalSession) error {
	id := state.Current[i]
	ep, err := d.cache.Get(id)
	if err != nil {
		return err
	}

	if err := episodeio.Save(d.conf.Directory, id, ep); err != nil {
		return err
	}

	length := float64(ep.Transitions())
	score := ep.FieldSum("reward")
	video := ep.Field("image")
	for name, sum := range ep.StripLogs() {
		d.sink.Scalar(name, sum)
	}

	if !d.conf.Eval {
		retained := d.cache.Evict(d.conf.StepBudget)
		d.sink.Scalar("dataset_size", float64(retained))
		d.sink.Scalar("train_return", score)
		d.sink.Scalar("train_length", length)
		d.sink.Scalar("train_episodes", float64(d.cache.Len()))
		return d.sink.Write(state.Step)
	}

	eval.observe(score, length)
	if len(video) > 0 {
		frames, err := stackSeries(video)
		if err != nil {
			return err
		}
		d.sink.Video("eval_policy", frames)
	}
	if eval.shouldWrite() {
		d.sink.Scalar("eval_return", eval.averageScore())
		d.sink.Scalar("eval_length", eval.averageLength())
		d.sink.Scalar("eval_episodes", float64(len(eval.scores)))
		return d.sink.Write(state.Step)
	}
	return nil
}

// discountOf extracts the continuation weight of an outcome: an
// explicit info entry when the environment distinguishes truncation
// from termination, else 1-done.
func discountOf(out environment.Outcome) float64 {
	if v, ok := out.Info["discount"]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	if out.Done {
		return 0.0
	}
	return 1.0
}

// convertObservation normalizes a raw observation for stacking.
// Diagnostic fields go to the cache only, never to the agent; slots may
// emit them on different steps, which would break field-wise stacking.
func convertObservation(raw environment.Observation) (
	map[string]*tensor.Dense, error) {
	converted := make(map[string]*tensor.Dense, len(raw))
	for name, val := range raw {
		if strings.HasPrefix(name, episode.LogPrefix) {
			continue
		}
		t, err := episode.Convert(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %v", name, err)
		}
		converted[name] = t
	}
	return converted, nil
}

// stackObservations stacks per-slot observations field-wise into one
// batched tensor per field. Every slot must expose the first slot's
// fields.
func stackObservations(obs []map[string]*tensor.Dense) (
	map[string]*tensor.Dense, error) {
	stacked := make(map[string]*tensor.Dense, len(obs[0]))
	for name := range obs[0] {
		series := make([]*tensor.Dense, len(obs))
		for i := range obs {
			val, ok := obs[i][name]
			if !ok {
				return nil, fmt.Errorf("stackObservations: slot %d missing "+
					"field %q", i, name)
			}
			series[i] = val
		}
		t, err := stackSeries(series)
		if err != nil {
			return nil, fmt.Errorf("stackObservations: field %q: %v", name,
				err)
		}
		stacked[name] = t
	}
	return stacked, nil
}

// stackSeries stacks equally-shaped tensors along a new leading axis.
func stackSeries(series []*tensor.Dense) (*tensor.Dense, error) {
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
