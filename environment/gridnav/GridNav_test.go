package gridnav

import (
	"testing"

	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rollouts/environment"
	"github.com/samuelfneumann/rollouts/simulation/curriculum"
)

func testConfig(seed uint64) Config {
	conf := DefaultConfig(seed)
	conf.Obstacles = 1
	conf.ObjectDistance = 1.5
	return conf
}

func action(a int) environment.Action {
	return environment.Action{
		"action": tensor.New(tensor.WithBacking([]int32{int32(a)})),
	}
}

// TestResetObservation checks the observation schema of a fresh
// episode.
func TestResetObservation(t *testing.T) {
	world, err := NewWorld(testConfig(1), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := world.Slots()[0]

	obs, err := env.Reset()
	if err != nil {
		t.Fatalf("reset: %v", err)
	}

	img, ok := obs["image"].(*tensor.Dense)
	if !ok {
		t.Fatal("image observation is not a tensor")
	}
	side := testConfig(1).MapSize * DefaultCellPixels
	shape := img.Shape()
	if shape[0] != side || shape[1] != side || shape[2] != 3 {
		t.Errorf("image shape %v, want [%d %d 3]", shape, side, side)
	}
	if img.Dtype() != tensor.Uint8 {
		t.Errorf("image dtype %v, want uint8", img.Dtype())
	}

	pose, ok := obs["position"].([]float64)
	if !ok || len(pose) != 3 {
		t.Fatalf("position observation = %v, want 3 floats", obs["position"])
	}
}

// TestStepTurnAndMove checks heading arithmetic and forward movement.
func TestStepTurnAndMove(t *testing.T) {
	world, err := NewWorld(testConfig(2), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := world.slots[0]
	if _, err := g.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	// Pin the layout so movement is unobstructed.
	g.agent = point{Row: 4, Col: 4}
	g.goal = point{Row: 0, Col: 0}
	g.blocked = map[point]bool{}
	g.heading = north

	out, err := g.Step(action(TurnRight))
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if g.heading != east {
		t.Errorf("heading = %d after right turn, want east", g.heading)
	}
	if out.Done {
		t.Error("turning ended the episode")
	}

	if _, err := g.Step(action(Forward)); err != nil {
		t.Fatalf("step: %v", err)
	}
	if g.agent != (point{Row: 4, Col: 5}) {
		t.Errorf("agent at %v after moving east, want {4 5}", g.agent)
	}

	if _, err := g.Step(action(TurnLeft)); err != nil {
		t.Fatalf("step: %v", err)
	}
	if g.heading != north {
		t.Errorf("heading = %d after left turn, want north", g.heading)
	}
}

// TestStepBlocked checks that walls and obstacles stop the agent.
func TestStepBlocked(t *testing.T) {
	world, err := NewWorld(testConfig(3), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := world.slots[0]
	if _, err := g.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	g.goal = point{Row: 7, Col: 7}
	g.agent = point{Row: 0, Col: 3}
	g.heading = north
	if _, err := g.Step(action(Forward)); err != nil {
		t.Fatalf("step: %v", err)
	}
	if g.agent != (point{Row: 0, Col: 3}) {
		t.Errorf("agent walked off the map to %v", g.agent)
	}

	g.heading = east
	g.blocked = map[point]bool{{Row: 0, Col: 4}: true}
	if _, err := g.Step(action(Forward)); err != nil {
		t.Fatalf("step: %v", err)
	}
	if g.agent != (point{Row: 0, Col: 3}) {
		t.Errorf("agent walked into an obstacle at %v", g.agent)
	}
}

// TestGoalEndsEpisode checks the terminal transition: goal reward, done
// flag, and no discount override.
func TestGoalEndsEpisode(t *testing.T) {
	world, err := NewWorld(testConfig(4), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := world.slots[0]
	if _, err := g.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	g.agent = point{Row: 2, Col: 2}
	g.goal = point{Row: 1, Col: 2}
	g.blocked = map[point]bool{}
	g.heading = north

	out, err := g.Step(action(Forward))
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if !out.Done {
		t.Error("reaching the goal did not end the episode")
	}
	if out.Reward < goalReward {
		t.Errorf("goal reward = %v, want >= %v", out.Reward, goalReward)
	}
	if _, ok := out.Info["discount"]; ok {
		t.Error("true termination set a discount override")
	}
	if out.Observation["log_goal"] != 1.0 {
		t.Error("goal step missing its diagnostic")
	}
}

// TestTimeLimitTruncates checks that hitting the episode length cuts the
// episode with a full-discount override.
func TestTimeLimitTruncates(t *testing.T) {
	conf := testConfig(5)
	conf.EpisodeLength = 2
	world, err := NewWorld(conf, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := world.slots[0]
	if _, err := g.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	g.goal = point{Row: 7, Col: 7}
	g.agent = point{Row: 0, Col: 0}

	if _, err := g.Step(action(TurnLeft)); err != nil {
		t.Fatalf("step: %v", err)
	}
	out, err := g.Step(action(TurnLeft))
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if !out.Done {
		t.Error("time limit did not end the episode")
	}
	if d, ok := out.Info["discount"]; !ok || d != 1.0 {
		t.Errorf("truncation discount = %v, want 1.0 override", d)
	}
}

// TestFirstVisitShaping checks that revisiting a cell earns nothing and
// that the shaping flag withdraws the bonus.
func TestFirstVisitShaping(t *testing.T) {
	world, err := NewWorld(testConfig(6), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := world.slots[0]
	if _, err := g.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	g.agent = point{Row: 3, Col: 3}
	g.goal = point{Row: 7, Col: 7}
	g.blocked = map[point]bool{}
	g.visited = map[point]bool{g.agent: true}
	g.heading = north

	out, err := g.Step(action(Forward))
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if out.Reward != stepCost+visitReward {
		t.Errorf("first visit reward = %v, want %v", out.Reward,
			stepCost+visitReward)
	}

	// Walk back onto a visited cell.
	g.heading = south
	out, err = g.Step(action(Forward))
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if out.Reward != stepCost {
		t.Errorf("revisit reward = %v, want %v", out.Reward, stepCost)
	}

	// Withdraw shaping: new cells no longer pay.
	vals := g.CurriculumValues()
	vals.RewardFirstVisit = false
	g.SetCurriculumValues(vals)
	g.heading = east
	out, err = g.Step(action(Forward))
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if out.Reward != stepCost {
		t.Errorf("unshaped reward = %v, want %v", out.Reward, stepCost)
	}
}

// TestTwoPhaseMatchesProtocol checks PreStep/SimulateSteps/PostStep
// against the immediate Step path.
func TestTwoPhaseMatchesProtocol(t *testing.T) {
	world, err := NewWorld(testConfig(7), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, g := range world.slots {
		if _, err := g.Reset(); err != nil {
			t.Fatalf("reset: %v", err)
		}
	}

	for _, g := range world.slots {
		if err := g.PreStep(action(TurnRight)); err != nil {
			t.Fatalf("preStep: %v", err)
		}
	}

	// Results are unavailable until the shared step runs.
	if _, err := world.slots[0].PostStep(action(TurnRight)); err == nil {
		t.Error("postStep succeeded before the world advanced")
	}

	if err := world.slots[0].SimulateSteps(); err != nil {
		t.Fatalf("simulateSteps: %v", err)
	}
	for i, g := range world.slots {
		out, err := g.PostStep(action(TurnRight))
		if err != nil {
			t.Fatalf("postStep slot %d: %v", i, err)
		}
		if out.Observation == nil {
			t.Fatalf("slot %d has no outcome after the shared step", i)
		}
		if g.heading != east {
			t.Errorf("slot %d heading = %d, want east", i, g.heading)
		}
	}
}

// TestScatterRespectsDistance checks object placement spacing and the
// feasibility probe built on it.
func TestScatterRespectsDistance(t *testing.T) {
	world, err := NewWorld(testConfig(8), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := world.slots[0]

	points, ok := g.scatter(4, 2.0, 12)
	if !ok {
		t.Fatal("could not place 4 objects on a 12x12 map")
	}
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if d := points[i].distance(points[j]); d < 2.0 {
				t.Errorf("objects %d and %d are %v apart, want >= 2", i,
					j, d)
			}
		}
	}

	// An impossible request must report infeasible, not hang.
	if g.CoordsCheck(50, 3.0, 4) {
		t.Error("feasibility probe accepted an impossible layout")
	}
}

// TestCurriculumInterface checks that slots expose their limits for the
// difficulty controller.
func TestCurriculumInterface(t *testing.T) {
	conf := testConfig(9)
	world, err := NewWorld(conf, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var env curriculum.Env = world.slots[0]
	if env.MapLimit() != conf.MapLimit {
		t.Errorf("map limit = %d, want %d", env.MapLimit(), conf.MapLimit)
	}
	if env.MaxEpisodeLength() != conf.MaxEpisodeLength {
		t.Errorf("length limit = %d, want %d", env.MaxEpisodeLength(),
			conf.MaxEpisodeLength)
	}

	vals := env.CurriculumValues()
	if vals.MapSize != conf.MapSize || vals.Obstacles != conf.Obstacles {
		t.Errorf("initial values %+v do not match config", vals)
	}
}
