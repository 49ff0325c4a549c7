package curriculum

import (
	"testing"

	"github.com/samuelfneumann/rollouts/environment"
)

// fakeEnv is a curriculum target with scripted limits and feasibility.
type fakeEnv struct {
	vals     Values
	sets     int
	feasible bool

	mapLimit      int
	obstacleLimit int
	distLimit     float64
	lengthLimit   int
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		vals: Values{
			MapSize:          10,
			Obstacles:        3,
			ObjectDistance:   2.0,
			EpisodeLength:    150,
			RewardFirstVisit: true,
		},
		mapLimit:      30,
		obstacleLimit: 10,
		distLimit:     5.0,
		lengthLimit:   500,
	}
}

func (f *fakeEnv) ID() string { return "fake" }

func (f *fakeEnv) Reset() (environment.Observation, error) {
	return environment.Observation{}, nil
}

func (f *fakeEnv) Step(environment.Action) (environment.Outcome, error) {
	return environment.Outcome{}, nil
}

func (f *fakeEnv) CurriculumValues() Values { return f.vals }

func (f *fakeEnv) SetCurriculumValues(v Values) {
	f.vals = v
	f.sets++
}

func (f *fakeEnv) MapLimit() int                { return f.mapLimit }
func (f *fakeEnv) ObstacleLimit() int           { return f.obstacleLimit }
func (f *fakeEnv) ObjectDistanceLimit() float64 { return f.distLimit }
func (f *fakeEnv) MaxEpisodeLength() int        { return f.lengthLimit }

func (f *fakeEnv) CoordsCheck(int, float64, int) bool { return f.feasible }

// TestUpdateFiresOnceOverThreshold checks the firing condition: enough
// episodes with a high enough average reward trigger exactly one
// update, and the accumulators reset.
func TestUpdateFiresOnceOverThreshold(t *testing.T) {
	c := NewController()
	env := newFakeEnv()
	envs := []Env{env}

	// Four episodes of reward 10: under the episode minimum.
	for i := 0; i < 4; i++ {
		c.Observe(10, 1)
		if c.Update(envs) {
			t.Fatalf("update fired after %d episodes", i+1)
		}
	}

	// The fifth reaches the minimum with average 10 > 6.
	c.Observe(10, 1)
	if !c.Update(envs) {
		t.Fatal("update did not fire at the episode minimum")
	}
	if env.sets != 1 {
		t.Errorf("slot updated %d times, want 1", env.sets)
	}

	// Accumulators reset: the very next episode cannot fire.
	c.Observe(10, 1)
	if c.Update(envs) {
		t.Error("update fired again without accumulating episodes")
	}
	if c.Episodes() != 1 {
		t.Errorf("episodes = %d after reset, want 1", c.Episodes())
	}
}

// TestUpdateRequiresAverageAboveThreshold checks that many mediocre
// episodes never fire.
func TestUpdateRequiresAverageAboveThreshold(t *testing.T) {
	c := NewController()
	envs := []Env{newFakeEnv()}
	for i := 0; i < 50; i++ {
		c.Observe(DefaultRewardThreshold, 1) // exactly at, never above
		if c.Update(envs) {
			t.Fatal("update fired with average at the threshold")
		}
	}
}

// TestAdvanceIncrements checks the per-parameter increments of one
// update without the feasibility bonus.
func TestAdvanceIncrements(t *testing.T) {
	c := NewController()
	env := newFakeEnv()
	c.Observe(10*DefaultMinEpisodes, DefaultMinEpisodes)
	if !c.Update([]Env{env}) {
		t.Fatal("update did not fire")
	}

	v := env.vals
	if v.MapSize != 12 {
		t.Errorf("map size = %d, want 12", v.MapSize)
	}
	if v.Obstacles != 4 {
		t.Errorf("obstacles = %d, want 4", v.Obstacles)
	}
	if v.ObjectDistance != 2.5 {
		t.Errorf("object distance = %v, want 2.5", v.ObjectDistance)
	}
	if v.EpisodeLength != 225 {
		t.Errorf("episode length = %d, want 225", v.EpisodeLength)
	}
	if v.RandomOrientation {
		t.Error("orientation randomized below the map threshold")
	}
	if !v.RewardFirstVisit {
		t.Error("first-visit shaping withdrawn below the episode cutoff")
	}
}

// TestAdvanceFeasibilityBonus checks the extra map increment when the
// raised difficulty still places feasibly.
func TestAdvanceFeasibilityBonus(t *testing.T) {
	c := NewController()
	env := newFakeEnv()
	env.feasible = true
	c.Observe(10*DefaultMinEpisodes, DefaultMinEpisodes)
	if !c.Update([]Env{env}) {
		t.Fatal("update did not fire")
	}
	if env.vals.MapSize != 15 {
		t.Errorf("map size = %d, want 15", env.vals.MapSize)
	}
}

// TestAdvanceClampsToLimits checks that every parameter clamps
// independently at its slot limit.
func TestAdvanceClampsToLimits(t *testing.T) {
	c := NewController()
	env := newFakeEnv()
	env.vals.MapSize = env.mapLimit
	env.vals.Obstacles = env.obstacleLimit
	env.vals.ObjectDistance = env.distLimit
	env.vals.EpisodeLength = env.lengthLimit
	env.feasible = true

	c.Observe(10*DefaultMinEpisodes, DefaultMinEpisodes)
	if !c.Update([]Env{env}) {
		t.Fatal("update did not fire")
	}

	v := env.vals
	if v.MapSize != env.mapLimit || v.Obstacles != env.obstacleLimit ||
		v.ObjectDistance != env.distLimit ||
		v.EpisodeLength != env.lengthLimit {
		t.Errorf("values exceeded limits: %+v", v)
	}
}

// TestAdvanceOrientationRatchet checks that a large enough map turns on
// random orientation and that it never turns back off.
func TestAdvanceOrientationRatchet(t *testing.T) {
	c := NewController()
	env := newFakeEnv()
	env.vals.MapSize = orientationThreshold - 2

	c.Observe(10*DefaultMinEpisodes, DefaultMinEpisodes)
	if !c.Update([]Env{env}) {
		t.Fatal("update did not fire")
	}
	if !env.vals.RandomOrientation {
		t.Error("orientation not randomized at the map threshold")
	}
}

// TestAdvanceShapingCutoff checks that first-visit shaping is withdrawn
// once enough episodes accumulate before an update.
func TestAdvanceShapingCutoff(t *testing.T) {
	c := NewController()
	env := newFakeEnv()

	c.Observe(10*(shapingEpisodeCutoff+1), shapingEpisodeCutoff+1)
	if !c.Update([]Env{env}) {
		t.Fatal("update did not fire")
	}
	if env.vals.RewardFirstVisit {
		t.Error("first-visit shaping survived the episode cutoff")
	}
}

// TestUpdateAdvancesEverySlot checks that one update reaches all slots.
func TestUpdateAdvancesEverySlot(t *testing.T) {
	c := NewController()
	envs := []Env{newFakeEnv(), newFakeEnv(), newFakeEnv()}

	c.Observe(10*DefaultMinEpisodes, DefaultMinEpisodes)
	if !c.Update(envs) {
		t.Fatal("update did not fire")
	}
	for i, env := range envs {
		if env.(*fakeEnv).sets != 1 {
			t.Errorf("slot %d updated %d times, want 1", i,
				env.(*fakeEnv).sets)
		}
	}
}
