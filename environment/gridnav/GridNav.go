// Package gridnav implements a curriculum-parameterized grid navigation
// environment. A shared World backs any number of slots; each slot is an
// independent grid in which an oriented agent must reach a goal cell
// while avoiding obstacles. Slots step in two phases so the driver can
// batch the shared backend's work between action submission and result
// collection.
package gridnav

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/rollouts/environment"
	"github.com/samuelfneumann/rollouts/simulation/curriculum"
)

// Actions. The agent is oriented; it never moves sideways.
const (
	TurnLeft int = iota
	TurnRight
	Forward

	// Actions is the size of the action set.
	Actions
)

// Headings, clockwise from north.
const (
	north int = iota
	east
	south
	west
)

// Rewards. The goal reward dominates so the curriculum threshold is
// only reachable by finishing episodes.
const (
	goalReward  = 10.0
	stepCost    = -0.01
	visitReward = 0.1
)

// placementTries bounds rejection sampling when scattering objects.
const placementTries = 100

type point struct {
	Row, Col int
}

func (p point) distance(q point) float64 {
	dr := float64(p.Row - q.Row)
	dc := float64(p.Col - q.Col)
	return math.Sqrt(dr*dr + dc*dc)
}

// World is the shared backend behind a set of GridNav slots. All slots
// draw from one random stream so a run is reproducible from a single
// seed.
type World struct {
	slots []*GridNav
	src   rand.Source
	rng   *rand.Rand
}

// NewWorld creates a shared world with the given number of slots.
func NewWorld(conf Config, slots int) (*World, error) {
	if slots <= 0 {
		return nil, fmt.Errorf("newWorld: need at least one slot")
	}
	if conf.MapSize < 3 {
		return nil, fmt.Errorf("newWorld: map size %d too small",
			conf.MapSize)
	}
	if conf.CellPixels == 0 {
		conf.CellPixels = DefaultCellPixels
	}

	src := rand.NewSource(conf.Seed)
	w := &World{src: src, rng: rand.New(src)}
	for i := 0; i < slots; i++ {
		g := &GridNav{
			world:   w,
			id:      fmt.Sprintf("gridnav%d", i),
			conf:    conf,
			pending: -1,
			vals: curriculum.Values{
				MapSize:           conf.MapSize,
				RandomOrientation: conf.RandomOrientation,
				Obstacles:         conf.Obstacles,
				ObjectDistance:    conf.ObjectDistance,
				EpisodeLength:     conf.EpisodeLength,
				RewardFirstVisit:  conf.RewardFirstVisit,
			},
		}
		w.slots = append(w.slots, g)
	}
	return w, nil
}

// Slots returns the world's slots as environments.
func (w *World) Slots() []environment.Environment {
	envs := make([]environment.Environment, len(w.slots))
	for i, g := range w.slots {
		envs[i] = g
	}
	return envs
}

// SimulateSteps advances every slot with a pending action. Slots
// without a pending action (done, awaiting reset) are skipped.
func (w *World) SimulateSteps() error {
	for _, g := range w.slots {
		if g.pending < 0 {
			continue
		}
		g.advance(g.pending)
		g.pending = -1
	}
	return nil
}

// GridNav is one slot of a shared grid navigation world.
type GridNav struct {
	world *World
	id    string
	conf  Config
	vals  curriculum.Values

	agent     point
	heading   int
	goal      point
	obstacles []point
	blocked   map[point]bool
	visited   map[point]bool
	steps     int

	pending int
	outcome environment.Outcome
}

// ID returns the slot's stable identifier.
func (g *GridNav) ID() string {
	return g.id
}

// Reset lays out a fresh grid at the current difficulty and returns the
// initial observation.
func (g *GridNav) Reset() (environment.Observation, error) {
	points, ok := g.scatter(g.vals.Obstacles+2, g.vals.ObjectDistance,
		g.vals.MapSize)
	if !ok {
		return nil, fmt.Errorf("reset: cannot place %d objects with "+
			"distance %v on a %dx%d map", g.vals.Obstacles+2,
			g.vals.ObjectDistance, g.vals.MapSize, g.vals.MapSize)
	}

	g.agent = points[0]
	g.goal = points[1]
	g.obstacles = points[2:]
	g.blocked = make(map[point]bool, len(g.obstacles))
	for _, p := range g.obstacles {
		g.blocked[p] = true
	}
	g.visited = map[point]bool{g.agent: true}
	g.steps = 0
	g.pending = -1

	g.heading = north
	if g.vals.RandomOrientation {
		g.heading = g.world.rng.Intn(4)
	}
	return g.observation(), nil
}

// Step advances the slot by one action in a single phase.
func (g *GridNav) Step(action environment.Action) (environment.Outcome,
	error) {
	if err := g.PreStep(action); err != nil {
		return environment.Outcome{}, err
	}
	g.advance(g.pending)
	g.pending = -1
	return g.outcome, nil
}

// PreStep submits an action without advancing the world.
func (g *GridNav) PreStep(action environment.Action) error {
	a, err := decodeAction(action)
	if err != nil {
		return fmt.Errorf("preStep: %v", err)
	}
	g.pending = a
	return nil
}

// PostStep returns the outcome computed by the shared step.
func (g *GridNav) PostStep(environment.Action) (environment.Outcome,
	error) {
	if g.pending >= 0 {
		return environment.Outcome{}, fmt.Errorf("postStep: world has " +
			"not advanced")
	}
	return g.outcome, nil
}

// SimulateSteps advances the shared world once for all slots.
func (g *GridNav) SimulateSteps() error {
	return g.world.SimulateSteps()
}

// advance applies one action and records the resulting outcome.
func (g *GridNav) advance(action int) {
	switch action {
	case TurnLeft:
		g.heading = (g.heading + 3) % 4
	case TurnRight:
		g.heading = (g.heading + 1) % 4
	case Forward:
		next := g.ahead()
		if g.inBounds(next) && !g.blocked[next] {
			g.agent = next
		}
	}
	g.steps++

	reward := stepCost
	newCell := 0.0
	if !g.visited[g.agent] {
		g.visited[g.agent] = true
		newCell = 1.0
		if g.vals.RewardFirstVisit {
			reward += visitReward
		}
	}

	reached := g.agent == g.goal
	truncated := !reached && g.steps >= g.vals.EpisodeLength
	if reached {
		reward += goalReward
	}

	info := map[string]interface{}{}
	if truncated {
		// A time limit cuts the episode, it does not end the task.
		info["discount"] = 1.0
	}

	obs := g.observation()
	obs["log_new_cells"] = newCell
	if reached {
		obs["log_goal"] = 1.0
	}

	g.outcome = environment.Outcome{
		Observation: obs,
		Reward:      reward,
		Done:        reached || truncated,
		Info:        info,
	}
}

// observation builds the slot's current observation: a rendered frame
// plus the agent's pose.
func (g *GridNav) observation() environment.Observation {
	pose := []float64{
		float64(g.agent.Row), float64(g.agent.Col), float64(g.heading),
	}
	return environment.Observation{
		"image":    g.render(),
		"position": pose,
	}
}

// ahead returns the cell in front of the agent.
func (g *GridNav) ahead() point {
	p := g.agent
	switch g.heading {
	case north:
		p.Row--
	case east:
		p.Col++
	case south:
		p.Row++
	case west:
		p.Col--
	}
	return p
}

func (g *GridNav) inBounds(p point) bool {
	return p.Row >= 0 && p.Row < g.vals.MapSize &&
		p.Col >= 0 && p.Col < g.vals.MapSize
}

// scatter places n objects on a size-by-size grid with pairwise
// distance at least minDist, by rejection sampling.
func (g *GridNav) scatter(n int, minDist float64, size int) ([]point,
	bool) {
	cell := distuv.Uniform{Min: 0, Max: float64(size), Src: g.world.src}

	points := make([]point, 0, n)
	for try := 0; try < placementTries && len(points) < n; try++ {
		p := point{
			Row: int(cell.Rand()),
			Col: int(cell.Rand()),
		}
		ok := true
		for _, q := range points {
			if p.distance(q) < minDist {
				ok = false
				break
			}
		}
		if ok {
			points = append(points, p)
		}
	}
	return points, len(points) == n
}

// CurriculumValues returns the slot's current difficulty.
func (g *GridNav) CurriculumValues() curriculum.Values {
	return g.vals
}

// SetCurriculumValues raises the slot's difficulty. The new values take
// effect at the next Reset.
func (g *GridNav) SetCurriculumValues(v curriculum.Values) {
	g.vals = v
}

// MapLimit returns the largest map size the curriculum may reach.
func (g *GridNav) MapLimit() int { return g.conf.MapLimit }

// ObstacleLimit returns the largest obstacle count the curriculum may
// reach.
func (g *GridNav) ObstacleLimit() int { return g.conf.ObstacleLimit }

// ObjectDistanceLimit returns the largest minimum object spacing the
// curriculum may reach.
func (g *GridNav) ObjectDistanceLimit() float64 {
	return g.conf.ObjectDistanceLimit
}

// MaxEpisodeLength returns the longest episode the curriculum may
// allow.
func (g *GridNav) MaxEpisodeLength() int { return g.conf.MaxEpisodeLength }

// CoordsCheck reports whether obstacles objects plus the agent and goal
// can be placed with minimum distance minDist on a map of size mapSize.
func (g *GridNav) CoordsCheck(obstacles int, minDist float64,
	mapSize int) bool {
	_, ok := g.scatter(obstacles+2, minDist, mapSize)
	return ok
}

// decodeAction extracts the action index from the agent's named
// tensors.
func decodeAction(action environment.Action) (int, error) {
	t, ok := action["action"]
	if !ok {
		return 0, fmt.Errorf("no %q field", "action")
	}

	var a int
	switch data := t.Data().(type) {
	case []int32:
		a = int(data[0])
	case []float32:
		a = int(data[0])
	case int32:
		a = int(data)
	case float32:
		a = int(data)
	default:
		return 0, fmt.Errorf("action has dtype %v, want int32 or float32",
			t.Dtype())
	}

	if a < 0 || a >= Actions {
		return 0, fmt.Errorf("action %d out of range [0, %d)", a, Actions)
	}
	return a, nil
}
