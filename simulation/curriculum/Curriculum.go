// Package curriculum implements a difficulty state machine driven by
// rolling average reward. Difficulty only ever increases: each update
// advances every environment slot's parameters by fixed increments,
// independently clamped to that slot's limits.
package curriculum

import (
	"github.com/samuelfneumann/rollouts/environment"
	"github.com/samuelfneumann/rollouts/utils/floatutils"
	"github.com/samuelfneumann/rollouts/utils/intutils"
)

// Default thresholds and increments. The reward threshold depends
// heavily on the environment's reward scale.
const (
	DefaultRewardThreshold = 6.0
	DefaultMinEpisodes     = 5

	mapSizeIncrease        = 2
	obstacleIncrease       = 1
	objectDistanceIncrease = 0.5
	episodeLengthIncrease  = 75

	// Passing the feasibility check earns the map one extra increment.
	feasibilityBonus = 3

	// Map size at which starting orientation becomes randomized, and
	// the accumulated episode count past which first-visit reward
	// shaping is withdrawn.
	orientationThreshold = 20
	shapingEpisodeCutoff = 20
)

// Values are one environment slot's difficulty parameters. They are
// initialized by the environment at construction, read every step for
// logging, and mutated only at curriculum-update events.
type Values struct {
	MapSize           int
	RandomOrientation bool
	Obstacles         int
	ObjectDistance    float64
	EpisodeLength     int
	RewardFirstVisit  bool
}

// Env is an environment slot whose difficulty the controller may
// mutate.
type Env interface {
	environment.Environment

	CurriculumValues() Values
	SetCurriculumValues(Values)

	// Upper limits for each parameter.
	MapLimit() int
	ObstacleLimit() int
	ObjectDistanceLimit() float64
	MaxEpisodeLength() int

	// CoordsCheck reports whether obstacles objects with minimum
	// pairwise distance minDist can be placed on a map of size mapSize.
	CoordsCheck(obstacles int, minDist float64, mapSize int) bool
}

// Controller accumulates episode outcomes across driver ticks and
// ratchets difficulty once enough episodes have completed with a high
// enough rolling average reward.
type Controller struct {
	RewardThreshold float64
	MinEpisodes     int

	totalReward float64
	episodes    int
}

// NewController returns a Controller with the default thresholds.
func NewController() *Controller {
	return &Controller{
		RewardThreshold: DefaultRewardThreshold,
		MinEpisodes:     DefaultMinEpisodes,
	}
}

// Observe records the reward gathered this tick and the number of
// episodes completed this tick.
func (c *Controller) Observe(reward float64, completed int) {
	c.totalReward += reward
	c.episodes += completed
}

// Episodes returns the number of episodes completed since the last
// update.
func (c *Controller) Episodes() int {
	return c.episodes
}

// AverageReward returns the rolling average reward per completed
// episode since the last update.
func (c *Controller) AverageReward() float64 {
	if c.episodes == 0 {
		return 0
	}
	return c.totalReward / float64(c.episodes)
}

// Ready reports whether the next Update would fire.
func (c *Controller) Ready() bool {
	return c.episodes >= c.MinEpisodes &&
		c.AverageReward() > c.RewardThreshold
}

// Update advances every slot's difficulty if the controller is ready,
// returning whether an update fired. After a fired update the reward
// accumulator and episode counter reset to zero.
func (c *Controller) Update(envs []Env) bool {
	if !c.Ready() {
		return false
	}
	for _, env := range envs {
		env.SetCurriculumValues(c.advance(env))
	}
	c.totalReward = 0
	c.episodes = 0
	return true
}

// advance computes one slot's next difficulty values. Every parameter
// follows the same rule: add its increment, clamp to its limit. The
// feasibility bonus and the orientation ratchet are the two named
// exceptions.
func (c *Controller) advance(env Env) Values {
	v := env.CurriculumValues()

	next := Values{
		MapSize: intutils.Clip(v.MapSize+mapSizeIncrease, v.MapSize,
			env.MapLimit()),
		Obstacles: intutils.Clip(v.Obstacles+obstacleIncrease, v.Obstacles,
			env.ObstacleLimit()),
		ObjectDistance: floatutils.Clip(v.ObjectDistance+objectDistanceIncrease,
			v.ObjectDistance, env.ObjectDistanceLimit()),
		EpisodeLength: intutils.Clip(v.EpisodeLength+episodeLengthIncrease,
			v.EpisodeLength, env.MaxEpisodeLength()),
		RandomOrientation: v.RandomOrientation,
		RewardFirstVisit:  v.RewardFirstVisit,
	}

	// If the raised difficulty still leaves room to place everything,
	// push the map size one extra increment.
	if env.CoordsCheck(next.Obstacles+feasibilityBonus, next.ObjectDistance,
		next.MapSize) {
		next.MapSize = intutils.Clip(next.MapSize+feasibilityBonus,
			next.MapSize, env.MapLimit())
	}

	if next.MapSize >= orientationThreshold {
		next.RandomOrientation = true
	}
	if c.episodes > shapingEpisodeCutoff {
		next.RewardFirstVisit = false
	}
	return next
}
