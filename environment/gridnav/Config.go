package gridnav

import "github.com/samuelfneumann/rollouts/environment"

// Config describes a grid navigation world. It is JSON serializable so
// worlds can be described in experiment files.
type Config struct {
	// Initial curriculum parameters.
	MapSize        int     `json:"map_size"`
	Obstacles      int     `json:"obstacles"`
	ObjectDistance float64 `json:"object_distance"`
	EpisodeLength  int     `json:"episode_length"`

	// Upper limits the curriculum may ratchet towards.
	MapLimit            int     `json:"map_limit"`
	ObstacleLimit       int     `json:"obstacle_limit"`
	ObjectDistanceLimit float64 `json:"object_distance_limit"`
	MaxEpisodeLength    int     `json:"max_episode_length"`

	// Initial shaping flags.
	RandomOrientation bool `json:"random_orientation"`
	RewardFirstVisit  bool `json:"reward_first_visit"`

	// CellPixels is the rendered side length of one grid cell. 0 uses
	// DefaultCellPixels.
	CellPixels int `json:"cell_pixels"`

	Seed uint64 `json:"seed"`
}

// DefaultConfig returns a small starting world with room to ratchet.
func DefaultConfig(seed uint64) Config {
	return Config{
		MapSize:        8,
		Obstacles:      2,
		ObjectDistance: 2.0,
		EpisodeLength:  150,

		MapLimit:            24,
		ObstacleLimit:       12,
		ObjectDistanceLimit: 6.0,
		MaxEpisodeLength:    600,

		RewardFirstVisit: true,
		Seed:             seed,
	}
}

// Create builds a shared world with the given number of slots and
// returns the slots as environments.
func (c Config) Create(slots int) ([]environment.Environment, error) {
	world, err := NewWorld(c, slots)
	if err != nil {
		return nil, err
	}
	return world.Slots(), nil
}
