package simulation

// Config represents a configuration of a simulation run. It is JSON
// serializable so runs can be described in experiment files.
type Config struct {
	// Steps and Episodes are the run budgets, checked between ticks. A
	// budget of 0 is ignored; at least one must be positive.
	Steps    int `json:"steps"`
	Episodes int `json:"episodes"`

	// StepBudget bounds the transitions retained in the experience
	// cache after each completed episode. 0 disables eviction.
	StepBudget int `json:"step_budget"`

	// Eval switches the driver from training mode (evict and log per
	// episode) to evaluation mode (running averages, video capture,
	// prune-to-one at exit).
	Eval bool `json:"eval"`

	// Directory receives one archive per completed episode.
	Directory string `json:"directory"`

	// Curriculum enables the difficulty controller. It only takes
	// effect when every environment slot exposes curriculum values.
	Curriculum bool `json:"curriculum"`

	// ProgressWidth is the terminal width of the progress bar; 0
	// disables the bar.
	ProgressWidth int `json:"progress_width"`
}
