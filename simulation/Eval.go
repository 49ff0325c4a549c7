package simulation

import "github.com/samuelfneumann/rollouts/utils/floatutils"

// evalSession accumulates evaluation outcomes for one evaluation run.
// It exists from the start of the run; no field is lazily initialized.
type evalSession struct {
	scores  []float64
	lengths []float64
	done    bool

	// episodes is the number of completed episodes after which the
	// session's summary is written once.
	episodes int
}

func newEvalSession(episodes int) *evalSession {
	return &evalSession{episodes: episodes}
}

// observe records one completed evaluation episode.
func (e *evalSession) observe(score, length float64) {
	e.scores = append(e.scores, score)
	e.lengths = append(e.lengths, length)
}

// averageScore returns the running average episode score.
func (e *evalSession) averageScore() float64 {
	return floatutils.Mean(e.scores)
}

// averageLength returns the running average episode length.
func (e *evalSession) averageLength() float64 {
	return floatutils.Mean(e.lengths)
}

// shouldWrite reports whether the session summary is due; it returns
// true exactly once.
func (e *evalSession) shouldWrite() bool {
	if e.done || e.episodes <= 0 || len(e.scores) < e.episodes {
		return false
	}
	e.done = true
	return true
}
