// Package progressbar implements functionality of printing a progress
// bar to the terminal window
package progressbar

import (
	"fmt"
	"strings"
	"time"
)

// ProgressBar prints simulation progress over a step budget. The bar
// must be managed manually: call Add whenever steps complete and
// Display whenever an updated bar should be printed.
//
// ProgressBar does not use concurrency; the simulation driver runs a
// single logical thread of control.
type ProgressBar struct {
	width           float64
	maxProgress     float64
	currentProgress float64
	bar             strings.Builder
	startTime       time.Time
}

// New returns a new ProgressBar that is width characters wide and
// reaches 100% after max units of progress.
func New(width, max int) *ProgressBar {
	return &ProgressBar{
		width:           float64(width),
		maxProgress:     float64(max),
		currentProgress: 0,
		startTime:       time.Now(),
	}
}

// Add adds n units of progress. The driver steps all environment slots
// per tick, so n is usually the slot count.
func (p *ProgressBar) Add(n int) {
	p.currentProgress += float64(n)
	if p.currentProgress > p.maxProgress {
		p.currentProgress = p.maxProgress
	}
}

// Display prints the progress bar, overwriting the previously printed
// bar.
func (p *ProgressBar) Display() {
	p.bar.Reset()
	p.bar.Write([]byte("|"))

	currentProg := p.currentProgress / p.maxProgress * p.width
	for i := 0.0; i < currentProg; i++ {
		p.bar.Write([]byte("█"))
	}
	for i := currentProg; i < p.width; i++ {
		p.bar.Write([]byte(" "))
	}
	p.bar.Write([]byte(fmt.Sprintf("| [%.0f/%.0f steps | elapsed: %v]",
		p.currentProgress, p.maxProgress,
		time.Since(p.startTime).Truncate(time.Second))))

	fmt.Printf("\n\033[1A\033[K%v", p.bar.String())
}

// Close jumps to the next line so later prints do not overwrite the bar.
func (p *ProgressBar) Close() {
	fmt.Println()
}
