package testutil

import (
	"sync"

	dErrors "casereview/pkg/domain-errors"
)

// Outcome is how one racing call ended.
type Outcome int

const (
	Succeeded Outcome = iota
	// Conflicted lost an optimistic version check.
	Conflicted
	// Refused was turned away by the workflow, e.g. an illegal transition.
	Refused
	Failed
)

// Classify buckets err by its domain code.
func Classify(err error) Outcome {
	if err == nil {
		return Succeeded
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeConcurrentModification:
		return Conflicted
	case dErrors.CodeIllegalTransition, dErrors.CodeMissingReviewer:
		return Refused
	default:
		return Failed
	}
}

// Tally counts outcomes of one race.
type Tally map[Outcome]int

// Race releases n calls of fn at the same instant and tallies how they ended.
func Race(n int, fn func(i int) error) Tally {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		tally = Tally{}
		start = make(chan struct{})
	)
	for i := range n {
		wg.Go(func() {
			<-start
			outcome := Classify(fn(i))
			mu.Lock()
			tally[outcome]++
			mu.Unlock()
		})
	}
	close(start)
	wg.Wait()
	return tally
}
