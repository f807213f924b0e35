package bootstrap

import (
	"fmt"
	"time"
)

// Stage is a step of a bootstrap run.
type Stage int

const (
	// StageStart is the stage before any side effect.
	StageStart Stage = iota
	// StageDownloading covers dataset acquisition.
	StageDownloading
	// StageConfiguring covers writing the configuration record.
	StageConfiguring
	// StageDone is terminal: both the dataset and the record are in place.
	StageDone
	// StageFailed is terminal: the run stopped with an error.
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "START"
	case StageDownloading:
		return "DOWNLOADING"
	case StageConfiguring:
		return "CONFIGURING"
	case StageDone:
		return "DONE"
	case StageFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// allowedTransitions lists, for every stage, the stages it may move to.
//
//nolint:gochecknoglobals // Immutable lookup table.
var allowedTransitions = map[Stage][]Stage{
	StageStart:       {StageDownloading},
	StageDownloading: {StageConfiguring, StageFailed},
	StageConfiguring: {StageDone, StageFailed},
}

// Transition records one stage change.
type Transition struct {
	// From is the stage left.
	From Stage
	// To is the stage entered.
	To Stage
	// At is when the change happened.
	At time.Time
}

// Tracker holds the current stage of a run and enforces the stage graph.
// It is not safe for concurrent use; a run is single threaded.
type Tracker struct {
	current Stage
	history []Transition
	now     func() time.Time
}

// NewTracker returns a tracker positioned at StageStart.
func NewTracker() *Tracker {
	return &Tracker{
		current: StageStart,
		now:     time.Now,
	}
}

// Current returns the stage the run is in.
func (t *Tracker) Current() Stage {
	return t.current
}

// History returns a copy of the transitions made so far.
func (t *Tracker) History() []Transition {
	return append([]Transition(nil), t.history...)
}

// Advance moves the run to the next stage.
func (t *Tracker) Advance(to Stage) error {
	for _, allowed := range allowedTransitions[t.current] {
		if allowed == to {
			t.history = append(t.history, Transition{From: t.current, To: to, At: t.now()})
			t.current = to

			return nil
		}
	}

	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, t.current, to)
}

// Fail moves the run to StageFailed. It only succeeds from a working stage.
func (t *Tracker) Fail() error {
	return t.Advance(StageFailed)
}
