// Package actionlog records applied actions in order and derives the
// groups the turnwheel steps over.
package actionlog

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/daviddao/turnwheel/pkg/action"
)

var (
	// ErrFrozen is returned when appending while a rewind session holds
	// the log.
	ErrFrozen = errors.New("action log frozen")

	// ErrOutOfRange is returned for indices outside the log.
	ErrOutOfRange = errors.New("index out of range")
)

// Observer is notified of every appended action.
type Observer interface {
	Appended(kind action.Kind)
}

// Log is the ordered history of applied actions.
//
// Only the outermost action of a nested Do/Execute call is recorded:
// composites are logged once, as themselves. Log is not safe for
// concurrent use; it is owned by the game loop.
type Log struct {
	actions   []action.Action
	firstFree int
	depth     int
	recording bool
	frozen    bool
	inFlight  int
	logger    *zap.Logger
	observer  Observer
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(lg *Log) {
		if l != nil {
			lg.logger = l
		}
	}
}

// WithObserver registers an observer of appended actions.
func WithObserver(o Observer) Option {
	return func(lg *Log) { lg.observer = o }
}

// New returns an empty, recording log.
func New(opts ...Option) *Log {
	l := &Log{recording: true, logger: zap.NewNop()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Len returns the number of recorded actions.
func (l *Log) Len() int { return len(l.actions) }

// At returns the action at index i.
func (l *Log) At(i int) (action.Action, error) {
	if i < 0 || i >= len(l.actions) {
		return nil, fmt.Errorf("at %d of %d: %w", i, len(l.actions), ErrOutOfRange)
	}
	return l.actions[i], nil
}

// Actions returns a copy of the recorded actions.
func (l *Log) Actions() []action.Action {
	return append([]action.Action(nil), l.actions...)
}

// FirstFree is the earliest index the turnwheel may rewind to.
func (l *Log) FirstFree() int { return l.firstFree }

// SetFirstFree moves the rewind floor, typically to Len() once the level
// setup has been recorded.
func (l *Log) SetFirstFree(i int) error {
	if i < 0 || i > len(l.actions) {
		return fmt.Errorf("first free %d of %d: %w", i, len(l.actions), ErrOutOfRange)
	}
	l.firstFree = i
	return nil
}

// SetRecording turns appending on or off. Actions done while recording is
// off change the world but leave no history.
func (l *Log) SetRecording(on bool) { l.recording = on }

// Recording reports whether Do and Execute append.
func (l *Log) Recording() bool { return l.recording }

// Append records an already applied action.
func (l *Log) Append(a action.Action) error {
	if l.frozen {
		return fmt.Errorf("append %s: %w", a.Kind(), ErrFrozen)
	}
	l.actions = append(l.actions, a)
	l.logger.Debug("action recorded",
		zap.String("kind", string(a.Kind())),
		zap.Int("index", len(l.actions)-1),
	)
	if l.observer != nil {
		l.observer.Appended(a.Kind())
	}
	return nil
}

// Do applies a for the first time and records it if it is the outermost
// call.
func (l *Log) Do(g *action.Game, a action.Action) error {
	return l.apply(a, func() error { return a.Do(g) })
}

// Execute applies a without cues and records it if it is the outermost
// call.
func (l *Log) Execute(g *action.Game, a action.Action) error {
	return l.apply(a, func() error { return a.Execute(g) })
}

func (l *Log) apply(a action.Action, fn func() error) error {
	if l.frozen && l.depth == 0 {
		return fmt.Errorf("%s: %w", a.Kind(), ErrFrozen)
	}
	l.depth++
	err := fn()
	l.depth--
	if err != nil {
		return err
	}
	if l.recording && l.depth == 0 {
		return l.Append(a)
	}
	return nil
}

// Truncate discards every action at index n and beyond.
func (l *Log) Truncate(n int) error {
	if n < 0 || n > len(l.actions) {
		return fmt.Errorf("truncate %d of %d: %w", n, len(l.actions), ErrOutOfRange)
	}
	if dropped := len(l.actions) - n; dropped > 0 {
		l.logger.Info("action log truncated", zap.Int("at", n), zap.Int("dropped", dropped))
	}
	clear(l.actions[n:])
	l.actions = l.actions[:n]
	if l.firstFree > n {
		l.firstFree = n
	}
	return nil
}

// Freeze stops the log from accepting new actions until Thaw.
func (l *Log) Freeze() { l.frozen = true }

// Thaw re-opens a frozen log.
func (l *Log) Thaw() { l.frozen = false }

// Frozen reports whether the log refuses new actions.
func (l *Log) Frozen() bool { return l.frozen }

// BeginHandoff marks the start of an asynchronous completion, such as a
// movement in flight. The log is busy until the matching EndHandoff.
func (l *Log) BeginHandoff() { l.inFlight++ }

// EndHandoff marks an asynchronous completion as finished.
func (l *Log) EndHandoff() {
	if l.inFlight == 0 {
		l.logger.Warn("unbalanced handoff end")
		return
	}
	l.inFlight--
}

// Busy reports whether any asynchronous completion is still pending.
func (l *Log) Busy() bool { return l.inFlight > 0 }

// Groups partitions the log from FirstFree.
func (l *Log) Groups() []Group { return Groups(l.actions, l.firstFree) }
