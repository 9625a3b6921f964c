// Package turnwheel steps the world backward and forward through the
// action log one group at a time.
//
// A session starts with Begin, which freezes the log at the present. Steps
// move a cursor between group boundaries, reversing or re-executing the
// actions they cross. Commit makes the rewind permanent by truncating the
// log at the cursor; Cancel replays forward to the present. Every stepping
// operation is refused while the log is busy with an asynchronous handoff.
package turnwheel

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/daviddao/turnwheel/pkg/action"
	"github.com/daviddao/turnwheel/pkg/actionlog"
)

var (
	ErrBusy        = errors.New("turnwheel: action in flight")
	ErrAtStart     = errors.New("turnwheel: at earliest point")
	ErrAtEnd       = errors.New("turnwheel: at present")
	ErrInactive    = errors.New("turnwheel: no session")
	ErrActive      = errors.New("turnwheel: session already active")
	ErrLocked      = errors.New("turnwheel: locked by scripted event")
	ErrNoUses      = errors.New("turnwheel: no uses left")
	ErrNotBoundary = errors.New("turnwheel: not a group boundary")
	ErrHalted      = errors.New("turnwheel: halted after failed step")
)

// Direction of a step.
type Direction string

const (
	Back    Direction = "back"
	Forward Direction = "forward"
)

// DefaultPhase is reported before any phase marker.
const DefaultPhase = "player"

// Step describes one completed group step.
type Step struct {
	Direction Direction
	Group     actionlog.Group
	From      int
	To        int
	Messages  []string
}

// Recorder receives turnwheel events for metrics.
type Recorder interface {
	Step(direction string, group string, actions int)
	Refused(reason string)
	Session(event string)
}

// Turnwheel is the rewind controller for one log and game.
type Turnwheel struct {
	log      *actionlog.Log
	game     *action.Game
	logger   *zap.Logger
	recorder Recorder

	active  bool
	cursor  int
	groups  []actionlog.Group
	halted  error
	maxUses int
	used    int
}

// Option configures a Turnwheel.
type Option func(*Turnwheel)

func WithLogger(l *zap.Logger) Option {
	return func(t *Turnwheel) {
		if l != nil {
			t.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(t *Turnwheel) { t.recorder = r }
}

// WithMaxUses limits how many rewinds may be committed. Negative means
// unlimited, which is the default.
func WithMaxUses(n int) Option {
	return func(t *Turnwheel) { t.maxUses = n }
}

// WithUsesSpent restores the count of already committed rewinds.
func WithUsesSpent(n int) Option {
	return func(t *Turnwheel) { t.used = n }
}

// New returns an inactive turnwheel over l, applying actions to g.
func New(l *actionlog.Log, g *action.Game, opts ...Option) *Turnwheel {
	t := &Turnwheel{log: l, game: g, logger: zap.NewNop(), maxUses: -1}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Active reports whether a session is open.
func (t *Turnwheel) Active() bool { return t.active }

// Cursor is the log index the world currently reflects. Outside a session
// it is the log length.
func (t *Turnwheel) Cursor() int {
	if !t.active {
		return t.log.Len()
	}
	return t.cursor
}

// TurnedBack reports whether the world is behind the present.
func (t *Turnwheel) TurnedBack() bool { return t.active && t.cursor < t.log.Len() }

// Halted returns the failure that stopped the turnwheel, if any.
func (t *Turnwheel) Halted() error { return t.halted }

// UsesSpent is the number of committed rewinds.
func (t *Turnwheel) UsesSpent() int { return t.used }

// UsesLeft returns the remaining rewinds, or -1 if unlimited.
func (t *Turnwheel) UsesLeft() int {
	if t.maxUses < 0 {
		return -1
	}
	return max(0, t.maxUses-t.used)
}

// Groups returns the groups of the current session, or of the live log
// outside one.
func (t *Turnwheel) Groups() []actionlog.Group {
	if t.active {
		return t.groups
	}
	return t.log.Groups()
}

// Begin opens a session at the present.
func (t *Turnwheel) Begin() error {
	return t.open(t.log.Len())
}

// Resume reopens a session at a saved cursor, for a game saved while
// turned back. The world must already reflect the cursor.
func (t *Turnwheel) Resume(cursor int) error {
	if cursor < t.log.FirstFree() || cursor > t.log.Len() {
		return fmt.Errorf("resume at %d: %w", cursor, ErrNotBoundary)
	}
	if cursor != t.log.Len() && !isBoundary(t.log.Groups(), cursor) {
		return fmt.Errorf("resume at %d: %w", cursor, ErrNotBoundary)
	}
	return t.open(cursor)
}

func (t *Turnwheel) open(cursor int) error {
	if err := t.ready(); err != nil {
		return err
	}
	if t.active {
		return t.refuse(ErrActive)
	}
	if t.UsesLeft() == 0 {
		return t.refuse(ErrNoUses)
	}
	t.log.Freeze()
	t.active = true
	t.cursor = cursor
	t.groups = t.log.Groups()
	t.logger.Info("turnwheel session started", zap.Int("cursor", cursor), zap.Int("groups", len(t.groups)))
	t.session("begin")
	return nil
}

// ready rejects operations on a halted or busy turnwheel.
func (t *Turnwheel) ready() error {
	if t.halted != nil {
		return fmt.Errorf("%w: %w", ErrHalted, t.halted)
	}
	if t.log.Busy() {
		return t.refuse(ErrBusy)
	}
	return nil
}

func (t *Turnwheel) readyActive() error {
	if err := t.ready(); err != nil {
		return err
	}
	if !t.active {
		return t.refuse(ErrInactive)
	}
	return nil
}

func (t *Turnwheel) refuse(err error) error {
	if t.recorder != nil {
		t.recorder.Refused(reason(err))
	}
	t.logger.Warn("turnwheel refused", zap.Error(err))
	return err
}

func (t *Turnwheel) session(event string) {
	if t.recorder != nil {
		t.recorder.Session(event)
	}
}

// StepBack reverses the group ending at the cursor.
func (t *Turnwheel) StepBack() (Step, error) {
	if err := t.readyActive(); err != nil {
		return Step{}, err
	}
	if t.cursor <= t.log.FirstFree() {
		return Step{}, t.refuse(ErrAtStart)
	}
	g, ok := groupEndingAt(t.groups, t.cursor)
	if !ok {
		return Step{}, t.refuse(fmt.Errorf("step back from %d: %w", t.cursor, ErrNotBoundary))
	}
	begin, _ := g.Span()
	for i := t.cursor - 1; i >= begin; i-- {
		a, err := t.log.At(i)
		if err == nil {
			err = a.Reverse(t.game)
		}
		if err != nil {
			return Step{}, t.halt(Back, i, err)
		}
	}
	st := t.finish(Back, g, begin)
	return st, nil
}

// StepForward re-executes the group starting at the cursor.
func (t *Turnwheel) StepForward() (Step, error) {
	if err := t.readyActive(); err != nil {
		return Step{}, err
	}
	if t.cursor >= t.log.Len() {
		return Step{}, t.refuse(ErrAtEnd)
	}
	g, ok := groupBeginningAt(t.groups, t.cursor)
	if !ok {
		return Step{}, t.refuse(fmt.Errorf("step forward from %d: %w", t.cursor, ErrNotBoundary))
	}
	_, end := g.Span()
	for i := t.cursor; i < end; i++ {
		a, err := t.log.At(i)
		if err == nil {
			err = a.Execute(t.game)
		}
		if err != nil {
			return Step{}, t.halt(Forward, i, err)
		}
	}
	st := t.finish(Forward, g, end)
	return st, nil
}

func (t *Turnwheel) finish(dir Direction, g actionlog.Group, to int) Step {
	st := Step{Direction: dir, Group: g, From: t.cursor, To: to, Messages: t.messages(g)}
	t.cursor = to
	begin, end := g.Span()
	if t.recorder != nil {
		t.recorder.Step(string(dir), groupKind(g), end-begin)
	}
	t.logger.Debug("turnwheel step",
		zap.String("direction", string(dir)),
		zap.Stringer("group", g),
		zap.Int("cursor", to),
	)
	return st
}

// halt stops the turnwheel after a failed reverse or execute. The cursor
// stays on the boundary the step started from.
func (t *Turnwheel) halt(dir Direction, index int, err error) error {
	t.halted = fmt.Errorf("%s at action %d: %w", dir, index, err)
	t.logger.Error("turnwheel halted",
		zap.String("direction", string(dir)),
		zap.Int("index", index),
		zap.Int("cursor", t.cursor),
		zap.Error(err),
	)
	t.session("halt")
	return t.halted
}

// JumpTo steps one group at a time until the cursor reaches index.
func (t *Turnwheel) JumpTo(index int) ([]Step, error) {
	if err := t.readyActive(); err != nil {
		return nil, err
	}
	if index < t.log.FirstFree() || index > t.log.Len() || !isBoundary(t.groups, index) {
		return nil, t.refuse(fmt.Errorf("jump to %d: %w", index, ErrNotBoundary))
	}
	var steps []Step
	for t.cursor > index {
		st, err := t.StepBack()
		if err != nil {
			return steps, err
		}
		steps = append(steps, st)
	}
	for t.cursor < index {
		st, err := t.StepForward()
		if err != nil {
			return steps, err
		}
		steps = append(steps, st)
	}
	return steps, nil
}

// Commit ends the session, discarding every action after the cursor. A
// commit that actually rewinds spends one use.
func (t *Turnwheel) Commit() error {
	if err := t.readyActive(); err != nil {
		return err
	}
	if t.TurnedBack() {
		if t.Locked() {
			return t.refuse(ErrLocked)
		}
		t.log.Thaw()
		if err := t.log.Truncate(t.cursor); err != nil {
			t.log.Freeze()
			return err
		}
		t.used++
		t.logger.Info("turnwheel committed", zap.Int("cursor", t.cursor), zap.Int("uses_spent", t.used))
	} else {
		t.log.Thaw()
	}
	t.close("commit")
	return nil
}

// Cancel replays forward to the present and ends the session.
func (t *Turnwheel) Cancel() ([]Step, error) {
	if err := t.readyActive(); err != nil {
		return nil, err
	}
	steps, err := t.JumpTo(t.log.Len())
	if err != nil {
		return steps, err
	}
	t.log.Thaw()
	t.close("cancel")
	return steps, nil
}

func (t *Turnwheel) close(event string) {
	t.active = false
	t.groups = nil
	t.session(event)
}

// Locked reports whether the last LockTurnwheel before the cursor forbids
// committing here.
func (t *Turnwheel) Locked() bool {
	for i := t.Cursor() - 1; i >= 0; i-- {
		a, err := t.log.At(i)
		if err != nil {
			break
		}
		if lk, ok := a.(*action.LockTurnwheel); ok {
			return lk.Lock
		}
	}
	return false
}

// CurrentPhase is the phase named by the last MarkPhase before the cursor.
func (t *Turnwheel) CurrentPhase() string {
	for i := t.Cursor() - 1; i >= 0; i-- {
		a, err := t.log.At(i)
		if err != nil {
			break
		}
		if mp, ok := a.(*action.MarkPhase); ok {
			return mp.Phase
		}
	}
	return DefaultPhase
}

func (t *Turnwheel) messages(g actionlog.Group) []string {
	if p, ok := g.(actionlog.Phase); ok {
		return []string{fmt.Sprintf("Start of %s phase", p.Name)}
	}
	var out []string
	begin, end := g.Span()
	for i := begin; i < end; i++ {
		a, err := t.log.At(i)
		if err != nil {
			break
		}
		if m, ok := a.(*action.Message); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func groupEndingAt(groups []actionlog.Group, cursor int) (actionlog.Group, bool) {
	for i := len(groups) - 1; i >= 0; i-- {
		if _, end := groups[i].Span(); end == cursor {
			return groups[i], true
		}
	}
	return nil, false
}

func groupBeginningAt(groups []actionlog.Group, cursor int) (actionlog.Group, bool) {
	for _, g := range groups {
		if begin, _ := g.Span(); begin == cursor {
			return g, true
		}
	}
	return nil, false
}

func isBoundary(groups []actionlog.Group, index int) bool {
	if len(groups) == 0 {
		return true
	}
	for _, g := range groups {
		begin, end := g.Span()
		if begin == index || end == index {
			return true
		}
	}
	return false
}

func groupKind(g actionlog.Group) string {
	switch g.(type) {
	case actionlog.Move:
		return "move"
	case actionlog.Phase:
		return "phase"
	default:
		return "extra"
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrAtStart):
		return "at_start"
	case errors.Is(err, ErrAtEnd):
		return "at_end"
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, ErrActive):
		return "active"
	case errors.Is(err, ErrLocked):
		return "locked"
	case errors.Is(err, ErrNoUses):
		return "no_uses"
	case errors.Is(err, ErrNotBoundary):
		return "not_boundary"
	}
	return "other"
}
