// Package movement animates unit moves tile by tile on a cooperative tick.
//
// The scheduler implements action.Mover. While a motion is in flight the
// tracker (normally the action log) is held busy, so the turnwheel refuses
// to rewind state the scheduler is still mutating.
package movement

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/daviddao/turnwheel/pkg/action"
	"github.com/daviddao/turnwheel/pkg/model"
)

// ErrMoving is returned when a unit is asked to move while already moving.
var ErrMoving = errors.New("unit already moving")

// ErrStalled is returned by Settle when motions are still in flight after
// the tick limit.
var ErrStalled = errors.New("movement did not settle")

// Tracker is told when a motion starts and when it completes.
type Tracker interface {
	BeginHandoff()
	EndHandoff()
}

type motion struct {
	unit model.UnitID
	path []model.Pos
	step int
	done func(stop model.Pos, interrupted bool) error
}

// Scheduler advances in-flight motions.
type Scheduler struct {
	world   *model.World
	tracker Tracker
	logger  *zap.Logger
	speed   int
	motions []*motion
}

var _ action.Mover = (*Scheduler)(nil)

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSpeed sets how many tiles a unit advances per tick.
func WithSpeed(tiles int) Option {
	return func(s *Scheduler) { s.speed = max(1, tiles) }
}

// New returns an idle scheduler.
func New(w *model.World, t Tracker, opts ...Option) *Scheduler {
	s := &Scheduler{world: w, tracker: t, logger: zap.NewNop(), speed: 1}
	for _, o := range opts {
		o(s)
	}
	return s
}

// BeginMove queues a motion along path. path[0] is the unit's starting
// tile.
func (s *Scheduler) BeginMove(unit model.UnitID, path []model.Pos, done func(stop model.Pos, interrupted bool) error) error {
	if _, err := s.world.Unit(unit); err != nil {
		return fmt.Errorf("begin move: %w", err)
	}
	if len(path) == 0 {
		return fmt.Errorf("begin move %q: empty path", unit)
	}
	for _, m := range s.motions {
		if m.unit == unit {
			return fmt.Errorf("begin move %q: %w", unit, ErrMoving)
		}
	}
	s.motions = append(s.motions, &motion{unit: unit, path: path, done: done})
	s.tracker.BeginHandoff()
	s.logger.Debug("motion started", zap.String("unit", string(unit)), zap.Int("tiles", len(path)-1))
	return nil
}

// Busy reports whether any motion is in flight.
func (s *Scheduler) Busy() bool { return len(s.motions) > 0 }

// Tick advances every motion. A unit whose next tile is held by another
// unit stops where it is and its move is reported as interrupted.
func (s *Scheduler) Tick() error {
	current := s.motions
	s.motions = nil
	var (
		errs      []error
		remaining []*motion
	)
	for _, m := range current {
		finished, err := s.advance(m)
		if err != nil {
			errs = append(errs, err)
		}
		if !finished {
			remaining = append(remaining, m)
		}
	}
	s.motions = append(remaining, s.motions...)
	return errors.Join(errs...)
}

func (s *Scheduler) advance(m *motion) (bool, error) {
	u, err := s.world.Unit(m.unit)
	if err != nil {
		return true, s.complete(m, model.NoPos, true, err)
	}
	for range s.speed {
		if m.step == len(m.path)-1 {
			break
		}
		next := m.path[m.step+1]
		if occ, ok := s.world.UnitAt(next); ok && occ != m.unit {
			s.logger.Info("motion interrupted",
				zap.String("unit", string(m.unit)),
				zap.String("blocked_by", string(occ)),
				zap.Stringer("at", m.path[m.step]),
			)
			return true, s.complete(m, m.path[m.step], true, nil)
		}
		m.step++
		u.Position = next
	}
	if m.step == len(m.path)-1 {
		return true, s.complete(m, m.path[m.step], false, nil)
	}
	return false, nil
}

func (s *Scheduler) complete(m *motion, stop model.Pos, interrupted bool, cause error) error {
	defer s.tracker.EndHandoff()
	if cause != nil {
		return fmt.Errorf("motion %q: %w", m.unit, cause)
	}
	if err := m.done(stop, interrupted); err != nil {
		return fmt.Errorf("motion %q finish: %w", m.unit, err)
	}
	return nil
}

// Settle ticks until every motion has finished or maxTicks have elapsed.
func (s *Scheduler) Settle(maxTicks int) error {
	for range maxTicks {
		if !s.Busy() {
			return nil
		}
		if err := s.Tick(); err != nil {
			return err
		}
	}
	if s.Busy() {
		return fmt.Errorf("%d motions after %d ticks: %w", len(s.motions), maxTicks, ErrStalled)
	}
	return nil
}
