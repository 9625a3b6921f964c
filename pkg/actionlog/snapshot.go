package actionlog

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/daviddao/turnwheel/pkg/action"
	"github.com/daviddao/turnwheel/pkg/model"
)

// Snapshot is the persisted form of a log: every action record plus the
// turnwheel cursor and the rewind floor.
type Snapshot struct {
	Records   []action.Record `json:"records"`
	Cursor    int             `json:"cursor"`
	FirstFree int             `json:"first_free"`
}

// Snapshot encodes the log with the given cursor.
func (l *Log) Snapshot(cursor int) (Snapshot, error) {
	if cursor < 0 || cursor > len(l.actions) {
		return Snapshot{}, fmt.Errorf("snapshot cursor %d of %d: %w", cursor, len(l.actions), ErrOutOfRange)
	}
	s := Snapshot{
		Records:   make([]action.Record, 0, len(l.actions)),
		Cursor:    cursor,
		FirstFree: l.firstFree,
	}
	for i, a := range l.actions {
		rec, err := action.Encode(a)
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot action %d: %w", i, err)
		}
		s.Records = append(s.Records, rec)
	}
	return s, nil
}

// Restore rebuilds a log from a snapshot, resolving references against r.
//
// A record that names a unit or item r no longer knows is dropped with a
// warning instead of failing the load; the cursor and first-free index
// shift down past every dropped record below them. Any other decode
// failure is returned. Restore returns the adjusted cursor.
func Restore(s Snapshot, r action.Resolver, opts ...Option) (*Log, int, error) {
	l := New(opts...)
	if s.Cursor < 0 || s.Cursor > len(s.Records) {
		return nil, 0, fmt.Errorf("restore cursor %d of %d: %w", s.Cursor, len(s.Records), ErrOutOfRange)
	}
	if s.FirstFree < 0 || s.FirstFree > len(s.Records) {
		return nil, 0, fmt.Errorf("restore first free %d of %d: %w", s.FirstFree, len(s.Records), ErrOutOfRange)
	}
	cursor, firstFree := s.Cursor, s.FirstFree
	l.actions = make([]action.Action, 0, len(s.Records))
	for i, rec := range s.Records {
		a, err := action.Decode(rec, r)
		if errors.Is(err, model.ErrDanglingReference) {
			l.logger.Warn("dropping action with dangling reference",
				zap.Int("index", i),
				zap.String("kind", string(rec.Kind)),
				zap.Error(err),
			)
			if i < s.Cursor {
				cursor--
			}
			if i < s.FirstFree {
				firstFree--
			}
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("restore action %d: %w", i, err)
		}
		l.actions = append(l.actions, a)
	}
	l.firstFree = firstFree
	return l, cursor, nil
}
