package actionlog

import (
	"fmt"

	"github.com/daviddao/turnwheel/pkg/action"
)

// NoMove is the LastMoveIndex of an Extra that precedes every Move group.
const NoMove = -1

// Group is one unit of turnwheel navigation. It is one of Move, Phase or
// Extra.
type Group interface {
	// Span returns the half-open index range [begin, end) the group covers.
	Span() (begin, end int)
	String() string
	isGroup()
}

// Move is a closed actor turn: a GroupStart through its matching GroupEnd.
type Move struct {
	Actor string
	Mode  string
	Begin int
	End   int
}

func (m Move) Span() (int, int) { return m.Begin, m.End }

// EndMarker returns the index of the GroupEnd that closed the group.
func (m Move) EndMarker() int { return m.End - 1 }

func (m Move) String() string {
	return fmt.Sprintf("move %s/%s [%d,%d)", m.Actor, m.Mode, m.Begin, m.End)
}

func (Move) isGroup() {}

// Phase is a single MarkPhase action.
type Phase struct {
	Name        string
	ActionIndex int
}

func (p Phase) Span() (int, int) { return p.ActionIndex, p.ActionIndex + 1 }

func (p Phase) String() string { return fmt.Sprintf("phase %s @%d", p.Name, p.ActionIndex) }

func (Phase) isGroup() {}

// Extra is a single action outside any closed Move group.
type Extra struct {
	LastMoveIndex int
	ActionIndex   int
}

func (e Extra) Span() (int, int) { return e.ActionIndex, e.ActionIndex + 1 }

func (e Extra) String() string { return fmt.Sprintf("extra @%d", e.ActionIndex) }

func (Extra) isGroup() {}

// Groups partitions actions[start:] into navigation groups.
//
// A GroupStart opens a Move group that the next GroupEnd with the same
// mode closes. A GroupEnd with another mode inside an open group is part of
// that group. A group that never closes (another GroupStart, a MarkPhase,
// or the end of the log interrupts it) is abandoned and each of its actions,
// the opening marker included, is surfaced as an Extra. The returned groups
// therefore cover [start, len(actions)) exactly once, in order.
func Groups(actions []action.Action, start int) []Group {
	start = max(start, 0)
	var (
		groups   []Group
		open     *Move
		lastMove = NoMove
	)
	abandon := func(upTo int) {
		for i := open.Begin; i < upTo; i++ {
			groups = append(groups, Extra{LastMoveIndex: lastMove, ActionIndex: i})
		}
		open = nil
	}
	for i := start; i < len(actions); i++ {
		switch a := actions[i].(type) {
		case *action.GroupStart:
			if open != nil {
				abandon(i)
			}
			open = &Move{Actor: a.Actor, Mode: a.Mode, Begin: i}
		case *action.GroupEnd:
			switch {
			case open == nil:
				groups = append(groups, Extra{LastMoveIndex: lastMove, ActionIndex: i})
			case a.Mode == open.Mode:
				open.End = i + 1
				groups = append(groups, *open)
				lastMove = open.End
				open = nil
			}
		case *action.MarkPhase:
			if open != nil {
				abandon(i)
			}
			groups = append(groups, Phase{Name: a.Phase, ActionIndex: i})
		default:
			if open == nil {
				groups = append(groups, Extra{LastMoveIndex: lastMove, ActionIndex: i})
			}
		}
	}
	if open != nil {
		abandon(len(actions))
	}
	return groups
}
