package action

// GroupStart opens a move group for one actor. It has no effect on the
// world.
type GroupStart struct {
	base
	Actor string
	Mode  string
}

func NewGroupStart(actor, mode string) *GroupStart {
	return &GroupStart{Actor: actor, Mode: mode}
}

func (a *GroupStart) Kind() Kind { return KindGroupStart }

func (a *GroupStart) Do(g *Game) error { return a.claim(KindGroupStart) }

func (a *GroupStart) Execute(g *Game) error { return nil }

func (a *GroupStart) Reverse(g *Game) error { return nil }

// GroupEnd closes the move group opened with the same Mode.
type GroupEnd struct {
	base
	Mode string
}

func NewGroupEnd(mode string) *GroupEnd { return &GroupEnd{Mode: mode} }

func (a *GroupEnd) Kind() Kind { return KindGroupEnd }

func (a *GroupEnd) Do(g *Game) error { return a.claim(KindGroupEnd) }

func (a *GroupEnd) Execute(g *Game) error { return nil }

func (a *GroupEnd) Reverse(g *Game) error { return nil }

// MarkPhase records the start of a phase and sets World.Phase.
type MarkPhase struct {
	base
	Phase string
	Prev  string
}

func NewMarkPhase(g *Game, phase string) *MarkPhase {
	return &MarkPhase{Phase: phase, Prev: g.World.Phase}
}

func (a *MarkPhase) Kind() Kind { return KindMarkPhase }

func (a *MarkPhase) Do(g *Game) (err error) {
	if err := a.claim(KindMarkPhase); err != nil {
		return err
	}
	defer a.release(&err)
	g.cue("phase:"+a.Phase, "")
	return a.Execute(g)
}

func (a *MarkPhase) Execute(g *Game) error {
	g.World.Phase = a.Phase
	return nil
}

func (a *MarkPhase) Reverse(g *Game) error {
	if err := expect(KindMarkPhase, "phase", a.Phase, g.World.Phase); err != nil {
		return err
	}
	g.World.Phase = a.Prev
	return nil
}

// LockTurnwheel forbids (Lock true) or re-allows committing a rewind to a
// point after it.
type LockTurnwheel struct {
	base
	Lock bool
}

func NewLockTurnwheel(lock bool) *LockTurnwheel { return &LockTurnwheel{Lock: lock} }

func (a *LockTurnwheel) Kind() Kind { return KindLockTurnwheel }

func (a *LockTurnwheel) Do(g *Game) error { return a.claim(KindLockTurnwheel) }

func (a *LockTurnwheel) Execute(g *Game) error { return nil }

func (a *LockTurnwheel) Reverse(g *Game) error { return nil }

// Message is a line of narration surfaced when the turnwheel steps over
// the group containing it.
type Message struct {
	base
	Text string
}

func NewMessage(text string) *Message { return &Message{Text: text} }

func (a *Message) Kind() Kind { return KindMessage }

func (a *Message) Do(g *Game) error { return a.claim(KindMessage) }

func (a *Message) Execute(g *Game) error { return nil }

func (a *Message) Reverse(g *Game) error { return nil }
