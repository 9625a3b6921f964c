package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/daviddao/turnwheel/pkg/model"
)

type unitView struct {
	ID       model.UnitID `json:"id"`
	Team     string       `json:"team"`
	Position model.Pos    `json:"position"`
	HP       int          `json:"hp"`
	MaxHP    int          `json:"max_hp"`
	Level    int          `json:"level"`
	Exp      int          `json:"exp"`
	Traveler model.UnitID `json:"traveler,omitempty"`
	Dead     bool         `json:"dead,omitempty"`
	Finished bool         `json:"finished,omitempty"`
}

type statusView struct {
	Save      string     `json:"save"`
	Slot      string     `json:"slot"`
	Actions   int        `json:"actions"`
	Cursor    int        `json:"cursor"`
	FirstFree int        `json:"first_free"`
	Active    bool       `json:"active"`
	Phase     string     `json:"phase"`
	Turn      int        `json:"turn"`
	Locked    bool       `json:"locked"`
	UsesSpent int        `json:"uses_spent"`
	UsesLeft  int        `json:"uses_left"`
	Units     []unitView `json:"units"`
}

func (a *app) cmdStatus(args []string) int {
	flags := flag.NewFlagSet("status", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	g, err := a.loadGame(context.Background())
	if err != nil {
		return fail("status", err)
	}
	st := statusView{
		Save:      g.save.ID,
		Slot:      g.save.Slot,
		Actions:   g.sess.Log.Len(),
		Cursor:    g.wheel.Cursor(),
		FirstFree: g.sess.Log.FirstFree(),
		Active:    g.wheel.Active(),
		Phase:     g.wheel.CurrentPhase(),
		Turn:      g.sess.World.TurnCount,
		Locked:    g.wheel.Locked(),
		UsesSpent: g.wheel.UsesSpent(),
		UsesLeft:  g.wheel.UsesLeft(),
	}
	for _, u := range g.sess.World.Units() {
		st.Units = append(st.Units, unitView{
			ID:       u.ID,
			Team:     u.Team,
			Position: u.Position,
			HP:       u.HP,
			MaxHP:    u.MaxHP,
			Level:    u.Level,
			Exp:      u.Exp,
			Traveler: u.Traveler,
			Dead:     u.Dead,
			Finished: u.Finished,
		})
	}

	if *jsonOut {
		printJSON(st)
		return 0
	}
	session := "closed"
	if st.Active {
		session = "open"
	}
	uses := "unlimited"
	if st.UsesLeft >= 0 {
		uses = fmt.Sprintf("%d left", st.UsesLeft)
	}
	fmt.Printf("save %s (slot %s)\n", st.Save, st.Slot)
	fmt.Printf("cursor %d/%d (first free %d), session %s\n", st.Cursor, st.Actions, st.FirstFree, session)
	fmt.Printf("turn %d, %s phase, locked=%v\n", st.Turn, st.Phase, st.Locked)
	fmt.Printf("uses spent %d, %s\n", st.UsesSpent, uses)
	fmt.Println("units:")
	for _, u := range st.Units {
		pos := u.Position.String()
		switch {
		case u.Dead:
			pos = "dead"
		case !u.Position.Valid():
			pos = "off map"
		}
		extra := ""
		if u.Traveler != "" {
			extra += " carrying " + string(u.Traveler)
		}
		if u.Finished {
			extra += " (done)"
		}
		fmt.Printf("  %-8s %-7s %-8s hp=%2d/%-2d lv=%d exp=%-2d%s\n",
			u.ID, u.Team, pos, u.HP, u.MaxHP, u.Level, u.Exp, extra)
	}
	return 0
}

func (a *app) cmdSaves(args []string) int {
	flags := flag.NewFlagSet("saves", flag.ContinueOnError)
	all := flags.Bool("all", false, "list every slot")
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	slot := a.cfg.Slot
	if *all {
		slot = ""
	}
	saves, err := a.store.ListSaves(context.Background(), slot)
	if err != nil {
		return fail("saves", err)
	}

	if *jsonOut {
		printJSON(map[string]interface{}{"saves": saves, "count": len(saves)})
		return 0
	}
	if len(saves) == 0 {
		fmt.Println("no saves")
		return 0
	}
	for _, s := range saves {
		session := ""
		if s.Active {
			session = " (turnwheel open)"
		}
		fmt.Printf("  %s  %-10s %s  cursor=%d/%d uses=%d%s\n",
			s.ID, s.Slot, s.CreatedAt.Format("2006-01-02 15:04:05"),
			s.Cursor, s.Actions, s.UsesSpent, session)
	}
	return 0
}
