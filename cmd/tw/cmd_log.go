package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/daviddao/turnwheel/pkg/action"
	"github.com/daviddao/turnwheel/pkg/actionlog"
)

type actionView struct {
	Index  int         `json:"index"`
	Kind   action.Kind `json:"kind"`
	Detail string      `json:"detail,omitempty"`
}

func (a *app) cmdLog(args []string) int {
	flags := flag.NewFlagSet("log", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	g, err := a.loadGame(context.Background())
	if err != nil {
		return fail("log", err)
	}
	l := g.sess.Log
	cursor := g.wheel.Cursor()

	views := make([]actionView, 0, l.Len())
	for i, act := range l.Actions() {
		views = append(views, actionView{Index: i, Kind: act.Kind(), Detail: describe(act)})
	}

	if *jsonOut {
		printJSON(map[string]interface{}{
			"actions":    views,
			"count":      len(views),
			"cursor":     cursor,
			"first_free": l.FirstFree(),
		})
		return 0
	}
	if len(views) == 0 {
		fmt.Println("no actions")
		return 0
	}
	for _, v := range views {
		marker := "  "
		switch {
		case v.Index < l.FirstFree():
			marker = "= "
		case v.Index >= cursor:
			marker = "~ "
		}
		line := fmt.Sprintf("%s%3d %s", marker, v.Index, v.Kind)
		if v.Detail != "" {
			line += " " + v.Detail
		}
		fmt.Println(line)
	}
	if cursor < l.Len() {
		fmt.Printf("cursor at %d; actions marked ~ are undone\n", cursor)
	}
	return 0
}

// describe returns a short summary of the markers and the unit an
// action acts on.
func describe(a action.Action) string {
	switch v := a.(type) {
	case *action.GroupStart:
		return fmt.Sprintf("%s/%s", v.Actor, v.Mode)
	case *action.GroupEnd:
		return v.Mode
	case *action.MarkPhase:
		return v.Phase
	case *action.LockTurnwheel:
		return fmt.Sprintf("lock=%v", v.Lock)
	case *action.Message:
		return fmt.Sprintf("%q", v.Text)
	case *action.Move:
		return fmt.Sprintf("%s %v -> %v", v.Unit, v.OldPos, v.Stop)
	case *action.ChangeHP:
		return fmt.Sprintf("%s %+d", v.Unit, v.Num)
	case *action.GainExp:
		return fmt.Sprintf("%s +%d", v.Unit, v.Gain)
	case *action.Die:
		return string(v.Unit)
	}
	return ""
}

type groupView struct {
	Kind   string `json:"kind"`
	Begin  int    `json:"begin"`
	End    int    `json:"end"`
	Label  string `json:"label"`
	Cursor bool   `json:"cursor,omitempty"`
}

func (a *app) cmdGroups(args []string) int {
	flags := flag.NewFlagSet("groups", flag.ContinueOnError)
	start := flags.Int("start", -1, "first index to group (-1 = first free action)")
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	g, err := a.loadGame(context.Background())
	if err != nil {
		return fail("groups", err)
	}
	from := *start
	if from < 0 {
		from = g.sess.Log.FirstFree()
	}
	cursor := g.wheel.Cursor()

	groups := actionlog.Groups(g.sess.Log.Actions(), from)
	views := make([]groupView, 0, len(groups))
	for _, gr := range groups {
		begin, end := gr.Span()
		views = append(views, groupView{
			Kind:   groupKind(gr),
			Begin:  begin,
			End:    end,
			Label:  gr.String(),
			Cursor: end == cursor,
		})
	}

	if *jsonOut {
		printJSON(map[string]interface{}{"groups": views, "count": len(views), "start": from, "cursor": cursor})
		return 0
	}
	if len(views) == 0 {
		fmt.Println("no groups")
		return 0
	}
	for _, v := range views {
		marker := ""
		if v.Cursor {
			marker = " <-- cursor"
		}
		fmt.Printf("  %s%s\n", v.Label, marker)
	}
	return 0
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
