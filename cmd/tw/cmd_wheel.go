package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/daviddao/turnwheel/pkg/turnwheel"
)

type stepView struct {
	Direction turnwheel.Direction `json:"direction"`
	Group     string              `json:"group"`
	Kind      string              `json:"kind"`
	From      int                 `json:"from"`
	To        int                 `json:"to"`
	Messages  []string            `json:"messages,omitempty"`
}

func (a *app) cmdBack(args []string) int {
	flags := flag.NewFlagSet("back", flag.ContinueOnError)
	n := flags.Int("n", 1, "groups to step back")
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	ctx := context.Background()
	g, err := a.loadGame(ctx)
	if err != nil {
		return fail("back", err)
	}
	if !g.wheel.Active() {
		if err := g.wheel.Begin(); err != nil {
			return fail("back", err)
		}
	}
	steps, err := repeat(*n, g.wheel.StepBack)
	return a.finishWheel(ctx, "back", g, steps, err, *jsonOut)
}

func (a *app) cmdForward(args []string) int {
	flags := flag.NewFlagSet("forward", flag.ContinueOnError)
	n := flags.Int("n", 1, "groups to step forward")
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	ctx := context.Background()
	g, err := a.loadGame(ctx)
	if err != nil {
		return fail("forward", err)
	}
	steps, err := repeat(*n, g.wheel.StepForward)
	return a.finishWheel(ctx, "forward", g, steps, err, *jsonOut)
}

func (a *app) cmdJump(args []string) int {
	flags := flag.NewFlagSet("jump", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: tw jump [--json] <index>")
		return 1
	}
	index, err := strconv.Atoi(flags.Arg(0))
	if err != nil {
		return fail("jump", fmt.Errorf("bad index %q: %w", flags.Arg(0), err))
	}

	ctx := context.Background()
	g, err := a.loadGame(ctx)
	if err != nil {
		return fail("jump", err)
	}
	if !g.wheel.Active() {
		if err := g.wheel.Begin(); err != nil {
			return fail("jump", err)
		}
	}
	steps, err := g.wheel.JumpTo(index)
	return a.finishWheel(ctx, "jump", g, steps, err, *jsonOut)
}

func (a *app) cmdCommit(args []string) int {
	flags := flag.NewFlagSet("commit", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	ctx := context.Background()
	g, err := a.loadGame(ctx)
	if err != nil {
		return fail("commit", err)
	}
	if err := g.wheel.Commit(); err != nil {
		return fail("commit", err)
	}
	id, err := a.persist(ctx, g)
	if err != nil {
		return fail("commit", err)
	}

	if *jsonOut {
		printJSON(map[string]interface{}{
			"save":       id,
			"actions":    g.sess.Log.Len(),
			"uses_spent": g.wheel.UsesSpent(),
			"uses_left":  g.wheel.UsesLeft(),
		})
	} else {
		fmt.Printf("committed: %d actions kept, %d uses spent\n", g.sess.Log.Len(), g.wheel.UsesSpent())
		fmt.Printf("saved %s\n", id)
	}
	return 0
}

func (a *app) cmdCancel(args []string) int {
	flags := flag.NewFlagSet("cancel", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	ctx := context.Background()
	g, err := a.loadGame(ctx)
	if err != nil {
		return fail("cancel", err)
	}
	steps, err := g.wheel.Cancel()
	return a.finishWheel(ctx, "cancel", g, steps, err, *jsonOut)
}

// repeat calls step up to n times, stopping at the first error.
func repeat(n int, step func() (turnwheel.Step, error)) ([]turnwheel.Step, error) {
	var steps []turnwheel.Step
	for i := 0; i < n; i++ {
		st, err := step()
		if err != nil {
			return steps, err
		}
		steps = append(steps, st)
	}
	return steps, nil
}

// finishWheel saves the result of a turnwheel command and prints its steps.
// A halted turnwheel leaves the world in an unknown state, so nothing is
// saved; a refusal still saves the steps taken before it.
func (a *app) finishWheel(ctx context.Context, cmd string, g *game, steps []turnwheel.Step, stepErr error, jsonOut bool) int {
	if halted := g.wheel.Halted(); halted != nil {
		return fail(cmd, halted)
	}
	id, err := a.persist(ctx, g)
	if err != nil {
		return fail(cmd, err)
	}

	views := make([]stepView, 0, len(steps))
	for _, st := range steps {
		views = append(views, stepView{
			Direction: st.Direction,
			Group:     st.Group.String(),
			Kind:      groupKind(st.Group),
			From:      st.From,
			To:        st.To,
			Messages:  st.Messages,
		})
	}

	if jsonOut {
		out := map[string]interface{}{
			"save":   id,
			"steps":  views,
			"cursor": g.wheel.Cursor(),
			"active": g.wheel.Active(),
			"phase":  g.wheel.CurrentPhase(),
			"locked": g.wheel.Locked(),
		}
		if stepErr != nil {
			out["refused"] = stepErr.Error()
		}
		printJSON(out)
	} else {
		for _, v := range views {
			fmt.Printf("%-7s %-28s %2d -> %d\n", v.Direction, v.Group, v.From, v.To)
			for _, m := range v.Messages {
				fmt.Printf("          %s\n", m)
			}
		}
		fmt.Printf("cursor %d/%d, %s phase", g.wheel.Cursor(), g.sess.Log.Len(), g.wheel.CurrentPhase())
		if g.wheel.Locked() {
			fmt.Print(", locked")
		}
		fmt.Println()
	}
	if stepErr != nil {
		return fail(cmd, stepErr)
	}
	return 0
}
