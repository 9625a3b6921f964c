package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/daviddao/turnwheel/pkg/scenario"
)

func (a *app) cmdDemo(args []string) int {
	flags := flag.NewFlagSet("demo", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	w, err := scenario.Skirmish()
	if err != nil {
		return fail("demo", err)
	}
	sess := scenario.NewSession(w, a.newLog(), a.logger)
	if err := sess.Setup(); err != nil {
		return fail("demo", err)
	}
	if err := sess.Play(); err != nil {
		return fail("demo", err)
	}
	g := &game{sess: sess, wheel: a.newWheel(sess, 0)}
	id, err := a.persist(context.Background(), g)
	if err != nil {
		return fail("demo", err)
	}

	groups := len(sess.Log.Groups())
	if *jsonOut {
		printJSON(map[string]interface{}{
			"save":    id,
			"slot":    a.cfg.Slot,
			"actions": sess.Log.Len(),
			"groups":  groups,
		})
	} else {
		fmt.Printf("played skirmish: %d actions in %d groups\n", sess.Log.Len(), groups)
		fmt.Printf("saved %s (slot %s)\n", id, a.cfg.Slot)
	}
	return 0
}
