// Command tw drives the turnwheel over saved skirmishes: play a scripted
// battle, inspect its action log, and rewind or replay it group by group.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/daviddao/turnwheel/pkg/turnwheel"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		printUsage()
		return
	case "--version", "-v", "version":
		fmt.Println("tw", version)
		return
	}

	a, err := newApp()
	if err != nil {
		fatal("%v", err)
	}

	var code int
	switch os.Args[1] {
	// Setup
	case "demo":
		code = a.cmdDemo(os.Args[2:])

	// Inspection
	case "log":
		code = a.cmdLog(os.Args[2:])
	case "groups":
		code = a.cmdGroups(os.Args[2:])
	case "status":
		code = a.cmdStatus(os.Args[2:])
	case "saves":
		code = a.cmdSaves(os.Args[2:])

	// Turnwheel
	case "back":
		code = a.cmdBack(os.Args[2:])
	case "forward", "fwd":
		code = a.cmdForward(os.Args[2:])
	case "jump":
		code = a.cmdJump(os.Args[2:])
	case "commit":
		code = a.cmdCommit(os.Args[2:])
	case "cancel":
		code = a.cmdCancel(os.Args[2:])

	default:
		fmt.Fprintf(os.Stderr, "tw: unknown command %q\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Run 'tw --help' for usage.")
		code = 1
	}
	a.Close()
	os.Exit(code)
}

func printUsage() {
	fmt.Print(`tw: turnwheel over an action-sourced skirmish

Every game-state change is an action in an append-only log. The turnwheel
walks that log one group (a unit's turn, a phase change, a lone action)
at a time, reversing or replaying it exactly.

Usage:
  tw <command> [flags]

Setup:
  demo                      Play the scripted skirmish and save it

Inspection:
  log                       List the actions of the latest save
  groups [--start N]        List turnwheel groups from index N
  status                    Cursor, phase, lock and uses of the latest save
  saves [--all]             List saves in the slot (or every slot)

Turnwheel:
  back [--n N]              Step back N groups (opens a session)
  forward [--n N]           Step forward N groups
  jump <index>              Step to a group boundary (opens a session)
  commit                    Keep the rewound state, discarding later actions
  cancel                    Replay to the present and close the session

Aliases:
  fwd = forward

Environment:
  TURNWHEEL_DB          database path (default: .turnwheel/turnwheel.db)
  TURNWHEEL_BACKEND     sqlite or bbolt (default: sqlite)
  TURNWHEEL_SLOT        save slot (default: suspend)
  TURNWHEEL_KEEP_SAVES  saves kept per slot (default: 3)
  TURNWHEEL_MAX_USES    committed rewinds allowed, -1 unlimited (default: -1)
  TURNWHEEL_LOG_LEVEL   debug, info, warn, error (default: warn)
  TURNWHEEL_METRICS     print metrics to stderr after each command

All commands support --json for machine-readable output.

Exit codes:
  0  success
  1  error
  2  refused (busy, at a boundary, locked, no uses left)
`)
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case refused(err):
		return 2
	default:
		return 1
	}
}

// refused reports whether err is a recoverable turnwheel refusal.
func refused(err error) bool {
	for _, target := range []error{
		turnwheel.ErrBusy,
		turnwheel.ErrAtStart,
		turnwheel.ErrAtEnd,
		turnwheel.ErrInactive,
		turnwheel.ErrActive,
		turnwheel.ErrLocked,
		turnwheel.ErrNoUses,
		turnwheel.ErrNotBoundary,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// fail reports err for cmd and returns its exit code.
func fail(cmd string, err error) int {
	fmt.Fprintf(os.Stderr, "tw: %s: %v\n", cmd, err)
	return exitCode(err)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "tw: "+format+"\n", args...)
	os.Exit(1)
}
