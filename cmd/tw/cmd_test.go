package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/daviddao/turnwheel/pkg/action"
	"github.com/daviddao/turnwheel/pkg/config"
	"github.com/daviddao/turnwheel/pkg/turnwheel"
)

func newTestApp(t *testing.T, backend string, maxUses int) *app {
	t.Helper()
	cfg := config.Config{
		DB:        filepath.Join(t.TempDir(), "nested", "test.db"),
		Backend:   backend,
		Slot:      "suspend",
		KeepSaves: 2,
		MaxUses:   maxUses,
		LogLevel:  "warn",
	}
	a, err := openApp(cfg, zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel)))
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	t.Cleanup(func() { a.store.Close() })
	return a
}

// run calls a command and returns its exit code and stdout.
func run(t *testing.T, cmd func([]string) int, args ...string) (int, string) {
	t.Helper()
	var code int
	out := captureStdout(t, func() { code = cmd(args) })
	return code, out
}

func mustRun(t *testing.T, cmd func([]string) int, args ...string) string {
	t.Helper()
	code, out := run(t, cmd, args...)
	if code != 0 {
		t.Fatalf("command %v exited %d; output:\n%s", args, code, out)
	}
	return out
}

func status(t *testing.T, a *app) statusView {
	t.Helper()
	out := mustRun(t, a.cmdStatus, "--json")
	var st statusView
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	return st
}

func forEachBackend(t *testing.T, fn func(t *testing.T, backend string)) {
	for _, backend := range []string{config.BackendSQLite, config.BackendBolt} {
		t.Run(backend, func(t *testing.T) { fn(t, backend) })
	}
}

// --- exit codes ---

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"busy", turnwheel.ErrBusy, 2},
		{"at start", turnwheel.ErrAtStart, 2},
		{"at end", turnwheel.ErrAtEnd, 2},
		{"inactive", turnwheel.ErrInactive, 2},
		{"locked", turnwheel.ErrLocked, 2},
		{"no uses", turnwheel.ErrNoUses, 2},
		{"wrapped boundary", fmt.Errorf("jump to 3: %w", turnwheel.ErrNotBoundary), 2},
		{"symmetry", &action.SymmetryError{Kind: action.KindChangeHP, Field: "HP"}, 1},
		{"halted", fmt.Errorf("%w: boom", turnwheel.ErrHalted), 1},
		{"other", errors.New("disk full"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

// --- demo and inspection ---

func TestDemo(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		a := newTestApp(t, backend, -1)
		out := mustRun(t, a.cmdDemo)
		if !strings.Contains(out, "47 actions in 15 groups") {
			t.Errorf("demo output = %q", out)
		}
		st := status(t, a)
		if st.Actions != 47 || st.Cursor != 47 || st.FirstFree != 2 || st.Active {
			t.Errorf("status after demo = %+v", st)
		}
		if st.Phase != "player" || st.Turn != 2 || st.Locked || st.UsesLeft != -1 {
			t.Errorf("status after demo = %+v", st)
		}
		if len(st.Units) != 4 {
			t.Errorf("got %d units, want 4", len(st.Units))
		}
	})
}

func TestStatusWithoutSave(t *testing.T) {
	a := newTestApp(t, config.BackendSQLite, -1)
	var code int
	errOut := captureStderr(t, func() {
		captureStdout(t, func() { code = a.cmdStatus(nil) })
	})
	if code != 1 {
		t.Errorf("status without save exited %d, want 1", code)
	}
	if !strings.Contains(errOut, "tw demo") {
		t.Errorf("stderr = %q, want a hint to run tw demo", errOut)
	}
}

func TestLogAndGroups(t *testing.T) {
	a := newTestApp(t, config.BackendSQLite, -1)
	mustRun(t, a.cmdDemo)

	var log struct {
		Actions   []actionView `json:"actions"`
		Count     int          `json:"count"`
		Cursor    int          `json:"cursor"`
		FirstFree int          `json:"first_free"`
	}
	if err := json.Unmarshal([]byte(mustRun(t, a.cmdLog, "--json")), &log); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if log.Count != 47 || log.Cursor != 47 || log.FirstFree != 2 {
		t.Errorf("log count %d cursor %d first free %d", log.Count, log.Cursor, log.FirstFree)
	}
	if log.Actions[2].Kind != action.KindGroupStart || log.Actions[2].Detail != "eirika/free" {
		t.Errorf("action 2 = %+v", log.Actions[2])
	}

	text := mustRun(t, a.cmdLog)
	if !strings.Contains(text, `"A shadow passes over the field"`) {
		t.Errorf("log text missing message:\n%s", text)
	}

	var groups struct {
		Groups []groupView `json:"groups"`
		Count  int         `json:"count"`
	}
	if err := json.Unmarshal([]byte(mustRun(t, a.cmdGroups, "--json")), &groups); err != nil {
		t.Fatalf("decode groups: %v", err)
	}
	if groups.Count != 15 {
		t.Errorf("got %d groups, want 15", groups.Count)
	}
	last := groups.Groups[len(groups.Groups)-1]
	if last.Kind != "extra" || last.Begin != 46 || !last.Cursor {
		t.Errorf("last group = %+v", last)
	}

	if err := json.Unmarshal([]byte(mustRun(t, a.cmdGroups, "--json", "--start", "35")), &groups); err != nil {
		t.Fatalf("decode groups: %v", err)
	}
	want := []groupView{
		{Kind: "move", Begin: 35, End: 40},
		{Kind: "move", Begin: 40, End: 46},
		{Kind: "extra", Begin: 46, End: 47, Cursor: true},
	}
	for i := range groups.Groups {
		groups.Groups[i].Label = ""
	}
	if !reflect.DeepEqual(groups.Groups, want) {
		t.Errorf("groups from 35 = %+v, want %+v", groups.Groups, want)
	}
}

// --- turnwheel ---

func TestRewindAndCommit(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		a := newTestApp(t, backend, -1)
		mustRun(t, a.cmdDemo)

		mustRun(t, a.cmdBack, "--n", "3")
		if st := status(t, a); st.Cursor != 35 || !st.Active {
			t.Fatalf("after back 3: cursor %d active %v", st.Cursor, st.Active)
		}

		mustRun(t, a.cmdForward)
		if st := status(t, a); st.Cursor != 40 {
			t.Fatalf("after forward: cursor %d, want 40", st.Cursor)
		}

		code, _ := run(t, a.cmdForward, "--n", "5")
		if code != 2 {
			t.Errorf("forward past the present exited %d, want 2", code)
		}
		if st := status(t, a); st.Cursor != 47 || !st.Active {
			t.Fatalf("after forward 5: cursor %d active %v", st.Cursor, st.Active)
		}

		mustRun(t, a.cmdJump, "18")
		if st := status(t, a); st.Cursor != 18 || !st.Locked || st.Phase != "player" {
			t.Fatalf("after jump 18: %+v", st)
		}
		if code, _ := run(t, a.cmdCommit); code != 2 {
			t.Errorf("commit inside a locked region exited %d, want 2", code)
		}

		mustRun(t, a.cmdJump, "20")
		mustRun(t, a.cmdCommit)
		st := status(t, a)
		if st.Actions != 20 || st.Cursor != 20 || st.Active || st.UsesSpent != 1 || st.Turn != 1 {
			t.Errorf("after commit: %+v", st)
		}

		var saves struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal([]byte(mustRun(t, a.cmdSaves, "--json")), &saves); err != nil {
			t.Fatalf("decode saves: %v", err)
		}
		if saves.Count != 2 {
			t.Errorf("got %d saves after rotation, want 2", saves.Count)
		}
	})
}

func TestBackReportsMessages(t *testing.T) {
	a := newTestApp(t, config.BackendSQLite, -1)
	mustRun(t, a.cmdDemo)

	var out struct {
		Steps  []stepView `json:"steps"`
		Cursor int        `json:"cursor"`
	}
	if err := json.Unmarshal([]byte(mustRun(t, a.cmdJump, "--json", "32")), &out); err != nil {
		t.Fatalf("decode jump: %v", err)
	}
	if out.Cursor != 32 || len(out.Steps) != 6 {
		t.Fatalf("jump to 32: cursor %d with %d steps", out.Cursor, len(out.Steps))
	}
	phase := out.Steps[len(out.Steps)-1]
	if phase.Kind != "phase" || len(phase.Messages) != 1 || phase.Messages[0] != "Start of player phase" {
		t.Errorf("phase step = %+v", phase)
	}
}

func TestCancelRestoresPresent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		a := newTestApp(t, backend, -1)
		mustRun(t, a.cmdDemo)
		before := status(t, a)

		mustRun(t, a.cmdBack, "--n", "2")
		if st := status(t, a); st.Cursor != 40 {
			t.Fatalf("after back 2: cursor %d, want 40", st.Cursor)
		}
		mustRun(t, a.cmdCancel)

		after := status(t, a)
		if after.Cursor != 47 || after.Active || after.UsesSpent != 0 {
			t.Errorf("after cancel: %+v", after)
		}
		if !reflect.DeepEqual(after.Units, before.Units) {
			t.Errorf("units after cancel = %+v, want %+v", after.Units, before.Units)
		}
	})
}

func TestForwardWithoutSession(t *testing.T) {
	a := newTestApp(t, config.BackendSQLite, -1)
	mustRun(t, a.cmdDemo)
	if code, _ := run(t, a.cmdForward); code != 2 {
		t.Errorf("forward without a session exited %d, want 2", code)
	}
	if code, _ := run(t, a.cmdCommit); code != 2 {
		t.Errorf("commit without a session exited %d, want 2", code)
	}
}

func TestUsesLimit(t *testing.T) {
	a := newTestApp(t, config.BackendSQLite, 1)
	mustRun(t, a.cmdDemo)
	mustRun(t, a.cmdBack)
	mustRun(t, a.cmdCommit)
	if st := status(t, a); st.UsesLeft != 0 || st.Actions != 46 {
		t.Fatalf("after commit: %+v", st)
	}
	if code, _ := run(t, a.cmdBack); code != 2 {
		t.Errorf("back with no uses left exited %d, want 2", code)
	}
}

func TestJumpBadIndex(t *testing.T) {
	a := newTestApp(t, config.BackendSQLite, -1)
	mustRun(t, a.cmdDemo)
	if code, _ := run(t, a.cmdJump); code != 1 {
		t.Errorf("jump without index exited %d, want 1", code)
	}
	if code, _ := run(t, a.cmdJump, "x"); code != 1 {
		t.Errorf("jump to x exited %d, want 1", code)
	}
	if code, _ := run(t, a.cmdJump, "5"); code != 2 {
		t.Errorf("jump inside a group exited %d, want 2", code)
	}
}

func TestMetricsDump(t *testing.T) {
	a := newTestApp(t, config.BackendSQLite, -1)
	mustRun(t, a.cmdDemo)
	out := captureStderr(t, a.writeMetrics)
	if !strings.Contains(out, `turnwheel_actions_recorded_total{kind="move"} 5`) {
		t.Errorf("metrics dump missing move count:\n%s", out)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	fn()

	w.Close()
	os.Stderr = old
	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}
