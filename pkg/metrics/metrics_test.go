package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/daviddao/turnwheel/pkg/action"
	"github.com/daviddao/turnwheel/pkg/actionlog"
	"github.com/daviddao/turnwheel/pkg/turnwheel"
)

var (
	_ actionlog.Observer = (*Metrics)(nil)
	_ turnwheel.Recorder = (*Metrics)(nil)
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Appended(action.KindMove)
	m.Appended(action.KindMove)
	m.Appended(action.KindWait)
	m.Step("back", "move", 9)
	m.Refused("busy")
	m.Session("begin")

	if got := testutil.ToFloat64(m.actionsRecorded.WithLabelValues("move")); got != 2 {
		t.Errorf("move count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.refused.WithLabelValues("busy")); got != 1 {
		t.Errorf("busy refusals = %v, want 1", got)
	}

	want := `
# HELP turnwheel_steps_total Completed turnwheel steps
# TYPE turnwheel_steps_total counter
turnwheel_steps_total{direction="back",group="move"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "turnwheel_steps_total"); err != nil {
		t.Error(err)
	}
	if n := testutil.CollectAndCount(m.stepActions); n != 1 {
		t.Errorf("histogram series = %d, want 1", n)
	}
}

func TestLogObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	l := actionlog.New(actionlog.WithObserver(m))
	if err := l.Append(action.NewMessage("x")); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.actionsRecorded.WithLabelValues("message")); got != 1 {
		t.Errorf("message count = %v", got)
	}
}
