package engine

import (
	"strings"
	"time"

	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
	"github.com/ormasoftchile/goalrun/pkg/kernel/schema"
)

var epoch = time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

// tb is the part of testing.TB that *rapid.T also provides.
type tb interface {
	Helper()
	Fatalf(format string, args ...any)
}

func compile(t tb, yaml string) *model.Workflow {
	t.Helper()
	doc, err := schema.Load(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	wf, err := model.Compile(doc, model.Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return wf
}

func start(t tb, yaml string) *Cursor {
	t.Helper()
	c := NewCursor(compile(t, yaml), DefaultConfig())
	if _, err := c.Start(epoch); err != nil {
		t.Fatalf("start: %v", err)
	}
	return c
}

// drive applies instructions at epoch and fails on the first error.
func drive(t tb, c *Cursor, ins ...Instruction) []Effect {
	t.Helper()
	var all []Effect
	for _, in := range ins {
		out, err := c.Step(epoch, in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		all = append(all, out...)
	}
	return all
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func countEffects[T Effect](effects []Effect) int {
	n := 0
	for _, e := range effects {
		if _, ok := e.(T); ok {
			n++
		}
	}
	return n
}

func lastArm(effects []Effect) (ArmReminder, bool) {
	for i := len(effects) - 1; i >= 0; i-- {
		if a, ok := effects[i].(ArmReminder); ok {
			return a, true
		}
	}
	return ArmReminder{}, false
}
