package engine

import "testing"

func TestPreview_Sequence(t *testing.T) {
	c := start(t, whileWorkflow)

	if got := c.Prev().Text; got != PreviewStart {
		t.Errorf("prev = %q, want START", got)
	}
	if got := c.Current().Text; got != "A1" {
		t.Errorf("current = %q, want A1", got)
	}
	if got := c.Next().Text; got != "B" {
		t.Errorf("next = %q, want the loop condition B", got)
	}

	drive(t, c, Ok())
	if got := c.Next().Text; got != PreviewUnknown {
		t.Errorf("next at condition = %q, want ???", got)
	}
	if got := c.Prev().Text; got != "A1" {
		t.Errorf("prev = %q, want A1", got)
	}

	drive(t, c, Yes())
	if got := c.Prev().Text; got != "Ja: B" {
		t.Errorf("prev = %q, want Ja: B", got)
	}
	if got := c.Next().Text; got != "B" {
		t.Errorf("next from loop body = %q, want B", got)
	}

	drive(t, c, Ok(), No())
	if got := c.Current().Text; got != PreviewEnd {
		t.Errorf("current at end = %q, want ENDE", got)
	}
	if got := c.Next().Text; got != PreviewEnd {
		t.Errorf("next at end = %q, want ENDE", got)
	}
}

func TestPreview_NextIsPure(t *testing.T) {
	c := start(t, `
apiVersion: goal/v1
goal:
  name: Rein
  blocks:
    - type: repeat
      mode: times
      times: 2
      body:
        - {type: task, text: X}
    - {type: sleep, duration: {value: 0}}
    - type: parallel
      text: P
      tasks:
        - {id: m1, text: M}
    - {type: task, text: Z}
`)
	before := c.st.clone()
	for i := 0; i < 3; i++ {
		if got := c.Next().Text; got != "X" {
			t.Errorf("next = %q, want X (second iteration)", got)
		}
		c.Prev()
	}
	if len(c.st.Iterations) != len(before.Iterations) || c.st.Log.Len() != before.Log.Len() {
		t.Errorf("Next mutated state: iterations %v, log %d", c.st.Iterations, c.st.Log.Len())
	}
	for k, v := range before.Iterations {
		if c.st.Iterations[k] != v {
			t.Errorf("iteration %s = %d, want %d", k, c.st.Iterations[k], v)
		}
	}

	drive(t, c, Ok())
	if got := c.Next().Text; got != "P" {
		t.Errorf("next = %q, want P past the zero sleep", got)
	}
	if c.st.Log.Len() != 1 {
		t.Errorf("preview wrote the log: %v", c.LogTexts())
	}

	drive(t, c, Ok())
	if got := c.Next().Text; got != "Z" {
		t.Errorf("next from parallel = %q, want Z", got)
	}
}

func TestPreview_BeforeStart(t *testing.T) {
	c := NewCursor(compile(t, taskSequence), DefaultConfig())
	if got := c.Next().Text; got != "A1" {
		t.Errorf("next before start = %q, want A1", got)
	}
	if c.Phase() != PhaseIdle {
		t.Errorf("Next started the cursor: %s", c.Phase())
	}
}
