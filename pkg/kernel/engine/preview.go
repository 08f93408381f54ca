package engine

import (
	"time"

	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
)

// Preview texts shown in place of a block.
const (
	PreviewStart   = "START"
	PreviewEnd     = "ENDE"
	PreviewUnknown = "???"
)

// Preview describes a block for display.
type Preview struct {
	BlockID string
	Kind    model.Kind
	Text    string
	Image   string
}

func previewOf(b model.Block) Preview {
	if b == nil {
		return Preview{}
	}
	p := Preview{BlockID: b.BlockID(), Kind: b.Kind(), Text: b.DisplayText()}
	switch b := b.(type) {
	case *model.Task:
		p.Image = b.Image
	case *model.MiniTask:
		p.Image = b.Image
	case *model.Parallel:
		p.Image = b.Image
	}
	return p
}

// Current describes the block the cursor rests on.
func (c *Cursor) Current() Preview {
	switch c.st.Phase {
	case PhaseIdle:
		return Preview{}
	case AtEnd:
		return Preview{Text: PreviewEnd}
	}
	return previewOf(c.wf.Block(c.st.currentBlock()))
}

// Prev describes the most recently completed step, or START.
func (c *Cursor) Prev() Preview {
	e, ok := c.st.Log.Last()
	if !ok {
		return Preview{Text: PreviewStart}
	}
	p := Preview{BlockID: e.BlockID, Text: e.Text}
	if b := c.wf.Block(e.BlockID); b != nil {
		p.Kind = b.Kind()
	}
	return p
}

// Next describes where the cursor goes once the current block is done.
// At a condition the answer decides, so it returns ???. Next never
// changes the cursor's state.
func (c *Cursor) Next() Preview {
	switch c.st.Phase {
	case AtCondition:
		return Preview{Text: PreviewUnknown}
	case AtEnd:
		return Preview{Text: PreviewEnd}
	}

	st := c.st.clone()
	m := &machine{wf: c.wf, cfg: c.cfg, st: &st, now: time.Time{}, preview: true}
	switch st.Phase {
	case PhaseIdle:
		m.push(frameRoot, "", c.wf.Root)
	case AtSleep:
		st.Sleep = nil
		m.next()
	case AtParallel:
		st.Parallel = nil
		m.next()
	default:
		m.next()
	}
	m.settle()

	if st.Phase == AtEnd {
		return Preview{Text: PreviewEnd}
	}
	return previewOf(c.wf.Block(st.currentBlock()))
}
