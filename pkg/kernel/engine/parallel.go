package engine

import (
	"fmt"
	"slices"

	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
)

func newParallel(b *model.Parallel) *parallelState {
	return &parallelState{
		BlockID:  b.ID,
		Required: b.Effective(),
		Pending:  slices.Clone(b.Tasks),
	}
}

func (p *parallelState) pending(id string) bool {
	return slices.Contains(p.Pending, id)
}

// title renders "{remainingRequired} von {remainingTotal}".
func (p *parallelState) title() string {
	return fmt.Sprintf("%d von %d", p.Required-len(p.Completed), len(p.Pending))
}

// completeMiniTask records one mini-task. It reports whether the parallel
// block is now finished, in which case the cursor has moved past it.
func (m *machine) completeMiniTask(id string) bool {
	p := m.st.Parallel
	p.Pending = slices.DeleteFunc(p.Pending, func(s string) bool { return s == id })
	p.Completed = append(p.Completed, id)

	mt := m.wf.Block(id)
	m.log(id, mt.DisplayText())
	m.emit(BlockCompleted{BlockID: id, Kind: model.KindMiniTask, Entry: mt.DisplayText()})

	if len(p.Completed) < p.Required {
		return false
	}
	m.emit(ParallelBlockCompleted{BlockID: p.BlockID})
	m.st.Parallel = nil
	m.next()
	return true
}
