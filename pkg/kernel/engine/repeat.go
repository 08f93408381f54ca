package engine

import "github.com/ormasoftchile/goalrun/pkg/kernel/model"

// enterRepeat handles arrival at a loop node. It reports whether the
// cursor now rests on the loop's condition.
func (m *machine) enterRepeat(f *frame, b model.Block) bool {
	switch b := b.(type) {
	case *model.RepeatWhile:
		// The condition is asked before every run, including the first.
		f.Stage = stageCondition
		m.enter(b, AtCondition, b.Condition, "")
		return true

	case *model.RepeatUntil:
		if f.Stage == stageCondition {
			m.enter(b, AtCondition, b.Condition, "")
			return true
		}
		f.Stage = stageBody
		m.push(frameBody, b.ID, b.Body)
		return false

	case *model.RepeatTimes:
		key := m.st.pathKey()
		if f.Stage == stageEntry {
			f.Stage = stageBody
			m.st.Iterations[key] = b.Count
			if len(b.Body) == 0 {
				m.st.Iterations[key] = 0
			}
		}
		if m.st.Iterations[key] > 0 {
			m.st.Iterations[key]--
			m.push(frameBody, b.ID, b.Body)
			return false
		}
		delete(m.st.Iterations, key)
		m.next()
		return false
	}
	return false
}

// bodyDone runs when a loop body is exhausted; parent's current element
// is the loop node.
func (m *machine) bodyDone(parent *frame) {
	switch m.wf.Block(parent.current()).(type) {
	case *model.RepeatWhile, *model.RepeatUntil:
		parent.Stage = stageCondition
	case *model.RepeatTimes:
		parent.Stage = stageBody
	}
}

// loopAnswer applies yes/no at a while or until condition. While runs the
// body on yes; until exits on yes.
func (m *machine) loopAnswer(f *frame, b model.Block, yes bool) {
	switch b := b.(type) {
	case *model.RepeatWhile:
		if !yes {
			m.next()
			return
		}
		f.Stage = stageBody
		m.push(frameBody, b.ID, b.Body)
	case *model.RepeatUntil:
		if yes {
			m.next()
			return
		}
		f.Stage = stageBody
		m.push(frameBody, b.ID, b.Body)
	}
}
