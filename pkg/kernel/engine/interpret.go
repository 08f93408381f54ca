package engine

import (
	"time"

	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
	"github.com/ormasoftchile/goalrun/pkg/kernel/trace"
)

// machine applies one transition to a State, collecting effects.
type machine struct {
	wf  *model.Workflow
	cfg Config
	st  *State
	now time.Time
	out []Effect
	// preview runs mutate a cloned state and must not write the log.
	preview bool
}

func (m *machine) emit(e Effect) {
	m.out = append(m.out, e)
}

func (m *machine) log(blockID, text string) {
	if m.preview {
		return
	}
	m.st.Log.Append(trace.Entry{Text: text, BlockID: blockID, At: m.now})
}

func (m *machine) push(kind frameKind, owner string, seq []string) {
	m.st.Frames = append(m.st.Frames, frame{Owner: owner, Kind: kind, Seq: seq})
}

// next moves the top frame past its current element.
func (m *machine) next() {
	f := m.st.top()
	f.Index++
	f.Stage = stageEntry
}

// pop leaves an exhausted frame and sets up the parent's continuation.
func (m *machine) pop() {
	done := m.st.Frames[len(m.st.Frames)-1]
	m.st.Frames = m.st.Frames[:len(m.st.Frames)-1]
	parent := m.st.top()
	if parent == nil {
		return
	}
	switch done.Kind {
	case frameBranch:
		m.next()
	case frameBody:
		m.bodyDone(parent)
	}
}

// settle walks forward from the current position until the cursor rests
// on a block that waits for the user, or reaches the end.
func (m *machine) settle() {
	for {
		f := m.st.top()
		if f == nil {
			m.finish()
			return
		}
		if f.Index >= len(f.Seq) {
			m.pop()
			continue
		}

		switch b := m.wf.Block(f.current()).(type) {
		case *model.Task:
			m.enter(b, AtTask, b.Text, b.Image)
			return
		case *model.If:
			m.enter(b, AtCondition, b.Condition, "")
			return
		case *model.RepeatWhile, *model.RepeatUntil, *model.RepeatTimes:
			if m.enterRepeat(f, b) {
				return
			}
		case *model.Parallel:
			if len(b.Tasks) == 0 {
				m.next()
				continue
			}
			m.st.Parallel = newParallel(b)
			m.enter(b, AtParallel, b.Text, b.Image)
			return
		case *model.Sleep:
			if b.Duration <= 0 {
				m.completeSleep(b)
				m.next()
				continue
			}
			m.enterSleep(b)
			return
		default:
			// Stray mini-tasks or dangling ids are stepped over.
			m.next()
		}
	}
}

func (m *machine) enter(b model.Block, p Phase, text, image string) {
	m.st.Phase = p
	m.emit(BlockEntered{BlockID: b.BlockID(), Kind: b.Kind(), Text: text, Image: image})
}

func (m *machine) finish() {
	m.cancelReminder()
	m.st.Phase = AtEnd
	m.emit(WorkflowFinished{Workflow: m.wf.Name})
}

// instruct validates and applies a user instruction. It never mutates
// state before the instruction is known to be valid.
func (m *machine) instruct(in Instruction) error {
	p := m.st.Phase
	switch in.Kind {
	case InstrOk:
		if p != AtTask {
			return invalid(in, p, "ok is only accepted at a task")
		}
		b := m.wf.Block(m.st.currentBlock()).(*model.Task)
		m.log(b.ID, b.Text)
		m.emit(BlockCompleted{BlockID: b.ID, Kind: b.Kind(), Entry: b.Text})
		m.emit(TaskCompleted{BlockID: b.ID})
		m.next()

	case InstrYes, InstrNo:
		if p != AtCondition {
			return invalid(in, p, "%s is only accepted at a condition", in.Kind)
		}
		m.answer(in.Kind == InstrYes)

	case InstrSkip:
		if p != AtSleep {
			return invalid(in, p, "skip is only accepted while sleeping")
		}
		if err := m.checkSkip(in); err != nil {
			return err
		}
		m.leaveSleep()

	case InstrComplete:
		if p != AtParallel {
			return invalid(in, p, "mini-tasks can only be completed at a parallel block")
		}
		if !m.st.Parallel.pending(in.MiniTask) {
			return invalid(in, p, "mini-task %q is not pending", in.MiniTask)
		}
		if !m.completeMiniTask(in.MiniTask) {
			// Still waiting on more mini-tasks; the cursor stays put.
			m.retime()
			return nil
		}

	default:
		return invalid(in, p, "unknown instruction")
	}

	m.settle()
	m.retime()
	return nil
}

// answer applies yes/no at an If or a loop condition.
func (m *machine) answer(yes bool) {
	f := m.st.top()
	b := m.wf.Block(f.current())

	entry := "Nein: " + b.DisplayText()
	if yes {
		entry = "Ja: " + b.DisplayText()
	}
	m.log(b.BlockID(), entry)
	m.emit(BlockCompleted{BlockID: b.BlockID(), Kind: b.Kind(), Entry: entry})

	switch b := b.(type) {
	case *model.If:
		branch := b.Else
		if yes {
			branch = b.Then
		}
		m.push(frameBranch, b.ID, branch)
	default:
		m.loopAnswer(f, b, yes)
	}
}
