package engine

import (
	"time"

	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
)

// Phase is the cursor's position class.
type Phase string

const (
	PhaseIdle   Phase = ""
	AtTask      Phase = "AtTask"
	AtCondition Phase = "AtCondition"
	AtParallel  Phase = "AtParallel"
	AtSleep     Phase = "AtSleep"
	AtEnd       Phase = "AtEnd"
)

// ---------------------------------------------------------------------------
// Events (input)
// ---------------------------------------------------------------------------

// Event is an input to Cursor.Step.
type Event interface{ isEvent() }

// InstructionKind enumerates the user's instructions.
type InstructionKind string

const (
	InstrOk       InstructionKind = "ok"
	InstrYes      InstructionKind = "yes"
	InstrNo       InstructionKind = "no"
	InstrSkip     InstructionKind = "skip"
	InstrComplete InstructionKind = "complete"
)

// Instruction is a user decision.
type Instruction struct {
	Kind InstructionKind
	// MiniTask is the id to complete; only used with InstrComplete.
	MiniTask string
}

func (i Instruction) String() string {
	if i.Kind == InstrComplete {
		return string(i.Kind) + "(" + i.MiniTask + ")"
	}
	return string(i.Kind)
}

// Ok, Yes, No, Skip and Complete build instructions.
func Ok() Instruction                { return Instruction{Kind: InstrOk} }
func Yes() Instruction               { return Instruction{Kind: InstrYes} }
func No() Instruction                { return Instruction{Kind: InstrNo} }
func Skip() Instruction              { return Instruction{Kind: InstrSkip} }
func Complete(id string) Instruction { return Instruction{Kind: InstrComplete, MiniTask: id} }

// TimerFired reports that the reminder armed with Token elapsed.
type TimerFired struct{ Token uint64 }

// CountdownExpired reports that the sleep countdown armed with Token elapsed.
type CountdownExpired struct{ Token uint64 }

// ReminderAcknowledged restarts the live reminder from its full interval.
type ReminderAcknowledged struct{}

// Pause suspends reminders until Resume.
type Pause struct{}

// Resume re-arms reminders after Pause.
type Resume struct{}

func (Instruction) isEvent()          {}
func (TimerFired) isEvent()           {}
func (CountdownExpired) isEvent()     {}
func (ReminderAcknowledged) isEvent() {}
func (Pause) isEvent()                {}
func (Resume) isEvent()               {}

// ---------------------------------------------------------------------------
// Effects (output)
// ---------------------------------------------------------------------------

// Effect is an output of a transition. Timer effects are commands for the
// host; the rest are notifications.
type Effect interface{ isEffect() }

// ArmReminder asks the host to deliver TimerFired{Token} after Interval.
type ArmReminder struct {
	Token    uint64
	Interval time.Duration
}

// CancelReminder asks the host to drop the reminder armed with Token.
type CancelReminder struct{ Token uint64 }

// ArmCountdown asks the host to deliver CountdownExpired{Token} after Duration.
type ArmCountdown struct {
	Token    uint64
	Duration time.Duration
}

// CancelCountdown asks the host to drop the countdown armed with Token.
type CancelCountdown struct{ Token uint64 }

// BlockEntered is emitted when the cursor stops at a block.
type BlockEntered struct {
	BlockID string
	Kind    model.Kind
	Text    string
	Image   string
}

// BlockCompleted is emitted when a block (or mini-task) is done and logged.
type BlockCompleted struct {
	BlockID string
	Kind    model.Kind
	Entry   string
}

// ReminderFired carries the text of the block the user is stuck on.
type ReminderFired struct {
	BlockID string
	Text    string
}

// TaskCompleted is the gamification hook for tasks and sleeps.
type TaskCompleted struct{ BlockID string }

// ParallelBlockCompleted is the gamification hook for parallel blocks.
type ParallelBlockCompleted struct{ BlockID string }

// WorkflowFinished is emitted once, when the cursor reaches AtEnd.
type WorkflowFinished struct{ Workflow string }

func (ArmReminder) isEffect()            {}
func (CancelReminder) isEffect()         {}
func (ArmCountdown) isEffect()           {}
func (CancelCountdown) isEffect()        {}
func (BlockEntered) isEffect()           {}
func (BlockCompleted) isEffect()         {}
func (ReminderFired) isEffect()          {}
func (TaskCompleted) isEffect()          {}
func (ParallelBlockCompleted) isEffect() {}
func (WorkflowFinished) isEffect()       {}
