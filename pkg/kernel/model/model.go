// Package model holds the compiled, immutable form of a goal workflow:
// a closed set of block types stored in an arena addressed by id.
package model

import (
	"fmt"
	"time"
)

// Kind identifies a block type.
type Kind string

const (
	KindTask     Kind = "task"
	KindIf       Kind = "if"
	KindWhile    Kind = "repeat_while"
	KindUntil    Kind = "repeat_until"
	KindTimes    Kind = "repeat_times"
	KindParallel Kind = "parallel"
	KindMiniTask Kind = "mini_task"
	KindSleep    Kind = "sleep"
)

// Block is one node of the workflow tree. The set of implementations is
// closed; switch on the concrete type to dispatch.
type Block interface {
	BlockID() string
	Kind() Kind
	// DisplayText is what collaborators show and speak for the block.
	DisplayText() string
	// Reminder is the block's own timer, nil when it has none.
	Reminder() *Timer
	isBlock()
}

// Timer is a normalized repeating reminder.
type Timer struct {
	Interval time.Duration
	Enabled  bool
}

// Header carries the fields every block has.
type Header struct {
	ID    string
	Timer *Timer
}

func (h *Header) BlockID() string  { return h.ID }
func (h *Header) Reminder() *Timer { return h.Timer }
func (*Header) isBlock()           {}

// Task is a plain step the user confirms with ok.
type Task struct {
	Header
	Text  string
	Image string
}

func (*Task) Kind() Kind            { return KindTask }
func (b *Task) DisplayText() string { return b.Text }

// If asks a yes/no question and runs one of two branches.
type If struct {
	Header
	Condition string
	Then      []string
	Else      []string
}

func (*If) Kind() Kind            { return KindIf }
func (b *If) DisplayText() string { return b.Condition }

// RepeatWhile asks its condition before each run of the body.
type RepeatWhile struct {
	Header
	Condition string
	Body      []string
}

func (*RepeatWhile) Kind() Kind            { return KindWhile }
func (b *RepeatWhile) DisplayText() string { return b.Condition }

// RepeatUntil runs the body, then asks its condition; yes exits.
type RepeatUntil struct {
	Header
	Condition string
	Body      []string
}

func (*RepeatUntil) Kind() Kind            { return KindUntil }
func (b *RepeatUntil) DisplayText() string { return b.Condition }

// RepeatTimes runs the body Count times without asking.
type RepeatTimes struct {
	Header
	Count int
	Body  []string
}

func (*RepeatTimes) Kind() Kind { return KindTimes }
func (b *RepeatTimes) DisplayText() string {
	return fmt.Sprintf("Noch %d mal...", b.Count)
}

// Parallel offers its mini-tasks at once and finishes after Required of
// them are done. Required 0 means all of them.
type Parallel struct {
	Header
	Text     string
	Image    string
	Required int
	Tasks    []string
}

func (*Parallel) Kind() Kind            { return KindParallel }
func (b *Parallel) DisplayText() string { return b.Text }

// Effective returns the completion requirement clamped to the mini-tasks
// actually present.
func (b *Parallel) Effective() int {
	n := len(b.Tasks)
	if b.Required <= 0 || b.Required > n {
		return n
	}
	return b.Required
}

// MiniTask is a leaf inside a Parallel block.
type MiniTask struct {
	Header
	Text  string
	Image string
}

func (*MiniTask) Kind() Kind            { return KindMiniTask }
func (b *MiniTask) DisplayText() string { return b.Text }

// Sleep waits for Duration. A zero duration means no wait.
type Sleep struct {
	Header
	Text     string
	Duration time.Duration
	// Amount is the duration as authored, e.g. "5 m".
	Amount string
	// SkipAfter overrides the engine-wide skip threshold when set.
	SkipAfter *time.Duration
}

func (*Sleep) Kind() Kind { return KindSleep }
func (b *Sleep) DisplayText() string {
	if b.Text == "" {
		return fmt.Sprintf("Warte (%s)", b.Amount)
	}
	return fmt.Sprintf("Warte: %s (%s)", b.Text, b.Amount)
}

// Workflow is the Goal root together with the block arena.
type Workflow struct {
	Name   string
	Image  string
	Timer  *Timer
	Root   []string
	Blocks map[string]Block
	// Detached lists authored blocks that are not connected to Root.
	Detached []string
}

// Block returns the block with the given id, or nil.
func (w *Workflow) Block(id string) Block {
	return w.Blocks[id]
}
