// Package runtime binds an engine cursor to a clock and turns its effects
// into armed timers and lifecycle events.
package runtime

import (
	"time"

	"github.com/ormasoftchile/goalrun/pkg/kernel/engine"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventBlockEntered      EventType = "block.entered"
	EventBlockCompleted    EventType = "block.completed"
	EventReminderFired     EventType = "reminder.fired"
	EventTaskCompleted     EventType = "task.completed"
	EventParallelCompleted EventType = "parallel.completed"
	EventWorkflowStarted   EventType = "workflow.started"
	EventWorkflowFinished  EventType = "workflow.finished"
	EventWorkflowAborted   EventType = "workflow.aborted"
	EventScheduleStarted   EventType = "schedule.started"
	EventScheduleFinished  EventType = "schedule.finished"
	EventScheduleAborted   EventType = "schedule.aborted"
)

// Event is one lifecycle record delivered to observers. Only the fields
// relevant to Type are set.
type Event struct {
	Type       EventType `json:"type"`
	ScheduleID string    `json:"schedule_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	Workflow   string    `json:"workflow,omitempty"`
	BlockID    string    `json:"block_id,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	// Entry is the execution log line added by block.completed.
	Entry string    `json:"entry,omitempty"`
	At    time.Time `json:"at"`
}

// Data returns the optional fields as a map, for sinks that store a
// free-form payload.
func (e Event) Data() map[string]any {
	m := map[string]any{}
	set := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	set("schedule_id", e.ScheduleID)
	set("workflow", e.Workflow)
	set("block_id", e.BlockID)
	set("kind", e.Kind)
	set("text", e.Text)
	set("image", e.Image)
	set("entry", e.Entry)
	return m
}

// View is a consistent snapshot of a session for rendering.
type View struct {
	SessionID string
	Workflow  string
	Phase     engine.Phase
	Title     string
	Prev      engine.Preview
	Current   engine.Preview
	Next      engine.Preview
	Pending   []engine.Preview
	// Remaining is the countdown left at a sleep block.
	Remaining time.Duration
	// Reminder is the live reminder interval, 0 when none is armed.
	Reminder time.Duration
	Paused   bool
	Finished bool
	Closed   bool
	Log      []string
}
