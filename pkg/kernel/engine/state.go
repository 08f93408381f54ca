package engine

import (
	"strings"
	"time"

	"github.com/ormasoftchile/goalrun/pkg/kernel/trace"
)

type frameKind int

const (
	frameRoot frameKind = iota
	frameBranch
	frameBody
)

// stage tracks how far the element under a frame's index has progressed.
type stage int

const (
	stageEntry stage = iota
	stageBody
	stageCondition
)

// frame is one level of the cursor path: a sequence being walked.
type frame struct {
	Owner string // container block id, "" for the goal
	Kind  frameKind
	Seq   []string
	Index int
	Stage stage
}

func (f *frame) current() string {
	if f.Index >= len(f.Seq) {
		return ""
	}
	return f.Seq[f.Index]
}

type parallelState struct {
	BlockID   string
	Required  int
	Pending   []string
	Completed []string
}

type sleepState struct {
	BlockID   string
	StartedAt time.Time
	Duration  time.Duration
	Token     uint64
}

type reminderState struct {
	BlockID  string // owner of the live timer ("" for the goal)
	Interval time.Duration
	Token    uint64
}

// State is the mutable execution state owned by one Cursor.
type State struct {
	Phase  Phase
	Frames []frame
	// Iterations holds the remaining runs of each active RepeatTimes node,
	// keyed by the path of ancestor ids.
	Iterations map[string]int
	Parallel   *parallelState
	Sleep      *sleepState
	Reminder   *reminderState
	Paused     bool
	Closed     bool
	Log        trace.Log

	token uint64
}

func newState() State {
	return State{Iterations: map[string]int{}}
}

// clone returns a deep copy safe to mutate for previews.
func (s *State) clone() State {
	c := *s
	c.Frames = make([]frame, len(s.Frames))
	copy(c.Frames, s.Frames)
	c.Iterations = make(map[string]int, len(s.Iterations))
	for k, v := range s.Iterations {
		c.Iterations[k] = v
	}
	if s.Parallel != nil {
		p := *s.Parallel
		p.Pending = append([]string(nil), s.Parallel.Pending...)
		p.Completed = append([]string(nil), s.Parallel.Completed...)
		c.Parallel = &p
	}
	if s.Sleep != nil {
		sl := *s.Sleep
		c.Sleep = &sl
	}
	if s.Reminder != nil {
		r := *s.Reminder
		c.Reminder = &r
	}
	return c
}

func (s *State) top() *frame {
	if len(s.Frames) == 0 {
		return nil
	}
	return &s.Frames[len(s.Frames)-1]
}

// currentBlock is the id the cursor rests on, "" at the end.
func (s *State) currentBlock() string {
	if f := s.top(); f != nil {
		return f.current()
	}
	return ""
}

// pathKey identifies the element under the top frame by its ancestors.
func (s *State) pathKey() string {
	parts := make([]string, 0, len(s.Frames)+1)
	for _, f := range s.Frames {
		parts = append(parts, f.Owner)
	}
	parts = append(parts, s.currentBlock())
	return strings.Join(parts, "/")
}

func (s *State) nextToken() uint64 {
	s.token++
	return s.token
}
