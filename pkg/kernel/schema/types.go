// Package schema defines the goal/v1 workflow document types.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// API version constant for goal/v1.
const APIVersion = "goal/v1"

// ---------------------------------------------------------------------------
// Document
// ---------------------------------------------------------------------------

// Document is the top-level goal/v1 workflow file.
type Document struct {
	APIVersion string  `yaml:"apiVersion" json:"apiVersion"`
	Goal       Goal    `yaml:"goal"       json:"goal"`
	Detached   []Block `yaml:"detached,omitempty" json:"detached,omitempty"`
}

// Goal is the root of the block tree.
type Goal struct {
	Name        string  `yaml:"name"        json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Image       string  `yaml:"image,omitempty"       json:"image,omitempty"`
	Timer       *Timer  `yaml:"timer,omitempty"       json:"timer,omitempty"`
	Blocks      []Block `yaml:"blocks"      json:"blocks,omitempty"`
}

// ---------------------------------------------------------------------------
// Block
// ---------------------------------------------------------------------------

// BlockType enumerates the authorable block kinds.
type BlockType string

const (
	BlockTask     BlockType = "task"
	BlockIf       BlockType = "if"
	BlockRepeat   BlockType = "repeat"
	BlockParallel BlockType = "parallel"
	BlockSleep    BlockType = "sleep"
)

// RepeatMode selects the loop flavour of a repeat block.
type RepeatMode string

const (
	RepeatWhile RepeatMode = "while"
	RepeatUntil RepeatMode = "until"
	RepeatTimes RepeatMode = "times"
)

// Block is one authored node. Which fields apply depends on Type.
type Block struct {
	ID    string    `yaml:"id,omitempty"    json:"id,omitempty"`
	Type  BlockType `yaml:"type"            json:"type" jsonschema:"enum=task,enum=if,enum=repeat,enum=parallel,enum=sleep"`
	Text  string    `yaml:"text,omitempty"  json:"text,omitempty"`
	Image string    `yaml:"image,omitempty" json:"image,omitempty"`
	Timer *Timer    `yaml:"timer,omitempty" json:"timer,omitempty"`

	// if / repeat while|until
	Condition string  `yaml:"condition,omitempty" json:"condition,omitempty"`
	Then      []Block `yaml:"then,omitempty"      json:"then,omitempty"`
	Else      []Block `yaml:"else,omitempty"      json:"else,omitempty"`

	// repeat
	Mode  RepeatMode `yaml:"mode,omitempty"  json:"mode,omitempty" jsonschema:"enum=while,enum=until,enum=times"`
	Times int        `yaml:"times,omitempty" json:"times,omitempty"`
	Body  []Block    `yaml:"body,omitempty"  json:"body,omitempty"`

	// parallel
	Choose int        `yaml:"choose,omitempty" json:"choose,omitempty"`
	Tasks  []MiniTask `yaml:"tasks,omitempty"  json:"tasks,omitempty"`

	// sleep
	Duration  *Quantity `yaml:"duration,omitempty"   json:"duration,omitempty"`
	SkipAfter string    `yaml:"skip_after,omitempty" json:"skip_after,omitempty"`
}

// MiniTask is a leaf task inside a parallel block.
type MiniTask struct {
	ID    string `yaml:"id,omitempty"    json:"id,omitempty"`
	Text  string `yaml:"text"            json:"text"`
	Image string `yaml:"image,omitempty" json:"image,omitempty"`
}

// ---------------------------------------------------------------------------
// Timer / durations
// ---------------------------------------------------------------------------

// Timer configures a repeating reminder on a block or on the goal.
type Timer struct {
	Quantity `yaml:",inline"`
	Enabled  *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled reports whether the timer is on. Timers default to enabled.
func (t *Timer) IsEnabled() bool {
	return t != nil && (t.Enabled == nil || *t.Enabled)
}

// Quantity is an amount of time expressed in a time base (s, m or h).
type Quantity struct {
	Value Amount `yaml:"value"          json:"value"`
	Unit  string `yaml:"unit,omitempty" json:"unit,omitempty"`
}

// String renders the quantity the way it was authored, e.g. "5 m".
func (q Quantity) String() string {
	unit := q.Unit
	if unit == "" {
		unit = "s"
	}
	return fmt.Sprintf("%s %s", q.Value, unit)
}

// Amount is a numeric scalar as written by the author. It is kept as text
// so that malformed values survive decoding and can be normalized later.
type Amount string

// Float parses the amount. ok is false for anything that is not a number.
func (a Amount) Float() (v float64, ok bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(a)), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// MarshalJSON emits numbers as JSON numbers and everything else as strings.
func (a Amount) MarshalJSON() ([]byte, error) {
	if f, ok := a.Float(); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return json.Marshal(f)
	}
	return json.Marshal(string(a))
}

// JSONSchema advertises that an amount may be written as number or string.
func (Amount) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "number"},
			{Type: "string"},
		},
	}
}
