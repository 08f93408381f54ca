package model

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ormasoftchile/goalrun/pkg/kernel/schema"
)

// ErrDuplicateID is returned when two authored blocks share an id.
var ErrDuplicateID = errors.New("duplicate block id")

// Options tune compilation.
type Options struct {
	// MinReminderInterval is the floor for reminder intervals.
	// Zero means DefaultMinReminderInterval.
	MinReminderInterval time.Duration
}

type compiler struct {
	opts   Options
	wf     *Workflow
	used   map[string]bool
	nextID int
}

// Compile turns a decoded document into an immutable Workflow. Numeric
// oddities are normalized, not reported; only duplicate ids fail.
func Compile(doc *schema.Document, opts Options) (*Workflow, error) {
	if doc == nil {
		return nil, errors.New("compile: nil document")
	}
	if opts.MinReminderInterval <= 0 {
		opts.MinReminderInterval = DefaultMinReminderInterval
	}

	c := &compiler{
		opts: opts,
		used: map[string]bool{},
		wf: &Workflow{
			Name:   doc.Goal.Name,
			Image:  doc.Goal.Image,
			Timer:  timerFrom(doc.Goal.Timer, opts.MinReminderInterval),
			Blocks: map[string]Block{},
		},
	}

	// Reserve authored ids first so generated ones never collide.
	var dupErr error
	reserve := func(id string) {
		if id == "" {
			return
		}
		if c.used[id] && dupErr == nil {
			dupErr = fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
		c.used[id] = true
	}
	visit := func(b *schema.Block) {
		reserve(b.ID)
		for _, t := range b.Tasks {
			reserve(t.ID)
		}
	}
	schema.WalkBlocks(doc.Goal.Blocks, visit)
	schema.WalkBlocks(doc.Detached, visit)
	if dupErr != nil {
		return nil, dupErr
	}

	c.wf.Root = c.sequence(doc.Goal.Blocks)
	c.wf.Detached = c.sequence(doc.Detached)
	return c.wf, nil
}

// Load decodes a goal/v1 document from r and compiles it.
func Load(r io.Reader, opts Options) (*Workflow, error) {
	doc, err := schema.Load(r)
	if err != nil {
		return nil, err
	}
	return Compile(doc, opts)
}

// LoadFile decodes and compiles the workflow at path.
func LoadFile(path string, opts Options) (*Workflow, error) {
	doc, err := schema.LoadFile(path)
	if err != nil {
		return nil, err
	}
	wf, err := Compile(doc, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wf, nil
}

func (c *compiler) id(authored string) string {
	if authored != "" {
		return authored
	}
	for {
		c.nextID++
		id := "b" + strconv.Itoa(c.nextID)
		if !c.used[id] {
			c.used[id] = true
			return id
		}
	}
}

func (c *compiler) sequence(blocks []schema.Block) []string {
	ids := make([]string, 0, len(blocks))
	for i := range blocks {
		ids = append(ids, c.block(&blocks[i]))
	}
	return ids
}

func (c *compiler) block(b *schema.Block) string {
	h := Header{
		ID:    c.id(b.ID),
		Timer: timerFrom(b.Timer, c.opts.MinReminderInterval),
	}

	var out Block
	switch b.Type {
	case schema.BlockIf:
		out = &If{
			Header:    h,
			Condition: b.Condition,
			Then:      c.sequence(b.Then),
			Else:      c.sequence(b.Else),
		}
	case schema.BlockRepeat:
		body := c.sequence(b.Body)
		switch b.Mode {
		case schema.RepeatUntil:
			out = &RepeatUntil{Header: h, Condition: b.Condition, Body: body}
		case schema.RepeatTimes:
			out = &RepeatTimes{Header: h, Count: max(b.Times, 0), Body: body}
		default:
			out = &RepeatWhile{Header: h, Condition: b.Condition, Body: body}
		}
	case schema.BlockParallel:
		p := &Parallel{
			Header:   h,
			Text:     b.Text,
			Image:    b.Image,
			Required: max(b.Choose, 0),
		}
		for _, t := range b.Tasks {
			mt := &MiniTask{Header: Header{ID: c.id(t.ID)}, Text: t.Text, Image: t.Image}
			c.wf.Blocks[mt.ID] = mt
			p.Tasks = append(p.Tasks, mt.ID)
		}
		out = p
	case schema.BlockSleep:
		s := &Sleep{
			Header:   h,
			Text:     b.Text,
			Duration: SleepDuration(b.Duration),
			Amount:   schema.Quantity{Value: "0"}.String(),
		}
		if b.Duration != nil {
			s.Amount = b.Duration.String()
		}
		if d, err := time.ParseDuration(b.SkipAfter); b.SkipAfter != "" && err == nil {
			s.SkipAfter = &d
		}
		out = s
	default:
		// Unknown types run as plain tasks so authored content stays usable.
		out = &Task{Header: h, Text: b.Text, Image: b.Image}
	}

	c.wf.Blocks[h.ID] = out
	return h.ID
}
