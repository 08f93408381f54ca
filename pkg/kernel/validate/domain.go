package validate

import (
	"fmt"
	"math"
	"time"

	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
	"github.com/ormasoftchile/goalrun/pkg/kernel/schema"
)

// validateDomain runs goal/v1 domain-level validation rules.
func validateDomain(doc *schema.Document) []*ValidationError {
	var errs []*ValidationError

	// D1: apiVersion must be goal/v1
	if doc.APIVersion != schema.APIVersion {
		errs = append(errs, errorf("domain", "apiVersion", "expected %q, got %q", schema.APIVersion, doc.APIVersion))
	}

	// D2: the goal needs a name; the scheduler uses it for boundary markers
	if doc.Goal.Name == "" {
		errs = append(errs, errorf("domain", "goal.name", "goal.name is required"))
	}
	if len(doc.Goal.Blocks) == 0 {
		errs = append(errs, warningf("domain", "goal.blocks", "workflow has no blocks and finishes immediately"))
	}
	errs = append(errs, validateTimer(doc.Goal.Timer, "goal.timer")...)

	// D3: block and mini-task id uniqueness, across goal and detached blocks
	ids := map[string]string{} // id → path
	claim := func(id, path string) {
		if id == "" {
			return
		}
		if prev, ok := ids[id]; ok {
			errs = append(errs, errorf("domain", path+".id", "duplicate block ID %q (first at %s)", id, prev))
			return
		}
		ids[id] = path
	}
	visit := func(b *schema.Block, path string) {
		claim(b.ID, path)
		for i, t := range b.Tasks {
			claim(t.ID, fmt.Sprintf("%s.tasks[%d]", path, i))
		}
	}
	walkBlocks(doc.Goal.Blocks, "goal.blocks", visit)
	walkBlocks(doc.Detached, "detached", visit)

	// D4: per-type field checks
	check := func(b *schema.Block, path string) {
		errs = append(errs, validateBlock(b, path)...)
	}
	walkBlocks(doc.Goal.Blocks, "goal.blocks", check)
	walkBlocks(doc.Detached, "detached", check)

	// D5: detached blocks never run
	for i := range doc.Detached {
		errs = append(errs, warningf("domain", fmt.Sprintf("detached[%d]", i), "block is not reachable from goal.blocks"))
	}

	return errs
}

func validateBlock(b *schema.Block, path string) []*ValidationError {
	var errs []*ValidationError
	errs = append(errs, validateTimer(b.Timer, path+".timer")...)

	switch b.Type {
	case schema.BlockTask:
		if b.Text == "" {
			errs = append(errs, warningf("domain", path+".text", "task has no text"))
		}

	case schema.BlockIf:
		if b.Condition == "" {
			errs = append(errs, warningf("domain", path+".condition", "if block has no condition text"))
		}
		if len(b.Then) == 0 && len(b.Else) == 0 {
			errs = append(errs, warningf("domain", path, "both branches are empty"))
		}

	case schema.BlockRepeat:
		errs = append(errs, validateRepeat(b, path)...)

	case schema.BlockParallel:
		n := len(b.Tasks)
		switch {
		case n == 0:
			errs = append(errs, warningf("domain", path+".tasks", "parallel block has no tasks and is passed through"))
		case b.Choose < 0:
			errs = append(errs, warningf("domain", path+".choose", "negative choose %d means all tasks", b.Choose))
		case b.Choose > n:
			errs = append(errs, warningf("domain", path+".choose", "choose %d exceeds the %d tasks and is clamped", b.Choose, n))
		}
		for i, t := range b.Tasks {
			if t.Text == "" {
				errs = append(errs, warningf("domain", fmt.Sprintf("%s.tasks[%d].text", path, i), "mini-task has no text"))
			}
		}

	case schema.BlockSleep:
		errs = append(errs, validateSleep(b, path)...)
	}
	return errs
}

func validateRepeat(b *schema.Block, path string) []*ValidationError {
	var errs []*ValidationError
	switch b.Mode {
	case "":
		errs = append(errs, warningf("domain", path+".mode", "repeat mode missing, defaulting to while"))
	case schema.RepeatTimes:
		if b.Times < 0 {
			errs = append(errs, warningf("domain", path+".times", "negative count %d is treated as 0", b.Times))
		}
		if b.Condition != "" {
			errs = append(errs, warningf("domain", path+".condition", "condition is ignored by repeat times"))
		}
	}
	if b.Mode != schema.RepeatTimes {
		if b.Condition == "" {
			errs = append(errs, warningf("domain", path+".condition", "repeat %s has no condition text", modeName(b.Mode)))
		}
		if b.Times != 0 {
			errs = append(errs, warningf("domain", path+".times", "times is only used by repeat times"))
		}
	}
	if len(b.Body) == 0 {
		errs = append(errs, warningf("domain", path+".body", "loop body is empty"))
	}
	return errs
}

func modeName(m schema.RepeatMode) string {
	if m == "" {
		return string(schema.RepeatWhile)
	}
	return string(m)
}

func validateSleep(b *schema.Block, path string) []*ValidationError {
	var errs []*ValidationError
	if b.Duration == nil {
		errs = append(errs, warningf("domain", path+".duration", "sleep has no duration and does not wait"))
	} else {
		errs = append(errs, validateQuantity(b.Duration.Value, b.Duration.Unit, path+".duration")...)
		if model.SleepDuration(b.Duration) == 0 {
			errs = append(errs, warningf("domain", path+".duration", "duration %s does not wait", b.Duration))
		}
	}
	if b.SkipAfter != "" {
		if d, err := time.ParseDuration(b.SkipAfter); err != nil {
			errs = append(errs, warningf("domain", path+".skip_after", "invalid duration %q is ignored", b.SkipAfter))
		} else if d < 0 {
			errs = append(errs, warningf("domain", path+".skip_after", "negative skip_after disables skipping"))
		}
	}
	return errs
}

func validateTimer(t *schema.Timer, path string) []*ValidationError {
	if t == nil {
		return nil
	}
	errs := validateQuantity(t.Value, t.Unit, path)
	if t.IsEnabled() {
		floor := model.DefaultMinReminderInterval
		if iv := model.ReminderInterval(t.Quantity, 0); iv < floor {
			errs = append(errs, warningf("domain", path, "interval %s is below the %s minimum and is clamped", t.Quantity, floor))
		}
	}
	return errs
}

func validateQuantity(v schema.Amount, unit, path string) []*ValidationError {
	var errs []*ValidationError
	if !model.UnitKnown(unit) {
		errs = append(errs, warningf("domain", path+".unit", "unknown unit %q is treated as seconds", unit))
	}
	f, ok := v.Float()
	switch {
	case !ok || math.IsNaN(f) || math.IsInf(f, 0):
		errs = append(errs, warningf("domain", path+".value", "value %q is not a number and is treated as 0", string(v)))
	case f < 0:
		errs = append(errs, warningf("domain", path+".value", "negative value %s is treated as 0", string(v)))
	}
	return errs
}

// walkBlocks visits every block depth first, passing its JSON-path.
func walkBlocks(blocks []schema.Block, prefix string, fn func(*schema.Block, string)) {
	for i := range blocks {
		path := fmt.Sprintf("%s[%d]", prefix, i)
		b := &blocks[i]
		fn(b, path)
		walkBlocks(b.Then, path+".then", fn)
		walkBlocks(b.Else, path+".else", fn)
		walkBlocks(b.Body, path+".body", fn)
	}
}
