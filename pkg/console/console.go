// Package console implements the interactive REPL that drives a schedule
// of workflows from the terminal.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chzyer/readline"

	"github.com/ormasoftchile/goalrun/pkg/kernel/engine"
	"github.com/ormasoftchile/goalrun/pkg/runtime"
	"github.com/ormasoftchile/goalrun/pkg/scheduler"
)

var commands = []string{"ok", "yes", "no", "skip", "done", "ack", "pause", "resume",
	"show", "log", "queue", "abort", "help", "quit"}

// Console drives a scheduler from text commands. It is also a
// runtime.Observer so reminders show up while the prompt waits.
type Console struct {
	sched *scheduler.Scheduler

	mu  sync.Mutex
	out io.Writer

	// busy is set while a command runs; the command redraws the view
	// itself afterwards.
	busy atomic.Bool
}

var _ runtime.Observer = (*Console)(nil)

// New creates a console for s writing to stdout.
func New(s *scheduler.Scheduler) *Console {
	return &Console{sched: s, out: os.Stdout}
}

// SetOutput redirects console output.
func (c *Console) SetOutput(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = w
}

// Run starts the schedule and reads commands until it ends or the user
// quits. Quitting aborts the schedule.
func (c *Console) Run(ctx context.Context) error {
	completer := readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.prompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()
	// Reminders arrive from timer goroutines; writing through readline
	// keeps the prompt line intact.
	c.SetOutput(rl)

	c.printf("Type 'help' for available commands.\n\n")
	c.busy.Store(true)
	err = c.sched.Start(ctx)
	c.busy.Store(false)
	if err != nil {
		return err
	}
	c.show()

	// A schedule can end on a timer while Readline blocks; closing the
	// instance releases it.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-c.sched.Done():
			rl.Close()
		case <-stop:
		}
	}()

	for !c.ended() {
		rl.SetPrompt(c.prompt())
		line, err := rl.Readline()
		if err != nil {
			if c.ended() {
				return nil
			}
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return c.quit(ctx)
			}
			return err
		}
		if c.Execute(ctx, line) {
			return c.quit(ctx)
		}
	}
	return nil
}

// Execute runs one command line. It reports whether the user asked to quit.
func (c *Console) Execute(ctx context.Context, line string) (quit bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	c.busy.Store(true)
	defer c.busy.Store(false)

	var err error
	switch parts[0] {
	case "ok", "o":
		err = c.sched.Dispatch(ctx, engine.Ok())
	case "yes", "y", "ja", "j":
		err = c.sched.Dispatch(ctx, engine.Yes())
	case "no", "n", "nein":
		err = c.sched.Dispatch(ctx, engine.No())
	case "skip", "s":
		err = c.sched.Dispatch(ctx, engine.Skip())
	case "done", "d":
		if len(parts) < 2 {
			c.printf("Usage: done <mini-task-id>\n")
			return false
		}
		err = c.sched.Dispatch(ctx, engine.Complete(parts[1]))
	case "ack", "a":
		err = c.sched.Acknowledge(ctx)
	case "pause":
		err = c.sched.Pause(ctx)
	case "resume":
		err = c.sched.Resume(ctx)
	case "show", "v":
		c.show()
		return false
	case "log", "l":
		c.println(RenderLog(c.sched.LogTexts()))
		return false
	case "queue":
		c.handleQueue()
		return false
	case "abort":
		err = c.sched.Abort(ctx)
	case "help", "?":
		c.handleHelp()
		return false
	case "quit", "q":
		return true
	default:
		c.printf("Unknown command: %q. Type 'help' for available commands.\n", parts[0])
		return false
	}

	if err != nil {
		c.println(errorStyle.Render("Error: " + err.Error()))
		return false
	}
	c.show()
	return false
}

// OnEvent prints reminders and workflow boundaries. Moves the user did
// not type, such as a wait running out, are printed from the event alone:
// it never calls back into the scheduler.
func (c *Console) OnEvent(_ context.Context, ev runtime.Event) {
	switch ev.Type {
	case runtime.EventReminderFired:
		c.println(RenderReminder(ev.Text))
	case runtime.EventWorkflowStarted:
		c.println(headerStyle.Render("» " + ev.Workflow))
	case runtime.EventWorkflowFinished:
		c.println(doneStyle.Render(GlyphDone + " " + ev.Workflow + " beendet"))
	case runtime.EventBlockEntered:
		if !c.busy.Load() {
			c.println(RenderEntered(ev.Text))
		}
	case runtime.EventScheduleFinished, runtime.EventScheduleAborted:
		if !c.busy.Load() {
			c.println(RenderFinished(ev.Type == runtime.EventScheduleAborted))
		}
	}
}

func (c *Console) show() {
	switch c.sched.State() {
	case scheduler.StateFinished:
		c.println(RenderFinished(false))
		return
	case scheduler.StateAborted:
		c.println(RenderFinished(true))
		return
	}
	if v, ok := c.sched.Display(); ok {
		c.println(RenderView(v))
	}
}

func (c *Console) ended() bool {
	st := c.sched.State()
	return st == scheduler.StateFinished || st == scheduler.StateAborted
}

func (c *Console) quit(ctx context.Context) error {
	if c.ended() {
		return nil
	}
	if err := c.sched.Abort(ctx); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
		return err
	}
	c.printf("Exiting.\n")
	return nil
}

// prompt shows the workflow and title: goalrun[Morgen | 1 von 2]>
func (c *Console) prompt() string {
	v, ok := c.sched.Display()
	if !ok {
		return "goalrun[done]> "
	}
	if v.Title != v.Workflow {
		return fmt.Sprintf("goalrun[%s | %s]> ", v.Workflow, v.Title)
	}
	return fmt.Sprintf("goalrun[%s]> ", v.Workflow)
}

func (c *Console) handleQueue() {
	q := c.sched.Queue()
	if len(q) == 0 {
		c.printf("Queue is empty.\n")
		return
	}
	for i, ref := range q {
		c.printf("  %d. %s\n", i+1, ref.Workflow.Name)
	}
}

func (c *Console) handleHelp() {
	c.println(`Available commands:
  ok (o)           Complete the current task
  yes (y, ja)      Answer the current question with yes
  no (n, nein)     Answer the current question with no
  skip (s)         Skip the running wait
  done (d) <id>    Complete a mini-task of a parallel block
  ack (a)          Acknowledge the reminder
  pause / resume   Suspend or restart reminders
  show (v)         Show the current view
  log (l)          Show what has been done
  queue            Show the workflows still waiting
  abort            Abort the whole schedule
  help (?)         Show this help
  quit (q)         Abort and exit`)
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}
