package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/goalrun/pkg/config"
	"github.com/ormasoftchile/goalrun/pkg/console"
	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
	"github.com/ormasoftchile/goalrun/pkg/kernel/trace"
	"github.com/ormasoftchile/goalrun/pkg/kernel/validate"
	"github.com/ormasoftchile/goalrun/pkg/logging"
	"github.com/ormasoftchile/goalrun/pkg/runtime"
	"github.com/ormasoftchile/goalrun/pkg/scheduler"
	"github.com/ormasoftchile/goalrun/pkg/store"
)

var runCmd = &cobra.Command{
	Use:   "run [workflow.yaml...]",
	Short: "Run workflows interactively, one after another",
	Long: `Validate and compile every workflow, queue them in order and drive the
schedule from an interactive console. Reminders are printed while the
prompt waits. Run history goes to the configured store; set trace.path to
also write a hash-chained JSONL trace.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log)

	refs, err := loadWorkflows(cmd.ErrOrStderr(), cfg, args)
	if err != nil {
		return err
	}

	w, err := openWiring(cfg, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	var con *console.Console
	obs := runtime.NewCompositeObserver(
		runtime.ObserverFunc(func(ctx context.Context, ev runtime.Event) { con.OnEvent(ctx, ev) }),
		w.observer,
	)
	s := scheduler.New(
		scheduler.WithObserver(obs),
		scheduler.WithLogger(logger),
		scheduler.WithCursorConfig(cfg.EngineConfig()),
	)
	for _, ref := range refs {
		if err := s.Enqueue(ref); err != nil {
			return err
		}
	}
	con = console.New(s)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	err = con.Run(ctx)
	logSummary(ctx, logger, w.metrics.Snapshot())
	return err
}

// logSummary reports how often each award hook fired during the run.
func logSummary(ctx context.Context, logger *slog.Logger, m runtime.MetricsSnapshot) {
	logger.InfoContext(ctx, "run summary",
		slog.Int64("workflows_finished", m.WorkflowsFinished),
		slog.Int64("workflows_aborted", m.WorkflowsAborted),
		slog.Int64("tasks_completed", m.TasksCompleted),
		slog.Int64("parallel_completed", m.ParallelCompleted),
		slog.Int64("reminders_fired", m.RemindersFired),
	)
}

// loadWorkflows validates and compiles each path. Warnings are printed,
// errors stop the run before anything starts.
func loadWorkflows(stderr io.Writer, cfg config.Config, paths []string) ([]scheduler.Ref, error) {
	refs := make([]scheduler.Ref, 0, len(paths))
	for _, path := range paths {
		doc, diags := validate.ValidateFile(path)
		errs, warnings := validate.Split(diags)
		for _, w := range warnings {
			fmt.Fprintf(stderr, "  ⚠ %s: %s\n", path, w)
		}
		if len(errs) > 0 {
			return nil, fmt.Errorf("%s: %w", path, errs[0])
		}
		wf, err := model.Compile(doc, cfg.ModelOptions())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		refs = append(refs, scheduler.Ref{Path: path, Workflow: wf})
	}
	return refs, nil
}

// wiring holds the sinks built from configuration.
type wiring struct {
	observer runtime.Observer
	metrics  *runtime.Metrics
	closers  []io.Closer
}

func openWiring(cfg config.Config, logger *slog.Logger) (*wiring, error) {
	w := &wiring{metrics: &runtime.Metrics{}}
	observers := []runtime.Observer{runtime.NewLoggingObserver(logger), w.metrics}

	st, closer, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		w.closers = append(w.closers, closer)
	}
	if st != nil {
		observers = append(observers, store.NewObserver(st, logger))
	}

	if cfg.Trace.Path != "" {
		tw, err := trace.NewFileWriter(cfg.Trace.Path)
		if err != nil {
			w.Close()
			return nil, err
		}
		tobs := runtime.NewTraceObserver(tw, logger)
		w.closers = append(w.closers, tobs)
		observers = append(observers, tobs)
	}

	w.observer = runtime.NewCompositeObserver(observers...)
	return w, nil
}

func (w *wiring) Close() error {
	var errs []error
	for i := len(w.closers) - 1; i >= 0; i-- {
		errs = append(errs, w.closers[i].Close())
	}
	return errors.Join(errs...)
}

// openStore returns the configured history store. A nil store means
// history is disabled.
func openStore(cfg config.Config) (store.EventStore, io.Closer, error) {
	switch cfg.History.Driver {
	case "sqlite":
		st, err := store.OpenSQLite(cfg.History.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case "memory":
		return store.NewMemoryEventStore(), nil, nil
	}
	return nil, nil, nil
}
