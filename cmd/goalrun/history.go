package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/goalrun/pkg/store"
)

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "List recorded sessions, or the events of one session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Driver != "sqlite" {
		return fmt.Errorf("history is not persisted with driver %q", cfg.History.Driver)
	}
	st, err := store.OpenSQLite(cfg.History.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if len(args) == 0 {
		sessions, err := st.ListSessions(cmd.Context())
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Fprintln(tw, "No sessions recorded.")
			return nil
		}
		fmt.Fprintln(tw, "SESSION\tWORKFLOW\tSTARTED\tSTATUS\tEVENTS")
		for _, s := range sessions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
				s.SessionID, s.Workflow, s.StartedAt.Local().Format(time.DateTime), s.Status, s.Events)
		}
		return nil
	}

	evs, err := store.Events(cmd.Context(), st, args[0])
	if errors.Is(err, store.ErrSessionNotFound) {
		return fmt.Errorf("session %s: %w", args[0], err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "TIME\tEVENT\tBLOCK\tDETAIL")
	for _, ev := range evs {
		detail := ev.Entry
		if detail == "" {
			detail = ev.Text
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.At.Local().Format(time.TimeOnly), ev.Type, ev.BlockID, detail)
	}
	return nil
}
