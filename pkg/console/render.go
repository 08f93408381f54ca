package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/goalrun/pkg/kernel/engine"
	"github.com/ormasoftchile/goalrun/pkg/runtime"
)

// RenderView draws the execution view: previous, current and next block,
// plus the parallel mini-tasks, sleep countdown and reminder state.
func RenderView(v runtime.View) string {
	header := headerStyle.Render(v.Title)
	if v.Paused {
		header = lipgloss.JoinHorizontal(lipgloss.Center, header, pausedBadgeStyle.Render("PAUSE"))
	}

	lines := []string{
		previewStyle.Render("  " + v.Prev.Text),
		currentStyle.Render(GlyphCurrent + " " + v.Current.Text),
		previewStyle.Render("  " + v.Next.Text),
	}
	if v.Current.Image != "" {
		lines = append(lines, labelStyle.Render("Bild: ")+valueStyle.Render(v.Current.Image))
	}

	switch v.Phase {
	case engine.AtParallel:
		lines = append(lines, "")
		for _, p := range v.Pending {
			lines = append(lines, fmt.Sprintf("  %s %s %s", GlyphPending, p.Text, previewStyle.Render("("+p.BlockID+")")))
		}
	case engine.AtSleep:
		lines = append(lines, "", labelStyle.Render(GlyphSleep+" noch ")+valueStyle.Render(formatDuration(v.Remaining)))
	}
	if v.Reminder > 0 {
		lines = append(lines, labelStyle.Render("Erinnerung alle ")+valueStyle.Render(formatDuration(v.Reminder)))
	}

	body := panelBorder.Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}

// RenderReminder draws a reminder notification.
func RenderReminder(text string) string {
	return reminderStyle.Render(GlyphReminder + " " + text)
}

// RenderEntered draws a block the cursor moved to on its own, e.g. after
// a wait ran out.
func RenderEntered(text string) string {
	return currentStyle.Render(GlyphCurrent + " " + text)
}

// RenderLog draws the cumulative execution log.
func RenderLog(entries []string) string {
	if len(entries) == 0 {
		return previewStyle.Render("  (noch nichts erledigt)")
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(doneStyle.Render("  " + GlyphDone + " " + e))
	}
	return b.String()
}

// RenderFinished draws the banner shown when the schedule ends.
func RenderFinished(aborted bool) string {
	if aborted {
		return errorStyle.Render("Abgebrochen.")
	}
	return finishedBannerStyle.Render("Geschafft!")
}

// formatDuration prints whole seconds, rounding a countdown up so it never
// shows 0s while still running.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return ((d + time.Second - 1) / time.Second * time.Second).String()
}
