package main

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/roea-ai/botmind/pkg/types"
)

func renderBotsTable(table *tview.Table, bots []types.BotInfo) {
	table.Clear()
	headers := []string{"Bot", "Owner", "Mode", "Task", "Status", "Queue", "Lock"}
	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}
	for i, b := range bots {
		row := i + 1
		kind, status := "-", "-"
		if b.CurrentTask != nil {
			kind = describeTask(b.CurrentTask)
			status = string(b.CurrentTask.Status)
		}
		name := b.Name
		if !b.Active {
			name += " (inactive)"
		}
		table.SetCell(row, 0, tview.NewTableCell(name))
		table.SetCell(row, 1, tview.NewTableCell(b.Owner))
		table.SetCell(row, 2, tview.NewTableCell(string(b.Mode)).SetTextColor(modeColor(b.Mode)))
		table.SetCell(row, 3, tview.NewTableCell(kind))
		table.SetCell(row, 4, tview.NewTableCell(status))
		table.SetCell(row, 5, tview.NewTableCell(fmt.Sprintf("%d", b.QueueSize)))
		table.SetCell(row, 6, tview.NewTableCell(b.LockOwner))
	}
}

func modeColor(m types.Mode) tcell.Color {
	switch m {
	case types.ModeCombat:
		return tcell.ColorRed
	case types.ModeBuilder:
		return tcell.ColorYellow
	case types.ModeGatherer:
		return tcell.ColorGreen
	}
	return tcell.ColorGray
}

func describeTask(t *types.Task) string {
	s := string(t.Kind)
	if target := t.Param("target", ""); target != "" {
		s += " " + target
	}
	if q := t.Param("quantity", ""); q != "" {
		s += " x" + q
	}
	return s
}

func renderJobsTable(table *tview.Table, jobs []types.MultiTaskJob) {
	table.Clear()
	headers := []string{"Job", "Type", "Owner", "Status", "Pending", "Active", "Done", "Failed"}
	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}
	for i := range jobs {
		j := &jobs[i]
		row := i + 1
		counts := j.CountByStatus()
		active := counts[types.SubTaskAssigned] + counts[types.SubTaskInProgress]
		table.SetCell(row, 0, tview.NewTableCell(shortID(j.JobID)))
		table.SetCell(row, 1, tview.NewTableCell(j.JobType))
		table.SetCell(row, 2, tview.NewTableCell(j.Owner))
		table.SetCell(row, 3, tview.NewTableCell(string(j.Status)))
		table.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("%d", counts[types.SubTaskPending])))
		table.SetCell(row, 5, tview.NewTableCell(fmt.Sprintf("%d", active)))
		table.SetCell(row, 6, tview.NewTableCell(fmt.Sprintf("%d", counts[types.SubTaskCompleted])))
		table.SetCell(row, 7, tview.NewTableCell(fmt.Sprintf("%d", counts[types.SubTaskFailed])))
	}
}

func renderEvents(items []types.Event) string {
	if len(items) == 0 {
		return "No events"
	}
	var b strings.Builder
	for _, e := range items {
		b.WriteString(fmt.Sprintf("[%s] %s", e.Timestamp.Format("15:04:05"), e.Type))
		if e.Bot != "" {
			b.WriteString(" " + e.World + "/" + e.Bot)
		}
		if e.JobID != "" {
			b.WriteString(" job=" + shortID(e.JobID))
		}
		if e.OldStatus != "" || e.NewStatus != "" {
			b.WriteString(fmt.Sprintf(" %s->%s", e.OldStatus, e.NewStatus))
		}
		if e.Message != "" {
			b.WriteString("  " + trimLine(e.Message, 60))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func trimLine(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

func shortID(v string) string {
	if len(v) <= 8 {
		return v
	}
	return v[:8]
}
