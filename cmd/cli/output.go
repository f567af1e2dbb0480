package main

import (
	"fmt"
	"strconv"
	"strings"

	"blockrand/app"
	"blockrand/domain/allocation"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	colorArmA    = lipgloss.Color("#20B9B4")
	colorArmB    = lipgloss.Color("#F4D03F")
	colorBorder  = lipgloss.Color("#16858E")
	colorMuted   = lipgloss.Color("#7B8794")
	colorError   = lipgloss.Color("#E74C3C")
	colorSuccess = lipgloss.Color("#2CD7C7")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	ArmA    lipgloss.Style
	ArmB    lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorSuccess),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Success: lipgloss.NewStyle().Foreground(colorSuccess),
	Warning: lipgloss.NewStyle().Foreground(colorArmB),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	ArmA:    lipgloss.NewStyle().Bold(true).Foreground(colorArmA),
	ArmB:    lipgloss.NewStyle().Bold(true).Foreground(colorArmB),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1),
}

func renderGroup(g allocation.Group) string {
	if g == allocation.GroupA {
		return Styles.ArmA.Render(g.String())
	}
	return Styles.ArmB.Render(g.String())
}

func renderResult(result app.EnrollmentResult) string {
	r := result.Record
	lines := []string{
		fmt.Sprintf("Subject %s (%s) assigned to group %s", r.SubjectID, r.Key, renderGroup(r.Group)),
	}
	if result.Decision.Priority != "" {
		lines = append(lines, Styles.Muted.Render(fmt.Sprintf("%s imbalance, priority block favouring %s", result.Decision.Reason, result.Decision.Priority)))
	}
	return Styles.Box.Render(strings.Join(lines, "\n"))
}

func renderBalance(report app.BalanceReport) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("Strata", "A", "B", "|A-B|")
	for _, s := range report.Strata {
		t.Row(s.Key.String(), strconv.Itoa(s.A), strconv.Itoa(s.B), strconv.Itoa(s.Diff))
	}
	t.Row("Total", strconv.Itoa(report.Global.A), strconv.Itoa(report.Global.B), strconv.Itoa(report.Global.Diff()))

	summary := Styles.Muted.Render(fmt.Sprintf(
		"n=%d  block size %d  mean |A-B| %.2f  max |A-B| %.0f  binomial p %.3f  history %s",
		report.Total, report.BlockSize, report.MeanAbsDiff, report.MaxAbsDiff, report.GlobalPValue, report.Fingerprint))

	return lipgloss.JoinVertical(lipgloss.Left, Styles.Title.Render("Current balance"), t.String(), summary)
}

func renderHistory(records []allocation.AssignmentRecord) string {
	if len(records) == 0 {
		return Styles.Muted.Render("No subjects enrolled yet.")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("Subject ID", "Name", "Age", "Strata", "Group", "Assigned At")
	for _, r := range records {
		t.Row(r.SubjectID.String(), r.Name, strconv.Itoa(r.Age), r.Key.String(), r.Group.String(), r.AssignedAt.String())
	}
	return t.String()
}
