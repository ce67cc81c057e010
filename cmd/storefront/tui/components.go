package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/marshallshelly/storefront/pkg/migration"
)

// Decision is the outcome of a key press in a ConfirmationDialog.
type Decision int

const (
	Undecided Decision = iota
	Confirmed
	Cancelled
)

// ConfirmationDialog represents a yes/no confirmation dialog
type ConfirmationDialog struct {
	Title       string
	Message     string
	YesSelected bool
}

// NewConfirmationDialog creates a dialog with "No" selected.
func NewConfirmationDialog(title, message string) ConfirmationDialog {
	return ConfirmationDialog{Title: title, Message: message}
}

// Update moves the selection or reports a decision.
func (d *ConfirmationDialog) Update(msg tea.KeyMsg) Decision {
	switch msg.String() {
	case "left", "h":
		d.YesSelected = true
	case "right", "l":
		d.YesSelected = false
	case "y":
		return Confirmed
	case "n", "esc", "q":
		return Cancelled
	case "enter":
		if d.YesSelected {
			return Confirmed
		}
		return Cancelled
	}
	return Undecided
}

// View renders the confirmation dialog
func (d ConfirmationDialog) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(d.Title))
	b.WriteString("\n\n")
	b.WriteString(d.Message)
	b.WriteString("\n\n")

	yesButton := inactiveButtonStyle.Render("Yes")
	noButton := inactiveButtonStyle.Render("No")
	if d.YesSelected {
		yesButton = activeButtonStyle.Render("Yes")
	} else {
		noButton = activeButtonStyle.Render("No")
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left, yesButton, "  ", noButton))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(FormatKey("←/→", "navigate") + " • " + FormatKey("enter", "confirm") + " • " + FormatKey("esc/q", "cancel")))

	return boxStyle.Render(b.String())
}

// MigrationItem is one row of the migration list.
type MigrationItem struct {
	Version   string
	Name      string
	Status    migration.MigrationStatus
	AppliedAt string
}

func newMigrationItem(r migration.MigrationRecord) MigrationItem {
	item := MigrationItem{Version: r.Version, Name: r.Name, Status: r.Status}
	if r.AppliedAt != nil {
		item.AppliedAt = r.AppliedAt.Format("2006-01-02 15:04:05")
	}
	return item
}

func (i MigrationItem) FilterValue() string { return i.Version + " " + i.Name }

func (i MigrationItem) Title() string {
	return fmt.Sprintf("%s %s - %s", FormatStatus(i.Status), i.Version, i.Name)
}

func (i MigrationItem) Description() string {
	if i.AppliedAt == "" {
		return mutedStyle.Render("Not applied")
	}
	return mutedStyle.Render("Applied: " + i.AppliedAt)
}

// itemDelegate renders list items on two lines with a cursor marker.
type itemDelegate struct{}

func (itemDelegate) Height() int                         { return 2 }
func (itemDelegate) Spacing() int                        { return 1 }
func (itemDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(MigrationItem)
	if !ok {
		return
	}
	cursor, style := "  ", unselectedItemStyle
	if index == m.Index() {
		cursor, style = "▸ ", selectedItemStyle
	}
	_, _ = fmt.Fprint(w, style.Render(cursor+i.Title()+"\n  "+i.Description()))
}

// ProgressView shows how many of a batch of migrations have run.
type ProgressView struct {
	Current int
	Total   int
	Message string
	bar     progress.Model
}

// NewProgressView creates a progress view for total steps.
func NewProgressView(total int, message string) ProgressView {
	return ProgressView{
		Total:   total,
		Message: message,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Percent returns the completed fraction.
func (p ProgressView) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total)
}

// View renders the progress view
func (p ProgressView) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Migration Progress"))
	b.WriteString("\n\n")
	if p.Message != "" {
		b.WriteString(infoStyle.Render(p.Message))
		b.WriteString("\n\n")
	}
	b.WriteString(p.bar.ViewAs(p.Percent()))
	b.WriteString(" " + infoStyle.Render(fmt.Sprintf("%d/%d", p.Current, p.Total)))

	return boxStyle.Render(b.String())
}

// LogView keeps the most recent log lines.
type LogView struct {
	Logs   []string
	MaxLen int
}

func NewLogView(maxLen int) LogView {
	return LogView{MaxLen: maxLen}
}

func (l *LogView) AddLog(entry string) {
	l.Logs = append(l.Logs, entry)
	if over := len(l.Logs) - l.MaxLen; over > 0 {
		l.Logs = l.Logs[over:]
	}
}

func (l LogView) View() string {
	if len(l.Logs) == 0 {
		return mutedStyle.Render("No logs")
	}
	lines := make([]string, len(l.Logs))
	for i, entry := range l.Logs {
		lines[i] = mutedStyle.Render("• ") + entry
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
