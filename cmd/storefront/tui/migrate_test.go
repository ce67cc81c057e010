package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marshallshelly/storefront/pkg/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loaded(t *testing.T, action Action, statuses ...migration.MigrationStatus) MigrateModel {
	t.Helper()
	msg := migrationsLoadedMsg{}
	applied := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, s := range statuses {
		version := "2026010100000" + string(rune('0'+i))
		msg.migrations = append(msg.migrations, migration.Migration{Version: version, Name: "m" + string(rune('0'+i))})
		rec := migration.MigrationRecord{Version: version, Name: "m" + string(rune('0'+i)), Status: s}
		if s == migration.StatusApplied {
			rec.AppliedAt = &applied
		}
		msg.status = append(msg.status, rec)
	}

	m := NewMigrateModel(action, "postgres://unused", "migrations")
	model, _ := m.Update(msg)
	return model.(MigrateModel)
}

func versions(ms []migration.Migration) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Version
	}
	return out
}

func TestPlan_Up(t *testing.T) {
	m := loaded(t, ActionUp, migration.StatusApplied, migration.StatusFailed, migration.StatusPending, migration.StatusPending)

	assert.Nil(t, m.plan(0), "applied migration has nothing to run")
	assert.Equal(t, []string{"20260101000001", "20260101000002"}, versions(m.plan(2)))
	assert.Equal(t, []string{"20260101000001", "20260101000002", "20260101000003"}, versions(m.plan(3)))
}

func TestPlan_Down(t *testing.T) {
	m := loaded(t, ActionDown, migration.StatusApplied, migration.StatusApplied, migration.StatusApplied, migration.StatusPending)

	assert.Nil(t, m.plan(3), "pending migration cannot be rolled back")
	assert.Equal(t, []string{"20260101000002"}, versions(m.plan(2)))
	assert.Equal(t, []string{"20260101000002", "20260101000001", "20260101000000"}, versions(m.plan(0)))
}

func TestUpdate_LoadedFillsList(t *testing.T) {
	m := loaded(t, ActionUp, migration.StatusApplied, migration.StatusPending)

	assert.Equal(t, ModeList, m.mode)
	items := m.list.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "2026-01-02 03:04:05", items[0].(MigrationItem).AppliedAt)
	assert.Empty(t, items[1].(MigrationItem).AppliedAt)
}

func TestUpdate_ConfirmFlow(t *testing.T) {
	m := loaded(t, ActionUp, migration.StatusPending, migration.StatusPending)

	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(MigrateModel)
	require.Equal(t, ModeConfirm, m.mode)
	assert.Len(t, m.queue, 1)
	assert.Contains(t, m.confirmation.Message, "20260101000000 - m0")

	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = model.(MigrateModel)
	assert.Equal(t, ModeList, m.mode)

	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(MigrateModel)
	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	m = model.(MigrateModel)
	assert.Equal(t, ModeExecuting, m.mode)
	assert.NotNil(t, cmd)
	assert.Equal(t, 1, m.progress.Total)
}

func TestUpdate_ExecutionProgress(t *testing.T) {
	m := loaded(t, ActionUp, migration.StatusPending, migration.StatusPending)
	m.queue = m.migrations
	m.mode = ModeExecuting
	m.progress = NewProgressView(2, "")

	model, cmd := m.Update(migrationExecutedMsg{version: "20260101000000"})
	m = model.(MigrateModel)
	assert.Equal(t, ModeExecuting, m.mode)
	assert.NotNil(t, cmd)
	assert.Equal(t, 1, m.progress.Current)
	assert.Contains(t, m.progress.Message, "20260101000001")

	model, _ = m.Update(migrationExecutedMsg{version: "20260101000001"})
	m = model.(MigrateModel)
	assert.Equal(t, ModeComplete, m.mode)
	assert.Contains(t, m.View(), "Successfully executed 2 migration(s)")
}

func TestUpdate_ExecutionFailure(t *testing.T) {
	m := loaded(t, ActionDown, migration.StatusApplied)
	m.queue = m.migrations
	m.mode = ModeExecuting
	m.progress = NewProgressView(1, "")

	model, _ := m.Update(migrationExecutedMsg{version: "20260101000000", err: errors.New("boom")})
	m = model.(MigrateModel)
	assert.Equal(t, ModeError, m.mode)
	assert.EqualError(t, m.err, "boom")
	assert.Contains(t, m.View(), "Migration Failed")
}

func TestConfirmationDialog(t *testing.T) {
	d := NewConfirmationDialog("t", "m")
	assert.False(t, d.YesSelected)

	assert.Equal(t, Cancelled, d.Update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, Undecided, d.Update(tea.KeyMsg{Type: tea.KeyLeft}))
	assert.True(t, d.YesSelected)
	assert.Equal(t, Confirmed, d.Update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, Cancelled, d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")}))
}

func TestLogView(t *testing.T) {
	l := NewLogView(2)
	assert.Contains(t, l.View(), "No logs")
	l.AddLog("a")
	l.AddLog("b")
	l.AddLog("c")
	assert.Equal(t, []string{"b", "c"}, l.Logs)
}

func TestProgressView(t *testing.T) {
	p := NewProgressView(4, "working")
	p.Current = 1
	assert.InDelta(t, 0.25, p.Percent(), 1e-9)
	assert.Contains(t, p.View(), "1/4")
	assert.Zero(t, NewProgressView(0, "").Percent())
}
