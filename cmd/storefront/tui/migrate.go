// Package tui is the interactive migration runner.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/marshallshelly/storefront/pkg/migration"
	"github.com/marshallshelly/storefront/pkg/runtime"
)

// Action is the direction the UI migrates in.
type Action string

const (
	ActionUp   Action = "up"
	ActionDown Action = "down"
)

// MigrateMode represents the current mode of the migration UI
type MigrateMode int

const (
	ModeLoading MigrateMode = iota
	ModeList
	ModeConfirm
	ModeExecuting
	ModeComplete
	ModeError
)

// MigrateModel is the Bubbletea model for interactive migrations.
// Selecting a migration runs every migration between the current state and
// the selection: pending ones oldest first for up, applied ones newest
// first for down.
type MigrateModel struct {
	mode          MigrateMode
	action        Action
	list          list.Model
	spinner       spinner.Model
	confirmation  ConfirmationDialog
	progress      ProgressView
	logs          LogView
	err           error
	width         int
	height        int
	dbURL         string
	migrationsDir string

	migrations []migration.Migration
	status     []migration.MigrationRecord
	db         *runtime.DB
	executor   *migration.Executor
	locked     bool
	queue      []migration.Migration
}

// NewMigrateModel creates a new migration UI model
func NewMigrateModel(action Action, dbURL, migrationsDir string) MigrateModel {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.Title = "Storefront Migrations (" + string(action) + ")"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = infoStyle

	return MigrateModel{
		mode:          ModeLoading,
		action:        action,
		list:          l,
		spinner:       s,
		logs:          NewLogView(10),
		dbURL:         dbURL,
		migrationsDir: migrationsDir,
	}
}

// Init initializes the model
func (m MigrateModel) Init() tea.Cmd {
	return tea.Batch(
		loadMigrationsCmd(m.dbURL, m.migrationsDir),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

// Messages
type migrationsLoadedMsg struct {
	migrations []migration.Migration
	status     []migration.MigrationRecord
	db         *runtime.DB
	executor   *migration.Executor
}

type lockedMsg struct{}

type migrationExecutedMsg struct {
	version string
	err     error
}

type errorMsg struct {
	err error
}

func loadMigrationsCmd(dbURL, migrationsDir string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		db, err := runtime.ConnectWithURL(ctx, dbURL)
		if err != nil {
			return errorMsg{err: fmt.Errorf("failed to connect to database: %w", err)}
		}

		executor := migration.NewExecutor(db.Pool())
		if err := executor.Initialize(ctx); err != nil {
			db.Close()
			return errorMsg{err: fmt.Errorf("failed to initialize migrations: %w", err)}
		}

		migrations, err := migration.NewGenerator(migrationsDir).LoadAll()
		if err != nil {
			db.Close()
			return errorMsg{err: fmt.Errorf("failed to load migrations: %w", err)}
		}

		status, err := executor.GetStatus(ctx, migrations)
		if err != nil {
			db.Close()
			return errorMsg{err: fmt.Errorf("failed to get migration status: %w", err)}
		}

		return migrationsLoadedMsg{migrations: migrations, status: status, db: db, executor: executor}
	}
}

func lockCmd(executor *migration.Executor) tea.Cmd {
	return func() tea.Msg {
		if err := executor.Lock(context.Background()); err != nil {
			return errorMsg{err: fmt.Errorf("failed to acquire lock: %w", err)}
		}
		return lockedMsg{}
	}
}

func executeMigrationCmd(executor *migration.Executor, mig migration.Migration, action Action) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		var err error
		if action == ActionUp {
			err = executor.Apply(ctx, mig, false)
		} else {
			err = executor.Rollback(ctx, mig, false)
		}
		return migrationExecutedMsg{version: mig.Version, err: err}
	}
}

// plan returns the migrations to run to reach the selected index, or nil
// when the selection is already in the requested state.
func (m MigrateModel) plan(selected int) []migration.Migration {
	var queue []migration.Migration
	switch m.action {
	case ActionUp:
		if m.status[selected].Status == migration.StatusApplied {
			return nil
		}
		for i := 0; i <= selected; i++ {
			if m.status[i].Status != migration.StatusApplied {
				queue = append(queue, m.migrations[i])
			}
		}
	case ActionDown:
		if m.status[selected].Status != migration.StatusApplied {
			return nil
		}
		for i := len(m.status) - 1; i >= selected; i-- {
			if m.status[i].Status == migration.StatusApplied {
				queue = append(queue, m.migrations[i])
			}
		}
	}
	return queue
}

func (m MigrateModel) shutdown() {
	if m.db == nil {
		return
	}
	if m.locked {
		_ = m.executor.Unlock(context.Background())
	}
	m.db.Close()
}

// Update handles messages
func (m MigrateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case spinner.TickMsg:
		if m.mode != ModeLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case migrationsLoadedMsg:
		m.mode = ModeList
		m.migrations = msg.migrations
		m.status = msg.status
		m.db = msg.db
		m.executor = msg.executor

		items := make([]list.Item, len(msg.status))
		for i, r := range msg.status {
			items[i] = newMigrationItem(r)
		}
		return m, m.list.SetItems(items)

	case lockedMsg:
		m.locked = true
		return m, executeMigrationCmd(m.executor, m.queue[0], m.action)

	case migrationExecutedMsg:
		if msg.err != nil {
			m.mode = ModeError
			m.err = msg.err
			m.logs.AddLog(errorStyle.Render("Failed: " + msg.version))
			return m, nil
		}

		m.logs.AddLog(successStyle.Render("✓ Completed: " + msg.version))
		m.progress.Current++
		if m.progress.Current >= m.progress.Total {
			m.mode = ModeComplete
			return m, nil
		}

		next := m.queue[m.progress.Current]
		m.progress.Message = fmt.Sprintf("Executing: %s - %s", next.Version, next.Name)
		return m, executeMigrationCmd(m.executor, next, m.action)

	case errorMsg:
		m.mode = ModeError
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeLoading:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}

		case ModeList:
			if m.list.FilterState() == list.Filtering {
				break
			}
			switch msg.String() {
			case "ctrl+c", "q":
				m.shutdown()
				return m, tea.Quit

			case "enter", " ":
				if len(m.status) == 0 {
					return m, nil
				}
				queue := m.plan(m.list.Index())
				if len(queue) == 0 {
					return m, nil
				}
				m.queue = queue

				names := make([]string, len(queue))
				for i, mig := range queue {
					names[i] = "  " + mig.Version + " - " + mig.Name
				}
				m.confirmation = NewConfirmationDialog(
					fmt.Sprintf("Confirm Migration %s", strings.ToUpper(string(m.action))),
					fmt.Sprintf("Run %s on %d migration(s)?\n%s", m.action, len(queue), strings.Join(names, "\n")),
				)
				m.mode = ModeConfirm
				return m, nil
			}

		case ModeConfirm:
			if msg.String() == "ctrl+c" {
				m.mode = ModeList
				return m, nil
			}
			switch m.confirmation.Update(msg) {
			case Confirmed:
				m.mode = ModeExecuting
				m.progress = NewProgressView(len(m.queue),
					fmt.Sprintf("Executing: %s - %s", m.queue[0].Version, m.queue[0].Name))
				return m, lockCmd(m.executor)
			case Cancelled:
				m.mode = ModeList
			}
			return m, nil

		case ModeComplete, ModeError:
			switch msg.String() {
			case "ctrl+c", "q", "enter":
				m.shutdown()
				return m, tea.Quit
			}
		}
	}

	if m.mode == ModeList {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m MigrateModel) centered(content string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

// View renders the UI
func (m MigrateModel) View() string {
	switch m.mode {
	case ModeLoading:
		return m.centered(m.spinner.View() + " Loading migrations...")

	case ModeList:
		help := helpStyle.Render(
			FormatKey("↑/↓", "navigate") + " • " +
				FormatKey("enter", "migrate "+string(m.action)+" to here") + " • " +
				FormatKey("q", "quit"),
		)
		return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), help)

	case ModeConfirm:
		return m.centered(m.confirmation.View())

	case ModeExecuting:
		return m.centered(lipgloss.JoinVertical(lipgloss.Left, m.progress.View(), "\n", m.logs.View()))

	case ModeComplete:
		msg := titleStyle.Render("Migration Complete!") + "\n\n" +
			successStyle.Render(fmt.Sprintf("Successfully executed %d migration(s)", m.progress.Total)) + "\n\n" +
			helpStyle.Render(FormatKey("enter/q", "exit"))
		return m.centered(boxStyle.Render(msg))

	case ModeError:
		msg := titleStyle.Render("Migration Failed") + "\n\n" +
			errorStyle.Render(m.err.Error()) + "\n\n" +
			m.logs.View() + "\n" +
			helpStyle.Render(FormatKey("enter/q", "exit"))
		return m.centered(boxStyle.Render(msg))
	}

	return "Unknown mode"
}

// RunMigrateUI starts the interactive migration UI. Progress is shown in
// the UI itself, so the executor logs nothing.
func RunMigrateUI(action Action, dbURL, migrationsDir string) error {
	p := tea.NewProgram(NewMigrateModel(action, dbURL, migrationsDir))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(MigrateModel); ok && fm.mode == ModeError {
		return fm.err
	}
	return nil
}
