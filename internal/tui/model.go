package tui

import (
	"fmt"
	"strings"

	"ratepace/internal/runner"
	"ratepace/internal/tui/components"
	"ratepace/internal/tui/styles"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const sparklineWidth = 40

// SnapshotMsg carries a dispatcher snapshot into the program.
type SnapshotMsg runner.Snapshot

// DoneMsg is sent once the dispatcher returned.
type DoneMsg struct {
	Outcome runner.Outcome
}

// Stopper interrupts the run behind the view.
type Stopper interface {
	Stop()
}

// Model is the live view of a single run. It never quits on its own key
// press: q and ctrl+c ask the dispatcher to stop, and the program quits once
// the dispatcher reports it is done.
type Model struct {
	TargetURL         string
	RequestsPerSecond int

	Snapshot runner.Snapshot
	Progress progress.Model
	SentLine components.Sparkline

	Updates runner.SnapshotChan
	stopper Stopper

	lastSent uint64
	Stopping bool
	Done     bool
	Outcome  runner.Outcome

	Width  int
	Height int
}

func NewModel(targetURL string, total, rps int, updates runner.SnapshotChan, stopper Stopper) Model {
	return Model{
		TargetURL:         targetURL,
		RequestsPerSecond: rps,
		Snapshot:          runner.Snapshot{State: runner.StateRunning, Total: total},
		Progress:          progress.New(progress.WithDefaultGradient()),
		SentLine:          components.NewSparkline(sparklineWidth, "Completed per update", styles.Active),
		Updates:           updates,
		stopper:           stopper,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.Updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.Stopping && !m.Done {
				m.Stopping = true
				if m.stopper != nil {
					m.stopper.Stop()
				}
			}
		}
		return m, nil

	case SnapshotMsg:
		snapshot := runner.Snapshot(msg)
		if snapshot.Sent >= m.lastSent {
			m.SentLine.Add(snapshot.Sent - m.lastSent)
		}
		m.lastSent = snapshot.Sent
		m.Snapshot = snapshot

		cmd := m.Progress.SetPercent(completion(snapshot))
		return m, tea.Batch(cmd, waitForUpdate(m.Updates))

	case DoneMsg:
		m.Done = true
		m.Outcome = msg.Outcome
		return m, tea.Quit

	case progress.FrameMsg:
		progressModel, cmd := m.Progress.Update(msg)
		m.Progress = progressModel.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.Done {
		return fmt.Sprintf("Run %s.\n", m.Outcome)
	}

	s := strings.Builder{}

	s.WriteString(styles.Title.Render("ratepace"))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("URL: %s\n", m.TargetURL))
	s.WriteString(fmt.Sprintf("Total: %d | Per second: %d\n", m.Snapshot.Total, m.RequestsPerSecond))
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("State: %s (Elapsed: %d ms)",
		m.Snapshot.State,
		m.Snapshot.Elapsed.Milliseconds())))
	s.WriteString("\n\n")

	errRate := errorRate(m.Snapshot)
	leftCol := fmt.Sprintf(
		"Dispatched: %d\nCompleted:  %d\nInflight:   %d\nErrors:     %s",
		m.Snapshot.Dispatched,
		m.Snapshot.Sent,
		m.Snapshot.Inflight,
		styles.ErrorRateStyle(errRate).Render(fmt.Sprintf("%d (%.2f%%)", m.Snapshot.Errors, errRate)),
	)

	latency := m.Snapshot.Latency
	rightCol := fmt.Sprintf(
		"Latency\n  P50: %.1f ms\n  P90: %.1f ms\n  P99: %.1f ms\n  Max: %.1f ms",
		latency.P50, latency.P90, latency.P99, latency.Max,
	)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Width(30).Render(leftCol),
		styles.Box.Width(30).Render(rightCol),
	))
	s.WriteString("\n")
	s.WriteString(m.SentLine.View())
	s.WriteString("\n\n")
	s.WriteString(m.Progress.View())
	s.WriteString("\n")

	if m.Stopping {
		s.WriteString(styles.Warn.Render("Stopping..."))
	} else {
		s.WriteString(styles.Subtle.Render("Press q to stop"))
	}

	return s.String()
}

func completion(s runner.Snapshot) float64 {
	if s.Total <= 0 {
		return 0
	}
	pct := float64(s.Sent) / float64(s.Total)
	if pct > 1.0 {
		pct = 1.0
	}
	return pct
}

func errorRate(s runner.Snapshot) float64 {
	if s.Sent == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Sent) * 100
}

func waitForUpdate(updates runner.SnapshotChan) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		return SnapshotMsg(<-updates)
	}
}
