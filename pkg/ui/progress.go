package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// ProgressEventMsg updates the progress display. Sent by the engine's
// progress callback via Program.Send.
type ProgressEventMsg struct {
	Stage   string
	Current int
	Total   int
	Detail  string
}

// ProgressDoneMsg ends the progress display
type ProgressDoneMsg struct {
	Err error
}

var stageLabels = map[string]string{
	"validate": "Validating connection",
	"refresh":  "Refreshing catalog",
	"dedup":    "Checking duplicates",
	"upload":   "Uploading",
}

// SyncProgressModel is a bubbletea model rendering pipeline progress as
// a single bar with a stage label
type SyncProgressModel struct {
	bar        progress.Model
	stage      string
	current    int
	total      int
	detail     string
	cancel     func()
	cancelling bool
	done       bool

	// Err carries the run's terminal error out of the program
	Err error
}

// NewSyncProgress creates the model. cancel is invoked once when the
// user interrupts; the engine then stops at the next record boundary.
func NewSyncProgress(cancel func()) SyncProgressModel {
	return SyncProgressModel{
		bar:    progress.New(progress.WithDefaultGradient()),
		cancel: cancel,
	}
}

func (m SyncProgressModel) Init() tea.Cmd {
	return nil
}

func (m SyncProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.cancelling && m.cancel != nil {
				m.cancel()
			}
			m.cancelling = true
		}
		return m, nil

	case ProgressEventMsg:
		m.stage = msg.Stage
		m.current = msg.Current
		m.total = msg.Total
		m.detail = msg.Detail
		return m, nil

	case ProgressDoneMsg:
		m.Err = msg.Err
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m SyncProgressModel) View() string {
	if m.done {
		return ""
	}

	label := stageLabels[m.stage]
	if label == "" {
		label = "Working"
	}

	pct := 0.0
	if m.total > 0 {
		pct = float64(m.current) / float64(m.total)
	}

	view := fmt.Sprintf("%s  %s %d/%d",
		StyleInfo.Render(label), m.bar.ViewAs(pct), m.current, m.total)
	if m.detail != "" {
		view += "  " + StyleMuted.Render(m.detail)
	}
	if m.cancelling {
		view += "\n" + FormatWarning("Cancelling, finishing current asset...")
	}
	return view + "\n"
}
