package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/comigor/conner-go/internal/notify"
)

// Run starts the program on the alternate screen and blocks until it exits.
// Notice events are forwarded so the screen refreshes when they change.
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	unsubscribe := m.notices.Subscribe(func(ev notify.Event) {
		p.Send(NoticeMsg{Event: ev})
	})
	defer unsubscribe()

	_, err := p.Run()
	return err
}
