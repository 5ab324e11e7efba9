// Package tui is the terminal chat client.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/conversation"
	"github.com/comigor/conner-go/internal/notify"
	"github.com/comigor/conner-go/internal/session"
	"github.com/comigor/conner-go/internal/store"
)

// Model is the root bubbletea model for the chat TUI.
type Model struct {
	ctrl     *conversation.Controller
	registry *session.Registry
	store    *store.Store
	notices  *notify.Center

	// Input
	input   []rune
	loading bool
	pending string // user text shown until the controller records it
	sentAt  int    // transcript length when pending was sent

	// Panel below the transcript for /sessions, /help and /summary output.
	info     []string
	listed   []chat.Session
	scroll   int
	width    int
	height   int
	quitting bool

	now func() time.Time
}

// New creates a Model over the given components.
func New(ctrl *conversation.Controller, reg *session.Registry, st *store.Store, notices *notify.Center) Model {
	return Model{
		ctrl:     ctrl,
		registry: reg,
		store:    st,
		notices:  notices,
		now:      time.Now,
	}
}

// Init has nothing to start; the controller is ready.
func (m Model) Init() tea.Cmd {
	return nil
}

func sendCmd(ctrl *conversation.Controller, text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := ctrl.Send(context.Background(), text)
		return ReplyMsg{Reply: reply, Err: err}
	}
}

func summaryCmd(ctrl *conversation.Controller) tea.Cmd {
	return func() tea.Msg {
		s, err := ctrl.Summarize(context.Background())
		return SummaryMsg{Summary: s, Err: err}
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ReplyMsg:
		m.loading = false
		m.pending = ""
		m.scroll = 0
		if msg.Err != nil {
			m.notices.Error("We couldn't save this conversation. Export it to keep a copy.")
		}
		return m, nil

	case SummaryMsg:
		if msg.Err != nil {
			m.notices.Error(summaryError(msg.Err))
			return m, nil
		}
		m.info = append([]string{"Summary:"}, wrap(msg.Summary, m.contentWidth())...)
		return m, nil

	case NoticeMsg:
		// Notices are read from the center on render.
		return m, nil
	}

	return m, nil
}

func summaryError(err error) string {
	switch {
	case errors.Is(err, conversation.ErrNothingToSummarize):
		return "There is nothing to summarize yet."
	case errors.Is(err, conversation.ErrSummaryUnsupported):
		return "Summaries are not available with this assistant."
	}
	return "Couldn't summarize right now. Please try again."
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		if len(msg.Runes) == 0 {
			m.input = append(m.input, ' ')
		} else {
			m.input = append(m.input, msg.Runes...)
		}
		return m, nil
	}

	switch msg.String() {
	case KeyCtrlC, KeyEsc:
		m.quitting = true
		return m, tea.Quit

	case KeyEnter:
		text := strings.TrimSpace(string(m.input))
		m.input = m.input[:0]
		if text == "" {
			return m, nil
		}
		if strings.HasPrefix(text, "/") {
			return m.runCommand(text)
		}
		return m.send(text)

	case KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil

	case KeyCtrlU:
		m.input = m.input[:0]
		return m, nil

	case KeyCtrlN:
		return m.runCommand("/new")

	case KeyUp, KeyPgUp:
		m.scroll++
		return m, nil

	case KeyDown, KeyPgDown:
		if m.scroll > 0 {
			m.scroll--
		}
		return m, nil
	}
	return m, nil
}

// send honours the loading flag: one request per transcript at a time.
func (m Model) send(text string) (tea.Model, tea.Cmd) {
	if m.loading {
		m.notices.Info("Please wait for Conner to reply.")
		m.input = []rune(text)
		return m, nil
	}
	m.loading = true
	m.pending = text
	m.sentAt = len(m.ctrl.Transcript())
	m.info = nil
	m.scroll = 0
	return m, sendCmd(m.ctrl, text)
}
