package tui

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/export"
	"github.com/comigor/conner-go/internal/logger"
)

var helpLines = []string{
	"/new                  start a new conversation",
	"/clear                clear the chat without saving it again",
	"/sessions             list saved conversations",
	"/switch <n>           open conversation n from /sessions",
	"/rename <n> <title>   rename conversation n",
	"/delete <n>           delete conversation n",
	"/mode <personality>   supportive, reflective or logical",
	"/export json|txt [path]",
	"/summary              summarize this conversation",
	"/resume               reopen the last active chat",
	"/quit                 leave",
}

// runCommand executes a slash command typed into the input line.
func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit

	case "/help":
		m.info = append([]string{"Commands:"}, helpLines...)

	case "/new":
		if m.loading {
			m.notices.Info("Please wait for Conner to reply.")
			break
		}
		if err := m.ctrl.StartNewChat(); err != nil {
			m.notices.Error("We couldn't save your conversation. Please try again.")
			break
		}
		m.info = nil
		m.notices.Success("Started a new conversation.")

	case "/clear":
		if err := m.ctrl.ClearActiveChat(); err != nil {
			m.notices.Error("Couldn't clear the chat. Please try again.")
			break
		}
		m.info = nil

	case "/resume":
		if err := m.ctrl.Resume(); err != nil {
			m.notices.Error("Couldn't reopen your last chat.")
			break
		}
		if len(m.ctrl.Transcript()) == 0 {
			m.notices.Info("There is no chat to resume.")
		}

	case "/sessions":
		m = m.listSessions()

	case "/switch":
		sess, ok := m.pick(args)
		if !ok {
			break
		}
		if err := m.ctrl.SwitchToSession(sess.ID); err != nil {
			m.notices.Error("Couldn't open that conversation.")
			break
		}
		m.info = nil
		m.scroll = 0

	case "/rename":
		sess, ok := m.pick(args)
		if !ok {
			break
		}
		title := strings.TrimSpace(strings.Join(args[1:], " "))
		if title == "" {
			m.notices.Info("Usage: /rename <n> <title>")
			break
		}
		if err := m.registry.Rename(sess.ID, title); err != nil {
			m.notices.Error("Couldn't rename that conversation.")
			break
		}
		m.notices.Success("Renamed to " + title)
		m = m.listSessions()

	case "/delete":
		sess, ok := m.pick(args)
		if !ok {
			break
		}
		if err := m.ctrl.DeleteSession(sess.ID); err != nil {
			m.notices.Error("Couldn't delete that conversation.")
			break
		}
		m.notices.Success("Deleted " + sess.Title)
		m = m.listSessions()

	case "/mode":
		if len(args) != 1 {
			m.notices.Info("Usage: /mode supportive|reflective|logical")
			break
		}
		p, err := chat.ParsePersonality(strings.ToLower(args[0]))
		if err != nil {
			m.notices.Error("Unknown personality " + args[0])
			break
		}
		if _, err := m.store.SaveSettings(chat.SettingsPatch{AIPersonality: &p}); err != nil {
			m.notices.Error("Couldn't save your settings.")
			break
		}
		m.notices.Success("Conner will be " + string(p) + ".")

	case "/export":
		m.exportChat(args)

	case "/summary":
		return m, summaryCmd(m.ctrl)

	default:
		m.notices.Info("Unknown command " + name + ". Type /help for help.")
	}
	return m, nil
}

func (m Model) listSessions() Model {
	sessions, err := m.registry.Recent()
	if err != nil {
		m.notices.Error("Couldn't load your conversations.")
		return m
	}
	m.listed = sessions
	if len(sessions) == 0 {
		m.info = []string{"No saved conversations yet."}
		return m
	}
	current := m.ctrl.SessionID()
	m.info = []string{"Conversations:"}
	for i, s := range sessions {
		marker := " "
		if s.ID == current {
			marker = "*"
		}
		m.info = append(m.info, fmt.Sprintf("%s %2d. %s (%d messages, %s)",
			marker, i+1, s.Title, s.MessageCount, s.UpdatedAt.In(m.now().Location()).Format("Jan 2 15:04")))
	}
	return m
}

// pick resolves the 1-based index in args[0] against the last /sessions listing.
func (m Model) pick(args []string) (chat.Session, bool) {
	if len(args) == 0 {
		m.notices.Info("Pick a conversation number from /sessions.")
		return chat.Session{}, false
	}
	if len(m.listed) == 0 {
		if sessions, err := m.registry.Recent(); err == nil {
			m.listed = sessions
		}
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(m.listed) {
		m.notices.Info("No conversation numbered " + args[0] + ".")
		return chat.Session{}, false
	}
	return m.listed[n-1], true
}

func (m Model) exportChat(args []string) {
	format := export.FormatText
	if len(args) > 0 {
		f, err := export.ParseFormat(args[0])
		if err != nil {
			m.notices.Error("Export as json or txt.")
			return
		}
		format = f
	}
	now := m.now()
	path := export.Filename("chat", format, now)
	if len(args) > 1 {
		path = args[1]
	}

	acc, err := m.store.Account()
	if err != nil {
		m.notices.Error("Couldn't read your account for the export.")
		return
	}
	data, err := export.Render(format, acc, m.ctrl.Transcript(), now, now.Location())
	if err != nil {
		m.notices.Error("Couldn't export the chat.")
		return
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		logger.L.Error("export write failed", "path", path, "error", err)
		m.notices.Error("Couldn't write " + path + ".")
		return
	}
	m.notices.Success("Exported to " + path)
}
