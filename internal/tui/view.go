package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/comigor/conner-go/internal/chat"
)

// View renders the header, transcript, info panel, notices and input line.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Initializing..."
	}

	divider := DividerStyle.Render(strings.Repeat("─", m.width))
	header := m.renderHeader()
	footer := m.renderFooter()
	notices := m.renderNotices()
	info := m.renderInfo()

	used := 4 + len(notices) + len(info) // header, two dividers, input
	body := m.renderTranscript(max(1, m.height-used-1))

	sections := []string{header, divider}
	sections = append(sections, body...)
	sections = append(sections, info...)
	sections = append(sections, divider)
	sections = append(sections, notices...)
	sections = append(sections, m.renderInput(), footer)
	return strings.Join(sections, "\n")
}

func (m Model) contentWidth() int {
	if m.width <= 4 {
		return 76
	}
	return m.width - 2
}

func (m Model) renderHeader() string {
	title := TitleStyle.Render("Conner")
	status := "New conversation"
	if id := m.ctrl.SessionID(); id != "" {
		if sess, err := m.registry.Get(id); err == nil && sess != nil {
			status = sess.Title
		}
	}
	settings, _ := m.store.Settings()
	parts := []string{status, string(settings.AIPersonality)}
	if m.loading {
		parts = append(parts, "Conner is thinking...")
	}
	return title + "  " + StatusStyle.Render(strings.Join(parts, " · "))
}

func (m Model) transcriptLines() []string {
	msgs := m.ctrl.Transcript()
	if m.loading && m.pending != "" && len(msgs) == m.sentAt {
		msgs = append(msgs, chat.Message{Role: chat.RoleUser, Content: m.pending, Timestamp: m.now()})
	}
	if len(msgs) == 0 {
		return []string{StatusStyle.Render("How are you feeling today? Type a message, or /help for commands.")}
	}

	width := m.contentWidth()
	var lines []string
	for _, msg := range msgs {
		label := AssistantLabelStyle.Render("Conner")
		if msg.Role == chat.RoleUser {
			label = UserLabelStyle.Render("You")
		}
		ts := TimestampStyle.Render(msg.Timestamp.In(m.now().Location()).Format("15:04"))
		lines = append(lines, label+" "+ts)
		for _, l := range wrap(msg.Content, width) {
			if msg.IsError {
				l = ErrorTextStyle.Render(l)
			}
			lines = append(lines, "  "+l)
		}
		lines = append(lines, "")
	}
	return lines
}

// renderTranscript returns the last height lines, shifted up by the scroll offset.
func (m Model) renderTranscript(height int) []string {
	lines := m.transcriptLines()
	end := len(lines) - m.scroll
	if end < height {
		end = min(height, len(lines))
	}
	start := max(0, end-height)
	out := append([]string(nil), lines[start:end]...)
	for len(out) < height {
		out = append(out, "")
	}
	return out
}

func (m Model) renderInfo() []string {
	if len(m.info) == 0 {
		return nil
	}
	out := make([]string, 0, len(m.info))
	for _, l := range m.info {
		out = append(out, InfoStyle.Render(l))
	}
	return out
}

func (m Model) renderNotices() []string {
	var out []string
	for _, n := range m.notices.Active() {
		style, ok := NoticeStyles[n.Kind]
		if !ok {
			style = lipgloss.NewStyle()
		}
		out = append(out, style.Render(n.Message))
	}
	return out
}

func (m Model) renderInput() string {
	prompt := PromptStyle.Render("> ")
	if m.loading {
		return prompt + StatusStyle.Render(string(m.input)) + "▏"
	}
	return prompt + string(m.input) + "▏"
}

func (m Model) renderFooter() string {
	return FooterStyle.Render("enter send · ctrl+n new chat · ↑/↓ scroll · /help · esc quit")
}

// wrap splits text into lines no wider than width runes, breaking on spaces.
func wrap(text string, width int) []string {
	if width <= 0 {
		width = 76
	}
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := ""
		for _, w := range words {
			switch {
			case line == "":
				line = w
			case lipgloss.Width(line)+1+lipgloss.Width(w) <= width:
				line += " " + w
			default:
				out = append(out, line)
				line = w
			}
		}
		out = append(out, line)
	}
	return out
}
