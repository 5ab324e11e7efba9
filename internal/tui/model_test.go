package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/conversation"
	"github.com/comigor/conner-go/internal/gateway"
	"github.com/comigor/conner-go/internal/notify"
	"github.com/comigor/conner-go/internal/session"
	"github.com/comigor/conner-go/internal/store"
)

type echoGateway struct{}

func (echoGateway) Send(_ context.Context, message string, _ []chat.Message, _ chat.Personality) (gateway.Reply, error) {
	return gateway.Reply{Message: "I hear you: " + message}, nil
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	st := store.New(store.NewMemory())
	reg := session.NewRegistry(st)
	ctrl := conversation.New(reg, st, echoGateway{})
	center := notify.NewCenter()
	t.Cleanup(center.Close)
	m := New(ctrl, reg, st, center)
	m.width = 80
	m.height = 24
	return m
}

func typeText(m Model, text string) Model {
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return updated.(Model)
}

func press(m Model, key tea.KeyType) (Model, tea.Cmd) {
	updated, cmd := m.Update(tea.KeyMsg{Type: key})
	return updated.(Model), cmd
}

func submit(m Model, text string) (Model, tea.Cmd) {
	return press(typeText(m, text), tea.KeyEnter)
}

func lastNotice(m Model) string {
	active := m.notices.Active()
	if len(active) == 0 {
		return ""
	}
	return active[len(active)-1].Message
}

func TestViewBeforeResize(t *testing.T) {
	m := newTestModel(t)
	m.width = 0
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View() = %q", got)
	}
}

func TestSendMessage(t *testing.T) {
	m := newTestModel(t)

	m, cmd := submit(m, "I feel anxious")
	if cmd == nil {
		t.Fatal("expected a send command")
	}
	if !m.loading {
		t.Error("should be loading while the reply is outstanding")
	}
	if len(m.input) != 0 {
		t.Errorf("input should be cleared, got %q", string(m.input))
	}
	if !strings.Contains(m.View(), "I feel anxious") {
		t.Error("pending message should be visible")
	}

	msg := cmd()
	reply, ok := msg.(ReplyMsg)
	if !ok {
		t.Fatalf("cmd returned %T, want ReplyMsg", msg)
	}
	updated, _ := m.Update(reply)
	m = updated.(Model)

	if m.loading {
		t.Error("should not be loading after the reply")
	}
	transcript := m.ctrl.Transcript()
	if len(transcript) != 2 {
		t.Fatalf("transcript = %d messages, want 2", len(transcript))
	}
	view := m.View()
	if !strings.Contains(view, "I hear you: I feel anxious") {
		t.Error("reply should be rendered")
	}
	if !strings.Contains(view, "I feel anxious") {
		t.Error("session title should be in the header")
	}
}

func TestSendWhileLoadingIsRefused(t *testing.T) {
	m := newTestModel(t)
	m, _ = submit(m, "first")
	m, cmd := submit(m, "second")

	if cmd != nil {
		t.Error("second send should not start a request")
	}
	if string(m.input) != "second" {
		t.Errorf("input = %q, want the text kept for retry", string(m.input))
	}
	if !strings.Contains(lastNotice(m), "wait") {
		t.Errorf("notice = %q", lastNotice(m))
	}
}

func TestBackspaceAndClearLine(t *testing.T) {
	m := typeText(newTestModel(t), "helo")
	m, _ = press(m, tea.KeyBackspace)
	if string(m.input) != "hel" {
		t.Errorf("input = %q", string(m.input))
	}
	m, _ = press(m, tea.KeyCtrlU)
	if len(m.input) != 0 {
		t.Errorf("input = %q, want empty", string(m.input))
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t)
	m, cmd := press(m, tea.KeyEsc)
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("esc should quit")
	}
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func seedSessions(t *testing.T, m Model) {
	t.Helper()
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, text := range []string{"first talk", "second talk"} {
		_, err := m.registry.Save(chat.Session{Messages: []chat.Message{chat.NewUserMessage(text, base.Add(time.Duration(i)*time.Hour))}, Title: text})
		if err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSessionCommands(t *testing.T) {
	m := newTestModel(t)
	seedSessions(t, m)

	m, _ = submit(m, "/sessions")
	if len(m.listed) != 2 {
		t.Fatalf("listed = %d, want 2", len(m.listed))
	}
	if m.listed[0].Title != "second talk" {
		t.Errorf("most recent first, got %q", m.listed[0].Title)
	}

	m, _ = submit(m, "/switch 2")
	if got := m.ctrl.Transcript(); len(got) != 1 || got[0].Content != "first talk" {
		t.Errorf("switch loaded %+v", got)
	}

	m, _ = submit(m, "/rename 2 Morning check-in")
	sess, _ := m.registry.Get(m.ctrl.SessionID())
	if sess == nil || sess.Title != "Morning check-in" {
		t.Errorf("rename failed: %+v", sess)
	}

	m, _ = submit(m, "/switch 9")
	if !strings.Contains(lastNotice(m), "No conversation numbered 9") {
		t.Errorf("notice = %q", lastNotice(m))
	}

	id := m.ctrl.SessionID()
	for i, s := range m.listed {
		if s.ID == id {
			m, _ = submit(m, "/delete "+string(rune('1'+i)))
		}
	}
	if m.ctrl.SessionID() != "" {
		t.Error("deleting the open conversation should clear the chat")
	}
	remaining, _ := m.registry.List()
	if len(remaining) != 1 {
		t.Errorf("remaining = %d, want 1", len(remaining))
	}
}

func TestNewChatCommand(t *testing.T) {
	m := newTestModel(t)
	if err := m.ctrl.AppendMessage(chat.NewUserMessage("hello", time.Now())); err != nil {
		t.Fatal(err)
	}
	m, _ = submit(m, "/new")
	if len(m.ctrl.Transcript()) != 0 {
		t.Error("transcript should be empty after /new")
	}
	sessions, _ := m.registry.List()
	if len(sessions) != 1 {
		t.Errorf("sessions = %d, want 1", len(sessions))
	}
}

func TestModeCommand(t *testing.T) {
	m := newTestModel(t)
	m, _ = submit(m, "/mode Logical")
	settings, _ := m.store.Settings()
	if settings.AIPersonality != chat.PersonalityLogical {
		t.Errorf("personality = %q", settings.AIPersonality)
	}
	m, _ = submit(m, "/mode grumpy")
	if !strings.Contains(lastNotice(m), "Unknown personality") {
		t.Errorf("notice = %q", lastNotice(m))
	}
}

func TestExportCommand(t *testing.T) {
	m := newTestModel(t)
	if err := m.ctrl.AppendMessage(chat.NewUserMessage("write this down", time.Now())); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "chat.json")
	m, _ = submit(m, "/export json "+path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("export not written: %v", err)
	}
	if !strings.Contains(string(data), `"chatHistory"`) || !strings.Contains(string(data), "write this down") {
		t.Errorf("unexpected export: %s", data)
	}
	if !strings.Contains(lastNotice(m), "Exported") {
		t.Errorf("notice = %q", lastNotice(m))
	}
}

func TestSummaryWithoutSupport(t *testing.T) {
	m := newTestModel(t)
	_ = m.ctrl.AppendMessage(chat.NewUserMessage("hi", time.Now()))
	m, cmd := submit(m, "/summary")
	if cmd == nil {
		t.Fatal("expected summary command")
	}
	updated, _ := m.Update(cmd())
	m = updated.(Model)
	if !strings.Contains(lastNotice(m), "not available") {
		t.Errorf("notice = %q", lastNotice(m))
	}
}

func TestHelpAndUnknownCommand(t *testing.T) {
	m := newTestModel(t)
	m, _ = submit(m, "/help")
	if len(m.info) != len(helpLines)+1 {
		t.Errorf("help lines = %d", len(m.info))
	}
	m, _ = submit(m, "/dance")
	if !strings.Contains(lastNotice(m), "Unknown command /dance") {
		t.Errorf("notice = %q", lastNotice(m))
	}
}

func TestWrap(t *testing.T) {
	got := wrap("one two three four", 9)
	want := []string{"one two", "three", "four"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("wrap = %q, want %q", got, want)
	}
	if got := wrap("a\n\nb", 10); len(got) != 3 {
		t.Errorf("paragraphs = %q", got)
	}
}
