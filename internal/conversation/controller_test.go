package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/gateway"
	"github.com/comigor/conner-go/internal/session"
	"github.com/comigor/conner-go/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// flakyBackend fails writes to the keys in failPut while it is armed.
type flakyBackend struct {
	*store.Memory
	mu      sync.Mutex
	failPut map[string]bool
	onRead  map[string]func()
}

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{Memory: store.NewMemory(), failPut: map[string]bool{}}
}

func (b *flakyBackend) failWrites(keys ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failPut = map[string]bool{}
	for _, k := range keys {
		b.failPut[k] = true
	}
}

// onNextRead runs fn once, the next time key is read.
func (b *flakyBackend) onNextRead(key string, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.onRead == nil {
		b.onRead = map[string]func(){}
	}
	b.onRead[key] = fn
}

func (b *flakyBackend) Get(key string) ([]byte, bool, error) {
	b.mu.Lock()
	fn := b.onRead[key]
	delete(b.onRead, key)
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
	return b.Memory.Get(key)
}

func (b *flakyBackend) Put(key string, value []byte) error {
	b.mu.Lock()
	fail := b.failPut[key]
	b.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return b.Memory.Put(key, value)
}

type fakeGateway struct {
	mu      sync.Mutex
	sendFn  func(ctx context.Context, message string, window []chat.Message, p chat.Personality) (gateway.Reply, error)
	windows [][]chat.Message
	persona []chat.Personality
}

func (g *fakeGateway) Send(ctx context.Context, message string, window []chat.Message, p chat.Personality) (gateway.Reply, error) {
	g.mu.Lock()
	g.windows = append(g.windows, window)
	g.persona = append(g.persona, p)
	fn := g.sendFn
	g.mu.Unlock()
	if fn != nil {
		return fn(ctx, message, window, p)
	}
	return gateway.Reply{Message: "echo: " + message}, nil
}

// blockingGateway holds each request until release is closed.
type blockingGateway struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingGateway() *blockingGateway {
	return &blockingGateway{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *blockingGateway) Send(ctx context.Context, message string, _ []chat.Message, _ chat.Personality) (gateway.Reply, error) {
	g.started <- struct{}{}
	<-g.release
	return gateway.Reply{Message: "late reply to " + message}, nil
}

type summarizingGateway struct {
	fakeGateway
	got []chat.Message
}

func (g *summarizingGateway) Summarize(_ context.Context, msgs []chat.Message) (string, error) {
	g.got = msgs
	return "a short summary", nil
}

type harness struct {
	backend *flakyBackend
	store   *store.Store
	reg     *session.Registry
	clock   *fakeClock
}

func newHarness() *harness {
	b := newFlakyBackend()
	st := store.New(b)
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	n := 0
	reg := session.NewRegistry(st,
		session.WithClock(clock.Now),
		session.WithIDGenerator(func() string { n++; return fmt.Sprintf("s%d", n) }),
	)
	return &harness{backend: b, store: st, reg: reg, clock: clock}
}

func (h *harness) controller(gw gateway.Client) *Controller {
	return New(h.reg, h.store, gw, WithClock(h.clock.Now))
}

func (h *harness) sessions(t *testing.T) []chat.Session {
	t.Helper()
	sessions, err := h.reg.List()
	require.NoError(t, err)
	return sessions
}

var t1 = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func TestNewControllerStartsUnboundAndEmpty(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.store.SaveChatHistory([]chat.Message{chat.NewUserMessage("old", t1)}))
	require.NoError(t, h.store.SetCurrentSession("s-old"))

	c := h.controller(&fakeGateway{})
	require.Empty(t, c.Transcript())
	require.False(t, c.Bound())
	require.Equal(t, StateUnbound, c.State())
	require.Equal(t, "", c.SessionID())
}

func TestWriteThroughCreatesAndUpdatesSession(t *testing.T) {
	h := newHarness()
	c := h.controller(&fakeGateway{})

	require.NoError(t, c.AppendMessage(chat.NewUserMessage("I have been feeling overwhelmed lately at work", t1)))
	require.True(t, c.Bound())
	require.Equal(t, "s1", c.SessionID())

	sessions := h.sessions(t)
	require.Len(t, sessions, 1)
	require.Equal(t, "I have been feeling overwhelme", sessions[0].Title)
	require.Equal(t, 1, sessions[0].MessageCount)

	require.NoError(t, h.reg.Rename("s1", "Work stress"))
	require.NoError(t, c.AppendMessage(chat.NewAssistantMessage("That sounds heavy.", t1.Add(time.Second))))

	sessions = h.sessions(t)
	require.Len(t, sessions, 1)
	require.Equal(t, "Work stress", sessions[0].Title, "title survives updates")
	require.Equal(t, 2, sessions[0].MessageCount)
	require.False(t, sessions[0].UpdatedAt.Before(sessions[0].CreatedAt))

	pointer, err := h.store.CurrentSession()
	require.NoError(t, err)
	require.Equal(t, "s1", pointer)
	history, err := h.store.ChatHistory()
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestReloadBindsToSameSession(t *testing.T) {
	h := newHarness()
	first := h.controller(&fakeGateway{})
	require.NoError(t, first.AppendMessage(chat.NewUserMessage("hi", t1)))
	require.Equal(t, "s1", first.SessionID())

	// A fresh load that re-supplies the identical transcript.
	second := h.controller(&fakeGateway{})
	require.NoError(t, second.Resume())
	require.Equal(t, "s1", second.SessionID())
	require.Len(t, h.sessions(t), 1)
}

func TestReloadWithoutPointerMatchesByContent(t *testing.T) {
	h := newHarness()
	first := h.controller(&fakeGateway{})
	require.NoError(t, first.AppendMessage(chat.NewUserMessage("hi", t1)))
	require.NoError(t, first.AppendMessage(chat.NewAssistantMessage("hello", t1.Add(time.Second))))
	require.NoError(t, h.store.SetCurrentSession(""))

	second := h.controller(&fakeGateway{})
	require.NoError(t, second.Resume())
	require.Equal(t, "s1", second.SessionID())
	require.Len(t, second.Transcript(), 2)
	require.Len(t, h.sessions(t), 1)

	// Same instants written in another zone are still the same messages.
	zone := time.FixedZone("X", 3600)
	require.NoError(t, h.store.SaveChatHistory([]chat.Message{
		{Role: chat.RoleUser, Content: "hi", Timestamp: t1.In(zone)},
		{Role: chat.RoleAssistant, Content: "hello", Timestamp: t1.Add(time.Second).In(zone)},
	}))
	require.NoError(t, h.store.SetCurrentSession(""))
	third := h.controller(&fakeGateway{})
	require.NoError(t, third.Resume())
	require.Equal(t, "s1", third.SessionID())
	require.Len(t, h.sessions(t), 1)
}

func TestResumeWithTrimmedHistoryRebindsFullSession(t *testing.T) {
	h := newHarness()
	limit := 2
	_, err := h.store.SaveSettings(chat.SettingsPatch{MessageLimit: &limit})
	require.NoError(t, err)

	c := h.controller(&fakeGateway{})
	for i := 0; i < 3; i++ {
		require.NoError(t, c.AppendMessage(chat.NewUserMessage(fmt.Sprintf("m%d", i), t1.Add(time.Duration(i)*time.Second))))
	}
	history, err := h.store.ChatHistory()
	require.NoError(t, err)
	require.Len(t, history, 2, "chat history is capped by the message limit")

	again := h.controller(&fakeGateway{})
	require.NoError(t, again.Resume())
	require.Equal(t, "s1", again.SessionID())
	require.Len(t, again.Transcript(), 3)
	require.Len(t, h.sessions(t), 1)
}

func TestResumeNothingPersisted(t *testing.T) {
	h := newHarness()
	c := h.controller(&fakeGateway{})
	require.NoError(t, c.Resume())
	require.False(t, c.Bound())
	require.Empty(t, h.sessions(t))
}

func TestStartNewChatArchivesUnboundTranscript(t *testing.T) {
	h := newHarness()
	c := h.controller(&fakeGateway{})

	h.backend.failWrites(store.KeyConversationSessions)
	err := c.AppendMessage(chat.NewUserMessage("first", t1))
	require.Error(t, err)
	var serr *store.Error
	require.ErrorAs(t, err, &serr)
	require.Equal(t, store.KeyConversationSessions, serr.Key)
	_ = c.AppendMessage(chat.NewAssistantMessage("second", t1.Add(time.Second)))
	require.Len(t, c.Transcript(), 2, "the in-memory transcript stays authoritative")
	require.False(t, c.Bound())

	h.backend.failWrites()
	require.NoError(t, c.StartNewChat())
	sessions := h.sessions(t)
	require.Len(t, sessions, 1)
	require.Equal(t, "first", sessions[0].Title)
	require.Len(t, sessions[0].Messages, 2)
	require.Empty(t, c.Transcript())
	require.False(t, c.Bound())

	require.NoError(t, c.StartNewChat())
	require.Len(t, h.sessions(t), 1, "an empty transcript is never archived")
}

func TestStartNewChatArchivalFailureIsNoop(t *testing.T) {
	h := newHarness()
	c := h.controller(&fakeGateway{})
	h.backend.failWrites(store.KeyConversationSessions)
	_ = c.AppendMessage(chat.NewUserMessage("keep me", t1))

	require.Error(t, c.StartNewChat())
	require.Len(t, c.Transcript(), 1)
}

func TestStartNewChatOnBoundDoesNotDuplicate(t *testing.T) {
	h := newHarness()
	c := h.controller(&fakeGateway{})
	require.NoError(t, c.AppendMessage(chat.NewUserMessage("hello", t1)))
	require.NoError(t, c.AppendMessage(chat.NewAssistantMessage("hi there", t1.Add(time.Second))))
	require.True(t, c.Bound())

	require.NoError(t, c.StartNewChat())
	require.Len(t, h.sessions(t), 1)
	require.Empty(t, c.Transcript())
	require.False(t, c.Bound())

	pointer, err := h.store.CurrentSession()
	require.NoError(t, err)
	require.Empty(t, pointer)
	history, err := h.store.ChatHistory()
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestSwitchToSession(t *testing.T) {
	h := newHarness()
	idA, err := h.reg.Save(chat.Session{Title: "A", Messages: []chat.Message{chat.NewUserMessage("a", t1)}})
	require.NoError(t, err)
	idB, err := h.reg.Save(chat.Session{Title: "B", Messages: []chat.Message{
		chat.NewUserMessage("b1", t1), chat.NewAssistantMessage("b2", t1.Add(time.Second)),
	}})
	require.NoError(t, err)

	c := h.controller(&fakeGateway{})
	require.NoError(t, c.SwitchToSession(idA))
	require.Equal(t, idA, c.SessionID())
	require.Equal(t, "a", c.Transcript()[0].Content)

	require.NoError(t, c.SwitchToSession(idB))
	require.Equal(t, idB, c.SessionID())
	require.Len(t, c.Transcript(), 2)

	gen := c.generation
	require.NoError(t, c.SwitchToSession(idB))
	require.Equal(t, gen, c.generation, "switching to the current session is a no-op")

	require.ErrorIs(t, c.SwitchToSession("missing"), ErrSessionNotFound)
	require.Equal(t, idB, c.SessionID())

	require.NoError(t, c.AppendMessage(chat.NewUserMessage("b3", t1.Add(2*time.Second))))
	sess, err := h.reg.Get(idB)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 3)
	require.Len(t, h.sessions(t), 2)
}

func TestClearActiveChatDoesNotArchive(t *testing.T) {
	h := newHarness()
	c := h.controller(&fakeGateway{})
	h.backend.failWrites(store.KeyConversationSessions)
	_ = c.AppendMessage(chat.NewUserMessage("scratch", t1))
	h.backend.failWrites()

	require.NoError(t, c.ClearActiveChat())
	require.Empty(t, c.Transcript())
	require.False(t, c.Bound())
	require.Empty(t, h.sessions(t))
}

func TestSendAppendsReplyAndUsesContextWindow(t *testing.T) {
	h := newHarness()
	size := 2
	persona := chat.PersonalityReflective
	_, err := h.store.SaveSettings(chat.SettingsPatch{ContextWindowSize: &size, AIPersonality: &persona})
	require.NoError(t, err)

	gw := &fakeGateway{}
	c := h.controller(gw)
	for _, text := range []string{"one", "two", "three"} {
		reply, err := c.Send(context.Background(), text)
		require.NoError(t, err)
		require.Equal(t, "echo: "+text, reply.Content)
		require.False(t, reply.IsError)
	}

	transcript := c.Transcript()
	require.Len(t, transcript, 6)
	require.Equal(t, chat.RoleUser, transcript[4].Role)
	require.Equal(t, chat.RoleAssistant, transcript[5].Role)

	require.Empty(t, gw.windows[0])
	last := gw.windows[2]
	require.Len(t, last, 2)
	require.Equal(t, "two", last[0].Content, "window is the trailing messages before the new one, oldest first")
	require.Equal(t, "echo: two", last[1].Content)
	require.Equal(t, chat.PersonalityReflective, gw.persona[2])

	sess, err := h.reg.Get(c.SessionID())
	require.NoError(t, err)
	require.Len(t, sess.Messages, 6)
	require.Len(t, h.sessions(t), 1)
	require.False(t, c.Loading())
}

func TestSendKeepsGatewayTimestamp(t *testing.T) {
	h := newHarness()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := h.controller(&fakeGateway{sendFn: func(context.Context, string, []chat.Message, chat.Personality) (gateway.Reply, error) {
		return gateway.Reply{Message: "ok", Timestamp: at}, nil
	}})
	reply, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	require.True(t, reply.Timestamp.Equal(at))
}

func TestSendGatewayFailureAppendsErrorReply(t *testing.T) {
	h := newHarness()
	c := h.controller(&fakeGateway{sendFn: func(context.Context, string, []chat.Message, chat.Personality) (gateway.Reply, error) {
		return gateway.Reply{}, errors.New("upstream 502: secret internals")
	}})

	reply, err := c.Send(context.Background(), "are you there?")
	require.NoError(t, err)
	require.True(t, reply.IsError)
	require.Equal(t, ErrorReply, reply.Content)

	transcript := c.Transcript()
	require.Len(t, transcript, 2)
	require.True(t, transcript[1].IsError)
	sess, err := h.reg.Get(c.SessionID())
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
}

func TestSendWithoutGateway(t *testing.T) {
	h := newHarness()
	c := h.controller(nil)
	reply, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	require.True(t, reply.IsError)

	_, err = c.Summarize(context.Background())
	require.ErrorIs(t, err, ErrSummaryUnsupported)
}

func TestSendRejectsEmpty(t *testing.T) {
	h := newHarness()
	c := h.controller(&fakeGateway{})
	_, err := c.Send(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)
	require.Empty(t, c.Transcript())
}

func TestSendReportsStorageFailure(t *testing.T) {
	h := newHarness()
	c := h.controller(&fakeGateway{})
	h.backend.failWrites(store.KeyConversationSessions, store.KeyChatHistory)

	reply, err := c.Send(context.Background(), "hello")
	require.Error(t, err)
	require.Equal(t, "echo: hello", reply.Content)
	require.Len(t, c.Transcript(), 2)
}

func sendAsync(c *Controller, text string) <-chan chat.Message {
	out := make(chan chat.Message, 1)
	go func() {
		reply, _ := c.Send(context.Background(), text)
		out <- reply
	}()
	return out
}

func TestStaleReplyGoesToOriginSession(t *testing.T) {
	h := newHarness()
	gw := newBlockingGateway()
	c := h.controller(gw)

	done := sendAsync(c, "hello")
	<-gw.started
	require.True(t, c.Loading())
	origin := c.SessionID()
	require.NotEmpty(t, origin)

	require.NoError(t, c.StartNewChat())
	close(gw.release)
	<-done

	require.Empty(t, c.Transcript(), "the new chat does not receive the old reply")
	require.False(t, c.Loading())
	sess, err := h.reg.Get(origin)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	require.Equal(t, "late reply to hello", sess.Messages[1].Content)
}

func TestStaleReplyDroppedWhenOriginDeleted(t *testing.T) {
	h := newHarness()
	gw := newBlockingGateway()
	c := h.controller(gw)

	done := sendAsync(c, "hello")
	<-gw.started
	origin := c.SessionID()
	require.NoError(t, c.DeleteSession(origin))
	require.Empty(t, c.Transcript(), "deleting the bound session clears the active chat")

	close(gw.release)
	<-done
	require.Empty(t, c.Transcript())
	require.Empty(t, h.sessions(t))
}

func TestReplyFollowsSwitchBackToOrigin(t *testing.T) {
	h := newHarness()
	other, err := h.reg.Save(chat.Session{Title: "Other", Messages: []chat.Message{chat.NewUserMessage("x", t1)}})
	require.NoError(t, err)

	gw := newBlockingGateway()
	c := h.controller(gw)
	done := sendAsync(c, "hello")
	<-gw.started
	origin := c.SessionID()

	require.NoError(t, c.SwitchToSession(other))
	require.NoError(t, c.SwitchToSession(origin))
	close(gw.release)
	<-done

	transcript := c.Transcript()
	require.Len(t, transcript, 2)
	require.Equal(t, "late reply to hello", transcript[1].Content)
	sess, err := h.reg.Get(origin)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
}

func TestDeleteOtherSessionKeepsActiveChat(t *testing.T) {
	h := newHarness()
	other, err := h.reg.Save(chat.Session{Messages: []chat.Message{chat.NewUserMessage("x", t1)}})
	require.NoError(t, err)

	c := h.controller(&fakeGateway{})
	require.NoError(t, c.AppendMessage(chat.NewUserMessage("mine", t1.Add(time.Hour))))
	require.NoError(t, c.DeleteSession(other))
	require.NoError(t, c.DeleteSession("nonexistent-id"))
	require.True(t, c.Bound())
	require.Len(t, c.Transcript(), 1)
	require.Len(t, h.sessions(t), 1)
}

func TestBoundSessionDeletedElsewhereIsRecreated(t *testing.T) {
	h := newHarness()
	c := h.controller(&fakeGateway{})
	require.NoError(t, c.AppendMessage(chat.NewUserMessage("one", t1)))
	require.NoError(t, h.reg.Delete("s1"))

	require.NoError(t, c.AppendMessage(chat.NewUserMessage("two", t1.Add(time.Second))))
	require.Equal(t, "s2", c.SessionID())
	sessions := h.sessions(t)
	require.Len(t, sessions, 1)
	require.Len(t, sessions[0].Messages, 2)
}

func TestClearAllSessions(t *testing.T) {
	h := newHarness()
	c := h.controller(&fakeGateway{})
	require.NoError(t, c.AppendMessage(chat.NewUserMessage("one", t1)))

	require.NoError(t, c.ClearAllSessions())
	require.Empty(t, h.sessions(t))
	require.Empty(t, c.Transcript())
	require.False(t, c.Bound())
	pointer, err := h.store.CurrentSession()
	require.NoError(t, err)
	require.Empty(t, pointer)
}

func TestAppendMessageRejectsUnknownRole(t *testing.T) {
	h := newHarness()
	c := h.controller(&fakeGateway{})
	require.Error(t, c.AppendMessage(chat.Message{Role: "system", Content: "x", Timestamp: t1}))
	require.Empty(t, c.Transcript())
}

func TestSummarize(t *testing.T) {
	h := newHarness()
	gw := &summarizingGateway{}
	c := h.controller(gw)

	_, err := c.Summarize(context.Background())
	require.ErrorIs(t, err, ErrNothingToSummarize)

	_, err = c.Send(context.Background(), "I slept badly")
	require.NoError(t, err)
	summary, err := c.Summarize(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a short summary", summary)
	require.Len(t, gw.got, 2)
}

func TestWriteThroughKeepsConcurrentRename(t *testing.T) {
	h := newHarness()
	c := h.controller(&fakeGateway{})
	require.NoError(t, c.AppendMessage(chat.NewUserMessage("hello", t1)))
	id := c.SessionID()
	require.Equal(t, "s1", id)

	// A rename from another surface lands while the write-through is reading
	// the session list. It must not be overwritten by the stale title.
	renamed := make(chan error, 1)
	h.backend.onNextRead(store.KeyConversationSessions, func() {
		go func() { renamed <- h.reg.Rename(id, "My renamed chat") }()
		select {
		case err := <-renamed:
			renamed <- err
		case <-time.After(50 * time.Millisecond):
		}
	})
	require.NoError(t, c.AppendMessage(chat.NewAssistantMessage("hi there", t1.Add(time.Minute))))
	require.NoError(t, <-renamed)

	sess, err := h.reg.Get(id)
	require.NoError(t, err)
	require.Equal(t, "My renamed chat", sess.Title)
	require.Len(t, sess.Messages, 2)
	require.Equal(t, 2, sess.MessageCount)
}
