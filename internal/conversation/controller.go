// Package conversation owns the active transcript and its binding to a
// durable session.
//
// Every change to a non-empty transcript is written through: a bound
// transcript updates its session in place, an unbound one is matched against
// the registry by content and bound to the match, or saved as a new session.
// Storage and gateway failures never leave the controller in a partial state;
// the in-memory transcript stays authoritative.
package conversation

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/gateway"
	"github.com/comigor/conner-go/internal/logger"
	"github.com/comigor/conner-go/internal/metrics"
	"github.com/comigor/conner-go/internal/session"
	"github.com/comigor/conner-go/internal/store"
)

// Binding states
const (
	StateUnbound = "Unbound" // no session pointer, transcript unsaved or empty
	StateBound   = "Bound"
)

// Binding triggers
const (
	triggerBind    = "Bind"
	triggerSwitch  = "Switch"
	triggerNewChat = "NewChat"
	triggerClear   = "Clear"
)

// ErrorReply is appended in place of an assistant reply when the gateway fails.
const ErrorReply = "I'm sorry, I'm having trouble connecting right now. Please try again later."

var (
	ErrEmptyMessage       = errors.New("message is empty")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNothingToSummarize = errors.New("no messages to summarize")
	ErrSummaryUnsupported = errors.New("assistant gateway cannot summarize")
)

// Controller is safe for concurrent use. The gateway call in Send runs
// without holding the lock; callers should still keep at most one request
// outstanding per transcript and may consult Loading for that.
type Controller struct {
	registry *session.Registry
	store    *store.Store
	gateway  gateway.Client
	now      func() time.Time

	mu         sync.Mutex
	fsm        *stateless.StateMachine
	transcript []chat.Message
	sessionID  string
	generation uint64
	inflight   int
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New returns a controller in the Unbound state with an empty transcript.
// The persisted transcript is not restored; see Resume.
func New(reg *session.Registry, st *store.Store, gw gateway.Client, opts ...Option) *Controller {
	c := &Controller{
		registry: reg,
		store:    st,
		gateway:  gw,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fsm = c.newBindingMachine()
	return c
}

func (c *Controller) newBindingMachine() *stateless.StateMachine {
	fsm := stateless.NewStateMachineWithMode(StateUnbound, stateless.FiringImmediate)
	fsm.SetTriggerParameters(triggerBind, reflect.TypeOf(""))
	fsm.SetTriggerParameters(triggerSwitch, reflect.TypeOf(""))

	bindTo := func(_ context.Context, args ...any) error {
		c.sessionID = args[0].(string)
		return nil
	}

	fsm.Configure(StateUnbound).
		OnEntry(func(context.Context, ...any) error {
			c.sessionID = ""
			return nil
		}).
		Permit(triggerBind, StateBound).
		Permit(triggerSwitch, StateBound).
		PermitReentry(triggerNewChat).
		PermitReentry(triggerClear)

	fsm.Configure(StateBound).
		OnEntryFrom(triggerBind, bindTo).
		OnEntryFrom(triggerSwitch, bindTo).
		PermitReentry(triggerSwitch).
		Permit(triggerNewChat, StateUnbound).
		Permit(triggerClear, StateUnbound)

	return fsm
}

func (c *Controller) fire(trigger string, args ...any) {
	if err := c.fsm.Fire(trigger, args...); err != nil {
		// Callers only fire triggers the current state permits.
		logger.L.Error("binding transition failed", "trigger", trigger, "error", err)
		return
	}
	logger.L.Debug("binding transition", "trigger", trigger, "session", c.sessionID)
}

// Transcript returns a copy of the active transcript.
func (c *Controller) Transcript() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.transcript...)
}

// SessionID returns the bound session id, "" when unbound.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Bound reports whether the active transcript is bound to a session.
func (c *Controller) Bound() bool {
	return c.State() == StateBound
}

// State returns the binding state.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsm.MustState().(string)
}

// Loading reports whether an assistant request is outstanding.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

// AppendMessage appends msg to the active transcript and writes it through.
// The message is kept in memory even when the returned storage error is non-nil.
func (c *Controller) AppendMessage(msg chat.Message) error {
	if !msg.Role.Valid() {
		return errors.New("invalid message role " + string(msg.Role))
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(msg)
	return c.writeThroughLocked()
}

func (c *Controller) appendLocked(msg chat.Message) {
	c.transcript = append(c.transcript, msg)
	metrics.MessagesAppended.WithLabelValues(string(msg.Role)).Inc()
}

// Send appends a user message, asks the gateway for a reply with the trailing
// context window and appends the reply. A gateway failure becomes an error
// reply in the transcript and is not returned. The returned error reports
// storage failures only.
func (c *Controller) Send(ctx context.Context, text string) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	c.mu.Lock()
	settings := c.settingsLocked()
	window := chat.Window(c.transcript, settings.ContextWindowSize)
	c.appendLocked(chat.NewUserMessage(text, c.now()))
	storeErr := c.writeThroughLocked()
	gen, origin := c.generation, c.sessionID
	c.inflight++
	c.mu.Unlock()

	reply := c.ask(ctx, text, window, settings.AIPersonality)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--

	if gen != c.generation && (origin == "" || origin != c.sessionID) {
		c.deliverStaleLocked(origin, reply)
		return reply, storeErr
	}
	c.appendLocked(reply)
	if err := c.writeThroughLocked(); err != nil && storeErr == nil {
		storeErr = err
	}
	return reply, storeErr
}

func (c *Controller) ask(ctx context.Context, text string, window []chat.Message, p chat.Personality) chat.Message {
	if c.gateway == nil {
		metrics.GatewayFailures.Inc()
		logger.L.Error("assistant request failed", "error", gateway.ErrNotConfigured)
		return chat.Message{Role: chat.RoleAssistant, Content: ErrorReply, Timestamp: c.now(), IsError: true}
	}
	r, err := c.gateway.Send(ctx, text, window, p)
	if err != nil {
		metrics.GatewayFailures.Inc()
		logger.L.Error("assistant request failed", "error", err)
		return chat.Message{Role: chat.RoleAssistant, Content: ErrorReply, Timestamp: c.now(), IsError: true}
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	return chat.NewAssistantMessage(r.Message, ts)
}

// deliverStaleLocked handles a reply whose transcript is no longer active.
// It goes to the session it was asked from, if that session still exists.
func (c *Controller) deliverStaleLocked(origin string, reply chat.Message) {
	outcome := "dropped"
	defer func() {
		metrics.StaleReplies.WithLabelValues(outcome).Inc()
		logger.L.Warn("assistant reply arrived after the active chat changed", "session", origin, "outcome", outcome)
	}()
	if origin == "" {
		return
	}
	found, err := c.registry.AppendMessages(origin, reply)
	if err != nil || !found {
		return
	}
	metrics.MessagesAppended.WithLabelValues(string(reply.Role)).Inc()
	outcome = "delivered"
}

func (c *Controller) settingsLocked() chat.Settings {
	s, err := c.store.Settings()
	if err != nil {
		return chat.DefaultSettings()
	}
	return s
}

// writeThroughLocked persists the active transcript and reconciles it with
// the registry. Empty transcripts are never saved as sessions.
func (c *Controller) writeThroughLocked() error {
	if len(c.transcript) == 0 {
		return nil
	}
	settings := c.settingsLocked()
	historyErr := c.store.SaveChatHistory(chat.Window(c.transcript, settings.MessageLimit))

	if err := c.reconcileLocked(); err != nil {
		return err
	}
	if err := c.store.SetCurrentSession(c.sessionID); err != nil {
		return err
	}
	return historyErr
}

func (c *Controller) reconcileLocked() error {
	if c.sessionID != "" {
		found, err := c.registry.UpdateMessages(c.sessionID, c.transcript)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		logger.L.Warn("bound session no longer exists, saving transcript as a new session", "session", c.sessionID)
		c.fire(triggerClear)
	}

	id, found, err := c.registry.FindByMessages(c.transcript)
	if err != nil {
		return err
	}
	if !found {
		id, err = c.registry.Save(chat.Session{
			Title:    chat.DefaultTitle(c.transcript, chat.NewSessionTitle),
			Messages: c.transcript,
		})
		if err != nil {
			return err
		}
		metrics.SessionsCreated.Inc()
		logger.L.Info("created session", "session", id)
	}
	c.fire(triggerBind, id)
	return nil
}

// StartNewChat archives an unbound non-empty transcript as a new session,
// then clears the active chat. A bound transcript is already durable and is
// not archived again. If archival fails nothing changes.
func (c *Controller) StartNewChat() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID == "" && len(c.transcript) > 0 {
		id, err := c.registry.Save(chat.Session{
			Title:    chat.DefaultTitle(c.transcript, chat.FallbackTitle),
			Messages: c.transcript,
		})
		if err != nil {
			return err
		}
		metrics.SessionsCreated.Inc()
		logger.L.Info("archived unsaved chat", "session", id)
	}
	return c.resetLocked(triggerNewChat)
}

// ClearActiveChat empties the transcript and unbinds it without archival.
func (c *Controller) ClearActiveChat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetLocked(triggerClear)
}

func (c *Controller) resetLocked(trigger string) error {
	c.fire(trigger)
	c.transcript = nil
	c.generation++
	err := c.store.ClearChatHistory()
	if perr := c.store.SetCurrentSession(""); err == nil {
		err = perr
	}
	return err
}

// SwitchToSession replaces the active transcript with the stored session id
// and binds to it. Switching to the current session is a no-op.
func (c *Controller) SwitchToSession(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == c.sessionID {
		return nil
	}
	sess, err := c.registry.Get(id)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	c.bindLocked(*sess)
	return c.persistActiveLocked()
}

func (c *Controller) bindLocked(sess chat.Session) {
	c.transcript = append([]chat.Message(nil), sess.Messages...)
	c.fire(triggerSwitch, sess.ID)
	c.generation++
}

func (c *Controller) persistActiveLocked() error {
	settings := c.settingsLocked()
	err := c.store.SaveChatHistory(chat.Window(c.transcript, settings.MessageLimit))
	if perr := c.store.SetCurrentSession(c.sessionID); err == nil {
		err = perr
	}
	return err
}

// Resume re-hydrates the persisted active transcript. If the persisted
// pointer names a session that still ends with that transcript, the session
// is re-bound in full; otherwise the transcript is reconciled like any other
// write-through, which binds it to an identical stored session when one exists.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	history, err := c.store.ChatHistory()
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}

	if pointer, err := c.store.CurrentSession(); err == nil && pointer != "" {
		sess, err := c.registry.Get(pointer)
		if err == nil && sess != nil && chat.EqualMessages(chat.Window(sess.Messages, len(history)), history) {
			c.bindLocked(*sess)
			return nil
		}
	}

	c.fire(triggerClear)
	c.transcript = history
	c.generation++
	return c.writeThroughLocked()
}

// DeleteSession removes session id. Deleting the bound session also clears
// the active chat so the next write-through does not resurrect it.
func (c *Controller) DeleteSession(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.Delete(id); err != nil {
		return err
	}
	if id != "" && id == c.sessionID {
		return c.resetLocked(triggerClear)
	}
	return nil
}

// ClearAllSessions removes every session and clears the active chat.
func (c *Controller) ClearAllSessions() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.ClearAll(); err != nil {
		return err
	}
	return c.resetLocked(triggerClear)
}

// Summarize asks the gateway for a summary of the active transcript.
func (c *Controller) Summarize(ctx context.Context) (string, error) {
	msgs := c.Transcript()
	if len(msgs) == 0 {
		return "", ErrNothingToSummarize
	}
	s, ok := c.gateway.(gateway.Summarizer)
	if !ok {
		return "", ErrSummaryUnsupported
	}
	return s.Summarize(ctx, msgs)
}
