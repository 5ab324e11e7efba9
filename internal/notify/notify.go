// Package notify publishes short-lived user notices. Each notice owns its
// auto-dismiss timer, and Close stops every pending timer.
package notify

import (
	"sort"
	"sync"
	"time"
)

// Kind classifies a notice.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// DefaultDuration is how long a notice stays up unless told otherwise.
const DefaultDuration = 3500 * time.Millisecond

// Action says whether an event adds or removes a notice.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Notice is a single message shown to the user.
type Notice struct {
	ID       int
	Kind     Kind
	Message  string
	Duration time.Duration
}

// Event is delivered to subscribers.
type Event struct {
	Action Action
	Notice Notice
}

type entry struct {
	notice Notice
	timer  *time.Timer
}

// Center tracks active notices and fans events out to subscribers.
// Subscribers are called synchronously, without the Center's lock held.
type Center struct {
	mu      sync.Mutex
	nextID  int
	nextSub int
	active  map[int]*entry
	subs    map[int]func(Event)
	closed  bool
}

// NewCenter returns an empty Center.
func NewCenter() *Center {
	return &Center{
		active: make(map[int]*entry),
		subs:   make(map[int]func(Event)),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (c *Center) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Show adds a notice that is dismissed after d. A non-positive d keeps the
// notice until Dismiss. Show returns 0 once the Center is closed.
func (c *Center) Show(kind Kind, message string, d time.Duration) int {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}
	c.nextID++
	n := Notice{ID: c.nextID, Kind: kind, Message: message, Duration: d}
	e := &entry{notice: n}
	if d > 0 {
		e.timer = time.AfterFunc(d, func() { c.Dismiss(n.ID) })
	}
	c.active[n.ID] = e
	subs := c.subscribersLocked()
	c.mu.Unlock()

	emit(subs, Event{Action: ActionAdd, Notice: n})
	return n.ID
}

func (c *Center) Info(message string) int    { return c.Show(KindInfo, message, DefaultDuration) }
func (c *Center) Success(message string) int { return c.Show(KindSuccess, message, DefaultDuration) }
func (c *Center) Error(message string) int   { return c.Show(KindError, message, DefaultDuration) }

// Dismiss removes notice id and stops its timer. Unknown ids are ignored.
func (c *Center) Dismiss(id int) {
	c.mu.Lock()
	e, ok := c.active[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(c.active, id)
	subs := c.subscribersLocked()
	c.mu.Unlock()

	emit(subs, Event{Action: ActionRemove, Notice: e.notice})
}

// Active returns the notices currently shown, oldest first.
func (c *Center) Active() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notice, 0, len(c.active))
	for _, e := range c.active {
		out = append(out, e.notice)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close stops every pending timer and drops all notices and subscribers.
// No further events are delivered.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.active {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(c.active, id)
	}
	c.subs = make(map[int]func(Event))
	c.closed = true
}

func (c *Center) subscribersLocked() []func(Event) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, c.subs[id])
	}
	return out
}

func emit(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
