// Package notify carries transient started/success/failure notifications from the
// controllers to whatever is rendering them.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase is the lifecycle point a notification reports.
type Phase string

const (
	PhaseStarted Phase = "started"
	PhaseSuccess Phase = "success"
	PhaseFailure Phase = "failure"
)

// Notification is one transient message. Started and its outcome share an ID.
type Notification struct {
	ID      string
	Op      string
	Phase   Phase
	Message string
	Err     error
	At      time.Time
}

// Listener receives notifications synchronously, in publish order.
type Listener func(Notification)

// Notifier fans notifications out to subscribers and keeps a bounded backlog.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
	recent    []Notification
	maxRecent int
	now       func() time.Time
}

func New() *Notifier {
	return &Notifier{
		listeners: make(map[int]Listener),
		maxRecent: 100,
		now:       time.Now,
	}
}

// Subscribe registers l and returns a function that removes it.
func (n *Notifier) Subscribe(l Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = l
	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

// Recent returns a copy of the backlog, oldest first.
func (n *Notifier) Recent() []Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Notification, len(n.recent))
	copy(out, n.recent)
	return out
}

func (n *Notifier) publish(note Notification) {
	n.mu.Lock()
	n.recent = append(n.recent, note)
	if len(n.recent) > n.maxRecent {
		n.recent = n.recent[len(n.recent)-n.maxRecent:]
	}
	listeners := make([]Listener, 0, len(n.listeners))
	for i := 0; i < n.nextID; i++ {
		if l, ok := n.listeners[i]; ok {
			listeners = append(listeners, l)
		}
	}
	n.mu.Unlock()

	for _, l := range listeners {
		l(note)
	}
}

// Start publishes the started phase of op and returns the tracker for its outcome.
func (n *Notifier) Start(op, message string) *Tracker {
	t := &Tracker{n: n, id: uuid.NewString(), op: op}
	if n != nil {
		n.publish(Notification{ID: t.id, Op: op, Phase: PhaseStarted, Message: message, At: n.now()})
	}
	return t
}

// Failure publishes a standalone failure that has no started phase of its own.
func (n *Notifier) Failure(op, message string, err error) {
	if n == nil {
		return
	}
	n.publish(Notification{ID: uuid.NewString(), Op: op, Phase: PhaseFailure, Message: message, Err: err, At: n.now()})
}

// Tracker resolves a started operation exactly once.
type Tracker struct {
	n    *Notifier
	id   string
	op   string
	once sync.Once
}

func (t *Tracker) Success(message string) {
	t.resolve(PhaseSuccess, message, nil)
}

func (t *Tracker) Failure(message string, err error) {
	t.resolve(PhaseFailure, message, err)
}

func (t *Tracker) resolve(phase Phase, message string, err error) {
	t.once.Do(func() {
		if t.n == nil {
			return
		}
		t.n.publish(Notification{ID: t.id, Op: t.op, Phase: phase, Message: message, Err: err, At: t.n.now()})
	})
}
