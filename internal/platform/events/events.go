// Package events fans out resource change notifications to in-process
// subscribers such as the dashboard cache, websocket clients and webhooks.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Resource names used as change topics.
const (
	Users          = "users"
	Doctors        = "doctors"
	Patients       = "patients"
	Appointments   = "appointments"
	MedicalRecords = "medical-records"
	Prescriptions  = "prescriptions"
	Wards          = "wards"
	Rooms          = "rooms"
	Bills          = "bills"
)

// Common actions. Domain packages may publish others, e.g. "cancelled".
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Change describes a committed write to one resource.
type Change struct {
	Resource string    `json:"resource"`
	Action   string    `json:"action"`
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
}

// Type is the dotted event name, e.g. "appointments.cancelled".
func (c Change) Type() string {
	return c.Resource + "." + c.Action
}

// NewChange stamps a change with the current time.
func NewChange(resource, action string, id fmt.Stringer) Change {
	return Change{Resource: resource, Action: action, ID: id.String(), At: time.Now().UTC()}
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, c Change)
}

// Handler reacts to a change. Handlers must not block for long; slow work
// belongs in a goroutine owned by the handler.
type Handler func(ctx context.Context, c Change)

type subscription struct {
	name    string
	handler Handler
}

// Bus delivers every published change to each subscriber in registration
// order. A panicking subscriber is logged and does not affect the others.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	logger zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{logger: logger.With().Str("component", "events").Logger()}
}

func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, handler: h})
}

func (b *Bus) Publish(ctx context.Context, c Change) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, c)
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, c Change) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("subscriber", s.name).
				Str("event", c.Type()).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("subscriber panicked")
		}
	}()
	s.handler(ctx, c)
}

// Discard drops every change.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Change) {}

// Recorder keeps published changes in memory.
type Recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *Recorder) Publish(_ context.Context, c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

// Changes returns a copy of everything recorded so far.
func (r *Recorder) Changes() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Change, len(r.changes))
	copy(out, r.changes)
	return out
}

// Last returns the most recent change and whether there was one.
func (r *Recorder) Last() (Change, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.changes) == 0 {
		return Change{}, false
	}
	return r.changes[len(r.changes)-1], true
}
