package monitor

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tinytelemetry/apiwatch/internal/model"
)

// EventKind identifies what changed in the store.
type EventKind string

const (
	EventCallStart EventKind = "call_start"
	EventCallEnd   EventKind = "call_end"
	EventError     EventKind = "error"
	EventSnapshot  EventKind = "snapshot"
	EventThrottle  EventKind = "throttle"
	EventRecording EventKind = "recording"
	EventCleared   EventKind = "cleared"
	EventSession   EventKind = "session"
)

// Event is delivered to subscribers after every store mutation.
// Only the payload matching Kind is set.
type Event struct {
	Kind      EventKind             `json:"kind"`
	At        time.Time             `json:"at"`
	Call      *model.APICall        `json:"call,omitempty"`
	Throttle  *model.ThrottleEvent  `json:"throttle,omitempty"`
	Snapshot  *model.SystemSnapshot `json:"snapshot,omitempty"`
	Message   string                `json:"message,omitempty"`
	Recording bool                  `json:"recording"`
	Session   *model.Session        `json:"session,omitempty"`
}

type subscriber struct {
	id int
	fn func(Event)
}

// OnChange registers fn to be called after each mutation. Callbacks run
// synchronously on the mutating goroutine, outside the store lock, so they
// may read from the store. The returned func unsubscribes; calling it more
// than once is harmless.
func (s *Store) OnChange(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(events ...Event) {
	s.subMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, ev := range events {
		for _, sub := range subs {
			deliver(sub.fn, ev)
		}
	}
}

func deliver(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("event", string(ev.Kind)).Msg("monitor: subscriber panicked")
		}
	}()
	fn(ev)
}
