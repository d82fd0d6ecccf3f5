package executor

import (
	"sync"

	"github.com/harrison/ensemble/internal/models"
)

// EventType tags an Event.
type EventType string

// Event types pushed to subscribers
const (
	EventLog      EventType = "log"      // One new LogEntry
	EventProgress EventType = "progress" // Progress increased
	EventStatus   EventType = "status"   // Full status snapshot, at least on every transition
	EventComplete EventType = "complete" // Execution reached a terminal state; the stream ends next
)

// Event is one update for an execution. Payload fields are copies.
type Event struct {
	Type        EventType
	ExecutionID string
	Log         *models.LogEntry
	Progress    int
	Status      *models.ExecutionStatus
}

// Subscription is one subscriber's ordered view of an execution's events.
// Delivery is unbounded: the engine never blocks on a slow reader.
type Subscription struct {
	events chan Event
	signal chan struct{}
	done   chan struct{}
	detach func()

	mu     sync.Mutex
	queue  []Event
	sealed bool
	once   sync.Once
}

func newSubscription(detach func()) *Subscription {
	s := &Subscription{
		events: make(chan Event),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		detach: detach,
	}
	go s.pump()
	return s
}

// Events returns the event channel. It is closed after the complete event,
// or when Close is called.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close unsubscribes. Pending events are discarded. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.detach != nil {
			s.detach()
		}
		close(s.done)
	})
}

// push queues an event; never blocks.
func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	if s.sealed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.wake()
}

// seal ends the stream once the queued events are delivered.
func (s *Subscription) seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.events)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			sealed := s.sealed
			s.mu.Unlock()
			if sealed {
				return
			}
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}
