package lifecycle

import (
	"sync"
	"time"
)

// EventType identifies an Event.
type EventType int

const (
	// EventStateChanged is emitted on every lifecycle transition.
	EventStateChanged EventType = iota
	// EventConnected is emitted once the socket to the recognizer is open.
	EventConnected
	// EventDisconnected is emitted when a connected session ends. Err is set
	// when the session ended because of a failure.
	EventDisconnected
	// EventGesture is emitted for every detected gesture.
	EventGesture
	// EventGestureList carries the recognizer's full gesture list.
	EventGestureList
	// EventRecordResult reports the outcome of a recording.
	EventRecordResult
	// EventDeleteResult reports the outcome of a deletion.
	EventDeleteResult
	// EventCalibration reports the outcome of a calibration.
	EventCalibration
	// EventProcessOutput carries one line of recognizer output.
	EventProcessOutput
	// EventError reports a failed start attempt.
	EventError
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventStateChanged:
		return "state_changed"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventGesture:
		return "gesture"
	case EventGestureList:
		return "gesture_list"
	case EventRecordResult:
		return "record_result"
	case EventDeleteResult:
		return "delete_result"
	case EventCalibration:
		return "calibration"
	case EventProcessOutput:
		return "process_output"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Event is a notification from the Coordinator to the UI layer.
type Event struct {
	Type      EventType
	Time      time.Time
	SessionID string

	// State and Previous are set for EventStateChanged.
	State    State
	Previous State

	// Gesture is set for gesture, record and delete events.
	Gesture string
	// Gestures is set for EventGestureList.
	Gestures []string
	// OK reports success for record, delete and calibration events.
	OK bool
	// Message holds error text or a process output line.
	Message string
	// Err is set for EventError and failed EventDisconnected.
	Err error
}

const subscriberBuffer = 64

type subscriber struct {
	ch   chan Event
	done chan struct{}
}

// broker delivers events to subscribers in publish order on one goroutine.
// Publish never blocks.
type broker struct {
	mu      sync.Mutex
	subs    map[int]*subscriber
	nextID  int
	queue   []Event
	wake    chan struct{}
	closed  bool
	stopped chan struct{}
}

func newBroker() *broker {
	b := &broker{
		subs:    make(map[int]*subscriber),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *broker) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		ch:   make(chan Event, subscriberBuffer),
		done: make(chan struct{}),
	}
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

func (b *broker) publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, ev)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *broker) run() {
	defer close(b.stopped)

	for {
		<-b.wake

		for {
			b.mu.Lock()
			if len(b.queue) == 0 {
				closed := b.closed
				if closed {
					for id, sub := range b.subs {
						close(sub.ch)
						delete(b.subs, id)
					}
				}
				b.mu.Unlock()
				if closed {
					return
				}
				break
			}
			ev := b.queue[0]
			b.queue[0] = Event{}
			b.queue = b.queue[1:]
			subs := make([]*subscriber, 0, len(b.subs))
			for _, sub := range b.subs {
				subs = append(subs, sub)
			}
			b.mu.Unlock()

			for _, sub := range subs {
				select {
				case sub.ch <- ev:
				case <-sub.done:
				}
			}
		}
	}
}

// close delivers queued events, then closes every subscriber channel.
func (b *broker) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.stopped
		return
	}
	b.closed = true
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	<-b.stopped
}
