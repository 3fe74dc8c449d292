package engine

import (
	"fmt"
	"sync"
)

// EventKind - тип сообщения от рабочей горутины.
type EventKind int

const (
	EventProgress EventKind = iota
	EventCompleted
	EventFailed
	EventCancelled
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Terminal сообщает, что после события ничего больше не придет.
func (k EventKind) Terminal() bool {
	return k != EventProgress
}

// Event - одно сообщение потока событий задачи.
// Percent заполнен для progress, Path - для completed, Reason - для failed.
type Event struct {
	Kind    EventKind
	Percent int
	Path    string
	Reason  string
}

func (e Event) String() string {
	switch e.Kind {
	case EventProgress:
		return fmt.Sprintf("progress %d%%", e.Percent)
	case EventCompleted:
		return "completed " + e.Path
	case EventFailed:
		return "failed: " + e.Reason
	}
	return e.Kind.String()
}

// eventQueue - неограниченная очередь между воркером и потребителем.
// push никогда не блокируется, pump переносит события в публичный канал
// и закрывает его после терминального события. После detach pump больше
// не ждет потребителя: непрочитанный прогресс отбрасывается, терминальное
// событие отдается, если в канале есть место.
type eventQueue struct {
	mu       sync.Mutex
	items    []Event
	closed   bool
	signal   chan struct{}
	detached chan struct{}
	once     sync.Once
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1), detached: make(chan struct{})}
}

func (q *eventQueue) push(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, ev)
	if ev.Kind.Terminal() {
		q.closed = true
	}
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) detach() {
	q.once.Do(func() { close(q.detached) })
}

func (q *eventQueue) pump(out chan<- Event) {
	defer close(out)
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			select {
			case out <- ev:
			case <-q.detached:
				q.flush(out, ev)
				return
			}
			if ev.Kind.Terminal() {
				return
			}
			continue
		}
		q.mu.Unlock()
		select {
		case <-q.signal:
		case <-q.detached:
			q.flush(out, Event{})
			return
		}
	}
}

// flush отдает терминальное событие без блокировки, остальное отбрасывает.
func (q *eventQueue) flush(out chan<- Event, pending Event) {
	q.mu.Lock()
	rest := q.items
	q.items = nil
	q.mu.Unlock()

	last := pending
	if n := len(rest); n > 0 {
		last = rest[n-1]
	}
	if !last.Kind.Terminal() {
		return
	}
	select {
	case out <- last:
	default:
	}
}
