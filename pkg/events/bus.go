package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"uninotes/pkg/metrics"
)

// Type names an application event.
type Type string

const (
	// NotesUpdated fires after a note was created, updated or deleted.
	NotesUpdated Type = "notesUpdated"
	// StorageChanged fires when durable storage was written by someone else.
	StorageChanged Type = "storage"
	// SessionChanged fires on login and logout.
	SessionChanged Type = "session"
)

// Event is delivered to subscribers. Namespace scopes it to one browser;
// an empty namespace concerns everyone.
type Event struct {
	Type      Type      `json:"type"`
	Namespace string    `json:"namespace,omitempty"`
	Origin    string    `json:"origin"`
	At        time.Time `json:"at"`
}

// Bus fans events out to subscribers. Slow subscribers drop events.
type Bus struct {
	origin string
	log    logrus.FieldLogger
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
}

// NewBus creates a bus with a fresh origin id.
func NewBus(log logrus.FieldLogger) *Bus {
	return &Bus{
		origin: uuid.NewString(),
		log:    log.WithField("component", "events"),
		subs:   make(map[int]chan Event),
	}
}

// Origin identifies events published by this process.
func (b *Bus) Origin() string {
	return b.origin
}

// Publish delivers e to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	if e.Origin == "" {
		e.Origin = b.origin
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	metrics.EventsPublished.WithLabelValues(string(e.Type)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.log.WithFields(logrus.Fields{"subscriber": id, "type": e.Type}).Debug("subscriber full, event dropped")
		}
	}
}

// Subscribe returns a channel of events and a cancel func that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}
