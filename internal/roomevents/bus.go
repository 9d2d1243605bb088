package roomevents

import (
	"sync"
	"time"

	"github.com/onlytrade/room-server/internal/clock"
)

const defaultKeepaliveMs = 15000

// Bus owns every room's lifecycle. Rooms are created lazily on first
// subscribe/publish and garbage-collected once their buffer TTL lapses
// with no subscribers.
type Bus struct {
	clk   clock.Clock
	mu    sync.Mutex
	rooms map[string]*Room
	build func(roomID string) BuildFunc

	gcStop chan struct{}
}

func NewBus(clk clock.Clock, build func(roomID string) BuildFunc) *Bus {
	return &Bus{
		clk:   clk,
		rooms: make(map[string]*Room),
		build: build,
	}
}

// Room returns the room for id, creating it if absent.
func (b *Bus) Room(id string) *Room {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rooms[id]
	if !ok {
		r = NewRoom(b.clk, id, defaultKeepaliveMs, b.build(id))
		b.rooms[id] = r
	}
	return r
}

// Subscribe attaches sub to room id and returns the room plus any
// buffered events after lastEventID for Last-Event-ID replay.
func (b *Bus) Subscribe(roomID string, sub *Subscriber, lastEventID int64) (*Room, []BufferedEvent) {
	r := b.Room(roomID)
	replay := r.ReplaySince(lastEventID)
	r.Subscribe(sub)
	return r, replay
}

func (b *Bus) Unsubscribe(roomID, subID string) {
	b.mu.Lock()
	r, ok := b.rooms[roomID]
	b.mu.Unlock()
	if ok {
		r.Unsubscribe(subID)
	}
}

func (b *Bus) Publish(roomID, event string, data any) {
	b.Room(roomID).Publish(event, data)
}

// StartGC periodically removes expired, subscriber-less rooms.
func (b *Bus) StartGC(interval time.Duration) {
	b.mu.Lock()
	if b.gcStop != nil {
		b.mu.Unlock()
		return
	}
	b.gcStop = make(chan struct{})
	stop := b.gcStop
	b.mu.Unlock()

	go func() {
		ticker := b.clk.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				b.collect()
			}
		}
	}()
}

func (b *Bus) StopGC() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gcStop != nil {
		close(b.gcStop)
		b.gcStop = nil
	}
}

func (b *Bus) collect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, r := range b.rooms {
		if r.Expired() {
			delete(b.rooms, id)
		}
	}
}

func (b *Bus) RoomIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.rooms))
	for id := range b.rooms {
		ids = append(ids, id)
	}
	return ids
}
