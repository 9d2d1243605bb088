package roomevents

import (
	"context"
	"sync"
	"time"

	"github.com/onlytrade/room-server/internal/clock"
)

const (
	bufferCap    = 200
	bufferTTL    = 60 * time.Second
	minPacketMs  = 2 * time.Second
	maxPacketMs  = 60 * time.Second
)

// BufferedEvent is one recorded event, replayable to reconnecting
// subscribers via Last-Event-ID.
type BufferedEvent struct {
	ID    int64
	Event string
	Data  any
	TsMs  int64
}

// Room owns one room's subscriber set, sequence counter, replay buffer
// and timers.
type Room struct {
	ID string

	clk clock.Clock

	mu          sync.Mutex
	subscribers map[string]*Subscriber
	seq         int64
	buffer      []BufferedEvent

	expiringAt time.Time
	expired    bool

	keepaliveStop chan struct{}
	packetStop    chan struct{}
	packetMs      int

	gate *PacketGate

	keepaliveMs int
}

func NewRoom(clk clock.Clock, id string, keepaliveMs int, build BuildFunc) *Room {
	return &Room{
		ID:          id,
		clk:         clk,
		subscribers: make(map[string]*Subscriber),
		gate:        NewPacketGate(build),
		keepaliveMs: keepaliveMs,
	}
}

// Subscribe registers a subscriber and, if the room was expiring, keeps
// the sequence rather than resetting it ("a new subscriber
// within TTL resumes the same sequence").
func (r *Room) Subscribe(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[sub.ID] = sub
	r.expiringAt = time.Time{}
	if len(r.subscribers) == 1 {
		r.startTimersLocked()
	}
}

func (r *Room) Unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, id)
	if len(r.subscribers) == 0 {
		r.stopTimersLocked()
		r.expiringAt = r.clk.Now().Add(bufferTTL)
	}
}

func (r *Room) SubscriberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}

// Expired reports whether the room's buffer TTL has elapsed with no
// subscribers, meaning the bus may garbage-collect it.
func (r *Room) Expired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers) == 0 && !r.expiringAt.IsZero() && r.clk.Now().After(r.expiringAt)
}

// Publish appends event to the buffer and broadcasts it to every live
// subscriber, but only if the room has live subscribers or an
// unexpired buffer.
func (r *Room) Publish(event string, data any) {
	r.mu.Lock()
	if len(r.subscribers) == 0 && (r.expiringAt.IsZero() || r.clk.Now().After(r.expiringAt)) {
		r.mu.Unlock()
		return
	}
	r.seq++
	be := BufferedEvent{ID: r.seq, Event: event, Data: data, TsMs: r.clk.Now().UnixMilli()}
	r.buffer = append(r.buffer, be)
	if len(r.buffer) > bufferCap {
		r.buffer = r.buffer[len(r.buffer)-bufferCap:]
	}
	subs := make([]*Subscriber, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for _, s := range subs {
		if err := s.WriteEvent(be.ID, be.Event, be.Data); err != nil {
			r.Unsubscribe(s.ID)
		}
	}
}

// ReplaySince returns every buffered event with id greater than lastID,
// for Last-Event-ID reconnects.
func (r *Room) ReplaySince(lastID int64) []BufferedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]BufferedEvent, 0)
	for _, e := range r.buffer {
		if e.ID > lastID {
			out = append(out, e)
		}
	}
	return out
}

func (r *Room) BuildPacket(ctx context.Context, decisionLimit int) (any, error) {
	return r.gate.Request(ctx, decisionLimit)
}

func (r *Room) buildPacketSkipIfInFlight(ctx context.Context, decisionLimit int) {
	packet, err, skipped := r.gate.RequestSkipIfInFlight(ctx, decisionLimit)
	if skipped || err != nil {
		return
	}
	r.Publish("stream_packet", packet)
}

func (r *Room) minPacketIntervalLocked() time.Duration {
	if len(r.subscribers) == 0 {
		return time.Duration(defaultPacketMs) * time.Millisecond
	}
	min := -1
	for _, s := range r.subscribers {
		if s.PacketIntervalMs <= 0 {
			continue
		}
		if min == -1 || s.PacketIntervalMs < min {
			min = s.PacketIntervalMs
		}
	}
	if min == -1 {
		min = defaultPacketMs
	}
	d := time.Duration(min) * time.Millisecond
	if d < minPacketMs {
		d = minPacketMs
	}
	if d > maxPacketMs {
		d = maxPacketMs
	}
	return d
}

var defaultPacketMs = 5000

func (r *Room) startTimersLocked() {
	r.keepaliveStop = make(chan struct{})
	keepaliveStop := r.keepaliveStop
	keepaliveMs := r.keepaliveMs
	go r.runKeepalive(keepaliveStop, keepaliveMs)

	r.packetStop = make(chan struct{})
	go r.runPacketTimer(r.packetStop)
}

func (r *Room) stopTimersLocked() {
	if r.keepaliveStop != nil {
		close(r.keepaliveStop)
		r.keepaliveStop = nil
	}
	if r.packetStop != nil {
		close(r.packetStop)
		r.packetStop = nil
	}
}

func (r *Room) runKeepalive(stop chan struct{}, ms int) {
	ticker := r.clk.NewTicker(time.Duration(ms) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			r.mu.Lock()
			subs := make([]*Subscriber, 0, len(r.subscribers))
			for _, s := range r.subscribers {
				subs = append(subs, s)
			}
			r.mu.Unlock()
			for _, s := range subs {
				if err := s.WriteComment("keepalive"); err != nil {
					r.Unsubscribe(s.ID)
				}
			}
		}
	}
}

// runPacketTimer recomputes the minimum subscriber interval each tick and
// recreates the ticker when it changes.
func (r *Room) runPacketTimer(stop chan struct{}) {
	r.mu.Lock()
	interval := r.minPacketIntervalLocked()
	r.mu.Unlock()

	ticker := r.clk.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			r.buildPacketSkipIfInFlight(context.Background(), 30)

			r.mu.Lock()
			next := r.minPacketIntervalLocked()
			r.mu.Unlock()
			if next != interval {
				interval = next
				ticker.Stop()
				ticker = r.clk.NewTicker(interval)
			}
		}
	}
}
