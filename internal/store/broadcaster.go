// internal/store/broadcaster.go
package store

import (
	"sync"

	"github.com/google/uuid"

	"campusmeet/internal/meeting"
)

// Broadcaster fans committed snapshots out to per-meeting subscribers.
// Delivery per meeting is monotonic: a snapshot older than the last one
// published for that meeting is dropped, never delivered out of order.
// Cross-meeting ordering carries no guarantee.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]map[int]chan *meeting.Meeting
	lastVersion map[uuid.UUID]int
	nextSubID   int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uuid.UUID]map[int]chan *meeting.Meeting),
		lastVersion: make(map[uuid.UUID]int),
	}
}

// Subscribe registers for snapshots of one meeting. The returned cancel
// function closes the channel and releases the registration. Slow
// consumers are skipped rather than blocked: the channel is buffered
// and a full buffer drops the snapshot (the next one supersedes it
// anyway, subscribers always want the latest state).
func (b *Broadcaster) Subscribe(meetingID uuid.UUID) (<-chan *meeting.Meeting, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *meeting.Meeting, 16)
	id := b.nextSubID
	b.nextSubID++

	if b.subscribers[meetingID] == nil {
		b.subscribers[meetingID] = make(map[int]chan *meeting.Meeting)
	}
	b.subscribers[meetingID][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subscribers[meetingID]; ok {
			if _, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
				if len(subs) == 0 {
					delete(b.subscribers, meetingID)
				}
			}
		}
	}
	return ch, cancel
}

// Publish delivers a committed snapshot to the meeting's subscribers.
// Stale snapshots (version at or below the last published one) are
// discarded so no subscriber ever observes state going backwards.
func (b *Broadcaster) Publish(m *meeting.Meeting) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m.Version <= b.lastVersion[m.ID] {
		return
	}
	b.lastVersion[m.ID] = m.Version

	for _, ch := range b.subscribers[m.ID] {
		select {
		case ch <- m.Clone():
		default:
		}
	}
}
