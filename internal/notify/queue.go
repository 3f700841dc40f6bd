package notify

import (
	"sync"

	"github.com/rickgao/bumpfeed/internal/clock"
)

// DefaultQueueLimit is the number of notifications kept on screen at once.
const DefaultQueueLimit = 5

// Queue is an in-memory notification list, newest last. When the limit is
// reached the oldest notification is dropped. Notifications with a positive
// Duration are dismissed automatically once it elapses.
type Queue struct {
	mu      sync.Mutex
	limit   int
	sched   clock.Scheduler
	items   []Notification
	dismiss map[string]clock.CancelFunc
}

// NewQueue creates a queue. A nil scheduler disables auto-dismiss.
func NewQueue(limit int, sched clock.Scheduler) *Queue {
	if limit < 1 {
		limit = DefaultQueueLimit
	}
	return &Queue{
		limit:   limit,
		sched:   sched,
		dismiss: make(map[string]clock.CancelFunc),
	}
}

// Add appends n, evicting the oldest entry if the queue is full.
func (q *Queue) Add(n Notification) string {
	ensureID(&n)

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) >= q.limit {
		q.removeLocked(q.items[0].ID)
	}
	q.items = append(q.items, n)

	if q.sched != nil && n.Duration > 0 {
		id := n.ID
		q.dismiss[id] = q.sched.After(n.Duration, func() { q.Remove(id) })
	}

	return n.ID
}

// Remove dismisses a notification. Unknown IDs are ignored.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(id)
}

// Clear dismisses every notification.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, cancel := range q.dismiss {
		cancel()
	}
	q.items = nil
	q.dismiss = make(map[string]clock.CancelFunc)
}

// List returns a copy of the visible notifications, oldest first.
func (q *Queue) List() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of visible notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) removeLocked(id string) {
	if cancel, ok := q.dismiss[id]; ok {
		cancel()
		delete(q.dismiss, id)
	}
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}
