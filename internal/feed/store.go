package feed

import (
	"slices"
	"sync"

	"github.com/rickgao/bumpfeed/internal/model"
)

// ChangeFunc receives the full list after a change.
type ChangeFunc func(posts []model.Post)

type changeEntry struct {
	id uint64
	fn ChangeFunc
}

// Store is an ordered list of posts keyed by ID, newest first.
// Change listeners run in mutation order, outside the data lock; they must
// not mutate the store.
type Store struct {
	emitMu sync.Mutex // Serializes mutations with their notifications

	mu    sync.RWMutex
	posts []model.Post

	listenersMu sync.RWMutex
	listeners   []changeEntry
	nextID      uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Reset replaces the whole list.
func (s *Store) Reset(posts []model.Post) {
	s.mutate(func() bool {
		s.posts = make([]model.Post, len(posts))
		for i, p := range posts {
			s.posts[i] = p.Clone()
		}
		return true
	})
}

// Prepend adds p at the top. It returns false if p.ID is already present.
func (s *Store) Prepend(p model.Post) bool {
	return s.Insert(0, p)
}

// Insert adds p at index i, clamped to the list bounds. It returns false if
// p.ID is already present.
func (s *Store) Insert(i int, p model.Post) bool {
	return s.mutate(func() bool {
		if s.indexLocked(p.ID) >= 0 {
			return false
		}
		i = max(0, min(i, len(s.posts)))
		s.posts = slices.Insert(s.posts, i, p.Clone())
		return true
	})
}

// Replace swaps the post with the given ID for p, keeping its position.
// p may carry a different ID. It returns false if id is not present.
func (s *Store) Replace(id string, p model.Post) bool {
	return s.mutate(func() bool {
		i := s.indexLocked(id)
		if i < 0 {
			return false
		}
		if p.ID != id {
			if j := s.indexLocked(p.ID); j >= 0 {
				// The new ID already arrived through another path; keep one copy.
				s.posts = slices.Delete(s.posts, j, j+1)
				if j < i {
					i--
				}
			}
		}
		s.posts[i] = p.Clone()
		return true
	})
}

// Remove deletes the post with the given ID and returns it with the index
// it held.
func (s *Store) Remove(id string) (model.Post, int, bool) {
	var (
		removed model.Post
		at      = -1
	)
	ok := s.mutate(func() bool {
		at = s.indexLocked(id)
		if at < 0 {
			return false
		}
		removed = s.posts[at]
		s.posts = slices.Delete(s.posts, at, at+1)
		return true
	})
	return removed, at, ok
}

// Update applies fn to the post with the given ID. fn reports whether it
// changed anything. Update returns false if id is missing or nothing
// changed.
func (s *Store) Update(id string, fn func(p *model.Post) bool) bool {
	return s.mutate(func() bool {
		i := s.indexLocked(id)
		if i < 0 {
			return false
		}
		p := s.posts[i].Clone()
		if !fn(&p) {
			return false
		}
		s.posts[i] = p
		return true
	})
}

// Get returns a copy of the post with the given ID.
func (s *Store) Get(id string) (model.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(id)
	if i < 0 {
		return model.Post{}, false
	}
	return s.posts[i].Clone(), true
}

// FindByClientID returns the post created locally with clientID.
func (s *Store) FindByClientID(clientID string) (model.Post, bool) {
	if clientID == "" {
		return model.Post{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.posts {
		if p.ClientID == clientID {
			return p.Clone(), true
		}
	}
	return model.Post{}, false
}

// Snapshot returns a copy of the list.
func (s *Store) Snapshot() []model.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of posts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// OnChange registers fn to receive the list after every change. The
// returned function removes it.
func (s *Store) OnChange(fn ChangeFunc) func() {
	s.listenersMu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, changeEntry{id: id, fn: fn})
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			defer s.listenersMu.Unlock()
			for i, e := range s.listeners {
				if e.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// mutate runs change under the data lock and, if it reports a change,
// notifies listeners with the resulting list.
func (s *Store) mutate(change func() bool) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	changed := change()
	var snapshot []model.Post
	if changed {
		snapshot = s.snapshotLocked()
	}
	s.mu.Unlock()

	if !changed {
		return false
	}

	s.listenersMu.RLock()
	listeners := append([]changeEntry(nil), s.listeners...)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l.fn(snapshot)
	}
	return true
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.posts, func(p model.Post) bool { return p.ID == id })
}

func (s *Store) snapshotLocked() []model.Post {
	out := make([]model.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = p.Clone()
	}
	return out
}
