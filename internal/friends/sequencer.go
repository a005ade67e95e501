package friends

import (
	"context"
	"sync"
)

// sequencer orders optimistic operations per entity id. Each operation takes a ticket
// for every id it touches while the caller still holds the holder lock; the background
// halves then run in ticket order per id.
//
// Every rollback bumps the generation of the ids it restores. An operation whose ids
// changed generation while it waited was built on optimistic state that no longer
// exists, so it is abandoned without contacting the server.
type sequencer struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
	gens  map[string]uint64
}

type ticket struct {
	ids  []string
	prev []chan struct{}
	gens []uint64
	done chan struct{}
}

func newSequencer() *sequencer {
	return &sequencer{
		tails: make(map[string]chan struct{}),
		gens:  make(map[string]uint64),
	}
}

func (s *sequencer) enter(ids ...string) *ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &ticket{ids: ids, done: make(chan struct{})}
	for _, id := range ids {
		if prev, ok := s.tails[id]; ok {
			t.prev = append(t.prev, prev)
		}
		s.tails[id] = t.done
		t.gens = append(t.gens, s.gens[id])
	}
	return t
}

// wait blocks until every earlier operation on the ticket's ids has left.
func (t *ticket) wait(ctx context.Context) error {
	for _, prev := range t.prev {
		select {
		case <-prev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// stale reports whether any id was rolled back since the ticket was taken.
func (s *sequencer) stale(t *ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range t.ids {
		if s.gens[id] != t.gens[i] {
			return true
		}
	}
	return false
}

func (s *sequencer) bump(ids ...string) {
	s.mu.Lock()
	for _, id := range ids {
		s.gens[id]++
	}
	s.mu.Unlock()
}

func (s *sequencer) leave(t *ticket) {
	s.mu.Lock()
	for _, id := range t.ids {
		if s.tails[id] == t.done {
			delete(s.tails, id)
			delete(s.gens, id)
		}
	}
	s.mu.Unlock()
	close(t.done)
}
