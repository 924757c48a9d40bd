package storage

import (
	"sync"
	"time"

	"elainedb.dev/geotube/model"
)

// VideoStore is the durable table of enriched video records. Writes are
// whole-record upserts keyed by id; there are no partial field updates.
// Readers observe either the pre- or post-write state, never a torn record.
type VideoStore interface {
	UpsertAll(videos []model.Video, cachedAt time.Time) error
	FindNewerThan(threshold time.Time) ([]model.Video, error)
	List(filter model.FilterOptions, sort model.SortOption) ([]model.Video, error)
	DistinctChannels() ([]string, error)
	DistinctCountries() ([]string, error)
	Count() (int, error)
	Delete(id string) error
	DeleteAll() error
	DeleteOlderThan(threshold time.Time) error

	// Subscribe returns a channel that receives a signal after every
	// mutation, plus a cancel func releasing the subscription.
	Subscribe() (<-chan struct{}, func())
}

// notifier broadcasts change signals to subscribers. Sends never block: a
// subscriber that has not drained its pending signal is already due for a
// re-read, a second signal adds nothing.
type notifier struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

func (n *notifier) Subscribe() (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]chan struct{})
	}
	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
	return ch, cancel
}

func (n *notifier) notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
