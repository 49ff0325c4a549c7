// Package cache implements the episodic experience cache: an
// insertion-ordered mapping from episode identifier to a per-field time
// series, bounded in memory by a total-step budget.
package cache

import (
	"sort"

	"github.com/samuelfneumann/rollouts/episode"
)

// Cache is an insertion-ordered mapping from episode.ID to *Episode.
// It has exactly one writer (the simulation driver) and is read by the
// window sampler only between driver ticks; it performs no internal
// locking.
type Cache struct {
	episodes map[episode.ID]*episode.Episode
	order    []episode.ID // insertion order
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{episodes: make(map[episode.ID]*episode.Episode)}
}

// Len returns the number of episodes in the cache.
func (c *Cache) Len() int {
	return len(c.order)
}

// Get returns the episode stored under id.
func (c *Cache) Get(id episode.ID) (*episode.Episode, error) {
	ep, ok := c.episodes[id]
	if !ok {
		return nil, &Error{Op: "get", Err: errNoSuchEpisode}
	}
	return ep, nil
}

// IDs returns the episode identifiers in insertion order.
func (c *Cache) IDs() []episode.ID {
	ids := make([]episode.ID, len(c.order))
	copy(ids, c.order)
	return ids
}

// Insert records one step under id. If the id is absent a new episode
// is created, seeded with the transition's values; otherwise the
// transition is appended to the existing episode, zero-backfilling any
// field the episode has not seen before.
func (c *Cache) Insert(id episode.ID, t episode.Transition) error {
	ep, ok := c.episodes[id]
	if !ok {
		ep = episode.New()
		c.episodes[id] = ep
		c.order = append(c.order, id)
	}
	if err := ep.Append(t); err != nil {
		return &Error{Op: "insert", Err: err}
	}
	return nil
}

// Delete removes the episode stored under id, if present.
func (c *Cache) Delete(id episode.ID) {
	if _, ok := c.episodes[id]; !ok {
		return
	}
	delete(c.episodes, id)
	for i, key := range c.order {
		if key == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// PopOldest removes and returns the episode that was inserted first.
func (c *Cache) PopOldest() (episode.ID, *episode.Episode, error) {
	if len(c.order) == 0 {
		return "", nil, &Error{Op: "popOldest", Err: errEmptyCache}
	}
	id := c.order[0]
	ep := c.episodes[id]
	c.order = c.order[1:]
	delete(c.episodes, id)
	return id, ep, nil
}

// PruneTo evicts oldest-inserted episodes until at most n remain. It
// bounds memory after an evaluation run while keeping the most recent
// episode available for diagnostic export.
func (c *Cache) PruneTo(n int) {
	for len(c.order) > n {
		c.PopOldest() //nolint:errcheck // cache known non-empty
	}
}

// Transitions returns the total transition count over all episodes,
// excluding each episode's seed reset step.
func (c *Cache) Transitions() int {
	var total int
	for _, ep := range c.episodes {
		total += ep.Transitions()
	}
	return total
}

// Snapshot returns the episodes keyed by ID. The sampler reads from a
// snapshot so a driver tick never mutates the mapping under it. The
// episodes themselves are shared, not copied; completed episodes are
// immutable by construction.
func (c *Cache) Snapshot() map[episode.ID]*episode.Episode {
	snap := make(map[episode.ID]*episode.Episode, len(c.episodes))
	for id, ep := range c.episodes {
		snap[id] = ep
	}
	return snap
}

// Evict enforces a total-step budget by dropping old episodes whole.
// Episodes are visited newest-identifier-first; once an episode would
// push the running transition count past the budget, that episode and
// every older one is deleted. A budget <= 0 disables eviction. Evict
// returns the transition count retained in the cache.
func (c *Cache) Evict(budget int) int {
	ids := make([]episode.ID, len(c.order))
	copy(ids, c.order)
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	var retained int
	evicting := false
	for _, id := range ids {
		ep := c.episodes[id]
		if evicting {
			c.Delete(id)
			continue
		}
		if budget > 0 && retained+ep.Transitions() > budget {
			evicting = true
			c.Delete(id)
			continue
		}
		retained += ep.Transitions()
	}
	return retained
}
