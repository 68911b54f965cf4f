// Package session provides the in-process conversational state table.
// Each entry is keyed by (flow, owner) and carries a flow-specific payload
// with a TTL. The store is the only mutable state shared between handler
// invocations; it is injected into handlers, never reached through globals.
package session

import (
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"animedrive/core/logger"
)

// Flow identifies an independent conversational flow kind.
type Flow string

const (
	// FlowUpload tracks an admin's multi-step episode upload session.
	FlowUpload Flow = "upload"
	// FlowRequest tracks a pending user feedback/request prompt.
	FlowRequest Flow = "request"
	// FlowSearch tracks a paginated catalog browse snapshot.
	FlowSearch Flow = "search"
	// FlowChat tracks per-user AI conversation context.
	FlowChat Flow = "chat"
)

const shardCount = 32

type entry struct {
	payload   any
	createdAt time.Time
	expiresAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[key]entry
}

type key struct {
	flow  Flow
	owner int64
}

// Store is a sharded TTL table. Mutations for one (flow, owner) key are
// serialized by that key's shard; unrelated keys never contend on a global
// lock.
type Store struct {
	shards [shardCount]*shard
	now    func() time.Time
}

// NewStore builds an empty store using the wall clock.
func NewStore() *Store {
	return newStoreWithClock(time.Now)
}

func newStoreWithClock(now func() time.Time) *Store {
	s := &Store{now: now}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[key]entry)}
	}
	return s
}

func (s *Store) shardFor(k key) *shard {
	h := fnv.New32a()
	h.Write([]byte(k.flow))
	h.Write([]byte(strconv.FormatInt(k.owner, 10)))
	return s.shards[h.Sum32()%shardCount]
}

// Put stores payload for (flow, owner), replacing any prior entry and
// resetting the TTL. Last writer wins; there is no merging.
func (s *Store) Put(flow Flow, owner int64, payload any, ttl time.Duration) {
	k := key{flow: flow, owner: owner}
	sh := s.shardFor(k)
	now := s.now()

	sh.mu.Lock()
	sh.entries[k] = entry{
		payload:   payload,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	sh.mu.Unlock()
}

// Get returns the live payload for (flow, owner). Expired entries are
// invisible even before the sweeper removes them.
func (s *Store) Get(flow Flow, owner int64) (any, bool) {
	k := key{flow: flow, owner: owner}
	sh := s.shardFor(k)

	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[k]
	if !ok || s.now().After(e.expiresAt) {
		return nil, false
	}
	return e.payload, true
}

// Remove deletes the entry for (flow, owner) if present.
func (s *Store) Remove(flow Flow, owner int64) {
	k := key{flow: flow, owner: owner}
	sh := s.shardFor(k)

	sh.mu.Lock()
	delete(sh.entries, k)
	sh.mu.Unlock()
}

// Update applies fn to the current payload for (flow, owner) under the
// key's lock, so concurrent writers to the same flow cannot interleave.
// fn receives the live payload (nil if absent) and returns the replacement;
// returning nil deletes the entry. The TTL is reset on every update.
func (s *Store) Update(flow Flow, owner int64, ttl time.Duration, fn func(current any) any) {
	k := key{flow: flow, owner: owner}
	sh := s.shardFor(k)
	now := s.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	var current any
	if e, ok := sh.entries[k]; ok && !now.After(e.expiresAt) {
		current = e.payload
	}
	next := fn(current)
	if next == nil {
		delete(sh.entries, k)
		return
	}
	sh.entries[k] = entry{payload: next, createdAt: now, expiresAt: now.Add(ttl)}
}

// Sweep removes all expired entries and returns how many were deleted.
// Each shard is locked independently, so the sweep never stalls writers
// of unrelated keys.
func (s *Store) Sweep() int {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.entries {
			if now.After(e.expiresAt) {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	if removed > 0 && logger.Session != nil {
		logger.Session.Debug("session sweep",
			slog.String("event", "session.sweep"),
			slog.Int("count", removed),
		)
	}
	return removed
}

// Len reports the number of stored entries, including not-yet-swept
// expired ones. Diagnostics only.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.entries)
		sh.mu.Unlock()
	}
	return total
}
