// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinjoin

import (
	"context"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/container/lru"
	"github.com/lightningnetwork/lnd/ticker"
)

// DefaultBanLimit is the number of bans kept per coordinator when no limit
// is given.
//
// The limit bounds memory, not correctness: once a coordinator's table is
// full, the least recently touched ban is evicted even if it is still
// active, and the evicted outpoint becomes a candidate again. Evictions are
// logged as warnings. A coordinator that refuses the coin again simply bans
// it again.
const DefaultBanLimit = 10_000

// BanTable tracks outpoints that a coordinator has temporarily refused. Bans
// are scoped per coordinator and expire on their own; expired entries are
// only removed when they are looked at or purged.
//
// A BanTable is safe for concurrent use.
type BanTable struct {
	limit uint32

	mu   sync.RWMutex
	bans map[string]*lru.Map[wire.OutPoint, time.Time]
}

// NewBanTable returns an empty ban table keeping at most limit bans per
// coordinator. A zero limit selects DefaultBanLimit.
func NewBanTable(limit uint32) *BanTable {
	if limit == 0 {
		limit = DefaultBanLimit
	}

	return &BanTable{
		limit: limit,
		bans:  make(map[string]*lru.Map[wire.OutPoint, time.Time]),
	}
}

// coordinator returns the ban map of a coordinator, creating it if create is
// set.
func (b *BanTable) coordinator(name string,
	create bool) *lru.Map[wire.OutPoint, time.Time] {

	b.mu.RLock()
	m, ok := b.bans[name]
	b.mu.RUnlock()

	if ok || !create {
		return m
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Another caller may have raced us here.
	if m, ok := b.bans[name]; ok {
		return m
	}

	m = lru.NewMap[wire.OutPoint, time.Time](b.limit)
	b.bans[name] = m

	return m
}

// Ban excludes the outpoint from rounds of the given coordinator until the
// given time. Banning with a time in the past lifts any existing ban.
func (b *BanTable) Ban(coordinator string, op wire.OutPoint, until time.Time) {
	ttl := time.Until(until)
	if ttl <= 0 {
		if m := b.coordinator(coordinator, false); m != nil {
			m.Delete(op)
		}

		return
	}

	m := b.coordinator(coordinator, true)
	full := m.Len() >= b.limit

	evicted := m.PutWithTTL(op, until, ttl)
	if evicted == 0 {
		return
	}

	if full {
		log.Warnf("Ban table of coordinator %s is full (limit %d), "+
			"evicted %d bans", coordinator, b.limit, evicted)

		return
	}

	log.Debugf("Dropped %d expired bans of coordinator %s", evicted,
		coordinator)
}

// Unban lifts the ban on the outpoint for the given coordinator.
func (b *BanTable) Unban(coordinator string, op wire.OutPoint) {
	if m := b.coordinator(coordinator, false); m != nil {
		m.Delete(op)
	}
}

// IsBanned reports whether the outpoint is banned for the coordinator and the
// ban has not expired yet.
func (b *BanTable) IsBanned(coordinator string, op wire.OutPoint) bool {
	m := b.coordinator(coordinator, false)
	if m == nil {
		return false
	}

	return m.Exists(op)
}

// BannedUntil returns the expiry of an active ban on the outpoint.
func (b *BanTable) BannedUntil(coordinator string,
	op wire.OutPoint) (time.Time, bool) {

	m := b.coordinator(coordinator, false)
	if m == nil {
		return time.Time{}, false
	}

	return m.Peek(op)
}

// Purge removes the expired bans of a coordinator and returns how many were
// removed.
func (b *BanTable) Purge(coordinator string) uint32 {
	m := b.coordinator(coordinator, false)
	if m == nil {
		return 0
	}

	return m.EvictExpiredNow()
}

// Len returns the number of bans held for a coordinator, including expired
// bans that have not been purged yet.
func (b *BanTable) Len(coordinator string) uint32 {
	m := b.coordinator(coordinator, false)
	if m == nil {
		return 0
	}

	return m.Len()
}

// PurgeAll removes the expired bans of every coordinator and returns how
// many were removed.
func (b *BanTable) PurgeAll() uint32 {
	b.mu.RLock()
	names := make([]string, 0, len(b.bans))
	for name := range b.bans {
		names = append(names, name)
	}
	b.mu.RUnlock()

	var purged uint32
	for _, name := range names {
		purged += b.Purge(name)
	}

	return purged
}

// RunPurger purges expired bans on every tick until the context is done.
// The ticker is resumed on entry and stopped on return.
func (b *BanTable) RunPurger(ctx context.Context, t ticker.Ticker) {
	t.Resume()
	defer t.Stop()

	for {
		select {
		case <-t.Ticks():
			if purged := b.PurgeAll(); purged > 0 {
				log.Debugf("Purged %d expired bans", purged)
			}

		case <-ctx.Done():
			return
		}
	}
}
