// Package reputation keeps per-stakeholder outcome counters. Counters only
// grow, and only authorized updaters may grow them.
package reputation

import (
	"sort"
	"sync"
	"time"

	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/state"
)

// Update names the stakeholders credited in one committed outcome.
type Update struct {
	Successes []domain.Address
	Flags     []domain.Address
}

// Ledger is the ReputationLedger over a shared state.Store.
type Ledger struct {
	store *state.Store
	admin domain.Address
	now   func() time.Time

	mu       sync.Mutex
	updaters map[domain.Address]struct{}
}

func New(store *state.Store, admin domain.Address, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, admin: admin, now: now, updaters: make(map[domain.Address]struct{})}
}

// AuthorizeUpdater allows updater to record outcomes. Idempotent.
func (l *Ledger) AuthorizeUpdater(caller, updater domain.Address) error {
	if caller != l.admin {
		return domain.ErrNotAdmin
	}
	if updater.IsZero() {
		return domain.ErrInvalidAddress
	}
	l.mu.Lock()
	l.updaters[updater] = struct{}{}
	l.mu.Unlock()
	return nil
}

// RevokeUpdater removes updater. Idempotent.
func (l *Ledger) RevokeUpdater(caller, updater domain.Address) error {
	if caller != l.admin {
		return domain.ErrNotAdmin
	}
	l.mu.Lock()
	delete(l.updaters, updater)
	l.mu.Unlock()
	return nil
}

func (l *Ledger) IsUpdater(addr domain.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.updaters[addr]
	return ok
}

// Updaters lists authorized updaters in sorted order.
func (l *Ledger) Updaters() []domain.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Address, 0, len(l.updaters))
	for a := range l.updaters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Apply records every success and flag in u, or nothing if updater is not
// authorized. Repeated addresses are counted once per list. The returned
// undo restores the touched records exactly; callers use it when a later
// step of the same operation fails.
func (l *Ledger) Apply(updater domain.Address, u Update) (undo func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.updaters[updater]; !ok {
		return func() {}, domain.ErrNotUpdater
	}
	successes, flags := dedupe(u.Successes), dedupe(u.Flags)
	prev := make(map[domain.Address]domain.ReputationRecord, len(successes)+len(flags))
	for _, addr := range append(append([]domain.Address(nil), successes...), flags...) {
		if _, ok := prev[addr]; !ok {
			prev[addr] = l.store.Reputation(addr)
		}
	}

	now := l.now().UTC()
	for _, addr := range successes {
		r := l.store.Reputation(addr)
		r.SuccessfulProducts++
		r.LastUpdated = now
		l.store.PutReputation(r)
	}
	for _, addr := range flags {
		r := l.store.Reputation(addr)
		r.FlaggedProducts++
		r.LastUpdated = now
		l.store.PutReputation(r)
	}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for _, r := range prev {
			l.store.PutReputation(r)
		}
	}, nil
}

// RecordSuccess increments the successful count of addr.
func (l *Ledger) RecordSuccess(updater, addr domain.Address) error {
	_, err := l.Apply(updater, Update{Successes: []domain.Address{addr}})
	return err
}

// RecordFlag increments the flagged count of addr.
func (l *Ledger) RecordFlag(updater, addr domain.Address) error {
	_, err := l.Apply(updater, Update{Flags: []domain.Address{addr}})
	return err
}

// Reputation returns the record of addr; unknown addresses read as zero.
func (l *Ledger) Reputation(addr domain.Address) domain.ReputationRecord {
	return l.store.Reputation(addr)
}

func dedupe(addrs []domain.Address) []domain.Address {
	seen := make(map[domain.Address]struct{}, len(addrs))
	out := addrs[:0:0]
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
