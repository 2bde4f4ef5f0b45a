// Package state owns every keyed store of the trust economy behind a single
// context object that is passed by reference into each component.
//
// Locking protocol:
//   - LockProduct serializes all operations on one product id. Settlement,
//     dispute and staking calls on the same product never interleave.
//   - LockFunds serializes custody accounting (reward pool math and the ledger
//     transfers that depend on it). It is always acquired after LockProduct.
//   - Map reads and writes are guarded internally and never block on either
//     of the locks above.
//
// Values returned by getters are copies; callers commit changes with the
// matching Put method while holding the product lock.
package state

import (
	"sort"
	"sync"

	"xdao.co/trustchain/domain"
)

// Store is the top-level context: stakeholders, products, distributor stakes,
// DKG bindings, disputes and reputation records keyed by address or product id.
type Store struct {
	mu           sync.RWMutex
	stakeholders map[domain.Address]domain.Stakeholder
	products     map[string]domain.Product
	distributors map[string][]domain.DistributorStake
	bindings     map[string]domain.DKGBinding
	disputes     map[string]domain.Dispute
	reputation   map[domain.Address]domain.ReputationRecord

	locksMu sync.Mutex
	locks   map[string]*productLock

	funds sync.Mutex
}

type productLock struct {
	mu   sync.Mutex
	refs int
}

func New() *Store {
	return &Store{
		stakeholders: make(map[domain.Address]domain.Stakeholder),
		products:     make(map[string]domain.Product),
		distributors: make(map[string][]domain.DistributorStake),
		bindings:     make(map[string]domain.DKGBinding),
		disputes:     make(map[string]domain.Dispute),
		reputation:   make(map[domain.Address]domain.ReputationRecord),
		locks:        make(map[string]*productLock),
	}
}

// LockProduct acquires the mutual-exclusion lock for id and returns its
// release function. Lock entries are reference counted and dropped when idle.
func (s *Store) LockProduct(id string) (unlock func()) {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &productLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

// LockFunds acquires the custody accounting lock.
func (s *Store) LockFunds() (unlock func()) {
	s.funds.Lock()
	return s.funds.Unlock
}

func (s *Store) Stakeholder(addr domain.Address) (domain.Stakeholder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.stakeholders[addr]
	return sh, ok
}

// InsertStakeholder stores sh unless the address already has a record.
func (s *Store) InsertStakeholder(sh domain.Stakeholder) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.stakeholders[sh.Address]; exists {
		return false
	}
	s.stakeholders[sh.Address] = sh
	return true
}

// PutStakeholder overwrites the balances of an existing stakeholder. The
// role of the stored record is preserved.
func (s *Store) PutStakeholder(sh domain.Stakeholder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.stakeholders[sh.Address]; ok {
		sh.Role = prev.Role
		sh.RegisteredAt = prev.RegisteredAt
	}
	s.stakeholders[sh.Address] = sh
}

func (s *Store) Product(id string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

// InsertProduct stores p and its binding unless the id is already taken.
func (s *Store) InsertProduct(p domain.Product, b domain.DKGBinding) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[p.ID]; exists {
		return false
	}
	s.products[p.ID] = p
	s.bindings[p.ID] = b
	return true
}

func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// ProductIDs returns every product id in lexicographic order.
func (s *Store) ProductIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.products))
	for id := range s.products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) Binding(id string) (domain.DKGBinding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bindings[id]
	return b, ok
}

// Distributors returns a copy of the stakes recorded for a product, in the
// order they were made.
func (s *Store) Distributors(id string) []domain.DistributorStake {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stakes := s.distributors[id]
	out := make([]domain.DistributorStake, len(stakes))
	copy(out, stakes)
	return out
}

func (s *Store) AppendDistributor(stake domain.DistributorStake) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distributors[stake.ProductID] = append(s.distributors[stake.ProductID], stake)
}

// Dispute returns the dispute for a product; a missing record has status
// DisputeNone.
func (s *Store) Dispute(id string) domain.Dispute {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.disputes[id]
	if !ok {
		return domain.Dispute{ProductID: id, Status: domain.DisputeNone}
	}
	return d
}

func (s *Store) PutDispute(d domain.Dispute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.Status == domain.DisputeNone {
		delete(s.disputes, d.ProductID)
		return
	}
	s.disputes[d.ProductID] = d
}

// Reputation returns the record for addr; a missing record is all zeros.
func (s *Store) Reputation(addr domain.Address) domain.ReputationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reputation[addr]
	if !ok {
		return domain.ReputationRecord{Address: addr}
	}
	return r
}

func (s *Store) PutReputation(r domain.ReputationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reputation[r.Address] = r
}

// HeldStakes sums every stake still in custody across all products.
func (s *Store) HeldStakes() (domain.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total domain.Amount
	for id, p := range s.products {
		if !p.HoldsStakes() {
			continue
		}
		var err error
		if total, err = total.Add(p.ManufacturerStake); err != nil {
			return 0, err
		}
		for _, d := range s.distributors[id] {
			if total, err = total.Add(d.Amount); err != nil {
				return 0, err
			}
		}
	}
	return total, nil
}
