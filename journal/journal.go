// Package journal records committed state transitions as an append-only
// audit log.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Actions written by the trustchain facade.
const (
	ActionRegister        = "stakeholder.register"
	ActionCreateProduct   = "product.create"
	ActionJoinDistributor = "product.join"
	ActionRecordScore     = "product.score"
	ActionSettle          = "product.settle"
	ActionFundPool        = "pool.fund"
	ActionOpenDispute     = "dispute.open"
	ActionResolveDispute  = "dispute.resolve"
	ActionAttestor        = "admin.attestor"
	ActionUpdater         = "admin.updater"
)

// Entry is one audit record.
type Entry struct {
	ID     uuid.UUID       `json:"id"`
	Action string          `json:"action"`
	Actor  string          `json:"actor"`
	Target string          `json:"target,omitempty"`
	Detail json.RawMessage `json:"detail,omitempty"`
	At     time.Time       `json:"at"`
}

// NewEntry assigns a random id and encodes detail as JSON.
func NewEntry(action, actor, target string, detail any, at time.Time) (Entry, error) {
	if strings.TrimSpace(action) == "" {
		return Entry{}, errors.New("journal: action is required")
	}
	var raw json.RawMessage
	if detail != nil {
		b, err := json.Marshal(detail)
		if err != nil {
			return Entry{}, fmt.Errorf("journal: encode detail: %w", err)
		}
		raw = b
	}
	return Entry{
		ID:     uuid.New(),
		Action: action,
		Actor:  actor,
		Target: target,
		Detail: raw,
		At:     at.UTC(),
	}, nil
}

// Filter narrows List. Zero fields match everything; Limit <= 0 is unbounded.
type Filter struct {
	Target string
	Action string
	Limit  int
}

func (f Filter) matches(e Entry) bool {
	if f.Target != "" && e.Target != f.Target {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	return true
}

// Journal is implemented by Memory and sqlite.Store.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	// List returns matching entries oldest first.
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// Memory is an in-process Journal.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		return errors.New("journal: entry id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) List(ctx context.Context, f Filter) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
