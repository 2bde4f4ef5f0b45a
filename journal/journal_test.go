package journal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewEntryEncodesDetail(t *testing.T) {
	at := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	e, err := NewEntry(ActionSettle, "0xadmin", "P1", map[string]any{"tier": "high"}, at)
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	if e.ID == uuid.Nil {
		t.Fatal("missing id")
	}
	if e.At.Location() != time.UTC {
		t.Fatalf("at not UTC: %v", e.At)
	}
	var got map[string]string
	if err := json.Unmarshal(e.Detail, &got); err != nil || got["tier"] != "high" {
		t.Fatalf("detail = %s (%v)", e.Detail, err)
	}
	if _, err := NewEntry(" ", "a", "b", nil, at); err == nil {
		t.Fatal("expected error for empty action")
	}
}

func TestMemoryListFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Unix(1_700_000_000, 0)
	for i, target := range []string{"P1", "P2", "P1", "P1"} {
		action := ActionCreateProduct
		if i > 0 {
			action = ActionJoinDistributor
		}
		e, err := NewEntry(action, "actor", target, nil, base.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("NewEntry: %v", err)
		}
		if err := m.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := m.List(ctx, Filter{Target: "P1"})
	if err != nil || len(got) != 3 {
		t.Fatalf("List(P1) = %d entries (%v)", len(got), err)
	}
	if got[0].Action != ActionCreateProduct {
		t.Fatalf("first action = %s", got[0].Action)
	}
	got, _ = m.List(ctx, Filter{Action: ActionJoinDistributor, Limit: 2})
	if len(got) != 2 {
		t.Fatalf("limited list = %d", len(got))
	}
	if err := m.Append(ctx, Entry{Action: "x"}); err == nil {
		t.Fatal("expected error for nil id")
	}
}
