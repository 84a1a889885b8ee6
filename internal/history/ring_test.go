package history

import (
	"fmt"
	"testing"

	"github.com/testando12/daytrade-bot/internal/model"
)

func rec(i int) model.CycleRecord {
	return model.CycleRecord{ID: fmt.Sprintf("c%d", i), PnL: float64(i)}
}

func TestRing_AppendAndAll(t *testing.T) {
	r := NewRing(3)
	for i := 1; i <= 2; i++ {
		r.Append(rec(i))
	}
	all := r.All()
	if len(all) != 2 || all[0].ID != "c1" || all[1].ID != "c2" {
		t.Errorf("unexpected contents: %v", all)
	}
}

func TestRing_EvictsOldest(t *testing.T) {
	r := NewRing(3)
	for i := 1; i <= 5; i++ {
		r.Append(rec(i))
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}
	all := r.All()
	if all[0].ID != "c3" || all[2].ID != "c5" {
		t.Errorf("expected [c3 c4 c5], got %v", all)
	}
}

func TestRing_Last(t *testing.T) {
	r := NewRing(10)
	for i := 1; i <= 6; i++ {
		r.Append(rec(i))
	}
	last := r.Last(2)
	if len(last) != 2 || last[0].ID != "c5" || last[1].ID != "c6" {
		t.Errorf("Last(2) = %v, want [c5 c6]", last)
	}
	if got := r.Last(100); len(got) != 6 {
		t.Errorf("Last over length should return everything, got %d", len(got))
	}
}

func TestRing_LoadTruncatesToCapacity(t *testing.T) {
	r := NewRing(3)
	records := make([]model.CycleRecord, 5)
	for i := range records {
		records[i] = rec(i + 1)
	}
	r.Load(records)
	all := r.All()
	if len(all) != 3 || all[0].ID != "c3" || all[2].ID != "c5" {
		t.Errorf("Load should keep the newest records: %v", all)
	}
}

func TestRing_DefaultCapacity(t *testing.T) {
	r := NewRing(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		r.Append(rec(i))
	}
	if r.Len() != DefaultCapacity {
		t.Errorf("len = %d, want %d", r.Len(), DefaultCapacity)
	}
}
