package prudp

import (
	"testing"
	"time"
)

func TestTableCreateOnSynUniqueSignatures(t *testing.T) {
	tbl := NewTable()
	seen := make(map[uint32]bool)
	for i := 0; i < 50; i++ {
		rec, err := tbl.CreateOnSyn(time.Now())
		if err != nil {
			t.Fatalf("CreateOnSyn: %v", err)
		}
		if seen[rec.ServerSignature] {
			t.Fatalf("duplicate server_signature %d", rec.ServerSignature)
		}
		seen[rec.ServerSignature] = true
	}
}

func TestTablePromoteMovesPendingToLive(t *testing.T) {
	tbl := NewTable()
	rec, err := tbl.CreateOnSyn(time.Now())
	if err != nil {
		t.Fatalf("CreateOnSyn: %v", err)
	}

	if _, ok := tbl.Get(rec.ServerSignature); ok {
		t.Fatal("record should not be live before Promote")
	}

	promoted, err := tbl.Promote(rec.ServerSignature)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if promoted != rec {
		t.Fatal("Promote should return the same record created at SYN")
	}
	if _, ok := tbl.GetPending(rec.ServerSignature); ok {
		t.Fatal("record should no longer be pending after Promote")
	}
	if _, ok := tbl.Get(rec.ServerSignature); !ok {
		t.Fatal("record should be live after Promote")
	}
}

func TestTablePromoteUnknownSignature(t *testing.T) {
	tbl := NewTable()
	if _, err := tbl.Promote(12345); err == nil {
		t.Fatal("expected Promote of an unknown server_signature to fail")
	}
}

func TestTableTakeoverPrincipalEvictsPriorConnection(t *testing.T) {
	tbl := NewTable()

	first, _ := tbl.CreateOnSyn(time.Now())
	first.PrincipalID = 42
	first.HasPrincipal = true
	tbl.Promote(first.ServerSignature)

	second, _ := tbl.CreateOnSyn(time.Now())
	second.PrincipalID = 42
	second.HasPrincipal = true
	tbl.Promote(second.ServerSignature)

	evicted := tbl.TakeoverPrincipal(42, second)
	if evicted != first {
		t.Fatalf("expected the first connection to be evicted, got %+v", evicted)
	}
	if _, ok := tbl.Get(first.ServerSignature); ok {
		t.Fatal("evicted connection should no longer be live")
	}
	if _, ok := tbl.Get(second.ServerSignature); !ok {
		t.Fatal("the keep connection should remain live")
	}
}

func TestTableSweepEvictsIdleConnections(t *testing.T) {
	tbl := NewTable()
	base := time.Now()

	stale, _ := tbl.CreateOnSyn(base.Add(-2 * time.Minute))
	stale.LastSeen = base.Add(-2 * time.Minute)
	tbl.Promote(stale.ServerSignature)

	fresh, _ := tbl.CreateOnSyn(base)
	fresh.LastSeen = base
	tbl.Promote(fresh.ServerSignature)

	var evicted []*ConnectionRecord
	tbl.Sweep(base, time.Minute, func(rec *ConnectionRecord) {
		evicted = append(evicted, rec)
	})

	if len(evicted) != 1 || evicted[0] != stale {
		t.Fatalf("expected exactly the stale record to be evicted, got %+v", evicted)
	}
	if _, ok := tbl.Get(fresh.ServerSignature); !ok {
		t.Fatal("fresh connection should survive the sweep")
	}
}

func TestReassembleOrdersFragmentsAndAppendsTerminator(t *testing.T) {
	rec := &ConnectionRecord{FragmentBuffer: map[uint8][]byte{
		1: []byte("A"),
		2: []byte("B"),
		3: []byte("C"),
	}}

	got, err := rec.reassemble([]byte("D"))
	if err != nil {
		t.Fatalf("reassemble: %v", err)
	}
	if string(got) != "ABCD" {
		t.Fatalf("got %q, want %q", got, "ABCD")
	}
	if len(rec.FragmentBuffer) != 0 {
		t.Fatal("fragment buffer should be cleared after reassembly")
	}
}

func TestReassembleAbortsOnGap(t *testing.T) {
	rec := &ConnectionRecord{FragmentBuffer: map[uint8][]byte{
		1: []byte("A"),
		3: []byte("C"),
	}}

	if _, err := rec.reassemble([]byte("D")); err == nil {
		t.Fatal("expected a gap in fragment ids to abort reassembly")
	}
	if len(rec.FragmentBuffer) != 0 {
		t.Fatal("fragment buffer should be cleared even when reassembly aborts")
	}
}

func TestAppendFragmentEnforcesSoftCap(t *testing.T) {
	rec := &ConnectionRecord{FragmentBuffer: map[uint8][]byte{}}
	err := rec.appendFragment(1, make([]byte, 100), 50)
	if err == nil {
		t.Fatal("expected exceeding the soft cap to error")
	}
	if len(rec.FragmentBuffer) != 0 {
		t.Fatal("fragment buffer should be cleared when the soft cap is exceeded")
	}
}
