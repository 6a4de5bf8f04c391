package storage

import (
	"bytes"
	"fmt"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SnapshotStore {
	t.Helper()
	s, err := New(3, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSnapshotStore_SaveAndLatest(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	payload := []byte("date,model name,machine id,max retained balls\n2024/01/01,M1,1,1200\n")

	if err := s.SaveSnapshot("musashisakai", payload, now); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	snap, err := s.LatestSnapshot("musashisakai")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a snapshot, got nil")
	}
	if !bytes.Equal(snap.Payload, payload) {
		t.Error("payload round-trip mismatch")
	}
	if snap.FetchedAt.UnixNano() != now.UnixNano() {
		t.Errorf("fetched_at = %v, want %v", snap.FetchedAt, now)
	}
}

func TestSnapshotStore_LatestWins(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()
	for i := 0; i < 3; i++ {
		payload := []byte(fmt.Sprintf("payload-%d", i))
		if err := s.SaveSnapshot("storeA", payload, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
	}
	snap, err := s.LatestSnapshot("storeA")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if string(snap.Payload) != "payload-2" {
		t.Errorf("latest payload = %q, want payload-2", snap.Payload)
	}
}

func TestSnapshotStore_NoSnapshot(t *testing.T) {
	s := newTestStore(t)
	snap, err := s.LatestSnapshot("unknown")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot, got %+v", snap)
	}
}

func TestSnapshotStore_PrunesHistory(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()
	for i := 0; i < 5; i++ {
		if err := s.SaveSnapshot("storeA", []byte(fmt.Sprintf("p%d", i)), base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
	}
	n, err := s.CountSnapshots("storeA")
	if err != nil {
		t.Fatalf("CountSnapshots: %v", err)
	}
	if n != 3 {
		t.Errorf("snapshot count = %d, want 3 (keep cap)", n)
	}
}

func TestSnapshotStore_Prune(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()
	for i := 0; i < 3; i++ {
		if err := s.SaveSnapshot("storeA", []byte(fmt.Sprintf("p%d", i)), base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
	}
	if err := s.Prune("storeA", 1); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	n, err := s.CountSnapshots("storeA")
	if err != nil {
		t.Fatalf("CountSnapshots: %v", err)
	}
	if n != 1 {
		t.Errorf("snapshot count = %d, want 1", n)
	}
	snap, err := s.LatestSnapshot("storeA")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if string(snap.Payload) != "p2" {
		t.Errorf("surviving payload = %q, want the newest", snap.Payload)
	}
}

func TestSnapshotStore_PerStoreIsolation(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	if err := s.SaveSnapshot("storeA", []byte("a"), now); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := s.SaveSnapshot("storeB", []byte("b"), now); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	snap, err := s.LatestSnapshot("storeA")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if string(snap.Payload) != "a" {
		t.Errorf("storeA payload = %q, want a", snap.Payload)
	}
}

func TestSnapshotStore_RejectsEmptyPayload(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveSnapshot("storeA", nil, time.Now()); err == nil {
		t.Error("expected error for empty payload")
	}
	if err := s.SaveSnapshot("", []byte("x"), time.Now()); err == nil {
		t.Error("expected error for empty store name")
	}
}
