package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inferd/pkg/types"
)

func openStore(t *testing.T, quota int64) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), quota)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func mustPut(t *testing.T, s *Store, id string, size int, accessed time.Time) {
	t.Helper()
	err := s.Put(types.ModelRecord{
		ID:             id,
		DisplayName:    id,
		LastAccessedAt: accessed,
	}, bytes.Repeat([]byte{0xAB}, size))
	if err != nil {
		t.Fatalf("put %s: %v", id, err)
	}
}

func TestPutWritesArtifactAndMetadata(t *testing.T) {
	s := openStore(t, 0)
	mustPut(t, s, "m1", 128, time.Time{})

	rec, ok := s.Get("m1")
	if !ok {
		t.Fatalf("expected record for m1")
	}
	if rec.SizeBytes != 128 {
		t.Fatalf("expected size 128, got %d", rec.SizeBytes)
	}
	b, err := os.ReadFile(rec.StoragePath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if len(b) != 128 {
		t.Fatalf("artifact has %d bytes, want 128", len(b))
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "m1", metadataFile)); err != nil {
		t.Fatalf("metadata missing: %v", err)
	}
	if s.CurrentUsage() != 128 {
		t.Fatalf("ledger=%d want 128", s.CurrentUsage())
	}
}

func TestPutEnforcesQuotaWithLRUEviction(t *testing.T) {
	s := openStore(t, 300)
	mustPut(t, s, "old", 150, time.Unix(1, 0))
	mustPut(t, s, "new", 150, time.Unix(2, 0))
	// Third insert forces eviction of "old" (oldest access).
	mustPut(t, s, "third", 100, time.Unix(3, 0))

	if s.CurrentUsage() > 300 {
		t.Fatalf("ledger %d exceeds quota 300 after eviction", s.CurrentUsage())
	}
	if _, ok := s.Get("old"); ok {
		t.Fatalf("expected oldest record evicted")
	}
	if _, ok := s.Get("new"); !ok {
		t.Fatalf("recently accessed record was evicted")
	}
	if _, ok := s.Get("third"); !ok {
		t.Fatalf("the just-inserted record must never be evicted")
	}
	if got := s.EvictionsTotal(); got != 1 {
		t.Fatalf("evictions=%d want 1", got)
	}
}

func TestPutSingleArtifactLargerThanQuotaFails(t *testing.T) {
	s := openStore(t, 100)
	mustPut(t, s, "keep", 60, time.Unix(1, 0))
	before := s.CurrentUsage()

	err := s.Put(types.ModelRecord{ID: "huge"}, make([]byte, 200))
	if !IsQuotaExceeded(err) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	if s.CurrentUsage() != before {
		t.Fatalf("failed insert changed the ledger: %d -> %d", before, s.CurrentUsage())
	}
	if _, ok := s.Get("keep"); !ok {
		t.Fatalf("failed insert evicted an existing record")
	}
}

func TestEvictionTieBreakPrefersLargerRecord(t *testing.T) {
	s := openStore(t, 40 << 20)
	mustPut(t, s, "a", 10<<20, time.Unix(1, 0))
	mustPut(t, s, "b", 5<<20, time.Unix(2, 0))
	mustPut(t, s, "c", 20<<20, time.Unix(1, 0))
	// 35MB used; a 10MB insert forces one eviction. a and c tie on access
	// time; c is larger and must go first.
	mustPut(t, s, "d", 10<<20, time.Unix(3, 0))

	if _, ok := s.Get("c"); ok {
		t.Fatalf("expected c evicted first on tie (larger size)")
	}
	if _, ok := s.Get("a"); !ok {
		t.Fatalf("a should survive while c alone frees enough space")
	}
}

func TestGetDoesNotUpdateAccessTime(t *testing.T) {
	s := openStore(t, 0)
	accessed := time.Unix(42, 0).UTC()
	mustPut(t, s, "m1", 10, accessed)

	for i := 0; i < 3; i++ {
		rec, _ := s.Get("m1")
		if !rec.LastAccessedAt.Equal(accessed) {
			t.Fatalf("Get changed LastAccessedAt to %v", rec.LastAccessedAt)
		}
	}
}

func TestTouchUpdatesAndPersistsAccessTime(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mustPut(t, s, "m1", 10, time.Unix(1, 0))
	if err := s.Touch("m1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	rec, _ := s.Get("m1")
	if !rec.LastAccessedAt.After(time.Unix(1, 0)) {
		t.Fatalf("touch did not advance access time")
	}

	// Reopen: the touched timestamp must have been persisted.
	s2, err := Open(root, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec2, ok := s2.Get("m1")
	if !ok {
		t.Fatalf("record lost across reopen")
	}
	if !rec2.LastAccessedAt.Equal(rec.LastAccessedAt) {
		t.Fatalf("persisted access time %v != in-memory %v", rec2.LastAccessedAt, rec.LastAccessedAt)
	}

	if err := s.Touch("nope"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveDeletesArtifactAndShrinksLedger(t *testing.T) {
	s := openStore(t, 0)
	mustPut(t, s, "m1", 50, time.Time{})
	rec, _ := s.Get("m1")

	if err := s.Remove("m1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(rec.StoragePath); !os.IsNotExist(err) {
		t.Fatalf("artifact still on disk after remove")
	}
	if s.CurrentUsage() != 0 {
		t.Fatalf("ledger=%d want 0", s.CurrentUsage())
	}
	if err := s.Remove("m1"); !IsNotFound(err) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
}

func TestPutReplacesExistingRecord(t *testing.T) {
	s := openStore(t, 0)
	mustPut(t, s, "m1", 100, time.Time{})
	mustPut(t, s, "m1", 40, time.Time{})

	if s.Count() != 1 {
		t.Fatalf("expected one record, got %d", s.Count())
	}
	if s.CurrentUsage() != 40 {
		t.Fatalf("ledger=%d want 40 after replace", s.CurrentUsage())
	}
}

func TestOpenRebuildsLedgerFromDisk(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mustPut(t, s, "m1", 30, time.Time{})
	mustPut(t, s, "m2", 70, time.Time{})

	s2, err := Open(root, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if s2.Count() != 2 {
		t.Fatalf("expected 2 records after reopen, got %d", s2.Count())
	}
	if s2.CurrentUsage() != 100 {
		t.Fatalf("rebuilt ledger=%d want 100", s2.CurrentUsage())
	}
}

func TestAvailableSpace(t *testing.T) {
	s := openStore(t, 100)
	mustPut(t, s, "m1", 30, time.Time{})
	if got := s.AvailableSpace(); got != 70 {
		t.Fatalf("available=%d want 70", got)
	}
	unlimited := openStore(t, 0)
	if got := unlimited.AvailableSpace(); got != -1 {
		t.Fatalf("unlimited store should report -1, got %d", got)
	}
}

func TestVerifyReconcilesDrift(t *testing.T) {
	s := openStore(t, 0)
	mustPut(t, s, "m1", 100, time.Time{})
	rec, _ := s.Get("m1")

	// Truncate the artifact behind the store's back.
	if err := os.WriteFile(rec.StoragePath, make([]byte, 25), 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if err := s.Verify("m1"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	rec2, _ := s.Get("m1")
	if rec2.SizeBytes != 25 {
		t.Fatalf("size not reconciled: %d", rec2.SizeBytes)
	}
	if s.CurrentUsage() != 25 {
		t.Fatalf("ledger not reconciled: %d", s.CurrentUsage())
	}
}

func TestErrorPredicatesSeeWrappedErrors(t *testing.T) {
	nf := fmt.Errorf("resolve model: %w", ErrNotFound("m1"))
	if !IsNotFound(nf) {
		t.Fatalf("wrapped not-found not detected: %v", nf)
	}
	s := openStore(t, 10)
	err := s.Put(types.ModelRecord{ID: "big"}, make([]byte, 100))
	if err == nil {
		t.Fatal("expected quota error")
	}
	if wrapped := fmt.Errorf("store: %w", err); !IsQuotaExceeded(wrapped) {
		t.Fatalf("wrapped quota error not detected: %v", wrapped)
	}
	if IsNotFound(errors.New("boom")) || IsQuotaExceeded(errors.New("boom")) {
		t.Fatal("predicates matched an unrelated error")
	}
}

func TestPutReplaceLeavesNoResidue(t *testing.T) {
	s := openStore(t, 0)
	mustPut(t, s, "m1", 100, time.Time{})
	mustPut(t, s, "m1", 40, time.Time{})

	entries, err := os.ReadDir(s.Root())
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Fatalf("replace left %s behind", e.Name())
		}
	}
	rec, ok := s.Get("m1")
	if !ok {
		t.Fatal("record lost on replace")
	}
	b, err := os.ReadFile(rec.StoragePath)
	if err != nil || len(b) != 40 {
		t.Fatalf("artifact after replace: len=%d err=%v", len(b), err)
	}
}

func TestOpenSkipsInternalDirs(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mustPut(t, s, "m1", 30, time.Time{})

	// Simulate replace residue from an interrupted Put: a dot-prefixed copy
	// of the model directory, complete with metadata.
	leftover := filepath.Join(root, ".replace-m1")
	if err := os.MkdirAll(leftover, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"model.bin", "metadata.json"} {
		b, err := os.ReadFile(filepath.Join(root, "m1", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(leftover, name), b, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	s2, err := Open(root, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if s2.Count() != 1 {
		t.Fatalf("residue counted as a record: count=%d", s2.Count())
	}
	if s2.CurrentUsage() != 30 {
		t.Fatalf("residue inflated the ledger: %d", s2.CurrentUsage())
	}
}
