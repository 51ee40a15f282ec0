// Package store persists model artifacts and their metadata under a models
// root, one directory per model id, and enforces a total byte quota with
// least-recently-used eviction. Reads do not count as accesses; access is
// recorded explicitly via Touch so that listing models never perturbs the
// eviction ranking.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"inferd/pkg/types"
)

const (
	artifactFile = "model.bin"
	metadataFile = "metadata.json"
)

// Store is the disk-backed model registry. All exported methods are safe for
// concurrent use; the mutex is the store's single serialization point and is
// never shared with other components.
type Store struct {
	mu        sync.Mutex
	root      string
	quota     int64
	records   map[string]*types.ModelRecord
	usedBytes int64
	evictions uint64
}

// Open scans root for model directories and rebuilds the quota ledger from
// their metadata files. Directories without readable metadata, or whose
// artifact is gone, are skipped. quotaBytes <= 0 means unlimited.
func Open(root string, quotaBytes int64) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create models root: %w", err)
	}
	s := &Store{root: abs, quota: quotaBytes, records: make(map[string]*types.ModelRecord)}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read models root: %w", err)
	}
	for _, e := range entries {
		// Dot-prefixed directories are staging or replace residue from an
		// interrupted Put; never count them against the quota.
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		rec, err := readMetadata(filepath.Join(abs, e.Name(), metadataFile))
		if err != nil {
			continue
		}
		if _, err := os.Stat(rec.StoragePath); err != nil {
			continue
		}
		r := rec
		s.records[r.ID] = &r
		s.usedBytes += r.SizeBytes
	}
	return s, nil
}

// Root returns the models root directory.
func (s *Store) Root() string { return s.root }

// Put writes artifact and metadata atomically (staged in a temp directory,
// then renamed into place), replacing any existing record for the same id.
// If the new ledger total exceeds the quota, records are evicted oldest
// LastAccessedAt first (larger SizeBytes first on ties) until the total
// fits; the record being inserted is never evicted. Fails with a
// quota-exceeded error only when the single artifact alone cannot fit.
func (s *Store) Put(rec types.ModelRecord, artifact []byte) error {
	if rec.ID == "" {
		return fmt.Errorf("empty model id")
	}
	if strings.ContainsAny(rec.ID, `/\`) || rec.ID != filepath.Base(rec.ID) {
		return fmt.Errorf("invalid model id %q", rec.ID)
	}
	size := int64(len(artifact))
	if s.quota > 0 && size > s.quota {
		return quotaExceededError{id: rec.ID, size: size, quota: s.quota}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	rec.SizeBytes = size
	if rec.DownloadedAt.IsZero() {
		rec.DownloadedAt = now
	}
	if rec.LastAccessedAt.IsZero() {
		rec.LastAccessedAt = now
	}
	dir := filepath.Join(s.root, rec.ID)
	rec.StoragePath = filepath.Join(dir, artifactFile)

	// Stage the whole model directory, then swap it in.
	tmp, err := os.MkdirTemp(s.root, ".put-"+rec.ID+"-")
	if err != nil {
		return fmt.Errorf("stage dir: %w", err)
	}
	defer os.RemoveAll(tmp)
	if err := os.WriteFile(filepath.Join(tmp, artifactFile), artifact, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := writeMetadata(filepath.Join(tmp, metadataFile), rec); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	// Move anything already at dir aside rather than deleting it, so a
	// failed commit can put the previous model back. The ledger is only
	// touched after the commit rename succeeds.
	var backup string
	if _, err := os.Stat(dir); err == nil {
		backup = filepath.Join(s.root, ".replace-"+rec.ID)
		_ = os.RemoveAll(backup)
		if err := os.Rename(dir, backup); err != nil {
			return fmt.Errorf("replace %s: %w", rec.ID, err)
		}
	}
	if err := os.Rename(tmp, dir); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dir)
		}
		return fmt.Errorf("commit %s: %w", rec.ID, err)
	}
	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	if old, ok := s.records[rec.ID]; ok {
		s.usedBytes -= old.SizeBytes
		delete(s.records, rec.ID)
	}
	s.records[rec.ID] = &rec
	s.usedBytes += size

	if s.quota > 0 {
		s.evictUntilUnderQuota(rec.ID)
	}
	return nil
}

// Get returns the record for id without updating its access time.
func (s *Store) Get(id string) (types.ModelRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return types.ModelRecord{}, false
	}
	return *r, true
}

// Touch records an explicit access, moving id to the most-recent end of the
// eviction ranking and persisting the new timestamp.
func (s *Store) Touch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return notFoundError{id: id}
	}
	r.LastAccessedAt = time.Now().UTC()
	return writeMetadata(filepath.Join(s.root, id, metadataFile), *r)
}

// Remove deletes the artifact and metadata for id and shrinks the ledger.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

func (s *Store) removeLocked(id string) error {
	r, ok := s.records[id]
	if !ok {
		return notFoundError{id: id}
	}
	if err := os.RemoveAll(filepath.Join(s.root, id)); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	s.usedBytes -= r.SizeBytes
	if s.usedBytes < 0 {
		s.usedBytes = 0
	}
	delete(s.records, id)
	return nil
}

// ListAll returns a copy of every record. Ordering is unspecified; callers
// sort as needed.
func (s *Store) ListAll() []types.ModelRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ModelRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	return out
}

// CurrentUsage returns the ledger total in bytes.
func (s *Store) CurrentUsage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usedBytes
}

// AvailableSpace returns quota minus usage, or -1 when the quota is unlimited.
func (s *Store) AvailableSpace() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quota <= 0 {
		return -1
	}
	free := s.quota - s.usedBytes
	if free < 0 {
		free = 0
	}
	return free
}

// QuotaBytes returns the configured quota (0 = unlimited).
func (s *Store) QuotaBytes() int64 { return s.quota }

// Count returns the number of records on disk.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// EvictionsTotal returns how many records have been evicted to satisfy the
// quota since Open.
func (s *Store) EvictionsTotal() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictions
}

// Verify re-scans the artifact on disk and reconciles SizeBytes and the
// ledger when they have drifted (e.g. a truncated file). Metadata is trusted
// on every other path.
func (s *Store) Verify(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return notFoundError{id: id}
	}
	fi, err := os.Stat(r.StoragePath)
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}
	if fi.Size() == r.SizeBytes {
		return nil
	}
	s.usedBytes += fi.Size() - r.SizeBytes
	r.SizeBytes = fi.Size()
	return writeMetadata(filepath.Join(s.root, id, metadataFile), *r)
}

// Prune evicts oldest-first until the ledger fits the quota. It is the
// periodic maintenance entry point; Put performs the same pass inline.
func (s *Store) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quota > 0 {
		s.evictUntilUnderQuota("")
	}
}

// evictUntilUnderQuota removes records in ascending LastAccessedAt order
// (ties broken by larger SizeBytes first, to free more per eviction) until
// the ledger fits. keep is never evicted. Caller holds s.mu.
func (s *Store) evictUntilUnderQuota(keep string) {
	for s.usedBytes > s.quota {
		victim := s.pickVictimLocked(keep)
		if victim == "" {
			return
		}
		if err := s.removeLocked(victim); err != nil {
			return
		}
		s.evictions++
		evictionsTotal.Inc()
	}
}

func (s *Store) pickVictimLocked(keep string) string {
	candidates := make([]*types.ModelRecord, 0, len(s.records))
	for id, r := range s.records {
		if id == keep {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.LastAccessedAt.Equal(b.LastAccessedAt) {
			return a.LastAccessedAt.Before(b.LastAccessedAt)
		}
		return a.SizeBytes > b.SizeBytes
	})
	return candidates[0].ID
}

func readMetadata(path string) (types.ModelRecord, error) {
	var rec types.ModelRecord
	b, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, fmt.Errorf("decode metadata: %w", err)
	}
	if rec.ID == "" {
		return rec, fmt.Errorf("metadata missing id")
	}
	return rec, nil
}

// writeMetadata writes the record as JSON via write-then-rename so a crash
// never leaves a half-written metadata file next to a live artifact.
func writeMetadata(path string, rec types.ModelRecord) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
