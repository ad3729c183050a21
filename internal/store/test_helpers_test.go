package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/pending"
	"github.com/roach88/paywatch/internal/record"
)

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testJob() payload.JobPosting {
	return payload.JobPosting{
		Title:       "Plutus Engineer",
		Company:     "Lace Labs",
		Description: "Write validators.",
		Location:    "Remote",
		Category:    "engineering",
		ApplyURL:    "https://example.com/apply",
		ListingDays: 30,
	}
}

// createTestOperation creates a pending job operation submitted at testEpoch+offset.
func createTestOperation(t *testing.T, owner, ref string, offset time.Duration) pending.Operation {
	t.Helper()
	op, err := pending.New(owner, ref, testJob(), testEpoch.Add(offset))
	if err != nil {
		t.Fatalf("pending.New() failed: %v", err)
	}
	return op
}

// createTestRecord creates a system-of-record entry for p paid by ref.
func createTestRecord(t *testing.T, id, ref string, p payload.Payload) record.Record {
	t.Helper()
	hash, err := payload.Hash(p)
	if err != nil {
		t.Fatalf("payload.Hash() failed: %v", err)
	}
	return record.Record{
		ID:          id,
		Kind:        p.Kind(),
		Owner:       "addr_test1owner",
		TxRef:       ref,
		Payload:     p,
		PayloadHash: hash,
		CreatedAt:   testEpoch,
	}
}
