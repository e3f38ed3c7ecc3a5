package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dgallion1/alertledger/internal/extract"
	"github.com/dgallion1/alertledger/internal/kvstore"
	"github.com/dgallion1/alertledger/internal/ledger"
	"github.com/dgallion1/alertledger/internal/notice"
)

const chaseAlertHTML = `<html><body><table>
<tr><td>Account ending in</td><td>(...1234)</td></tr>
<tr><td>Made on</td><td>Jul 15, 2024 at 7:02 PM ET</td></tr>
<tr><td>Description</td><td>Coffee Shop</td></tr>
<tr><td>Amount</td><td>$4.50</td></tr>
</table></body></html>`

type fakeAccounts map[string]string

func (f fakeAccounts) ResolveAccount(_ context.Context, suffix string) (string, error) {
	if id, ok := f[suffix]; ok {
		return id, nil
	}
	return "", kvstore.ErrAccountNotMapped
}

type fakeIndex struct {
	mu        sync.Mutex
	records   map[string]kvstore.DocumentRecord
	lookupErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: map[string]kvstore.DocumentRecord{}}
}

func (f *fakeIndex) LookupDocument(_ context.Context, hash string) (*kvstore.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	rec, ok := f.records[hash]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeIndex) RecordDocument(_ context.Context, hash string, rec kvstore.DocumentRecord, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[hash] = rec
	return nil
}

func (f *fakeIndex) ForgetDocument(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, hash)
	return nil
}

func (f *fakeIndex) get(hash string) (kvstore.DocumentRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[hash]
	return rec, ok
}

// fakeLedger rejects a repeated import id the way the real ledger does.
type fakeLedger struct {
	mu        sync.Mutex
	errs      []error
	posted    []notice.Entry
	importIDs []string
	calls     int
}

func (f *fakeLedger) PostTransaction(_ context.Context, _ string, e notice.Entry, importID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	if slices.Contains(f.importIDs, importID) {
		return "", ledger.ErrDuplicate
	}
	f.posted = append(f.posted, e)
	f.importIDs = append(f.importIDs, importID)
	return fmt.Sprintf("tx-%d", len(f.posted)), nil
}

type fakeOccurrences struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (f *fakeOccurrences) NextOccurrence(_ context.Context, account string, amount int64, date civil.Date, _ time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	key := kvstore.OccurrenceKey(account, amount, date)
	f.counts[key]++
	return f.counts[key], nil
}

type failingArchive struct{}

func (failingArchive) Store(context.Context, string, string, string, []byte, time.Time) (string, error) {
	return "", errors.New("bucket unavailable")
}

func (failingArchive) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	index       *fakeIndex
	ledger      *fakeLedger
	occurrences *fakeOccurrences
	worker      *Worker
}

func newHarness() *harness {
	h := &harness{
		index:       newFakeIndex(),
		ledger:      &fakeLedger{},
		occurrences: &fakeOccurrences{counts: map[string]int{}},
	}
	h.worker = NewWorker(Deps{
		Accounts:    fakeAccounts{"1234": "acct-uuid"},
		Documents:   h.index,
		Occurrences: h.occurrences,
		Ledger:      h.ledger,
		Retry:       fastRetry,
	}, discardLogger())
	return h
}

func TestWorker_PostsChaseAlert(t *testing.T) {
	h := newHarness()
	job := NewJob("Chase <no.reply.alerts@chase.com>", "alert.html", "text/html", []byte(chaseAlertHTML))
	h.worker.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (errors=%v)", snap.Status, snap.Errors)
	}
	if snap.Layout != "chase" || snap.AccountID != "acct-uuid" || snap.TransactionID != "tx-1" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.Entry == nil || snap.Entry.Amount != -4500 || snap.Entry.Description != "Coffee Shop" {
		t.Errorf("unexpected entry %+v", snap.Entry)
	}
	rec, ok := h.index.get(job.ContentHash)
	if !ok || rec.TransactionID != "tx-1" || rec.JobID != job.ID {
		t.Errorf("expected dedup record with transaction, got %+v (ok=%v)", rec, ok)
	}
}

func TestWorker_IncompleteDocument(t *testing.T) {
	h := newHarness()
	html := `<table><tr><td>Amount</td><td>$4.50</td></tr></table>`
	job := NewJob("chase.com", "alert.html", "text/html", []byte(html))
	h.worker.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusIncomplete {
		t.Fatalf("expected incomplete, got %s", snap.Status)
	}
	want := []extract.Field{extract.FieldAccount, extract.FieldPostedDate, extract.FieldDescription}
	if len(snap.Missing) != len(want) {
		t.Fatalf("expected missing %v, got %v", want, snap.Missing)
	}
	for i := range want {
		if snap.Missing[i] != want[i] {
			t.Errorf("missing[%d]: expected %s, got %s", i, want[i], snap.Missing[i])
		}
	}
	if h.ledger.calls != 0 {
		t.Errorf("expected no ledger calls, got %d", h.ledger.calls)
	}
}

func TestWorker_UnknownSender(t *testing.T) {
	h := newHarness()
	job := NewJob("alerts@example.com", "alert.html", "text/html", []byte(chaseAlertHTML))
	h.worker.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "parsing" {
		t.Errorf("expected failed in parsing, got %s/%s", snap.Status, snap.Phase)
	}
}

func TestWorker_UnsupportedFormat(t *testing.T) {
	h := newHarness()
	job := NewJob("chase.com", "alert.png", "image/png", []byte("x"))
	h.worker.Process(context.Background(), job)

	if snap := job.Snapshot(); snap.Status != StatusFailed || snap.Phase != "extracting" {
		t.Errorf("expected failed in extracting, got %s/%s", snap.Status, snap.Phase)
	}
}

func TestWorker_DuplicateDocument(t *testing.T) {
	h := newHarness()
	first := NewJob("chase.com", "alert.html", "text/html", []byte(chaseAlertHTML))
	h.worker.Process(context.Background(), first)

	second := NewJob("chase.com", "again.html", "text/html", []byte(chaseAlertHTML))
	h.worker.Process(context.Background(), second)

	if snap := second.Snapshot(); snap.Status != StatusDupSkipped {
		t.Errorf("expected duplicate_skipped, got %s", snap.Status)
	}
	if h.ledger.calls != 1 {
		t.Errorf("expected one ledger call, got %d", h.ledger.calls)
	}
}

func TestWorker_DedupLookupFailureProceeds(t *testing.T) {
	h := newHarness()
	h.index.lookupErr = errors.New("kv down")
	job := NewJob("chase.com", "alert.html", "text/html", []byte(chaseAlertHTML))
	h.worker.Process(context.Background(), job)

	if snap := job.Snapshot(); snap.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", snap.Status)
	}
}

func TestWorker_UnmappedAccount(t *testing.T) {
	h := newHarness()
	h.worker.deps.Accounts = fakeAccounts{}
	job := NewJob("chase.com", "alert.html", "text/html", []byte(chaseAlertHTML))
	h.worker.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "account" {
		t.Errorf("expected failed in account, got %s/%s", snap.Status, snap.Phase)
	}
	if h.ledger.calls != 0 {
		t.Errorf("expected no ledger calls, got %d", h.ledger.calls)
	}
}

func TestWorker_RetriesLedger(t *testing.T) {
	h := newHarness()
	h.ledger.errs = []error{&ledger.RetryableError{StatusCode: 503}, &ledger.RetryableError{StatusCode: 429}}
	job := NewJob("chase.com", "alert.html", "text/html", []byte(chaseAlertHTML))
	h.worker.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (errors=%v)", snap.Status, snap.Errors)
	}
	if snap.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", snap.Attempts)
	}
}

func TestWorker_LedgerFailureReleasesClaim(t *testing.T) {
	h := newHarness()
	h.ledger.errs = []error{errors.New("status 400")}
	job := NewJob("chase.com", "alert.html", "text/html", []byte(chaseAlertHTML))
	h.worker.Process(context.Background(), job)

	if snap := job.Snapshot(); snap.Status != StatusFailed || snap.Phase != "posting" {
		t.Errorf("expected failed in posting, got %s/%s", snap.Status, snap.Phase)
	}
	if _, ok := h.index.get(job.ContentHash); ok {
		t.Error("expected dedup claim to be released")
	}
}

func TestWorker_LedgerDuplicate(t *testing.T) {
	h := newHarness()
	h.ledger.errs = []error{ledger.ErrDuplicate}
	job := NewJob("chase.com", "alert.html", "text/html", []byte(chaseAlertHTML))
	h.worker.Process(context.Background(), job)

	if snap := job.Snapshot(); snap.Status != StatusDupSkipped {
		t.Errorf("expected duplicate_skipped, got %s", snap.Status)
	}
	if _, ok := h.index.get(job.ContentHash); !ok {
		t.Error("expected dedup claim to be kept")
	}
}

func TestWorker_ArchiveFailureIsNotFatal(t *testing.T) {
	h := newHarness()
	h.worker.deps.Archive = failingArchive{}
	job := NewJob("chase.com", "alert.html", "text/html", []byte(chaseAlertHTML))
	h.worker.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", snap.Status)
	}
	if len(snap.Errors) != 1 {
		t.Errorf("expected archive error recorded, got %v", snap.Errors)
	}
}

func TestWorker_SameAmountSameDayDifferentCharges(t *testing.T) {
	h := newHarness()
	coffee := NewJob("chase.com", "coffee.html", "text/html", []byte(chaseAlertHTML))
	bakery := NewJob("chase.com", "bakery.html", "text/html",
		[]byte(strings.Replace(chaseAlertHTML, "Coffee Shop", "Bakery", 1)))

	h.worker.Process(context.Background(), coffee)
	h.worker.Process(context.Background(), bakery)

	for _, job := range []*Job{coffee, bakery} {
		if snap := job.Snapshot(); snap.Status != StatusCompleted {
			t.Errorf("%s: expected completed, got %s (errors=%v)", job.Filename, snap.Status, snap.Errors)
		}
	}
	if len(h.ledger.importIDs) != 2 || h.ledger.importIDs[0] == h.ledger.importIDs[1] {
		t.Fatalf("expected two distinct import ids, got %v", h.ledger.importIDs)
	}
	if h.ledger.importIDs[1] != "ALERT:-4500:2024-07-15:2" {
		t.Errorf("expected second charge to use occurrence 2, got %q", h.ledger.importIDs[1])
	}
	rec, _ := h.index.get(bakery.ContentHash)
	if rec.ImportID != h.ledger.importIDs[1] {
		t.Errorf("expected dedup record to carry import id, got %+v", rec)
	}
}

func TestWorker_OccurrenceFailureFallsBackToFirst(t *testing.T) {
	h := newHarness()
	h.occurrences.err = errors.New("kv down")
	job := NewJob("chase.com", "alert.html", "text/html", []byte(chaseAlertHTML))
	h.worker.Process(context.Background(), job)

	if snap := job.Snapshot(); snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", snap.Status)
	}
	if h.ledger.importIDs[0] != "ALERT:-4500:2024-07-15:1" {
		t.Errorf("expected occurrence 1, got %q", h.ledger.importIDs[0])
	}
}
