package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dgallion1/alertledger/internal/archive"
	"github.com/dgallion1/alertledger/internal/extract"
	"github.com/dgallion1/alertledger/internal/kvstore"
	"github.com/dgallion1/alertledger/internal/ledger"
	"github.com/dgallion1/alertledger/internal/notice"
)

// AccountResolver maps a card suffix to a ledger account id.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, suffix string) (string, error)
}

// DocumentIndex remembers which documents were already handled.
type DocumentIndex interface {
	LookupDocument(ctx context.Context, sha256Hex string) (*kvstore.DocumentRecord, error)
	RecordDocument(ctx context.Context, sha256Hex string, rec kvstore.DocumentRecord, ttl time.Duration) error
	ForgetDocument(ctx context.Context, sha256Hex string) error
}

// OccurrenceCounter numbers distinct charges that share an account, amount
// and day, so the ledger does not mistake the second one for a replay.
type OccurrenceCounter interface {
	NextOccurrence(ctx context.Context, account string, amount int64, date civil.Date, ttl time.Duration) (int, error)
}

// Poster writes an entry to the ledger.
type Poster interface {
	PostTransaction(ctx context.Context, accountID string, e notice.Entry, importID string) (string, error)
}

// Deps are the collaborators a worker talks to.
type Deps struct {
	Accounts    AccountResolver
	Documents   DocumentIndex
	Occurrences OccurrenceCounter // Optional; nil means occurrence 1
	Ledger      Poster
	Archive     archive.Archiver
	DedupTTL    time.Duration
	Retry       RetryPolicy
}

// Worker processes a single document job.
type Worker struct {
	deps Deps
	log  *slog.Logger
}

func NewWorker(deps Deps, log *slog.Logger) *Worker {
	if deps.Archive == nil {
		deps.Archive = archive.Nop{}
	}
	if deps.Retry.Attempts == 0 {
		deps.Retry = DefaultRetry
	}
	return &Worker{deps: deps, log: log}
}

// Process runs the full pipeline for a job and leaves it in a terminal state.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "sender", job.Sender, "filename", job.Filename)

	// Phase 1: parse
	job.SetStatus(StatusParsing, "selecting layout")
	layout, err := extract.ForSender(job.Sender)
	if err != nil {
		w.fail(log, job, "parsing", err)
		return
	}
	job.SetLayout(layout.Name)
	log = log.With("layout", layout.Name)

	data := job.FileData()
	uri, err := w.deps.Archive.Store(ctx, job.ID, job.Filename, job.ContentType, data, job.CreatedAt)
	if err != nil {
		log.Warn("archive failed, proceeding", "error", err)
		job.AddError(fmt.Sprintf("archive: %s", err))
	} else if uri != "" {
		job.SetArchiveURI(uri)
	}

	job.SetStatus(StatusParsing, "extracting")
	ext, err := ExtractWithLayout(layout, job.Filename, job.ContentType, data)
	if missing := extract.MissingFields(err); missing != nil {
		log.Info("document incomplete", "missing", missing, "chunks", len(ext.Chunks))
		job.SetMissing(missing)
		job.SetStatus(StatusIncomplete, "extracting")
		return
	}
	if err != nil {
		w.fail(log, job, "extracting", err)
		return
	}
	job.SetEntry(ext.Entry)
	log.Info("entry extracted", "account", ext.Entry.Account, "amount", ext.Entry.Amount, "chunks", len(ext.Chunks))

	// Phase 2: resolve
	job.SetStatus(StatusResolving, "dedup")
	prior, err := w.deps.Documents.LookupDocument(ctx, job.ContentHash)
	if err != nil {
		log.Warn("dedup check failed, proceeding", "error", err)
	} else if prior != nil {
		log.Info("duplicate document, skipping", "prior_job_id", prior.JobID)
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	}

	job.SetStatus(StatusResolving, "account")
	accountID, err := w.deps.Accounts.ResolveAccount(ctx, ext.Entry.Account)
	if err != nil {
		w.fail(log, job, "account", err)
		return
	}
	job.SetAccountID(accountID)

	// Claim the hash before posting so a concurrent copy is skipped.
	claim := kvstore.DocumentRecord{JobID: job.ID, RecordedAt: time.Now().UTC()}
	if err := w.deps.Documents.RecordDocument(ctx, job.ContentHash, claim, w.deps.DedupTTL); err != nil {
		log.Warn("dedup claim failed, proceeding", "error", err)
	}

	// Phase 3: post
	job.SetStatus(StatusPosting, "posting")
	occurrence := 1
	if w.deps.Occurrences != nil {
		n, err := w.deps.Occurrences.NextOccurrence(ctx, ext.Entry.Account, ext.Entry.Amount, ext.Entry.PostedDate, w.deps.DedupTTL)
		if err != nil {
			log.Warn("occurrence count failed, using 1", "error", err)
		} else {
			occurrence = n
		}
	}
	importID := ledger.ImportID(ext.Entry, occurrence)
	claim.ImportID = importID
	var txID string
	err = w.deps.Retry.Do(ctx, func(attempt int) error {
		job.IncrAttempts()
		var err error
		txID, err = w.deps.Ledger.PostTransaction(ctx, accountID, ext.Entry, importID)
		if err != nil && IsRetryable(err) {
			log.Warn("retryable ledger error", "attempt", attempt, "error", err)
		}
		return err
	})
	switch {
	case errors.Is(err, ledger.ErrDuplicate):
		log.Info("ledger already holds entry", "import_id", importID)
		job.SetStatus(StatusDupSkipped, "posting")
		return
	case err != nil:
		if ferr := w.deps.Documents.ForgetDocument(context.WithoutCancel(ctx), job.ContentHash); ferr != nil {
			log.Warn("dedup release failed", "error", ferr)
		}
		w.fail(log, job, "posting", err)
		return
	}

	job.SetTransactionID(txID)
	claim.TransactionID = txID
	if err := w.deps.Documents.RecordDocument(ctx, job.ContentHash, claim, w.deps.DedupTTL); err != nil {
		log.Warn("dedup record failed", "error", err)
	}
	log.Info("entry posted", "transaction_id", txID)
	job.SetStatus(StatusCompleted, "done")
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase string, err error) {
	log.Error("job failed", "phase", phase, "error", err)
	job.AddError(fmt.Sprintf("%s: %s", phase, err))
	job.SetStatus(StatusFailed, phase)
}
