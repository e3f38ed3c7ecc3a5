package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/alertledger/internal/extract"
	"github.com/dgallion1/alertledger/internal/notice"
)

// JobStatus represents the state of an ingestion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusResolving  JobStatus = "resolving"
	StatusPosting    JobStatus = "posting"
	StatusCompleted  JobStatus = "completed"
	StatusIncomplete JobStatus = "incomplete"
	StatusDupSkipped JobStatus = "duplicate_skipped"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions will happen.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusIncomplete, StatusDupSkipped, StatusFailed:
		return true
	}
	return false
}

// Job tracks the state of a single alert document.
type Job struct {
	mu sync.Mutex

	ID          string
	Sender      string
	Filename    string
	ContentType string
	ContentHash string

	Status JobStatus
	Phase  string

	CreatedAt time.Time
	UpdatedAt time.Time

	fileData      []byte
	layout        string
	entry         *notice.Entry
	missing       []extract.Field
	accountID     string
	transactionID string
	archiveURI    string
	attempts      int
	errors        []string
}

// NewJob creates a queued job for one uploaded document.
func NewJob(sender, filename, contentType string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.NewString(),
		Sender:      sender,
		Filename:    filename,
		ContentType: contentType,
		ContentHash: ContentHashHex(data),
		Status:      StatusQueued,
		Phase:       "queued",
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes finished jobs that have not changed within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Terminal() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically. The raw document is released
// once the job reaches a terminal status.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
	if status.Terminal() {
		j.fileData = nil
	}
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

func (j *Job) SetLayout(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.layout = name
}

func (j *Job) SetEntry(e notice.Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entry = &e
}

func (j *Job) SetMissing(fields []extract.Field) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.missing = append([]extract.Field(nil), fields...)
}

func (j *Job) SetArchiveURI(uri string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.archiveURI = uri
}

func (j *Job) SetAccountID(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.accountID = id
}

func (j *Job) SetTransactionID(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.transactionID = id
	j.UpdatedAt = time.Now()
}

// IncrAttempts counts one ledger call.
func (j *Job) IncrAttempts() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts++
	j.UpdatedAt = time.Now()
}

// FileData returns the raw document bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID            string          `json:"job_id"`
	Sender        string          `json:"sender"`
	Filename      string          `json:"filename"`
	ContentHash   string          `json:"content_hash"`
	Status        JobStatus       `json:"status"`
	Phase         string          `json:"phase"`
	Layout        string          `json:"layout,omitempty"`
	Entry         *notice.Entry   `json:"entry,omitempty"`
	Missing       []extract.Field `json:"missing_fields,omitempty"`
	AccountID     string          `json:"account_id,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	ArchiveURI    string          `json:"archive_uri,omitempty"`
	Attempts      int             `json:"attempts"`
	Errors        []string        `json:"errors"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.errors...)
	var entry *notice.Entry
	if j.entry != nil {
		e := *j.entry
		entry = &e
	}
	return JobSnapshot{
		ID:            j.ID,
		Sender:        j.Sender,
		Filename:      j.Filename,
		ContentHash:   j.ContentHash,
		Status:        j.Status,
		Phase:         j.Phase,
		Layout:        j.layout,
		Entry:         entry,
		Missing:       append([]extract.Field(nil), j.missing...),
		AccountID:     j.accountID,
		TransactionID: j.transactionID,
		ArchiveURI:    j.archiveURI,
		Attempts:      j.attempts,
		Errors:        errs,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
