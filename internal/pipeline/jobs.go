package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docrev/internal/engine"
)

// JobStatus represents the state of a batch job or one of its items.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// DefaultFilename names an item's output when the upload carried no name.
const DefaultFilename = "document.docx"

// Input is one uploaded document.
type Input struct {
	Filename string
	Data     []byte
}

// Item is one document in a batch job.
type Item struct {
	Filename    string
	ContentHash string
	Status      JobStatus
	Error       string
	Result      any

	data     []byte
	document []byte
}

// Job tracks one batch: a single operation run over several documents.
type Job struct {
	mu sync.Mutex

	ID        string           `json:"job_id"`
	Operation engine.Operation `json:"operation"`
	Options   engine.Options   `json:"options"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	items  []*Item
	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalItems     int      `json:"total_items"`
	ItemsProcessed int      `json:"items_processed"`
	ItemsFailed    int      `json:"items_failed"`
	Errors         []string `json:"errors"`
}

// NewJob creates a queued job with a fresh id.
func NewJob(op engine.Operation, opts engine.Options, inputs []Input) *Job {
	now := time.Now()
	j := &Job{
		ID:        uuid.NewString(),
		Operation: op,
		Options:   opts,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, in := range inputs {
		name := in.Filename
		if name == "" {
			name = DefaultFilename
		}
		j.items = append(j.items, &Item{
			Filename:    name,
			ContentHash: ContentHashHex(in.Data),
			Status:      StatusQueued,
			data:        in.Data,
		})
	}
	return j
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

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records a job-level error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

// ItemCount returns the number of documents in the job.
func (j *Job) ItemCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.items)
}

// itemData returns the input bytes of item i.
func (j *Job) itemData(i int) []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.items[i].data
}

// SetItemRunning marks item i as in progress.
func (j *Job) SetItemRunning(i int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.items[i].Status = StatusRunning
	j.UpdatedAt = time.Now()
}

// SetItemResult stores a successful output. The input bytes are released.
func (j *Job) SetItemResult(i int, out *engine.Output) {
	j.mu.Lock()
	defer j.mu.Unlock()
	it := j.items[i]
	it.Status = StatusCompleted
	it.Result = out.Result
	it.document = out.Document
	it.data = nil
	j.UpdatedAt = time.Now()
}

// SetItemError records a failed item. The input bytes are released.
func (j *Job) SetItemError(i int, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	it := j.items[i]
	it.Status = StatusFailed
	it.Error = err.Error()
	it.data = nil
	j.errors = append(j.errors, fmt.Sprintf("%s: %s", it.Filename, err))
	j.UpdatedAt = time.Now()
}

// ItemFile returns the rebuilt document of item i, if the operation produced one.
func (j *Job) ItemFile(i int) (data []byte, filename string, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if i < 0 || i >= len(j.items) || j.items[i].document == nil {
		return nil, "", false
	}
	return j.items[i].document, j.items[i].Filename, true
}

// finalStatus derives the job outcome from its items.
func (j *Job) finalStatus() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	failed := 0
	for _, it := range j.items {
		if it.Status != StatusCompleted {
			failed++
		}
	}
	switch {
	case len(j.items) > 0 && failed == len(j.items):
		return StatusFailed
	case failed > 0:
		return StatusPartial
	default:
		return StatusCompleted
	}
}

// ItemSnapshot is a JSON-safe copy of one item.
type ItemSnapshot struct {
	Index       int       `json:"index"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	Result      any       `json:"result,omitempty"`
	HasFile     bool      `json:"has_file"`
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string           `json:"job_id"`
	Operation engine.Operation `json:"operation"`
	Status    JobStatus        `json:"status"`
	Phase     string           `json:"phase"`
	Progress  Progress         `json:"progress"`
	Items     []ItemSnapshot   `json:"items"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.errors...)
	snap := JobSnapshot{
		ID:        j.ID,
		Operation: j.Operation,
		Status:    j.Status,
		Phase:     j.Phase,
		Progress:  Progress{TotalItems: len(j.items), Errors: errs},
		Items:     make([]ItemSnapshot, 0, len(j.items)),
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	for i, it := range j.items {
		switch it.Status {
		case StatusCompleted:
			snap.Progress.ItemsProcessed++
		case StatusFailed:
			snap.Progress.ItemsProcessed++
			snap.Progress.ItemsFailed++
		}
		snap.Items = append(snap.Items, ItemSnapshot{
			Index:       i,
			Filename:    it.Filename,
			ContentHash: it.ContentHash,
			Status:      it.Status,
			Error:       it.Error,
			Result:      it.Result,
			HasFile:     it.document != nil,
		})
	}
	return snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
