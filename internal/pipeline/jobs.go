package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/manualrag/internal/chunker"
	"github.com/google/uuid"
)

// JobStatus represents the state of an ingestion job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusParsing   JobStatus = "parsing"
	StatusChunking  JobStatus = "chunking"
	StatusEmbedding JobStatus = "embedding"
	StatusStoring   JobStatus = "storing"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial" // stored, but some summaries were unavailable
)

// Job tracks the state of a single manual ingestion.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	DocID string `json:"doc_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	Elements         int      `json:"elements"`
	Sections         int      `json:"sections"`
	TablesSummarized int      `json:"tables_summarized"`
	ImagesSummarized int      `json:"images_summarized"`
	DuplicateImages  int      `json:"duplicate_images"`
	SummaryFailures  int      `json:"summary_failures"`
	SectionsEmbedded int      `json:"sections_embedded"`
	SectionsStored   int      `json:"sections_stored"`
	Errors           []string `json:"errors"`
}

// NewJob creates a queued job for a manual. The doc ID is derived from the
// content so re-ingesting the same file replaces its sections; a non-empty
// docID overrides it.
func NewJob(filename string, data []byte, docID string) *Job {
	now := time.Now()
	hash := ContentHashHex(data)
	if docID == "" {
		docID = DocIDFromHash(hash)
	}
	return &Job{
		ID:          uuid.NewString(),
		DocID:       docID,
		Status:      StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		ContentHash: hash,
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

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetElements records how many elements the parser produced.
func (j *Job) SetElements(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Elements = n
	j.UpdatedAt = time.Now()
}

// SetChunkStats copies the chunking outcome into the progress.
func (j *Job) SetChunkStats(st chunker.Stats) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Sections = st.Sections
	j.Progress.TablesSummarized = st.TablesSummarized
	j.Progress.ImagesSummarized = st.ImagesSummarized
	j.Progress.DuplicateImages = st.DuplicateImages
	j.Progress.SummaryFailures = st.SummaryFailures
	j.UpdatedAt = time.Now()
}

// AddEmbedded atomically adds to the embedded section count.
func (j *Job) AddEmbedded(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.SectionsEmbedded += n
	j.UpdatedAt = time.Now()
}

// SetStored records how many sections were written to the index.
func (j *Job) SetStored(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.SectionsStored = n
	j.UpdatedAt = time.Now()
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	DocID     string    `json:"doc_id"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Filename  string    `json:"filename"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:        j.ID,
		DocID:     j.DocID,
		Status:    j.Status,
		Phase:     j.Phase,
		Filename:  j.Filename,
		Progress:  p,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// DocIDFromHash shortens a content hash to a document ID.
func DocIDFromHash(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}

// sectionNamespace scopes section UUIDs.
var sectionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("manualrag/section"))

// SectionID is the stable ID of the position-th section of a manual.
func SectionID(docID string, position int) string {
	return uuid.NewSHA1(sectionNamespace, []byte(fmt.Sprintf("%s:%d", docID, position))).String()
}
