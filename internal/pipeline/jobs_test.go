package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/manualrag/internal/chunker"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	h1 := ContentHashHex([]byte("aaa"))
	h2 := ContentHashHex([]byte("bbb"))
	if h1 == h2 {
		t.Error("expected different hashes for different inputs")
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	// SHA-256 of empty input is well-known.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusParsing, "parsing document"},
		{StatusChunking, "splitting into chunks"},
		{StatusEmbedding, "embedding sections"},
		{StatusStoring, "storing sections"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_SetStatusFailed(t *testing.T) {
	job := &Job{
		ID:        "test-fail",
		Status:    StatusEmbedding,
		UpdatedAt: time.Now(),
	}
	job.SetStatus(StatusFailed, "embedding")
	if job.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, job.Status)
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("parsing: bad file")
	job.AddError("storing: index closed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "parsing: bad file" {
		t.Errorf("expected first error %q, got %q", "parsing: bad file", snap.Progress.Errors[0])
	}
}

func TestJob_AddEmbedded(t *testing.T) {
	job := &Job{ID: "embed-test", UpdatedAt: time.Now()}
	job.AddEmbedded(32)
	job.AddEmbedded(5)

	snap := job.Snapshot()
	if snap.Progress.SectionsEmbedded != 37 {
		t.Errorf("expected 37 embedded sections, got %d", snap.Progress.SectionsEmbedded)
	}
}

func TestJob_SetChunkStats(t *testing.T) {
	job := &Job{ID: "stats-test", UpdatedAt: time.Now()}
	job.SetChunkStats(chunker.Stats{Sections: 4, TablesSummarized: 2, ImagesSummarized: 1, DuplicateImages: 3, SummaryFailures: 1})
	job.SetStored(4)

	p := job.Snapshot().Progress
	if p.Sections != 4 || p.TablesSummarized != 2 || p.ImagesSummarized != 1 || p.DuplicateImages != 3 || p.SummaryFailures != 1 {
		t.Errorf("unexpected progress %+v", p)
	}
	if p.SectionsStored != 4 {
		t.Errorf("expected 4 stored sections, got %d", p.SectionsStored)
	}
}

func TestNewJob_DocIDFromContent(t *testing.T) {
	a := NewJob("pump.pdf", []byte("same bytes"), "")
	b := NewJob("pump-copy.pdf", []byte("same bytes"), "")
	if a.DocID != b.DocID {
		t.Errorf("expected identical doc IDs for identical content, got %q and %q", a.DocID, b.DocID)
	}
	if len(a.DocID) != 16 {
		t.Errorf("expected 16-char doc ID, got %q", a.DocID)
	}
	if a.ID == b.ID {
		t.Error("expected distinct job IDs")
	}
	if a.Status != StatusQueued {
		t.Errorf("expected queued, got %q", a.Status)
	}

	c := NewJob("pump.pdf", []byte("same bytes"), "pump-manual")
	if c.DocID != "pump-manual" {
		t.Errorf("expected supplied doc ID, got %q", c.DocID)
	}
}

func TestSectionID_Stable(t *testing.T) {
	if SectionID("doc", 0) != SectionID("doc", 0) {
		t.Error("expected stable section IDs")
	}
	if SectionID("doc", 0) == SectionID("doc", 1) {
		t.Error("expected distinct IDs per position")
	}
	if SectionID("doc", 0) == SectionID("other", 0) {
		t.Error("expected distinct IDs per document")
	}
}

func TestJob_FileData(t *testing.T) {
	data := []byte("file content here")
	job := NewJob("data.txt", data, "")
	got := job.FileData()
	if string(got) != string(data) {
		t.Errorf("expected file data %q, got %q", data, got)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
