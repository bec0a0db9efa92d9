package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/docrev/internal/engine"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob(engine.OpStats, engine.DefaultOptions(), []Input{
		{Filename: "a.docx", Data: []byte("a")},
		{Data: []byte("b")},
	})
	if job.ID == "" {
		t.Fatal("expected job id")
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, job.Status)
	}
	snap := job.Snapshot()
	if len(snap.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(snap.Items))
	}
	if snap.Items[1].Filename != DefaultFilename {
		t.Errorf("expected default filename %q, got %q", DefaultFilename, snap.Items[1].Filename)
	}
	if snap.Items[0].ContentHash != ContentHashHex([]byte("a")) {
		t.Errorf("unexpected content hash %q", snap.Items[0].ContentHash)
	}

	other := NewJob(engine.OpStats, engine.DefaultOptions(), nil)
	if other.ID == job.ID {
		t.Error("expected distinct job ids")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{ID: "test-1", Status: StatusQueued, UpdatedAt: time.Now()}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusRunning, "processing"},
		{StatusCompleted, "done"},
	}
	for _, tr := range transitions {
		before := job.UpdatedAt
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

func TestJob_ItemOutcomes(t *testing.T) {
	job := NewJob(engine.OpAccept, engine.DefaultOptions(), []Input{
		{Filename: "ok.docx", Data: []byte("x")},
		{Filename: "bad.docx", Data: []byte("y")},
	})
	job.SetItemResult(0, &engine.Output{Operation: engine.OpAccept, Result: "r", Document: []byte("out")})
	job.SetItemError(1, errors.New("boom"))

	snap := job.Snapshot()
	if snap.Progress.ItemsProcessed != 2 || snap.Progress.ItemsFailed != 1 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	if !snap.Items[0].HasFile || snap.Items[1].HasFile {
		t.Errorf("unexpected has_file flags %+v", snap.Items)
	}
	if snap.Items[1].Error != "boom" {
		t.Errorf("expected item error %q, got %q", "boom", snap.Items[1].Error)
	}
	if len(snap.Progress.Errors) != 1 || snap.Progress.Errors[0] != "bad.docx: boom" {
		t.Errorf("unexpected errors %v", snap.Progress.Errors)
	}
	if got := job.finalStatus(); got != StatusPartial {
		t.Errorf("expected status %q, got %q", StatusPartial, got)
	}

	data, name, ok := job.ItemFile(0)
	if !ok || string(data) != "out" || name != "ok.docx" {
		t.Errorf("unexpected item file %q %q %v", data, name, ok)
	}
	if _, _, ok := job.ItemFile(1); ok {
		t.Error("expected no file for failed item")
	}
	if _, _, ok := job.ItemFile(5); ok {
		t.Error("expected no file for out of range index")
	}
}

func TestJob_FinalStatus(t *testing.T) {
	job := NewJob(engine.OpStats, engine.DefaultOptions(), []Input{{Data: []byte("a")}})
	job.SetItemError(0, errors.New("bad"))
	if got := job.finalStatus(); got != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, got)
	}

	job = NewJob(engine.OpStats, engine.DefaultOptions(), []Input{{Data: []byte("a")}})
	job.SetItemResult(0, &engine.Output{})
	if got := job.finalStatus(); got != StatusCompleted {
		t.Errorf("expected status %q, got %q", StatusCompleted, got)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if snap.Items == nil {
		t.Error("expected non-nil items slice in snapshot")
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
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)
	store.Put(&Job{ID: "old", UpdatedAt: time.Now()})

	time.Sleep(100 * time.Millisecond)

	store.Put(&Job{ID: "new", UpdatedAt: time.Now()})
	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}
