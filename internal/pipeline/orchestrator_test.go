package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docrev/internal/config"
	"github.com/dgallion1/docrev/internal/docxpkg"
	"github.com/dgallion1/docrev/internal/docxtest"
	"github.com/dgallion1/docrev/internal/engine"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.WorkerCount = 2
	cfg.MaxQueueSize = 4
	cfg.BatchConcurrency = 2
	return cfg
}

func waitDone(t *testing.T, job *Job) JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := job.Snapshot()
		switch snap.Status {
		case StatusCompleted, StatusPartial, StatusFailed:
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", job.ID)
	return JobSnapshot{}
}

func TestOrchestrator_BatchAccept(t *testing.T) {
	o := NewOrchestrator(testConfig(), engine.NewRunner(testLogger(), nil), testLogger())
	o.Start(context.Background())
	defer o.Stop()

	opts := engine.DefaultOptions()
	opts.All = true
	job := NewJob(engine.OpAccept, opts, []Input{
		{Filename: "one.docx", Data: docxtest.Sample(t)},
		{Filename: "broken.docx", Data: []byte("not a zip")},
		{Filename: "two.docx", Data: docxtest.Sample(t)},
	})
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := waitDone(t, job)
	if snap.Status != StatusPartial {
		t.Fatalf("expected status %q, got %q", StatusPartial, snap.Status)
	}
	if snap.Items[1].Status != StatusFailed || snap.Items[1].Error == "" {
		t.Errorf("expected broken item to fail with an error, got %+v", snap.Items[1])
	}
	for _, i := range []int{0, 2} {
		if snap.Items[i].Status != StatusCompleted || !snap.Items[i].HasFile {
			t.Errorf("expected item %d completed with file, got %+v", i, snap.Items[i])
		}
	}

	data, name, ok := job.ItemFile(2)
	if !ok || name != "two.docx" {
		t.Fatalf("expected file for item 2, got name=%q ok=%v", name, ok)
	}
	if _, err := docxpkg.Open(data); err != nil {
		t.Errorf("expected rebuilt package to open, got %v", err)
	}
	if o.GetJob(job.ID) != job {
		t.Error("expected job to be retrievable by id")
	}
}

func TestOrchestrator_AllItemsFail(t *testing.T) {
	o := NewOrchestrator(testConfig(), engine.NewRunner(testLogger(), nil), testLogger())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob(engine.OpStats, engine.DefaultOptions(), []Input{{Data: []byte("nope")}})
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if snap := waitDone(t, job); snap.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, snap.Status)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	// Not started, so nothing drains the queue.
	o := NewOrchestrator(cfg, engine.NewRunner(testLogger(), nil), testLogger())

	first := NewJob(engine.OpStats, engine.DefaultOptions(), nil)
	if err := o.Submit(first); err != nil {
		t.Fatalf("expected first submit to succeed, got %v", err)
	}
	second := NewJob(engine.OpStats, engine.DefaultOptions(), nil)
	if err := o.Submit(second); err == nil {
		t.Fatal("expected queue full error")
	}
	if second.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", second.Snapshot().Status)
	}
	if errs := second.Snapshot().Progress.Errors; len(errs) != 1 || !strings.Contains(errs[0], "job queue is full") {
		t.Errorf("expected queue full error on job, got %v", errs)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}

func TestWorker_PanicBecomesItemFailure(t *testing.T) {
	w := NewWorker(engine.NewRunner(testLogger(), nil), testLogger(), 2)
	run := w.run
	w.run = func(ctx context.Context, op engine.Operation, data []byte, opts engine.Options) (*engine.Output, error) {
		if string(data) == "boom" {
			panic("corrupt input")
		}
		return run(ctx, op, data, opts)
	}

	job := NewJob(engine.OpStats, engine.DefaultOptions(), []Input{
		{Filename: "ok.docx", Data: docxtest.Sample(t)},
		{Filename: "bad.docx", Data: []byte("boom")},
	})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Fatalf("expected status %q, got %q", StatusPartial, snap.Status)
	}
	if snap.Items[0].Status != StatusCompleted {
		t.Errorf("expected first item completed, got %q", snap.Items[0].Status)
	}
	if snap.Items[1].Status != StatusFailed || !strings.Contains(snap.Items[1].Error, "panic: corrupt input") {
		t.Errorf("expected second item to fail with the panic, got %+v", snap.Items[1])
	}
}

func TestOrchestrator_CommentRangeWithSplitInvalidUTF8(t *testing.T) {
	o := NewOrchestrator(testConfig(), engine.NewRunner(testLogger(), nil), testLogger())
	o.Start(context.Background())
	defer o.Stop()

	chunk := "<w:r><w:t>a\xe2</w:t></w:r><w:r><w:t>\x82\xacb</w:t></w:r>"
	doc := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p>` +
		`<w:commentRangeStart w:id="0"/>` + strings.Repeat(chunk, 40) + `<w:commentRangeEnd w:id="0"/>` +
		`</w:p></w:body></w:document>`
	data := docxtest.Build(t,
		docxtest.Part{Name: "[Content_Types].xml", Content: docxtest.ContentTypes},
		docxtest.Part{Name: "word/document.xml", Content: doc},
		docxtest.Part{Name: "word/comments.xml", Content: docxtest.SampleComments},
	)

	job := NewJob(engine.OpComments, engine.DefaultOptions(), []Input{
		{Filename: "odd.docx", Data: data},
		{Filename: "plain.docx", Data: docxtest.Sample(t)},
	})
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if snap := waitDone(t, job); snap.Status != StatusCompleted {
		t.Errorf("expected status %q, got %q (%v)", StatusCompleted, snap.Status, snap.Progress.Errors)
	}
}
