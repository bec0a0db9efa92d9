package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docrev/internal/engine"
	"github.com/dgallion1/docrev/internal/metrics"
)

type runFunc func(ctx context.Context, op engine.Operation, data []byte, opts engine.Options) (*engine.Output, error)

// Worker processes batch jobs.
type Worker struct {
	run         runFunc
	log         *slog.Logger
	concurrency int
}

func NewWorker(runner *engine.Runner, log *slog.Logger, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{run: runner.Run, log: log, concurrency: concurrency}
}

// Process runs the job's operation over every item. Item failures, panics
// included, are recorded on the item and do not stop the others.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "operation", job.Operation)
	job.SetStatus(StatusRunning, "processing")

	n := job.ItemCount()
	log.Info("batch started", "items", n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i := range n {
		g.Go(func() error {
			w.processItem(gctx, log, job, i)
			return nil
		})
	}
	_ = g.Wait()

	status := job.finalStatus()
	job.SetStatus(status, "done")
	metrics.ObserveJob(string(status))
	log.Info("batch finished", "status", status)
}

func (w *Worker) processItem(ctx context.Context, log *slog.Logger, job *Job, i int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("item panicked", "index", i, "panic", r)
			job.SetItemError(i, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		job.SetItemError(i, err)
		return
	}
	job.SetItemRunning(i)
	out, err := w.run(ctx, job.Operation, job.itemData(i), job.Options)
	if err != nil {
		log.Warn("item failed", "index", i, "error", err)
		job.SetItemError(i, err)
		return
	}
	job.SetItemResult(i, out)
}
