// Package engine runs document operations over raw .docx bytes: it opens the
// package, hands markup to the extractors or the mutator, and rebuilds the
// package when a mutation produced new markup.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docrev/internal/comment"
	"github.com/dgallion1/docrev/internal/docxpkg"
	"github.com/dgallion1/docrev/internal/metrics"
	"github.com/dgallion1/docrev/internal/mutate"
	"github.com/dgallion1/docrev/internal/revision"
	"github.com/dgallion1/docrev/internal/stats"
	"github.com/dgallion1/docrev/internal/wordml"
)

// RevisionsResult is the output of OpRevisions. Summary is null unless requested.
type RevisionsResult struct {
	Revisions []revision.Revision `json:"revisions"`
	Summary   *revision.Summary   `json:"summary"`
}

// CommentsResult is the output of OpComments. Summary is null unless requested.
type CommentsResult struct {
	Comments []comment.Comment `json:"comments"`
	Summary  *comment.Summary  `json:"summary"`
}

// MutationResult is the output of OpAccept and OpReject.
type MutationResult struct {
	Action     mutate.Action
	IDs        []string
	WarningIDs []string
	OutputName string
	// Document is the rebuilt package.
	Document []byte
}

// MarshalJSON names the id fields after the action: acceptedCount and
// acceptedIds, or rejectedCount and rejectedIds.
func (r MutationResult) MarshalJSON() ([]byte, error) {
	prefix := "accepted"
	if r.Action == mutate.Reject {
		prefix = "rejected"
	}
	return json.Marshal(map[string]any{
		prefix + "Count": len(r.IDs),
		prefix + "Ids":   r.IDs,
		"warningIds":     r.WarningIDs,
		"outputName":     r.OutputName,
	})
}

// IsInputError reports whether err was caused by the document rather than by
// the service.
func IsInputError(err error) bool {
	return errors.Is(err, docxpkg.ErrInvalidArchive) ||
		errors.Is(err, docxpkg.ErrInvalidPackage) ||
		errors.Is(err, docxpkg.ErrMissingDocument) ||
		errors.Is(err, wordml.ErrMalformed)
}

func openParts(data []byte) (*docxpkg.Package, docxpkg.Parts, error) {
	pkg, err := docxpkg.Open(data)
	if err != nil {
		return nil, docxpkg.Parts{}, err
	}
	parts, err := pkg.Parts()
	if err != nil {
		return nil, docxpkg.Parts{}, err
	}
	if err := parts.RequireDocument(); err != nil {
		return nil, docxpkg.Parts{}, err
	}
	return pkg, parts, nil
}

// ExtractRevisions lists the tracked changes of a document.
func ExtractRevisions(data []byte, opts Options) (*RevisionsResult, error) {
	_, parts, err := openParts(data)
	if err != nil {
		return nil, err
	}
	revs, err := revision.Parse(parts.Document, revision.Options{
		IncludeContext: opts.IncludeContext,
		ContextLength:  opts.ContextLength,
	})
	if err != nil {
		return nil, err
	}
	res := &RevisionsResult{Revisions: revs}
	if opts.IncludeSummary {
		s := revision.Summarize(revs)
		res.Summary = &s
	}
	return res, nil
}

// ExtractComments lists the comment threads of a document.
func ExtractComments(data []byte, opts Options) (*CommentsResult, error) {
	_, parts, err := openParts(data)
	if err != nil {
		return nil, err
	}
	comments, err := comment.Extract(parts.Comments, parts.CommentsExtended, parts.Document, comment.Options{
		IncludeReplies:  true,
		IncludeResolved: opts.IncludeResolved,
	})
	if err != nil {
		return nil, err
	}
	res := &CommentsResult{Comments: comments}
	if opts.IncludeSummary {
		s := comment.Summarize(comments)
		res.Summary = &s
	}
	return res, nil
}

// Stats computes combined revision and comment statistics. Resolved comments
// are always counted.
func Stats(data []byte, opts Options) (*stats.Document, error) {
	_, parts, err := openParts(data)
	if err != nil {
		return nil, err
	}
	revs, err := revision.Parse(parts.Document, revision.Options{})
	if err != nil {
		return nil, err
	}
	comments, err := comment.Extract(parts.Comments, parts.CommentsExtended, parts.Document, comment.DefaultOptions())
	if err != nil {
		return nil, err
	}
	doc := stats.Compute(revs, comments, opts.IncludeAuthorBreakdown)
	return &doc, nil
}

// Accept accepts every change (opts.All) or the listed ids in order, and
// rebuilds the package with the new document markup.
func Accept(data []byte, opts Options) (*MutationResult, error) {
	return mutateDocument(data, mutate.Accept, opts)
}

// Reject rejects every change (opts.All) or the listed ids in order.
func Reject(data []byte, opts Options) (*MutationResult, error) {
	return mutateDocument(data, mutate.Reject, opts)
}

func mutateDocument(data []byte, action mutate.Action, opts Options) (*MutationResult, error) {
	pkg, parts, err := openParts(data)
	if err != nil {
		return nil, err
	}
	res := mutate.Apply(parts.Document, action, opts.All, opts.IDs)
	out, err := pkg.Rebuild(docxpkg.Edits{
		Set: map[string]string{docxpkg.DocumentPath: res.XML},
	})
	if err != nil {
		return nil, fmt.Errorf("rebuild package: %w", err)
	}
	return &MutationResult{
		Action:     action,
		IDs:        res.ProcessedIDs,
		WarningIDs: res.WarningIDs,
		OutputName: opts.OutputName,
		Document:   out,
	}, nil
}

// Inspect describes the archive. It does not require the main document.
func Inspect(data []byte) (*docxpkg.Inspection, error) {
	pkg, err := docxpkg.Open(data)
	if err != nil {
		return nil, err
	}
	in := pkg.Inspect()
	return &in, nil
}

// Output is the result of Runner.Run. Document is set for mutating operations.
type Output struct {
	Operation Operation `json:"operation"`
	Result    any       `json:"result"`
	Document  []byte    `json:"-"`
}

// Runner runs operations with logging and metrics.
type Runner struct {
	log     *slog.Logger
	latency *metrics.LatencyWindow
}

// NewRunner creates a runner. latency may be nil.
func NewRunner(log *slog.Logger, latency *metrics.LatencyWindow) *Runner {
	return &Runner{log: log, latency: latency}
}

// Latency returns the runner's latency window, or nil.
func (r *Runner) Latency() *metrics.LatencyWindow {
	return r.latency
}

// Run executes op over data.
func (r *Runner) Run(ctx context.Context, op Operation, data []byte, opts Options) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !op.Valid() {
		return nil, fmt.Errorf("unknown operation %q", op)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := r.dispatch(op, data, opts)
	elapsed := time.Since(start)

	result := "ok"
	switch {
	case err != nil && IsInputError(err):
		result = "input_error"
	case err != nil:
		result = "error"
	}
	metrics.ObserveOperation(string(op), result, len(data), elapsed)
	if r.latency != nil {
		r.latency.Record(string(op), elapsed.Milliseconds())
	}

	if err != nil {
		r.log.Warn("operation failed", "operation", op, "bytes", len(data), "error", err)
		return nil, err
	}
	r.log.Debug("operation complete", "operation", op, "bytes", len(data), "duration_ms", elapsed.Milliseconds())
	return out, nil
}

func (r *Runner) dispatch(op Operation, data []byte, opts Options) (*Output, error) {
	out := &Output{Operation: op}
	if op.Mutates() {
		apply := Accept
		if op == OpReject {
			apply = Reject
		}
		res, err := apply(data, opts)
		if err != nil {
			return nil, err
		}
		metrics.ObserveMutation(res.Action.String(), len(res.IDs), len(res.WarningIDs))
		out.Result, out.Document = res, res.Document
		return out, nil
	}

	var err error
	switch op {
	case OpRevisions:
		out.Result, err = ExtractRevisions(data, opts)
	case OpComments:
		out.Result, err = ExtractComments(data, opts)
	case OpStats:
		out.Result, err = Stats(data, opts)
	case OpInspect:
		out.Result, err = Inspect(data)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
