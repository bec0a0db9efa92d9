package engine

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dgallion1/docrev/internal/config"
)

// Operation names a document operation.
type Operation string

const (
	OpRevisions Operation = "revisions"
	OpComments  Operation = "comments"
	OpStats     Operation = "stats"
	OpAccept    Operation = "accept"
	OpReject    Operation = "reject"
	OpInspect   Operation = "inspect"
)

// Operations lists every operation in a stable order.
var Operations = []Operation{OpRevisions, OpComments, OpStats, OpAccept, OpReject, OpInspect}

// Mutates reports whether op produces a new document.
func (op Operation) Mutates() bool {
	return op == OpAccept || op == OpReject
}

// Options carries every per-request setting. Fields an operation does not use
// are ignored. Decode requests onto DefaultOptions so absent keys keep their
// defaults.
type Options struct {
	IncludeContext         bool     `json:"includeContext"`
	ContextLength          int      `json:"contextLength" validate:"gte=0,lte=10000"`
	IncludeSummary         bool     `json:"includeSummary"`
	IncludeResolved        bool     `json:"includeResolved"`
	IncludeAuthorBreakdown bool     `json:"includeAuthorBreakdown"`
	All                    bool     `json:"all"`
	IDs                    []string `json:"ids" validate:"omitempty,dive,required"`
	OutputName             string   `json:"outputName" validate:"required,max=128"`
}

// DefaultOptions returns the options used when a caller sets nothing.
func DefaultOptions() Options {
	return OptionsFrom(config.Default().Defaults)
}

// OptionsFrom builds options from configured defaults.
func OptionsFrom(d config.Defaults) Options {
	return Options{
		IncludeContext:         d.IncludeContext,
		ContextLength:          d.ContextLength,
		IncludeSummary:         d.IncludeSummary,
		IncludeResolved:        d.IncludeResolved,
		IncludeAuthorBreakdown: d.IncludeAuthorBreakdown,
		OutputName:             d.OutputName,
	}
}

// optionsValidate is the validator instance for request options.
var optionsValidate *validator.Validate

func init() {
	optionsValidate = validator.New()
	_ = optionsValidate.RegisterValidation("operation", validateOperation)
}

func validateOperation(fl validator.FieldLevel) bool {
	return Operation(fl.Field().String()).Valid()
}

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	for _, known := range Operations {
		if op == known {
			return true
		}
	}
	return false
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if err := optionsValidate.Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// ValidateStruct runs the options validator over any request type, so callers
// can tag fields with `validate:"operation"`.
func ValidateStruct(v any) error {
	return optionsValidate.Struct(v)
}
