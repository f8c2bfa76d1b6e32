package analysis

import (
	"errors"
	"fmt"

	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
)

// ErrInvalidStructure indicates an LLM reply that does not match the
// assessment schema.
var ErrInvalidStructure = errors.New("invalid LLM response structure")

// AnalysisError reports a failed analysis. It wraps the transport, parse,
// or validation failure that caused it so callers can still reach typed
// errors such as *llmerrors.RateLimitError through errors.As.
type AnalysisError struct {
	Op  string // stage that failed: "assess", "parse", "prompt"
	Err error
}

// Error implements error.
func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return "analysis failed: " + e.Op
	}
	return fmt.Sprintf("analysis failed during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AnalysisError) Unwrap() error { return e.Err }

func analysisErr(op string, err error) error {
	return &AnalysisError{Op: op, Err: err}
}

// IsRateLimited reports whether err stems from a provider or local rate
// limit, meaning the caller should back off rather than give up.
func IsRateLimited(err error) bool {
	return llmerrors.IsRateLimitError(err)
}

// EnrichmentWarning describes a best-effort enrichment step that could not
// run. The assessment it accompanies is returned unenhanced.
type EnrichmentWarning struct {
	Err error
}

// Error implements error.
func (w *EnrichmentWarning) Error() string {
	return fmt.Sprintf("assessment enrichment skipped: %v", w.Err)
}

// Unwrap returns the underlying cause.
func (w *EnrichmentWarning) Unwrap() error { return w.Err }
