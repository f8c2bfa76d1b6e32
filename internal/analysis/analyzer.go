// Package analysis turns an examiner model's JSON reply into a validated,
// score-consistent, and locally enriched assessment.
//
// The pipeline for one response is:
//
//  1. build the examiner prompts for the task type
//  2. call the Assessor (the LLM collaborator)
//  3. strictly decode the reply, failing closed on any schema violation
//  4. validate score consistency and correct the assessment if needed
//  5. append recommendations from local text metrics (best effort)
//
// Any failure in steps 1-3 is returned as *AnalysisError. Enrichment
// failures are reported through logs only and never abort the pipeline.
package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ahrav/go-ielts/internal/criteria"
	"github.com/ahrav/go-ielts/internal/domain"
	"github.com/ahrav/go-ielts/internal/scoring"
)

// Assessor is the LLM collaborator. It sends the prompts to the examiner
// model with schema as the requested output format and returns the raw
// JSON reply. Implementations must honour ctx cancellation and must not
// retry on their own.
type Assessor interface {
	Assess(ctx context.Context, systemPrompt, userPrompt string, schema json.RawMessage) (json.RawMessage, error)
}

// Metadata keys stamped by the analyzer.
const (
	MetaAnalysisDuration    = "analysis_duration"
	MetaEnhancedWithMetrics = "enhanced_with_metrics"
	MetaScoreCorrections    = "score_corrections"
	MetaTaskType            = "task_type"
	MetaWordCount           = "word_count"
)

// ResponseAnalyzer runs the assessment pipeline. It holds no per-request
// state and may be shared across goroutines.
type ResponseAnalyzer struct {
	assessor Assessor
	catalog  *criteria.Catalog
	logger   *slog.Logger
	now      func() time.Time
}

// NewResponseAnalyzer wires an analyzer. A nil logger falls back to
// slog.Default.
func NewResponseAnalyzer(assessor Assessor, catalog *criteria.Catalog, logger *slog.Logger) *ResponseAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if catalog == nil {
		catalog = criteria.NewCatalog()
	}
	return &ResponseAnalyzer{
		assessor: assessor,
		catalog:  catalog,
		logger:   logger.With("component", "analysis"),
		now:      time.Now,
	}
}

// AnalyzeResponse scores resp against taskPrompt. Transport, prompt, and
// parse failures come back as *AnalysisError; use IsRateLimited to tell a
// rate limit apart from a permanent failure.
func (r *ResponseAnalyzer) AnalyzeResponse(
	ctx context.Context,
	taskPrompt string,
	resp domain.UserResponse,
	taskType domain.TaskType,
) (domain.Assessment, error) {
	start := r.now()

	prompts, err := BuildAssessmentPrompts(taskPrompt, resp.Text, taskType)
	if err != nil {
		return domain.Assessment{}, analysisErr("prompt", err)
	}

	raw, err := r.assessor.Assess(ctx, prompts.System, prompts.User, AssessmentSchema)
	if err != nil {
		r.logger.WarnContext(ctx, "examiner call failed",
			"task_type", taskType,
			"rate_limited", IsRateLimited(err),
			"error", err)
		return domain.Assessment{}, analysisErr("assess", err)
	}

	parsed, err := ParseLLMAssessment(raw)
	if err != nil {
		r.logger.WarnContext(ctx, "examiner reply rejected", "error", err, "reply_bytes", len(raw))
		return domain.Assessment{}, err
	}
	parsed.AssessedAt = r.now().UTC()

	assessment, problems := scoring.ValidateAndCorrect(parsed)
	if len(problems) > 0 {
		r.logger.WarnContext(ctx, "corrected inconsistent examiner scores",
			"problems", problems,
			"stated_overall", parsed.OverallBandScore,
			"corrected_overall", assessment.OverallBandScore)
		assessment.SetMetadata(MetaScoreCorrections, problems)
	}

	enhanced, warning := r.EnhanceAssessmentWithMetrics(assessment, resp, taskType)
	if warning != nil {
		r.logger.WarnContext(ctx, "assessment enrichment skipped", "error", warning)
	}

	if _, ok := enhanced.Metadata[MetaTaskType]; !ok {
		enhanced.SetMetadata(MetaTaskType, string(taskType))
	}
	if _, ok := enhanced.Metadata[MetaWordCount]; !ok {
		enhanced.SetMetadata(MetaWordCount, resp.WordCount)
	}
	enhanced.SetMetadata(MetaAnalysisDuration, r.now().Sub(start).Seconds())
	enhanced.SetMetadata(MetaEnhancedWithMetrics, warning == nil)

	r.logger.InfoContext(ctx, "response analyzed",
		"task_type", taskType,
		"overall_band", enhanced.OverallBandScore,
		"assessor_model", enhanced.AssessorModel,
		"duration", r.now().Sub(start))
	return enhanced, nil
}
