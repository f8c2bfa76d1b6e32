package analysis

import (
	"fmt"

	"github.com/ahrav/go-ielts/internal/domain"
)

// Enrichment thresholds.
const (
	lowLexicalDiversity = 0.4
	minTransitionWords  = 3
	// wordCountSlack is how far past the recommended maximum a response may
	// run before a length recommendation is added.
	wordCountSlack = 50
)

// EnhanceAssessmentWithMetrics appends recommendations derived from local
// text analysis of resp. The returned assessment is a copy; a is never
// modified. If enrichment cannot run, a is returned as is together with a
// warning explaining why.
func (r *ResponseAnalyzer) EnhanceAssessmentWithMetrics(
	a domain.Assessment,
	resp domain.UserResponse,
	taskType domain.TaskType,
) (enhanced domain.Assessment, warning *EnrichmentWarning) {
	defer func() {
		if p := recover(); p != nil {
			enhanced = a
			warning = &EnrichmentWarning{Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	wc, err := r.catalog.WordCountRequirements(taskType)
	if err != nil {
		return a, &EnrichmentWarning{Err: err}
	}

	text := AnalyzeTextMetrics(resp.Text)
	vocab := ExtractVocabularyFeatures(resp.Text)
	structure := DetectStructuralFeatures(resp.Text)

	out := a.Clone()
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	switch {
	case text.WordCount < wc.Min:
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Increase word count to at least %d words (current: %d)", wc.Min, text.WordCount))
	case text.WordCount > wc.Max+wordCountSlack:
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Consider reducing word count for better time management (current: %d)", text.WordCount))
	}
	if vocab.LexicalDiversity < lowLexicalDiversity {
		out.Recommendations = append(out.Recommendations,
			"Try to use more varied vocabulary to improve lexical diversity")
	}
	if !structure.HasClearIntroduction {
		out.Recommendations = append(out.Recommendations,
			"Consider adding a clearer introduction that states your position")
	}
	if !structure.HasClearConclusion {
		out.Recommendations = append(out.Recommendations,
			"Add a clear conclusion that summarizes your main points")
	}
	if structure.TransitionWordCount < minTransitionWords {
		out.Recommendations = append(out.Recommendations,
			"Use more transition words to improve coherence and cohesion")
	}
	return out, nil
}
