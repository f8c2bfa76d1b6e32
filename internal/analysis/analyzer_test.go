package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-ielts/internal/analysis"
	"github.com/ahrav/go-ielts/internal/criteria"
	"github.com/ahrav/go-ielts/internal/domain"
	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
)

// fakeAssessor returns a canned reply and records the prompts it saw.
type fakeAssessor struct {
	mu      sync.Mutex
	reply   json.RawMessage
	err     error
	calls   int
	system  string
	user    string
	schemas []json.RawMessage
}

func (f *fakeAssessor) Assess(_ context.Context, system, user string, schema json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.system, f.user = system, user
	f.schemas = append(f.schemas, schema)
	return f.reply, f.err
}

func reply(overall float64, scores [4]float64) json.RawMessage {
	names := []string{"Task Achievement", "Coherence and Cohesion", "Lexical Resource", "Grammatical Range and Accuracy"}
	criteria := make([]map[string]any, 0, 4)
	for i, s := range scores {
		criteria = append(criteria, map[string]any{
			"criterion_name":        names[i],
			"score":                 s,
			"feedback":              "Feedback for " + names[i],
			"strengths":             []string{"clear"},
			"areas_for_improvement": []string{"range"},
		})
	}
	body := map[string]any{
		"overall_score": map[string]any{
			"overall": overall, "task_achievement": scores[0], "coherence_cohesion": scores[1],
			"lexical_resource": scores[2], "grammatical_range": scores[3],
		},
		"criteria_scores":  criteria,
		"general_feedback": "A solid response.",
		"recommendations":  []string{"Plan before writing"},
		"metadata":         map[string]any{"provider": "openai", "model": "gpt-4", "tokens_used": 812},
	}
	b, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return b
}

func essay(words int) string {
	vocab := strings.Fields("people cities technology education government society environment " +
		"children economy culture health research science travel family work leisure policy")
	parts := make([]string, words)
	for i := range parts {
		parts[i] = vocab[i%len(vocab)]
	}
	return strings.Join(parts, " ")
}

func TestValidateLLMResponse(t *testing.T) {
	valid := reply(6.5, [4]float64{6.5, 6.5, 6.5, 6.5})
	assert.True(t, analysis.ValidateLLMResponse(valid))

	mutate := func(fn func(map[string]any)) json.RawMessage {
		var m map[string]any
		require.NoError(t, json.Unmarshal(valid, &m))
		fn(m)
		b, err := json.Marshal(m)
		require.NoError(t, err)
		return b
	}

	tests := []struct {
		name string
		raw  json.RawMessage
	}{
		{"missing general_feedback", mutate(func(m map[string]any) { delete(m, "general_feedback") })},
		{"missing overall_score", mutate(func(m map[string]any) { delete(m, "overall_score") })},
		{"overall not an object", mutate(func(m map[string]any) { m["overall_score"] = 7 })},
		{"overall off grid", mutate(func(m map[string]any) { m["overall_score"].(map[string]any)["overall"] = 6.3 })},
		{"missing overall value", mutate(func(m map[string]any) { delete(m["overall_score"].(map[string]any), "overall") })},
		{"criteria null", mutate(func(m map[string]any) { m["criteria_scores"] = nil })},
		{"criterion score as string", mutate(func(m map[string]any) {
			m["criteria_scores"].([]any)[0].(map[string]any)["score"] = "7"
		})},
		{"criterion score out of range", mutate(func(m map[string]any) {
			m["criteria_scores"].([]any)[1].(map[string]any)["score"] = 9.5
		})},
		{"criterion missing feedback", mutate(func(m map[string]any) {
			delete(m["criteria_scores"].([]any)[2].(map[string]any), "feedback")
		})},
		{"repeated criterion", mutate(func(m map[string]any) {
			m["criteria_scores"].([]any)[3].(map[string]any)["criterion_name"] = "task achievement"
		})},
		{"blank criterion name", mutate(func(m map[string]any) {
			m["criteria_scores"].([]any)[1].(map[string]any)["criterion_name"] = "   "
		})},
		{"top level array", json.RawMessage(`[1,2,3]`)},
		{"not json", json.RawMessage(`overall: 7`)},
		{"null", json.RawMessage(`null`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, analysis.ValidateLLMResponse(tt.raw))
		})
	}
}

func TestParseLLMAssessment(t *testing.T) {
	a, err := analysis.ParseLLMAssessment(reply(7, [4]float64{7, 7.5, 6.5, 7}))
	require.NoError(t, err)

	assert.InDelta(t, 7.0, a.OverallBandScore, 0)
	require.Len(t, a.CriteriaScores, 4)
	assert.Equal(t, "Task Achievement", a.CriteriaScores[0].CriterionName)
	assert.InDelta(t, 7.5, a.CriteriaScores[1].Score, 0)
	assert.Equal(t, []string{"clear"}, a.CriteriaScores[2].Strengths)
	assert.Equal(t, "A solid response.", a.OverallFeedback)
	assert.Equal(t, []string{"Plan before writing"}, a.Recommendations)
	assert.Equal(t, "gpt-4", a.AssessorModel)
	assert.Equal(t, "openai", a.Metadata["provider"])
}

func TestParseLLMAssessment_DefaultsModel(t *testing.T) {
	raw := json.RawMessage(`{
		"overall_score": {"overall": 6},
		"criteria_scores": [],
		"general_feedback": "ok"
	}`)
	a, err := analysis.ParseLLMAssessment(raw)
	require.NoError(t, err)
	assert.Equal(t, "unknown", a.AssessorModel)
	assert.Empty(t, a.CriteriaScores)
	assert.NotNil(t, a.Recommendations)
}

func TestParseLLMAssessment_RepeatedCriterion(t *testing.T) {
	raw := json.RawMessage(`{
		"overall_score": {"overall": 6.5},
		"criteria_scores": [
			{"criterion_name": "Task Response", "score": 6.5, "feedback": "Clear position"},
			{"criterion_name": "Lexical Resource", "score": 6.5, "feedback": "Adequate"},
			{"criterion_name": "Task Response", "score": 7, "feedback": "Well developed"}
		],
		"general_feedback": "ok"
	}`)
	_, err := analysis.ParseLLMAssessment(raw)
	var aerr *analysis.AnalysisError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "parse", aerr.Op)
	assert.ErrorIs(t, err, analysis.ErrInvalidStructure)
	assert.Contains(t, err.Error(), `"Task Response" appears more than once`)
}

func TestParseLLMAssessment_MissingGeneralFeedback(t *testing.T) {
	raw := json.RawMessage(`{"overall_score": {"overall": 6}, "criteria_scores": []}`)
	assert.False(t, analysis.ValidateLLMResponse(raw))

	_, err := analysis.ParseLLMAssessment(raw)
	var aerr *analysis.AnalysisError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "parse", aerr.Op)
	assert.ErrorIs(t, err, analysis.ErrInvalidStructure)
}

func TestNormalizeCriterionName(t *testing.T) {
	tests := []struct {
		in     string
		want   domain.AssessmentCriterion
		wantOK bool
	}{
		{"Task Achievement", domain.CriterionTaskResponse, true},
		{"task_response", domain.CriterionTaskResponse, true},
		{"Coherence & Cohesion", domain.CriterionCoherenceCohesion, true},
		{"Cohesion", domain.CriterionCoherenceCohesion, true},
		{"Vocabulary Range", domain.CriterionLexicalResource, true},
		{"Grammatical Range and Accuracy", domain.CriterionGrammaticalRange, true},
		{"Grammar", domain.CriterionGrammaticalRange, true},
		{"Pronunciation", domain.CriterionTaskResponse, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, analysis.NormalizeCriterionName(tt.in))
			_, ok := analysis.ClassifyCriterion(tt.in)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestBuildAssessmentPrompts(t *testing.T) {
	p, err := analysis.BuildAssessmentPrompts("Discuss both views.", "One two three four.", domain.TaskWriting2)
	require.NoError(t, err)
	assert.Contains(t, p.System, "expert IELTS examiner")
	assert.Contains(t, p.User, "TASK PROMPT:\nDiscuss both views.")
	assert.Contains(t, p.User, "CANDIDATE RESPONSE:\nOne two three four.")
	assert.Contains(t, p.User, "WORD COUNT: 4 words")

	_, err = analysis.BuildAssessmentPrompts("Describe the chart.", "text", domain.TaskWriting1Academic)
	require.ErrorIs(t, err, domain.ErrUnsupportedTaskType)

	_, err = analysis.BuildAssessmentPrompts("Discuss.", "   ", domain.TaskWriting2)
	require.ErrorIs(t, err, domain.ErrEmptyResponse)

	assert.True(t, json.Valid(analysis.AssessmentSchema))
}

func TestEnhanceAssessmentWithMetrics(t *testing.T) {
	r := analysis.NewResponseAnalyzer(nil, criteria.NewCatalog(), nil)

	t.Run("short response gets word count advice and keeps scores", func(t *testing.T) {
		a, err := analysis.ParseLLMAssessment(reply(6.5, [4]float64{6.5, 6.5, 6.5, 6.5}))
		require.NoError(t, err)

		resp := domain.NewUserResponse(essay(180), time.Now())
		enhanced, warn := r.EnhanceAssessmentWithMetrics(a, resp, domain.TaskWriting2)
		require.Nil(t, warn)

		assert.InDelta(t, 6.5, enhanced.OverallBandScore, 0)
		assert.Equal(t, "Plan before writing", enhanced.Recommendations[0])
		assert.Contains(t, enhanced.Recommendations, "Increase word count to at least 250 words (current: 180)")
		assert.Contains(t, enhanced.Recommendations, "Try to use more varied vocabulary to improve lexical diversity")
		assert.Contains(t, enhanced.Recommendations, "Use more transition words to improve coherence and cohesion")
		assert.Len(t, a.Recommendations, 1, "input must not be modified")
	})

	t.Run("long response gets reduction advice", func(t *testing.T) {
		resp := domain.NewUserResponse(essay(401), time.Now())
		enhanced, warn := r.EnhanceAssessmentWithMetrics(domain.Assessment{}, resp, domain.TaskWriting2)
		require.Nil(t, warn)
		assert.Contains(t, enhanced.Recommendations, "Consider reducing word count for better time management (current: 401)")
	})

	t.Run("task 1 uses its own word counts", func(t *testing.T) {
		resp := domain.NewUserResponse(essay(180), time.Now())
		enhanced, warn := r.EnhanceAssessmentWithMetrics(domain.Assessment{}, resp, domain.TaskWriting1General)
		require.Nil(t, warn)
		for _, rec := range enhanced.Recommendations {
			assert.NotContains(t, rec, "word count")
		}
	})

	t.Run("unsupported task type degrades to original", func(t *testing.T) {
		a := domain.Assessment{OverallBandScore: 7, Recommendations: []string{"keep"}}
		enhanced, warn := r.EnhanceAssessmentWithMetrics(a, domain.NewUserResponse("text", time.Now()), "speaking")
		require.NotNil(t, warn)
		assert.ErrorIs(t, warn, domain.ErrUnsupportedTaskType)
		assert.Equal(t, a, enhanced)
	})
}

func TestAnalyzeResponse(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		fake := &fakeAssessor{reply: reply(6.5, [4]float64{6.5, 6.5, 6.5, 6.5})}
		r := analysis.NewResponseAnalyzer(fake, criteria.NewCatalog(), nil)

		resp := domain.NewUserResponse(essay(260), time.Now())
		a, err := r.AnalyzeResponse(ctx, "Discuss both views.", resp, domain.TaskWriting2)
		require.NoError(t, err)

		assert.Equal(t, 1, fake.calls)
		assert.Contains(t, fake.user, "WORD COUNT: 260 words")
		assert.JSONEq(t, string(analysis.AssessmentSchema), string(fake.schemas[0]))

		assert.InDelta(t, 6.5, a.OverallBandScore, 0)
		assert.Equal(t, "gpt-4", a.AssessorModel)
		assert.Equal(t, true, a.Metadata[analysis.MetaEnhancedWithMetrics])
		assert.Contains(t, a.Metadata, analysis.MetaAnalysisDuration)
		assert.Equal(t, string(domain.TaskWriting2), a.Metadata[analysis.MetaTaskType])
		assert.NotContains(t, a.Metadata, analysis.MetaScoreCorrections)
		assert.False(t, a.AssessedAt.IsZero())
	})

	t.Run("inconsistent overall is corrected", func(t *testing.T) {
		fake := &fakeAssessor{reply: reply(9, [4]float64{5, 5, 5, 5})}
		r := analysis.NewResponseAnalyzer(fake, nil, nil)

		a, err := r.AnalyzeResponse(ctx, "Prompt", domain.NewUserResponse(essay(260), time.Now()), domain.TaskWriting2)
		require.NoError(t, err)
		assert.InDelta(t, 5.0, a.OverallBandScore, 0)
		require.Contains(t, a.Metadata, analysis.MetaScoreCorrections)
		assert.Equal(t,
			[]string{"Overall score (9.0) inconsistent with criterion scores (calculated: 5.0)"},
			a.Metadata[analysis.MetaScoreCorrections])
	})

	t.Run("rate limit surfaces distinctly", func(t *testing.T) {
		fake := &fakeAssessor{err: &llmerrors.RateLimitError{Provider: "openai", RetryAfter: 20}}
		r := analysis.NewResponseAnalyzer(fake, nil, nil)

		_, err := r.AnalyzeResponse(ctx, "Prompt", domain.NewUserResponse("Some text.", time.Now()), domain.TaskWriting2)
		var aerr *analysis.AnalysisError
		require.ErrorAs(t, err, &aerr)
		assert.Equal(t, "assess", aerr.Op)
		assert.True(t, analysis.IsRateLimited(err))

		var rl *llmerrors.RateLimitError
		require.ErrorAs(t, err, &rl)
		assert.Equal(t, 20, rl.RetryAfter)
	})

	t.Run("transport failure is not a rate limit", func(t *testing.T) {
		fake := &fakeAssessor{err: fmt.Errorf("dial tcp: %w", errors.New("connection refused"))}
		r := analysis.NewResponseAnalyzer(fake, nil, nil)

		_, err := r.AnalyzeResponse(ctx, "Prompt", domain.NewUserResponse("Some text.", time.Now()), domain.TaskWriting2)
		var aerr *analysis.AnalysisError
		require.ErrorAs(t, err, &aerr)
		assert.False(t, analysis.IsRateLimited(err))
	})

	t.Run("malformed reply", func(t *testing.T) {
		fake := &fakeAssessor{reply: json.RawMessage(`{"overall_score": {"overall": 6}}`)}
		r := analysis.NewResponseAnalyzer(fake, nil, nil)

		_, err := r.AnalyzeResponse(ctx, "Prompt", domain.NewUserResponse("Some text.", time.Now()), domain.TaskWriting2)
		require.ErrorIs(t, err, analysis.ErrInvalidStructure)
	})

	t.Run("task 1 is rejected before calling the model", func(t *testing.T) {
		fake := &fakeAssessor{reply: reply(6, [4]float64{6, 6, 6, 6})}
		r := analysis.NewResponseAnalyzer(fake, nil, nil)

		_, err := r.AnalyzeResponse(ctx, "Describe the graph.", domain.NewUserResponse("Some text.", time.Now()), domain.TaskWriting1Academic)
		var aerr *analysis.AnalysisError
		require.ErrorAs(t, err, &aerr)
		assert.Equal(t, "prompt", aerr.Op)
		assert.ErrorIs(t, err, domain.ErrUnsupportedTaskType)
		assert.Equal(t, 0, fake.calls)
	})
}

func TestGenerateImprovementSuggestions(t *testing.T) {
	a := domain.Assessment{CriteriaScores: []domain.CriterionScore{
		{CriterionName: "Task Response", Score: 5},
		{CriterionName: "Coherence and Cohesion", Score: 6},
		{CriterionName: "Lexical Resource", Score: 5.5},
		{CriterionName: "Grammatical Range and Accuracy", Score: 7},
	}}
	got := analysis.GenerateImprovementSuggestions(a, domain.TaskWriting2)
	assert.Equal(t, []string{
		"Focus on improving Task Response (current score: 5.0)",
		"Practice addressing all parts of the task more completely",
		"Develop your ideas with more specific examples and details",
		"Ensure your position is clear throughout the response",
		"Learn and practice using more academic vocabulary",
	}, got)

	strong := domain.Assessment{CriteriaScores: []domain.CriterionScore{
		{CriterionName: "Task Response", Score: 7},
		{CriterionName: "lexical_resource", Score: 6.5},
	}}
	assert.Empty(t, analysis.GenerateImprovementSuggestions(strong, domain.TaskWriting2))
	assert.Empty(t, analysis.GenerateImprovementSuggestions(domain.Assessment{}, domain.TaskWriting2))

	snake := domain.Assessment{CriteriaScores: []domain.CriterionScore{
		{CriterionName: "grammatical_range", Score: 4.5},
	}}
	got = analysis.GenerateImprovementSuggestions(snake, domain.TaskWriting2)
	require.Len(t, got, 4)
	assert.Equal(t, "Focus on improving Grammatical Range (current score: 4.5)", got[0])
	assert.Equal(t, "Practice using a variety of sentence structures", got[1])
}
