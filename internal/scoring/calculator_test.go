package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-ielts/internal/domain"
	"github.com/ahrav/go-ielts/internal/scoring"
)

type scoreMap = map[domain.AssessmentCriterion]float64

func uniform(task, coherence, lexical, grammar float64) scoreMap {
	return scoreMap{
		domain.CriterionTaskResponse:      task,
		domain.CriterionCoherenceCohesion: coherence,
		domain.CriterionLexicalResource:   lexical,
		domain.CriterionGrammaticalRange:  grammar,
	}
}

func TestRoundToBandScore(t *testing.T) {
	tests := []struct {
		name   string
		raw    float64
		method scoring.RoundingMethod
		want   float64
	}{
		{"nearest rounds down", 6.24, scoring.NearestHalf, 6.0},
		{"nearest tie rounds up", 6.25, scoring.NearestHalf, 6.5},
		{"nearest tie at whole rounds up", 6.75, scoring.NearestHalf, 7.0},
		{"nearest keeps grid value", 7.5, scoring.NearestHalf, 7.5},
		{"conservative truncates", 6.9, scoring.Conservative, 6.5},
		{"conservative keeps grid value", 7.0, scoring.Conservative, 7.0},
		{"optimistic raises", 6.1, scoring.Optimistic, 6.5},
		{"optimistic raises grid value", 7.0, scoring.Optimistic, 7.5},
		{"optimistic never exceeds nine", 9.0, scoring.Optimistic, 9.0},
		{"negative clamps to zero", -1.5, scoring.NearestHalf, 0},
		{"above nine clamps", 12, scoring.Conservative, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scoring.RoundToBandScore(tt.raw, tt.method), 0)
		})
	}
}

func TestRoundToBandScore_Ordering(t *testing.T) {
	for i := 0; i <= 900; i++ {
		x := float64(i) / 100
		c := scoring.RoundToBandScore(x, scoring.Conservative)
		n := scoring.RoundToBandScore(x, scoring.NearestHalf)
		o := scoring.RoundToBandScore(x, scoring.Optimistic)

		for _, v := range []float64{c, n, o} {
			require.True(t, domain.IsHalfStepBand(v), "x=%v produced %v", x, v)
		}
		assert.LessOrEqual(t, c, n, "x=%v", x)
		assert.LessOrEqual(t, n, o, "x=%v", x)
	}
}

func TestCalculateOverallScore(t *testing.T) {
	tests := []struct {
		name    string
		scores  scoreMap
		weights scoreMap
		method  scoring.RoundingMethod
		want    float64
		wantErr bool
	}{
		{name: "uniform sixes", scores: uniform(6, 6, 6, 6), want: 6.0},
		{name: "mean on a half band", scores: uniform(5, 6, 7, 8), want: 6.5},
		{name: "mean rounds up to half", scores: uniform(6, 6, 6, 7), want: 6.5},
		{name: "conservative", scores: uniform(6, 6, 6, 7), method: scoring.Conservative, want: 6.0},
		{
			name:   "partial map uses equal weights",
			scores: scoreMap{domain.CriterionTaskResponse: 5, domain.CriterionLexicalResource: 7},
			want:   6.0,
		},
		{
			name:    "weights renormalized",
			scores:  scoreMap{domain.CriterionTaskResponse: 6, domain.CriterionCoherenceCohesion: 8},
			weights: scoreMap{domain.CriterionTaskResponse: 3, domain.CriterionCoherenceCohesion: 1},
			want:    6.5,
		},
		{
			name:    "missing weight counts a quarter",
			scores:  scoreMap{domain.CriterionTaskResponse: 6, domain.CriterionCoherenceCohesion: 8},
			weights: scoreMap{domain.CriterionTaskResponse: 1},
			want:    8.0,
		},
		{name: "empty map", scores: scoreMap{}, wantErr: true},
		{name: "off grid score", scores: uniform(6.3, 6, 6, 6), wantErr: true},
		{name: "unknown criterion", scores: scoreMap{"fluency": 6}, wantErr: true},
		{
			name:    "zero weights",
			scores:  scoreMap{domain.CriterionTaskResponse: 6},
			weights: scoreMap{domain.CriterionTaskResponse: 0},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scoring.CalculateOverallScore(tt.scores, tt.weights, tt.method)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidScores)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0)
		})
	}
}

func TestCalculateDetailedBandScore(t *testing.T) {
	bs, err := scoring.CalculateDetailedBandScore(scoreMap{
		domain.CriterionTaskAchievement:  6.5,
		domain.CriterionLexicalResource:  7,
		domain.CriterionGrammaticalRange: 6,
	})
	require.NoError(t, err)
	assert.InDelta(t, 6.5, bs.Overall, 0)
	require.NotNil(t, bs.TaskAchievement)
	assert.InDelta(t, 6.5, *bs.TaskAchievement, 0)
	assert.Nil(t, bs.CoherenceCohesion)
	require.NotNil(t, bs.LexicalResource)
	require.NotNil(t, bs.GrammaticalRange)

	_, err = scoring.CalculateDetailedBandScore(nil)
	require.ErrorIs(t, err, domain.ErrInvalidScores)
}

func TestCalculateBandScore(t *testing.T) {
	bs, err := scoring.CalculateBandScore(map[string]float64{
		"Task Response":                  7,
		"Coherence and Cohesion":         7,
		"Lexical Resource":               6,
		"Grammatical Range and Accuracy": 6,
		"Pronunciation":                  1,
	})
	require.NoError(t, err)
	assert.InDelta(t, 6.5, bs.Overall, 0)
	require.NotNil(t, bs.GrammaticalRange)
	assert.InDelta(t, 6.0, *bs.GrammaticalRange, 0)
}

func TestClassifyCriterionName(t *testing.T) {
	tests := []struct {
		name string
		want domain.AssessmentCriterion
		ok   bool
	}{
		{"Task Achievement", domain.CriterionTaskResponse, true},
		{"task_response", domain.CriterionTaskResponse, true},
		{"Coherence and Cohesion", domain.CriterionCoherenceCohesion, true},
		{"LEXICAL RESOURCE", domain.CriterionLexicalResource, true},
		{"Grammatical Range and Accuracy", domain.CriterionGrammaticalRange, true},
		{"grammar", domain.CriterionGrammaticalRange, true},
		{"Grammatical Accuracy", domain.CriterionGrammaticalRange, true},
		{"Task coherence", domain.CriterionTaskResponse, true},
		{"Vocabulary", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := scoring.ClassifyCriterionName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateScoreDistribution(t *testing.T) {
	assert.Equal(t, scoring.ScoreDistribution{}, scoring.CalculateScoreDistribution(nil))

	d := scoring.CalculateScoreDistribution([]float64{7, 6, 8, 7})
	assert.Equal(t, 4, d.Count)
	assert.InDelta(t, 7.0, d.Mean, 1e-9)
	assert.InDelta(t, 7.0, d.Median, 1e-9)
	require.NotNil(t, d.Mode)
	assert.InDelta(t, 7.0, *d.Mode, 0)
	assert.InDelta(t, 0.816496580927726, d.StdDev, 1e-9)
	assert.InDelta(t, 6.0, d.Min, 0)
	assert.InDelta(t, 8.0, d.Max, 0)
	assert.InDelta(t, 2.0, d.Range, 0)

	distinct := scoring.CalculateScoreDistribution([]float64{5, 6, 6.5})
	assert.Nil(t, distinct.Mode)
	assert.InDelta(t, 6.0, distinct.Median, 0)

	single := scoring.CalculateScoreDistribution([]float64{6})
	assert.InDelta(t, 0.0, single.StdDev, 0)
}

func TestAnalyzeScoreConsistency(t *testing.T) {
	assert.Equal(t, scoring.ConsistencyReport{}, scoring.AnalyzeScoreConsistency(nil))

	mk := func(overall float64) domain.Assessment {
		return domain.Assessment{
			OverallBandScore: overall,
			CriteriaScores: []domain.CriterionScore{
				{CriterionName: "Task Response", Score: overall},
				{CriterionName: "Lexical Resource", Score: overall},
				{CriterionName: "Fluency", Score: 1},
			},
		}
	}
	report := scoring.AnalyzeScoreConsistency([]domain.Assessment{mk(5.5), mk(6), mk(6.5)})

	assert.Equal(t, 3, report.AssessmentCount)
	require.NotNil(t, report.ImprovementTrend)
	assert.InDelta(t, 0.5, *report.ImprovementTrend, 1e-9)
	assert.InDelta(t, 0.75, report.ConsistencyScore, 1e-9)
	assert.Len(t, report.CriterionDistributions, 2)
	assert.InDelta(t, 6.0, report.CriterionDistributions[domain.CriterionTaskResponse].Mean, 1e-9)

	one := scoring.AnalyzeScoreConsistency([]domain.Assessment{mk(7)})
	assert.Nil(t, one.ImprovementTrend)
	assert.InDelta(t, 1.0, one.ConsistencyScore, 0)
}
