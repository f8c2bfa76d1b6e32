package analysis_test

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ahrav/go-ielts/internal/analysis"
	"github.com/ahrav/go-ielts/internal/domain"
)

func FuzzParseLLMAssessment(f *testing.F) {
	// Seed corpus with edge cases
	f.Add([]byte(reply(6.5, [4]float64{6, 6.5, 7, 6})))
	f.Add([]byte(reply(6.3, [4]float64{6, 6.5, 7, 6})))
	f.Add([]byte(`{"overall_score":{"overall":7},"criteria_scores":[],"general_feedback":""}`))
	f.Add([]byte(`{"overall_score":{"overall":7},"criteria_scores":[{"criterion_name":"TR","score":7,"feedback":"x"},{"criterion_name":" tr ","score":6,"feedback":"y"}],"general_feedback":""}`))
	f.Add([]byte(`{"overall_score":{"overall":7},"criteria_scores":[{"criterion_name":"  ","score":7,"feedback":"x"}],"general_feedback":""}`))
	f.Add([]byte(`{"overall_score":null,"criteria_scores":null,"general_feedback":null}`))
	f.Add([]byte(`{"overall_band_score":6.5`))
	f.Add([]byte(`[]`))
	f.Add([]byte(``))
	f.Add([]byte("\xff\xfe"))

	f.Fuzz(func(t *testing.T, data []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("ParseLLMAssessment panicked with data=%q: %v", data, r)
			}
		}()

		a, err := analysis.ParseLLMAssessment(data)
		if valid := analysis.ValidateLLMResponse(data); valid != (err == nil) {
			t.Fatalf("ValidateLLMResponse=%v but ParseLLMAssessment err=%v for data=%q", valid, err, data)
		}
		if err != nil {
			return
		}

		if !domain.IsHalfStepBand(a.OverallBandScore) {
			t.Errorf("parsed overall %v off the band grid for data=%q", a.OverallBandScore, data)
		}
		for _, c := range a.CriteriaScores {
			if !domain.IsHalfStepBand(c.Score) {
				t.Errorf("parsed score %v for %q off the band grid for data=%q", c.Score, c.CriterionName, data)
			}
			if strings.TrimSpace(c.CriterionName) == "" {
				t.Errorf("parsed a blank criterion name for data=%q", data)
			}
		}
		if name, dup := a.DuplicateCriterion(); dup {
			t.Errorf("parsed a repeated criterion %q for data=%q", name, data)
		}
	})
}

func FuzzValidateLLMResponse(f *testing.F) {
	// Seed corpus with edge cases
	f.Add(6.5, 7.0, "Task Achievement", "Lexical Resource")
	f.Add(6.3, 7.0, "Task Achievement", "Lexical Resource")
	f.Add(6.5, 9.5, "Task Achievement", "Lexical Resource")
	f.Add(-0.5, 0.0, "Task Achievement", "Lexical Resource")
	f.Add(6.5, 7.0, "Task Achievement", " task achievement ")
	f.Add(6.5, 7.0, "", "Lexical Resource")
	f.Add(6.5, 7.0, "\t\n", "Lexical Resource")
	f.Add(9.0, 0.0, "unicode-你好", "UNICODE-你好")
	f.Add(4.5, 1e300, "Coherence", "Grammar")

	f.Fuzz(func(t *testing.T, overall, score float64, first, second string) {
		if math.IsNaN(overall) || math.IsInf(overall, 0) || math.IsNaN(score) || math.IsInf(score, 0) {
			t.Skip("not representable in JSON")
		}
		if !utf8.ValidString(first) || !utf8.ValidString(second) {
			t.Skip("JSON encoding replaces invalid UTF-8")
		}

		body := map[string]any{
			"overall_score": map[string]any{"overall": overall},
			"criteria_scores": []map[string]any{
				{"criterion_name": first, "score": score, "feedback": "a"},
				{"criterion_name": second, "score": 6.0, "feedback": "b"},
			},
			"general_feedback": "fine",
		}
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		defer func() {
			if r := recover(); r != nil {
				t.Errorf("ValidateLLMResponse panicked with %s: %v", raw, r)
			}
		}()

		want := domain.IsHalfStepBand(overall) &&
			domain.IsHalfStepBand(score) &&
			strings.TrimSpace(first) != "" &&
			strings.TrimSpace(second) != "" &&
			domain.CriterionKey(first) != domain.CriterionKey(second)
		if got := analysis.ValidateLLMResponse(raw); got != want {
			t.Errorf("ValidateLLMResponse(%s) = %v, want %v", raw, got, want)
		}
	})
}
