package analysis

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ahrav/go-ielts/internal/domain"
	"github.com/ahrav/go-ielts/internal/scoring"
)

const (
	maxSuggestions     = 5
	suggestionBandGate = 6.0
	fallbackSuggestion = "Continue practicing writing tasks to improve overall performance"
)

var criterionSuggestions = map[domain.AssessmentCriterion][]string{
	domain.CriterionTaskResponse: {
		"Practice addressing all parts of the task more completely",
		"Develop your ideas with more specific examples and details",
		"Ensure your position is clear throughout the response",
	},
	domain.CriterionCoherenceCohesion: {
		"Use more linking words and phrases to connect ideas",
		"Organize your paragraphs more logically",
		"Practice clear topic sentences for each paragraph",
	},
	domain.CriterionLexicalResource: {
		"Learn and practice using more academic vocabulary",
		"Focus on precise word choice and collocation",
		"Review common spelling patterns and word formation",
	},
	domain.CriterionGrammaticalRange: {
		"Practice using a variety of sentence structures",
		"Review common grammar patterns and their usage",
		"Pay attention to verb tenses and subject-verb agreement",
	},
}

// GenerateImprovementSuggestions returns at most five distinct study
// suggestions. The weakest criterion gets a headline entry when it scores
// below 6, followed by targeted advice for every criterion below 6.
func GenerateImprovementSuggestions(a domain.Assessment, _ domain.TaskType) (out []string) {
	defer func() {
		if recover() != nil {
			out = []string{fallbackSuggestion}
		}
	}()

	var suggestions []string
	if name, score, ok := lowestCriterion(a.CriteriaScores); ok && score < suggestionBandGate {
		suggestions = append(suggestions, fmt.Sprintf("Focus on improving %s (current score: %s)",
			titleCase(strings.ReplaceAll(name, "_", " ")), formatBand(score)))
	}
	for _, c := range a.CriteriaScores {
		if c.Score >= suggestionBandGate {
			continue
		}
		if crit, ok := scoring.ClassifyCriterionName(c.CriterionName); ok {
			suggestions = append(suggestions, criterionSuggestions[crit]...)
		}
	}

	seen := make(map[string]struct{}, len(suggestions))
	out = make([]string, 0, maxSuggestions)
	for _, s := range suggestions {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// lowestCriterion finds the lowest scoring criterion. A repeated name keeps
// its first position and its last score; ties go to the earlier name.
func lowestCriterion(scores []domain.CriterionScore) (string, float64, bool) {
	if len(scores) == 0 {
		return "", 0, false
	}
	var order []string
	byName := make(map[string]float64, len(scores))
	for _, c := range scores {
		if _, ok := byName[c.CriterionName]; !ok {
			order = append(order, c.CriterionName)
		}
		byName[c.CriterionName] = c.Score
	}

	lowest := order[0]
	for _, name := range order[1:] {
		if byName[name] < byName[lowest] {
			lowest = name
		}
	}
	return lowest, byName[lowest], true
}

// titleCase upper-cases the first letter of every letter run and
// lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

func formatBand(x float64) string {
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eN") {
		s += ".0"
	}
	return s
}
