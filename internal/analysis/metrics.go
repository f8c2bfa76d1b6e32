package analysis

import (
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

var (
	sentenceSplit  = regexp.MustCompile(`[.!?]+`)
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	wordToken      = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// Vocabulary heuristics.
const (
	longWordRunes    = 6
	complexWordRunes = 8
	maxComplexWords  = 10
)

// Structure heuristics.
const (
	introWindowRunes      = 200
	conclusionWindowRunes = 200
)

var transitionMarkers = []string{
	"however", "moreover", "furthermore", "additionally", "consequently",
	"therefore", "thus", "hence", "nevertheless", "nonetheless",
	"in contrast", "on the other hand", "for instance", "for example",
	"in conclusion", "to summarize", "firstly", "secondly", "finally",
}

var introductionPhrases = []string{
	"in my opinion", "i believe", "this essay", "the question of", "nowadays",
}

var conclusionPhrases = []string{
	"in conclusion", "to conclude", "in summary", "to summarize", "overall",
}

// TextMetrics are basic length statistics for a response.
type TextMetrics struct {
	WordCount             int     `json:"word_count"`
	CharacterCount        int     `json:"character_count"`
	SentenceCount         int     `json:"sentence_count"`
	ParagraphCount        int     `json:"paragraph_count"`
	AverageSentenceLength float64 `json:"average_sentence_length"`
	AverageWordLength     float64 `json:"average_word_length"`
}

// VocabularyFeatures approximate lexical range.
type VocabularyFeatures struct {
	UniqueWordCount     int      `json:"unique_words"`
	LexicalDiversity    float64  `json:"lexical_diversity"`
	LongWordsPercentage float64  `json:"long_words_percentage"`
	ComplexWords        []string `json:"complex_words"`
}

// StructuralFeatures approximate essay organisation.
type StructuralFeatures struct {
	TransitionWordCount  int   `json:"transition_words_count"`
	HasClearIntroduction bool  `json:"has_clear_introduction"`
	HasClearConclusion   bool  `json:"has_clear_conclusion"`
	ParagraphCount       int   `json:"paragraph_count"`
	ParagraphWordCounts  []int `json:"paragraph_word_counts"`
	BalancedParagraphs   bool  `json:"balanced_paragraphs"`
}

// AnalyzeTextMetrics counts words, characters, sentences, and paragraphs.
// Averages are rounded to one decimal place. Empty text yields zeros.
func AnalyzeTextMetrics(text string) TextMetrics {
	if text == "" {
		return TextMetrics{}
	}

	words := strings.Fields(text)
	m := TextMetrics{
		WordCount:      len(words),
		CharacterCount: utf8.RuneCountInString(text),
		SentenceCount:  countNonBlank(sentenceSplit.Split(text, -1)),
		ParagraphCount: len(paragraphs(text)),
	}
	if m.SentenceCount > 0 {
		m.AverageSentenceLength = roundTo(float64(m.WordCount)/float64(m.SentenceCount), 1)
	}
	if len(words) > 0 {
		var runes int
		for _, w := range words {
			runes += utf8.RuneCountInString(w)
		}
		m.AverageWordLength = roundTo(float64(runes)/float64(len(words)), 1)
	}
	return m
}

// ExtractVocabularyFeatures computes the type-token ratio, the share of
// long words, and a sample of complex words from text.
func ExtractVocabularyFeatures(text string) VocabularyFeatures {
	tokens := wordToken.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return VocabularyFeatures{ComplexWords: []string{}}
	}

	unique := make(map[string]struct{}, len(tokens))
	var long int
	for _, tok := range tokens {
		unique[tok] = struct{}{}
		if utf8.RuneCountInString(tok) >= longWordRunes {
			long++
		}
	}

	complexWords := make([]string, 0)
	for w := range unique {
		if utf8.RuneCountInString(w) >= complexWordRunes {
			complexWords = append(complexWords, w)
		}
	}
	slices.Sort(complexWords)
	if len(complexWords) > maxComplexWords {
		complexWords = complexWords[:maxComplexWords]
	}

	return VocabularyFeatures{
		UniqueWordCount:     len(unique),
		LexicalDiversity:    roundTo(float64(len(unique))/float64(len(tokens)), 3),
		LongWordsPercentage: roundTo(float64(long)/float64(len(tokens))*100, 1),
		ComplexWords:        complexWords,
	}
}

// DetectStructuralFeatures looks for transition markers, an opening
// position statement, a closing summary, and paragraph balance.
func DetectStructuralFeatures(text string) StructuralFeatures {
	lower := strings.ToLower(text)

	var transitions int
	for _, marker := range transitionMarkers {
		transitions += strings.Count(lower, marker)
	}

	paras := paragraphs(text)
	counts := make([]int, len(paras))
	distinct := make(map[int]struct{}, len(paras))
	for i, p := range paras {
		counts[i] = len(strings.Fields(p))
		distinct[counts[i]] = struct{}{}
	}

	return StructuralFeatures{
		TransitionWordCount:  transitions,
		HasClearIntroduction: containsAny(headRunes(lower, introWindowRunes), introductionPhrases),
		HasClearConclusion:   containsAny(tailRunes(lower, conclusionWindowRunes), conclusionPhrases),
		ParagraphCount:       len(paras),
		ParagraphWordCounts:  counts,
		BalancedParagraphs:   len(paras) > 0 && len(distinct) <= 2,
	}
}

// paragraphs splits text on blank lines and drops empty pieces.
func paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphSplit.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func countNonBlank(parts []string) int {
	var n int
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func headRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func tailRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func roundTo(x float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(x*p) / p
}
