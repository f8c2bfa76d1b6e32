package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-ielts/internal/config"
	"github.com/ahrav/go-ielts/internal/domain"
)

func init() {
	color.NoColor = true
}

type scriptedLine struct {
	text string
	err  error
}

type scriptedReader struct {
	lines []scriptedLine
}

func (s *scriptedReader) Readline() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	l := s.lines[0]
	s.lines = s.lines[1:]
	return l.text, l.err
}

func lines(texts ...string) []scriptedLine {
	out := make([]scriptedLine, len(texts))
	for i, t := range texts {
		out[i] = scriptedLine{text: t}
	}
	return out
}

func TestReadEssay(t *testing.T) {
	errTTY := errors.New("tty gone")
	tests := []struct {
		name    string
		lines   []scriptedLine
		want    string
		wantErr error
	}{
		{"end marker", lines("First paragraph.", "", "Second paragraph.", "END", "ignored"), "First paragraph.\n\nSecond paragraph.", nil},
		{"eof submits", lines("  Only line  "), "Only line", nil},
		{"cancel marker", lines("Some text", ":cancel"), "", errEssayCancelled},
		{"interrupt on empty line", []scriptedLine{{text: "kept"}, {err: readline.ErrInterrupt}}, "", errEssayCancelled},
		{
			"interrupt with text drops the line",
			[]scriptedLine{{text: "kept"}, {text: "half typed", err: readline.ErrInterrupt}, {text: "END"}},
			"kept", nil,
		},
		{"read failure", []scriptedLine{{err: errTTY}}, "", errTTY},
		{"nothing written", lines("END"), "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readEssay(&scriptedReader{lines: tt.lines}, captureOptions{})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScannerReader(t *testing.T) {
	got, err := readEssay(newScannerReader(strings.NewReader("one\ntwo\nEND\n")), captureOptions{})
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo", got)
}

func TestReadEssay_DraftAndPause(t *testing.T) {
	errTTY := errors.New("tty gone")
	tests := []struct {
		name    string
		opts    captureOptions
		lines   []scriptedLine
		want    string
		wantErr error
	}{
		{
			name:  "draft comes first",
			opts:  captureOptions{draft: "Opening paragraph.\n"},
			lines: lines("Second paragraph.", "END"),
			want:  "Opening paragraph.\nSecond paragraph.",
		},
		{
			name:    "pause keeps the text",
			opts:    captureOptions{draft: "Opening.", pausable: true},
			lines:   lines("More.", ":pause", "never read"),
			want:    "Opening.\nMore.",
			wantErr: errEssayPaused,
		},
		{
			name:  "pause marker is text when pausing is off",
			lines: lines("One.", ":pause", "END"),
			want:  "One.\n:pause",
		},
		{
			name:    "read failure keeps the text",
			opts:    captureOptions{draft: "Opening."},
			lines:   []scriptedLine{{text: "More."}, {err: errTTY}},
			want:    "Opening.\nMore.",
			wantErr: errTTY,
		},
		{
			name:    "cancel drops the draft",
			opts:    captureOptions{draft: "Opening.", pausable: true},
			lines:   lines(":cancel"),
			wantErr: errEssayCancelled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readEssay(&scriptedReader{lines: tt.lines}, tt.opts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadEssay_AutoSave(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := start
	// Each line takes 20 seconds to type.
	now := func() time.Time { return clock }
	reader := &steppingReader{
		scriptedReader: scriptedReader{lines: lines("a", "b", "c", "d", "END")},
		step:           func() { clock = clock.Add(20 * time.Second) },
	}

	var saved []string
	got, err := readEssay(reader, captureOptions{
		save:     func(text string) { saved = append(saved, text) },
		interval: 30 * time.Second,
		now:      now,
	})
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\nd", got)
	assert.Equal(t, []string{"a\nb", "a\nb\nc\nd"}, saved)

	t.Run("zero interval never saves", func(t *testing.T) {
		calls := 0
		_, err := readEssay(&scriptedReader{lines: lines("a", "b", "END")}, captureOptions{
			save: func(string) { calls++ },
		})
		require.NoError(t, err)
		assert.Zero(t, calls)
	})
}

// steppingReader advances a test clock before every line.
type steppingReader struct {
	scriptedReader
	step func()
}

func (s *steppingReader) Readline() (string, error) {
	s.step()
	return s.scriptedReader.Readline()
}

func TestEssayReadlineConfig_NoHistoryOnDisk(t *testing.T) {
	cfg := essayReadlineConfig()
	assert.Empty(t, cfg.HistoryFile)
	assert.True(t, cfg.DisableAutoSaveHistory)
	assert.Equal(t, endMarker, cfg.EOFPrompt)
}

func appWithWarnings(on bool) *config.App {
	return &config.App{Preferences: config.Preferences{WordCountWarnings: on}}
}

func TestWrap(t *testing.T) {
	text := "Some people believe that university education should be free for every student."
	got := wrap(text, 30, "  ")
	for _, line := range strings.Split(got, "\n") {
		assert.LessOrEqual(t, len(line), 30)
		assert.True(t, strings.HasPrefix(line, "  "))
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(got))

	assert.Equal(t, "a\n\nb", wrap("a\n\nb", 40, ""))
}

func TestBandFormatting(t *testing.T) {
	assert.Equal(t, "7.0", bandColor(7))
	assert.Equal(t, "5.5", bandColor(5.5))
	assert.Equal(t, "+0.5", signedBand(0.5))
	assert.Equal(t, "-1.0", signedBand(-1))
	assert.Equal(t, "0.0", signedBand(0))
}

func TestRenderAssessment(t *testing.T) {
	a := &domain.Assessment{
		OverallBandScore: 6.5,
		CriteriaScores: []domain.CriterionScore{
			{
				CriterionName:       "Task Response",
				Score:               6.5,
				Feedback:            "Position is clear",
				Strengths:           []string{"Relevant examples"},
				AreasForImprovement: []string{"Extend the conclusion"},
			},
		},
		OverallFeedback: "A competent answer.",
		Recommendations: []string{"Plan before writing"},
		AssessorModel:   "gpt-4",
	}

	tests := []struct {
		name     string
		detailed bool
		present  []string
		absent   []string
	}{
		{
			"detailed",
			true,
			[]string{"Overall band: 6.5", "Position is clear", "+ Relevant examples", "- Extend the conclusion", "1. Plan before writing", "Assessed by gpt-4"},
			nil,
		},
		{
			"quick",
			false,
			[]string{"Overall band: 6.5", "Task Response", "A competent answer."},
			[]string{"Position is clear", "Relevant examples"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			renderAssessment(&buf, a, tt.detailed, 80)
			for _, s := range tt.present {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestWarnWordCount(t *testing.T) {
	tests := []struct {
		name  string
		words int
		want  string
	}{
		{"too short", 120, "Only 120 words; the minimum is 250."},
		{"in range", 300, ""},
		{"too long", 420, "420 words is above the suggested 400."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			app := appWithWarnings(true)
			warnWordCount(&buf, app, 250, 400, strings.Repeat("word ", tt.words))
			assert.Equal(t, tt.want, strings.TrimSpace(buf.String()))
		})
	}

	var buf bytes.Buffer
	warnWordCount(&buf, appWithWarnings(false), 250, 400, "short")
	assert.Empty(t, buf.String())
}
