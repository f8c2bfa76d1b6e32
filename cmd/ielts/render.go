package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/ahrav/go-ielts/internal/domain"
	"github.com/ahrav/go-ielts/internal/session"
	"github.com/ahrav/go-ielts/internal/storage"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

const (
	defaultWidth = 80
	maxWidth     = 100
	dateLayout   = "2006-01-02 15:04"
)

// isTTY reports whether both stdin and stdout are terminals.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// terminalWidth returns the usable output width, capped for readability.
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return min(width, maxWidth)
}

// wrap breaks text into lines of at most width runes, prefixing each
// with indent. Blank lines separate paragraphs.
func wrap(text string, width int, indent string) string {
	avail := width - len(indent)
	if avail < 20 {
		avail = 20
	}
	var out strings.Builder
	for i, para := range strings.Split(strings.TrimSpace(text), "\n") {
		if i > 0 {
			out.WriteByte('\n')
		}
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		lineLen := 0
		out.WriteString(indent)
		for j, w := range words {
			n := len([]rune(w))
			if j > 0 && lineLen+1+n > avail {
				out.WriteByte('\n')
				out.WriteString(indent)
				lineLen = 0
			} else if j > 0 {
				out.WriteByte(' ')
				lineLen++
			}
			out.WriteString(w)
			lineLen += n
		}
	}
	return out.String()
}

func formatBand(x float64) string {
	return strconv.FormatFloat(x, 'f', 1, 64)
}

// bandColor paints a band: green from 7, yellow from 5.5, red below.
func bandColor(x float64) string {
	s := formatBand(x)
	switch {
	case x >= 7:
		return green(s)
	case x >= 5.5:
		return yellow(s)
	default:
		return red(s)
	}
}

func signedBand(x float64) string {
	s := strconv.FormatFloat(x, 'f', 1, 64)
	switch {
	case x > 0:
		return green("+" + s)
	case x < 0:
		return red(s)
	default:
		return gray(s)
	}
}

func statusColor(s domain.SessionStatus) string {
	return paintStatus(s, string(s))
}

// paintStatus colors text by status. Padding is applied by the caller
// before coloring so escape codes do not break column alignment.
func paintStatus(s domain.SessionStatus, text string) string {
	switch s {
	case domain.StatusCompleted:
		return green(text)
	case domain.StatusInProgress:
		return blue(text)
	case domain.StatusError:
		return red(text)
	default:
		return gray(text)
	}
}

func rule(w io.Writer, width int) {
	fmt.Fprintln(w, gray(strings.Repeat("─", width)))
}

func renderPrompt(w io.Writer, sess *domain.PracticeSession, width int) {
	p := sess.TaskPrompt
	rule(w, width)
	fmt.Fprintf(w, "%s  %s\n", bold(p.TaskType.DisplayName()), gray(shortID(sess.SessionID)))
	rule(w, width)
	fmt.Fprintln(w, wrap(p.PromptText, width, ""))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %d-%d words   %s %d minutes\n",
		cyan("Length:"), p.WordCountMin, p.WordCountMax,
		cyan("Time:"), sess.EffectiveTimeLimit())
	rule(w, width)
}

func renderAssessment(w io.Writer, a *domain.Assessment, detailed bool, width int) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", bold("Overall band:"), bandColor(a.OverallBandScore))
	fmt.Fprintln(w)
	for _, c := range a.CriteriaScores {
		fmt.Fprintf(w, "  %-34s %s\n", c.CriterionName, bandColor(c.Score))
		if !detailed {
			continue
		}
		if c.Feedback != "" {
			fmt.Fprintln(w, gray(wrap(c.Feedback, width, "      ")))
		}
		for _, s := range c.Strengths {
			fmt.Fprintln(w, wrap(green("+ ")+s, width, "      "))
		}
		for _, s := range c.AreasForImprovement {
			fmt.Fprintln(w, wrap(yellow("- ")+s, width, "      "))
		}
	}
	if a.OverallFeedback != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold("Feedback"))
		fmt.Fprintln(w, wrap(a.OverallFeedback, width, "  "))
	}
	if len(a.Recommendations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold("Recommendations"))
		for i, r := range a.Recommendations {
			fmt.Fprintln(w, wrap(fmt.Sprintf("%d. %s", i+1, r), width, "  "))
		}
	}
	if a.AssessorModel != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, gray("Assessed by "+a.AssessorModel))
	}
}

func renderSessionList(w io.Writer, sessions []domain.PracticeSession) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, gray("No practice sessions yet. Start one with 'ielts practice'."))
		return
	}
	fmt.Fprintf(w, "%-10s %-17s %-28s %-12s %6s %5s\n", "ID", "CREATED", "TASK", "STATUS", "WORDS", "BAND")
	for _, s := range sessions {
		band := gray("    -")
		if s.Assessment != nil {
			band = "  " + bandColor(s.Assessment.OverallBandScore)
		}
		fmt.Fprintf(w, "%-10s %-17s %-28s %s %6d %s\n",
			shortID(s.SessionID),
			s.CreatedAt.Local().Format(dateLayout),
			s.TaskPrompt.TaskType.DisplayName(),
			paintStatus(s.Status, fmt.Sprintf("%-12s", s.Status)),
			s.UserResponse.WordCount,
			band)
	}
}

func renderSessionDetail(w io.Writer, s *domain.PracticeSession, width int) {
	fmt.Fprintf(w, "%s %s\n", bold("Session"), s.SessionID)
	fmt.Fprintf(w, "%s %s   %s %s\n", cyan("Status:"), statusColor(s.Status),
		cyan("Created:"), s.CreatedAt.Local().Format(dateLayout))
	if s.UserResponse.TimeTakenSeconds != nil {
		fmt.Fprintf(w, "%s %s\n", cyan("Time taken:"),
			(time.Duration(*s.UserResponse.TimeTakenSeconds) * time.Second).String())
	}
	if s.ErrorMessage != "" {
		fmt.Fprintf(w, "%s %s\n", red("Error:"), s.ErrorMessage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, bold(s.TaskPrompt.TaskType.DisplayName()))
	fmt.Fprintln(w, wrap(s.TaskPrompt.PromptText, width, "  "))
	if s.UserResponse.Text != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s (%d words)\n", bold("Response"), s.UserResponse.WordCount)
		fmt.Fprintln(w, wrap(s.UserResponse.Text, width, "  "))
	}
	if s.Assessment != nil {
		renderAssessment(w, s.Assessment, true, width)
	}
}

func renderStats(w io.Writer, st domain.SessionStats, rate float64, days int) {
	fmt.Fprintln(w, bold("Practice statistics"))
	fmt.Fprintf(w, "  %-22s %d\n", "Total sessions", st.TotalSessions)
	fmt.Fprintf(w, "  %-22s %d\n", "Completed", st.CompletedSessions)
	if st.AverageScore != nil {
		fmt.Fprintf(w, "  %-22s %s\n", "Average band", bandColor(*st.AverageScore))
	}
	if st.BestScore != nil {
		fmt.Fprintf(w, "  %-22s %s\n", "Best band", bandColor(*st.BestScore))
	}
	if st.ImprovementTrend != nil {
		fmt.Fprintf(w, "  %-22s %s per session\n", "Trend", signedBand(*st.ImprovementTrend))
	}
	if st.CompletedSessions > 1 {
		fmt.Fprintf(w, "  %-22s %s per day\n", fmt.Sprintf("Last %d days", days),
			strconv.FormatFloat(rate, 'f', 3, 64))
	}
	if st.LastSessionDate != nil {
		fmt.Fprintf(w, "  %-22s %s\n", "Last session", st.LastSessionDate.Local().Format(dateLayout))
	}
	if len(st.TaskTypeDistribution) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold("By task"))
		for _, t := range slices.Sorted(maps.Keys(st.TaskTypeDistribution)) {
			fmt.Fprintf(w, "  %-30s %d\n", t.DisplayName(), st.TaskTypeDistribution[t])
		}
	}
}

func renderComparison(w io.Writer, c *session.Comparison) {
	fmt.Fprintf(w, "%s %s -> %s (%d days)\n", bold("Comparing"),
		shortID(c.Before.SessionID), shortID(c.After.SessionID), c.DaysBetween)
	fmt.Fprintf(w, "  %-34s %s -> %s  %s\n", "Overall",
		bandColor(c.Before.Assessment.OverallBandScore),
		bandColor(c.After.Assessment.OverallBandScore),
		signedBand(c.Differences["overall_difference"]))
	for _, cs := range c.After.Assessment.CriteriaScores {
		diff, ok := c.Differences[cs.CriterionName+"_difference"]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-34s %s\n", cs.CriterionName, signedBand(diff))
	}
	fmt.Fprintf(w, "\n  Improvement per day: %s\n", strconv.FormatFloat(c.ImprovementPerDay, 'f', 3, 64))
}

func renderStoreInfo(w io.Writer, info storage.Info) {
	fmt.Fprintf(w, "%s %s\n", cyan("Database:"), info.Path)
	fmt.Fprintf(w, "%s %.2f MB\n", cyan("Size:"), info.SizeMB)
	fmt.Fprintf(w, "%s %d sessions, %d criterion scores\n", cyan("Rows:"),
		info.SessionCount, info.CriteriaAssessmentCount)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
