package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
)

// Essay input markers. A line holding only endMarker submits; a line
// holding only cancelMarker abandons the session; pauseMarker saves the
// draft and leaves the session open for --resume.
const (
	endMarker    = "END"
	cancelMarker = ":cancel"
	pauseMarker  = ":pause"
)

var (
	errEssayCancelled = errors.New("essay cancelled")
	errEssayPaused    = errors.New("essay paused")
)

// lineReader is the part of readline used for essay capture.
type lineReader interface {
	Readline() (string, error)
}

// captureOptions tune readEssay. The zero value reads a fresh essay with
// no auto-save and no pause.
type captureOptions struct {
	// draft is text written in an earlier sitting; new lines follow it.
	draft string
	// save receives the essay so far every interval. Nil or a zero
	// interval disables auto-save.
	save     func(text string)
	interval time.Duration
	now      func() time.Time
	// pausable enables pauseMarker.
	pausable bool
}

// readEssay collects lines until endMarker or EOF. Ctrl-C on an empty
// line or cancelMarker returns errEssayCancelled; Ctrl-C with text on the
// line discards just that line. pauseMarker returns the text so far with
// errEssayPaused. A read error also returns the text so far.
func readEssay(r lineReader, opts captureOptions) (string, error) {
	var lines []string
	if d := strings.TrimSpace(opts.draft); d != "" {
		lines = strings.Split(d, "\n")
	}
	text := func() string { return strings.TrimSpace(strings.Join(lines, "\n")) }

	now := opts.now
	if now == nil {
		now = time.Now
	}
	autoSave := opts.save != nil && opts.interval > 0
	lastSave := now()

	for {
		line, err := r.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				return "", errEssayCancelled
			}
			continue
		case errors.Is(err, io.EOF):
			return text(), nil
		case err != nil:
			return text(), err
		}

		switch strings.TrimSpace(line) {
		case endMarker:
			return text(), nil
		case cancelMarker:
			return "", errEssayCancelled
		case pauseMarker:
			if opts.pausable {
				return text(), errEssayPaused
			}
		}
		lines = append(lines, line)

		if autoSave && now().Sub(lastSave) >= opts.interval {
			opts.save(text())
			lastSave = now()
		}
	}
}

// newEssayReader returns a readline instance on a terminal, or a plain
// line scanner over in when input is piped.
func newEssayReader(in io.Reader) (lineReader, func(), error) {
	if !isTTY() {
		return newScannerReader(in), func() {}, nil
	}
	rl, err := readline.NewEx(essayReadlineConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize readline: %w", err)
	}
	return rl, func() { _ = rl.Close() }, nil
}

// essayReadlineConfig keeps essay lines off disk: no history file and no
// automatic history entries.
func essayReadlineConfig() *readline.Config {
	return &readline.Config{
		Prompt:                 gray("│ "),
		DisableAutoSaveHistory: true,
		InterruptPrompt:        "^C",
		EOFPrompt:              endMarker,
		Stdin:                  readline.NewCancelableStdin(os.Stdin),
		Stdout:                 os.Stdout,
		Stderr:                 os.Stderr,
	}
}

type scannerReader struct {
	sc *bufio.Scanner
}

func newScannerReader(r io.Reader) *scannerReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &scannerReader{sc: sc}
}

func (s *scannerReader) Readline() (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
