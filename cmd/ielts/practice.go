package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/ahrav/go-ielts/internal/config"
	"github.com/ahrav/go-ielts/internal/domain"
	"github.com/ahrav/go-ielts/internal/session"
	"github.com/ahrav/go-ielts/internal/worker"
	"github.com/ahrav/go-ielts/internal/workflow"
)

const (
	statePollInterval = 500 * time.Millisecond
	stateWaitTimeout  = time.Minute
)

type practiceFlags struct {
	task       string
	prompt     string
	quick      bool
	timeLimit  int
	difficulty string
	durable    bool
	resume     string
}

func newPracticeCmd(c *cli) *cobra.Command {
	var f practiceFlags
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Write a timed essay and get it assessed",
		Long: "Shows a prompt, collects your essay, and prints band scores for each criterion.\n" +
			"Finish the essay with a line containing only " + endMarker + " (or Ctrl-D).\n" +
			"Type " + cancelMarker + " on its own line to abandon the session, or " + pauseMarker +
			" to save the draft and continue later with --resume.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.loadConfig()
			if err != nil {
				return err
			}
			if f.resume != "" {
				if f.durable {
					return errors.New("--resume cannot be combined with --durable")
				}
				return runResume(cmd.Context(), c, app, cmd.OutOrStdout(), cmd.InOrStdin(), f.resume)
			}
			if f.timeLimit < 0 {
				return fmt.Errorf("--time-limit must not be negative, got %d", f.timeLimit)
			}
			taskType := app.DefaultTaskType
			if f.task != "" {
				if taskType, err = domain.ParseTaskType(f.task); err != nil {
					return fmt.Errorf("%w: %q", err, f.task)
				}
			}
			opts := session.CreateOptions{
				TaskType:         taskType,
				CustomPrompt:     f.prompt,
				QuickMode:        f.quick,
				TimeLimitMinutes: f.timeLimit,
				Difficulty:       f.difficulty,
			}
			if f.durable {
				return runDurablePractice(cmd.Context(), c, app, cmd.OutOrStdout(), cmd.InOrStdin(), opts)
			}
			return runPractice(cmd.Context(), c, app, cmd.OutOrStdout(), cmd.InOrStdin(), opts)
		},
	}
	cmd.Flags().StringVarP(&f.task, "task", "t", "", "task type: 2, 1a (academic), 1g (general)")
	cmd.Flags().StringVarP(&f.prompt, "prompt", "p", "", "use this prompt instead of generating one")
	cmd.Flags().BoolVarP(&f.quick, "quick", "q", false, "quick mode: scores only, no per-criterion feedback")
	cmd.Flags().IntVar(&f.timeLimit, "time-limit", 0, "override the time limit in minutes")
	cmd.Flags().StringVar(&f.difficulty, "difficulty", "", "generated prompt difficulty: easy, medium, hard")
	cmd.Flags().BoolVar(&f.durable, "durable", false, "run the session as a Temporal workflow (needs 'ielts worker')")
	cmd.Flags().StringVarP(&f.resume, "resume", "r", "", "continue a paused or unfinished session by ID or prefix")
	return cmd
}

func runPractice(
	ctx context.Context,
	c *cli,
	app *config.App,
	out io.Writer,
	in io.Reader,
	opts session.CreateOptions,
) error {
	m, err := c.manager(ctx, true)
	if err != nil {
		return err
	}
	if opts.CustomPrompt == "" {
		fmt.Fprintln(out, gray("Generating a prompt..."))
	}
	sess, err := m.CreateSession(ctx, opts)
	if err != nil {
		return err
	}
	renderPrompt(out, sess, terminalWidth())

	if sess, err = m.StartSession(ctx, sess.SessionID); err != nil {
		return err
	}
	return writeAndSubmit(ctx, c, m, app, out, in, sess)
}

func runResume(ctx context.Context, c *cli, app *config.App, out io.Writer, in io.Reader, arg string) error {
	m, err := c.manager(ctx, true)
	if err != nil {
		return err
	}
	store, err := c.openStore()
	if err != nil {
		return err
	}
	id, err := resolveSessionID(ctx, store, arg)
	if err != nil {
		return err
	}
	sess, err := m.ResumeSession(ctx, id)
	if err != nil {
		return err
	}

	width := terminalWidth()
	renderPrompt(out, sess, width)
	if draft := strings.TrimSpace(sess.UserResponse.Text); draft != "" {
		fmt.Fprintln(out, cyan(fmt.Sprintf("Your draft so far (%d words):", sess.UserResponse.WordCount)))
		fmt.Fprintln(out, wrap(draft, width, "  "))
		fmt.Fprintln(out)
	}
	return writeAndSubmit(ctx, c, m, app, out, in, sess)
}

// writeAndSubmit collects the essay for a running session, auto-saving
// the draft, and has it assessed. Every way out leaves the session in a
// recorded state: paused drafts stay in progress, read failures move the
// session to error.
func writeAndSubmit(
	ctx context.Context,
	c *cli,
	m *session.Manager,
	app *config.App,
	out io.Writer,
	in io.Reader,
	sess *domain.PracticeSession,
) error {
	id := sess.SessionID
	if remaining, ok := m.TimeRemaining(sess); ok {
		if remaining > 0 {
			fmt.Fprintf(out, "%s %s. ", cyan("Finish by"), time.Now().Add(remaining).Format("15:04"))
		} else {
			fmt.Fprint(out, yellow("The time limit has passed. "))
		}
		fmt.Fprintf(out, "Finish with %s on its own line; %s saves and exits.\n\n", bold(endMarker), bold(pauseMarker))
	}

	essay, err := captureEssay(in, captureOptions{
		draft: sess.UserResponse.Text,
		save: func(text string) {
			if _, err := m.SaveDraft(ctx, id, text); err != nil {
				c.logger.WarnContext(ctx, "Draft auto-save failed", "session_id", id, "error", err)
			}
		},
		interval: app.Preferences.AutoSaveInterval,
		pausable: true,
	})
	switch {
	case errors.Is(err, errEssayPaused):
		if _, err := m.SaveDraft(context.WithoutCancel(ctx), id, essay); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s Continue with: ielts practice --resume %s\n", yellow("Draft saved."), shortID(id))
		return nil
	case errors.Is(err, errEssayCancelled) || (err == nil && essay == ""):
		if _, cerr := m.CancelSession(context.WithoutCancel(ctx), id); cerr != nil {
			return cerr
		}
		fmt.Fprintln(out, yellow("Session cancelled."))
		return nil
	case err != nil:
		if essay != "" {
			if _, serr := m.SaveDraft(context.WithoutCancel(ctx), id, essay); serr != nil {
				c.logger.WarnContext(ctx, "Draft save failed", "session_id", id, "error", serr)
			}
		}
		if _, ferr := m.FailSession(context.WithoutCancel(ctx), id, err); ferr != nil {
			return errors.Join(err, ferr)
		}
		return fmt.Errorf("reading essay failed (session %s saved as error): %w", shortID(id), err)
	}

	warnWordCount(out, app, sess.TaskPrompt.WordCountMin, sess.TaskPrompt.WordCountMax, essay)
	fmt.Fprintln(out, gray("Assessing your response..."))
	sess, err = m.SubmitResponse(ctx, id, essay, nil)
	if err != nil {
		return fmt.Errorf("assessment failed (session %s saved as error): %w", shortID(sessionIDOf(sess)), err)
	}
	renderAssessment(out, sess.Assessment, app.Preferences.ShowDetailedFeedback && !sess.QuickMode, terminalWidth())
	reportTime(out, sess)
	return nil
}

func runDurablePractice(
	ctx context.Context,
	c *cli,
	app *config.App,
	out io.Writer,
	in io.Reader,
	opts session.CreateOptions,
) error {
	tc, err := worker.Dial(ctx, app.Temporal.HostPort, app.Temporal.Namespace, c.logger)
	if err != nil {
		return err
	}
	defer tc.Close()

	input := workflow.PracticeInput{
		TaskType:         opts.TaskType,
		CustomPrompt:     opts.CustomPrompt,
		QuickMode:        opts.QuickMode,
		TimeLimitMinutes: opts.TimeLimitMinutes,
		Difficulty:       opts.Difficulty,
	}
	if err := input.Validate(); err != nil {
		return err
	}

	run, err := tc.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "practice-" + uuid.NewString(),
		TaskQueue: app.Temporal.TaskQueue,
	}, workflow.PracticeWorkflow, input)
	if err != nil {
		return fmt.Errorf("start practice workflow: %w", err)
	}
	fmt.Fprintln(out, gray("Workflow "+run.GetID()+" started; waiting for a prompt..."))

	state, err := awaitPhase(ctx, tc, run.GetID(), workflow.PhaseWaiting)
	if err != nil {
		return err
	}
	if state.Phase != workflow.PhaseWaiting || state.Session == nil {
		var result workflow.PracticeResult
		return run.Get(ctx, &result)
	}

	info := state.Session
	width := terminalWidth()
	renderPrompt(out, &domain.PracticeSession{
		SessionID: info.SessionID,
		TaskPrompt: domain.TaskPrompt{
			TaskType:         info.TaskType,
			PromptText:       info.PromptText,
			TimeLimitMinutes: info.TimeLimitMinutes,
			WordCountMin:     info.WordCountMin,
			WordCountMax:     info.WordCountMax,
		},
	}, width)
	fmt.Fprintf(out, "%s %s. Finish with %s on its own line.\n\n",
		cyan("Finish by"), state.Deadline.Local().Format("15:04"), bold(endMarker))

	started := time.Now()
	essay, err := captureEssay(in, captureOptions{})
	switch {
	case errors.Is(err, errEssayCancelled) || (err == nil && essay == ""):
		if err := tc.SignalWorkflow(context.WithoutCancel(ctx), run.GetID(), "", workflow.SignalCancel,
			workflow.CancelSignal{Reason: "cancelled by user"}); err != nil {
			return fmt.Errorf("cancel practice workflow: %w", err)
		}
	case err != nil:
		if serr := tc.SignalWorkflow(context.WithoutCancel(ctx), run.GetID(), "", workflow.SignalCancel,
			workflow.CancelSignal{Reason: "essay input failed: " + err.Error()}); serr != nil {
			return errors.Join(err, fmt.Errorf("cancel practice workflow: %w", serr))
		}
		return fmt.Errorf("reading essay failed (workflow %s cancelled): %w", run.GetID(), err)
	default:
		warnWordCount(out, app, info.WordCountMin, info.WordCountMax, essay)
		taken := int(time.Since(started).Seconds())
		if err := tc.SignalWorkflow(ctx, run.GetID(), "", workflow.SignalSubmitResponse,
			workflow.SubmitSignal{Text: essay, TimeTakenSeconds: &taken}); err != nil {
			return fmt.Errorf("submit essay: %w", err)
		}
		fmt.Fprintln(out, gray("Assessing your response..."))
	}

	var result workflow.PracticeResult
	if err := run.Get(ctx, &result); err != nil {
		return fmt.Errorf("practice workflow %s failed: %w", run.GetID(), err)
	}
	if result.Status == domain.StatusCancelled {
		fmt.Fprintln(out, yellow("Session cancelled: "+result.CancelReason))
		return nil
	}
	if result.Assessment != nil {
		renderAssessment(out, result.Assessment, app.Preferences.ShowDetailedFeedback && !opts.QuickMode, width)
	}
	return nil
}

// awaitPhase polls the session query until the workflow reaches phase or
// finishes.
func awaitPhase(ctx context.Context, tc client.Client, workflowID, phase string) (workflow.PracticeState, error) {
	ctx, cancel := context.WithTimeout(ctx, stateWaitTimeout)
	defer cancel()
	ticker := time.NewTicker(statePollInterval)
	defer ticker.Stop()

	for {
		val, err := tc.QueryWorkflow(ctx, workflowID, "", workflow.QuerySession)
		if err == nil {
			var st workflow.PracticeState
			if err := val.Get(&st); err != nil {
				return st, fmt.Errorf("decode session state: %w", err)
			}
			if st.Phase == phase || st.Phase == workflow.PhaseDone {
				return st, nil
			}
		}
		select {
		case <-ctx.Done():
			return workflow.PracticeState{}, fmt.Errorf("waiting for workflow %s (is 'ielts worker' running?): %w",
				workflowID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func captureEssay(in io.Reader, opts captureOptions) (string, error) {
	r, done, err := newEssayReader(in)
	if err != nil {
		return "", err
	}
	defer done()
	return readEssay(r, opts)
}

func warnWordCount(out io.Writer, app *config.App, minWords, maxWords int, essay string) {
	if !app.Preferences.WordCountWarnings {
		return
	}
	n := domain.CountWords(essay)
	switch {
	case n < minWords:
		fmt.Fprintln(out, yellow(fmt.Sprintf("Only %d words; the minimum is %d.", n, minWords)))
	case maxWords > 0 && n > maxWords:
		fmt.Fprintln(out, yellow(fmt.Sprintf("%d words is above the suggested %d.", n, maxWords)))
	}
}

func reportTime(out io.Writer, sess *domain.PracticeSession) {
	if sess.UserResponse.TimeTakenSeconds == nil {
		return
	}
	taken := time.Duration(*sess.UserResponse.TimeTakenSeconds) * time.Second
	limit := time.Duration(sess.EffectiveTimeLimit()) * time.Minute
	msg := fmt.Sprintf("Time taken: %s of %s", taken.Round(time.Second), limit)
	if limit > 0 && taken > limit {
		fmt.Fprintln(out, yellow(msg+" (over time)"))
		return
	}
	fmt.Fprintln(out, gray(msg))
}

func sessionIDOf(sess *domain.PracticeSession) string {
	if sess == nil {
		return "unknown"
	}
	return sess.SessionID
}
