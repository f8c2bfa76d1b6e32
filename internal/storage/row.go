package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ahrav/go-ielts/internal/domain"
	"github.com/ahrav/go-ielts/internal/scoring"
)

// sessionRow mirrors the sessions table column for column.
type sessionRow struct {
	SessionID    string
	Status       string
	QuickMode    bool
	CreatedAt    string
	StartedAt    sql.NullString
	CompletedAt  sql.NullString
	ErrorMessage string

	TaskType        string
	TaskPrompt      string
	PromptTimeLimit int
	WordCountMin    int
	WordCountMax    int
	TimeLimit       sql.NullInt64

	ResponseText string
	WordCount    int
	TimeTaken    sql.NullInt64
	SubmittedAt  sql.NullString

	OverallScore      sql.NullFloat64
	TaskScore         sql.NullFloat64
	CoherenceScore    sql.NullFloat64
	LexicalScore      sql.NullFloat64
	GrammarScore      sql.NullFloat64
	GeneralFeedback   sql.NullString
	DetailedFeedback  sql.NullString
	Recommendations   sql.NullString
	AssessorModel     sql.NullString
	AssessedAt        sql.NullString
	AssessmentMetaRaw sql.NullString
}

func (sessionRow) columns() []string {
	return []string{
		"session_id", "status", "quick_mode", "created_at", "started_at", "completed_at", "error_message",
		"task_type", "task_prompt", "prompt_time_limit", "word_count_min", "word_count_max", "time_limit",
		"user_response_text", "user_word_count", "time_taken", "submitted_at",
		"overall_score", "task_achievement_score", "coherence_cohesion_score", "lexical_resource_score",
		"grammatical_range_score", "general_feedback", "detailed_feedback", "recommendations",
		"assessor_model", "assessed_at", "assessment_metadata",
	}
}

func (r *sessionRow) scanTargets() []any {
	return []any{
		&r.SessionID, &r.Status, &r.QuickMode, &r.CreatedAt, &r.StartedAt, &r.CompletedAt, &r.ErrorMessage,
		&r.TaskType, &r.TaskPrompt, &r.PromptTimeLimit, &r.WordCountMin, &r.WordCountMax, &r.TimeLimit,
		&r.ResponseText, &r.WordCount, &r.TimeTaken, &r.SubmittedAt,
		&r.OverallScore, &r.TaskScore, &r.CoherenceScore, &r.LexicalScore,
		&r.GrammarScore, &r.GeneralFeedback, &r.DetailedFeedback, &r.Recommendations,
		&r.AssessorModel, &r.AssessedAt, &r.AssessmentMetaRaw,
	}
}

func (r *sessionRow) values() []any {
	return []any{
		r.SessionID, r.Status, r.QuickMode, r.CreatedAt, r.StartedAt, r.CompletedAt, r.ErrorMessage,
		r.TaskType, r.TaskPrompt, r.PromptTimeLimit, r.WordCountMin, r.WordCountMax, r.TimeLimit,
		r.ResponseText, r.WordCount, r.TimeTaken, r.SubmittedAt,
		r.OverallScore, r.TaskScore, r.CoherenceScore, r.LexicalScore,
		r.GrammarScore, r.GeneralFeedback, r.DetailedFeedback, r.Recommendations,
		r.AssessorModel, r.AssessedAt, r.AssessmentMetaRaw,
	}
}

func toRow(s *domain.PracticeSession) (*sessionRow, error) {
	r := &sessionRow{
		SessionID:       s.SessionID,
		Status:          string(s.Status),
		QuickMode:       s.QuickMode,
		CreatedAt:       formatTime(s.CreatedAt),
		StartedAt:       nullTime(s.StartedAt),
		CompletedAt:     nullTime(s.CompletedAt),
		ErrorMessage:    s.ErrorMessage,
		TaskType:        string(s.TaskPrompt.TaskType),
		TaskPrompt:      s.TaskPrompt.PromptText,
		PromptTimeLimit: s.TaskPrompt.TimeLimitMinutes,
		WordCountMin:    s.TaskPrompt.WordCountMin,
		WordCountMax:    s.TaskPrompt.WordCountMax,
		TimeLimit:       nullInt(s.TimeLimitMinutes),
		ResponseText:    s.UserResponse.Text,
		WordCount:       s.UserResponse.WordCount,
		TimeTaken:       nullInt(s.UserResponse.TimeTakenSeconds),
	}
	if !s.UserResponse.SubmittedAt.IsZero() {
		r.SubmittedAt = sql.NullString{String: formatTime(s.UserResponse.SubmittedAt), Valid: true}
	}

	a := s.Assessment
	if a == nil {
		return r, nil
	}
	r.OverallScore = sql.NullFloat64{Float64: a.OverallBandScore, Valid: true}
	for _, c := range a.CriteriaScores {
		slot, ok := scoring.ClassifyCriterionName(c.CriterionName)
		if !ok {
			continue
		}
		v := sql.NullFloat64{Float64: c.Score, Valid: true}
		switch slot {
		case domain.CriterionTaskResponse:
			r.TaskScore = v
		case domain.CriterionCoherenceCohesion:
			r.CoherenceScore = v
		case domain.CriterionLexicalResource:
			r.LexicalScore = v
		case domain.CriterionGrammaticalRange:
			r.GrammarScore = v
		}
	}
	r.GeneralFeedback = sql.NullString{String: a.OverallFeedback, Valid: true}
	r.AssessorModel = sql.NullString{String: a.AssessorModel, Valid: true}
	r.AssessedAt = sql.NullString{String: formatTime(a.AssessedAt), Valid: true}

	var err error
	if r.DetailedFeedback, err = encodeJSON(a.DetailedFeedback); err != nil {
		return nil, err
	}
	if r.Recommendations, err = encodeJSON(a.Recommendations); err != nil {
		return nil, err
	}
	if r.AssessmentMetaRaw, err = encodeJSON(a.Metadata); err != nil {
		return nil, err
	}
	return r, nil
}

// toSession rebuilds the session; criterion rows are attached by the caller.
func (r *sessionRow) toSession() (*domain.PracticeSession, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w %s: created_at: %w", errCorruptRow, r.SessionID, err)
	}
	s := &domain.PracticeSession{
		SessionID: r.SessionID,
		Status:    domain.SessionStatus(r.Status),
		QuickMode: r.QuickMode,
		CreatedAt: created,
		TaskPrompt: domain.TaskPrompt{
			TaskType:         domain.TaskType(r.TaskType),
			PromptText:       r.TaskPrompt,
			TimeLimitMinutes: r.PromptTimeLimit,
			WordCountMin:     r.WordCountMin,
			WordCountMax:     r.WordCountMax,
		},
		UserResponse: domain.UserResponse{
			Text:      r.ResponseText,
			WordCount: r.WordCount,
		},
		ErrorMessage: r.ErrorMessage,
	}
	if s.StartedAt, err = parseNullTime(r.StartedAt); err != nil {
		return nil, fmt.Errorf("%w %s: started_at: %w", errCorruptRow, r.SessionID, err)
	}
	if s.CompletedAt, err = parseNullTime(r.CompletedAt); err != nil {
		return nil, fmt.Errorf("%w %s: completed_at: %w", errCorruptRow, r.SessionID, err)
	}
	if r.TimeLimit.Valid {
		v := int(r.TimeLimit.Int64)
		s.TimeLimitMinutes = &v
	}
	if r.TimeTaken.Valid {
		v := int(r.TimeTaken.Int64)
		s.UserResponse.TimeTakenSeconds = &v
	}
	if submitted, err := parseNullTime(r.SubmittedAt); err != nil {
		return nil, fmt.Errorf("%w %s: submitted_at: %w", errCorruptRow, r.SessionID, err)
	} else if submitted != nil {
		s.UserResponse.SubmittedAt = *submitted
	}

	if !r.OverallScore.Valid {
		return s, nil
	}
	a := &domain.Assessment{
		OverallBandScore: r.OverallScore.Float64,
		OverallFeedback:  r.GeneralFeedback.String,
		AssessorModel:    r.AssessorModel.String,
	}
	if assessed, err := parseNullTime(r.AssessedAt); err != nil {
		return nil, fmt.Errorf("%w %s: assessed_at: %w", errCorruptRow, r.SessionID, err)
	} else if assessed != nil {
		a.AssessedAt = *assessed
	}
	if err := decodeJSON(r.DetailedFeedback, &a.DetailedFeedback); err != nil {
		return nil, err
	}
	if err := decodeJSON(r.Recommendations, &a.Recommendations); err != nil {
		return nil, err
	}
	if err := decodeJSON(r.AssessmentMetaRaw, &a.Metadata); err != nil {
		return nil, err
	}
	s.Assessment = a
	return s, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, s, time.UTC)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// encodeJSON stores nil values as SQL NULL.
func encodeJSON[T any](v T) (sql.NullString, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("storage: encode json: %w", err)
	}
	if string(raw) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeJSON[T any](ns sql.NullString, dst *T) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(ns.String), dst); err != nil {
		return fmt.Errorf("%w: decode json: %w", errCorruptRow, err)
	}
	return nil
}
