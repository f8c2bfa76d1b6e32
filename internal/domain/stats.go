package domain

import "time"

// SessionStats summarizes a user's practice history.
type SessionStats struct {
	TotalSessions        int              `json:"total_sessions"`
	CompletedSessions    int              `json:"completed_sessions"`
	AverageScore         *float64         `json:"average_score,omitempty"`
	BestScore            *float64         `json:"best_score,omitempty"`
	ImprovementTrend     *float64         `json:"improvement_trend,omitempty"`
	TaskTypeDistribution map[TaskType]int `json:"task_type_distribution"`
	LastSessionDate      *time.Time       `json:"last_session_date,omitempty"`
}

// ComputeSessionStats derives statistics from sessions ordered oldest
// first. Only completed sessions carrying an assessment contribute scores.
func ComputeSessionStats(sessions []PracticeSession) SessionStats {
	stats := SessionStats{
		TotalSessions:        len(sessions),
		TaskTypeDistribution: make(map[TaskType]int),
	}

	var scores []float64
	for i := range sessions {
		s := &sessions[i]
		if s.Status != StatusCompleted || s.Assessment == nil {
			continue
		}
		stats.CompletedSessions++
		scores = append(scores, s.Assessment.OverallBandScore)
		stats.TaskTypeDistribution[s.TaskPrompt.TaskType]++
		if s.CompletedAt != nil && (stats.LastSessionDate == nil || s.CompletedAt.After(*stats.LastSessionDate)) {
			last := *s.CompletedAt
			stats.LastSessionDate = &last
		}
	}
	if len(scores) == 0 {
		return stats
	}

	var sum, best float64
	for _, v := range scores {
		sum += v
		if v > best {
			best = v
		}
	}
	avg := sum / float64(len(scores))
	stats.AverageScore = &avg
	stats.BestScore = &best
	if slope, ok := LinearTrend(scores); ok {
		stats.ImprovementTrend = &slope
	}
	return stats
}

// LinearTrend returns the least-squares slope of ys against their index.
// It reports false when fewer than two points are given.
func LinearTrend(ys []float64) (float64, bool) {
	n := float64(len(ys))
	if len(ys) < 2 {
		return 0, false
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, false
	}
	return (n*sumXY - sumX*sumY) / denom, true
}
