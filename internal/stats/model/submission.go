package model

import "time"

// Submission is a judged (or pending) attempt at a problem. The statistics
// core reads submissions and, on rescore, writes back the points field only.
type Submission struct {
	ID              int64
	UserID          int64
	ProblemID       int64
	ParticipationID int64 // 0 when the submission is outside any contest
	Result          ResultCode
	Points          float64
	CasePoints      float64
	CaseTotal       float64
	Date            time.Time
}

// InContest reports whether the submission belongs to a contest participation.
func (s *Submission) InContest() bool {
	return s.ParticipationID != 0
}

// AttemptedProblem records the best score an identity achieved on a problem
// it has not fully solved.
type AttemptedProblem struct {
	AchievedPoints float64 `json:"achieved_points"`
	MaxPoints      float64 `json:"max_points"`
}
