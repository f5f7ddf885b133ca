package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ojstats/internal/common/db"
	"ojstats/internal/stats/model"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
)

// ScopeFilter narrows submission-store queries. Zero fields are not applied,
// so the zero value selects the entire submission history (the global scope).
type ScopeFilter struct {
	UserID          int64
	ProblemID       int64
	ParticipationID int64
	ResultIn        []model.ResultCode
	DateAfter       *time.Time
	DateBefore      *time.Time
}

// IsGlobal reports whether the filter selects the whole history.
func (f ScopeFilter) IsGlobal() bool {
	return f.UserID == 0 && f.ProblemID == 0 && f.ParticipationID == 0 &&
		len(f.ResultIn) == 0 && f.DateAfter == nil && f.DateBefore == nil
}

// ProblemWindowStats aggregates a problem's submission activity inside a
// trailing window, as needed by the hot-problems ranking.
type ProblemWindowStats struct {
	Problem          model.Problem
	UniqueUsers      int64
	SubmissionVolume int64
	ACVolume         int64
}

// SubmissionStore is the authoritative submission record. The statistics core
// reads projections of it and, on rescore, writes points back.
//
// Query contracts:
//   - completed ids: distinct problem ids with at least one submission where
//     result = AC and points equal the problem's maximum
//   - attempted: per problem the maximum points achieved, included only while
//     strictly below the problem's maximum
//   - result counts: submissions grouped by raw result code; pending
//     (unjudged) submissions carry no code and are not counted
type SubmissionStore interface {
	UserCompletedProblemIDs(ctx context.Context, profileID int64) (map[int64]struct{}, error)
	ContestCompletedProblemIDs(ctx context.Context, participationID int64) (map[int64]struct{}, error)
	UserAttemptedProblems(ctx context.Context, profileID int64) (map[int64]model.AttemptedProblem, error)
	ContestAttemptedProblems(ctx context.Context, participationID int64) (map[int64]model.AttemptedProblem, error)

	ResultCounts(ctx context.Context, filter ScopeFilter) (map[model.ResultCode]int64, error)
	HotProblemWindowStats(ctx context.Context, since time.Time, minPoints, maxPoints float64) ([]ProblemWindowStats, error)

	GetByIDs(ctx context.Context, ids []int64) ([]model.Submission, error)
	UpdatePoints(ctx context.Context, id int64, points float64) error
}

// MySQLSubmissionStore implements SubmissionStore with MySQL.
type MySQLSubmissionStore struct {
	db db.Database
}

// NewSubmissionStore creates a submission store.
func NewSubmissionStore(database db.Database) *MySQLSubmissionStore {
	return &MySQLSubmissionStore{db: database}
}

const submissionColumns = "id, user_id, problem_id, participation_id, result, points, case_points, case_total, date"

// countedResults are the codes that count as meaningful attempts for the
// ranking's submission volume. CE and pending are deliberately excluded: a
// compile error or an in-flight judgment is not an attempt signal.
const countedResults = "'AC', 'WA', 'IR', 'RTE', 'TLE', 'OLE'"

// UserCompletedProblemIDs returns the distinct problem ids the profile solved
// for full points.
func (s *MySQLSubmissionStore) UserCompletedProblemIDs(ctx context.Context, profileID int64) (map[int64]struct{}, error) {
	if profileID <= 0 {
		return nil, errors.New("profileID is required")
	}
	return s.completedIDs(ctx, "s.user_id = ?", profileID)
}

// ContestCompletedProblemIDs returns the distinct problem ids solved for full
// points inside a contest participation.
func (s *MySQLSubmissionStore) ContestCompletedProblemIDs(ctx context.Context, participationID int64) (map[int64]struct{}, error) {
	if participationID <= 0 {
		return nil, errors.New("participationID is required")
	}
	return s.completedIDs(ctx, "s.participation_id = ?", participationID)
}

func (s *MySQLSubmissionStore) completedIDs(ctx context.Context, cond string, arg int64) (map[int64]struct{}, error) {
	query := `
		SELECT DISTINCT s.problem_id
		FROM submissions s
		JOIN problems p ON p.id = s.problem_id
		WHERE ` + cond + ` AND s.result = 'AC' AND s.points = p.points
	`
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// UserAttemptedProblems returns, per problem, the best score the profile
// achieved while still short of full points.
func (s *MySQLSubmissionStore) UserAttemptedProblems(ctx context.Context, profileID int64) (map[int64]model.AttemptedProblem, error) {
	if profileID <= 0 {
		return nil, errors.New("profileID is required")
	}
	return s.attemptedProblems(ctx, "s.user_id = ?", profileID)
}

// ContestAttemptedProblems is UserAttemptedProblems scoped to a participation.
func (s *MySQLSubmissionStore) ContestAttemptedProblems(ctx context.Context, participationID int64) (map[int64]model.AttemptedProblem, error) {
	if participationID <= 0 {
		return nil, errors.New("participationID is required")
	}
	return s.attemptedProblems(ctx, "s.participation_id = ?", participationID)
}

func (s *MySQLSubmissionStore) attemptedProblems(ctx context.Context, cond string, arg int64) (map[int64]model.AttemptedProblem, error) {
	query := `
		SELECT s.problem_id, p.points, MAX(s.points) AS achieved
		FROM submissions s
		JOIN problems p ON p.id = s.problem_id
		WHERE ` + cond + `
		GROUP BY s.problem_id, p.points
		HAVING achieved < p.points
	`
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempted := make(map[int64]model.AttemptedProblem)
	for rows.Next() {
		var problemID int64
		var maxPoints, achieved float64
		if err := rows.Scan(&problemID, &maxPoints, &achieved); err != nil {
			return nil, err
		}
		attempted[problemID] = model.AttemptedProblem{AchievedPoints: achieved, MaxPoints: maxPoints}
	}
	return attempted, rows.Err()
}

// ResultCounts groups submissions in scope by raw result code.
func (s *MySQLSubmissionStore) ResultCounts(ctx context.Context, filter ScopeFilter) (map[model.ResultCode]int64, error) {
	var conds []string
	var args []interface{}

	if filter.UserID != 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.ProblemID != 0 {
		conds = append(conds, "problem_id = ?")
		args = append(args, filter.ProblemID)
	}
	if filter.ParticipationID != 0 {
		conds = append(conds, "participation_id = ?")
		args = append(args, filter.ParticipationID)
	}
	if len(filter.ResultIn) > 0 {
		placeholders := make([]string, len(filter.ResultIn))
		for i, result := range filter.ResultIn {
			placeholders[i] = "?"
			args = append(args, string(result))
		}
		conds = append(conds, "result IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.DateAfter != nil {
		conds = append(conds, "date > ?")
		args = append(args, *filter.DateAfter)
	}
	if filter.DateBefore != nil {
		conds = append(conds, "date <= ?")
		args = append(args, *filter.DateBefore)
	}

	query := "SELECT result, COUNT(result) FROM submissions"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " GROUP BY result"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.ResultCode]int64)
	for rows.Next() {
		var result sql.NullString
		var count int64
		if err := rows.Scan(&result, &count); err != nil {
			return nil, err
		}
		if !result.Valid || result.String == "" {
			// pending submissions have no verdict to count
			continue
		}
		counts[model.ResultCode(result.String)] = count
	}
	return counts, rows.Err()
}

// HotProblemWindowStats aggregates per-problem activity since the given time
// for public, non-organization-private problems in the difficulty band
// (minPoints, maxPoints), keeping only problems with at least one submission
// in the window.
func (s *MySQLSubmissionStore) HotProblemWindowStats(ctx context.Context, since time.Time, minPoints, maxPoints float64) ([]ProblemWindowStats, error) {
	query := `
		SELECT p.id, p.code, p.name, p.points, p.ac_rate,
			COUNT(DISTINCT s.user_id) AS unique_users,
			COUNT(CASE WHEN s.result IN (` + countedResults + `) THEN 1 END) AS submission_volume,
			COUNT(CASE WHEN s.result = 'AC' THEN 1 END) AS ac_volume
		FROM problems p
		JOIN submissions s ON s.problem_id = p.id
		WHERE p.is_public = 1 AND p.is_organization_private = 0
			AND p.points > ? AND p.points < ?
			AND s.date > ?
		GROUP BY p.id, p.code, p.name, p.points, p.ac_rate
	`
	rows, err := s.db.Query(ctx, query, minPoints, maxPoints, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []ProblemWindowStats
	for rows.Next() {
		var st ProblemWindowStats
		if err := rows.Scan(
			&st.Problem.ID,
			&st.Problem.Code,
			&st.Problem.Name,
			&st.Problem.Points,
			&st.Problem.ACRate,
			&st.UniqueUsers,
			&st.SubmissionVolume,
			&st.ACVolume,
		); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// GetByIDs fetches submissions by id in ascending id order. Missing ids are
// simply absent from the result.
func (s *MySQLSubmissionStore) GetByIDs(ctx context.Context, ids []int64) ([]model.Submission, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := "SELECT " + submissionColumns + " FROM submissions WHERE id IN (" +
		strings.Join(placeholders, ", ") + ") ORDER BY id ASC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []model.Submission
	for rows.Next() {
		var sub model.Submission
		var participationID sql.NullInt64
		var result sql.NullString
		if err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.ProblemID,
			&participationID,
			&result,
			&sub.Points,
			&sub.CasePoints,
			&sub.CaseTotal,
			&sub.Date,
		); err != nil {
			return nil, err
		}
		if participationID.Valid {
			sub.ParticipationID = participationID.Int64
		}
		if result.Valid {
			sub.Result = model.ResultCode(result.String)
		}
		submissions = append(submissions, sub)
	}
	return submissions, rows.Err()
}

// UpdatePoints persists a recomputed score for one submission.
func (s *MySQLSubmissionStore) UpdatePoints(ctx context.Context, id int64, points float64) error {
	if id <= 0 {
		return errors.New("id is required")
	}
	result, err := s.db.Exec(ctx, "UPDATE submissions SET points = ? WHERE id = ?", points, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

var _ SubmissionStore = (*MySQLSubmissionStore)(nil)
