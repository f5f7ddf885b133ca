package repository

import (
	"context"
	"errors"
	"strings"

	"ojstats/internal/common/db"
	"ojstats/internal/stats/model"
)

var ErrProblemNotFound = errors.New("problem not found")

// ProblemStore reads the problem fields the statistics core depends on.
type ProblemStore interface {
	// GetByIDs returns the problems for the given ids, keyed by id.
	// Missing ids are simply absent from the map.
	GetByIDs(ctx context.Context, ids []int64) (map[int64]model.Problem, error)

	// AuthoredProblemIDs returns the ids of problems the profile authors.
	AuthoredProblemIDs(ctx context.Context, profileID int64) (map[int64]struct{}, error)
}

// MySQLProblemStore implements ProblemStore with MySQL.
type MySQLProblemStore struct {
	db db.Database
}

// NewProblemStore creates a problem store.
func NewProblemStore(database db.Database) *MySQLProblemStore {
	return &MySQLProblemStore{db: database}
}

const problemColumns = "id, code, name, points, partial, ac_rate, is_public, is_organization_private"

// GetByIDs fetches problems by id.
func (s *MySQLProblemStore) GetByIDs(ctx context.Context, ids []int64) (map[int64]model.Problem, error) {
	if len(ids) == 0 {
		return map[int64]model.Problem{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := "SELECT " + problemColumns + " FROM problems WHERE id IN (" +
		strings.Join(placeholders, ", ") + ")"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	problems := make(map[int64]model.Problem, len(ids))
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(
			&p.ID,
			&p.Code,
			&p.Name,
			&p.Points,
			&p.Partial,
			&p.ACRate,
			&p.IsPublic,
			&p.IsOrganizationPrivate,
		); err != nil {
			return nil, err
		}
		problems[p.ID] = p
	}
	return problems, rows.Err()
}

// AuthoredProblemIDs returns the ids of problems the profile authors.
func (s *MySQLProblemStore) AuthoredProblemIDs(ctx context.Context, profileID int64) (map[int64]struct{}, error) {
	if profileID <= 0 {
		return nil, errors.New("profileID is required")
	}

	rows, err := s.db.Query(ctx,
		"SELECT problem_id FROM problem_authors WHERE profile_id = ?", profileID)
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

var _ ProblemStore = (*MySQLProblemStore)(nil)
