package model

// Problem carries the fields the statistics core needs; the full problem
// record (statements, limits, test data) lives with the problem service.
type Problem struct {
	ID                    int64
	Code                  string
	Name                  string
	Points                float64 // maximum achievable points
	Partial               bool    // whether partial credit is allowed
	ACRate                float64 // precomputed global accept rate
	IsPublic              bool
	IsOrganizationPrivate bool
}

// HotProblem is one entry of the hot-problems ranking, denormalized for
// direct rendering.
type HotProblem struct {
	ProblemID int64   `json:"problem_id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Points    float64 `json:"points"`
	Score     float64 `json:"score"`
}
