package model

// ResultCode is the raw verdict a judge assigns to a submission.
// An empty ResultCode means the submission is still pending judgment.
type ResultCode string

const (
	ResultAC  ResultCode = "AC"
	ResultWA  ResultCode = "WA"
	ResultCE  ResultCode = "CE"
	ResultTLE ResultCode = "TLE"
	ResultMLE ResultCode = "MLE"
	ResultOLE ResultCode = "OLE"
	ResultIR  ResultCode = "IR"
	ResultRTE ResultCode = "RTE"
	ResultAB  ResultCode = "AB"
	ResultIE  ResultCode = "IE"
)

// ResultCategory is a display-oriented grouping of raw result codes.
// The category names are language-neutral: cached aggregates are shared
// across readers, so any translation happens at the presentation layer.
type ResultCategory struct {
	Code    string
	Name    string
	Results []ResultCode
}

// ResultCategories is the fixed taxonomy, in the order downstream charts
// render it. The order and membership are a stable contract; never reorder
// or mutate at runtime.
var ResultCategories = []ResultCategory{
	{Code: "AC", Name: "Accepted", Results: []ResultCode{ResultAC}},
	{Code: "WA", Name: "Wrong", Results: []ResultCode{ResultWA}},
	{Code: "CE", Name: "Compile Error", Results: []ResultCode{ResultCE}},
	{Code: "TLE", Name: "Timeout", Results: []ResultCode{ResultTLE}},
	{Code: "ERR", Name: "Error", Results: []ResultCode{ResultMLE, ResultOLE, ResultIR, ResultRTE, ResultAB, ResultIE}},
}

var resultToCategory = func() map[ResultCode]string {
	m := make(map[ResultCode]string)
	for _, category := range ResultCategories {
		for _, result := range category.Results {
			m[result] = category.Code
		}
	}
	return m
}()

// CategoryOf maps a raw result code to its category code. The second return
// is false for codes outside the taxonomy (including the empty "pending"
// code), which callers must ignore rather than misattribute.
func CategoryOf(result ResultCode) (string, bool) {
	code, ok := resultToCategory[result]
	return code, ok
}

// CategoryCount is one category's share of a result distribution.
type CategoryCount struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// ResultData is a categorized breakdown of submission outcomes.
// Categories always appear in taxonomy order.
type ResultData struct {
	Categories []CategoryCount `json:"categories"`
	Total      int64           `json:"total"`
}

// NewResultData builds a zeroed breakdown in taxonomy order.
func NewResultData() ResultData {
	categories := make([]CategoryCount, 0, len(ResultCategories))
	for _, category := range ResultCategories {
		categories = append(categories, CategoryCount{Code: category.Code, Name: category.Name})
	}
	return ResultData{Categories: categories}
}
