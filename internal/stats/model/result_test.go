package model_test

import (
	"testing"

	"ojstats/internal/stats/model"
)

func TestCategoryOf(t *testing.T) {
	cases := []struct {
		result model.ResultCode
		want   string
	}{
		{model.ResultAC, "AC"},
		{model.ResultWA, "WA"},
		{model.ResultCE, "CE"},
		{model.ResultTLE, "TLE"},
		{model.ResultMLE, "ERR"},
		{model.ResultOLE, "ERR"},
		{model.ResultIR, "ERR"},
		{model.ResultRTE, "ERR"},
		{model.ResultAB, "ERR"},
		{model.ResultIE, "ERR"},
	}
	for _, tc := range cases {
		got, ok := model.CategoryOf(tc.result)
		if !ok || got != tc.want {
			t.Fatalf("CategoryOf(%s) = %s, %v; want %s", tc.result, got, ok, tc.want)
		}
	}
}

func TestCategoryOfUnknownCodes(t *testing.T) {
	for _, result := range []model.ResultCode{"", "XX", "ac"} {
		if _, ok := model.CategoryOf(result); ok {
			t.Fatalf("expected %q to be outside the taxonomy", result)
		}
	}
}

func TestNewResultDataOrder(t *testing.T) {
	data := model.NewResultData()

	want := []string{"AC", "WA", "CE", "TLE", "ERR"}
	if len(data.Categories) != len(want) {
		t.Fatalf("expected %d categories, got %d", len(want), len(data.Categories))
	}
	for i, code := range want {
		if data.Categories[i].Code != code {
			t.Fatalf("expected %s at index %d, got %s", code, i, data.Categories[i].Code)
		}
		if data.Categories[i].Count != 0 {
			t.Fatalf("expected zeroed counts")
		}
	}
	if data.Total != 0 {
		t.Fatalf("expected zero total")
	}
}
