package models

import (
	"testing"
)

func TestScoreItem_ComputeTotal(t *testing.T) {
	tests := []struct {
		name      string
		caScore   float64
		examScore float64
		wantCA    float64
		wantTotal float64
	}{
		{name: "within cap", caScore: 25, examScore: 60, wantCA: 25, wantTotal: 85},
		{name: "at cap", caScore: 30, examScore: 50, wantCA: 30, wantTotal: 80},
		{name: "above cap is clamped", caScore: 48, examScore: 50, wantCA: 30, wantTotal: 80},
		{name: "zero components", caScore: 0, examScore: 0, wantCA: 0, wantTotal: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := ScoreItem{CAScore: tt.caScore, ExamScore: tt.examScore}
			item.ComputeTotal()
			if item.CAScore != tt.wantCA {
				t.Errorf("ca score = %v, want %v", item.CAScore, tt.wantCA)
			}
			if item.Total != tt.wantTotal {
				t.Errorf("total = %v, want %v", item.Total, tt.wantTotal)
			}
		})
	}
}

func TestResult_RecomputeAverage(t *testing.T) {
	t.Run("no items", func(t *testing.T) {
		r := Result{Average: 50}
		r.RecomputeAverage()
		if r.Average != 0 {
			t.Errorf("average = %v, want 0", r.Average)
		}
	})

	t.Run("mean over items", func(t *testing.T) {
		r := Result{Items: []ScoreItem{
			{Total: 80},
			{Total: 60},
			{Total: 70},
		}}
		r.RecomputeAverage()
		if r.Average != 70 {
			t.Errorf("average = %v, want 70", r.Average)
		}
	})
}
