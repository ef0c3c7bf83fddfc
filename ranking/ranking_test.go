package ranking

import (
	"testing"
)

func price(v float64) *float64 { return &v }

func TestScoreComponents(t *testing.T) {
	original := Item{Name: "PARALEN", Form: "TBL NOB", Strength: "500mg", MaxPrice: price(100)}

	tests := []struct {
		name      string
		candidate Item
		want      float64
	}{
		{
			name:      "identical medicine",
			candidate: original,
			want:      100,
		},
		{
			name:      "partial form match only",
			candidate: Item{Form: "tbl"},
			want:      20,
		},
		{
			name:      "cheaper candidate gets full price score",
			candidate: Item{MaxPrice: price(50)},
			want:      20,
		},
		{
			name:      "pricier candidate scaled down",
			candidate: Item{MaxPrice: price(200)},
			want:      10,
		},
		{
			name:      "half strength",
			candidate: Item{Strength: "1000mg"},
			want:      15,
		},
		{
			name:      "different units",
			candidate: Item{Strength: "100ml"},
			want:      9,
		},
		{
			name:      "nothing known",
			candidate: Item{},
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(original, tt.candidate); got != tt.want {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreMissingOriginalPrice(t *testing.T) {
	original := Item{Form: "TBL"}
	got := Score(original, Item{Form: "TBL", MaxPrice: price(10)})
	if got != 40 {
		t.Errorf("Expected price component to be skipped, got %v", got)
	}
}

func TestFormMatchAndCheaperOutranksMismatch(t *testing.T) {
	original := Item{Name: "NUROFEN", Form: "TBL FLM", Strength: "400mg", MaxPrice: price(120)}
	candidates := []Item{
		{Name: "IBUPROFEN", Form: "SIR", Strength: "400mg", MaxPrice: price(200)},
		{Name: "IBUPROFEN", Form: "TBL FLM", Strength: "400mg", MaxPrice: price(90)},
	}

	ranked := Rank(original, candidates)
	if len(ranked) != 2 {
		t.Fatalf("Expected 2 ranked candidates, got %d", len(ranked))
	}
	if ranked[0].Index != 1 {
		t.Errorf("Expected matching form with lower price first, got index %d", ranked[0].Index)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Errorf("Expected strictly higher score, got %v <= %v", ranked[0].Score, ranked[1].Score)
	}
}

func TestRankIsStableForTies(t *testing.T) {
	original := Item{Form: "TBL"}
	candidates := []Item{{Form: "TBL"}, {Form: "TBL"}, {Form: "TBL"}}

	ranked := Rank(original, candidates)
	for i, r := range ranked {
		if r.Index != i {
			t.Errorf("Expected input order for equal scores, position %d has %d", i, r.Index)
		}
	}
}

func TestScoreFreeCandidateGetsFullPriceScore(t *testing.T) {
	got := Score(Item{MaxPrice: price(100)}, Item{MaxPrice: price(0)})
	if got != 20 {
		t.Errorf("Expected zero-priced candidate to score 20, got %v", got)
	}

	// zero against zero is still "not more expensive"
	if got := Score(Item{MaxPrice: price(0)}, Item{MaxPrice: price(0)}); got != 20 {
		t.Errorf("Expected equal zero prices to score 20, got %v", got)
	}
}

func TestScoreIsRounded(t *testing.T) {
	original := Item{MaxPrice: price(100)}
	got := Score(original, Item{MaxPrice: price(300)})
	if got != 6.67 {
		t.Errorf("Expected 6.67, got %v", got)
	}
}
