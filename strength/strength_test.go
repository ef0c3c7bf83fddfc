package strength

import (
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValue float64
		wantUnit  string
		wantOK    bool
	}{
		{"milligrams", "500mg", 500, "MG", true},
		{"space before unit", "500 mg", 500, "MG", true},
		{"grams converted", "2g", 2000, "MG", true},
		{"decimal comma grams", "2,5 g", 2500, "MG", true},
		{"decimal dot", "2.5ml", 2.5, "ML", true},
		{"percent", "10%", 10, "%", true},
		{"international units", "1000 iu", 1000, "IU", true},
		{"combination takes first", "500mg/5ml", 500, "MG", true},
		{"bare number", "250", 250, "", true},
		{"empty", "", 0, "", false},
		{"whitespace", "   ", 0, "", false},
		{"no number", "neuvedeno", 0, "neuvedeno", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, unit, ok := Parse(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if value != tt.wantValue || unit != tt.wantUnit {
				t.Errorf("Parse(%q) = (%v, %q), want (%v, %q)", tt.input, value, unit, tt.wantValue, tt.wantUnit)
			}
		})
	}
}

func TestParseGramsEqualsMilligrams(t *testing.T) {
	v1, u1, _ := Parse("2g")
	v2, u2, _ := Parse("2000mg")
	if v1 != v2 || u1 != u2 {
		t.Errorf("Expected 2g == 2000mg, got (%v, %s) and (%v, %s)", v1, u1, v2, u2)
	}
}

func TestParseIsIdempotentOnRenderedForm(t *testing.T) {
	inputs := []string{"500mg", "2,5g", "10%", "1000 IU", "0.5 ml", "40"}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			value, unit, ok := Parse(input)
			if !ok {
				t.Fatalf("Parse(%q) failed", input)
			}
			again, againUnit, ok := Parse(Format(value, unit))
			if !ok || again != value || againUnit != unit {
				t.Errorf("Parse(Format(%v, %q)) = (%v, %q, %v)", value, unit, again, againUnit, ok)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"500mg", "500mg", 1.0},
		{"500mg", "500 MG", 1.0},
		{"2g", "2000mg", 1.0},
		{"500mg", "1000mg", 0.5},
		{"1000mg", "500mg", 0.5},
		{"500mg", "100ml", 0.3},
		{"neuvedeno", "Neuvedeno ", 0.5},
		{"neuvedeno", "jiné", 0.0},
		{"", "500mg", 0.0},
		{"", "", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilaritySelfIsOne(t *testing.T) {
	for _, s := range []string{"500mg", "2,5g", "10%", "0.4 ml", "75"} {
		if got := Similarity(s, s); got != 1.0 {
			t.Errorf("Similarity(%q, %q) = %v, want 1", s, s, got)
		}
	}
}
