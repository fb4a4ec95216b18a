package match

import "testing"

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "abc", "abc", 1000},
		{"both empty", "", "", 1000},
		{"one empty", "abc", "", 0},
		{"no overlap", "abc", "xyz", 0},
		// longest block "bcd" (3 runes), total length 8: 2*3/8 = 0.75
		{"partial overlap", "abcd", "bcde", 750},
		// longest block "ab" (2 runes), total length 10: 2*2/10 = 0.4
		{"short prefix", "abcde", "abfgh", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ratio(tt.a, tt.b); got != tt.want {
				t.Errorf("Ratio(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRatioSymmetricOrder(t *testing.T) {
	// The matching-block total is the same either way for these inputs, so
	// the ratio must be too.
	a, b := "paranoid android", "paranoid humanoid"
	if r1, r2 := Ratio(a, b), Ratio(b, a); r1 != r2 {
		t.Errorf("Ratio not symmetric: %d vs %d", r1, r2)
	}
}

func TestRatioTypoTolerance(t *testing.T) {
	// A one-character typo in a realistic title should still score high
	// enough to clear the per-artist cutoff used by the filter.
	got := Ratio("radiohead", "radiohed")
	if got <= artistCutoff {
		t.Errorf("Ratio(radiohead, radiohed) = %d, want > %d", got, artistCutoff)
	}
}
