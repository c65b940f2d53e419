package calibrate

import (
	"errors"
	"math"
	"sort"
	"testing"
)

func TestCalibrateUnknownMethod(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = "softmax"
	if _, err := Calibrate([]float64{1, 2}, cfg); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("err = %v, want ErrUnknownMethod", err)
	}
}

func TestCalibrateEdgeCases(t *testing.T) {
	for _, method := range []Method{ExpSquash, PctlCeiling} {
		cfg := DefaultConfig()
		cfg.Method = method

		t.Run(string(method)+"/empty", func(t *testing.T) {
			got, err := Calibrate([]float64{}, cfg)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 0 {
				t.Errorf("got %v, want empty", got)
			}
		})

		t.Run(string(method)+"/single", func(t *testing.T) {
			got, err := Calibrate([]float64{5.0}, cfg)
			if err != nil {
				t.Fatal(err)
			}
			want := math.Min(cfg.MaxCap, 0.5)
			if len(got) != 1 || got[0] != want {
				t.Errorf("got %v, want [%v]", got, want)
			}
		})

		t.Run(string(method)+"/flat", func(t *testing.T) {
			got, err := Calibrate([]float64{3.0, 3.0, 3.0}, cfg)
			if err != nil {
				t.Fatal(err)
			}
			for i, v := range got {
				if v != 0.5 {
					t.Errorf("got[%d] = %v, want 0.5", i, v)
				}
			}
		})

		t.Run(string(method)+"/flat under tiny cap", func(t *testing.T) {
			small := cfg
			small.MaxCap = 0.4
			got, err := Calibrate([]float64{3.0, 3.0}, small)
			if err != nil {
				t.Fatal(err)
			}
			for i, v := range got {
				if v != 0.4 {
					t.Errorf("got[%d] = %v, want MaxCap 0.4", i, v)
				}
			}
		})
	}
}

func TestExpSquashPreservesOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Alpha = 3.0
	cfg.MaxCap = 0.97

	in := []float64{0.92, 0.85, 0.78, 0.65}
	got, err := Calibrate(in, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(in) {
		t.Fatalf("len = %d, want %d", len(got), len(in))
	}
	for i := 1; i < len(got); i++ {
		if got[i] >= got[i-1] {
			t.Errorf("strict descending order broken at %d: %v", i, got)
		}
	}
	for i, v := range got {
		if v < 0 || v > cfg.MaxCap {
			t.Errorf("got[%d] = %v outside [0, %v]", i, v, cfg.MaxCap)
		}
	}
}

func TestMonotonicityAndBounds(t *testing.T) {
	inputs := [][]float64{
		{0, 1, 2, 3, 4, 5},
		{-10, -5, 0, 5, 10},
		{1e-8, 2e-8, 3e-3, 1},
		{0.1, 0.1, 0.2, 0.9, 0.9, 1.5},
		{-1e9, 0, 1e9},
	}

	for _, method := range []Method{ExpSquash, PctlCeiling} {
		cfg := DefaultConfig()
		cfg.Method = method

		for _, in := range inputs {
			sorted := make([]float64, len(in))
			copy(sorted, in)
			sort.Float64s(sorted)

			got, err := Calibrate(sorted, cfg)
			if err != nil {
				t.Fatal(err)
			}
			for i := 1; i < len(got); i++ {
				if got[i] < got[i-1] {
					t.Errorf("%s: non-decreasing input gave decreasing output %v for %v", method, got, sorted)
					break
				}
			}
			for i, v := range got {
				if v < 0 || v > cfg.MaxCap {
					t.Errorf("%s: got[%d] = %v outside [0, %v]", method, i, v, cfg.MaxCap)
				}
			}
		}
	}
}

func TestPctlCeilingDoesNotSaturateTopScore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = PctlCeiling
	cfg.Percentile = 75

	// One outlier on top of a tight cluster: the cluster should keep spread
	// instead of everything collapsing under a maximum-based ceiling.
	in := []float64{10.0, 1.0, 0.9, 0.8, 0.7}
	got, err := Calibrate(in, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != cfg.MaxCap {
		t.Errorf("outlier display = %v, want capped at %v", got[0], cfg.MaxCap)
	}
	if got[1] <= got[3] {
		t.Errorf("cluster lost its spread: %v", got)
	}
}

func TestPctlCeilingPreservesIndexOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = PctlCeiling

	in := []float64{0.3, 0.9, 0.1, 0.7}
	got, err := Calibrate(in, cfg)
	if err != nil {
		t.Fatal(err)
	}
	// Pairwise: raw order and display order must agree at every index pair.
	for i := range in {
		for j := range in {
			if in[i] < in[j] && got[i] > got[j] {
				t.Errorf("order inverted between %d and %d: %v -> %v", i, j, in, got)
			}
		}
	}
}

func TestPercentile(t *testing.T) {
	scores := []float64{1, 2, 3, 4}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{100, 4},
		{50, 2.5},
		{25, 1.75},
		{95, 3.85},
	}
	for _, tt := range tests {
		if got := percentile(scores, tt.p); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}
