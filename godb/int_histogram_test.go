package godb

import "testing"

func almostEqual(a, b float64) bool {
	const eps = 1e-9
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < eps
}

func TestIntHistogramEquality(t *testing.T) {
	h := NewIntHistogram(10, 1, 100)
	for v := 1; v <= 100; v++ {
		h.AddValue(v)
	}
	sel := h.EstimateSelectivity(OpEq, 50)
	if sel <= 0 || sel > 0.2 {
		t.Fatalf("expected a small positive equality selectivity, got %v", sel)
	}
}

func TestIntHistogramOutOfRange(t *testing.T) {
	h := NewIntHistogram(10, 10, 20)
	for v := 10; v <= 20; v++ {
		h.AddValue(v)
	}

	cases := []struct {
		op   BoolOp
		v    int
		want float64
	}{
		{OpGt, 5, 1.0},
		{OpGe, 5, 1.0},
		{OpLt, 5, 0.0},
		{OpLe, 5, 0.0},
		{OpEq, 5, 0.0},
		{OpNeq, 5, 1.0},
		{OpLt, 25, 1.0},
		{OpLe, 25, 1.0},
		{OpGt, 25, 0.0},
		{OpGe, 25, 0.0},
		{OpEq, 25, 0.0},
		{OpNeq, 25, 1.0},
	}
	for _, c := range cases {
		got := h.EstimateSelectivity(c.op, c.v)
		if !almostEqual(got, c.want) {
			t.Errorf("EstimateSelectivity(%v, %d) = %v, want %v", c.op, c.v, got, c.want)
		}
	}
}

func TestIntHistogramEmpty(t *testing.T) {
	h := NewIntHistogram(10, 0, 100)
	if sel := h.EstimateSelectivity(OpEq, 50); sel != 0 {
		t.Fatalf("expected 0 selectivity on an empty histogram, got %v", sel)
	}
	if avg := h.AvgSelectivity(); avg != 0 {
		t.Fatalf("expected 0 average selectivity on an empty histogram, got %v", avg)
	}
}

func TestIntHistogramSelectivitySumsToOne(t *testing.T) {
	h := NewIntHistogram(5, 1, 20)
	for v := 1; v <= 20; v++ {
		h.AddValue(v)
	}
	lt := h.EstimateSelectivity(OpLt, 10)
	eq := h.EstimateSelectivity(OpEq, 10)
	gt := h.EstimateSelectivity(OpGt, 10)
	total := lt + eq + gt
	if !almostEqual(total, 1.0) {
		t.Fatalf("P(<) + P(=) + P(>) should sum to ~1, got %v", total)
	}
}

// TestIntHistogramComplementAndLeProperties checks, across every in-range
// value, that sel(=) + sel(<>) = 1 and sel(<=) = sel(<) + sel(=). The range
// divides evenly into the bucket count so bucket edges line up exactly.
func TestIntHistogramComplementAndLeProperties(t *testing.T) {
	h := NewIntHistogram(5, 0, 49)
	for v := 0; v <= 49; v++ {
		h.AddValue(v)
		if v%3 == 0 {
			h.AddValue(v)
		}
	}
	for v := 0; v <= 49; v++ {
		eq := h.EstimateSelectivity(OpEq, v)
		neq := h.EstimateSelectivity(OpNeq, v)
		if !almostEqual(eq+neq, 1.0) {
			t.Fatalf("sel(=, %d) + sel(<>, %d) = %v, want 1", v, v, eq+neq)
		}
		le := h.EstimateSelectivity(OpLe, v)
		lt := h.EstimateSelectivity(OpLt, v)
		if !almostEqual(le, lt+eq) {
			t.Fatalf("sel(<=, %d) = %v, want sel(<) + sel(=) = %v", v, le, lt+eq)
		}
	}
}

// TestIntHistogramRangeScanHalf reproduces the worked example: 100 evenly
// distributed values in 10 buckets put roughly half the mass above the
// midpoint.
func TestIntHistogramRangeScanHalf(t *testing.T) {
	h := NewIntHistogram(10, 0, 99)
	for v := 0; v <= 99; v++ {
		h.AddValue(v)
	}
	if sel := h.EstimateSelectivity(OpEq, 50); sel < 0.005 || sel > 0.015 {
		t.Fatalf("sel(=, 50) = %v, want about 0.01", sel)
	}
	if sel := h.EstimateSelectivity(OpGt, 49); sel < 0.45 || sel > 0.55 {
		t.Fatalf("sel(>, 49) = %v, want about 0.5", sel)
	}
}
