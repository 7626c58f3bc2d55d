package godb

import "testing"

func TestComputeTableStatsCardinalityAndCost(t *testing.T) {
	hf, bp := newTestHeapFile(t, "stats.dat")
	tid := NewTID()
	bp.BeginTransaction(tid)
	for i := int32(0); i < 50; i++ {
		mustInsert(t, bp, hf, tid, "person", i)
	}
	bp.CommitTransaction(tid)

	stats, err := ComputeTableStats(bp, hf, 1000.0)
	if err != nil {
		t.Fatalf("ComputeTableStats: %v", err)
	}

	if got := stats.EstimateScanCost(); got != float64(hf.NumPages())*1000.0 {
		t.Fatalf("EstimateScanCost = %v, want %v", got, float64(hf.NumPages())*1000.0)
	}

	sel, err := stats.EstimateSelectivity("age", OpLt, IntField{Value: 25})
	if err != nil {
		t.Fatalf("EstimateSelectivity: %v", err)
	}
	if sel <= 0 || sel >= 1 {
		t.Fatalf("expected a selectivity strictly between 0 and 1, got %v", sel)
	}

	card := stats.EstimateCardinality(0.5)
	if card != 25 {
		t.Fatalf("expected cardinality 25 at selectivity 0.5 over 50 rows, got %d", card)
	}
}

func TestComputeTableStatsUnknownField(t *testing.T) {
	hf, bp := newTestHeapFile(t, "stats_unknown.dat")
	tid := NewTID()
	bp.BeginTransaction(tid)
	mustInsert(t, bp, hf, tid, "alice", 30)
	bp.CommitTransaction(tid)

	stats, err := ComputeTableStats(bp, hf, 1000.0)
	if err != nil {
		t.Fatalf("ComputeTableStats: %v", err)
	}
	if _, err := stats.EstimateSelectivity("nonexistent", OpEq, IntField{Value: 1}); err == nil {
		t.Fatalf("expected an error estimating selectivity on an unknown field")
	}
}
