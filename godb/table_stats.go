package godb

// NumHistBins bounds how many buckets each column histogram uses.
const NumHistBins = 100

// columnStats is whichever histogram a single column's type requires.
type columnStats struct {
	ints    *IntHistogram
	strings *StringHistogram
}

// TableStats holds per-column selectivity histograms and the page/tuple
// counts needed to estimate a scan's I/O cost and a filtered scan's
// cardinality, without actually running the query.
type TableStats struct {
	desc        *TupleDesc
	numPages    int
	numTuples   int
	costPerPage float64
	columns     []columnStats
}

// ComputeTableStats scans file twice: once to find each integer column's
// [min, max] range and the total tuple count, once more to populate every
// column's histogram now that ranges are known.
func ComputeTableStats(bp *BufferPool, file DBFile, costPerPage float64) (*TableStats, error) {
	desc := file.Descriptor()
	stats := &TableStats{
		desc:        desc,
		numPages:    file.NumPages(),
		costPerPage: costPerPage,
		columns:     make([]columnStats, len(desc.Fields)),
	}

	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		return nil, err
	}

	mins := make([]int32, len(desc.Fields))
	maxs := make([]int32, len(desc.Fields))
	for i := range mins {
		mins[i] = int32(1<<31 - 1)
		maxs[i] = -(1 << 31)
	}

	firstPass, err := file.iterator(tid)
	if err != nil {
		bp.AbortTransaction(tid)
		return nil, err
	}
	numTuples := 0
	for {
		t, err := firstPass()
		if err != nil {
			bp.AbortTransaction(tid)
			return nil, err
		}
		if t == nil {
			break
		}
		numTuples++
		for i, field := range t.Fields {
			if iv, ok := field.(IntField); ok {
				if iv.Value < mins[i] {
					mins[i] = iv.Value
				}
				if iv.Value > maxs[i] {
					maxs[i] = iv.Value
				}
			}
		}
	}
	stats.numTuples = numTuples

	for i, f := range desc.Fields {
		switch f.Ftype {
		case IntType:
			lo, hi := int(mins[i]), int(maxs[i])
			if lo > hi {
				lo, hi = 0, 0
			}
			stats.columns[i].ints = NewIntHistogram(NumHistBins, lo, hi)
		case StringType:
			stats.columns[i].strings = NewStringHistogram(NumHistBins)
		}
	}

	secondPass, err := file.iterator(tid)
	if err != nil {
		bp.AbortTransaction(tid)
		return nil, err
	}
	for {
		t, err := secondPass()
		if err != nil {
			bp.AbortTransaction(tid)
			return nil, err
		}
		if t == nil {
			break
		}
		for i, field := range t.Fields {
			switch v := field.(type) {
			case IntField:
				stats.columns[i].ints.AddValue(int(v.Value))
			case StringField:
				stats.columns[i].strings.AddValue(v.Value)
			}
		}
	}

	if err := bp.CommitTransaction(tid); err != nil {
		return nil, err
	}
	return stats, nil
}

// EstimateScanCost returns the estimated I/O cost of a full sequential scan.
func (s *TableStats) EstimateScanCost() float64 {
	return float64(s.numPages) * s.costPerPage
}

// EstimateCardinality returns the estimated number of tuples a predicate of
// the given selectivity would pass.
func (s *TableStats) EstimateCardinality(selectivity float64) int {
	return int(float64(s.numTuples)*selectivity + 0.5)
}

// EstimateSelectivity dispatches to the named field's histogram.
func (s *TableStats) EstimateSelectivity(fieldName string, op BoolOp, value DBValue) (float64, error) {
	idx, err := findFieldInTd(FieldType{Fname: fieldName, Ftype: UnknownType}, s.desc)
	if err != nil {
		return 0, err
	}
	col := s.columns[idx]
	switch v := value.(type) {
	case IntField:
		if col.ints == nil {
			return 0, NewGoDBError(TypeMismatchError, "field is not an int column")
		}
		return col.ints.EstimateSelectivity(op, int(v.Value)), nil
	case StringField:
		if col.strings == nil {
			return 0, NewGoDBError(TypeMismatchError, "field is not a string column")
		}
		return col.strings.EstimateSelectivity(op, v.Value), nil
	}
	return 0, NewGoDBError(TypeMismatchError, "unsupported value type")
}
