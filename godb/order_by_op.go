package godb

import "sort"

// OrderBy materializes its child's entire output once (a blocking operator,
// unlike Filter/Join which pull incrementally) and replays it sorted by
// orderBy, breaking ties in order across fields, ascending or descending as
// ascendingList specifies per field. Rewind replays the already-sorted
// slice rather than re-materializing from the child.
type OrderBy struct {
	orderBy       []Expr
	child         Operator
	ascendingList []bool
	sorted        []*Tuple
	pos           int
}

// NewOrderBy builds an OrderBy over child, sorting by orderBy's expressions
// in order, using ascending[i] to decide sort direction for orderBy[i].
func NewOrderBy(orderBy []Expr, child Operator, ascending []bool) (*OrderBy, error) {
	return &OrderBy{orderBy: orderBy, child: child, ascendingList: ascending}, nil
}

func (o *OrderBy) Descriptor() *TupleDesc {
	return o.child.Descriptor()
}

func (o *OrderBy) Open(tid TransactionID) error {
	if err := o.child.Open(tid); err != nil {
		return err
	}
	return o.materialize()
}

func (o *OrderBy) materialize() error {
	tuples, err := drainOperator(o.child)
	if err != nil {
		return err
	}
	sort.Sort(sortTuples{orderBy: o.orderBy, ascendingList: o.ascendingList, all: tuples})
	o.sorted = tuples
	o.pos = 0
	return nil
}

// Rewind replays the previously sorted output from the start, without
// re-pulling the child.
func (o *OrderBy) Rewind() error {
	o.pos = 0
	return nil
}

func (o *OrderBy) Close() error {
	o.sorted = nil
	return o.child.Close()
}

func (o *OrderBy) HasNext() (bool, error) {
	return o.pos < len(o.sorted), nil
}

func (o *OrderBy) Next() (*Tuple, error) {
	if o.pos >= len(o.sorted) {
		return nil, NewGoDBError(NoSuchElementError, "Next called with no tuple available")
	}
	t := o.sorted[o.pos]
	o.pos++
	return t, nil
}

type sortTuples struct {
	orderBy       []Expr
	ascendingList []bool
	all           []*Tuple
}

func (s sortTuples) Less(a, b int) bool {
	tupleA := s.all[a]
	tupleB := s.all[b]

	for i, expr := range s.orderBy {
		valA, _ := expr.EvalExpr(tupleA)
		valB, _ := expr.EvalExpr(tupleB)

		if valA.EvalPred(valB, OpEq) {
			continue
		}
		if s.ascendingList[i] {
			return valA.EvalPred(valB, OpLt)
		}
		return !valA.EvalPred(valB, OpLt)
	}
	return false
}

func (s sortTuples) Swap(a, b int) {
	s.all[a], s.all[b] = s.all[b], s.all[a]
}

func (s sortTuples) Len() int {
	return len(s.all)
}
