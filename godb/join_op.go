package godb

import "sort"

// Join computes the equi- or inequality-join of left and right according to
// pred: for every left tuple and every right tuple, emit their
// concatenation if leftField pred rightField holds. Nested-loop join is
// the baseline algorithm classdb always has available (and the only one
// valid for a non-equality predicate); for an equality predicate, Open
// instead runs a sort-merge join, a strictly cheaper algorithm over the
// same semantics, materializing and sorting both sides once rather than
// scanning right once per left tuple.
type Join struct {
	left, right   Operator
	leftField     Expr
	op            BoolOp
	rightField    Expr
	desc          *TupleDesc
	maxBufferSize int

	// nested-loop state
	outer         *Tuple
	pendingNested *Tuple

	// sort-merge state, used only when op == OpEq
	merged       []*Tuple
	pos          int
	useSortMerge bool
}

// NewJoin builds a Join of left and right on leftField OP rightField.
// maxBufferSize bounds how many intermediate tuples the sort-merge path
// will materialize at once before falling back to nested-loop; 0 means
// unbounded.
func NewJoin(left Operator, leftField Expr, right Operator, rightField Expr, op BoolOp, maxBufferSize int) (*Join, error) {
	if leftField.GetExprType().Ftype != rightField.GetExprType().Ftype {
		return nil, NewGoDBError(TypeMismatchError, "join fields must have the same type")
	}
	return &Join{
		left:          left,
		right:         right,
		leftField:     leftField,
		op:            op,
		rightField:    rightField,
		desc:          left.Descriptor().merge(right.Descriptor()),
		maxBufferSize: maxBufferSize,
		useSortMerge:  op == OpEq,
	}, nil
}

// NewJoinFromPredicate builds a Join from the bundled two-field form a
// planner hands down.
func NewJoinFromPredicate(left, right Operator, p JoinPredicate, maxBufferSize int) (*Join, error) {
	return NewJoin(left, NewFieldExpr(p.LeftField), right, NewFieldExpr(p.RightField), p.Op, maxBufferSize)
}

func (j *Join) Descriptor() *TupleDesc {
	return j.desc
}

func (j *Join) Open(tid TransactionID) error {
	if err := j.left.Open(tid); err != nil {
		return err
	}
	if err := j.right.Open(tid); err != nil {
		return err
	}
	if j.useSortMerge {
		return j.runSortMerge()
	}
	return j.startOuter()
}

// startOuter advances to the first outer (left) tuple and rewinds the
// inner (right) child under it, the nested-loop join's per-outer-row setup.
func (j *Join) startOuter() error {
	has, err := j.left.HasNext()
	if err != nil || !has {
		j.outer = nil
		return err
	}
	t, err := j.left.Next()
	if err != nil {
		return err
	}
	j.outer = t
	return j.right.Rewind()
}

func (j *Join) Rewind() error {
	if err := j.left.Rewind(); err != nil {
		return err
	}
	if err := j.right.Rewind(); err != nil {
		return err
	}
	j.pos = 0
	j.pendingNested = nil
	if j.useSortMerge {
		return j.runSortMerge()
	}
	return j.startOuter()
}

func (j *Join) Close() error {
	j.merged = nil
	j.outer = nil
	j.pendingNested = nil
	if err := j.left.Close(); err != nil {
		return err
	}
	return j.right.Close()
}

// nestedLoopNext implements the required baseline algorithm: scan right in
// full for every left tuple, advancing to the next left tuple (and
// rewinding right again) once right is exhausted.
func (j *Join) nestedLoopNext() (*Tuple, error) {
	for j.outer != nil {
		has, err := j.right.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			if err := j.startOuter(); err != nil {
				return nil, err
			}
			continue
		}
		inner, err := j.right.Next()
		if err != nil {
			return nil, err
		}
		leftVal, err := j.leftField.EvalExpr(j.outer)
		if err != nil {
			return nil, err
		}
		rightVal, err := j.rightField.EvalExpr(inner)
		if err != nil {
			return nil, err
		}
		if leftVal.EvalPred(rightVal, j.op) {
			return joinTuples(j.outer, inner), nil
		}
	}
	return nil, nil
}

func (j *Join) HasNext() (bool, error) {
	if j.useSortMerge {
		return j.pos < len(j.merged), nil
	}
	t, err := j.peekNested()
	return t != nil, err
}

// peekNested caches the next matching pair so HasNext doesn't consume it.
func (j *Join) peekNested() (*Tuple, error) {
	if j.pendingNested != nil {
		return j.pendingNested, nil
	}
	t, err := j.nestedLoopNext()
	if err != nil {
		return nil, err
	}
	j.pendingNested = t
	return t, nil
}

func (j *Join) Next() (*Tuple, error) {
	if j.useSortMerge {
		if j.pos >= len(j.merged) {
			return nil, NewGoDBError(NoSuchElementError, "Next called with no tuple available")
		}
		t := j.merged[j.pos]
		j.pos++
		return t, nil
	}
	t, err := j.peekNested()
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NewGoDBError(NoSuchElementError, "Next called with no tuple available")
	}
	j.pendingNested = nil
	return t, nil
}

// runSortMerge materializes both children, sorts each by its join field,
// and merges matching runs -- valid only for OpEq, since it relies on equal
// keys being adjacent once sorted. If the two sides together exceed
// maxBufferSize tuples, the join falls back to nested-loop for this and
// every later pass rather than holding the whole input in memory.
func (j *Join) runSortMerge() error {
	leftTuples, err := drainOperator(j.left)
	if err != nil {
		return err
	}
	rightTuples, err := drainOperator(j.right)
	if err != nil {
		return err
	}
	if j.maxBufferSize > 0 && len(leftTuples)+len(rightTuples) > j.maxBufferSize {
		j.useSortMerge = false
		j.merged = nil
		if err := j.left.Rewind(); err != nil {
			return err
		}
		if err := j.right.Rewind(); err != nil {
			return err
		}
		return j.startOuter()
	}
	sortByField(leftTuples, j.leftField)
	sortByField(rightTuples, j.rightField)

	j.merged = mergeEqualJoin(leftTuples, rightTuples, j.leftField, j.rightField)
	j.pos = 0
	return nil
}

func drainOperator(op Operator) ([]*Tuple, error) {
	var out []*Tuple
	for {
		has, err := op.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			return out, nil
		}
		t, err := op.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
}

func sortByField(tuples []*Tuple, field Expr) {
	sort.SliceStable(tuples, func(i, j int) bool {
		order, _ := tuples[i].compareField(tuples[j], field)
		return order == OrderedLessThan
	})
}

func mergeEqualJoin(leftTuples, rightTuples []*Tuple, leftField, rightField Expr) []*Tuple {
	var joined []*Tuple
	i, k := 0, 0
	for i < len(leftTuples) && k < len(rightTuples) {
		order, err := compareAcross(leftTuples[i], rightTuples[k], leftField, rightField)
		if err != nil {
			break
		}
		switch order {
		case OrderedEqual:
			iEnd := equalRunEnd(leftTuples, i, leftField)
			kEnd := equalRunEnd(rightTuples, k, rightField)
			for a := i; a < iEnd; a++ {
				for b := k; b < kEnd; b++ {
					joined = append(joined, joinTuples(leftTuples[a], rightTuples[b]))
				}
			}
			i, k = iEnd, kEnd
		case OrderedLessThan:
			i++
		case OrderedGreaterThan:
			k++
		}
	}
	return joined
}

func equalRunEnd(tuples []*Tuple, start int, field Expr) int {
	end := start + 1
	for end < len(tuples) {
		order, err := tuples[end].compareField(tuples[start], field)
		if err != nil || order != OrderedEqual {
			break
		}
		end++
	}
	return end
}

func compareAcross(left, right *Tuple, leftField, rightField Expr) (orderByState, error) {
	leftVal, err := leftField.EvalExpr(left)
	if err != nil {
		return 0, err
	}
	rightVal, err := rightField.EvalExpr(right)
	if err != nil {
		return 0, err
	}
	switch lv := leftVal.(type) {
	case IntField:
		rv := rightVal.(IntField)
		switch {
		case lv.Value < rv.Value:
			return OrderedLessThan, nil
		case lv.Value > rv.Value:
			return OrderedGreaterThan, nil
		default:
			return OrderedEqual, nil
		}
	case StringField:
		rv := rightVal.(StringField)
		switch {
		case lv.Value < rv.Value:
			return OrderedLessThan, nil
		case lv.Value > rv.Value:
			return OrderedGreaterThan, nil
		default:
			return OrderedEqual, nil
		}
	default:
		return OrderedEqual, nil
	}
}
