package godb

// Filter passes through every tuple of its child for which left OP right
// evaluates true.
type Filter struct {
	op      BoolOp
	left    Expr
	right   Expr
	child   Operator
	pending *Tuple
}

// NewFilter builds a Filter evaluating field OP constExpr against every
// tuple child produces.
func NewFilter(constExpr Expr, op BoolOp, field Expr, child Operator) (*Filter, error) {
	return &Filter{op: op, left: field, right: constExpr, child: child}, nil
}

// NewFilterFromPredicate builds a Filter from the bundled (field, op,
// constant) form a planner hands down.
func NewFilterFromPredicate(p Predicate, child Operator) (*Filter, error) {
	return NewFilter(NewConstExpr(p.Constant, p.Constant.fieldType()), p.Op, NewFieldExpr(p.Field), child)
}

func (f *Filter) Descriptor() *TupleDesc {
	return f.child.Descriptor()
}

func (f *Filter) Open(tid TransactionID) error {
	return f.child.Open(tid)
}

func (f *Filter) Rewind() error {
	f.pending = nil
	return f.child.Rewind()
}

func (f *Filter) Close() error {
	f.pending = nil
	return f.child.Close()
}

// advance pulls tuples from the child until one satisfies the predicate (or
// the child is exhausted), returning it without consuming it from Next's
// perspective -- HasNext and Next share this single lookahead slot.
func (f *Filter) advance() (*Tuple, error) {
	for {
		has, err := f.child.HasNext()
		if err != nil || !has {
			return nil, err
		}
		t, err := f.child.Next()
		if err != nil {
			return nil, err
		}
		leftVal, err := f.left.EvalExpr(t)
		if err != nil {
			return nil, err
		}
		rightVal, err := f.right.EvalExpr(t)
		if err != nil {
			return nil, err
		}
		if leftVal.EvalPred(rightVal, f.op) {
			return t, nil
		}
	}
}

func (f *Filter) HasNext() (bool, error) {
	if f.pending != nil {
		return true, nil
	}
	t, err := f.advance()
	if err != nil {
		return false, err
	}
	f.pending = t
	return t != nil, nil
}

func (f *Filter) Next() (*Tuple, error) {
	if f.pending == nil {
		t, err := f.advance()
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, NewGoDBError(NoSuchElementError, "Next called with no tuple available")
		}
		return t, nil
	}
	t := f.pending
	f.pending = nil
	return t, nil
}
