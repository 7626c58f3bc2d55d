package godb

// AggOp names the five aggregate functions classdb supports.
type AggOp int

const (
	CountAgg AggOp = iota
	SumAgg
	AvgAgg
	MinAgg
	MaxAgg
)

func (op AggOp) String() string {
	switch op {
	case CountAgg:
		return "COUNT"
	case SumAgg:
		return "SUM"
	case AvgAgg:
		return "AVG"
	case MinAgg:
		return "MIN"
	case MaxAgg:
		return "MAX"
	}
	return "?"
}

// NoGrouping is the g_field sentinel meaning "aggregate the whole input into
// a single group."
const NoGrouping = -1

// intGroupState is one group's running aggregate for IntegerAggregator:
// acc alone for COUNT/SUM/MIN/MAX, acc+count together for AVG.
type intGroupState struct {
	acc   int32
	count int32
	init  bool
}

// IntegerAggregator folds an integer-valued field into one running
// aggregate per distinct value of an (optional) grouping field, per the
// merge rules: COUNT increments, SUM accumulates, MIN/MAX seed from the
// first value seen, AVG keeps a running sum/count and reports the
// truncating integer quotient.
type IntegerAggregator struct {
	op         AggOp
	aggField   Expr
	groupField Expr // nil under NoGrouping
	groupType  DBType
	groups     map[any]*intGroupState
	order      []any // insertion order, for deterministic iteration
	groupVals  []DBValue
}

// NewIntegerAggregator builds an IntegerAggregator computing op over
// aggField, grouped by groupField (nil for NoGrouping).
func NewIntegerAggregator(op AggOp, aggField Expr, groupField Expr) *IntegerAggregator {
	a := &IntegerAggregator{op: op, aggField: aggField, groupField: groupField}
	a.groups = make(map[any]*intGroupState)
	if groupField != nil {
		a.groupType = groupField.GetExprType().Ftype
	}
	return a
}

// groupKeyFor evaluates a's groupField against t, returning a hashable key
// (or NoGrouping's single sentinel key when there is no grouping field).
func (a *IntegerAggregator) groupKeyFor(t *Tuple) (any, DBValue, error) {
	if a.groupField == nil {
		return NoGrouping, nil, nil
	}
	v, err := a.groupField.EvalExpr(t)
	if err != nil {
		return nil, nil, err
	}
	switch g := v.(type) {
	case IntField:
		return g.Value, v, nil
	case StringField:
		return g.Value, v, nil
	}
	return nil, nil, NewGoDBError(TypeMismatchError, "unsupported group field type")
}

// MergeTuple folds one input tuple into its group's running state.
func (a *IntegerAggregator) MergeTuple(t *Tuple) error {
	key, groupVal, err := a.groupKeyFor(t)
	if err != nil {
		return err
	}
	val, err := a.aggField.EvalExpr(t)
	if err != nil {
		return err
	}
	iv, ok := val.(IntField)
	if !ok {
		return NewGoDBError(TypeMismatchError, "IntegerAggregator requires an Int-valued aggregate field")
	}

	state, ok := a.groups[key]
	if !ok {
		state = &intGroupState{}
		a.groups[key] = state
		a.order = append(a.order, key)
		if a.groupField != nil {
			a.groupVals = append(a.groupVals, groupVal)
		}
	}
	switch a.op {
	case CountAgg:
		state.acc++
	case SumAgg:
		state.acc += iv.Value
	case MinAgg:
		if !state.init || iv.Value < state.acc {
			state.acc = iv.Value
		}
	case MaxAgg:
		if !state.init || iv.Value > state.acc {
			state.acc = iv.Value
		}
	case AvgAgg:
		state.acc += iv.Value
		state.count++
	}
	state.init = true
	return nil
}

// Descriptor returns the output TupleDesc: [(groupType, gname), (Int, "op(aname)")]
// under grouping, or just [(Int, "op(aname)")] under NoGrouping.
func (a *IntegerAggregator) Descriptor() *TupleDesc {
	aggName := a.op.String() + " (" + a.aggField.GetExprType().Fname + ")"
	if a.groupField == nil {
		return &TupleDesc{Fields: []FieldType{{Fname: aggName, Ftype: IntType}}}
	}
	return &TupleDesc{Fields: []FieldType{
		{Fname: a.groupField.GetExprType().Fname, Ftype: a.groupType},
		{Fname: aggName, Ftype: IntType},
	}}
}

// Finalize returns one output tuple per group observed. Under NoGrouping, a
// child that produced zero tuples still yields one output tuple, value 0.
func (a *IntegerAggregator) Finalize() []*Tuple {
	desc := a.Descriptor()
	if a.groupField == nil && len(a.order) == 0 {
		return []*Tuple{{Desc: *desc, Fields: []DBValue{IntField{Value: 0}}}}
	}
	out := make([]*Tuple, 0, len(a.order))
	for i, key := range a.order {
		state := a.groups[key]
		value := state.acc
		if a.op == AvgAgg && state.count > 0 {
			value = state.acc / state.count
		}
		var fields []DBValue
		if a.groupField == nil {
			fields = []DBValue{IntField{Value: value}}
		} else {
			fields = []DBValue{a.groupVals[i], IntField{Value: value}}
		}
		out = append(out, &Tuple{Desc: *desc, Fields: fields})
	}
	return out
}

// stringGroupState is one group's running COUNT for StringAggregator.
type stringGroupState struct {
	count int32
}

// StringAggregator supports only COUNT; constructing it with any other op
// fails immediately.
type StringAggregator struct {
	aggField   Expr
	groupField Expr
	groupType  DBType
	groups     map[any]*stringGroupState
	order      []any
	groupVals  []DBValue
}

// NewStringAggregator builds a COUNT-only StringAggregator, failing for any
// other op.
func NewStringAggregator(op AggOp, aggField Expr, groupField Expr) (*StringAggregator, error) {
	if op != CountAgg {
		return nil, NewGoDBError(UnsupportedOpError, "StringAggregator only supports COUNT")
	}
	a := &StringAggregator{aggField: aggField, groupField: groupField}
	a.groups = make(map[any]*stringGroupState)
	if groupField != nil {
		a.groupType = groupField.GetExprType().Ftype
	}
	return a, nil
}

func (a *StringAggregator) groupKeyFor(t *Tuple) (any, DBValue, error) {
	if a.groupField == nil {
		return NoGrouping, nil, nil
	}
	v, err := a.groupField.EvalExpr(t)
	if err != nil {
		return nil, nil, err
	}
	switch g := v.(type) {
	case IntField:
		return g.Value, v, nil
	case StringField:
		return g.Value, v, nil
	}
	return nil, nil, NewGoDBError(TypeMismatchError, "unsupported group field type")
}

func (a *StringAggregator) MergeTuple(t *Tuple) error {
	key, groupVal, err := a.groupKeyFor(t)
	if err != nil {
		return err
	}
	state, ok := a.groups[key]
	if !ok {
		state = &stringGroupState{}
		a.groups[key] = state
		a.order = append(a.order, key)
		if a.groupField != nil {
			a.groupVals = append(a.groupVals, groupVal)
		}
	}
	state.count++
	return nil
}

func (a *StringAggregator) Descriptor() *TupleDesc {
	aggName := CountAgg.String() + " (" + a.aggField.GetExprType().Fname + ")"
	if a.groupField == nil {
		return &TupleDesc{Fields: []FieldType{{Fname: aggName, Ftype: IntType}}}
	}
	return &TupleDesc{Fields: []FieldType{
		{Fname: a.groupField.GetExprType().Fname, Ftype: a.groupType},
		{Fname: aggName, Ftype: IntType},
	}}
}

func (a *StringAggregator) Finalize() []*Tuple {
	desc := a.Descriptor()
	if a.groupField == nil && len(a.order) == 0 {
		return []*Tuple{{Desc: *desc, Fields: []DBValue{IntField{Value: 0}}}}
	}
	out := make([]*Tuple, 0, len(a.order))
	for i, key := range a.order {
		state := a.groups[key]
		var fields []DBValue
		if a.groupField == nil {
			fields = []DBValue{IntField{Value: state.count}}
		} else {
			fields = []DBValue{a.groupVals[i], IntField{Value: state.count}}
		}
		out = append(out, &Tuple{Desc: *desc, Fields: fields})
	}
	return out
}
