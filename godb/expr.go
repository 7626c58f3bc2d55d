package godb

import "fmt"

// Expr evaluates to a DBValue given an input tuple. FieldExpr and ConstExpr
// are the only two concrete implementations classdb needs: everything
// Filter/Join/OrderBy/Aggregate evaluate is either "a named field of the
// input tuple" or "a fixed constant".
type Expr interface {
	EvalExpr(t *Tuple) (DBValue, error)
	GetExprType() FieldType
}

// FieldExpr extracts a named field from whatever tuple it is evaluated
// against.
type FieldExpr struct {
	Field FieldType
}

func NewFieldExpr(field FieldType) *FieldExpr {
	return &FieldExpr{Field: field}
}

func (e *FieldExpr) EvalExpr(t *Tuple) (DBValue, error) {
	idx, err := findFieldInTd(e.Field, &t.Desc)
	if err != nil {
		return nil, err
	}
	return t.Fields[idx], nil
}

func (e *FieldExpr) GetExprType() FieldType {
	return e.Field
}

// ConstExpr always evaluates to the same fixed value, regardless of the
// tuple it's handed.
type ConstExpr struct {
	Value DBValue
	Ftype DBType
}

func NewConstExpr(value DBValue, ftype DBType) *ConstExpr {
	return &ConstExpr{Value: value, Ftype: ftype}
}

func (e *ConstExpr) EvalExpr(t *Tuple) (DBValue, error) {
	return e.Value, nil
}

func (e *ConstExpr) GetExprType() FieldType {
	return FieldType{Fname: fmt.Sprintf("%v", e.Value), Ftype: e.Ftype}
}

// Predicate is a single-field comparison against a constant, e.g. the WHERE
// clause of a Filter: field OP constant.
type Predicate struct {
	Field    FieldType
	Op       BoolOp
	Constant DBValue
}

// JoinPredicate is an equality (or, optionally, inequality) comparison
// between a field of the left child and a field of the right child of a
// Join.
type JoinPredicate struct {
	LeftField  FieldType
	Op         BoolOp
	RightField FieldType
}
