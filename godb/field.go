package godb

import "strings"

// DBType tags the two closed variants of field classdb knows about.
type DBType int

const (
	IntType DBType = iota
	StringType
	UnknownType // used internally during parsing, when a type hasn't been resolved yet
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// ByteLength is the fixed on-disk width of a field of this type: Int is 4
// bytes, Str is a 4-byte length prefix plus StringLength bytes.
func (t DBType) ByteLength() int {
	if t == StringType {
		return 4 + StringLength
	}
	return 4
}

// BoolOp is a comparison operator usable between two field values.
type BoolOp int

const (
	OpEq BoolOp = iota
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpLike
)

func (op BoolOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNeq:
		return "<>"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpLike:
		return "LIKE"
	}
	return "?"
}

// DBValue is a tagged field value: either an IntField or a StringField. It is
// a closed sum type matched exhaustively rather than a virtual hierarchy, per
// the design notes.
type DBValue interface {
	fieldType() DBType
	// EvalPred compares the receiver to other using op, returning the boolean
	// result. Both values must be of the same DBType except under OpLike,
	// which is only meaningful for strings.
	EvalPred(other DBValue, op BoolOp) bool
}

// IntField is a 4-byte (on the wire), two's-complement signed integer field.
// In memory it is carried as an int32.
type IntField struct {
	Value int32
}

func (IntField) fieldType() DBType { return IntType }

func (f IntField) EvalPred(other DBValue, op BoolOp) bool {
	o, ok := other.(IntField)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return f.Value == o.Value
	case OpNeq:
		return f.Value != o.Value
	case OpLt:
		return f.Value < o.Value
	case OpLe:
		return f.Value <= o.Value
	case OpGt:
		return f.Value > o.Value
	case OpGe:
		return f.Value >= o.Value
	}
	return false
}

// StringField is a bounded string field, truncated/padded to StringLength
// bytes on the wire.
type StringField struct {
	Value string
}

func (StringField) fieldType() DBType { return StringType }

func (f StringField) EvalPred(other DBValue, op BoolOp) bool {
	o, ok := other.(StringField)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return f.Value == o.Value
	case OpNeq:
		return f.Value != o.Value
	case OpLt:
		return f.Value < o.Value
	case OpLe:
		return f.Value <= o.Value
	case OpGt:
		return f.Value > o.Value
	case OpGe:
		return f.Value >= o.Value
	case OpLike:
		return likeMatch(f.Value, o.Value)
	}
	return false
}

// likeMatch implements the subset of SQL LIKE classdb supports: '%' matches
// any run of characters, '_' matches exactly one. Matching is done on the
// case-folded form of both operands (see foldCase in config.go) so that LIKE
// behaves the way most teaching SQL dialects expect.
func likeMatch(value, pattern string) bool {
	value = foldCase(value)
	pattern = foldCase(pattern)
	return likeMatchRunes([]rune(value), []rune(pattern))
}

func likeMatchRunes(value, pattern []rune) bool {
	if len(pattern) == 0 {
		return len(value) == 0
	}
	switch pattern[0] {
	case '%':
		if likeMatchRunes(value, pattern[1:]) {
			return true
		}
		for i := 0; i < len(value); i++ {
			if likeMatchRunes(value[i+1:], pattern[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(value) == 0 {
			return false
		}
		return likeMatchRunes(value[1:], pattern[1:])
	default:
		if len(value) == 0 || !strings.EqualFold(string(value[0]), string(pattern[0])) {
			return false
		}
		return likeMatchRunes(value[1:], pattern[1:])
	}
}
