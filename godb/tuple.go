package godb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Tuple is a TupleDesc plus the Field cells it describes, plus the location
// it was read from (nil until a heap-file iterator or insert sets it).
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    *RecordID
}

// writeTo serializes t's fields in order, in the big-endian, fixed-width
// wire format: Int as 4 bytes, Str as a 4-byte length followed
// by StringLength bytes of (truncated/zero-padded) string data.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for _, field := range t.Fields {
		switch v := field.(type) {
		case IntField:
			if err := binary.Write(b, binary.BigEndian, v.Value); err != nil {
				return err
			}
		case StringField:
			if err := writeStringField(b, v); err != nil {
				return err
			}
		default:
			return NewGoDBError(TypeMismatchError, fmt.Sprintf("unsupported field type %T", field))
		}
	}
	return nil
}

func writeStringField(b *bytes.Buffer, f StringField) error {
	raw := []byte(f.Value)
	if len(raw) > StringLength {
		raw = raw[:StringLength]
	}
	if err := binary.Write(b, binary.BigEndian, int32(len(raw))); err != nil {
		return err
	}
	padded := make([]byte, StringLength)
	copy(padded, raw)
	_, err := b.Write(padded)
	return err
}

func readIntField(b *bytes.Buffer) (IntField, error) {
	var v int32
	if err := binary.Read(b, binary.BigEndian, &v); err != nil {
		return IntField{}, err
	}
	return IntField{Value: v}, nil
}

func readStringField(b *bytes.Buffer) (StringField, error) {
	var n int32
	if err := binary.Read(b, binary.BigEndian, &n); err != nil {
		return StringField{}, err
	}
	raw := make([]byte, StringLength)
	if _, err := b.Read(raw); err != nil {
		return StringField{}, err
	}
	if int(n) > len(raw) {
		n = int32(len(raw))
	}
	return StringField{Value: string(raw[:n])}, nil
}

// readTupleFrom deserializes a tuple of the given schema from b.
func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	fields := make([]DBValue, 0, len(desc.Fields))
	for _, fd := range desc.Fields {
		switch fd.Ftype {
		case StringType:
			v, err := readStringField(b)
			if err != nil {
				return nil, err
			}
			fields = append(fields, v)
		default:
			v, err := readIntField(b)
			if err != nil {
				return nil, err
			}
			fields = append(fields, v)
		}
	}
	return &Tuple{Desc: *desc, Fields: fields}, nil
}

// equals reports whether two tuples have equal descriptors and equal field
// values in every position.
func (t1 *Tuple) equals(t2 *Tuple) bool {
	if t1 == nil || t2 == nil {
		return t1 == t2
	}
	if !t1.Desc.equals(&t2.Desc) || len(t1.Fields) != len(t2.Fields) {
		return false
	}
	for i := range t1.Fields {
		if t1.Fields[i] != t2.Fields[i] {
			return false
		}
	}
	return true
}

// joinTuples concatenates t1's fields followed by t2's, with a merged
// TupleDesc, for use by the Join operator.
func joinTuples(t1 *Tuple, t2 *Tuple) *Tuple {
	if t1 == nil {
		return t2
	}
	if t2 == nil {
		return t1
	}
	desc := t1.Desc.merge(&t2.Desc)
	fields := make([]DBValue, 0, len(t1.Fields)+len(t2.Fields))
	fields = append(fields, t1.Fields...)
	fields = append(fields, t2.Fields...)
	return &Tuple{Desc: *desc, Fields: fields}
}

type orderByState int

const (
	OrderedLessThan orderByState = iota
	OrderedEqual
	OrderedGreaterThan
)

// compareField evaluates field against both t and t2 and returns their
// relative order; used by the sort-merge Join.
func (t *Tuple) compareField(t2 *Tuple, field Expr) (orderByState, error) {
	v1, err := field.EvalExpr(t)
	if err != nil {
		return OrderedEqual, err
	}
	v2, err := field.EvalExpr(t2)
	if err != nil {
		return OrderedEqual, err
	}
	return compareValues(v1, v2)
}

func compareValues(v1, v2 DBValue) (orderByState, error) {
	switch a := v1.(type) {
	case IntField:
		b, ok := v2.(IntField)
		if !ok {
			return OrderedEqual, NewGoDBError(TypeMismatchError, "cannot compare int to non-int")
		}
		switch {
		case a.Value < b.Value:
			return OrderedLessThan, nil
		case a.Value > b.Value:
			return OrderedGreaterThan, nil
		default:
			return OrderedEqual, nil
		}
	case StringField:
		b, ok := v2.(StringField)
		if !ok {
			return OrderedEqual, NewGoDBError(TypeMismatchError, "cannot compare string to non-string")
		}
		switch {
		case a.Value < b.Value:
			return OrderedLessThan, nil
		case a.Value > b.Value:
			return OrderedGreaterThan, nil
		default:
			return OrderedEqual, nil
		}
	}
	return OrderedEqual, NewGoDBError(TypeMismatchError, fmt.Sprintf("unsupported comparison between %T and %T", v1, v2))
}

var winWidth = 120

func fmtCol(v string, ncols int) string {
	colWid := winWidth / ncols
	remLen := colWid - (len(v) + 3)
	if remLen > 0 {
		right := remLen / 2
		left := remLen - right
		return strings.Repeat(" ", left) + v + strings.Repeat(" ", right) + " |"
	}
	if colWid-4 < 0 || colWid-4 > len(v) {
		return " " + v + " |"
	}
	return " " + v[:colWid-4] + " |"
}

// HeaderString renders the column header of d, tabular if aligned.
func (d *TupleDesc) HeaderString(aligned bool) string {
	out := ""
	for i, f := range d.Fields {
		name := f.Fname
		if f.TableQualifier != "" {
			name = f.TableQualifier + "." + name
		}
		if aligned {
			out += fmtCol(name, len(d.Fields))
		} else {
			if i > 0 {
				out += ","
			}
			out += name
		}
	}
	return out
}

// PrettyPrintString renders t, tabular if aligned.
func (t *Tuple) PrettyPrintString(aligned bool) string {
	out := ""
	for i, f := range t.Fields {
		str := ""
		switch v := f.(type) {
		case IntField:
			str = strconv.FormatInt(int64(v.Value), 10)
		case StringField:
			str = v.Value
		}
		if aligned {
			out += fmtCol(str, len(t.Fields))
		} else {
			if i > 0 {
				out += ","
			}
			out += str
		}
	}
	return out
}
