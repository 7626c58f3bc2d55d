package godb

import "fmt"

// FieldType names one column of a TupleDesc: its type, its own name, and
// (once bound by an operator such as SeqScan) the alias of the relation it
// came from.
type FieldType struct {
	Fname          string
	TableQualifier string
	Ftype          DBType
}

// TupleDesc is the immutable schema of a Tuple: an ordered list of
// FieldTypes. Two TupleDescs with equal fields can be freely copied or
// shared; a Tuple owns a value copy of the TupleDesc it was built against.
type TupleDesc struct {
	Fields []FieldType
}

// NewTupleDesc builds a TupleDesc from parallel type/name slices.
func NewTupleDesc(types []DBType, names []string) *TupleDesc {
	fields := make([]FieldType, len(types))
	for i, t := range types {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		fields[i] = FieldType{Fname: name, Ftype: t}
	}
	return &TupleDesc{Fields: fields}
}

// equals reports whether d1 and d2 have the same length and the same
// (name, type) pair at every position.
func (d1 *TupleDesc) equals(d2 *TupleDesc) bool {
	if d1 == nil || d2 == nil {
		return d1 == d2
	}
	if len(d1.Fields) != len(d2.Fields) {
		return false
	}
	for i := range d1.Fields {
		if d1.Fields[i].Fname != d2.Fields[i].Fname || d1.Fields[i].Ftype != d2.Fields[i].Ftype {
			return false
		}
	}
	return true
}

// findFieldInTd finds the best match for field within desc: an exact name
// match, preferring one whose TableQualifier also matches when field
// specifies one.
func findFieldInTd(field FieldType, desc *TupleDesc) (int, error) {
	best := -1
	for i, f := range desc.Fields {
		if f.Fname != field.Fname {
			continue
		}
		if field.Ftype != UnknownType && f.Ftype != field.Ftype {
			continue
		}
		if field.TableQualifier == "" {
			if best != -1 {
				return 0, NewGoDBError(AmbiguousNameError, fmt.Sprintf("field %s is ambiguous", f.Fname))
			}
			best = i
			continue
		}
		if f.TableQualifier == field.TableQualifier {
			return i, nil
		}
		if best == -1 {
			best = i
		}
	}
	if best == -1 {
		return -1, NewGoDBError(NoSuchElementError, fmt.Sprintf("field %s.%s not found", field.TableQualifier, field.Fname))
	}
	return best, nil
}

// copy returns a TupleDesc with a freshly allocated Fields slice, so that
// mutating the copy (e.g. via setTableAlias) never aliases the original.
func (td *TupleDesc) copy() *TupleDesc {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	return &TupleDesc{Fields: fields}
}

// setTableAlias rewrites every field's TableQualifier to alias, implementing
// SeqScan's alias.field_name renaming.
func (td *TupleDesc) setTableAlias(alias string) {
	for i := range td.Fields {
		td.Fields[i].TableQualifier = alias
	}
}

// merge returns the concatenation of desc's fields followed by desc2's
// fields, as required by Join's output descriptor.
func (desc *TupleDesc) merge(desc2 *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(desc.Fields)+len(desc2.Fields))
	fields = append(fields, desc.Fields...)
	fields = append(fields, desc2.Fields...)
	return &TupleDesc{Fields: fields}
}

// bytesPerTuple is the sum of the on-disk byte length of every field: the
// fixed width of one slot's record on a heap page.
func (td *TupleDesc) bytesPerTuple() int {
	n := 0
	for _, f := range td.Fields {
		n += f.Ftype.ByteLength()
	}
	return n
}

func (td *TupleDesc) String() string {
	out := ""
	for i, f := range td.Fields {
		if i > 0 {
			out += ", "
		}
		if f.TableQualifier != "" {
			out += f.TableQualifier + "."
		}
		out += fmt.Sprintf("%s(%s)", f.Fname, f.Ftype)
	}
	return out
}
