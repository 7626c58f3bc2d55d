package godb

// InsertOp inserts every tuple its child produces into insertFile (via the
// buffer pool, so pages it dirties are cached and tracked for commit/abort),
// then yields a single one-column ("count") tuple reporting how many rows
// were inserted.
type InsertOp struct {
	insertFile DBFile
	child      Operator
	bp         *BufferPool
	desc       *TupleDesc
	tid        TransactionID
	done       bool
	result     *Tuple
}

// NewInsertOp builds an InsertOp writing child's output into insertFile
// through bp.
func NewInsertOp(insertFile DBFile, child Operator, bp *BufferPool) *InsertOp {
	return &InsertOp{
		insertFile: insertFile,
		child:      child,
		bp:         bp,
		desc:       &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}},
	}
}

func (iop *InsertOp) Descriptor() *TupleDesc {
	return iop.desc
}

func (iop *InsertOp) Open(tid TransactionID) error {
	if !iop.child.Descriptor().equals(iop.insertFile.Descriptor()) {
		return NewGoDBError(TypeMismatchError, "child's output schema does not match the insert target's schema")
	}
	iop.tid = tid
	iop.done = false
	iop.result = nil
	return iop.child.Open(tid)
}

func (iop *InsertOp) Rewind() error {
	iop.done = false
	iop.result = nil
	return iop.child.Rewind()
}

func (iop *InsertOp) Close() error {
	return iop.child.Close()
}

// run drains the child, inserting every tuple it produces, and caches the
// resulting count tuple -- Insert is a materializing operator: all its work
// happens on the first Next call (HasNext does not trigger it).
func (iop *InsertOp) run(tid TransactionID) error {
	var counter int32
	for {
		has, err := iop.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		t, err := iop.child.Next()
		if err != nil {
			return err
		}
		if err := iop.bp.InsertTuple(tid, iop.insertFile, t); err != nil {
			return err
		}
		counter++
	}
	iop.result = &Tuple{Desc: *iop.desc, Fields: []DBValue{IntField{Value: counter}}}
	iop.done = true
	return nil
}

func (iop *InsertOp) HasNext() (bool, error) {
	return !iop.done, nil
}

func (iop *InsertOp) Next() (*Tuple, error) {
	if iop.done {
		return nil, NewGoDBError(NoSuchElementError, "Next called with no tuple available")
	}
	if iop.result == nil {
		if err := iop.run(iop.tid); err != nil {
			return nil, err
		}
	}
	return iop.result, nil
}
