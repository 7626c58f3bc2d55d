package godb

// DeleteOp deletes every tuple its child produces from deleteFile (via the
// buffer pool), then yields a single one-column ("count") tuple reporting
// how many rows were deleted.
type DeleteOp struct {
	deleteFile DBFile
	child      Operator
	bp         *BufferPool
	desc       *TupleDesc
	tid        TransactionID
	done       bool
	result     *Tuple
}

// NewDeleteOp builds a DeleteOp removing child's output from deleteFile
// through bp.
func NewDeleteOp(deleteFile DBFile, child Operator, bp *BufferPool) *DeleteOp {
	return &DeleteOp{
		deleteFile: deleteFile,
		child:      child,
		bp:         bp,
		desc:       &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}},
	}
}

func (dop *DeleteOp) Descriptor() *TupleDesc {
	return dop.desc
}

func (dop *DeleteOp) Open(tid TransactionID) error {
	dop.tid = tid
	dop.done = false
	dop.result = nil
	return dop.child.Open(tid)
}

func (dop *DeleteOp) Rewind() error {
	dop.done = false
	dop.result = nil
	return dop.child.Rewind()
}

func (dop *DeleteOp) Close() error {
	return dop.child.Close()
}

func (dop *DeleteOp) run() error {
	var count int32
	for {
		has, err := dop.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		t, err := dop.child.Next()
		if err != nil {
			return err
		}
		if err := dop.bp.DeleteTuple(dop.tid, dop.deleteFile, t); err != nil {
			return err
		}
		count++
	}
	dop.result = &Tuple{Desc: *dop.desc, Fields: []DBValue{IntField{Value: count}}}
	dop.done = true
	return nil
}

func (dop *DeleteOp) HasNext() (bool, error) {
	return !dop.done, nil
}

func (dop *DeleteOp) Next() (*Tuple, error) {
	if dop.done {
		return nil, NewGoDBError(NoSuchElementError, "Next called with no tuple available")
	}
	if dop.result == nil {
		if err := dop.run(); err != nil {
			return nil, err
		}
	}
	return dop.result, nil
}
