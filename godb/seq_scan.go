package godb

// SeqScan is a full, unordered scan of one table's pages, the leaf operator
// every other operator ultimately pulls from. It renames every field of the
// table's descriptor to alias.field_name, so a query that joins a table
// against itself can still disambiguate which side a field expression
// refers to.
type SeqScan struct {
	tid     TransactionID
	file    DBFile
	alias   string
	desc    *TupleDesc
	bp      *BufferPool
	next    func() (*Tuple, error)
	pending *Tuple
}

// NewSeqScan builds a scan of file, exposing its fields under alias.
func NewSeqScan(file DBFile, alias string, bp *BufferPool) *SeqScan {
	desc := file.Descriptor().copy()
	desc.setTableAlias(alias)
	return &SeqScan{file: file, alias: alias, desc: desc, bp: bp}
}

func (s *SeqScan) Descriptor() *TupleDesc {
	return s.desc
}

func (s *SeqScan) Open(tid TransactionID) error {
	s.tid = tid
	next, err := s.file.iterator(tid)
	if err != nil {
		return err
	}
	s.next = next
	return nil
}

func (s *SeqScan) Rewind() error {
	return s.Open(s.tid)
}

func (s *SeqScan) Close() error {
	s.next = nil
	s.pending = nil
	return nil
}

func (s *SeqScan) HasNext() (bool, error) {
	t, err := s.peek()
	return t != nil, err
}

func (s *SeqScan) peek() (*Tuple, error) {
	if s.pending != nil {
		return s.pending, nil
	}
	t, err := s.next()
	if err != nil {
		return nil, err
	}
	s.pending = t
	return t, nil
}

func (s *SeqScan) Next() (*Tuple, error) {
	t, err := s.peek()
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NewGoDBError(NoSuchElementError, "Next called with no tuple available")
	}
	s.pending = nil
	t.Desc = *s.desc
	return t, nil
}
