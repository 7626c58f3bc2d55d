package godb

import "bytes"

// Page is the narrow capability every page representation must support so
// the buffer pool can manage it generically -- a tagged-variant-style
// interface rather than a class hierarchy, per the design notes. heapPage is
// the only implementation classdb ships; a future B+tree page would satisfy
// the same contract.
type Page interface {
	isDirty() bool
	setDirty(tid TransactionID, dirty bool)
	getFile() DBFile
	PageID() PageID
	toBuffer() (*bytes.Buffer, error)
}

// DBFile is the on-disk counterpart of a table: something that can produce
// and accept Pages, and iterate the tuples they hold. HeapFile is the only
// implementation.
type DBFile interface {
	ID() int
	Descriptor() *TupleDesc
	NumPages() int
	readPage(pageNo int) (Page, error)
	flushPage(p Page) error
	// pageFromBytes decodes a raw PageSize-byte image captured earlier (a
	// before-image) back into a Page, without touching the backing file.
	pageFromBytes(pageNo int, data []byte) (Page, error)
	// insertTuple and deleteTuple return every page they dirtied, so the
	// buffer pool can mark each dirty_by the acting transaction and ensure
	// it is cached.
	insertTuple(tid TransactionID, t *Tuple) ([]Page, error)
	deleteTuple(tid TransactionID, t *Tuple) ([]Page, error)
	iterator(tid TransactionID) (func() (*Tuple, error), error)
}
