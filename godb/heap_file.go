package godb

import (
	"bufio"
	"bytes"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// HeapFile is an unordered collection of tuples, backed by a single file on
// disk laid out as consecutive bitmap-header pages. HeapFile is the
// only DBFile implementation classdb ships.
type HeapFile struct {
	mu          sync.Mutex
	backingFile string
	tupleDesc   *TupleDesc
	bufPool     *BufferPool
	id          int
}

// NewHeapFile opens (or creates, if absent) fromFile as the backing store
// for a heap of td-shaped tuples, sharing bp for page caching.
func NewHeapFile(fromFile string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	if _, err := os.OpenFile(fromFile, os.O_CREATE|os.O_RDWR, 0644); err != nil {
		return nil, wrapGoDBError(IOError, "opening heap file", err)
	}
	return &HeapFile{
		backingFile: fromFile,
		tupleDesc:   td,
		bufPool:     bp,
		id:          fileID(fromFile),
	}, nil
}

// fileID derives a stable int identifier for a HeapFile from its absolute
// path, used as the TableID half of every PageID it produces. Collisions
// are astronomically unlikely for the handful of tables a classdb instance
// registers, and a colliding path would have to hash-collide under FNV-1a,
// not merely share a directory.
func fileID(path string) int {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	h := fnv.New32a()
	h.Write([]byte(path))
	return int(h.Sum32())
}

func (f *HeapFile) ID() int {
	return f.id
}

// BackingFile returns the name of the file backing this heap.
func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

// NumPages returns the number of pages currently in the heap file. A page
// created by insertTuple but not yet physically written (still cached,
// possibly still uncommitted) doesn't grow the backing file's size, so the
// count is the larger of the on-disk extent and the highest page number the
// buffer pool currently has cached for this table.
func (f *HeapFile) NumPages() int {
	diskPages := 0
	if info, err := os.Stat(f.backingFile); err == nil {
		size := info.Size()
		diskPages = int(size / int64(PageSize))
		if size%int64(PageSize) != 0 {
			diskPages++
		}
	}
	if cached := f.bufPool.maxCachedPageNo(f.id) + 1; cached > diskPages {
		return cached
	}
	return diskPages
}

// LoadFromCSV populates the heap file from a CSV file, one tuple per line,
// within a single committed transaction.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	cnt := 0
	tid := NewTID()
	if err := f.bufPool.BeginTransaction(tid); err != nil {
		return err
	}
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField {
			fields = fields[0 : len(fields)-1]
		}
		cnt++
		if cnt == 1 && hasHeader {
			continue
		}
		if len(fields) != len(f.tupleDesc.Fields) {
			f.bufPool.AbortTransaction(tid)
			return NewGoDBError(MalformedDataError, fmt.Sprintf("line %d (%s): expected %d fields, got %d", cnt, line, len(f.tupleDesc.Fields), len(fields)))
		}
		newFields := make([]DBValue, len(fields))
		for i, raw := range fields {
			switch f.tupleDesc.Fields[i].Ftype {
			case IntType:
				v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
				if err != nil {
					f.bufPool.AbortTransaction(tid)
					return wrapGoDBError(TypeMismatchError, fmt.Sprintf("line %d: couldn't parse %q as int", cnt, raw), err)
				}
				newFields[i] = IntField{Value: int32(v)}
			case StringType:
				if len(raw) > StringLength {
					raw = raw[:StringLength]
				}
				newFields[i] = StringField{Value: raw}
			}
		}
		t := &Tuple{Desc: *f.tupleDesc, Fields: newFields}
		if err := f.bufPool.InsertTuple(tid, f, t); err != nil {
			f.bufPool.AbortTransaction(tid)
			return err
		}
	}
	return f.bufPool.CommitTransaction(tid)
}

// readPage reads page pageNo from disk, constructing a bitmap-header
// heapPage via heapPage.initFromBuffer.
func (f *HeapFile) readPage(pageNo int) (Page, error) {
	page, err := newHeapPage(f.tupleDesc, pageNo, f)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(f.backingFile, os.O_RDONLY, 0644)
	if err != nil {
		return nil, wrapGoDBError(IOError, "opening heap file for read", err)
	}
	defer file.Close()

	if _, err := file.Seek(int64(pageNo)*int64(PageSize), io.SeekStart); err != nil {
		return nil, wrapGoDBError(IOError, "seeking to page", err)
	}
	data := make([]byte, PageSize)
	if _, err := io.ReadFull(file, data); err != nil {
		return nil, wrapGoDBError(IOError, "reading page bytes", err)
	}
	if err := page.initFromBuffer(bytes.NewBuffer(data)); err != nil {
		return nil, wrapGoDBError(MalformedDataError, "decoding page", err)
	}
	return page, nil
}

// insertTuple searches existing pages (via the buffer pool, under WritePerm)
// for a free slot; if none has room, appends a fresh page. Returns every
// page it dirtied, per the DBFile contract.
func (f *HeapFile) insertTuple(tid TransactionID, t *Tuple) ([]Page, error) {
	if len(t.Fields) != len(f.tupleDesc.Fields) {
		return nil, NewGoDBError(TypeMismatchError, "tuple does not match heap file's schema")
	}

	numPages := f.NumPages()
	for pageNo := 0; pageNo < numPages; pageNo++ {
		p, err := f.bufPool.GetPage(f, pageNo, tid, WritePerm)
		if err != nil {
			return nil, err
		}
		hp := p.(*heapPage)
		if hp.numUsedSlots() < hp.getNumSlots() {
			if _, err := hp.insertTuple(t); err != nil {
				return nil, err
			}
			return []Page{hp}, nil
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// Recheck NumPages under the lock: another goroutine may have just
	// appended the page we were about to append.
	newPageNo := f.NumPages()
	newPage, err := newHeapPage(f.tupleDesc, newPageNo, f)
	if err != nil {
		return nil, err
	}
	if _, err := newPage.insertTuple(t); err != nil {
		return nil, err
	}
	// Leave the page unwritten on disk: it flows into the buffer pool's
	// cache exactly like the existing-page branch above, dirty_by tid, and
	// only reaches the backing file when the buffer pool evicts it once
	// clean (or FlushAllPages writes it); commit forces only the log. Writing it here would let an aborted insert survive on disk
	// since NumPages derives the file's extent from its on-disk size.
	return []Page{newPage}, nil
}

// deleteTuple removes t (identified by its Rid) from its page. Returns the
// one page it dirtied.
func (f *HeapFile) deleteTuple(tid TransactionID, t *Tuple) ([]Page, error) {
	if t.Rid == nil {
		return nil, NewGoDBError(MalformedDataError, "tuple has no record id to delete by")
	}
	rid := t.Rid

	p, err := f.bufPool.GetPage(f, rid.PageID.PageNo, tid, WritePerm)
	if err != nil {
		return nil, err
	}
	hp := p.(*heapPage)
	if err := hp.deleteTuple(*rid); err != nil {
		return nil, err
	}
	return []Page{hp}, nil
}

// flushPage writes p back to its offset in the backing file.
func (f *HeapFile) flushPage(p Page) error {
	hp, ok := p.(*heapPage)
	if !ok {
		return NewGoDBError(TypeMismatchError, "heap file cannot flush a non-heapPage")
	}

	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return wrapGoDBError(IOError, "opening heap file for write", err)
	}
	defer file.Close()

	if _, err := file.Seek(int64(hp.pageNo)*int64(PageSize), io.SeekStart); err != nil {
		return wrapGoDBError(IOError, "seeking to page", err)
	}
	buf, err := hp.toBuffer()
	if err != nil {
		return err
	}
	if _, err := buf.WriteTo(file); err != nil {
		return wrapGoDBError(IOError, "writing page bytes", err)
	}
	return nil
}

// pageFromBytes reconstructs a heapPage for pageNo from a raw PageSize-byte
// image. Used by the buffer pool to roll a dirtied page back to its
// before-image on abort, since that in-memory snapshot -- not the backing
// file -- is the only place a page's pre-transaction state is guaranteed to
// still exist (the data file isn't flushed at commit; see insertTuple and
// CommitTransaction).
func (f *HeapFile) pageFromBytes(pageNo int, data []byte) (Page, error) {
	page, err := newHeapPage(f.tupleDesc, pageNo, f)
	if err != nil {
		return nil, err
	}
	if err := page.initFromBuffer(bytes.NewBuffer(data)); err != nil {
		return nil, wrapGoDBError(MalformedDataError, "decoding before-image", err)
	}
	return page, nil
}

// Descriptor returns the TupleDesc every tuple stored in this heap file
// follows.
func (f *HeapFile) Descriptor() *TupleDesc {
	return f.tupleDesc
}

// iterator returns a pull-closure that produces every tuple in the heap
// file, in page-then-slot order, reading pages through the buffer pool
// under ReadPerm so concurrent access is lock-mediated.
func (f *HeapFile) iterator(tid TransactionID) (func() (*Tuple, error), error) {
	pageNo := 0
	var pageIter func() (*Tuple, error)
	return func() (*Tuple, error) {
		for {
			if pageIter == nil {
				if pageNo >= f.NumPages() {
					return nil, nil
				}
				p, err := f.bufPool.GetPage(f, pageNo, tid, ReadPerm)
				if err != nil {
					return nil, err
				}
				pageIter = p.(*heapPage).tupleIter()
			}
			t, err := pageIter()
			if err != nil {
				return nil, err
			}
			if t == nil {
				pageNo++
				pageIter = nil
				continue
			}
			cp := *t
			cp.Desc = *f.tupleDesc
			return &cp, nil
		}
	}, nil
}
