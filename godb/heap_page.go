package godb

import (
	"bytes"
	"encoding/binary"
)

// heapPage is a slotted page: a bitmap header of occupied slots followed by
// a tail of fixed-width tuple records. Slot i is occupied iff bit
// i of the header is set iff tuples[i] holds a valid tuple.
type heapPage struct {
	dirty      bool
	dirtyBy    *TransactionID
	pageNo     int
	numSlots   int
	desc       *TupleDesc
	file       *HeapFile
	tuples     []*Tuple
	headerSize int // ceil(numSlots/8) bytes
}

func numSlotsForTupleDesc(desc *TupleDesc) int {
	bytesPerTuple := desc.bytesPerTuple()
	if bytesPerTuple <= 0 {
		return 0
	}
	// slots = floor((PageSize*8) / (bytesPerTuple*8 + 1)): the "+1" reserves
	// one header bit per slot.
	return (PageSize * 8) / (bytesPerTuple*8 + 1)
}

func newHeapPage(desc *TupleDesc, pageNo int, f *HeapFile) (*heapPage, error) {
	numSlots := numSlotsForTupleDesc(desc)
	if numSlots <= 0 {
		return nil, NewGoDBError(MalformedDataError, "tuple too large to fit any slots on a page")
	}
	return &heapPage{
		pageNo:     pageNo,
		numSlots:   numSlots,
		desc:       desc,
		file:       f,
		tuples:     make([]*Tuple, numSlots),
		headerSize: (numSlots + 7) / 8,
	}, nil
}

func (h *heapPage) getNumSlots() int {
	return h.numSlots
}

func (h *heapPage) numUsedSlots() int {
	n := 0
	for _, t := range h.tuples {
		if t != nil {
			n++
		}
	}
	return n
}

// insertTuple stores a copy of t, carrying its new RecordID, in the first
// free slot, marks the page dirty, and returns that RecordID; t itself is
// left unchanged.
func (h *heapPage) insertTuple(t *Tuple) (RecordID, error) {
	for slot, cur := range h.tuples {
		if cur != nil {
			continue
		}
		rid := RecordID{PageID: PageID{TableID: h.file.ID(), PageNo: h.pageNo}, Slot: slot}
		stored := &Tuple{Desc: *h.desc, Fields: t.Fields, Rid: &rid}
		h.tuples[slot] = stored
		h.dirty = true
		return rid, nil
	}
	return RecordID{}, NewGoDBError(BufferPoolFullError, "no available slots for tuple insertion")
}

// deleteTuple clears the slot named by rid.
func (h *heapPage) deleteTuple(rid RecordID) error {
	if rid.Slot < 0 || rid.Slot >= len(h.tuples) {
		return NewGoDBError(NoSuchElementError, "slot out of range")
	}
	if h.tuples[rid.Slot] == nil {
		return NewGoDBError(NoSuchElementError, "slot is already empty")
	}
	h.tuples[rid.Slot] = nil
	h.dirty = true
	return nil
}

func (h *heapPage) isDirty() bool {
	return h.dirty
}

func (h *heapPage) setDirty(tid TransactionID, dirty bool) {
	h.dirty = dirty
	if dirty {
		h.dirtyBy = &tid
	} else {
		h.dirtyBy = nil
	}
}

func (h *heapPage) getFile() DBFile {
	return h.file
}

func (h *heapPage) PageID() PageID {
	return PageID{TableID: h.file.ID(), PageNo: h.pageNo}
}

// toBuffer serializes the bitmap header followed by one fixed-width record
// per slot, in slot order (zero bytes for an empty slot), padded to exactly
// PageSize bytes.
func (h *heapPage) toBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	header := make([]byte, h.headerSize)
	for slot, t := range h.tuples {
		if t != nil {
			header[slot/8] |= 1 << uint(slot%8)
		}
	}
	if _, err := buf.Write(header); err != nil {
		return nil, err
	}
	for _, t := range h.tuples {
		if t == nil {
			if _, err := buf.Write(make([]byte, h.desc.bytesPerTuple())); err != nil {
				return nil, err
			}
			continue
		}
		if err := t.writeTo(buf); err != nil {
			return nil, err
		}
	}
	if buf.Len() < PageSize {
		if _, err := buf.Write(make([]byte, PageSize-buf.Len())); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// initFromBuffer reads the bitmap header and then decodes every occupied
// slot's tuple record, in slot order. Unoccupied slots still occupy their
// fixed-width space in the buffer and must be skipped over.
func (h *heapPage) initFromBuffer(buf *bytes.Buffer) error {
	header := make([]byte, h.headerSize)
	if err := binary.Read(buf, binary.BigEndian, header); err != nil {
		return err
	}
	h.tuples = make([]*Tuple, h.numSlots)
	recordSize := h.desc.bytesPerTuple()
	for slot := 0; slot < h.numSlots; slot++ {
		occupied := header[slot/8]&(1<<uint(slot%8)) != 0
		record := make([]byte, recordSize)
		if err := binary.Read(buf, binary.BigEndian, record); err != nil {
			return err
		}
		if !occupied {
			continue
		}
		tup, err := readTupleFrom(bytes.NewBuffer(record), h.desc)
		if err != nil {
			return err
		}
		rid := RecordID{PageID: PageID{TableID: h.file.ID(), PageNo: h.pageNo}, Slot: slot}
		tup.Rid = &rid
		h.tuples[slot] = tup
	}
	return nil
}

// tupleIter returns a pull-closure over the occupied slots of the page, in
// slot order. Returns (nil, nil) once exhausted.
func (h *heapPage) tupleIter() func() (*Tuple, error) {
	i := 0
	return func() (*Tuple, error) {
		for i < len(h.tuples) {
			t := h.tuples[i]
			i++
			if t != nil {
				return t, nil
			}
		}
		return nil, nil
	}
}
