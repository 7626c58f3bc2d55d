package godb

import (
	"os"
	"testing"

	"github.com/hawkmoon910/classdb/internal/godbtest"
)

// employeesDesc is the fixture schema shared by most operator tests: a
// string name and an int age/salary-ish column.
func employeesDesc() TupleDesc {
	return TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "age", Ftype: IntType},
	}}
}

// newTestHeapFile builds a fresh HeapFile backed by a uniquely named
// scratch file, with its own BufferPool and LockManager (no log, since these
// tests don't exercise durability).
func newTestHeapFile(t *testing.T, name string) (*HeapFile, *BufferPool) {
	t.Helper()
	path := t.TempDir() + "/" + name
	os.Remove(path)
	bp := NewBufferPool(64, NewLockManager(), nil)
	desc := employeesDesc()
	hf, err := NewHeapFile(path, &desc, bp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	return hf, bp
}

func mustInsert(t *testing.T, bp *BufferPool, hf *HeapFile, tid TransactionID, name string, age int32) {
	t.Helper()
	tup := &Tuple{Desc: employeesDesc(), Fields: []DBValue{StringField{Value: name}, IntField{Value: age}}}
	if err := bp.InsertTuple(tid, hf, tup); err != nil {
		t.Fatalf("InsertTuple(%s): %v", name, err)
	}
}

func drainAll(t *testing.T, op Operator) []*Tuple {
	t.Helper()
	var out []*Tuple
	for {
		has, err := op.HasNext()
		if err != nil {
			t.Fatalf("HasNext: %v", err)
		}
		if !has {
			return out
		}
		tup, err := op.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, tup)
	}
}

func TestHeapFileInsertAndScan(t *testing.T) {
	hf, bp := newTestHeapFile(t, "scan.dat")
	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	mustInsert(t, bp, hf, tid, "alice", 30)
	mustInsert(t, bp, hf, tid, "bob", 25)
	if err := bp.CommitTransaction(tid); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}

	scan := NewSeqScan(hf, "e", bp)
	readTid := NewTID()
	bp.BeginTransaction(readTid)
	if err := scan.Open(readTid); err != nil {
		t.Fatalf("Open: %v", err)
	}
	tuples := drainAll(t, scan)
	if len(tuples) != 2 {
		t.Fatalf("expected 2 tuples, got %d", len(tuples))
	}
	scan.Close()
	bp.CommitTransaction(readTid)
}

// TestHeapFileScanRewind: re-opening (here, Rewind) an
// operator yields the same sequence of tuples as the first pass.
func TestHeapFileScanRewind(t *testing.T) {
	hf, bp := newTestHeapFile(t, "rewind.dat")
	tid := NewTID()
	bp.BeginTransaction(tid)
	mustInsert(t, bp, hf, tid, "alice", 30)
	mustInsert(t, bp, hf, tid, "bob", 25)
	mustInsert(t, bp, hf, tid, "carol", 40)
	bp.CommitTransaction(tid)

	scan := NewSeqScan(hf, "e", bp)
	readTid := NewTID()
	bp.BeginTransaction(readTid)
	scan.Open(readTid)
	first := drainAll(t, scan)

	if err := scan.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	second := drainAll(t, scan)
	scan.Close()
	bp.CommitTransaction(readTid)

	if len(first) != len(second) {
		t.Fatalf("rewind produced %d tuples, first pass had %d", len(second), len(first))
	}
	godbtest.AssertDeepEqual(t, second, first, "rewound scan")
}

func TestHeapFileDeleteTuple(t *testing.T) {
	hf, bp := newTestHeapFile(t, "delete.dat")
	tid := NewTID()
	bp.BeginTransaction(tid)
	mustInsert(t, bp, hf, tid, "alice", 30)
	mustInsert(t, bp, hf, tid, "bob", 25)
	bp.CommitTransaction(tid)

	delTid := NewTID()
	bp.BeginTransaction(delTid)
	iter, err := hf.iterator(delTid)
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	first, err := iter()
	if err != nil || first == nil {
		t.Fatalf("expected a tuple to delete, err=%v", err)
	}
	if err := bp.DeleteTuple(delTid, hf, first); err != nil {
		t.Fatalf("DeleteTuple: %v", err)
	}
	bp.CommitTransaction(delTid)

	checkTid := NewTID()
	bp.BeginTransaction(checkTid)
	remaining, err := hf.iterator(checkTid)
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	count := 0
	for {
		tup, err := remaining()
		if err != nil {
			t.Fatalf("iterator: %v", err)
		}
		if tup == nil {
			break
		}
		count++
	}
	bp.CommitTransaction(checkTid)
	if count != 1 {
		t.Fatalf("expected 1 tuple remaining after delete, got %d", count)
	}
}

// TestAbortTransactionRollsBackInserts: an aborted
// transaction's inserts must not be visible afterward.
func TestAbortTransactionRollsBackInserts(t *testing.T) {
	hf, bp := newTestHeapFile(t, "abort.dat")
	tid := NewTID()
	bp.BeginTransaction(tid)
	mustInsert(t, bp, hf, tid, "alice", 30)
	bp.CommitTransaction(tid)

	abortTid := NewTID()
	bp.BeginTransaction(abortTid)
	mustInsert(t, bp, hf, abortTid, "doomed", 99)
	bp.AbortTransaction(abortTid)

	checkTid := NewTID()
	bp.BeginTransaction(checkTid)
	iter, err := hf.iterator(checkTid)
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	names := map[string]bool{}
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf("iterator: %v", err)
		}
		if tup == nil {
			break
		}
		names[tup.Fields[0].(StringField).Value] = true
	}
	bp.CommitTransaction(checkTid)
	if names["doomed"] {
		t.Fatalf("aborted transaction's insert is still visible")
	}
	if !names["alice"] {
		t.Fatalf("expected alice's committed row to remain")
	}
}

// TestBufferPoolEvictionExcludesDirty: with a buffer
// pool too small to hold every page, eviction must never pick a dirty page,
// failing outright if every cached page is dirty (NO STEAL).
func TestBufferPoolEvictionExcludesDirty(t *testing.T) {
	path := t.TempDir() + "/evict.dat"
	bp := NewBufferPool(1, NewLockManager(), nil)
	desc := employeesDesc()
	hf, err := NewHeapFile(path, &desc, bp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}

	tid := NewTID()
	bp.BeginTransaction(tid)
	mustInsert(t, bp, hf, tid, "alice", 30)
	// The single cached page is now dirty; a second page's worth of inserts
	// forces an eviction attempt that must fail rather than discard it.
	for i := 0; i < 500; i++ {
		tup := &Tuple{Desc: desc, Fields: []DBValue{StringField{Value: "filler"}, IntField{Value: int32(i)}}}
		if err := bp.InsertTuple(tid, hf, tup); err != nil {
			// Expected once the pool fills with nothing but dirty pages.
			if !isBufferPoolFull(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			bp.AbortTransaction(tid)
			return
		}
	}
	bp.AbortTransaction(tid)
	t.Fatalf("expected eviction to eventually fail with a 1-page pool full of dirty pages")
}

func isBufferPoolFull(err error) bool {
	var gerr GoDBError
	return asGoDBError(err, &gerr) && gerr.Code() == BufferPoolFullError
}
