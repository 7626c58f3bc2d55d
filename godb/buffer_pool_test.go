package godb

import (
	"testing"
	"time"
)

// TestBufferPoolCacheStaysBounded fills three pages' worth of tuples through
// a 2-page pool, one committed transaction per page, then scans everything
// back. Eviction has to cycle clean pages through the cache (flushing them
// to disk on the way out) without the cache ever exceeding its bound.
func TestBufferPoolCacheStaysBounded(t *testing.T) {
	path := t.TempDir() + "/bounded.dat"
	bp := NewBufferPool(2, NewLockManager(), nil)
	desc := employeesDesc()
	hf, err := NewHeapFile(path, &desc, bp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}

	perPage := numSlotsForTupleDesc(&desc)
	total := 0
	for txn := 0; txn < 3; txn++ {
		tid := NewTID()
		bp.BeginTransaction(tid)
		for i := 0; i < perPage; i++ {
			mustInsert(t, bp, hf, tid, "worker", int32(total))
			total++
		}
		if err := bp.CommitTransaction(tid); err != nil {
			t.Fatalf("CommitTransaction (txn %d): %v", txn, err)
		}
		if bp.Size() > 2 {
			t.Fatalf("cache grew to %d pages after txn %d, bound is 2", bp.Size(), txn)
		}
	}
	if hf.NumPages() < 3 {
		t.Fatalf("expected at least 3 pages, got %d", hf.NumPages())
	}

	readTid := NewTID()
	bp.BeginTransaction(readTid)
	iter, err := hf.iterator(readTid)
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	seen := 0
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf("iterator: %v", err)
		}
		if tup == nil {
			break
		}
		seen++
		if bp.Size() > 2 {
			t.Fatalf("cache grew to %d pages mid-scan, bound is 2", bp.Size())
		}
	}
	bp.CommitTransaction(readTid)
	if seen != total {
		t.Fatalf("scan found %d tuples, inserted %d", seen, total)
	}
}

// TestBufferPoolAbortRestoresCommittedImage aborts a transaction that
// deleted a committed row. The cached page must roll back to its
// before-image (the state as of the last commit), not be forgotten, so a
// later scan still sees the row and no dirty page survives the abort.
func TestBufferPoolAbortRestoresCommittedImage(t *testing.T) {
	hf, bp := newTestHeapFile(t, "abort_delete.dat")
	tid := NewTID()
	bp.BeginTransaction(tid)
	mustInsert(t, bp, hf, tid, "alice", 30)
	if err := bp.CommitTransaction(tid); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}

	delTid := NewTID()
	bp.BeginTransaction(delTid)
	iter, err := hf.iterator(delTid)
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	victim, err := iter()
	if err != nil || victim == nil {
		t.Fatalf("expected a row to delete, err=%v", err)
	}
	if err := bp.DeleteTuple(delTid, hf, victim); err != nil {
		t.Fatalf("DeleteTuple: %v", err)
	}
	if bp.DirtyCount() == 0 {
		t.Fatalf("expected the delete to dirty a page before abort")
	}
	bp.AbortTransaction(delTid)

	if bp.DirtyCount() != 0 {
		t.Fatalf("expected no dirty pages after abort, got %d", bp.DirtyCount())
	}

	checkTid := NewTID()
	bp.BeginTransaction(checkTid)
	check, err := hf.iterator(checkTid)
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	found := false
	for {
		tup, err := check()
		if err != nil {
			t.Fatalf("iterator: %v", err)
		}
		if tup == nil {
			break
		}
		if tup.Fields[0].(StringField).Value == "alice" {
			found = true
		}
	}
	bp.CommitTransaction(checkTid)
	if !found {
		t.Fatalf("aborted delete removed alice's committed row")
	}
}

// TestBufferPoolGetPageDeadlockAborts drives the deadlock scenario through
// the buffer pool's own surface: two transactions each hold one page under
// write permission and request the other's. Exactly the lock manager's
// cycle detection must break the tie, surfacing TransactionAbortedError
// from GetPage.
func TestBufferPoolGetPageDeadlockAborts(t *testing.T) {
	hf, bp := newTestHeapFile(t, "bp_deadlock.dat")
	desc := employeesDesc()
	perPage := numSlotsForTupleDesc(&desc)

	seed := NewTID()
	bp.BeginTransaction(seed)
	for i := 0; i < perPage+1; i++ {
		mustInsert(t, bp, hf, seed, "row", int32(i))
	}
	if err := bp.CommitTransaction(seed); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}
	if hf.NumPages() < 2 {
		t.Fatalf("expected at least 2 pages, got %d", hf.NumPages())
	}

	t1, t2 := NewTID(), NewTID()
	bp.BeginTransaction(t1)
	bp.BeginTransaction(t2)
	if _, err := bp.GetPage(hf, 0, t1, WritePerm); err != nil {
		t.Fatalf("t1 GetPage(0): %v", err)
	}
	if _, err := bp.GetPage(hf, 1, t2, WritePerm); err != nil {
		t.Fatalf("t2 GetPage(1): %v", err)
	}

	type outcome struct {
		tid TransactionID
		err error
	}
	results := make(chan outcome, 2)
	go func() {
		_, err := bp.GetPage(hf, 1, t1, WritePerm)
		results <- outcome{t1, err}
	}()
	go func() {
		_, err := bp.GetPage(hf, 0, t2, WritePerm)
		results <- outcome{t2, err}
	}()

	aborted := 0
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			if r.err != nil {
				if !IsTransactionAborted(r.err) {
					t.Fatalf("expected TransactionAbortedError, got %v", r.err)
				}
				aborted++
				bp.AbortTransaction(r.tid)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("deadlock never resolved; both GetPage calls hung")
		}
	}
	if aborted == 0 {
		t.Fatalf("expected at least one of the two transactions to abort")
	}
	if aborted == 2 {
		t.Fatalf("expected the survivor to proceed, but both aborted")
	}
}
