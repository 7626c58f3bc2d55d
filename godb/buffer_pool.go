package godb

import (
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// cacheEntry pairs a cached Page with the before-image snapshot the buffer
// pool needs at commit time. Keeping the before-image beside the cache entry
// rather than on the Page itself means heapPage never has to know about
// transaction boundaries.
type cacheEntry struct {
	page        Page
	beforeImage []byte
	dirtyBy     *TransactionID
}

// BufferPool is the bounded, shared cache of Pages that mediates every
// access a transaction makes to on-disk data. It is the only path by which
// operators touch pages: every GetPage call acquires the appropriate lock
// from the LockManager before the cache is consulted.
type BufferPool struct {
	mu       sync.Mutex
	cache    map[PageID]*cacheEntry
	numPages int
	locks    *LockManager
	log      *LogFile
	group    singleflight.Group // coalesces concurrent first-loads of one PageID
	active   map[TransactionID]struct{}
}

// NewBufferPool creates a BufferPool capped at numPages cached pages,
// sharing lockManager for page-level concurrency control. log may be nil in
// tests that don't exercise commit durability.
func NewBufferPool(numPages int, lockManager *LockManager, log *LogFile) *BufferPool {
	return &BufferPool{
		cache:    make(map[PageID]*cacheEntry),
		numPages: numPages,
		locks:    lockManager,
		log:      log,
		active:   make(map[TransactionID]struct{}),
	}
}

// BeginTransaction registers tid as live.
func (bp *BufferPool) BeginTransaction(tid TransactionID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if _, ok := bp.active[tid]; ok {
		return NewGoDBError(TypeMismatchError, "transaction already running")
	}
	bp.active[tid] = struct{}{}
	return nil
}

func (bp *BufferPool) isActive(tid TransactionID) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	_, ok := bp.active[tid]
	return ok
}

func pidKey(pid PageID) string {
	return strconv.Itoa(pid.TableID) + "#" + strconv.Itoa(pid.PageNo)
}

// GetPage acquires the lock perm requires on pid (blocking, possibly
// aborting tid on deadlock), then returns the cached page, loading it from
// file via DBFile.readPage if necessary, evicting a clean victim first if
// the cache is already full.
func (bp *BufferPool) GetPage(file DBFile, pageNo int, tid TransactionID, perm RWPerm) (Page, error) {
	if !bp.isActive(tid) {
		return nil, NewGoDBError(TypeMismatchError, "invalid transaction")
	}
	pid := PageID{TableID: file.ID(), PageNo: pageNo}
	if err := bp.locks.AcquireLock(tid, pid, perm); err != nil {
		return nil, err
	}

	bp.mu.Lock()
	if entry, ok := bp.cache[pid]; ok {
		bp.mu.Unlock()
		return entry.page, nil
	}
	bp.mu.Unlock()

	v, err, _ := bp.group.Do(pidKey(pid), func() (any, error) {
		bp.mu.Lock()
		if entry, ok := bp.cache[pid]; ok {
			bp.mu.Unlock()
			return entry.page, nil
		}
		if len(bp.cache) >= bp.numPages {
			if evictErr := bp.evictLocked(); evictErr != nil {
				bp.mu.Unlock()
				return nil, evictErr
			}
		}
		bp.mu.Unlock()

		page, err := file.readPage(pageNo)
		if err != nil {
			return nil, wrapGoDBError(IOError, "reading page from disk", err)
		}

		bp.mu.Lock()
		defer bp.mu.Unlock()
		if entry, ok := bp.cache[pid]; ok {
			return entry.page, nil
		}
		var before []byte
		if buf, bufErr := page.toBuffer(); bufErr == nil {
			before = append([]byte(nil), buf.Bytes()...)
		}
		bp.cache[pid] = &cacheEntry{page: page, beforeImage: before}
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Page), nil
}

// maxCachedPageNo returns the highest PageNo currently cached for tableID, or
// -1 if the table has no cached pages. Lets a DBFile see pages that exist
// only in the buffer pool's cache (created but not yet flushed to disk), not
// just what's already been written to the backing file.
func (bp *BufferPool) maxCachedPageNo(tableID int) int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	max := -1
	for pid := range bp.cache {
		if pid.TableID == tableID && pid.PageNo > max {
			max = pid.PageNo
		}
	}
	return max
}

// evictLocked removes one clean page from the cache. Must be called with
// bp.mu held. Never evicts a dirty page (NO STEAL); if every cached page is
// dirty, the caller (and thus GetPage) fails. The victim is flushed to its
// DBFile before it leaves the cache: commit forces only the log, not the
// data file, so a clean page's cache entry may be the only copy of its
// committed contents.
func (bp *BufferPool) evictLocked() error {
	for pid, entry := range bp.cache {
		if !entry.page.isDirty() {
			if err := entry.page.getFile().flushPage(entry.page); err != nil {
				return err
			}
			delete(bp.cache, pid)
			return nil
		}
	}
	return NewGoDBError(BufferPoolFullError, "buffer pool full of dirty pages")
}

// insertDirtiedPages re-inserts every page a DBFile mutation dirtied into
// the cache (evicting a clean victim first if needed) and marks it dirty_by
// tid. A page new to the cache gets a nil before-image: it was created by
// tid, so AbortTransaction forgets it instead of restoring it.
func (bp *BufferPool) insertDirtiedPages(tid TransactionID, pages []Page) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, page := range pages {
		pid := page.PageID()
		entry, ok := bp.cache[pid]
		if !ok {
			if len(bp.cache) >= bp.numPages {
				if err := bp.evictLocked(); err != nil {
					return err
				}
			}
			entry = &cacheEntry{}
			bp.cache[pid] = entry
		}
		entry.page = page
		tidCopy := tid
		entry.dirtyBy = &tidCopy
		page.setDirty(tid, true)
	}
	return nil
}

// InsertTuple delegates to table's DBFile and marks every page it dirtied.
func (bp *BufferPool) InsertTuple(tid TransactionID, table DBFile, t *Tuple) error {
	pages, err := table.insertTuple(tid, t)
	if err != nil {
		return err
	}
	return bp.insertDirtiedPages(tid, pages)
}

// DeleteTuple delegates to t's own table and marks every page it dirtied.
func (bp *BufferPool) DeleteTuple(tid TransactionID, table DBFile, t *Tuple) error {
	pages, err := table.deleteTuple(tid, t)
	if err != nil {
		return err
	}
	return bp.insertDirtiedPages(tid, pages)
}

// ReleasePage forwards to the lock manager. Dangerous: releasing a lock
// before transaction end violates strict two-phase locking and should only
// ever be used by recovery code, never by ordinary operators.
func (bp *BufferPool) ReleasePage(tid TransactionID, pid PageID) {
	bp.locks.ReleaseLock(tid, pid)
}

// CommitTransaction implements the FORCE commit rule: every page tid
// dirtied is logged (before/after image; a page tid created itself is logged
// with an empty before-image), the commit record is appended, and the log is
// forced to stable storage before the page is marked clean and its
// before-image refreshed. Locks are released last, after the log force
// succeeds, preserving strict two-phase locking.
func (bp *BufferPool) CommitTransaction(tid TransactionID) error {
	bp.mu.Lock()
	var dirtied []PageID
	for pid, entry := range bp.cache {
		if entry.dirtyBy != nil && *entry.dirtyBy == tid {
			dirtied = append(dirtied, pid)
		}
	}
	bp.mu.Unlock()

	for _, pid := range dirtied {
		bp.mu.Lock()
		entry := bp.cache[pid]
		after, err := entry.page.toBuffer()
		if err != nil {
			bp.mu.Unlock()
			return wrapGoDBError(IOError, "serializing page at commit", err)
		}
		before := entry.beforeImage
		bp.mu.Unlock()
		if before == nil {
			before = []byte{}
		}

		if bp.log != nil {
			if err := bp.log.LogUpdate(tid, pid, before, after.Bytes()); err != nil {
				return err
			}
		}
	}
	if bp.log != nil {
		bp.log.LogCommit(tid)
		if err := bp.log.Force(); err != nil {
			return err
		}
	}

	bp.mu.Lock()
	for _, pid := range dirtied {
		entry := bp.cache[pid]
		if buf, err := entry.page.toBuffer(); err == nil {
			entry.beforeImage = append([]byte(nil), buf.Bytes()...)
		}
		entry.page.setDirty(tid, false)
		entry.dirtyBy = nil
	}
	delete(bp.active, tid)
	bp.mu.Unlock()

	bp.locks.ReleaseAllLocks(tid)
	return nil
}

// AbortTransaction discards every page tid dirtied and restores it from its
// in-memory before-image, so the cache reflects the pre-transaction state
// immediately, not merely on next access. The before-image, not the backing
// file, is the source of truth here: the data file is never flushed at
// commit (durability comes from the log), so a committed-but-unflushed page
// has no on-disk copy to reload, and an older on-disk copy would silently
// undo changes committed by some earlier transaction. A page with no
// before-image was created by tid itself and never existed before; undoing
// it means forgetting it, not resurrecting a blank one. Locks are released
// last.
func (bp *BufferPool) AbortTransaction(tid TransactionID) {
	type dirtyPage struct {
		pid    PageID
		file   DBFile
		before []byte
	}
	bp.mu.Lock()
	var dirtied []dirtyPage
	for pid, entry := range bp.cache {
		if entry.dirtyBy != nil && *entry.dirtyBy == tid {
			dirtied = append(dirtied, dirtyPage{pid, entry.page.getFile(), entry.beforeImage})
		}
	}
	bp.mu.Unlock()

	for _, d := range dirtied {
		bp.mu.Lock()
		if d.before == nil {
			delete(bp.cache, d.pid)
			bp.mu.Unlock()
			continue
		}
		clean, err := d.file.pageFromBytes(d.pid.PageNo, d.before)
		if err != nil {
			delete(bp.cache, d.pid)
			bp.mu.Unlock()
			continue
		}
		bp.cache[d.pid] = &cacheEntry{page: clean, beforeImage: append([]byte(nil), d.before...)}
		bp.mu.Unlock()
	}

	if bp.log != nil {
		bp.log.LogAbort(tid)
	}

	bp.mu.Lock()
	delete(bp.active, tid)
	bp.mu.Unlock()

	bp.locks.ReleaseAllLocks(tid)
}

// FlushAllPages writes every dirty cached page back to its DBFile. Testing
// method; does not log and is not transaction-safe.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, entry := range bp.cache {
		if !entry.page.isDirty() {
			continue
		}
		if err := entry.page.getFile().flushPage(entry.page); err != nil {
			return err
		}
		entry.page.setDirty(0, false)
		entry.dirtyBy = nil
	}
	return nil
}

// DiscardPage evicts pid from the cache unconditionally, without flushing.
// Used by tests that want to force a clean reload.
func (bp *BufferPool) DiscardPage(pid PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	delete(bp.cache, pid)
}

// Size returns the number of pages currently cached, for tests and the
// monitoring dashboard.
func (bp *BufferPool) Size() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.cache)
}

// DirtyCount returns the number of cached pages currently dirty.
func (bp *BufferPool) DirtyCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	n := 0
	for _, entry := range bp.cache {
		if entry.page.isDirty() {
			n++
		}
	}
	return n
}
