package godb

import (
	"path/filepath"

	"github.com/google/uuid"
)

// Database is the single context every operator and buffer-pool call
// threads through: the catalog of tables, the shared buffer pool, the lock
// manager backing it, and the write-ahead log. Passing *Database explicitly
// (rather than reaching for package-level globals) means a test can stand up
// as many independent instances as it needs.
type Database struct {
	InstanceID uuid.UUID
	Catalog    *Catalog
	BufferPool *BufferPool
	Locks      *LockManager
	Log        *LogFile
	Config     *Config
}

// NewDatabase wires up a fresh Database from cfg: a LockManager, a LogFile
// rooted at cfg.LogPath, and a BufferPool sized to cfg.BufferPoolPages,
// tagged with a fresh InstanceID for log correlation across instances.
func NewDatabase(cfg *Config) (*Database, error) {
	if cfg.PageSize > 0 {
		PageSize = cfg.PageSize
	}
	if cfg.StringLength > 0 {
		StringLength = cfg.StringLength
	}

	logPath := cfg.LogPath
	if logPath == "" {
		logPath = "classdb.log"
	}
	logFile, err := NewLogFile(logPath)
	if err != nil {
		return nil, err
	}

	instanceID := uuid.New()
	logFile.instance = instanceID.String()

	locks := NewLockManager()
	bp := NewBufferPool(cfg.BufferPoolPagesOrDefault(), locks, logFile)

	return &Database{
		InstanceID: instanceID,
		Catalog:    NewCatalog(),
		BufferPool: bp,
		Locks:      locks,
		Log:        logFile,
		Config:     cfg,
	}, nil
}

// OpenTable registers a HeapFile backed by path (created if absent) under
// name, using desc as its schema and primaryKey as its primary-key field
// name. primaryKey may be "" for tables with no declared key.
func (d *Database) OpenTable(name, path string, desc *TupleDesc, primaryKey string) (*HeapFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, wrapGoDBError(IOError, "resolving table file path", err)
	}
	file, err := NewHeapFile(abs, desc, d.BufferPool)
	if err != nil {
		return nil, err
	}
	d.Catalog.AddTable(name, file, primaryKey)
	return file, nil
}

// NewTransaction allocates a fresh TransactionID and registers it as active
// with the buffer pool.
func (d *Database) NewTransaction() (TransactionID, error) {
	tid := NewTID()
	if err := d.BufferPool.BeginTransaction(tid); err != nil {
		return 0, err
	}
	d.Log.LogBegin(tid)
	return tid, nil
}

// Commit commits tid via the buffer pool's FORCE commit path.
func (d *Database) Commit(tid TransactionID) error {
	return d.BufferPool.CommitTransaction(tid)
}

// Abort aborts tid, discarding its dirtied pages and releasing its locks.
func (d *Database) Abort(tid TransactionID) {
	d.BufferPool.AbortTransaction(tid)
}

// Close flushes and closes the write-ahead log.
func (d *Database) Close() error {
	return d.Log.Close()
}
