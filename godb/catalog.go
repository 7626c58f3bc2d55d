package godb

import "sync"

// tableEntry is the catalog's record of one table: its backing DBFile, the
// name it was registered under, and the name of its primary-key field, kept
// alongside the DBFile for whichever higher-layer planner needs it
// -- the buffer pool and operators never consult it.
type tableEntry struct {
	name       string
	file       DBFile
	primaryKey string
}

// Catalog is classdb's table directory: the mapping from table name (and
// from the DBFile.ID() every PageID carries) back to the DBFile and
// TupleDesc that name refers to. Every table a Database knows about is
// registered here exactly once.
type Catalog struct {
	mu      sync.RWMutex
	byName  map[string]*tableEntry
	byID    map[int]*tableEntry
}

func NewCatalog() *Catalog {
	return &Catalog{
		byName: make(map[string]*tableEntry),
		byID:   make(map[int]*tableEntry),
	}
}

// AddTable registers file under name with the given primary-key field name
// overwriting any prior registration of that name.
func (c *Catalog) AddTable(name string, file DBFile, primaryKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := &tableEntry{name: name, file: file, primaryKey: primaryKey}
	c.byName[name] = entry
	c.byID[file.ID()] = entry
}

// TableIDByName returns the table_id (DBFile.ID()) registered under name.
func (c *Catalog) TableIDByName(name string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.byName[name]
	if !ok {
		return 0, NewGoDBError(NoSuchElementError, "no table named "+name)
	}
	return entry.file.ID(), nil
}

// PrimaryKey returns the primary-key field name registered under name.
func (c *Catalog) PrimaryKey(name string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.byName[name]
	if !ok {
		return "", NewGoDBError(NoSuchElementError, "no table named "+name)
	}
	return entry.primaryKey, nil
}

// TableIDs lists every known table id, in no particular order.
func (c *Catalog) TableIDs() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	return ids
}

// TableByName returns the DBFile registered under name.
func (c *Catalog) TableByName(name string) (DBFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.byName[name]
	if !ok {
		return nil, NewGoDBError(NoSuchElementError, "no table named "+name)
	}
	return entry.file, nil
}

// TableByID returns the DBFile whose ID() is id, used to resolve a PageID's
// TableID back to the file that owns it.
func (c *Catalog) TableByID(id int) (DBFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.byID[id]
	if !ok {
		return nil, NewGoDBError(NoSuchElementError, "no table with that id")
	}
	return entry.file, nil
}

// TupleDesc returns the TupleDesc of the table registered under name.
func (c *Catalog) TupleDesc(name string) (*TupleDesc, error) {
	file, err := c.TableByName(name)
	if err != nil {
		return nil, err
	}
	return file.Descriptor(), nil
}

// TupleDescByID returns the TupleDesc of the table whose id is id.
func (c *Catalog) TupleDescByID(id int) (*TupleDesc, error) {
	file, err := c.TableByID(id)
	if err != nil {
		return nil, err
	}
	return file.Descriptor(), nil
}

// Names returns every registered table name, in no particular order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	return names
}
