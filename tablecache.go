package apkres

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/arc/v2"
)

const defaultTableCacheSize = 8

// TableKey identifies a shared table.
type TableKey struct {
	Path     string
	System   bool
	APILevel int
}

func (k TableKey) hash() uint64 {
	d := xxhash.New()
	d.WriteString(k.Path)
	d.WriteString("\x00")
	d.WriteString(strconv.FormatBool(k.System))
	d.WriteString("\x00")
	d.WriteString(strconv.Itoa(k.APILevel))
	return d.Sum64()
}

type cachedTable struct {
	key   TableKey
	table *ResourceTable
}

// TableCache keeps parsed tables, typically the framework ones, to be shared
// read-only by many ResourceTables through AddShared.
type TableCache struct {
	// serializes loads so a table is parsed once
	mu    sync.Mutex
	cache *arc.ARCCache[uint64, *cachedTable]
}

// NewTableCache returns a cache of at most size tables; size <= 0 picks a
// default.
func NewTableCache(size int) (*TableCache, error) {
	if size <= 0 {
		size = defaultTableCacheSize
	}
	cache, err := arc.NewARC[uint64, *cachedTable](size)
	if err != nil {
		return nil, err
	}
	return &TableCache{cache: cache}, nil
}

// Get returns the table for key, parsing the data returned by load on a miss.
// The returned table must not be modified, add it to others with AddShared
// and key.System as isSystemAsset.
func (c *TableCache) Get(key TableKey, load func() ([]byte, error)) (*ResourceTable, error) {
	h := key.hash()

	c.mu.Lock()
	defer c.mu.Unlock()

	if ct, ok := c.cache.Get(h); ok && ct.key == key {
		return ct.table, nil
	}

	data, err := load()
	if err != nil {
		return nil, err
	}

	table := NewResourceTable()
	if err := table.Add(data, 0, false); err != nil {
		return nil, err
	}

	c.cache.Add(h, &cachedTable{key: key, table: table})
	return table, nil
}

// Len returns the number of cached tables.
func (c *TableCache) Len() int {
	return c.cache.Len()
}

// Purge drops every cached table. Tables already shared stay valid.
func (c *TableCache) Purge() {
	c.cache.Purge()
}
