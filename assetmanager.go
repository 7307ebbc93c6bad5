package apkres

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const resourcesArsc = "resources.arsc"

// ApkAssets is an opened APK or extracted APK directory.
type ApkAssets struct {
	path     string
	provider AssetProvider
	zip      *ZipReader
}

// OpenApkAssets opens the APK at path, or serves an extracted APK when path
// is a directory.
func OpenApkAssets(path string) (*ApkAssets, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if fi.IsDir() {
		return &ApkAssets{path: path, provider: DirAssets(path)}, nil
	}

	zip, err := OpenZip(path)
	if err != nil {
		return nil, err
	}
	return &ApkAssets{path: path, provider: zip, zip: zip}, nil
}

func (a *ApkAssets) Path() string {
	return a.path
}

func (a *ApkAssets) Provider() AssetProvider {
	return a.provider
}

// ResourceTableData returns the content of resources.arsc.
func (a *ApkAssets) ResourceTableData() ([]byte, error) {
	return a.provider.Open(resourcesArsc)
}

// OpenXml parses the compiled XML file name.
func (a *ApkAssets) OpenXml(name string, dynamicRefTable *DynamicRefTable) (*XmlTree, error) {
	data, err := a.provider.Open(name)
	if err != nil {
		return nil, err
	}

	tree := NewXmlTree(dynamicRefTable)
	if err := tree.SetTo(data, false); err != nil {
		return nil, errors.WithMessagef(err, "failed to parse %s", name)
	}
	return tree, nil
}

func (a *ApkAssets) Close() error {
	if a.zip != nil {
		return a.zip.Close()
	}
	return nil
}

// AssetManager combines the system tables and a stack of APKs into one
// ResourceTable. APKs are referenced by handles; the cookie of an APK in the
// table is its position in the stack plus one.
type AssetManager struct {
	mu     sync.Mutex
	apks   HandleArena[*ApkAssets]
	order  []Handle
	system []*ResourceTable
	cache  *TableCache
	config ResTableConfig
	table  *ResourceTable
}

// NewAssetManager returns an empty manager. System tables are taken from
// cache, which may be nil.
func NewAssetManager(cache *TableCache) *AssetManager {
	return &AssetManager{cache: cache}
}

func loadTableData(path string) ([]byte, error) {
	if strings.HasSuffix(path, ".arsc") {
		return DirAssets(filepath.Dir(path)).Open(filepath.Base(path))
	}

	apk, err := OpenApkAssets(path)
	if err != nil {
		return nil, err
	}
	defer apk.Close()
	return apk.ResourceTableData()
}

// AddSystemTable adds the framework table at path, an APK or a bare
// resources.arsc, shared through the cache.
func (m *AssetManager) AddSystemTable(path string, apiLevel int) error {
	load := func() ([]byte, error) { return loadTableData(path) }

	var table *ResourceTable
	var err error
	if m.cache != nil {
		table, err = m.cache.Get(TableKey{Path: path, System: true, APILevel: apiLevel}, load)
	} else {
		var data []byte
		if data, err = load(); err == nil {
			table = NewResourceTable()
			err = table.Add(data, 0, false)
		}
	}
	if err != nil {
		return errors.WithMessagef(err, "failed to load system table %s", path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.system = append(m.system, table)
	m.table = nil
	return nil
}

// AddApk opens the APK at path and pushes it on top of the stack.
func (m *AssetManager) AddApk(path string) (Handle, error) {
	apk, err := OpenApkAssets(path)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.apks.Put(apk)
	m.order = append(m.order, h)
	m.table = nil
	return h, nil
}

func (m *AssetManager) Apk(h Handle) (*ApkAssets, error) {
	return m.apks.Get(h)
}

// RemoveApk closes the APK of h. The handle is invalid afterwards.
func (m *AssetManager) RemoveApk(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	apk, err := m.apks.Release(h)
	if err != nil {
		return err
	}
	for i := range m.order {
		if m.order[i] == h {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.table = nil
	return apk.Close()
}

// Cookie returns the table cookie of the APK of h.
func (m *AssetManager) Cookie(h Handle) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cookieLocked(h)
}

func (m *AssetManager) cookieLocked(h Handle) (int32, error) {
	for i := range m.order {
		if m.order[i] == h {
			return int32(i + 1), nil
		}
	}
	return 0, badIndex("stale handle 0x%x", uint64(h))
}

// SetConfiguration sets the configuration of the combined table.
func (m *AssetManager) SetConfiguration(config *ResTableConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = *config
	if m.table != nil {
		m.table.SetParameters(&m.config)
	}
}

// ResourceTable returns the combined table, built on first use after the
// stack changed. APKs without resources.arsc are skipped.
func (m *AssetManager) ResourceTable() (*ResourceTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resourceTableLocked()
}

func (m *AssetManager) resourceTableLocked() (*ResourceTable, error) {
	if m.table != nil {
		return m.table, nil
	}

	table := NewResourceTable()
	for _, sys := range m.system {
		if err := table.AddShared(sys, true); err != nil {
			return nil, err
		}
	}

	for i, h := range m.order {
		apk, err := m.apks.Get(h)
		if err != nil {
			return nil, err
		}

		data, err := apk.ResourceTableData()
		if errors.Is(err, ErrNameNotFound) {
			continue
		} else if err != nil {
			return nil, errors.WithMessagef(err, "failed to read table of %s", apk.Path())
		}

		if err := table.Add(data, int32(i+1), false); err != nil {
			return nil, errors.WithMessagef(err, "failed to parse table of %s", apk.Path())
		}
	}

	table.SetParameters(&m.config)
	m.table = table
	return table, nil
}

// OpenXml parses the compiled XML file name of the APK of h, with its
// dynamic references mapped through the combined table.
func (m *AssetManager) OpenXml(h Handle, name string) (*XmlTree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	apk, err := m.apks.Get(h)
	if err != nil {
		return nil, err
	}
	cookie, err := m.cookieLocked(h)
	if err != nil {
		return nil, err
	}
	table, err := m.resourceTableLocked()
	if err != nil {
		return nil, err
	}
	return apk.OpenXml(name, table.DynamicRefTableForCookie(cookie))
}

// Close closes every APK.
func (m *AssetManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, h := range m.order {
		if apk, err := m.apks.Release(h); err == nil {
			if err := apk.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	m.order = nil
	m.table = nil
	return firstErr
}
