package apkres

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// Upper bound on the size of one asset read into memory.
const maxAssetSize = 512 * 1024 * 1024

// AssetDirEntry is one child of an asset directory.
type AssetDirEntry struct {
	Name  string
	IsDir bool
}

// AssetProvider gives access to the files of an APK or an extracted APK
// directory. Missing entries fail with ErrNameNotFound.
type AssetProvider interface {
	Open(name string) ([]byte, error)
	List(prefix string) ([]AssetDirEntry, error)
}

var (
	_ AssetProvider = (*ZipReader)(nil)
	_ AssetProvider = DirAssets("")
)

// DirAssets serves assets from an extracted APK directory.
type DirAssets string

// path maps name below the root; ".." can't escape it.
func (d DirAssets) path(name string) string {
	return filepath.Join(string(d), filepath.Clean("/"+filepath.FromSlash(name)))
}

// Open maps the file and copies it out, so the result stays valid after the
// mapping is gone.
func (d DirAssets) Open(name string) ([]byte, error) {
	r, err := mmap.Open(d.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrNameNotFound, "%s not found", name)
		}
		return nil, err
	}
	defer r.Close()

	if r.Len() > maxAssetSize {
		return nil, errors.Wrapf(ErrNoMemory, "%s is too big (%d bytes)", name, r.Len())
	}

	data := make([]byte, r.Len())
	if _, err := r.ReadAt(data, 0); err != nil && len(data) != 0 {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	return data, nil
}

func (d DirAssets) List(prefix string) ([]AssetDirEntry, error) {
	entries, err := os.ReadDir(d.path(prefix))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrNameNotFound, "directory %s not found", prefix)
		}
		return nil, err
	}

	res := make([]AssetDirEntry, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		res = append(res, AssetDirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}
