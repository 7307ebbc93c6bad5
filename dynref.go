package apkres

import (
	"unicode/utf16"

	"github.com/pkg/errors"
)

// Reserved package ids.
const (
	SysPackageID = 0x01
	AppPackageID = 0x7f
)

const (
	libHeaderSize = chunkHeaderSize + 4
	// u32 packageId, u16 packageName[128]
	libEntrySize    = 4 + 128*2
	packageNameSize = 128
)

// DynamicRefTable maps the package ids a package was built against to the
// ids the packages got at runtime. Shared libraries are built with package
// id 0 and get assigned one when loaded.
type DynamicRefTable struct {
	assignedPackageID uint8
	appAsLib          bool
	lookupTable       [256]uint8
	entries           map[string]uint8
}

func NewDynamicRefTable(assignedPackageID uint8, appAsLib bool) *DynamicRefTable {
	t := &DynamicRefTable{
		assignedPackageID: assignedPackageID,
		appAsLib:          appAsLib,
		entries:           make(map[string]uint8),
	}
	t.lookupTable[AppPackageID] = AppPackageID
	t.lookupTable[SysPackageID] = SysPackageID
	t.lookupTable[assignedPackageID] = assignedPackageID
	return t
}

// AssignedPackageID returns the runtime id of the package the table belongs to.
func (t *DynamicRefTable) AssignedPackageID() uint8 {
	return t.assignedPackageID
}

// Entries returns the package name to build-time id map of the libraries
// the package was built against.
func (t *DynamicRefTable) Entries() map[string]uint8 {
	return t.entries
}

// Load reads the library entries of a RES_TABLE_LIBRARY_TYPE chunk.
func (t *DynamicRefTable) Load(chunk []byte) error {
	hdr, err := validateChunk(chunk, 0, libHeaderSize, "library")
	if err != nil {
		return err
	}

	count := u32(chunk, chunkHeaderSize)
	available := (hdr.Size - uint32(hdr.HeaderSize)) / libEntrySize
	if count > available {
		return errors.Wrapf(ErrUnknown, "library header size %d is too small to fit %d entries", hdr.Size-uint32(hdr.HeaderSize), count)
	}

	off := int(hdr.HeaderSize)
	for i := uint32(0); i < count; i++ {
		packageID := u32(chunk, off)
		if packageID >= 256 {
			return errors.Wrapf(ErrUnknown, "bad package id 0x%08x", packageID)
		}
		t.entries[readUtf16Name(chunk, off+4, packageNameSize)] = uint8(packageID)
		off += libEntrySize
	}
	return nil
}

// readUtf16Name reads a fixed size, zero terminated UTF-16 name.
func readUtf16Name(data []byte, off int, maxUnits int) string {
	units := make([]uint16, 0, 32)
	for i := 0; i < maxUnits; i++ {
		u := u16(data, off+2*i)
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// AddMappings merges the mappings of other, which must belong to the same
// package. Conflicting mappings fail with ErrUnknown.
func (t *DynamicRefTable) AddMappings(other *DynamicRefTable) error {
	if t.assignedPackageID != other.assignedPackageID {
		return errors.Wrapf(ErrUnknown, "cannot merge mappings of package 0x%02x into 0x%02x", other.assignedPackageID, t.assignedPackageID)
	}

	for name, id := range other.entries {
		if cur, prs := t.entries[name]; !prs {
			t.entries[name] = id
		} else if cur != id {
			return errors.Wrapf(ErrUnknown, "conflicting build id for %s: 0x%02x vs 0x%02x", name, cur, id)
		}
	}

	for i := range t.lookupTable {
		if t.lookupTable[i] == other.lookupTable[i] {
			continue
		}
		if t.lookupTable[i] == 0 {
			t.lookupTable[i] = other.lookupTable[i]
		} else if other.lookupTable[i] != 0 {
			return errors.Wrapf(ErrUnknown, "conflicting mapping for build id 0x%02x", i)
		}
	}
	return nil
}

// AddMapping maps the build-time id of the library packageName to
// runtimeID. The library must have been declared by Load.
func (t *DynamicRefTable) AddMapping(packageName string, runtimeID uint8) error {
	buildID, prs := t.entries[packageName]
	if !prs {
		return errors.Wrapf(ErrUnknown, "no library named %s", packageName)
	}
	t.lookupTable[buildID] = runtimeID
	return nil
}

// AddMappingID maps a build-time package id directly.
func (t *DynamicRefTable) AddMappingID(buildID, runtimeID uint8) {
	t.lookupTable[buildID] = runtimeID
}

// LookupResourceID rewrites the package byte of resID to its runtime id.
func (t *DynamicRefTable) LookupResourceID(resID *uint32) error {
	res := *resID
	packageID := res >> 24

	if res == 0 {
		return nil
	}

	if packageID == AppPackageID && !t.appAsLib {
		// app ids are absolute
		return nil
	}

	if packageID == 0 || (packageID == AppPackageID && t.appAsLib) {
		// A shared library referencing its own resources.
		*resID = (res & 0x00ffffff) | uint32(t.assignedPackageID)<<24
		return nil
	}

	translated := t.lookupTable[packageID]
	if translated == 0 {
		args := []any{"assigned", t.assignedPackageID, "buildID", packageID}
		for i, v := range t.lookupTable {
			if v != 0 {
				args = append(args, "mapping", [2]uint8{uint8(i), v})
			}
		}
		warn("no mapping for build-time package id", args...)
		return errors.Wrapf(ErrUnknown, "no mapping for build-time package id 0x%02x", packageID)
	}

	*resID = (res & 0x00ffffff) | uint32(translated)<<24
	return nil
}

// LookupResourceValue fixes up references in value. Dynamic references are
// narrowed to plain ones once resolved.
func (t *DynamicRefTable) LookupResourceValue(value *Value) error {
	resolvedType := uint8(AttrTypeReference)
	switch value.DataType {
	case AttrTypeAttribute, AttrTypeReference:
		// Only loaded-as-library packages and a library's references to
		// itself need rewriting.
		if !t.appAsLib && value.Data>>24 != 0 {
			return nil
		}
		resolvedType = value.DataType
	case AttrTypeDynamicAttribute:
		resolvedType = AttrTypeAttribute
	case AttrTypeDynamicReference:
	default:
		return nil
	}

	if err := t.LookupResourceID(&value.Data); err != nil {
		return err
	}
	value.DataType = resolvedType
	return nil
}
