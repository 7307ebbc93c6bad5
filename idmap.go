package apkres

import (
	"github.com/pkg/errors"
)

const (
	IdmapMagic   = 0x504D4449
	IdmapVersion = 1

	idmapOverlayPathSize = 256
	// magic, version, target package id, type count, overlay path
	idmapHeaderSize = 4 + 4 + 2 + 2 + idmapOverlayPathSize
	// target type, overlay type, entry count, entry id offset
	idmapEntryHeaderSize = 4 * 2
)

// IdmapEntries is the mapping of one overlay type to its target type.
type IdmapEntries struct {
	TargetTypeID  uint16
	OverlayTypeID uint16
	EntryIDOffset uint16
	entries       []uint32
}

// EntryCount returns the number of mapped slots.
func (e *IdmapEntries) EntryCount() int {
	return len(e.entries)
}

// Lookup maps an entry id of the target type to the entry id in the overlay
// type. Ids outside the mapped range and unmapped slots are not present.
func (e *IdmapEntries) Lookup(entryID uint16) (uint16, bool) {
	if entryID < e.EntryIDOffset {
		return 0, false
	}
	idx := int(entryID - e.EntryIDOffset)
	if idx >= len(e.entries) {
		return 0, false
	}
	mapped := e.entries[idx]
	if mapped > 0xffff {
		// covers the 0xFFFFFFFF sentinel
		return 0, false
	}
	return uint16(mapped), true
}

// LoadedIdmap is a parsed idmap file, linking an overlay package to the
// package it overlays.
type LoadedIdmap struct {
	targetPackageID uint16
	overlayPath     string
	typeMap         map[uint16]*IdmapEntries // by overlay type id
}

func idmapError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnknown, "idmap: "+format, args...)
}

// LoadIdmap parses an idmap. The data is copied.
func LoadIdmap(data []byte) (*LoadedIdmap, error) {
	if len(data)%4 != 0 {
		return nil, idmapError("size %d is not word aligned", len(data))
	}
	if len(data) < idmapHeaderSize {
		return nil, idmapError("header is too small (%d bytes)", len(data))
	}
	if magic := u32(data, 0); magic != IdmapMagic {
		return nil, idmapError("bad magic value 0x%08x", magic)
	}
	if version := u32(data, 4); version != IdmapVersion {
		return nil, idmapError("version mismatch, expected %d, got %d", IdmapVersion, version)
	}

	m := &LoadedIdmap{
		targetPackageID: u16(data, 8),
		overlayPath:     cString(data[12 : 12+idmapOverlayPathSize]),
		typeMap:         make(map[uint16]*IdmapEntries),
	}
	typeCount := int(u16(data, 10))

	if m.targetPackageID == 0 || m.targetPackageID > 255 {
		return nil, idmapError("target package id 0x%x is invalid", m.targetPackageID)
	}
	if typeCount > 255 {
		return nil, idmapError("too many type mappings (%d, max 255)", typeCount)
	}

	off := idmapHeaderSize
	for off+idmapEntryHeaderSize <= len(data) {
		if off%4 != 0 {
			return nil, idmapError("entry header at 0x%x is not word aligned", off)
		}

		targetType := u16(data, off)
		overlayType := u16(data, off+2)
		entryCount := int(u16(data, off+4))
		if targetType == 0 || overlayType == 0 || targetType > 255 || overlayType > 255 {
			return nil, idmapError("invalid type map (%d -> %d)", targetType, overlayType)
		}
		if len(data)-off < idmapEntryHeaderSize+4*entryCount {
			return nil, idmapError("too small (%d bytes) for the number of entries (%d)", len(data)-off, entryCount)
		}
		if _, prs := m.typeMap[overlayType]; prs {
			return nil, idmapError("duplicate mapping for overlay type %d", overlayType)
		}

		e := &IdmapEntries{
			TargetTypeID:  targetType,
			OverlayTypeID: overlayType,
			EntryIDOffset: u16(data, off+6),
			entries:       make([]uint32, entryCount),
		}
		for i := range e.entries {
			e.entries[i] = u32(data, off+idmapEntryHeaderSize+4*i)
		}
		m.typeMap[overlayType] = e
		off += idmapEntryHeaderSize + 4*entryCount
	}

	if len(m.typeMap) != typeCount {
		return nil, idmapError("header declares %d type mappings, found %d", typeCount, len(m.typeMap))
	}
	return m, nil
}

// TargetPackageID returns the id of the overlaid package.
func (m *LoadedIdmap) TargetPackageID() uint8 {
	return uint8(m.targetPackageID)
}

func (m *LoadedIdmap) OverlayPath() string {
	return m.overlayPath
}

// TypeMapping returns the entries mapping overlayTypeID, or nil.
func (m *LoadedIdmap) TypeMapping(overlayTypeID uint16) *IdmapEntries {
	return m.typeMap[overlayTypeID]
}

// TargetTypeFor returns the target type overlayTypeID replaces.
func (m *LoadedIdmap) TargetTypeFor(overlayTypeID uint16) (uint16, bool) {
	e := m.typeMap[overlayTypeID]
	if e == nil {
		return 0, false
	}
	return e.TargetTypeID, true
}

// TypeCount returns the number of overlaid types.
func (m *LoadedIdmap) TypeCount() int {
	return len(m.typeMap)
}
