package apkres

import (
	"bytes"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

const (
	// header, packageCount
	tableHeaderSize = chunkHeaderSize + 4
	// header, id, name[128], typeStrings, lastPublicType, keyStrings,
	// lastPublicKey, typeIdOffset
	tablePackageHeaderSize       = chunkHeaderSize + 4 + 128*2 + 5*4
	tablePackageHeaderSizeLegacy = tablePackageHeaderSize - 4
	// header, id, res0, res1, entryCount
	tableTypeSpecHeaderSize = chunkHeaderSize + 4 + 4
	// header, id, flags, reserved, entryCount, entriesStart
	tableTypeHeaderSize = chunkHeaderSize + 4 + 4 + 4

	typeFlagSparse = 0x01

	// Type ids are 1-based bytes, so there are at most 255 types.
	maxTypes = 255
)

// ResourceTable holds parsed resources.arsc tables and resolves resource ids
// against a configuration.
//
// Loading tables is not safe for concurrent use. Once loaded, lookups may run
// concurrently with each other and with SetParameters.
type ResourceTable struct {
	// guards params and the bag caches
	lock sync.Mutex
	// guards the filtered config lists; always taken after lock
	filteredConfigLock sync.Mutex

	params ResTableConfig

	headers       []*tableHeader
	packageGroups []*packageGroup
	// package id -> index into packageGroups + 1
	packageMap    [256]uint8
	nextPackageID uint8
}

// tableHeader is one table added to a ResourceTable.
type tableHeader struct {
	data   []byte
	index  int
	cookie int32
	values *StringPool
}

type resPackage struct {
	header       *tableHeader
	id           uint32
	name         string
	typeStrings  *StringPool
	keyStrings   *StringPool
	typeIDOffset int
}

// resType is the content one package contributes to a type.
type resType struct {
	pkg           *resPackage
	typeIndex     int
	entryCount    int
	typeSpecFlags []uint32
	configs       []*typeChunk
	idmapEntries  *IdmapEntries
}

// typeChunk is one RES_TABLE_TYPE_TYPE chunk, the entries of a type in one
// configuration.
type typeChunk struct {
	data         []byte
	id           uint8
	flags        uint8
	entryCount   uint32
	entriesStart uint32
	config       ResTableConfig
}

// packageGroup is a runtime package id together with all packages, base and
// overlays, contributing to it.
type packageGroup struct {
	name            string
	id              uint32
	packages        []*resPackage
	types           [maxTypes][]*resType
	largestTypeID   uint8
	dynamicRefTable *DynamicRefTable
	isSystemAsset   bool
	isDynamic       bool

	// guarded by ResourceTable.lock
	bags map[uint32]*bagSet

	// guarded by ResourceTable.filteredConfigLock; per type index, per
	// entry of types[typeIndex]
	filteredConfigs [maxTypes][][]*typeChunk
}

func NewResourceTable() *ResourceTable {
	return &ResourceTable{
		nextPackageID: 0x02,
	}
}

// ParseResourceTable reads a whole resources.arsc from r.
func ParseResourceTable(r io.Reader) (*ResourceTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	t := NewResourceTable()
	if err := t.Add(data, 0, false); err != nil {
		return nil, err
	}
	return t, nil
}

// AddOptions tune how a table is added.
type AddOptions struct {
	// Idmap links the table to the package it overlays.
	Idmap    []byte
	Cookie   int32
	CopyData bool
	// AppAsLib loads an app package (id 0x7f) as a shared library.
	AppAsLib bool
	// IsSystemAsset assigns a dynamic package id to every package.
	IsSystemAsset bool
}

// Add parses the table in data. Unless copyData is set, data must not be
// modified while the ResourceTable is in use.
func (t *ResourceTable) Add(data []byte, cookie int32, copyData bool) error {
	return t.AddWithOptions(data, AddOptions{Cookie: cookie, CopyData: copyData})
}

// AddWithIdmap adds an overlay table, remapped onto its target through idmap.
func (t *ResourceTable) AddWithIdmap(data []byte, idmap []byte, cookie int32, copyData bool) error {
	return t.AddWithOptions(data, AddOptions{Idmap: idmap, Cookie: cookie, CopyData: copyData})
}

// AddWithOptions parses the table in data. On error the ResourceTable is left
// unchanged.
func (t *ResourceTable) AddWithOptions(data []byte, opts AddOptions) error {
	if len(data) < tableHeaderSize {
		return errors.Wrapf(ErrUnknown, "invalid data, size %d is smaller than a table header", len(data))
	}

	hdr, err := validateChunk(data, 0, tableHeaderSize, "resource table")
	if err != nil {
		return err
	}
	if opts.CopyData {
		data = append([]byte(nil), data[:hdr.Size]...)
	} else {
		data = data[:hdr.Size]
	}

	var idmap *LoadedIdmap
	if opts.Idmap != nil {
		if idmap, err = LoadIdmap(opts.Idmap); err != nil {
			return errors.WithMessage(err, "overlay is broken")
		}
	}

	header := &tableHeader{
		data:   data,
		index:  len(t.headers),
		cookie: opts.Cookie,
	}

	packageCount := u32(data, chunkHeaderSize)
	var staged []*stagedPackage

	for off := int(hdr.HeaderSize); off+chunkHeaderSize <= len(data); {
		if uint64(readChunkHeader(data, off).Size) > uint64(len(data)-off) {
			break
		}
		chunk, err := validateChunk(data, off, chunkHeaderSize, "resource table")
		if err != nil {
			return err
		}

		switch chunk.Type {
		case chunkStringTable:
			if header.values == nil {
				if header.values, err = NewStringPool(data[off:], false); err != nil {
					return err
				}
			} else {
				warn("multiple string chunks found in resource table")
			}
		case chunkTablePackage:
			if uint32(len(staged)) >= packageCount {
				return badType("more package chunks were found than the %d declared in the header", packageCount)
			}
			sp, err := t.parsePackage(header, off, idmap)
			if err != nil {
				return err
			}
			staged = append(staged, sp)
		default:
			warn("unknown chunk type in table", "type", chunk.Type, "offset", off)
		}
		off += int(chunk.Size)
	}

	if uint32(len(staged)) < packageCount {
		return badType("fewer package chunks (%d) were found than the %d declared in the header", len(staged), packageCount)
	}
	if header.values == nil {
		return errors.Wrap(ErrNoInit, "no string values found in resource table")
	}

	return t.commit(header, staged, opts)
}

// stagedPackage is a parsed package not yet linked into the table.
type stagedPackage struct {
	pkg        *resPackage
	types      []*resType
	libEntries map[string]uint8
}

func (t *ResourceTable) parsePackage(header *tableHeader, off int, idmap *LoadedIdmap) (*stagedPackage, error) {
	data := header.data
	hdr, err := validateChunk(data, off, tablePackageHeaderSizeLegacy, "package")
	if err != nil {
		return nil, err
	}
	pkgSize := hdr.Size

	typeStrings := u32(data, off+268)
	keyStrings := u32(data, off+276)
	if typeStrings >= pkgSize {
		return nil, badType("package type strings at 0x%x are past chunk size 0x%x", typeStrings, pkgSize)
	}
	if typeStrings&0x3 != 0 {
		return nil, badType("package type strings at 0x%x is not on an integer boundary", typeStrings)
	}
	if keyStrings >= pkgSize {
		return nil, badType("package key strings at 0x%x are past chunk size 0x%x", keyStrings, pkgSize)
	}
	if keyStrings&0x3 != 0 {
		return nil, badType("package key strings at 0x%x is not on an integer boundary", keyStrings)
	}

	pkg := &resPackage{
		header: header,
		id:     u32(data, off+8),
		name:   readUtf16Name(data, off+12, packageNameSize),
	}
	if hdr.HeaderSize >= tablePackageHeaderSize {
		pkg.typeIDOffset = int(u32(data, off+284))
	}
	if idmap != nil {
		pkg.id = uint32(idmap.TargetPackageID())
	}
	if pkg.id >= 256 {
		return nil, badType("package id 0x%x out of range", pkg.id)
	}

	if pkg.typeStrings, err = NewStringPool(data[off+int(typeStrings):], false); err != nil {
		return nil, errors.WithMessage(err, "package type strings")
	}
	if pkg.keyStrings, err = NewStringPool(data[off+int(keyStrings):], false); err != nil {
		return nil, errors.WithMessage(err, "package key strings")
	}

	sp := &stagedPackage{pkg: pkg}
	end := off + int(pkgSize)
	pkgData := data[:end]

	for coff := off + int(hdr.HeaderSize); coff+chunkHeaderSize <= end; {
		chunk := readChunkHeader(pkgData, coff)
		if uint64(chunk.Size) > uint64(end-coff) {
			break
		}

		switch chunk.Type {
		case chunkTableTypeSpec:
			if err := sp.parseTypeSpec(pkgData, coff, idmap); err != nil {
				return nil, err
			}
		case chunkTableType:
			if err := sp.parseType(pkgData, coff, idmap); err != nil {
				return nil, err
			}
		case chunkTableLibrary:
			if sp.libEntries != nil {
				warn("found multiple library tables, ignoring", "package", pkg.name)
				break
			}
			if _, err := validateChunk(pkgData, coff, libHeaderSize, "library"); err != nil {
				return nil, err
			}
			lib := NewDynamicRefTable(0, false)
			if err := lib.Load(pkgData[coff : coff+int(chunk.Size)]); err != nil {
				return nil, err
			}
			sp.libEntries = lib.entries
		default:
			if _, err := validateChunk(pkgData, coff, chunkHeaderSize, "package:unknown"); err != nil {
				return nil, err
			}
		}
		if chunk.Size == 0 {
			return nil, badType("zero sized chunk in package at 0x%x", coff)
		}
		coff += int(chunk.Size)
	}
	return sp, nil
}

// typeIndexFor maps a type id of the package to the type index it
// contributes to. Overlay types not covered by the idmap are dropped.
func typeIndexFor(id uint8, idmap *LoadedIdmap) (typeIndex int, idmapEntries *IdmapEntries, ok bool) {
	if idmap == nil {
		return int(id) - 1, nil, true
	}
	entries := idmap.TypeMapping(uint16(id))
	if entries == nil {
		return 0, nil, false
	}
	return int(entries.TargetTypeID) - 1, entries, true
}

func (sp *stagedPackage) parseTypeSpec(data []byte, off int, idmap *LoadedIdmap) error {
	hdr, err := validateChunk(data, off, tableTypeSpecHeaderSize, "typeSpec")
	if err != nil {
		return err
	}

	id := u8(data, off+8)
	entryCount := u32(data, off+12)
	if uint64(hdr.HeaderSize)+4*uint64(entryCount) > uint64(hdr.Size) {
		return badType("typeSpec entry index of %d entries extends beyond chunk end 0x%x", entryCount, hdr.Size)
	}
	if id == 0 {
		return badType("typeSpec has an id of 0")
	}
	if entryCount == 0 {
		return nil
	}

	typeIndex, idmapEntries, ok := typeIndexFor(id, idmap)
	if !ok {
		return nil
	}

	flags := make([]uint32, entryCount)
	for i := range flags {
		flags[i] = u32(data, off+int(hdr.HeaderSize)+4*i)
	}

	sp.types = append(sp.types, &resType{
		pkg:           sp.pkg,
		typeIndex:     typeIndex,
		entryCount:    int(entryCount),
		typeSpecFlags: flags,
		idmapEntries:  idmapEntries,
	})
	return nil
}

func (sp *stagedPackage) parseType(data []byte, off int, idmap *LoadedIdmap) error {
	hdr, err := validateChunk(data, off, tableTypeHeaderSize+4, "type")
	if err != nil {
		return err
	}

	tc := &typeChunk{
		data:         data[off : off+int(hdr.Size)],
		id:           u8(data, off+8),
		flags:        u8(data, off+9),
		entryCount:   u32(data, off+12),
		entriesStart: u32(data, off+16),
	}

	if uint64(hdr.HeaderSize)+4*uint64(tc.entryCount) > uint64(hdr.Size) {
		return badType("type entry index of %d entries extends beyond chunk end 0x%x", tc.entryCount, hdr.Size)
	}
	if tc.entryCount != 0 && tc.entriesStart > hdr.Size-entryHeaderSize {
		return badType("type entriesStart at 0x%x extends beyond chunk end 0x%x", tc.entriesStart, hdr.Size)
	}
	if tc.id == 0 {
		return badType("type has an id of 0")
	}
	if tc.config, err = parseConfig(tc.data, tableTypeHeaderSize); err != nil {
		return err
	}
	if tc.entryCount == 0 {
		return nil
	}

	typeIndex, _, ok := typeIndexFor(tc.id, idmap)
	if !ok {
		return nil
	}

	var last *resType
	for i := len(sp.types) - 1; i >= 0; i-- {
		if sp.types[i].typeIndex == typeIndex {
			last = sp.types[i]
			break
		}
	}
	if last == nil {
		return badType("no typeSpec for type %d", tc.id)
	}
	if tc.flags&typeFlagSparse == 0 && int(tc.entryCount) > last.entryCount {
		warn("type entry count inconsistent with its typeSpec", "type", tc.id, "entries", tc.entryCount, "spec", last.entryCount)
	}
	last.configs = append(last.configs, tc)
	return nil
}

// commit links staged packages into the table. It can't fail once the
// package ids are known to fit.
func (t *ResourceTable) commit(header *tableHeader, staged []*stagedPackage, opts AddOptions) error {
	dynamic := 0
	for _, sp := range staged {
		if t.needsDynamicID(sp.pkg.id, opts) {
			dynamic++
		}
	}
	if int(t.nextPackageID)+dynamic > 0xff {
		return errors.Wrapf(ErrNoMemory, "out of package ids")
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.headers = append(t.headers, header)

	for _, sp := range staged {
		id := sp.pkg.id
		isDynamic := false
		if t.needsDynamicID(id, opts) {
			id = uint32(t.nextPackageID)
			t.nextPackageID++
			isDynamic = true
		}

		var group *packageGroup
		if idx := t.packageMap[id]; idx == 0 {
			group = &packageGroup{
				name:            sp.pkg.name,
				id:              id,
				dynamicRefTable: NewDynamicRefTable(uint8(id), opts.AppAsLib),
				isSystemAsset:   opts.IsSystemAsset,
				isDynamic:       isDynamic,
			}
			t.packageGroups = append(t.packageGroups, group)
			t.packageMap[id] = uint8(len(t.packageGroups))

			// Packages referencing this one by name can be linked now.
			for _, g := range t.packageGroups {
				_ = g.dynamicRefTable.AddMapping(group.name, uint8(group.id))
			}
		} else {
			group = t.packageGroups[idx-1]
		}

		group.packages = append(group.packages, sp.pkg)
		for _, rt := range sp.types {
			group.types[rt.typeIndex] = append(group.types[rt.typeIndex], rt)
			if uint8(rt.typeIndex+1) > group.largestTypeID {
				group.largestTypeID = uint8(rt.typeIndex + 1)
			}
		}

		if sp.libEntries != nil {
			if len(group.dynamicRefTable.entries) == 0 {
				for name, buildID := range sp.libEntries {
					group.dynamicRefTable.entries[name] = buildID
				}
				for _, g := range t.packageGroups {
					_ = group.dynamicRefTable.AddMapping(g.name, uint8(g.id))
				}
			} else {
				warn("found multiple library tables, ignoring", "package", group.name)
			}
		}
	}

	for _, g := range t.packageGroups {
		g.bags = nil
	}
	return nil
}

func (t *ResourceTable) needsDynamicID(id uint32, opts AddOptions) bool {
	return id == 0 || (id == AppPackageID && opts.AppAsLib) || opts.IsSystemAsset
}

// AddShared adds the packages of src without copying them. The data of src
// is shared, never modified and must stay alive as long as t is used.
func (t *ResourceTable) AddShared(src *ResourceTable, isSystemAsset bool) error {
	src.lock.Lock()
	defer src.lock.Unlock()
	t.lock.Lock()
	defer t.lock.Unlock()

	for _, srcGroup := range src.packageGroups {
		if t.packageMap[srcGroup.id] != 0 {
			return errors.Wrapf(ErrUnknown, "package id 0x%02x already present", srcGroup.id)
		}
	}

	t.headers = append(t.headers, src.headers...)

	for _, srcGroup := range src.packageGroups {
		g := &packageGroup{
			name:            srcGroup.name,
			id:              srcGroup.id,
			packages:        append([]*resPackage(nil), srcGroup.packages...),
			largestTypeID:   srcGroup.largestTypeID,
			dynamicRefTable: NewDynamicRefTable(uint8(srcGroup.id), false),
			isSystemAsset:   isSystemAsset || srcGroup.isSystemAsset,
			isDynamic:       srcGroup.isDynamic,
		}
		for i := range srcGroup.types {
			g.types[i] = append([]*resType(nil), srcGroup.types[i]...)
		}
		if err := g.dynamicRefTable.AddMappings(srcGroup.dynamicRefTable); err != nil {
			warn("failed to merge dynamic references of shared package", "package", g.name, "err", err)
		}
		t.packageGroups = append(t.packageGroups, g)
		t.packageMap[g.id] = uint8(len(t.packageGroups))
	}
	if src.nextPackageID > t.nextPackageID {
		t.nextPackageID = src.nextPackageID
	}
	return nil
}

// SetParameters sets the configuration lookups are made against and
// precomputes the type configurations it matches.
func (t *ResourceTable) SetParameters(params *ResTableConfig) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.filteredConfigLock.Lock()
	defer t.filteredConfigLock.Unlock()

	t.params = *params

	for _, g := range t.packageGroups {
		g.bags = nil

		for ti := range g.types {
			g.filteredConfigs[ti] = nil
			if len(g.types[ti]) == 0 {
				continue
			}

			filtered := make([][]*typeChunk, len(g.types[ti]))
			for i, rt := range g.types[ti] {
				for _, tc := range rt.configs {
					if tc.config.Match(&t.params) {
						filtered[i] = append(filtered[i], tc)
					}
				}
			}
			g.filteredConfigs[ti] = filtered
		}
	}
}

// Parameters returns the current configuration.
func (t *ResourceTable) Parameters() ResTableConfig {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.params
}

// configIdentity is used to compare a requested config with the parameters
// the filtered lists were built for.
func configIdentity(c *ResTableConfig) (uint64, []byte) {
	b := c.Bytes()
	if c.LocaleScriptWasComputed {
		b = append(b, 1)
	}
	return xxhash.Sum64(b), b
}

func (t *ResourceTable) isCurrentParams(config *ResTableConfig) bool {
	h1, b1 := configIdentity(config)
	h2, b2 := configIdentity(&t.params)
	return h1 == h2 && bytes.Equal(b1, b2)
}

// PackageCount returns the number of package groups.
func (t *ResourceTable) PackageCount() int {
	return len(t.packageGroups)
}

// PackageGroupIndex returns the group index of the runtime package id, or -1.
func (t *ResourceTable) PackageGroupIndex(id uint8) int {
	return int(t.packageMap[id]) - 1
}

func (t *ResourceTable) resourcePackageIndex(resID uint32) int {
	return t.PackageGroupIndex(uint8(resID >> 24))
}

// PackageName returns the name of the package group at index.
func (t *ResourceTable) PackageName(index int) string {
	if index < 0 || index >= len(t.packageGroups) {
		return ""
	}
	return t.packageGroups[index].name
}

// PackageID returns the runtime id of the package group at index.
func (t *ResourceTable) PackageID(index int) uint8 {
	if index < 0 || index >= len(t.packageGroups) {
		return 0
	}
	return uint8(t.packageGroups[index].id)
}

// DynamicRefTableForPackage returns the reference table of the runtime
// package id, or nil.
func (t *ResourceTable) DynamicRefTableForPackage(id uint8) *DynamicRefTable {
	idx := t.PackageGroupIndex(id)
	if idx < 0 {
		return nil
	}
	return t.packageGroups[idx].dynamicRefTable
}

// DynamicRefTableForCookie returns the reference table of the package loaded
// with cookie, or nil.
func (t *ResourceTable) DynamicRefTableForCookie(cookie int32) *DynamicRefTable {
	for _, g := range t.packageGroups {
		for _, p := range g.packages {
			if p.header.cookie == cookie {
				return g.dynamicRefTable
			}
		}
	}
	return nil
}

// StringBlockCount returns the number of added tables.
func (t *ResourceTable) StringBlockCount() int {
	return len(t.headers)
}

// StringBlock returns the global string pool of the table at index.
func (t *ResourceTable) StringBlock(index int) *StringPool {
	if index < 0 || index >= len(t.headers) {
		return nil
	}
	return t.headers[index].values
}

// TableCookie returns the cookie the table at index was added with.
func (t *ResourceTable) TableCookie(index int) int32 {
	if index < 0 || index >= len(t.headers) {
		return -1
	}
	return t.headers[index].cookie
}

// Configurations returns every distinct configuration present in the table.
func (t *ResourceTable) Configurations() []ResTableConfig {
	var res []ResTableConfig
	for _, g := range t.packageGroups {
		for _, types := range g.types {
			for _, rt := range types {
				for _, tc := range rt.configs {
					found := false
					for i := range res {
						if res[i].Compare(&tc.config) == 0 {
							found = true
							break
						}
					}
					if !found {
						res = append(res, tc.config)
					}
				}
			}
		}
	}
	return res
}
