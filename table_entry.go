package apkres

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	// size, flags, key
	entryHeaderSize = 2 + 2 + 4
	// entry header, parent, count
	mapEntryHeaderSize = entryHeaderSize + 4 + 4
	// name, value
	mapItemSize = 4 + valueSize

	EntryFlagComplex = 0x0001
	EntryFlagPublic  = 0x0002
	EntryFlagWeak    = 0x0004

	maxReferenceHops = 20
)

// TableEntry is a decoded ResTable_entry. Body holds a SimpleValue, or a
// ComplexValue when Flags has EntryFlagComplex.
type TableEntry struct {
	Size  uint16
	Flags uint16
	Key   uint32
	Body  EntryBody
}

type EntryBody interface {
	isEntryBody()
}

type SimpleValue struct {
	Value Value
}

// ComplexValue is a bag: a parent reference plus name/value items.
type ComplexValue struct {
	Parent uint32
	Items  []MapItem
}

type MapItem struct {
	Name  uint32
	Value Value
}

func (SimpleValue) isEntryBody()  {}
func (ComplexValue) isEntryBody() {}

func (e *TableEntry) IsComplex() bool {
	return e.Flags&EntryFlagComplex != 0
}

// parseTableEntry decodes the entry at off inside the type chunk data.
func parseTableEntry(data []byte, off int) (TableEntry, error) {
	if !inBounds(data, off, entryHeaderSize) {
		return TableEntry{}, badType("entry at 0x%x is beyond type chunk data 0x%x", off, len(data))
	}

	e := TableEntry{
		Size:  u16(data, off),
		Flags: u16(data, off+2),
		Key:   u32(data, off+4),
	}
	if e.Size < entryHeaderSize {
		return e, badType("entry size 0x%x is too small", e.Size)
	}

	if !e.IsComplex() {
		voff := off + int(e.Size)
		if !inBounds(data, voff, valueSize) {
			return e, badType("value at 0x%x is beyond type chunk data 0x%x", voff, len(data))
		}
		e.Body = SimpleValue{Value: parseValue(data, voff)}
		return e, nil
	}

	var cv ComplexValue
	var count uint32
	if e.Size >= mapEntryHeaderSize && inBounds(data, off, mapEntryHeaderSize) {
		cv.Parent = u32(data, off+8)
		count = u32(data, off+12)
	}

	cur := off + int(e.Size)
	cv.Items = make([]MapItem, 0, min(int(count), len(data)/mapItemSize))
	for pos := uint32(0); pos < count; pos++ {
		if !inBounds(data, cur, mapItemSize) {
			return e, badType("map item at 0x%x is beyond type chunk data 0x%x", cur, len(data))
		}
		item := MapItem{
			Name:  u32(data, cur),
			Value: parseValue(data, cur+4),
		}
		cv.Items = append(cv.Items, item)
		cur += 4 + int(item.Value.Size)
	}
	e.Body = cv
	return e, nil
}

// Entry is the entry GetEntry selected for a configuration.
type Entry struct {
	TableEntry
	Config    ResTableConfig
	SpecFlags uint32

	pkg       *resPackage
	typeIndex int
}

// PackageName returns the name of the package the entry came from.
func (e *Entry) PackageName() string {
	return e.pkg.name
}

// TypeName returns the type name, e.g. "string".
func (e *Entry) TypeName() (string, error) {
	return e.pkg.typeStrings.StringAt(uint32(e.typeIndex - e.pkg.typeIDOffset))
}

// KeyName returns the entry name.
func (e *Entry) KeyName() (string, error) {
	return e.pkg.keyStrings.StringAt(e.Key)
}

// ValueStrings returns the global string pool values of the entry refer to.
func (e *Entry) ValueStrings() *StringPool {
	return e.pkg.header.values
}

// GetEntry selects the best entry of group groupIndex matching config. A nil
// config takes the first entry found.
func (t *ResourceTable) GetEntry(groupIndex, typeIndex, entryIndex int, config *ResTableConfig) (*Entry, error) {
	if groupIndex < 0 || groupIndex >= len(t.packageGroups) {
		return nil, badIndex("invalid package group index %d", groupIndex)
	}
	return t.getEntry(t.packageGroups[groupIndex], typeIndex, entryIndex, config)
}

func (t *ResourceTable) getEntry(g *packageGroup, typeIndex, entryIndex int, config *ResTableConfig) (*Entry, error) {
	if typeIndex < 0 || typeIndex >= maxTypes || entryIndex < 0 || entryIndex > 0xffff {
		return nil, badIndex("invalid type 0x%x or entry 0x%x", typeIndex, entryIndex)
	}

	typeList := g.types[typeIndex]
	if len(typeList) == 0 {
		return nil, badType("no type with index 0x%02x in package 0x%02x", typeIndex, g.id)
	}

	var filtered [][]*typeChunk
	if config != nil {
		t.filteredConfigLock.Lock()
		if t.isCurrentParams(config) {
			filtered = g.filteredConfigs[typeIndex]
		}
		t.filteredConfigLock.Unlock()
	}

	var (
		bestType    *typeChunk
		bestOffset  uint32
		bestConfig  *ResTableConfig
		bestPackage *resPackage
		specFlags   uint32
	)
	actualTypeIndex := typeIndex

	for i, rt := range typeList {
		realEntryIndex := entryIndex
		realTypeIndex := typeIndex
		currentTypeIsOverlay := false

		if rt.idmapEntries != nil {
			overlayEntry, ok := rt.idmapEntries.Lookup(uint16(entryIndex))
			if !ok {
				continue
			}
			realEntryIndex = int(overlayEntry)
			realTypeIndex = int(rt.idmapEntries.OverlayTypeID) - 1
			currentTypeIsOverlay = true
		}

		if realEntryIndex >= rt.entryCount {
			// Some legacy apps declare resources in the android package.
			warn("entry index is beyond type entry count",
				"resid", fmt.Sprintf("0x%08x", makeResID(g.id, typeIndex, entryIndex)),
				"entry", realEntryIndex, "count", rt.entryCount)
			continue
		}

		if rt.typeSpecFlags != nil {
			specFlags |= rt.typeSpecFlags[realEntryIndex]
		} else {
			specFlags = 0xffffffff
		}

		candidates := rt.configs
		if filtered != nil && i < len(filtered) {
			candidates = filtered[i]
		}

		for _, tc := range candidates {
			if config != nil && !tc.config.Match(config) {
				continue
			}

			offset, ok := tc.entryOffset(realEntryIndex)
			if !ok || offset == noEntry {
				continue
			}

			if bestType != nil && !tc.config.IsBetterThan(bestConfig, config) {
				if !currentTypeIsOverlay || tc.config.Compare(bestConfig) != 0 {
					continue
				}
			}

			bestType = tc
			bestOffset = offset
			bestConfig = &tc.config
			bestPackage = rt.pkg
			actualTypeIndex = realTypeIndex

			if config == nil {
				break
			}
		}
	}

	if bestType == nil {
		return nil, badIndex("no entry for resource 0x%08x", makeResID(g.id, typeIndex, entryIndex))
	}

	off := uint64(bestOffset) + uint64(bestType.entriesStart)
	if off > uint64(len(bestType.data))-entryHeaderSize {
		return nil, badType("entry at 0x%x is beyond type chunk data 0x%x", off, len(bestType.data))
	}
	if off&0x3 != 0 {
		return nil, badType("entry at 0x%x is not on an integer boundary", off)
	}

	te, err := parseTableEntry(bestType.data, int(off))
	if err != nil {
		return nil, err
	}

	return &Entry{
		TableEntry: te,
		Config:     *bestConfig,
		SpecFlags:  specFlags,
		pkg:        bestPackage,
		typeIndex:  actualTypeIndex,
	}, nil
}

// entryOffset returns the offset of entry idx relative to entriesStart.
func (tc *typeChunk) entryOffset(idx int) (uint32, bool) {
	indexOff := int(u16(tc.data, 2))

	if tc.flags&typeFlagSparse != 0 {
		// u16 entry index, u16 offset/4, sorted by index
		n := int(tc.entryCount)
		i := sort.Search(n, func(i int) bool {
			return int(u16(tc.data, indexOff+4*i)) >= idx
		})
		if i == n || int(u16(tc.data, indexOff+4*i)) != idx {
			return 0, false
		}
		return uint32(u16(tc.data, indexOff+4*i+2)) * 4, true
	}

	if uint32(idx) >= tc.entryCount {
		return 0, false
	}
	return u32(tc.data, indexOff+4*idx), true
}

func makeResID(packageID uint32, typeIndex, entryIndex int) uint32 {
	return packageID<<24 | uint32(typeIndex+1)<<16 | uint32(entryIndex)
}

// splitResID returns the group index, type index and entry index of resID.
func (t *ResourceTable) splitResID(resID uint32) (*packageGroup, int, int, error) {
	p := t.resourcePackageIndex(resID)
	if p < 0 {
		if resID>>24 == 0 {
			return nil, 0, 0, badIndex("no package identifier for resource 0x%08x", resID)
		}
		return nil, 0, 0, badIndex("no known package for resource 0x%08x", resID)
	}
	typeIndex := int((resID>>16)&0xff) - 1
	if typeIndex < 0 {
		return nil, 0, 0, badIndex("no type identifier for resource 0x%08x", resID)
	}
	return t.packageGroups[p], typeIndex, int(resID & 0xffff), nil
}

// blockIndex returns the string block index of header.
func (t *ResourceTable) blockIndex(h *tableHeader) int {
	for i, cur := range t.headers {
		if cur == h {
			return i
		}
	}
	return -1
}

// Resource is a resolved plain value.
type Resource struct {
	Value Value
	// Index of the string pool string values refer to, see StringBlock.
	StringBlock int
	SpecFlags   uint32
	Config      ResTableConfig
}

// GetResource returns the value of resID for the current parameters, with
// density overridden when non-zero. Bags fail with ErrBadValue.
func (t *ResourceTable) GetResource(resID uint32, mayBeBag bool, density uint16) (Resource, error) {
	g, typeIndex, entryIndex, err := t.splitResID(resID)
	if err != nil {
		warn("failed to get resource", "err", err)
		return Resource{}, err
	}

	desired := t.Parameters()
	if density > 0 {
		desired.Density = density
	}

	entry, err := t.getEntry(g, typeIndex, entryIndex, &desired)
	if err != nil {
		return Resource{}, err
	}

	simple, ok := entry.Body.(SimpleValue)
	if !ok {
		if !mayBeBag {
			warn("requested resource is complex", "resid", fmt.Sprintf("0x%08x", resID))
		}
		return Resource{}, errors.Wrapf(ErrBadValue, "resource 0x%08x is a bag", resID)
	}

	res := Resource{
		Value:       simple.Value,
		StringBlock: t.blockIndex(entry.pkg.header),
		SpecFlags:   entry.SpecFlags,
		Config:      entry.Config,
	}
	if err := g.dynamicRefTable.LookupResourceValue(&res.Value); err != nil {
		return Resource{}, errors.Wrapf(ErrBadValue, "failed to resolve referenced package: 0x%08x", res.Value.Data)
	}
	return res, nil
}

// ResolveReference follows reference chains of res, up to maxDepth hops
// (20 when maxDepth <= 0). It also returns the last reference followed. A
// reference to a bag is returned as is.
func (t *ResourceTable) ResolveReference(res Resource, maxDepth int) (Resource, uint32, error) {
	if maxDepth <= 0 {
		maxDepth = maxReferenceHops
	}

	var lastRef uint32
	for count := 0; res.StringBlock >= 0 && res.Value.DataType == AttrTypeReference && res.Value.Data != 0 && count < maxDepth; count++ {
		lastRef = res.Value.Data
		next, err := t.GetResource(res.Value.Data, true, 0)
		if errors.Is(err, ErrBadIndex) {
			return res, lastRef, err
		}
		if err != nil {
			return res, lastRef, nil
		}
		next.SpecFlags |= res.SpecFlags
		res = next
	}
	return res, lastRef, nil
}

// ResourceName is the symbolic name of a resource.
type ResourceName struct {
	Package string
	Type    string
	Entry   string
}

func (n ResourceName) String() string {
	if n.Package == "" {
		return n.Type + "/" + n.Entry
	}
	return n.Package + ":" + n.Type + "/" + n.Entry
}

// GetResourceName returns the name of resID, looked up in any configuration.
func (t *ResourceTable) GetResourceName(resID uint32) (ResourceName, error) {
	g, typeIndex, entryIndex, err := t.splitResID(resID)
	if err != nil {
		return ResourceName{}, err
	}

	entry, err := t.getEntry(g, typeIndex, entryIndex, nil)
	if err != nil {
		return ResourceName{}, err
	}

	name := ResourceName{Package: g.name}
	if name.Type, err = entry.TypeName(); err != nil {
		return ResourceName{}, errors.WithMessage(err, "type name")
	}
	if name.Entry, err = entry.KeyName(); err != nil {
		return ResourceName{}, errors.WithMessage(err, "key name")
	}
	return name, nil
}

// splitResourceName splits "[@][package:][type/]name".
func splitResourceName(name, defType, defPackage string) (pkg, typ, entry string) {
	name = strings.TrimPrefix(name, "@")
	pkg, typ = defPackage, defType

	if i := strings.IndexByte(name, ':'); i >= 0 {
		pkg = name[:i]
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '/'); i >= 0 {
		typ = name[:i]
		name = name[i+1:]
	}
	return pkg, typ, name
}

// IdentifierForName returns the id of the resource named "[package:][type/]entry",
// defType and defPackage filling the parts left out.
func (t *ResourceTable) IdentifierForName(name, defType, defPackage string) (uint32, error) {
	pkgName, typeName, entryName := splitResourceName(name, defType, defPackage)
	if typeName == "" || entryName == "" {
		return 0, errors.Wrapf(ErrBadValue, "incomplete resource name %q", name)
	}

	for _, g := range t.packageGroups {
		if pkgName != "" && g.name != pkgName {
			continue
		}
		for _, pkg := range g.packages {
			ti := pkg.typeStrings.IndexOfString(typeName)
			if ti < 0 {
				continue
			}
			typeIndex := ti + pkg.typeIDOffset
			if typeIndex >= maxTypes {
				continue
			}
			if id := t.findEntry(g, typeIndex, entryName); id != 0 {
				return id, nil
			}
		}
	}
	return 0, errors.Wrapf(ErrNameNotFound, "no resource named %q", name)
}

func (t *ResourceTable) findEntry(g *packageGroup, typeIndex int, name string) uint32 {
	for _, rt := range g.types[typeIndex] {
		ei := rt.pkg.keyStrings.IndexOfString(name)
		if ei < 0 {
			continue
		}
		for _, tc := range rt.configs {
			for idx := 0; idx < rt.entryCount; idx++ {
				offset, ok := tc.entryOffset(idx)
				if !ok || offset == noEntry {
					continue
				}
				off := int(tc.entriesStart) + int(offset)
				if !inBounds(tc.data, off, entryHeaderSize) {
					continue
				}
				if u32(tc.data, off+4) == uint32(ei) {
					return makeResID(g.id, typeIndex, idx)
				}
			}
		}
	}
	return 0
}

// ResourceValue is a value together with the string pool it refers to.
type ResourceValue struct {
	Value
	pool *StringPool
}

// String formats the value, resolving strings.
func (v *ResourceValue) String() (string, error) {
	return v.Value.Format(v.pool)
}

// ResourceEntry is a resource resolved for the current parameters, references
// followed.
type ResourceEntry struct {
	Key    string
	Flags  uint16
	Config ResTableConfig
	value  ResourceValue
}

func (e *ResourceEntry) GetValue() *ResourceValue {
	return &e.value
}

// GetResourceEntry resolves resID for the current parameters.
func (t *ResourceTable) GetResourceEntry(resID uint32) (*ResourceEntry, error) {
	g, typeIndex, entryIndex, err := t.splitResID(resID)
	if err != nil {
		return nil, err
	}

	params := t.Parameters()
	entry, err := t.getEntry(g, typeIndex, entryIndex, &params)
	if err != nil {
		return nil, err
	}

	key, err := entry.KeyName()
	if err != nil {
		return nil, err
	}

	res, err := t.GetResource(resID, true, 0)
	if err != nil {
		return nil, err
	}
	if res, _, err = t.ResolveReference(res, 0); err != nil {
		return nil, err
	}

	return &ResourceEntry{
		Key:    key,
		Flags:  entry.Flags,
		Config: res.Config,
		value: ResourceValue{
			Value: res.Value,
			pool:  t.StringBlock(res.StringBlock),
		},
	}, nil
}

// GetIconPng returns the path of the highest density png variant of resID,
// falling back to the value for the current parameters.
func (t *ResourceTable) GetIconPng(resID uint32) (*ResourceEntry, error) {
	g, typeIndex, entryIndex, err := t.splitResID(resID)
	if err != nil {
		return nil, err
	}

	var best *ResourceEntry
	for _, rt := range g.types[typeIndex] {
		if rt.idmapEntries != nil || entryIndex >= rt.entryCount {
			continue
		}
		for _, tc := range rt.configs {
			offset, ok := tc.entryOffset(entryIndex)
			if !ok || offset == noEntry {
				continue
			}
			te, err := parseTableEntry(tc.data, int(tc.entriesStart)+int(offset))
			if err != nil {
				continue
			}
			simple, ok := te.Body.(SimpleValue)
			if !ok || simple.Value.DataType != AttrTypeString {
				continue
			}
			path, err := rt.pkg.header.values.StringAt(simple.Value.Data)
			if err != nil || !strings.HasSuffix(path, ".png") {
				continue
			}
			if best != nil && tc.config.Density <= best.Config.Density {
				continue
			}

			key, _ := rt.pkg.keyStrings.StringAt(te.Key)
			best = &ResourceEntry{
				Key:    key,
				Flags:  te.Flags,
				Config: tc.config,
				value:  ResourceValue{Value: simple.Value, pool: rt.pkg.header.values},
			}
		}
	}

	if best == nil {
		return t.GetResourceEntry(resID)
	}
	return best, nil
}
