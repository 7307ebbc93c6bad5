package apkres

import (
	"encoding/binary"
	"unicode/utf16"
)

// Helpers producing the binary chunks the decoders read.

type byteWriter struct {
	buf []byte
}

func (w *byteWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *byteWriter) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *byteWriter) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *byteWriter) raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *byteWriter) pad4() {
	for len(w.buf)%4 != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *byteWriter) value(v Value) {
	w.u16(valueSize)
	w.u8(0)
	w.u8(v.DataType)
	w.u32(v.Data)
}

// utf16Name writes name as a zero padded array of n UTF-16 units.
func (w *byteWriter) utf16Name(name string, n int) {
	units := utf16.Encode([]rune(name))
	for i := 0; i < n; i++ {
		if i < len(units) {
			w.u16(units[i])
		} else {
			w.u16(0)
		}
	}
}

// chunk prepends the common chunk header to header, the rest of the chunk
// header, and body.
func chunk(typ uint16, header, body []byte) []byte {
	w := &byteWriter{}
	w.u16(typ)
	w.u16(uint16(chunkHeaderSize + len(header)))
	w.u32(uint32(chunkHeaderSize + len(header) + len(body)))
	w.raw(header)
	w.raw(body)
	return w.buf
}

func writeLen8(w *byteWriter, n int) {
	if n > 0x7f {
		w.u8(uint8(0x80 | n>>8))
	}
	w.u8(uint8(n))
}

func writeLen16(w *byteWriter, n int) {
	if n > 0x7fff {
		w.u16(uint16(0x8000 | n>>16))
	}
	w.u16(uint16(n))
}

func buildStringPool(strs []string, utf8 bool) []byte {
	return buildPool(strs, nil, utf8, false)
}

// buildPool builds a string pool chunk. styles[i] are the spans of string i.
func buildPool(strs []string, styles [][]StyleSpan, utf8, sorted bool) []byte {
	var data byteWriter
	offsets := make([]uint32, len(strs))
	for i, s := range strs {
		offsets[i] = uint32(len(data.buf))
		units := utf16.Encode([]rune(s))
		if utf8 {
			writeLen8(&data, len(units))
			writeLen8(&data, len(s))
			data.raw([]byte(s))
			data.u8(0)
		} else {
			writeLen16(&data, len(units))
			for _, u := range units {
				data.u16(u)
			}
			data.u16(0)
		}
	}
	data.pad4()

	var styleData byteWriter
	styleOffsets := make([]uint32, len(styles))
	for i, spans := range styles {
		styleOffsets[i] = uint32(len(styleData.buf))
		for _, s := range spans {
			styleData.u32(s.Name)
			styleData.u32(s.FirstChar)
			styleData.u32(s.LastChar)
		}
		styleData.u32(spanEnd)
	}
	if len(styles) != 0 {
		styleData.u32(spanEnd)
		styleData.u32(spanEnd)
	}

	var flags uint32
	if utf8 {
		flags |= stringFlagUtf8
	}
	if sorted {
		flags |= stringFlagSorted
	}

	stringsStart := uint32(stringPoolHeaderSize + 4*len(strs) + 4*len(styles))
	var stylesStart uint32
	if len(styles) != 0 {
		stylesStart = stringsStart + uint32(len(data.buf))
	}

	var h byteWriter
	h.u32(uint32(len(strs)))
	h.u32(uint32(len(styles)))
	h.u32(flags)
	h.u32(stringsStart)
	h.u32(stylesStart)

	var body byteWriter
	for _, off := range offsets {
		body.u32(off)
	}
	for _, off := range styleOffsets {
		body.u32(off)
	}
	body.raw(data.buf)
	body.raw(styleData.buf)
	return chunk(chunkStringTable, h.buf, body.buf)
}

type testEntry struct {
	key    uint32
	flags  uint16
	value  Value
	bag    bool
	parent uint32
	items  []MapItem
}

func simpleEntry(key uint32, dataType uint8, data uint32) *testEntry {
	return &testEntry{key: key, value: Value{Size: valueSize, DataType: dataType, Data: data}}
}

func bagEntry(key, parent uint32, items ...MapItem) *testEntry {
	return &testEntry{key: key, bag: true, parent: parent, items: items}
}

func mapItem(name uint32, dataType uint8, data uint32) MapItem {
	return MapItem{Name: name, Value: Value{Size: valueSize, DataType: dataType, Data: data}}
}

func (e *testEntry) encode() []byte {
	var w byteWriter
	if e.bag {
		w.u16(mapEntryHeaderSize)
		w.u16(e.flags | EntryFlagComplex)
		w.u32(e.key)
		w.u32(e.parent)
		w.u32(uint32(len(e.items)))
		for _, it := range e.items {
			w.u32(it.Name)
			w.value(it.Value)
		}
	} else {
		w.u16(entryHeaderSize)
		w.u16(e.flags)
		w.u32(e.key)
		w.value(e.value)
	}
	return w.buf
}

func buildTypeSpec(id uint8, flags []uint32) []byte {
	var h byteWriter
	h.u8(id)
	h.u8(0)
	h.u16(0)
	h.u32(uint32(len(flags)))

	var body byteWriter
	for _, f := range flags {
		body.u32(f)
	}
	return chunk(chunkTableTypeSpec, h.buf, body.buf)
}

// buildType builds a type chunk; nil entries are absent.
func buildType(id uint8, config ResTableConfig, entries []*testEntry, sparse bool) []byte {
	var index, data byteWriter
	count := 0
	for i, e := range entries {
		if e == nil {
			if !sparse {
				index.u32(noEntry)
				count++
			}
			continue
		}
		if sparse {
			index.u16(uint16(i))
			index.u16(uint16(len(data.buf) / 4))
		} else {
			index.u32(uint32(len(data.buf)))
		}
		data.raw(e.encode())
		count++
	}

	var flags uint8
	if sparse {
		flags = typeFlagSparse
	}

	var h byteWriter
	h.u8(id)
	h.u8(flags)
	h.u16(0)
	h.u32(uint32(count))
	h.u32(uint32(chunkHeaderSize + 12 + resTableConfigSize + len(index.buf)))
	h.raw(config.Bytes())

	return chunk(chunkTableType, h.buf, append(index.buf, data.buf...))
}

type libraryEntry struct {
	id   uint32
	name string
}

func buildLibrary(entries ...libraryEntry) []byte {
	var h byteWriter
	h.u32(uint32(len(entries)))

	var body byteWriter
	for _, e := range entries {
		body.u32(e.id)
		body.utf16Name(e.name, packageNameSize)
	}
	return chunk(chunkTableLibrary, h.buf, body.buf)
}

type testPackage struct {
	id     uint32
	name   string
	types  []string
	keys   []string
	chunks [][]byte
}

func newTestPackage(id uint32, name string, types ...string) *testPackage {
	return &testPackage{id: id, name: name, types: types}
}

// key returns the key string index of name, adding it if needed.
func (p *testPackage) key(name string) uint32 {
	for i, k := range p.keys {
		if k == name {
			return uint32(i)
		}
	}
	p.keys = append(p.keys, name)
	return uint32(len(p.keys) - 1)
}

func (p *testPackage) add(chunks ...[]byte) *testPackage {
	p.chunks = append(p.chunks, chunks...)
	return p
}

func (p *testPackage) bytes() []byte {
	typePool := buildStringPool(p.types, false)
	keyPool := buildStringPool(p.keys, true)

	var h byteWriter
	h.u32(p.id)
	h.utf16Name(p.name, packageNameSize)
	h.u32(tablePackageHeaderSize)
	h.u32(uint32(len(p.types)))
	h.u32(uint32(tablePackageHeaderSize + len(typePool)))
	h.u32(uint32(len(p.keys)))
	h.u32(0)

	var body byteWriter
	body.raw(typePool)
	body.raw(keyPool)
	for _, c := range p.chunks {
		body.raw(c)
	}
	return chunk(chunkTablePackage, h.buf, body.buf)
}

// buildTable builds a resources.arsc with values as the global string pool.
func buildTable(values []string, packages ...[]byte) []byte {
	var h byteWriter
	h.u32(uint32(len(packages)))

	var body byteWriter
	body.raw(buildStringPool(values, false))
	for _, p := range packages {
		body.raw(p)
	}
	return chunk(chunkTable, h.buf, body.buf)
}

type idmapType struct {
	target, overlay uint16
	entryIDOffset   uint16
	entries         []uint32
}

func buildIdmap(targetPackage uint16, overlayPath string, types ...idmapType) []byte {
	var w byteWriter
	w.u32(IdmapMagic)
	w.u32(IdmapVersion)
	w.u16(targetPackage)
	w.u16(uint16(len(types)))
	path := make([]byte, idmapOverlayPathSize)
	copy(path, overlayPath)
	w.raw(path)

	for _, t := range types {
		w.u16(t.target)
		w.u16(t.overlay)
		w.u16(uint16(len(t.entries)))
		w.u16(t.entryIDOffset)
		for _, e := range t.entries {
			w.u32(e)
		}
	}
	return w.buf
}

type xmlAttr struct {
	ns, name string
	// raw string value, "" for none
	raw   string
	value Value
}

func stringAttr(ns, name, val string) xmlAttr {
	return xmlAttr{ns: ns, name: name, raw: val, value: Value{DataType: AttrTypeString}}
}

func typedAttr(ns, name string, dataType uint8, data uint32) xmlAttr {
	return xmlAttr{ns: ns, name: name, value: Value{DataType: dataType, Data: data}}
}

type attrID struct {
	name string
	id   uint32
}

type testXml struct {
	strs   []string
	resIDs []uint32
	nodes  [][]byte
	line   uint32
}

// newTestXml returns a document builder whose first strings are the
// attribute names of ids, mapped to their resource ids.
func newTestXml(ids ...attrID) *testXml {
	x := &testXml{}
	for _, a := range ids {
		x.strs = append(x.strs, a.name)
		x.resIDs = append(x.resIDs, a.id)
	}
	return x
}

func (x *testXml) str(s string) uint32 {
	if s == "" {
		return noEntry
	}
	for i, cur := range x.strs {
		if cur == s {
			return uint32(i)
		}
	}
	x.strs = append(x.strs, s)
	return uint32(len(x.strs) - 1)
}

func (x *testXml) node(typ uint16, ext []byte) *testXml {
	x.line++
	var h byteWriter
	h.u32(x.line)
	h.u32(noEntry)
	x.nodes = append(x.nodes, chunk(typ, h.buf, ext))
	return x
}

func (x *testXml) namespace(typ uint16, prefix, uri string) *testXml {
	var w byteWriter
	w.u32(x.str(prefix))
	w.u32(x.str(uri))
	return x.node(typ, w.buf)
}

func (x *testXml) startNs(prefix, uri string) *testXml {
	return x.namespace(chunkXmlNsStart, prefix, uri)
}

func (x *testXml) endNs(prefix, uri string) *testXml {
	return x.namespace(chunkXmlNsEnd, prefix, uri)
}

func (x *testXml) start(ns, name string, attrs ...xmlAttr) *testXml {
	var w byteWriter
	w.u32(x.str(ns))
	w.u32(x.str(name))
	w.u16(xmlAttrExtSize)
	w.u16(xmlAttributeSize)
	w.u16(uint16(len(attrs)))
	w.u16(0)
	w.u16(0)
	w.u16(0)
	for _, a := range attrs {
		if a.value.DataType == AttrTypeString {
			a.value.Data = x.str(a.raw)
		}
		w.u32(x.str(a.ns))
		w.u32(x.str(a.name))
		w.u32(x.str(a.raw))
		w.value(a.value)
	}
	return x.node(chunkXmlTagStart, w.buf)
}

func (x *testXml) end(ns, name string) *testXml {
	var w byteWriter
	w.u32(x.str(ns))
	w.u32(x.str(name))
	return x.node(chunkXmlTagEnd, w.buf)
}

func (x *testXml) text(s string) *testXml {
	var w byteWriter
	w.u32(x.str(s))
	w.value(Value{DataType: AttrTypeNull})
	return x.node(chunkXmlText, w.buf)
}

func (x *testXml) bytes() []byte {
	var body byteWriter
	body.raw(buildStringPool(x.strs, false))
	if len(x.resIDs) != 0 {
		var ids byteWriter
		for _, id := range x.resIDs {
			ids.u32(id)
		}
		body.raw(chunk(chunkResourceIds, nil, ids.buf))
	}
	for _, n := range x.nodes {
		body.raw(n)
	}
	return chunk(chunkAxmlFile, nil, body.buf)
}
