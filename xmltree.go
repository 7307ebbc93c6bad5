package apkres

import (
	"github.com/pkg/errors"
)

// EventCode is what an XmlParser reports on each step.
type EventCode int

const (
	EventBadDocument    EventCode = -1
	EventStartDocument  EventCode = 0
	EventEndDocument    EventCode = 1
	EventStartNamespace EventCode = chunkXmlNsStart
	EventEndNamespace   EventCode = chunkXmlNsEnd
	EventStartTag       EventCode = chunkXmlTagStart
	EventEndTag         EventCode = chunkXmlTagEnd
	EventText           EventCode = chunkXmlText

	firstChunkCode = chunkXmlFirst
)

const (
	xmlTreeHeaderSize = chunkHeaderSize
	// header, lineNumber, comment
	xmlNodeHeaderSize = chunkHeaderSize + 2*4

	xmlNamespaceExtSize  = 2 * 4
	xmlAttrExtSize       = 2*4 + 6*2
	xmlEndElementExtSize = 2 * 4
	xmlCdataExtSize      = 4 + valueSize

	// ns, name, rawValue, typedValue
	xmlAttributeSize = 3*4 + valueSize
)

// XmlTree is a parsed compiled XML document. The tree only validates the
// structure up to the root node, further nodes are validated as a parser
// reaches them.
type XmlTree struct {
	data    []byte
	strings *StringPool
	resIDs  []uint32

	rootOff  int
	rootExt  int
	rootCode EventCode

	dynamicRefTable *DynamicRefTable
}

// NewXmlTree returns an empty tree. Attribute values are passed through
// dynamicRefTable, which may be nil.
func NewXmlTree(dynamicRefTable *DynamicRefTable) *XmlTree {
	return &XmlTree{
		dynamicRefTable: dynamicRefTable,
		rootOff:         -1,
	}
}

// SetTo parses the document in data. On error the tree is left empty.
func (t *XmlTree) SetTo(data []byte, copyData bool) error {
	t.data = nil
	t.strings = nil
	t.resIDs = nil
	t.rootOff = -1

	hdr, err := validateChunk(data, 0, xmlTreeHeaderSize, "XML")
	if err != nil {
		return err
	}

	if copyData {
		data = append([]byte(nil), data[:hdr.Size]...)
	} else {
		data = data[:hdr.Size]
	}

	var strings *StringPool
	var resIDs []uint32
	rootOff := -1

	for off := int(hdr.HeaderSize); off+chunkHeaderSize <= len(data); {
		chunk, err := validateChunk(data, off, chunkHeaderSize, "XML")
		if err != nil {
			return err
		}

		switch {
		case chunk.Type == chunkStringTable:
			if strings, err = NewStringPool(data[off:off+int(chunk.Size)], false); err != nil {
				return err
			}
		case chunk.Type == chunkResourceIds:
			count := (int(chunk.Size) - int(chunk.HeaderSize)) / 4
			resIDs = make([]uint32, count)
			for i := range resIDs {
				resIDs[i] = u32(data, off+int(chunk.HeaderSize)+4*i)
			}
		case chunk.Type >= chunkXmlFirst && chunk.Type <= chunkXmlLast:
			rootOff = off
		default:
			warn("skipping unknown XML chunk", "type", chunk.Type, "offset", off)
		}
		if rootOff >= 0 {
			break
		}
		off += int(chunk.Size)
	}

	if rootOff < 0 {
		return badType("bad XML block: no root element node found")
	}
	if strings == nil {
		return errors.Wrap(ErrNoInit, "bad XML block: no string pool before root node")
	}

	t.data = data
	t.strings = strings
	t.resIDs = resIDs

	code, ext, err := t.readNode(rootOff)
	if err != nil {
		t.data = nil
		t.strings = nil
		t.resIDs = nil
		return err
	}
	t.rootOff, t.rootExt, t.rootCode = rootOff, ext, code
	return nil
}

// Strings returns the document's string pool.
func (t *XmlTree) Strings() *StringPool {
	return t.strings
}

// ResourceIDs returns the attribute name resource map.
func (t *XmlTree) ResourceIDs() []uint32 {
	return t.resIDs
}

// NewParser returns a cursor positioned before the first event.
func (t *XmlTree) NewParser() *XmlParser {
	p := &XmlParser{tree: t}
	p.Restart()
	return p
}

// validateNode checks the chunk header of the node at off and, for start
// tags, that the attributes fit into the node.
func (t *XmlTree) validateNode(off int) error {
	hdr, err := validateChunk(t.data, off, xmlNodeHeaderSize, "XML node")
	if err != nil {
		return err
	}
	if hdr.Type != chunkXmlTagStart {
		return nil
	}

	headerSize := uint32(hdr.HeaderSize)
	if hdr.Size < headerSize+xmlAttrExtSize {
		return badType("bad XML start block: node header size 0x%x, size 0x%x", headerSize, hdr.Size)
	}
	ext := off + int(headerSize)
	attrStart := uint32(u16(t.data, ext+8))
	attrCount := uint32(u16(t.data, ext+12))
	if attrCount > 0 && u16(t.data, ext+10) < xmlAttributeSize {
		return badType("bad XML block: attribute size 0x%x is smaller than 0x%x", u16(t.data, ext+10), xmlAttributeSize)
	}
	attrSize := uint32(u16(t.data, ext+10)) * attrCount
	if attrStart+attrSize > hdr.Size-headerSize {
		return badType("bad XML block: node attributes use 0x%x bytes, only have 0x%x", attrStart+attrSize, hdr.Size-headerSize)
	}
	return nil
}

// readNode validates the node at off and returns its event code and the
// offset of its extension. Unknown node types report EventStartDocument so
// the caller can skip them.
func (t *XmlTree) readNode(off int) (EventCode, int, error) {
	if err := t.validateNode(off); err != nil {
		return EventBadDocument, 0, err
	}

	hdr := readChunkHeader(t.data, off)
	var minExtSize uint32
	switch hdr.Type {
	case chunkXmlNsStart, chunkXmlNsEnd:
		minExtSize = xmlNamespaceExtSize
	case chunkXmlTagStart:
		minExtSize = xmlAttrExtSize
	case chunkXmlTagEnd:
		minExtSize = xmlEndElementExtSize
	case chunkXmlText:
		minExtSize = xmlCdataExtSize
	default:
		warn("unknown XML block", "type", hdr.Type, "offset", off)
		return EventStartDocument, 0, nil
	}

	if hdr.Size-uint32(hdr.HeaderSize) < minExtSize {
		return EventBadDocument, 0, badType("bad XML block: header type 0x%x in node at 0x%x has size %d, need %d",
			hdr.Type, off, hdr.Size-uint32(hdr.HeaderSize), minExtSize)
	}
	return EventCode(hdr.Type), off + int(hdr.HeaderSize), nil
}

// XmlParser is a forward cursor over an XmlTree. It is not safe for
// concurrent use, create one parser per goroutine.
type XmlParser struct {
	tree *XmlTree

	event   EventCode
	nodeOff int
	extOff  int
	depth   int
}

// Restart moves the cursor back before the first event.
func (p *XmlParser) Restart() {
	p.event = EventStartDocument
	p.nodeOff = -1
	p.extOff = -1
	p.depth = 0
	if p.tree.rootOff < 0 {
		p.event = EventBadDocument
	}
}

// Event returns the current event.
func (p *XmlParser) Event() EventCode {
	return p.event
}

// Next advances the cursor. EventEndDocument and EventBadDocument are
// terminal.
func (p *XmlParser) Next() EventCode {
	if p.event == EventEndTag {
		p.depth--
	}

	switch {
	case p.event == EventStartDocument:
		p.nodeOff = p.tree.rootOff
		p.extOff = p.tree.rootExt
		p.event = p.tree.rootCode
		if p.event == EventStartDocument {
			// root chunk of an unknown node type
			p.event = p.nextNode()
		}
	case p.event >= firstChunkCode:
		p.event = p.nextNode()
	default:
		return p.event
	}

	if p.event == EventStartTag {
		p.depth++
	}
	return p.event
}

func (p *XmlParser) nextNode() EventCode {
	data := p.tree.data
	for {
		next := p.nodeOff + int(readChunkHeader(data, p.nodeOff).Size)
		if next >= len(data) {
			p.nodeOff = -1
			return EventEndDocument
		}

		code, ext, err := p.tree.readNode(next)
		if err != nil {
			warn("bad XML document", "offset", next, "err", err)
			p.nodeOff = -1
			return EventBadDocument
		}
		p.nodeOff = next
		p.extOff = ext
		if code == EventStartDocument {
			continue
		}
		return code
	}
}

// Depth is the element nesting level, 1 inside the root element.
func (p *XmlParser) Depth() int {
	return p.depth
}

func (p *XmlParser) onNode() bool {
	return p.event >= firstChunkCode && p.nodeOff >= 0
}

// LineNumber returns the source line of the current node, -1 if none.
func (p *XmlParser) LineNumber() int {
	if !p.onNode() {
		return -1
	}
	return int(u32(p.tree.data, p.nodeOff+chunkHeaderSize))
}

func (p *XmlParser) str(idx uint32) (string, bool) {
	if idx == noEntry {
		return "", false
	}
	s, err := p.tree.strings.StringAt(idx)
	if err != nil {
		return "", false
	}
	return s, true
}

func (p *XmlParser) extU32(off int) uint32 {
	return u32(p.tree.data, p.extOff+off)
}

// CommentID returns the string index of the node's comment, or -1.
func (p *XmlParser) CommentID() int32 {
	if !p.onNode() {
		return -1
	}
	return int32(u32(p.tree.data, p.nodeOff+chunkHeaderSize+4))
}

func (p *XmlParser) Comment() string {
	if !p.onNode() {
		return ""
	}
	s, _ := p.str(u32(p.tree.data, p.nodeOff+chunkHeaderSize+4))
	return s
}

// TextID returns the string index of the current text node, or -1.
func (p *XmlParser) TextID() int32 {
	if p.event != EventText {
		return -1
	}
	return int32(p.extU32(0))
}

// Text returns the character data of a text node.
func (p *XmlParser) Text() string {
	if p.event != EventText {
		return ""
	}
	s, _ := p.str(p.extU32(0))
	return s
}

// TextValue returns the typed value of a text node.
func (p *XmlParser) TextValue() (Value, error) {
	if p.event != EventText {
		return Value{}, badType("not a text node")
	}
	return parseValue(p.tree.data, p.extOff+4), nil
}

func (p *XmlParser) NamespacePrefix() string {
	if p.event != EventStartNamespace && p.event != EventEndNamespace {
		return ""
	}
	s, _ := p.str(p.extU32(0))
	return s
}

func (p *XmlParser) NamespaceUri() string {
	if p.event != EventStartNamespace && p.event != EventEndNamespace {
		return ""
	}
	s, _ := p.str(p.extU32(4))
	return s
}

func (p *XmlParser) onElement() bool {
	return p.event == EventStartTag || p.event == EventEndTag
}

// ElementNamespace returns the namespace URI of the current element.
func (p *XmlParser) ElementNamespace() string {
	if !p.onElement() {
		return ""
	}
	s, _ := p.str(p.extU32(0))
	return s
}

// ElementName returns the local name of the current element.
func (p *XmlParser) ElementName() string {
	if !p.onElement() {
		return ""
	}
	s, _ := p.str(p.extU32(4))
	return s
}

// AttributeCount returns the number of attributes of a start tag.
func (p *XmlParser) AttributeCount() int {
	if p.event != EventStartTag {
		return -1
	}
	return int(u16(p.tree.data, p.extOff+12))
}

// attrOff returns the offset of attribute idx, or -1.
func (p *XmlParser) attrOff(idx int) int {
	if p.event != EventStartTag || idx < 0 || idx >= p.AttributeCount() {
		return -1
	}
	start := int(u16(p.tree.data, p.extOff+8))
	size := int(u16(p.tree.data, p.extOff+10))
	off := p.extOff + start + size*idx
	if !inBounds(p.tree.data, off, xmlAttributeSize) {
		return -1
	}
	return off
}

func (p *XmlParser) AttributeNamespaceID(idx int) int32 {
	off := p.attrOff(idx)
	if off < 0 {
		return -1
	}
	return int32(u32(p.tree.data, off))
}

func (p *XmlParser) AttributeNamespace(idx int) string {
	off := p.attrOff(idx)
	if off < 0 {
		return ""
	}
	s, _ := p.str(u32(p.tree.data, off))
	return s
}

func (p *XmlParser) AttributeNameID(idx int) int32 {
	off := p.attrOff(idx)
	if off < 0 {
		return -1
	}
	return int32(u32(p.tree.data, off+4))
}

func (p *XmlParser) AttributeName(idx int) string {
	off := p.attrOff(idx)
	if off < 0 {
		return ""
	}
	s, _ := p.str(u32(p.tree.data, off+4))
	return s
}

// AttributeNameResID returns the resource id of the attribute name from the
// resource map, 0 when the name has none.
func (p *XmlParser) AttributeNameResID(idx int) uint32 {
	id := p.AttributeNameID(idx)
	if id < 0 || int(id) >= len(p.tree.resIDs) {
		return 0
	}
	return p.tree.resIDs[id]
}

// AttributeStringValue returns the raw string value, if the attribute has one.
func (p *XmlParser) AttributeStringValue(idx int) (string, bool) {
	off := p.attrOff(idx)
	if off < 0 {
		return "", false
	}
	return p.str(u32(p.tree.data, off+8))
}

func (p *XmlParser) AttributeDataType(idx int) uint8 {
	off := p.attrOff(idx)
	if off < 0 {
		return AttrTypeNull
	}
	return u8(p.tree.data, off+12+3)
}

func (p *XmlParser) AttributeData(idx int) uint32 {
	off := p.attrOff(idx)
	if off < 0 {
		return 0
	}
	return u32(p.tree.data, off+12+4)
}

// AttributeValue returns the typed value of the attribute with dynamic
// references resolved.
func (p *XmlParser) AttributeValue(idx int) (Value, error) {
	off := p.attrOff(idx)
	if off < 0 {
		return Value{}, badIndex("attribute %d not present", idx)
	}
	v := parseValue(p.tree.data, off+12)
	if p.tree.dynamicRefTable != nil {
		if err := p.tree.dynamicRefTable.LookupResourceValue(&v); err != nil {
			return Value{}, badType("attribute %d: %s", idx, err.Error())
		}
	}
	return v, nil
}

// IndexOfAttribute returns the index of the attribute with the given
// namespace and name, or -1. An empty ns matches attributes without one.
func (p *XmlParser) IndexOfAttribute(ns, name string) int {
	for i, n := 0, p.AttributeCount(); i < n; i++ {
		if p.AttributeName(i) != name {
			continue
		}
		if p.AttributeNamespace(i) == ns {
			return i
		}
	}
	return -1
}

// IndexOfAttributeResID returns the index of the attribute whose name maps
// to resID, or -1.
func (p *XmlParser) IndexOfAttributeResID(resID uint32) int {
	for i, n := 0, p.AttributeCount(); i < n; i++ {
		if p.AttributeNameResID(i) == resID {
			return i
		}
	}
	return -1
}

// The special attribute indexes are stored 1-based, 0 meaning none.
func (p *XmlParser) specialIndex(off int) int {
	if p.event != EventStartTag {
		return -1
	}
	return int(u16(p.tree.data, p.extOff+off)) - 1
}

func (p *XmlParser) IndexOfID() int    { return p.specialIndex(14) }
func (p *XmlParser) IndexOfClass() int { return p.specialIndex(16) }
func (p *XmlParser) IndexOfStyle() int { return p.specialIndex(18) }
