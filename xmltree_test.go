package apkres

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	attrLabel       = 0x01010001
	attrIcon        = 0x01010002
	attrVersionCode = 0x0101021b
)

func buildManifest() []byte {
	x := newTestXml(
		attrID{"label", attrLabel},
		attrID{"icon", attrIcon},
		attrID{"versionCode", attrVersionCode},
	)
	x.startNs("android", androidNamespace).
		start("", "manifest",
			stringAttr("", "package", "com.example.app"),
			typedAttr(androidNamespace, "versionCode", AttrTypeIntDec, 3)).
		start("", "application",
			typedAttr(androidNamespace, "label", AttrTypeReference, stringAppName),
			typedAttr(androidNamespace, "icon", AttrTypeReference, drawableIcon)).
		text("hi").
		end("", "application").
		end("", "manifest").
		endNs("android", androidNamespace)
	return x.bytes()
}

func TestXmlParserEvents(t *testing.T) {
	tree := NewXmlTree(nil)
	require.NoError(t, tree.SetTo(buildManifest(), false))
	assert.Equal(t, []uint32{attrLabel, attrIcon, attrVersionCode}, tree.ResourceIDs())

	p := tree.NewParser()
	assert.Equal(t, EventStartDocument, p.Event())
	assert.Equal(t, -1, p.LineNumber())

	require.Equal(t, EventStartNamespace, p.Next())
	assert.Equal(t, "android", p.NamespacePrefix())
	assert.Equal(t, androidNamespace, p.NamespaceUri())
	assert.Equal(t, 1, p.LineNumber())
	assert.Equal(t, int32(-1), p.CommentID())
	assert.Equal(t, -1, p.AttributeCount())

	require.Equal(t, EventStartTag, p.Next())
	assert.Equal(t, "manifest", p.ElementName())
	assert.Equal(t, "", p.ElementNamespace())
	assert.Equal(t, 1, p.Depth())
	require.Equal(t, 2, p.AttributeCount())

	assert.Equal(t, "package", p.AttributeName(0))
	assert.Equal(t, uint32(0), p.AttributeNameResID(0))
	assert.Equal(t, int32(-1), p.AttributeNamespaceID(0))
	s, ok := p.AttributeStringValue(0)
	assert.True(t, ok)
	assert.Equal(t, "com.example.app", s)

	assert.Equal(t, uint32(attrVersionCode), p.AttributeNameResID(1))
	assert.Equal(t, androidNamespace, p.AttributeNamespace(1))
	_, ok = p.AttributeStringValue(1)
	assert.False(t, ok)
	v, err := p.AttributeValue(1)
	require.NoError(t, err)
	assert.Equal(t, uint8(AttrTypeIntDec), v.DataType)
	assert.Equal(t, uint32(3), v.Data)

	assert.Equal(t, 1, p.IndexOfAttribute(androidNamespace, "versionCode"))
	assert.Equal(t, 0, p.IndexOfAttribute("", "package"))
	assert.Equal(t, -1, p.IndexOfAttribute("", "versionCode"))
	assert.Equal(t, 1, p.IndexOfAttributeResID(attrVersionCode))
	assert.Equal(t, -1, p.IndexOfID())
	assert.Equal(t, -1, p.IndexOfClass())
	assert.Equal(t, -1, p.IndexOfStyle())
	_, err = p.AttributeValue(5)
	assert.True(t, errors.Is(err, ErrBadIndex), "%v", err)

	require.Equal(t, EventStartTag, p.Next())
	assert.Equal(t, "application", p.ElementName())
	assert.Equal(t, 2, p.Depth())
	assert.Equal(t, "label", p.AttributeName(0))
	assert.Equal(t, uint8(AttrTypeReference), p.AttributeDataType(0))
	assert.Equal(t, uint32(stringAppName), p.AttributeData(0))

	require.Equal(t, EventText, p.Next())
	assert.Equal(t, "hi", p.Text())
	assert.NotEqual(t, int32(-1), p.TextID())
	tv, err := p.TextValue()
	require.NoError(t, err)
	assert.Equal(t, uint8(AttrTypeNull), tv.DataType)
	assert.Equal(t, "", p.ElementName())

	require.Equal(t, EventEndTag, p.Next())
	assert.Equal(t, "application", p.ElementName())
	assert.Equal(t, 2, p.Depth())

	require.Equal(t, EventEndTag, p.Next())
	assert.Equal(t, "manifest", p.ElementName())
	assert.Equal(t, 1, p.Depth())

	require.Equal(t, EventEndNamespace, p.Next())
	assert.Equal(t, 0, p.Depth())
	assert.Equal(t, "android", p.NamespacePrefix())

	assert.Equal(t, EventEndDocument, p.Next())
	assert.Equal(t, EventEndDocument, p.Next())
	assert.Equal(t, "", p.ElementName())

	p.Restart()
	assert.Equal(t, EventStartNamespace, p.Next())
}

func TestXmlTreeErrors(t *testing.T) {
	t.Run("no string pool", func(t *testing.T) {
		x := newTestXml().start("", "root")
		err := NewXmlTree(nil).SetTo(chunk(chunkAxmlFile, nil, x.nodes[0]), false)
		assert.True(t, errors.Is(err, ErrNoInit), "%v", err)
	})

	t.Run("no root", func(t *testing.T) {
		err := NewXmlTree(nil).SetTo(chunk(chunkAxmlFile, nil, buildStringPool([]string{"a"}, false)), false)
		assert.True(t, errors.Is(err, ErrBadType), "%v", err)
	})

	t.Run("truncated", func(t *testing.T) {
		data := buildManifest()
		tree := NewXmlTree(nil)
		err := tree.SetTo(data[:len(data)-4], false)
		assert.True(t, errors.Is(err, ErrBadType), "%v", err)
		assert.Equal(t, EventBadDocument, tree.NewParser().Next())
	})

	t.Run("attributes past node end", func(t *testing.T) {
		x := newTestXml().start("", "root", stringAttr("", "a", "b"))
		// one more attribute than the node holds
		x.nodes[0][chunkHeaderSize+8+12] = 2
		tree := NewXmlTree(nil)
		err := tree.SetTo(x.bytes(), false)
		assert.True(t, errors.Is(err, ErrBadType), "%v", err)
	})
}

// shrinkAttributes declares count attributes of zero size in the start tag
// node.
func shrinkAttributes(node []byte, count uint16) {
	ext := xmlNodeHeaderSize
	binary.LittleEndian.PutUint16(node[ext+10:], 0)
	binary.LittleEndian.PutUint16(node[ext+12:], count)
}

func TestXmlAttributeSizeTooSmall(t *testing.T) {
	x := newTestXml().start("", "root")
	shrinkAttributes(x.nodes[0], 1)
	err := NewXmlTree(nil).SetTo(x.bytes(), false)
	assert.True(t, errors.Is(err, ErrBadType), "%v", err)

	// not the root, so only the cursor sees it
	x = newTestXml().start("", "root").start("", "child")
	shrinkAttributes(x.nodes[1], 1)
	tree := NewXmlTree(nil)
	require.NoError(t, tree.SetTo(x.bytes(), false))

	p := tree.NewParser()
	require.Equal(t, EventStartTag, p.Next())
	assert.Equal(t, EventBadDocument, p.Next())
	assert.Equal(t, uint32(0), p.AttributeData(0))
	assert.Equal(t, int32(-1), p.AttributeNameID(0))

	// no attributes at all is fine whatever the declared size
	x = newTestXml().start("", "root")
	shrinkAttributes(x.nodes[0], 0)
	require.NoError(t, NewXmlTree(nil).SetTo(x.bytes(), false))
}

func TestXmlParserBadNode(t *testing.T) {
	x := newTestXml().start("", "root")
	// start tag chunk whose header is larger than the chunk
	x.nodes = append(x.nodes, []byte{0x02, 0x01, 0x10, 0x00, 0x0c, 0x00, 0x00, 0x00})

	tree := NewXmlTree(nil)
	require.NoError(t, tree.SetTo(x.bytes(), true))

	p := tree.NewParser()
	assert.Equal(t, EventStartTag, p.Next())
	assert.Equal(t, EventBadDocument, p.Next())
	assert.Equal(t, EventBadDocument, p.Next())
}

func TestXmlParserSkipsUnknownNodes(t *testing.T) {
	x := newTestXml().start("", "root")
	x.node(0x0150, []byte{0, 0, 0, 0})
	x.end("", "root")

	tree := NewXmlTree(nil)
	require.NoError(t, tree.SetTo(x.bytes(), false))

	p := tree.NewParser()
	assert.Equal(t, EventStartTag, p.Next())
	assert.Equal(t, EventEndTag, p.Next())
	assert.Equal(t, EventEndDocument, p.Next())
}

func TestXmlDynamicReferences(t *testing.T) {
	x := newTestXml().start("", "root",
		typedAttr("", "mapped", AttrTypeDynamicReference, 0x05010000),
		typedAttr("", "unmapped", AttrTypeDynamicReference, 0x09010000))

	dynRef := NewDynamicRefTable(AppPackageID, false)
	dynRef.AddMappingID(0x05, 0x03)

	tree := NewXmlTree(dynRef)
	require.NoError(t, tree.SetTo(x.bytes(), false))
	p := tree.NewParser()
	require.Equal(t, EventStartTag, p.Next())

	v, err := p.AttributeValue(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(AttrTypeReference), v.DataType)
	assert.Equal(t, uint32(0x03010000), v.Data)

	_, err = p.AttributeValue(1)
	assert.True(t, errors.Is(err, ErrBadType), "%v", err)
	assert.Equal(t, uint8(AttrTypeDynamicReference), p.AttributeDataType(1))
}
