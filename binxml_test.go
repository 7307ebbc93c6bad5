package apkres

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeManifest(t *testing.T, data []byte, table *ResourceTable) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, ParseXml(bytes.NewReader(data), xml.NewEncoder(&buf), table))
	return buf.String()
}

func TestParseXmlResolvesResources(t *testing.T) {
	table := loadAppTable(t)
	table.SetParameters(requestConfig(t, "de"))

	out := encodeManifest(t, buildManifest(), table)
	assert.Contains(t, out, `package="com.example.app"`)
	assert.Contains(t, out, `versionCode="3"`)
	assert.Contains(t, out, `label="Beispiel"`)
	assert.Contains(t, out, `icon="res/drawable-xhdpi/icon.png"`)
	assert.Contains(t, out, ">hi</application>")
	assert.True(t, strings.HasSuffix(out, "</manifest>"), out)
}

func TestParseXmlWithoutResources(t *testing.T) {
	out := encodeManifest(t, buildManifest(), nil)
	assert.Contains(t, out, `label="@7f020000"`)
	assert.Contains(t, out, `icon="@7f040000"`)
	assert.Contains(t, out, `package="com.example.app"`)
}

func TestParseXmlMissingResource(t *testing.T) {
	x := newTestXml(attrID{"label", attrLabel}).
		start("", "application", typedAttr(androidNamespace, "label", AttrTypeReference, 0x7f020063)).
		end("", "application")

	out := encodeManifest(t, x.bytes(), loadAppTable(t))
	assert.Contains(t, out, `label="@7f020063"`)
}

func TestParseXmlAttributeNameFromResourceID(t *testing.T) {
	// obfuscated string pool, the name only survives in the resource map
	x := newTestXml(attrID{"x", attrLabel}).
		start("", "application", typedAttr("", "x", AttrTypeIntBool, 0xffffffff)).
		end("", "application")

	out := encodeManifest(t, x.bytes(), nil)
	assert.Contains(t, out, `label="true"`)
	assert.NotContains(t, out, ` x="`)
}

type stoppingEncoder struct {
	tokens int
}

func (e *stoppingEncoder) EncodeToken(t xml.Token) error {
	e.tokens++
	if _, ok := t.(xml.StartElement); ok {
		return ErrEndParsing
	}
	return nil
}

func (e *stoppingEncoder) Flush() error { return nil }

func TestParseXmlEndParsing(t *testing.T) {
	enc := &stoppingEncoder{}
	require.NoError(t, ParseXml(bytes.NewReader(buildManifest()), enc, nil))
	assert.Equal(t, 1, enc.tokens)
}

func TestParseXmlBadDocument(t *testing.T) {
	x := newTestXml().start("", "root")
	x.nodes = append(x.nodes, []byte{0x02, 0x01, 0x10, 0x00, 0x0c, 0x00, 0x00, 0x00})

	err := ParseXml(bytes.NewReader(x.bytes()), xml.NewEncoder(io.Discard), nil)
	assert.True(t, errors.Is(err, ErrBadType), "%v", err)

	x = newTestXml().start("", "root").start("", "child")
	shrinkAttributes(x.nodes[1], 1)
	err = ParseXml(bytes.NewReader(x.bytes()), xml.NewEncoder(io.Discard), nil)
	assert.True(t, errors.Is(err, ErrBadType), "%v", err)

	err = ParseXml(bytes.NewReader([]byte{0x03, 0x00}), xml.NewEncoder(io.Discard), nil)
	assert.True(t, errors.Is(err, ErrBadType), "%v", err)
}

func TestPlainManifest(t *testing.T) {
	plainManifests := []string{
		`<?xml version="1.0" encoding="utf-8" standalone="no"?>`,
		`<manifest xmlns:android="http://schemas.android.com/apk/res/android" package="com.example">`,
	}

	enc := xml.NewEncoder(io.Discard)
	for _, man := range plainManifests {
		err := ParseXml(strings.NewReader(man), enc, nil)
		assert.Equal(t, ErrPlainTextManifest, err, man)
	}
}
