package apkres

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const androidNamespace = "http://schemas.android.com/apk/res/android"

type binxmlParseInfo struct {
	parser *XmlParser

	encoder ManifestEncoder
	res     *ResourceTable
}

// Deprecated: just calls ParseXML
func ParseManifest(r io.Reader, enc ManifestEncoder, resources *ResourceTable) error {
	return ParseXml(r, enc, resources)
}

// Parse the binary Xml format. The resources are optional and can be nil.
func ParseXml(r io.Reader, enc ManifestEncoder, resources *ResourceTable) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	if len(data) > 0 && data[0] == '<' {
		if bytes.HasPrefix(data, []byte("<?xml ")) || bytes.HasPrefix(data, []byte("<manif")) {
			return ErrPlainTextManifest
		}
	}

	var dynRef *DynamicRefTable
	if resources != nil {
		dynRef = resources.DynamicRefTableForPackage(AppPackageID)
	}

	tree := NewXmlTree(dynRef)
	if err := tree.SetTo(data, false); err != nil {
		return err
	}

	x := binxmlParseInfo{
		parser:  tree.NewParser(),
		encoder: enc,
		res:     resources,
	}

	defer x.encoder.Flush()

	for {
		var err error
		switch ev := x.parser.Next(); ev {
		case EventEndDocument:
			return x.encoder.Flush()
		case EventBadDocument:
			return errors.Wrapf(ErrBadType, "malformed node after line %d", x.parser.LineNumber())
		case EventStartTag:
			err = x.parseTagStart()
		case EventEndTag:
			err = x.encoder.EncodeToken(xml.EndElement{Name: xml.Name{
				Local: x.parser.ElementName(),
				Space: x.parser.ElementNamespace(),
			}})
		case EventText:
			err = x.encoder.EncodeToken(xml.CharData(x.parser.Text()))
		default:
			// Namespace declarations are carried by the attributes.
		}

		if err == ErrEndParsing {
			return x.encoder.Flush()
		} else if err != nil {
			return errors.WithMessagef(err, "line %d", x.parser.LineNumber())
		}
	}
}

func (x *binxmlParseInfo) parseTagStart() error {
	p := x.parser
	name := p.ElementName()

	tok := xml.StartElement{
		Name: xml.Name{Local: name, Space: p.ElementNamespace()},
	}

	for i, n := 0, p.AttributeCount(); i < n; i++ {
		// Android actually reads attributes purely by their IDs (see frameworks/base/core/res/res/values/attrs_manifest.xml
		// and its generated R class, that's where the indexes come from, namely the AndroidManifestActivity array)
		// but good guy android actually puts the strings into the string table on the same indexes anyway, most of the time.
		// This is for the samples that don't have it, mostly due to obfuscators/minimizers.
		// The ID can't change, because it would break current APKs.
		// Sample: 98d2e837b8f3ac41e74b86b2d532972955e5352197a893206ecd9650f678ae31
		//
		// The exception to this rule is the "package" attribute in the root manifest tag. That one MUST NOT use
		// resource ids, instead, it needs to use the string table. The meta attrs 'platformBuildVersion*'
		// are the same, except Android never parses them so it's just for manual analysis.
		// Sample: a3ee88cf1492237a1be846df824f9de30a6f779973fe3c41c7d7ed0be644ba37
		//
		// In general, android doesn't care about namespaces, but if a resource ID is used, it has to have been
		// in the android: namespace, so we fix that up.
		attrName := getAttributteName(p.AttributeNameResID(i))

		var attrNameFromStrings string
		if attrName == "" || name == "manifest" {
			attrNameFromStrings = p.AttributeName(i)
			if attrNameFromStrings == "" {
				if attrName == "" {
					return errors.Wrapf(ErrBadIndex, "error decoding name of attribute %d", i)
				}
			} else if attrName != "" && attrNameFromStrings != "package" && !strings.HasPrefix(attrNameFromStrings, "platformBuildVersion") {
				attrNameFromStrings = ""
			}
		}

		attrNameSpace := p.AttributeNamespace(i)
		if attrNameFromStrings != "" {
			attrName = attrNameFromStrings
		} else if attrNameSpace == "" {
			attrNameSpace = androidNamespace
		}

		resultAttr := xml.Attr{
			Name: xml.Name{Local: attrName, Space: attrNameSpace},
		}

		val, err := p.AttributeValue(i)
		if err != nil {
			// Unmapped dynamic reference, show what the file says.
			val = Value{DataType: p.AttributeDataType(i), Data: p.AttributeData(i)}
		}

		switch val.DataType {
		case AttrTypeString:
			var ok bool
			if resultAttr.Value, ok = p.AttributeStringValue(i); !ok {
				return errors.Wrapf(ErrBadIndex, "error decoding string value of attribute %s", attrName)
			}
		case AttrTypeReference, AttrTypeDynamicReference:
			isValidString := false
			if x.res != nil {
				var e *ResourceEntry
				if resultAttr.Name.Local == "icon" || resultAttr.Name.Local == "roundIcon" {
					e, err = x.res.GetIconPng(val.Data)
				} else {
					e, err = x.res.GetResourceEntry(val.Data)
				}

				if err == nil {
					resultAttr.Value, err = e.value.String()
					isValidString = err == nil
				}
			}

			if !isValidString && resultAttr.Value == "" {
				resultAttr.Value = fmt.Sprintf("@%x", val.Data)
			}
		default:
			resultAttr.Value, _ = val.Format(nil)
		}
		tok.Attr = append(tok.Attr, resultAttr)
	}

	return x.encoder.EncodeToken(tok)
}
