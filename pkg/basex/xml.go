package basex

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// RestNamespace is the namespace of REST listings and query envelopes.
const RestNamespace = "http://basex.org/rest"

// resultsTag is the synthetic root wrapping query result fragments.
const resultsTag = "results"

var errNoRoot = errors.New("document has no root element")

func stripNewlines(b []byte) []byte {
	return bytes.ReplaceAll(b, []byte("\n"), nil)
}

// parseXML parses a response body after removing newlines from it.
func parseXML(b []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(stripNewlines(b)); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, errNoRoot
	}
	return doc, nil
}

func isRestElement(e *etree.Element, tag string) bool {
	return e != nil && e.Tag == tag && e.NamespaceURI() == RestNamespace
}

// serialize renders doc for storage.
func serialize(doc *etree.Document) ([]byte, error) {
	if doc == nil || doc.Root() == nil {
		return nil, errNoRoot
	}
	return doc.WriteToBytes()
}

// queryEnvelope wraps an XPath/XQuery expression:
//
//	<query xmlns="http://basex.org/rest"><text><![CDATA[ expr ]]></text></query>
//
// An expression containing "]]>" is split over adjacent CDATA sections.
func queryEnvelope(query string) ([]byte, error) {
	root := etree.NewElement("query")
	root.CreateAttr("xmlns", RestNamespace)
	text := root.CreateElement("text")
	for _, section := range cdataSections(strings.TrimSpace(query)) {
		text.CreateCData(section)
	}

	doc := etree.NewDocument()
	doc.SetRoot(root)
	return doc.WriteToBytes()
}

// cdataSections splits s so that no section contains "]]>". Each split
// keeps "]]" in one section and ">" in the next.
func cdataSections(s string) []string {
	parts := strings.Split(s, "]]>")
	for i := range parts {
		if i < len(parts)-1 {
			parts[i] += "]]"
		}
		if i > 0 {
			parts[i] = ">" + parts[i]
		}
	}
	return parts
}

// wrapResults parses query result fragments below a synthetic root.
func wrapResults(payload []byte) (*etree.Document, error) {
	var buf bytes.Buffer
	buf.WriteString("<" + resultsTag + ">")
	buf.Write(payload)
	buf.WriteString("</" + resultsTag + ">")
	return parseXML(buf.Bytes())
}

// intAttr reads a numeric attribute of a listing entry.
func intAttr(e *etree.Element, key string) (int64, error) {
	raw := e.SelectAttrValue(key, "")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %s of %q: %w", key, e.Text(), err)
	}
	return n, nil
}
