// Package codec converts XWHEP tagged XML documents to and from
// models.Document.
package codec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
)

const (
	// rootTag wraps every document returned by the server.
	rootTag = "xwhep"
	// resultTag is the element the server returns instead of an entity on error.
	resultTag = "xmlrpcresult"
	// resultMessageAttr carries the error message of a resultTag element.
	resultMessageAttr = "MESSAGE"
	vectorValueTag    = "XMLVALUE"
	vectorValueAttr   = "value"
)

var (
	// ErrNoEntity indicates the document carries no entity element.
	ErrNoEntity = errors.New("document contains no entity")
	// ErrNoRoot indicates a listing response is not an xwhep document.
	ErrNoRoot = errors.New("document has no xwhep root")
)

// RemoteError is the error message the server returned in place of a document.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote error: " + e.Message
}

// XML is the document codec of the XWHEP service.
type XML struct{}

// Decode parses a raw server document. The entity is the first element below
// the optional xwhep root; each of its child elements becomes a field.
func (XML) Decode(raw []byte) (*models.Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var (
		doc         *models.Document
		depth       int
		entityDepth = -1
		field       string
		value       strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			name := t.Name.Local
			if name == resultTag {
				return nil, &RemoteError{Message: attr(t, resultMessageAttr)}
			}
			switch {
			case doc == nil && name == rootTag && depth == 1:
			case doc == nil:
				doc = models.NewDocument(models.Kind(name))
				entityDepth = depth
			case depth == entityDepth+1:
				field = name
				value.Reset()
			}
		case xml.CharData:
			if field != "" && depth == entityDepth+1 {
				value.Write(t)
			}
		case xml.EndElement:
			if field != "" && depth == entityDepth+1 {
				v := value.String()
				if strings.TrimSpace(v) == "" {
					v = ""
				}
				doc.Fields = append(doc.Fields, models.Field{Name: field, Value: v})
				field = ""
			}
			if depth == entityDepth {
				return doc, nil
			}
			depth--
		}
	}

	if doc == nil {
		return nil, ErrNoEntity
	}
	return doc, nil
}

// Encode serializes a document as <kind><field>value</field>...</kind>.
func (XML) Encode(doc *models.Document) ([]byte, error) {
	if doc == nil || doc.Kind == "" {
		return nil, errors.New("encode document: missing kind")
	}
	if !validName(string(doc.Kind)) {
		return nil, fmt.Errorf("encode document: invalid kind %q", doc.Kind)
	}

	var buf bytes.Buffer
	buf.WriteString("<" + string(doc.Kind) + ">")
	for _, f := range doc.Fields {
		if !validName(f.Name) {
			return nil, fmt.Errorf("encode document: invalid field name %q", f.Name)
		}
		buf.WriteString("<" + f.Name + ">")
		if err := xml.EscapeText(&buf, []byte(f.Value)); err != nil {
			return nil, err
		}
		buf.WriteString("</" + f.Name + ">")
	}
	buf.WriteString("</" + string(doc.Kind) + ">")

	return buf.Bytes(), nil
}

// CheckResult reports the rejection carried by an acknowledgement body. Bodies
// without an xmlrpcresult element, empty or not XML, are accepted.
func (XML) CheckResult(raw []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == resultTag {
			return &RemoteError{Message: attr(start, resultMessageAttr)}
		}
	}
}

// DecodeUIDList parses the application listing:
// <xwhep><XMLVector><XMLVALUE value="uid"/>...</XMLVector></xwhep>.
func (XML) DecodeUIDList(raw []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var uids []string
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode uid list: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case rootTag:
			sawRoot = true
		case resultTag:
			return nil, &RemoteError{Message: attr(start, resultMessageAttr)}
		case vectorValueTag:
			if v := strings.TrimSpace(attr(start, vectorValueAttr)); v != "" {
				uids = append(uids, v)
			}
		}
	}

	if !sawRoot {
		return nil, ErrNoRoot
	}
	return uids, nil
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case i > 0 && (r >= '0' && r <= '9' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
