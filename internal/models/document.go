// Package models defines the entity documents exchanged with the XWHEP
// service and the local records kept about submissions.
package models

// Kind is the tag naming an entity kind inside a document.
type Kind string

const (
	// KindApp tags application documents.
	KindApp Kind = "app"
	// KindWork tags work documents.
	KindWork Kind = "work"
	// KindData tags data documents.
	KindData Kind = "data"
)

// DefaultAccessRights is applied to every entity this client creates.
const DefaultAccessRights = "0x755"

// Field is a single named value of a document.
type Field struct {
	Name  string
	Value string
}

// Document is the in-memory form of a tagged entity document. Field order is
// preserved so that unknown fields survive a decode/encode round trip.
type Document struct {
	Kind   Kind
	Fields []Field
}

// NewDocument creates a document of the given kind.
func NewDocument(kind Kind, fields ...Field) *Document {
	return &Document{Kind: kind, Fields: fields}
}

// Get returns the value of a field and whether it is present.
func (d *Document) Get(name string) (string, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the value of a field, or "" if absent.
func (d *Document) Value(name string) string {
	v, _ := d.Get(name)
	return v
}

// Set replaces the value of a field, appending it if absent.
func (d *Document) Set(name, value string) {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			d.Fields[i].Value = value
			return
		}
	}
	d.Fields = append(d.Fields, Field{Name: name, Value: value})
}

// UID returns the uid field.
func (d *Document) UID() string {
	return d.Value("uid")
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	fields := make([]Field, len(d.Fields))
	copy(fields, d.Fields)
	return &Document{Kind: d.Kind, Fields: fields}
}

// Map returns the fields as a map, for JSON rendering.
func (d *Document) Map() map[string]string {
	m := make(map[string]string, len(d.Fields))
	for _, f := range d.Fields {
		m[f.Name] = f.Value
	}
	return m
}

// extra collects the fields not named in known.
func (d *Document) extra(known ...string) map[string]string {
	skip := make(map[string]bool, len(known))
	for _, k := range known {
		skip[k] = true
	}
	out := make(map[string]string)
	for _, f := range d.Fields {
		if !skip[f.Name] {
			out[f.Name] = f.Value
		}
	}
	return out
}
