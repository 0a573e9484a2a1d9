package models

// DataStatus is the availability of a data entity.
type DataStatus string

const (
	// DataUnavailable marks data whose content is not uploaded yet.
	DataUnavailable DataStatus = "UNAVAILABLE"
	// DataAvailable marks data whose content can be downloaded.
	DataAvailable DataStatus = "AVAILABLE"
)

// DataTypeBinary is the data type of application binaries.
const DataTypeBinary = "BINARY"

// Data is a typed view of a data document.
type Data struct {
	Extra  map[string]string `json:"extra,omitempty"`
	UID    string            `json:"uid"`
	Name   string            `json:"name,omitempty"`
	Type   string            `json:"type,omitempty"`
	Status DataStatus        `json:"status"`
	URI    string            `json:"uri,omitempty"`
	MD5    string            `json:"md5,omitempty"`
	Size   string            `json:"size,omitempty"`
	OS     string            `json:"os,omitempty"`
	CPU    string            `json:"cpu,omitempty"`
}

// DataFromDocument builds the typed view of a data document.
func DataFromDocument(d *Document) *Data {
	return &Data{
		UID:    d.Value("uid"),
		Name:   d.Value("name"),
		Type:   d.Value("type"),
		Status: DataStatus(d.Value("status")),
		URI:    d.Value("uri"),
		MD5:    d.Value("md5"),
		Size:   d.Value("size"),
		OS:     d.Value("os"),
		CPU:    d.Value("cpu"),
		Extra:  d.extra("uid", "name", "type", "status", "uri", "md5", "size", "os", "cpu"),
	}
}

// NewStdinDataDocument returns the creation document of a stdin payload.
func NewStdinDataDocument(uid string) *Document {
	return NewDocument(KindData,
		Field{Name: "uid", Value: uid},
		Field{Name: "accessrights", Value: DefaultAccessRights},
		Field{Name: "name", Value: "stdin.txt"},
		Field{Name: "status", Value: string(DataUnavailable)},
	)
}

// NewBinaryDataDocument returns the creation document of an application binary.
func NewBinaryDataDocument(uid, name, os, cpu string) *Document {
	return NewDocument(KindData,
		Field{Name: "uid", Value: uid},
		Field{Name: "accessrights", Value: DefaultAccessRights},
		Field{Name: "type", Value: DataTypeBinary},
		Field{Name: "name", Value: name},
		Field{Name: "cpu", Value: cpu},
		Field{Name: "os", Value: os},
		Field{Name: "status", Value: string(DataUnavailable)},
	)
}
