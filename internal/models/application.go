package models

import "strings"

// AppTypeDeployable is the type given to applications registered here.
const AppTypeDeployable = "DEPLOYABLE"

// Application is a typed view of an application document.
type Application struct {
	Binaries map[string]string `json:"binaries,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	UID      string            `json:"uid"`
	Name     string            `json:"name"`
	Type     string            `json:"type,omitempty"`
}

// ApplicationFromDocument builds the typed view of an application document.
// Binary URI fields are those ending in "uri" that name a platform.
func ApplicationFromDocument(d *Document) *Application {
	app := &Application{
		UID:      d.Value("uid"),
		Name:     d.Value("name"),
		Type:     d.Value("type"),
		Binaries: make(map[string]string),
		Extra:    make(map[string]string),
	}
	for _, f := range d.Fields {
		switch {
		case f.Name == "uid" || f.Name == "name" || f.Name == "type":
		case isBinaryField(f.Name):
			if f.Value != "" {
				app.Binaries[f.Name] = f.Value
			}
		default:
			app.Extra[f.Name] = f.Value
		}
	}
	return app
}

// NewApplicationDocument returns the creation document of a deployable app.
func NewApplicationDocument(uid, name string) *Document {
	return NewDocument(KindApp,
		Field{Name: "uid", Value: uid},
		Field{Name: "name", Value: name},
		Field{Name: "type", Value: AppTypeDeployable},
		Field{Name: "accessrights", Value: DefaultAccessRights},
	)
}

func isBinaryField(name string) bool {
	if name == "javauri" {
		return true
	}
	for _, prefix := range []string{"linux_", "win32_", "macos_", "ldlinux_", "ldwin32_", "ldmacos_"} {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, "uri") {
			return true
		}
	}
	return false
}
