package models

// Write access of work fields. true means the client may set the field.
var workAccess = map[string]bool{
	"uid":                false,
	"owneruid":           false,
	"accessrights":       true,
	"errormsg":           true,
	"mtime":              false,
	"userproxy":          true,
	"sessionuid":         true,
	"groupuid":           true,
	"sgid":               true,
	"expectedhostuid":    true,
	"isservice":          false,
	"label":              true,
	"appuid":             true,
	"returncode":         false,
	"server":             false,
	"listenport":         true,
	"smartsocketaddr":    true,
	"smartsocketclient":  true,
	"envvars":            true,
	"cmdline":            true,
	"stdinuri":           true,
	"dirinuri":           true,
	"resulturi":          false,
	"arrivaldate":        false,
	"completeddate":      false,
	"readydate":          false,
	"datareadydate":      false,
	"compstartdate":      false,
	"compenddate":        false,
	"sendtoclient":       false,
	"local":              false,
	"active":             true,
	"replications":       true,
	"totalr":             true,
	"sizer":              true,
	"replicateduid":      true,
	"datadrivenuri":      true,
	"maxretry":           true,
	"retry":              false,
	"maxwallclocktime":   true,
	"diskspace":          true,
	"minmemory":          true,
	"mincpuspeed":        true,
	"status":             false,
	"minfreemassstorage": true,
}

// Write access of application fields.
var appAccess = map[string]bool{
	"uid":                false,
	"owneruid":           false,
	"accessrights":       true,
	"errormsg":           true,
	"mtime":              false,
	"name":               true,
	"isservice":          true,
	"type":               true,
	"minfreemassstorage": true,
	"avgexectime":        false,
	"minmemory":          true,
	"mincpuspeed":        true,
	"launchscriptshuri":  true,
	"launchscriptcmduri": true,
	"unloadscriptshuri":  true,
	"unloadscriptcmduri": true,
	"nbjobs":             false,
	"pendingjobs":        false,
	"runningjobs":        false,
	"errorjobs":          false,
	"webpage":            true,
	"neededpackages":     true,
	"envvars":            true,
	"defaultstdinuri":    true,
	"basedirinuri":       true,
	"defaultdirinuri":    true,
	"ldlinux_ix86uri":    true,
	"ldlinux_x86_64uri":  true,
	"ldlinux_amd64uri":   true,
	"ldlinux_ia64uri":    true,
	"ldlinux_ppcuri":     true,
	"ldmacos_ix86uri":    true,
	"ldmacos_x86_64uri":  true,
	"ldmacos_ppcuri":     true,
	"ldwin32_ix86uri":    true,
	"ldwin32_amd64uri":   true,
	"ldwin32_x86_64uri":  true,
	"linux_ix86uri":      true,
	"linux_amd64uri":     true,
	"linux_x86_64uri":    true,
	"linux_ia64uri":      true,
	"linux_ppcuri":       true,
	"macos_ix86uri":      true,
	"macos_x86_64uri":    true,
	"macos_ppcuri":       true,
	"win32_ix86uri":      true,
	"win32_amd64uri":     true,
	"win32_x86_64uri":    true,
	"javauri":            true,
}

// Write access of data fields.
var dataAccess = map[string]bool{
	"uid":           false,
	"owneruid":      false,
	"accessrights":  true,
	"errormsg":      true,
	"mtime":         false,
	"name":          true,
	"links":         false,
	"insertiondate": false,
	"osversion":     true,
	"status":        true,
	"type":          true,
	"cpu":           true,
	"os":            true,
	"size":          true,
	"md5":           true,
	"uri":           false,
	"sendtoclient":  false,
	"workuid":       true,
	"package":       true,
	"replicated":    false,
}

func accessTable(kind Kind) map[string]bool {
	switch kind {
	case KindWork:
		return workAccess
	case KindApp:
		return appAccess
	case KindData:
		return dataAccess
	}
	return nil
}

// IsKnownField reports whether field belongs to the schema of kind.
func IsKnownField(kind Kind, field string) bool {
	_, ok := accessTable(kind)[field]
	return ok
}

// IsWritable reports whether the client may set field on an entity of kind.
// Unknown kinds and fields are never writable.
func IsWritable(kind Kind, field string) bool {
	return accessTable(kind)[field]
}

// WritableFields lists the client-writable fields of kind.
func WritableFields(kind Kind) []string {
	var out []string
	for name, writable := range accessTable(kind) {
		if writable {
			out = append(out, name)
		}
	}
	return out
}
