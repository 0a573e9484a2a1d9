package models

// WorkStatus is the server-side status of a work.
type WorkStatus string

const (
	// WorkUnavailable is the only status in which a work may be edited.
	WorkUnavailable WorkStatus = "UNAVAILABLE"
	// WorkPending marks a work released for scheduling.
	WorkPending WorkStatus = "PENDING"
	// WorkRunning marks a work picked up by a worker.
	WorkRunning WorkStatus = "RUNNING"
	// WorkCompleted marks a work that finished successfully.
	WorkCompleted WorkStatus = "COMPLETED"
	// WorkError marks a work that failed remotely.
	WorkError WorkStatus = "ERROR"
)

// IsTerminal reports whether no further server transition is expected.
func (s WorkStatus) IsTerminal() bool {
	return s == WorkCompleted || s == WorkError
}

// Work is a typed view of a work document.
type Work struct {
	Extra     map[string]string `json:"extra,omitempty"`
	UID       string            `json:"uid"`
	AppUID    string            `json:"appuid"`
	Status    WorkStatus        `json:"status"`
	Cmdline   string            `json:"cmdline"`
	StdinURI  string            `json:"stdinuri,omitempty"`
	ResultURI string            `json:"resulturi,omitempty"`
	SGID      string            `json:"sgid,omitempty"`
	ErrorMsg  string            `json:"errormsg,omitempty"`
}

// WorkFromDocument builds the typed view of a work document.
func WorkFromDocument(d *Document) *Work {
	return &Work{
		UID:       d.Value("uid"),
		AppUID:    d.Value("appuid"),
		Status:    WorkStatus(d.Value("status")),
		Cmdline:   d.Value("cmdline"),
		StdinURI:  d.Value("stdinuri"),
		ResultURI: d.Value("resulturi"),
		SGID:      d.Value("sgid"),
		ErrorMsg:  d.Value("errormsg"),
		Extra:     d.extra("uid", "appuid", "status", "cmdline", "stdinuri", "resulturi", "sgid", "errormsg"),
	}
}

// NewWorkDocument returns the creation document of an UNAVAILABLE work.
func NewWorkDocument(uid, appUID, sgid string) *Document {
	return NewDocument(KindWork,
		Field{Name: "uid", Value: uid},
		Field{Name: "accessrights", Value: DefaultAccessRights},
		Field{Name: "appuid", Value: appUID},
		Field{Name: "sgid", Value: sgid},
		Field{Name: "status", Value: string(WorkUnavailable)},
	)
}
