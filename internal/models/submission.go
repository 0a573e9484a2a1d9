package models

import "time"

// Submission is the local journal entry of a work submitted by this client.
// It keeps the uids of every remote entity created on the way, so that a
// submission aborted halfway can be inspected or cleaned up.
type Submission struct {
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	WorkUID    string     `json:"work_uid"`
	AppName    string     `json:"app_name"`
	AppUID     string     `json:"app_uid"`
	Cmdline    string     `json:"cmdline"`
	StdinUID   string     `json:"stdin_uid,omitempty"`
	Tag        string     `json:"tag,omitempty"`
	Status     WorkStatus `json:"status"`
	ResultPath string     `json:"result_path,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// SubmitRequest contains the data for submitting a new work.
type SubmitRequest struct {
	App     string `json:"app" binding:"required"`
	Cmdline string `json:"cmdline"`
	Stdin   string `json:"stdin"`
	Tag     string `json:"tag"`
	Wait    bool   `json:"wait"`
}

// RegisterAppRequest contains the data for registering an application.
type RegisterAppRequest struct {
	Name       string `form:"name" binding:"required"`
	OS         string `form:"os" binding:"required"`
	CPU        string `form:"cpu" binding:"required"`
	BinaryPath string `form:"-"`
}
