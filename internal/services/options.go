package services

import "time"

// Default timings.
const (
	DefaultPollInterval     = 10 * time.Second
	DefaultDataPollInterval = time.Second
	DefaultDataWaitTimeout  = 2 * time.Minute
	DefaultRefreshTimeout   = 2 * time.Minute
)

// Options configures the orchestration services.
type Options struct {
	// PollInterval is the delay between two work status polls.
	PollInterval time.Duration
	// DataPollInterval is the delay between two data status polls after an upload.
	DataPollInterval time.Duration
	// DataWaitTimeout bounds the wait for uploaded data to become AVAILABLE.
	DataWaitTimeout time.Duration
	// RefreshTimeout bounds one shared application listing.
	RefreshTimeout time.Duration
	// ResultDir receives downloaded results and extracted archives.
	ResultDir string
	// StagingDir holds temporary stdin files. Empty means os.TempDir.
	StagingDir string
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.DataPollInterval <= 0 {
		o.DataPollInterval = DefaultDataPollInterval
	}
	if o.DataWaitTimeout <= 0 {
		o.DataWaitTimeout = DefaultDataWaitTimeout
	}
	if o.RefreshTimeout <= 0 {
		o.RefreshTimeout = DefaultRefreshTimeout
	}
	if o.ResultDir == "" {
		o.ResultDir = "."
	}
	return o
}
