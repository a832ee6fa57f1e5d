package model

import "time"

// MonitorReader is the read-side contract shared by the HTTP API, the
// socket RPC server and the dashboard.
type MonitorReader interface {
	Analytics() Analytics
	SessionStats() SessionStats
	Calls() []APICall
	Snapshots() []SystemSnapshot
	ThrottleEvents() []ThrottleEvent
	Errors() []string
	IsRecording() bool
}

// MonitorControl exposes the user-triggered store actions.
type MonitorControl interface {
	StartRecording()
	StopRecording()
	ClearAll()
	StartNewSession() Session
}

// Monitor is the full store surface used by read/control endpoints.
type Monitor interface {
	MonitorReader
	MonitorControl
}

// WindowCounter reports call and error counts since a point in time.
type WindowCounter interface {
	WindowCounts(since time.Time) (calls, errors int)
}

// MonitorSource is the monitor surface as seen across a process boundary,
// where every call can fail.
type MonitorSource interface {
	Analytics() (Analytics, error)
	SessionStats() (SessionStats, error)
	RecentCalls(limit int) ([]APICall, error)
	Snapshots() ([]SystemSnapshot, error)
	ThrottleEvents() ([]ThrottleEvent, error)
	ErrorLog() ([]string, error)
	IsRecording() (bool, error)
	StartRecording() error
	StopRecording() error
	ClearAll() error
	StartNewSession() (Session, error)
	TriggerSample() error
}
