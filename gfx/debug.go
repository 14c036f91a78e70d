// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

// Severity of a driver diagnostic.
type Severity int

// Diagnostic severities, lowest first.
const (
	SeverityVerbose Severity = iota
	SeverityInfo
	SeverityPerformance
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityVerbose:
		return "verbose"
	case SeverityInfo:
		return "info"
	case SeverityPerformance:
		return "performance"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "unknown"
}

// DebugMessage is a single diagnostic emitted by the driver or its layers.
type DebugMessage struct {
	Severity Severity
	Layer    string
	Code     int32
	Object   uint64
	Message  string
}

// DebugSink receives driver diagnostics. Report can be called from
// a driver owned thread and must not block.
type DebugSink interface {
	Report(msg DebugMessage)
}
