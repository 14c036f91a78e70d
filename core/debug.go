// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/sirupsen/logrus"

	"github.com/devblok/vkboot/gfx"
)

// LogSink forwards driver diagnostics to a logger.
type LogSink struct {
	log logrus.FieldLogger
}

// NewLogSink creates a sink writing to log.
func NewLogSink(log logrus.FieldLogger) *LogSink {
	return &LogSink{log: log.WithField("component", "driver")}
}

// Report implements gfx.DebugSink.
func (s *LogSink) Report(msg gfx.DebugMessage) {
	entry := s.log.WithFields(logrus.Fields{
		"layer":  msg.Layer,
		"code":   msg.Code,
		"object": msg.Object,
	})
	switch msg.Severity {
	case gfx.SeverityError:
		entry.Error(msg.Message)
	case gfx.SeverityWarning, gfx.SeverityPerformance:
		entry.Warn(msg.Message)
	case gfx.SeverityInfo:
		entry.Info(msg.Message)
	default:
		entry.Debug(msg.Message)
	}
}
