// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	vk "github.com/devblok/vulkan"

	"github.com/devblok/vkboot/gfx"
)

const createDebugReportCallback = "vkCreateDebugReportCallbackEXT"

// debugResult maps the result of creating a debug report callback. The
// binding resolves the extension entry point itself and answers NotReady
// when the instance does not expose it.
func debugResult(result vk.Result) error {
	if result == vk.NotReady {
		return gfx.ErrMissingEntryPoint
	}
	return check(result, createDebugReportCallback)
}

func (d *Driver) debugCreateInfo() *vk.DebugReportCallbackCreateInfo {
	return &vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit | vk.DebugReportInformationBit | vk.DebugReportDebugBit),
		PfnCallback: d.report,
	}
}

// report is the debug report callback. It may run on a driver thread.
func (d *Driver) report(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	msg := gfx.DebugMessage{
		Severity: severity(flags),
		Layer:    pLayerPrefix,
		Code:     messageCode,
		Object:   uint64(object),
		Message:  pMessage,
	}

	d.mu.Lock()
	sinks := make([]gfx.DebugSink, 0, len(d.sinks)+1)
	if d.pending != nil {
		sinks = append(sinks, d.pending)
	}
	for _, s := range d.sinks {
		sinks = append(sinks, s)
	}
	d.mu.Unlock()

	for _, s := range sinks {
		s.Report(msg)
	}
	return vk.Bool32(vk.False)
}

func severity(flags vk.DebugReportFlags) gfx.Severity {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return gfx.SeverityError
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		return gfx.SeverityWarning
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		return gfx.SeverityPerformance
	case flags&vk.DebugReportFlags(vk.DebugReportInformationBit) != 0:
		return gfx.SeverityInfo
	}
	return gfx.SeverityVerbose
}

// CreateDebugMessenger implements gfx.Driver.
func (d *Driver) CreateDebugMessenger(instance gfx.Instance, sink gfx.DebugSink) (gfx.DebugMessenger, error) {
	rec, err := d.instance(instance)
	if err != nil {
		return 0, err
	}
	var callback vk.DebugReportCallback
	if err := debugResult(vk.CreateDebugReportCallback(rec.instance, d.debugCreateInfo(), nil, &callback)); err != nil {
		return 0, err
	}

	h := gfx.DebugMessenger(d.handles.Insert(&messengerRecord{callback: callback}))
	d.mu.Lock()
	d.sinks[h] = sink
	d.mu.Unlock()
	return h, nil
}

// DestroyDebugMessenger implements gfx.Driver.
func (d *Driver) DestroyDebugMessenger(instance gfx.Instance, messenger gfx.DebugMessenger) {
	rec, err := d.instance(instance)
	if err != nil {
		return
	}
	v, err := d.handles.Get(gfx.Handle(messenger))
	m, ok := v.(*messengerRecord)
	if err != nil || !ok {
		return
	}

	d.mu.Lock()
	delete(d.sinks, messenger)
	d.mu.Unlock()

	d.handles.Remove(gfx.Handle(messenger))
	vk.DestroyDebugReportCallback(rec.instance, m.callback, nil)
}
