// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/devblok/vkboot/gfx"
)

// DebugExtension is the instance extension diagnostics are delivered through.
const DebugExtension = "VK_EXT_debug_report"

// unwinder collects release functions and runs them newest first.
type unwinder []func()

func (u *unwinder) push(f func()) {
	*u = append(*u, f)
}

func (u *unwinder) unwind() {
	for i := len(*u) - 1; i >= 0; i-- {
		(*u)[i]()
	}
	*u = nil
}

// DeviceContext owns the instance, the optional debug messenger,
// the presentation surface, the logical device and its queues.
type DeviceContext struct {
	drv gfx.Driver
	log logrus.FieldLogger

	instance  gfx.Instance
	messenger gfx.DebugMessenger
	surface   *Surface

	capabilities AdapterCapabilities
	families     QueueFamilyIndices

	device        gfx.Device
	graphicsQueue gfx.Queue
	presentQueue  gfx.Queue

	window    Window
	destroyed bool
}

// NewDeviceContext creates the graphics context for win. On failure
// everything created so far is destroyed before the error is returned.
func NewDeviceContext(drv gfx.Driver, win Window, cfg Configuration, log logrus.FieldLogger) (*DeviceContext, error) {
	dc := &DeviceContext{
		drv:    drv,
		log:    log.WithField("component", "device"),
		window: win,
	}

	var undo unwinder
	if err := dc.create(cfg, &undo); err != nil {
		undo.unwind()
		dc.destroyed = true
		return nil, err
	}
	return dc, nil
}

func (dc *DeviceContext) create(cfg Configuration, undo *unwinder) error {
	icfg := cfg.Instance

	/* Instance */
	info := gfx.InstanceInfo{
		ApplicationName:    icfg.ApplicationName,
		ApplicationVersion: icfg.ApplicationVersion,
		EngineName:         icfg.EngineName,
		EngineVersion:      icfg.EngineVersion,
		APIVersion:         icfg.APIVersion,
		Extensions:         mergeNames(dc.window.RequiredInstanceExtensions(), icfg.Extensions),
	}
	var sink gfx.DebugSink
	if icfg.DebugMode {
		sink = NewLogSink(dc.log)
		info.Extensions = mergeNames(info.Extensions, []string{DebugExtension})
		info.Layers = mergeNames(icfg.ValidationLayers)
		info.Debug = sink
	}

	instance, err := dc.drv.CreateInstance(info)
	if err != nil {
		return Wrap(ErrInstanceCreation, err, "create instance")
	}
	dc.instance = instance
	undo.push(func() { dc.drv.DestroyInstance(instance) })
	dc.log.WithFields(logrus.Fields{
		"extensions": info.Extensions,
		"layers":     info.Layers,
	}).Debug("instance created")

	/* Debug messenger */
	if icfg.DebugMode {
		messenger, err := dc.drv.CreateDebugMessenger(instance, sink)
		if errors.Is(err, gfx.ErrMissingEntryPoint) {
			return Wrap(ErrMissingDebugExtension, err, "create debug messenger")
		} else if err != nil {
			return Wrap(ErrInstanceCreation, err, "create debug messenger")
		}
		dc.messenger = messenger
		undo.push(func() { dc.drv.DestroyDebugMessenger(instance, messenger) })
	}

	/* Surface */
	handle, err := dc.drv.CreateSurface(instance, dc.window.CreateSurface)
	if err != nil {
		return Wrap(ErrSurfaceCreation, err, "create surface")
	}
	dc.surface = &Surface{drv: dc.drv, handle: handle}
	undo.push(func() { dc.drv.DestroySurface(instance, handle) })

	/* Adapter */
	policy := SelectionPolicy{
		RequiredExtensions: cfg.Device.RequiredExtensions,
		RequireDiscrete:    cfg.Device.RequireDiscrete,
	}
	caps, families, err := SelectAdapter(dc.drv, instance, handle, policy, dc.log)
	if err != nil {
		return err
	}
	dc.capabilities = caps
	dc.families = families
	dc.surface.adapter = caps.Adapter

	/* Logical device */
	dinfo := gfx.DeviceInfo{
		Extensions: cfg.Device.RequiredExtensions,
	}
	for _, family := range families.Unique() {
		dinfo.Queues = append(dinfo.Queues, gfx.QueueInfo{
			Family:     family,
			Priorities: []float32{1.0},
		})
	}
	if icfg.DebugMode {
		dinfo.Layers = info.Layers
	}

	device, err := dc.drv.CreateDevice(caps.Adapter, dinfo)
	if err != nil {
		return Wrap(ErrDeviceCreation, err, "create device on %s", caps.Properties.Name)
	}
	dc.device = device
	undo.push(func() { dc.drv.DestroyDevice(device) })

	/* Queues */
	graphics, _ := families.Graphics.Get()
	if dc.graphicsQueue, err = dc.drv.DeviceQueue(device, graphics, 0); err != nil {
		return Wrap(ErrDeviceCreation, err, "get graphics queue")
	}
	if families.Shared() {
		dc.presentQueue = dc.graphicsQueue
	} else {
		present, _ := families.Present.Get()
		if dc.presentQueue, err = dc.drv.DeviceQueue(device, present, 0); err != nil {
			return Wrap(ErrDeviceCreation, err, "get present queue")
		}
	}

	dc.log.WithFields(logrus.Fields{
		"adapter": caps.Properties.Name,
		"queues":  len(dinfo.Queues),
	}).Info("device context ready")
	return nil
}

// mergeNames concatenates name lists, dropping duplicates and empty names.
func mergeNames(lists ...[]string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, list := range lists {
		for _, name := range list {
			if _, ok := seen[name]; ok || name == "" {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// Driver returns the driver the context was created with.
func (dc *DeviceContext) Driver() gfx.Driver {
	return dc.drv
}

// Logger returns the context logger.
func (dc *DeviceContext) Logger() logrus.FieldLogger {
	return dc.log
}

// Instance returns the instance handle.
func (dc *DeviceContext) Instance() gfx.Instance {
	return dc.instance
}

// Surface returns the presentation surface.
func (dc *DeviceContext) Surface() *Surface {
	return dc.surface
}

// Adapter returns the selected adapter.
func (dc *DeviceContext) Adapter() gfx.Adapter {
	return dc.capabilities.Adapter
}

// Capabilities returns what the selected adapter offered during selection.
func (dc *DeviceContext) Capabilities() AdapterCapabilities {
	return dc.capabilities
}

// Device returns the logical device handle.
func (dc *DeviceContext) Device() gfx.Device {
	return dc.device
}

// GraphicsQueue returns the queue graphics work is submitted to.
func (dc *DeviceContext) GraphicsQueue() gfx.Queue {
	return dc.graphicsQueue
}

// PresentQueue returns the queue presentation happens on. It is the
// graphics queue when both roles share a family.
func (dc *DeviceContext) PresentQueue() gfx.Queue {
	return dc.presentQueue
}

// QueueFamilies returns the resolved queue families.
func (dc *DeviceContext) QueueFamilies() QueueFamilyIndices {
	return dc.families
}

// Window returns the window the context presents to.
func (dc *DeviceContext) Window() Window {
	return dc.window
}

// Alive returns ErrContextDestroyed once Destroy has been called.
func (dc *DeviceContext) Alive() error {
	if dc == nil || dc.destroyed {
		return ErrContextDestroyed
	}
	return nil
}

// WaitIdle blocks until the device finished all submitted work.
func (dc *DeviceContext) WaitIdle() error {
	if err := dc.Alive(); err != nil {
		return err
	}
	return errors.Wrap(dc.drv.DeviceWaitIdle(dc.device), "wait device idle")
}

// Destroy releases the device, debug messenger, surface and instance,
// in that order. Calling it again does nothing.
func (dc *DeviceContext) Destroy() {
	if dc.Alive() != nil {
		return
	}
	dc.destroyed = true

	if err := dc.drv.DeviceWaitIdle(dc.device); err != nil {
		dc.log.WithError(err).Warn("wait device idle")
	}
	dc.drv.DestroyDevice(dc.device)
	if dc.messenger != 0 {
		dc.drv.DestroyDebugMessenger(dc.instance, dc.messenger)
	}
	dc.drv.DestroySurface(dc.instance, dc.surface.handle)
	dc.drv.DestroyInstance(dc.instance)
	dc.log.Debug("device context destroyed")
}
