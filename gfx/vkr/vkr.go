// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements gfx.Driver on top of the Vulkan API.
package vkr

import (
	"sync"
	"unsafe"

	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"

	"github.com/devblok/vkboot/gfx"
)

// NewDriver loads the Vulkan loader through procAddr, usually provided by
// the windowing library. A nil procAddr uses the system loader.
func NewDriver(procAddr unsafe.Pointer) (*Driver, error) {
	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.Wrap(err, "vk.SetDefaultGetInstanceProcAddr()")
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}

	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vk.Init()")
	}

	return &Driver{
		sinks: make(map[gfx.DebugMessenger]gfx.DebugSink),
	}, nil
}

// Driver is a Vulkan gfx.Driver. Objects are handed out as generation
// checked handles, a handle to a destroyed object never reaches Vulkan.
type Driver struct {
	handles gfx.HandleTable

	mu      sync.Mutex
	pending gfx.DebugSink
	sinks   map[gfx.DebugMessenger]gfx.DebugSink
}

type instanceRecord struct {
	instance vk.Instance
	adapters []gfx.Adapter
}

type messengerRecord struct {
	callback vk.DebugReportCallback
}

type deviceRecord struct {
	device vk.Device
	queues map[[2]uint32]gfx.Queue
}

type swapchainRecord struct {
	swapchain vk.Swapchain
	images    []gfx.Image
}

func check(result vk.Result, call string) error {
	if err := vk.Error(result); err != nil {
		return errors.Wrap(err, call)
	}
	return nil
}

func safeString(s string) string {
	return s + "\x00"
}

func safeStrings(sgs []string) []string {
	safe := make([]string, 0, len(sgs))
	for _, s := range sgs {
		safe = append(safe, safeString(s))
	}
	return safe
}

func (d *Driver) get(h gfx.Handle, kind string) (interface{}, error) {
	v, err := d.handles.Get(h)
	if err != nil {
		return nil, errors.Wrap(err, kind)
	}
	return v, nil
}

func (d *Driver) instance(h gfx.Instance) (*instanceRecord, error) {
	v, err := d.get(gfx.Handle(h), "instance")
	if err != nil {
		return nil, err
	}
	rec, ok := v.(*instanceRecord)
	if !ok {
		return nil, errors.Wrap(gfx.ErrStaleHandle, "instance")
	}
	return rec, nil
}

func (d *Driver) adapter(h gfx.Adapter) (vk.PhysicalDevice, error) {
	v, err := d.get(gfx.Handle(h), "adapter")
	if err != nil {
		return nil, err
	}
	pd, ok := v.(vk.PhysicalDevice)
	if !ok {
		return nil, errors.Wrap(gfx.ErrStaleHandle, "adapter")
	}
	return pd, nil
}

func (d *Driver) surface(h gfx.Surface) (vk.Surface, error) {
	v, err := d.get(gfx.Handle(h), "surface")
	if err != nil {
		return vk.NullSurface, err
	}
	s, ok := v.(vk.Surface)
	if !ok {
		return vk.NullSurface, errors.Wrap(gfx.ErrStaleHandle, "surface")
	}
	return s, nil
}

func (d *Driver) device(h gfx.Device) (*deviceRecord, error) {
	v, err := d.get(gfx.Handle(h), "device")
	if err != nil {
		return nil, err
	}
	rec, ok := v.(*deviceRecord)
	if !ok {
		return nil, errors.Wrap(gfx.ErrStaleHandle, "device")
	}
	return rec, nil
}

func (d *Driver) swapchain(h gfx.Swapchain) (*swapchainRecord, error) {
	v, err := d.get(gfx.Handle(h), "swapchain")
	if err != nil {
		return nil, err
	}
	rec, ok := v.(*swapchainRecord)
	if !ok {
		return nil, errors.Wrap(gfx.ErrStaleHandle, "swapchain")
	}
	return rec, nil
}

func (d *Driver) image(h gfx.Image) (vk.Image, error) {
	v, err := d.get(gfx.Handle(h), "image")
	if err != nil {
		return nil, err
	}
	img, ok := v.(vk.Image)
	if !ok {
		return nil, errors.Wrap(gfx.ErrStaleHandle, "image")
	}
	return img, nil
}

// CreateInstance implements gfx.Driver.
func (d *Driver) CreateInstance(info gfx.InstanceInfo) (gfx.Instance, error) {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         info.APIVersion,
		ApplicationVersion: info.ApplicationVersion,
		EngineVersion:      info.EngineVersion,
		PApplicationName:   safeString(info.ApplicationName),
		PEngineName:        safeString(info.EngineName),
	}

	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: safeStrings(info.Extensions),
		EnabledLayerCount:       uint32(len(info.Layers)),
		PpEnabledLayerNames:     safeStrings(info.Layers),
	}

	if info.Debug != nil {
		d.mu.Lock()
		d.pending = info.Debug
		d.mu.Unlock()
		defer func() {
			d.mu.Lock()
			d.pending = nil
			d.mu.Unlock()
		}()

		dbgInfo := d.debugCreateInfo()
		instanceInfo.PNext = unsafe.Pointer(dbgInfo.Ref())
		defer dbgInfo.Free()
	}

	var instance vk.Instance
	if err := check(vk.CreateInstance(&instanceInfo, nil, &instance), "vk.CreateInstance()"); err != nil {
		return 0, err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return 0, errors.Wrap(err, "vk.InitInstance()")
	}

	return gfx.Instance(d.handles.Insert(&instanceRecord{instance: instance})), nil
}

// DestroyInstance implements gfx.Driver.
func (d *Driver) DestroyInstance(instance gfx.Instance) {
	rec, err := d.instance(instance)
	if err != nil {
		return
	}
	for _, a := range rec.adapters {
		d.handles.Remove(gfx.Handle(a))
	}
	d.handles.Remove(gfx.Handle(instance))
	vk.DestroyInstance(rec.instance, nil)
}

// CreateSurface implements gfx.Driver.
func (d *Driver) CreateSurface(instance gfx.Instance, factory gfx.SurfaceFactory) (gfx.Surface, error) {
	rec, err := d.instance(instance)
	if err != nil {
		return 0, err
	}
	ptr, err := factory(rec.instance)
	if err != nil {
		return 0, err
	}
	if ptr == 0 {
		return 0, errors.New("vk.SurfaceFromPointer(): null surface")
	}
	return gfx.Surface(d.handles.Insert(vk.SurfaceFromPointer(ptr))), nil
}

// DestroySurface implements gfx.Driver.
func (d *Driver) DestroySurface(instance gfx.Instance, surface gfx.Surface) {
	rec, err := d.instance(instance)
	if err != nil {
		return
	}
	s, err := d.surface(surface)
	if err != nil {
		return
	}
	d.handles.Remove(gfx.Handle(surface))
	vk.DestroySurface(rec.instance, s, nil)
}

// EnumerateAdapters implements gfx.Driver. Adapters keep their
// handles for the lifetime of the instance.
func (d *Driver) EnumerateAdapters(instance gfx.Instance) ([]gfx.Adapter, error) {
	rec, err := d.instance(instance)
	if err != nil {
		return nil, err
	}
	if rec.adapters != nil {
		return append([]gfx.Adapter(nil), rec.adapters...), nil
	}

	var deviceCount uint32
	if err := check(vk.EnumeratePhysicalDevices(rec.instance, &deviceCount, nil), "vk.EnumeratePhysicalDevices()"); err != nil {
		return nil, err
	}
	devices := make([]vk.PhysicalDevice, deviceCount)
	if err := check(vk.EnumeratePhysicalDevices(rec.instance, &deviceCount, devices), "vk.EnumeratePhysicalDevices()"); err != nil {
		return nil, err
	}

	rec.adapters = make([]gfx.Adapter, 0, deviceCount)
	for _, pd := range devices[:deviceCount] {
		rec.adapters = append(rec.adapters, gfx.Adapter(d.handles.Insert(pd)))
	}
	return append([]gfx.Adapter(nil), rec.adapters...), nil
}

// AdapterProperties implements gfx.Driver.
func (d *Driver) AdapterProperties(adapter gfx.Adapter) (gfx.AdapterProperties, error) {
	pd, err := d.adapter(adapter)
	if err != nil {
		return gfx.AdapterProperties{}, err
	}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &props)
	props.Deref()

	return gfx.AdapterProperties{
		Name:          vk.ToString(props.DeviceName[:]),
		VendorID:      props.VendorID,
		DeviceID:      props.DeviceID,
		DriverVersion: props.DriverVersion,
		APIVersion:    props.ApiVersion,
		Type:          gfx.AdapterType(props.DeviceType),
	}, nil
}

// QueueFamilies implements gfx.Driver.
func (d *Driver) QueueFamilies(adapter gfx.Adapter) ([]gfx.QueueFamily, error) {
	pd, err := d.adapter(adapter)
	if err != nil {
		return nil, err
	}

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, props)

	families := make([]gfx.QueueFamily, 0, count)
	for _, p := range props[:count] {
		p.Deref()
		families = append(families, gfx.QueueFamily{
			Flags: gfx.QueueFlags(p.QueueFlags),
			Count: p.QueueCount,
		})
	}
	return families, nil
}

// SurfaceSupport implements gfx.Driver.
func (d *Driver) SurfaceSupport(adapter gfx.Adapter, family uint32, surface gfx.Surface) (bool, error) {
	pd, err := d.adapter(adapter)
	if err != nil {
		return false, err
	}
	s, err := d.surface(surface)
	if err != nil {
		return false, err
	}

	var supported vk.Bool32
	if err := check(vk.GetPhysicalDeviceSurfaceSupport(pd, family, s, &supported), "vk.GetPhysicalDeviceSurfaceSupport()"); err != nil {
		return false, err
	}
	return supported.B(), nil
}

// DeviceExtensions implements gfx.Driver.
func (d *Driver) DeviceExtensions(adapter gfx.Adapter) ([]string, error) {
	pd, err := d.adapter(adapter)
	if err != nil {
		return nil, err
	}

	var count uint32
	if err := check(vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil), "vk.EnumerateDeviceExtensionProperties()"); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if err := check(vk.EnumerateDeviceExtensionProperties(pd, "", &count, props), "vk.EnumerateDeviceExtensionProperties()"); err != nil {
		return nil, err
	}

	names := make([]string, 0, count)
	for _, ext := range props[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// SurfaceCapabilities implements gfx.Driver.
func (d *Driver) SurfaceCapabilities(adapter gfx.Adapter, surface gfx.Surface) (gfx.SurfaceCapabilities, error) {
	pd, err := d.adapter(adapter)
	if err != nil {
		return gfx.SurfaceCapabilities{}, err
	}
	s, err := d.surface(surface)
	if err != nil {
		return gfx.SurfaceCapabilities{}, err
	}

	var caps vk.SurfaceCapabilities
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(pd, s, &caps), "vk.GetPhysicalDeviceSurfaceCapabilities()"); err != nil {
		return gfx.SurfaceCapabilities{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	return gfx.SurfaceCapabilities{
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		CurrentExtent:           extent(caps.CurrentExtent),
		MinImageExtent:          extent(caps.MinImageExtent),
		MaxImageExtent:          extent(caps.MaxImageExtent),
		CurrentTransform:        gfx.SurfaceTransform(caps.CurrentTransform),
		SupportedCompositeAlpha: gfx.CompositeAlpha(caps.SupportedCompositeAlpha),
	}, nil
}

func extent(e vk.Extent2D) gfx.Extent2D {
	return gfx.Extent2D{Width: e.Width, Height: e.Height}
}

// SurfaceFormats implements gfx.Driver.
func (d *Driver) SurfaceFormats(adapter gfx.Adapter, surface gfx.Surface) ([]gfx.SurfaceFormat, error) {
	pd, err := d.adapter(adapter)
	if err != nil {
		return nil, err
	}
	s, err := d.surface(surface)
	if err != nil {
		return nil, err
	}

	var count uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(pd, s, &count, nil), "vk.GetPhysicalDeviceSurfaceFormats()"); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(pd, s, &count, formats), "vk.GetPhysicalDeviceSurfaceFormats()"); err != nil {
		return nil, err
	}

	out := make([]gfx.SurfaceFormat, 0, count)
	for _, f := range formats[:count] {
		f.Deref()
		out = append(out, gfx.SurfaceFormat{
			Format:     gfx.Format(f.Format),
			ColorSpace: gfx.ColorSpace(f.ColorSpace),
		})
	}
	return out, nil
}

// PresentModes implements gfx.Driver.
func (d *Driver) PresentModes(adapter gfx.Adapter, surface gfx.Surface) ([]gfx.PresentMode, error) {
	pd, err := d.adapter(adapter)
	if err != nil {
		return nil, err
	}
	s, err := d.surface(surface)
	if err != nil {
		return nil, err
	}

	var count uint32
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(pd, s, &count, nil), "vk.GetPhysicalDeviceSurfacePresentModes()"); err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, count)
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(pd, s, &count, modes), "vk.GetPhysicalDeviceSurfacePresentModes()"); err != nil {
		return nil, err
	}

	out := make([]gfx.PresentMode, 0, count)
	for _, m := range modes[:count] {
		out = append(out, gfx.PresentMode(m))
	}
	return out, nil
}
