// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfxtest provides a recording gfx.Driver for tests. It keeps
// track of every object it hands out and records a violation whenever an
// object is used after destruction or destroyed before its dependents.
package gfxtest

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/devblok/vkboot/gfx"
)

// ErrInjected is the default error returned by injected failures.
var ErrInjected = errors.New("gfxtest: injected failure")

// Adapter configures a fake physical adapter.
type Adapter struct {
	Properties   gfx.AdapterProperties
	Families     []gfx.QueueFamily
	Present      []bool
	Extensions   []string
	Capabilities gfx.SurfaceCapabilities
	Formats      []gfx.SurfaceFormat
	PresentModes []gfx.PresentMode
}

// Discrete returns a discrete adapter with a single graphics and present
// capable family, the swapchain extension and a common surface setup.
func Discrete(name string) Adapter {
	return Adapter{
		Properties: gfx.AdapterProperties{Name: name, VendorID: 0x10de, DeviceID: 0x1b80, Type: gfx.AdapterDiscrete},
		Families:   []gfx.QueueFamily{{Flags: gfx.QueueGraphics | gfx.QueueCompute | gfx.QueueTransfer, Count: 16}},
		Present:    []bool{true},
		Extensions: []string{"VK_KHR_swapchain"},
		Capabilities: gfx.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           8,
			CurrentExtent:           gfx.Extent2D{Width: 800, Height: 600},
			MinImageExtent:          gfx.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          gfx.Extent2D{Width: 4096, Height: 4096},
			CurrentTransform:        gfx.SurfaceTransformIdentity,
			SupportedCompositeAlpha: gfx.CompositeAlphaOpaque,
		},
		Formats:      []gfx.SurfaceFormat{{Format: gfx.FormatB8G8R8A8SRGB, ColorSpace: gfx.ColorSpaceSRGBNonlinear}},
		PresentModes: []gfx.PresentMode{gfx.PresentModeFIFO, gfx.PresentModeMailbox},
	}
}

type object struct {
	kind    string
	parents []gfx.Handle
	owned   bool
	sink    gfx.DebugSink
}

type failure struct {
	n   int
	err error
}

// Driver is a fake gfx.Driver.
type Driver struct {
	// MissingDebug makes CreateDebugMessenger report a missing entry point.
	MissingDebug bool

	// ExtraImages is added to the requested swapchain image count.
	ExtraImages uint32

	// Native is handed to surface factories as the native instance.
	Native interface{}

	mu       sync.Mutex
	adapters []Adapter
	handles  []gfx.Adapter
	owner    gfx.Handle
	next     gfx.Handle
	objects  map[gfx.Handle]*object
	failures map[string]failure
	counts   map[string]int

	calls      []string
	violations []string

	instanceInfo  gfx.InstanceInfo
	deviceInfo    gfx.DeviceInfo
	swapchains    []gfx.SwapchainInfo
	views         []gfx.ImageViewInfo
	renderPasses  []gfx.RenderPassInfo
	layouts       []gfx.PipelineLayoutInfo
	shaderModules []gfx.ShaderModuleInfo
}

// New creates a fake driver exposing adapters in the given order.
func New(adapters ...Adapter) *Driver {
	d := &Driver{
		adapters: adapters,
		objects:  make(map[gfx.Handle]*object),
		failures: make(map[string]failure),
		counts:   make(map[string]int),
	}
	for range adapters {
		h := d.alloc("adapter", false)
		d.handles = append(d.handles, gfx.Adapter(h))
	}
	return d
}

// FailOn makes the n-th call (1 based) of the named driver method fail
// with err. A zero n fails every call, a nil err uses ErrInjected.
func (d *Driver) FailOn(method string, n int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	d.failures[method] = failure{n: n, err: err}
}

// Calls returns the recorded driver calls in order.
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Violations returns recorded lifetime violations.
func (d *Driver) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

// Live returns the owned objects that were created and not destroyed.
func (d *Driver) Live() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var live []string
	for h, o := range d.objects {
		if o.owned {
			live = append(live, fmt.Sprintf("%s#%d", o.kind, h))
		}
	}
	sort.Strings(live)
	return live
}

// Adapters returns the adapter handles in enumeration order.
func (d *Driver) Adapters() []gfx.Adapter {
	return append([]gfx.Adapter(nil), d.handles...)
}

// InstanceInfo returns the last instance descriptor.
func (d *Driver) InstanceInfo() gfx.InstanceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.instanceInfo
}

// DeviceInfo returns the last device descriptor.
func (d *Driver) DeviceInfo() gfx.DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceInfo
}

// SwapchainInfos returns every swapchain descriptor in creation order.
func (d *Driver) SwapchainInfos() []gfx.SwapchainInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gfx.SwapchainInfo(nil), d.swapchains...)
}

// ImageViewInfos returns every image view descriptor in creation order.
func (d *Driver) ImageViewInfos() []gfx.ImageViewInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gfx.ImageViewInfo(nil), d.views...)
}

// RenderPassInfos returns every render pass descriptor in creation order.
func (d *Driver) RenderPassInfos() []gfx.RenderPassInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gfx.RenderPassInfo(nil), d.renderPasses...)
}

// PipelineLayoutInfos returns every pipeline layout descriptor in creation order.
func (d *Driver) PipelineLayoutInfos() []gfx.PipelineLayoutInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gfx.PipelineLayoutInfo(nil), d.layouts...)
}

// ShaderModuleInfos returns every shader module descriptor in creation order.
func (d *Driver) ShaderModuleInfos() []gfx.ShaderModuleInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gfx.ShaderModuleInfo(nil), d.shaderModules...)
}

// Emit delivers msg to every live debug messenger and to the
// sink given at instance creation.
func (d *Driver) Emit(msg gfx.DebugMessage) {
	d.mu.Lock()
	var sinks []gfx.DebugSink
	if d.instanceInfo.Debug != nil {
		sinks = append(sinks, d.instanceInfo.Debug)
	}
	for _, o := range d.objects {
		if o.sink != nil {
			sinks = append(sinks, o.sink)
		}
	}
	d.mu.Unlock()

	for _, s := range sinks {
		s.Report(msg)
	}
}

// call records method and returns an injected failure, if any.
// Must be called with d.mu held.
func (d *Driver) call(method string) error {
	d.calls = append(d.calls, method)
	d.counts[method]++
	if f, ok := d.failures[method]; ok && (f.n == 0 || f.n == d.counts[method]) {
		return f.err
	}
	return nil
}

func (d *Driver) alloc(kind string, owned bool, parents ...gfx.Handle) gfx.Handle {
	d.next++
	d.objects[d.next] = &object{kind: kind, owned: owned, parents: parents}
	return d.next
}

func (d *Driver) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

// use checks that h is a live object of the given kind.
func (d *Driver) use(method, kind string, h gfx.Handle) bool {
	o, ok := d.objects[h]
	if !ok || o.kind != kind {
		d.violate("%s: %s#%d is not live", method, kind, h)
		return false
	}
	return true
}

func (d *Driver) release(method, kind string, h gfx.Handle) {
	if !d.use(method, kind, h) {
		return
	}
	for child, o := range d.objects {
		for _, p := range o.parents {
			if p != h {
				continue
			}
			if o.owned {
				d.violate("%s: %s#%d destroyed before %s#%d", method, kind, h, o.kind, child)
			} else {
				delete(d.objects, child)
			}
		}
	}
	delete(d.objects, h)
}

func (d *Driver) adapter(method string, h gfx.Adapter) (Adapter, bool) {
	for i, a := range d.handles {
		if a == h {
			return d.adapters[i], true
		}
	}
	d.violate("%s: unknown adapter#%d", method, h)
	return Adapter{}, false
}

// CreateInstance implements gfx.Driver.
func (d *Driver) CreateInstance(info gfx.InstanceInfo) (gfx.Instance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateInstance"); err != nil {
		return 0, err
	}
	d.instanceInfo = info
	return gfx.Instance(d.alloc("instance", true)), nil
}

// DestroyInstance implements gfx.Driver.
func (d *Driver) DestroyInstance(instance gfx.Instance) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyInstance")
	d.release("DestroyInstance", "instance", gfx.Handle(instance))
}

// CreateDebugMessenger implements gfx.Driver.
func (d *Driver) CreateDebugMessenger(instance gfx.Instance, sink gfx.DebugSink) (gfx.DebugMessenger, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateDebugMessenger"); err != nil {
		return 0, err
	}
	if !d.use("CreateDebugMessenger", "instance", gfx.Handle(instance)) {
		return 0, ErrInjected
	}
	if d.MissingDebug {
		return 0, gfx.ErrMissingEntryPoint
	}
	h := d.alloc("messenger", true, gfx.Handle(instance))
	d.objects[h].sink = sink
	return gfx.DebugMessenger(h), nil
}

// DestroyDebugMessenger implements gfx.Driver.
func (d *Driver) DestroyDebugMessenger(instance gfx.Instance, messenger gfx.DebugMessenger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyDebugMessenger")
	d.use("DestroyDebugMessenger", "instance", gfx.Handle(instance))
	d.release("DestroyDebugMessenger", "messenger", gfx.Handle(messenger))
}

// CreateSurface implements gfx.Driver.
func (d *Driver) CreateSurface(instance gfx.Instance, factory gfx.SurfaceFactory) (gfx.Surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateSurface"); err != nil {
		return 0, err
	}
	if !d.use("CreateSurface", "instance", gfx.Handle(instance)) {
		return 0, ErrInjected
	}
	native := d.Native
	if native == nil {
		native = instance
	}
	if _, err := factory(native); err != nil {
		return 0, err
	}
	return gfx.Surface(d.alloc("surface", true, gfx.Handle(instance))), nil
}

// DestroySurface implements gfx.Driver.
func (d *Driver) DestroySurface(instance gfx.Instance, surface gfx.Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroySurface")
	d.use("DestroySurface", "instance", gfx.Handle(instance))
	d.release("DestroySurface", "surface", gfx.Handle(surface))
}

// EnumerateAdapters implements gfx.Driver.
func (d *Driver) EnumerateAdapters(instance gfx.Instance) ([]gfx.Adapter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("EnumerateAdapters"); err != nil {
		return nil, err
	}
	d.use("EnumerateAdapters", "instance", gfx.Handle(instance))
	d.owner = gfx.Handle(instance)
	return append([]gfx.Adapter(nil), d.handles...), nil
}

// AdapterProperties implements gfx.Driver.
func (d *Driver) AdapterProperties(adapter gfx.Adapter) (gfx.AdapterProperties, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("AdapterProperties"); err != nil {
		return gfx.AdapterProperties{}, err
	}
	a, _ := d.adapter("AdapterProperties", adapter)
	return a.Properties, nil
}

// QueueFamilies implements gfx.Driver.
func (d *Driver) QueueFamilies(adapter gfx.Adapter) ([]gfx.QueueFamily, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("QueueFamilies"); err != nil {
		return nil, err
	}
	a, _ := d.adapter("QueueFamilies", adapter)
	return append([]gfx.QueueFamily(nil), a.Families...), nil
}

// SurfaceSupport implements gfx.Driver.
func (d *Driver) SurfaceSupport(adapter gfx.Adapter, family uint32, surface gfx.Surface) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("SurfaceSupport"); err != nil {
		return false, err
	}
	d.use("SurfaceSupport", "surface", gfx.Handle(surface))
	a, _ := d.adapter("SurfaceSupport", adapter)
	if int(family) >= len(a.Present) {
		return false, nil
	}
	return a.Present[family], nil
}

// DeviceExtensions implements gfx.Driver.
func (d *Driver) DeviceExtensions(adapter gfx.Adapter) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("DeviceExtensions"); err != nil {
		return nil, err
	}
	a, _ := d.adapter("DeviceExtensions", adapter)
	return append([]string(nil), a.Extensions...), nil
}

// SurfaceCapabilities implements gfx.Driver.
func (d *Driver) SurfaceCapabilities(adapter gfx.Adapter, surface gfx.Surface) (gfx.SurfaceCapabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("SurfaceCapabilities"); err != nil {
		return gfx.SurfaceCapabilities{}, err
	}
	d.use("SurfaceCapabilities", "surface", gfx.Handle(surface))
	a, _ := d.adapter("SurfaceCapabilities", adapter)
	return a.Capabilities, nil
}

// SurfaceFormats implements gfx.Driver.
func (d *Driver) SurfaceFormats(adapter gfx.Adapter, surface gfx.Surface) ([]gfx.SurfaceFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("SurfaceFormats"); err != nil {
		return nil, err
	}
	d.use("SurfaceFormats", "surface", gfx.Handle(surface))
	a, _ := d.adapter("SurfaceFormats", adapter)
	return append([]gfx.SurfaceFormat(nil), a.Formats...), nil
}

// PresentModes implements gfx.Driver.
func (d *Driver) PresentModes(adapter gfx.Adapter, surface gfx.Surface) ([]gfx.PresentMode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("PresentModes"); err != nil {
		return nil, err
	}
	d.use("PresentModes", "surface", gfx.Handle(surface))
	a, _ := d.adapter("PresentModes", adapter)
	return append([]gfx.PresentMode(nil), a.PresentModes...), nil
}

// SetSurface replaces the surface setup of the adapter at index i.
func (d *Driver) SetSurface(i int, caps gfx.SurfaceCapabilities, formats []gfx.SurfaceFormat, modes []gfx.PresentMode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapters[i].Capabilities = caps
	d.adapters[i].Formats = formats
	d.adapters[i].PresentModes = modes
}

// CreateDevice implements gfx.Driver.
func (d *Driver) CreateDevice(adapter gfx.Adapter, info gfx.DeviceInfo) (gfx.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateDevice"); err != nil {
		return 0, err
	}
	d.adapter("CreateDevice", adapter)
	d.use("CreateDevice", "instance", d.owner)
	d.deviceInfo = info
	return gfx.Device(d.alloc("device", true, d.owner)), nil
}

// DestroyDevice implements gfx.Driver.
func (d *Driver) DestroyDevice(device gfx.Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyDevice")
	d.release("DestroyDevice", "device", gfx.Handle(device))
}

// DeviceQueue implements gfx.Driver. Repeated requests for the
// same family and index return the same queue.
func (d *Driver) DeviceQueue(device gfx.Device, family, index uint32) (gfx.Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("DeviceQueue"); err != nil {
		return 0, err
	}
	if !d.use("DeviceQueue", "device", gfx.Handle(device)) {
		return 0, ErrInjected
	}
	kind := fmt.Sprintf("queue/%d/%d", family, index)
	for h, o := range d.objects {
		if o.kind == kind && len(o.parents) == 1 && o.parents[0] == gfx.Handle(device) {
			return gfx.Queue(h), nil
		}
	}
	return gfx.Queue(d.alloc(kind, false, gfx.Handle(device))), nil
}

// DeviceWaitIdle implements gfx.Driver.
func (d *Driver) DeviceWaitIdle(device gfx.Device) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("DeviceWaitIdle"); err != nil {
		return err
	}
	d.use("DeviceWaitIdle", "device", gfx.Handle(device))
	return nil
}

// CreateSwapchain implements gfx.Driver.
func (d *Driver) CreateSwapchain(device gfx.Device, info gfx.SwapchainInfo) (gfx.Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateSwapchain"); err != nil {
		return 0, err
	}
	d.use("CreateSwapchain", "device", gfx.Handle(device))
	d.use("CreateSwapchain", "surface", gfx.Handle(info.Surface))
	d.swapchains = append(d.swapchains, info)

	h := d.alloc("swapchain", true, gfx.Handle(device), gfx.Handle(info.Surface))
	for i := uint32(0); i < info.MinImageCount+d.ExtraImages; i++ {
		d.alloc("image", false, h)
	}
	return gfx.Swapchain(h), nil
}

// DestroySwapchain implements gfx.Driver.
func (d *Driver) DestroySwapchain(device gfx.Device, swapchain gfx.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroySwapchain")
	d.use("DestroySwapchain", "device", gfx.Handle(device))
	d.release("DestroySwapchain", "swapchain", gfx.Handle(swapchain))
}

// SwapchainImages implements gfx.Driver.
func (d *Driver) SwapchainImages(device gfx.Device, swapchain gfx.Swapchain) ([]gfx.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("SwapchainImages"); err != nil {
		return nil, err
	}
	d.use("SwapchainImages", "swapchain", gfx.Handle(swapchain))
	var images []gfx.Image
	for h, o := range d.objects {
		if o.kind == "image" && o.parents[0] == gfx.Handle(swapchain) {
			images = append(images, gfx.Image(h))
		}
	}
	sort.Slice(images, func(i, j int) bool { return images[i] < images[j] })
	return images, nil
}

// CreateImageView implements gfx.Driver. The view depends on the
// swapchain owning the image.
func (d *Driver) CreateImageView(device gfx.Device, info gfx.ImageViewInfo) (gfx.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateImageView"); err != nil {
		return 0, err
	}
	d.use("CreateImageView", "device", gfx.Handle(device))
	parents := []gfx.Handle{gfx.Handle(device)}
	if d.use("CreateImageView", "image", gfx.Handle(info.Image)) {
		parents = append(parents, d.objects[gfx.Handle(info.Image)].parents[0])
	}
	d.views = append(d.views, info)
	return gfx.ImageView(d.alloc("view", true, parents...)), nil
}

// DestroyImageView implements gfx.Driver.
func (d *Driver) DestroyImageView(device gfx.Device, view gfx.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyImageView")
	d.use("DestroyImageView", "device", gfx.Handle(device))
	d.release("DestroyImageView", "view", gfx.Handle(view))
}

// CreateRenderPass implements gfx.Driver.
func (d *Driver) CreateRenderPass(device gfx.Device, info gfx.RenderPassInfo) (gfx.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateRenderPass"); err != nil {
		return 0, err
	}
	d.use("CreateRenderPass", "device", gfx.Handle(device))
	d.renderPasses = append(d.renderPasses, info)
	return gfx.RenderPass(d.alloc("renderpass", true, gfx.Handle(device))), nil
}

// DestroyRenderPass implements gfx.Driver.
func (d *Driver) DestroyRenderPass(device gfx.Device, pass gfx.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyRenderPass")
	d.use("DestroyRenderPass", "device", gfx.Handle(device))
	d.release("DestroyRenderPass", "renderpass", gfx.Handle(pass))
}

// CreatePipelineLayout implements gfx.Driver.
func (d *Driver) CreatePipelineLayout(device gfx.Device, info gfx.PipelineLayoutInfo) (gfx.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreatePipelineLayout"); err != nil {
		return 0, err
	}
	d.use("CreatePipelineLayout", "device", gfx.Handle(device))
	d.layouts = append(d.layouts, info)
	return gfx.PipelineLayout(d.alloc("layout", true, gfx.Handle(device))), nil
}

// DestroyPipelineLayout implements gfx.Driver.
func (d *Driver) DestroyPipelineLayout(device gfx.Device, layout gfx.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyPipelineLayout")
	d.use("DestroyPipelineLayout", "device", gfx.Handle(device))
	d.release("DestroyPipelineLayout", "layout", gfx.Handle(layout))
}

// CreateShaderModule implements gfx.Driver.
func (d *Driver) CreateShaderModule(device gfx.Device, info gfx.ShaderModuleInfo) (gfx.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateShaderModule"); err != nil {
		return 0, err
	}
	d.use("CreateShaderModule", "device", gfx.Handle(device))
	d.shaderModules = append(d.shaderModules, info)
	return gfx.ShaderModule(d.alloc("shader", true, gfx.Handle(device))), nil
}

// DestroyShaderModule implements gfx.Driver.
func (d *Driver) DestroyShaderModule(device gfx.Device, module gfx.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyShaderModule")
	d.use("DestroyShaderModule", "device", gfx.Handle(device))
	d.release("DestroyShaderModule", "shader", gfx.Handle(module))
}
