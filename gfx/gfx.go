// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines the graphics objects, descriptors and the driver
// contract that rendering backends must implement.
package gfx

import "errors"

// ErrMissingEntryPoint is returned by a Driver when an
// extension function could not be resolved at run time.
var ErrMissingEntryPoint = errors.New("gfx: entry point not available")

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// SurfaceFactory creates a native presentation surface for the native
// instance handle given to it and returns the raw surface handle.
type SurfaceFactory func(instance interface{}) (uintptr, error)

// Driver is the set of graphics API calls the rendering context is built from.
// Every object created through a Driver must be destroyed through it as well,
// and objects must be destroyed before the object they were created from.
type Driver interface {
	CreateInstance(info InstanceInfo) (Instance, error)
	DestroyInstance(instance Instance)

	// CreateDebugMessenger attaches sink to the instance diagnostics.
	// Returns ErrMissingEntryPoint when the debug extension is not loaded.
	CreateDebugMessenger(instance Instance, sink DebugSink) (DebugMessenger, error)
	DestroyDebugMessenger(instance Instance, messenger DebugMessenger)

	CreateSurface(instance Instance, factory SurfaceFactory) (Surface, error)
	DestroySurface(instance Instance, surface Surface)

	// EnumerateAdapters returns the adapters in driver order.
	EnumerateAdapters(instance Instance) ([]Adapter, error)
	AdapterProperties(adapter Adapter) (AdapterProperties, error)
	QueueFamilies(adapter Adapter) ([]QueueFamily, error)
	SurfaceSupport(adapter Adapter, family uint32, surface Surface) (bool, error)
	DeviceExtensions(adapter Adapter) ([]string, error)
	SurfaceCapabilities(adapter Adapter, surface Surface) (SurfaceCapabilities, error)
	SurfaceFormats(adapter Adapter, surface Surface) ([]SurfaceFormat, error)
	PresentModes(adapter Adapter, surface Surface) ([]PresentMode, error)

	CreateDevice(adapter Adapter, info DeviceInfo) (Device, error)
	DestroyDevice(device Device)
	DeviceQueue(device Device, family, index uint32) (Queue, error)
	DeviceWaitIdle(device Device) error

	CreateSwapchain(device Device, info SwapchainInfo) (Swapchain, error)
	DestroySwapchain(device Device, swapchain Swapchain)

	// SwapchainImages returns images owned by the swapchain,
	// they are released together with it.
	SwapchainImages(device Device, swapchain Swapchain) ([]Image, error)

	CreateImageView(device Device, info ImageViewInfo) (ImageView, error)
	DestroyImageView(device Device, view ImageView)

	CreateRenderPass(device Device, info RenderPassInfo) (RenderPass, error)
	DestroyRenderPass(device Device, pass RenderPass)

	CreatePipelineLayout(device Device, info PipelineLayoutInfo) (PipelineLayout, error)
	DestroyPipelineLayout(device Device, layout PipelineLayout)

	CreateShaderModule(device Device, info ShaderModuleInfo) (ShaderModule, error)
	DestroyShaderModule(device Device, module ShaderModule)
}

// InstanceInfo describes a graphics API instance.
type InstanceInfo struct {
	ApplicationName    string
	ApplicationVersion uint32
	EngineName         string
	EngineVersion      uint32
	APIVersion         uint32

	Extensions []string
	Layers     []string

	// Debug, when set, receives diagnostics emitted
	// while the instance itself is being created.
	Debug DebugSink
}

// QueueInfo requests queues from a single family.
type QueueInfo struct {
	Family     uint32
	Priorities []float32
}

// DeviceInfo describes a logical device.
type DeviceInfo struct {
	Queues     []QueueInfo
	Extensions []string
	Layers     []string
}

// SwapchainInfo describes a presentation swapchain.
type SwapchainInfo struct {
	Surface        Surface
	MinImageCount  uint32
	Format         Format
	ColorSpace     ColorSpace
	Extent         Extent2D
	SharingMode    SharingMode
	QueueFamilies  []uint32
	PreTransform   SurfaceTransform
	CompositeAlpha CompositeAlpha
	PresentMode    PresentMode
	Clipped        bool
}

// ImageViewInfo describes a 2D color view of an image.
type ImageViewInfo struct {
	Image       Image
	Format      Format
	MipLevels   uint32
	ArrayLayers uint32
}

// Attachment describes a single render pass attachment.
type Attachment struct {
	Format         Format
	Samples        SampleCount
	LoadOp         LoadOp
	StoreOp        StoreOp
	StencilLoadOp  LoadOp
	StencilStoreOp StoreOp
	InitialLayout  ImageLayout
	FinalLayout    ImageLayout
}

// AttachmentRef references an attachment from a subpass.
type AttachmentRef struct {
	Attachment uint32
	Layout     ImageLayout
}

// Subpass describes a graphics subpass.
type Subpass struct {
	ColorAttachments []AttachmentRef
}

// RenderPassInfo describes a render pass.
type RenderPassInfo struct {
	Attachments []Attachment
	Subpasses   []Subpass
}

// PushConstantRange describes a push constant block.
type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

// PipelineLayoutInfo describes a pipeline layout.
type PipelineLayoutInfo struct {
	PushConstants []PushConstantRange
}

// ShaderModuleInfo holds compiled shader bytecode.
type ShaderModuleInfo struct {
	Code []uint32
}
