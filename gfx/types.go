// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import (
	"fmt"
	"math"
	"strings"
)

// Object handles. The zero value is the null handle.
type (
	Instance       Handle
	DebugMessenger Handle
	Surface        Handle
	Adapter        Handle
	Device         Handle
	Queue          Handle
	Swapchain      Handle
	Image          Handle
	ImageView      Handle
	RenderPass     Handle
	PipelineLayout Handle
	ShaderModule   Handle
)

// UndefinedExtent marks a surface extent that is decided by the swapchain.
const UndefinedExtent = math.MaxUint32

// Extent2D is a two dimensional size in pixels.
type Extent2D struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Format of image texels. Values follow the Vulkan numbering.
type Format uint32

// Formats in use.
const (
	FormatUndefined     Format = 0
	FormatR8G8B8A8Unorm Format = 37
	FormatR8G8B8A8SRGB  Format = 43
	FormatB8G8R8A8Unorm Format = 44
	FormatB8G8R8A8SRGB  Format = 50
)

func (f Format) String() string {
	switch f {
	case FormatUndefined:
		return "undefined"
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatR8G8B8A8SRGB:
		return "R8G8B8A8_SRGB"
	case FormatB8G8R8A8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatB8G8R8A8SRGB:
		return "B8G8R8A8_SRGB"
	}
	return fmt.Sprintf("Format(%d)", uint32(f))
}

// ColorSpace of presented images.
type ColorSpace uint32

// ColorSpaceSRGBNonlinear is the standard sRGB color space.
const ColorSpaceSRGBNonlinear ColorSpace = 0

// SurfaceFormat pairs a format with a color space.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// PresentMode decides how images are queued for presentation.
type PresentMode uint32

// Present modes.
const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFIFO        PresentMode = 2
	PresentModeFIFORelaxed PresentMode = 3
)

func (p PresentMode) String() string {
	switch p {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFIFO:
		return "fifo"
	case PresentModeFIFORelaxed:
		return "fifo-relaxed"
	}
	return fmt.Sprintf("PresentMode(%d)", uint32(p))
}

// SurfaceTransform flags.
type SurfaceTransform uint32

// SurfaceTransformIdentity leaves presented images untouched.
const SurfaceTransformIdentity SurfaceTransform = 0x1

// CompositeAlpha flags.
type CompositeAlpha uint32

// Composite alpha modes.
const (
	CompositeAlphaOpaque         CompositeAlpha = 0x1
	CompositeAlphaPreMultiplied  CompositeAlpha = 0x2
	CompositeAlphaPostMultiplied CompositeAlpha = 0x4
	CompositeAlphaInherit        CompositeAlpha = 0x8
)

// SurfaceCapabilities are the bounds a surface places on swapchains.
type SurfaceCapabilities struct {
	MinImageCount           uint32
	MaxImageCount           uint32
	CurrentExtent           Extent2D
	MinImageExtent          Extent2D
	MaxImageExtent          Extent2D
	CurrentTransform        SurfaceTransform
	SupportedCompositeAlpha CompositeAlpha
}

// SharingMode of images shared between queue families.
type SharingMode uint32

// Sharing modes.
const (
	SharingModeExclusive  SharingMode = 0
	SharingModeConcurrent SharingMode = 1
)

func (s SharingMode) String() string {
	if s == SharingModeConcurrent {
		return "concurrent"
	}
	return "exclusive"
}

// QueueFlags describe what a queue family can do.
type QueueFlags uint32

// Queue capabilities.
const (
	QueueGraphics QueueFlags = 0x1
	QueueCompute  QueueFlags = 0x2
	QueueTransfer QueueFlags = 0x4
)

// QueueFamily describes a group of queues sharing capabilities.
type QueueFamily struct {
	Flags QueueFlags
	Count uint32
}

// AdapterType classifies a physical adapter.
type AdapterType uint32

// Adapter classes.
const (
	AdapterOther AdapterType = iota
	AdapterIntegrated
	AdapterDiscrete
	AdapterVirtual
	AdapterCPU
)

func (a AdapterType) String() string {
	switch a {
	case AdapterIntegrated:
		return "integrated"
	case AdapterDiscrete:
		return "discrete"
	case AdapterVirtual:
		return "virtual"
	case AdapterCPU:
		return "cpu"
	}
	return "other"
}

// AdapterProperties identify a physical adapter.
type AdapterProperties struct {
	Name          string
	VendorID      uint32
	DeviceID      uint32
	DriverVersion uint32
	APIVersion    uint32
	Type          AdapterType
}

// LoadOp decides attachment contents at the start of a pass.
type LoadOp uint32

// Load operations.
const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

// StoreOp decides attachment contents at the end of a pass.
type StoreOp uint32

// Store operations.
const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

// ImageLayout of an image in memory.
type ImageLayout uint32

// Image layouts.
const (
	ImageLayoutUndefined              ImageLayout = 0
	ImageLayoutColorAttachmentOptimal ImageLayout = 2
	ImageLayoutPresentSrc             ImageLayout = 1000001002
)

// ShaderStage flags.
type ShaderStage uint32

// Shader stages.
const (
	ShaderStageVertex   ShaderStage = 0x1
	ShaderStageFragment ShaderStage = 0x10
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vert"
	case ShaderStageFragment:
		return "frag"
	}
	return fmt.Sprintf("ShaderStage(%d)", uint32(s))
}

// PrimitiveTopology decides how vertices are assembled.
type PrimitiveTopology uint32

// PrimitiveTopologyTriangleList assembles independent triangles.
const PrimitiveTopologyTriangleList PrimitiveTopology = 3

// BlendFactor weighs blend inputs.
type BlendFactor uint32

// Blend factors.
const (
	BlendFactorZero             BlendFactor = 0
	BlendFactorOne              BlendFactor = 1
	BlendFactorSrcAlpha         BlendFactor = 6
	BlendFactorOneMinusSrcAlpha BlendFactor = 7
)

// BlendOp combines weighted blend inputs.
type BlendOp uint32

// BlendOpAdd sums source and destination.
const BlendOpAdd BlendOp = 0

// PolygonMode decides how polygons are rasterized.
type PolygonMode uint32

// Polygon modes.
const (
	PolygonModeFill PolygonMode = iota
	PolygonModeLine
	PolygonModePoint
)

// CullMode decides which faces are discarded.
type CullMode uint32

// Cull modes.
const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
	CullModeFrontAndBack
)

// FrontFace decides which winding is front facing.
type FrontFace uint32

// Front face windings.
const (
	FrontFaceCounterClockwise FrontFace = iota
	FrontFaceClockwise
)

// SampleCount is the number of samples per pixel.
type SampleCount uint32

// Sample counts.
const (
	SampleCount1  SampleCount = 1
	SampleCount2  SampleCount = 2
	SampleCount4  SampleCount = 4
	SampleCount8  SampleCount = 8
	SampleCount16 SampleCount = 16
	SampleCount32 SampleCount = 32
	SampleCount64 SampleCount = 64
)

// Valid reports whether s is a power of two in the supported range.
func (s SampleCount) Valid() bool {
	return s >= SampleCount1 && s <= SampleCount64 && s&(s-1) == 0
}

var (
	polygonModes = map[string]PolygonMode{"fill": PolygonModeFill, "line": PolygonModeLine, "point": PolygonModePoint}
	cullModes    = map[string]CullMode{"none": CullModeNone, "front": CullModeFront, "back": CullModeBack, "front-and-back": CullModeFrontAndBack}
	frontFaces   = map[string]FrontFace{"ccw": FrontFaceCounterClockwise, "counter-clockwise": FrontFaceCounterClockwise, "cw": FrontFaceClockwise, "clockwise": FrontFaceClockwise}
)

// ParsePolygonMode parses fill, line or point.
func ParsePolygonMode(s string) (PolygonMode, error) {
	if m, ok := polygonModes[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("gfx: unknown polygon mode %q", s)
}

// ParseCullMode parses none, front, back or front-and-back.
func ParseCullMode(s string) (CullMode, error) {
	if m, ok := cullModes[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("gfx: unknown cull mode %q", s)
}

// ParseFrontFace parses ccw or cw.
func ParseFrontFace(s string) (FrontFace, error) {
	if f, ok := frontFaces[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("gfx: unknown front face %q", s)
}
