// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"github.com/devblok/vkboot/gfx"
)

// Viewport maps normalized device coordinates to framebuffer pixels.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Scissor limits rasterization to a rectangle.
type Scissor struct {
	X, Y   int32
	Extent gfx.Extent2D
}

// InputAssemblyState describes primitive assembly.
type InputAssemblyState struct {
	Topology         gfx.PrimitiveTopology
	PrimitiveRestart bool
}

// RasterizationState describes polygon rasterization.
type RasterizationState struct {
	PolygonMode gfx.PolygonMode
	CullMode    gfx.CullMode
	FrontFace   gfx.FrontFace
	LineWidth   float32
	DepthClamp  bool
}

// MultisampleState describes per-pixel sampling.
type MultisampleState struct {
	Samples          gfx.SampleCount
	SampleShading    bool
	MinSampleShading float32
}

// ColorBlendState describes blending into the color attachment.
type ColorBlendState struct {
	Enable         bool
	SrcColorFactor gfx.BlendFactor
	DstColorFactor gfx.BlendFactor
	ColorOp        gfx.BlendOp
	SrcAlphaFactor gfx.BlendFactor
	DstAlphaFactor gfx.BlendFactor
	AlphaOp        gfx.BlendOp
}

// PipelineDescriptor is the fixed function state a graphics
// pipeline is created from.
type PipelineDescriptor struct {
	RenderPass gfx.RenderPass
	Layout     gfx.PipelineLayout

	Viewport      Viewport
	Scissor       Scissor
	InputAssembly InputAssemblyState
	Rasterization RasterizationState
	Multisample   MultisampleState
	ColorBlend    ColorBlendState

	// Generation of the swap chain the descriptor was derived from.
	Generation uint64
}

// UpdatedSettings are the settings that can change after the pipeline was built.
type UpdatedSettings struct {
	// ViewportSize overrides the viewport size. Zero components
	// follow the swap chain extent.
	ViewportSize glm.Vec2
	LineWidth    float32
}

// PipelineBuilder owns the render pass and pipeline layout
// bound to a swap chain.
type PipelineBuilder struct {
	sc    *SwapChain
	log   logrus.FieldLogger
	style PipelineConfiguration

	attachmentFormat gfx.Format
	viewportSize     glm.Vec2
	desc             PipelineDescriptor
	destroyed        bool
}

// NewPipelineBuilder builds the render pass and pipeline layout for sc.
// On failure nothing created here is left behind.
func NewPipelineBuilder(sc *SwapChain, style PipelineConfiguration) (*PipelineBuilder, error) {
	if err := sc.Context().Alive(); err != nil {
		return nil, err
	}
	switch {
	case sc.Destroyed():
		return nil, Wrap(ErrSwapChainCreation, nil, "build pipeline against destroyed swap chain")
	case sc.Released():
		return nil, Wrap(ErrSwapChainCreation, nil, "build pipeline against released swap chain")
	}
	if !style.MSAASamples.Valid() {
		style.MSAASamples = gfx.SampleCount1
	}
	if style.LineWidth <= 0 {
		style.LineWidth = 1.0
	}

	pb := &PipelineBuilder{
		sc:    sc,
		log:   sc.Context().Logger().WithField("component", "pipeline"),
		style: style,
	}

	pass, err := pb.createRenderPass(sc.Format())
	if err != nil {
		return nil, err
	}

	drv, device := sc.Context().Driver(), sc.Context().Device()
	layout, err := drv.CreatePipelineLayout(device, gfx.PipelineLayoutInfo{})
	if err != nil {
		drv.DestroyRenderPass(device, pass)
		return nil, Wrap(ErrPipelineLayoutCreation, err, "create pipeline layout")
	}

	pb.attachmentFormat = sc.Format()
	pb.desc = PipelineDescriptor{
		RenderPass: pass,
		Layout:     layout,
		InputAssembly: InputAssemblyState{
			Topology: gfx.PrimitiveTopologyTriangleList,
		},
		Rasterization: RasterizationState{
			PolygonMode: style.PolygonMode,
			CullMode:    style.CullMode,
			FrontFace:   style.FrontFace,
			LineWidth:   style.LineWidth,
		},
		Multisample: MultisampleState{
			Samples:          pb.samples(),
			SampleShading:    style.MSAAEnabled,
			MinSampleShading: 1.0,
		},
		ColorBlend: ColorBlendState{
			Enable:         true,
			SrcColorFactor: gfx.BlendFactorSrcAlpha,
			DstColorFactor: gfx.BlendFactorOneMinusSrcAlpha,
			ColorOp:        gfx.BlendOpAdd,
			SrcAlphaFactor: gfx.BlendFactorOne,
			DstAlphaFactor: gfx.BlendFactorZero,
			AlphaOp:        gfx.BlendOpAdd,
		},
	}
	pb.updateViewport()

	pb.log.WithFields(logrus.Fields{
		"format":  pb.attachmentFormat,
		"samples": pb.desc.Multisample.Samples,
		"extent":  sc.Extent(),
	}).Info("pipeline state built")
	return pb, nil
}

func (pb *PipelineBuilder) samples() gfx.SampleCount {
	if pb.style.MSAAEnabled {
		return pb.style.MSAASamples
	}
	return gfx.SampleCount1
}

func (pb *PipelineBuilder) createRenderPass(format gfx.Format) (gfx.RenderPass, error) {
	drv, device := pb.sc.Context().Driver(), pb.sc.Context().Device()
	pass, err := drv.CreateRenderPass(device, gfx.RenderPassInfo{
		Attachments: []gfx.Attachment{{
			Format:         format,
			Samples:        pb.samples(),
			LoadOp:         gfx.LoadOpClear,
			StoreOp:        gfx.StoreOpStore,
			StencilLoadOp:  gfx.LoadOpDontCare,
			StencilStoreOp: gfx.StoreOpDontCare,
			InitialLayout:  gfx.ImageLayoutUndefined,
			FinalLayout:    gfx.ImageLayoutPresentSrc,
		}},
		Subpasses: []gfx.Subpass{{
			ColorAttachments: []gfx.AttachmentRef{{
				Attachment: 0,
				Layout:     gfx.ImageLayoutColorAttachmentOptimal,
			}},
		}},
	})
	if err != nil {
		return 0, Wrap(ErrRenderPassCreation, err, "create render pass for %s", format)
	}
	return pass, nil
}

// updateViewport derives viewport and scissor from the swap chain extent.
func (pb *PipelineBuilder) updateViewport() {
	extent := pb.sc.Extent()
	full := glm.Vec2{float32(extent.Width), float32(extent.Height)}

	size := full
	if pb.viewportSize.X() > 0 {
		size[0] = glm.Clamp(pb.viewportSize.X(), 1, full.X())
	}
	if pb.viewportSize.Y() > 0 {
		size[1] = glm.Clamp(pb.viewportSize.Y(), 1, full.Y())
	}

	pb.desc.Viewport = Viewport{
		Width:    size.X(),
		Height:   size.Y(),
		MinDepth: 0,
		MaxDepth: 1,
	}
	pb.desc.Scissor = Scissor{Extent: extent}
	pb.desc.Generation = pb.sc.Generation()
}

// Reconfigure applies updated settings and follows the current swap chain
// extent. The render pass is only recreated when the image format changed.
func (pb *PipelineBuilder) Reconfigure(settings UpdatedSettings) error {
	if pb.destroyed {
		return ErrContextDestroyed
	}
	if err := pb.sc.Context().Alive(); err != nil {
		return err
	}
	if pb.sc.Released() {
		return Wrap(ErrSwapChainCreation, nil, "reconfigure against released swap chain")
	}

	if format := pb.sc.Format(); format != pb.attachmentFormat {
		pass, err := pb.createRenderPass(format)
		if err != nil {
			return err
		}
		pb.sc.Context().Driver().DestroyRenderPass(pb.sc.Context().Device(), pb.desc.RenderPass)
		pb.desc.RenderPass = pass
		pb.log.WithFields(logrus.Fields{
			"from": pb.attachmentFormat,
			"to":   format,
		}).Debug("render pass recreated")
		pb.attachmentFormat = format
	}

	pb.viewportSize = settings.ViewportSize
	if settings.LineWidth > 0 {
		pb.style.LineWidth = settings.LineWidth
		pb.desc.Rasterization.LineWidth = settings.LineWidth
	}
	pb.updateViewport()
	return nil
}

// Stale reports whether the swap chain was recreated since the
// descriptor was last derived from it.
func (pb *PipelineBuilder) Stale() bool {
	return pb.desc.Generation != pb.sc.Generation()
}

// Descriptor returns the current pipeline state.
func (pb *PipelineBuilder) Descriptor() PipelineDescriptor {
	return pb.desc
}

// RenderPass returns the render pass handle.
func (pb *PipelineBuilder) RenderPass() gfx.RenderPass {
	return pb.desc.RenderPass
}

// Layout returns the pipeline layout handle.
func (pb *PipelineBuilder) Layout() gfx.PipelineLayout {
	return pb.desc.Layout
}

// Destroy releases the pipeline layout and the render pass.
func (pb *PipelineBuilder) Destroy() {
	if pb.destroyed {
		return
	}
	pb.destroyed = true
	if err := pb.sc.Context().Alive(); err != nil {
		pb.log.WithError(err).Error("pipeline outlived its device context")
		return
	}
	drv, device := pb.sc.Context().Driver(), pb.sc.Context().Device()
	drv.DestroyPipelineLayout(device, pb.desc.Layout)
	drv.DestroyRenderPass(device, pb.desc.RenderPass)
}
