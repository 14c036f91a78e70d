// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/vkboot/core"
	"github.com/devblok/vkboot/gfx"
	"github.com/devblok/vkboot/gfx/gfxtest"
)

func newPipeline(c *qt.C, drv *gfxtest.Driver, style core.PipelineConfiguration) (*core.DeviceContext, *core.SwapChain, *core.PipelineBuilder) {
	ctx, sc := newSwapChain(c, drv)
	pb, err := core.NewPipelineBuilder(sc, style)
	c.Assert(err, qt.IsNil)
	return ctx, sc, pb
}

func TestPipelineBuilderRenderPass(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc, pb := newPipeline(c, drv, testConfig().Pipeline)

	passes := drv.RenderPassInfos()
	c.Assert(passes, qt.HasLen, 1)
	c.Assert(passes[0], qt.DeepEquals, gfx.RenderPassInfo{
		Attachments: []gfx.Attachment{{
			Format:         gfx.FormatB8G8R8A8SRGB,
			Samples:        gfx.SampleCount1,
			LoadOp:         gfx.LoadOpClear,
			StoreOp:        gfx.StoreOpStore,
			StencilLoadOp:  gfx.LoadOpDontCare,
			StencilStoreOp: gfx.StoreOpDontCare,
			InitialLayout:  gfx.ImageLayoutUndefined,
			FinalLayout:    gfx.ImageLayoutPresentSrc,
		}},
		Subpasses: []gfx.Subpass{{
			ColorAttachments: []gfx.AttachmentRef{{Attachment: 0, Layout: gfx.ImageLayoutColorAttachmentOptimal}},
		}},
	})
	c.Assert(drv.PipelineLayoutInfos(), qt.DeepEquals, []gfx.PipelineLayoutInfo{{}})

	desc := pb.Descriptor()
	c.Assert(desc.RenderPass, qt.Equals, pb.RenderPass())
	c.Assert(desc.Layout, qt.Equals, pb.Layout())
	c.Assert(desc.InputAssembly.Topology, qt.Equals, gfx.PrimitiveTopologyTriangleList)
	c.Assert(desc.Rasterization, qt.Equals, core.RasterizationState{
		PolygonMode: gfx.PolygonModeFill,
		CullMode:    gfx.CullModeBack,
		FrontFace:   gfx.FrontFaceClockwise,
		LineWidth:   1,
	})
	c.Assert(desc.Multisample.Samples, qt.Equals, gfx.SampleCount1)
	c.Assert(desc.ColorBlend.Enable, qt.IsTrue)
	c.Assert(desc.ColorBlend.SrcColorFactor, qt.Equals, gfx.BlendFactorSrcAlpha)
	c.Assert(desc.ColorBlend.DstColorFactor, qt.Equals, gfx.BlendFactorOneMinusSrcAlpha)
	c.Assert(desc.Viewport, qt.Equals, core.Viewport{Width: 800, Height: 600, MaxDepth: 1})
	c.Assert(desc.Scissor, qt.Equals, core.Scissor{Extent: gfx.Extent2D{Width: 800, Height: 600}})
	c.Assert(desc.Generation, qt.Equals, sc.Generation())

	pb.Destroy()
	sc.Destroy()
	ctx.Destroy()
	assertClean(c, drv)
}

func TestPipelineBuilderMultisample(t *testing.T) {
	c := qt.New(t)

	style := testConfig().Pipeline
	style.MSAAEnabled = true
	style.MSAASamples = gfx.SampleCount4

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc, pb := newPipeline(c, drv, style)
	defer ctx.Destroy()
	defer sc.Destroy()
	defer pb.Destroy()

	c.Assert(drv.RenderPassInfos()[0].Attachments[0].Samples, qt.Equals, gfx.SampleCount4)
	c.Assert(pb.Descriptor().Multisample, qt.Equals, core.MultisampleState{
		Samples:          gfx.SampleCount4,
		SampleShading:    true,
		MinSampleShading: 1,
	})
}

func TestPipelineBuilderSanitizesStyle(t *testing.T) {
	c := qt.New(t)

	style := testConfig().Pipeline
	style.MSAAEnabled = true
	style.MSAASamples = 3
	style.LineWidth = 0

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc, pb := newPipeline(c, drv, style)
	defer ctx.Destroy()
	defer sc.Destroy()
	defer pb.Destroy()

	c.Assert(pb.Descriptor().Multisample.Samples, qt.Equals, gfx.SampleCount1)
	c.Assert(pb.Descriptor().Rasterization.LineWidth, qt.Equals, float32(1))
}

func TestPipelineBuilderLayoutFailure(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc := newSwapChain(c, drv)
	drv.FailOn("CreatePipelineLayout", 0, errBoom)

	pb, err := core.NewPipelineBuilder(sc, testConfig().Pipeline)
	c.Assert(pb, qt.IsNil)
	c.Assert(err, qt.ErrorIs, core.ErrPipelineLayoutCreation)
	c.Assert(err, qt.ErrorIs, errBoom)
	c.Assert(count(drv.Calls(), "DestroyRenderPass"), qt.Equals, 1)

	sc.Destroy()
	ctx.Destroy()
	assertClean(c, drv)
}

func TestPipelineBuilderRenderPassFailure(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc := newSwapChain(c, drv)
	drv.FailOn("CreateRenderPass", 0, nil)

	_, err := core.NewPipelineBuilder(sc, testConfig().Pipeline)
	c.Assert(err, qt.ErrorIs, core.ErrRenderPassCreation)
	c.Assert(err, qt.ErrorIs, gfxtest.ErrInjected)
	c.Assert(count(drv.Calls(), "CreatePipelineLayout"), qt.Equals, 0)

	sc.Destroy()
	ctx.Destroy()
	assertClean(c, drv)
}

func TestPipelineBuilderReconfigure(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc, pb := newPipeline(c, drv, testConfig().Pipeline)
	defer ctx.Destroy()
	defer sc.Destroy()
	defer pb.Destroy()

	pass := pb.RenderPass()
	err := pb.Reconfigure(core.UpdatedSettings{ViewportSize: glm.Vec2{400, 5000}, LineWidth: 2.5})
	c.Assert(err, qt.IsNil)

	desc := pb.Descriptor()
	c.Assert(desc.Viewport.Width, qt.Equals, float32(400))
	c.Assert(desc.Viewport.Height, qt.Equals, float32(600))
	c.Assert(desc.Rasterization.LineWidth, qt.Equals, float32(2.5))
	c.Assert(desc.RenderPass, qt.Equals, pass)
	c.Assert(count(drv.Calls(), "CreateRenderPass"), qt.Equals, 1)

	// zero settings restore the full extent and keep the line width
	c.Assert(pb.Reconfigure(core.UpdatedSettings{}), qt.IsNil)
	desc = pb.Descriptor()
	c.Assert(desc.Viewport.Width, qt.Equals, float32(800))
	c.Assert(desc.Rasterization.LineWidth, qt.Equals, float32(2.5))
}

func TestPipelineBuilderFollowsSwapChain(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc, pb := newPipeline(c, drv, testConfig().Pipeline)

	drv.SetSurface(0, resizableSurface(),
		[]gfx.SurfaceFormat{{Format: gfx.FormatB8G8R8A8Unorm, ColorSpace: gfx.ColorSpaceSRGBNonlinear}},
		[]gfx.PresentMode{gfx.PresentModeFIFO})
	c.Assert(sc.Recreate(1280, 720), qt.IsNil)
	c.Assert(pb.Stale(), qt.IsTrue)

	old := pb.RenderPass()
	mark := len(drv.Calls())
	c.Assert(pb.Reconfigure(core.UpdatedSettings{}), qt.IsNil)
	c.Assert(pb.Stale(), qt.IsFalse)

	calls := drv.Calls()[mark:]
	c.Assert(calls, qt.DeepEquals, []string{"CreateRenderPass", "DestroyRenderPass"})
	c.Assert(pb.RenderPass(), qt.Not(qt.Equals), old)
	c.Assert(drv.RenderPassInfos()[1].Attachments[0].Format, qt.Equals, gfx.FormatB8G8R8A8Unorm)
	c.Assert(pb.Descriptor().Scissor.Extent, qt.Equals, gfx.Extent2D{Width: 1280, Height: 720})

	pb.Destroy()
	sc.Destroy()
	ctx.Destroy()
	assertClean(c, drv)
}

func TestPipelineBuilderFormatChangeFailureKeepsPass(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc, pb := newPipeline(c, drv, testConfig().Pipeline)

	drv.SetSurface(0, gfxtest.Discrete("").Capabilities,
		[]gfx.SurfaceFormat{{Format: gfx.FormatR8G8B8A8SRGB, ColorSpace: gfx.ColorSpaceSRGBNonlinear}},
		[]gfx.PresentMode{gfx.PresentModeFIFO})
	c.Assert(sc.Recreate(800, 600), qt.IsNil)

	old := pb.RenderPass()
	drv.FailOn("CreateRenderPass", 0, errBoom)
	err := pb.Reconfigure(core.UpdatedSettings{})
	c.Assert(err, qt.ErrorIs, core.ErrRenderPassCreation)
	c.Assert(pb.RenderPass(), qt.Equals, old)
	c.Assert(pb.Stale(), qt.IsTrue)

	pb.Destroy()
	sc.Destroy()
	ctx.Destroy()
	assertClean(c, drv)
}

func TestPipelineBuilderReleasedSwapChain(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc, pb := newPipeline(c, drv, testConfig().Pipeline)
	drv.FailOn("CreateSwapchain", 2, errBoom)
	c.Assert(sc.Recreate(800, 600), qt.Not(qt.IsNil))

	err := pb.Reconfigure(core.UpdatedSettings{})
	c.Assert(err, qt.ErrorIs, core.ErrSwapChainCreation)

	pb.Destroy()
	c.Assert(pb.Reconfigure(core.UpdatedSettings{}), qt.ErrorIs, core.ErrContextDestroyed)
	sc.Destroy()
	ctx.Destroy()
	assertClean(c, drv)
}

func TestNewPipelineBuilderRejectsReleasedSwapChain(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc := newSwapChain(c, drv)
	drv.FailOn("CreateSwapchain", 2, errBoom)
	c.Assert(sc.Recreate(800, 600), qt.ErrorIs, core.ErrSwapChainCreation)
	c.Assert(sc.Released(), qt.IsTrue)

	pb, err := core.NewPipelineBuilder(sc, testConfig().Pipeline)
	c.Assert(err, qt.ErrorIs, core.ErrSwapChainCreation)
	c.Assert(err, qt.ErrorMatches, `build pipeline against released swap chain: .*`)
	c.Assert(pb, qt.IsNil)
	c.Assert(count(drv.Calls(), "CreateRenderPass"), qt.Equals, 0)
	c.Assert(count(drv.Calls(), "CreatePipelineLayout"), qt.Equals, 0)

	sc.Destroy()
	ctx.Destroy()
	assertClean(c, drv)
}

func TestNewPipelineBuilderRejectsDestroyedSwapChain(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc := newSwapChain(c, drv)
	sc.Destroy()

	pb, err := core.NewPipelineBuilder(sc, testConfig().Pipeline)
	c.Assert(err, qt.ErrorIs, core.ErrSwapChainCreation)
	c.Assert(err, qt.ErrorMatches, `build pipeline against destroyed swap chain: .*`)
	c.Assert(pb, qt.IsNil)
	c.Assert(count(drv.Calls(), "CreateRenderPass"), qt.Equals, 0)

	ctx.Destroy()
	assertClean(c, drv)
}

func TestPipelineBuilderDestroyOrder(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc, pb := newPipeline(c, drv, testConfig().Pipeline)
	defer ctx.Destroy()
	defer sc.Destroy()

	mark := len(drv.Calls())
	pb.Destroy()
	pb.Destroy()
	c.Assert(drv.Calls()[mark:], qt.DeepEquals, []string{"DestroyPipelineLayout", "DestroyRenderPass"})
}
