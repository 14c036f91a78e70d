// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vkboot/core"
	"github.com/devblok/vkboot/gfx"
	"github.com/devblok/vkboot/gfx/gfxtest"
)

func resizableSurface() gfx.SurfaceCapabilities {
	caps := gfxtest.Discrete("").Capabilities
	caps.CurrentExtent = gfx.Extent2D{Width: gfx.UndefinedExtent, Height: gfx.UndefinedExtent}
	return caps
}

func TestSwapChainCreate(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc := newSwapChain(c, drv)

	desc := sc.Descriptor()
	c.Assert(desc.Format, qt.Equals, gfx.SurfaceFormat{Format: gfx.FormatB8G8R8A8SRGB, ColorSpace: gfx.ColorSpaceSRGBNonlinear})
	c.Assert(desc.PresentMode, qt.Equals, gfx.PresentModeMailbox)
	c.Assert(desc.Extent, qt.Equals, gfx.Extent2D{Width: 800, Height: 600})
	c.Assert(desc.ImageCount, qt.Equals, uint32(3))
	c.Assert(desc.SharingMode, qt.Equals, gfx.SharingModeExclusive)
	c.Assert(desc.QueueFamilies, qt.HasLen, 0)
	c.Assert(sc.Generation(), qt.Equals, uint64(1))
	c.Assert(sc.Released(), qt.IsFalse)

	infos := drv.SwapchainInfos()
	c.Assert(infos, qt.HasLen, 1)
	c.Assert(infos[0].Surface, qt.Equals, ctx.Surface().Handle())
	c.Assert(infos[0].MinImageCount, qt.Equals, uint32(3))
	c.Assert(infos[0].Clipped, qt.IsTrue)
	c.Assert(infos[0].CompositeAlpha, qt.Equals, gfx.CompositeAlphaOpaque)
	c.Assert(infos[0].PreTransform, qt.Equals, gfx.SurfaceTransformIdentity)

	images := sc.Images()
	c.Assert(images, qt.HasLen, 3)
	views := drv.ImageViewInfos()
	c.Assert(views, qt.HasLen, 3)
	for i, v := range views {
		c.Check(v.Image, qt.Equals, images[i].Image, qt.Commentf("view %d", i))
		c.Check(v.Format, qt.Equals, gfx.FormatB8G8R8A8SRGB)
		c.Check(v.MipLevels, qt.Equals, uint32(1))
		c.Check(v.ArrayLayers, qt.Equals, uint32(1))
	}

	sc.Destroy()
	ctx.Destroy()
	assertClean(c, drv)
}

func TestSwapChainUsesDriverImageCount(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	drv.ExtraImages = 2
	ctx, sc := newSwapChain(c, drv)
	defer ctx.Destroy()
	defer sc.Destroy()

	c.Assert(sc.Descriptor().ImageCount, qt.Equals, uint32(3))
	c.Assert(sc.Images(), qt.HasLen, 5)
	c.Assert(count(drv.Calls(), "CreateImageView"), qt.Equals, 5)
}

func TestSwapChainConcurrentSharing(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(separateFamilies("gpu"))
	ctx, sc := newSwapChain(c, drv)
	defer ctx.Destroy()
	defer sc.Destroy()

	c.Assert(sc.Descriptor().SharingMode, qt.Equals, gfx.SharingModeConcurrent)
	info := drv.SwapchainInfos()[0]
	c.Assert(info.SharingMode, qt.Equals, gfx.SharingModeConcurrent)
	c.Assert(info.QueueFamilies, qt.DeepEquals, []uint32{0, 1})
}

func TestSwapChainUnsupportedSurface(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx := newContext(c, drv)
	drv.SetSurface(0, resizableSurface(), nil, []gfx.PresentMode{gfx.PresentModeFIFO})

	sc, err := core.NewSwapChain(ctx, 800, 600)
	c.Assert(sc, qt.IsNil)
	c.Assert(err, qt.ErrorIs, core.ErrUnsupportedSurface)
	c.Assert(count(drv.Calls(), "CreateSwapchain"), qt.Equals, 0)

	ctx.Destroy()
	assertClean(c, drv)
}

func TestSwapChainCreateFailures(t *testing.T) {
	tests := []struct {
		name   string
		method string
		n      int
		kind   error
	}{
		{name: "surface query", method: "SurfaceFormats", n: 2, kind: core.ErrSwapChainCreation},
		{name: "swapchain", method: "CreateSwapchain", kind: core.ErrSwapChainCreation},
		{name: "images", method: "SwapchainImages", kind: core.ErrSwapChainCreation},
		{name: "first view", method: "CreateImageView", n: 1, kind: core.ErrImageViewCreation},
		{name: "second view", method: "CreateImageView", n: 2, kind: core.ErrImageViewCreation},
	}

	c := qt.New(t)
	for _, test := range tests {
		test := test
		c.Run(test.name, func(c *qt.C) {
			drv := gfxtest.New(gfxtest.Discrete("gpu"))
			ctx := newContext(c, drv)
			drv.FailOn(test.method, test.n, errBoom)

			sc, err := core.NewSwapChain(ctx, 800, 600)
			c.Assert(sc, qt.IsNil)
			c.Assert(err, qt.ErrorIs, test.kind)
			c.Assert(err, qt.ErrorIs, errBoom)
			c.Assert(count(drv.Calls(), "DestroyImageView"), qt.Equals, len(drv.ImageViewInfos()))
			c.Assert(count(drv.Calls(), "DestroySwapchain"), qt.Equals, len(drv.SwapchainInfos()))

			ctx.Destroy()
			assertClean(c, drv)
		})
	}
}

func TestSwapChainRecreate(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc := newSwapChain(c, drv)
	old := sc.Handle()
	drv.SetSurface(0, resizableSurface(),
		[]gfx.SurfaceFormat{{Format: gfx.FormatR8G8B8A8Unorm, ColorSpace: gfx.ColorSpaceSRGBNonlinear}},
		[]gfx.PresentMode{gfx.PresentModeFIFO})

	mark := len(drv.Calls())
	c.Assert(sc.Recreate(1024, 768), qt.IsNil)

	calls := drv.Calls()[mark:]
	c.Assert(calls[0], qt.Equals, "DeviceWaitIdle")
	c.Assert(lastIndexOf(calls, "DestroyImageView") < indexOf(calls, "DestroySwapchain"), qt.IsTrue)
	c.Assert(indexOf(calls, "DestroySwapchain") < indexOf(calls, "CreateSwapchain"), qt.IsTrue)

	c.Assert(sc.Handle(), qt.Not(qt.Equals), old)
	c.Assert(sc.Generation(), qt.Equals, uint64(2))
	c.Assert(sc.Extent(), qt.Equals, gfx.Extent2D{Width: 1024, Height: 768})
	c.Assert(sc.Format(), qt.Equals, gfx.FormatR8G8B8A8Unorm)
	c.Assert(sc.Descriptor().PresentMode, qt.Equals, gfx.PresentModeFIFO)

	sc.Destroy()
	ctx.Destroy()
	assertClean(c, drv)
}

func TestSwapChainRecreateClampsExtent(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc := newSwapChain(c, drv)
	defer ctx.Destroy()
	defer sc.Destroy()

	caps := resizableSurface()
	caps.MaxImageExtent = gfx.Extent2D{Width: 1920, Height: 1080}
	drv.SetSurface(0, caps, gfxtest.Discrete("").Formats, gfxtest.Discrete("").PresentModes)

	c.Assert(sc.Recreate(4000, 0), qt.IsNil)
	c.Assert(sc.Extent(), qt.Equals, gfx.Extent2D{Width: 1920, Height: 1})
}

func TestSwapChainRecreateFailureReleases(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc := newSwapChain(c, drv)
	drv.FailOn("CreateSwapchain", 2, errBoom)

	err := sc.Recreate(800, 600)
	c.Assert(err, qt.ErrorIs, core.ErrSwapChainCreation)
	c.Assert(sc.Released(), qt.IsTrue)
	c.Assert(sc.Images(), qt.HasLen, 0)
	c.Assert(sc.Generation(), qt.Equals, uint64(1))
	c.Assert(sc.Descriptor(), qt.DeepEquals, core.SwapChainDescriptor{})
	c.Assert(sc.Extent(), qt.Equals, gfx.Extent2D{})
	c.Assert(sc.Format(), qt.Equals, gfx.Format(0))

	// the next attempt recovers
	c.Assert(sc.Recreate(800, 600), qt.IsNil)
	c.Assert(sc.Released(), qt.IsFalse)
	c.Assert(sc.Generation(), qt.Equals, uint64(2))

	sc.Destroy()
	ctx.Destroy()
	assertClean(c, drv)
}

func TestSwapChainAfterContextDestroyed(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc := newSwapChain(c, drv)
	sc.Destroy()
	ctx.Destroy()

	_, err := core.NewSwapChain(ctx, 800, 600)
	c.Assert(err, qt.ErrorIs, core.ErrContextDestroyed)
	c.Assert(sc.Recreate(800, 600), qt.ErrorIs, core.ErrSwapChainCreation)
	sc.Destroy()
	assertClean(c, drv)
}

func TestSwapChainRecreateAfterDestroy(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	ctx, sc := newSwapChain(c, drv)
	sc.Destroy()
	c.Assert(sc.Destroyed(), qt.IsTrue)
	c.Assert(sc.Released(), qt.IsTrue)

	mark := len(drv.Calls())
	err := sc.Recreate(800, 600)
	c.Assert(err, qt.ErrorIs, core.ErrSwapChainCreation)
	c.Assert(err, qt.Not(qt.ErrorIs), core.ErrContextDestroyed)
	c.Assert(err, qt.ErrorMatches, `recreate destroyed swap chain: .*`)
	c.Assert(count(drv.Calls()[mark:], "CreateSwapchain"), qt.Equals, 0)
	c.Assert(sc.Released(), qt.IsTrue)

	ctx.Destroy()
	assertClean(c, drv)
}

func TestSwapChainDestroyAfterContextLogs(t *testing.T) {
	c := qt.New(t)

	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	logger, hook := newLogger()
	ctx, err := core.NewDeviceContext(drv, newWindow(), testConfig(), logger)
	c.Assert(err, qt.IsNil)
	sc, err := core.NewSwapChain(ctx, 800, 600)
	c.Assert(err, qt.IsNil)

	ctx.Destroy()
	hook.Reset()
	sc.Destroy()

	c.Assert(hook.LastEntry(), qt.Not(qt.IsNil))
	c.Assert(hook.LastEntry().Message, qt.Equals, "swap chain outlived its device context")
	c.Assert(count(drv.Calls(), "DestroySwapchain"), qt.Equals, 0)
}
