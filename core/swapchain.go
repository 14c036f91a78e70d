// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/sirupsen/logrus"

	"github.com/devblok/vkboot/gfx"
)

// SwapChainDescriptor is the negotiated swap chain setup.
type SwapChainDescriptor struct {
	Format         gfx.SurfaceFormat
	PresentMode    gfx.PresentMode
	Extent         gfx.Extent2D
	ImageCount     uint32
	SharingMode    gfx.SharingMode
	QueueFamilies  []uint32
	PreTransform   gfx.SurfaceTransform
	CompositeAlpha gfx.CompositeAlpha
}

// Negotiate picks a swap chain setup for the surface support,
// framebuffer size and queue families given.
func Negotiate(support SurfaceSupport, families QueueFamilyIndices, width, height uint32) (SwapChainDescriptor, error) {
	if !support.Valid() {
		return SwapChainDescriptor{}, ErrUnsupportedSurface
	}
	desc := SwapChainDescriptor{
		Format:         ChooseSurfaceFormat(support.Formats),
		PresentMode:    ChoosePresentMode(support.PresentModes),
		Extent:         ChooseExtent(support.Capabilities, width, height),
		ImageCount:     ChooseImageCount(support.Capabilities),
		PreTransform:   support.Capabilities.CurrentTransform,
		CompositeAlpha: ChooseCompositeAlpha(support.Capabilities.SupportedCompositeAlpha),
	}
	desc.SharingMode, desc.QueueFamilies = ChooseSharing(families)
	return desc, nil
}

// PresentableImage is a swap chain image and the view rendering targets it through.
type PresentableImage struct {
	Image gfx.Image
	View  gfx.ImageView
}

// SwapChain owns the presentation swapchain and the views of its images.
type SwapChain struct {
	ctx *DeviceContext
	log logrus.FieldLogger

	swapchain  gfx.Swapchain
	desc       SwapChainDescriptor
	images     []PresentableImage
	generation uint64
	destroyed  bool
}

// NewSwapChain negotiates and creates a swap chain for a framebuffer of
// the given size. Nothing is left behind on failure.
func NewSwapChain(ctx *DeviceContext, width, height uint32) (*SwapChain, error) {
	if err := ctx.Alive(); err != nil {
		return nil, err
	}
	sc := &SwapChain{
		ctx: ctx,
		log: ctx.Logger().WithField("component", "swapchain"),
	}
	if err := sc.create(width, height); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *SwapChain) create(width, height uint32) error {
	drv, device := sc.ctx.Driver(), sc.ctx.Device()

	support, err := sc.ctx.Surface().Query()
	if err != nil {
		return Wrap(ErrSwapChainCreation, err, "query surface")
	}
	desc, err := Negotiate(support, sc.ctx.QueueFamilies(), width, height)
	if err != nil {
		return err
	}

	swapchain, err := drv.CreateSwapchain(device, gfx.SwapchainInfo{
		Surface:        sc.ctx.Surface().Handle(),
		MinImageCount:  desc.ImageCount,
		Format:         desc.Format.Format,
		ColorSpace:     desc.Format.ColorSpace,
		Extent:         desc.Extent,
		SharingMode:    desc.SharingMode,
		QueueFamilies:  desc.QueueFamilies,
		PreTransform:   desc.PreTransform,
		CompositeAlpha: desc.CompositeAlpha,
		PresentMode:    desc.PresentMode,
		Clipped:        true,
	})
	if err != nil {
		return Wrap(ErrSwapChainCreation, err, "create swapchain")
	}

	var undo unwinder
	undo.push(func() { drv.DestroySwapchain(device, swapchain) })

	images, err := drv.SwapchainImages(device, swapchain)
	if err != nil {
		undo.unwind()
		return Wrap(ErrSwapChainCreation, err, "get swapchain images")
	}

	presentable := make([]PresentableImage, 0, len(images))
	for i, image := range images {
		view, err := drv.CreateImageView(device, gfx.ImageViewInfo{
			Image:       image,
			Format:      desc.Format.Format,
			MipLevels:   1,
			ArrayLayers: 1,
		})
		if err != nil {
			undo.unwind()
			return Wrap(ErrImageViewCreation, err, "create view for image %d", i)
		}
		undo.push(func() { drv.DestroyImageView(device, view) })
		presentable = append(presentable, PresentableImage{Image: image, View: view})
	}

	sc.swapchain = swapchain
	sc.desc = desc
	sc.images = presentable
	sc.generation++

	sc.log.WithFields(logrus.Fields{
		"format":  desc.Format.Format,
		"present": desc.PresentMode,
		"extent":  desc.Extent,
		"images":  len(presentable),
		"sharing": desc.SharingMode,
	}).Info("swap chain created")
	return nil
}

// release destroys the views, then the swapchain.
func (sc *SwapChain) release() {
	if sc.swapchain == 0 {
		return
	}
	drv, device := sc.ctx.Driver(), sc.ctx.Device()
	for _, img := range sc.images {
		drv.DestroyImageView(device, img.View)
	}
	drv.DestroySwapchain(device, sc.swapchain)
	sc.images = nil
	sc.swapchain = 0
	sc.desc = SwapChainDescriptor{}
}

// Recreate rebuilds the swap chain for a new framebuffer size. After a
// failed attempt the swap chain holds no resources until the next
// successful Recreate.
func (sc *SwapChain) Recreate(width, height uint32) error {
	if sc.destroyed {
		return Wrap(ErrSwapChainCreation, nil, "recreate destroyed swap chain")
	}
	if err := sc.ctx.WaitIdle(); err != nil {
		return err
	}
	sc.release()
	return sc.create(width, height)
}

// Released reports whether the swap chain currently holds no resources.
func (sc *SwapChain) Released() bool {
	return sc.swapchain == 0
}

// Destroyed reports whether Destroy has been called.
func (sc *SwapChain) Destroyed() bool {
	return sc.destroyed
}

// Context returns the owning device context.
func (sc *SwapChain) Context() *DeviceContext {
	return sc.ctx
}

// Handle returns the swapchain handle.
func (sc *SwapChain) Handle() gfx.Swapchain {
	return sc.swapchain
}

// Descriptor returns the active negotiated setup.
func (sc *SwapChain) Descriptor() SwapChainDescriptor {
	return sc.desc
}

// Images returns the presentable images in driver order.
func (sc *SwapChain) Images() []PresentableImage {
	return sc.images
}

// Extent returns the active image extent.
func (sc *SwapChain) Extent() gfx.Extent2D {
	return sc.desc.Extent
}

// Format returns the active image format.
func (sc *SwapChain) Format() gfx.Format {
	return sc.desc.Format.Format
}

// Generation increases with every successful (re)creation.
func (sc *SwapChain) Generation() uint64 {
	return sc.generation
}

// Destroy releases the image views and the swapchain.
func (sc *SwapChain) Destroy() {
	if sc.destroyed {
		return
	}
	sc.destroyed = true
	if err := sc.ctx.Alive(); err != nil {
		sc.log.WithError(err).Error("swap chain outlived its device context")
		return
	}
	sc.release()
}
