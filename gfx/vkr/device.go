// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"

	"github.com/devblok/vkboot/gfx"
)

// CreateDevice implements gfx.Driver.
func (d *Driver) CreateDevice(adapter gfx.Adapter, info gfx.DeviceInfo) (gfx.Device, error) {
	pd, err := d.adapter(adapter)
	if err != nil {
		return 0, err
	}

	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(info.Queues))
	for _, q := range info.Queues {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: q.Family,
			QueueCount:       uint32(len(q.Priorities)),
			PQueuePriorities: q.Priorities,
		})
	}

	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: safeStrings(info.Extensions),
		EnabledLayerCount:       uint32(len(info.Layers)),
		PpEnabledLayerNames:     safeStrings(info.Layers),
	}

	var device vk.Device
	if err := check(vk.CreateDevice(pd, &dci, nil, &device), "vk.CreateDevice()"); err != nil {
		return 0, err
	}
	return gfx.Device(d.handles.Insert(&deviceRecord{
		device: device,
		queues: make(map[[2]uint32]gfx.Queue),
	})), nil
}

// DestroyDevice implements gfx.Driver.
func (d *Driver) DestroyDevice(device gfx.Device) {
	rec, err := d.device(device)
	if err != nil {
		return
	}
	for _, q := range rec.queues {
		d.handles.Remove(gfx.Handle(q))
	}
	d.handles.Remove(gfx.Handle(device))
	vk.DestroyDevice(rec.device, nil)
}

// DeviceQueue implements gfx.Driver.
func (d *Driver) DeviceQueue(device gfx.Device, family, index uint32) (gfx.Queue, error) {
	rec, err := d.device(device)
	if err != nil {
		return 0, err
	}
	key := [2]uint32{family, index}
	if q, ok := rec.queues[key]; ok {
		return q, nil
	}

	var queue vk.Queue
	vk.GetDeviceQueue(rec.device, family, index, &queue)
	if queue == nil {
		return 0, fmt.Errorf("vk.GetDeviceQueue(): no queue %d in family %d", index, family)
	}
	q := gfx.Queue(d.handles.Insert(queue))
	rec.queues[key] = q
	return q, nil
}

// DeviceWaitIdle implements gfx.Driver.
func (d *Driver) DeviceWaitIdle(device gfx.Device) error {
	rec, err := d.device(device)
	if err != nil {
		return err
	}
	return check(vk.DeviceWaitIdle(rec.device), "vk.DeviceWaitIdle()")
}

// CreateSwapchain implements gfx.Driver.
func (d *Driver) CreateSwapchain(device gfx.Device, info gfx.SwapchainInfo) (gfx.Swapchain, error) {
	rec, err := d.device(device)
	if err != nil {
		return 0, err
	}
	surface, err := d.surface(info.Surface)
	if err != nil {
		return 0, err
	}

	clipped := vk.False
	if info.Clipped {
		clipped = vk.True
	}

	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         surface,
		MinImageCount:   info.MinImageCount,
		ImageFormat:     vk.Format(info.Format),
		ImageColorSpace: vk.ColorSpace(info.ColorSpace),
		ImageExtent: vk.Extent2D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
		},
		ImageArrayLayers:      1,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode:      vk.SharingMode(info.SharingMode),
		QueueFamilyIndexCount: uint32(len(info.QueueFamilies)),
		PQueueFamilyIndices:   info.QueueFamilies,
		PreTransform:          vk.SurfaceTransformFlagBits(info.PreTransform),
		CompositeAlpha:        vk.CompositeAlphaFlagBits(info.CompositeAlpha),
		PresentMode:           vk.PresentMode(info.PresentMode),
		Clipped:               vk.Bool32(clipped),
		OldSwapchain:          vk.NullSwapchain,
	}

	var swapchain vk.Swapchain
	if err := check(vk.CreateSwapchain(rec.device, &scci, nil, &swapchain), "vk.CreateSwapchain()"); err != nil {
		return 0, err
	}
	return gfx.Swapchain(d.handles.Insert(&swapchainRecord{swapchain: swapchain})), nil
}

// DestroySwapchain implements gfx.Driver.
func (d *Driver) DestroySwapchain(device gfx.Device, swapchain gfx.Swapchain) {
	rec, err := d.device(device)
	if err != nil {
		return
	}
	sc, err := d.swapchain(swapchain)
	if err != nil {
		return
	}
	for _, img := range sc.images {
		d.handles.Remove(gfx.Handle(img))
	}
	d.handles.Remove(gfx.Handle(swapchain))
	vk.DestroySwapchain(rec.device, sc.swapchain, nil)
}

// SwapchainImages implements gfx.Driver.
func (d *Driver) SwapchainImages(device gfx.Device, swapchain gfx.Swapchain) ([]gfx.Image, error) {
	rec, err := d.device(device)
	if err != nil {
		return nil, err
	}
	sc, err := d.swapchain(swapchain)
	if err != nil {
		return nil, err
	}
	if sc.images != nil {
		return append([]gfx.Image(nil), sc.images...), nil
	}

	var numImages uint32
	if err := check(vk.GetSwapchainImages(rec.device, sc.swapchain, &numImages, nil), "vk.GetSwapchainImages(num)"); err != nil {
		return nil, err
	}
	images := make([]vk.Image, numImages)
	if err := check(vk.GetSwapchainImages(rec.device, sc.swapchain, &numImages, images), "vk.GetSwapchainImages(images)"); err != nil {
		return nil, err
	}

	sc.images = make([]gfx.Image, 0, numImages)
	for _, img := range images[:numImages] {
		sc.images = append(sc.images, gfx.Image(d.handles.Insert(img)))
	}
	return append([]gfx.Image(nil), sc.images...), nil
}

// CreateImageView implements gfx.Driver.
func (d *Driver) CreateImageView(device gfx.Device, info gfx.ImageViewInfo) (gfx.ImageView, error) {
	rec, err := d.device(device)
	if err != nil {
		return 0, err
	}
	image, err := d.image(info.Image)
	if err != nil {
		return 0, err
	}

	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(info.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     info.MipLevels,
			BaseArrayLayer: 0,
			LayerCount:     info.ArrayLayers,
		},
	}

	var view vk.ImageView
	if err := check(vk.CreateImageView(rec.device, &ivci, nil, &view), "vk.CreateImageView()"); err != nil {
		return 0, err
	}
	return gfx.ImageView(d.handles.Insert(view)), nil
}

// DestroyImageView implements gfx.Driver.
func (d *Driver) DestroyImageView(device gfx.Device, view gfx.ImageView) {
	rec, err := d.device(device)
	if err != nil {
		return
	}
	v, err := d.handles.Get(gfx.Handle(view))
	obj, ok := v.(vk.ImageView)
	if err != nil || !ok {
		return
	}
	d.handles.Remove(gfx.Handle(view))
	vk.DestroyImageView(rec.device, obj, nil)
}

// CreateRenderPass implements gfx.Driver.
func (d *Driver) CreateRenderPass(device gfx.Device, info gfx.RenderPassInfo) (gfx.RenderPass, error) {
	rec, err := d.device(device)
	if err != nil {
		return 0, err
	}

	attachments := make([]vk.AttachmentDescription, 0, len(info.Attachments))
	for _, a := range info.Attachments {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         vk.Format(a.Format),
			Samples:        vk.SampleCountFlagBits(a.Samples),
			LoadOp:         vk.AttachmentLoadOp(a.LoadOp),
			StoreOp:        vk.AttachmentStoreOp(a.StoreOp),
			StencilLoadOp:  vk.AttachmentLoadOp(a.StencilLoadOp),
			StencilStoreOp: vk.AttachmentStoreOp(a.StencilStoreOp),
			InitialLayout:  vk.ImageLayout(a.InitialLayout),
			FinalLayout:    vk.ImageLayout(a.FinalLayout),
		})
	}

	subpasses := make([]vk.SubpassDescription, 0, len(info.Subpasses))
	for _, s := range info.Subpasses {
		refs := make([]vk.AttachmentReference, 0, len(s.ColorAttachments))
		for _, r := range s.ColorAttachments {
			refs = append(refs, vk.AttachmentReference{
				Attachment: r.Attachment,
				Layout:     vk.ImageLayout(r.Layout),
			})
		}
		subpasses = append(subpasses, vk.SubpassDescription{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: uint32(len(refs)),
			PColorAttachments:    refs,
		})
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
	}

	var pass vk.RenderPass
	if err := check(vk.CreateRenderPass(rec.device, &rpci, nil, &pass), "vk.CreateRenderPass()"); err != nil {
		return 0, err
	}
	return gfx.RenderPass(d.handles.Insert(pass)), nil
}

// DestroyRenderPass implements gfx.Driver.
func (d *Driver) DestroyRenderPass(device gfx.Device, pass gfx.RenderPass) {
	rec, err := d.device(device)
	if err != nil {
		return
	}
	v, err := d.handles.Get(gfx.Handle(pass))
	obj, ok := v.(vk.RenderPass)
	if err != nil || !ok {
		return
	}
	d.handles.Remove(gfx.Handle(pass))
	vk.DestroyRenderPass(rec.device, obj, nil)
}

// CreatePipelineLayout implements gfx.Driver.
func (d *Driver) CreatePipelineLayout(device gfx.Device, info gfx.PipelineLayoutInfo) (gfx.PipelineLayout, error) {
	rec, err := d.device(device)
	if err != nil {
		return 0, err
	}

	ranges := make([]vk.PushConstantRange, 0, len(info.PushConstants))
	for _, r := range info.PushConstants {
		ranges = append(ranges, vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		})
	}

	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}

	var layout vk.PipelineLayout
	if err := check(vk.CreatePipelineLayout(rec.device, &plci, nil, &layout), "vk.CreatePipelineLayout()"); err != nil {
		return 0, err
	}
	return gfx.PipelineLayout(d.handles.Insert(layout)), nil
}

// DestroyPipelineLayout implements gfx.Driver.
func (d *Driver) DestroyPipelineLayout(device gfx.Device, layout gfx.PipelineLayout) {
	rec, err := d.device(device)
	if err != nil {
		return
	}
	v, err := d.handles.Get(gfx.Handle(layout))
	obj, ok := v.(vk.PipelineLayout)
	if err != nil || !ok {
		return
	}
	d.handles.Remove(gfx.Handle(layout))
	vk.DestroyPipelineLayout(rec.device, obj, nil)
}

// CreateShaderModule implements gfx.Driver.
func (d *Driver) CreateShaderModule(device gfx.Device, info gfx.ShaderModuleInfo) (gfx.ShaderModule, error) {
	rec, err := d.device(device)
	if err != nil {
		return 0, err
	}
	if len(info.Code) == 0 {
		return 0, errors.New("vk.CreateShaderModule(): empty bytecode")
	}

	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(info.Code) * 4),
		PCode:    info.Code,
	}

	var module vk.ShaderModule
	if err := check(vk.CreateShaderModule(rec.device, &smci, nil, &module), "vk.CreateShaderModule()"); err != nil {
		return 0, err
	}
	return gfx.ShaderModule(d.handles.Insert(module)), nil
}

// DestroyShaderModule implements gfx.Driver.
func (d *Driver) DestroyShaderModule(device gfx.Device, module gfx.ShaderModule) {
	rec, err := d.device(device)
	if err != nil {
		return
	}
	v, err := d.handles.Get(gfx.Handle(module))
	obj, ok := v.(vk.ShaderModule)
	if err != nil || !ok {
		return
	}
	d.handles.Remove(gfx.Handle(module))
	vk.DestroyShaderModule(rec.device, obj, nil)
}
