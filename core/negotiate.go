// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/vkboot/gfx"
)

// ChooseSurfaceFormat prefers B8G8R8A8 sRGB in the sRGB non-linear color
// space and otherwise takes the first format offered. formats must not be empty.
func ChooseSurfaceFormat(formats []gfx.SurfaceFormat) gfx.SurfaceFormat {
	for _, f := range formats {
		if f.Format == gfx.FormatB8G8R8A8SRGB && f.ColorSpace == gfx.ColorSpaceSRGBNonlinear {
			return f
		}
	}
	return formats[0]
}

// ChoosePresentMode prefers mailbox and falls back to FIFO,
// which every driver has to support.
func ChoosePresentMode(modes []gfx.PresentMode) gfx.PresentMode {
	for _, m := range modes {
		if m == gfx.PresentModeMailbox {
			return m
		}
	}
	return gfx.PresentModeFIFO
}

// ChooseExtent uses the surface extent when the surface dictates one,
// otherwise the framebuffer size clamped into the surface bounds.
func ChooseExtent(caps gfx.SurfaceCapabilities, width, height uint32) gfx.Extent2D {
	if caps.CurrentExtent.Width != gfx.UndefinedExtent {
		return caps.CurrentExtent
	}
	return gfx.Extent2D{
		Width:  clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ChooseImageCount asks for one image above the minimum, within the
// maximum when the surface has one. A zero maximum means unbounded.
func ChooseImageCount(caps gfx.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// ChooseSharing shares images concurrently between distinct graphics and
// present families and exclusively when one family does both.
func ChooseSharing(families QueueFamilyIndices) (gfx.SharingMode, []uint32) {
	if families.Shared() || !families.Complete() {
		return gfx.SharingModeExclusive, nil
	}
	graphics, _ := families.Graphics.Get()
	present, _ := families.Present.Get()
	return gfx.SharingModeConcurrent, []uint32{graphics, present}
}

// ChooseCompositeAlpha takes the first supported mode, opaque first.
func ChooseCompositeAlpha(supported gfx.CompositeAlpha) gfx.CompositeAlpha {
	for _, mode := range []gfx.CompositeAlpha{
		gfx.CompositeAlphaOpaque,
		gfx.CompositeAlphaPreMultiplied,
		gfx.CompositeAlphaPostMultiplied,
		gfx.CompositeAlphaInherit,
	} {
		if supported&mode != 0 {
			return mode
		}
	}
	return gfx.CompositeAlphaOpaque
}
