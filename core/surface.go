// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/pkg/errors"

	"github.com/devblok/vkboot/gfx"
)

// Window is the windowing system the context presents to.
type Window interface {
	// RequiredInstanceExtensions lists instance extensions
	// needed to create surfaces for the window.
	RequiredInstanceExtensions() []string

	// CreateSurface creates a surface for the native instance
	// and returns its raw handle.
	CreateSurface(instance interface{}) (uintptr, error)

	// FramebufferSize returns the drawable size in pixels.
	FramebufferSize() (width, height uint32)
}

// SurfaceSupport is what an adapter supports for a surface.
type SurfaceSupport struct {
	Capabilities gfx.SurfaceCapabilities
	Formats      []gfx.SurfaceFormat
	PresentModes []gfx.PresentMode
}

// Valid reports whether a swapchain can be created at all.
func (s SurfaceSupport) Valid() bool {
	return len(s.Formats) > 0 && len(s.PresentModes) > 0
}

// Surface is a presentation surface bound to the selected adapter.
// It is owned by the DeviceContext.
type Surface struct {
	drv     gfx.Driver
	handle  gfx.Surface
	adapter gfx.Adapter
}

// Handle returns the surface handle.
func (s *Surface) Handle() gfx.Surface {
	return s.handle
}

// Query reads the current surface support from the driver.
func (s *Surface) Query() (SurfaceSupport, error) {
	var (
		support SurfaceSupport
		err     error
	)
	if support.Capabilities, err = s.drv.SurfaceCapabilities(s.adapter, s.handle); err != nil {
		return support, errors.Wrap(err, "query surface capabilities")
	}
	if support.Formats, err = s.drv.SurfaceFormats(s.adapter, s.handle); err != nil {
		return support, errors.Wrap(err, "query surface formats")
	}
	if support.PresentModes, err = s.drv.PresentModes(s.adapter, s.handle); err != nil {
		return support, errors.Wrap(err, "query present modes")
	}
	return support, nil
}
