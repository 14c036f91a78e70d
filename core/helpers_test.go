// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"errors"

	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/devblok/vkboot/core"
	"github.com/devblok/vkboot/gfx"
	"github.com/devblok/vkboot/gfx/gfxtest"
)

type fakeWindow struct {
	extensions    []string
	width, height uint32
	surfaceErr    error
	created       int
}

func newWindow() *fakeWindow {
	return &fakeWindow{
		extensions: []string{"VK_KHR_surface", "VK_KHR_xlib_surface"},
		width:      800,
		height:     600,
	}
}

func (w *fakeWindow) RequiredInstanceExtensions() []string {
	return w.extensions
}

func (w *fakeWindow) CreateSurface(instance interface{}) (uintptr, error) {
	if w.surfaceErr != nil {
		return 0, w.surfaceErr
	}
	w.created++
	return 0xdead, nil
}

func (w *fakeWindow) FramebufferSize() (uint32, uint32) {
	return w.width, w.height
}

func newLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func testConfig() core.Configuration {
	return core.DefaultConfiguration()
}

// separateFamilies returns an adapter where graphics and
// presentation are served by different families.
func separateFamilies(name string) gfxtest.Adapter {
	a := gfxtest.Discrete(name)
	a.Families = []gfx.QueueFamily{
		{Flags: gfx.QueueGraphics, Count: 1},
		{Flags: gfx.QueueTransfer, Count: 1},
	}
	a.Present = []bool{false, true}
	return a
}

func newContext(c *qt.C, drv *gfxtest.Driver) *core.DeviceContext {
	logger, _ := newLogger()
	ctx, err := core.NewDeviceContext(drv, newWindow(), testConfig(), logger)
	c.Assert(err, qt.IsNil)
	return ctx
}

func newSwapChain(c *qt.C, drv *gfxtest.Driver) (*core.DeviceContext, *core.SwapChain) {
	ctx := newContext(c, drv)
	sc, err := core.NewSwapChain(ctx, 800, 600)
	c.Assert(err, qt.IsNil)
	return ctx, sc
}

// assertClean checks nothing leaked and no lifetime rule was broken.
func assertClean(c *qt.C, drv *gfxtest.Driver) {
	c.Helper()
	c.Assert(drv.Live(), qt.HasLen, 0)
	c.Assert(drv.Violations(), qt.HasLen, 0)
}

func count(calls []string, name string) int {
	n := 0
	for _, call := range calls {
		if call == name {
			n++
		}
	}
	return n
}

func indexOf(calls []string, name string) int {
	for i, call := range calls {
		if call == name {
			return i
		}
	}
	return -1
}

func lastIndexOf(calls []string, name string) int {
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i] == name {
			return i
		}
	}
	return -1
}

var errBoom = errors.New("boom")
