// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package shader_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/packr"
	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/devblok/vkboot/core"
	"github.com/devblok/vkboot/gfx"
	"github.com/devblok/vkboot/gfx/gfxtest"
	"github.com/devblok/vkboot/shader"
	"github.com/devblok/vkboot/utility/pack"
)

type window struct{}

func (window) RequiredInstanceExtensions() []string                { return []string{"VK_KHR_surface"} }
func (window) CreateSurface(instance interface{}) (uintptr, error) { return 1, nil }
func (window) FramebufferSize() (uint32, uint32)                   { return 640, 480 }

func newContext(c *qt.C) (*gfxtest.Driver, *core.DeviceContext) {
	drv := gfxtest.New(gfxtest.Discrete("gpu"))
	logger, _ := test.NewNullLogger()
	ctx, err := core.NewDeviceContext(drv, window{}, core.DefaultConfiguration(), logger)
	c.Assert(err, qt.IsNil)
	return drv, ctx
}

func compress(c *qt.C, data []byte) []byte {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	_, err := w.Write(data)
	c.Assert(err, qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)
	return buf.Bytes()
}

func tempDir(c *qt.C) string {
	dir, err := ioutil.TempDir("", "vkboot-shader")
	c.Assert(err, qt.IsNil)
	c.Defer(func() { os.RemoveAll(dir) })
	return dir
}

func TestSliceUint32(t *testing.T) {
	c := qt.New(t)
	defer c.Done()

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	words := shader.SliceUint32(data)
	c.Assert(words, qt.HasLen, 2)
	c.Assert(unsafe.Pointer(&words[0]), qt.Equals, unsafe.Pointer(&data[0]))

	c.Assert(shader.SliceUint32(nil), qt.IsNil)
	c.Assert(shader.SliceUint32([]byte{1, 2, 3}), qt.IsNil)
}

func TestDirLoader(t *testing.T) {
	c := qt.New(t)
	defer c.Done()

	loader := shader.DirLoader{Dir: "testdata"}
	data, err := loader.Load("ok/triangle.vert.spv")
	c.Assert(err, qt.IsNil)
	c.Assert(data, qt.HasLen, 8)

	_, err = loader.Load("broken/bad.frag.spv")
	c.Assert(err, qt.ErrorIs, core.ErrShaderLoad)
	c.Assert(err, qt.ErrorMatches, `validate broken/bad.frag.spv: .*truncated bytecode, 3 bytes`)

	_, err = loader.Load("ok/missing.vert.spv")
	c.Assert(err, qt.ErrorIs, core.ErrShaderLoad)
	c.Assert(os.IsNotExist(errors.Cause(err)), qt.IsTrue)
}

func TestBoxLoader(t *testing.T) {
	c := qt.New(t)
	defer c.Done()

	loader := shader.BoxLoader{Box: packr.NewBox("./testdata/ok")}
	data, err := loader.Load("triangle.frag.spv")
	c.Assert(err, qt.IsNil)
	c.Assert(data, qt.DeepEquals, []byte{0x03, 0x02, 0x23, 0x07})

	_, err = loader.Load("nothing.frag.spv")
	c.Assert(err, qt.ErrorIs, core.ErrShaderLoad)
}

func TestLZ4Loader(t *testing.T) {
	c := qt.New(t)
	defer c.Done()

	raw, err := ioutil.ReadFile(filepath.Join("testdata", "ok", "triangle.vert.spv"))
	c.Assert(err, qt.IsNil)

	dir := tempDir(c)
	path := filepath.Join(dir, "triangle.vert.spv.lz4")
	c.Assert(ioutil.WriteFile(path, compress(c, raw), 0644), qt.IsNil)

	loader := shader.LZ4Loader{Source: shader.DirLoader{Dir: dir}}
	for _, name := range []string{"triangle.vert.spv", "triangle.vert.spv.lz4"} {
		data, err := loader.Load(name)
		c.Assert(err, qt.IsNil, qt.Commentf(name))
		c.Assert(data, qt.DeepEquals, raw, qt.Commentf(name))
	}

	// decompressed bytecode is still validated
	c.Assert(ioutil.WriteFile(filepath.Join(dir, "odd.frag.spv.lz4"), compress(c, raw[:5]), 0644), qt.IsNil)
	_, err = loader.Load("odd.frag.spv")
	c.Assert(err, qt.ErrorIs, core.ErrShaderLoad)

	c.Assert(ioutil.WriteFile(filepath.Join(dir, "garbage.frag.spv.lz4"), []byte("not lz4 at all"), 0644), qt.IsNil)
	_, err = loader.Load("garbage.frag.spv")
	c.Assert(err, qt.ErrorIs, core.ErrShaderLoad)
}

func TestDiscover(t *testing.T) {
	c := qt.New(t)
	defer c.Done()

	sources, err := shader.Discover("testdata/ok")
	c.Assert(err, qt.IsNil)
	c.Assert(sources, qt.DeepEquals, []shader.Source{
		{Name: "triangle", Path: "triangle.frag.spv", Stage: gfx.ShaderStageFragment},
		{Name: "triangle", Path: "triangle.vert.spv", Stage: gfx.ShaderStageVertex},
	})

	_, err = shader.Discover("testdata/nowhere")
	c.Assert(err, qt.ErrorIs, core.ErrShaderLoad)
}

func TestNewModule(t *testing.T) {
	c := qt.New(t)
	defer c.Done()

	drv, ctx := newContext(c)
	m, err := shader.NewModule(ctx, shader.DirLoader{Dir: "testdata/ok"}, "triangle.vert.spv", gfx.ShaderStageVertex)
	c.Assert(err, qt.IsNil)
	c.Assert(m.Name(), qt.Equals, "triangle.vert.spv")
	c.Assert(m.Stage(), qt.Equals, gfx.ShaderStageVertex)
	c.Assert(drv.ShaderModuleInfos(), qt.HasLen, 1)
	c.Assert(drv.ShaderModuleInfos()[0].Code, qt.HasLen, 2)

	m.Release()
	m.Release()
	c.Assert(m.Handle(), qt.Equals, gfx.ShaderModule(0))
	c.Assert(drv.Calls()[len(drv.Calls())-1], qt.Equals, "DestroyShaderModule")

	drv.FailOn("CreateShaderModule", 0, nil)
	_, err = shader.NewModule(ctx, shader.DirLoader{Dir: "testdata/ok"}, "triangle.vert.spv", gfx.ShaderStageVertex)
	c.Assert(err, qt.ErrorIs, core.ErrShaderLoad)
	c.Assert(err, qt.ErrorIs, gfxtest.ErrInjected)

	ctx.Destroy()
	_, err = shader.NewModule(ctx, shader.DirLoader{Dir: "testdata/ok"}, "triangle.vert.spv", gfx.ShaderStageVertex)
	c.Assert(err, qt.ErrorIs, core.ErrContextDestroyed)
	c.Assert(drv.Live(), qt.HasLen, 0)
	c.Assert(drv.Violations(), qt.HasLen, 0)
}

func TestLoadDirectory(t *testing.T) {
	c := qt.New(t)
	defer c.Done()

	drv, ctx := newContext(c)
	modules, err := shader.LoadDirectory(ctx, "testdata/ok")
	c.Assert(err, qt.IsNil)
	c.Assert(modules, qt.HasLen, 2)
	c.Assert(modules[0].Name(), qt.Equals, "triangle")
	c.Assert(modules[0].Stage(), qt.Equals, gfx.ShaderStageFragment)
	c.Assert(modules[1].Stage(), qt.Equals, gfx.ShaderStageVertex)

	for _, m := range modules {
		m.Release()
	}
	ctx.Destroy()
	c.Assert(drv.Live(), qt.HasLen, 0)
	c.Assert(drv.Violations(), qt.HasLen, 0)
}

func TestLoadDirectoryCompressed(t *testing.T) {
	c := qt.New(t)
	defer c.Done()

	raw, err := ioutil.ReadFile(filepath.Join("testdata", "ok", "triangle.vert.spv"))
	c.Assert(err, qt.IsNil)
	dir := tempDir(c)
	c.Assert(ioutil.WriteFile(filepath.Join(dir, "sky.vert.spv.lz4"), compress(c, raw), 0644), qt.IsNil)

	drv, ctx := newContext(c)
	defer ctx.Destroy()
	modules, err := shader.LoadDirectory(ctx, dir)
	c.Assert(err, qt.IsNil)
	c.Assert(modules, qt.HasLen, 1)
	c.Assert(modules[0].Name(), qt.Equals, "sky")
	c.Assert(drv.ShaderModuleInfos()[0].Code, qt.HasLen, 2)
	modules[0].Release()
}

func TestLoadDirectoryReleasesOnFailure(t *testing.T) {
	c := qt.New(t)
	defer c.Done()

	drv, ctx := newContext(c)
	drv.FailOn("CreateShaderModule", 2, nil)

	modules, err := shader.LoadDirectory(ctx, "testdata/ok")
	c.Assert(modules, qt.IsNil)
	c.Assert(err, qt.ErrorIs, core.ErrShaderLoad)
	c.Assert(drv.Calls()[len(drv.Calls())-1], qt.Equals, "DestroyShaderModule")

	ctx.Destroy()
	c.Assert(drv.Live(), qt.HasLen, 0)
	c.Assert(drv.Violations(), qt.HasLen, 0)
}

func TestLoadPack(t *testing.T) {
	c := qt.New(t)
	defer c.Done()

	raw, err := ioutil.ReadFile(filepath.Join("testdata", "ok", "triangle.vert.spv"))
	c.Assert(err, qt.IsNil)

	builder := pack.NewBuilder(pack.Header{Author: "devblok", Version: 1})
	c.Assert(builder.Add("triangle.vert.spv", bytes.NewReader(raw)), qt.IsNil)
	c.Assert(builder.Add("ui/overlay.frag.spv", bytes.NewReader(raw[:4])), qt.IsNil)
	c.Assert(builder.Add("readme.txt", bytes.NewReader([]byte("skip me"))), qt.IsNil)
	var buf bytes.Buffer
	_, err = builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)

	archive, err := pack.Open(bytes.NewReader(buf.Bytes()))
	c.Assert(err, qt.IsNil)

	drv, ctx := newContext(c)
	modules, err := shader.LoadPack(ctx, archive)
	c.Assert(err, qt.IsNil)
	c.Assert(modules, qt.HasLen, 2)
	c.Assert(modules[0].Name(), qt.Equals, "triangle")
	c.Assert(modules[0].Stage(), qt.Equals, gfx.ShaderStageVertex)
	c.Assert(modules[1].Name(), qt.Equals, "overlay")
	c.Assert(modules[1].Stage(), qt.Equals, gfx.ShaderStageFragment)
	c.Assert(drv.ShaderModuleInfos()[1].Code, qt.HasLen, 1)

	_, err = shader.PackLoader{Archive: archive}.Load("missing.vert.spv")
	c.Assert(err, qt.ErrorIs, core.ErrShaderLoad)
	c.Assert(err, qt.ErrorIs, pack.ErrNotFound)

	for _, m := range modules {
		m.Release()
	}
	ctx.Destroy()
	c.Assert(drv.Live(), qt.HasLen, 0)
}

func BenchmarkSliceUint32(b *testing.B) {
	data := make([]byte, 64*1024)
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		shader.SliceUint32(data)
	}
}
