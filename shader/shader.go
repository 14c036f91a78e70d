// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package shader

import (
	"strings"
	"unsafe"

	"github.com/devblok/vkboot/core"
	"github.com/devblok/vkboot/gfx"
	"github.com/devblok/vkboot/utility/pack"
)

type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}

// SliceUint32 reslices bytes into a uint32, that is used
// to submit shaders for processing
func SliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	const m = 0x7fffffff
	return (*[m / 4]uint32)(unsafe.Pointer((*sliceHeader)(unsafe.Pointer(&data)).Data))[:len(data)/4]
}

// Module is a shader module created on a device context.
type Module struct {
	ctx    *core.DeviceContext
	name   string
	stage  gfx.ShaderStage
	handle gfx.ShaderModule
}

// NewModule loads the named bytecode and creates a shader module from it.
func NewModule(ctx *core.DeviceContext, loader Loader, name string, stage gfx.ShaderStage) (*Module, error) {
	if err := ctx.Alive(); err != nil {
		return nil, err
	}
	data, err := loader.Load(name)
	if err != nil {
		return nil, err
	}

	handle, err := ctx.Driver().CreateShaderModule(ctx.Device(), gfx.ShaderModuleInfo{
		Code: SliceUint32(data),
	})
	if err != nil {
		return nil, core.Wrap(core.ErrShaderLoad, err, "create module %s", name)
	}

	ctx.Logger().WithField("shader", name).WithField("stage", stage).Debug("shader module created")
	return &Module{
		ctx:    ctx,
		name:   name,
		stage:  stage,
		handle: handle,
	}, nil
}

// LoadDirectory creates a module for every shader Discover finds in dir.
// Compressed files go through an LZ4Loader. Modules are named after
// the shader, not the file.
func LoadDirectory(ctx *core.DeviceContext, dir string) ([]*Module, error) {
	sources, err := Discover(dir)
	if err != nil {
		return nil, err
	}

	plain := DirLoader{Dir: dir}
	var modules []*Module
	for _, src := range sources {
		var loader Loader = plain
		if strings.HasSuffix(src.Path, compressedSuffix) {
			loader = LZ4Loader{Source: plain}
		}
		m, err := NewModule(ctx, loader, src.Path, src.Stage)
		if err != nil {
			for _, created := range modules {
				created.Release()
			}
			return nil, err
		}
		m.name = src.Name
		modules = append(modules, m)
	}
	return modules, nil
}

// LoadPack creates a module for every shader entry in a pack. Entries
// follow the same naming as files found by Discover, anything else is
// skipped. Pack entries are compressed already, so names never carry .lz4.
func LoadPack(ctx *core.DeviceContext, archive *pack.Archive) ([]*Module, error) {
	loader := PackLoader{Archive: archive}
	var modules []*Module
	for _, entry := range archive.Names() {
		name, stage, ok := parseName(entry)
		if !ok || strings.HasSuffix(entry, compressedSuffix) {
			continue
		}
		m, err := NewModule(ctx, loader, entry, stage)
		if err != nil {
			for _, created := range modules {
				created.Release()
			}
			return nil, err
		}
		m.name = name
		modules = append(modules, m)
	}
	return modules, nil
}

// Name returns the shader name.
func (m *Module) Name() string {
	return m.name
}

// Stage returns the pipeline stage the shader runs in.
func (m *Module) Stage() gfx.ShaderStage {
	return m.stage
}

// Handle returns the shader module handle.
func (m *Module) Handle() gfx.ShaderModule {
	return m.handle
}

// Release implements gfx.Releasable.
func (m *Module) Release() {
	if m.handle == 0 {
		return
	}
	if m.ctx.Alive() == nil {
		m.ctx.Driver().DestroyShaderModule(m.ctx.Device(), m.handle)
	}
	m.handle = 0
}
