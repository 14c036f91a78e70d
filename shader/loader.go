// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package shader loads compiled shader bytecode and turns it into
// shader modules on a device context.
package shader

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobuffalo/packr"
	"github.com/pierrec/lz4"
	"github.com/pkg/errors"

	"github.com/devblok/vkboot/core"
	"github.com/devblok/vkboot/gfx"
	"github.com/devblok/vkboot/utility/pack"
)

const (
	shaderSuffix     = ".spv"
	compressedSuffix = ".lz4"
)

// Loader finds shader bytecode by name.
type Loader interface {
	Load(name string) ([]byte, error)
}

// DirLoader loads bytecode from files in a directory.
type DirLoader struct {
	Dir string
}

// Load implements Loader.
func (l DirLoader) Load(name string) ([]byte, error) {
	data, err := ioutil.ReadFile(filepath.Join(l.Dir, name))
	if err != nil {
		return nil, core.Wrap(core.ErrShaderLoad, err, "read %s", name)
	}
	return validate(name, data)
}

// BoxLoader loads bytecode embedded in a packr box.
type BoxLoader struct {
	Box packr.Box
}

// Load implements Loader.
func (l BoxLoader) Load(name string) ([]byte, error) {
	data, err := l.Box.Find(name)
	if err != nil {
		return nil, core.Wrap(core.ErrShaderLoad, err, "find %s", name)
	}
	return validate(name, data)
}

// LZ4Loader decompresses lz4 framed bytecode read from Source.
// Names without the .lz4 suffix get it appended.
type LZ4Loader struct {
	Source Loader
}

// Load implements Loader.
func (l LZ4Loader) Load(name string) ([]byte, error) {
	if !strings.HasSuffix(name, compressedSuffix) {
		name += compressedSuffix
	}
	compressed, err := l.Source.Load(name)
	if err != nil {
		return nil, err
	}
	data, err := ioutil.ReadAll(lz4.NewReader(bytes.NewReader(compressed)))
	if err != nil {
		return nil, core.Wrap(core.ErrShaderLoad, err, "decompress %s", name)
	}
	return validate(strings.TrimSuffix(name, compressedSuffix), data)
}

// validate rejects bytecode that is empty or not made of 32 bit words.
// Compressed input is checked again after decompression.
func validate(name string, data []byte) ([]byte, error) {
	if strings.HasSuffix(name, compressedSuffix) {
		return data, nil
	}
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, core.Wrap(core.ErrShaderLoad, errors.Errorf("truncated bytecode, %d bytes", len(data)), "validate %s", name)
	}
	return data, nil
}

// PackLoader loads bytecode stored in a shader pack.
type PackLoader struct {
	Archive *pack.Archive
}

// Load implements Loader.
func (l PackLoader) Load(name string) ([]byte, error) {
	data, err := l.Archive.ReadAll(name)
	if err != nil {
		return nil, core.Wrap(core.ErrShaderLoad, err, "unpack %s", name)
	}
	return validate(name, data)
}

// parseName splits a file name of the form <name>.<vert|frag>.spv[.lz4].
func parseName(file string) (string, gfx.ShaderStage, bool) {
	base := strings.TrimSuffix(filepath.Base(file), compressedSuffix)
	if !strings.HasSuffix(base, shaderSuffix) {
		return "", 0, false
	}
	nodes := strings.Split(strings.TrimSuffix(base, shaderSuffix), ".")
	if len(nodes) != 2 {
		return "", 0, false
	}
	switch nodes[1] {
	case "vert":
		return nodes[0], gfx.ShaderStageVertex, true
	case "frag":
		return nodes[0], gfx.ShaderStageFragment, true
	}
	return "", 0, false
}

// Source is a shader file found on disk.
type Source struct {
	Name  string
	Path  string
	Stage gfx.ShaderStage
}

// Discover lists compiled shaders under dir. A shader file is named
// <name>.<vert|frag>.spv, optionally followed by .lz4 when compressed.
// Files with any other name are skipped.
func Discover(dir string) ([]Source, error) {
	var sources []Source
	if err := filepath.Walk(dir, func(path string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if f.IsDir() {
			return nil
		}

		name, stage, ok := parseName(f.Name())
		if !ok {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		sources = append(sources, Source{Name: name, Path: rel, Stage: stage})
		return nil
	}); err != nil {
		return nil, core.Wrap(core.ErrShaderLoad, err, "walk %s", dir)
	}
	return sources, nil
}
