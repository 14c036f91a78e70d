// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/devblok/vkboot/gfx"
)

// ValidationLayer is the layer requested in debug mode.
const ValidationLayer = "VK_LAYER_KHRONOS_validation"

// SwapchainExtension is the device extension presentation depends on.
const SwapchainExtension = "VK_KHR_swapchain"

// Configuration defines the settings the rendering context is built from.
type Configuration struct {
	Instance InstanceConfiguration
	Device   DeviceConfiguration
	Pipeline PipelineConfiguration
	Window   WindowConfiguration

	ShaderDirectory string
}

// InstanceConfiguration is used to configure the graphics API instance.
type InstanceConfiguration struct {
	DebugMode bool

	ApplicationName    string
	ApplicationVersion uint32
	EngineName         string
	EngineVersion      uint32
	APIVersion         uint32

	// Extensions are requested in addition to the ones the window needs.
	Extensions       []string
	ValidationLayers []string
}

// DeviceConfiguration is used to configure adapter selection
// and the logical device.
type DeviceConfiguration struct {
	RequiredExtensions []string

	// RequireDiscrete rejects integrated, virtual and software adapters.
	RequireDiscrete bool
}

// PipelineConfiguration is used to configure the fixed function pipeline.
type PipelineConfiguration struct {
	MSAAEnabled bool
	MSAASamples gfx.SampleCount
	PolygonMode gfx.PolygonMode
	CullMode    gfx.CullMode
	FrontFace   gfx.FrontFace
	LineWidth   float32
}

// WindowConfiguration is used to configure the application window.
type WindowConfiguration struct {
	Title  string
	Width  uint32
	Height uint32
}

// MakeVersion packs a version the way the graphics API expects it.
func MakeVersion(major, minor, patch uint32) uint32 {
	return major<<22 | minor<<12 | patch
}

// DefaultConfiguration returns the configuration used when nothing is overridden.
func DefaultConfiguration() Configuration {
	return Configuration{
		Instance: InstanceConfiguration{
			ApplicationName:    "vkboot",
			ApplicationVersion: MakeVersion(1, 0, 0),
			EngineName:         "vkboot",
			EngineVersion:      MakeVersion(1, 0, 0),
			APIVersion:         MakeVersion(1, 0, 0),
			ValidationLayers:   []string{ValidationLayer},
		},
		Device: DeviceConfiguration{
			RequiredExtensions: []string{SwapchainExtension},
			RequireDiscrete:    true,
		},
		Pipeline: PipelineConfiguration{
			MSAASamples: gfx.SampleCount1,
			PolygonMode: gfx.PolygonModeFill,
			CullMode:    gfx.CullModeBack,
			FrontFace:   gfx.FrontFaceClockwise,
			LineWidth:   1.0,
		},
		Window: WindowConfiguration{
			Title:  "vkboot",
			Width:  800,
			Height: 600,
		},
		ShaderDirectory: "./shaders",
	}
}

// LoadConfiguration starts from DefaultConfiguration, applies the given
// dotenv files in order and then the process environment.
func LoadConfiguration(files ...string) (Configuration, error) {
	cfg := DefaultConfiguration()
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			return cfg, errors.Wrapf(err, "read %s", file)
		}
		if err := cfg.apply(func(key string) (string, bool) {
			v, ok := values[key]
			return v, ok
		}); err != nil {
			return cfg, errors.Wrapf(err, "apply %s", file)
		}
	}

	if err := cfg.apply(func(key string) (string, bool) {
		v, err := envy.MustGet(key)
		return v, err == nil
	}); err != nil {
		return cfg, errors.Wrap(err, "apply environment")
	}
	return cfg, cfg.Validate()
}

// Validate checks values that can not be caught while parsing.
func (c Configuration) Validate() error {
	if !c.Pipeline.MSAASamples.Valid() {
		return fmt.Errorf("invalid sample count %d", c.Pipeline.MSAASamples)
	}
	if c.Pipeline.LineWidth <= 0 {
		return fmt.Errorf("invalid line width %v", c.Pipeline.LineWidth)
	}
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("invalid window size %dx%d", c.Window.Width, c.Window.Height)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Configuration) apply(lookup lookupFunc) error {
	var err error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok {
			*dst = splitList(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && err == nil {
			var b bool
			if b, err = strconv.ParseBool(v); err == nil {
				*dst = b
			} else {
				err = errors.Wrap(err, key)
			}
		}
	}
	u32 := func(key string, dst *uint32) {
		if v, ok := lookup(key); ok && err == nil {
			var n uint64
			if n, err = strconv.ParseUint(v, 10, 32); err == nil {
				*dst = uint32(n)
			} else {
				err = errors.Wrap(err, key)
			}
		}
	}

	boolean("VKBOOT_DEBUG", &c.Instance.DebugMode)
	str("VKBOOT_APP_NAME", &c.Instance.ApplicationName)
	str("VKBOOT_ENGINE_NAME", &c.Instance.EngineName)
	list("VKBOOT_INSTANCE_EXTENSIONS", &c.Instance.Extensions)
	list("VKBOOT_VALIDATION_LAYERS", &c.Instance.ValidationLayers)
	if v, ok := lookup("VKBOOT_API_VERSION"); ok && err == nil {
		c.Instance.APIVersion, err = parseVersion(v)
	}

	list("VKBOOT_DEVICE_EXTENSIONS", &c.Device.RequiredExtensions)
	boolean("VKBOOT_REQUIRE_DISCRETE", &c.Device.RequireDiscrete)

	boolean("VKBOOT_MSAA", &c.Pipeline.MSAAEnabled)
	samples := uint32(c.Pipeline.MSAASamples)
	u32("VKBOOT_MSAA_SAMPLES", &samples)
	c.Pipeline.MSAASamples = gfx.SampleCount(samples)
	if v, ok := lookup("VKBOOT_POLYGON_MODE"); ok && err == nil {
		c.Pipeline.PolygonMode, err = gfx.ParsePolygonMode(v)
	}
	if v, ok := lookup("VKBOOT_CULL_MODE"); ok && err == nil {
		c.Pipeline.CullMode, err = gfx.ParseCullMode(v)
	}
	if v, ok := lookup("VKBOOT_FRONT_FACE"); ok && err == nil {
		c.Pipeline.FrontFace, err = gfx.ParseFrontFace(v)
	}
	if v, ok := lookup("VKBOOT_LINE_WIDTH"); ok && err == nil {
		var f float64
		if f, err = strconv.ParseFloat(v, 32); err == nil {
			c.Pipeline.LineWidth = float32(f)
		} else {
			err = errors.Wrap(err, "VKBOOT_LINE_WIDTH")
		}
	}

	str("VKBOOT_TITLE", &c.Window.Title)
	u32("VKBOOT_WIDTH", &c.Window.Width)
	u32("VKBOOT_HEIGHT", &c.Window.Height)
	str("VKBOOT_SHADER_DIR", &c.ShaderDirectory)

	return err
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseVersion(s string) (uint32, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("malformed version %q", s)
	}
	// major and minor are 10 bits wide, patch 12
	widths := [3]int{10, 10, 12}
	var nums [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, widths[i])
		if err != nil {
			return 0, fmt.Errorf("malformed version %q", s)
		}
		nums[i] = uint32(n)
	}
	return MakeVersion(nums[0], nums[1], nums[2]), nil
}
