// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/xlab/closer"

	"github.com/devblok/vkboot/core"
	"github.com/devblok/vkboot/gfx/vkr"
	"github.com/devblok/vkboot/shader"
	"github.com/devblok/vkboot/utility/pack"
	"github.com/devblok/vkboot/window"
)

func init() {
	runtime.LockOSThread()
}

var (
	configFile = flag.String("config", "", "Dotenv file with settings")
	cpuProfile = flag.String("cpuprof", "", "Profile CPU usage to file")
	debug      = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	pollDelay  = flag.Duration("poll", 50*time.Millisecond, "Event poll interval")
)

// application holds everything that has to be torn down, in creation order.
type application struct {
	log     logrus.FieldLogger
	sdl     bool
	win     *window.SDL
	ctx     *core.DeviceContext
	sc      *core.SwapChain
	pb      *core.PipelineBuilder
	shaders []*shader.Module
}

func (a *application) destroy() {
	for _, m := range a.shaders {
		m.Release()
	}
	if a.pb != nil {
		a.pb.Destroy()
	}
	if a.sc != nil {
		a.sc.Destroy()
	}
	if a.ctx != nil {
		a.ctx.Destroy()
	}
	if a.win != nil {
		a.win.Destroy()
	}
	if a.sdl {
		window.Quit()
	}
	a.log.Info("shut down")
}

func (a *application) resize(style core.PipelineConfiguration) error {
	width, height := a.win.FramebufferSize()
	if width == 0 || height == 0 {
		return nil
	}
	if err := a.sc.Recreate(width, height); err != nil {
		return err
	}
	return a.pb.Reconfigure(core.UpdatedSettings{LineWidth: style.LineWidth})
}

// loadShaders loads shaders from a directory or a shader pack.
// A missing location is not an error.
func loadShaders(ctx *core.DeviceContext, location string) ([]*shader.Module, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, nil
	}
	if info.IsDir() {
		return shader.LoadDirectory(ctx, location)
	}

	archive, err := pack.OpenFile(location)
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	return shader.LoadPack(ctx, archive)
}

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var files []string
	if *configFile != "" {
		files = append(files, *configFile)
	}
	cfg, err := core.LoadConfiguration(files...)
	if err != nil {
		logger.WithError(err).Fatal("load configuration")
	}
	if *debug {
		cfg.Instance.DebugMode = true
	}
	if cfg.Instance.DebugMode {
		logger.SetLevel(logrus.DebugLevel)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			logger.WithError(err).Fatal("create profile")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.WithError(err).Fatal("start profile")
		}
		closer.Bind(pprof.StopCPUProfile)
	}

	app := &application{log: logger}
	closer.Bind(app.destroy)
	defer closer.Close()

	if err := window.Init(); err != nil {
		logger.WithError(err).Error("init window system")
		closer.Fatalln(err)
	}
	app.sdl = true

	if app.win, err = window.NewSDL(cfg.Window.Title, cfg.Window.Width, cfg.Window.Height); err != nil {
		closer.Fatalln(err)
	}

	driver, err := vkr.NewDriver(window.ProcAddr())
	if err != nil {
		closer.Fatalln(err)
	}

	if app.ctx, err = core.NewDeviceContext(driver, app.win, cfg, logger); err != nil {
		logger.WithError(err).Error("create device context")
		closer.Fatalln(err)
	}

	width, height := app.win.FramebufferSize()
	if app.sc, err = core.NewSwapChain(app.ctx, width, height); err != nil {
		logger.WithError(err).Error("create swap chain")
		closer.Fatalln(err)
	}

	if app.pb, err = core.NewPipelineBuilder(app.sc, cfg.Pipeline); err != nil {
		logger.WithError(err).Error("build pipeline")
		closer.Fatalln(err)
	}

	if app.shaders, err = loadShaders(app.ctx, cfg.ShaderDirectory); err != nil {
		logger.WithError(err).Error("load shaders")
		closer.Fatalln(err)
	}
	logger.WithField("count", len(app.shaders)).Info("shaders loaded")

	ticker := time.NewTicker(*pollDelay)
	defer ticker.Stop()

	/* Event loop */
	for range ticker.C {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch et := event.(type) {
			case *sdl.KeyboardEvent:
				if et.Keysym.Sym == sdl.K_ESCAPE {
					return
				}
			case *sdl.QuitEvent:
				return
			case *sdl.WindowEvent:
				if et.Event != sdl.WINDOWEVENT_SIZE_CHANGED {
					continue
				}
				if err := app.resize(cfg.Pipeline); err != nil {
					logger.WithError(err).Error("resize")
					closer.Fatalln(err)
				}
			}
		}
	}
}
