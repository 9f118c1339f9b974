package main

import (
	"context"
	"encoding/binary"
	"image"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v3/core1_0"
	"golang.org/x/sync/errgroup"

	"github.com/vkngwrapper/minevoxel/internal/config"
	"github.com/vkngwrapper/minevoxel/internal/gpu"
	"github.com/vkngwrapper/minevoxel/internal/model"
	"github.com/vkngwrapper/minevoxel/internal/pipeline"
	"github.com/vkngwrapper/minevoxel/internal/renderer"
	"github.com/vkngwrapper/minevoxel/internal/resource"
	"github.com/vkngwrapper/minevoxel/internal/swapchain"
	"github.com/vkngwrapper/minevoxel/internal/systems"
	"github.com/vkngwrapper/minevoxel/internal/vulkan"
)

type uniforms struct {
	Model      mgl32.Mat4
	View       mgl32.Mat4
	Projection mgl32.Mat4
}

type assets struct {
	mesh    model.Data
	texture *image.RGBA
}

type app struct {
	cfg config.Config

	window   *vulkan.Window
	instance *vulkan.Instance
	device   *vulkan.Device
	renderer *renderer.Renderer

	model          *model.Model
	texture        *resource.Texture
	uniformBuffers []*resource.Buffer
	setLayout      *resource.DescriptorSetLayout
	pool           *resource.DescriptorPool
	globalSets     []gpu.DescriptorSet
	system         *systems.RenderSystem

	camera      camera
	modelMatrix mgl32.Mat4
}

func run(cfg config.Config) error {
	a := &app{cfg: cfg, camera: newCamera(), modelMatrix: mgl32.Ident4()}
	defer a.destroy()

	err := a.init()
	if err != nil {
		return err
	}

	return a.mainLoop()
}

func (a *app) init() error {
	// Decoding runs while the window and device come up.
	group, ctx := errgroup.WithContext(context.Background())
	var loaded assets
	group.Go(func() error {
		var err error
		loaded, err = loadAssets(ctx, a.cfg.Assets)
		return err
	})

	err := a.initGPU()
	if waitErr := group.Wait(); err == nil {
		err = waitErr
	}
	if err != nil {
		return err
	}

	return a.initScene(loaded)
}

func (a *app) initGPU() error {
	var err error
	a.window, err = vulkan.NewWindow(a.cfg.Window.Title, a.cfg.Window.Width, a.cfg.Window.Height)
	if err != nil {
		return err
	}

	a.instance, err = vulkan.NewInstance(a.window, vulkan.InstanceOptions{
		ApplicationName: a.cfg.Window.Title,
		Validation:      a.cfg.Renderer.Validation,
	})
	if err != nil {
		return err
	}

	a.device, err = vulkan.NewDevice(a.instance)
	if err != nil {
		return err
	}

	a.renderer, err = renderer.New(a.window, a.device, a.cfg.SwapchainOptions())
	return err
}

// loadAssets decodes the mesh and the texture concurrently.
func loadAssets(ctx context.Context, cfg config.AssetConfig) (assets, error) {
	group, _ := errgroup.WithContext(ctx)
	var loaded assets

	group.Go(func() error {
		objFile, err := os.Open(cfg.Path(cfg.Model))
		if err != nil {
			return errors.Wrap(err, "failed to open model")
		}
		defer objFile.Close()

		var mtl io.Reader
		if cfg.Material != "" {
			mtlFile, err := os.Open(cfg.Path(cfg.Material))
			switch {
			case err == nil:
				defer mtlFile.Close()
				mtl = mtlFile
			case !errors.Is(err, os.ErrNotExist):
				return errors.Wrap(err, "failed to open material library")
			}
		}

		loaded.mesh, err = model.Load(objFile, mtl)
		return errors.Wrapf(err, "failed to load model %s", cfg.Model)
	})

	group.Go(func() error {
		f, err := os.Open(cfg.Path(cfg.Texture))
		if err != nil {
			return errors.Wrap(err, "failed to open texture")
		}
		defer f.Close()

		loaded.texture, err = resource.DecodeImage(f)
		return errors.Wrapf(err, "failed to decode texture %s", cfg.Texture)
	})

	return loaded, group.Wait()
}

func (a *app) initScene(loaded assets) error {
	var err error
	a.model, err = model.New(a.device, loaded.mesh)
	if err != nil {
		return err
	}

	a.texture, err = resource.NewTexture(a.device, loaded.texture)
	if err != nil {
		return err
	}

	uboSize := binary.Size(uniforms{})
	for i := 0; i < swapchain.MaxFramesInFlight; i++ {
		buffer, err := resource.NewBuffer(a.device, uboSize, 1,
			core1_0.BufferUsageUniformBuffer,
			core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent,
			a.device.MinUniformBufferOffsetAlignment())
		if err != nil {
			return err
		}
		a.uniformBuffers = append(a.uniformBuffers, buffer)

		err = buffer.Map(gpu.WholeSize, 0)
		if err != nil {
			return err
		}
	}

	a.setLayout, err = resource.NewDescriptorSetLayoutBuilder(a.device).
		AddBinding(0, core1_0.DescriptorTypeUniformBuffer, core1_0.StageAllGraphics, 1).
		AddBinding(1, core1_0.DescriptorTypeCombinedImageSampler, core1_0.StageAllGraphics, 1).
		Build()
	if err != nil {
		return err
	}

	a.pool, err = resource.NewDescriptorPoolBuilder(a.device).
		SetMaxSets(swapchain.MaxFramesInFlight).
		AddPoolSize(core1_0.DescriptorTypeUniformBuffer, swapchain.MaxFramesInFlight).
		AddPoolSize(core1_0.DescriptorTypeCombinedImageSampler, swapchain.MaxFramesInFlight).
		Build()
	if err != nil {
		return err
	}

	for _, buffer := range a.uniformBuffers {
		set, err := resource.NewDescriptorWriter(a.setLayout, a.pool).
			WriteBuffer(0, buffer.DescriptorInfoForIndex(0)).
			WriteImage(1, a.texture.DescriptorInfo()).
			Build()
		if err != nil {
			return err
		}
		a.globalSets = append(a.globalSets, set)
	}

	cfg := pipeline.DefaultConfig().WithVertexInput(model.BindingDescriptions(), model.AttributeDescriptions())
	a.system, err = systems.New(a.device, a.renderer.RenderPass(), a.setLayout.Handle(), systems.Shaders{
		FS:       os.DirFS(a.cfg.Assets.Root),
		Vertex:   a.cfg.Assets.VertexShader,
		Fragment: a.cfg.Assets.FragmentShader,
	}, cfg)
	return err
}

func (a *app) mainLoop() error {
	last := hrtime.Now()
	for !a.window.ShouldClose() {
		a.window.PollEvents()

		now := hrtime.Now()
		dt := float32((now - last).Seconds())
		last = now

		a.camera.update(dt, a.window.KeyDown)
		a.modelMatrix = spin(a.modelMatrix, dt)

		err := a.drawFrame()
		if err != nil {
			return err
		}
	}

	return a.device.WaitIdle()
}

func (a *app) drawFrame() error {
	commandBuffer, err := a.renderer.BeginFrame()
	if err != nil {
		return err
	}
	if commandBuffer == 0 {
		return nil
	}

	frameIndex := a.renderer.FrameIndex()
	ubo := uniforms{
		Model:      a.modelMatrix,
		View:       a.camera.view(),
		Projection: projection(a.renderer.AspectRatio()),
	}
	err = a.uniformBuffers[frameIndex].WriteToIndex(&ubo, 0)
	if err != nil {
		return err
	}

	err = a.renderer.BeginSwapchainRenderPass(commandBuffer)
	if err != nil {
		return err
	}
	a.system.Render(systems.FrameInfo{
		CommandBuffer: commandBuffer,
		FrameIndex:    frameIndex,
		DescriptorSet: a.globalSets[frameIndex],
		Objects:       []systems.Drawable{a.model},
	})
	a.renderer.EndSwapchainRenderPass(commandBuffer)

	return a.renderer.EndFrame()
}

// destroy tears down whatever init managed to build, newest first.
func (a *app) destroy() {
	if a.device != nil {
		_ = a.device.WaitIdle()
	}

	if a.system != nil {
		a.system.Destroy()
	}
	if a.pool != nil {
		a.pool.Destroy()
	}
	if a.setLayout != nil {
		a.setLayout.Destroy()
	}
	for _, buffer := range a.uniformBuffers {
		buffer.Destroy()
	}
	if a.texture != nil {
		a.texture.Destroy()
	}
	if a.model != nil {
		a.model.Destroy()
	}
	if a.renderer != nil {
		a.renderer.Destroy()
	}
	if a.device != nil {
		a.device.Destroy()
	}
	if a.instance != nil {
		a.instance.Destroy()
	}
	if a.window != nil {
		a.window.Destroy()
	}
}
