// Package swapchain owns the presentation chain: the presentable images, the
// depth buffers and framebuffers that go with them, the shared render pass,
// and the per-frame synchronization primitives that keep the CPU at most
// MaxFramesInFlight frames ahead of the GPU.
package swapchain

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

// MaxFramesInFlight is the size of the frame slot ring.
const MaxFramesInFlight = 2

// ErrNoDepthFormat is returned when the device supports none of the depth
// formats the chain can render with.
var ErrNoDepthFormat = errors.New("no supported depth format")

// Device is the part of the device collaborator the chain needs.
type Device interface {
	SurfaceSupport() (gpu.SurfaceSupport, error)
	FindSupportedFormat(candidates []core1_0.Format, tiling core1_0.ImageTiling, features core1_0.FormatFeatureFlags) (core1_0.Format, error)

	CreateSwapchain(opts gpu.SwapchainOptions) (gpu.Swapchain, []gpu.Image, error)
	DestroySwapchain(swapchain gpu.Swapchain)

	CreateImage(opts gpu.ImageOptions, properties core1_0.MemoryPropertyFlags) (gpu.Image, gpu.DeviceMemory, error)
	DestroyImage(image gpu.Image)
	FreeMemory(memory gpu.DeviceMemory)
	CreateImageView(image gpu.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (gpu.ImageView, error)
	DestroyImageView(view gpu.ImageView)

	CreateRenderPass(info core1_0.RenderPassCreateInfo) (gpu.RenderPass, error)
	DestroyRenderPass(renderPass gpu.RenderPass)
	CreateFramebuffer(renderPass gpu.RenderPass, attachments []gpu.ImageView, extent core1_0.Extent2D) (gpu.Framebuffer, error)
	DestroyFramebuffer(framebuffer gpu.Framebuffer)

	CreateSemaphore() (gpu.Semaphore, error)
	DestroySemaphore(semaphore gpu.Semaphore)
	CreateFence(signaled bool) (gpu.Fence, error)
	DestroyFence(fence gpu.Fence)
	WaitForFence(fence gpu.Fence, timeout time.Duration) (gpu.Status, error)
	ResetFence(fence gpu.Fence) error

	AcquireNextImage(swapchain gpu.Swapchain, timeout time.Duration, signal gpu.Semaphore) (int, gpu.Status, error)
	QueueSubmit(submit gpu.SubmitInfo, fence gpu.Fence) error
	QueuePresent(swapchain gpu.Swapchain, imageIndex int, wait gpu.Semaphore) (gpu.Status, error)
}

type Options struct {
	// PresentMode is used when the surface offers it, FIFO otherwise.
	PresentMode khr_surface.PresentMode
	// FenceTimeout bounds every fence wait and image acquisition.
	FenceTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		PresentMode:  khr_surface.PresentModeMailbox,
		FenceTimeout: gpu.NoTimeout,
	}
}

type Chain struct {
	device Device
	opts   Options
	id     uuid.UUID

	swapchain   gpu.Swapchain
	imageFormat core1_0.Format
	depthFormat core1_0.Format
	extent      core1_0.Extent2D
	presentMode khr_surface.PresentMode

	// Owned by the platform, released with the swapchain.
	images []gpu.Image

	imageViews   []gpu.ImageView
	depthImages  []gpu.Image
	depthMemory  []gpu.DeviceMemory
	depthViews   []gpu.ImageView
	framebuffers []gpu.Framebuffer
	renderPass   gpu.RenderPass

	imageAvailable [MaxFramesInFlight]gpu.Semaphore
	renderFinished [MaxFramesInFlight]gpu.Semaphore
	inFlight       [MaxFramesInFlight]gpu.Fence
	imagesInFlight []gpu.Fence
	currentFrame   int
}

// New builds a chain presenting at (roughly) windowExtent. When previous is
// non-nil its swapchain is handed to the platform as the recreation hint;
// previous is only read during the call and stays owned by the caller. The
// new chain continues from previous's frame slot.
//
// Everything created before a failure is released before New returns.
func New(device Device, windowExtent core1_0.Extent2D, previous *Chain, opts Options) (*Chain, error) {
	c := &Chain{
		device: device,
		opts:   opts,
		id:     uuid.New(),
	}

	var old gpu.Swapchain
	if previous != nil {
		old = previous.swapchain
		c.currentFrame = previous.currentFrame
	}

	err := c.init(windowExtent, old)
	if err != nil {
		c.Destroy()
		return nil, err
	}

	gpu.Logger().Info("swapchain built",
		"id", c.id,
		"images", len(c.images),
		"width", c.extent.Width,
		"height", c.extent.Height,
		"format", c.imageFormat,
		"depthFormat", c.depthFormat,
		"presentMode", c.presentMode,
		"recreated", previous != nil)
	return c, nil
}

func (c *Chain) init(windowExtent core1_0.Extent2D, old gpu.Swapchain) error {
	err := c.createSwapchain(windowExtent, old)
	if err != nil {
		return err
	}

	err = c.createImageViews()
	if err != nil {
		return err
	}

	err = c.createRenderPass()
	if err != nil {
		return err
	}

	err = c.createDepthResources()
	if err != nil {
		return err
	}

	err = c.createFramebuffers()
	if err != nil {
		return err
	}

	return c.createSyncObjects()
}

func (c *Chain) createSwapchain(windowExtent core1_0.Extent2D, old gpu.Swapchain) error {
	support, err := c.device.SurfaceSupport()
	if err != nil {
		return errors.Wrap(err, "querying surface support")
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return errors.New("surface reports no formats or present modes")
	}

	surfaceFormat := chooseSurfaceFormat(support.Formats)
	presentMode := choosePresentMode(support.PresentModes, c.opts.PresentMode)
	extent := chooseExtent(support.Capabilities, windowExtent)

	swapchain, images, err := c.device.CreateSwapchain(gpu.SwapchainOptions{
		Capabilities:  support.Capabilities,
		SurfaceFormat: surfaceFormat,
		PresentMode:   presentMode,
		Extent:        extent,
		MinImageCount: chooseImageCount(support.Capabilities),
		OldSwapchain:  old,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create swapchain")
	}

	c.swapchain = swapchain
	c.images = images
	c.imageFormat = surfaceFormat.Format
	c.presentMode = presentMode
	c.extent = extent
	return nil
}

func (c *Chain) createImageViews() error {
	c.imageViews = make([]gpu.ImageView, len(c.images))
	for i, image := range c.images {
		view, err := c.device.CreateImageView(image, c.imageFormat, core1_0.ImageAspectColor)
		if err != nil {
			return errors.Wrapf(err, "failed to create view for swapchain image %d", i)
		}
		c.imageViews[i] = view
	}
	return nil
}

func (c *Chain) findDepthFormat() (core1_0.Format, error) {
	format, err := c.device.FindSupportedFormat(depthFormatCandidates, core1_0.ImageTilingOptimal, core1_0.FormatFeatureDepthStencilAttachment)
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "finding depth format"), ErrNoDepthFormat)
	}
	return format, nil
}

func (c *Chain) createRenderPass() error {
	depthFormat, err := c.findDepthFormat()
	if err != nil {
		return err
	}
	c.depthFormat = depthFormat

	renderPass, err := c.device.CreateRenderPass(core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         c.imageFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
			{
				Format:         depthFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpDontCare,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
				DepthStencilAttachment: &core1_0.AttachmentReference{
					Attachment: 1,
					Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				DstAccessMask: core1_0.AccessColorAttachmentWrite | core1_0.AccessDepthStencilAttachmentWrite,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create render pass")
	}

	c.renderPass = renderPass
	return nil
}

func (c *Chain) createDepthResources() error {
	count := len(c.images)
	c.depthImages = make([]gpu.Image, count)
	c.depthMemory = make([]gpu.DeviceMemory, count)
	c.depthViews = make([]gpu.ImageView, count)

	for i := 0; i < count; i++ {
		image, memory, err := c.device.CreateImage(gpu.ImageOptions{
			Width:  c.extent.Width,
			Height: c.extent.Height,
			Format: c.depthFormat,
			Tiling: core1_0.ImageTilingOptimal,
			Usage:  core1_0.ImageUsageDepthStencilAttachment,
		}, core1_0.MemoryPropertyDeviceLocal)
		if err != nil {
			return errors.Wrapf(err, "failed to create depth image %d", i)
		}
		c.depthImages[i] = image
		c.depthMemory[i] = memory

		view, err := c.device.CreateImageView(image, c.depthFormat, core1_0.ImageAspectDepth)
		if err != nil {
			return errors.Wrapf(err, "failed to create depth image view %d", i)
		}
		c.depthViews[i] = view
	}

	return nil
}

func (c *Chain) createFramebuffers() error {
	c.framebuffers = make([]gpu.Framebuffer, len(c.images))
	for i := range c.images {
		framebuffer, err := c.device.CreateFramebuffer(c.renderPass, []gpu.ImageView{c.imageViews[i], c.depthViews[i]}, c.extent)
		if err != nil {
			return errors.Wrapf(err, "failed to create framebuffer %d", i)
		}
		c.framebuffers[i] = framebuffer
	}
	return nil
}

func (c *Chain) createSyncObjects() error {
	c.imagesInFlight = make([]gpu.Fence, len(c.images))

	for i := 0; i < MaxFramesInFlight; i++ {
		var err error
		c.imageAvailable[i], err = c.device.CreateSemaphore()
		if err != nil {
			return errors.Wrap(err, "failed to create synchronization objects for frame")
		}

		c.renderFinished[i], err = c.device.CreateSemaphore()
		if err != nil {
			return errors.Wrap(err, "failed to create synchronization objects for frame")
		}

		// Signaled so the first wait on each slot returns immediately.
		c.inFlight[i], err = c.device.CreateFence(true)
		if err != nil {
			return errors.Wrap(err, "failed to create synchronization objects for frame")
		}
	}

	return nil
}

// AcquireNextImage waits for the current frame slot's previous submission to
// finish, then asks the platform for the next image to render into. A stale
// status is not an error; the caller is expected to rebuild the chain.
func (c *Chain) AcquireNextImage() (int, gpu.Status, error) {
	status, err := c.device.WaitForFence(c.inFlight[c.currentFrame], c.opts.FenceTimeout)
	if err != nil {
		return 0, status, errors.Wrap(err, "waiting for frame fence")
	}
	if status == gpu.StatusTimeout {
		return 0, status, nil
	}

	imageIndex, status, err := c.device.AcquireNextImage(c.swapchain, c.opts.FenceTimeout, c.imageAvailable[c.currentFrame])
	if err != nil {
		return 0, status, errors.Wrap(err, "failed to acquire swapchain image")
	}
	return imageIndex, status, nil
}

// Submit queues the recorded command buffer for the image returned by
// AcquireNextImage and presents it. The frame slot advances whether or not
// presentation succeeds; the returned status is the present status.
func (c *Chain) Submit(commandBuffer gpu.CommandBuffer, imageIndex int) (gpu.Status, error) {
	if imageIndex < 0 || imageIndex >= len(c.images) {
		panic(fmt.Sprintf("swapchain: image index %d out of range [0, %d)", imageIndex, len(c.images)))
	}

	// Another slot may still be rendering into this image.
	if fence := c.imagesInFlight[imageIndex]; fence != 0 {
		status, err := c.device.WaitForFence(fence, c.opts.FenceTimeout)
		if err != nil {
			return status, errors.Wrap(err, "waiting for image fence")
		}
		if status == gpu.StatusTimeout {
			return status, nil
		}
	}

	frame := c.currentFrame
	c.imagesInFlight[imageIndex] = c.inFlight[frame]

	err := c.device.ResetFence(c.inFlight[frame])
	if err != nil {
		return gpu.StatusSuccess, errors.Wrap(err, "failed to reset frame fence")
	}

	err = c.device.QueueSubmit(gpu.SubmitInfo{
		CommandBuffer: commandBuffer,
		Wait:          c.imageAvailable[frame],
		WaitStage:     core1_0.PipelineStageColorAttachmentOutput,
		Signal:        c.renderFinished[frame],
	}, c.inFlight[frame])
	if err != nil {
		return gpu.StatusSuccess, errors.Wrap(err, "failed to submit draw command buffer")
	}

	status, err := c.device.QueuePresent(c.swapchain, imageIndex, c.renderFinished[frame])
	c.currentFrame = (frame + 1) % MaxFramesInFlight
	if err != nil {
		return status, errors.Wrap(err, "failed to present swapchain image")
	}
	return status, nil
}

// Destroy releases everything the chain owns. It is safe on a partially
// built chain and safe to call twice.
func (c *Chain) Destroy() {
	for _, view := range c.imageViews {
		if view != 0 {
			c.device.DestroyImageView(view)
		}
	}
	c.imageViews = nil

	if c.swapchain != 0 {
		c.device.DestroySwapchain(c.swapchain)
		c.swapchain = 0
	}
	c.images = nil

	for i := range c.depthImages {
		if c.depthViews[i] != 0 {
			c.device.DestroyImageView(c.depthViews[i])
		}
		if c.depthImages[i] != 0 {
			c.device.DestroyImage(c.depthImages[i])
		}
		if c.depthMemory[i] != 0 {
			c.device.FreeMemory(c.depthMemory[i])
		}
	}
	c.depthImages, c.depthMemory, c.depthViews = nil, nil, nil

	for _, framebuffer := range c.framebuffers {
		if framebuffer != 0 {
			c.device.DestroyFramebuffer(framebuffer)
		}
	}
	c.framebuffers = nil

	if c.renderPass != 0 {
		c.device.DestroyRenderPass(c.renderPass)
		c.renderPass = 0
	}

	for i := 0; i < MaxFramesInFlight; i++ {
		if c.renderFinished[i] != 0 {
			c.device.DestroySemaphore(c.renderFinished[i])
			c.renderFinished[i] = 0
		}
		if c.imageAvailable[i] != 0 {
			c.device.DestroySemaphore(c.imageAvailable[i])
			c.imageAvailable[i] = 0
		}
		if c.inFlight[i] != 0 {
			c.device.DestroyFence(c.inFlight[i])
			c.inFlight[i] = 0
		}
	}
	c.imagesInFlight = nil
}

// CompareFormats reports whether other renders with the same color and depth
// formats, i.e. whether pipelines built against one chain's render pass are
// still valid for the other.
func (c *Chain) CompareFormats(other *Chain) bool {
	return c.imageFormat == other.imageFormat && c.depthFormat == other.depthFormat
}

// ID identifies this chain generation in logs.
func (c *Chain) ID() uuid.UUID { return c.id }

func (c *Chain) ImageCount() int                      { return len(c.images) }
func (c *Chain) Extent() core1_0.Extent2D             { return c.extent }
func (c *Chain) ImageFormat() core1_0.Format          { return c.imageFormat }
func (c *Chain) DepthFormat() core1_0.Format          { return c.depthFormat }
func (c *Chain) PresentMode() khr_surface.PresentMode { return c.presentMode }
func (c *Chain) RenderPass() gpu.RenderPass           { return c.renderPass }
func (c *Chain) CurrentFrame() int                    { return c.currentFrame }

func (c *Chain) Framebuffer(index int) gpu.Framebuffer { return c.framebuffers[index] }
func (c *Chain) ImageView(index int) gpu.ImageView     { return c.imageViews[index] }
func (c *Chain) DepthView(index int) gpu.ImageView     { return c.depthViews[index] }

func (c *Chain) AspectRatio() float32 {
	return float32(c.extent.Width) / float32(c.extent.Height)
}
