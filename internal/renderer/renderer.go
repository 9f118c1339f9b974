// Package renderer drives the per-frame protocol on top of a presentation
// chain. It owns one command buffer per frame slot and rebuilds the chain when
// the surface goes stale or the window is resized.
package renderer

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
	"github.com/vkngwrapper/minevoxel/internal/swapchain"
)

// ErrFormatChanged is returned when a rebuilt chain no longer renders with the
// color or depth format of the chain it replaces.
var ErrFormatChanged = errors.New("swapchain image or depth format has changed")

var clearColor = [4]float32{0.125, 0.125, 0.125, 1}

type Device interface {
	swapchain.Device

	AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error)
	FreeCommandBuffers(buffers ...gpu.CommandBuffer)
	BeginCommandBuffer(commandBuffer gpu.CommandBuffer, flags core1_0.CommandBufferUsageFlags) error
	EndCommandBuffer(commandBuffer gpu.CommandBuffer) error

	CmdBeginRenderPass(commandBuffer gpu.CommandBuffer, begin gpu.RenderPassBegin) error
	CmdEndRenderPass(commandBuffer gpu.CommandBuffer)
	CmdSetViewport(commandBuffer gpu.CommandBuffer, viewport core1_0.Viewport)
	CmdSetScissor(commandBuffer gpu.CommandBuffer, scissor core1_0.Rect2D)

	WaitIdle() error
}

type Window interface {
	Extent() core1_0.Extent2D
	WasResized() bool
	ResetResized()
	// WaitEvents blocks until the platform delivers at least one event.
	WaitEvents()
}

type Renderer struct {
	window Window
	device Device
	opts   swapchain.Options

	chain          *swapchain.Chain
	commandBuffers []gpu.CommandBuffer

	currentImage int
	frameIndex   int
	frameStarted bool
	rebuilds     int
}

func New(window Window, device Device, opts swapchain.Options) (*Renderer, error) {
	r := &Renderer{
		window: window,
		device: device,
		opts:   opts,
	}

	err := r.recreateSwapchain()
	if err != nil {
		return nil, err
	}

	r.commandBuffers, err = device.AllocateCommandBuffers(swapchain.MaxFramesInFlight)
	if err != nil {
		r.chain.Destroy()
		return nil, errors.Wrap(err, "failed to allocate command buffers")
	}

	return r, nil
}

func (r *Renderer) recreateSwapchain() error {
	extent := r.window.Extent()
	for extent.Width == 0 || extent.Height == 0 {
		r.window.WaitEvents()
		extent = r.window.Extent()
	}

	err := r.device.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "waiting for device idle before swapchain rebuild")
	}

	if r.chain == nil {
		r.chain, err = swapchain.New(r.device, extent, nil, r.opts)
		return err
	}

	old := r.chain
	chain, err := swapchain.New(r.device, extent, old, r.opts)
	if err != nil {
		return err
	}

	if !old.CompareFormats(chain) {
		err = errors.Wrapf(ErrFormatChanged, "color %s -> %s, depth %s -> %s",
			old.ImageFormat(), chain.ImageFormat(), old.DepthFormat(), chain.DepthFormat())
		chain.Destroy()
		return err
	}

	old.Destroy()
	r.chain = chain
	r.rebuilds++
	gpu.Logger().Debug("swapchain replaced", "previous", old.ID(), "current", chain.ID())
	return nil
}

// BeginFrame acquires the next image and starts recording the current frame
// slot's command buffer. A zero command buffer with a nil error means the
// chain was out of date and has been rebuilt; the caller skips this frame.
func (r *Renderer) BeginFrame() (gpu.CommandBuffer, error) {
	if r.frameStarted {
		panic("renderer: cannot call BeginFrame while a frame is already in progress")
	}

	imageIndex, status, err := r.chain.AcquireNextImage()
	if err != nil {
		return 0, err
	}

	switch status {
	case gpu.StatusOutOfDate:
		return 0, r.recreateSwapchain()
	case gpu.StatusTimeout:
		return 0, errors.Wrap(gpu.ErrFenceTimeout, "acquiring swapchain image")
	}

	r.currentImage = imageIndex
	r.frameStarted = true

	commandBuffer := r.CurrentCommandBuffer()
	err = r.device.BeginCommandBuffer(commandBuffer, 0)
	if err != nil {
		r.frameStarted = false
		return 0, errors.Wrap(err, "failed to begin recording command buffer")
	}

	return commandBuffer, nil
}

// EndFrame finishes recording, submits and presents the frame, and rebuilds
// the chain if presentation reported it stale or the window was resized.
func (r *Renderer) EndFrame() error {
	if !r.frameStarted {
		panic("renderer: cannot call EndFrame while no frame is in progress")
	}

	commandBuffer := r.CurrentCommandBuffer()
	r.frameStarted = false
	r.frameIndex = (r.frameIndex + 1) % swapchain.MaxFramesInFlight

	err := r.device.EndCommandBuffer(commandBuffer)
	if err != nil {
		return errors.Wrap(err, "failed to record command buffer")
	}

	status, err := r.chain.Submit(commandBuffer, r.currentImage)
	if err != nil {
		return err
	}
	if status == gpu.StatusTimeout {
		return errors.Wrap(gpu.ErrFenceTimeout, "waiting for swapchain image")
	}

	if status.Stale() || r.window.WasResized() {
		r.window.ResetResized()
		return r.recreateSwapchain()
	}

	return nil
}

// BeginSwapchainRenderPass begins the chain's render pass on the current
// image, clearing it, and sets the viewport and scissor to cover the whole
// extent.
func (r *Renderer) BeginSwapchainRenderPass(commandBuffer gpu.CommandBuffer) error {
	r.assertCurrent("BeginSwapchainRenderPass", commandBuffer)

	extent := r.chain.Extent()
	err := r.device.CmdBeginRenderPass(commandBuffer, gpu.RenderPassBegin{
		RenderPass:   r.chain.RenderPass(),
		Framebuffer:  r.chain.Framebuffer(r.currentImage),
		Extent:       extent,
		ClearColor:   clearColor,
		ClearDepth:   1,
		ClearStencil: 0,
	})
	if err != nil {
		return errors.Wrap(err, "failed to begin render pass")
	}

	r.device.CmdSetViewport(commandBuffer, core1_0.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	r.device.CmdSetScissor(commandBuffer, core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: 0, Y: 0},
		Extent: extent,
	})
	return nil
}

func (r *Renderer) EndSwapchainRenderPass(commandBuffer gpu.CommandBuffer) {
	r.assertCurrent("EndSwapchainRenderPass", commandBuffer)
	r.device.CmdEndRenderPass(commandBuffer)
}

func (r *Renderer) assertCurrent(op string, commandBuffer gpu.CommandBuffer) {
	if !r.frameStarted {
		panic(fmt.Sprintf("renderer: cannot call %s if frame is not in progress", op))
	}
	if commandBuffer != r.commandBuffers[r.frameIndex] {
		panic(fmt.Sprintf("renderer: cannot call %s on command buffer from a different frame", op))
	}
}

func (r *Renderer) IsFrameInProgress() bool { return r.frameStarted }

// CurrentCommandBuffer returns the command buffer being recorded. It panics
// outside of a frame.
func (r *Renderer) CurrentCommandBuffer() gpu.CommandBuffer {
	if !r.frameStarted {
		panic("renderer: cannot get command buffer when frame not in progress")
	}
	return r.commandBuffers[r.frameIndex]
}

// FrameIndex is the frame slot the next (or current) frame records into.
func (r *Renderer) FrameIndex() int { return r.frameIndex }

// Rebuilds counts how many times the chain has been replaced.
func (r *Renderer) Rebuilds() int { return r.rebuilds }

func (r *Renderer) Chain() *swapchain.Chain    { return r.chain }
func (r *Renderer) RenderPass() gpu.RenderPass { return r.chain.RenderPass() }
func (r *Renderer) AspectRatio() float32       { return r.chain.AspectRatio() }

// Destroy releases the command buffers and the chain. The caller waits for
// the device to go idle first.
func (r *Renderer) Destroy() {
	if len(r.commandBuffers) > 0 {
		r.device.FreeCommandBuffers(r.commandBuffers...)
		r.commandBuffers = nil
	}
	if r.chain != nil {
		r.chain.Destroy()
		r.chain = nil
	}
}
