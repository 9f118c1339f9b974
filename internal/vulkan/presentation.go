package vulkan

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

func (d *Device) CreateSwapchain(opts gpu.SwapchainOptions) (gpu.Swapchain, []gpu.Image, error) {
	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int

	indices := d.queueFamilies
	if *indices.GraphicsFamily != *indices.PresentFamily {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = append(queueFamilyIndices, *indices.GraphicsFamily, *indices.PresentFamily)
	}

	swapchain, _, err := d.swapchainDriver.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: d.instance.surface,

		MinImageCount:    opts.MinImageCount,
		ImageFormat:      opts.SurfaceFormat.Format,
		ImageColorSpace:  opts.SurfaceFormat.ColorSpace,
		ImageExtent:      opts.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   opts.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    opts.PresentMode,
		Clipped:        true,
		OldSwapchain:   d.swapchains.get(opts.OldSwapchain),
	})
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to create swapchain")
	}

	images, _, err := d.swapchainDriver.GetSwapchainImages(swapchain)
	if err != nil {
		d.swapchainDriver.DestroySwapchain(swapchain, nil)
		return 0, nil, errors.Wrap(err, "failed to get swapchain images")
	}

	handle := d.swapchains.add(swapchain)
	imageHandles := make([]gpu.Image, len(images))
	for i, image := range images {
		imageHandles[i] = d.images.add(image)
	}
	d.swapchainImages[handle] = imageHandles

	return handle, imageHandles, nil
}

// DestroySwapchain also forgets the swapchain's images, which the driver
// releases along with it.
func (d *Device) DestroySwapchain(swapchain gpu.Swapchain) {
	for _, image := range d.swapchainImages[swapchain] {
		d.images.remove(image)
	}
	delete(d.swapchainImages, swapchain)

	if vkSwapchain, ok := d.swapchains.remove(swapchain); ok {
		d.swapchainDriver.DestroySwapchain(vkSwapchain, nil)
	}
}

func (d *Device) CreateRenderPass(info core1_0.RenderPassCreateInfo) (gpu.RenderPass, error) {
	renderPass, _, err := d.deviceDriver.CreateRenderPass(nil, info)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create render pass")
	}
	return d.renderPasses.add(renderPass), nil
}

func (d *Device) DestroyRenderPass(renderPass gpu.RenderPass) {
	if vkRenderPass, ok := d.renderPasses.remove(renderPass); ok {
		d.deviceDriver.DestroyRenderPass(vkRenderPass, nil)
	}
}

func (d *Device) CreateFramebuffer(renderPass gpu.RenderPass, attachments []gpu.ImageView, extent core1_0.Extent2D) (gpu.Framebuffer, error) {
	framebuffer, _, err := d.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  d.renderPasses.get(renderPass),
		Layers:      1,
		Attachments: getAll(d.imageViews, attachments),
		Width:       extent.Width,
		Height:      extent.Height,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to create framebuffer")
	}
	return d.framebuffers.add(framebuffer), nil
}

func (d *Device) DestroyFramebuffer(framebuffer gpu.Framebuffer) {
	if vkFramebuffer, ok := d.framebuffers.remove(framebuffer); ok {
		d.deviceDriver.DestroyFramebuffer(vkFramebuffer, nil)
	}
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	semaphore, _, err := d.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return 0, errors.Wrap(err, "failed to create semaphore")
	}
	return d.semaphores.add(semaphore), nil
}

func (d *Device) DestroySemaphore(semaphore gpu.Semaphore) {
	if vkSemaphore, ok := d.semaphores.remove(semaphore); ok {
		d.deviceDriver.DestroySemaphore(vkSemaphore, nil)
	}
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	var flags core1_0.FenceCreateFlags
	if signaled {
		flags = core1_0.FenceCreateSignaled
	}

	fence, _, err := d.deviceDriver.CreateFence(nil, core1_0.FenceCreateInfo{Flags: flags})
	if err != nil {
		return 0, errors.Wrap(err, "failed to create fence")
	}
	return d.fences.add(fence), nil
}

func (d *Device) DestroyFence(fence gpu.Fence) {
	if vkFence, ok := d.fences.remove(fence); ok {
		d.deviceDriver.DestroyFence(vkFence, nil)
	}
}

func driverTimeout(timeout time.Duration) time.Duration {
	if timeout == gpu.NoTimeout {
		return common.NoTimeout
	}
	return timeout
}

func (d *Device) WaitForFence(fence gpu.Fence, timeout time.Duration) (gpu.Status, error) {
	res, err := d.deviceDriver.WaitForFences(true, driverTimeout(timeout), d.fences.get(fence))
	if err != nil {
		return gpu.StatusSuccess, errors.Wrap(err, "failed to wait for fence")
	}
	if res == core1_0.VKTimeout {
		return gpu.StatusTimeout, nil
	}
	return gpu.StatusSuccess, nil
}

func (d *Device) ResetFence(fence gpu.Fence) error {
	_, err := d.deviceDriver.ResetFences(d.fences.get(fence))
	return errors.Wrap(err, "failed to reset fence")
}

// presentStatus sorts a swapchain result into the statuses the chain
// reacts to. Out of date arrives as an error from the driver and is not one
// here.
func presentStatus(res common.VkResult, err error) (gpu.Status, error) {
	switch {
	case res == khr_swapchain.VKErrorOutOfDate:
		return gpu.StatusOutOfDate, nil
	case err != nil:
		return gpu.StatusSuccess, err
	case res == khr_swapchain.VKSuboptimal:
		return gpu.StatusSuboptimal, nil
	case res == core1_0.VKTimeout || res == core1_0.VKNotReady:
		return gpu.StatusTimeout, nil
	}
	return gpu.StatusSuccess, nil
}

func (d *Device) AcquireNextImage(swapchain gpu.Swapchain, timeout time.Duration, signal gpu.Semaphore) (int, gpu.Status, error) {
	semaphore := d.semaphores.get(signal)
	imageIndex, res, err := d.swapchainDriver.AcquireNextImage(d.swapchains.get(swapchain), driverTimeout(timeout), &semaphore, nil)

	status, err := presentStatus(res, err)
	if err != nil {
		return 0, status, errors.Wrap(err, "failed to acquire swapchain image")
	}
	return imageIndex, status, nil
}

func (d *Device) QueueSubmit(submit gpu.SubmitInfo, fence gpu.Fence) error {
	vkFence := d.fences.get(fence)
	_, err := d.deviceDriver.QueueSubmit(d.graphicsQueue, &vkFence,
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{d.semaphores.get(submit.Wait)},
			WaitDstStageMask: []core1_0.PipelineStageFlags{submit.WaitStage},
			CommandBuffers:   []core1_0.CommandBuffer{d.commandBuffers.get(submit.CommandBuffer)},
			SignalSemaphores: []core1_0.Semaphore{d.semaphores.get(submit.Signal)},
		},
	)
	return errors.Wrap(err, "failed to submit draw command buffer")
}

func (d *Device) QueuePresent(swapchain gpu.Swapchain, imageIndex int, wait gpu.Semaphore) (gpu.Status, error) {
	res, err := d.swapchainDriver.QueuePresent(d.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{d.semaphores.get(wait)},
		Swapchains:     []khr_swapchain.Swapchain{d.swapchains.get(swapchain)},
		ImageIndices:   []int{imageIndex},
	})

	status, err := presentStatus(res, err)
	return status, errors.Wrap(err, "failed to present swapchain image")
}
