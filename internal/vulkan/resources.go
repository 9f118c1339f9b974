package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

func (d *Device) allocate(requirements *core1_0.MemoryRequirements, properties core1_0.MemoryPropertyFlags) (core1_0.DeviceMemory, error) {
	memoryIndex, err := d.findMemoryType(requirements.MemoryTypeBits, properties)
	if err != nil {
		return core1_0.DeviceMemory{}, err
	}

	memory, _, err := d.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		return core1_0.DeviceMemory{}, errors.Wrapf(err, "failed to allocate %d bytes", requirements.Size)
	}
	return memory, nil
}

func (d *Device) CreateImage(opts gpu.ImageOptions, properties core1_0.MemoryPropertyFlags) (gpu.Image, gpu.DeviceMemory, error) {
	image, _, err := d.deviceDriver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  opts.Width,
			Height: opts.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        opts.Format,
		Tiling:        opts.Tiling,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         opts.Usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to create image")
	}

	memReqs := d.deviceDriver.GetImageMemoryRequirements(image)
	memory, err := d.allocate(memReqs, properties)
	if err != nil {
		d.deviceDriver.DestroyImage(image, nil)
		return 0, 0, err
	}

	_, err = d.deviceDriver.BindImageMemory(image, memory, 0)
	if err != nil {
		d.deviceDriver.DestroyImage(image, nil)
		d.deviceDriver.FreeMemory(memory, nil)
		return 0, 0, errors.Wrap(err, "failed to bind image memory")
	}

	return d.images.add(image), d.memories.add(allocation{memory: memory, size: memReqs.Size}), nil
}

func (d *Device) DestroyImage(image gpu.Image) {
	if vkImage, ok := d.images.remove(image); ok {
		d.deviceDriver.DestroyImage(vkImage, nil)
	}
}

func (d *Device) FreeMemory(memory gpu.DeviceMemory) {
	if alloc, ok := d.memories.remove(memory); ok {
		d.deviceDriver.FreeMemory(alloc.memory, nil)
	}
}

func (d *Device) CreateImageView(image gpu.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (gpu.ImageView, error) {
	imageView, _, err := d.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    d.images.get(image),
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to create image view")
	}
	return d.imageViews.add(imageView), nil
}

func (d *Device) DestroyImageView(view gpu.ImageView) {
	if vkView, ok := d.imageViews.remove(view); ok {
		d.deviceDriver.DestroyImageView(vkView, nil)
	}
}

func (d *Device) CreateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (gpu.Buffer, gpu.DeviceMemory, error) {
	buffer, _, err := d.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to create buffer")
	}

	memRequirements := d.deviceDriver.GetBufferMemoryRequirements(buffer)
	memory, err := d.allocate(memRequirements, properties)
	if err != nil {
		d.deviceDriver.DestroyBuffer(buffer, nil)
		return 0, 0, err
	}

	_, err = d.deviceDriver.BindBufferMemory(buffer, memory, 0)
	if err != nil {
		d.deviceDriver.DestroyBuffer(buffer, nil)
		d.deviceDriver.FreeMemory(memory, nil)
		return 0, 0, errors.Wrap(err, "failed to bind buffer memory")
	}

	return d.buffers.add(buffer), d.memories.add(allocation{memory: memory, size: memRequirements.Size}), nil
}

func (d *Device) DestroyBuffer(buffer gpu.Buffer) {
	if vkBuffer, ok := d.buffers.remove(buffer); ok {
		d.deviceDriver.DestroyBuffer(vkBuffer, nil)
	}
}

func (d *Device) MapMemory(memory gpu.DeviceMemory, offset, size int) ([]byte, error) {
	alloc, ok := d.memories.lookup(memory)
	if !ok {
		return nil, errors.Newf("map of unknown memory %d", memory)
	}
	if size == gpu.WholeSize {
		size = alloc.size - offset
	}

	memoryPtr, _, err := d.deviceDriver.MapMemory(alloc.memory, offset, size, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to map memory")
	}
	return unsafe.Slice((*byte)(memoryPtr), size), nil
}

func (d *Device) UnmapMemory(memory gpu.DeviceMemory) {
	if alloc, ok := d.memories.lookup(memory); ok {
		d.deviceDriver.UnmapMemory(alloc.memory)
	}
}

func (d *Device) CreateSampler(info core1_0.SamplerCreateInfo) (gpu.Sampler, error) {
	sampler, _, err := d.deviceDriver.CreateSampler(nil, info)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create sampler")
	}
	return d.samplers.add(sampler), nil
}

func (d *Device) DestroySampler(sampler gpu.Sampler) {
	if vkSampler, ok := d.samplers.remove(sampler); ok {
		d.deviceDriver.DestroySampler(vkSampler, nil)
	}
}

// BeginSingleTimeCommands allocates a one-shot command buffer and starts
// recording into it.
func (d *Device) BeginSingleTimeCommands() (gpu.CommandBuffer, error) {
	buffers, _, err := d.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to allocate command buffer")
	}

	buffer := buffers[0]
	_, err = d.deviceDriver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		d.deviceDriver.FreeCommandBuffers(buffer)
		return 0, errors.Wrap(err, "failed to begin command buffer")
	}
	return d.commandBuffers.add(buffer), nil
}

// EndSingleTimeCommands submits the buffer, waits for the graphics queue to
// drain and frees the buffer whether or not the submission succeeded.
func (d *Device) EndSingleTimeCommands(commandBuffer gpu.CommandBuffer) error {
	buffer, ok := d.commandBuffers.remove(commandBuffer)
	if !ok {
		return errors.Newf("unknown command buffer %d", commandBuffer)
	}
	defer d.deviceDriver.FreeCommandBuffers(buffer)

	_, err := d.deviceDriver.EndCommandBuffer(buffer)
	if err != nil {
		return errors.Wrap(err, "failed to end command buffer")
	}

	_, err = d.deviceDriver.QueueSubmit(d.graphicsQueue, nil,
		core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	)
	if err != nil {
		return errors.Wrap(err, "failed to submit one-shot commands")
	}

	_, err = d.deviceDriver.QueueWaitIdle(d.graphicsQueue)
	return errors.Wrap(err, "failed to wait for graphics queue")
}

func (d *Device) CmdCopyBuffer(commandBuffer gpu.CommandBuffer, src, dst gpu.Buffer, size int) error {
	return d.deviceDriver.CmdCopyBuffer(d.commandBuffers.get(commandBuffer), d.buffers.get(src), d.buffers.get(dst),
		core1_0.BufferCopy{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		},
	)
}

func (d *Device) CmdCopyBufferToImage(commandBuffer gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, width, height int) error {
	return d.deviceDriver.CmdCopyBufferToImage(d.commandBuffers.get(commandBuffer), d.buffers.get(src), d.images.get(dst), core1_0.ImageLayoutTransferDstOptimal,
		core1_0.BufferImageCopy{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,

			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask:     core1_0.ImageAspectColor,
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
		},
	)
}

func (d *Device) CmdPipelineBarrier(commandBuffer gpu.CommandBuffer, barrier gpu.ImageBarrier) error {
	return d.deviceDriver.CmdPipelineBarrier(d.commandBuffers.get(commandBuffer), barrier.SrcStage, barrier.DstStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		{
			OldLayout:           barrier.OldLayout,
			NewLayout:           barrier.NewLayout,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               d.images.get(barrier.Image),
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     barrier.AspectMask,
				BaseMipLevel:   0,
				LevelCount:     barrier.MipLevelCount,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			SrcAccessMask: barrier.SrcAccess,
			DstAccessMask: barrier.DstAccess,
		},
	})
}
