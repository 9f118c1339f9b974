package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

func (d *Device) AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	buffers, _, err := d.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to allocate %d command buffers", count)
	}

	handles := make([]gpu.CommandBuffer, len(buffers))
	for i, buffer := range buffers {
		handles[i] = d.commandBuffers.add(buffer)
	}
	return handles, nil
}

func (d *Device) FreeCommandBuffers(buffers ...gpu.CommandBuffer) {
	var vkBuffers []core1_0.CommandBuffer
	for _, buffer := range buffers {
		if vkBuffer, ok := d.commandBuffers.remove(buffer); ok {
			vkBuffers = append(vkBuffers, vkBuffer)
		}
	}
	if len(vkBuffers) > 0 {
		d.deviceDriver.FreeCommandBuffers(vkBuffers...)
	}
}

func (d *Device) BeginCommandBuffer(commandBuffer gpu.CommandBuffer, flags core1_0.CommandBufferUsageFlags) error {
	_, err := d.deviceDriver.BeginCommandBuffer(d.commandBuffers.get(commandBuffer), core1_0.CommandBufferBeginInfo{
		Flags: flags,
	})
	return errors.Wrap(err, "failed to begin recording command buffer")
}

func (d *Device) EndCommandBuffer(commandBuffer gpu.CommandBuffer) error {
	_, err := d.deviceDriver.EndCommandBuffer(d.commandBuffers.get(commandBuffer))
	return errors.Wrap(err, "failed to record command buffer")
}

func clearValues(begin gpu.RenderPassBegin) []core1_0.ClearValue {
	return []core1_0.ClearValue{
		core1_0.ClearValueFloat(begin.ClearColor),
		core1_0.ClearValueDepthStencil{Depth: begin.ClearDepth, Stencil: begin.ClearStencil},
	}
}

func (d *Device) CmdBeginRenderPass(commandBuffer gpu.CommandBuffer, begin gpu.RenderPassBegin) error {
	return d.deviceDriver.CmdBeginRenderPass(d.commandBuffers.get(commandBuffer), core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  d.renderPasses.get(begin.RenderPass),
			Framebuffer: d.framebuffers.get(begin.Framebuffer),
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: begin.Extent,
			},
			ClearValues: clearValues(begin),
		})
}

func (d *Device) CmdEndRenderPass(commandBuffer gpu.CommandBuffer) {
	d.deviceDriver.CmdEndRenderPass(d.commandBuffers.get(commandBuffer))
}

func (d *Device) CmdSetViewport(commandBuffer gpu.CommandBuffer, viewport core1_0.Viewport) {
	d.deviceDriver.CmdSetViewport(d.commandBuffers.get(commandBuffer), viewport)
}

func (d *Device) CmdSetScissor(commandBuffer gpu.CommandBuffer, scissor core1_0.Rect2D) {
	d.deviceDriver.CmdSetScissor(d.commandBuffers.get(commandBuffer), scissor)
}

func (d *Device) CmdBindPipeline(commandBuffer gpu.CommandBuffer, pipeline gpu.Pipeline) {
	d.deviceDriver.CmdBindPipeline(d.commandBuffers.get(commandBuffer), core1_0.PipelineBindPointGraphics, d.pipelines.get(pipeline))
}

func (d *Device) CmdBindDescriptorSets(commandBuffer gpu.CommandBuffer, layout gpu.PipelineLayout, firstSet int, sets []gpu.DescriptorSet) {
	d.deviceDriver.CmdBindDescriptorSets(d.commandBuffers.get(commandBuffer), core1_0.PipelineBindPointGraphics, d.pipelineLayouts.get(layout), firstSet, getAll(d.descriptorSets, sets), nil)
}

func (d *Device) CmdBindVertexBuffers(commandBuffer gpu.CommandBuffer, buffers []gpu.Buffer, offsets []int) {
	d.deviceDriver.CmdBindVertexBuffers(d.commandBuffers.get(commandBuffer), 0, getAll(d.buffers, buffers), offsets)
}

func (d *Device) CmdBindIndexBuffer(commandBuffer gpu.CommandBuffer, buffer gpu.Buffer, offset int) {
	d.deviceDriver.CmdBindIndexBuffer(d.commandBuffers.get(commandBuffer), d.buffers.get(buffer), offset, core1_0.IndexTypeUInt32)
}

func (d *Device) CmdDraw(commandBuffer gpu.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance int) {
	d.deviceDriver.CmdDraw(d.commandBuffers.get(commandBuffer), vertexCount, instanceCount, uint32(firstVertex), uint32(firstInstance))
}

func (d *Device) CmdDrawIndexed(commandBuffer gpu.CommandBuffer, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	d.deviceDriver.CmdDrawIndexed(d.commandBuffers.get(commandBuffer), indexCount, instanceCount, uint32(firstIndex), vertexOffset, uint32(firstInstance))
}
