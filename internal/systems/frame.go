// Package systems holds the render systems: one graphics pipeline each, with
// stateless per-frame draw dispatch.
package systems

import "github.com/vkngwrapper/minevoxel/internal/gpu"

// Drawable is something a render system can issue draw calls for.
type Drawable interface {
	Bind(commandBuffer gpu.CommandBuffer)
	Draw(commandBuffer gpu.CommandBuffer)
}

// FrameInfo is built fresh every frame and handed to each render system by
// value.
type FrameInfo struct {
	CommandBuffer gpu.CommandBuffer
	FrameIndex    int
	// DescriptorSet is the frame's global set. It is ignored by systems built
	// without a set layout.
	DescriptorSet gpu.DescriptorSet
	Objects       []Drawable
}
