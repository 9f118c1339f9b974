// Package gpu holds the backend-neutral vocabulary shared by the presentation
// chain, the frame orchestrator and the render systems: opaque handles, call
// outcomes and the option structs passed to a device collaborator.
//
// Handles are plain ids. The zero value of every handle type means "none",
// the same way an uninitialized driver object does.
package gpu

type (
	Swapchain           uint64
	Image               uint64
	ImageView           uint64
	DeviceMemory        uint64
	Buffer              uint64
	Sampler             uint64
	RenderPass          uint64
	Framebuffer         uint64
	Semaphore           uint64
	Fence               uint64
	CommandBuffer       uint64
	ShaderModule        uint64
	Pipeline            uint64
	PipelineLayout      uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
)
