package gpu

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

// SurfaceSupport is what the surface reports it can present.
type SurfaceSupport struct {
	Capabilities khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

type SwapchainOptions struct {
	Capabilities  khr_surface.SurfaceCapabilities
	SurfaceFormat khr_surface.SurfaceFormat
	PresentMode   khr_surface.PresentMode
	Extent        core1_0.Extent2D
	MinImageCount int

	// OldSwapchain is handed to the platform as a recreation hint. It is not
	// destroyed by the call.
	OldSwapchain Swapchain
}

type ImageOptions struct {
	Width, Height int
	Format        core1_0.Format
	Tiling        core1_0.ImageTiling
	Usage         core1_0.ImageUsageFlags
}

// SubmitInfo describes a single command buffer submission to the graphics
// queue.
type SubmitInfo struct {
	CommandBuffer CommandBuffer
	Wait          Semaphore
	WaitStage     core1_0.PipelineStageFlags
	Signal        Semaphore
}

type RenderPassBegin struct {
	RenderPass   RenderPass
	Framebuffer  Framebuffer
	Extent       core1_0.Extent2D
	ClearColor   [4]float32
	ClearDepth   float32
	ClearStencil uint32
}

type GraphicsPipelineOptions struct {
	VertexShader   ShaderModule
	FragmentShader ShaderModule

	Bindings   []core1_0.VertexInputBindingDescription
	Attributes []core1_0.VertexInputAttributeDescription

	InputAssembly        core1_0.PipelineInputAssemblyStateCreateInfo
	Rasterization        core1_0.PipelineRasterizationStateCreateInfo
	Multisample          core1_0.PipelineMultisampleStateCreateInfo
	ColorBlendAttachment core1_0.PipelineColorBlendAttachmentState
	LogicOpEnabled       bool
	LogicOp              core1_0.LogicOp
	BlendConstants       [4]float32
	DepthStencil         core1_0.PipelineDepthStencilStateCreateInfo
	DynamicStates        []core1_0.DynamicState

	Layout     PipelineLayout
	RenderPass RenderPass
	Subpass    int
}

type ImageBarrier struct {
	Image         Image
	OldLayout     core1_0.ImageLayout
	NewLayout     core1_0.ImageLayout
	SrcAccess     core1_0.AccessFlags
	DstAccess     core1_0.AccessFlags
	SrcStage      core1_0.PipelineStageFlags
	DstStage      core1_0.PipelineStageFlags
	AspectMask    core1_0.ImageAspectFlags
	MipLevelCount int
}

type BufferInfo struct {
	Buffer Buffer
	Offset int
	Range  int
}

type ImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  core1_0.ImageLayout
}

// DescriptorWrite updates one binding of a descriptor set with either
// buffer or image information.
type DescriptorWrite struct {
	Set     DescriptorSet
	Binding int
	Type    core1_0.DescriptorType
	Buffer  *BufferInfo
	Image   *ImageInfo
}

// WholeSize maps or describes everything from the offset to the end of the
// allocation.
const WholeSize = -1
