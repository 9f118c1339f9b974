package pipeline

import (
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

// Config is the fixed-function state of a graphics pipeline. It is a plain
// value: the With methods return modified copies and never touch the
// receiver's slices.
type Config struct {
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

	Subpass int
}

const colorWriteAll = core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha

// DefaultConfig draws filled, unculled triangle lists with depth testing and
// a dynamic viewport and scissor.
func DefaultConfig() Config {
	return Config{
		InputAssembly: core1_0.PipelineInputAssemblyStateCreateInfo{
			Topology:               core1_0.PrimitiveTopologyTriangleList,
			PrimitiveRestartEnable: false,
		},
		Rasterization: core1_0.PipelineRasterizationStateCreateInfo{
			DepthClampEnable:        false,
			RasterizerDiscardEnable: false,

			PolygonMode: core1_0.PolygonModeFill,
			FrontFace:   core1_0.FrontFaceClockwise,

			DepthBiasEnable: false,

			LineWidth: 1.0,
		},
		Multisample: core1_0.PipelineMultisampleStateCreateInfo{
			SampleShadingEnable:  false,
			RasterizationSamples: core1_0.Samples1,
			MinSampleShading:     1.0,
		},
		ColorBlendAttachment: core1_0.PipelineColorBlendAttachmentState{
			BlendEnabled:   false,
			ColorWriteMask: colorWriteAll,

			SrcColorBlendFactor: core1_0.BlendFactorOne,
			DstColorBlendFactor: core1_0.BlendFactorZero,
			ColorBlendOp:        core1_0.BlendOpAdd,
			SrcAlphaBlendFactor: core1_0.BlendFactorOne,
			DstAlphaBlendFactor: core1_0.BlendFactorZero,
			AlphaBlendOp:        core1_0.BlendOpAdd,
		},
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,
		DepthStencil: core1_0.PipelineDepthStencilStateCreateInfo{
			DepthTestEnable:       true,
			DepthWriteEnable:      true,
			DepthCompareOp:        core1_0.CompareOpLess,
			DepthBoundsTestEnable: false,
			MinDepthBounds:        0,
			MaxDepthBounds:        1,
			StencilTestEnable:     false,
		},
		DynamicStates: []core1_0.DynamicState{core1_0.DynamicStateViewport, core1_0.DynamicStateScissor},
	}
}

func (c Config) clone() Config {
	c.Bindings = append([]core1_0.VertexInputBindingDescription(nil), c.Bindings...)
	c.Attributes = append([]core1_0.VertexInputAttributeDescription(nil), c.Attributes...)
	c.DynamicStates = append([]core1_0.DynamicState(nil), c.DynamicStates...)
	return c
}

func (c Config) WithVertexInput(bindings []core1_0.VertexInputBindingDescription, attributes []core1_0.VertexInputAttributeDescription) Config {
	c = c.clone()
	c.Bindings = append(c.Bindings[:0], bindings...)
	c.Attributes = append(c.Attributes[:0], attributes...)
	return c
}

func (c Config) WithCullMode(mode core1_0.CullModeFlags, front core1_0.FrontFace) Config {
	c = c.clone()
	c.Rasterization.CullMode = mode
	c.Rasterization.FrontFace = front
	return c
}

// WithAlphaBlending enables standard source-over blending.
func (c Config) WithAlphaBlending() Config {
	c = c.clone()
	c.ColorBlendAttachment = core1_0.PipelineColorBlendAttachmentState{
		BlendEnabled:   true,
		ColorWriteMask: colorWriteAll,

		SrcColorBlendFactor: core1_0.BlendFactorSrcAlpha,
		DstColorBlendFactor: core1_0.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        core1_0.BlendOpAdd,
		SrcAlphaBlendFactor: core1_0.BlendFactorOne,
		DstAlphaBlendFactor: core1_0.BlendFactorZero,
		AlphaBlendOp:        core1_0.BlendOpAdd,
	}
	return c
}

func (c Config) WithDepthTest(test, write bool) Config {
	c = c.clone()
	c.DepthStencil.DepthTestEnable = test
	c.DepthStencil.DepthWriteEnable = write
	return c
}

func (c Config) options(vertex, fragment gpu.ShaderModule, layout gpu.PipelineLayout, renderPass gpu.RenderPass) gpu.GraphicsPipelineOptions {
	c = c.clone()
	return gpu.GraphicsPipelineOptions{
		VertexShader:         vertex,
		FragmentShader:       fragment,
		Bindings:             c.Bindings,
		Attributes:           c.Attributes,
		InputAssembly:        c.InputAssembly,
		Rasterization:        c.Rasterization,
		Multisample:          c.Multisample,
		ColorBlendAttachment: c.ColorBlendAttachment,
		LogicOpEnabled:       c.LogicOpEnabled,
		LogicOp:              c.LogicOp,
		BlendConstants:       c.BlendConstants,
		DepthStencil:         c.DepthStencil,
		DynamicStates:        c.DynamicStates,
		Layout:               layout,
		RenderPass:           renderPass,
		Subpass:              c.Subpass,
	}
}
