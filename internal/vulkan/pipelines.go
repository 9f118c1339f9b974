package vulkan

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	module, _, err := d.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: code,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to create shader module")
	}
	return d.shaderModules.add(module), nil
}

func (d *Device) DestroyShaderModule(module gpu.ShaderModule) {
	if vkModule, ok := d.shaderModules.remove(module); ok {
		d.deviceDriver.DestroyShaderModule(vkModule, nil)
	}
}

func (d *Device) CreatePipelineLayout(setLayouts []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error) {
	layout, _, err := d.deviceDriver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: getAll(d.setLayouts, setLayouts),
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to create pipeline layout")
	}
	return d.pipelineLayouts.add(layout), nil
}

func (d *Device) DestroyPipelineLayout(layout gpu.PipelineLayout) {
	if vkLayout, ok := d.pipelineLayouts.remove(layout); ok {
		d.deviceDriver.DestroyPipelineLayout(vkLayout, nil)
	}
}

// graphicsPipelineInfo expands the pipeline options into the driver's create
// info. Viewport and scissor are always dynamic, so the viewport state only
// carries the counts.
func (d *Device) graphicsPipelineInfo(opts gpu.GraphicsPipelineOptions) core1_0.GraphicsPipelineCreateInfo {
	inputAssembly := opts.InputAssembly
	rasterization := opts.Rasterization
	multisample := opts.Multisample
	depthStencil := opts.DepthStencil

	return core1_0.GraphicsPipelineCreateInfo{
		Stages: []core1_0.PipelineShaderStageCreateInfo{
			{
				Stage:  core1_0.StageVertex,
				Module: d.shaderModules.get(opts.VertexShader),
				Name:   "main",
			},
			{
				Stage:  core1_0.StageFragment,
				Module: d.shaderModules.get(opts.FragmentShader),
				Name:   "main",
			},
		},
		VertexInputState: &core1_0.PipelineVertexInputStateCreateInfo{
			VertexBindingDescriptions:   opts.Bindings,
			VertexAttributeDescriptions: opts.Attributes,
		},
		InputAssemblyState: &inputAssembly,
		ViewportState: &core1_0.PipelineViewportStateCreateInfo{
			Viewports: []core1_0.Viewport{{MinDepth: 0, MaxDepth: 1}},
			Scissors:  []core1_0.Rect2D{{}},
		},
		RasterizationState: &rasterization,
		MultisampleState:   &multisample,
		DepthStencilState:  &depthStencil,
		ColorBlendState: &core1_0.PipelineColorBlendStateCreateInfo{
			LogicOpEnabled: opts.LogicOpEnabled,
			LogicOp:        opts.LogicOp,
			BlendConstants: opts.BlendConstants,
			Attachments:    []core1_0.PipelineColorBlendAttachmentState{opts.ColorBlendAttachment},
		},
		DynamicState: &core1_0.PipelineDynamicStateCreateInfo{
			DynamicStates: opts.DynamicStates,
		},
		Layout:            d.pipelineLayouts.get(opts.Layout),
		RenderPass:        d.renderPasses.get(opts.RenderPass),
		Subpass:           opts.Subpass,
		BasePipelineIndex: -1,
	}
}

func (d *Device) CreateGraphicsPipeline(opts gpu.GraphicsPipelineOptions) (gpu.Pipeline, error) {
	pipelines, _, err := d.deviceDriver.CreateGraphicsPipelines(nil, nil, d.graphicsPipelineInfo(opts))
	if err != nil {
		return 0, errors.Wrap(err, "failed to create graphics pipeline")
	}
	return d.pipelines.add(pipelines[0]), nil
}

func (d *Device) DestroyPipeline(pipeline gpu.Pipeline) {
	if vkPipeline, ok := d.pipelines.remove(pipeline); ok {
		d.deviceDriver.DestroyPipeline(vkPipeline, nil)
	}
}

func (d *Device) CreateDescriptorSetLayout(bindings []core1_0.DescriptorSetLayoutBinding) (gpu.DescriptorSetLayout, error) {
	layout, _, err := d.deviceDriver.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: bindings,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to create descriptor set layout")
	}
	return d.setLayouts.add(layout), nil
}

func (d *Device) DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayout) {
	if vkLayout, ok := d.setLayouts.remove(layout); ok {
		d.deviceDriver.DestroyDescriptorSetLayout(vkLayout, nil)
	}
}

func (d *Device) CreateDescriptorPool(maxSets int, sizes []core1_0.DescriptorPoolSize, flags core1_0.DescriptorPoolCreateFlags) (gpu.DescriptorPool, error) {
	pool, _, err := d.deviceDriver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		Flags:     flags,
		MaxSets:   maxSets,
		PoolSizes: sizes,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to create descriptor pool")
	}
	return d.descriptorPools.add(pool), nil
}

// DestroyDescriptorPool also forgets every set allocated from the pool.
func (d *Device) DestroyDescriptorPool(pool gpu.DescriptorPool) {
	vkPool, ok := d.descriptorPools.remove(pool)
	if !ok {
		return
	}
	d.forgetSets(pool)
	d.deviceDriver.DestroyDescriptorPool(vkPool, nil)
}

func (d *Device) forgetSets(pool gpu.DescriptorPool) {
	for _, set := range d.poolSets[pool] {
		d.descriptorSets.remove(set)
	}
	delete(d.poolSets, pool)
}

func (d *Device) AllocateDescriptorSets(pool gpu.DescriptorPool, layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error) {
	sets, _, err := d.deviceDriver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: d.descriptorPools.get(pool),
		SetLayouts:     getAll(d.setLayouts, layouts),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to allocate %d descriptor sets", len(layouts))
	}

	handles := make([]gpu.DescriptorSet, len(sets))
	for i, set := range sets {
		handles[i] = d.descriptorSets.add(set)
	}
	d.poolSets[pool] = append(d.poolSets[pool], handles...)
	return handles, nil
}

func (d *Device) FreeDescriptorSets(pool gpu.DescriptorPool, sets []gpu.DescriptorSet) error {
	var vkSets []core1_0.DescriptorSet
	for _, set := range sets {
		if vkSet, ok := d.descriptorSets.remove(set); ok {
			vkSets = append(vkSets, vkSet)
		}
	}
	d.poolSets[pool] = slices.DeleteFunc(d.poolSets[pool], func(set gpu.DescriptorSet) bool {
		return slices.Contains(sets, set)
	})
	if len(vkSets) == 0 {
		return nil
	}

	_, err := d.deviceDriver.FreeDescriptorSets(vkSets...)
	return errors.Wrap(err, "failed to free descriptor sets")
}

func (d *Device) ResetDescriptorPool(pool gpu.DescriptorPool) error {
	vkPool := d.descriptorPools.get(pool)
	d.forgetSets(pool)

	_, err := d.deviceDriver.ResetDescriptorPool(vkPool, 0)
	return errors.Wrap(err, "failed to reset descriptor pool")
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) error {
	vkWrites := make([]core1_0.WriteDescriptorSet, len(writes))
	for i, write := range writes {
		vkWrite := core1_0.WriteDescriptorSet{
			DstSet:          d.descriptorSets.get(write.Set),
			DstBinding:      write.Binding,
			DstArrayElement: 0,

			DescriptorType: write.Type,
		}

		if write.Buffer != nil {
			vkWrite.BufferInfo = []core1_0.DescriptorBufferInfo{
				{
					Buffer: d.buffers.get(write.Buffer.Buffer),
					Offset: write.Buffer.Offset,
					Range:  write.Buffer.Range,
				},
			}
		}

		if write.Image != nil {
			vkWrite.ImageInfo = []core1_0.DescriptorImageInfo{
				{
					Sampler:     d.samplers.get(write.Image.Sampler),
					ImageView:   d.imageViews.get(write.Image.View),
					ImageLayout: write.Image.Layout,
				},
			}
		}

		vkWrites[i] = vkWrite
	}

	return errors.Wrap(d.deviceDriver.UpdateDescriptorSets(vkWrites, nil), "failed to update descriptor sets")
}
