package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
	"github.com/vkngwrapper/minevoxel/internal/gpu/gputest"
)

func globalLayout(t *testing.T, device *gputest.Device) *DescriptorSetLayout {
	t.Helper()
	layout, err := NewDescriptorSetLayoutBuilder(device).
		AddBinding(1, core1_0.DescriptorTypeCombinedImageSampler, core1_0.StageFragment, 1).
		AddBinding(0, core1_0.DescriptorTypeUniformBuffer, core1_0.StageVertex|core1_0.StageFragment, 1).
		Build()
	require.NoError(t, err)
	return layout
}

func globalPool(t *testing.T, device *gputest.Device) *DescriptorPool {
	t.Helper()
	pool, err := NewDescriptorPoolBuilder(device).
		SetMaxSets(2).
		AddPoolSize(core1_0.DescriptorTypeUniformBuffer, 2).
		AddPoolSize(core1_0.DescriptorTypeCombinedImageSampler, 2).
		Build()
	require.NoError(t, err)
	return pool
}

func TestDescriptorSetLayoutBindingsOrdered(t *testing.T) {
	device := gputest.NewDevice()

	layout := globalLayout(t, device)
	defer layout.Destroy()

	require.Len(t, device.SetLayoutBindings, 1)
	bindings := device.SetLayoutBindings[0]
	require.Len(t, bindings, 2)
	assert.Equal(t, 0, bindings[0].Binding)
	assert.Equal(t, core1_0.DescriptorTypeUniformBuffer, bindings[0].DescriptorType)
	assert.Equal(t, 1, bindings[1].Binding)

	binding, ok := layout.Binding(1)
	assert.True(t, ok)
	assert.Equal(t, core1_0.DescriptorTypeCombinedImageSampler, binding.DescriptorType)
	_, ok = layout.Binding(7)
	assert.False(t, ok)
}

func TestDescriptorSetLayoutDuplicateBindingPanics(t *testing.T) {
	builder := NewDescriptorSetLayoutBuilder(gputest.NewDevice()).
		AddBinding(0, core1_0.DescriptorTypeUniformBuffer, core1_0.StageVertex, 1)

	assert.PanicsWithValue(t, "resource: descriptor binding 0 already in use", func() {
		builder.AddBinding(0, core1_0.DescriptorTypeStorageBuffer, core1_0.StageVertex, 1)
	})
}

func TestDescriptorSetLayoutEmptyPanics(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = NewDescriptorSetLayoutBuilder(gputest.NewDevice()).Build()
	})
}

func TestDescriptorPool(t *testing.T) {
	device := gputest.NewDevice()
	layout := globalLayout(t, device)
	pool := globalPool(t, device)

	assert.Equal(t, []string{"CreateDescriptorPool(2)"}, device.Calls("CreateDescriptorPool"))
	require.Len(t, device.DescriptorPoolSizes, 1)
	assert.Len(t, device.DescriptorPoolSizes[0], 2)

	first, err := pool.AllocateDescriptor(layout)
	require.NoError(t, err)
	second, err := pool.AllocateDescriptor(layout)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, pool.FreeDescriptors(first))
	require.NoError(t, pool.FreeDescriptors())
	assert.Equal(t, 1, device.Count("FreeDescriptorSets"))

	require.NoError(t, pool.ResetPool())
	assert.Equal(t, 1, device.Count("ResetDescriptorPool"))

	pool.Destroy()
	pool.Destroy()
	layout.Destroy()
	layout.Destroy()
	assert.Empty(t, device.Live())
	assert.Empty(t, device.BadReleases)
}

func TestDescriptorPoolRequiresSizes(t *testing.T) {
	device := gputest.NewDevice()

	_, err := NewDescriptorPoolBuilder(device).SetMaxSets(4).Build()
	assert.Error(t, err)
	assert.Zero(t, device.Count("CreateDescriptorPool"))
}

func TestDescriptorPoolAllocateFailure(t *testing.T) {
	device := gputest.NewDevice()
	layout := globalLayout(t, device)
	defer layout.Destroy()
	pool := globalPool(t, device)
	defer pool.Destroy()

	device.Fail("AllocateDescriptorSets", 1)
	_, err := pool.AllocateDescriptor(layout)
	assert.Error(t, err)
}

func TestDescriptorWriterBuild(t *testing.T) {
	device := gputest.NewDevice()
	layout := globalLayout(t, device)
	defer layout.Destroy()
	pool := globalPool(t, device)
	defer pool.Destroy()

	bufferInfo := gpu.BufferInfo{Buffer: 40, Offset: 0, Range: 192}
	imageInfo := gpu.ImageInfo{Sampler: 41, View: 42, Layout: core1_0.ImageLayoutShaderReadOnlyOptimal}

	set, err := NewDescriptorWriter(layout, pool).
		WriteBuffer(0, bufferInfo).
		WriteImage(1, imageInfo).
		Build()
	require.NoError(t, err)
	assert.NotZero(t, set)

	require.Len(t, device.Writes, 2)
	assert.Equal(t, set, device.Writes[0].Set)
	assert.Equal(t, 0, device.Writes[0].Binding)
	assert.Equal(t, core1_0.DescriptorTypeUniformBuffer, device.Writes[0].Type)
	assert.Equal(t, &bufferInfo, device.Writes[0].Buffer)
	assert.Nil(t, device.Writes[0].Image)

	assert.Equal(t, set, device.Writes[1].Set)
	assert.Equal(t, core1_0.DescriptorTypeCombinedImageSampler, device.Writes[1].Type)
	assert.Equal(t, &imageInfo, device.Writes[1].Image)
}

func TestDescriptorWriterOverwrite(t *testing.T) {
	device := gputest.NewDevice()
	layout := globalLayout(t, device)
	defer layout.Destroy()
	pool := globalPool(t, device)
	defer pool.Destroy()

	writer := NewDescriptorWriter(layout, pool).WriteBuffer(0, gpu.BufferInfo{Buffer: 40, Range: 64})
	set, err := writer.Build()
	require.NoError(t, err)

	require.NoError(t, writer.Overwrite(set))
	assert.Equal(t, 1, device.Count("AllocateDescriptorSets"))
	assert.Equal(t, 2, device.Count("UpdateDescriptorSets"))
	for _, write := range device.Writes {
		assert.Equal(t, set, write.Set)
	}
}

func TestDescriptorWriterUpdateFailure(t *testing.T) {
	device := gputest.NewDevice()
	layout := globalLayout(t, device)
	defer layout.Destroy()
	pool := globalPool(t, device)
	defer pool.Destroy()

	device.Fail("UpdateDescriptorSets", 1)
	_, err := NewDescriptorWriter(layout, pool).WriteBuffer(0, gpu.BufferInfo{Buffer: 40, Range: 64}).Build()
	assert.Error(t, err)
}

func TestDescriptorWriterUnregisteredBindingPanics(t *testing.T) {
	device := gputest.NewDevice()
	layout := globalLayout(t, device)
	defer layout.Destroy()

	writer := NewDescriptorWriter(layout, nil)
	assert.PanicsWithValue(t, "resource: layout does not contain descriptor binding 5", func() {
		writer.WriteBuffer(5, gpu.BufferInfo{})
	})
}

func TestDescriptorWriterArrayBindingPanics(t *testing.T) {
	device := gputest.NewDevice()
	layout, err := NewDescriptorSetLayoutBuilder(device).
		AddBinding(0, core1_0.DescriptorTypeCombinedImageSampler, core1_0.StageFragment, 4).
		Build()
	require.NoError(t, err)
	defer layout.Destroy()

	assert.Panics(t, func() {
		NewDescriptorWriter(layout, nil).WriteImage(0, gpu.ImageInfo{})
	})
}
