package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func TestPreferredDevice(t *testing.T) {
	tests := []struct {
		name  string
		types []core1_0.PhysicalDeviceType
		want  int
	}{
		{name: "none", want: -1},
		{name: "discrete after integrated", types: []core1_0.PhysicalDeviceType{core1_0.PhysicalDeviceTypeIntegratedGPU, core1_0.PhysicalDeviceTypeDiscreteGPU}, want: 1},
		{name: "first discrete", types: []core1_0.PhysicalDeviceType{core1_0.PhysicalDeviceTypeDiscreteGPU, core1_0.PhysicalDeviceTypeDiscreteGPU}, want: 0},
		{name: "integrated fallback", types: []core1_0.PhysicalDeviceType{core1_0.PhysicalDeviceTypeCPU, core1_0.PhysicalDeviceTypeIntegratedGPU}, want: 1},
		{name: "anything else", types: []core1_0.PhysicalDeviceType{core1_0.PhysicalDeviceTypeCPU, core1_0.PhysicalDeviceTypeVirtualGPU}, want: 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, preferredDevice(test.types))
		})
	}
}

func TestChooseQueueFamilies(t *testing.T) {
	tests := []struct {
		name     string
		graphics []bool
		present  []bool
		want     [2]int
		complete bool
	}{
		{name: "shared family", graphics: []bool{true}, present: []bool{true}, want: [2]int{0, 0}, complete: true},
		{name: "later shared family wins", graphics: []bool{true, true}, present: []bool{false, true}, want: [2]int{1, 1}, complete: true},
		{name: "first graphics kept", graphics: []bool{true, true, false}, present: []bool{false, false, true}, want: [2]int{0, 2}, complete: true},
		{name: "no present", graphics: []bool{true}, present: []bool{false}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			indices := chooseQueueFamilies(test.graphics, test.present)
			assert.Equal(t, test.complete, indices.IsComplete())
			if test.complete {
				assert.Equal(t, test.want, [2]int{*indices.GraphicsFamily, *indices.PresentFamily})
			}
		})
	}
}

func TestLeaksReportsLiveHandles(t *testing.T) {
	d := newDeviceTables(nil)
	assert.Empty(t, d.leaks())

	var depth core1_0.Image
	image := d.images.add(depth)
	d.memories.add(allocation{size: 64})

	assert.Equal(t, map[string]int{"image": 1, "memory": 1}, d.leaks())

	d.images.remove(image)
	assert.Equal(t, map[string]int{"memory": 1}, d.leaks())
}
