package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

// ErrNoSuitableDevice is returned when no physical device can present to the
// window surface with the features the renderer needs.
var ErrNoSuitableDevice = errors.New("failed to find a suitable GPU")

var deviceExtensions = []string{khr_swapchain.ExtensionName}

type queueFamilyIndices struct {
	GraphicsFamily *int
	PresentFamily  *int
}

func (i *queueFamilyIndices) IsComplete() bool {
	return i.GraphicsFamily != nil && i.PresentFamily != nil
}

type allocation struct {
	memory core1_0.DeviceMemory
	size   int
}

// Device is the logical device plus the queues and command pool the
// renderer records into.
type Device struct {
	instance *Instance

	physicalDevice core1_0.PhysicalDevice
	properties     *core1_0.PhysicalDeviceProperties
	queueFamilies  queueFamilyIndices

	deviceDriver    core1_0.CoreDeviceDriver
	swapchainDriver khr_swapchain.ExtensionDriver
	graphicsQueue   core1_0.Queue
	presentQueue    core1_0.Queue
	commandPool     core1_0.CommandPool

	next            uint64
	swapchains      *table[gpu.Swapchain, khr_swapchain.Swapchain]
	swapchainImages map[gpu.Swapchain][]gpu.Image
	poolSets        map[gpu.DescriptorPool][]gpu.DescriptorSet
	images          *table[gpu.Image, core1_0.Image]
	memories        *table[gpu.DeviceMemory, allocation]
	imageViews      *table[gpu.ImageView, core1_0.ImageView]
	renderPasses    *table[gpu.RenderPass, core1_0.RenderPass]
	framebuffers    *table[gpu.Framebuffer, core1_0.Framebuffer]
	semaphores      *table[gpu.Semaphore, core1_0.Semaphore]
	fences          *table[gpu.Fence, core1_0.Fence]
	commandBuffers  *table[gpu.CommandBuffer, core1_0.CommandBuffer]
	shaderModules   *table[gpu.ShaderModule, core1_0.ShaderModule]
	pipelineLayouts *table[gpu.PipelineLayout, core1_0.PipelineLayout]
	pipelines       *table[gpu.Pipeline, core1_0.Pipeline]
	buffers         *table[gpu.Buffer, core1_0.Buffer]
	samplers        *table[gpu.Sampler, core1_0.Sampler]
	setLayouts      *table[gpu.DescriptorSetLayout, core1_0.DescriptorSetLayout]
	descriptorPools *table[gpu.DescriptorPool, core1_0.DescriptorPool]
	descriptorSets  *table[gpu.DescriptorSet, core1_0.DescriptorSet]
}

// newDeviceTables returns a device with empty handle tables and no driver
// objects yet.
func newDeviceTables(instance *Instance) *Device {
	d := &Device{
		instance:        instance,
		swapchainImages: map[gpu.Swapchain][]gpu.Image{},
		poolSets:        map[gpu.DescriptorPool][]gpu.DescriptorSet{},
	}
	d.swapchains = newTable[gpu.Swapchain, khr_swapchain.Swapchain](&d.next)
	d.images = newTable[gpu.Image, core1_0.Image](&d.next)
	d.memories = newTable[gpu.DeviceMemory, allocation](&d.next)
	d.imageViews = newTable[gpu.ImageView, core1_0.ImageView](&d.next)
	d.renderPasses = newTable[gpu.RenderPass, core1_0.RenderPass](&d.next)
	d.framebuffers = newTable[gpu.Framebuffer, core1_0.Framebuffer](&d.next)
	d.semaphores = newTable[gpu.Semaphore, core1_0.Semaphore](&d.next)
	d.fences = newTable[gpu.Fence, core1_0.Fence](&d.next)
	d.commandBuffers = newTable[gpu.CommandBuffer, core1_0.CommandBuffer](&d.next)
	d.shaderModules = newTable[gpu.ShaderModule, core1_0.ShaderModule](&d.next)
	d.pipelineLayouts = newTable[gpu.PipelineLayout, core1_0.PipelineLayout](&d.next)
	d.pipelines = newTable[gpu.Pipeline, core1_0.Pipeline](&d.next)
	d.buffers = newTable[gpu.Buffer, core1_0.Buffer](&d.next)
	d.samplers = newTable[gpu.Sampler, core1_0.Sampler](&d.next)
	d.setLayouts = newTable[gpu.DescriptorSetLayout, core1_0.DescriptorSetLayout](&d.next)
	d.descriptorPools = newTable[gpu.DescriptorPool, core1_0.DescriptorPool](&d.next)
	d.descriptorSets = newTable[gpu.DescriptorSet, core1_0.DescriptorSet](&d.next)
	return d
}

func NewDevice(instance *Instance) (*Device, error) {
	d := newDeviceTables(instance)

	err := d.pickPhysicalDevice()
	if err == nil {
		err = d.createLogicalDevice()
	}
	if err == nil {
		err = d.createCommandPool()
	}
	if err != nil {
		d.Destroy()
		return nil, err
	}

	gpu.Logger().Info("device ready", "name", d.properties.DeviceName, "graphicsFamily", *d.queueFamilies.GraphicsFamily, "presentFamily", *d.queueFamilies.PresentFamily)
	return d, nil
}

func (d *Device) pickPhysicalDevice() error {
	physicalDevices, _, err := d.instance.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "failed to enumerate physical devices")
	}

	var suitable []core1_0.PhysicalDevice
	var properties []*core1_0.PhysicalDeviceProperties
	for _, device := range physicalDevices {
		if !d.isDeviceSuitable(device) {
			continue
		}
		props, err := d.instance.instanceDriver.GetPhysicalDeviceProperties(device)
		if err != nil {
			return errors.Wrap(err, "failed to read physical device properties")
		}
		suitable = append(suitable, device)
		properties = append(properties, props)
	}

	types := make([]core1_0.PhysicalDeviceType, len(properties))
	for i, props := range properties {
		types[i] = props.DeviceType
	}
	chosen := preferredDevice(types)
	if chosen < 0 {
		return ErrNoSuitableDevice
	}
	d.physicalDevice = suitable[chosen]
	d.properties = properties[chosen]

	d.queueFamilies, err = d.findQueueFamilies(d.physicalDevice)
	return err
}

// preferredDevice picks a discrete GPU, then an integrated one, then whatever
// comes first. It returns -1 when there are no candidates.
func preferredDevice(types []core1_0.PhysicalDeviceType) int {
	if len(types) == 0 {
		return -1
	}
	for _, want := range []core1_0.PhysicalDeviceType{core1_0.PhysicalDeviceTypeDiscreteGPU, core1_0.PhysicalDeviceTypeIntegratedGPU} {
		for i, deviceType := range types {
			if deviceType == want {
				return i
			}
		}
	}
	return 0
}

func (d *Device) isDeviceSuitable(device core1_0.PhysicalDevice) bool {
	indices, err := d.findQueueFamilies(device)
	if err != nil {
		return false
	}

	extensionsSupported := d.checkDeviceExtensionSupport(device)

	var swapChainAdequate bool
	if extensionsSupported {
		support, err := d.surfaceSupport(device)
		if err != nil {
			return false
		}

		swapChainAdequate = len(support.Formats) > 0 && len(support.PresentModes) > 0
	}

	features := d.instance.instanceDriver.GetPhysicalDeviceFeatures(device)
	return indices.IsComplete() && extensionsSupported && swapChainAdequate && features.SamplerAnisotropy
}

func (d *Device) checkDeviceExtensionSupport(device core1_0.PhysicalDevice) bool {
	extensions, _, err := d.instance.instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return false
	}

	for _, extension := range deviceExtensions {
		_, hasExtension := extensions[extension]
		if !hasExtension {
			return false
		}
	}

	return true
}

func (d *Device) findQueueFamilies(device core1_0.PhysicalDevice) (queueFamilyIndices, error) {
	queueFamilies := d.instance.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)

	graphics := make([]bool, len(queueFamilies))
	present := make([]bool, len(queueFamilies))
	for queueFamilyIdx, queueFamily := range queueFamilies {
		graphics[queueFamilyIdx] = (queueFamily.QueueFlags & core1_0.QueueGraphics) != 0

		supported, _, err := d.instance.surfaceDriver.GetPhysicalDeviceSurfaceSupport(d.instance.surface, device, queueFamilyIdx)
		if err != nil {
			return queueFamilyIndices{}, errors.Wrap(err, "failed to query surface support")
		}
		present[queueFamilyIdx] = supported
	}

	return chooseQueueFamilies(graphics, present), nil
}

// chooseQueueFamilies takes the first family that can both draw and present.
// Failing that it takes the first family of each kind.
func chooseQueueFamilies(graphics, present []bool) queueFamilyIndices {
	indices := queueFamilyIndices{}
	for i := range graphics {
		if graphics[i] && present[i] {
			family := i
			return queueFamilyIndices{GraphicsFamily: &family, PresentFamily: &family}
		}
		if graphics[i] && indices.GraphicsFamily == nil {
			family := i
			indices.GraphicsFamily = &family
		}
		if present[i] && indices.PresentFamily == nil {
			family := i
			indices.PresentFamily = &family
		}
	}
	return indices
}

func (d *Device) createLogicalDevice() error {
	indices := d.queueFamilies

	uniqueQueueFamilies := []int{*indices.GraphicsFamily}
	if uniqueQueueFamilies[0] != *indices.PresentFamily {
		uniqueQueueFamilies = append(uniqueQueueFamilies, *indices.PresentFamily)
	}

	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range uniqueQueueFamilies {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	var extensionNames []string
	extensionNames = append(extensionNames, deviceExtensions...)

	// Required by the portability subset on MoltenVK.
	extensions, _, err := d.instance.instanceDriver.EnumerateDeviceExtensionProperties(d.physicalDevice)
	if err != nil {
		return errors.Wrap(err, "failed to list device extensions")
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	d.deviceDriver, _, err = d.instance.instanceDriver.CreateDevice(d.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueFamilyOptions,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create logical device")
	}

	d.swapchainDriver = khr_swapchain.CreateExtensionDriverFromCoreDriver(d.deviceDriver)
	d.graphicsQueue = d.deviceDriver.GetQueue(*indices.GraphicsFamily, 0)
	d.presentQueue = d.deviceDriver.GetQueue(*indices.PresentFamily, 0)
	return nil
}

func (d *Device) createCommandPool() error {
	pool, _, err := d.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateTransient | core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: *d.queueFamilies.GraphicsFamily,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create command pool")
	}
	d.commandPool = pool
	return nil
}

func (d *Device) surfaceSupport(device core1_0.PhysicalDevice) (gpu.SurfaceSupport, error) {
	var support gpu.SurfaceSupport

	capabilities, _, err := d.instance.surfaceDriver.GetPhysicalDeviceSurfaceCapabilities(d.instance.surface, device)
	if err != nil {
		return support, errors.Wrap(err, "failed to query surface capabilities")
	}
	support.Capabilities = *capabilities

	support.Formats, _, err = d.instance.surfaceDriver.GetPhysicalDeviceSurfaceFormats(d.instance.surface, device)
	if err != nil {
		return support, errors.Wrap(err, "failed to query surface formats")
	}

	support.PresentModes, _, err = d.instance.surfaceDriver.GetPhysicalDeviceSurfacePresentModes(d.instance.surface, device)
	if err != nil {
		return support, errors.Wrap(err, "failed to query present modes")
	}
	return support, nil
}

func (d *Device) SurfaceSupport() (gpu.SurfaceSupport, error) {
	return d.surfaceSupport(d.physicalDevice)
}

func (d *Device) FindSupportedFormat(candidates []core1_0.Format, tiling core1_0.ImageTiling, features core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	for _, format := range candidates {
		props := d.instance.instanceDriver.GetPhysicalDeviceFormatProperties(d.physicalDevice, format)

		if tiling == core1_0.ImageTilingLinear && (props.LinearTilingFeatures&features) == features {
			return format, nil
		} else if tiling == core1_0.ImageTilingOptimal && (props.OptimalTilingFeatures&features) == features {
			return format, nil
		}
	}

	return 0, errors.Newf("failed to find supported format for tiling %s, featureset %s", tiling, features)
}

func (d *Device) findMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	memProperties := d.instance.instanceDriver.GetPhysicalDeviceMemoryProperties(d.physicalDevice)
	for i, memoryType := range memProperties.MemoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Newf("failed to find a memory type with properties %s", properties)
}

func (d *Device) MaxSamplerAnisotropy() (float32, error) {
	return d.properties.Limits.MaxSamplerAnisotropy, nil
}

// MinUniformBufferOffsetAlignment is the alignment uniform buffer instances
// must respect when bound at an offset.
func (d *Device) MinUniformBufferOffsetAlignment() int {
	return int(d.properties.Limits.MinUniformBufferOffsetAlignment)
}

func (d *Device) WaitIdle() error {
	_, err := d.deviceDriver.DeviceWaitIdle()
	return errors.Wrap(err, "failed to wait for device idle")
}

func (d *Device) leaks() map[string]int {
	counts := map[string]int{
		"swapchain":             d.swapchains.len(),
		"image":                 d.images.len(),
		"memory":                d.memories.len(),
		"image view":            d.imageViews.len(),
		"render pass":           d.renderPasses.len(),
		"framebuffer":           d.framebuffers.len(),
		"semaphore":             d.semaphores.len(),
		"fence":                 d.fences.len(),
		"command buffer":        d.commandBuffers.len(),
		"shader module":         d.shaderModules.len(),
		"pipeline layout":       d.pipelineLayouts.len(),
		"pipeline":              d.pipelines.len(),
		"buffer":                d.buffers.len(),
		"sampler":               d.samplers.len(),
		"descriptor set layout": d.setLayouts.len(),
		"descriptor pool":       d.descriptorPools.len(),
	}
	for kind, count := range counts {
		if count == 0 {
			delete(counts, kind)
		}
	}
	return counts
}

// Destroy releases the command pool and the logical device. Every object
// created through the device must already be destroyed; survivors are logged.
func (d *Device) Destroy() {
	if d.deviceDriver == nil {
		return
	}

	if leaked := d.leaks(); len(leaked) > 0 {
		gpu.Logger().Warn("destroying device with live objects", "leaked", leaked)
	}

	if d.commandPool.Initialized() {
		d.deviceDriver.DestroyCommandPool(d.commandPool, nil)
		d.commandPool = core1_0.CommandPool{}
	}

	d.deviceDriver.DestroyDevice(nil)
	d.deviceDriver = nil
}
