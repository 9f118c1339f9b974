// Package gputest provides an in-memory device and window for exercising the
// rendering packages without a GPU. The device records every call it receives,
// tracks which handles are still alive and replays scripted acquire, present
// and fence-wait outcomes.
package gputest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

// Acquire is one scripted AcquireNextImage outcome.
type Acquire struct {
	Index  int
	Status gpu.Status
	Err    error
}

type Device struct {
	Support          gpu.SurfaceSupport
	SupportedFormats []core1_0.Format
	MaxAnisotropy    float32

	// Scripts are consumed front to back. Once empty, acquisitions cycle
	// through the swapchain images and every status is success.
	AcquireScript []Acquire
	PresentScript []gpu.Status
	WaitScript    []gpu.Status

	SwapchainRequests    []gpu.SwapchainOptions
	RenderPasses         []core1_0.RenderPassCreateInfo
	Framebuffers         map[gpu.Framebuffer][]gpu.ImageView
	Pipelines            []gpu.GraphicsPipelineOptions
	PipelineLayouts      [][]gpu.DescriptorSetLayout
	ShaderCode           [][]uint32
	Submits              []gpu.SubmitInfo
	RenderPassBegins     []gpu.RenderPassBegin
	Viewports            []core1_0.Viewport
	Scissors             []core1_0.Rect2D
	Barriers             []gpu.ImageBarrier
	Writes               []gpu.DescriptorWrite
	Samplers             []core1_0.SamplerCreateInfo
	SetLayoutBindings    [][]core1_0.DescriptorSetLayoutBinding
	DescriptorPoolSizes  [][]core1_0.DescriptorPoolSize
	BoundDescriptorSets  [][]gpu.DescriptorSet
	BoundVertexBuffers   [][]gpu.Buffer
	BoundIndexBuffers    []gpu.Buffer
	Draws                []int
	IndexedDraws         []int
	BadReleases          []string
	ImageCountOverride   int
	SwapchainImageFormat map[gpu.Swapchain]core1_0.Format

	calls   []string
	counts  map[string]int
	failAt  map[string]int
	next    uint64
	live    map[uint64]string
	memory  map[gpu.DeviceMemory][]byte
	mapped  map[gpu.DeviceMemory]bool
	buffers map[gpu.Buffer]gpu.DeviceMemory
	images  map[gpu.Swapchain][]gpu.Image
	acquire int
}

// NewDevice returns a device whose surface lets the swapchain choose its
// extent inside [1, 4096] and offers two to three images.
func NewDevice() *Device {
	return &Device{
		Support: gpu.SurfaceSupport{
			Capabilities: khr_surface.SurfaceCapabilities{
				MinImageCount:  2,
				MaxImageCount:  3,
				CurrentExtent:  core1_0.Extent2D{Width: -1, Height: -1},
				MinImageExtent: core1_0.Extent2D{Width: 1, Height: 1},
				MaxImageExtent: core1_0.Extent2D{Width: 4096, Height: 4096},
			},
			Formats: []khr_surface.SurfaceFormat{
				{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
			},
			PresentModes: []khr_surface.PresentMode{khr_surface.PresentModeFIFO, khr_surface.PresentModeMailbox},
		},
		SupportedFormats: []core1_0.Format{
			core1_0.FormatD32SignedFloat,
			core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
			core1_0.FormatR8G8B8A8SRGB,
		},
		MaxAnisotropy:        16,
		Framebuffers:         map[gpu.Framebuffer][]gpu.ImageView{},
		SwapchainImageFormat: map[gpu.Swapchain]core1_0.Format{},

		counts:  map[string]int{},
		failAt:  map[string]int{},
		live:    map[uint64]string{},
		memory:  map[gpu.DeviceMemory][]byte{},
		mapped:  map[gpu.DeviceMemory]bool{},
		buffers: map[gpu.Buffer]gpu.DeviceMemory{},
		images:  map[gpu.Swapchain][]gpu.Image{},
	}
}

// Fail makes the nth call (1-based) to method, counted from now, return an
// error.
func (d *Device) Fail(method string, nth int) {
	d.failAt[method] = d.counts[method] + nth
}

// Calls returns the recorded trace, optionally filtered to entries starting
// with one of the prefixes.
func (d *Device) Calls(prefixes ...string) []string {
	var out []string
	for _, call := range d.calls {
		if len(prefixes) == 0 {
			out = append(out, call)
			continue
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(call, prefix) {
				out = append(out, call)
				break
			}
		}
	}
	return out
}

func (d *Device) ResetCalls() { d.calls = nil }

// Count reports how many times method has been called.
func (d *Device) Count(method string) int { return d.counts[method] }

// Live reports the number of handles of each kind that were created and not
// yet destroyed.
func (d *Device) Live() map[string]int {
	out := map[string]int{}
	for _, kind := range d.live {
		out[kind]++
	}
	return out
}

// LiveKinds lists the kinds that still have live handles, sorted.
func (d *Device) LiveKinds() []string {
	var kinds []string
	for kind := range d.Live() {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func (d *Device) IsLive(handle uint64) bool {
	_, ok := d.live[handle]
	return ok
}

// Contents returns the backing bytes of a buffer.
func (d *Device) Contents(buffer gpu.Buffer) []byte {
	return d.memory[d.buffers[buffer]]
}

func (d *Device) record(method string, args ...any) error {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprint(arg)
	}
	d.calls = append(d.calls, method+"("+strings.Join(parts, ",")+")")
	d.counts[method]++

	if at, ok := d.failAt[method]; ok && at == d.counts[method] {
		delete(d.failAt, method)
		return errors.Newf("gputest: injected %s failure", method)
	}
	return nil
}

func (d *Device) alloc(kind string) uint64 {
	d.next++
	d.live[d.next] = kind
	return d.next
}

func (d *Device) release(kind string, handle uint64) {
	if d.live[handle] != kind {
		d.BadReleases = append(d.BadReleases, fmt.Sprintf("%s(%d)", kind, handle))
		return
	}
	delete(d.live, handle)
}

func (d *Device) SurfaceSupport() (gpu.SurfaceSupport, error) {
	if err := d.record("SurfaceSupport"); err != nil {
		return gpu.SurfaceSupport{}, err
	}
	return d.Support, nil
}

func (d *Device) FindSupportedFormat(candidates []core1_0.Format, tiling core1_0.ImageTiling, features core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	if err := d.record("FindSupportedFormat"); err != nil {
		return 0, err
	}
	for _, candidate := range candidates {
		for _, supported := range d.SupportedFormats {
			if candidate == supported {
				return candidate, nil
			}
		}
	}
	return 0, errors.New("failed to find supported format")
}

func (d *Device) CreateSwapchain(opts gpu.SwapchainOptions) (gpu.Swapchain, []gpu.Image, error) {
	if err := d.record("CreateSwapchain", opts.OldSwapchain); err != nil {
		return 0, nil, err
	}
	d.SwapchainRequests = append(d.SwapchainRequests, opts)

	count := opts.MinImageCount
	if d.ImageCountOverride > 0 {
		count = d.ImageCountOverride
	}

	swapchain := gpu.Swapchain(d.alloc("swapchain"))
	images := make([]gpu.Image, count)
	for i := range images {
		d.next++
		images[i] = gpu.Image(d.next)
	}
	d.images[swapchain] = images
	d.SwapchainImageFormat[swapchain] = opts.SurfaceFormat.Format
	return swapchain, images, nil
}

func (d *Device) DestroySwapchain(swapchain gpu.Swapchain) {
	d.record("DestroySwapchain", swapchain)
	delete(d.images, swapchain)
	d.release("swapchain", uint64(swapchain))
}

func (d *Device) CreateImage(opts gpu.ImageOptions, properties core1_0.MemoryPropertyFlags) (gpu.Image, gpu.DeviceMemory, error) {
	if err := d.record("CreateImage", opts.Width, opts.Height); err != nil {
		return 0, 0, err
	}
	image := gpu.Image(d.alloc("image"))
	memory := gpu.DeviceMemory(d.alloc("memory"))
	d.memory[memory] = make([]byte, opts.Width*opts.Height*4)
	return image, memory, nil
}

func (d *Device) DestroyImage(image gpu.Image) {
	d.record("DestroyImage", image)
	d.release("image", uint64(image))
}

func (d *Device) FreeMemory(memory gpu.DeviceMemory) {
	d.record("FreeMemory", memory)
	delete(d.memory, memory)
	d.release("memory", uint64(memory))
}

func (d *Device) CreateImageView(image gpu.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (gpu.ImageView, error) {
	if err := d.record("CreateImageView", image); err != nil {
		return 0, err
	}
	return gpu.ImageView(d.alloc("image view")), nil
}

func (d *Device) DestroyImageView(view gpu.ImageView) {
	d.record("DestroyImageView", view)
	d.release("image view", uint64(view))
}

func (d *Device) CreateRenderPass(info core1_0.RenderPassCreateInfo) (gpu.RenderPass, error) {
	if err := d.record("CreateRenderPass"); err != nil {
		return 0, err
	}
	d.RenderPasses = append(d.RenderPasses, info)
	return gpu.RenderPass(d.alloc("render pass")), nil
}

func (d *Device) DestroyRenderPass(renderPass gpu.RenderPass) {
	d.record("DestroyRenderPass", renderPass)
	d.release("render pass", uint64(renderPass))
}

func (d *Device) CreateFramebuffer(renderPass gpu.RenderPass, attachments []gpu.ImageView, extent core1_0.Extent2D) (gpu.Framebuffer, error) {
	if err := d.record("CreateFramebuffer", renderPass); err != nil {
		return 0, err
	}
	framebuffer := gpu.Framebuffer(d.alloc("framebuffer"))
	d.Framebuffers[framebuffer] = append([]gpu.ImageView(nil), attachments...)
	return framebuffer, nil
}

func (d *Device) DestroyFramebuffer(framebuffer gpu.Framebuffer) {
	d.record("DestroyFramebuffer", framebuffer)
	d.release("framebuffer", uint64(framebuffer))
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	if err := d.record("CreateSemaphore"); err != nil {
		return 0, err
	}
	return gpu.Semaphore(d.alloc("semaphore")), nil
}

func (d *Device) DestroySemaphore(semaphore gpu.Semaphore) {
	d.record("DestroySemaphore", semaphore)
	d.release("semaphore", uint64(semaphore))
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	if err := d.record("CreateFence", signaled); err != nil {
		return 0, err
	}
	return gpu.Fence(d.alloc("fence")), nil
}

func (d *Device) DestroyFence(fence gpu.Fence) {
	d.record("DestroyFence", fence)
	d.release("fence", uint64(fence))
}

func (d *Device) WaitForFence(fence gpu.Fence, timeout time.Duration) (gpu.Status, error) {
	if err := d.record("WaitForFence", fence); err != nil {
		return gpu.StatusSuccess, err
	}
	if len(d.WaitScript) > 0 {
		status := d.WaitScript[0]
		d.WaitScript = d.WaitScript[1:]
		return status, nil
	}
	return gpu.StatusSuccess, nil
}

func (d *Device) ResetFence(fence gpu.Fence) error {
	return d.record("ResetFence", fence)
}

func (d *Device) AcquireNextImage(swapchain gpu.Swapchain, timeout time.Duration, signal gpu.Semaphore) (int, gpu.Status, error) {
	if err := d.record("AcquireNextImage", signal); err != nil {
		return 0, gpu.StatusSuccess, err
	}
	if len(d.AcquireScript) > 0 {
		next := d.AcquireScript[0]
		d.AcquireScript = d.AcquireScript[1:]
		return next.Index, next.Status, next.Err
	}

	count := len(d.images[swapchain])
	if count == 0 {
		return 0, gpu.StatusSuccess, errors.Newf("gputest: acquire from unknown swapchain %d", swapchain)
	}
	index := d.acquire % count
	d.acquire++
	return index, gpu.StatusSuccess, nil
}

func (d *Device) QueueSubmit(submit gpu.SubmitInfo, fence gpu.Fence) error {
	if err := d.record("QueueSubmit", submit.CommandBuffer, fence); err != nil {
		return err
	}
	d.Submits = append(d.Submits, submit)
	return nil
}

func (d *Device) QueuePresent(swapchain gpu.Swapchain, imageIndex int, wait gpu.Semaphore) (gpu.Status, error) {
	if err := d.record("QueuePresent", imageIndex); err != nil {
		return gpu.StatusSuccess, err
	}
	if len(d.PresentScript) > 0 {
		status := d.PresentScript[0]
		d.PresentScript = d.PresentScript[1:]
		return status, nil
	}
	return gpu.StatusSuccess, nil
}

func (d *Device) WaitIdle() error {
	return d.record("WaitIdle")
}

func (d *Device) AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	if err := d.record("AllocateCommandBuffers", count); err != nil {
		return nil, err
	}
	buffers := make([]gpu.CommandBuffer, count)
	for i := range buffers {
		buffers[i] = gpu.CommandBuffer(d.alloc("command buffer"))
	}
	return buffers, nil
}

func (d *Device) FreeCommandBuffers(buffers ...gpu.CommandBuffer) {
	d.record("FreeCommandBuffers", len(buffers))
	for _, buffer := range buffers {
		d.release("command buffer", uint64(buffer))
	}
}

func (d *Device) BeginCommandBuffer(commandBuffer gpu.CommandBuffer, flags core1_0.CommandBufferUsageFlags) error {
	return d.record("BeginCommandBuffer", commandBuffer)
}

func (d *Device) EndCommandBuffer(commandBuffer gpu.CommandBuffer) error {
	return d.record("EndCommandBuffer", commandBuffer)
}

func (d *Device) CmdBeginRenderPass(commandBuffer gpu.CommandBuffer, begin gpu.RenderPassBegin) error {
	if err := d.record("CmdBeginRenderPass", commandBuffer); err != nil {
		return err
	}
	d.RenderPassBegins = append(d.RenderPassBegins, begin)
	return nil
}

func (d *Device) CmdEndRenderPass(commandBuffer gpu.CommandBuffer) {
	d.record("CmdEndRenderPass", commandBuffer)
}

func (d *Device) CmdSetViewport(commandBuffer gpu.CommandBuffer, viewport core1_0.Viewport) {
	d.record("CmdSetViewport", commandBuffer)
	d.Viewports = append(d.Viewports, viewport)
}

func (d *Device) CmdSetScissor(commandBuffer gpu.CommandBuffer, scissor core1_0.Rect2D) {
	d.record("CmdSetScissor", commandBuffer)
	d.Scissors = append(d.Scissors, scissor)
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	if err := d.record("CreateShaderModule", len(code)); err != nil {
		return 0, err
	}
	d.ShaderCode = append(d.ShaderCode, code)
	return gpu.ShaderModule(d.alloc("shader module")), nil
}

func (d *Device) DestroyShaderModule(module gpu.ShaderModule) {
	d.record("DestroyShaderModule", module)
	d.release("shader module", uint64(module))
}

func (d *Device) CreatePipelineLayout(setLayouts []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error) {
	if err := d.record("CreatePipelineLayout", len(setLayouts)); err != nil {
		return 0, err
	}
	d.PipelineLayouts = append(d.PipelineLayouts, setLayouts)
	return gpu.PipelineLayout(d.alloc("pipeline layout")), nil
}

func (d *Device) DestroyPipelineLayout(layout gpu.PipelineLayout) {
	d.record("DestroyPipelineLayout", layout)
	d.release("pipeline layout", uint64(layout))
}

func (d *Device) CreateGraphicsPipeline(opts gpu.GraphicsPipelineOptions) (gpu.Pipeline, error) {
	if err := d.record("CreateGraphicsPipeline", opts.RenderPass); err != nil {
		return 0, err
	}
	d.Pipelines = append(d.Pipelines, opts)
	return gpu.Pipeline(d.alloc("pipeline")), nil
}

func (d *Device) DestroyPipeline(pipeline gpu.Pipeline) {
	d.record("DestroyPipeline", pipeline)
	d.release("pipeline", uint64(pipeline))
}

func (d *Device) CmdBindPipeline(commandBuffer gpu.CommandBuffer, pipeline gpu.Pipeline) {
	d.record("CmdBindPipeline", commandBuffer, pipeline)
}

func (d *Device) CmdBindDescriptorSets(commandBuffer gpu.CommandBuffer, layout gpu.PipelineLayout, firstSet int, sets []gpu.DescriptorSet) {
	d.record("CmdBindDescriptorSets", commandBuffer, layout, firstSet)
	d.BoundDescriptorSets = append(d.BoundDescriptorSets, sets)
}

func (d *Device) CmdBindVertexBuffers(commandBuffer gpu.CommandBuffer, buffers []gpu.Buffer, offsets []int) {
	d.record("CmdBindVertexBuffers", commandBuffer)
	d.BoundVertexBuffers = append(d.BoundVertexBuffers, buffers)
}

func (d *Device) CmdBindIndexBuffer(commandBuffer gpu.CommandBuffer, buffer gpu.Buffer, offset int) {
	d.record("CmdBindIndexBuffer", commandBuffer, buffer)
	d.BoundIndexBuffers = append(d.BoundIndexBuffers, buffer)
}

func (d *Device) CmdDraw(commandBuffer gpu.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance int) {
	d.record("CmdDraw", commandBuffer, vertexCount)
	d.Draws = append(d.Draws, vertexCount)
}

func (d *Device) CmdDrawIndexed(commandBuffer gpu.CommandBuffer, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	d.record("CmdDrawIndexed", commandBuffer, indexCount)
	d.IndexedDraws = append(d.IndexedDraws, indexCount)
}

func (d *Device) CreateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (gpu.Buffer, gpu.DeviceMemory, error) {
	if err := d.record("CreateBuffer", size); err != nil {
		return 0, 0, err
	}
	buffer := gpu.Buffer(d.alloc("buffer"))
	memory := gpu.DeviceMemory(d.alloc("memory"))
	d.memory[memory] = make([]byte, size)
	d.buffers[buffer] = memory
	return buffer, memory, nil
}

func (d *Device) DestroyBuffer(buffer gpu.Buffer) {
	d.record("DestroyBuffer", buffer)
	delete(d.buffers, buffer)
	d.release("buffer", uint64(buffer))
}

func (d *Device) MapMemory(memory gpu.DeviceMemory, offset, size int) ([]byte, error) {
	if err := d.record("MapMemory", memory); err != nil {
		return nil, err
	}
	backing, ok := d.memory[memory]
	if !ok {
		return nil, errors.Newf("gputest: map of unknown memory %d", memory)
	}
	if d.mapped[memory] {
		return nil, errors.Newf("gputest: memory %d is already mapped", memory)
	}
	if size == gpu.WholeSize {
		size = len(backing) - offset
	}
	if offset < 0 || offset+size > len(backing) {
		return nil, errors.Newf("gputest: map range [%d, %d) outside allocation of %d bytes", offset, offset+size, len(backing))
	}
	d.mapped[memory] = true
	return backing[offset : offset+size], nil
}

func (d *Device) UnmapMemory(memory gpu.DeviceMemory) {
	d.record("UnmapMemory", memory)
	delete(d.mapped, memory)
}

func (d *Device) IsMapped(memory gpu.DeviceMemory) bool { return d.mapped[memory] }

func (d *Device) MaxSamplerAnisotropy() (float32, error) {
	if err := d.record("MaxSamplerAnisotropy"); err != nil {
		return 0, err
	}
	return d.MaxAnisotropy, nil
}

func (d *Device) CreateSampler(info core1_0.SamplerCreateInfo) (gpu.Sampler, error) {
	if err := d.record("CreateSampler"); err != nil {
		return 0, err
	}
	d.Samplers = append(d.Samplers, info)
	return gpu.Sampler(d.alloc("sampler")), nil
}

func (d *Device) DestroySampler(sampler gpu.Sampler) {
	d.record("DestroySampler", sampler)
	d.release("sampler", uint64(sampler))
}

func (d *Device) BeginSingleTimeCommands() (gpu.CommandBuffer, error) {
	if err := d.record("BeginSingleTimeCommands"); err != nil {
		return 0, err
	}
	return gpu.CommandBuffer(d.alloc("command buffer")), nil
}

func (d *Device) EndSingleTimeCommands(commandBuffer gpu.CommandBuffer) error {
	err := d.record("EndSingleTimeCommands", commandBuffer)
	d.release("command buffer", uint64(commandBuffer))
	return err
}

func (d *Device) CmdCopyBuffer(commandBuffer gpu.CommandBuffer, src, dst gpu.Buffer, size int) error {
	if err := d.record("CmdCopyBuffer", src, dst, size); err != nil {
		return err
	}
	copy(d.memory[d.buffers[dst]][:size], d.memory[d.buffers[src]][:size])
	return nil
}

func (d *Device) CmdCopyBufferToImage(commandBuffer gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, width, height int) error {
	return d.record("CmdCopyBufferToImage", src, dst, width, height)
}

func (d *Device) CmdPipelineBarrier(commandBuffer gpu.CommandBuffer, barrier gpu.ImageBarrier) error {
	if err := d.record("CmdPipelineBarrier", barrier.Image); err != nil {
		return err
	}
	d.Barriers = append(d.Barriers, barrier)
	return nil
}

func (d *Device) CreateDescriptorSetLayout(bindings []core1_0.DescriptorSetLayoutBinding) (gpu.DescriptorSetLayout, error) {
	if err := d.record("CreateDescriptorSetLayout", len(bindings)); err != nil {
		return 0, err
	}
	d.SetLayoutBindings = append(d.SetLayoutBindings, bindings)
	return gpu.DescriptorSetLayout(d.alloc("descriptor set layout")), nil
}

func (d *Device) DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayout) {
	d.record("DestroyDescriptorSetLayout", layout)
	d.release("descriptor set layout", uint64(layout))
}

func (d *Device) CreateDescriptorPool(maxSets int, sizes []core1_0.DescriptorPoolSize, flags core1_0.DescriptorPoolCreateFlags) (gpu.DescriptorPool, error) {
	if err := d.record("CreateDescriptorPool", maxSets); err != nil {
		return 0, err
	}
	d.DescriptorPoolSizes = append(d.DescriptorPoolSizes, sizes)
	return gpu.DescriptorPool(d.alloc("descriptor pool")), nil
}

func (d *Device) DestroyDescriptorPool(pool gpu.DescriptorPool) {
	d.record("DestroyDescriptorPool", pool)
	d.release("descriptor pool", uint64(pool))
}

// Descriptor sets are owned by their pool and are not tracked as live
// handles.
func (d *Device) AllocateDescriptorSets(pool gpu.DescriptorPool, layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error) {
	if err := d.record("AllocateDescriptorSets", pool, len(layouts)); err != nil {
		return nil, err
	}
	sets := make([]gpu.DescriptorSet, len(layouts))
	for i := range sets {
		d.next++
		sets[i] = gpu.DescriptorSet(d.next)
	}
	return sets, nil
}

func (d *Device) FreeDescriptorSets(pool gpu.DescriptorPool, sets []gpu.DescriptorSet) error {
	return d.record("FreeDescriptorSets", pool, len(sets))
}

func (d *Device) ResetDescriptorPool(pool gpu.DescriptorPool) error {
	return d.record("ResetDescriptorPool", pool)
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) error {
	if err := d.record("UpdateDescriptorSets", len(writes)); err != nil {
		return err
	}
	d.Writes = append(d.Writes, writes...)
	return nil
}
