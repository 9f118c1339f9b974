package swapchain

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
	"github.com/vkngwrapper/minevoxel/internal/gpu/gputest"
)

var hd = core1_0.Extent2D{Width: 1280, Height: 720}

func newChain(t *testing.T, device *gputest.Device) *Chain {
	t.Helper()
	chain, err := New(device, hd, nil, DefaultOptions())
	require.NoError(t, err)
	return chain
}

func TestNewChainImageCount(t *testing.T) {
	testCases := []struct {
		name     string
		min, max int
	}{
		{"Capped", 2, 3},
		{"Uncapped", 2, 0},
		{"MinEqualsMax", 3, 3},
		{"Large", 4, 16},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			device := gputest.NewDevice()
			device.Support.Capabilities.MinImageCount = tc.min
			device.Support.Capabilities.MaxImageCount = tc.max

			chain := newChain(t, device)
			defer chain.Destroy()

			count := chain.ImageCount()
			if tc.max > 0 {
				assert.LessOrEqual(t, count, tc.max)
			}
			if tc.max == 0 || tc.max > tc.min {
				assert.Equal(t, tc.min+1, count)
			}
			assert.Len(t, chain.framebuffers, count)
			assert.Len(t, chain.imageViews, count)
			assert.Len(t, chain.depthViews, count)
			assert.Len(t, chain.depthImages, count)
			assert.Len(t, chain.imagesInFlight, count)
		})
	}
}

func TestNewChainAttachments(t *testing.T) {
	device := gputest.NewDevice()
	chain := newChain(t, device)
	defer chain.Destroy()

	assert.Equal(t, core1_0.FormatB8G8R8A8SRGB, chain.ImageFormat())
	assert.Equal(t, core1_0.FormatD32SignedFloat, chain.DepthFormat())
	assert.Equal(t, hd, chain.Extent())
	assert.InDelta(t, 1280.0/720.0, chain.AspectRatio(), 1e-6)

	for i := 0; i < chain.ImageCount(); i++ {
		attachments := device.Framebuffers[chain.Framebuffer(i)]
		assert.Equal(t, []gpu.ImageView{chain.ImageView(i), chain.DepthView(i)}, attachments)
	}

	require.Len(t, device.RenderPasses, 1)
	info := device.RenderPasses[0]
	require.Len(t, info.Attachments, 2)
	assert.Equal(t, core1_0.AttachmentLoadOpClear, info.Attachments[0].LoadOp)
	assert.Equal(t, core1_0.AttachmentStoreOpStore, info.Attachments[0].StoreOp)
	assert.Equal(t, core1_0.AttachmentLoadOpClear, info.Attachments[1].LoadOp)
	assert.Equal(t, core1_0.AttachmentStoreOpDontCare, info.Attachments[1].StoreOp)
	assert.Equal(t, chain.DepthFormat(), info.Attachments[1].Format)
	require.Len(t, info.SubpassDependencies, 1)
	assert.Equal(t, core1_0.SubpassExternal, info.SubpassDependencies[0].SrcSubpass)
}

func TestNewChainFencesStartSignaled(t *testing.T) {
	device := gputest.NewDevice()
	chain := newChain(t, device)
	defer chain.Destroy()

	assert.Equal(t, []string{"CreateFence(true)", "CreateFence(true)"}, device.Calls("CreateFence"))
	assert.Equal(t, 2*MaxFramesInFlight, device.Count("CreateSemaphore"))
	for _, fence := range chain.imagesInFlight {
		assert.Zero(t, fence)
	}
}

func TestNewChainDepthFormatPriority(t *testing.T) {
	device := gputest.NewDevice()
	device.SupportedFormats = []core1_0.Format{core1_0.FormatD24UnsignedNormalizedS8UnsignedInt}

	chain := newChain(t, device)
	defer chain.Destroy()

	assert.Equal(t, core1_0.FormatD24UnsignedNormalizedS8UnsignedInt, chain.DepthFormat())
}

func TestNewChainNoDepthFormat(t *testing.T) {
	device := gputest.NewDevice()
	device.SupportedFormats = []core1_0.Format{core1_0.FormatR8G8B8A8SRGB}

	chain, err := New(device, hd, nil, DefaultOptions())
	require.Error(t, err)
	assert.Nil(t, chain)
	assert.True(t, errors.Is(err, ErrNoDepthFormat))
	assert.Empty(t, device.Live())
}

func TestNewChainPartialFailureReleasesEverything(t *testing.T) {
	methods := []string{
		"SurfaceSupport",
		"CreateSwapchain",
		"CreateImageView",
		"CreateRenderPass",
		"CreateImage",
		"CreateFramebuffer",
		"CreateSemaphore",
		"CreateFence",
	}

	for _, method := range methods {
		for _, nth := range []int{1, 2} {
			t.Run(method, func(t *testing.T) {
				device := gputest.NewDevice()
				device.Fail(method, nth)

				chain, err := New(device, hd, nil, DefaultOptions())
				if device.Count(method) < nth {
					// Method is not called that often.
					require.NoError(t, err)
					chain.Destroy()
				} else {
					require.Error(t, err)
					assert.Nil(t, chain)
				}
				assert.Empty(t, device.Live())
				assert.Empty(t, device.BadReleases)
			})
		}
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	device := gputest.NewDevice()
	chain := newChain(t, device)

	chain.Destroy()
	chain.Destroy()

	assert.Empty(t, device.Live())
	assert.Empty(t, device.BadReleases)
}

func TestDestroyOrder(t *testing.T) {
	device := gputest.NewDevice()
	chain := newChain(t, device)
	device.ResetCalls()

	chain.Destroy()

	var kinds []string
	for _, call := range device.Calls() {
		kind, _, _ := strings.Cut(call, "(")
		if len(kinds) == 0 || kinds[len(kinds)-1] != kind {
			kinds = append(kinds, kind)
		}
	}

	assert.Equal(t, []string{
		"DestroyImageView",
		"DestroySwapchain",
		"DestroyImageView", "DestroyImage", "FreeMemory",
		"DestroyImageView", "DestroyImage", "FreeMemory",
		"DestroyImageView", "DestroyImage", "FreeMemory",
		"DestroyFramebuffer",
		"DestroyRenderPass",
		"DestroySemaphore",
		"DestroyFence",
		"DestroySemaphore",
		"DestroyFence",
	}, kinds)
}

func TestRecreationPassesOldSwapchain(t *testing.T) {
	device := gputest.NewDevice()
	first := newChain(t, device)

	second, err := New(device, core1_0.Extent2D{Width: 800, Height: 600}, first, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, device.SwapchainRequests, 2)
	assert.Zero(t, device.SwapchainRequests[0].OldSwapchain)
	assert.Equal(t, first.swapchain, device.SwapchainRequests[1].OldSwapchain)
	assert.True(t, first.CompareFormats(second))
	assert.NotEqual(t, first.ID(), second.ID())

	// The previous chain is only borrowed.
	assert.True(t, device.IsLive(uint64(first.swapchain)))

	first.Destroy()
	second.Destroy()
	assert.Empty(t, device.Live())
}

func TestCompareFormatsDetectsChange(t *testing.T) {
	device := gputest.NewDevice()
	first := newChain(t, device)
	defer first.Destroy()

	device.SupportedFormats = []core1_0.Format{core1_0.FormatD32SignedFloatS8UnsignedInt}
	second, err := New(device, hd, first, DefaultOptions())
	require.NoError(t, err)
	defer second.Destroy()

	assert.False(t, first.CompareFormats(second))
}

func TestAcquireWaitsOnSlotFence(t *testing.T) {
	device := gputest.NewDevice()
	chain := newChain(t, device)
	defer chain.Destroy()
	device.ResetCalls()

	index, status, err := chain.AcquireNextImage()
	require.NoError(t, err)
	assert.Equal(t, gpu.StatusSuccess, status)
	assert.Equal(t, 0, index)

	assert.Equal(t, []string{
		"WaitForFence(" + itoa(chain.inFlight[0]) + ")",
		"AcquireNextImage(" + itoa(chain.imageAvailable[0]) + ")",
	}, device.Calls())
}

func TestAcquireReportsStaleness(t *testing.T) {
	device := gputest.NewDevice()
	chain := newChain(t, device)
	defer chain.Destroy()

	device.AcquireScript = []gputest.Acquire{
		{Index: 1, Status: gpu.StatusSuboptimal},
		{Status: gpu.StatusOutOfDate},
	}

	index, status, err := chain.AcquireNextImage()
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.Equal(t, gpu.StatusSuboptimal, status)

	_, status, err = chain.AcquireNextImage()
	require.NoError(t, err)
	assert.Equal(t, gpu.StatusOutOfDate, status)
}

func TestAcquireHardFailure(t *testing.T) {
	device := gputest.NewDevice()
	chain := newChain(t, device)
	defer chain.Destroy()

	device.AcquireScript = []gputest.Acquire{{Err: errors.New("device lost")}}
	_, _, err := chain.AcquireNextImage()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device lost")
}

func TestAcquireFenceTimeout(t *testing.T) {
	device := gputest.NewDevice()
	chain := newChain(t, device)
	defer chain.Destroy()

	device.WaitScript = []gpu.Status{gpu.StatusTimeout}
	_, status, err := chain.AcquireNextImage()
	require.NoError(t, err)
	assert.Equal(t, gpu.StatusTimeout, status)
	assert.Zero(t, device.Count("AcquireNextImage"))
}

func TestRecreationKeepsFrameSlot(t *testing.T) {
	device := gputest.NewDevice()
	first := newChain(t, device)
	defer first.Destroy()

	index, _, err := first.AcquireNextImage()
	require.NoError(t, err)
	_, err = first.Submit(gpu.CommandBuffer(1000), index)
	require.NoError(t, err)
	require.Equal(t, 1, first.CurrentFrame())

	second, err := New(device, hd, first, DefaultOptions())
	require.NoError(t, err)
	defer second.Destroy()
	assert.Equal(t, 1, second.CurrentFrame())

	device.ResetCalls()
	_, _, err = second.AcquireNextImage()
	require.NoError(t, err)
	assert.Equal(t, []string{"WaitForFence(" + itoa(second.inFlight[1]) + ")"}, device.Calls("WaitForFence"))
}

func TestSubmitProtocol(t *testing.T) {
	device := gputest.NewDevice()
	chain := newChain(t, device)
	defer chain.Destroy()

	index, _, err := chain.AcquireNextImage()
	require.NoError(t, err)
	device.ResetCalls()

	status, err := chain.Submit(gpu.CommandBuffer(1000), index)
	require.NoError(t, err)
	assert.Equal(t, gpu.StatusSuccess, status)

	fence := itoa(chain.inFlight[0])
	assert.Equal(t, []string{
		"ResetFence(" + fence + ")",
		"QueueSubmit(1000," + fence + ")",
		"QueuePresent(0)",
	}, device.Calls())

	require.Len(t, device.Submits, 1)
	submit := device.Submits[0]
	assert.Equal(t, chain.imageAvailable[0], submit.Wait)
	assert.Equal(t, chain.renderFinished[0], submit.Signal)
	assert.Equal(t, core1_0.PipelineStageColorAttachmentOutput, submit.WaitStage)

	assert.Equal(t, chain.inFlight[0], chain.imagesInFlight[0])
	assert.Equal(t, 1, chain.CurrentFrame())
}

func TestSubmitWaitsForImageStillInFlight(t *testing.T) {
	device := gputest.NewDevice()
	chain := newChain(t, device)
	defer chain.Destroy()

	// Slot 0 renders image 1, then slot 1 gets image 1 again.
	device.AcquireScript = []gputest.Acquire{{Index: 1}, {Index: 1}}

	index, _, err := chain.AcquireNextImage()
	require.NoError(t, err)
	_, err = chain.Submit(gpu.CommandBuffer(1000), index)
	require.NoError(t, err)

	index, _, err = chain.AcquireNextImage()
	require.NoError(t, err)
	device.ResetCalls()

	_, err = chain.Submit(gpu.CommandBuffer(1001), index)
	require.NoError(t, err)

	slot0, slot1 := itoa(chain.inFlight[0]), itoa(chain.inFlight[1])
	assert.Equal(t, []string{
		"WaitForFence(" + slot0 + ")",
		"ResetFence(" + slot1 + ")",
		"QueueSubmit(1001," + slot1 + ")",
		"QueuePresent(1)",
	}, device.Calls())
	assert.Equal(t, chain.inFlight[1], chain.imagesInFlight[1])
}

func TestSubmitImageFenceTimeout(t *testing.T) {
	device := gputest.NewDevice()
	chain := newChain(t, device)
	defer chain.Destroy()

	device.AcquireScript = []gputest.Acquire{{Index: 0}, {Index: 0}}
	index, _, _ := chain.AcquireNextImage()
	_, err := chain.Submit(gpu.CommandBuffer(1000), index)
	require.NoError(t, err)
	index, _, _ = chain.AcquireNextImage()

	device.WaitScript = []gpu.Status{gpu.StatusTimeout}
	status, err := chain.Submit(gpu.CommandBuffer(1001), index)
	require.NoError(t, err)
	assert.Equal(t, gpu.StatusTimeout, status)
	assert.Equal(t, 1, device.Count("QueueSubmit"))
	assert.Equal(t, 1, chain.CurrentFrame())
}

func TestSubmitAdvancesOnStalePresent(t *testing.T) {
	device := gputest.NewDevice()
	chain := newChain(t, device)
	defer chain.Destroy()

	device.PresentScript = []gpu.Status{gpu.StatusOutOfDate, gpu.StatusSuboptimal}

	for i, want := range []gpu.Status{gpu.StatusOutOfDate, gpu.StatusSuboptimal, gpu.StatusSuccess} {
		index, _, err := chain.AcquireNextImage()
		require.NoError(t, err)
		status, err := chain.Submit(gpu.CommandBuffer(1000), index)
		require.NoError(t, err)
		assert.Equal(t, want, status)
		assert.Equal(t, (i+1)%MaxFramesInFlight, chain.CurrentFrame())
	}
}

func TestSubmitAdvancesOnPresentFailure(t *testing.T) {
	device := gputest.NewDevice()
	chain := newChain(t, device)
	defer chain.Destroy()

	device.Fail("QueuePresent", 1)
	index, _, err := chain.AcquireNextImage()
	require.NoError(t, err)
	_, err = chain.Submit(gpu.CommandBuffer(1000), index)
	require.Error(t, err)
	assert.Equal(t, 1, chain.CurrentFrame())
}

func TestSubmitRejectsBadIndex(t *testing.T) {
	device := gputest.NewDevice()
	chain := newChain(t, device)
	defer chain.Destroy()

	assert.Panics(t, func() {
		_, _ = chain.Submit(gpu.CommandBuffer(1000), chain.ImageCount())
	})
}
