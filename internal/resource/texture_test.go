package resource

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/minevoxel/internal/gpu/gputest"
)

func checkerboard(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.RGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.RGBA{B: 255, A: 255})
			}
		}
	}
	return img
}

func TestDecodeImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.Set(2, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	encoded := &bytes.Buffer{}
	require.NoError(t, png.Encode(encoded, src))

	rgba, err := DecodeImage(encoded)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 3, 2), rgba.Bounds())
	assert.Equal(t, 12, rgba.Stride)
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, rgba.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 200, G: 100, B: 50, A: 255}, rgba.RGBAAt(2, 1))
}

func TestDecodeImageGarbage(t *testing.T) {
	_, err := DecodeImage(strings.NewReader("definitely not a png"))
	assert.Error(t, err)
}

func TestNewTexture(t *testing.T) {
	device := gputest.NewDevice()

	texture, err := NewTexture(device, checkerboard(4, 2))
	require.NoError(t, err)
	defer texture.Destroy()

	assert.Equal(t, 4, texture.Width())
	assert.Equal(t, 2, texture.Height())
	assert.Equal(t, core1_0.ImageLayoutShaderReadOnlyOptimal, texture.Layout())

	require.Len(t, device.Barriers, 2)
	toTransfer, toShader := device.Barriers[0], device.Barriers[1]

	assert.Equal(t, core1_0.ImageLayoutUndefined, toTransfer.OldLayout)
	assert.Equal(t, core1_0.ImageLayoutTransferDstOptimal, toTransfer.NewLayout)
	assert.Equal(t, core1_0.AccessFlags(0), toTransfer.SrcAccess)
	assert.Equal(t, core1_0.AccessTransferWrite, toTransfer.DstAccess)
	assert.Equal(t, core1_0.PipelineStageTopOfPipe, toTransfer.SrcStage)
	assert.Equal(t, core1_0.PipelineStageTransfer, toTransfer.DstStage)

	assert.Equal(t, core1_0.ImageLayoutTransferDstOptimal, toShader.OldLayout)
	assert.Equal(t, core1_0.ImageLayoutShaderReadOnlyOptimal, toShader.NewLayout)
	assert.Equal(t, core1_0.AccessTransferWrite, toShader.SrcAccess)
	assert.Equal(t, core1_0.AccessShaderRead, toShader.DstAccess)
	assert.Equal(t, core1_0.PipelineStageFragmentShader, toShader.DstStage)
	assert.Equal(t, 1, toShader.MipLevelCount)

	assert.Equal(t, []string{
		"CmdPipelineBarrier",
		"CmdCopyBufferToImage",
		"CmdPipelineBarrier",
	}, methods(device.Calls("CmdPipelineBarrier", "CmdCopyBufferToImage")))

	require.Len(t, device.Samplers, 1)
	assert.Equal(t, float32(16), device.Samplers[0].MaxAnisotropy)
	assert.True(t, device.Samplers[0].AnisotropyEnable)
	assert.Equal(t, core1_0.SamplerAddressModeRepeat, device.Samplers[0].AddressModeU)

	info := texture.DescriptorInfo()
	assert.Equal(t, core1_0.ImageLayoutShaderReadOnlyOptimal, info.Layout)
	assert.NotZero(t, info.View)
	assert.NotZero(t, info.Sampler)

	assert.Equal(t, map[string]int{"image": 1, "memory": 1, "image view": 1, "sampler": 1}, device.Live())
}

func TestNewTextureEmptyImage(t *testing.T) {
	device := gputest.NewDevice()

	_, err := NewTexture(device, image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
	assert.Empty(t, device.Calls())
}

func TestNewTextureFailureReleasesEverything(t *testing.T) {
	testCases := []struct {
		method string
		nth    int
	}{
		{"CreateBuffer", 1},
		{"MapMemory", 1},
		{"CreateImage", 1},
		{"BeginSingleTimeCommands", 1},
		{"BeginSingleTimeCommands", 2},
		{"CmdPipelineBarrier", 1},
		{"CmdPipelineBarrier", 2},
		{"CmdCopyBufferToImage", 1},
		{"EndSingleTimeCommands", 3},
		{"CreateImageView", 1},
		{"MaxSamplerAnisotropy", 1},
		{"CreateSampler", 1},
	}

	for _, tc := range testCases {
		t.Run(tc.method, func(t *testing.T) {
			device := gputest.NewDevice()
			device.Fail(tc.method, tc.nth)

			_, err := NewTexture(device, checkerboard(2, 2))
			assert.Error(t, err)
			assert.Empty(t, device.Live())
			assert.Empty(t, device.BadReleases)
		})
	}
}

func TestLayoutBarrierUnsupported(t *testing.T) {
	_, err := layoutBarrier(1, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutShaderReadOnlyOptimal)
	assert.True(t, errors.Is(err, ErrUnsupportedTransition))

	_, err = layoutBarrier(1, core1_0.ImageLayoutShaderReadOnlyOptimal, core1_0.ImageLayoutTransferDstOptimal)
	assert.True(t, errors.Is(err, ErrUnsupportedTransition))
}

func TestTextureDestroyIdempotent(t *testing.T) {
	device := gputest.NewDevice()

	texture, err := NewTexture(device, checkerboard(2, 2))
	require.NoError(t, err)

	texture.Destroy()
	texture.Destroy()
	assert.Empty(t, device.Live())
	assert.Empty(t, device.BadReleases)
}
