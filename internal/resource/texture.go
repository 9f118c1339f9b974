package resource

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"golang.org/x/image/draw"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

// ErrUnsupportedTransition is returned for image layout transitions the
// upload path does not know the barrier masks for.
var ErrUnsupportedTransition = errors.New("unsupported layout transition")

const TextureFormat = core1_0.FormatR8G8B8A8SRGB

type TextureDevice interface {
	TransferDevice

	CreateImage(opts gpu.ImageOptions, properties core1_0.MemoryPropertyFlags) (gpu.Image, gpu.DeviceMemory, error)
	DestroyImage(image gpu.Image)
	CreateImageView(image gpu.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (gpu.ImageView, error)
	DestroyImageView(view gpu.ImageView)

	MaxSamplerAnisotropy() (float32, error)
	CreateSampler(info core1_0.SamplerCreateInfo) (gpu.Sampler, error)
	DestroySampler(sampler gpu.Sampler)

	CmdCopyBufferToImage(commandBuffer gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, width, height int) error
	CmdPipelineBarrier(commandBuffer gpu.CommandBuffer, barrier gpu.ImageBarrier) error
}

// Texture is a sampled 2D RGBA image with its view and sampler.
type Texture struct {
	device TextureDevice

	image   gpu.Image
	memory  gpu.DeviceMemory
	view    gpu.ImageView
	sampler gpu.Sampler

	width, height int
	layout        core1_0.ImageLayout
}

// DecodeImage decodes a PNG or JPEG and converts it to tightly packed RGBA.
func DecodeImage(r io.Reader) (*image.RGBA, error) {
	decoded, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode texture image")
	}

	if rgba, ok := decoded.(*image.RGBA); ok && rgba.Stride == rgba.Rect.Dx()*4 && rgba.Rect.Min == (image.Point{}) {
		return rgba, nil
	}

	bounds := decoded.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), decoded, bounds.Min, draw.Src)
	return rgba, nil
}

// NewTexture uploads img to a device-local image and leaves it ready for
// sampling in fragment shaders.
func NewTexture(device TextureDevice, img *image.RGBA) (*Texture, error) {
	t := &Texture{
		device: device,
		width:  img.Rect.Dx(),
		height: img.Rect.Dy(),
		layout: core1_0.ImageLayoutUndefined,
	}
	if t.width == 0 || t.height == 0 {
		return nil, errors.New("cannot create texture from empty image")
	}

	err := t.upload(img.Pix)
	if err == nil {
		err = t.createViewAndSampler()
	}
	if err != nil {
		t.Destroy()
		return nil, err
	}

	gpu.Logger().Debug("texture uploaded", "width", t.width, "height", t.height)
	return t, nil
}

func (t *Texture) upload(pixels []byte) error {
	staging, err := newStagingBuffer(t.device, 4, t.width*t.height, pixels)
	if err != nil {
		return err
	}
	defer staging.Destroy()

	t.image, t.memory, err = t.device.CreateImage(gpu.ImageOptions{
		Width:  t.width,
		Height: t.height,
		Format: TextureFormat,
		Tiling: core1_0.ImageTilingOptimal,
		Usage:  core1_0.ImageUsageTransferDst | core1_0.ImageUsageSampled,
	}, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return errors.Wrap(err, "failed to create texture image")
	}

	err = t.transitionLayout(core1_0.ImageLayoutTransferDstOptimal)
	if err != nil {
		return err
	}

	err = t.copyFrom(staging.Handle())
	if err != nil {
		return err
	}

	return t.transitionLayout(core1_0.ImageLayoutShaderReadOnlyOptimal)
}

func (t *Texture) copyFrom(buffer gpu.Buffer) error {
	commandBuffer, err := t.device.BeginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = t.device.CmdCopyBufferToImage(commandBuffer, buffer, t.image, t.width, t.height)
	if err != nil {
		_ = t.device.EndSingleTimeCommands(commandBuffer)
		return errors.Wrap(err, "failed to record buffer to image copy")
	}

	return t.device.EndSingleTimeCommands(commandBuffer)
}

func (t *Texture) transitionLayout(newLayout core1_0.ImageLayout) error {
	barrier, err := layoutBarrier(t.image, t.layout, newLayout)
	if err != nil {
		return err
	}

	commandBuffer, err := t.device.BeginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = t.device.CmdPipelineBarrier(commandBuffer, barrier)
	if err != nil {
		_ = t.device.EndSingleTimeCommands(commandBuffer)
		return errors.Wrap(err, "failed to record layout transition")
	}

	err = t.device.EndSingleTimeCommands(commandBuffer)
	if err != nil {
		return err
	}

	t.layout = newLayout
	return nil
}

// layoutBarrier knows the two transitions a texture upload goes through.
func layoutBarrier(image gpu.Image, oldLayout, newLayout core1_0.ImageLayout) (gpu.ImageBarrier, error) {
	barrier := gpu.ImageBarrier{
		Image:         image,
		OldLayout:     oldLayout,
		NewLayout:     newLayout,
		AspectMask:    core1_0.ImageAspectColor,
		MipLevelCount: 1,
	}

	if oldLayout == core1_0.ImageLayoutUndefined && newLayout == core1_0.ImageLayoutTransferDstOptimal {
		barrier.SrcAccess = 0
		barrier.DstAccess = core1_0.AccessTransferWrite
		barrier.SrcStage = core1_0.PipelineStageTopOfPipe
		barrier.DstStage = core1_0.PipelineStageTransfer
	} else if oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal {
		barrier.SrcAccess = core1_0.AccessTransferWrite
		barrier.DstAccess = core1_0.AccessShaderRead
		barrier.SrcStage = core1_0.PipelineStageTransfer
		barrier.DstStage = core1_0.PipelineStageFragmentShader
	} else {
		return gpu.ImageBarrier{}, errors.Wrapf(ErrUnsupportedTransition, "%v -> %v", oldLayout, newLayout)
	}

	return barrier, nil
}

func (t *Texture) createViewAndSampler() error {
	var err error
	t.view, err = t.device.CreateImageView(t.image, TextureFormat, core1_0.ImageAspectColor)
	if err != nil {
		return errors.Wrap(err, "failed to create texture image view")
	}

	maxAnisotropy, err := t.device.MaxSamplerAnisotropy()
	if err != nil {
		return errors.Wrap(err, "failed to query sampler limits")
	}

	t.sampler, err = t.device.CreateSampler(core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: true,
		MaxAnisotropy:    maxAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MinLod:     0,
		MaxLod:     0,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create texture sampler")
	}
	return nil
}

func (t *Texture) DescriptorInfo() gpu.ImageInfo {
	return gpu.ImageInfo{
		Sampler: t.sampler,
		View:    t.view,
		Layout:  t.layout,
	}
}

func (t *Texture) Width() int                  { return t.width }
func (t *Texture) Height() int                 { return t.height }
func (t *Texture) Layout() core1_0.ImageLayout { return t.layout }

func (t *Texture) Destroy() {
	if t.sampler != 0 {
		t.device.DestroySampler(t.sampler)
		t.sampler = 0
	}
	if t.view != 0 {
		t.device.DestroyImageView(t.view)
		t.view = 0
	}
	if t.image != 0 {
		t.device.DestroyImage(t.image)
		t.image = 0
	}
	if t.memory != 0 {
		t.device.FreeMemory(t.memory)
		t.memory = 0
	}
}
