package resource

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

type TransferDevice interface {
	BufferDevice
	BeginSingleTimeCommands() (gpu.CommandBuffer, error)
	EndSingleTimeCommands(commandBuffer gpu.CommandBuffer) error
	CmdCopyBuffer(commandBuffer gpu.CommandBuffer, src, dst gpu.Buffer, size int) error
}

const hostVisible = core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent

// CopyBuffer copies size bytes from src to dst and waits for the copy to
// finish.
func CopyBuffer(device TransferDevice, src, dst gpu.Buffer, size int) error {
	commandBuffer, err := device.BeginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = device.CmdCopyBuffer(commandBuffer, src, dst, size)
	if err != nil {
		_ = device.EndSingleTimeCommands(commandBuffer)
		return errors.Wrap(err, "failed to record buffer copy")
	}

	return device.EndSingleTimeCommands(commandBuffer)
}

// newStagingBuffer returns a mapped host-visible buffer filled with data.
func newStagingBuffer(device BufferDevice, instanceSize, instanceCount int, data any) (*Buffer, error) {
	staging, err := NewBuffer(device, instanceSize, instanceCount, core1_0.BufferUsageTransferSrc, hostVisible, 0)
	if err != nil {
		return nil, err
	}

	err = staging.Map(gpu.WholeSize, 0)
	if err == nil {
		err = staging.Write(data, 0)
	}
	if err != nil {
		staging.Destroy()
		return nil, err
	}
	return staging, nil
}

// NewDeviceLocalBuffer uploads data, a slice of fixed-size values, into a new
// device-local buffer through a temporary staging buffer. usage gets
// transfer-dst added.
func NewDeviceLocalBuffer(device TransferDevice, data any, count int, usage core1_0.BufferUsageFlags) (*Buffer, error) {
	size := binary.Size(data)
	if size <= 0 || count <= 0 {
		return nil, errors.Newf("cannot upload %T: not a non-empty slice of fixed-size values", data)
	}
	instanceSize := size / count

	staging, err := newStagingBuffer(device, instanceSize, count, data)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	buffer, err := NewBuffer(device, instanceSize, count, usage|core1_0.BufferUsageTransferDst, core1_0.MemoryPropertyDeviceLocal, 0)
	if err != nil {
		return nil, err
	}

	err = CopyBuffer(device, staging.Handle(), buffer.Handle(), size)
	if err != nil {
		buffer.Destroy()
		return nil, err
	}
	return buffer, nil
}
