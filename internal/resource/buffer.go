// Package resource wraps GPU buffers, sampled textures and descriptor objects
// behind small owning types with staged uploads.
package resource

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

type BufferDevice interface {
	CreateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (gpu.Buffer, gpu.DeviceMemory, error)
	DestroyBuffer(buffer gpu.Buffer)
	FreeMemory(memory gpu.DeviceMemory)
	MapMemory(memory gpu.DeviceMemory, offset, size int) ([]byte, error)
	UnmapMemory(memory gpu.DeviceMemory)
}

// Buffer holds instanceCount instances of instanceSize bytes, each starting
// on an alignment boundary.
type Buffer struct {
	device BufferDevice
	buffer gpu.Buffer
	memory gpu.DeviceMemory
	mapped []byte

	instanceSize  int
	instanceCount int
	alignmentSize int
	bufferSize    int
}

// Alignment rounds instanceSize up to a multiple of minOffsetAlignment, which
// must be zero or a power of two.
func Alignment(instanceSize, minOffsetAlignment int) int {
	if minOffsetAlignment > 0 {
		return (instanceSize + minOffsetAlignment - 1) &^ (minOffsetAlignment - 1)
	}
	return instanceSize
}

func NewBuffer(device BufferDevice, instanceSize, instanceCount int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags, minOffsetAlignment int) (*Buffer, error) {
	if instanceSize <= 0 || instanceCount <= 0 {
		return nil, errors.Newf("invalid buffer shape: %d instances of %d bytes", instanceCount, instanceSize)
	}

	b := &Buffer{
		device:        device,
		instanceSize:  instanceSize,
		instanceCount: instanceCount,
		alignmentSize: Alignment(instanceSize, minOffsetAlignment),
	}
	b.bufferSize = b.alignmentSize * instanceCount

	var err error
	b.buffer, b.memory, err = device.CreateBuffer(b.bufferSize, usage, properties)
	if err != nil {
		b.Destroy()
		return nil, errors.Wrapf(err, "failed to create buffer of %d bytes", b.bufferSize)
	}
	return b, nil
}

// Map maps size bytes starting at offset. gpu.WholeSize maps the rest of the
// buffer.
func (b *Buffer) Map(size, offset int) error {
	if b.mapped != nil {
		return errors.New("buffer is already mapped")
	}
	mapped, err := b.device.MapMemory(b.memory, offset, size)
	if err != nil {
		return errors.Wrap(err, "failed to map buffer memory")
	}
	b.mapped = mapped
	return nil
}

func (b *Buffer) Unmap() {
	if b.mapped != nil {
		b.device.UnmapMemory(b.memory)
		b.mapped = nil
	}
}

func (b *Buffer) Mapped() bool { return b.mapped != nil }

// WriteBytes copies data into the mapped range at offset. Writing to an
// unmapped buffer panics.
func (b *Buffer) WriteBytes(data []byte, offset int) {
	if b.mapped == nil {
		panic("resource: cannot write to unmapped buffer")
	}
	copy(b.mapped[offset:], data)
}

// Write encodes data, a fixed-size value or slice of them, in device byte
// order and copies it into the mapped range at offset.
func (b *Buffer) Write(data any, offset int) error {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return errors.Wrap(err, "failed to encode buffer data")
	}
	if b.mapped != nil && offset+buf.Len() > len(b.mapped) {
		return errors.Newf("write of %d bytes at offset %d overruns mapped range of %d bytes", buf.Len(), offset, len(b.mapped))
	}

	b.WriteBytes(buf.Bytes(), offset)
	return nil
}

// WriteToIndex writes one instance at its aligned slot.
func (b *Buffer) WriteToIndex(data any, index int) error {
	return b.Write(data, index*b.alignmentSize)
}

func (b *Buffer) DescriptorInfo(size, offset int) gpu.BufferInfo {
	return gpu.BufferInfo{Buffer: b.buffer, Offset: offset, Range: size}
}

func (b *Buffer) DescriptorInfoForIndex(index int) gpu.BufferInfo {
	return b.DescriptorInfo(b.alignmentSize, index*b.alignmentSize)
}

func (b *Buffer) Handle() gpu.Buffer       { return b.buffer }
func (b *Buffer) Memory() gpu.DeviceMemory { return b.memory }
func (b *Buffer) Size() int                { return b.bufferSize }
func (b *Buffer) InstanceSize() int        { return b.instanceSize }
func (b *Buffer) InstanceCount() int       { return b.instanceCount }
func (b *Buffer) AlignmentSize() int       { return b.alignmentSize }

func (b *Buffer) Destroy() {
	b.Unmap()
	if b.buffer != 0 {
		b.device.DestroyBuffer(b.buffer)
		b.buffer = 0
	}
	if b.memory != 0 {
		b.device.FreeMemory(b.memory)
		b.memory = 0
	}
}
