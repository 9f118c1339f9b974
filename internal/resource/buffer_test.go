package resource

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
	"github.com/vkngwrapper/minevoxel/internal/gpu/gputest"
)

func encode(t *testing.T, data any) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, binary.Write(buf, common.ByteOrder, data))
	return buf.Bytes()
}

func TestAlignment(t *testing.T) {
	assert.Equal(t, 32, Alignment(17, 16))
	assert.Equal(t, 16, Alignment(16, 16))
	assert.Equal(t, 256, Alignment(64, 256))
	assert.Equal(t, 5, Alignment(5, 0))
}

func TestNewBufferAlignsInstances(t *testing.T) {
	device := gputest.NewDevice()

	buffer, err := NewBuffer(device, 20, 3, core1_0.BufferUsageUniformBuffer, hostVisible, 16)
	require.NoError(t, err)
	defer buffer.Destroy()

	assert.Equal(t, 32, buffer.AlignmentSize())
	assert.Equal(t, 96, buffer.Size())
	assert.Equal(t, 20, buffer.InstanceSize())
	assert.Equal(t, 3, buffer.InstanceCount())
	assert.Equal(t, []string{"CreateBuffer(96)"}, device.Calls("CreateBuffer"))

	info := buffer.DescriptorInfoForIndex(2)
	assert.Equal(t, buffer.Handle(), info.Buffer)
	assert.Equal(t, 64, info.Offset)
	assert.Equal(t, 32, info.Range)
}

func TestNewBufferRejectsEmptyShape(t *testing.T) {
	device := gputest.NewDevice()

	_, err := NewBuffer(device, 0, 3, core1_0.BufferUsageVertexBuffer, hostVisible, 0)
	assert.Error(t, err)
	_, err = NewBuffer(device, 4, 0, core1_0.BufferUsageVertexBuffer, hostVisible, 0)
	assert.Error(t, err)
	assert.Zero(t, device.Count("CreateBuffer"))
}

func TestNewBufferFailure(t *testing.T) {
	device := gputest.NewDevice()
	device.Fail("CreateBuffer", 1)

	_, err := NewBuffer(device, 4, 4, core1_0.BufferUsageVertexBuffer, hostVisible, 0)
	assert.Error(t, err)
	assert.Empty(t, device.Live())
}

func TestBufferWriteToIndex(t *testing.T) {
	device := gputest.NewDevice()

	buffer, err := NewBuffer(device, 4, 4, core1_0.BufferUsageUniformBuffer, hostVisible, 16)
	require.NoError(t, err)
	defer buffer.Destroy()

	require.NoError(t, buffer.Map(gpu.WholeSize, 0))
	require.NoError(t, buffer.WriteToIndex(uint32(7), 1))
	require.NoError(t, buffer.WriteToIndex(uint32(9), 3))

	contents := device.Contents(buffer.Handle())
	assert.Equal(t, encode(t, uint32(7)), contents[16:20])
	assert.Equal(t, encode(t, uint32(9)), contents[48:52])
	assert.Equal(t, make([]byte, 4), contents[0:4])
}

func TestBufferWriteOverrun(t *testing.T) {
	device := gputest.NewDevice()

	buffer, err := NewBuffer(device, 4, 2, core1_0.BufferUsageUniformBuffer, hostVisible, 0)
	require.NoError(t, err)
	defer buffer.Destroy()

	require.NoError(t, buffer.Map(gpu.WholeSize, 0))
	assert.Error(t, buffer.Write([]uint32{1, 2, 3}, 0))
	assert.Error(t, buffer.Write(uint32(1), 6))
}

func TestBufferWriteUnmappedPanics(t *testing.T) {
	device := gputest.NewDevice()

	buffer, err := NewBuffer(device, 4, 1, core1_0.BufferUsageUniformBuffer, hostVisible, 0)
	require.NoError(t, err)
	defer buffer.Destroy()

	assert.PanicsWithValue(t, "resource: cannot write to unmapped buffer", func() {
		buffer.WriteBytes([]byte{1}, 0)
	})
}

func TestBufferMapTwice(t *testing.T) {
	device := gputest.NewDevice()

	buffer, err := NewBuffer(device, 4, 1, core1_0.BufferUsageUniformBuffer, hostVisible, 0)
	require.NoError(t, err)
	defer buffer.Destroy()

	require.NoError(t, buffer.Map(gpu.WholeSize, 0))
	assert.True(t, buffer.Mapped())
	assert.Error(t, buffer.Map(gpu.WholeSize, 0))

	buffer.Unmap()
	assert.False(t, buffer.Mapped())
	assert.False(t, device.IsMapped(buffer.Memory()))
}

func TestBufferDestroy(t *testing.T) {
	device := gputest.NewDevice()

	buffer, err := NewBuffer(device, 4, 1, core1_0.BufferUsageUniformBuffer, hostVisible, 0)
	require.NoError(t, err)
	require.NoError(t, buffer.Map(gpu.WholeSize, 0))
	memory := buffer.Memory()

	buffer.Destroy()
	buffer.Destroy()

	assert.Empty(t, device.Live())
	assert.Empty(t, device.BadReleases)
	assert.False(t, device.IsMapped(memory))
	assert.Equal(t, 1, device.Count("UnmapMemory"))
}

func TestNewDeviceLocalBuffer(t *testing.T) {
	device := gputest.NewDevice()
	data := []float32{1, 2, 3, 4, 5, 6}

	buffer, err := NewDeviceLocalBuffer(device, data, 3, core1_0.BufferUsageVertexBuffer)
	require.NoError(t, err)
	defer buffer.Destroy()

	assert.Equal(t, 8, buffer.InstanceSize())
	assert.Equal(t, 3, buffer.InstanceCount())
	assert.Equal(t, encode(t, data), device.Contents(buffer.Handle()))
	assert.Equal(t, map[string]int{"buffer": 1, "memory": 1}, device.Live())
	assert.Equal(t, 1, device.Count("CmdCopyBuffer"))
}

func TestNewDeviceLocalBufferRejectsNonFixedData(t *testing.T) {
	device := gputest.NewDevice()

	_, err := NewDeviceLocalBuffer(device, []string{"a"}, 1, core1_0.BufferUsageVertexBuffer)
	assert.Error(t, err)
	_, err = NewDeviceLocalBuffer(device, []uint32{}, 0, core1_0.BufferUsageVertexBuffer)
	assert.Error(t, err)
	assert.Empty(t, device.Live())
}

func TestNewDeviceLocalBufferFailures(t *testing.T) {
	for _, method := range []string{"CreateBuffer", "MapMemory", "BeginSingleTimeCommands", "CmdCopyBuffer", "EndSingleTimeCommands"} {
		for _, nth := range []int{1, 2} {
			if nth == 2 && method != "CreateBuffer" {
				continue
			}
			t.Run(method, func(t *testing.T) {
				device := gputest.NewDevice()
				device.Fail(method, nth)

				_, err := NewDeviceLocalBuffer(device, []uint32{1, 2, 3}, 3, core1_0.BufferUsageIndexBuffer)
				assert.Error(t, err)
				assert.Empty(t, device.Live())
				assert.Empty(t, device.BadReleases)
			})
		}
	}
}
