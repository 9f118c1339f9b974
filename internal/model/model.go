package model

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
	"github.com/vkngwrapper/minevoxel/internal/resource"
)

type Device interface {
	resource.TransferDevice

	CmdBindVertexBuffers(commandBuffer gpu.CommandBuffer, buffers []gpu.Buffer, offsets []int)
	CmdBindIndexBuffer(commandBuffer gpu.CommandBuffer, buffer gpu.Buffer, offset int)
	CmdDraw(commandBuffer gpu.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance int)
	CmdDrawIndexed(commandBuffer gpu.CommandBuffer, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int)
}

// Model is a mesh uploaded to device-local memory. It draws indexed when it
// was built with indices.
type Model struct {
	device Device

	vertexBuffer *resource.Buffer
	vertexCount  int

	indexBuffer *resource.Buffer
	indexCount  int
}

// New uploads data. Fewer than three vertices is a programming error.
func New(device Device, data Data) (*Model, error) {
	if len(data.Vertices) < 3 {
		panic(fmt.Sprintf("model: need at least 3 vertices, got %d", len(data.Vertices)))
	}

	m := &Model{
		device:      device,
		vertexCount: len(data.Vertices),
		indexCount:  len(data.Indices),
	}

	var err error
	m.vertexBuffer, err = resource.NewDeviceLocalBuffer(device, data.Vertices, m.vertexCount, core1_0.BufferUsageVertexBuffer)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upload vertex buffer")
	}

	if m.indexCount > 0 {
		m.indexBuffer, err = resource.NewDeviceLocalBuffer(device, data.Indices, m.indexCount, core1_0.BufferUsageIndexBuffer)
		if err != nil {
			m.Destroy()
			return nil, errors.Wrap(err, "failed to upload index buffer")
		}
	}

	gpu.Logger().Debug("model uploaded", "vertices", m.vertexCount, "indices", m.indexCount)
	return m, nil
}

func (m *Model) Bind(commandBuffer gpu.CommandBuffer) {
	m.device.CmdBindVertexBuffers(commandBuffer, []gpu.Buffer{m.vertexBuffer.Handle()}, []int{0})

	if m.indexBuffer != nil {
		m.device.CmdBindIndexBuffer(commandBuffer, m.indexBuffer.Handle(), 0)
	}
}

func (m *Model) Draw(commandBuffer gpu.CommandBuffer) {
	if m.indexBuffer != nil {
		m.device.CmdDrawIndexed(commandBuffer, m.indexCount, 1, 0, 0, 0)
	} else {
		m.device.CmdDraw(commandBuffer, m.vertexCount, 1, 0, 0)
	}
}

func (m *Model) VertexCount() int { return m.vertexCount }
func (m *Model) IndexCount() int  { return m.indexCount }

func (m *Model) Destroy() {
	if m.indexBuffer != nil {
		m.indexBuffer.Destroy()
		m.indexBuffer = nil
	}
	if m.vertexBuffer != nil {
		m.vertexBuffer.Destroy()
		m.vertexBuffer = nil
	}
}
