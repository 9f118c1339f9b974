package systems

import (
	"io/fs"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
	"github.com/vkngwrapper/minevoxel/internal/pipeline"
)

type Device interface {
	pipeline.Device

	CreatePipelineLayout(setLayouts []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error)
	DestroyPipelineLayout(layout gpu.PipelineLayout)
	CmdBindDescriptorSets(commandBuffer gpu.CommandBuffer, layout gpu.PipelineLayout, firstSet int, sets []gpu.DescriptorSet)
	CmdDraw(commandBuffer gpu.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance int)
}

// Shaders names the SPIR-V binaries a render system is built from.
type Shaders struct {
	FS       fs.FS
	Vertex   string
	Fragment string
}

const globalSet = 0

// RenderSystem pairs one pipeline with its layout. When built with a global
// set layout it binds the frame's descriptor set at set 0 before drawing.
type RenderSystem struct {
	device    Device
	layout    gpu.PipelineLayout
	pipeline  *pipeline.Pipeline
	hasGlobal bool

	fallbackVertices int
}

type Option func(*RenderSystem)

// WithFallbackDraw makes Render issue a bare draw of count vertices when the
// frame carries no objects, for shaders that generate their own geometry.
func WithFallbackDraw(count int) Option {
	return func(s *RenderSystem) { s.fallbackVertices = count }
}

// New builds a render system. globalSetLayout may be zero for systems that
// bind no descriptors.
func New(device Device, renderPass gpu.RenderPass, globalSetLayout gpu.DescriptorSetLayout, shaders Shaders, cfg pipeline.Config, opts ...Option) (*RenderSystem, error) {
	s := &RenderSystem{device: device, hasGlobal: globalSetLayout != 0}
	for _, opt := range opts {
		opt(s)
	}

	var setLayouts []gpu.DescriptorSetLayout
	if s.hasGlobal {
		setLayouts = []gpu.DescriptorSetLayout{globalSetLayout}
	}

	var err error
	s.layout, err = device.CreatePipelineLayout(setLayouts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pipeline layout")
	}

	s.pipeline, err = pipeline.NewFS(device, shaders.FS, shaders.Vertex, shaders.Fragment, s.layout, renderPass, cfg)
	if err != nil {
		device.DestroyPipelineLayout(s.layout)
		return nil, err
	}

	return s, nil
}

func (s *RenderSystem) Render(frame FrameInfo) {
	s.pipeline.Bind(frame.CommandBuffer)

	if s.hasGlobal {
		s.device.CmdBindDescriptorSets(frame.CommandBuffer, s.layout, globalSet, []gpu.DescriptorSet{frame.DescriptorSet})
	}

	if len(frame.Objects) == 0 && s.fallbackVertices > 0 {
		s.device.CmdDraw(frame.CommandBuffer, s.fallbackVertices, 1, 0, 0)
		return
	}

	for _, object := range frame.Objects {
		object.Bind(frame.CommandBuffer)
		object.Draw(frame.CommandBuffer)
	}
}

func (s *RenderSystem) Layout() gpu.PipelineLayout { return s.layout }

func (s *RenderSystem) Destroy() {
	if s.pipeline != nil {
		s.pipeline.Destroy()
		s.pipeline = nil
	}
	if s.layout != 0 {
		s.device.DestroyPipelineLayout(s.layout)
		s.layout = 0
	}
}
