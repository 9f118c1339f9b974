// Package pipeline builds graphics pipelines from SPIR-V shader files and an
// immutable fixed-function Config.
package pipeline

import (
	"io/fs"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

type Device interface {
	CreateShaderModule(code []uint32) (gpu.ShaderModule, error)
	DestroyShaderModule(module gpu.ShaderModule)
	CreateGraphicsPipeline(opts gpu.GraphicsPipelineOptions) (gpu.Pipeline, error)
	DestroyPipeline(pipeline gpu.Pipeline)
	CmdBindPipeline(commandBuffer gpu.CommandBuffer, pipeline gpu.Pipeline)
}

type Pipeline struct {
	device   Device
	pipeline gpu.Pipeline
}

// New loads the vertex and fragment shaders from the OS file system and
// builds the pipeline. See NewFS.
func New(device Device, vertexPath, fragmentPath string, layout gpu.PipelineLayout, renderPass gpu.RenderPass, cfg Config) (*Pipeline, error) {
	return NewFS(device, nil, vertexPath, fragmentPath, layout, renderPass, cfg)
}

// NewFS builds a pipeline from shaders in fsys. The shader modules only live
// for the duration of the call. A zero layout or render pass is a programming
// error and panics.
func NewFS(device Device, fsys fs.FS, vertexPath, fragmentPath string, layout gpu.PipelineLayout, renderPass gpu.RenderPass, cfg Config) (*Pipeline, error) {
	if layout == 0 {
		panic("pipeline: cannot create graphics pipeline without a pipeline layout")
	}
	if renderPass == 0 {
		panic("pipeline: cannot create graphics pipeline without a render pass")
	}

	vertCode, err := ReadShaderFS(fsys, vertexPath)
	if err != nil {
		return nil, err
	}
	fragCode, err := ReadShaderFS(fsys, fragmentPath)
	if err != nil {
		return nil, err
	}

	vertShader, err := device.CreateShaderModule(vertCode)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create shader module for %s", vertexPath)
	}
	defer device.DestroyShaderModule(vertShader)

	fragShader, err := device.CreateShaderModule(fragCode)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create shader module for %s", fragmentPath)
	}
	defer device.DestroyShaderModule(fragShader)

	pipeline, err := device.CreateGraphicsPipeline(cfg.options(vertShader, fragShader, layout, renderPass))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create graphics pipeline")
	}

	gpu.Logger().Debug("pipeline created", "vertex", vertexPath, "fragment", fragmentPath)
	return &Pipeline{device: device, pipeline: pipeline}, nil
}

func (p *Pipeline) Bind(commandBuffer gpu.CommandBuffer) {
	p.device.CmdBindPipeline(commandBuffer, p.pipeline)
}

func (p *Pipeline) Handle() gpu.Pipeline { return p.pipeline }

func (p *Pipeline) Destroy() {
	if p.pipeline != 0 {
		p.device.DestroyPipeline(p.pipeline)
		p.pipeline = 0
	}
}
