package resource

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

type DescriptorDevice interface {
	CreateDescriptorSetLayout(bindings []core1_0.DescriptorSetLayoutBinding) (gpu.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayout)
	CreateDescriptorPool(maxSets int, sizes []core1_0.DescriptorPoolSize, flags core1_0.DescriptorPoolCreateFlags) (gpu.DescriptorPool, error)
	DestroyDescriptorPool(pool gpu.DescriptorPool)
	AllocateDescriptorSets(pool gpu.DescriptorPool, layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error)
	FreeDescriptorSets(pool gpu.DescriptorPool, sets []gpu.DescriptorSet) error
	ResetDescriptorPool(pool gpu.DescriptorPool) error
	UpdateDescriptorSets(writes []gpu.DescriptorWrite) error
}

// DescriptorSetLayout

type DescriptorSetLayoutBuilder struct {
	device   DescriptorDevice
	bindings map[int]core1_0.DescriptorSetLayoutBinding
}

func NewDescriptorSetLayoutBuilder(device DescriptorDevice) *DescriptorSetLayoutBuilder {
	return &DescriptorSetLayoutBuilder{
		device:   device,
		bindings: map[int]core1_0.DescriptorSetLayoutBinding{},
	}
}

// AddBinding registers a binding slot. Registering the same slot twice
// panics.
func (b *DescriptorSetLayoutBuilder) AddBinding(binding int, descriptorType core1_0.DescriptorType, stages core1_0.ShaderStageFlags, count int) *DescriptorSetLayoutBuilder {
	if _, exists := b.bindings[binding]; exists {
		panic(fmt.Sprintf("resource: descriptor binding %d already in use", binding))
	}
	b.bindings[binding] = core1_0.DescriptorSetLayoutBinding{
		Binding:         binding,
		DescriptorType:  descriptorType,
		DescriptorCount: count,
		StageFlags:      stages,
	}
	return b
}

func (b *DescriptorSetLayoutBuilder) Build() (*DescriptorSetLayout, error) {
	if len(b.bindings) == 0 {
		panic("resource: descriptor set layout has no bindings")
	}

	bindings := make(map[int]core1_0.DescriptorSetLayoutBinding, len(b.bindings))
	ordered := make([]core1_0.DescriptorSetLayoutBinding, 0, len(b.bindings))
	for slot, binding := range b.bindings {
		bindings[slot] = binding
		ordered = append(ordered, binding)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Binding < ordered[j].Binding })

	layout, err := b.device.CreateDescriptorSetLayout(ordered)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create descriptor set layout")
	}
	return &DescriptorSetLayout{device: b.device, layout: layout, bindings: bindings}, nil
}

type DescriptorSetLayout struct {
	device   DescriptorDevice
	layout   gpu.DescriptorSetLayout
	bindings map[int]core1_0.DescriptorSetLayoutBinding
}

func (l *DescriptorSetLayout) Handle() gpu.DescriptorSetLayout { return l.layout }

func (l *DescriptorSetLayout) Binding(binding int) (core1_0.DescriptorSetLayoutBinding, bool) {
	b, ok := l.bindings[binding]
	return b, ok
}

func (l *DescriptorSetLayout) Destroy() {
	if l.layout != 0 {
		l.device.DestroyDescriptorSetLayout(l.layout)
		l.layout = 0
	}
}

// DescriptorPool

type DescriptorPoolBuilder struct {
	device  DescriptorDevice
	sizes   []core1_0.DescriptorPoolSize
	maxSets int
	flags   core1_0.DescriptorPoolCreateFlags
}

func NewDescriptorPoolBuilder(device DescriptorDevice) *DescriptorPoolBuilder {
	return &DescriptorPoolBuilder{device: device, maxSets: 1000}
}

func (b *DescriptorPoolBuilder) AddPoolSize(descriptorType core1_0.DescriptorType, count int) *DescriptorPoolBuilder {
	b.sizes = append(b.sizes, core1_0.DescriptorPoolSize{Type: descriptorType, DescriptorCount: count})
	return b
}

func (b *DescriptorPoolBuilder) SetPoolFlags(flags core1_0.DescriptorPoolCreateFlags) *DescriptorPoolBuilder {
	b.flags = flags
	return b
}

func (b *DescriptorPoolBuilder) SetMaxSets(count int) *DescriptorPoolBuilder {
	b.maxSets = count
	return b
}

func (b *DescriptorPoolBuilder) Build() (*DescriptorPool, error) {
	if len(b.sizes) == 0 {
		return nil, errors.New("descriptor pool needs at least one pool size")
	}

	sizes := append([]core1_0.DescriptorPoolSize(nil), b.sizes...)
	pool, err := b.device.CreateDescriptorPool(b.maxSets, sizes, b.flags)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create descriptor pool for %d sets", b.maxSets)
	}
	return &DescriptorPool{device: b.device, pool: pool}, nil
}

type DescriptorPool struct {
	device DescriptorDevice
	pool   gpu.DescriptorPool
}

func (p *DescriptorPool) Handle() gpu.DescriptorPool { return p.pool }

func (p *DescriptorPool) AllocateDescriptor(layout *DescriptorSetLayout) (gpu.DescriptorSet, error) {
	sets, err := p.device.AllocateDescriptorSets(p.pool, []gpu.DescriptorSetLayout{layout.Handle()})
	if err != nil {
		return 0, errors.Wrap(err, "failed to allocate descriptor set")
	}
	return sets[0], nil
}

// FreeDescriptors returns sets to the pool. The pool must have been built
// with the free-descriptor-set flag.
func (p *DescriptorPool) FreeDescriptors(sets ...gpu.DescriptorSet) error {
	if len(sets) == 0 {
		return nil
	}
	return errors.Wrap(p.device.FreeDescriptorSets(p.pool, sets), "failed to free descriptor sets")
}

func (p *DescriptorPool) ResetPool() error {
	return errors.Wrap(p.device.ResetDescriptorPool(p.pool), "failed to reset descriptor pool")
}

func (p *DescriptorPool) Destroy() {
	if p.pool != 0 {
		p.device.DestroyDescriptorPool(p.pool)
		p.pool = 0
	}
}

// DescriptorWriter

// DescriptorWriter collects writes against one layout and applies them to a
// set freshly allocated from pool, or to an existing set.
type DescriptorWriter struct {
	layout *DescriptorSetLayout
	pool   *DescriptorPool
	writes []gpu.DescriptorWrite
}

func NewDescriptorWriter(layout *DescriptorSetLayout, pool *DescriptorPool) *DescriptorWriter {
	return &DescriptorWriter{layout: layout, pool: pool}
}

func (w *DescriptorWriter) singleBinding(binding int) core1_0.DescriptorSetLayoutBinding {
	description, ok := w.layout.Binding(binding)
	if !ok {
		panic(fmt.Sprintf("resource: layout does not contain descriptor binding %d", binding))
	}
	if description.DescriptorCount != 1 {
		panic(fmt.Sprintf("resource: descriptor binding %d expects %d descriptors, writer only supports single descriptors", binding, description.DescriptorCount))
	}
	return description
}

func (w *DescriptorWriter) WriteBuffer(binding int, info gpu.BufferInfo) *DescriptorWriter {
	description := w.singleBinding(binding)
	w.writes = append(w.writes, gpu.DescriptorWrite{
		Binding: binding,
		Type:    description.DescriptorType,
		Buffer:  &info,
	})
	return w
}

func (w *DescriptorWriter) WriteImage(binding int, info gpu.ImageInfo) *DescriptorWriter {
	description := w.singleBinding(binding)
	w.writes = append(w.writes, gpu.DescriptorWrite{
		Binding: binding,
		Type:    description.DescriptorType,
		Image:   &info,
	})
	return w
}

// Build allocates a set from the pool and applies the collected writes to it.
func (w *DescriptorWriter) Build() (gpu.DescriptorSet, error) {
	set, err := w.pool.AllocateDescriptor(w.layout)
	if err != nil {
		return 0, err
	}

	err = w.Overwrite(set)
	if err != nil {
		return 0, err
	}
	return set, nil
}

func (w *DescriptorWriter) Overwrite(set gpu.DescriptorSet) error {
	writes := make([]gpu.DescriptorWrite, len(w.writes))
	for i, write := range w.writes {
		write.Set = set
		writes[i] = write
	}

	err := w.layout.device.UpdateDescriptorSets(writes)
	if err != nil {
		return errors.Wrap(err, "failed to update descriptor set")
	}
	return nil
}
