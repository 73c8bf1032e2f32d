package shadercache

import (
	"container/list"

	"github.com/gogpu/naga/ir"
)

// Per-program eviction water marks. Recency of the variant list already
// encodes recency of use, so bounding kernel memory needs no timestamps:
// once the compiled code crosses the budget, variants are dropped from
// the least recently used end until usage falls to the low mark.
const (
	kernelBudget    = 4096
	kernelBudgetLow = kernelBudget / 2
)

// Program owns the compiled variants of one logical shader. Variants are
// kept in most-recently-used-first order; the active variant is selected
// by key, compiling on demand through the backend compiler.
//
// A Program is confined to one rendering-context goroutine. UseVariant
// is not reentrant: an in-progress call must complete before another is
// issued against the same program.
type Program struct {
	info     *ProgramInfo
	module   *ir.Module
	compiler Compiler
	so       StreamOutputInfo

	variants  *list.List // of *Kernel, front = most recently used
	count     int
	totalSize int

	active *Kernel

	// cache is the Cache the program is registered with, nil when
	// unregistered. cacheElem and inChanged are managed by the Cache.
	cache     *Cache
	cacheElem *list.Element
	inChanged bool
}

// ProgramDesc describes a shader program to create.
type ProgramDesc struct {
	// Module is the program's intermediate representation. It must not
	// be mutated after the program is created.
	Module *ir.Module

	// StreamOutput declares transform-feedback capture, if any.
	StreamOutput StreamOutputInfo

	// Compute memory requirements (compute programs only).
	LocalMemory   uint32
	PrivateMemory uint32
	InputMemory   uint32
}

// NewVertexProgram creates a vertex program and eagerly compiles a
// best-guess variant so first use has a good chance of a cache hit.
// st provides the state consulted by speculative derivation; it may be
// nil when no context state exists yet.
func NewVertexProgram(comp Compiler, desc *ProgramDesc, st *PipelineState) (*Program, error) {
	return newProgram(StageVertex, samplerViewsDirty(StageVertex)|DirtyRasterizer, comp, desc, st)
}

// NewGeometryProgram creates a geometry program. Its variants also
// depend on the upstream vertex kernel's output layout, so the vertex
// shader is part of its non-orthogonal state.
func NewGeometryProgram(comp Compiler, desc *ProgramDesc, st *PipelineState) (*Program, error) {
	return newProgram(StageGeometry,
		samplerViewsDirty(StageGeometry)|DirtyVertexShader|DirtyRasterizer, comp, desc, st)
}

// NewFragmentProgram creates a fragment program.
func NewFragmentProgram(comp Compiler, desc *ProgramDesc, st *PipelineState) (*Program, error) {
	return newProgram(StageFragment,
		samplerViewsDirty(StageFragment)|DirtyRasterizer|DirtyFramebuffer, comp, desc, st)
}

// NewComputeProgram creates a compute program. Compute kernels have no
// non-orthogonal pipeline state; the initial variant is the only one
// unless sampler views change the key explicitly via UseVariant.
func NewComputeProgram(comp Compiler, desc *ProgramDesc, st *PipelineState) (*Program, error) {
	return newProgram(StageCompute, 0, comp, desc, st)
}

func newProgram(stage Stage, nonOrthogonal Dirty, comp Compiler, desc *ProgramDesc, st *PipelineState) (*Program, error) {
	if comp == nil {
		return nil, ErrNilCompiler
	}
	if desc == nil || desc.Module == nil {
		return nil, ErrNilModule
	}

	info := parseProgramInfo(stage, desc.Module)
	info.NonOrthogonal = nonOrthogonal
	info.Compute.LocalMemory = desc.LocalMemory
	info.Compute.PrivateMemory = desc.PrivateMemory
	info.Compute.InputMemory = desc.InputMemory

	p := &Program{
		info:     info,
		module:   desc.Module,
		compiler: comp,
		so:       desc.StreamOutput,
		variants: list.New(),
	}

	if _, err := p.UseVariant(GuessKey(stage, info, st)); err != nil {
		return nil, err
	}

	return p, nil
}

// Stage returns the program's shader stage.
func (p *Program) Stage() Stage { return p.info.Stage }

// Info returns the program-level facts derived from the IR at creation.
func (p *Program) Info() *ProgramInfo { return p.info }

// VariantCount returns the number of compiled variants currently owned.
func (p *Program) VariantCount() int { return p.count }

// TotalSize returns the aggregate machine code size of all owned
// variants, in bytes.
func (p *Program) TotalSize() int { return p.totalSize }

// ActiveKernel returns the currently selected kernel, or nil when none
// has been selected yet.
func (p *Program) ActiveKernel() *Kernel { return p.active }

// KernelOffset returns the active kernel's offset within the
// destination buffer. Valid only after a successful upload that covered
// the active kernel.
func (p *Program) KernelOffset() (uint32, error) {
	if p.active == nil {
		return 0, ErrNoKernel
	}
	return p.active.CacheOffset()
}

// SelectKernel refreshes the active kernel for the given pipeline state.
// When the dirty mask does not intersect the program's non-orthogonal
// state, the current selection is provably still correct and nothing is
// derived or searched. It reports whether the active kernel changed, so
// the caller knows to rebuild dependent hardware state.
func (p *Program) SelectKernel(st *PipelineState, dirty Dirty) (bool, error) {
	if p.info.NonOrthogonal&dirty == 0 {
		return false, nil
	}
	return p.UseVariant(DeriveKey(p.info.Stage, p.info, st))
}

// UseVariant makes the kernel for key the active one. A matching variant
// moves to the front of the MRU order; a miss runs eviction, compiles a
// new kernel and inserts it at the front. Compile failure leaves the
// selection unchanged.
//
// It reports whether the active kernel differs from before the call.
func (p *Program) UseVariant(key Key) (bool, error) {
	if key == nil || key.Stage() != p.info.Stage {
		return false, ErrStageMismatch
	}

	prev := p.active

	if elem := p.search(key); elem != nil {
		p.variants.MoveToFront(elem)
		p.active = elem.Value.(*Kernel)
		return p.active != prev, nil
	}

	p.evict()

	k, err := p.compile(key)
	if err != nil {
		return false, err
	}

	p.variants.PushFront(k)
	p.count++
	p.totalSize += k.Size()

	Logger().Debug("compiled shader variant",
		"stage", p.info.Stage, "size", k.Size(),
		"variants", p.count, "total", p.totalSize)
	if k.Size() >= kernelBudget {
		Logger().Warn("kernel exceeds variant budget, pinned until the next miss",
			"stage", p.info.Stage, "size", k.Size())
	}

	if p.cache != nil {
		p.cache.notifyChange(p)
	}

	p.active = k
	return true, nil
}

// search finds the variant whose key matches exactly. Keys are
// comparable values, so the match is field-for-field equality on the
// same key shape.
func (p *Program) search(key Key) *list.Element {
	for e := p.variants.Front(); e != nil; e = e.Next() {
		if e.Value.(*Kernel).key == key {
			return e
		}
	}
	return nil
}

func (p *Program) compile(key Key) (*Kernel, error) {
	ck, err := p.compiler.Compile(p.info.Stage, p.module, key)
	if err != nil {
		return nil, &CompileError{Stage: p.info.Stage, Key: key, Err: err}
	}
	if ck == nil || len(ck.Code) == 0 {
		return nil, &CompileError{Stage: p.info.Stage, Key: key, Err: ErrEmptyKernel}
	}
	return newKernel(key, ck, &p.so)
}

// evict drops least recently used variants once the compiled code
// reaches the budget, until usage falls to the low mark or the list is
// exhausted. The active kernel can itself be evicted; the current
// selection stays usable until the next successful UseVariant replaces
// it.
func (p *Program) evict() {
	if p.totalSize < kernelBudget {
		return
	}

	for e := p.variants.Back(); e != nil; {
		prev := e.Prev()
		k := e.Value.(*Kernel)
		p.variants.Remove(e)
		p.count--
		p.totalSize -= k.Size()
		Logger().Debug("evicted shader variant",
			"stage", p.info.Stage, "size", k.Size(), "total", p.totalSize)
		if p.totalSize <= kernelBudgetLow {
			break
		}
		e = prev
	}
}

// Destroy releases the program: it detaches from its cache, drops all
// variants and clears the active selection. The program must not be
// used afterwards.
func (p *Program) Destroy() {
	if p.cache != nil {
		p.cache.Remove(p)
	}
	p.variants.Init()
	p.count = 0
	p.totalSize = 0
	p.active = nil
}
