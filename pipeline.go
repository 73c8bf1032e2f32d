package shadercache

import "github.com/gogpu/gputypes"

// Dirty is a bitmask of pipeline-state categories. A program declares
// which categories are non-orthogonal to its code generation; kernel
// selection only rederives the variant key when the caller's dirty mask
// intersects that declaration.
type Dirty uint32

const (
	DirtyVertexSamplerViews Dirty = 1 << iota
	DirtyGeometrySamplerViews
	DirtyFragmentSamplerViews
	DirtyComputeSamplerViews
	DirtyVertexShader
	DirtyRasterizer
	DirtyFramebuffer
)

// samplerViewsDirty returns the sampler-view dirty bit for a stage.
func samplerViewsDirty(stage Stage) Dirty {
	switch stage {
	case StageVertex:
		return DirtyVertexSamplerViews
	case StageGeometry:
		return DirtyGeometrySamplerViews
	case StageFragment:
		return DirtyFragmentSamplerViews
	case StageCompute:
		return DirtyComputeSamplerViews
	default:
		return 0
	}
}

// RasterizerState is the rasterizer slice of the pipeline snapshot.
type RasterizerState struct {
	// Discard disables rasterization entirely.
	Discard bool

	// FlatShade selects flat interpolation for color varyings.
	FlatShade bool

	// ClipPlanes is a bitmask of enabled user clip planes.
	ClipPlanes uint32
}

// SamplerView is one bound sampler view: the texture format and the
// view's own channel mapping.
type SamplerView struct {
	Format  gputypes.TextureFormat
	Swizzle ViewSwizzle
}

// Sampler is one bound sampler's filtering and addressing state.
type Sampler struct {
	AddressU gputypes.AddressMode
	AddressV gputypes.AddressMode
	AddressW gputypes.AddressMode

	MinFilter gputypes.FilterMode
	MagFilter gputypes.FilterMode

	// Compare enables shadow comparison sampling when non-zero.
	Compare gputypes.CompareFunction
}

// Framebuffer is the framebuffer slice of the pipeline snapshot.
type Framebuffer struct {
	Width  uint16
	Height uint16

	// ColorBufferCount is the number of bound color attachments.
	ColorBufferCount uint8
}

// PipelineState is a read-only snapshot of the context state consulted
// during precise key derivation. It is owned by the caller; this package
// never mutates or retains it.
//
// Views and Samplers are indexed by stage, then by slot. A nil slot
// means nothing is bound there.
type PipelineState struct {
	Rasterizer  RasterizerState
	Framebuffer Framebuffer

	Views    [StageCount][]*SamplerView
	Samplers [StageCount][]*Sampler

	// VertexOutputs is the output layout of the active vertex kernel,
	// consumed by geometry key derivation for stage linkage. The context
	// layer refreshes it whenever the vertex program's kernel changes.
	VertexOutputs []OutputSlot
}
