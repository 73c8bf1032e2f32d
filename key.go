package shadercache

// Hardware limits baked into the key shapes. Keys must be plain
// comparable values, so per-slot state lives in fixed arrays.
const (
	// MaxSamplers is the number of sampler slots tracked per stage.
	MaxSamplers = 16

	// MaxLinkedOutputs is the number of upstream output slots a geometry
	// key can carry for stage linkage.
	MaxLinkedOutputs = 16
)

// Stage identifies the shader stage a program was created for.
type Stage uint8

const (
	StageVertex Stage = iota
	StageGeometry
	StageFragment
	StageCompute

	// StageCount is the number of shader stages.
	StageCount = 4
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageGeometry:
		return "geometry"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// Swizzle selects the source channel for one component of a sampler view.
type Swizzle uint8

const (
	SwizzleRed Swizzle = iota
	SwizzleGreen
	SwizzleBlue
	SwizzleAlpha
	SwizzleZero
	SwizzleOne
)

// ViewSwizzle is the per-component channel mapping of one sampler view.
type ViewSwizzle struct {
	R, G, B, A Swizzle
}

// identitySwizzle passes every channel through unchanged. It is the key
// encoding for an unbound sampler slot without shadow sampling.
var identitySwizzle = ViewSwizzle{SwizzleRed, SwizzleGreen, SwizzleBlue, SwizzleAlpha}

// shadowSwizzle broadcasts the comparison result from the red channel and
// forces alpha to one. It is the key encoding for an unbound sampler slot
// when the program declares a shadow comparison on that slot, and must
// stay distinct from both identitySwizzle and any bound view's mapping.
var shadowSwizzle = ViewSwizzle{SwizzleRed, SwizzleRed, SwizzleRed, SwizzleOne}

// SamplerKey captures the sampler-view state that affects code
// generation, shared by every stage's key shape.
type SamplerKey struct {
	// ViewCount is the number of sampler slots the program uses.
	ViewCount uint8

	// Views holds the resolved channel mapping per slot. Slots at or
	// beyond ViewCount stay zero.
	Views [MaxSamplers]ViewSwizzle

	// SaturateS, SaturateT and SaturateR are per-slot bitmasks of texture
	// coordinate axes that the generated code must clamp to [0, 1]
	// because the bound sampler clamps with a non-nearest filter.
	SaturateS uint16
	SaturateT uint16
	SaturateR uint16
}

// Key describes the pipeline-state-derived facts that affect code
// generation for one shader stage. Each stage has its own fixed key
// shape; all instances for a stage share the same field set.
//
// Keys are comparable values: two keys match exactly when they have the
// same dynamic type and every field compares equal, with no tolerance.
// Stage-specific handling is a type switch over [VertexKey],
// [GeometryKey], [FragmentKey] and [ComputeKey].
type Key interface {
	// Stage returns the shader stage the key shape belongs to.
	Stage() Stage

	// variantKey restricts implementations to this package so the key
	// shapes stay a closed set.
	variantKey()
}

// VertexKey is the variant key shape for vertex programs.
type VertexKey struct {
	Samplers SamplerKey

	// RasterizerDiscard is whether rasterization is disabled, which lets
	// the generated code skip the viewport transform.
	RasterizerDiscard bool

	// ClipPlaneCount is the number of user clip planes the kernel must
	// evaluate, derived from the highest enabled clip plane bit.
	ClipPlaneCount uint8
}

func (VertexKey) Stage() Stage { return StageVertex }
func (VertexKey) variantKey()  {}

// GeometryKey is the variant key shape for geometry programs. It carries
// the upstream stage's output layout so the geometry kernel's inputs
// match what the vertex kernel actually produces.
type GeometryKey struct {
	Samplers SamplerKey

	RasterizerDiscard bool

	// InputCount is the number of upstream outputs consumed.
	InputCount uint8

	// Inputs is the upstream output layout, copied from the active vertex
	// kernel at derivation time.
	Inputs [MaxLinkedOutputs]OutputSlot
}

func (GeometryKey) Stage() Stage { return StageGeometry }
func (GeometryKey) variantKey()  {}

// FragmentKey is the variant key shape for fragment programs.
type FragmentKey struct {
	Samplers SamplerKey

	// FlatShade is whether color varyings use flat interpolation. Only
	// set when the program actually has color varyings.
	FlatShade bool

	// FramebufferHeight is needed to invert the Y axis of the position
	// input. Programs that do not read the position carry 1 so that
	// framebuffer resizes do not force recompiles.
	FramebufferHeight uint16

	// ColorBufferCount is the number of bound color attachments.
	ColorBufferCount uint8
}

func (FragmentKey) Stage() Stage { return StageFragment }
func (FragmentKey) variantKey()  {}

// ComputeKey is the variant key shape for compute programs. Compute
// kernels only depend on sampler state.
type ComputeKey struct {
	Samplers SamplerKey
}

func (ComputeKey) Stage() Stage { return StageCompute }
func (ComputeKey) variantKey()  {}
