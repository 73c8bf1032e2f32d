package shadercache

import "github.com/gogpu/naga/ir"

// Compiler is the backend code generator. It turns a program's IR into
// a hardware kernel specialized for one variant key.
//
// Implementations must be deterministic: the same (module, key) pair
// always produces the same kernel. A failure to compile is fatal to the
// operation that requested it; this package never retries or falls back
// to another variant.
type Compiler interface {
	Compile(stage Stage, module *ir.Module, key Key) (*CompiledKernel, error)
}

// CompiledKernel is the backend compiler's output for one variant: the
// machine code plus the layout metadata the command-stream layer needs
// to program the fixed-function units around the kernel.
type CompiledKernel struct {
	// Code is the opaque hardware machine code.
	Code []byte

	// Inputs and Outputs describe the kernel's register layout in the
	// order the hardware delivers and produces them. The compiler may
	// reorder or drop declared registers; each entry records the
	// program-declared register it was compiled from.
	Inputs  []Register
	Outputs []Register

	// StartRegister is the first hardware register the input payload is
	// delivered in.
	StartRegister int

	// InputHasPosition and OutputHasPosition report whether the kernel
	// reads or writes the position (fragment Z handling).
	InputHasPosition  bool
	OutputHasPosition bool

	// UsesKill is whether the kernel contains a discard instruction
	// (fragment).
	UsesKill bool

	// BarycentricModes is a bitmask of the barycentric interpolation
	// modes the kernel needs (fragment).
	BarycentricModes uint32

	// DiscardAdjacency is whether the kernel ignores adjacency vertices
	// of its input primitives (geometry).
	DiscardAdjacency bool

	// ClipStateSize is the push-constant space reserved for user clip
	// planes, in bytes (vertex).
	ClipStateSize int
}

// Barycentric interpolation modes a fragment kernel can request, as bits
// of CompiledKernel.BarycentricModes.
const (
	BarycentricPerspectivePixel uint32 = 1 << iota
	BarycentricPerspectiveCentroid
	BarycentricPerspectiveSample
	BarycentricNonPerspectivePixel
	BarycentricNonPerspectiveCentroid
	BarycentricNonPerspectiveSample
)
