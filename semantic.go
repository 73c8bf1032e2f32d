package shadercache

// Semantic names the role of a shader input or output register.
type Semantic uint8

const (
	SemanticGeneric Semantic = iota
	SemanticPosition
	SemanticColor
	SemanticPointSize
	SemanticEdgeFlag
)

// String returns the semantic name.
func (s Semantic) String() string {
	switch s {
	case SemanticGeneric:
		return "generic"
	case SemanticPosition:
		return "position"
	case SemanticColor:
		return "color"
	case SemanticPointSize:
		return "psize"
	case SemanticEdgeFlag:
		return "edgeflag"
	default:
		return "unknown"
	}
}

// OutputSlot identifies one entry of a stage's output layout by role.
// It is the unit of stage linkage: a geometry key embeds the upstream
// stage's slots so the downstream kernel's inputs line up.
type OutputSlot struct {
	Semantic Semantic
	Index    uint8
}

// Register describes one input or output register of a compiled kernel.
type Register struct {
	Semantic      Semantic
	SemanticIndex uint8

	// Index is the program-declared register this entry was compiled
	// from. The compiler may reorder or drop declared registers, so a
	// register's position in the kernel's input/output list generally
	// differs from Index.
	Index int
}

// Slot returns the register's linkage slot.
func (r Register) Slot() OutputSlot {
	return OutputSlot{Semantic: r.Semantic, Index: r.SemanticIndex}
}

// MaxStreamOutputBuffers is the number of transform-feedback buffers a
// stream-output declaration can target.
const MaxStreamOutputBuffers = 4

// StreamOutputEntry declares one output register captured into a
// transform-feedback buffer.
type StreamOutputEntry struct {
	// Register is the program-declared output register index. When the
	// declaration is bound to a compiled kernel the entry is remapped to
	// an index into the kernel's output list.
	Register int

	// StartComponent is the first captured component (0 = X).
	StartComponent uint8

	// ComponentCount is the number of captured components.
	ComponentCount uint8

	// Buffer is the target transform-feedback buffer.
	Buffer uint8

	// DstOffset is the capture offset within the buffer, in units of
	// 32-bit words.
	DstOffset uint16
}

// StreamOutputInfo declares how a program's outputs are captured into
// transform-feedback buffers. The zero value declares no capture.
type StreamOutputInfo struct {
	Entries []StreamOutputEntry

	// Strides are the per-buffer vertex strides in 32-bit words.
	Strides [MaxStreamOutputBuffers]uint16
}
