// Package nagac implements the shadercache backend compiler contract on
// top of the naga shader compiler.
//
// Kernels are SPIR-V binaries produced by naga's code generator; layout
// metadata (register lists, position usage, discard usage, barycentric
// modes) is derived from the IR entry point. Generation is deterministic
// for a given (module, key) pair.
package nagac

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/shadercache"
)

// ErrNoEntryPoint is returned when the module has no entry point for the
// requested stage.
var ErrNoEntryPoint = errors.New("nagac: no entry point for stage")

// clipPlaneSize is the push-constant space one user clip plane occupies
// (one vec4 of floats).
const clipPlaneSize = 16

// Compiler generates SPIR-V kernels with naga.
//
// The zero value is not usable; call New.
type Compiler struct {
	opts spirv.Options
}

// New creates a compiler with default SPIR-V generation options.
func New() *Compiler {
	return &Compiler{opts: spirv.DefaultOptions()}
}

// NewWithOptions creates a compiler with explicit SPIR-V options.
func NewWithOptions(opts spirv.Options) *Compiler {
	return &Compiler{opts: opts}
}

// Compile implements shadercache.Compiler.
func (c *Compiler) Compile(stage shadercache.Stage, module *ir.Module, key shadercache.Key) (*shadercache.CompiledKernel, error) {
	ep := findEntry(stage, module)
	if ep == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, stage)
	}

	code, err := naga.GenerateSPIRV(module, c.opts)
	if err != nil {
		return nil, fmt.Errorf("nagac: SPIR-V generation: %w", err)
	}

	ck := &shadercache.CompiledKernel{
		Code: code,
		// r0 carries the dispatch header; the input payload starts after it.
		StartRegister: 1,
	}

	c.deriveLayout(ck, stage, module, &ep.Function)

	if vk, ok := key.(shadercache.VertexKey); ok {
		ck.ClipStateSize = int(vk.ClipPlaneCount) * clipPlaneSize
	}

	return ck, nil
}

// deriveLayout fills the register lists and per-stage scalars from the
// entry point's signature and body.
func (c *Compiler) deriveLayout(ck *shadercache.CompiledKernel, stage shadercache.Stage, m *ir.Module, fn *ir.Function) {
	var inputs registerBuilder
	for i := range fn.Arguments {
		arg := &fn.Arguments[i]
		if arg.Binding != nil {
			inputs.add(arg.Name, *arg.Binding)
			continue
		}
		for _, member := range members(m, arg.Type) {
			if member.Binding != nil {
				inputs.add(member.Name, *member.Binding)
			}
		}
	}
	ck.Inputs = inputs.regs
	ck.InputHasPosition = inputs.hasPosition

	var outputs registerBuilder
	if fn.Result != nil {
		if fn.Result.Binding != nil {
			outputs.add(fn.Name, *fn.Result.Binding)
		} else {
			for _, member := range members(m, fn.Result.Type) {
				if member.Binding != nil {
					outputs.add(member.Name, *member.Binding)
				}
			}
		}
	}
	ck.Outputs = outputs.regs
	ck.OutputHasPosition = outputs.hasPosition

	ck.UsesKill = blockKills(fn.Body)

	if stage == shadercache.StageFragment {
		ck.BarycentricModes = barycentricModes(fn, m)
	}
}

// registerBuilder accumulates a register list, assigning declared
// register indices in declaration order and per-semantic indices by
// occurrence.
type registerBuilder struct {
	regs        []shadercache.Register
	hasPosition bool
	nextIndex   int
	counts      [5]uint8 // per-Semantic occurrence counters
}

func (b *registerBuilder) add(name string, binding ir.Binding) {
	var sem shadercache.Semantic

	switch bb := binding.(type) {
	case ir.BuiltinBinding:
		if bb.Builtin != ir.BuiltinPosition {
			// Other builtins (vertex index, instance index, ...) are
			// delivered out of band, not as payload registers.
			return
		}
		b.hasPosition = true
		sem = shadercache.SemanticPosition
	case ir.LocationBinding:
		sem = classify(name)
	default:
		return
	}

	b.regs = append(b.regs, shadercache.Register{
		Semantic:      sem,
		SemanticIndex: b.counts[sem],
		Index:         b.nextIndex,
	})
	b.counts[sem]++
	b.nextIndex++
}

// classify maps a declaration name to a register semantic. Drivers have
// no semantic decorations in WGSL-derived IR, so well-known names carry
// the roles the fixed-function hardware cares about.
func classify(name string) shadercache.Semantic {
	switch name {
	case "edge_flag", "edgeflag":
		return shadercache.SemanticEdgeFlag
	case "psize", "point_size", "pointsize":
		return shadercache.SemanticPointSize
	}
	if strings.Contains(name, "color") || strings.Contains(name, "colour") {
		return shadercache.SemanticColor
	}
	return shadercache.SemanticGeneric
}

// barycentricModes collects the interpolation modes the fragment inputs
// require.
func barycentricModes(fn *ir.Function, m *ir.Module) uint32 {
	var modes uint32

	note := func(interp *ir.Interpolation) {
		kind := ir.InterpolationPerspective
		sampling := ir.SamplingCenter
		if interp != nil {
			kind = interp.Kind
			sampling = interp.Sampling
		}
		switch kind {
		case ir.InterpolationFlat:
			return
		case ir.InterpolationLinear:
			switch sampling {
			case ir.SamplingCentroid:
				modes |= shadercache.BarycentricNonPerspectiveCentroid
			case ir.SamplingSample:
				modes |= shadercache.BarycentricNonPerspectiveSample
			default:
				modes |= shadercache.BarycentricNonPerspectivePixel
			}
		default:
			switch sampling {
			case ir.SamplingCentroid:
				modes |= shadercache.BarycentricPerspectiveCentroid
			case ir.SamplingSample:
				modes |= shadercache.BarycentricPerspectiveSample
			default:
				modes |= shadercache.BarycentricPerspectivePixel
			}
		}
	}

	for i := range fn.Arguments {
		arg := &fn.Arguments[i]
		if arg.Binding != nil {
			if lb, ok := (*arg.Binding).(ir.LocationBinding); ok {
				note(lb.Interpolation)
			}
			continue
		}
		for _, member := range members(m, arg.Type) {
			if member.Binding == nil {
				continue
			}
			if lb, ok := (*member.Binding).(ir.LocationBinding); ok {
				note(lb.Interpolation)
			}
		}
	}

	return modes
}

// blockKills reports whether a block contains a kill (discard)
// statement, descending into nested control flow.
func blockKills(b ir.Block) bool {
	for _, stmt := range b {
		switch s := stmt.Kind.(type) {
		case ir.StmtKill:
			return true
		case ir.StmtBlock:
			if blockKills(s.Block) {
				return true
			}
		case ir.StmtIf:
			if blockKills(s.Accept) || blockKills(s.Reject) {
				return true
			}
		case ir.StmtSwitch:
			for _, cs := range s.Cases {
				if blockKills(cs.Body) {
					return true
				}
			}
		case ir.StmtLoop:
			if blockKills(s.Body) || blockKills(s.Continuing) {
				return true
			}
		}
	}
	return false
}

func members(m *ir.Module, t ir.TypeHandle) []ir.StructMember {
	if int(t) >= len(m.Types) {
		return nil
	}
	if s, ok := m.Types[t].Inner.(ir.StructType); ok {
		return s.Members
	}
	return nil
}

// findEntry locates the entry point for a stage. naga IR has no geometry
// stage, so geometry programs resolve to their only entry point.
func findEntry(stage shadercache.Stage, m *ir.Module) *ir.EntryPoint {
	if m == nil {
		return nil
	}
	var want ir.ShaderStage
	switch stage {
	case shadercache.StageVertex:
		want = ir.StageVertex
	case shadercache.StageFragment:
		want = ir.StageFragment
	case shadercache.StageCompute:
		want = ir.StageCompute
	default:
		if len(m.EntryPoints) > 0 {
			return &m.EntryPoints[0]
		}
		return nil
	}
	for i := range m.EntryPoints {
		if m.EntryPoints[i].Stage == want {
			return &m.EntryPoints[i]
		}
	}
	return nil
}
