package shadercache

import "github.com/gogpu/naga/ir"

// ComputeRequirements are the execution resources a compute program
// declares: its workgroup size from the IR entry point plus the memory
// requirements passed in at creation.
type ComputeRequirements struct {
	Workgroup [3]uint32

	// LocalMemory is the required workgroup-local memory in bytes.
	LocalMemory uint32

	// PrivateMemory is the required per-invocation private memory in bytes.
	PrivateMemory uint32

	// InputMemory is the required kernel input memory in bytes.
	InputMemory uint32
}

// ProgramInfo holds the program-level facts derived once from a
// program's IR at creation time. It is immutable afterwards; precise and
// speculative key derivation both read it.
type ProgramInfo struct {
	Stage Stage

	// SamplerCount is the number of sampler slots the program uses
	// (highest bound slot plus one).
	SamplerCount uint8

	// ShadowSamplers is a bitmask of slots sampled with a shadow
	// comparison.
	ShadowSamplers uint16

	// HasPosition is whether a fragment program reads the builtin
	// position. Programs that do not are insulated from framebuffer
	// resizes.
	HasPosition bool

	// HasColorVaryings is whether the program has inputs with default
	// interpolation, which follow the rasterizer's shade model.
	HasColorVaryings bool

	HasInstanceID bool
	HasVertexID   bool

	// EdgeFlagOutput and EdgeFlagInput describe an edge-flag passthrough
	// in a vertex program: the output register that carries the edge flag
	// and the input register it is copied from. Both are -1 when the
	// program has none.
	EdgeFlagOutput int
	EdgeFlagInput  int

	Compute ComputeRequirements

	// NonOrthogonal is the set of pipeline-state categories that can
	// affect variant selection for this program, fixed per stage at
	// creation.
	NonOrthogonal Dirty
}

// parseProgramInfo walks the IR module once and records every fact the
// resolution policy and kernel parameter queries need.
func parseProgramInfo(stage Stage, m *ir.Module) *ProgramInfo {
	info := &ProgramInfo{
		Stage:          stage,
		EdgeFlagOutput: -1,
		EdgeFlagInput:  -1,
	}

	info.parseGlobals(m)

	ep := entryPoint(stage, m)
	if ep == nil {
		return info
	}
	info.Compute.Workgroup = ep.Workgroup

	fn := &ep.Function

	info.parseInputs(m, fn)
	if stage == StageVertex {
		info.parseEdgeFlag(m, fn)
	}

	return info
}

// parseGlobals scans module-scope variables for sampler and texture
// bindings. Depth-class textures pair with the comparison sampler at the
// same binding index, so both mark the slot as a shadow sampler.
func (info *ProgramInfo) parseGlobals(m *ir.Module) {
	for i := range m.GlobalVariables {
		g := &m.GlobalVariables[i]
		if g.Binding == nil || int(g.Type) >= len(m.Types) {
			continue
		}
		slot := g.Binding.Binding
		if slot >= MaxSamplers {
			continue
		}

		switch t := m.Types[g.Type].Inner.(type) {
		case ir.SamplerType:
			info.growSamplers(slot)
			if t.Comparison {
				info.ShadowSamplers |= 1 << slot
			}
		case ir.ImageType:
			if t.Class == ir.ImageClassDepth {
				info.growSamplers(slot)
				info.ShadowSamplers |= 1 << slot
			}
		}
	}
}

func (info *ProgramInfo) growSamplers(slot uint32) {
	if uint8(slot)+1 > info.SamplerCount {
		info.SamplerCount = uint8(slot) + 1
	}
}

// parseInputs records builtin and interpolation facts from the entry
// point's arguments, descending into struct-typed arguments.
func (info *ProgramInfo) parseInputs(m *ir.Module, fn *ir.Function) {
	for i := range fn.Arguments {
		arg := &fn.Arguments[i]
		if arg.Binding != nil {
			info.noteInput(*arg.Binding)
			continue
		}
		for _, member := range structMembers(m, arg.Type) {
			if member.Binding != nil {
				info.noteInput(*member.Binding)
			}
		}
	}
}

func (info *ProgramInfo) noteInput(b ir.Binding) {
	switch b := b.(type) {
	case ir.BuiltinBinding:
		switch b.Builtin {
		case ir.BuiltinPosition:
			info.HasPosition = true
		case ir.BuiltinInstanceIndex:
			info.HasInstanceID = true
		case ir.BuiltinVertexIndex:
			info.HasVertexID = true
		}
	case ir.LocationBinding:
		// Inputs without an explicit interpolation attribute follow the
		// rasterizer's shade model.
		if b.Interpolation == nil {
			info.HasColorVaryings = true
		}
	}
}

// parseEdgeFlag looks for an edge-flag passthrough: state trackers emit
// the edge flag as a vertex output named "edge_flag" copied from a
// same-named input. The recorded indices are positions within the
// location-bound outputs and inputs.
func (info *ProgramInfo) parseEdgeFlag(m *ir.Module, fn *ir.Function) {
	if fn.Result == nil {
		return
	}
	reg := 0
	for _, member := range structMembers(m, fn.Result.Type) {
		if member.Binding == nil {
			continue
		}
		if _, ok := (*member.Binding).(ir.LocationBinding); !ok {
			continue
		}
		if isEdgeFlagName(member.Name) {
			info.EdgeFlagOutput = reg
		}
		reg++
	}
	if info.EdgeFlagOutput < 0 {
		return
	}

	reg = 0
	for i := range fn.Arguments {
		arg := &fn.Arguments[i]
		if arg.Binding != nil {
			if _, ok := (*arg.Binding).(ir.LocationBinding); ok {
				if isEdgeFlagName(arg.Name) {
					info.EdgeFlagInput = reg
				}
				reg++
			}
			continue
		}
		for _, member := range structMembers(m, arg.Type) {
			if member.Binding == nil {
				continue
			}
			if _, ok := (*member.Binding).(ir.LocationBinding); !ok {
				continue
			}
			if isEdgeFlagName(member.Name) {
				info.EdgeFlagInput = reg
			}
			reg++
		}
	}
}

func isEdgeFlagName(name string) bool {
	return name == "edge_flag" || name == "edgeflag"
}

// structMembers returns the members of a struct type handle, or nil for
// non-struct types.
func structMembers(m *ir.Module, t ir.TypeHandle) []ir.StructMember {
	if int(t) >= len(m.Types) {
		return nil
	}
	if s, ok := m.Types[t].Inner.(ir.StructType); ok {
		return s.Members
	}
	return nil
}

// entryPoint finds the module entry point for a stage. naga IR has no
// geometry stage, so a geometry program is expected to carry a single
// entry point and gets it regardless of its declared stage.
func entryPoint(stage Stage, m *ir.Module) *ir.EntryPoint {
	if want, ok := nagaStage(stage); ok {
		for i := range m.EntryPoints {
			if m.EntryPoints[i].Stage == want {
				return &m.EntryPoints[i]
			}
		}
		return nil
	}
	if len(m.EntryPoints) > 0 {
		return &m.EntryPoints[0]
	}
	return nil
}

func nagaStage(stage Stage) (ir.ShaderStage, bool) {
	switch stage {
	case StageVertex:
		return ir.StageVertex, true
	case StageFragment:
		return ir.StageFragment, true
	case StageCompute:
		return ir.StageCompute, true
	default:
		return 0, false
	}
}
