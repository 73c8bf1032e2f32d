package shadercache

import (
	"math/bits"

	"github.com/gogpu/gputypes"
)

// DeriveKey derives the exact variant key for a stage from the live
// pipeline state. It is a pure function of (stage, program facts,
// pipeline state) and is called right before selecting or compiling a
// kernel for an actual draw.
func DeriveKey(stage Stage, info *ProgramInfo, st *PipelineState) Key {
	switch stage {
	case StageVertex:
		return VertexKey{
			Samplers:          deriveSamplerKey(stage, info, st),
			RasterizerDiscard: st.Rasterizer.Discard,
			ClipPlaneCount:    uint8(bits.Len32(st.Rasterizer.ClipPlanes)),
		}

	case StageGeometry:
		k := GeometryKey{
			Samplers:          deriveSamplerKey(stage, info, st),
			RasterizerDiscard: st.Rasterizer.Discard,
		}
		n := len(st.VertexOutputs)
		if n > MaxLinkedOutputs {
			n = MaxLinkedOutputs
		}
		k.InputCount = uint8(n)
		copy(k.Inputs[:], st.VertexOutputs[:n])
		return k

	case StageFragment:
		height := uint16(1)
		if info.HasPosition {
			height = st.Framebuffer.Height
		}
		return FragmentKey{
			Samplers:          deriveSamplerKey(stage, info, st),
			FlatShade:         info.HasColorVaryings && st.Rasterizer.FlatShade,
			FramebufferHeight: height,
			ColorBufferCount:  st.Framebuffer.ColorBufferCount,
		}

	default:
		return ComputeKey{
			Samplers: deriveSamplerKey(stage, info, st),
		}
	}
}

// GuessKey derives a plausible variant key before the full pipeline
// state is known, so a program's first kernel can be compiled eagerly at
// creation time with a decent chance of a cache hit on first use. Only
// facts available from the program itself are consulted: no flat
// shading, exactly one color buffer, no bound views, no coordinate
// saturation. st may be nil; it is only read for the framebuffer height
// of position-reading fragment programs.
func GuessKey(stage Stage, info *ProgramInfo, st *PipelineState) Key {
	switch stage {
	case StageVertex:
		return VertexKey{Samplers: guessSamplerKey(info)}

	case StageGeometry:
		return GeometryKey{Samplers: guessSamplerKey(info)}

	case StageFragment:
		height := uint16(1)
		if info.HasPosition && st != nil {
			height = st.Framebuffer.Height
		}
		return FragmentKey{
			Samplers:          guessSamplerKey(info),
			FlatShade:         false,
			FramebufferHeight: height,
			ColorBufferCount:  1,
		}

	default:
		return ComputeKey{Samplers: guessSamplerKey(info)}
	}
}

// deriveSamplerKey resolves the channel mapping and coordinate
// saturation for every sampler slot the program uses.
//
// An unbound slot falls back to the identity mapping, unless the program
// declares a shadow comparison on it: shadow fallback broadcasts red and
// forces alpha to one, which must stay distinct from both defaults.
func deriveSamplerKey(stage Stage, info *ProgramInfo, st *PipelineState) SamplerKey {
	var k SamplerKey
	k.ViewCount = info.SamplerCount

	views := st.Views[stage]
	samplers := st.Samplers[stage]

	for i := 0; i < int(info.SamplerCount); i++ {
		var view *SamplerView
		if i < len(views) {
			view = views[i]
		}

		switch {
		case view != nil:
			k.Views[i] = view.Swizzle
		case info.ShadowSamplers&(1<<i) != 0:
			k.Views[i] = shadowSwizzle
		default:
			k.Views[i] = identitySwizzle
		}

		// Clamping with a non-nearest filter resolves to a border-clamp
		// addressing mode in hardware, so the kernel must saturate the
		// coordinates itself.
		if i < len(samplers) && samplers[i] != nil {
			s := samplers[i]
			if saturates(s, s.AddressU) {
				k.SaturateS |= 1 << i
			}
			if saturates(s, s.AddressV) {
				k.SaturateT |= 1 << i
			}
			if saturates(s, s.AddressW) {
				k.SaturateR |= 1 << i
			}
		}
	}

	return k
}

// guessSamplerKey is the speculative counterpart of deriveSamplerKey:
// nothing is bound yet, so every slot takes its fallback mapping.
func guessSamplerKey(info *ProgramInfo) SamplerKey {
	var k SamplerKey
	k.ViewCount = info.SamplerCount

	for i := 0; i < int(info.SamplerCount); i++ {
		if info.ShadowSamplers&(1<<i) != 0 {
			k.Views[i] = shadowSwizzle
		} else {
			k.Views[i] = identitySwizzle
		}
	}

	return k
}

// saturates reports whether one coordinate axis needs manual saturation
// for the given sampler.
func saturates(s *Sampler, mode gputypes.AddressMode) bool {
	if mode != gputypes.AddressModeClampToEdge {
		return false
	}
	return s.MinFilter != gputypes.FilterModeNearest ||
		s.MagFilter != gputypes.FilterModeNearest
}
