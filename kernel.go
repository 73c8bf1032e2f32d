package shadercache

import "fmt"

// Kernel is one compiled shader variant, owned exclusively by its
// Program. It pairs the variant key with the compiled machine code and
// tracks whether (and where) the code currently lives in the destination
// buffer.
type Kernel struct {
	key Key
	ck  *CompiledKernel

	uploaded bool
	offset   uint32

	// so is the program's stream-output declaration remapped to this
	// kernel's actual output list. Nil when the program declares none.
	so       []StreamOutputEntry
	soStride [MaxStreamOutputBuffers]uint16
}

// newKernel wraps a compiler result and binds the program's
// stream-output declaration to the kernel's output layout.
func newKernel(key Key, ck *CompiledKernel, so *StreamOutputInfo) (*Kernel, error) {
	k := &Kernel{key: key, ck: ck}
	if so != nil && len(so.Entries) > 0 {
		entries, err := bindStreamOutputs(ck, so)
		if err != nil {
			return nil, err
		}
		k.so = entries
		k.soStride = so.Strides
	}
	return k, nil
}

// bindStreamOutputs remaps every declared entry's register index from
// "program-declared register" to "position in this kernel's output
// list". An entry naming a register the kernel does not produce, or a
// point-size entry with the wrong declared shape, is a contract
// violation between the state tracker and the backend.
func bindStreamOutputs(ck *CompiledKernel, so *StreamOutputInfo) ([]StreamOutputEntry, error) {
	entries := make([]StreamOutputEntry, len(so.Entries))

	for i, e := range so.Entries {
		attr := -1
		for j := range ck.Outputs {
			if ck.Outputs[j].Index == e.Register {
				attr = j
				break
			}
		}
		if attr < 0 {
			return nil, &StreamOutputError{
				Entry:  i,
				Reason: fmt.Sprintf("output register %d not produced by kernel", e.Register),
			}
		}
		e.Register = attr

		// Hardware always places the point size in the W channel.
		if ck.Outputs[attr].Semantic == SemanticPointSize {
			if e.StartComponent != 0 || e.ComponentCount != 1 {
				return nil, &StreamOutputError{
					Entry: i,
					Reason: fmt.Sprintf("point size must be one component starting at 0, got %d at %d",
						e.ComponentCount, e.StartComponent),
				}
			}
			e.StartComponent = 3
		}

		entries[i] = e
	}

	return entries, nil
}

// Key returns the variant key the kernel was compiled for.
func (k *Kernel) Key() Key { return k.key }

// Code returns the kernel's machine code. Callers must not modify it.
func (k *Kernel) Code() []byte { return k.ck.Code }

// Size returns the machine code length in bytes.
func (k *Kernel) Size() int { return len(k.ck.Code) }

// Uploaded reports whether the kernel's code is current in the
// destination buffer.
func (k *Kernel) Uploaded() bool { return k.uploaded }

// CacheOffset returns the kernel's byte offset within the destination
// buffer. It is only valid after an upload that covered this kernel;
// otherwise ErrNotUploaded is returned.
func (k *Kernel) CacheOffset() (uint32, error) {
	if !k.uploaded {
		return 0, ErrNotUploaded
	}
	return k.offset, nil
}

// Inputs returns the kernel's input register layout.
func (k *Kernel) Inputs() []Register { return k.ck.Inputs }

// Outputs returns the kernel's output register layout.
func (k *Kernel) Outputs() []Register { return k.ck.Outputs }

// OutputSlots returns the kernel's output layout as linkage slots, in
// output order. Downstream stage key derivation consumes this.
func (k *Kernel) OutputSlots() []OutputSlot {
	slots := make([]OutputSlot, len(k.ck.Outputs))
	for i, r := range k.ck.Outputs {
		slots[i] = r.Slot()
	}
	return slots
}

// StartRegister returns the first hardware register of the input
// payload.
func (k *Kernel) StartRegister() int { return k.ck.StartRegister }

// InputHasPosition reports whether the kernel reads the position.
func (k *Kernel) InputHasPosition() bool { return k.ck.InputHasPosition }

// OutputHasPosition reports whether the kernel writes the position.
func (k *Kernel) OutputHasPosition() bool { return k.ck.OutputHasPosition }

// UsesKill reports whether the kernel contains a discard instruction.
func (k *Kernel) UsesKill() bool { return k.ck.UsesKill }

// BarycentricModes returns the kernel's required barycentric
// interpolation modes as a bitmask.
func (k *Kernel) BarycentricModes() uint32 { return k.ck.BarycentricModes }

// DiscardAdjacency reports whether the kernel ignores adjacency
// vertices.
func (k *Kernel) DiscardAdjacency() bool { return k.ck.DiscardAdjacency }

// ClipStateSize returns the push-constant space reserved for user clip
// planes, in bytes.
func (k *Kernel) ClipStateSize() int { return k.ck.ClipStateSize }

// StreamOutputs returns the stream-output entries remapped to this
// kernel's output list, or nil when the program declares none.
func (k *Kernel) StreamOutputs() []StreamOutputEntry { return k.so }

// StreamOutputStrides returns the per-buffer vertex strides of the
// stream-output declaration.
func (k *Kernel) StreamOutputStrides() [MaxStreamOutputBuffers]uint16 { return k.soStride }
