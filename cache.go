package shadercache

import "container/list"

const (
	// KernelAlignment is the hardware instruction-fetch alignment.
	// Every kernel is placed at a 64-byte boundary of the destination
	// buffer.
	KernelAlignment = 64

	// PrefetchMargin is the trailing space reserved past the last
	// kernel. The hardware's instruction-fetch unit may speculatively
	// read up to 128 bytes beyond the end of a kernel program, possibly
	// into the next page, so the space must be accounted for even though
	// nothing is written there.
	PrefetchMargin = 128
)

// KernelWriter writes kernel bytes into the destination buffer. The
// buffer is owned by an external resource manager; this package only
// writes into the caller-supplied range and never arbitrates residency.
type KernelWriter interface {
	Write(offset uint32, data []byte) error
}

// Cache manages registered programs and uploads their kernels to the
// destination buffer as a whole. A registered program is on exactly one
// of two lists: changed (added or modified since the last upload) or
// resident (in sync with the buffer).
//
// Cache does not own its programs; the context layer creates and
// destroys them independently.
type Cache struct {
	resident *list.List // of *Program
	changed  *list.List // of *Program
}

// NewCache creates an empty shader cache.
func NewCache() *Cache {
	return &Cache{
		resident: list.New(),
		changed:  list.New(),
	}
}

// Add registers a program with the cache. All of the program's kernels
// are marked not-uploaded and the program is placed on the changed list,
// so the next upload covers it in full. A program already registered
// with another cache is moved.
func (c *Cache) Add(p *Program) {
	if p.cache != nil {
		p.cache.Remove(p)
	}
	p.cache = c

	for e := p.variants.Front(); e != nil; e = e.Next() {
		e.Value.(*Kernel).uploaded = false
	}

	p.cacheElem = c.changed.PushBack(p)
	p.inChanged = true
}

// Remove unregisters a program. The program keeps its variants and can
// be registered again later; removal only detaches the upload tracking.
func (c *Cache) Remove(p *Program) {
	if p.cache != c {
		return
	}
	if p.inChanged {
		c.changed.Remove(p.cacheElem)
	} else {
		c.resident.Remove(p.cacheElem)
	}
	p.cacheElem = nil
	p.cache = nil
	p.inChanged = false
}

// notifyChange moves a program from resident to changed after it gained
// a new kernel. No-op if the program is already on the changed list or
// belongs to a different cache.
func (c *Cache) notifyChange(p *Program) {
	if p.cache != c || p.inChanged {
		return
	}
	c.resident.Remove(p.cacheElem)
	p.cacheElem = c.changed.PushBack(p)
	p.inChanged = true
}

// Upload writes the kernels of registered programs into the destination
// buffer starting at offset, assigning each kernel a 64-byte-aligned
// offset. It returns the number of buffer bytes consumed, including the
// prefetch margin when anything was written.
//
// With incremental set, only kernels not yet uploaded are written;
// otherwise every kernel of every registered program is rewritten (a
// full resync). On success all processed changed programs move to
// resident.
//
// A nil writer makes the call a dry-run size query: the identical
// alignment and margin arithmetic runs, nothing is written and no upload
// state is mutated, so callers can pre-size the destination exactly.
//
// A write failure aborts immediately with a *WriteError. Kernels
// already marked uploaded by the same call keep their marks; re-running
// the upload rewrites them harmlessly.
func (c *Cache) Upload(w KernelWriter, offset uint32, incremental bool) (int, error) {
	if w == nil {
		return c.uploadSize(offset, incremental), nil
	}

	total := 0

	if !incremental {
		for e := c.resident.Front(); e != nil; e = e.Next() {
			n, err := uploadProgram(e.Value.(*Program), w, offset, incremental)
			total += n
			if err != nil {
				return total, err
			}
			offset += uint32(n)
		}
	}

	for e := c.changed.Front(); e != nil; {
		next := e.Next()
		p := e.Value.(*Program)

		n, err := uploadProgram(p, w, offset, incremental)
		total += n
		if err != nil {
			return total, err
		}
		offset += uint32(n)

		c.changed.Remove(e)
		p.cacheElem = c.resident.PushBack(p)
		p.inChanged = false

		e = next
	}

	if total > 0 {
		total += PrefetchMargin
	}

	Logger().Debug("uploaded shader kernels", "bytes", total, "incremental", incremental)

	return total, nil
}

// uploadProgram writes one program's kernels and returns the bytes
// consumed relative to the starting offset.
func uploadProgram(p *Program, w KernelWriter, offset uint32, incremental bool) (int, error) {
	base := offset

	for e := p.variants.Front(); e != nil; e = e.Next() {
		k := e.Value.(*Kernel)
		if incremental && k.uploaded {
			continue
		}

		offset = align(offset, KernelAlignment)
		if err := w.Write(offset, k.Code()); err != nil {
			return int(offset - base), &WriteError{Offset: offset, Size: k.Size(), Err: err}
		}

		k.uploaded = true
		k.offset = offset
		offset += uint32(k.Size())
	}

	return int(offset - base), nil
}

// uploadSize reproduces Upload's arithmetic without performing I/O or
// mutating any upload state.
func (c *Cache) uploadSize(offset uint32, incremental bool) int {
	base := offset

	if !incremental {
		for e := c.resident.Front(); e != nil; e = e.Next() {
			offset += uint32(programUploadSize(e.Value.(*Program), offset, incremental))
		}
	}
	for e := c.changed.Front(); e != nil; e = e.Next() {
		offset += uint32(programUploadSize(e.Value.(*Program), offset, incremental))
	}

	if offset > base {
		offset += PrefetchMargin
	}

	return int(offset - base)
}

func programUploadSize(p *Program, offset uint32, incremental bool) int {
	base := offset
	for e := p.variants.Front(); e != nil; e = e.Next() {
		k := e.Value.(*Kernel)
		if incremental && k.uploaded {
			continue
		}
		offset = align(offset, KernelAlignment) + uint32(k.Size())
	}
	return int(offset - base)
}

// align rounds v up to the next multiple of a. a must be a power of two.
func align(v, a uint32) uint32 {
	return (v + a - 1) &^ (a - 1)
}
