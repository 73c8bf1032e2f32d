package shadercache

import (
	"bytes"
	"errors"
	"testing"
)

// memWriter records kernel writes in order and can be told to fail.
type memWriter struct {
	writes []memWrite
	failAt int // index of the write to fail, -1 for never
}

type memWrite struct {
	offset uint32
	data   []byte
}

func newMemWriter() *memWriter {
	return &memWriter{failAt: -1}
}

func (w *memWriter) Write(offset uint32, data []byte) error {
	if w.failAt == len(w.writes) {
		return errors.New("device lost")
	}
	w.writes = append(w.writes, memWrite{offset: offset, data: bytes.Clone(data)})
	return nil
}

func addProgram(t *testing.T, c *Cache, size int) *Program {
	t.Helper()
	p := newTestProgram(t, &fakeCompiler{size: size})
	c.Add(p)
	return p
}

func TestUploadAlignment(t *testing.T) {
	c := NewCache()
	a := addProgram(t, c, 50)
	b := addProgram(t, c, 100)

	w := newMemWriter()
	n, err := c.Upload(w, 0, true)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if len(w.writes) != 2 {
		t.Fatalf("got %d writes, want 2", len(w.writes))
	}
	if w.writes[0].offset != 0 {
		t.Errorf("first kernel at %d, want 0", w.writes[0].offset)
	}
	// 50 bytes end at 50; the next kernel starts at the next 64-byte
	// boundary.
	if w.writes[1].offset != 64 {
		t.Errorf("second kernel at %d, want 64", w.writes[1].offset)
	}
	if want := 64 + 100 + PrefetchMargin; n != want {
		t.Errorf("consumed %d bytes, want %d", n, want)
	}

	off, err := a.KernelOffset()
	if err != nil || off != 0 {
		t.Errorf("program a offset = %d, %v; want 0", off, err)
	}
	off, err = b.KernelOffset()
	if err != nil || off != 64 {
		t.Errorf("program b offset = %d, %v; want 64", off, err)
	}
}

func TestUploadDryRunMatchesReal(t *testing.T) {
	for _, offset := range []uint32{0, 100, 1000} {
		c := NewCache()
		addProgram(t, c, 50)
		addProgram(t, c, 200)
		addProgram(t, c, 64)

		want, err := c.Upload(nil, offset, true)
		if err != nil {
			t.Fatalf("dry run: %v", err)
		}

		// The dry run mutates nothing: running it again gives the same
		// answer.
		again, err := c.Upload(nil, offset, true)
		if err != nil || again != want {
			t.Errorf("second dry run = %d, %v; want %d", again, err, want)
		}

		got, err := c.Upload(newMemWriter(), offset, true)
		if err != nil {
			t.Fatalf("Upload: %v", err)
		}
		if got != want {
			t.Errorf("offset %d: real upload = %d, dry run = %d", offset, got, want)
		}
	}
}

func TestUploadSizeScenario(t *testing.T) {
	c := NewCache()
	addProgram(t, c, 50)

	// From offset 1000: align to 1024, 50 bytes of code, 128 bytes of
	// prefetch margin.
	n, err := c.Upload(nil, 1000, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if n != 202 {
		t.Errorf("size = %d, want 202", n)
	}
}

func TestUploadEmptyCache(t *testing.T) {
	c := NewCache()

	n, err := c.Upload(nil, 0, false)
	if err != nil || n != 0 {
		t.Errorf("dry run on empty cache = %d, %v; want 0", n, err)
	}
	n, err = c.Upload(newMemWriter(), 0, false)
	if err != nil || n != 0 {
		t.Errorf("upload on empty cache = %d, %v; want 0, no margin", n, err)
	}
}

func TestUploadIncrementalIdempotent(t *testing.T) {
	c := NewCache()
	addProgram(t, c, 100)

	if _, err := c.Upload(newMemWriter(), 0, true); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	// Everything is resident now; an incremental upload has no work.
	w := newMemWriter()
	n, err := c.Upload(w, 0, true)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if n != 0 || len(w.writes) != 0 {
		t.Errorf("second incremental upload wrote %d bytes in %d writes, want none", n, len(w.writes))
	}
}

func TestUploadFullResync(t *testing.T) {
	c := NewCache()
	addProgram(t, c, 100)
	addProgram(t, c, 50)

	first, err := c.Upload(newMemWriter(), 0, true)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	// A non-incremental upload rewrites resident programs too.
	w := newMemWriter()
	n, err := c.Upload(w, 0, false)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if n != first {
		t.Errorf("resync consumed %d bytes, want %d", n, first)
	}
	if len(w.writes) != 2 {
		t.Errorf("resync issued %d writes, want 2", len(w.writes))
	}
}

func TestUploadAfterNewVariant(t *testing.T) {
	c := NewCache()
	p := addProgram(t, c, 100)
	addProgram(t, c, 100)

	if _, err := c.Upload(newMemWriter(), 0, true); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	// A new variant moves its program back to the changed list; the next
	// incremental upload covers only that kernel.
	if _, err := p.UseVariant(fragKey(42)); err != nil {
		t.Fatalf("UseVariant: %v", err)
	}

	w := newMemWriter()
	n, err := c.Upload(w, 512, true)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(w.writes) != 1 {
		t.Fatalf("got %d writes, want 1 for the new kernel", len(w.writes))
	}
	if w.writes[0].offset != 512 {
		t.Errorf("new kernel at %d, want 512", w.writes[0].offset)
	}
	if want := 100 + PrefetchMargin; n != want {
		t.Errorf("consumed %d bytes, want %d", n, want)
	}
}

func TestUploadWriteFailure(t *testing.T) {
	c := NewCache()
	addProgram(t, c, 100)
	p := addProgram(t, c, 100)

	w := newMemWriter()
	w.failAt = 1
	_, err := c.Upload(w, 0, true)

	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("err = %v, want *WriteError", err)
	}
	// The first program ends at 100; the second one's kernel aligns to
	// 128.
	if werr.Offset != 128 || werr.Size != 100 {
		t.Errorf("WriteError = offset %d size %d, want 128 and 100", werr.Offset, werr.Size)
	}

	// The failed program was not marked uploaded; a retry covers it.
	if p.ActiveKernel().Uploaded() {
		t.Error("failed kernel marked uploaded")
	}
	w2 := newMemWriter()
	if _, err := c.Upload(w2, 0, true); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(w2.writes) == 0 {
		t.Error("retry had nothing to write")
	}
}

func TestCacheAddMarksAllNotUploaded(t *testing.T) {
	c := NewCache()
	p := addProgram(t, c, 100)

	if _, err := c.Upload(newMemWriter(), 0, true); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !p.ActiveKernel().Uploaded() {
		t.Fatal("kernel not marked uploaded")
	}

	// Re-adding invalidates all upload marks, so the next incremental
	// upload rewrites the program in full.
	c.Add(p)
	if p.ActiveKernel().Uploaded() {
		t.Error("re-added program kept stale upload marks")
	}

	w := newMemWriter()
	if _, err := c.Upload(w, 0, true); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(w.writes) != 1 {
		t.Errorf("got %d writes, want 1", len(w.writes))
	}
}

func TestCacheMoveBetweenCaches(t *testing.T) {
	c1 := NewCache()
	c2 := NewCache()
	p := addProgram(t, c1, 100)

	c2.Add(p)

	if n, _ := c1.Upload(nil, 0, false); n != 0 {
		t.Error("program still tracked by its old cache")
	}
	if n, _ := c2.Upload(nil, 0, false); n == 0 {
		t.Error("program not tracked by its new cache")
	}
}

func TestCacheRemove(t *testing.T) {
	c := NewCache()
	p := addProgram(t, c, 100)

	c.Remove(p)

	if n, _ := c.Upload(nil, 0, false); n != 0 {
		t.Error("removed program still tracked")
	}
	// Removing twice, or from a cache that never held it, is harmless.
	c.Remove(p)
	NewCache().Remove(p)

	// The program keeps its variants and can be registered again.
	if p.VariantCount() != 1 {
		t.Errorf("VariantCount = %d, want 1 after removal", p.VariantCount())
	}
	c.Add(p)
	if n, _ := c.Upload(nil, 0, false); n == 0 {
		t.Error("re-added program not tracked")
	}
}

func TestUploadWritesKernelCode(t *testing.T) {
	c := NewCache()
	p := addProgram(t, c, 100)

	w := newMemWriter()
	if _, err := c.Upload(w, 0, true); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(w.writes) != 1 {
		t.Fatalf("got %d writes, want 1", len(w.writes))
	}
	if !bytes.Equal(w.writes[0].data, p.ActiveKernel().Code()) {
		t.Error("written bytes differ from the kernel's code")
	}
}

func TestAlign(t *testing.T) {
	tests := []struct {
		v, a, want uint32
	}{
		{0, 64, 0},
		{1, 64, 64},
		{64, 64, 64},
		{65, 64, 128},
		{1000, 64, 1024},
	}
	for _, tt := range tests {
		if got := align(tt.v, tt.a); got != tt.want {
			t.Errorf("align(%d, %d) = %d, want %d", tt.v, tt.a, got, tt.want)
		}
	}
}
