package shadercache

import (
	"errors"
	"testing"

	"github.com/gogpu/naga/ir"
)

// fakeCompiler produces kernels of a configurable size and counts
// invocations, so tests can observe cache hits versus recompiles.
type fakeCompiler struct {
	size  int
	calls int
	err   error
}

func (f *fakeCompiler) Compile(stage Stage, module *ir.Module, key Key) (*CompiledKernel, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &CompiledKernel{Code: make([]byte, f.size)}, nil
}

func newTestProgram(t *testing.T, comp Compiler) *Program {
	t.Helper()
	p, err := NewFragmentProgram(comp, &ProgramDesc{Module: &ir.Module{}}, nil)
	if err != nil {
		t.Fatalf("NewFragmentProgram: %v", err)
	}
	return p
}

// fragKey builds a distinct fragment key per n, for forcing variant
// misses.
func fragKey(n uint16) Key {
	return FragmentKey{FramebufferHeight: n + 1, ColorBufferCount: 1}
}

func TestNewProgramCompilesInitialVariant(t *testing.T) {
	comp := &fakeCompiler{size: 100}
	p := newTestProgram(t, comp)

	if comp.calls != 1 {
		t.Errorf("compile calls = %d, want 1 eager compile", comp.calls)
	}
	if p.VariantCount() != 1 {
		t.Errorf("VariantCount = %d, want 1", p.VariantCount())
	}
	if p.ActiveKernel() == nil {
		t.Fatal("no active kernel after creation")
	}
	if p.TotalSize() != 100 {
		t.Errorf("TotalSize = %d, want 100", p.TotalSize())
	}
}

func TestNewProgramValidation(t *testing.T) {
	if _, err := NewVertexProgram(nil, &ProgramDesc{Module: &ir.Module{}}, nil); !errors.Is(err, ErrNilCompiler) {
		t.Errorf("nil compiler: err = %v, want ErrNilCompiler", err)
	}
	if _, err := NewVertexProgram(&fakeCompiler{size: 1}, &ProgramDesc{}, nil); !errors.Is(err, ErrNilModule) {
		t.Errorf("nil module: err = %v, want ErrNilModule", err)
	}
}

func TestUseVariantHitAndMiss(t *testing.T) {
	comp := &fakeCompiler{size: 100}
	p := newTestProgram(t, comp)
	initial := p.ActiveKernel()

	// Miss: a new key compiles a new kernel.
	changed, err := p.UseVariant(fragKey(100))
	if err != nil {
		t.Fatalf("UseVariant: %v", err)
	}
	if !changed {
		t.Error("new variant must report a changed selection")
	}
	if comp.calls != 2 || p.VariantCount() != 2 {
		t.Errorf("calls = %d, variants = %d, want 2 and 2", comp.calls, p.VariantCount())
	}

	// Hit: the initial key selects the existing kernel, no compile.
	changed, err = p.UseVariant(initial.Key())
	if err != nil {
		t.Fatalf("UseVariant: %v", err)
	}
	if !changed {
		t.Error("switching back must report a changed selection")
	}
	if comp.calls != 2 {
		t.Errorf("cache hit ran the compiler, calls = %d", comp.calls)
	}
	if p.ActiveKernel() != initial {
		t.Error("hit selected a different kernel object")
	}

	// Re-selecting the active variant is a no-op.
	changed, err = p.UseVariant(initial.Key())
	if err != nil {
		t.Fatalf("UseVariant: %v", err)
	}
	if changed {
		t.Error("re-selecting the active variant must not report a change")
	}
}

func TestUseVariantStageMismatch(t *testing.T) {
	p := newTestProgram(t, &fakeCompiler{size: 10})

	if _, err := p.UseVariant(VertexKey{}); !errors.Is(err, ErrStageMismatch) {
		t.Errorf("err = %v, want ErrStageMismatch", err)
	}
	if _, err := p.UseVariant(nil); !errors.Is(err, ErrStageMismatch) {
		t.Errorf("nil key: err = %v, want ErrStageMismatch", err)
	}
}

func TestUseVariantCompileFailure(t *testing.T) {
	comp := &fakeCompiler{size: 100}
	p := newTestProgram(t, comp)
	active := p.ActiveKernel()

	comp.err = errors.New("register allocation failed")
	changed, err := p.UseVariant(fragKey(7))
	if err == nil {
		t.Fatal("expected compile error")
	}
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *CompileError", err)
	}
	if cerr.Stage != StageFragment {
		t.Errorf("CompileError.Stage = %v, want fragment", cerr.Stage)
	}
	if changed {
		t.Error("failed compile must not report a change")
	}
	if p.ActiveKernel() != active {
		t.Error("failed compile must leave the selection unchanged")
	}
	if p.VariantCount() != 1 {
		t.Errorf("VariantCount = %d, want 1", p.VariantCount())
	}
}

func TestUseVariantEmptyKernel(t *testing.T) {
	comp := &fakeCompiler{size: 100}
	p := newTestProgram(t, comp)

	comp.size = 0
	_, err := p.UseVariant(fragKey(7))
	if !errors.Is(err, ErrEmptyKernel) {
		t.Errorf("err = %v, want ErrEmptyKernel", err)
	}
}

func TestEvictionBoundsTotalSize(t *testing.T) {
	comp := &fakeCompiler{size: 1024}
	p := newTestProgram(t, comp)

	// Fill to exactly the budget, then force one more miss.
	for n := uint16(0); p.TotalSize() < kernelBudget; n++ {
		if _, err := p.UseVariant(fragKey(100 + n)); err != nil {
			t.Fatalf("UseVariant: %v", err)
		}
	}
	if p.VariantCount() != 4 {
		t.Fatalf("VariantCount = %d, want 4 at the budget", p.VariantCount())
	}

	if _, err := p.UseVariant(fragKey(999)); err != nil {
		t.Fatalf("UseVariant: %v", err)
	}

	// Eviction drops tail variants to the low mark before inserting.
	if p.TotalSize() != kernelBudgetLow+1024 {
		t.Errorf("TotalSize = %d, want %d", p.TotalSize(), kernelBudgetLow+1024)
	}
	if p.VariantCount() != 3 {
		t.Errorf("VariantCount = %d, want 3", p.VariantCount())
	}

	// The least recently used variant (the eager initial one) is gone.
	if elem := p.search(GuessKey(StageFragment, p.Info(), nil)); elem != nil {
		t.Error("least recently used variant survived eviction")
	}
	// The most recent hit survived.
	if elem := p.search(fragKey(999)); elem == nil {
		t.Error("just-compiled variant missing")
	}
}

func TestEvictionOversizedKernel(t *testing.T) {
	comp := &fakeCompiler{size: 3 * kernelBudget}
	p := newTestProgram(t, comp)

	if _, err := p.UseVariant(fragKey(1)); err != nil {
		t.Fatalf("UseVariant: %v", err)
	}

	// A kernel larger than the whole budget is kept alone: the previous
	// variant is evicted and the list never holds two of them.
	if p.VariantCount() != 1 {
		t.Errorf("VariantCount = %d, want 1", p.VariantCount())
	}
	if p.TotalSize() != 3*kernelBudget {
		t.Errorf("TotalSize = %d, want %d", p.TotalSize(), 3*kernelBudget)
	}
}

func TestEvictionRecencyOrder(t *testing.T) {
	comp := &fakeCompiler{size: 1024}
	p := newTestProgram(t, comp)
	initialKey := p.ActiveKernel().Key()

	for n := uint16(0); p.TotalSize() < kernelBudget; n++ {
		if _, err := p.UseVariant(fragKey(100 + n)); err != nil {
			t.Fatalf("UseVariant: %v", err)
		}
	}

	// Touch the initial variant so it is the most recent, then overflow.
	if _, err := p.UseVariant(initialKey); err != nil {
		t.Fatalf("UseVariant: %v", err)
	}
	if _, err := p.UseVariant(fragKey(999)); err != nil {
		t.Fatalf("UseVariant: %v", err)
	}

	if elem := p.search(initialKey); elem == nil {
		t.Error("recently used variant was evicted")
	}
	if elem := p.search(fragKey(100)); elem != nil {
		t.Error("least recently used variant survived eviction")
	}
}

func TestSelectKernelDirtyMask(t *testing.T) {
	comp := &fakeCompiler{size: 100}
	p := newTestProgram(t, comp)

	st := &PipelineState{Framebuffer: Framebuffer{Height: 600, ColorBufferCount: 2}}

	// Vertex shader changes are orthogonal to fragment variants.
	changed, err := p.SelectKernel(st, DirtyVertexShader)
	if err != nil {
		t.Fatalf("SelectKernel: %v", err)
	}
	if changed || comp.calls != 1 {
		t.Error("orthogonal dirty state must not re-derive the key")
	}

	// A framebuffer change is non-orthogonal and the new state derives a
	// different key, so a variant is compiled.
	changed, err = p.SelectKernel(st, DirtyFramebuffer)
	if err != nil {
		t.Fatalf("SelectKernel: %v", err)
	}
	if !changed {
		t.Error("non-orthogonal state change must reselect")
	}
	if comp.calls != 2 {
		t.Errorf("calls = %d, want 2", comp.calls)
	}

	// Same state again: non-orthogonal but the derived key hits.
	changed, err = p.SelectKernel(st, DirtyFramebuffer)
	if err != nil {
		t.Fatalf("SelectKernel: %v", err)
	}
	if changed || comp.calls != 2 {
		t.Error("unchanged derived key must keep the selection without compiling")
	}
}

func TestProgramDestroy(t *testing.T) {
	c := NewCache()
	p := newTestProgram(t, &fakeCompiler{size: 100})
	c.Add(p)

	p.Destroy()

	if p.VariantCount() != 0 || p.TotalSize() != 0 || p.ActiveKernel() != nil {
		t.Error("Destroy must drop all variants and the selection")
	}
	if n, err := c.Upload(nil, 0, false); err != nil || n != 0 {
		t.Errorf("destroyed program still registered: size = %d, err = %v", n, err)
	}
}

func TestKernelOffsetBeforeUpload(t *testing.T) {
	p := newTestProgram(t, &fakeCompiler{size: 100})

	if _, err := p.KernelOffset(); !errors.Is(err, ErrNotUploaded) {
		t.Errorf("err = %v, want ErrNotUploaded", err)
	}
}
