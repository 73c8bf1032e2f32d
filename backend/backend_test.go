package backend

import (
	"testing"

	"github.com/gogpu/naga/ir"

	"github.com/gogpu/shadercache"
)

type stubCompiler struct{ name string }

func (c *stubCompiler) Compile(shadercache.Stage, *ir.Module, shadercache.Key) (*shadercache.CompiledKernel, error) {
	return &shadercache.CompiledKernel{Code: []byte{0}}, nil
}

func TestRegisterGet(t *testing.T) {
	Register("stub", func() shadercache.Compiler { return &stubCompiler{name: "stub"} })
	defer Unregister("stub")

	if !IsRegistered("stub") {
		t.Fatal("registered backend not found")
	}
	if Get("stub") == nil {
		t.Error("Get returned nil for a registered backend")
	}
	if Get("no-such-backend") != nil {
		t.Error("Get returned a compiler for an unknown name")
	}
}

func TestUnregister(t *testing.T) {
	Register("stub", func() shadercache.Compiler { return &stubCompiler{} })
	Unregister("stub")

	if IsRegistered("stub") {
		t.Error("backend still registered after Unregister")
	}
}

func TestAvailable(t *testing.T) {
	Register("stub-a", func() shadercache.Compiler { return &stubCompiler{} })
	Register("stub-b", func() shadercache.Compiler { return &stubCompiler{} })
	defer Unregister("stub-a")
	defer Unregister("stub-b")

	names := Available()
	found := 0
	for _, n := range names {
		if n == "stub-a" || n == "stub-b" {
			found++
		}
	}
	if found != 2 {
		t.Errorf("Available() = %v, want both stubs listed", names)
	}
}

func TestDefaultFallsBackToAnyRegistered(t *testing.T) {
	// A backend outside the priority list is still picked up when it is
	// the only one.
	Register("stub", func() shadercache.Compiler { return &stubCompiler{} })
	defer Unregister("stub")

	if Default() == nil {
		t.Error("Default returned nil with a registered backend")
	}
}

func TestReplaceRegistration(t *testing.T) {
	a := &stubCompiler{name: "a"}
	b := &stubCompiler{name: "b"}
	Register("stub", func() shadercache.Compiler { return a })
	Register("stub", func() shadercache.Compiler { return b })
	defer Unregister("stub")

	if got := Get("stub"); got != shadercache.Compiler(b) {
		t.Error("re-registration did not replace the factory")
	}
}
