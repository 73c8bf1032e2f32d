// Command shaderinfo compiles a WGSL shader through the variant cache
// and reports the program facts, kernel layout and upload footprint.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gogpu/naga"

	"github.com/gogpu/shadercache"
	"github.com/gogpu/shadercache/backend"
	_ "github.com/gogpu/shadercache/backend/nagac"
)

func main() {
	var (
		stageName = flag.String("stage", "fragment", "shader stage (vertex, geometry, fragment, compute)")
		offset    = flag.Uint("offset", 0, "upload base offset in the kernel buffer")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: shaderinfo [flags] shader.wgsl\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	stage, err := parseStage(*stageName)
	if err != nil {
		log.Fatal(err)
	}

	src, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to read shader: %v", err)
	}
	ast, err := naga.Parse(string(src))
	if err != nil {
		log.Fatalf("Failed to parse WGSL: %v", err)
	}
	module, err := naga.Lower(ast)
	if err != nil {
		log.Fatalf("Failed to lower WGSL: %v", err)
	}

	comp := backend.Default()
	if comp == nil {
		log.Fatal("No shader compiler backend available")
	}

	desc := &shadercache.ProgramDesc{Module: module}
	var prog *shadercache.Program
	switch stage {
	case shadercache.StageVertex:
		prog, err = shadercache.NewVertexProgram(comp, desc, nil)
	case shadercache.StageGeometry:
		prog, err = shadercache.NewGeometryProgram(comp, desc, nil)
	case shadercache.StageFragment:
		prog, err = shadercache.NewFragmentProgram(comp, desc, nil)
	case shadercache.StageCompute:
		prog, err = shadercache.NewComputeProgram(comp, desc, nil)
	}
	if err != nil {
		log.Fatalf("Failed to compile: %v", err)
	}

	printInfo(prog)

	cache := shadercache.NewCache()
	cache.Add(prog)
	size, err := cache.Upload(nil, uint32(*offset), false)
	if err != nil {
		log.Fatalf("Failed to size upload: %v", err)
	}
	fmt.Printf("upload footprint from offset %d: %d bytes\n", *offset, size)
}

func parseStage(name string) (shadercache.Stage, error) {
	switch name {
	case "vertex":
		return shadercache.StageVertex, nil
	case "geometry":
		return shadercache.StageGeometry, nil
	case "fragment":
		return shadercache.StageFragment, nil
	case "compute":
		return shadercache.StageCompute, nil
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

func printInfo(prog *shadercache.Program) {
	info := prog.Info()
	fmt.Printf("stage:           %s\n", info.Stage)
	fmt.Printf("samplers:        %d (shadow mask %#x)\n", info.SamplerCount, info.ShadowSamplers)
	fmt.Printf("reads position:  %v\n", info.HasPosition)
	fmt.Printf("color varyings:  %v\n", info.HasColorVaryings)
	if info.Stage == shadercache.StageCompute {
		fmt.Printf("workgroup:       %v\n", info.Compute.Workgroup)
	}

	k := prog.ActiveKernel()
	fmt.Printf("kernel size:     %d bytes\n", k.Size())
	fmt.Printf("uses kill:       %v\n", k.UsesKill())
	if modes := k.BarycentricModes(); modes != 0 {
		fmt.Printf("barycentrics:    %#x\n", modes)
	}

	fmt.Printf("inputs:\n")
	for _, r := range k.Inputs() {
		fmt.Printf("  %2d  %s[%d]\n", r.Index, r.Semantic, r.SemanticIndex)
	}
	fmt.Printf("outputs:\n")
	for _, r := range k.Outputs() {
		fmt.Printf("  %2d  %s[%d]\n", r.Index, r.Semantic, r.SemanticIndex)
	}
}
