// Package shadercache compiles shader programs into hardware kernels on
// demand and manages their lifetime in GPU-visible memory.
//
// A [Program] owns the compiled variants of one logical shader. Variants
// are keyed by the pipeline state that affects code generation ([Key]);
// looking up a variant that does not exist yet invokes the backend
// [Compiler] and stores the result. Per-program memory is bounded: least
// recently used variants are evicted once the compiled code crosses a
// fixed budget.
//
// A [Cache] tracks which registered programs changed since the last
// upload and packs their kernels into a destination buffer through a
// [KernelWriter], honoring the hardware's 64-byte kernel fetch alignment
// and reserving a trailing prefetch margin. Passing a nil writer turns
// an upload into a dry-run size query so callers can pre-size the
// destination exactly.
//
// The intermediate representation of a program is a naga IR module
// (github.com/gogpu/naga/ir). Program-level facts that feed variant
// selection (shadow samplers, builtin usage, interpolation) are derived
// from the IR once, at program creation.
//
// All types in this package are confined to a single rendering-context
// goroutine. Nothing here locks; callers that share a Cache or Program
// across goroutines must synchronize externally.
package shadercache
