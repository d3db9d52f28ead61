// Package operators hosts compiled WASM modules as custom expression
// operators, adapted from pkg/providers/host's WASM bridge
// (bridge.go/registry.go/manifest.go) but scoped to a single exported
// function, eval(args) -> Value, instead of a full provider lifecycle.
//
// A registered operator can be referenced from an arithmetic/logical
// expression node without recompiling the executive: the node's operator
// name is looked up in the Registry and its eval export invoked with the
// node's already-evaluated operand Values.
//
// This is not the dlopen-based interface-adapter framework kept out of
// scope for compiled-in components — it is a sandboxed extension point
// for one expression variant, wazero providing the sandbox instead of a
// native plugin loaded into the process.
//
// # Usage
//
//	reg, err := operators.NewRegistry(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reg.Close(ctx)
//
//	if err := reg.RegisterFromManifest(ctx, "operators/clamp/manifest.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := reg.Eval(ctx, "clamp", []exec.Value{exec.FloatValue(4.2)})
//
// # Module contract
//
// An operator module must export linear memory plus three functions:
//
//	malloc(size: u32) -> ptr: u32
//	free(ptr: u32)
//	eval(ptr: u32, len: u32) -> packed: u64   // (out_ptr << 32) | out_len
//
// Input and output are both a JSON encoding of exec.Value (an array of
// arguments in, a single Value out), using exec.Value's own
// MarshalJSON/UnmarshalJSON so the wire shape is defined once in
// pkg/exec/value.go rather than duplicated here.
package operators
