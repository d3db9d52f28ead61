package operators

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/planexec/planexec/pkg/exec"
)

// bridge calls a single compiled operator module's exported eval function,
// marshaling exec.Values across the WASM memory boundary as JSON using
// exec.Value's own MarshalJSON/UnmarshalJSON (pkg/exec/value.go), so the
// wire shape is defined once rather than duplicated per transport.
type bridge struct {
	module  api.Module
	memory  api.Memory
	malloc  api.Function
	free    api.Function
	eval    api.Function
	timeout time.Duration
}

// newBridge resolves the exported functions an operator module must
// provide: malloc(size) -> ptr, free(ptr), and eval(ptr, len) -> packed
// (out_ptr << 32 | out_len).
func newBridge(module api.Module, timeout time.Duration) (*bridge, error) {
	b := &bridge{module: module, timeout: timeout}

	b.memory = module.Memory()
	if b.memory == nil {
		return nil, fmt.Errorf("operator module does not export memory")
	}
	b.malloc = module.ExportedFunction("malloc")
	if b.malloc == nil {
		return nil, fmt.Errorf("operator module does not export malloc")
	}
	b.free = module.ExportedFunction("free")
	if b.free == nil {
		return nil, fmt.Errorf("operator module does not export free")
	}
	b.eval = module.ExportedFunction("eval")
	if b.eval == nil {
		return nil, fmt.Errorf("operator module does not export eval")
	}

	return b, nil
}

// Eval marshals args to a JSON array, calls the module's eval export, and
// unmarshals the single exec.Value it returns.
func (b *bridge) Eval(ctx context.Context, args []exec.Value) (exec.Value, error) {
	input, err := json.Marshal(args)
	if err != nil {
		return exec.Unknown(), fmt.Errorf("marshal operator args: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	output, err := b.call(ctx, input)
	if err != nil {
		return exec.Unknown(), err
	}

	var result exec.Value
	if err := json.Unmarshal(output, &result); err != nil {
		return exec.Unknown(), fmt.Errorf("unmarshal operator result: %w", err)
	}
	return result, nil
}

// call allocates input in WASM memory, invokes eval, and reads the packed
// (ptr, len) result back out, freeing both buffers afterward.
func (b *bridge) call(ctx context.Context, input []byte) ([]byte, error) {
	ptr, err := b.allocate(ctx, uint32(len(input)))
	if err != nil {
		return nil, err
	}
	defer b.deallocate(ctx, ptr)

	if !b.memory.Write(ptr, input) {
		return nil, fmt.Errorf("failed to write operator input to WASM memory")
	}

	results, err := b.eval.Call(ctx, uint64(ptr), uint64(len(input)))
	if err != nil {
		return nil, fmt.Errorf("eval call failed: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("eval returned no results")
	}

	packed := results[0]
	outPtr := uint32(packed >> 32)
	outLen := uint32(packed & 0xFFFFFFFF)
	if outLen == 0 {
		return nil, fmt.Errorf("eval returned an empty result")
	}

	output, ok := b.memory.Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("failed to read eval result from WASM memory")
	}
	// Copy before freeing: Read returns a view into WASM linear memory.
	out := append([]byte(nil), output...)
	b.deallocate(ctx, outPtr)

	return out, nil
}

func (b *bridge) allocate(ctx context.Context, size uint32) (uint32, error) {
	results, err := b.malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("malloc failed: %w", err)
	}
	if len(results) == 0 || results[0] == 0 {
		return 0, fmt.Errorf("malloc returned no usable pointer")
	}
	return uint32(results[0]), nil
}

func (b *bridge) deallocate(ctx context.Context, ptr uint32) {
	_, _ = b.free.Call(ctx, uint64(ptr))
}
