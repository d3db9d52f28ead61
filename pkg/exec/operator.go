package exec

import "context"

// OperatorEvaluator resolves a named custom operator over already-computed
// operand Values. pkg/operators' WASM-backed Registry implements this by
// structural typing; pkg/exec has no import-time dependency on it.
type OperatorEvaluator interface {
	Eval(ctx context.Context, name string, args []Value) (Value, error)
}

// OperatorCall is an expression variant that extends arithmetic/logical
// operators with a named operator resolved at runtime through an
// OperatorEvaluator, rather than one of the compiled-in BinaryOp/Not
// kinds. It follows Lookup's activate/query/re-subscribe shape: operands
// are activated and listened to, and the call is re-evaluated whenever an
// operand changes.
type OperatorCall struct {
	base
	name      string
	operands  []Expression
	evaluator OperatorEvaluator
	ctx       context.Context
	val       Value
}

func NewOperatorCall(ctx context.Context, evaluator OperatorEvaluator, name string, operands []Expression) *OperatorCall {
	return &OperatorCall{ctx: ctx, evaluator: evaluator, name: name, operands: operands}
}

func (e *OperatorCall) operandValues() []Value {
	vals := make([]Value, len(e.operands))
	for i, o := range e.operands {
		vals[i] = o.Value()
	}
	return vals
}

func (e *OperatorCall) Activate() {
	if e.activateSelf() {
		for _, o := range e.operands {
			o.Activate()
			o.AddListener(e)
		}
		e.reeval()
	}
}

func (e *OperatorCall) Deactivate() {
	if e.deactivateSelf() {
		for _, o := range e.operands {
			o.RemoveListener(e)
			o.Deactivate()
		}
		e.val = Unknown()
	}
}

// NotifyChanged is called when any operand's value changes; any operand
// still Unknown makes the call itself Unknown without invoking the
// operator, matching how Binary and Not propagate Unknown operands.
func (e *OperatorCall) NotifyChanged() {
	if !e.isActive() {
		return
	}
	e.reeval()
	e.notify()
}

func (e *OperatorCall) reeval() {
	args := e.operandValues()
	for _, a := range args {
		if a.IsUnknown() {
			e.val = Unknown()
			return
		}
	}
	v, err := e.evaluator.Eval(e.ctx, e.name, args)
	if err != nil {
		e.val = Unknown()
		return
	}
	e.val = v
}

func (e *OperatorCall) Value() Value {
	if !e.isActive() {
		return Unknown()
	}
	return e.val
}
