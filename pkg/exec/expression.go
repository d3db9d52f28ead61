package exec

import "sync"

// ChangeListener is notified when an expression's value may have changed.
// Node is the only production implementation, but expressions themselves
// implement it too so compound expressions can subscribe to their operands.
type ChangeListener interface {
	NotifyChanged()
}

// Expression is a node in the shared, reference-counted expression graph
// described by the data model: constants, variables, operators, lookups and
// array accessors all satisfy it. Activation is reference counted because
// the same expression (a global variable, a named lookup) can be wired into
// more than one condition slot across the plan.
type Expression interface {
	// Activate increments the activation refcount. On the 0->1 edge the
	// expression subscribes to its operands (if any) and begins
	// reporting real values instead of Unknown.
	Activate()

	// Deactivate decrements the refcount. On the 1->0 edge the
	// expression unsubscribes from its operands and its Value reverts
	// to Unknown until reactivated.
	Deactivate()

	// Value returns the current value. Expressions that are not active
	// always return Unknown.
	Value() Value

	// AddListener registers l to be notified when Value may have
	// changed while this expression is active.
	AddListener(l ChangeListener)

	// RemoveListener undoes AddListener.
	RemoveListener(l ChangeListener)
}

// base implements the refcounted activation and listener fan-out shared by
// every concrete expression type.
type base struct {
	mu        sync.Mutex
	refcount  int
	listeners []ChangeListener
	active    bool
}

func (b *base) AddListener(l ChangeListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.listeners {
		if existing == l {
			return
		}
	}
	b.listeners = append(b.listeners, l)
}

func (b *base) RemoveListener(l ChangeListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.listeners {
		if existing == l {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

func (b *base) notify() {
	b.mu.Lock()
	ls := make([]ChangeListener, len(b.listeners))
	copy(ls, b.listeners)
	b.mu.Unlock()
	for _, l := range ls {
		l.NotifyChanged()
	}
}

// activateSelf bumps the refcount and reports whether this was the 0->1
// edge (caller should then activate/subscribe to operands).
func (b *base) activateSelf() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refcount++
	if b.refcount == 1 {
		b.active = true
		return true
	}
	return false
}

// deactivateSelf decrements the refcount and reports whether this was the
// 1->0 edge (caller should then deactivate/unsubscribe from operands).
func (b *base) deactivateSelf() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refcount == 0 {
		return false
	}
	b.refcount--
	if b.refcount == 0 {
		b.active = false
		return true
	}
	return false
}

func (b *base) isActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Constant is an expression whose value never changes and that never
// requires activation of any operand.
type Constant struct {
	base
	val Value
}

func NewConstant(v Value) *Constant { return &Constant{val: v} }

func (c *Constant) Activate()            { c.activateSelf() }
func (c *Constant) Deactivate()          { c.deactivateSelf() }
func (c *Constant) NotifyChanged()       {}
func (c *Constant) Value() Value {
	if !c.isActive() {
		return Unknown()
	}
	return c.val
}

// Variable is a settable expression: assignment nodes write through
// Assign/Retract, and every other expression reads through Value.
type Variable struct {
	base
	name string
	val  Value
	// saved holds the value to restore on Retract, per the assignment
	// retraction semantics of the data model (restores the prior value,
	// not Unknown).
	saved Value
}

func NewVariable(name string, initial Value) *Variable {
	return &Variable{name: name, val: initial, saved: initial}
}

func (v *Variable) Name() string { return v.name }
func (v *Variable) Activate()    { v.activateSelf() }
func (v *Variable) Deactivate()  { v.deactivateSelf() }
func (v *Variable) NotifyChanged() {}

func (v *Variable) Value() Value {
	if !v.isActive() {
		return Unknown()
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.val
}

// Assign sets the value and notifies listeners, remembering the previous
// value so a later Retract can restore it.
func (v *Variable) Assign(val Value) {
	v.mu.Lock()
	v.saved = v.val
	v.val = val
	v.mu.Unlock()
	v.notify()
}

// Retract restores the value that was active before the most recent Assign.
func (v *Variable) Retract() {
	v.mu.Lock()
	v.val = v.saved
	v.mu.Unlock()
	v.notify()
}

// BinaryOp identifies the operator applied by a Binary expression.
type BinaryOp int

const (
	OpAnd BinaryOp = iota
	OpOr
	OpEQ
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
	OpAdd
	OpSub
	OpMul
	OpDiv
)

// Binary applies a two-operand operator over a left and right operand,
// re-subscribing to both on activation and forwarding change notifications
// from either operand to its own listeners.
type Binary struct {
	base
	op          BinaryOp
	left, right Expression
}

func NewBinary(op BinaryOp, left, right Expression) *Binary {
	return &Binary{op: op, left: left, right: right}
}

func (e *Binary) Activate() {
	if e.activateSelf() {
		e.left.Activate()
		e.right.Activate()
		e.left.AddListener(e)
		e.right.AddListener(e)
	}
}

func (e *Binary) Deactivate() {
	if e.deactivateSelf() {
		e.left.RemoveListener(e)
		e.right.RemoveListener(e)
		e.left.Deactivate()
		e.right.Deactivate()
	}
}

func (e *Binary) NotifyChanged() { e.notify() }

func (e *Binary) Value() Value {
	if !e.isActive() {
		return Unknown()
	}
	lv, rv := e.left.Value(), e.right.Value()
	switch e.op {
	case OpAnd:
		if lb, ok := lv.Bool(); ok && !lb {
			return BoolValue(false)
		}
		if rb, ok := rv.Bool(); ok && !rb {
			return BoolValue(false)
		}
		if lv.IsUnknown() || rv.IsUnknown() {
			return Unknown()
		}
		lb, _ := lv.Bool()
		rb, _ := rv.Bool()
		return BoolValue(lb && rb)
	case OpOr:
		if lb, ok := lv.Bool(); ok && lb {
			return BoolValue(true)
		}
		if rb, ok := rv.Bool(); ok && rb {
			return BoolValue(true)
		}
		if lv.IsUnknown() || rv.IsUnknown() {
			return Unknown()
		}
		lb, _ := lv.Bool()
		rb, _ := rv.Bool()
		return BoolValue(lb || rb)
	}
	if lv.IsUnknown() || rv.IsUnknown() {
		return Unknown()
	}
	switch e.op {
	case OpEQ:
		return BoolValue(lv.Equal(rv))
	case OpNE:
		return BoolValue(!lv.Equal(rv))
	case OpLT, OpLE, OpGT, OpGE:
		lf, lok := lv.Float()
		rf, rok := rv.Float()
		if !lok || !rok {
			return Unknown()
		}
		switch e.op {
		case OpLT:
			return BoolValue(lf < rf)
		case OpLE:
			return BoolValue(lf <= rf)
		case OpGT:
			return BoolValue(lf > rf)
		default:
			return BoolValue(lf >= rf)
		}
	case OpAdd, OpSub, OpMul, OpDiv:
		if lv.Kind() == KindInt && rv.Kind() == KindInt {
			li, _ := lv.Int()
			ri, _ := rv.Int()
			switch e.op {
			case OpAdd:
				return IntValue(li + ri)
			case OpSub:
				return IntValue(li - ri)
			case OpMul:
				return IntValue(li * ri)
			case OpDiv:
				if ri == 0 {
					return Unknown()
				}
				return IntValue(li / ri)
			}
		}
		lf, lok := lv.Float()
		rf, rok := rv.Float()
		if !lok || !rok {
			return Unknown()
		}
		switch e.op {
		case OpAdd:
			return FloatValue(lf + rf)
		case OpSub:
			return FloatValue(lf - rf)
		case OpMul:
			return FloatValue(lf * rf)
		default:
			if rf == 0 {
				return Unknown()
			}
			return FloatValue(lf / rf)
		}
	}
	return Unknown()
}

// Not negates a single boolean operand.
type Not struct {
	base
	operand Expression
}

func NewNot(operand Expression) *Not { return &Not{operand: operand} }

func (e *Not) Activate() {
	if e.activateSelf() {
		e.operand.Activate()
		e.operand.AddListener(e)
	}
}

func (e *Not) Deactivate() {
	if e.deactivateSelf() {
		e.operand.RemoveListener(e)
		e.operand.Deactivate()
	}
}

func (e *Not) NotifyChanged() { e.notify() }

func (e *Not) Value() Value {
	if !e.isActive() {
		return Unknown()
	}
	b, ok := e.operand.Value().Bool()
	if !ok {
		return Unknown()
	}
	return BoolValue(!b)
}

// ArrayElement reads array[index] from an array-valued operand.
type ArrayElement struct {
	base
	array, index Expression
}

func NewArrayElement(array, index Expression) *ArrayElement {
	return &ArrayElement{array: array, index: index}
}

func (e *ArrayElement) Activate() {
	if e.activateSelf() {
		e.array.Activate()
		e.index.Activate()
		e.array.AddListener(e)
		e.index.AddListener(e)
	}
}

func (e *ArrayElement) Deactivate() {
	if e.deactivateSelf() {
		e.array.RemoveListener(e)
		e.index.RemoveListener(e)
		e.array.Deactivate()
		e.index.Deactivate()
	}
}

func (e *ArrayElement) NotifyChanged() { e.notify() }

func (e *ArrayElement) Value() Value {
	if !e.isActive() {
		return Unknown()
	}
	arr, ok := e.array.Value().Array()
	if !ok {
		return Unknown()
	}
	idx, ok := e.index.Value().Int()
	if !ok || idx < 0 || int(idx) >= len(arr) {
		return Unknown()
	}
	return arr[idx]
}
