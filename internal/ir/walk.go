package ir

// WalkModule visits every method body in the module, in declaration order.
// fn returning false skips the remaining instructions of the current
// method but does not stop the walk over other methods.
//
// This mirrors the teacher's Walk-with-a-predicate shape but is tailored to
// IR's flat per-method instruction stream: pass 0 (generic scan), record
// synthesis and diagnostics collection all need "visit every instruction"
// and none of them need to recurse into sub-expressions, since instructions
// are already flattened by the translator.
func WalkModule(m *Module, fn func(t *Type, meth *Method, instr Instruction) bool) {
	for _, t := range m.Types {
		for _, meth := range t.Methods {
			stopped := false
			WalkMethod(meth, func(instr Instruction) bool {
				if stopped {
					return false
				}
				if !fn(t, meth, instr) {
					stopped = true
				}
				return !stopped
			})
		}
	}
}

// WalkMethod visits every instruction in a method body's blocks, in order.
// It returns false if fn returned false for any instruction (the caller
// decides what "stopping" means for it).
func WalkMethod(meth *Method, fn func(Instruction) bool) bool {
	ok := true
	for _, block := range meth.Blocks {
		for _, instr := range block.Instructions {
			if !fn(instr) {
				ok = false
			}
		}
	}
	return ok
}

// WalkOperands visits the operands directly referenced by instr, in the
// order they are read. Used by the generic scanner to find type operands
// embedded in literals and by diagnostics to describe a failing call site.
func WalkOperands(instr Instruction, fn func(Operand)) {
	switch i := instr.(type) {
	case *Assign:
		fn(i.RHS)
	case *BinaryOp:
		fn(i.Lhs)
		fn(i.Rhs)
	case *UnaryOp:
		fn(i.Operand)
	case *Call:
		if i.Receiver != nil {
			fn(i.Receiver)
		}
		for _, a := range i.Args {
			fn(a)
		}
	case *NewObject:
		for _, a := range i.Args {
			fn(a)
		}
	case *ConditionalBranch:
		fn(i.Condition)
	case *SwitchInstr:
		fn(i.Selector)
	case *FieldAccess:
		fn(i.Target)
		if i.Store != nil {
			fn(i.Store)
		}
	case *StaticFieldAccess:
		if i.Store != nil {
			fn(i.Store)
		}
	case *ArrayAccess:
		fn(i.Array)
		fn(i.Index)
		if i.Store != nil {
			fn(i.Store)
		}
	case *CastInstr:
		fn(i.Value)
	case *ConversionInstr:
		fn(i.Value)
	case *NullCheckInstr:
		fn(i.Value)
	case *BoxInstr:
		fn(i.Value)
	case *UnboxInstr:
		fn(i.Value)
	case *ThrowInstr:
		if i.Value != nil {
			fn(i.Value)
		}
	case *DelegateCreateInstr:
		if i.Target != nil {
			fn(i.Target)
		}
	case *DelegateInvokeInstr:
		fn(i.Delegate)
		for _, a := range i.Args {
			fn(a)
		}
	case *ReturnInstr:
		if i.Value != nil {
			fn(i.Value)
		}
	}
}
