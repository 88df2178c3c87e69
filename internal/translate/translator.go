// Package translate implements the BytecodeTranslator (spec.md §4.3): it
// walks a method's decoded bytecode stream against a simulated evaluation
// stack and produces the flat, single-block IR instruction sequence the
// rest of the build pipeline and the external emitter consume.
package translate

import (
	"fmt"
	"sort"

	"github.com/ilforge/ilforge/internal/abi"
	"github.com/ilforge/ilforge/internal/diag"
	"github.com/ilforge/ilforge/internal/icall"
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/mangle"
	"github.com/ilforge/ilforge/internal/metadata"
)

// Translator converts one method body at a time. It is not safe for
// concurrent use by multiple goroutines against the same instance, mirroring
// the single-threaded, pass-sequential driver (spec §5).
type Translator struct {
	Resolver Resolver
	Mangler  *mangle.Mangler
	Icalls   *icall.Registry
	Diag     *diag.Sink

	// PreferManagedShortcuts mirrors the build option of the same name
	// (spec §4.2): when false, ManagedShortcut icall entries are skipped so
	// the bytecode body is compiled instead.
	PreferManagedShortcuts bool

	// Interceptors is the BclInterceptors chain (spec §4.4): each call site
	// (and, separately, each newobj site) runs through it before ordinary
	// icall/virtual/direct call resolution. Ordered most-specific first;
	// the first interceptor that returns handled=true wins.
	Interceptors []Interceptor

	method *ir.Method
	owner  *ir.Type
	block  *ir.BasicBlock

	stack       []ir.Operand
	tempCounter int

	localsByIndex map[int]*ir.Local
	paramsByIndex map[int]*ir.Param

	// pendingConstrained holds the value type named by a `constrained.`
	// prefix until the very next callvirt consumes it (spec §4.3).
	pendingConstrained *ir.Type
}

// New creates a Translator. resolver, mangler, icalls and sink are shared
// across every method the driver converts.
func New(resolver Resolver, mangler *mangle.Mangler, icalls *icall.Registry, sink *diag.Sink, preferManagedShortcuts bool) *Translator {
	return &Translator{
		Resolver:               resolver,
		Mangler:                mangler,
		Icalls:                 icalls,
		Diag:                   sink,
		PreferManagedShortcuts: preferManagedShortcuts,
	}
}

// Translate converts body into meth's single basic block. owner is meth's
// declaring type, used to resolve `this` and field/method references scoped
// to the current type.
func (t *Translator) Translate(meth *ir.Method, owner *ir.Type, body *metadata.MethodBody) error {
	t.method = meth
	t.owner = owner
	t.block = &ir.BasicBlock{Label: "entry"}
	t.stack = nil
	t.tempCounter = 0
	t.pendingConstrained = nil
	t.localsByIndex = indexLocals(meth.Locals)
	t.paramsByIndex = indexParams(meth.Params)

	byOffset := make(map[int]metadata.DecodedInstruction, len(body.Instructions))
	for _, di := range body.Instructions {
		byOffset[di.Offset] = di
	}

	targets := collectBranchTargets(body.Instructions)
	events := eventsByOffset(buildHandlerEvents(body.Handlers))

	timeline := make(map[int]bool, len(byOffset)+len(events))
	for off := range byOffset {
		timeline[off] = true
	}
	for off := range events {
		timeline[off] = true
	}
	offsets := make([]int, 0, len(timeline))
	for off := range timeline {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)

	for _, off := range offsets {
		for _, ev := range events[off] {
			t.emitHandlerEvent(ev)
		}
		if targets[off] {
			t.emit(&ir.LabelInstr{Name: labelForOffset(off)})
		}
		if di, ok := byOffset[off]; ok {
			if err := t.translateOne(di); err != nil {
				return fmt.Errorf("translating IL_%04x in %s: %w", off, meth.MangledName, err)
			}
		}
	}

	meth.Blocks = []*ir.BasicBlock{t.block}
	meth.BodyConverted = true
	return nil
}

// Interceptor is one link of the BclInterceptors chain (spec §4.4). It is
// consulted ahead of normal call resolution for both ordinary call sites and
// (separately) newobj sites; it must emit any IR itself via e and report
// whether it fully handled the site.
type Interceptor interface {
	Intercept(e *Emission, owner metadata.TypeRef, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand, isNewobj bool) (handled bool, err error)
}

// Emission is the narrow, exported seam an Interceptor uses to emit IR into
// the method currently being translated, without reaching into the
// Translator's internal bookkeeping directly.
type Emission struct{ t *Translator }

func (e *Emission) NewTemp() ir.Temp          { return e.t.newTemp() }
func (e *Emission) Emit(i ir.Instruction)     { e.t.emit(i) }
func (e *Emission) Push(op ir.Operand)        { e.t.push(op) }
func (e *Emission) Pop() ir.Operand           { return e.t.pop() }
func (e *Emission) Resolver() Resolver        { return e.t.Resolver }
func (e *Emission) Mangler() *mangle.Mangler  { return e.t.Mangler }
func (e *Emission) Owner() *ir.Type           { return e.t.owner }
func (e *Emission) CurrentMethod() *ir.Method { return e.t.method }

func (t *Translator) runInterceptors(owner metadata.TypeRef, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand, isNewobj bool) (bool, error) {
	if len(t.Interceptors) == 0 {
		return false, nil
	}
	e := &Emission{t: t}
	for _, ic := range t.Interceptors {
		handled, err := ic.Intercept(e, owner, method, receiver, args, isNewobj)
		if err != nil {
			return false, err
		}
		if handled {
			return true, nil
		}
	}
	return false, nil
}

func indexLocals(locals []*ir.Local) map[int]*ir.Local {
	m := make(map[int]*ir.Local, len(locals))
	for _, l := range locals {
		m[l.Index] = l
	}
	return m
}

func indexParams(params []*ir.Param) map[int]*ir.Param {
	m := make(map[int]*ir.Param, len(params))
	for i, p := range params {
		m[i] = p
	}
	return m
}

func labelForOffset(offset int) string {
	return fmt.Sprintf("IL_%04x", offset)
}

func collectBranchTargets(instrs []metadata.DecodedInstruction) map[int]bool {
	targets := make(map[int]bool)
	for _, di := range instrs {
		switch di.Opcode {
		case metadata.OpBr, metadata.OpBrtrue, metadata.OpBrfalse, metadata.OpLeave:
			if off, ok := di.Operand.(int); ok {
				targets[off] = true
			}
		case metadata.OpSwitch:
			if tg, ok := di.Operand.(metadata.SwitchTargets); ok {
				for _, off := range tg {
					targets[off] = true
				}
			}
		}
	}
	return targets
}

func (t *Translator) emit(i ir.Instruction) { t.block.Instructions = append(t.block.Instructions, i) }

func (t *Translator) push(op ir.Operand) { t.stack = append(t.stack, op) }

func (t *Translator) pop() ir.Operand {
	if len(t.stack) == 0 {
		return &ir.LiteralOperand{Value: nil}
	}
	n := len(t.stack) - 1
	op := t.stack[n]
	t.stack = t.stack[:n]
	return op
}

func (t *Translator) popN(n int) []ir.Operand {
	ops := make([]ir.Operand, n)
	for i := n - 1; i >= 0; i-- {
		ops[i] = t.pop()
	}
	return ops
}

func (t *Translator) newTemp() ir.Temp {
	name := fmt.Sprintf("__t%d", t.tempCounter)
	t.tempCounter++
	return ir.Temp{Name: name}
}

// emitBinary and emitUnary build the concrete instruction and push its
// result temp, matching the "pop operands, compute a result, push it" rule
// (spec §4.3 step 4).
func (t *Translator) emitBinary(op ir.BinaryOpKind, lhs, rhs ir.Operand) {
	dest := t.newTemp()
	t.emit(&ir.BinaryOp{Dest: dest, Op: op, Lhs: lhs, Rhs: rhs})
	t.push(&ir.TempOperand{Temp: dest})
}

func (t *Translator) emitUnary(op ir.UnaryOpKind, operand ir.Operand) {
	dest := t.newTemp()
	t.emit(&ir.UnaryOp{Dest: dest, Op: op, Operand: operand})
	t.push(&ir.TempOperand{Temp: dest})
}

func (t *Translator) emitHandlerEvent(ev handlerEvent) {
	switch ev.Kind {
	case metadata.HandlerTryBegin:
		t.emit(&ir.TryBeginInstr{RegionID: ev.Handler.RegionID})
	case metadata.HandlerCatchBegin:
		exTemp := t.newTemp()
		var exType *ir.Type
		if ev.Handler.CatchType != nil {
			exType = t.Resolver.ResolveType(*ev.Handler.CatchType)
		}
		t.emit(&ir.CatchBeginInstr{RegionID: ev.Handler.RegionID, ExceptionType: exType, ExceptionTemp: exTemp})
		// spec §4.3 step 3: push a synthetic expression naming the current
		// exception onto the simulated stack on entry to a catch region.
		t.push(&ir.TempOperand{Temp: exTemp})
	case metadata.HandlerFinallyBegin:
		t.emit(&ir.FinallyBeginInstr{RegionID: ev.Handler.RegionID})
	case metadata.HandlerFilterBegin:
		exTemp := t.newTemp()
		t.push(&ir.TempOperand{Temp: exTemp})
	case metadata.HandlerFilterHandlerBegin:
		// handler body of a filtered catch begins here; nothing extra to
		// push, the filter clause already established the exception temp.
	case metadata.HandlerEnd:
		t.emit(&ir.TryEndInstr{RegionID: ev.Handler.RegionID})
	}
}

func (t *Translator) translateOne(di metadata.DecodedInstruction) error {
	switch di.Opcode {
	case metadata.OpNop:
		// no-op, nothing to emit

	case metadata.OpLdcI4, metadata.OpLdcI8:
		v, _ := di.Operand.(int64)
		t.push(&ir.LiteralOperand{Value: v, Type: "int32_t"})
	case metadata.OpLdcR4, metadata.OpLdcR8:
		v, _ := di.Operand.(float64)
		t.push(&ir.LiteralOperand{Value: v, Type: "double"})
	case metadata.OpLdstr:
		v, _ := di.Operand.(string)
		t.push(&ir.LiteralOperand{Value: v, Type: "string"})
	case metadata.OpLdnull:
		t.push(&ir.LiteralOperand{Value: nil})

	case metadata.OpLdarg:
		idx, _ := di.Operand.(int)
		t.push(&ir.ParamOperand{Param: t.paramsByIndex[idx]})
	case metadata.OpLdloc:
		idx, _ := di.Operand.(int)
		t.push(&ir.LocalOperand{Local: t.localsByIndex[idx]})
	case metadata.OpLdloca:
		idx, _ := di.Operand.(int)
		t.push(&ir.LocalOperand{Local: t.localsByIndex[idx]})
	case metadata.OpStloc:
		idx, _ := di.Operand.(int)
		val := t.pop()
		local := t.localsByIndex[idx]
		t.emit(&ir.Assign{Dest: ir.Temp{Name: localName(local)}, RHS: val})

	case metadata.OpDup:
		v := t.pop()
		t.push(v)
		t.push(v)
	case metadata.OpPop:
		t.pop()

	case metadata.OpAdd:
		rhs, lhs := t.pop(), t.pop()
		t.emitBinary(ir.OpAdd, lhs, rhs)
	case metadata.OpSub:
		rhs, lhs := t.pop(), t.pop()
		t.emitBinary(ir.OpSub, lhs, rhs)
	case metadata.OpMul:
		rhs, lhs := t.pop(), t.pop()
		t.emitBinary(ir.OpMul, lhs, rhs)
	case metadata.OpDiv:
		rhs, lhs := t.pop(), t.pop()
		t.emitBinary(ir.OpDiv, lhs, rhs)
	case metadata.OpRem:
		rhs, lhs := t.pop(), t.pop()
		t.emitBinary(ir.OpRem, lhs, rhs)
	case metadata.OpAnd:
		rhs, lhs := t.pop(), t.pop()
		t.emitBinary(ir.OpAnd, lhs, rhs)
	case metadata.OpOr:
		rhs, lhs := t.pop(), t.pop()
		t.emitBinary(ir.OpOr, lhs, rhs)
	case metadata.OpXor:
		rhs, lhs := t.pop(), t.pop()
		t.emitBinary(ir.OpXor, lhs, rhs)
	case metadata.OpShl:
		rhs, lhs := t.pop(), t.pop()
		t.emitBinary(ir.OpShl, lhs, rhs)
	case metadata.OpShr:
		rhs, lhs := t.pop(), t.pop()
		t.emitBinary(ir.OpShr, lhs, rhs)
	case metadata.OpShrUn:
		// Unsigned shift-right lowers to the logical-shift operator applied
		// after casting to unsigned (spec §4.3 edge case).
		rhs, lhs := t.pop(), t.pop()
		t.emitBinary(ir.OpShrU, lhs, rhs)

	case metadata.OpNeg:
		t.emitUnary(ir.OpNeg, t.pop())
	case metadata.OpNot:
		t.emitUnary(ir.OpNot, t.pop())

	case metadata.OpCeq:
		rhs, lhs := t.pop(), t.pop()
		t.emitBinary(ir.OpCeq, lhs, rhs)
	case metadata.OpCgt:
		rhs, lhs := t.pop(), t.pop()
		t.emitBinary(ir.OpCgt, lhs, rhs)
	case metadata.OpClt:
		rhs, lhs := t.pop(), t.pop()
		t.emitBinary(ir.OpClt, lhs, rhs)
	case metadata.OpCgtUn, metadata.OpCltUn:
		rhs, lhs := t.pop(), t.pop()
		t.emitUnsignedCompare(di.Opcode, lhs, rhs)

	case metadata.OpBr:
		off, _ := di.Operand.(int)
		t.emit(&ir.Branch{Target: labelForOffset(off)})
	case metadata.OpBrtrue:
		off, _ := di.Operand.(int)
		cond := t.pop()
		t.emit(&ir.ConditionalBranch{Condition: cond, IfTrue: labelForOffset(off), IfFalse: labelForOffset(di.Offset + 1)})
	case metadata.OpBrfalse:
		off, _ := di.Operand.(int)
		cond := t.pop()
		t.emit(&ir.ConditionalBranch{Condition: cond, IfTrue: labelForOffset(di.Offset + 1), IfFalse: labelForOffset(off)})
	case metadata.OpSwitch:
		tg, _ := di.Operand.(metadata.SwitchTargets)
		selector := t.pop()
		cases := make([]ir.SwitchCase, len(tg))
		for i, off := range tg {
			cases[i] = ir.SwitchCase{Value: int64(i), Target: labelForOffset(off)}
		}
		t.emit(&ir.SwitchInstr{Selector: selector, Cases: cases, Default: labelForOffset(di.Offset + 1)})

	case metadata.OpCall, metadata.OpCallvirt:
		return t.translateCall(di)
	case metadata.OpNewobj:
		return t.translateNewobj(di)
	case metadata.OpRet:
		if t.method.ReturnType != "" && t.method.ReturnType != "void" {
			v := t.pop()
			t.emit(&ir.ReturnInstr{Value: v})
		} else {
			t.emit(&ir.ReturnInstr{})
		}

	case metadata.OpLdfld, metadata.OpStfld:
		return t.translateInstanceField(di)
	case metadata.OpLdsfld, metadata.OpStsfld:
		return t.translateStaticField(di)

	case metadata.OpLdelem:
		idx, arr := t.pop(), t.pop()
		elemTy, _ := di.Operand.(metadata.TypeRef)
		dest := t.newTemp()
		t.emit(&ir.ArrayAccess{Dest: &dest, Array: arr, Index: idx, ElementType: t.Mangler.GetCppTypeForDeclaration(elemTy.FullName)})
		t.push(&ir.TempOperand{Temp: dest})
	case metadata.OpStelem:
		val, idx, arr := t.pop(), t.pop(), t.pop()
		elemTy, _ := di.Operand.(metadata.TypeRef)
		t.emit(&ir.ArrayAccess{Array: arr, Index: idx, ElementType: t.Mangler.GetCppTypeForDeclaration(elemTy.FullName), Store: val})
	case metadata.OpLdlen:
		arr := t.pop()
		dest := t.newTemp()
		t.emit(&ir.ArrayAccess{Dest: &dest, Array: arr, ElementType: "int32_t"})
		t.push(&ir.TempOperand{Temp: dest})

	case metadata.OpCastclass, metadata.OpIsinst:
		ref, _ := di.Operand.(metadata.TypeRef)
		val := t.pop()
		dest := t.newTemp()
		kind := ir.CastChecked
		if di.Opcode == metadata.OpIsinst {
			kind = ir.CastSafe
		}
		t.emit(&ir.CastInstr{Dest: dest, Value: val, TargetTy: t.Resolver.ResolveType(ref), Kind: kind})
		t.push(&ir.TempOperand{Temp: dest})

	case metadata.OpConvI4:
		t.emitConversion(di, "int32_t")
	case metadata.OpConvI8:
		t.emitConversion(di, "int64_t")
	case metadata.OpConvR4:
		t.emitConversion(di, "float")
	case metadata.OpConvR8:
		t.emitConversion(di, "double")

	case metadata.OpBox:
		ref, _ := di.Operand.(metadata.TypeRef)
		val := t.pop()
		dest := t.newTemp()
		t.emit(&ir.BoxInstr{Dest: dest, Value: val, Type: t.Resolver.ResolveType(ref)})
		t.push(&ir.TempOperand{Temp: dest})
	case metadata.OpUnbox:
		ref, _ := di.Operand.(metadata.TypeRef)
		val := t.pop()
		dest := t.newTemp()
		t.emit(&ir.UnboxInstr{Dest: dest, Value: val, Type: t.Resolver.ResolveType(ref), Variant: ir.UnboxPointer})
		t.push(&ir.TempOperand{Temp: dest})
	case metadata.OpUnboxAny:
		ref, _ := di.Operand.(metadata.TypeRef)
		val := t.pop()
		dest := t.newTemp()
		t.emit(&ir.UnboxInstr{Dest: dest, Value: val, Type: t.Resolver.ResolveType(ref), Variant: ir.UnboxValue})
		t.push(&ir.TempOperand{Temp: dest})

	case metadata.OpInitobj:
		ref, _ := di.Operand.(metadata.TypeRef)
		target := t.pop()
		t.emit(&ir.InitValueTypeInstr{Target: target, Type: t.Resolver.ResolveType(ref)})

	case metadata.OpNewarr:
		ref, _ := di.Operand.(metadata.TypeRef)
		length := t.pop()
		dest := t.newTemp()
		t.emit(&ir.Call{Dest: &dest, TargetSymbol: abi.ArrayCreate, Args: []ir.Operand{length, &ir.LiteralOperand{Value: ref.FullName, Type: "string"}}})
		t.push(&ir.TempOperand{Temp: dest})

	case metadata.OpThrow:
		val := t.pop()
		t.emit(&ir.ThrowInstr{Value: val})
		t.stack = nil
	case metadata.OpRethrow:
		t.emit(&ir.RethrowInstr{})
		t.stack = nil
	case metadata.OpLeave:
		// spec §4.3 edge case: `leave` clears the simulated stack before
		// branching.
		off, _ := di.Operand.(int)
		t.stack = nil
		t.emit(&ir.Branch{Target: labelForOffset(off)})
	case metadata.OpEndfinally:
		// control returns to the dispatcher; nothing pushed or popped.

	case metadata.OpConstrained:
		ref, _ := di.Operand.(metadata.TypeRef)
		t.pendingConstrained = t.Resolver.ResolveType(ref)

	case metadata.OpLdftn, metadata.OpLdvirtftn:
		site, _ := di.Operand.(metadata.CallSite)
		if di.Opcode == metadata.OpLdvirtftn {
			t.pop() // receiver, unused: function pointer is resolved statically here
		}
		owner := t.Resolver.ResolveType(site.Owner)
		method := t.Resolver.ResolveMethod(owner, site.Method)
		dest := t.newTemp()
		t.emit(&ir.LoadFunctionPointerInstr{Dest: dest, Method: method})
		t.push(&ir.TempOperand{Temp: dest})
	case metadata.OpNewdelegate:
		site, _ := di.Operand.(metadata.CallSite)
		target := t.pop()
		owner := t.Resolver.ResolveType(site.Owner)
		method := t.Resolver.ResolveMethod(owner, site.Method)
		dest := t.newTemp()
		t.emit(&ir.DelegateCreateInstr{Dest: dest, DelegateType: t.owner, Target: target, Method: method})
		t.push(&ir.TempOperand{Temp: dest})

	default:
		t.emit(&ir.RawCppInstr{Text: fmt.Sprintf("/* unsupported opcode: %s */", di.Opcode)})
		if t.Diag != nil {
			t.Diag.Report(diag.Diagnostic{
				Stage:    diag.StageTranslate,
				Severity: diag.SeverityWarning,
				Code:     diag.CodeUnsupportedOpcode,
				Message:  fmt.Sprintf("unsupported opcode %q", di.Opcode),
				Method:   t.method.MangledName,
				Span:     diag.Span{BytecodeOffset: di.Offset},
			})
		}
	}
	return nil
}

// emitUnsignedCompare implements the cgt.un/clt.un null-rewrite edge case
// (spec §4.3): when either operand is the null literal, raw pointer
// ordering is undefined, so the comparison is rewritten to a not-equal
// test against null instead.
func (t *Translator) emitUnsignedCompare(op metadata.Opcode, lhs, rhs ir.Operand) {
	if isNullLiteral(lhs) || isNullLiteral(rhs) {
		t.emitBinary(ir.OpNeq, lhs, rhs)
		return
	}
	kind := ir.OpCgtU
	if op == metadata.OpCltUn {
		kind = ir.OpCltU
	}
	t.emitBinary(kind, lhs, rhs)
}

func isNullLiteral(op ir.Operand) bool {
	lit, ok := op.(*ir.LiteralOperand)
	return ok && lit.Value == nil
}

func (t *Translator) emitConversion(di metadata.DecodedInstruction, targetTy string) {
	val := t.pop()
	dest := t.newTemp()
	t.emit(&ir.ConversionInstr{Dest: dest, Value: val, TargetTy: targetTy})
	t.push(&ir.TempOperand{Temp: dest})
}

func localName(l *ir.Local) string {
	if l == nil {
		return "<unresolved local>"
	}
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("loc_%d", l.Index)
}
