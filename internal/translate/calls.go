package translate

import (
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/metadata"
)

// translateCall handles both `call` and `callvirt`: icall/managed-shortcut
// resolution first, then the constrained-call special case, then ordinary
// virtual or direct dispatch (spec §4.3/§4.2/§4.4's general fallback).
func (t *Translator) translateCall(di metadata.DecodedInstruction) error {
	site, _ := di.Operand.(metadata.CallSite)
	owner := t.Resolver.ResolveType(site.Owner)
	method := t.Resolver.ResolveMethod(owner, site.Method)

	args := t.popN(len(site.Method.Params))
	var receiver ir.Operand
	if !site.Method.Static {
		receiver = t.pop()
	}

	if handled, err := t.runInterceptors(site.Owner, site.Method, receiver, args, false); err != nil {
		return err
	} else if handled {
		return nil
	}

	// A delegate's Invoke carries no IL body (ECMA-335 leaves it
	// runtime-implemented), so pass 6 never converts one and nothing ever
	// emits its mangled symbol — dispatch it through the dedicated
	// delegate-invoke instruction instead of falling through to an ordinary
	// call against a shell no .cpp body backs (spec §3/§6).
	if owner != nil && owner.Flags.Has(ir.FlagDelegate) && site.Method.Name == "Invoke" {
		return t.emitDelegateInvoke(method, receiver, args)
	}

	firstParamType := ""
	if len(site.Method.Params) > 0 {
		firstParamType = t.Mangler.GetCppTypeForDeclaration(site.Method.Params[0].Type.FullName)
	}
	if entry, ok := t.Icalls.Lookup(site.Owner.FullName, site.Method.Name, len(site.Method.Params), firstParamType, !t.PreferManagedShortcuts); ok {
		allArgs := args
		if receiver != nil {
			allArgs = append([]ir.Operand{receiver}, args...)
		}
		return t.emitSymbolCall(entry.Symbol, site.Method.ReturnType, allArgs)
	}

	if di.Opcode == metadata.OpCallvirt && t.pendingConstrained != nil {
		vt := t.pendingConstrained
		t.pendingConstrained = nil
		if override := findOverride(vt, site.Method.Name); override != nil {
			return t.emitDirectCall(override, receiver, args)
		}
		boxDest := t.newTemp()
		t.emit(&ir.BoxInstr{Dest: boxDest, Value: receiver, Type: vt})
		return t.emitVirtualCall(method, &ir.TempOperand{Temp: boxDest}, args, nil)
	}
	t.pendingConstrained = nil

	if owner != nil && owner.Flags.Has(ir.FlagHasClassConstructor) {
		t.emit(&ir.ClassConstructorGuardInstr{Type: owner})
	}

	if di.Opcode == metadata.OpCallvirt {
		if virtual, ifaceOwner := resolveVirtualSlot(owner, method); virtual {
			return t.emitVirtualCall(method, receiver, args, ifaceOwner)
		}
	}
	// Value-type constructors invoked via a load-address + call pattern
	// (rather than newobj) reach this path with receiver already the
	// address on the stack: the emitter writes fields into that address
	// instead of allocating (spec §4.3 edge case).
	return t.emitDirectCall(method, receiver, args)
}

// translateNewobj handles `newobj`.
func (t *Translator) translateNewobj(di metadata.DecodedInstruction) error {
	site, _ := di.Operand.(metadata.CallSite)
	args := t.popN(len(site.Method.Params))

	if handled, err := t.runInterceptors(site.Owner, site.Method, nil, args, true); err != nil {
		return err
	} else if handled {
		return nil
	}

	owner := t.Resolver.ResolveType(site.Owner)
	ctor := t.Resolver.ResolveMethod(owner, site.Method)

	dest := t.newTemp()
	t.emit(&ir.NewObject{Dest: dest, Type: owner, Ctor: ctor, Args: args})
	t.push(&ir.TempOperand{Temp: dest})
	return nil
}

func (t *Translator) translateInstanceField(di metadata.DecodedInstruction) error {
	site, _ := di.Operand.(metadata.FieldSite)
	owner := t.Resolver.ResolveType(site.Owner)
	field := t.Resolver.ResolveField(owner, site.Field)

	if di.Opcode == metadata.OpStfld {
		val := t.pop()
		target := t.pop()
		t.emit(&ir.FieldAccess{Target: target, Field: field, Store: val})
		return nil
	}
	target := t.pop()
	dest := t.newTemp()
	t.emit(&ir.FieldAccess{Dest: &dest, Target: target, Field: field})
	t.push(&ir.TempOperand{Temp: dest})
	return nil
}

func (t *Translator) translateStaticField(di metadata.DecodedInstruction) error {
	site, _ := di.Operand.(metadata.FieldSite)
	owner := t.Resolver.ResolveType(site.Owner)
	field := t.Resolver.ResolveField(owner, site.Field)

	if owner != nil && owner.Flags.Has(ir.FlagHasClassConstructor) {
		t.emit(&ir.ClassConstructorGuardInstr{Type: owner})
	}

	if di.Opcode == metadata.OpStsfld {
		val := t.pop()
		t.emit(&ir.StaticFieldAccess{Field: field, Store: val})
		return nil
	}
	dest := t.newTemp()
	t.emit(&ir.StaticFieldAccess{Dest: &dest, Field: field})
	t.push(&ir.TempOperand{Temp: dest})
	return nil
}

func (t *Translator) emitDirectCall(method *ir.Method, receiver ir.Operand, args []ir.Operand) error {
	var dest *ir.Temp
	if method != nil && method.ReturnType != "" && method.ReturnType != "void" {
		d := t.newTemp()
		dest = &d
	}
	t.emit(&ir.Call{Dest: dest, Target: method, Receiver: receiver, Args: args})
	if dest != nil {
		t.push(&ir.TempOperand{Temp: *dest})
	}
	return nil
}

func (t *Translator) emitVirtualCall(method *ir.Method, receiver ir.Operand, args []ir.Operand, ifaceOwner *ir.Type) error {
	var dest *ir.Temp
	if method != nil && method.ReturnType != "" && method.ReturnType != "void" {
		d := t.newTemp()
		dest = &d
	}
	t.emit(&ir.Call{Dest: dest, Target: method, Receiver: receiver, Args: args, Virtual: true, InterfaceFor: ifaceOwner})
	if dest != nil {
		t.push(&ir.TempOperand{Temp: *dest})
	}
	return nil
}

func (t *Translator) emitDelegateInvoke(method *ir.Method, receiver ir.Operand, args []ir.Operand) error {
	var dest *ir.Temp
	if method != nil && method.ReturnType != "" && method.ReturnType != "void" {
		d := t.newTemp()
		dest = &d
	}
	t.emit(&ir.DelegateInvokeInstr{Dest: dest, Delegate: receiver, Args: args})
	if dest != nil {
		t.push(&ir.TempOperand{Temp: *dest})
	}
	return nil
}

func (t *Translator) emitSymbolCall(symbol string, returnType metadata.TypeRef, args []ir.Operand) error {
	var dest *ir.Temp
	if returnType.FullName != "" && returnType.FullName != "System.Void" {
		d := t.newTemp()
		dest = &d
	}
	t.emit(&ir.Call{Dest: dest, TargetSymbol: symbol, Args: args})
	if dest != nil {
		t.push(&ir.TempOperand{Temp: *dest})
	}
	return nil
}
