package translate

import "github.com/ilforge/ilforge/internal/ir"

// resolveVirtualSlot reports whether a callvirt against target resolves
// through an interface map (interfaceOwner non-nil) or through the
// declaring type's own vtable (spec §4.3 "Virtual-dispatch resolution").
//
// The actual slot index is recomputed by the emitter from the finished
// Module (position in interfaceOwner.Methods, or name+parameter-type match
// against target.OwningType.Vtable); the translator's only job is to decide
// *whether* this call is virtual and, if so, which interface (if any) it
// dispatches through.
func resolveVirtualSlot(receiverStaticType *ir.Type, target *ir.Method) (virtual bool, interfaceOwner *ir.Type) {
	if target == nil || !target.IsVirtual() {
		return false, nil
	}
	if receiverStaticType != nil && receiverStaticType.IsInterface() {
		return true, receiverStaticType
	}
	if target.OwningType != nil && target.OwningType.IsInterface() {
		return true, target.OwningType
	}
	return true, nil
}

// findOverride looks for a value type's own override of an interface
// method by name (spec §4.3's constrained-call rule: "if the value type
// defines an override of the target method, emit a direct call").
func findOverride(valueType *ir.Type, methodName string) *ir.Method {
	for _, m := range valueType.Methods {
		if m.Name == methodName {
			return m
		}
	}
	for _, ov := range valueType.Methods {
		for _, o := range ov.Overrides {
			if o.MethodName == methodName {
				return ov
			}
		}
	}
	return nil
}
