package bcl

import (
	"fmt"
	"strings"

	"github.com/ilforge/ilforge/internal/abi"
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/metadata"
	"github.com/ilforge/ilforge/internal/translate"
)

// reflectionInterceptor routes Type/MethodInfo/FieldInfo/ParameterInfo/
// MemberInfo member accesses to the fixed runtime type-info table rather
// than synthesizing reflective metadata objects (spec §4.4 "reflection":
// "no synthesized reflective metadata").
type reflectionInterceptor struct{}

func isReflectionOwner(owner metadata.TypeRef) bool {
	n := owner.FullName
	return n == "System.Type" || n == "System.Object" ||
		strings.HasSuffix(n, "MethodInfo") ||
		strings.HasSuffix(n, "FieldInfo") ||
		strings.HasSuffix(n, "ParameterInfo") ||
		strings.HasSuffix(n, "MemberInfo")
}

func (r *reflectionInterceptor) Intercept(e *translate.Emission, owner metadata.TypeRef, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand, isNewobj bool) (bool, error) {
	if !isReflectionOwner(owner) || isNewobj {
		return false, nil
	}

	switch method.Name {
	case "GetType":
		// object.GetType() reads the type-info pointer already stashed in
		// the object header by the allocator.
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf("auto* %s = %s(%s);", dest.Name, abi.ObjectGetTypeManaged, operandText(receiver))})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "get_Name":
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf("auto* %s = %s->name;", dest.Name, operandText(receiver))})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "get_FullName":
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf("auto* %s = %s->full_name;", dest.Name, operandText(receiver))})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "get_BaseType":
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf("auto* %s = %s->base_type;", dest.Name, operandText(receiver))})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "IsInstanceOfType":
		if len(args) == 0 {
			return false, nil
		}
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"bool %s = %s(%s, %s);", dest.Name, abi.ObjectIsInstanceOf, operandText(args[0]), operandText(receiver),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "Invoke":
		// MethodInfo.Invoke(target, args) dispatches through the
		// reflection method table's type-erased thunk.
		dest := e.NewTemp()
		var target, argv ir.Operand
		if len(args) > 0 {
			target = args[0]
		}
		if len(args) > 1 {
			argv = args[1]
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"auto %s = %s->thunk(%s, %s);", dest.Name, operandText(receiver), operandText(target), operandText(argv),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "GetValue":
		// FieldInfo.GetValue(target) reads through the field table's
		// recorded byte offset rather than a synthesized accessor.
		dest := e.NewTemp()
		var target ir.Operand
		if len(args) > 0 {
			target = args[0]
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"auto %s = reflection_field_get(%s, %s);", dest.Name, operandText(receiver), operandText(target),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "SetValue":
		if len(args) < 2 {
			return false, nil
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"reflection_field_set(%s, %s, %s);", operandText(receiver), operandText(args[0]), operandText(args[1]),
		)})
		return true, nil
	}
	return false, nil
}
