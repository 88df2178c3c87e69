package bcl

import (
	"fmt"
	"strings"

	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/mangle"
	"github.com/ilforge/ilforge/internal/metadata"
	"github.com/ilforge/ilforge/internal/translate"
)

// nullableInterceptor handles System.Nullable<T>'s fixed field layout
// (has-value flag, value): spec §4.4 "Nullable".
type nullableInterceptor struct{ mangler *mangle.Mangler }

func isNullableOwner(owner metadata.TypeRef) bool {
	return strings.HasPrefix(owner.FullName, "System.Nullable")
}

func (n *nullableInterceptor) Intercept(e *translate.Emission, owner metadata.TypeRef, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand, isNewobj bool) (bool, error) {
	if !isNullableOwner(owner) {
		return false, nil
	}

	valueTy := "void*"
	if len(owner.GenericArgs) == 1 {
		valueTy = e.Mangler().GetCppTypeForDeclaration(owner.GenericArgs[0].FullName)
	}

	if isNewobj {
		dest := e.NewTemp()
		var value ir.Operand
		if len(args) > 0 {
			value = args[0]
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"Nullable_%s %s{true, %s};", valueTy, dest.Name, operandText(value),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}

	switch method.Name {
	case "get_HasValue":
		dest := e.NewTemp()
		e.Emit(&ir.FieldAccess{Dest: &dest, Target: receiver, Field: &ir.Field{Name: "has_value", MangledName: "has_value", DeclaredType: "System.Boolean"}})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "get_Value", "GetValueOrDefault":
		// GetValueOrDefault returns the value if has-value, else the
		// default for T (spec §4.4); get_Value is the throwing accessor,
		// whose throw-on-empty path belongs to the runtime primitive it
		// defers to below.
		dest := e.NewTemp()
		if method.Name == "GetValueOrDefault" {
			defaultVal := mangle.GetDefaultValue(valueTy)
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"%s %s = %s.has_value ? %s.value : %s;", valueTy, dest.Name, operandText(receiver), operandText(receiver), defaultVal,
			)})
		} else {
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"%s %s = nullable_get_value(%s);", valueTy, dest.Name, operandText(receiver),
			)})
		}
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "Equals":
		dest := e.NewTemp()
		var other ir.Operand
		if len(args) > 0 {
			other = args[0]
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"bool %s = (%s.has_value == %s.has_value) && (!%s.has_value || %s.value == %s.value);",
			dest.Name, operandText(receiver), operandText(other), operandText(receiver), operandText(receiver), operandText(other),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "GetHashCode":
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"int32_t %s = %s.has_value ? generic_hash(%s.value) : 0;", dest.Name, operandText(receiver), operandText(receiver),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}
	return false, nil
}

func operandText(op ir.Operand) string {
	switch o := op.(type) {
	case nil:
		return "nullptr"
	case *ir.TempOperand:
		return o.Temp.Name
	case *ir.LocalOperand:
		if o.Local != nil && o.Local.Name != "" {
			return o.Local.Name
		}
		return "local"
	case *ir.ParamOperand:
		if o.Param != nil {
			return o.Param.Name
		}
		return "param"
	case *ir.LiteralOperand:
		return fmt.Sprintf("%v", o.Value)
	default:
		return "<?operand>"
	}
}
