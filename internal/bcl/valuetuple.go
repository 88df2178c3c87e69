package bcl

import (
	"fmt"
	"strings"

	"github.com/ilforge/ilforge/internal/abi"
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/mangle"
	"github.com/ilforge/ilforge/internal/metadata"
	"github.com/ilforge/ilforge/internal/translate"
)

// valueTupleInterceptor expands System.ValueTuple<...> of arity 1..7 (with
// Rest as the 8th slot for overflow) into inline field-by-field sequences
// for .ctor/ToString/Equals/GetHashCode (spec §4.4 "ValueTuple").
type valueTupleInterceptor struct{ mangler *mangle.Mangler }

func isValueTupleOwner(owner metadata.TypeRef) bool {
	return strings.HasPrefix(owner.FullName, "System.ValueTuple")
}

func tupleFieldNames(arity int) []string {
	names := make([]string, 0, arity)
	for i := 1; i <= arity && i <= 7; i++ {
		names = append(names, fmt.Sprintf("Item%d", i))
	}
	if arity > 7 {
		names = append(names, "Rest")
	}
	return names
}

func (v *valueTupleInterceptor) Intercept(e *translate.Emission, owner metadata.TypeRef, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand, isNewobj bool) (bool, error) {
	if !isValueTupleOwner(owner) {
		return false, nil
	}
	arity := len(owner.GenericArgs)
	fields := tupleFieldNames(arity)

	if isNewobj {
		dest := e.NewTemp()
		assigns := make([]string, len(fields))
		for i := range fields {
			val := "nullptr"
			if i < len(args) {
				val = operandText(args[i])
			}
			assigns[i] = val
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"auto %s = %s_T{%s};", dest.Name, owner.FullName, strings.Join(assigns, ", "),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}

	switch method.Name {
	case "ToString":
		dest := e.NewTemp()
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = fmt.Sprintf("%s(%s.%s)", abi.ObjectToString, operandText(receiver), f)
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"string* %s = string_concat_all({\"(\", %s, \")\"});", dest.Name, strings.Join(parts, ", \", \", "),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "Equals":
		if len(args) == 0 {
			return false, nil
		}
		other := args[0]
		dest := e.NewTemp()
		clauses := make([]string, len(fields))
		for i, f := range fields {
			clauses[i] = fmt.Sprintf("(%s.%s == %s.%s)", operandText(receiver), f, operandText(other), f)
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"bool %s = %s;", dest.Name, strings.Join(clauses, " && "),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "GetHashCode":
		dest := e.NewTemp()
		var b strings.Builder
		fmt.Fprintf(&b, "int32_t %s = 0;", dest.Name)
		for _, f := range fields {
			fmt.Fprintf(&b, " %s = %s * 31 + generic_hash(%s.%s);", dest.Name, dest.Name, operandText(receiver), f)
		}
		e.Emit(&ir.RawCppInstr{Text: b.String()})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}
	return false, nil
}
