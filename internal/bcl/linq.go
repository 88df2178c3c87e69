package bcl

import (
	"fmt"

	"github.com/ilforge/ilforge/internal/abi"
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/mangle"
	"github.com/ilforge/ilforge/internal/metadata"
	"github.com/ilforge/ilforge/internal/translate"
)

// linqInterceptor lowers Enumerable extension methods on arrays into
// explicit loops rather than allocating managed iterator state machines
// (spec §4.4 "LINQ"). Predicate/selector delegates are invoked through the
// generic delegate-invoke runtime helper, which branches on whether the
// delegate closed over a captured target.
type linqInterceptor struct{ mangler *mangle.Mangler }

func isLinqOwner(owner metadata.TypeRef) bool {
	return owner.FullName == "System.Linq.Enumerable"
}

func (l *linqInterceptor) Intercept(e *translate.Emission, owner metadata.TypeRef, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand, isNewobj bool) (bool, error) {
	if !isLinqOwner(owner) || isNewobj {
		return false, nil
	}
	if len(args) == 0 {
		return false, nil
	}
	source := args[0]

	switch method.Name {
	case "Where":
		if len(args) < 2 {
			return false, nil
		}
		pred := args[1]
		// Two-pass: count matches, allocate a result array of that size,
		// then fill it (spec §4.4).
		count := e.NewTemp()
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"int32_t %s = 0;\n"+
				"for (int32_t __i = 0; __i < %s(%s); __i++) { if (%s(%s, %s(%s, __i))) %s++; }\n"+
				"auto* %s = %s(%s, %s);\n"+
				"{ int32_t __j = 0; for (int32_t __i = 0; __i < %s(%s); __i++) { auto __e = %s(%s, __i); if (%s(%s, __e)) %s(%s, __j++, __e); } }",
			count.Name,
			abi.ArrayLength, operandText(source), abi.DelegateInvoke, operandText(pred), abi.ArrayGet, operandText(source), count.Name,
			dest.Name, abi.ArrayCreate, operandText(source), count.Name,
			abi.ArrayLength, operandText(source), abi.ArrayGet, operandText(source), abi.DelegateInvoke, operandText(pred), abi.ArraySet, dest.Name,
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "Select":
		if len(args) < 2 {
			return false, nil
		}
		selector := args[1]
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"auto* %s = %s(%s, %s(%s));\n"+
				"for (int32_t __i = 0; __i < %s(%s); __i++) { %s(%s, __i, %s(%s, %s(%s, __i))); }",
			dest.Name, abi.ArrayCreate, operandText(source), abi.ArrayLength, operandText(source),
			abi.ArrayLength, operandText(source), abi.ArraySet, dest.Name, abi.DelegateInvoke, operandText(selector), abi.ArrayGet, operandText(source),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "Any":
		dest := e.NewTemp()
		if len(args) >= 2 {
			pred := args[1]
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"bool %s = false;\n"+
					"for (int32_t __i = 0; __i < %s(%s); __i++) { if (%s(%s, %s(%s, __i))) { %s = true; break; } }",
				dest.Name, abi.ArrayLength, operandText(source), abi.DelegateInvoke, operandText(pred), abi.ArrayGet, operandText(source), dest.Name,
			)})
		} else {
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf("bool %s = %s(%s) > 0;", dest.Name, abi.ArrayLength, operandText(source))})
		}
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "Count":
		dest := e.NewTemp()
		if len(args) >= 2 {
			pred := args[1]
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"int32_t %s = 0;\n"+
					"for (int32_t __i = 0; __i < %s(%s); __i++) { if (%s(%s, %s(%s, __i))) %s++; }",
				dest.Name, abi.ArrayLength, operandText(source), abi.DelegateInvoke, operandText(pred), abi.ArrayGet, operandText(source), dest.Name,
			)})
		} else {
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf("int32_t %s = %s(%s);", dest.Name, abi.ArrayLength, operandText(source))})
		}
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "First", "FirstOrDefault":
		dest := e.NewTemp()
		var pred ir.Operand
		if len(args) >= 2 {
			pred = args[1]
		}
		cond := "true"
		if pred != nil {
			cond = fmt.Sprintf("%s(%s, __e)", abi.DelegateInvoke, operandText(pred))
		}
		onMiss := fmt.Sprintf("%s(\"sequence contains no matching element\");", abi.ThrowInvalidOperation)
		if method.Name == "FirstOrDefault" {
			onMiss = fmt.Sprintf("%s = default_value();", dest.Name)
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"auto %s = default_value();\n"+
				"{ bool __found = false; for (int32_t __i = 0; __i < %s(%s); __i++) { auto __e = %s(%s, __i); if (%s) { %s = __e; __found = true; break; } } if (!__found) { %s } }",
			dest.Name, abi.ArrayLength, operandText(source), abi.ArrayGet, operandText(source), cond, dest.Name, onMiss,
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}
	return false, nil
}
