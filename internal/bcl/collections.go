package bcl

import (
	"fmt"
	"strings"

	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/metadata"
	"github.com/ilforge/ilforge/internal/translate"
)

// collectionsInterceptor treats List<T> and Dictionary<TKey,TValue> as
// layout-opaque wrappers over generic-runtime collection ops rather than
// synthesizing their managed field layouts; constructors record an
// element/key/value type-info pointer the runtime op uses to size slots
// (spec §4.4 "List/Dictionary").
type collectionsInterceptor struct{}

func collectionKind(owner metadata.TypeRef) string {
	switch {
	case strings.Contains(owner.FullName, "System.Collections.Generic.List"):
		return "list"
	case strings.Contains(owner.FullName, "System.Collections.Generic.Dictionary"):
		return "dict"
	default:
		return ""
	}
}

func (c *collectionsInterceptor) Intercept(e *translate.Emission, owner metadata.TypeRef, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand, isNewobj bool) (bool, error) {
	kind := collectionKind(owner)
	if kind == "" {
		return false, nil
	}

	if isNewobj {
		dest := e.NewTemp()
		typeInfoArgs := make([]string, 0, len(owner.GenericArgs))
		for _, a := range owner.GenericArgs {
			typeInfoArgs = append(typeInfoArgs, fmt.Sprintf("&TypeInfo_%s", a.FullName))
		}
		switch kind {
		case "list":
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"auto* %s = list_create(%s);", dest.Name, strings.Join(typeInfoArgs, ", "),
			)})
		case "dict":
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"auto* %s = dict_create(%s);", dest.Name, strings.Join(typeInfoArgs, ", "),
			)})
		}
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}

	switch kind {
	case "list":
		return c.interceptList(e, method, receiver, args)
	case "dict":
		return c.interceptDict(e, method, receiver, args)
	}
	return false, nil
}

func (c *collectionsInterceptor) interceptList(e *translate.Emission, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand) (bool, error) {
	switch method.Name {
	case "Add":
		if len(args) == 0 {
			return false, nil
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf("list_add(%s, %s);", operandText(receiver), operandText(args[0]))})
		return true, nil

	case "get_Item":
		if len(args) == 0 {
			return false, nil
		}
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"auto %s = *list_get_ref(%s, %s);", dest.Name, operandText(receiver), operandText(args[0]),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "set_Item":
		if len(args) < 2 {
			return false, nil
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"*list_get_ref(%s, %s) = %s;", operandText(receiver), operandText(args[0]), operandText(args[1]),
		)})
		return true, nil

	case "get_Count":
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf("int32_t %s = list_count(%s);", dest.Name, operandText(receiver))})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "Contains":
		if len(args) == 0 {
			return false, nil
		}
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"bool %s = list_contains(%s, %s);", dest.Name, operandText(receiver), operandText(args[0]),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}
	return false, nil
}

func (c *collectionsInterceptor) interceptDict(e *translate.Emission, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand) (bool, error) {
	switch method.Name {
	case "set_Item", "Add":
		if len(args) < 2 {
			return false, nil
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"dict_set(%s, %s, %s);", operandText(receiver), operandText(args[0]), operandText(args[1]),
		)})
		return true, nil

	case "get_Item":
		if len(args) == 0 {
			return false, nil
		}
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"auto %s = dict_get(%s, %s);", dest.Name, operandText(receiver), operandText(args[0]),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "TryGetValue":
		if len(args) < 2 {
			return false, nil
		}
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"bool %s = dict_try_get_value(%s, %s, %s);", dest.Name, operandText(receiver), operandText(args[0]), operandText(args[1]),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "ContainsKey":
		if len(args) == 0 {
			return false, nil
		}
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"bool %s = dict_contains_key(%s, %s);", dest.Name, operandText(receiver), operandText(args[0]),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "get_Count":
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf("int32_t %s = dict_count(%s);", dest.Name, operandText(receiver))})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}
	return false, nil
}
