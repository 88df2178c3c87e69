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

// spanInterceptor handles Span<T>/ReadOnlySpan<T>: a value type that is
// just (pointer, length), constructed either from an array, from an
// array+offset+length slice, or from a raw pointer+length, with
// bounds-checked element access (spec §4.4 "Span").
type spanInterceptor struct{ mangler *mangle.Mangler }

func isSpanOwner(owner metadata.TypeRef) bool {
	return strings.Contains(owner.FullName, "System.Span") || strings.Contains(owner.FullName, "System.ReadOnlySpan")
}

func (s *spanInterceptor) elementType(owner metadata.TypeRef) string {
	if len(owner.GenericArgs) == 1 {
		return s.mangler.GetCppTypeForDeclaration(owner.GenericArgs[0].FullName)
	}
	return "void*"
}

func (s *spanInterceptor) Intercept(e *translate.Emission, owner metadata.TypeRef, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand, isNewobj bool) (bool, error) {
	if !isSpanOwner(owner) {
		return false, nil
	}

	elemTy := s.elementType(owner)

	if isNewobj {
		dest := e.NewTemp()
		switch len(args) {
		case 1:
			// Span(T[] array): pointer is the array's data pointer, length
			// is the array's element count.
			arr := operandText(args[0])
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"Span_%s %s{(%s*)%s(%s), %s(%s)};", elemTy, dest.Name, elemTy, abi.ArrayData, arr, abi.ArrayLength, arr,
			)})
		case 3:
			// Span(T[] array, int start, int length).
			arr, start, length := operandText(args[0]), operandText(args[1]), operandText(args[2])
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"Span_%s %s{(%s*)%s(%s) + %s, %s};", elemTy, dest.Name, elemTy, abi.ArrayData, arr, start, length,
			)})
		case 2:
			// Span(void* pointer, int length) — raw-pointer constructor.
			ptr, length := operandText(args[0]), operandText(args[1])
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"Span_%s %s{(%s*)%s, %s};", elemTy, dest.Name, elemTy, ptr, length,
			)})
		default:
			return false, nil
		}
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}

	switch method.Name {
	case "get_Length":
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf("int32_t %s = %s.length;", dest.Name, operandText(receiver))})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "get_Item":
		if len(args) == 0 {
			return false, nil
		}
		dest := e.NewTemp()
		idx := operandText(args[0])
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"if (!(%s >= 0 && %s < %s.length)) %s(); %s %s = %s.ptr[%s];",
			idx, idx, operandText(receiver), abi.ThrowArgumentOutOfRange, elemTy, dest.Name, operandText(receiver), idx,
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "Slice":
		dest := e.NewTemp()
		if len(args) == 2 {
			start, length := operandText(args[0]), operandText(args[1])
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"Span_%s %s{%s.ptr + %s, %s};", elemTy, dest.Name, operandText(receiver), start, length,
			)})
		} else if len(args) == 1 {
			start := operandText(args[0])
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"Span_%s %s{%s.ptr + %s, %s.length - %s};", elemTy, dest.Name, operandText(receiver), start, operandText(receiver), start,
			)})
		} else {
			return false, nil
		}
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}
	return false, nil
}
