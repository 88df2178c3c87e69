package bcl

import (
	"fmt"
	"strings"

	"github.com/ilforge/ilforge/internal/abi"
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/metadata"
	"github.com/ilforge/ilforge/internal/translate"
)

// stringFormatInterceptor handles the string.Format overload family and
// interpolated-string construction via DefaultInterpolatedStringHandler,
// both of which lower to the variadic abi.StringFormat runtime primitive
// rather than a managed composite-format parser (spec §4.4 "string
// formatting").
type stringFormatInterceptor struct{}

func isStringFormatOwner(owner metadata.TypeRef) bool {
	n := owner.FullName
	return n == "System.String" || strings.Contains(n, "DefaultInterpolatedStringHandler")
}

func (s *stringFormatInterceptor) Intercept(e *translate.Emission, owner metadata.TypeRef, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand, isNewobj bool) (bool, error) {
	if !isStringFormatOwner(owner) {
		return false, nil
	}

	if strings.Contains(owner.FullName, "DefaultInterpolatedStringHandler") {
		return s.interceptHandler(e, method, receiver, args, isNewobj)
	}

	if isNewobj || method.Name != "Format" {
		return false, nil
	}

	// string.Format(fmt, arg0, ...) forwards the composite-format string
	// and its boxed arguments straight to the variadic runtime primitive.
	dest := e.NewTemp()
	callArgs := make([]string, 0, len(args))
	for _, a := range args {
		callArgs = append(callArgs, operandText(a))
	}
	e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
		"auto* %s = %s(%s);", dest.Name, abi.StringFormat, strings.Join(callArgs, ", "),
	)})
	e.Push(&ir.TempOperand{Temp: dest})
	return true, nil
}

func (s *stringFormatInterceptor) interceptHandler(e *translate.Emission, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand, isNewobj bool) (bool, error) {
	if isNewobj {
		// The handler is a mutable accumulator: an initially-empty
		// fragment list the AppendLiteral/AppendFormatted calls fill in,
		// consumed by ToStringAndClear.
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf("InterpolatedStringHandler %s{};", dest.Name)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}

	switch method.Name {
	case "AppendLiteral":
		if len(args) == 0 {
			return false, nil
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"%s.fragments.push_back(%s);", operandText(receiver), operandText(args[0]),
		)})
		return true, nil

	case "AppendFormatted":
		if len(args) == 0 {
			return false, nil
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"%s.fragments.push_back(%s(%s));", operandText(receiver), abi.ObjectToString, operandText(args[0]),
		)})
		return true, nil

	case "ToStringAndClear":
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"auto* %s = string_concat_all(%s.fragments);", dest.Name, operandText(receiver),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}
	return false, nil
}
