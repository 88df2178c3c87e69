package bcl

import (
	"fmt"
	"strings"

	"github.com/ilforge/ilforge/internal/abi"
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/metadata"
	"github.com/ilforge/ilforge/internal/translate"
)

// exceptionDispatchInterceptor handles ExceptionDispatchInfo, which holds a
// caught exception so it can be rethrown later with its original stack
// trace intact (spec §4.4 "exception-dispatch"). Capture declares a local
// ExceptionDispatchInfo value holding the exception reference; it does not
// allocate a heap object. Throw defers to the runtime throw
// primitive with the captured exception rather than synthesizing a new one.
type exceptionDispatchInterceptor struct{}

func isExceptionDispatchOwner(owner metadata.TypeRef) bool {
	return strings.Contains(owner.FullName, "ExceptionDispatchInfo")
}

func (x *exceptionDispatchInterceptor) Intercept(e *translate.Emission, owner metadata.TypeRef, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand, isNewobj bool) (bool, error) {
	if !isExceptionDispatchOwner(owner) {
		return false, nil
	}

	switch {
	case method.Name == "Capture":
		if len(args) == 0 {
			return false, nil
		}
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"ExceptionDispatchInfo %s{%s};", dest.Name, operandText(args[0]),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case method.Name == "Throw":
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"%s(%s.captured);", abi.ThrowException, operandText(receiver),
		)})
		return true, nil

	case method.Name == "get_SourceException":
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf("auto %s = %s.captured;", dest.Name, operandText(receiver))})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}
	return false, nil
}
