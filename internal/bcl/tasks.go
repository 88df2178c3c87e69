package bcl

import (
	"fmt"
	"strings"

	"github.com/ilforge/ilforge/internal/abi"
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/metadata"
	"github.com/ilforge/ilforge/internal/translate"
)

// taskInterceptor is the largest BclInterceptors subsystem (spec §4.4
// "Task/awaiter/builder"): the async-method-builder/task/awaiter trio.
type taskInterceptor struct{}

func isTaskFamilyOwner(owner metadata.TypeRef) bool {
	n := owner.FullName
	return strings.Contains(n, "Tasks.Task") ||
		strings.Contains(n, "AsyncTaskMethodBuilder") ||
		strings.Contains(n, "TaskAwaiter")
}

func (tk *taskInterceptor) Intercept(e *translate.Emission, owner metadata.TypeRef, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand, isNewobj bool) (bool, error) {
	if !isTaskFamilyOwner(owner) {
		return false, nil
	}

	isGeneric := len(owner.GenericArgs) == 1

	switch method.Name {
	case "Create":
		// The builder's Create factory allocates a task object sized to
		// hold a result field (the inherited task struct is too small for
		// generic results) and initializes it as pending (spec §4.4).
		dest := e.NewTemp()
		symbol := abi.TaskCreatePending
		if isGeneric {
			resultTy := e.Mangler().GetCppTypeForDeclaration(owner.GenericArgs[0].FullName)
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"auto* %s = %s<Task_%s>(); %s(%s);", dest.Name, abi.GCAlloc, resultTy, abi.TaskInitPending, dest.Name,
			)})
		} else {
			e.Emit(&ir.Call{Dest: &dest, TargetSymbol: symbol})
		}
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "Start":
		// Start<TSM>(ref TSM sm) calls the state machine's move-next
		// directly. Reference-typed state machines require stripping an
		// address-of prefix because the pointer variable itself is the
		// argument (spec §4.4).
		if len(args) == 0 {
			return false, nil
		}
		sm := operandText(args[0])
		sm = strings.TrimPrefix(sm, "&")
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf("%s->MoveNext();", sm)})
		return true, nil

	case "AwaitUnsafeOnCompleted", "AwaitOnCompleted":
		// Registers a continuation with the awaiter's task, converting the
		// state-machine move-next into a type-erased function pointer.
		if len(args) < 2 {
			return false, nil
		}
		awaiter := operandText(args[0])
		sm := strings.TrimPrefix(operandText(args[1]), "&")
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"%s(%s->task, make_continuation(%s, &decltype(*%s)::MoveNext));", abi.TaskAddContinuation, awaiter, sm, sm,
		)})
		return true, nil

	case "SetResult":
		if isGeneric && len(args) > 0 {
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"%s->result = %s; %s(%s);", operandText(receiver), operandText(args[0]), abi.TaskComplete, operandText(receiver),
			)})
		} else {
			e.Emit(&ir.Call{TargetSymbol: abi.TaskComplete, Args: []ir.Operand{receiver}})
		}
		return true, nil

	case "SetException":
		var arg ir.Operand
		if len(args) > 0 {
			arg = args[0]
		}
		e.Emit(&ir.Call{TargetSymbol: abi.TaskFault, Args: []ir.Operand{receiver, arg}})
		return true, nil

	case "GetResult":
		// Waits on the task; if faulted with an attached exception,
		// throws it; otherwise reads the result field (spec §4.4).
		dest := e.NewTemp()
		if isGeneric {
			resultTy := e.Mangler().GetCppTypeForDeclaration(owner.GenericArgs[0].FullName)
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"%s(%s->task); if (task_is_faulted(%s->task)) %s(%s->task); %s %s = %s->result;",
				abi.TaskWait, operandText(receiver), operandText(receiver), abi.ThrowException, operandText(receiver), resultTy, dest.Name, operandText(receiver),
			)})
		} else {
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
				"%s(%s); if (task_is_faulted(%s)) %s(%s);", abi.TaskWait, operandText(receiver), operandText(receiver), abi.ThrowException, operandText(receiver),
			)})
		}
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "FromResult":
		// Task.FromResult<T> allocates a correctly-sized task, marks it
		// completed, stores the result (spec §4.4).
		dest := e.NewTemp()
		var val ir.Operand
		if len(args) > 0 {
			val = args[0]
		}
		resultTy := "void*"
		if isGeneric {
			resultTy = e.Mangler().GetCppTypeForDeclaration(owner.GenericArgs[0].FullName)
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"auto* %s = %s<Task_%s>(); %s(%s, %s);", dest.Name, abi.GCAlloc, resultTy, abi.TaskInitCompleted, dest.Name, operandText(val),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "get_CompletedTask":
		// Task.CompletedTask hands back the runtime's cached already-done
		// void task instead of allocating a fresh one per access.
		dest := e.NewTemp()
		e.Emit(&ir.Call{Dest: &dest, TargetSymbol: abi.TaskGetCompleted})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "Delay":
		return tk.forwardStatic(e, abi.TaskDelay, args)
	case "Run":
		return tk.forwardStatic(e, abi.TaskRun, args)
	case "WhenAll":
		return tk.forwardStatic(e, abi.TaskWhenAll, args)
	case "WhenAny":
		return tk.forwardStatic(e, abi.TaskWhenAny, args)
	case "get_IsCompleted":
		dest := e.NewTemp()
		e.Emit(&ir.Call{Dest: &dest, TargetSymbol: abi.TaskIsCompleted, Args: []ir.Operand{receiver}})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}
	return false, nil
}

func (tk *taskInterceptor) forwardStatic(e *translate.Emission, symbol string, args []ir.Operand) (bool, error) {
	dest := e.NewTemp()
	e.Emit(&ir.Call{Dest: &dest, TargetSymbol: symbol, Args: args})
	e.Push(&ir.TempOperand{Temp: dest})
	return true, nil
}
