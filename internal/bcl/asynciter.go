package bcl

import (
	"fmt"
	"strings"

	"github.com/ilforge/ilforge/internal/abi"
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/metadata"
	"github.com/ilforge/ilforge/internal/translate"
)

// asyncIteratorInterceptor handles ValueTask/ValueTaskAwaiter and the
// manual-reset value-task source that backs `await foreach` state machines
// (spec §4.4 "async iterator"). A promise source's Reset stashes the backing
// task in a thread-local slot for the value-task constructor that follows it
// (source, token) to pick up.
type asyncIteratorInterceptor struct{}

func isAsyncIteratorOwner(owner metadata.TypeRef) bool {
	n := owner.FullName
	return strings.Contains(n, "ValueTask") ||
		strings.Contains(n, "ManualResetValueTaskSourceCore") ||
		strings.Contains(n, "IValueTaskSource") ||
		strings.Contains(n, "AsyncIteratorMethodBuilder")
}

func (a *asyncIteratorInterceptor) Intercept(e *translate.Emission, owner metadata.TypeRef, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand, isNewobj bool) (bool, error) {
	if !isAsyncIteratorOwner(owner) {
		return false, nil
	}

	if isNewobj {
		switch {
		case strings.Contains(owner.FullName, "ManualResetValueTaskSourceCore"):
			// Default-initialized: no pending task, version zero.
			dest := e.NewTemp()
			e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf("ValueTaskSource %s{nullptr, 0};", dest.Name)})
			e.Push(&ir.TempOperand{Temp: dest})
			return true, nil
		case strings.Contains(owner.FullName, "ValueTask"):
			// ValueTask(source, token) reads the task stashed by the most
			// recent Reset on that source; ValueTask(result) is an
			// already-completed value-task carrying no backing task.
			dest := e.NewTemp()
			if len(args) >= 2 {
				e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
					"ValueTask %s{%s->pending_task, %s};", dest.Name, operandText(args[0]), operandText(args[1]),
				)})
			} else {
				var result ir.Operand
				if len(args) > 0 {
					result = args[0]
				}
				e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
					"ValueTask %s{nullptr, 0}; %s.immediate_result = %s;", dest.Name, dest.Name, operandText(result),
				)})
			}
			e.Push(&ir.TempOperand{Temp: dest})
			return true, nil
		}
		return false, nil
	}

	switch method.Name {
	case "Reset":
		// Stash the pending backing task so a following (source, token)
		// ValueTask constructor can read it.
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"%s->pending_task = %s(); %s->version++;", operandText(receiver), abi.TaskCreatePending, operandText(receiver),
		)})
		return true, nil

	case "SetResult":
		var val ir.Operand
		if len(args) > 0 {
			val = args[0]
		}
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"%s(%s->pending_task, %s);", abi.TaskInitCompleted, operandText(receiver), operandText(val),
		)})
		return true, nil

	case "SetException":
		var val ir.Operand
		if len(args) > 0 {
			val = args[0]
		}
		e.Emit(&ir.Call{TargetSymbol: abi.TaskFault, Args: []ir.Operand{receiver, val}})
		return true, nil

	case "GetResult":
		// An immediately-completed value-task has no backing task and
		// reads its own stored result; otherwise wait on the task and
		// read through it exactly like a Task awaiter.
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"auto %s = %s.pending_task ? (%s(%s.pending_task), %s.pending_task->result) : %s.immediate_result;",
			dest.Name, abi.TaskWait, operandText(receiver), operandText(receiver), operandText(receiver), operandText(receiver),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil

	case "get_IsCompleted":
		dest := e.NewTemp()
		e.Emit(&ir.RawCppInstr{Text: fmt.Sprintf(
			"bool %s = !%s.pending_task || %s(%s.pending_task);", dest.Name, operandText(receiver), abi.TaskIsCompleted, operandText(receiver),
		)})
		e.Push(&ir.TempOperand{Temp: dest})
		return true, nil
	}
	return false, nil
}
