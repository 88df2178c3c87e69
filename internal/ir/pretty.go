package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// PrettyPrint renders a method body in a debug-readable linear form. It is
// used by build-pipeline tests to assert on emitted instruction sequences
// without depending on the (separately specified) C++ emitter.
func (m *Method) PrettyPrint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "method %s(", m.Name)
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.Name + ": " + p.DeclaredType
	}
	b.WriteString(strings.Join(params, ", "))
	b.WriteString(") -> ")
	b.WriteString(m.ReturnType)
	b.WriteString(" {\n")

	for _, local := range m.Locals {
		fmt.Fprintf(&b, "  local %s: %s\n", localName(local), local.DeclaredType)
	}

	for _, block := range m.Blocks {
		fmt.Fprintf(&b, "%s:\n", block.Label)
		for _, instr := range block.Instructions {
			b.WriteString("  ")
			b.WriteString(prettyInstr(instr))
			b.WriteString("\n")
		}
	}
	b.WriteString("}")
	return b.String()
}

func localName(l *Local) string {
	if l.Name != "" {
		return l.Name
	}
	return "loc_" + strconv.Itoa(l.Index)
}

func operandString(op Operand) string {
	switch o := op.(type) {
	case *TempOperand:
		return o.Temp.Name
	case *LocalOperand:
		return localName(o.Local)
	case *ParamOperand:
		return o.Param.Name
	case *LiteralOperand:
		return literalString(o)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("<?operand:%T>", op)
	}
}

func literalString(lit *LiteralOperand) string {
	switch v := lit.Value.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatFloat(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return strconv.Quote(v)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("<?literal:%T>", v)
	}
}

// formatFloat preserves NaN/±∞ and otherwise uses the shortest round-trip
// decimal with an explicit decimal point (spec §4.3 edge case).
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") { // n/N catches Inf/NaN spellings
		s += ".0"
	}
	return s
}

func prettyInstr(instr Instruction) string {
	switch i := instr.(type) {
	case *Assign:
		return fmt.Sprintf("%s = %s", i.Dest.Name, operandString(i.RHS))
	case *DeclareLocal:
		return fmt.Sprintf("declare %s: %s", localName(i.Local), i.Local.DeclaredType)
	case *ReturnInstr:
		if i.Value == nil {
			return "return"
		}
		return "return " + operandString(i.Value)
	case *BinaryOp:
		return fmt.Sprintf("%s = %s %s %s", i.Dest.Name, operandString(i.Lhs), i.Op, operandString(i.Rhs))
	case *UnaryOp:
		return fmt.Sprintf("%s = %s %s", i.Dest.Name, i.Op, operandString(i.Operand))
	case *Call:
		args := make([]string, len(i.Args))
		for j, a := range i.Args {
			args[j] = operandString(a)
		}
		name := i.TargetSymbol
		if name == "" && i.Target != nil {
			name = i.Target.MangledName
		}
		prefix := ""
		if i.Dest != nil {
			prefix = i.Dest.Name + " = "
		}
		kind := "call"
		if i.Virtual {
			kind = "callvirt"
		}
		return fmt.Sprintf("%s%s %s(%s)", prefix, kind, name, strings.Join(args, ", "))
	case *NewObject:
		args := make([]string, len(i.Args))
		for j, a := range i.Args {
			args[j] = operandString(a)
		}
		return fmt.Sprintf("%s = new %s(%s)", i.Dest.Name, i.Type.MangledName, strings.Join(args, ", "))
	case *Branch:
		return "br " + i.Target
	case *ConditionalBranch:
		return fmt.Sprintf("brif %s -> %s, %s", operandString(i.Condition), i.IfTrue, i.IfFalse)
	case *LabelInstr:
		return i.Name + ":"
	case *SwitchInstr:
		return fmt.Sprintf("switch %s", operandString(i.Selector))
	case *FieldAccess:
		if i.Store != nil {
			return fmt.Sprintf("%s.%s = %s", operandString(i.Target), i.Field.Name, operandString(i.Store))
		}
		return fmt.Sprintf("%s = %s.%s", i.Dest.Name, operandString(i.Target), i.Field.Name)
	case *StaticFieldAccess:
		if i.Store != nil {
			return fmt.Sprintf("%s = %s", i.Field.MangledName, operandString(i.Store))
		}
		return fmt.Sprintf("%s = %s", i.Dest.Name, i.Field.MangledName)
	case *ArrayAccess:
		if i.Store != nil {
			return fmt.Sprintf("%s[%s] = %s", operandString(i.Array), operandString(i.Index), operandString(i.Store))
		}
		return fmt.Sprintf("%s = %s[%s]", i.Dest.Name, operandString(i.Array), operandString(i.Index))
	case *CastInstr:
		kind := "cast"
		if i.Kind == CastSafe {
			kind = "as"
		}
		return fmt.Sprintf("%s = %s %s %s", i.Dest.Name, kind, operandString(i.Value), i.TargetTy.MangledName)
	case *ConversionInstr:
		return fmt.Sprintf("%s = conv %s -> %s", i.Dest.Name, operandString(i.Value), i.TargetTy)
	case *NullCheckInstr:
		return "nullcheck " + operandString(i.Value)
	case *InitValueTypeInstr:
		return fmt.Sprintf("initobj %s: %s", operandString(i.Target), i.Type.MangledName)
	case *BoxInstr:
		return fmt.Sprintf("%s = box %s", i.Dest.Name, operandString(i.Value))
	case *UnboxInstr:
		return fmt.Sprintf("%s = unbox %s", i.Dest.Name, operandString(i.Value))
	case *ClassConstructorGuardInstr:
		return "cctor_guard " + i.Type.MangledName
	case *TryBeginInstr:
		return fmt.Sprintf("try_begin #%d", i.RegionID)
	case *CatchBeginInstr:
		return fmt.Sprintf("catch_begin #%d (%s)", i.RegionID, i.ExceptionTemp.Name)
	case *FinallyBeginInstr:
		return fmt.Sprintf("finally_begin #%d", i.RegionID)
	case *TryEndInstr:
		return fmt.Sprintf("try_end #%d", i.RegionID)
	case *ThrowInstr:
		if i.Value == nil {
			return "throw"
		}
		return "throw " + operandString(i.Value)
	case *RethrowInstr:
		return "rethrow"
	case *RawCppInstr:
		return "raw: " + i.Text
	case *LoadFunctionPointerInstr:
		name := i.Symbol
		if name == "" && i.Method != nil {
			name = i.Method.MangledName
		}
		return fmt.Sprintf("%s = ldftn %s", i.Dest.Name, name)
	case *DelegateCreateInstr:
		return fmt.Sprintf("%s = newdelegate %s::%s", i.Dest.Name, i.DelegateType.MangledName, i.Method.Name)
	case *DelegateInvokeInstr:
		prefix := ""
		if i.Dest != nil {
			prefix = i.Dest.Name + " = "
		}
		return fmt.Sprintf("%sinvoke %s", prefix, operandString(i.Delegate))
	default:
		return fmt.Sprintf("<?instr:%T>", instr)
	}
}
