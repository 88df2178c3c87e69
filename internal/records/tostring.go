package records

import (
	"fmt"

	"github.com/ilforge/ilforge/internal/abi"
	"github.com/ilforge/ilforge/internal/ir"
)

// selfParam builds the implicit receiver parameter every synthesized
// instance method needs. Named "self" rather than "this" since the latter
// is a reserved C++ keyword the mangler would otherwise have to escape.
func selfParam(t *ir.Type) *ir.Param {
	declared := t.MangledName
	if !t.IsValueType() {
		declared += "*"
	}
	return &ir.Param{Name: "self", DeclaredType: declared, ResolvedType: t}
}

func recordFields(t *ir.Type) []*ir.Field {
	return t.InstanceFields
}

// buildToString synthesizes the property-formatted ToString: "TypeName { A
// = 1, B = 2 }" (spec §4.7).
func (s *Synthesizer) buildToString(t *ir.Type) *ir.Method {
	fields := recordFields(t)
	header := t.ShortName + " { "

	var instrs []ir.Instruction
	acc := s.newTemp()
	instrs = append(instrs, &ir.RawCppInstr{Text: fmt.Sprintf(
		"auto* %s = %s(%s);", acc.Name, abi.StringLiteral, cppStringLiteral(header),
	)})

	for i, f := range fields {
		label := f.Name + " = "
		labelTemp := s.newTemp()
		instrs = append(instrs, &ir.RawCppInstr{Text: fmt.Sprintf(
			"auto* %s = %s(%s, %s(%s));", labelTemp.Name, abi.StringConcat, acc.Name, abi.StringLiteral, cppStringLiteral(label),
		)})

		valueTemp := s.newTemp()
		instrs = append(instrs, &ir.RawCppInstr{Text: fmt.Sprintf(
			"auto* %s = %s(%s, %s);", valueTemp.Name, abi.StringConcat, labelTemp.Name, fieldToStringExpr(s.Mangler, f, "self"),
		)})

		sep := ", "
		if i == len(fields)-1 {
			sep = " }"
		}
		sepTemp := s.newTemp()
		instrs = append(instrs, &ir.RawCppInstr{Text: fmt.Sprintf(
			"auto* %s = %s(%s, %s(%s));", sepTemp.Name, abi.StringConcat, valueTemp.Name, abi.StringLiteral, cppStringLiteral(sep),
		)})
		acc = sepTemp
	}

	if len(fields) == 0 {
		closing := s.newTemp()
		instrs = append(instrs, &ir.RawCppInstr{Text: fmt.Sprintf(
			"auto* %s = %s(%s, %s(%s));", closing.Name, abi.StringConcat, acc.Name, abi.StringLiteral, cppStringLiteral("}"),
		)})
		acc = closing
	}

	instrs = append(instrs, &ir.ReturnInstr{Value: &ir.TempOperand{Temp: acc}})

	return &ir.Method{
		Name:         "ToString",
		MangledName:  t.MangledName + "__ToString",
		ReturnType:   "string*",
		Params:       []*ir.Param{selfParam(t)},
		Blocks:       []*ir.BasicBlock{newBlock(instrs...)},
		Flags:        ir.MFlagVirtual,
		BodyConverted: true,
		OwningType:   t,
	}
}

// cppStringLiteral renders a Go string as a double-quoted C++ string
// literal, escaping backslashes and quotes.
func cppStringLiteral(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	out = append(out, '"')
	return string(out)
}
