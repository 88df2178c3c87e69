package records

import (
	"fmt"

	"github.com/ilforge/ilforge/internal/abi"
	"github.com/ilforge/ilforge/internal/ir"
)

// buildTypedEquals synthesizes the element-wise Equals(T other) overload:
// true iff every field pair compares equal under its field-type equality
// (spec §4.7, §9 decision on asymmetric dispatch).
func (s *Synthesizer) buildTypedEquals(t *ir.Type) *ir.Method {
	fields := recordFields(t)
	expr := "true"
	for _, f := range fields {
		expr = fmt.Sprintf("%s && %s", expr, fieldEqualsExpr(s.Mangler, f, "self", "other"))
	}

	dest := s.newTemp()
	instrs := []ir.Instruction{
		&ir.RawCppInstr{Text: fmt.Sprintf("bool %s = %s;", dest.Name, expr)},
		&ir.ReturnInstr{Value: &ir.TempOperand{Temp: dest}},
	}

	other := &ir.Param{Name: "other", DeclaredType: selfParam(t).DeclaredType, ResolvedType: t}
	return &ir.Method{
		Name:         "Equals",
		MangledName:  t.MangledName + "__Equals_typed",
		ReturnType:   "bool",
		Params:       []*ir.Param{selfParam(t), other},
		Blocks:       []*ir.BasicBlock{newBlock(instrs...)},
		Flags:        ir.MFlagVirtual,
		BodyConverted: true,
		OwningType:   t,
	}
}

// buildObjectEquals synthesizes the object-typed Equals(object) override:
// null-check, type-check via is-instance-of against the declared record
// type, then delegate to the typed Equals (spec §4.7). The Open Question on
// symmetric vs. asymmetric dispatch is resolved here: the check runs only
// against the argument's runtime type, never the receiver's (DESIGN.md).
func (s *Synthesizer) buildObjectEquals(t *ir.Type) *ir.Method {
	obj := &ir.Param{Name: "obj", DeclaredType: "object*"}
	dest := s.newTemp()

	instrs := []ir.Instruction{
		&ir.RawCppInstr{Text: fmt.Sprintf(
			"bool %s = (%s != nullptr) && %s(%s, &TypeInfo_%s) && self->%s(static_cast<%s>(%s));",
			dest.Name, obj.Name, abi.ObjectIsInstanceOf, obj.Name, t.MangledName,
			t.MangledName+"__Equals_typed", selfParam(t).DeclaredType, obj.Name,
		)},
		&ir.ReturnInstr{Value: &ir.TempOperand{Temp: dest}},
	}

	return &ir.Method{
		Name:         "Equals",
		MangledName:  t.MangledName + "__Equals_object",
		ReturnType:   "bool",
		Params:       []*ir.Param{selfParam(t), obj},
		Blocks:       []*ir.BasicBlock{newBlock(instrs...)},
		Flags:        ir.MFlagVirtual,
		BodyConverted: true,
		OwningType:   t,
	}
}

// buildOpEquality synthesizes the static op_Equality operator: null-short-
// circuit then delegate to the typed Equals (spec §4.7).
func (s *Synthesizer) buildOpEquality(t *ir.Type) *ir.Method {
	return s.buildComparisonOperator(t, "op_Equality", false)
}

// buildOpInequality synthesizes op_Inequality as the negation of
// op_Equality's result.
func (s *Synthesizer) buildOpInequality(t *ir.Type) *ir.Method {
	return s.buildComparisonOperator(t, "op_Inequality", true)
}

func (s *Synthesizer) buildComparisonOperator(t *ir.Type, name string, negate bool) *ir.Method {
	declared := selfParam(t).DeclaredType
	left := &ir.Param{Name: "left", DeclaredType: declared, ResolvedType: t}
	right := &ir.Param{Name: "right", DeclaredType: declared, ResolvedType: t}

	dest := s.newTemp()
	var body string
	if t.IsValueType() {
		// Value-type records can never be null; equality is always the
		// direct field-wise comparison.
		body = fmt.Sprintf("left.%s(right)", t.MangledName+"__Equals_typed")
	} else {
		body = fmt.Sprintf("(left == nullptr || right == nullptr) ? (left == right) : left->%s(right)", t.MangledName+"__Equals_typed")
	}
	if negate {
		body = "!(" + body + ")"
	}

	instrs := []ir.Instruction{
		&ir.RawCppInstr{Text: fmt.Sprintf("bool %s = %s;", dest.Name, body)},
		&ir.ReturnInstr{Value: &ir.TempOperand{Temp: dest}},
	}

	return &ir.Method{
		Name:         name,
		MangledName:  t.MangledName + "__" + name,
		ReturnType:   "bool",
		Params:       []*ir.Param{left, right},
		Blocks:       []*ir.BasicBlock{newBlock(instrs...)},
		Flags:        ir.MFlagStatic | ir.MFlagOperator,
		BodyConverted: true,
		OwningType:   t,
	}
}

// buildEqualityContract synthesizes the protected EqualityContract property
// getter, returning the address of the record's own type-info (spec §4.7).
func (s *Synthesizer) buildEqualityContract(t *ir.Type) *ir.Method {
	instrs := []ir.Instruction{
		&ir.RawCppInstr{Text: fmt.Sprintf("return reinterpret_cast<void*>(&TypeInfo_%s);", t.MangledName)},
	}
	return &ir.Method{
		Name:         "get_EqualityContract",
		MangledName:  t.MangledName + "__get_EqualityContract",
		ReturnType:   "void*",
		Params:       []*ir.Param{selfParam(t)},
		Blocks:       []*ir.BasicBlock{newBlock(instrs...)},
		Flags:        ir.MFlagVirtual,
		BodyConverted: true,
		OwningType:   t,
	}
}
