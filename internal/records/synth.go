// Package records implements the RecordSynthesizer (spec.md §4.7): it
// replaces nine compiler-generated record methods with hand-emitted IR,
// run as pass 7 of the IR build after pass 6 has already converted (and
// discarded) whatever bytecode body the compiler left behind for them.
//
// Unlike internal/bcl's interceptors, which rewrite a single call site
// mid-translation, a Synthesizer builds a complete method body from
// scratch — there is no bytecode to translate, only the type's field list.
// It follows the same RawCppInstr-plus-manual-temp-counter idiom as the
// interceptors (internal/bcl/nullable.go, stringformat.go) since the
// per-field logic mixes casts, runtime calls and string literals that the
// closed Instruction set has no dedicated variant for.
package records

import (
	"fmt"

	"github.com/ilforge/ilforge/internal/abi"
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/mangle"
)

// Synthesizer builds record method bodies for one build's module.
type Synthesizer struct {
	Mangler *mangle.Mangler

	tempCounter int
}

func NewSynthesizer(m *mangle.Mangler) *Synthesizer {
	return &Synthesizer{Mangler: m}
}

func (s *Synthesizer) newTemp() ir.Temp {
	name := fmt.Sprintf("__t%d", s.tempCounter)
	s.tempCounter++
	return ir.Temp{Name: name}
}

// Synthesize replaces t's nine compiler-generated record methods with
// hand-emitted bodies (spec §4.7). t.InstanceFields, in declaration order,
// are treated as the record's positional properties. The temp counter
// resets per method, matching spec invariant 5 ("__t prefix + monotonic
// counter per method").
func (s *Synthesizer) Synthesize(t *ir.Type) error {
	if !t.Flags.Has(ir.FlagRecord) {
		return fmt.Errorf("records: %s is not a record type", t.ManagedFullName)
	}

	builders := []func(*ir.Type) *ir.Method{
		s.buildToString,
		s.buildGetHashCode,
		s.buildTypedEquals,
		s.buildObjectEquals,
		s.buildClone,
		s.buildOpEquality,
		s.buildOpInequality,
		s.buildPrintMembers,
		s.buildEqualityContract,
	}
	for _, build := range builders {
		s.tempCounter = 0
		m := build(t)
		s.replaceOrAppend(t, m)
	}
	return nil
}

// replaceOrAppend overwrites the shell pass 3 created for m (matching by
// name, arity, and — for the two-argument Equals overloads, which share
// both — the second parameter's declared type, so the typed and
// object-typed overloads never collide) or appends m if pass 3 never
// created a shell for it (e.g. a record with no user-declared namesake).
func (s *Synthesizer) replaceOrAppend(t *ir.Type, m *ir.Method) {
	for i, existing := range t.Methods {
		if sameOverload(existing, m) {
			m.VtableSlot = existing.VtableSlot
			m.Overrides = existing.Overrides
			t.Methods[i] = m
			return
		}
	}
	m.VtableSlot = -1
	t.Methods = append(t.Methods, m)
}

func sameOverload(a, b *ir.Method) bool {
	if a.Name != b.Name || len(a.Params) != len(b.Params) {
		return false
	}
	if len(a.Params) < 2 {
		return true
	}
	return a.Params[1].DeclaredType == b.Params[1].DeclaredType
}

func newBlock(instrs ...ir.Instruction) *ir.BasicBlock {
	return &ir.BasicBlock{Label: "entry", Instructions: instrs}
}

// fieldHashExpr returns the C++ expression computing field's individual
// hash contribution, ahead of the hash·31+h accumulation (spec §4.7).
func fieldHashExpr(m *mangle.Mangler, f *ir.Field, receiverExpr string) string {
	access := fmt.Sprintf("%s->%s", receiverExpr, f.MangledName)
	switch {
	case f.DeclaredType == "System.String":
		return fmt.Sprintf("%s(%s)", abi.StringGetHashCode, access)
	case m.IsPrimitive(f.DeclaredType):
		return fmt.Sprintf("static_cast<int32_t>(%s)", access)
	default:
		return fmt.Sprintf("%s(%s)", abi.ObjectGetHashCode, access)
	}
}

// fieldEqualsExpr returns the C++ expression comparing the same field on
// two receivers under its field-type equality: value equality for
// primitives, string-equals for strings, object-equals for references
// (spec §9 "for all record types R...").
func fieldEqualsExpr(m *mangle.Mangler, f *ir.Field, lhsExpr, rhsExpr string) string {
	lhs := fmt.Sprintf("%s->%s", lhsExpr, f.MangledName)
	rhs := fmt.Sprintf("%s->%s", rhsExpr, f.MangledName)
	switch {
	case f.DeclaredType == "System.String":
		return fmt.Sprintf("%s(%s, %s)", abi.StringEquals, lhs, rhs)
	case m.IsPrimitive(f.DeclaredType):
		return fmt.Sprintf("(%s == %s)", lhs, rhs)
	default:
		return fmt.Sprintf("%s(%s, %s)", abi.ObjectEquals, lhs, rhs)
	}
}

// fieldToStringExpr returns the C++ expression rendering field's value as
// a managed string for ToString's property-formatted output.
func fieldToStringExpr(m *mangle.Mangler, f *ir.Field, receiverExpr string) string {
	access := fmt.Sprintf("%s->%s", receiverExpr, f.MangledName)
	switch f.DeclaredType {
	case "System.String":
		return access
	case "System.Int32", "System.UInt32":
		return fmt.Sprintf("%s(%s)", abi.StringFromInt32, access)
	case "System.Int64", "System.UInt64":
		return fmt.Sprintf("%s(%s)", abi.StringFromInt64, access)
	case "System.Single", "System.Double":
		return fmt.Sprintf("%s(%s)", abi.StringFromDouble, access)
	case "System.Boolean":
		return fmt.Sprintf("%s(%s)", abi.StringFromBool, access)
	case "System.Char":
		return fmt.Sprintf("%s(%s)", abi.StringFromChar, access)
	default:
		if m.IsPrimitive(f.DeclaredType) {
			return fmt.Sprintf("%s(static_cast<int32_t>(%s))", abi.StringFromInt32, access)
		}
		return fmt.Sprintf("%s(%s)", abi.ObjectToString, access)
	}
}
