package records_test

import (
	"strings"
	"testing"

	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/mangle"
	"github.com/ilforge/ilforge/internal/records"
)

func pointRecord() *ir.Type {
	t := &ir.Type{
		ManagedFullName: "Point",
		MangledName:     "Point",
		ShortName:       "Point",
		Flags:           ir.FlagRecord,
	}
	t.InstanceFields = []*ir.Field{
		{Name: "X", MangledName: "X", DeclaredType: "System.Int32", OwningType: t},
		{Name: "Y", MangledName: "Y", DeclaredType: "System.Int32", OwningType: t},
	}
	return t
}

func findMethod(t *ir.Type, name string, arity int) *ir.Method {
	for _, m := range t.Methods {
		if m.Name == name && len(m.Params) == arity {
			return m
		}
	}
	return nil
}

func rawText(m *ir.Method) string {
	var b strings.Builder
	for _, i := range m.Blocks[0].Instructions {
		if raw, ok := i.(*ir.RawCppInstr); ok {
			b.WriteString(raw.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func TestSynthesize_RejectsNonRecordType(t *testing.T) {
	s := records.NewSynthesizer(mangle.New())
	plain := &ir.Type{ManagedFullName: "Plain", MangledName: "Plain"}
	if err := s.Synthesize(plain); err == nil {
		t.Fatal("expected an error for a non-record type")
	}
}

func TestSynthesize_ToStringFormatsFields(t *testing.T) {
	s := records.NewSynthesizer(mangle.New())
	p := pointRecord()
	if err := s.Synthesize(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := findMethod(p, "ToString", 1)
	if m == nil {
		t.Fatal("expected a synthesized ToString method")
	}
	text := rawText(m)
	for _, want := range []string{`"Point { "`, `"X = "`, `"Y = "`, `" }"`} {
		if !strings.Contains(text, want) {
			t.Errorf("expected ToString body to contain %s, got:\n%s", want, text)
		}
	}
	last := m.Blocks[0].Instructions[len(m.Blocks[0].Instructions)-1]
	if _, ok := last.(*ir.ReturnInstr); !ok {
		t.Fatalf("expected ToString to end with a return, got %T", last)
	}
}

func TestSynthesize_GetHashCodeChainsFields(t *testing.T) {
	s := records.NewSynthesizer(mangle.New())
	p := pointRecord()
	if err := s.Synthesize(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := findMethod(p, "GetHashCode", 1)
	if m == nil {
		t.Fatal("expected a synthesized GetHashCode method")
	}
	text := rawText(m)
	if !strings.Contains(text, "= 17;") {
		t.Errorf("expected GetHashCode to seed from 17, got:\n%s", text)
	}
	if strings.Count(text, "* 31 +") != 2 {
		t.Errorf("expected two field accumulation steps for Point, got:\n%s", text)
	}
}

func TestSynthesize_TypedEqualsComparesAllFields(t *testing.T) {
	s := records.NewSynthesizer(mangle.New())
	p := pointRecord()
	if err := s.Synthesize(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := findMethod(p, "Equals", 2)
	if m == nil {
		t.Fatal("expected a synthesized typed Equals(Point) method")
	}
	text := rawText(m)
	if !strings.Contains(text, "self->X == other->X") || !strings.Contains(text, "self->Y == other->Y") {
		t.Errorf("expected typed Equals to compare both fields by value, got:\n%s", text)
	}
}

func TestSynthesize_ObjectEqualsGatesOnNullAndTypeCheck(t *testing.T) {
	s := records.NewSynthesizer(mangle.New())
	p := pointRecord()
	if err := s.Synthesize(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := findMethod(p, "Equals", 2)
	var objEquals *ir.Method
	for _, cand := range p.Methods {
		if cand.Name == "Equals" && len(cand.Params) == 2 && cand.Params[1].DeclaredType == "object*" {
			objEquals = cand
		}
	}
	if objEquals == nil {
		t.Fatal("expected a synthesized object-typed Equals(object) method")
	}
	if objEquals == m {
		t.Fatal("typed and object Equals overloads must be distinct methods")
	}
	text := rawText(objEquals)
	if !strings.Contains(text, "!= nullptr") || !strings.Contains(text, "object_is_instance_of") {
		t.Errorf("expected object Equals to null-check then type-check, got:\n%s", text)
	}
}

func TestSynthesize_OpInequalityNegatesOpEquality(t *testing.T) {
	s := records.NewSynthesizer(mangle.New())
	p := pointRecord()
	if err := s.Synthesize(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eq := findMethod(p, "op_Equality", 2)
	neq := findMethod(p, "op_Inequality", 2)
	if eq == nil || neq == nil {
		t.Fatal("expected both op_Equality and op_Inequality to be synthesized")
	}
	if !strings.Contains(rawText(neq), "!(") {
		t.Errorf("expected op_Inequality to negate op_Equality's expression, got:\n%s", rawText(neq))
	}
}

func TestSynthesize_CloneOnValueTypeReturnsSelf(t *testing.T) {
	s := records.NewSynthesizer(mangle.New())
	p := pointRecord()
	p.Flags |= ir.FlagValueType
	if err := s.Synthesize(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := findMethod(p, "Clone", 1)
	if m == nil {
		t.Fatal("expected a synthesized Clone method")
	}
	ret, ok := m.Blocks[0].Instructions[0].(*ir.ReturnInstr)
	if !ok || len(m.Blocks[0].Instructions) != 1 {
		t.Fatalf("expected a value-type Clone to be a single return of self, got %+v", m.Blocks[0].Instructions)
	}
	if _, ok := ret.Value.(*ir.ParamOperand); !ok {
		t.Errorf("expected Clone to return the self parameter unchanged, got %T", ret.Value)
	}
}

func TestSynthesize_CloneOnReferenceTypeAllocatesAndCopiesFields(t *testing.T) {
	s := records.NewSynthesizer(mangle.New())
	p := pointRecord()
	if err := s.Synthesize(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := findMethod(p, "Clone", 1)
	if m == nil {
		t.Fatal("expected a synthesized Clone method")
	}
	text := rawText(m)
	if !strings.Contains(text, "gc::alloc") {
		t.Errorf("expected reference-type Clone to GC-allocate, got:\n%s", text)
	}
	if !strings.Contains(text, "->X = self->X") || !strings.Contains(text, "->Y = self->Y") {
		t.Errorf("expected reference-type Clone to copy both fields, got:\n%s", text)
	}
}

func TestSynthesize_PreservesExistingVtableSlotOnReplace(t *testing.T) {
	s := records.NewSynthesizer(mangle.New())
	p := pointRecord()
	p.Methods = append(p.Methods, &ir.Method{Name: "ToString", Params: []*ir.Param{{Name: "self"}}, VtableSlot: 4})
	if err := s.Synthesize(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := findMethod(p, "ToString", 1)
	if m.VtableSlot != 4 {
		t.Errorf("expected replaced ToString to keep vtable slot 4, got %d", m.VtableSlot)
	}
}
