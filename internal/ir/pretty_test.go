package ir

import "testing"

func TestMethodPrettyPrint_Arithmetic(t *testing.T) {
	// ldc.i4.3; ldc.i4.4; add; stloc.0 (spec.md §8 scenario 1)
	loc0 := &Local{Index: 0, Name: "loc_0", DeclaredType: "int32_t"}
	meth := &Method{
		Name:       "Add34",
		ReturnType: "void",
		Locals:     []*Local{loc0},
		Blocks: []*BasicBlock{{
			Label: "entry",
			Instructions: []Instruction{
				&BinaryOp{
					Dest: Temp{Name: "__t0"},
					Op:   OpAdd,
					Lhs:  &LiteralOperand{Value: int64(3), Type: "int32_t"},
					Rhs:  &LiteralOperand{Value: int64(4), Type: "int32_t"},
				},
				&Assign{
					Dest: Temp{Name: "loc_0"},
					RHS:  &TempOperand{Temp: Temp{Name: "__t0"}},
				},
				&ReturnInstr{},
			},
		}},
	}

	got := meth.PrettyPrint()
	want := "method Add34() -> void {\n" +
		"  local loc_0: int32_t\n" +
		"entry:\n" +
		"  __t0 = 3 add 4\n" +
		"  loc_0 = __t0\n" +
		"  return\n" +
		"}"
	if got != want {
		t.Fatalf("pretty print mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatFloat_RoundTrip(t *testing.T) {
	cases := map[float64]string{
		1.5:  "1.5",
		2.0:  "2.0",
		0.0:  "0.0",
		-1.0: "-1.0",
	}
	for in, want := range cases {
		if got := formatFloat(in); got != want {
			t.Errorf("formatFloat(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestModule_AddType_DuplicateNames(t *testing.T) {
	m := NewModule()
	if err := m.AddType(&Type{ManagedFullName: "System.Object", MangledName: "System_Object"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.AddType(&Type{ManagedFullName: "System.Object", MangledName: "Other_Mangled"}); err == nil {
		t.Fatal("expected duplicate managed-name error")
	}
	if err := m.AddType(&Type{ManagedFullName: "System.String", MangledName: "System_Object"}); err == nil {
		t.Fatal("expected duplicate mangled-name error")
	}
}
