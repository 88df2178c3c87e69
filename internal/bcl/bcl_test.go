package bcl_test

import (
	"strings"
	"testing"

	"github.com/ilforge/ilforge/internal/bcl"
	"github.com/ilforge/ilforge/internal/diag"
	"github.com/ilforge/ilforge/internal/icall"
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/mangle"
	"github.com/ilforge/ilforge/internal/metadata"
	"github.com/ilforge/ilforge/internal/translate"
)

type fakeResolver struct{}

func (fakeResolver) ResolveType(ref metadata.TypeRef) *ir.Type {
	return &ir.Type{ManagedFullName: ref.FullName, MangledName: ref.FullName}
}
func (fakeResolver) ResolveMethod(owner *ir.Type, ref metadata.MethodRef) *ir.Method {
	return &ir.Method{Name: ref.Name, OwningType: owner}
}
func (fakeResolver) ResolveField(owner *ir.Type, ref metadata.FieldRef) *ir.Field {
	return &ir.Field{Name: ref.Name, OwningType: owner}
}

func newChainTranslator(t *testing.T) *translate.Translator {
	t.Helper()
	m := mangle.New()
	tr := translate.New(fakeResolver{}, m, icall.NewDefaultRegistry(), diag.NewSink(), true)
	tr.Interceptors = bcl.NewChain(m)
	return tr
}

func firstRawCpp(t *testing.T, meth *ir.Method) string {
	t.Helper()
	for _, inst := range meth.Blocks[0].Instructions {
		if raw, ok := inst.(*ir.RawCppInstr); ok {
			return raw.Text
		}
	}
	t.Fatalf("no RawCppInstr found among %d instructions", len(meth.Blocks[0].Instructions))
	return ""
}

func TestNewChain_Length(t *testing.T) {
	chain := bcl.NewChain(mangle.New())
	if len(chain) != 10 {
		t.Fatalf("expected 10 interceptors, got %d", len(chain))
	}
}

func TestNullableInterceptor_GetValueOrDefault(t *testing.T) {
	tr := newChainTranslator(t)
	meth := &ir.Method{Name: "Read", ReturnType: "int32_t"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdarg, Operand: 0},
		{Offset: 1, Opcode: metadata.OpCall, Operand: metadata.CallSite{
			Owner: metadata.TypeRef{FullName: "System.Nullable`1", GenericArgs: []metadata.TypeRef{{FullName: "System.Int32"}}},
			Method: metadata.MethodRef{Name: "GetValueOrDefault", ReturnType: metadata.TypeRef{FullName: "System.Int32"}},
		}},
		{Offset: 2, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := firstRawCpp(t, meth)
	if !strings.Contains(got, "has_value") {
		t.Fatalf("expected has_value check, got %q", got)
	}
}

func TestValueTupleInterceptor_Equals(t *testing.T) {
	tr := newChainTranslator(t)
	meth := &ir.Method{Name: "AreEqual", ReturnType: "bool"}
	owner := metadata.TypeRef{FullName: "System.ValueTuple`2", GenericArgs: []metadata.TypeRef{{FullName: "System.Int32"}, {FullName: "System.Int32"}}}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdarg, Operand: 0},
		{Offset: 1, Opcode: metadata.OpLdarg, Operand: 1},
		{Offset: 2, Opcode: metadata.OpCall, Operand: metadata.CallSite{
			Owner:  owner,
			Method: metadata.MethodRef{Name: "Equals", Params: []metadata.ParamRef{{Type: owner}}, ReturnType: metadata.TypeRef{FullName: "System.Boolean"}},
		}},
		{Offset: 3, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := firstRawCpp(t, meth)
	if !strings.Contains(got, "Item1") || !strings.Contains(got, "&&") {
		t.Fatalf("expected field-by-field && comparison, got %q", got)
	}
}

func TestTaskInterceptor_FromResult(t *testing.T) {
	tr := newChainTranslator(t)
	meth := &ir.Method{Name: "Make", ReturnType: "void*"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdcI4, Operand: int64(7)},
		{Offset: 1, Opcode: metadata.OpCall, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.Threading.Tasks.Task`1", GenericArgs: []metadata.TypeRef{{FullName: "System.Int32"}}},
			Method: metadata.MethodRef{Name: "FromResult", Static: true},
		}},
		{Offset: 2, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := firstRawCpp(t, meth)
	if !strings.Contains(got, "task_init_completed") {
		t.Fatalf("expected task_init_completed call, got %q", got)
	}
}

func TestSpanInterceptor_ConstructFromArray(t *testing.T) {
	tr := newChainTranslator(t)
	meth := &ir.Method{Name: "Wrap", ReturnType: "void*"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdarg, Operand: 0},
		{Offset: 1, Opcode: metadata.OpNewobj, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.Span`1", GenericArgs: []metadata.TypeRef{{FullName: "System.Int32"}}},
			Method: metadata.MethodRef{Name: ".ctor", IsConstructor: true, Params: []metadata.ParamRef{{Type: metadata.TypeRef{FullName: "System.Int32[]"}}}},
		}},
		{Offset: 2, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := firstRawCpp(t, meth)
	if !strings.Contains(got, "array_data") || !strings.Contains(got, "array_length") {
		t.Fatalf("expected array-backed span construction, got %q", got)
	}
}

func TestCollectionsInterceptor_ListAdd(t *testing.T) {
	tr := newChainTranslator(t)
	meth := &ir.Method{Name: "Fill", ReturnType: "void"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdarg, Operand: 0},
		{Offset: 1, Opcode: metadata.OpLdcI4, Operand: int64(1)},
		{Offset: 2, Opcode: metadata.OpCall, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.Collections.Generic.List`1", GenericArgs: []metadata.TypeRef{{FullName: "System.Int32"}}},
			Method: metadata.MethodRef{Name: "Add", Params: []metadata.ParamRef{{Type: metadata.TypeRef{FullName: "System.Int32"}}}},
		}},
		{Offset: 3, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := firstRawCpp(t, meth)
	if !strings.Contains(got, "list_add") {
		t.Fatalf("expected list_add call, got %q", got)
	}
}

func TestLinqInterceptor_Any(t *testing.T) {
	tr := newChainTranslator(t)
	meth := &ir.Method{Name: "HasElements", ReturnType: "bool"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdarg, Operand: 0},
		{Offset: 1, Opcode: metadata.OpCall, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.Linq.Enumerable"},
			Method: metadata.MethodRef{Name: "Any", Static: true, Params: []metadata.ParamRef{{Type: metadata.TypeRef{FullName: "System.Int32[]"}}}},
		}},
		{Offset: 2, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := firstRawCpp(t, meth)
	if !strings.Contains(got, "array_length") {
		t.Fatalf("expected a length-based Any check, got %q", got)
	}
}

func TestTaskInterceptor_CompletedTask(t *testing.T) {
	tr := newChainTranslator(t)
	meth := &ir.Method{Name: "Already", ReturnType: "void*"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpCall, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.Threading.Tasks.Task"},
			Method: metadata.MethodRef{Name: "get_CompletedTask", Static: true},
		}},
		{Offset: 1, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var call *ir.Call
	for _, inst := range meth.Blocks[0].Instructions {
		if c, ok := inst.(*ir.Call); ok {
			call = c
			break
		}
	}
	if call == nil {
		t.Fatalf("no Call found among %d instructions", len(meth.Blocks[0].Instructions))
	}
	if call.TargetSymbol != "task_get_completed" {
		t.Fatalf("expected a call to task_get_completed, got %q", call.TargetSymbol)
	}
}

func TestReflectionInterceptor_GetType(t *testing.T) {
	tr := newChainTranslator(t)
	meth := &ir.Method{Name: "TypeOf", ReturnType: "void*"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdarg, Operand: 0},
		{Offset: 1, Opcode: metadata.OpCall, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.Object"},
			Method: metadata.MethodRef{Name: "GetType"},
		}},
		{Offset: 2, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := firstRawCpp(t, meth)
	if !strings.Contains(got, "object_get_type_managed") {
		t.Fatalf("expected object_get_type_managed call, got %q", got)
	}
}

func TestReflectionInterceptor_IsInstanceOfType(t *testing.T) {
	tr := newChainTranslator(t)
	meth := &ir.Method{Name: "Check", ReturnType: "bool"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdarg, Operand: 0},
		{Offset: 1, Opcode: metadata.OpLdarg, Operand: 1},
		{Offset: 2, Opcode: metadata.OpCall, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.Type"},
			Method: metadata.MethodRef{Name: "IsInstanceOfType", Params: []metadata.ParamRef{{Type: metadata.TypeRef{FullName: "System.Object"}}}},
		}},
		{Offset: 3, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := firstRawCpp(t, meth)
	if !strings.Contains(got, "object_is_instance_of") {
		t.Fatalf("expected object_is_instance_of call, got %q", got)
	}
}

func TestStringFormatInterceptor_Format(t *testing.T) {
	tr := newChainTranslator(t)
	meth := &ir.Method{Name: "Describe", ReturnType: "void*"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdstr, Operand: "{0} items"},
		{Offset: 1, Opcode: metadata.OpLdcI4, Operand: int64(3)},
		{Offset: 2, Opcode: metadata.OpCall, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.String"},
			Method: metadata.MethodRef{Name: "Format", Static: true},
		}},
		{Offset: 3, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := firstRawCpp(t, meth)
	if !strings.Contains(got, "string_format") {
		t.Fatalf("expected string_format call, got %q", got)
	}
}

func TestExceptionDispatchInterceptor_CaptureAndThrow(t *testing.T) {
	tr := newChainTranslator(t)
	meth := &ir.Method{Name: "Rethrow", ReturnType: "void"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdarg, Operand: 0},
		{Offset: 1, Opcode: metadata.OpCall, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.Runtime.ExceptionServices.ExceptionDispatchInfo"},
			Method: metadata.MethodRef{Name: "Capture", Static: true, Params: []metadata.ParamRef{{Type: metadata.TypeRef{FullName: "System.Exception"}}}},
		}},
		{Offset: 2, Opcode: metadata.OpCall, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.Runtime.ExceptionServices.ExceptionDispatchInfo"},
			Method: metadata.MethodRef{Name: "Throw"},
		}},
		{Offset: 3, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var texts []string
	for _, inst := range meth.Blocks[0].Instructions {
		if raw, ok := inst.(*ir.RawCppInstr); ok {
			texts = append(texts, raw.Text)
		}
	}
	if len(texts) != 2 {
		t.Fatalf("expected capture + throw raw instructions, got %d: %v", len(texts), texts)
	}
	if !strings.Contains(texts[0], "ExceptionDispatchInfo") || !strings.Contains(texts[1], "throw_exception") {
		t.Fatalf("unexpected capture/throw text: %v", texts)
	}
}
