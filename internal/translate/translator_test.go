package translate_test

import (
	"testing"

	"github.com/ilforge/ilforge/internal/diag"
	"github.com/ilforge/ilforge/internal/icall"
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/mangle"
	"github.com/ilforge/ilforge/internal/metadata"
	"github.com/ilforge/ilforge/internal/translate"
)

// fakeResolver resolves everything against a flat in-memory registry, enough
// to drive the translator without a real type cache.
type fakeResolver struct {
	types   map[string]*ir.Type
	methods map[string]*ir.Method
	fields  map[string]*ir.Field
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		types:   make(map[string]*ir.Type),
		methods: make(map[string]*ir.Method),
		fields:  make(map[string]*ir.Field),
	}
}

func (f *fakeResolver) ResolveType(ref metadata.TypeRef) *ir.Type {
	if t, ok := f.types[ref.FullName]; ok {
		return t
	}
	return &ir.Type{ManagedFullName: ref.FullName, MangledName: ref.FullName}
}

func (f *fakeResolver) ResolveMethod(owner *ir.Type, ref metadata.MethodRef) *ir.Method {
	key := ""
	if owner != nil {
		key = owner.ManagedFullName + "::"
	}
	key += ref.Name
	if m, ok := f.methods[key]; ok {
		return m
	}
	return &ir.Method{Name: ref.Name, MangledName: key, OwningType: owner}
}

func (f *fakeResolver) ResolveField(owner *ir.Type, ref metadata.FieldRef) *ir.Field {
	key := ""
	if owner != nil {
		key = owner.ManagedFullName + "::"
	}
	key += ref.Name
	if fl, ok := f.fields[key]; ok {
		return fl
	}
	return &ir.Field{Name: ref.Name, MangledName: key, OwningType: owner}
}

func newTranslator(t *testing.T) (*translate.Translator, *fakeResolver) {
	t.Helper()
	resolver := newFakeResolver()
	tr := translate.New(resolver, mangle.New(), icall.NewDefaultRegistry(), diag.NewSink(), true)
	return tr, resolver
}

func TestTranslate_ArithmeticAndStore(t *testing.T) {
	tr, _ := newTranslator(t)
	meth := &ir.Method{
		Name:       "Add34",
		ReturnType: "void",
		Locals:     []*ir.Local{{Index: 0, Name: "loc_0", DeclaredType: "int32_t"}},
	}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdcI4, Operand: int64(3)},
		{Offset: 1, Opcode: metadata.OpLdcI4, Operand: int64(4)},
		{Offset: 2, Opcode: metadata.OpAdd},
		{Offset: 3, Opcode: metadata.OpStloc, Operand: 0},
		{Offset: 4, Opcode: metadata.OpRet},
	}}

	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
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
	if !meth.BodyConverted {
		t.Fatal("expected BodyConverted to be set")
	}
}

func TestTranslate_BranchTargetGetsLabel(t *testing.T) {
	tr, _ := newTranslator(t)
	meth := &ir.Method{Name: "Loop", ReturnType: "void"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdcI4, Operand: int64(1)},
		{Offset: 1, Opcode: metadata.OpBrtrue, Operand: 3},
		{Offset: 2, Opcode: metadata.OpNop},
		{Offset: 3, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sawLabel bool
	for _, instr := range meth.Blocks[0].Instructions {
		if l, ok := instr.(*ir.LabelInstr); ok && l.Name == "IL_0003" {
			sawLabel = true
		}
	}
	if !sawLabel {
		t.Fatalf("expected a label at the brtrue target, got:\n%s", meth.PrettyPrint())
	}
}

func TestTranslate_UnsignedCompareNullRewrite(t *testing.T) {
	tr, _ := newTranslator(t)
	meth := &ir.Method{Name: "IsNotNull", ReturnType: "bool"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdarg, Operand: 0},
		{Offset: 1, Opcode: metadata.OpLdnull},
		{Offset: 2, Opcode: metadata.OpCgtUn},
		{Offset: 3, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bop, ok := meth.Blocks[0].Instructions[0].(*ir.BinaryOp)
	if !ok {
		t.Fatalf("expected a BinaryOp, got %T", meth.Blocks[0].Instructions[0])
	}
	if bop.Op != ir.OpNeq {
		t.Fatalf("expected cgt.un against null to rewrite to neq, got %s", bop.Op)
	}
}

func TestTranslate_ExceptionHandlerEventOrder(t *testing.T) {
	tr, _ := newTranslator(t)
	meth := &ir.Method{Name: "Guarded", ReturnType: "void"}
	body := &metadata.MethodBody{
		Instructions: []metadata.DecodedInstruction{
			{Offset: 0, Opcode: metadata.OpNop},
			{Offset: 1, Opcode: metadata.OpLeave, Operand: 10},
			{Offset: 5, Opcode: metadata.OpPop},
			{Offset: 9, Opcode: metadata.OpRethrow},
			{Offset: 10, Opcode: metadata.OpRet},
		},
		Handlers: []metadata.ExceptionHandler{
			{RegionID: 1, Kind: metadata.HandlerCatchBegin, TryStart: 0, TryEnd: 5, HandlerStart: 5, HandlerEnd: 10},
		},
	}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var kinds []string
	for _, instr := range meth.Blocks[0].Instructions {
		switch instr.(type) {
		case *ir.TryBeginInstr:
			kinds = append(kinds, "try_begin")
		case *ir.CatchBeginInstr:
			kinds = append(kinds, "catch_begin")
		case *ir.TryEndInstr:
			kinds = append(kinds, "try_end")
		}
	}
	want := []string{"try_begin", "catch_begin", "try_end"}
	if len(kinds) != len(want) {
		t.Fatalf("got event kinds %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("got event kinds %v, want %v", kinds, want)
		}
	}
}

func TestTranslate_IcallLookupElidesRuntimeCall(t *testing.T) {
	tr, _ := newTranslator(t)
	meth := &ir.Method{Name: "PrintIt", ReturnType: "void"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdstr, Operand: "hi"},
		{Offset: 1, Opcode: metadata.OpCall, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.Console"},
			Method: metadata.MethodRef{Name: "WriteLine", Static: true, Params: []metadata.ParamRef{{Type: metadata.TypeRef{FullName: "System.String"}}}, ReturnType: metadata.TypeRef{FullName: "System.Void"}},
		}},
		{Offset: 2, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call, ok := meth.Blocks[0].Instructions[0].(*ir.Call)
	if !ok {
		t.Fatalf("expected a Call instruction, got %T", meth.Blocks[0].Instructions[0])
	}
	if call.TargetSymbol != "console_write_line" {
		t.Fatalf("expected icall substitution to console_write_line, got %q", call.TargetSymbol)
	}
}

func TestTranslate_VirtualCallThroughInterface(t *testing.T) {
	tr, resolver := newTranslator(t)
	iface := &ir.Type{ManagedFullName: "MyApp.IGreeter", MangledName: "MyApp_IGreeter", Flags: ir.FlagInterface}
	greet := &ir.Method{Name: "Greet", MangledName: "MyApp_IGreeter__Greet", Flags: ir.MFlagVirtual, OwningType: iface}
	resolver.types["MyApp.IGreeter"] = iface
	resolver.methods["MyApp.IGreeter::Greet"] = greet

	meth := &ir.Method{Name: "Caller", ReturnType: "void"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdarg, Operand: 0},
		{Offset: 1, Opcode: metadata.OpCallvirt, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "MyApp.IGreeter"},
			Method: metadata.MethodRef{Name: "Greet", ReturnType: metadata.TypeRef{FullName: "System.Void"}},
		}},
		{Offset: 2, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call, ok := meth.Blocks[0].Instructions[0].(*ir.Call)
	if !ok {
		t.Fatalf("expected a Call instruction, got %T", meth.Blocks[0].Instructions[0])
	}
	if !call.Virtual || call.InterfaceFor != iface {
		t.Fatalf("expected virtual dispatch through the interface map, got Virtual=%v InterfaceFor=%v", call.Virtual, call.InterfaceFor)
	}
}

func TestTranslate_ConstrainedCallDirectOverride(t *testing.T) {
	tr, resolver := newTranslator(t)
	valueType := &ir.Type{ManagedFullName: "System.Int32", MangledName: "int32_t", Flags: ir.FlagValueType}
	override := &ir.Method{Name: "ToString", MangledName: "System_Int32__ToString", OwningType: valueType}
	valueType.Methods = append(valueType.Methods, override)
	resolver.types["System.Int32"] = valueType

	meth := &ir.Method{Name: "Caller", ReturnType: "void"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpConstrained, Operand: metadata.TypeRef{FullName: "System.Int32"}},
		{Offset: 1, Opcode: metadata.OpLdarg, Operand: 0},
		{Offset: 2, Opcode: metadata.OpCallvirt, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.Object"},
			Method: metadata.MethodRef{Name: "ToString", ReturnType: metadata.TypeRef{FullName: "System.String"}},
		}},
		{Offset: 3, Opcode: metadata.OpPop},
		{Offset: 4, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call, ok := meth.Blocks[0].Instructions[0].(*ir.Call)
	if !ok {
		t.Fatalf("expected a Call instruction, got %T", meth.Blocks[0].Instructions[0])
	}
	if call.Virtual {
		t.Fatal("expected a direct call to the value type's own override, not a virtual dispatch")
	}
	if call.Target != override {
		t.Fatalf("expected the call to target the value type's override, got %+v", call.Target)
	}
}

type stubInterceptor struct {
	matchMethod string
	symbol      string
}

func (s *stubInterceptor) Intercept(e *translate.Emission, owner metadata.TypeRef, method metadata.MethodRef, receiver ir.Operand, args []ir.Operand, isNewobj bool) (bool, error) {
	if method.Name != s.matchMethod {
		return false, nil
	}
	dest := e.NewTemp()
	e.Emit(&ir.Call{Dest: &dest, TargetSymbol: s.symbol, Args: args})
	e.Push(&ir.TempOperand{Temp: dest})
	return true, nil
}

func TestTranslate_InterceptorChainRunsBeforeNormalResolution(t *testing.T) {
	tr, _ := newTranslator(t)
	tr.Interceptors = []translate.Interceptor{&stubInterceptor{matchMethod: "GetValueOrDefault", symbol: "nullable_get_value_or_default"}}

	meth := &ir.Method{Name: "Caller", ReturnType: "int32_t"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdarg, Operand: 0},
		{Offset: 1, Opcode: metadata.OpCall, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.Nullable`1"},
			Method: metadata.MethodRef{Name: "GetValueOrDefault", ReturnType: metadata.TypeRef{FullName: "System.Int32"}},
		}},
		{Offset: 2, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call, ok := meth.Blocks[0].Instructions[0].(*ir.Call)
	if !ok || call.TargetSymbol != "nullable_get_value_or_default" {
		t.Fatalf("expected the interceptor chain to handle the call, got %+v ok=%v", meth.Blocks[0].Instructions[0], ok)
	}
}

func TestTranslate_DelegateInvokeDispatchesThroughDelegateInvokeInstr(t *testing.T) {
	tr, resolver := newTranslator(t)
	delegateType := &ir.Type{ManagedFullName: "System.Action", MangledName: "System_Action", Flags: ir.FlagDelegate}
	resolver.types["System.Action"] = delegateType

	meth := &ir.Method{Name: "Caller", ReturnType: "void"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdarg, Operand: 0},
		{Offset: 1, Opcode: metadata.OpCallvirt, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.Action"},
			Method: metadata.MethodRef{Name: "Invoke", ReturnType: metadata.TypeRef{FullName: "System.Void"}},
		}},
		{Offset: 2, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	invoke, ok := meth.Blocks[0].Instructions[0].(*ir.DelegateInvokeInstr)
	if !ok {
		t.Fatalf("expected a DelegateInvokeInstr, got %T", meth.Blocks[0].Instructions[0])
	}
	if invoke.Dest != nil {
		t.Fatalf("expected no dest temp for a void-returning Invoke, got %+v", invoke.Dest)
	}
}

func TestTranslate_DelegateInvokeWithReturnPushesTemp(t *testing.T) {
	tr, resolver := newTranslator(t)
	delegateType := &ir.Type{ManagedFullName: "System.Func`1", MangledName: "System_Func_1", Flags: ir.FlagDelegate}
	resolver.types["System.Func`1"] = delegateType
	resolver.methods["System.Func`1::Invoke"] = &ir.Method{Name: "Invoke", ReturnType: "int32_t", OwningType: delegateType}

	meth := &ir.Method{Name: "Caller", ReturnType: "int32_t"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.OpLdarg, Operand: 0},
		{Offset: 1, Opcode: metadata.OpCallvirt, Operand: metadata.CallSite{
			Owner:  metadata.TypeRef{FullName: "System.Func`1"},
			Method: metadata.MethodRef{Name: "Invoke", ReturnType: metadata.TypeRef{FullName: "System.Int32"}},
		}},
		{Offset: 2, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	invoke, ok := meth.Blocks[0].Instructions[0].(*ir.DelegateInvokeInstr)
	if !ok {
		t.Fatalf("expected a DelegateInvokeInstr, got %T", meth.Blocks[0].Instructions[0])
	}
	if invoke.Dest == nil {
		t.Fatal("expected a dest temp for a non-void Invoke")
	}
	ret, ok := meth.Blocks[0].Instructions[1].(*ir.ReturnInstr)
	if !ok {
		t.Fatalf("expected the pushed temp to flow into the return, got %T", meth.Blocks[0].Instructions[1])
	}
	top, ok := ret.Value.(*ir.TempOperand)
	if !ok || top.Temp != *invoke.Dest {
		t.Fatalf("expected return to use the invoke's dest temp, got %+v", ret.Value)
	}
}

func TestTranslate_UnsupportedOpcodeWarnsButContinues(t *testing.T) {
	tr, _ := newTranslator(t)
	meth := &ir.Method{Name: "Weird", ReturnType: "void"}
	body := &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
		{Offset: 0, Opcode: metadata.Opcode("tail.")},
		{Offset: 1, Opcode: metadata.OpRet},
	}}
	if err := tr.Translate(meth, nil, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(meth.Blocks[0].Instructions) < 2 {
		t.Fatalf("expected translation to continue past the unsupported opcode, got %d instructions", len(meth.Blocks[0].Instructions))
	}
}
