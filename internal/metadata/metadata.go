// Package metadata defines the input contract the IR builder consumes.
// The binary metadata reader that actually parses an ECMA-335 module is an
// external collaborator (spec.md §1) — this package only names the shapes
// it hands us: decoded type/method/field descriptors and a per-method
// bytecode stream with its exception-handler table.
package metadata

// TypeRef is a reference to a managed type as the metadata reader would
// hand it to us, before the type cache resolves it to an *ir.Type.
type TypeRef struct {
	FullName       string
	IsValueType    bool
	IsInterface    bool
	IsAbstract     bool
	IsSealed       bool
	IsEnum         bool
	IsDelegate     bool
	IsRecord       bool
	IsGenericOpen  bool // has unresolved generic parameters
	GenericArgs    []TypeRef
	// GenericParamNames holds the open type's declared parameter names
	// (e.g. "TKey", "TValue"), set only on an open generic type definition.
	// GenericEngine phase 2 zips these against GenericArgs on an
	// instantiation of this type to build its substitution map.
	GenericParamNames []string
	BaseType          *TypeRef
	Interfaces        []TypeRef
	Origin            Origin
}

// Origin classifies where an assembly-set loader found a type's defining
// assembly. The reachability analyzer and assembly-set loader that compute
// this are themselves out of scope; the IR builder only consumes the
// classification.
type Origin int

const (
	OriginUser Origin = iota
	OriginThirdParty
	OriginBaseLibrary
	OriginRuntimeProvided
)

// FieldRef describes one field as read from metadata.
type FieldRef struct {
	Name          string
	FieldType     TypeRef
	Static        bool
	Visibility    int
	AttributeBits uint32
	ConstantValue interface{}
}

// ParamRef describes one method parameter.
type ParamRef struct {
	Name string
	Type TypeRef
}

// MethodRef describes one method's signature and, if present, its decoded
// bytecode body.
type MethodRef struct {
	Name          string
	ReturnType    TypeRef // TypeRef{FullName: "System.Void"} for void
	Params        []ParamRef
	Static        bool
	Virtual       bool
	Abstract      bool
	IsConstructor bool
	IsClassCtor   bool
	IsEntryPoint  bool
	IsFinalizer   bool
	GenericParams []string
	Body          *MethodBody // nil for abstract/interface/internal-call methods
}

// MethodBody is the decoded bytecode stream plus its exception-handler
// table — the BytecodeTranslator's entire input (spec §4.3).
type MethodBody struct {
	Instructions []DecodedInstruction
	Handlers     []ExceptionHandler
	MaxStack     int
}

// DecodedInstruction is one already-decoded opcode with its operand and
// byte offset, exactly as an ECMA-335 bytecode reader would produce it.
// This package does not decode raw bytes itself — that belongs to the
// (out of scope) metadata reader.
type DecodedInstruction struct {
	Offset  int
	Opcode  Opcode
	Operand interface{} // int64, float64, string, int (arg/local index), TypeRef, CallSite, FieldSite, or nil
}

// Opcode is a stable, decoded opcode identifier. The translator recognizes
// a representative subset (spec.md supplemented scope); an opcode outside
// that subset is handled via the documented "unsupported opcode" policy.
type Opcode string

const (
	OpNop        Opcode = "nop"
	OpLdcI4      Opcode = "ldc.i4"
	OpLdcI8      Opcode = "ldc.i8"
	OpLdcR4      Opcode = "ldc.r4"
	OpLdcR8      Opcode = "ldc.r8"
	OpLdstr      Opcode = "ldstr"
	OpLdnull     Opcode = "ldnull"
	OpLdarg      Opcode = "ldarg"
	OpLdloc      Opcode = "ldloc"
	OpStloc      Opcode = "stloc"
	OpLdloca     Opcode = "ldloca"
	OpDup        Opcode = "dup"
	OpPop        Opcode = "pop"
	OpAdd        Opcode = "add"
	OpSub        Opcode = "sub"
	OpMul        Opcode = "mul"
	OpDiv        Opcode = "div"
	OpRem        Opcode = "rem"
	OpAnd        Opcode = "and"
	OpOr         Opcode = "or"
	OpXor        Opcode = "xor"
	OpShl        Opcode = "shl"
	OpShr        Opcode = "shr"
	OpShrUn      Opcode = "shr.un"
	OpNeg        Opcode = "neg"
	OpNot        Opcode = "not"
	OpCeq        Opcode = "ceq"
	OpCgt        Opcode = "cgt"
	OpCgtUn      Opcode = "cgt.un"
	OpClt        Opcode = "clt"
	OpCltUn      Opcode = "clt.un"
	OpBr         Opcode = "br"
	OpBrtrue     Opcode = "brtrue"
	OpBrfalse    Opcode = "brfalse"
	OpSwitch     Opcode = "switch"
	OpCall       Opcode = "call"
	OpCallvirt   Opcode = "callvirt"
	OpNewobj     Opcode = "newobj"
	OpRet        Opcode = "ret"
	OpLdfld      Opcode = "ldfld"
	OpStfld      Opcode = "stfld"
	OpLdsfld     Opcode = "ldsfld"
	OpStsfld     Opcode = "stsfld"
	OpLdelem     Opcode = "ldelem"
	OpStelem     Opcode = "stelem"
	OpLdlen      Opcode = "ldlen"
	OpCastclass  Opcode = "castclass"
	OpIsinst     Opcode = "isinst"
	OpConvI4     Opcode = "conv.i4"
	OpConvI8     Opcode = "conv.i8"
	OpConvR4     Opcode = "conv.r4"
	OpConvR8     Opcode = "conv.r8"
	OpBox        Opcode = "box"
	OpUnbox      Opcode = "unbox"
	OpUnboxAny   Opcode = "unbox.any"
	OpInitobj    Opcode = "initobj"
	OpNewarr     Opcode = "newarr"
	OpThrow      Opcode = "throw"
	OpRethrow    Opcode = "rethrow"
	OpLeave      Opcode = "leave"
	OpEndfinally Opcode = "endfinally"
	OpConstrained Opcode = "constrained."
	OpLdftn      Opcode = "ldftn"
	OpLdvirtftn  Opcode = "ldvirtftn"
	OpNewdelegate Opcode = "newobj.delegate"
)

// HandlerKind enumerates the exception-region events the translator must
// emit in the fixed priority order (spec §4.3 step 2).
type HandlerKind int

const (
	HandlerTryBegin HandlerKind = iota
	HandlerCatchBegin
	HandlerFinallyBegin
	HandlerFilterBegin
	HandlerFilterHandlerBegin
	HandlerEnd
)

// ExceptionHandler is one entry of a method's exception-handler table.
type ExceptionHandler struct {
	RegionID      int
	Kind          HandlerKind
	TryStart      int
	TryEnd        int
	HandlerStart  int
	HandlerEnd    int
	FilterStart   int // only for HandlerFilterBegin regions
	CatchType     *TypeRef
}

// CallSite is the decoded operand of call/callvirt/newobj/ldftn/ldvirtftn/
// newobj.delegate: the declaring type plus the target method's signature.
type CallSite struct {
	Owner  TypeRef
	Method MethodRef
}

// FieldSite is the decoded operand of ldfld/stfld/ldsfld/stsfld.
type FieldSite struct {
	Owner TypeRef
	Field FieldRef
}

// SwitchTargets is the decoded operand of a switch opcode: one branch
// target offset per case, in case order.
type SwitchTargets []int

// AssemblyInfo is the minimal per-assembly metadata the builder needs: its
// name/version and whether it is the root assembly (only the root assembly
// may contain the program entry point, spec §4.6 pass 3).
type AssemblyInfo struct {
	Name    string
	Version string
	IsRoot  bool
	Types   []TypeRef
	Methods map[string][]MethodRef // TypeRef.FullName -> its methods
	Fields  map[string][]FieldRef  // TypeRef.FullName -> its instance/static fields
}
