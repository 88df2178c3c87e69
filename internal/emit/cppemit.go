// Package emit implements the CppEmitter: the external consumer spec.md §2
// names but intentionally underspecifies ("not specified here except where
// its contract constrains IR shape"). It walks a finished *ir.Module and
// prints the standalone C++ translation units the rest of the pipeline
// exists to produce — one header per type plus a driver file carrying the
// entry point.
//
// Grounded on internal/codegen/mir2llvm/generator.go's shape: a
// strings.Builder-backed Generator with one emit* method per concern
// (header, declarations, struct/type definitions, functions), resetting its
// builder at the top of Generate and returning the assembled text keyed by
// file name; diagnostics go to the diag.Sink given to NewGenerator.
package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ilforge/ilforge/internal/abi"
	"github.com/ilforge/ilforge/internal/diag"
	"github.com/ilforge/ilforge/internal/ir"
)

// Options controls emission detail (spec §6 "Configuration options" /
// internal/config.BuildOptions, mapped onto the one flag the emitter
// itself reads).
type Options struct {
	// Debug emits `#line` directives ahead of every instruction carrying a
	// SourceLocation, for source-level debugging of the generated C++.
	Debug bool
}

// Generator renders one *ir.Module into a set of C++ translation units.
type Generator struct {
	Opts Options
	Diag *diag.Sink

	builder strings.Builder
}

func NewGenerator(opts Options, sink *diag.Sink) *Generator {
	return &Generator{Opts: opts, Diag: sink}
}

// Generate renders module into a map of filename -> C++ source text: one
// "<MangledName>.hpp" per type plus "main.cpp" when the module declares an
// entry point. Errors never abort emission — an unrenderable instruction
// degrades to a comment plus a diag.Diagnostic on g.Diag (spec §7) so the
// caller can still inspect the rest of the translation unit.
func (g *Generator) Generate(module *ir.Module) map[string]string {
	out := make(map[string]string)

	types := append([]*ir.Type(nil), module.Types...)
	sort.Slice(types, func(i, j int) bool { return types[i].MangledName < types[j].MangledName })

	for _, t := range types {
		g.builder.Reset()
		g.emitTypeHeader(t)
		out[t.MangledName+".hpp"] = g.builder.String()
	}

	if module.EntryPoint != nil {
		g.builder.Reset()
		g.emitDriver(module)
		out["main.cpp"] = g.builder.String()
	}

	return out
}

func (g *Generator) emit(line string) {
	g.builder.WriteString(line)
	g.builder.WriteString("\n")
}

func (g *Generator) emitf(format string, args ...interface{}) {
	g.emit(fmt.Sprintf(format, args...))
}

// emitTypeHeader writes one type's struct definition, its T_TypeInfo vtable
// record, and every method the build converted or synthesized a body for.
func (g *Generator) emitTypeHeader(t *ir.Type) {
	guard := "ILFORGE_" + strings.ToUpper(t.MangledName) + "_HPP"
	g.emitf("#ifndef %s", guard)
	g.emitf("#define %s", guard)
	g.emit("")
	g.emit(`#include "ilforge_runtime.hpp"`)
	g.emit("")

	g.emitStructDefinition(t)
	g.emit("")
	g.emitTypeInfo(t)
	g.emit("")

	for _, m := range t.Methods {
		if m.Flags.Has(ir.MFlagAbstract) || m.Flags.Has(ir.MFlagInternalCall) {
			continue
		}
		g.emitMethod(m)
		g.emit("")
	}

	g.emitf("#endif // %s", guard)
}

func (g *Generator) emitStructDefinition(t *ir.Type) {
	g.emitf("struct %s {", t.MangledName)
	if !t.IsValueType() {
		g.emit("  ilforge::TypeInfo* __type_info;")
		g.emit("  ilforge::SyncBlock __sync;")
	}
	for _, f := range t.InstanceFields {
		g.emitf("  %s %s; // offset %d", f.DeclaredType, f.MangledName, f.Offset)
	}
	g.emit("};")
}

// emitTypeInfo renders the struct carrying a type's managed name and
// computed vtable (spec §3's Type data model, materialized as the runtime's
// reflection/dispatch surface). Interface-implementation maps are not
// emitted.
func (g *Generator) emitTypeInfo(t *ir.Type) {
	g.emitf("inline ilforge::TypeInfo TypeInfo_%s = {", t.MangledName)
	g.emitf("  /* managed_name */ %q,", t.ManagedFullName)
	g.emit("  /* vtable */ {")
	for _, slot := range t.Vtable {
		if slot.Method == nil {
			g.emit("    nullptr,")
			continue
		}
		g.emitf("    reinterpret_cast<void*>(&%s),", slot.Method.MangledName)
	}
	g.emit("  },")
	g.emit("};")
}

// emitDriver writes the single translation unit owning `main`, which just
// forwards to the managed entry point's mangled C++ symbol.
func (g *Generator) emitDriver(module *ir.Module) {
	entry := module.EntryPoint
	g.emit(`#include "ilforge_runtime.hpp"`)
	g.emitf(`#include "%s.hpp"`, entry.OwningType.MangledName)
	g.emit("")
	g.emit("int main(int argc, char** argv) {")
	g.emit("  ilforge::runtime_init(argc, argv);")
	if entry.ReturnType == "void" || entry.ReturnType == "" {
		g.emitf("  %s();", entry.MangledName)
		g.emit("  return 0;")
	} else {
		g.emitf("  auto __result = %s();", entry.MangledName)
		g.emit("  return static_cast<int>(__result);")
	}
	g.emit("}")
}

func (g *Generator) emitMethod(m *ir.Method) {
	g.emitf("inline %s %s(%s) {", m.ReturnType, m.MangledName, g.paramList(m))
	for _, local := range m.Locals {
		g.emitf("  %s %s = %s;", local.DeclaredType, local.Name, defaultValueFor(local.DeclaredType))
	}
	for _, block := range m.Blocks {
		for _, instr := range block.Instructions {
			line := g.emitInstruction(instr, m)
			if line == "" {
				continue
			}
			if g.Opts.Debug {
				if loc := instr.Loc(); loc != nil && loc.File != "" {
					g.emitf("#line %d %q", loc.Line, loc.File)
				}
			}
			g.emit("  " + line)
		}
	}
	g.emit("}")
}

func (g *Generator) paramList(m *ir.Method) string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		parts[i] = fmt.Sprintf("%s %s", p.DeclaredType, p.Name)
	}
	return strings.Join(parts, ", ")
}

func defaultValueFor(cppType string) string {
	if strings.HasSuffix(cppType, "*") {
		return "nullptr"
	}
	switch cppType {
	case "bool":
		return "false"
	case "float":
		return "0.0f"
	case "double":
		return "0.0"
	case "void":
		return ""
	default:
		return "0"
	}
}

// emitInstruction renders one IR instruction as a single C++ statement
// (spec §3: "the variant set is closed"). An instruction this switch doesn't
// recognize reports a diagnostic and lowers to a comment rather than
// aborting emission, matching translate.Translator's tolerant handling of
// unsupported opcodes (spec §7).
func (g *Generator) emitInstruction(instr ir.Instruction, m *ir.Method) string {
	switch i := instr.(type) {
	case *ir.Assign:
		return fmt.Sprintf("auto %s = %s;", i.Dest.Name, g.operand(i.RHS))
	case *ir.DeclareLocal:
		return fmt.Sprintf("%s %s = %s;", i.Local.DeclaredType, i.Local.Name, defaultValueFor(i.Local.DeclaredType))
	case *ir.ReturnInstr:
		if i.Value == nil {
			return "return;"
		}
		return fmt.Sprintf("return %s;", g.operand(i.Value))
	case *ir.BinaryOp:
		return fmt.Sprintf("auto %s = %s;", i.Dest.Name, binaryOpExpr(i))
	case *ir.UnaryOp:
		return fmt.Sprintf("auto %s = %s;", i.Dest.Name, unaryOpExpr(i))
	case *ir.Call:
		return g.callExpr(i)
	case *ir.NewObject:
		return g.newObjectExpr(i)
	case *ir.Branch:
		return fmt.Sprintf("goto %s;", i.Target)
	case *ir.ConditionalBranch:
		return fmt.Sprintf("if (%s) goto %s; else goto %s;", g.operand(i.Condition), i.IfTrue, i.IfFalse)
	case *ir.LabelInstr:
		return i.Name + ":;"
	case *ir.SwitchInstr:
		return g.switchStmt(i)
	case *ir.FieldAccess:
		return g.fieldAccessStmt(i)
	case *ir.StaticFieldAccess:
		return g.staticFieldAccessStmt(i)
	case *ir.ArrayAccess:
		return g.arrayAccessStmt(i)
	case *ir.CastInstr:
		return g.castStmt(i)
	case *ir.ConversionInstr:
		return fmt.Sprintf("auto %s = static_cast<%s>(%s);", i.Dest.Name, i.TargetTy, g.operand(i.Value))
	case *ir.NullCheckInstr:
		return fmt.Sprintf("ilforge::null_check(%s);", g.operand(i.Value))
	case *ir.InitValueTypeInstr:
		return fmt.Sprintf("%s = %s{};", g.operand(i.Target), i.Type.MangledName)
	case *ir.BoxInstr:
		return fmt.Sprintf("auto %s = %s(%s, &TypeInfo_%s);", i.Dest.Name, abi.Box, g.operand(i.Value), i.Type.MangledName)
	case *ir.UnboxInstr:
		return g.unboxStmt(i)
	case *ir.ClassConstructorGuardInstr:
		return fmt.Sprintf("ilforge::run_class_constructor_once(&TypeInfo_%s);", i.Type.MangledName)
	case *ir.TryBeginInstr:
		return fmt.Sprintf("/* try region %d begin */ try {", i.RegionID)
	case *ir.CatchBeginInstr:
		return fmt.Sprintf("} catch (%s* %s) {", i.ExceptionType.MangledName, i.ExceptionTemp.Name)
	case *ir.FinallyBeginInstr:
		return fmt.Sprintf("/* finally region %d */", i.RegionID)
	case *ir.TryEndInstr:
		return fmt.Sprintf("} /* try region %d end */", i.RegionID)
	case *ir.ThrowInstr:
		return fmt.Sprintf("throw %s;", g.operand(i.Value))
	case *ir.RethrowInstr:
		return "throw;"
	case *ir.RawCppInstr:
		return i.Text
	case *ir.LoadFunctionPointerInstr:
		return g.loadFunctionPointerStmt(i)
	case *ir.DelegateCreateInstr:
		return g.delegateCreateStmt(i)
	case *ir.DelegateInvokeInstr:
		return g.delegateInvokeStmt(i)
	default:
		if g.Diag != nil {
			g.Diag.Report(diag.Diagnostic{
				Stage:    diag.StageEmit,
				Severity: diag.SeverityWarning,
				Code:     diag.CodeUnsupportedOpcode,
				Message:  fmt.Sprintf("emit: no C++ rendering for instruction %T", instr),
				Method:   m.MangledName,
			})
		}
		return fmt.Sprintf("/* unrenderable instruction %T */", instr)
	}
}

func (g *Generator) operand(op ir.Operand) string { return operandText(op) }

func operandText(op ir.Operand) string {
	switch v := op.(type) {
	case *ir.TempOperand:
		return v.Temp.Name
	case *ir.LocalOperand:
		return v.Local.Name
	case *ir.ParamOperand:
		return v.Param.Name
	case *ir.LiteralOperand:
		return literalText(v)
	default:
		return "/* unknown operand */"
	}
}

func literalText(v *ir.LiteralOperand) string {
	if v.Value == nil {
		return "nullptr"
	}
	switch val := v.Value.(type) {
	case string:
		return fmt.Sprintf("%s(%q)", firstNonEmpty(v.Type, abi.StringLiteral), val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int64:
		return fmt.Sprintf("static_cast<%s>(%d)", firstNonEmpty(v.Type, "int64_t"), val)
	case float64:
		return fmt.Sprintf("static_cast<%s>(%v)", firstNonEmpty(v.Type, "double"), val)
	case rune:
		return fmt.Sprintf("static_cast<char16_t>(%d)", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

var binaryOpSymbols = map[ir.BinaryOpKind]string{
	ir.OpAdd: "+", ir.OpSub: "-", ir.OpMul: "*", ir.OpDiv: "/", ir.OpRem: "%",
	ir.OpAnd: "&", ir.OpOr: "|", ir.OpXor: "^", ir.OpShl: "<<", ir.OpShr: ">>", ir.OpShrU: ">>",
	ir.OpCeq: "==", ir.OpCgt: ">", ir.OpCgtU: ">", ir.OpClt: "<", ir.OpCltU: "<", ir.OpNeq: "!=",
}

func binaryOpExpr(i *ir.BinaryOp) string {
	sym, ok := binaryOpSymbols[i.Op]
	if !ok {
		sym = "/* unknown op */"
	}
	return fmt.Sprintf("(%s %s %s)", operandText(i.Lhs), sym, operandText(i.Rhs))
}

func unaryOpExpr(i *ir.UnaryOp) string {
	switch i.Op {
	case ir.OpNeg:
		return fmt.Sprintf("(-%s)", operandText(i.Operand))
	case ir.OpNot:
		return fmt.Sprintf("(~%s)", operandText(i.Operand))
	default:
		return "/* unknown unary op */"
	}
}

func (g *Generator) callExpr(i *ir.Call) string {
	args := make([]string, 0, len(i.Args)+1)
	if i.Receiver != nil {
		args = append(args, g.operand(i.Receiver))
	}
	for _, a := range i.Args {
		args = append(args, g.operand(a))
	}
	argList := strings.Join(args, ", ")

	var target string
	switch {
	case i.Virtual && i.InterfaceFor != nil:
		target = fmt.Sprintf("ilforge::interface_dispatch<decltype(&%s)>(%s, &TypeInfo_%s)",
			methodSymbol(i), g.operand(i.Receiver), i.InterfaceFor.MangledName)
	case i.Virtual:
		target = fmt.Sprintf("ilforge::vtable_dispatch<decltype(&%s)>(%s, %d)",
			methodSymbol(i), g.operand(i.Receiver), i.Target.VtableSlot)
	default:
		target = methodSymbol(i)
	}

	call := fmt.Sprintf("%s(%s)", target, argList)
	if i.Dest == nil {
		return call + ";"
	}
	return fmt.Sprintf("auto %s = %s;", i.Dest.Name, call)
}

func methodSymbol(i *ir.Call) string {
	if i.Target != nil {
		return i.Target.MangledName
	}
	return i.TargetSymbol
}

func (g *Generator) newObjectExpr(i *ir.NewObject) string {
	args := make([]string, len(i.Args))
	for j, a := range i.Args {
		args[j] = g.operand(a)
	}
	ctor := i.Type.MangledName
	if i.Ctor != nil {
		ctor = i.Ctor.MangledName
	}
	return fmt.Sprintf("auto %s = ilforge::gc_new<%s>(%s, %s);", i.Dest.Name, i.Type.MangledName, ctor, strings.Join(args, ", "))
}

func (g *Generator) switchStmt(i *ir.SwitchInstr) string {
	var b strings.Builder
	fmt.Fprintf(&b, "switch (%s) { ", g.operand(i.Selector))
	for _, c := range i.Cases {
		fmt.Fprintf(&b, "case %d: goto %s; ", c.Value, c.Target)
	}
	fmt.Fprintf(&b, "default: goto %s; }", i.Default)
	return b.String()
}

func (g *Generator) fieldAccessStmt(i *ir.FieldAccess) string {
	access := fmt.Sprintf("%s->%s", g.operand(i.Target), i.Field.MangledName)
	if i.Store != nil {
		return fmt.Sprintf("%s = %s;", access, g.operand(i.Store))
	}
	return fmt.Sprintf("auto %s = %s;", i.Dest.Name, access)
}

func (g *Generator) staticFieldAccessStmt(i *ir.StaticFieldAccess) string {
	access := fmt.Sprintf("%s::%s", i.Field.OwningType.MangledName, i.Field.MangledName)
	if i.Store != nil {
		return fmt.Sprintf("%s = %s;", access, g.operand(i.Store))
	}
	return fmt.Sprintf("auto %s = %s;", i.Dest.Name, access)
}

func (g *Generator) arrayAccessStmt(i *ir.ArrayAccess) string {
	access := fmt.Sprintf("(*reinterpret_cast<%s*>(%s(%s, %s)))", i.ElementType, abi.ArrayGetElementPtr, g.operand(i.Array), g.operand(i.Index))
	if i.Store != nil {
		return fmt.Sprintf("%s = %s;", access, g.operand(i.Store))
	}
	return fmt.Sprintf("auto %s = %s;", i.Dest.Name, access)
}

// castStmt renders both cast kinds against the ABI's cast pair: CastChecked
// (castclass, throws on failure) maps to abi.ObjectCast, CastSafe (isinst,
// null on failure) to abi.ObjectAs — the two symbols' own doc comments in
// internal/abi/symbols.go name exactly this split.
func (g *Generator) castStmt(i *ir.CastInstr) string {
	symbol := abi.ObjectCast
	if i.Kind == ir.CastSafe {
		symbol = abi.ObjectAs
	}
	return fmt.Sprintf("auto %s = static_cast<%s*>(%s(%s, &TypeInfo_%s));",
		i.Dest.Name, i.TargetTy.MangledName, symbol, g.operand(i.Value), i.TargetTy.MangledName)
}

func (g *Generator) unboxStmt(i *ir.UnboxInstr) string {
	if i.Variant == ir.UnboxValue {
		return fmt.Sprintf("auto %s = %s<%s>(%s);", i.Dest.Name, abi.Unbox, i.Type.MangledName, g.operand(i.Value))
	}
	return fmt.Sprintf("auto %s = %s<%s>(%s);", i.Dest.Name, abi.UnboxPtr, i.Type.MangledName, g.operand(i.Value))
}

func (g *Generator) loadFunctionPointerStmt(i *ir.LoadFunctionPointerInstr) string {
	symbol := i.Symbol
	if i.Method != nil {
		symbol = i.Method.MangledName
	}
	return fmt.Sprintf("auto %s = reinterpret_cast<void*>(&%s);", i.Dest.Name, symbol)
}

func (g *Generator) delegateCreateStmt(i *ir.DelegateCreateInstr) string {
	target := "nullptr"
	if i.Target != nil {
		target = g.operand(i.Target)
	}
	return fmt.Sprintf("auto %s = %s(%s, reinterpret_cast<void*>(&%s), &TypeInfo_%s);",
		i.Dest.Name, abi.DelegateCreate, target, i.Method.MangledName, i.DelegateType.MangledName)
}

func (g *Generator) delegateInvokeStmt(i *ir.DelegateInvokeInstr) string {
	args := make([]string, len(i.Args))
	for j, a := range i.Args {
		args[j] = g.operand(a)
	}
	call := fmt.Sprintf("%s(%s, %s)", abi.DelegateInvoke, g.operand(i.Delegate), strings.Join(args, ", "))
	if i.Dest == nil {
		return call + ";"
	}
	return fmt.Sprintf("auto %s = %s;", i.Dest.Name, call)
}
