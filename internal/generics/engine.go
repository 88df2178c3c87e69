// Package generics implements the GenericEngine (spec.md §4.5): it scans
// decoded metadata for concrete generic-instance references, monomorphizes
// the resolvable ones, and synthesizes a fixed field layout for BCL
// generics whose internal layout the builder cannot otherwise resolve.
//
// The three phases are deliberately split into separate methods rather than
// one driver loop, mirroring the teacher's own fixed-point monomorphization
// pass (internal/mir/monomorphize.go): scan collects instantiation keys,
// CreateSpecializations builds the specialized shells, and
// ResolveSpecializations runs a second sweep once every specialization
// exists so cross-references between them resolve.
package generics

import (
	"fmt"
	"sort"

	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/mangle"
	"github.com/ilforge/ilforge/internal/metadata"
)

// OpenTypeDef is the open generic type definition GenericEngine needs to
// specialize: its own TypeRef (carrying GenericParamNames) plus its
// declared fields and methods.
type OpenTypeDef struct {
	Ref     metadata.TypeRef
	Fields  []metadata.FieldRef
	Methods []metadata.MethodRef
}

// Catalog resolves an open generic type's full name to its definition.
// The driver satisfies this from the metadata reader's type cache; it is
// not resolvable here because GenericEngine runs before the type cache is
// fully populated (spec §4.6 pass 0 precedes pass 1).
type Catalog interface {
	LookupOpenType(fullName string) (OpenTypeDef, bool)
}

// PendingBody is a specialized method whose body still needs translation
// with its parameter-substitution map active (spec §4.5 phase 2: "convert
// the body with the parameter map active"). The driver runs these through
// translate.Translator after building a Resolver that substitutes through
// Subst.
type PendingBody struct {
	Method *ir.Method
	Owner  *ir.Type
	Body   *metadata.MethodBody
	Subst  map[string]string // open type-parameter name -> concrete managed full name
}

// Engine runs the three GenericEngine phases against one build's module.
type Engine struct {
	Module  *ir.Module
	Mangler *mangle.Mangler

	instantiations map[string]metadata.TypeRef
	order          []string

	specialized  []*ir.Type
	specSource   map[string]metadata.TypeRef // specialized type's managed name -> its instantiation TypeRef
	specOpenDef  map[string]*OpenTypeDef     // specialized type's managed name -> open def, nil for BCL-synthesized
	PendingBodies []PendingBody
}

func NewEngine(module *ir.Module, mangler *mangle.Mangler) *Engine {
	return &Engine{
		Module:         module,
		Mangler:        mangler,
		instantiations: make(map[string]metadata.TypeRef),
		specSource:     make(map[string]metadata.TypeRef),
		specOpenDef:    make(map[string]*OpenTypeDef),
	}
}

// --- Phase 1 (pass 0): scan ---

// ScanAssembly walks every type, field and method in asm for concrete
// generic-instance references (spec §4.5 phase 1). Field/method owners are
// visited in sorted-name order so repeated builds of the same assembly
// discover instantiations in the same order (map iteration order is not
// otherwise stable).
func (e *Engine) ScanAssembly(asm metadata.AssemblyInfo) {
	for _, t := range asm.Types {
		e.scanTypeRef(t)
	}
	for _, owner := range sortedKeys(asm.Fields) {
		for _, f := range asm.Fields[owner] {
			e.scanTypeRef(f.FieldType)
		}
	}
	for _, owner := range sortedKeys(asm.Methods) {
		for _, m := range asm.Methods[owner] {
			e.scanMethod(m)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *Engine) scanMethod(m metadata.MethodRef) {
	e.scanTypeRef(m.ReturnType)
	for _, p := range m.Params {
		e.scanTypeRef(p.Type)
	}
	if m.Body == nil {
		return
	}
	for _, di := range m.Body.Instructions {
		switch op := di.Operand.(type) {
		case metadata.TypeRef:
			e.scanTypeRef(op)
		case metadata.CallSite:
			e.scanTypeRef(op.Owner)
			e.scanTypeRef(op.Method.ReturnType)
			for _, p := range op.Method.Params {
				e.scanTypeRef(p.Type)
			}
		case metadata.FieldSite:
			e.scanTypeRef(op.Owner)
			e.scanTypeRef(op.Field.FieldType)
		}
	}
}

// scanTypeRef records t if it is a concrete generic instance, then recurses
// into its base type, interfaces and (for nested generics) its own
// argument list.
func (e *Engine) scanTypeRef(t metadata.TypeRef) {
	if isConcreteGenericInstance(t) && !isFilteredNamespace(t.FullName) {
		e.recordInstantiation(t)
	}
	if t.BaseType != nil {
		e.scanTypeRef(*t.BaseType)
	}
	for _, iface := range t.Interfaces {
		e.scanTypeRef(iface)
	}
	for _, arg := range t.GenericArgs {
		e.scanTypeRef(arg)
	}
}

// isConcreteGenericInstance reports whether t is a generic instantiation
// with no unresolved parameter anywhere in its argument list (spec §4.5:
// "any argument containing an unresolved parameter is skipped").
func isConcreteGenericInstance(t metadata.TypeRef) bool {
	if len(t.GenericArgs) == 0 || t.IsGenericOpen {
		return false
	}
	for _, arg := range t.GenericArgs {
		if arg.IsGenericOpen || containsOpenParam(arg) {
			return false
		}
	}
	return true
}

func containsOpenParam(t metadata.TypeRef) bool {
	if t.IsGenericOpen {
		return true
	}
	for _, arg := range t.GenericArgs {
		if containsOpenParam(arg) {
			return true
		}
	}
	return false
}

func (e *Engine) recordInstantiation(t metadata.TypeRef) {
	key := instantiationKey(t)
	if _, ok := e.instantiations[key]; ok {
		return // equal keys collapse (spec invariant 7)
	}
	e.instantiations[key] = t
	e.order = append(e.order, key)
}

func instantiationKey(t metadata.TypeRef) string {
	args := make([]string, len(t.GenericArgs))
	for i, a := range t.GenericArgs {
		args[i] = a.FullName
	}
	return mangle.InstantiationKey(t.FullName, args)
}

// Instantiations returns the recorded instantiation keys in discovery
// order, for driver logging/diagnostics.
func (e *Engine) Instantiations() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// --- Phase 2 (pass 1.5): create specializations ---

// CreateSpecializations builds one *ir.Type per recorded instantiation,
// resolving against catalog when the open type is known, and synthesizing
// a fixed BCL field layout otherwise (spec §4.5 phase 2).
func (e *Engine) CreateSpecializations(catalog Catalog) error {
	for _, key := range e.order {
		inst := e.instantiations[key]
		argNames := make([]string, len(inst.GenericArgs))
		for i, a := range inst.GenericArgs {
			argNames[i] = a.FullName
		}
		mangledName := e.Mangler.MangleGenericInstance(inst.FullName, argNames)

		if def, ok := catalog.LookupOpenType(inst.FullName); ok {
			t, err := e.specializeResolvable(key, mangledName, inst, def)
			if err != nil {
				return err
			}
			if err := e.Module.AddType(t); err != nil {
				return err
			}
			e.specialized = append(e.specialized, t)
			e.specSource[t.ManagedFullName] = inst
			e.specOpenDef[t.ManagedFullName] = &def
			continue
		}

		family := classifyBCLFamily(inst.FullName)
		if family == FamilyNone {
			return fmt.Errorf("generics: %s is neither a known open type nor a recognized BCL family", inst.FullName)
		}
		t := e.synthesizeBCLType(key, mangledName, inst, family)
		if err := e.Module.AddType(t); err != nil {
			return err
		}
		e.specialized = append(e.specialized, t)
		e.specSource[t.ManagedFullName] = inst
		e.specOpenDef[t.ManagedFullName] = nil
	}
	return nil
}

func (e *Engine) specializeResolvable(key, mangledName string, inst metadata.TypeRef, def OpenTypeDef) (*ir.Type, error) {
	subst := substitutionMap(def.Ref, inst)

	argMangled := make([]string, len(inst.GenericArgs))
	for i, a := range inst.GenericArgs {
		argMangled[i] = e.Mangler.MangleTypeName(a.FullName)
	}

	t := &ir.Type{
		ManagedFullName: key,
		MangledName:     mangledName,
		ShortName:       mangledName,
		GenericArgNames: argMangled,
		Flags:           ir.FlagGenericInstance,
	}
	if inst.IsValueType {
		t.Flags |= ir.FlagValueType
		e.Mangler.RegisterValueType(key)
	}
	if inst.IsInterface {
		t.Flags |= ir.FlagInterface
	}

	for _, f := range def.Fields {
		fld := &ir.Field{
			Name:         f.Name,
			MangledName:  e.Mangler.MangleFieldName(f.Name),
			DeclaredType: substituteTypeName(f.FieldType.FullName, subst),
			Static:       f.Static,
			OwningType:   t,
		}
		if f.Static {
			t.StaticFields = append(t.StaticFields, fld)
		} else {
			t.InstanceFields = append(t.InstanceFields, fld)
		}
	}

	for _, m := range def.Methods {
		meth := e.specializeMethod(t, m, subst)
		t.Methods = append(t.Methods, meth)
		if m.Body != nil {
			e.PendingBodies = append(e.PendingBodies, PendingBody{Method: meth, Owner: t, Body: m.Body, Subst: subst})
		}
	}
	return t, nil
}

func (e *Engine) specializeMethod(owner *ir.Type, m metadata.MethodRef, subst map[string]string) *ir.Method {
	params := make([]*ir.Param, len(m.Params))
	for i, p := range m.Params {
		declared := substituteTypeName(p.Type.FullName, subst)
		params[i] = &ir.Param{Name: p.Name, DeclaredType: e.Mangler.GetCppTypeForDeclaration(declared)}
	}
	var flags ir.MethodFlags
	if m.Static {
		flags |= ir.MFlagStatic
	}
	if m.Virtual {
		flags |= ir.MFlagVirtual
	}
	if m.Abstract {
		flags |= ir.MFlagAbstract
	}
	if m.IsConstructor {
		flags |= ir.MFlagConstructor
	}
	if m.IsClassCtor {
		flags |= ir.MFlagClassConstructor
	}
	return &ir.Method{
		Name:        m.Name,
		MangledName: e.Mangler.MangleMethodName(owner.MangledName, m.Name),
		ReturnType:  e.Mangler.GetCppTypeForDeclaration(substituteTypeName(m.ReturnType.FullName, subst)),
		Params:      params,
		Flags:       flags,
		VtableSlot:  -1,
		OwningType:  owner,
	}
}

// substitutionMap zips an open type's declared parameter names against one
// instantiation's concrete argument full names (spec §4.5 phase 2: "build a
// parameter map").
func substitutionMap(open metadata.TypeRef, inst metadata.TypeRef) map[string]string {
	subst := make(map[string]string, len(open.GenericParamNames))
	for i, name := range open.GenericParamNames {
		if i < len(inst.GenericArgs) {
			subst[name] = inst.GenericArgs[i].FullName
		}
	}
	return subst
}

// substituteTypeName replaces a bare type-parameter name with its concrete
// substitution, leaving anything else unchanged. Field/parameter types that
// are themselves open generic instances over a type parameter are expected
// to already have been recorded as their own (nested) instantiation key by
// scanTypeRef, so this direct map lookup is sufficient for the common case
// of a field declared exactly as the parameter type.
func substituteTypeName(name string, subst map[string]string) string {
	if replacement, ok := subst[name]; ok {
		return replacement
	}
	return name
}

// --- Phase 3 (pass 1.5 second sweep) ---

// ResolveSpecializations resolves each specialization's base type and
// interfaces now that every specialization exists, recalculates instance
// sizes, and sets the has-class-constructor flag only when a body was
// actually converted (spec §4.5 phase 3).
func (e *Engine) ResolveSpecializations() error {
	for _, t := range e.specialized {
		inst := e.specSource[t.ManagedFullName]
		def := e.specOpenDef[t.ManagedFullName]

		if def != nil {
			subst := substitutionMap(def.Ref, inst)
			if def.Ref.BaseType != nil {
				if base, ok := e.Module.LookupByManagedName(substituteTypeName(def.Ref.BaseType.FullName, subst)); ok {
					t.BaseType = base
				}
			}
			for _, iface := range def.Ref.Interfaces {
				if resolved, ok := e.Module.LookupByManagedName(substituteTypeName(iface.FullName, subst)); ok {
					t.Interfaces = append(t.Interfaces, resolved)
				}
			}
		}

		t.InstanceSize = computeInstanceSize(t)

		hasCtor := false
		for _, m := range t.Methods {
			if m.Flags.Has(ir.MFlagClassConstructor) && m.BodyConverted {
				hasCtor = true
				break
			}
		}
		if hasCtor {
			t.Flags |= ir.FlagHasClassConstructor
		}
	}
	return nil
}

// computeInstanceSize applies spec invariant 3: reference-type headers
// occupy a fixed 16-byte prefix (type-info pointer + sync-block word +
// padding); value types start at offset 0. Each field is aligned to
// min(field-size, 8) and the total is rounded up to 8.
func computeInstanceSize(t *ir.Type) int {
	offset := 0
	if !t.IsValueType() {
		offset = 16
	}
	for _, f := range t.InstanceFields {
		size := fieldSize(f.DeclaredType)
		align := size
		if align > 8 {
			align = 8
		}
		if align > 0 && offset%align != 0 {
			offset += align - offset%align
		}
		f.Offset = offset
		offset += size
	}
	if offset%8 != 0 {
		offset += 8 - offset%8
	}
	return offset
}

// fieldSizes covers both managed field-type full names (ordinary
// specializations) and the raw C++ tokens synthesizeBCLType assigns
// directly to its fixed ABI fields.
var fieldSizes = map[string]int{
	"System.Boolean": 1, "System.Byte": 1, "System.SByte": 1, "bool": 1, "uint8_t": 1, "int8_t": 1,
	"System.Int16": 2, "System.UInt16": 2, "System.Char": 2, "int16_t": 2, "uint16_t": 2, "char16_t": 2,
	"System.Int32": 4, "System.UInt32": 4, "System.Single": 4, "int32_t": 4, "uint32_t": 4, "float": 4,
	"System.Int64": 8, "System.UInt64": 8, "System.Double": 8, "System.IntPtr": 8, "System.UIntPtr": 8,
	"int64_t": 8, "uint64_t": 8, "double": 8, "intptr_t": 8, "uintptr_t": 8,
}

func fieldSize(declaredType string) int {
	if size, ok := fieldSizes[declaredType]; ok {
		return size
	}
	return 8 // pointer-sized: reference type or unresolved value type
}

// synthesizeBCLType builds the fixed field set for a BCL generic whose
// managed layout cannot be resolved (spec §4.5 phase 2).
func (e *Engine) synthesizeBCLType(key, mangledName string, inst metadata.TypeRef, family BCLFamily) *ir.Type {
	t := &ir.Type{
		ManagedFullName: key,
		MangledName:     mangledName,
		ShortName:       mangledName,
		Flags:           ir.FlagGenericInstance,
		Origin:          ir.OriginSynthetic,
	}
	argMangled := make([]string, len(inst.GenericArgs))
	for i, a := range inst.GenericArgs {
		argMangled[i] = e.Mangler.MangleTypeName(a.FullName)
	}
	t.GenericArgNames = argMangled

	resultType := "void*"
	if len(inst.GenericArgs) == 1 {
		resultType = e.Mangler.GetCppTypeForDeclaration(inst.GenericArgs[0].FullName)
	}

	field := func(name, declared string) *ir.Field {
		return &ir.Field{Name: name, MangledName: e.Mangler.MangleFieldName(name), DeclaredType: declared, OwningType: t}
	}

	switch family {
	case FamilyTask:
		t.InstanceFields = []*ir.Field{
			field("status", "int32_t"), field("exception", "void*"), field("continuation", "void*"),
		}
		if len(inst.GenericArgs) == 1 {
			t.InstanceFields = append(t.InstanceFields, field("result", resultType))
		}
	case FamilySpan:
		t.Flags |= ir.FlagValueType
		e.Mangler.RegisterValueType(key)
		t.InstanceFields = []*ir.Field{field("ptr", resultType), field("length", "int32_t")}
	case FamilyCollection:
		t.InstanceFields = []*ir.Field{
			field("items", "void*"), field("count", "int32_t"), field("capacity", "int32_t"), field("element_type_info", "void*"),
		}
	case FamilyCancellation:
		t.InstanceFields = []*ir.Field{field("is_cancellation_requested", "bool"), field("registrations", "void*")}
	case FamilyAsyncEnumerable:
		t.Flags |= ir.FlagValueType
		e.Mangler.RegisterValueType(key)
		t.InstanceFields = []*ir.Field{field("pending_task", "void*"), field("immediate_result", resultType)}
	}
	return t
}
