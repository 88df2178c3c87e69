package build

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ilforge/ilforge/internal/bcl"
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/metadata"
	"github.com/ilforge/ilforge/internal/translate"
)

// log is the progress channel referenced by internal/diag's package doc:
// one terse line per pass, separate from the user-facing diag.Sink.
var log = logrus.New()

// --- Pass 0: scan for generic instantiations ---

func (b *Builder) pass0ScanGenerics(assemblies []metadata.AssemblyInfo) {
	log.Debug("pass 0: scanning for generic instantiations")
	for _, asm := range assemblies {
		b.generics.ScanAssembly(asm)
	}
}

// --- Pass 1: create type shells ---

func (b *Builder) pass1CreateTypeShells(assemblies []metadata.AssemblyInfo) error {
	log.Debug("pass 1: creating type shells")
	for _, asm := range assemblies {
		for _, t := range asm.Types {
			if isOpenGenericDefinition(t) {
				continue
			}
			shell, err := b.newTypeShell(t)
			if err != nil {
				return err
			}
			if err := b.Module.AddType(shell); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) newTypeShell(t metadata.TypeRef) (*ir.Type, error) {
	mangled := b.Mangler.MangleTypeName(t.FullName)
	origin, runtimeProvided := mapOrigin(t.Origin)

	shell := &ir.Type{
		ManagedFullName: t.FullName,
		MangledName:     mangled,
		ShortName:       shortName(t.FullName),
		Namespace:       namespaceOf(t.FullName),
		Origin:          origin,
	}
	if t.IsValueType {
		shell.Flags |= ir.FlagValueType
		b.Mangler.RegisterValueType(t.FullName)
	}
	if t.IsInterface {
		shell.Flags |= ir.FlagInterface
	}
	if t.IsAbstract {
		shell.Flags |= ir.FlagAbstract
	}
	if t.IsSealed {
		shell.Flags |= ir.FlagSealed
	}
	if t.IsEnum {
		shell.Flags |= ir.FlagEnum
	}
	if t.IsDelegate {
		shell.Flags |= ir.FlagDelegate
	}
	if t.IsRecord {
		shell.Flags |= ir.FlagRecord
	}
	if runtimeProvided {
		shell.Flags |= ir.FlagRuntimeProvided
	}
	return shell, nil
}

// --- Pass 1.5: synthetic and generic-instance types ---

func (b *Builder) pass1_5CreateSyntheticAndGenericTypes() error {
	log.Debug("pass 1.5: creating generic specializations")
	if err := b.generics.CreateSpecializations(b.cat); err != nil {
		return err
	}
	return b.generics.ResolveSpecializations()
}

// --- Pass 2: populate fields, base type, interfaces, instance sizes ---

func (b *Builder) pass2PopulateFields(assemblies []metadata.AssemblyInfo) error {
	log.Debug("pass 2: populating fields and base/interface links")
	// Every non-generic shell pass 1 created gets its base/interface links
	// and fields populated here, regardless of whether it happens to own
	// any fields — gating this on the Fields map's owner set would silently
	// skip base-type linkage for a field-less type (spec invariant 3 still
	// needs InstanceSize computed, and pass 4 needs BaseType set to copy a
	// base type's vtable down).
	for _, key := range b.typeKeysInDeclarationOrder(assemblies) {
		owner, ok := b.Module.LookupByManagedName(key)
		if !ok {
			continue // an open generic definition: populated per-instantiation instead
		}
		typeDef, hasDef := b.cat.types[key]
		if hasDef {
			b.linkBaseAndInterfaces(owner, typeDef)
		}
		for _, f := range b.cat.fields[key] {
			field := &ir.Field{
				Name:          f.Name,
				MangledName:   b.Mangler.MangleFieldName(f.Name),
				DeclaredType:  f.FieldType.FullName,
				Static:        f.Static,
				Visibility:    ir.Visibility(f.Visibility),
				AttributeBits: f.AttributeBits,
				ConstantValue: f.ConstantValue,
				OwningType:    owner,
			}
			if resolved, ok := b.Module.LookupByManagedName(f.FieldType.FullName); ok {
				field.ResolvedType = resolved
			}
			if f.Static {
				owner.StaticFields = append(owner.StaticFields, field)
			} else {
				owner.InstanceFields = append(owner.InstanceFields, field)
			}
		}
	}

	for _, t := range b.Module.Types {
		if t.Flags.Has(ir.FlagGenericInstance) {
			continue // generics.ResolveSpecializations already sized these
		}
		t.InstanceSize = instanceSize(t)
	}
	return nil
}

func (b *Builder) linkBaseAndInterfaces(owner *ir.Type, t metadata.TypeRef) {
	if t.BaseType != nil {
		if base, ok := b.Module.LookupByManagedName(t.BaseType.FullName); ok {
			owner.BaseType = base
		}
	}
	for _, iface := range t.Interfaces {
		if resolved, ok := b.Module.LookupByManagedName(iface.FullName); ok {
			owner.Interfaces = append(owner.Interfaces, resolved)
		}
	}
}

// instanceSize applies spec invariant 3 directly (the non-generic twin of
// generics.computeInstanceSize, which only the generic-instance path needs
// since ordinary types get exactly one sizing pass here in pass 2).
func instanceSize(t *ir.Type) int {
	offset := 0
	if !t.IsValueType() {
		offset = 16 // reference-type header: type-info pointer + sync-block word + padding
	}
	for _, f := range t.InstanceFields {
		size := 8
		switch f.DeclaredType {
		case "System.Boolean", "System.Byte", "System.SByte":
			size = 1
		case "System.Int16", "System.UInt16", "System.Char":
			size = 2
		case "System.Int32", "System.UInt32", "System.Single":
			size = 4
		case "System.Int64", "System.UInt64", "System.Double":
			size = 8
		default:
			size = 8 // reference or unresolved value-type field: pointer-sized slot
		}
		align := size
		if align > 8 {
			align = 8
		}
		if rem := offset % align; rem != 0 {
			offset += align - rem
		}
		f.Offset = offset
		offset += size
	}
	if rem := offset % 8; rem != 0 {
		offset += 8 - rem
	}
	return offset
}

// --- Pass 2.5: flag class constructors ---

func (b *Builder) pass2_5FlagClassConstructors(assemblies []metadata.AssemblyInfo) {
	log.Debug("pass 2.5: flagging class constructors")
	for _, key := range sortedAssemblyOwners(assemblies, func(a metadata.AssemblyInfo) map[string][]metadata.MethodRef { return a.Methods }) {
		owner, ok := b.Module.LookupByManagedName(key)
		if !ok {
			continue
		}
		for _, m := range b.cat.methods[key] {
			if m.IsClassCtor && m.Body != nil {
				owner.Flags |= ir.FlagHasClassConstructor
				break
			}
		}
	}
}

// --- Pass 3: create method shells ---

func (b *Builder) pass3CreateMethodShells(assemblies []metadata.AssemblyInfo) error {
	log.Debug("pass 3: creating method shells")
	for _, asm := range assemblies {
		for _, key := range sortedAssemblyOwners([]metadata.AssemblyInfo{asm}, func(a metadata.AssemblyInfo) map[string][]metadata.MethodRef { return a.Methods }) {
			owner, ok := b.Module.LookupByManagedName(key)
			if !ok {
				continue
			}
			for _, m := range b.cat.methods[key] {
				if len(m.GenericParams) > 0 {
					continue // open generic method: pass 3.5 creates its instantiations
				}
				meth := b.newMethodShell(owner, m)
				owner.Methods = append(owner.Methods, meth)

				if m.IsEntryPoint && asm.IsRoot {
					if b.entryPoint != nil {
						return fmt.Errorf("build: multiple entry points found, first was %s", b.entryPoint.MangledName)
					}
					meth.Flags |= ir.MFlagEntryPoint
					b.entryPoint = meth
				}
				if m.IsFinalizer {
					b.finalizers = append(b.finalizers, meth)
				}
				if m.Body != nil {
					b.pendingBodies = append(b.pendingBodies, pendingBody{Method: meth, Owner: owner, Body: m.Body})
				}
			}
		}
	}
	return nil
}

func (b *Builder) newMethodShell(owner *ir.Type, m metadata.MethodRef) *ir.Method {
	params := make([]*ir.Param, len(m.Params))
	for i, p := range m.Params {
		params[i] = &ir.Param{Name: p.Name, DeclaredType: b.Mangler.GetCppTypeForDeclaration(p.Type.FullName)}
		if resolved, ok := b.Module.LookupByManagedName(p.Type.FullName); ok {
			params[i].ResolvedType = resolved
		}
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
	if m.IsFinalizer {
		flags |= ir.MFlagFinalizer
	}
	if m.Body == nil {
		flags |= ir.MFlagInternalCall
	}

	meth := &ir.Method{
		Name:        m.Name,
		MangledName: b.Mangler.MangleMethodName(owner.MangledName, m.Name),
		ReturnType:  b.Mangler.GetCppTypeForDeclaration(m.ReturnType.FullName),
		Params:      params,
		Flags:       flags,
		VtableSlot:  -1,
		OwningType:  owner,
	}
	if resolved, ok := b.Module.LookupByManagedName(m.ReturnType.FullName); ok {
		meth.ReturnTypeIR = resolved
	}
	return meth
}

// --- Pass 3.5: specialized generic-method instantiations ---

func (b *Builder) pass3_5CreateSpecializedMethods() error {
	log.Debug("pass 3.5: generic-method instantiations resolved via pass 1.5's PendingBodies queue")
	// Generic type specializations already created their specialized
	// methods in generics.Engine.specializeResolvable (pass 1.5); their
	// bodies are queued on e.PendingBodies rather than b.pendingBodies
	// because they need the substitution-aware resolver built in pass 6.
	return nil
}

// --- Pass 4: build vtables ---

func (b *Builder) pass4BuildVtables() {
	log.Debug("pass 4: building vtables")
	for _, t := range b.Module.Types {
		if t.IsInterface() {
			continue
		}
		buildVtable(t)
	}
}

// buildVtable applies spec invariant 2: the root reference type is
// pre-seeded with three fixed slots (ToString, Equals, GetHashCode, in that
// order); every other base-type slot is copied down by index; a derived
// method matching an existing slot's name and parameter-type sequence
// overrides in place, otherwise it appends a new slot.
func buildVtable(t *ir.Type) {
	if t.BaseType == nil && !t.IsValueType() {
		t.Vtable = []ir.VtableSlot{
			{Name: "ToString"},
			{Name: "Equals"},
			{Name: "GetHashCode"},
		}
	} else if t.BaseType != nil {
		t.Vtable = append([]ir.VtableSlot(nil), t.BaseType.Vtable...)
	}

	for _, m := range t.Methods {
		if m.Flags.Has(ir.MFlagStatic) || !m.IsVirtual() && !m.Flags.Has(ir.MFlagAbstract) {
			continue
		}
		paramTypes := paramTypeSequence(m)
		matched := -1
		for i, slot := range t.Vtable {
			if slot.Name != m.Name {
				continue
			}
			// The three pre-seeded root slots (spec invariant 2) carry no
			// ParamTypes until their first implementation fills them in — match
			// on name alone the first time; every subsequent slot (appended by
			// a derived type) matches on the full parameter-type sequence too.
			if slot.Method == nil && slot.ParamTypes == nil {
				matched = i
				break
			}
			if paramTypesEqual(slot.ParamTypes, paramTypes) {
				matched = i
				break
			}
		}
		if matched >= 0 {
			t.Vtable[matched].Method = m
			t.Vtable[matched].ParamTypes = paramTypes
			m.VtableSlot = matched
		} else {
			m.VtableSlot = len(t.Vtable)
			t.Vtable = append(t.Vtable, ir.VtableSlot{Name: m.Name, ParamTypes: paramTypes, Method: m})
		}
	}
}

func paramTypeSequence(m *ir.Method) []string {
	out := make([]string, len(m.Params))
	for i, p := range m.Params {
		out[i] = p.DeclaredType
	}
	return out
}

func paramTypesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- Pass 5: build interface implementation maps ---

func (b *Builder) pass5BuildInterfaceMaps() {
	log.Debug("pass 5: building interface implementation maps")
	for _, t := range b.Module.Types {
		if t.IsInterface() {
			continue
		}
		for _, iface := range t.Interfaces {
			t.InterfaceMaps = append(t.InterfaceMaps, buildInterfaceMap(t, iface))
		}
	}
}

// buildInterfaceMap applies spec invariant 4: the slot list always has
// exactly len(iface.Methods) entries; a method t never implements is a nil
// slot, never an omission.
func buildInterfaceMap(t, iface *ir.Type) ir.InterfaceImplMap {
	slots := make([]*ir.Method, len(iface.Methods))
	for i, ifaceMethod := range iface.Methods {
		slots[i] = findImplementation(t, iface, ifaceMethod)
	}
	return ir.InterfaceImplMap{Interface: iface, Slots: slots}
}

func findImplementation(t, iface *ir.Type, ifaceMethod *ir.Method) *ir.Method {
	wantParams := paramTypeSequence(ifaceMethod)
	for cur := t; cur != nil; cur = cur.BaseType {
		for _, override := range explicitOverrides(cur, iface, ifaceMethod.Name) {
			return override
		}
		for _, m := range cur.Methods {
			if m.Name == ifaceMethod.Name && paramTypesEqual(paramTypeSequence(m), wantParams) {
				return m
			}
		}
	}
	return nil
}

func explicitOverrides(t, iface *ir.Type, methodName string) []*ir.Method {
	var out []*ir.Method
	for _, m := range t.Methods {
		for _, ov := range m.Overrides {
			if ov.TargetInterface == iface && ov.MethodName == methodName {
				out = append(out, m)
			}
		}
	}
	return out
}

// --- Pass 5.5: attach custom-attribute records ---

func (b *Builder) pass5_5AttachCustomAttributes(assemblies []metadata.AssemblyInfo) {
	log.Debug("pass 5.5: custom attributes carried via field/method AttributeBits only (supplemented scope, spec §9)")
	// The decoded-metadata contract (metadata.FieldRef.AttributeBits) is the
	// only custom-attribute surface this build consumes; a full attribute
	// blob/argument model is out of the supplemented scope this pass covers.
}

// --- Pass 6: convert method bodies ---

func (b *Builder) pass6ConvertMethodBodies() error {
	log.Debug("pass 6: converting method bodies")
	resolver := newTypeResolver(b)
	translator := translate.New(resolver, b.Mangler, b.Icalls, b.Diag, b.PreferManagedShortcuts)
	translator.Interceptors = b.Interceptors
	if translator.Interceptors == nil {
		translator.Interceptors = bcl.NewChain(b.Mangler)
	}

	for _, pb := range b.pendingBodies {
		if err := translator.Translate(pb.Method, pb.Owner, pb.Body); err != nil {
			return err
		}
	}

	for _, pb := range b.generics.PendingBodies {
		substResolver := &substitutingResolver{inner: resolver, subst: pb.Subst}
		sub := translate.New(substResolver, b.Mangler, b.Icalls, b.Diag, b.PreferManagedShortcuts)
		sub.Interceptors = translator.Interceptors
		if err := sub.Translate(pb.Method, pb.Owner, pb.Body); err != nil {
			return err
		}
	}
	return nil
}

// substitutingResolver resolves a generic method instantiation's body
// against its own parameter map before falling back to the ordinary type
// cache (spec §4.5 phase 2: "convert the body with the parameter map
// active").
type substitutingResolver struct {
	inner translate.Resolver
	subst map[string]string
}

func (r *substitutingResolver) ResolveType(ref metadata.TypeRef) *ir.Type {
	if concrete, ok := r.subst[ref.FullName]; ok {
		ref.FullName = concrete
	}
	return r.inner.ResolveType(ref)
}

func (r *substitutingResolver) ResolveMethod(owner *ir.Type, ref metadata.MethodRef) *ir.Method {
	return r.inner.ResolveMethod(owner, ref)
}

func (r *substitutingResolver) ResolveField(owner *ir.Type, ref metadata.FieldRef) *ir.Field {
	return r.inner.ResolveField(owner, ref)
}

// --- Pass 7: synthesize record method bodies ---

func (b *Builder) pass7SynthesizeRecordBodies() error {
	log.Debug("pass 7: synthesizing record method bodies")
	for _, t := range b.Module.Types {
		if !t.Flags.Has(ir.FlagRecord) {
			continue
		}
		if err := b.records.Synthesize(t); err != nil {
			return err
		}
	}
	return nil
}
