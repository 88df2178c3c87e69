package build

import (
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/mangle"
	"github.com/ilforge/ilforge/internal/metadata"
)

// typeResolver implements translate.Resolver against the Builder's own
// module: by the time pass 6 runs, every type/method/field shell pass 1-5
// created already lives in b.Module, so resolution is a pair of map
// lookups rather than a second metadata walk.
type typeResolver struct {
	module  *ir.Module
	mangler *mangle.Mangler
}

func newTypeResolver(b *Builder) *typeResolver {
	return &typeResolver{module: b.Module, mangler: b.Mangler}
}

// ResolveType implements translate.Resolver.
func (r *typeResolver) ResolveType(ref metadata.TypeRef) *ir.Type {
	if t, ok := r.module.LookupByManagedName(ref.FullName); ok {
		return t
	}
	if len(ref.GenericArgs) > 0 {
		args := make([]string, len(ref.GenericArgs))
		for i, a := range ref.GenericArgs {
			args[i] = a.FullName
		}
		key := mangle.InstantiationKey(ref.FullName, args)
		if t, ok := r.module.LookupByManagedName(key); ok {
			return t
		}
	}
	return nil
}

// ResolveMethod implements translate.Resolver: finds owner's method shell
// matching ref by name and arity (see methodMatches), searching up the
// base-type chain; parameter types are not compared. Owner
// may be nil for a call against a type ResolveType itself could not find
// (an unresolved reference, reported upstream via diag).
func (r *typeResolver) ResolveMethod(owner *ir.Type, ref metadata.MethodRef) *ir.Method {
	if owner == nil {
		return nil
	}
	for _, m := range owner.Methods {
		if methodMatches(m, ref) {
			return m
		}
	}
	if owner.BaseType != nil {
		return r.ResolveMethod(owner.BaseType, ref)
	}
	return nil
}

// methodMatches resolves by name and arity, the same granularity icall
// dispatch uses (internal/icall.Registry.Lookup) — param lists carry
// mangled C++ declaration tokens rather than managed full names by the
// time a shell exists, so a per-parameter managed-type comparison isn't
// available here; true overload ambiguity is rare enough in the supported
// bytecode subset that name+arity suffices.
func methodMatches(m *ir.Method, ref metadata.MethodRef) bool {
	return m.Name == ref.Name && len(m.Params) == len(ref.Params)
}

// ResolveField implements translate.Resolver: finds owner's field shell by
// name, walking up the base-type chain as Resolve Method does.
func (r *typeResolver) ResolveField(owner *ir.Type, ref metadata.FieldRef) *ir.Field {
	if owner == nil {
		return nil
	}
	fields := owner.InstanceFields
	if ref.Static {
		fields = owner.StaticFields
	}
	for _, f := range fields {
		if f.Name == ref.Name {
			return f
		}
	}
	if owner.BaseType != nil {
		return r.ResolveField(owner.BaseType, ref)
	}
	return nil
}
