package generics_test

import (
	"testing"

	"github.com/ilforge/ilforge/internal/generics"
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/mangle"
	"github.com/ilforge/ilforge/internal/metadata"
)

type fakeCatalog struct {
	defs map[string]generics.OpenTypeDef
}

func (c fakeCatalog) LookupOpenType(fullName string) (generics.OpenTypeDef, bool) {
	d, ok := c.defs[fullName]
	return d, ok
}

func TestScanAssembly_RecordsConcreteInstantiationOnce(t *testing.T) {
	e := generics.NewEngine(ir.NewModule(), mangle.New())
	boxInt := metadata.TypeRef{FullName: "Box`1", GenericArgs: []metadata.TypeRef{{FullName: "System.Int32"}}}
	asm := metadata.AssemblyInfo{
		Types: []metadata.TypeRef{boxInt},
		Methods: map[string][]metadata.MethodRef{
			"Program": {{
				Name:       "Make",
				ReturnType: boxInt,
				Body: &metadata.MethodBody{Instructions: []metadata.DecodedInstruction{
					{Offset: 0, Opcode: metadata.OpNewobj, Operand: metadata.CallSite{
						Owner:  boxInt,
						Method: metadata.MethodRef{Name: ".ctor", IsConstructor: true},
					}},
				}},
			}},
		},
	}
	e.ScanAssembly(asm)
	keys := e.Instantiations()
	if len(keys) != 1 {
		t.Fatalf("expected one collapsed instantiation key, got %d: %v", len(keys), keys)
	}
	want := mangle.InstantiationKey("Box`1", []string{"System.Int32"})
	if keys[0] != want {
		t.Fatalf("got key %q, want %q", keys[0], want)
	}
}

func TestScanAssembly_SkipsOpenGenericArgument(t *testing.T) {
	e := generics.NewEngine(ir.NewModule(), mangle.New())
	open := metadata.TypeRef{
		FullName:    "Box`1",
		GenericArgs: []metadata.TypeRef{{FullName: "T", IsGenericOpen: true}},
	}
	e.ScanAssembly(metadata.AssemblyInfo{Types: []metadata.TypeRef{open}})
	if len(e.Instantiations()) != 0 {
		t.Fatalf("expected no recorded instantiation for an open generic argument, got %v", e.Instantiations())
	}
}

func TestScanAssembly_FiltersInternalNamespace(t *testing.T) {
	e := generics.NewEngine(ir.NewModule(), mangle.New())
	refl := metadata.TypeRef{
		FullName:    "System.Reflection.CustomAttributeData`1",
		GenericArgs: []metadata.TypeRef{{FullName: "System.Int32"}},
	}
	e.ScanAssembly(metadata.AssemblyInfo{Types: []metadata.TypeRef{refl}})
	if len(e.Instantiations()) != 0 {
		t.Fatalf("expected a filtered reflection namespace to be skipped, got %v", e.Instantiations())
	}
}

func TestCreateSpecializations_ResolvableType(t *testing.T) {
	module := ir.NewModule()
	e := generics.NewEngine(module, mangle.New())
	boxInt := metadata.TypeRef{FullName: "Box`1", GenericArgs: []metadata.TypeRef{{FullName: "System.Int32"}}}
	e.ScanAssembly(metadata.AssemblyInfo{Types: []metadata.TypeRef{boxInt}})

	catalog := fakeCatalog{defs: map[string]generics.OpenTypeDef{
		"Box`1": {
			Ref:     metadata.TypeRef{FullName: "Box`1", GenericParamNames: []string{"T"}},
			Fields:  []metadata.FieldRef{{Name: "Value", FieldType: metadata.TypeRef{FullName: "T"}}},
			Methods: nil,
		},
	}}
	if err := e.CreateSpecializations(catalog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	key := mangle.InstantiationKey("Box`1", []string{"System.Int32"})
	specialized, ok := module.LookupByManagedName(key)
	if !ok {
		t.Fatalf("expected specialized type %q in module", key)
	}
	if len(specialized.InstanceFields) != 1 || specialized.InstanceFields[0].DeclaredType != "System.Int32" {
		t.Fatalf("expected Value field substituted to System.Int32, got %+v", specialized.InstanceFields)
	}
	if !specialized.Flags.Has(ir.FlagGenericInstance) {
		t.Fatal("expected FlagGenericInstance to be set")
	}
}

func TestCreateSpecializations_BCLFamilySynthesizesTaskFields(t *testing.T) {
	module := ir.NewModule()
	e := generics.NewEngine(module, mangle.New())
	taskInt := metadata.TypeRef{
		FullName:    "System.Threading.Tasks.Task`1",
		GenericArgs: []metadata.TypeRef{{FullName: "System.Int32"}},
	}
	e.ScanAssembly(metadata.AssemblyInfo{Types: []metadata.TypeRef{taskInt}})

	if err := e.CreateSpecializations(fakeCatalog{defs: map[string]generics.OpenTypeDef{}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	key := mangle.InstantiationKey("System.Threading.Tasks.Task`1", []string{"System.Int32"})
	specialized, ok := module.LookupByManagedName(key)
	if !ok {
		t.Fatalf("expected synthesized task type %q in module", key)
	}
	var names []string
	for _, f := range specialized.InstanceFields {
		names = append(names, f.Name)
	}
	foundResult := false
	for _, n := range names {
		if n == "result" {
			foundResult = true
		}
	}
	if !foundResult {
		t.Fatalf("expected a synthesized result field for Task<T>, got fields %v", names)
	}
}

func TestCreateSpecializations_UnknownNonBCLTypeErrors(t *testing.T) {
	module := ir.NewModule()
	e := generics.NewEngine(module, mangle.New())
	unknown := metadata.TypeRef{FullName: "Acme.Widget`1", GenericArgs: []metadata.TypeRef{{FullName: "System.Int32"}}}
	e.ScanAssembly(metadata.AssemblyInfo{Types: []metadata.TypeRef{unknown}})
	if err := e.CreateSpecializations(fakeCatalog{defs: map[string]generics.OpenTypeDef{}}); err == nil {
		t.Fatal("expected an error for an unresolvable, non-BCL generic instantiation")
	}
}

func TestResolveSpecializations_ComputesInstanceSizeAndBaseType(t *testing.T) {
	module := ir.NewModule()
	if err := module.AddType(&ir.Type{ManagedFullName: "Base", MangledName: "Base"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := generics.NewEngine(module, mangle.New())
	boxInt := metadata.TypeRef{FullName: "Box`1", GenericArgs: []metadata.TypeRef{{FullName: "System.Int32"}}}
	e.ScanAssembly(metadata.AssemblyInfo{Types: []metadata.TypeRef{boxInt}})

	base := metadata.TypeRef{FullName: "Base"}
	catalog := fakeCatalog{defs: map[string]generics.OpenTypeDef{
		"Box`1": {
			Ref:     metadata.TypeRef{FullName: "Box`1", GenericParamNames: []string{"T"}, BaseType: &base},
			Fields:  []metadata.FieldRef{{Name: "Value", FieldType: metadata.TypeRef{FullName: "T"}}},
			Methods: nil,
		},
	}}
	if err := e.CreateSpecializations(catalog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.ResolveSpecializations(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	key := mangle.InstantiationKey("Box`1", []string{"System.Int32"})
	specialized, _ := module.LookupByManagedName(key)
	if specialized.BaseType == nil || specialized.BaseType.ManagedFullName != "Base" {
		t.Fatalf("expected BaseType resolved to Base, got %+v", specialized.BaseType)
	}
	// Reference type: 16-byte header + one 4-byte field, rounded up to 8.
	if specialized.InstanceSize != 24 {
		t.Fatalf("expected instance size 24, got %d", specialized.InstanceSize)
	}
}
