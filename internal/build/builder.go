// Package build implements the IRBuilder driver (spec.md §4.6): it
// orchestrates the seven-pass pipeline that turns decoded metadata into a
// finished *ir.Module, owning the type cache every other package's
// consumer-defined interface (translate.Resolver, generics.Catalog) reads
// through.
//
// Grounded on internal/mir/lowerer.go's driver shape: one long-lived struct
// holding the running Module plus per-pass counters/maps, with each pass a
// method on that struct rather than a free function, mirroring
// Lowerer.LowerModule's orchestration of LowerFunction across every
// declaration in a file.
package build

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ilforge/ilforge/internal/diag"
	"github.com/ilforge/ilforge/internal/generics"
	"github.com/ilforge/ilforge/internal/icall"
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/mangle"
	"github.com/ilforge/ilforge/internal/metadata"
	"github.com/ilforge/ilforge/internal/records"
	"github.com/ilforge/ilforge/internal/translate"
)

// Builder runs the seven-pass build for one compilation. Not safe for
// concurrent use, matching the single-threaded pass-sequential driver the
// spec requires (spec §5).
type Builder struct {
	Module  *ir.Module
	Mangler *mangle.Mangler
	Icalls  *icall.Registry
	Diag    *diag.Sink

	// PreferManagedShortcuts mirrors the build option translate.Translator
	// reads: when false, managed-shortcut icall entries are skipped so the
	// bytecode body compiles instead (spec §4.2).
	PreferManagedShortcuts bool

	// Interceptors is the BclInterceptors chain every converted method body
	// runs call sites through (spec §4.4). Callers wire bcl.NewChain here.
	Interceptors []translate.Interceptor

	generics *generics.Engine
	records  *records.Synthesizer
	cat      *typeCatalog

	entryPoint *ir.Method
	finalizers []*ir.Method

	// pendingBodies queues every non-generic method whose body still needs
	// translation, collected in pass 3 and drained in pass 6.
	pendingBodies []pendingBody
}

type pendingBody struct {
	Method *ir.Method
	Owner  *ir.Type
	Body   *metadata.MethodBody
}

// NewBuilder creates a Builder with an empty module and a fresh Mangler
// (spec §5: the Mangler's value-type registry must be cleared at the start
// of every build).
func NewBuilder() *Builder {
	module := ir.NewModule()
	mangler := mangle.New()
	return &Builder{
		Module:                 module,
		Mangler:                mangler,
		Icalls:                 icall.NewDefaultRegistry(),
		Diag:                   diag.NewSink(),
		PreferManagedShortcuts: true,
		generics:               generics.NewEngine(module, mangler),
		records:                records.NewSynthesizer(mangler),
		cat:                    newTypeCatalog(),
	}
}

// Build runs all seven passes over assemblies and returns the finished
// module (spec §4.6). assemblies must include exactly one root assembly
// (AssemblyInfo.IsRoot) — the only one the entry-point search considers.
func (b *Builder) Build(assemblies []metadata.AssemblyInfo) (*ir.Module, error) {
	buildID := uuid.NewString()
	log.WithField("build_id", buildID).Debug("build: starting")

	b.cat.index(assemblies)

	b.pass0ScanGenerics(assemblies)
	if err := b.pass1CreateTypeShells(assemblies); err != nil {
		return nil, err
	}
	if err := b.pass1_5CreateSyntheticAndGenericTypes(); err != nil {
		return nil, err
	}
	if err := b.pass2PopulateFields(assemblies); err != nil {
		return nil, err
	}
	b.pass2_5FlagClassConstructors(assemblies)
	if err := b.pass3CreateMethodShells(assemblies); err != nil {
		return nil, err
	}
	if err := b.pass3_5CreateSpecializedMethods(); err != nil {
		return nil, err
	}
	b.pass4BuildVtables()
	b.pass5BuildInterfaceMaps()
	b.pass5_5AttachCustomAttributes(assemblies)
	if err := b.pass6ConvertMethodBodies(); err != nil {
		return nil, err
	}
	if err := b.pass7SynthesizeRecordBodies(); err != nil {
		return nil, err
	}

	b.Module.EntryPoint = b.entryPoint
	return b.Module, nil
}

// typeCatalog indexes every assembly's declared types/fields/methods by
// managed full name, ahead of any IR type existing — both pass 1's shell
// walk and generics.Engine's Catalog read through it.
type typeCatalog struct {
	types   map[string]metadata.TypeRef
	fields  map[string][]metadata.FieldRef
	methods map[string][]metadata.MethodRef
}

func newTypeCatalog() *typeCatalog {
	return &typeCatalog{
		types:   make(map[string]metadata.TypeRef),
		fields:  make(map[string][]metadata.FieldRef),
		methods: make(map[string][]metadata.MethodRef),
	}
}

func (c *typeCatalog) index(assemblies []metadata.AssemblyInfo) {
	for _, asm := range assemblies {
		for _, t := range asm.Types {
			c.types[t.FullName] = t
		}
		for name, fields := range asm.Fields {
			c.fields[name] = append(c.fields[name], fields...)
		}
		for name, methods := range asm.Methods {
			c.methods[name] = append(c.methods[name], methods...)
		}
	}
}

// LookupOpenType implements generics.Catalog.
func (c *typeCatalog) LookupOpenType(fullName string) (generics.OpenTypeDef, bool) {
	t, ok := c.types[fullName]
	if !ok {
		return generics.OpenTypeDef{}, false
	}
	return generics.OpenTypeDef{Ref: t, Fields: c.fields[fullName], Methods: c.methods[fullName]}, true
}

// isOpenGenericDefinition reports whether t is an open generic type
// definition (declares parameter names but is not itself an instantiation)
// rather than a concrete type pass 1 should shell out directly — its shells
// are created later, by generics.Engine in pass 1.5, once a concrete
// instantiation of it is actually referenced (spec §4.6 pass 1: "skip open
// generics").
func isOpenGenericDefinition(t metadata.TypeRef) bool {
	return len(t.GenericParamNames) > 0
}

func shortName(fullName string) string {
	if idx := strings.LastIndexByte(fullName, '.'); idx >= 0 {
		return fullName[idx+1:]
	}
	return fullName
}

func namespaceOf(fullName string) string {
	if idx := strings.LastIndexByte(fullName, '.'); idx >= 0 {
		return fullName[:idx]
	}
	return ""
}

func mapOrigin(o metadata.Origin) (ir.TypeOrigin, bool) {
	switch o {
	case metadata.OriginUser:
		return ir.OriginUser, false
	case metadata.OriginThirdParty:
		return ir.OriginThirdParty, false
	case metadata.OriginBaseLibrary:
		return ir.OriginBaseLibrary, false
	case metadata.OriginRuntimeProvided:
		return ir.OriginBaseLibrary, true
	default:
		return ir.OriginUser, false
	}
}

// typeKeysInDeclarationOrder returns every declared type's full name across
// assemblies, in the order assemblies/Types lists them, deduplicated.
func (b *Builder) typeKeysInDeclarationOrder(assemblies []metadata.AssemblyInfo) []string {
	var keys []string
	for _, asm := range assemblies {
		for _, t := range asm.Types {
			keys = append(keys, t.FullName)
		}
	}
	return lo.Uniq(keys)
}

// sortedAssemblyOwners returns the owner keys of a per-type map
// (AssemblyInfo.Fields / .Methods) in sorted order, so repeated builds of
// the same input visit them identically (map iteration order otherwise
// isn't stable).
func sortedAssemblyOwners[V any](assemblies []metadata.AssemblyInfo, pick func(metadata.AssemblyInfo) map[string][]V) []string {
	var all []string
	for _, asm := range assemblies {
		all = append(all, lo.Keys(pick(asm))...)
	}
	keys := lo.Uniq(all)
	sort.Strings(keys)
	return keys
}
