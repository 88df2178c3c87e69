// Package mangle implements the NameMangler: a deterministic, purely
// structural mapping from managed full names to C++ identifiers (spec.md
// §4.1). It never consults the type cache, so it is stable across build
// passes and agrees with the emitter even for types that do not exist yet.
package mangle

import (
	"fmt"
	"strconv"
	"strings"
)

// cppKeywords are escaped by appending an underscore so a managed name
// never collides with a reserved C++ word.
var cppKeywords = map[string]bool{
	"class": true, "struct": true, "union": true, "template": true,
	"typename": true, "namespace": true, "using": true, "new": true,
	"delete": true, "public": true, "private": true, "protected": true,
	"virtual": true, "override": true, "final": true, "operator": true,
	"friend": true, "explicit": true, "export": true, "import": true,
	"module": true, "concept": true, "requires": true, "co_await": true,
	"co_yield": true, "co_return": true, "register": true, "auto": true,
	"int": true, "float": true, "double": true, "bool": true, "char": true,
	"void": true, "long": true, "short": true, "signed": true, "unsigned": true,
	"static": true, "const": true, "volatile": true, "typedef": true,
	"inline": true, "sizeof": true, "enum": true, "default": true,
	"switch": true, "case": true, "goto": true, "return": true,
}

// runtimeNamespacePrefixes are reserved because the emitted code links
// against a runtime whose symbols live under these prefixes (spec §6).
var runtimeNamespacePrefixes = []string{"gc", "object", "array", "string", "task", "Monitor", "Interlocked"}

var primitiveCppTypes = map[string]string{
	"System.Boolean": "bool",
	"System.Byte":    "uint8_t",
	"System.SByte":   "int8_t",
	"System.Int16":   "int16_t",
	"System.UInt16":  "uint16_t",
	"System.Int32":   "int32_t",
	"System.UInt32":  "uint32_t",
	"System.Int64":   "int64_t",
	"System.UInt64":  "uint64_t",
	"System.Single":  "float",
	"System.Double":  "double",
	"System.Char":    "char16_t",
	"System.Void":    "void",
	"System.IntPtr":  "intptr_t",
	"System.UIntPtr": "uintptr_t",
}

var primitiveDefaults = map[string]string{
	"bool": "false", "uint8_t": "0", "int8_t": "0", "int16_t": "0",
	"uint16_t": "0", "int32_t": "0", "uint32_t": "0", "int64_t": "0",
	"uint64_t": "0", "float": "0.0f", "double": "0.0", "char16_t": "0",
	"intptr_t": "0", "uintptr_t": "0",
}

// Mangler holds the build-scoped value-type registry. It is the only
// process-wide mutable state in the core (spec §5) and must be cleared at
// the start of every build, never shared across goroutines.
type Mangler struct {
	valueTypes map[string]bool
}

// New creates a Mangler with an empty value-type registry.
func New() *Mangler {
	return &Mangler{valueTypes: make(map[string]bool)}
}

// Reset clears the value-type registry, as required at the start of every
// build (spec §5, §9 design notes).
func (m *Mangler) Reset() {
	m.valueTypes = make(map[string]bool)
}

// RegisterValueType marks a managed full name as emitted by value (no `*`
// suffix in declarations).
func (m *Mangler) RegisterValueType(managedName string) {
	m.valueTypes[managedName] = true
}

func (m *Mangler) IsValueType(managedName string) bool {
	if m.valueTypes[managedName] {
		return true
	}
	return m.IsPrimitive(managedName)
}

func (m *Mangler) IsPrimitive(managedName string) bool {
	_, ok := primitiveCppTypes[managedName]
	return ok
}

// MangleTypeName maps a managed full name (e.g. "System.Collections.Generic.List")
// to a C++ identifier, handling the array (`[]`) and by-ref (`&`) suffixes
// that can trail a managed type name.
func (m *Mangler) MangleTypeName(managedFullName string) string {
	name := managedFullName
	suffix := ""
	for strings.HasSuffix(name, "[]") {
		name = strings.TrimSuffix(name, "[]")
		suffix += "_Array"
	}
	byRef := strings.HasSuffix(name, "&")
	if byRef {
		name = strings.TrimSuffix(name, "&")
		suffix += "_Ref"
	}
	// A dotted segment that is a C++ keyword is escaped as well, so
	// "MyNamespace.class" does not lose its escape once joined.
	segments := strings.Split(name, ".")
	for i, seg := range segments {
		if cppKeywords[seg] {
			segments[i] = seg + "_"
		}
	}
	ident := sanitizeIdent(strings.Join(segments, "."))
	return escapeReserved(ident + suffix)
}

// MangleGenericInstance mangles an open generic type's name together with
// its concrete argument full names into the identifier for the closed
// specialization (spec §3 invariant 7: equal keys collapse).
func (m *Mangler) MangleGenericInstance(openName string, argumentNames []string) string {
	var b strings.Builder
	b.WriteString(m.MangleTypeName(openName))
	for _, arg := range argumentNames {
		b.WriteString("__")
		b.WriteString(m.MangleTypeName(arg))
	}
	return escapeReserved(b.String())
}

// InstantiationKey builds the cache key for a generic instantiation: the
// open type's full name with angle-bracketed, comma-separated argument full
// names (spec §3 invariant 7, §4.5 "Key construction").
func InstantiationKey(openFullName string, argumentFullNames []string) string {
	return openFullName + "<" + strings.Join(argumentFullNames, ",") + ">"
}

// MangleMethodName combines an owning type's mangled name with a method
// name into the C++ member-function identifier.
func (m *Mangler) MangleMethodName(typeMangled, methodName string) string {
	return escapeReserved(typeMangled + "__" + sanitizeIdent(methodName))
}

// MangleFieldName mangles a bare field name (fields never collide across
// types in the emitted struct since they are always member-qualified, but
// still get reserved-word escaping).
func (m *Mangler) MangleFieldName(name string) string {
	return escapeReserved(sanitizeIdent(name))
}

// GetCppTypeForDeclaration returns the C++ token to use in a declaration
// for managedName, appending `*` iff the name is not registered as a value
// type (spec §4.1).
func (m *Mangler) GetCppTypeForDeclaration(managedName string) string {
	if cpp, ok := primitiveCppTypes[managedName]; ok {
		return cpp
	}
	mangled := m.MangleTypeName(managedName)
	if m.IsValueType(managedName) {
		return mangled
	}
	return mangled + "*"
}

// GetDefaultValue returns the zero-value literal for a C++ type token, used
// wherever the translator needs a value-type default (e.g. `initobj`, a
// Nullable's backing value field, a missing interface-map slot's dummy).
func GetDefaultValue(cppType string) string {
	if v, ok := primitiveDefaults[cppType]; ok {
		return v
	}
	if strings.HasSuffix(cppType, "*") {
		return "nullptr"
	}
	return cppType + "{}"
}

func sanitizeIdent(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '.' || r == '/' || r == '+' || r == ' ' || r == '-' || r == ':':
			b.WriteByte('_')
		case r == '`':
			b.WriteString("_arity")
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
		default:
			b.WriteString("_u" + strconv.Itoa(int(r)))
		}
	}
	s := b.String()
	if s == "" {
		return "_"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}

// escapeReserved appends an underscore to C++ keywords and to any
// identifier that collides with a reserved runtime-namespace prefix (spec
// §4.1: "Reserved identifiers ... are escaped by appending an underscore").
func escapeReserved(ident string) string {
	if cppKeywords[ident] {
		return ident + "_"
	}
	for _, prefix := range runtimeNamespacePrefixes {
		if ident == prefix {
			return ident + "_"
		}
	}
	return ident
}

// Fmt is a small convenience used by callers that need a one-off mangled
// diagnostic label (e.g. "List<T> instantiation Foo.Bar<System.Int32>").
func Fmt(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
