// Package icall implements the IcallRegistry (spec.md §4.2): a dual-table
// lookup from a managed method signature to a runtime C++ symbol name,
// partitioned into true internal calls (always active) and managed
// shortcuts (elidable when a managed body is compilable).
package icall

// Category partitions the registry's two tables.
type Category int

const (
	TrueInternalCall Category = iota
	ManagedShortcut
)

// Entry is one registered mapping.
type Entry struct {
	Symbol        string
	Category      Category
	// FirstParamType, when non-empty, makes this entry only match calls
	// whose first parameter mangles to this C++ type (the "typed-by-first-
	// parameter" table).
	FirstParamType string
	// Wildcard means this entry matches by method name alone, regardless
	// of arity (the "wildcard-by-name" table).
	Wildcard bool
	Arity    int
}

type key struct {
	Type   string
	Method string
}

// Registry holds the three lookup tables (exact-arity, wildcard-by-name,
// typed-by-first-parameter) for each of the two categories.
type Registry struct {
	exact  map[key][]Entry
	wild   map[key][]Entry
	typed  map[key][]Entry
}

func New() *Registry {
	return &Registry{
		exact: make(map[key][]Entry),
		wild:  make(map[key][]Entry),
		typed: make(map[key][]Entry),
	}
}

// Register adds an entry for (type, method). Typed entries and wildcard
// entries are distinguished by the Entry's own fields; exact-arity entries
// are everything else.
func (r *Registry) Register(typeFullName, methodName string, e Entry) {
	k := key{Type: typeFullName, Method: methodName}
	switch {
	case e.FirstParamType != "":
		r.typed[k] = append(r.typed[k], e)
	case e.Wildcard:
		r.wild[k] = append(r.wild[k], e)
	default:
		r.exact[k] = append(r.exact[k], e)
	}
}

// Lookup implements the spec's consultation order: typed -> exact ->
// wildcard, returning the first hit. skipManaged excludes ManagedShortcut
// entries, used in multi-assembly mode when managed-shortcut elision is in
// effect and the caller prefers compiling the bytecode body instead (spec
// §4.2, §6).
func (r *Registry) Lookup(typeFullName, methodName string, arity int, firstParamType string, skipManaged bool) (Entry, bool) {
	k := key{Type: typeFullName, Method: methodName}

	if firstParamType != "" {
		if e, ok := findTyped(r.typed[k], firstParamType, skipManaged); ok {
			return e, true
		}
	}
	if e, ok := findExact(r.exact[k], arity, skipManaged); ok {
		return e, true
	}
	if e, ok := findWildcard(r.wild[k], skipManaged); ok {
		return e, true
	}
	return Entry{}, false
}

func findTyped(entries []Entry, firstParamType string, skipManaged bool) (Entry, bool) {
	for _, e := range entries {
		if skipManaged && e.Category == ManagedShortcut {
			continue
		}
		if e.FirstParamType == firstParamType {
			return e, true
		}
	}
	return Entry{}, false
}

func findExact(entries []Entry, arity int, skipManaged bool) (Entry, bool) {
	for _, e := range entries {
		if skipManaged && e.Category == ManagedShortcut {
			continue
		}
		if e.Arity == arity {
			return e, true
		}
	}
	return Entry{}, false
}

func findWildcard(entries []Entry, skipManaged bool) (Entry, bool) {
	for _, e := range entries {
		if skipManaged && e.Category == ManagedShortcut {
			continue
		}
		return e, true
	}
	return Entry{}, false
}

// InterlockedCompareExchangeObjectOverload is the special case in spec
// §4.2: a generic reference-argument variant of Interlocked.CompareExchange
// dispatches to the object-typed overload when the type argument is not a
// value type, instead of the typed-by-first-parameter entry that would
// otherwise be picked for the open generic signature.
func InterlockedCompareExchangeObjectOverload(isValueTypeArg bool) bool {
	return !isValueTypeArg
}
