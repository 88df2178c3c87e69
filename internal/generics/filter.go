package generics

import "strings"

// filteredNamespaces lists the internal namespace prefixes GenericEngine
// phase 1 excludes from monomorphization (spec §4.5): these constructs
// cannot be usefully specialized — they are either runtime-intrinsic,
// reflective, or side-channel concerns with no generated-code benefit from
// a dedicated specialization.
var filteredNamespaces = []string{
	"System.Runtime.Intrinsics",
	"System.Reflection",
	"System.Diagnostics",
	"System.Globalization",
	"System.Resources",
	"System.Security",
	"System.IO",
	"System.Net",
}

// isFilteredNamespace reports whether fullName's namespace is one
// GenericEngine never monomorphizes.
func isFilteredNamespace(fullName string) bool {
	for _, ns := range filteredNamespaces {
		if strings.HasPrefix(fullName, ns+".") || fullName == ns {
			return true
		}
	}
	return false
}

// BCLFamily classifies a BCL generic type whose managed field layout the
// builder cannot resolve from metadata (spec §4.5 phase 2): these get a
// synthesized fixed field set matching the runtime's ABI instead.
type BCLFamily int

const (
	FamilyNone BCLFamily = iota
	FamilyTask
	FamilySpan
	FamilyCollection
	FamilyCancellation
	FamilyAsyncEnumerable
)

func classifyBCLFamily(fullName string) BCLFamily {
	switch {
	case strings.Contains(fullName, "System.Threading.Tasks"):
		return FamilyTask
	case strings.Contains(fullName, "System.Span") || strings.Contains(fullName, "System.ReadOnlySpan") || strings.Contains(fullName, "System.Memory"):
		return FamilySpan
	case strings.Contains(fullName, "System.Collections.Generic"):
		return FamilyCollection
	case strings.Contains(fullName, "System.Threading.CancellationToken") || strings.Contains(fullName, "System.Threading.CancellationTokenSource"):
		return FamilyCancellation
	case strings.Contains(fullName, "IAsyncEnumerable") || strings.Contains(fullName, "IAsyncEnumerator") || strings.Contains(fullName, "ValueTask"):
		return FamilyAsyncEnumerable
	default:
		return FamilyNone
	}
}
