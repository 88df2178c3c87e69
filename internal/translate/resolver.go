package translate

import (
	"github.com/ilforge/ilforge/internal/ir"
	"github.com/ilforge/ilforge/internal/metadata"
)

// Resolver looks up the already-created IR shells a metadata reference
// names. The type cache itself belongs to the IRBuilder driver (internal
// passes 1/1.5); the translator only ever reads through this seam so it
// never has to know how a type got into the cache.
type Resolver interface {
	ResolveType(ref metadata.TypeRef) *ir.Type
	ResolveMethod(owner *ir.Type, ref metadata.MethodRef) *ir.Method
	ResolveField(owner *ir.Type, ref metadata.FieldRef) *ir.Field
}
