// Package bcl implements BclInterceptors (spec.md §4.4): the chain of
// call-site interceptors the BytecodeTranslator consults before ordinary
// icall/virtual/direct call resolution, covering BCL constructs (Nullable,
// ValueTuple, Task, Span, List/Dictionary, LINQ, reflection, string
// formatting, exception-dispatch capture) whose managed semantics do not
// map onto a single runtime symbol call.
package bcl

import (
	"github.com/ilforge/ilforge/internal/mangle"
	"github.com/ilforge/ilforge/internal/translate"
)

// NewChain builds the interceptor chain, most specific first: nullable,
// value-tuple, task/awaiter/builder, async-iterator, span, list/dictionary
// collections, LINQ, reflection, string-format and exception-dispatch.
// Sites none of them handle fall through to the translator's own
// icall/virtual/direct resolution. The chain has no equality-comparer or
// multi-dimensional-array interceptor.
func NewChain(mangler *mangle.Mangler) []translate.Interceptor {
	return []translate.Interceptor{
		&nullableInterceptor{mangler: mangler},
		&valueTupleInterceptor{mangler: mangler},
		&taskInterceptor{},
		&asyncIteratorInterceptor{},
		&spanInterceptor{mangler: mangler},
		&collectionsInterceptor{},
		&linqInterceptor{mangler: mangler},
		&reflectionInterceptor{},
		&stringFormatInterceptor{},
		&exceptionDispatchInterceptor{},
	}
}
