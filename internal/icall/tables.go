package icall

import "github.com/ilforge/ilforge/internal/abi"

// NewDefaultRegistry seeds a registry with a representative slice of real
// BCL surface: enough to exercise the dual-table/priority-order contract
// (spec §4.2) end to end, not an exhaustive BCL surface (that job belongs
// to the much larger BclInterceptors chain in internal/bcl for anything
// complex enough to need inline codegen rather than a one-to-one runtime
// call).
func NewDefaultRegistry() *Registry {
	r := New()

	r.Register("System.Console", "WriteLine", Entry{Symbol: "console_write_line", Category: TrueInternalCall, Wildcard: true})
	r.Register("System.Console", "Write", Entry{Symbol: "console_write", Category: TrueInternalCall, Wildcard: true})

	r.Register("System.String", "Concat", Entry{Symbol: abi.StringConcat, Category: TrueInternalCall, Wildcard: true})
	r.Register("System.String", "Equals", Entry{Symbol: abi.StringEquals, Category: TrueInternalCall, Arity: 2})
	r.Register("System.String", "get_Length", Entry{Symbol: abi.StringLength, Category: TrueInternalCall, Arity: 1})
	r.Register("System.String", "GetHashCode", Entry{Symbol: abi.StringGetHashCode, Category: TrueInternalCall, Arity: 1})
	r.Register("System.String", "Format", Entry{Symbol: abi.StringFormat, Category: TrueInternalCall, Wildcard: true})
	r.Register("System.String", "Trim", Entry{Symbol: abi.StringTrim, Category: ManagedShortcut, Arity: 1})
	r.Register("System.String", "Replace", Entry{Symbol: abi.StringReplace, Category: ManagedShortcut, Arity: 3})
	r.Register("System.String", "IndexOf", Entry{Symbol: abi.StringIndexOf, Category: ManagedShortcut, Wildcard: true})
	r.Register("System.String", "CompareTo", Entry{Symbol: abi.StringCompare, Category: ManagedShortcut, Arity: 2})

	r.Register("System.Math", "Max", Entry{Symbol: "math_max_i32", Category: ManagedShortcut, FirstParamType: "int32_t"})
	r.Register("System.Math", "Max", Entry{Symbol: "math_max_f64", Category: ManagedShortcut, FirstParamType: "double"})
	r.Register("System.Math", "Min", Entry{Symbol: "math_min_i32", Category: ManagedShortcut, FirstParamType: "int32_t"})
	r.Register("System.Math", "Min", Entry{Symbol: "math_min_f64", Category: ManagedShortcut, FirstParamType: "double"})
	r.Register("System.Math", "Abs", Entry{Symbol: "math_abs", Category: ManagedShortcut, Wildcard: true})
	r.Register("System.Math", "Sqrt", Entry{Symbol: "math_sqrt", Category: TrueInternalCall, Arity: 1})

	r.Register("System.Array", "Copy", Entry{Symbol: abi.ArrayCopy, Category: TrueInternalCall, Wildcard: true})
	r.Register("System.Array", "Clear", Entry{Symbol: abi.ArrayClear, Category: TrueInternalCall, Wildcard: true})
	r.Register("System.Array", "get_Length", Entry{Symbol: abi.ArrayLength, Category: TrueInternalCall, Arity: 1})

	r.Register("System.Threading.Monitor", "Enter", Entry{Symbol: abi.MonitorEnter, Category: TrueInternalCall, Wildcard: true})
	r.Register("System.Threading.Monitor", "Exit", Entry{Symbol: abi.MonitorExit, Category: TrueInternalCall, Arity: 1})
	r.Register("System.Threading.Monitor", "Wait", Entry{Symbol: abi.MonitorWait, Category: TrueInternalCall, Wildcard: true})
	r.Register("System.Threading.Monitor", "Pulse", Entry{Symbol: abi.MonitorPulse, Category: TrueInternalCall, Arity: 1})
	r.Register("System.Threading.Monitor", "PulseAll", Entry{Symbol: abi.MonitorPulseAll, Category: TrueInternalCall, Arity: 1})

	r.Register("System.Threading.Interlocked", "Increment", Entry{Symbol: abi.InterlockedIncrement + "_i32", Category: TrueInternalCall, FirstParamType: "int32_t*"})
	r.Register("System.Threading.Interlocked", "Increment", Entry{Symbol: abi.InterlockedIncrement + "_i64", Category: TrueInternalCall, FirstParamType: "int64_t*"})
	r.Register("System.Threading.Interlocked", "Decrement", Entry{Symbol: abi.InterlockedDecrement + "_i32", Category: TrueInternalCall, FirstParamType: "int32_t*"})
	r.Register("System.Threading.Interlocked", "Exchange", Entry{Symbol: abi.InterlockedExchange + "_i32", Category: TrueInternalCall, FirstParamType: "int32_t*"})
	r.Register("System.Threading.Interlocked", "Exchange", Entry{Symbol: abi.InterlockedExchange + "_obj", Category: TrueInternalCall, FirstParamType: "void**"})
	r.Register("System.Threading.Interlocked", "CompareExchange", Entry{Symbol: abi.InterlockedCompareExchange + "_i32", Category: TrueInternalCall, FirstParamType: "int32_t*"})
	r.Register("System.Threading.Interlocked", "CompareExchange", Entry{Symbol: abi.InterlockedCompareExchange + "_obj", Category: TrueInternalCall, FirstParamType: "void**"})
	r.Register("System.Threading.Interlocked", "Add", Entry{Symbol: abi.InterlockedAdd + "_i32", Category: TrueInternalCall, FirstParamType: "int32_t*"})

	r.Register("System.GC", "Collect", Entry{Symbol: abi.GCCollect, Category: TrueInternalCall, Wildcard: true})
	r.Register("System.GC", "KeepAlive", Entry{Symbol: abi.GCKeepAlive, Category: TrueInternalCall, Arity: 1})

	return r
}
