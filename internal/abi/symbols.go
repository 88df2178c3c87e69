// Package abi names the C++ symbols the emitted code consumes from the
// runtime library (spec.md §6). None of these symbols are defined here —
// the runtime is an external collaborator with a fixed ABI — but the core
// must agree on their exact spelling when it builds Call/RawCpp
// instructions that invoke them, so this is the single source of truth for
// that spelling.
package abi

// Memory.
const (
	GCAlloc     = "gc::alloc"
	GCCollect   = "gc_collect"
	GCKeepAlive = "gc_keep_alive"
)

// Strings.
const (
	StringLength       = "string_length"
	StringConcat       = "string_concat"
	StringFromInt32    = "string_from_int32"
	StringFromInt64    = "string_from_int64"
	StringFromDouble   = "string_from_double"
	StringFromBool     = "string_from_bool"
	StringFromChar     = "string_from_char"
	StringEquals       = "string_equals"
	StringGetHashCode  = "string_get_hash_code"
	StringLiteral      = "string_literal"
	StringFormat       = "string_format"
	StringCompare      = "string_compare"
	StringTrim         = "string_trim"
	StringReplace      = "string_replace"
	StringIndexOf      = "string_index_of"
)

// Arrays.
const (
	ArrayCreate        = "array_create"
	ArrayData          = "array_data"
	ArrayLength        = "array_length"
	ArrayGet           = "array_get"
	ArraySet           = "array_set"
	ArrayGetElementPtr = "array_get_element_ptr"
	ArrayCopy          = "array_copy"
	ArrayClear         = "array_clear"
)

// Objects and casts.
const (
	ObjectGetTypeManaged = "object_get_type_managed"
	ObjectToString       = "object_to_string"
	ObjectEquals         = "object_equals"
	ObjectGetHashCode    = "object_get_hash_code"
	ObjectCast           = "object_cast" // throwing
	ObjectAs             = "object_as"   // null-on-failure
	ObjectIsInstanceOf   = "object_is_instance_of"
	Box                  = "box"
	Unbox                = "unbox"
	UnboxPtr             = "unbox_ptr"
)

// Exceptions.
const (
	ThrowException            = "throw_exception"
	ThrowInvalidOperation     = "throw_invalid_operation"
	ThrowArgumentOutOfRange   = "throw_argument_out_of_range"
)

// Tasks.
const (
	TaskCreatePending   = "task_create_pending"
	TaskInitPending     = "task_init_pending"
	TaskInitCompleted   = "task_init_completed"
	TaskComplete        = "task_complete"
	TaskFault           = "task_fault"
	TaskWait            = "task_wait"
	TaskIsCompleted     = "task_is_completed"
	TaskAddContinuation = "task_add_continuation"
	TaskGetCompleted    = "task_get_completed"
	TaskDelay           = "task_delay"
	TaskRun             = "task_run"
	TaskWhenAll         = "task_when_all"
	TaskWhenAny         = "task_when_any"
)

// Monitors and atomics. Interlocked variants are suffixed per type below.
const (
	MonitorEnter    = "Monitor_Enter"
	MonitorExit     = "Monitor_Exit"
	MonitorWait     = "Monitor_Wait"
	MonitorPulse    = "Monitor_Pulse"
	MonitorPulseAll = "Monitor_PulseAll"

	InterlockedIncrement      = "Interlocked_Increment"
	InterlockedDecrement      = "Interlocked_Decrement"
	InterlockedExchange       = "Interlocked_Exchange"
	InterlockedCompareExchange = "Interlocked_CompareExchange"
	InterlockedAdd            = "Interlocked_Add"
)

// InterlockedSuffix picks the `_i32`/`_i64`/`_obj` suffix for an atomic
// primitive given the mangled C++ operand type (spec §4.2's compare-and-swap
// special case: a generic reference-argument CAS dispatches to the
// object-typed overload when the type argument is not a value type).
func InterlockedSuffix(cppType string, isValueType bool) string {
	if !isValueType {
		return "_obj"
	}
	switch cppType {
	case "int64_t", "uint64_t":
		return "_i64"
	default:
		return "_i32"
	}
}

// Delegates.
const (
	DelegateCreate = "delegate_create"
	DelegateInvoke = "delegate_invoke"
)
