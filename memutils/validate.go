package memutils

// Validatable is used by the DebugValidate method to allow it to act upon
// all types with a Validate method
type Validatable interface {
	Validate() error
}

// DebugEnabled returns true when the module was built with the debug_mem_utils tag, in which case
// guard bytes are written after suballocations and DebugValidate runs its checks.
func DebugEnabled() bool {
	return DebugMargin > 0
}
