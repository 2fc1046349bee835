// Package wake defines the waker type shared by the executor and the
// uring driver. It exists as its own leaf package, separate from both, to
// avoid a circular import: the driver needs to wake a task without
// importing the executor, and the executor needs to be told about
// completions without importing the driver.
package wake

// Waker is implemented by whatever the executor hands an Op when it is
// polled and not yet complete. Calling Wake schedules the waiting task for
// another poll. A Waker may be called from the same goroutine that owns the
// driver and executor (this runtime never hands a Waker to another
// thread), and may be called more than once; implementations must treat
// repeated wakes as idempotent no-ops after the first.
type Waker interface {
	Wake()

	// Equal reports whether other refers to the same underlying task as
	// this waker. Op uses this to coalesce repeated Poll calls from the
	// same task into a single stored waker, mirroring the will_wake check
	// the runtime this package is modeled on performs before replacing a
	// stored waker.
	Equal(other Waker) bool
}
