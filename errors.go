package taskkernel

import (
	"errors"
	"fmt"
)

// Sentinel errors. TaskTimeoutError (below) unwraps to ErrCancelled so that
// a handler written to catch cancellation (errors.Is(err, ErrCancelled))
// also catches a timeout, per spec: TaskTimeout is a subtype of
// CancelledError.
var (
	// ErrCancelled is injected into a task being cancelled.
	ErrCancelled = errors.New("taskkernel: task cancelled")

	// ErrKernelClosed is the cancellation cause Kernel.Shutdown delivers to
	// the tasks it cancels.
	ErrKernelClosed = errors.New("taskkernel: kernel closed")

	// ErrSelfCancel is returned when a task attempts to cancel itself.
	ErrSelfCancel = errors.New("taskkernel: task cannot cancel itself")

	// ErrSemaphoreOverRelease is raised by Context.ReleaseBoundedSemaphore
	// when the counter would exceed its initial value.
	ErrSemaphoreOverRelease = errors.New("taskkernel: semaphore released more than acquired")

	// ErrLockNotHeld is raised by Context.ReleaseLock when the lock is not
	// held by the caller.
	ErrLockNotHeld = errors.New("taskkernel: release of unheld lock")

	// ErrQueueDone is raised by Context.TaskDone when called more times than
	// items were Put.
	ErrQueueDone = errors.New("taskkernel: task_done() called too many times")

	// ErrQueueFull / ErrQueueEmpty are used internally by the non-blocking
	// Queue accessors (PutNoWait / GetNoWait).
	ErrQueueFull  = errors.New("taskkernel: queue full")
	ErrQueueEmpty = errors.New("taskkernel: queue empty")

	// ErrWorkerPoolSaturated is returned by RunInThread/RunInProcess when
	// the worker pool bridge's rate limiter rejects the submission —
	// a runaway spawn loop is degraded into a bounded, logged rejection
	// rather than an unbounded pile of goroutines/processes.
	ErrWorkerPoolSaturated = errors.New("taskkernel: worker pool submission rate exceeded")
)

// TaskTimeoutError is injected when a timeout fires on a blocked task. It
// unwraps to ErrCancelled so callers that only check for cancellation still
// observe timeouts as a cancellation.
type TaskTimeoutError struct {
	// Seconds is the timeout duration that expired, for diagnostics.
	Seconds float64
}

func (e *TaskTimeoutError) Error() string {
	return fmt.Sprintf("taskkernel: timeout after %.3fs", e.Seconds)
}

// Unwrap lets errors.Is(err, ErrCancelled) match a TaskTimeoutError.
func (e *TaskTimeoutError) Unwrap() error { return ErrCancelled }

// Is reports whether target is ErrCancelled, so a bare errors.Is(err,
// ErrCancelled) check matches without needing Unwrap to be followed
// explicitly by the caller's own comparison.
func (e *TaskTimeoutError) Is(target error) bool {
	return target == ErrCancelled
}

// TaskError is raised out of Join when the joined task terminated with any
// uncaught error other than cancellation. It wraps the original error as
// its cause.
type TaskError struct {
	TaskID uint64
	Cause  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("taskkernel: task %d terminated with error: %v", e.TaskID, e.Cause)
}

func (e *TaskError) Unwrap() error { return e.Cause }

// PanicError wraps a recovered panic value from a task body. It implements
// Unwrap so errors.Is/errors.As can reach through to the original error if
// the panic value was itself an error — grounded on the teacher's
// PanicError (eventloop/errors.go).
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("taskkernel: task panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// wrapTaskError builds the error a joiner observes for a task that
// terminated abnormally. Cancellation (including timeout) passes through
// unwrapped so joiners can still errors.Is(err, ErrCancelled).
func wrapTaskError(taskID uint64, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, ErrCancelled) {
		return cause
	}
	return &TaskError{TaskID: taskID, Cause: cause}
}
