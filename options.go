package taskkernel

import (
	"os"
	"runtime"
)

// kernelOptions holds NewKernel's configuration, grounded directly on the
// teacher's loopOptions (options.go).
type kernelOptions struct {
	maxWorkerThreads   int
	maxWorkerProcesses int
	logger             *Logger
	monitor            bool
}

func defaultKernelOptions() kernelOptions {
	return kernelOptions{
		maxWorkerThreads:   64,
		maxWorkerProcesses: runtime.NumCPU(),
		monitor:            os.Getenv("TASKKERNEL_MONITOR") == "true",
	}
}

// Option configures a Kernel at construction time, grounded on the
// teacher's LoopOption/loopOptionImpl/resolveLoopOptions (options.go).
type Option interface {
	apply(*kernelOptions)
}

type optionFunc func(*kernelOptions)

func (f optionFunc) apply(o *kernelOptions) { f(o) }

// WithMaxWorkerThreads bounds the thread-pool worker bridge's concurrency
// (spec.md §4.F, §6.4 MaxWorkerThreads).
func WithMaxWorkerThreads(n int) Option {
	return optionFunc(func(o *kernelOptions) {
		if n > 0 {
			o.maxWorkerThreads = n
		}
	})
}

// WithMaxWorkerProcesses bounds the process-pool worker bridge's
// concurrency (spec.md §6.4 MaxWorkerProcesses).
func WithMaxWorkerProcesses(n int) Option {
	return optionFunc(func(o *kernelOptions) {
		if n > 0 {
			o.maxWorkerProcesses = n
		}
	})
}

// WithLogger installs a structured logger for kernel diagnostics (task
// spawned/terminated, cancellation, worker pool saturation). Defaults to a
// no-op logger if never set.
func WithLogger(l *Logger) Option {
	return optionFunc(func(o *kernelOptions) {
		o.logger = l
	})
}

// WithMonitor enables the TASKKERNEL_MONITOR hook point: the interactive
// debug monitor itself is out of scope for this kernel (spec.md Non-goals
// §1), but the enable/disable plumbing — and the resulting Kernel.monitor
// flag available to an external monitor implementation built on top of
// this package — lives here.
func WithMonitor(enabled bool) Option {
	return optionFunc(func(o *kernelOptions) {
		o.monitor = enabled
	})
}

func resolveKernelOptions(opts []Option) kernelOptions {
	o := defaultKernelOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}
