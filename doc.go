// Copyright 2026 The taskkernel Authors
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package taskkernel provides a single-threaded, event-driven cooperative
// task kernel: a scheduler, timer heap, I/O readiness selector, signal
// dispatcher, worker-pool bridge, and a set of synchronization primitives
// (Event, Lock, Semaphore, Condition, Queue) built on top of kernel wait
// queues.
//
// # Execution model
//
// User code runs as a "task": a function given a *Context, run on its own
// goroutine. A task suspends by issuing a trap to the kernel — read/write
// readiness, sleep, join, cancel, timeout, queue wait — and is resumed with
// either a value or an injected error. Exactly one task's goroutine is ever
// actually running; every other task goroutine is parked on a channel
// receive, and the scheduler goroutine itself blocks on a task's trap
// channel for the duration that task runs. This reproduces single-threaded
// cooperative semantics using Go's own scheduler rather than a hand-rolled
// state machine.
//
// # Usage
//
//	k, err := taskkernel.NewKernel()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer k.Close()
//
//	_, err = k.Run(context.Background(), func(ctx *taskkernel.Context) (any, error) {
//		child, err := ctx.Spawn(childTask, false)
//		if err != nil {
//			return nil, err
//		}
//		return ctx.Join(child)
//	}, false)
//
// # Platform support
//
// I/O readiness is implemented using platform-native mechanisms: epoll on
// Linux, kqueue on Darwin.
package taskkernel
