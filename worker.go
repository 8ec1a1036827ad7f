package taskkernel

import (
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/joeycumines/go-catrate"
)

// workResult carries a background submission's outcome back to the
// scheduler goroutine over a dedicated channel, so the scheduler can learn
// about completion the same way it learns about timer/selector readiness:
// by something arriving on a channel it selects over.
type workResult struct {
	task *Task
	val  any
	err  error
}

// workerBridge is the kernel's worker pool bridge (spec.md §4.F): a
// bounded thread pool and a bounded process pool, each rate-shaped by a
// sliding-window limiter so a burst of RunInThread/RunInProcess calls
// cannot flood the OS scheduler with goroutines or child processes.
//
// Cancellation semantics differ by pool kind, per spec.md: a cancelled
// thread-pool submission is "zombied" — left running, its result
// discarded when it eventually completes — because a goroutine cannot be
// forcibly killed; a cancelled process-pool submission is sent SIGTERM,
// because an external process can be.
type workerBridge struct {
	threadSem  chan struct{}
	procSem    chan struct{}
	limiter    *catrate.Limiter
	results    chan workResult
	wg         sync.WaitGroup
	procsMu    sync.Mutex
	procs      map[uint64]*exec.Cmd

	// wake is pinged after every delivered result so the scheduler's
	// blocking selector.poll (which may otherwise have nothing else to
	// wait on) notices results is non-empty and drains it.
	wake *wakePipe
	log  *Logger
}

func newWorkerBridge(maxThreads, maxProcesses int, wake *wakePipe, log *Logger) *workerBridge {
	return &workerBridge{
		threadSem: make(chan struct{}, maxThreads),
		procSem:   make(chan struct{}, maxProcesses),
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: maxThreads + maxProcesses,
		}),
		results: make(chan workResult, 64),
		procs:   make(map[uint64]*exec.Cmd),
		wake:    wake,
		log:     log,
	}
}

// submitThread runs work on a pooled goroutine; cancellation detaches it
// (the "zombie thread" semantics) rather than interrupting it. If the
// rate limiter rejects the submission, the goroutine is never started and
// ok is false — the caller reports ErrWorkerPoolSaturated instead of
// piling another goroutine onto an already-saturated pool.
func (wb *workerBridge) submitThread(t *Task, work func() (any, error)) (ok bool) {
	if _, allowed := wb.limiter.Allow("thread"); !allowed {
		wb.log.Warning().Uint64("task_id", t.ID).Log("thread-pool submission rejected: rate exceeded")
		return false
	}
	wb.wg.Add(1)
	go func() {
		defer wb.wg.Done()
		wb.threadSem <- struct{}{}
		defer func() { <-wb.threadSem }()
		val, err := work()
		wb.results <- workResult{task: t, val: val, err: err}
		_ = wb.wake.signal()
	}()
	return true
}

// submitProcess runs argv[0] with argv[1:] as arguments in a pooled child
// process. The *exec.Cmd is recorded under the task's ID so cancelProcess
// can send it SIGTERM. Like submitThread, a rate-limiter rejection never
// starts the process and reports ok=false.
func (wb *workerBridge) submitProcess(t *Task, argv []string) (ok bool) {
	if _, allowed := wb.limiter.Allow("process"); !allowed {
		wb.log.Warning().Uint64("task_id", t.ID).Log("process-pool submission rejected: rate exceeded")
		return false
	}
	wb.wg.Add(1)
	cmd := exec.Command(argv[0], argv[1:]...)
	wb.procsMu.Lock()
	wb.procs[t.ID] = cmd
	wb.procsMu.Unlock()
	go func() {
		defer wb.wg.Done()
		wb.procSem <- struct{}{}
		defer func() { <-wb.procSem }()
		out, err := cmd.Output()
		wb.procsMu.Lock()
		delete(wb.procs, t.ID)
		wb.procsMu.Unlock()
		wb.results <- workResult{task: t, val: out, err: err}
		_ = wb.wake.signal()
	}()
	return true
}

// cancelProcess sends SIGTERM to t's in-flight child process, if any. A
// no-op if the task isn't running a process-pool submission (already
// completed, or never had one).
func (wb *workerBridge) cancelProcess(t *Task) {
	wb.procsMu.Lock()
	cmd := wb.procs[t.ID]
	wb.procsMu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
}

// wait blocks until every outstanding thread/process submission has
// delivered its result, called by Kernel.Run before it returns to avoid
// leaking goroutines past the kernel's own lifetime.
func (wb *workerBridge) wait() {
	wb.wg.Wait()
}
