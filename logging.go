package taskkernel

import (
	"log/slog"
	"os"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// Logger is this kernel's structured-logging handle: a logiface.Logger
// bound to the logiface-slog event type, matching the teacher's own
// logiface.New[*Event](slogadapter.NewLogger(handler)) wiring pattern.
type Logger = logiface.Logger[*islog.Event]

// NewSlogLogger builds a Logger writing through a standard log/slog
// handler, for WithLogger. Most callers just want NewDefaultLogger.
func NewSlogLogger(handler slog.Handler, level logiface.Level) *Logger {
	return logiface.New[*islog.Event](
		islog.NewLogger(handler),
		logiface.WithLevel[*islog.Event](level),
	)
}

// NewDefaultLogger returns a Logger writing informational-and-above
// messages to stderr as text, the kernel's out-of-the-box default.
func NewDefaultLogger() *Logger {
	return NewSlogLogger(slog.NewTextHandler(os.Stderr, nil), logiface.LevelInformational)
}

// noopLogger is installed when the caller never supplies WithLogger, so
// call sites never need a nil check.
func noopLogger() *Logger {
	return logiface.New[*islog.Event](islog.NewLogger(slog.NewTextHandler(os.Stdin, &slog.HandlerOptions{
		Level: slog.Level(127), // effectively disables every level
	})))
}

// logTaskSpawned/logTaskTerminated/logCancel are the kernel's own
// diagnostic call sites, grounded on the teacher's logging.go usage of
// leveled structured fields rather than printf-style messages.
func (k *Kernel) logTaskSpawned(t *Task, parent *Task) {
	b := k.log.Debug().Uint64("task_id", t.ID)
	if parent != nil {
		b = b.Uint64("parent_id", parent.ID)
	}
	b.Log("task spawned")
}

func (k *Kernel) logTaskTerminated(t *Task) {
	b := k.log.Debug().Uint64("task_id", t.ID)
	if t.err != nil {
		b = b.Err(t.err)
	}
	b.Log("task terminated")
}

func (k *Kernel) logCancel(t *Task, cause error) {
	k.log.Info().Uint64("task_id", t.ID).Err(cause).Log("task cancelled")
}
