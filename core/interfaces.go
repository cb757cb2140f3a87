package core

import (
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task body panics during execution.
// Implementations should be thread-safe as they may be called concurrently
// by different workers.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - poolName: the name of the pool the panic occurred in
	// - workerID: the index of the worker goroutine that ran the task
	// - panicInfo: the panic value recovered from the task
	// - stackTrace: the stack trace at the time of panic
	HandlePanic(poolName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panic information via a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic. Falls back to the standard logger if none was set.
func (h *DefaultPanicHandler) HandlePanic(poolName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task panicked",
		F("pool", poolName),
		F("worker", workerID),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting pool execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus,
// StatsD, etc). All methods should be non-blocking and fast; a nil
// Metrics is never passed to a worker — Pool substitutes NilMetrics.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(poolName string, outcome OutcomeKind, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(poolName string, panicInfo any)

	// RecordQueueDepth records the current queue depth.
	RecordQueueDepth(poolName string, depth int)

	// RecordTaskRejected records that a submission was rejected.
	RecordTaskRejected(poolName string, reason string)

	// RecordCancelledAtShutdown records that a task was observed cancelled
	// while the pool was stopping.
	RecordCancelledAtShutdown(poolName string)
}

// NilMetrics is a no-op Metrics, the default when none is configured.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(poolName string, outcome OutcomeKind, duration time.Duration) {
}
func (m *NilMetrics) RecordTaskPanic(poolName string, panicInfo any)    {}
func (m *NilMetrics) RecordQueueDepth(poolName string, depth int)       {}
func (m *NilMetrics) RecordTaskRejected(poolName string, reason string) {}
func (m *NilMetrics) RecordCancelledAtShutdown(poolName string)         {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected submissions
// =============================================================================

// RejectedTaskHandler is called when Submit is rejected — the pool is
// draining or stopping. Implementations should be thread-safe.
type RejectedTaskHandler interface {
	HandleRejectedTask(poolName string, reason string)
}

// DefaultRejectedTaskHandler logs rejected submissions via a Logger.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

func (h *DefaultRejectedTaskHandler) HandleRejectedTask(poolName string, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Warn("task rejected", F("pool", poolName), F("reason", reason))
}

// =============================================================================
// Hooks: capability set for before/after/terminated callbacks
// =============================================================================

// Hooks bundles the three optional callbacks a Pool accepts at
// construction. The source pattern (subclass overrides of
// beforeExecute/afterExecute/terminated) is expressed here as a plain
// capability set instead of subclassing, per spec §9 — Go has no
// inheritance, and a struct of optional funcs composes better with the
// rest of the pool's construction options anyway.
type Hooks struct {
	// BeforeExecute runs in the worker's goroutine just before a task
	// body runs. If it returns an error, the task body and AfterExecute
	// are both skipped and the task's Handle finishes with that error.
	BeforeExecute func(item WorkItem) error

	// AfterExecute runs in the worker's goroutine after a task body
	// returns, fails, or is observed cancelled. It never runs if
	// BeforeExecute failed.
	AfterExecute func(item WorkItem, outcome Outcome)

	// Terminated runs once, after the pool reaches the terminated state.
	Terminated func()
}

// =============================================================================
// Config: construction-time collaborators and defaults
// =============================================================================

// Config holds the optional collaborators a Pool is built with. Zero
// value is valid; missing fields get no-op/default implementations.
type Config struct {
	Name                string
	PanicHandler        PanicHandler
	Metrics             Metrics
	RejectedTaskHandler RejectedTaskHandler
	Logger              Logger
	Hooks               Hooks
}

// DefaultConfig returns a Config with default handlers for anything the
// caller left unset.
func DefaultConfig() *Config {
	logger := NewDefaultLogger()
	return &Config{
		Logger:              logger,
		PanicHandler:        &DefaultPanicHandler{Logger: logger},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{Logger: logger},
	}
}

func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	out := *c
	if out.Logger == nil {
		out.Logger = NewDefaultLogger()
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &DefaultPanicHandler{Logger: out.Logger}
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.RejectedTaskHandler == nil {
		out.RejectedTaskHandler = &DefaultRejectedTaskHandler{Logger: out.Logger}
	}
	return &out
}
