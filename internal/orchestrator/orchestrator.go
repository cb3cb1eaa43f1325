package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/agent"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/directive"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/events"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/learning"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/memory"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

const instrumentationName = "finagent/orchestrator"

// Orchestrator drives runs and owns the in-memory copy of learning state.
type Orchestrator struct {
	mu sync.Mutex

	store     memory.Store
	executor  agent.Executor
	checker   *policy.Checker
	inducer   *learning.Inducer
	applier   *directive.Applier
	publisher events.Publisher
	metrics   *Metrics
	tracer    trace.Tracer
	logger    *zap.Logger
	progress  ProgressCallback
	now       func() time.Time
	newID     func() string

	// state is the last copy read from or written to the store. dirty means
	// it holds a run the store has not accepted yet, and is then kept over
	// what the store has.
	state *memory.State
	dirty bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the tracer used for run spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithChecker replaces the default policy checker.
func WithChecker(c *policy.Checker) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.checker = c
		}
	}
}

// WithApplier replaces the default directive builder.
func WithApplier(a *directive.Applier) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.applier = a
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(cb ProgressCallback) Option {
	return func(o *Orchestrator) {
		o.progress = cb
	}
}

// WithClock overrides the timestamp source for run records.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an orchestrator over store and executor.
func New(store memory.Store, executor agent.Executor, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("memory store is required")
	}
	if executor == nil {
		return nil, errors.New("agent executor is required")
	}

	o := &Orchestrator{
		store:     store,
		executor:  executor,
		checker:   policy.NewChecker(),
		applier:   directive.NewApplier(nil),
		publisher: events.Nop{},
		metrics:   NewMetrics(nil),
		tracer:    otel.Tracer(instrumentationName),
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.inducer = learning.NewInducer(o.logger)

	return o, nil
}

// Run executes one query through the full state machine.
//
// A nil outcome with an *ExecutionError means the agent failed or ctx was
// canceled before the run was recorded; memory is unchanged. A non-nil
// outcome with an error wrapping memory.ErrStorageIO means the run was
// recorded in memory but not persisted.
func (o *Orchestrator) Run(ctx context.Context, query string) (*Outcome, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// Held until the run is persisted so no other process can take the
	// same run number.
	unlock, err := o.lockStore(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := o.loadLocked(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	runNumber := state.NextRunNumber()
	runID := o.newID()
	logger := o.logger.With(zap.Int("run.number", runNumber), zap.String("run.id", runID))

	ctx, span := o.tracer.Start(ctx, "orchestrator.run", trace.WithAttributes(
		attribute.Int("run.number", runNumber),
		attribute.String("run.id", runID),
	))
	defer span.End()

	o.transition(logger, runNumber, StateInit, query)
	o.publish(ctx, events.Event{Kind: events.KindStarted, RunNumber: runNumber, RunID: runID, Query: query})

	d := o.applier.Build(runNumber, state.Rules())
	span.SetAttributes(
		attribute.String("directive.variant", d.Variant),
		attribute.Float64("directive.temperature", d.Temperature),
	)
	o.transition(logger, runNumber, StateDirectiveBuilt, d.Variant)

	result, err := o.execute(ctx, runNumber, query, d)
	if err == nil && ctx.Err() != nil {
		// A trace that arrives after cancellation is discarded whole.
		err = ctx.Err()
	}
	if err != nil {
		execErr := &ExecutionError{RunNumber: runNumber, Err: err}
		o.fail(ctx, logger, span, runID, execErr, start)
		return nil, execErr
	}
	o.transition(logger, runNumber, StateExecuted, strings.Join(result.ToolsCalled, ","))

	violations := o.checker.Check(policy.TraceFromStrings(result.ToolsCalled), result.Utilization)
	o.transition(logger, runNumber, StateChecked, fmt.Sprintf("%d violations", len(violations)))

	next, learned, err := o.inducer.Observe(state, runNumber, violations)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("observe run %d: %w", runNumber, err)
	}
	record := memory.RunRecord{
		RunNumber:     runNumber,
		RunID:         runID,
		Timestamp:     o.now(),
		Query:         query,
		ToolsUsed:     append([]string{}, result.ToolsCalled...),
		Success:       policy.Succeeded(violations),
		Violations:    policy.Types(violations),
		PromptVariant: d.Variant,
	}
	if err := next.AppendRun(record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("record run %d: %w", runNumber, err)
	}

	o.state = next
	o.dirty = true
	o.transition(logger, runNumber, StateRecorded, "")
	o.observeMetrics(record, violations, learned)

	outcome := &Outcome{
		Record:       record,
		Violations:   violations,
		LearnedRules: learned,
		Directive:    d,
		ReportText:   result.ReportText,
		State:        StateRecorded,
	}

	logger.Info("run recorded",
		zap.Bool("success", record.Success),
		zap.Strings("violations", mistakeStrings(record.Violations)),
		zap.String("variant", d.Variant),
		zap.Int("rules_learned", len(learned)),
	)

	// Once recorded the run is committed; cancellation no longer applies.
	persistCtx := context.WithoutCancel(ctx)
	persistErr := o.persistLocked(persistCtx)
	o.metrics.RunDuration.Observe(time.Since(start).Seconds())

	completed := events.Event{
		Kind:       events.KindCompleted,
		RunNumber:  runNumber,
		RunID:      runID,
		Query:      query,
		Success:    record.Success,
		Violations: mistakeStrings(record.Violations),
	}
	if persistErr != nil {
		o.metrics.PersistFailures.Inc()
		logger.Warn("run recorded but not persisted",
			zap.Bool("persist_failed", true),
			zap.Error(persistErr),
		)
		span.RecordError(persistErr)
		completed.Warning = persistErr.Error()
	} else {
		outcome.State = StatePersisted
		outcome.Persisted = true
		o.transition(logger, runNumber, StatePersisted, "")
	}

	o.publish(persistCtx, completed)
	for _, r := range learned {
		o.publish(persistCtx, events.Event{
			Kind:      events.KindRuleLearned,
			RunNumber: runNumber,
			RunID:     runID,
			Rule:      r.ID,
		})
	}

	if persistErr != nil {
		return outcome, fmt.Errorf("run %d recorded but not persisted: %w", runNumber, persistErr)
	}
	return outcome, nil
}

// execute calls the agent inside its own span.
func (o *Orchestrator) execute(ctx context.Context, runNumber int, query string, d directive.Directive) (*agent.Result, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.execute")
	defer span.End()

	result, err := o.executor.Execute(ctx, agent.Request{
		Query:           query,
		InstructionText: d.InstructionText,
		Temperature:     d.Temperature,
		RunNumber:       runNumber,
		Variant:         d.Variant,
		Enforced:        d.Enforced,
	})
	if err == nil && result == nil {
		err = errors.New("executor returned no result")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.StringSlice("tools", result.ToolsCalled))
	return result, nil
}

// fail ends a run in RUN_FAILED without touching state.
func (o *Orchestrator) fail(ctx context.Context, logger *zap.Logger, span trace.Span, runID string, err *ExecutionError, start time.Time) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "run failed")
	o.metrics.RunsTotal.WithLabelValues(outcomeExecutionFailed).Inc()
	o.metrics.RunDuration.Observe(time.Since(start).Seconds())
	o.transition(logger, err.RunNumber, StateRunFailed, err.Err.Error())
	logger.Warn("agent execution failed", zap.Error(err.Err))

	o.publish(context.WithoutCancel(ctx), events.Event{
		Kind:      events.KindFailed,
		RunNumber: err.RunNumber,
		RunID:     runID,
		Error:     err.Err.Error(),
	})
}

// Flush persists a run left unsaved by an earlier save failure.
func (o *Orchestrator) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.dirty {
		return nil
	}
	unlock, err := o.lockStore(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return o.persistLocked(ctx)
}

// Dirty reports whether memory holds a run the store has not accepted.
func (o *Orchestrator) Dirty() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dirty
}

// Reset discards all history, persists the empty state and returns it.
func (o *Orchestrator) Reset(ctx context.Context) (*memory.State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	unlock, err := o.lockStore(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	fresh, err := o.store.Reset(ctx)
	if err != nil {
		return nil, fmt.Errorf("reset memory: %w", err)
	}
	o.state = fresh
	o.dirty = false
	o.logger.Info("memory reset")
	o.publish(ctx, events.Event{Kind: events.KindMemoryReset})

	return fresh.Clone(), nil
}

// Snapshot returns a deep copy of the current state as last persisted by
// any process.
func (o *Orchestrator) Snapshot(ctx context.Context) (*memory.State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, err := o.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// lockStore takes the store's cross-process lock when it has one.
func (o *Orchestrator) lockStore(ctx context.Context) (func(), error) {
	l, ok := o.store.(memory.Locker)
	if !ok {
		return func() {}, nil
	}
	unlock, err := l.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock memory: %w", err)
	}
	return unlock, nil
}

// loadLocked rereads the store unless an unsaved run is pending, so runs
// made by other processes are seen.
func (o *Orchestrator) loadLocked(ctx context.Context) (*memory.State, error) {
	if o.dirty {
		return o.state, nil
	}
	state, err := o.store.Load(ctx)
	if err != nil {
		if errors.Is(err, memory.ErrStorageCorrupt) {
			o.logger.Error("learning memory is corrupt", zap.Error(err))
		}
		return nil, err
	}
	o.state = state
	return state, nil
}

func (o *Orchestrator) persistLocked(ctx context.Context) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator.persist")
	defer span.End()

	if err := o.store.Save(ctx, o.state); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	o.dirty = false
	return nil
}

func (o *Orchestrator) transition(logger *zap.Logger, runNumber int, state RunState, msg string) {
	logger.Debug("run state", zap.String("state", string(state)), zap.String("detail", msg))
	if o.progress != nil {
		o.progress(Progress{RunNumber: runNumber, State: state, Message: msg})
	}
}

func (o *Orchestrator) observeMetrics(rec memory.RunRecord, violations []policy.Violation, learned []memory.Rule) {
	if rec.Success {
		o.metrics.RunsTotal.WithLabelValues(outcomeSuccess).Inc()
	} else {
		o.metrics.RunsTotal.WithLabelValues(outcomePolicyViolation).Inc()
	}
	for _, v := range violations {
		o.metrics.ViolationsTotal.WithLabelValues(string(v.Type)).Inc()
	}
	o.metrics.RulesLearned.Add(float64(len(learned)))
}

func (o *Orchestrator) publish(ctx context.Context, e events.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = o.now()
	}
	if err := o.publisher.Publish(ctx, e); err != nil {
		o.logger.Warn("failed to publish run event",
			zap.String("kind", string(e.Kind)),
			zap.Int("run.number", e.RunNumber),
			zap.Error(err),
		)
	}
}

func mistakeStrings(types []policy.MistakeType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
