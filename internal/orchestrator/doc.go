// Package orchestrator runs one agent query end to end and folds the
// outcome into learning memory.
//
// # Run states
//
//	INIT → DIRECTIVE_BUILT → EXECUTED → CHECKED → RECORDED → PERSISTED
//
// Any failure before RECORDED, including cancellation, ends in RUN_FAILED
// and leaves memory untouched. A run that reaches RECORDED is committed in
// memory even if the following save fails; the save error is returned
// alongside the outcome and Flush retries it.
//
// # Concurrency
//
// Runs are serialized. The load, observe and save cycle for one run holds
// the orchestrator's lock on every exit path, so concurrent callers see
// strictly increasing run numbers with no gaps.
//
// # Usage
//
//	orch, err := orchestrator.New(store, executor,
//	    orchestrator.WithLogger(logger),
//	    orchestrator.WithMetrics(orchestrator.NewMetrics(prometheus.DefaultRegisterer)),
//	)
//	outcome, err := orch.Run(ctx, "NVIDIA")
package orchestrator
