// Package logging provides structured logging for finagent.
//
// # Overview
//
// The package wraps Zap with:
//   - A Trace level (-2, below Debug)
//   - Stdout and/or OpenTelemetry output through the otelzap bridge
//   - Correlation fields pulled from the context (trace_id, run.number, run.id, request.id)
//   - Redaction of API keys and tokens
//
// # Usage
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRun(ctx, 3, runID)
//	logger.Info(ctx, "run recorded", zap.Bool("success", false))
//
// Components that only accept a *zap.Logger get Logger.Underlying().
//
// # Testing
//
// NewTestLogger returns a logger backed by zaptest/observer with
// assertion helpers such as AssertLogged and AssertField.
package logging
