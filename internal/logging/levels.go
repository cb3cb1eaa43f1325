package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug (-1). Used for per-tool wire details.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name case-insensitively, accepting
// "trace". An empty name is Info.
func LevelFromString(level string) (zapcore.Level, error) {
	switch name := strings.ToLower(strings.TrimSpace(level)); name {
	case "":
		return zapcore.InfoLevel, nil
	case "trace":
		return TraceLevel, nil
	default:
		l, err := zapcore.ParseLevel(name)
		if err != nil {
			return zapcore.InfoLevel, err
		}
		return l, nil
	}
}
