package learning

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/memory"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

// Threshold is how many runs must exhibit a mistake type before a rule is
// created for it.
const Threshold = memory.RuleThreshold

// Errors returned by Observe.
var (
	ErrRunOutOfOrder      = errors.New("run observed out of order")
	ErrUnknownMistakeType = errors.New("unknown mistake type")
)

// Inducer folds one run's violations into the mistake log and creates rules
// on the threshold edge.
type Inducer struct {
	threshold int
	logger    *zap.Logger
}

// NewInducer returns an inducer using Threshold.
func NewInducer(logger *zap.Logger) *Inducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inducer{threshold: Threshold, logger: logger}
}

// Observe returns a copy of state with run runNumber's violations recorded
// and any newly learned rules appended. state itself is never modified.
//
// runNumber must be state.NextRunNumber(). A type is counted once per run
// however many times it appears in violations. A rule is created only when
// a type's count becomes exactly the threshold and no rule exists yet.
func (i *Inducer) Observe(state *memory.State, runNumber int, violations []policy.Violation) (*memory.State, []memory.Rule, error) {
	if runNumber != state.NextRunNumber() {
		return nil, nil, fmt.Errorf("%w: got run %d, expected %d", ErrRunOutOfOrder, runNumber, state.NextRunNumber())
	}

	next := state.Clone()
	observed := make([]policy.MistakeType, 0, len(violations))
	seen := make(map[policy.MistakeType]bool, len(violations))

	for _, v := range violations {
		if !v.Type.Valid() {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownMistakeType, v.Type)
		}
		if seen[v.Type] {
			continue
		}
		seen[v.Type] = true
		observed = append(observed, v.Type)

		count := next.OccurrenceCount(v.Type) + 1
		next.Mistakes = append(next.Mistakes, memory.MistakeRecord{
			RunNumber:   runNumber,
			MistakeType: v.Type,
			Explanation: v.Detail,
			Occurred:    count,
		})
		i.logger.Debug("mistake recorded",
			zap.Int("run.number", runNumber),
			zap.String("mistake_type", string(v.Type)),
			zap.Int("occurred", count),
		)
	}

	var created []memory.Rule
	for _, mt := range observed {
		if next.OccurrenceCount(mt) != i.threshold {
			continue
		}
		if _, exists := next.RuleFor(mt); exists {
			continue
		}
		tmpl, ok := TemplateFor(mt)
		if !ok {
			return nil, nil, fmt.Errorf("%w: no rule template for %q", ErrUnknownMistakeType, mt)
		}
		rule := tmpl.Rule(mt, runNumber)
		next.LearnedRules = append(next.LearnedRules, rule)
		created = append(created, rule)

		i.logger.Info("rule learned",
			zap.Int("run.number", runNumber),
			zap.String("rule", rule.ID),
			zap.String("mistake_type", string(mt)),
		)
	}

	return next, created, nil
}

// Remaining reports how many more occurrences of mt are needed before a
// rule is learned, or zero when a rule already exists.
func Remaining(state *memory.State, mt policy.MistakeType) int {
	if _, ok := state.RuleFor(mt); ok {
		return 0
	}
	if n := Threshold - state.OccurrenceCount(mt); n > 0 {
		return n
	}
	return 0
}
