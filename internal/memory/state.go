package memory

import (
	"errors"
	"fmt"
	"time"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

// ErrInvariant marks a State that breaks one of its structural invariants.
var ErrInvariant = errors.New("memory invariant violated")

// RuleThreshold is the occurrence count at which a mistake type gets its
// rule. A valid state holds a rule for a type iff its count reached it.
const RuleThreshold = 2

// MistakeRecord is one occurrence of a mistake type in one run.
type MistakeRecord struct {
	RunNumber   int                `json:"run_number"`
	MistakeType policy.MistakeType `json:"mistake_type"`
	Explanation string             `json:"explanation"`
	// Occurred is the running tally of this mistake type including this
	// entry.
	Occurred int `json:"occurred"`
}

// RunRecord is the append-only outcome of one completed run.
type RunRecord struct {
	RunNumber     int                  `json:"run_number"`
	RunID         string               `json:"run_id,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
	Query         string               `json:"query"`
	ToolsUsed     []string             `json:"tools_used"`
	Success       bool                 `json:"success"`
	Violations    []policy.MistakeType `json:"violations"`
	PromptVariant string               `json:"prompt_variant,omitempty"`
}

// Rule is an immutable behavioral constraint learned from a repeated
// mistake.
type Rule struct {
	ID            string             `json:"rule"`
	Description   string             `json:"description"`
	Constraint    string             `json:"constraint"`
	MistakeType   policy.MistakeType `json:"mistake_type"`
	CreatedAtRun  int                `json:"created_at_run"`
	RequiredTools []string           `json:"required_tools,omitempty"`
}

// State is the persisted aggregate. Slices keep their documented order:
// mistakes and run history by run number, rules by creation.
type State struct {
	TotalRuns    int             `json:"total_runs"`
	Mistakes     []MistakeRecord `json:"mistakes"`
	RunHistory   []RunRecord     `json:"run_history"`
	LearnedRules []Rule          `json:"learned_rules"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Mistakes:     []MistakeRecord{},
		RunHistory:   []RunRecord{},
		LearnedRules: []Rule{},
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return NewState()
	}
	out := &State{
		TotalRuns:    s.TotalRuns,
		Mistakes:     make([]MistakeRecord, len(s.Mistakes)),
		RunHistory:   make([]RunRecord, len(s.RunHistory)),
		LearnedRules: make([]Rule, len(s.LearnedRules)),
	}
	copy(out.Mistakes, s.Mistakes)
	for i, r := range s.RunHistory {
		r.ToolsUsed = append([]string{}, r.ToolsUsed...)
		r.Violations = append([]policy.MistakeType{}, r.Violations...)
		out.RunHistory[i] = r
	}
	for i, r := range s.LearnedRules {
		if r.RequiredTools != nil {
			r.RequiredTools = append([]string{}, r.RequiredTools...)
		}
		out.LearnedRules[i] = r
	}
	return out
}

// NextRunNumber returns the number the next completed run will carry.
func (s *State) NextRunNumber() int {
	return s.TotalRuns + 1
}

// OccurrenceCount returns how many runs have exhibited mistake type mt.
func (s *State) OccurrenceCount(mt policy.MistakeType) int {
	n := 0
	for _, m := range s.Mistakes {
		if m.MistakeType == mt {
			n++
		}
	}
	return n
}

// OccurrenceCounts returns the tally for every mistake type seen so far.
func (s *State) OccurrenceCounts() map[policy.MistakeType]int {
	counts := make(map[policy.MistakeType]int)
	for _, m := range s.Mistakes {
		counts[m.MistakeType]++
	}
	return counts
}

// RuleFor returns the rule learned for mt, if any.
func (s *State) RuleFor(mt policy.MistakeType) (Rule, bool) {
	for _, r := range s.LearnedRules {
		if r.MistakeType == mt {
			return r, true
		}
	}
	return Rule{}, false
}

// Rules returns the learned rules in creation order.
func (s *State) Rules() []Rule {
	out := make([]Rule, len(s.LearnedRules))
	copy(out, s.LearnedRules)
	return out
}

// SuccessfulRuns counts runs that finished without violations.
func (s *State) SuccessfulRuns() int {
	n := 0
	for _, r := range s.RunHistory {
		if r.Success {
			n++
		}
	}
	return n
}

// AppendRun records a completed run. rec.RunNumber must be the next run
// number and Success must agree with the violations.
func (s *State) AppendRun(rec RunRecord) error {
	if rec.RunNumber != s.NextRunNumber() {
		return fmt.Errorf("%w: run %d recorded after run %d", ErrInvariant, rec.RunNumber, s.TotalRuns)
	}
	if rec.Success != (len(rec.Violations) == 0) {
		return fmt.Errorf("%w: run %d success=%t with %d violations", ErrInvariant, rec.RunNumber, rec.Success, len(rec.Violations))
	}
	if rec.ToolsUsed == nil {
		rec.ToolsUsed = []string{}
	}
	if rec.Violations == nil {
		rec.Violations = []policy.MistakeType{}
	}
	s.RunHistory = append(s.RunHistory, rec)
	s.TotalRuns = len(s.RunHistory)
	return nil
}

// Validate checks the structural invariants of a complete state.
func (s *State) Validate() error {
	if s.TotalRuns != len(s.RunHistory) {
		return fmt.Errorf("%w: total_runs=%d but run_history has %d entries", ErrInvariant, s.TotalRuns, len(s.RunHistory))
	}

	runViolations := make(map[policy.MistakeType]int)
	for i, r := range s.RunHistory {
		if r.RunNumber != i+1 {
			return fmt.Errorf("%w: run_history[%d] has run_number %d", ErrInvariant, i, r.RunNumber)
		}
		if r.Success != (len(r.Violations) == 0) {
			return fmt.Errorf("%w: run %d success disagrees with violations", ErrInvariant, r.RunNumber)
		}
		seen := make(map[policy.MistakeType]bool, len(r.Violations))
		for _, v := range r.Violations {
			if !v.Valid() {
				return fmt.Errorf("%w: run %d has unknown violation %q", ErrInvariant, r.RunNumber, v)
			}
			if seen[v] {
				return fmt.Errorf("%w: run %d lists %s twice", ErrInvariant, r.RunNumber, v)
			}
			seen[v] = true
			runViolations[v]++
		}
	}

	tally := make(map[policy.MistakeType]int)
	lastRun := 0
	for i, m := range s.Mistakes {
		if !m.MistakeType.Valid() {
			return fmt.Errorf("%w: mistakes[%d] has unknown type %q", ErrInvariant, i, m.MistakeType)
		}
		if m.RunNumber < lastRun || m.RunNumber < 1 || m.RunNumber > s.TotalRuns {
			return fmt.Errorf("%w: mistakes[%d] has run_number %d", ErrInvariant, i, m.RunNumber)
		}
		lastRun = m.RunNumber
		tally[m.MistakeType]++
		if m.Occurred != tally[m.MistakeType] {
			return fmt.Errorf("%w: mistakes[%d] occurred=%d, want %d", ErrInvariant, i, m.Occurred, tally[m.MistakeType])
		}
	}
	for _, mt := range policy.AllMistakeTypes() {
		if tally[mt] != runViolations[mt] {
			return fmt.Errorf("%w: %s counted %d times but %d runs exhibit it", ErrInvariant, mt, tally[mt], runViolations[mt])
		}
	}

	ruled := make(map[policy.MistakeType]bool)
	for i, r := range s.LearnedRules {
		if !r.MistakeType.Valid() {
			return fmt.Errorf("%w: learned_rules[%d] has unknown type %q", ErrInvariant, i, r.MistakeType)
		}
		if ruled[r.MistakeType] {
			return fmt.Errorf("%w: more than one rule for %s", ErrInvariant, r.MistakeType)
		}
		ruled[r.MistakeType] = true
		if r.CreatedAtRun < 1 || r.CreatedAtRun > s.TotalRuns {
			return fmt.Errorf("%w: rule %s created at run %d", ErrInvariant, r.ID, r.CreatedAtRun)
		}
	}
	for _, mt := range policy.AllMistakeTypes() {
		if reached := tally[mt] >= RuleThreshold; ruled[mt] != reached {
			return fmt.Errorf("%w: %s counted %d times but rule present=%t", ErrInvariant, mt, tally[mt], ruled[mt])
		}
	}

	return nil
}

// normalize replaces nil slices so that encoding is stable.
func (s *State) normalize() {
	if s.Mistakes == nil {
		s.Mistakes = []MistakeRecord{}
	}
	if s.RunHistory == nil {
		s.RunHistory = []RunRecord{}
	}
	if s.LearnedRules == nil {
		s.LearnedRules = []Rule{}
	}
	for i := range s.RunHistory {
		if s.RunHistory[i].ToolsUsed == nil {
			s.RunHistory[i].ToolsUsed = []string{}
		}
		if s.RunHistory[i].Violations == nil {
			s.RunHistory[i].Violations = []policy.MistakeType{}
		}
	}
}
