package core

// Defaults for RunConfig fields left at their zero value.
const (
	DefaultMaxDebateRounds = 2
	DefaultMaxRiskRounds   = 1
	DefaultStepBudget      = 100
)

// RunConfig is the configuration surface consumed by routing and the graph
// engine. A nil *RunConfig is valid and yields the defaults.
type RunConfig struct {
	MaxDebateRounds int
	MaxRiskRounds   int
	StepBudget      int

	EnableMemory    bool
	MemorySubject   string // overrides the run subject for memory scoping
	CleanupPrevious bool   // clear the subject's collections before the run
	CleanupDays     int    // days to keep when CleanupPrevious is set; 0 clears all
}

// DebateRounds returns the configured investment debate rounds.
func (c *RunConfig) DebateRounds() int {
	if c == nil || c.MaxDebateRounds <= 0 {
		return DefaultMaxDebateRounds
	}
	return c.MaxDebateRounds
}

// RiskRounds returns the configured risk debate rounds.
func (c *RunConfig) RiskRounds() int {
	if c == nil || c.MaxRiskRounds <= 0 {
		return DefaultMaxRiskRounds
	}
	return c.MaxRiskRounds
}

// Budget returns the maximum number of node executions in one run.
func (c *RunConfig) Budget() int {
	if c == nil || c.StepBudget <= 0 {
		return DefaultStepBudget
	}
	return c.StepBudget
}

// MemoryEnabled reports whether node factories should consult memory.
func (c *RunConfig) MemoryEnabled() bool { return c != nil && c.EnableMemory }

// MemoryScope returns the subject memory is scoped to for a run over subject.
func (c *RunConfig) MemoryScope(subject string) string {
	if c != nil && c.MemorySubject != "" {
		return c.MemorySubject
	}
	return subject
}
