package ho

//////
// Const, vars, types.
//////

// Unbounded disables a TrialQuota or MaxConcurrent limit.
const Unbounded = 0

// PhaseDescriptor configures one generation phase of a Strategy.
//
// Fields:
// - GeneratorID: Name of the generator, kept in snapshots and logs
// - Generator: The capability producing candidates for this phase
// - TrialQuota: Trials this phase is expected to produce (Unbounded = run
// until advanced manually with AdvanceIfEligible)
// - MinObservedBeforeAdvance: Completed trials of this phase required before
// the strategy may move on
// - MaxConcurrent: Limit of simultaneously non-terminal trials of this phase
// - EnforceQuota: Refuse to over-produce once the quota is reached but the
// observation minimum is not
//
// Usage:
//
//	phases := []PhaseDescriptor{
//	    {
//	        GeneratorID:              "random",
//	        Generator:                random,
//	        TrialQuota:               5,
//	        MinObservedBeforeAdvance: 3,
//	        MaxConcurrent:            5,
//	        EnforceQuota:             true,
//	    },
//	    {
//	        GeneratorID:   "bayesian",
//	        Generator:     bayesian,
//	        TrialQuota:    Unbounded,
//	        MaxConcurrent: 3,
//	    },
//	}
type PhaseDescriptor struct {
	GeneratorID              string
	Generator                Generator
	TrialQuota               int
	MinObservedBeforeAdvance int
	MaxConcurrent            int
	EnforceQuota             bool
}

//////
// Methods.
//////

// Bounded reports whether the phase has a finite trial quota.
func (p PhaseDescriptor) Bounded() bool {
	return p.TrialQuota != Unbounded
}

// Validate checks the descriptor. The returned error is a
// *ConfigurationError with Phase set to -1; NewStrategy fills in the index.
func (p PhaseDescriptor) Validate() error {
	return p.validate(-1)
}

func (p PhaseDescriptor) validate(index int) error {
	switch {
	case p.Generator == nil:
		return &ConfigurationError{Phase: index, Field: "Generator", Reason: "must not be nil"}
	case p.TrialQuota < 0:
		return &ConfigurationError{Phase: index, Field: "TrialQuota", Reason: "must not be negative"}
	case p.MinObservedBeforeAdvance < 0:
		return &ConfigurationError{Phase: index, Field: "MinObservedBeforeAdvance", Reason: "must not be negative"}
	case p.MaxConcurrent < 0:
		return &ConfigurationError{Phase: index, Field: "MaxConcurrent", Reason: "must not be negative"}
	case p.Bounded() && p.MinObservedBeforeAdvance > p.TrialQuota:
		return &ConfigurationError{
			Phase:  index,
			Field:  "MinObservedBeforeAdvance",
			Reason: "must not exceed TrialQuota",
		}
	}

	return nil
}
