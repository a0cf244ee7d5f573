package scanner

import "fmt"

const (
	// FailurePolicyAbort ends the scan on the first step that fails
	FailurePolicyAbort FailurePolicy = "abort"

	// FailurePolicySkip reports the failed step and moves on to the next one
	FailurePolicySkip FailurePolicy = "skip"
)

type FailurePolicy string

func (f FailurePolicy) String() string {
	return string(f)
}

// Config tunes the orchestrator. It is fixed for the orchestrator lifetime.
type Config struct {
	FailurePolicy FailurePolicy `yaml:"failurePolicy" json:"failurePolicy"` // What to do with a failing step (default: abort)
	StepRetries   int           `yaml:"stepRetries" json:"stepRetries"`     // Extra attempts of a failing step before the policy applies
	SettleBytes   int           `yaml:"settleBytes" json:"settleBytes"`     // Warm-up capture discarded after each tune, 0 disables
	DCCorrection  bool          `yaml:"dcCorrection" json:"dcCorrection"`   // Subtract the mean I/Q component before the transform
	EventBuffer   int           `yaml:"eventBuffer" json:"eventBuffer"`     // Capacity of the event channel
	ProgressSteps int           `yaml:"progressSteps" json:"progressSteps"` // Steps between progress events, 0 disables
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		FailurePolicy: FailurePolicyAbort,
		SettleBytes:   16 * 1024,
		DCCorrection:  true,
		EventBuffer:   16,
		ProgressSteps: 100,
	}
}

func (c *Config) Validate() error {
	switch c.FailurePolicy {
	case FailurePolicyAbort, FailurePolicySkip:
	default:
		return fmt.Errorf("scanner.Config: invalid failure policy: %q", c.FailurePolicy)
	}

	if c.StepRetries < 0 {
		return fmt.Errorf("scanner.Config: step retries must not be negative: %d", c.StepRetries)
	}
	if c.SettleBytes < 0 || c.SettleBytes%2 != 0 {
		return fmt.Errorf("scanner.Config: settle bytes must be even and not negative: %d", c.SettleBytes)
	}
	if c.EventBuffer < 0 {
		return fmt.Errorf("scanner.Config: event buffer must not be negative: %d", c.EventBuffer)
	}
	if c.ProgressSteps < 0 {
		return fmt.Errorf("scanner.Config: progress steps must not be negative: %d", c.ProgressSteps)
	}

	return nil
}
