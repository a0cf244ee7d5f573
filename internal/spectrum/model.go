package spectrum

import "fmt"

// Range describes the frequency span of one scan session and the shape of
// the PSD vectors it produces.
type Range struct {
	FrequencyStart int64 `json:"frequencyStart"` // Center frequency of the first step in Hz
	FrequencyEnd   int64 `json:"frequencyEnd"`   // Center frequency of the last step in Hz
	Steps          int   `json:"steps"`          // Number of tuning steps in the sweep
	BinsPerStep    int   `json:"binsPerStep"`    // PSD vector length (transform size N)
}

// Estimate returns the expected number of PSD values for the whole sweep.
func (r Range) Estimate() int {
	if r.Steps <= 0 || r.BinsPerStep <= 0 {
		return 0
	}
	return r.Steps * r.BinsPerStep
}

func (r Range) String() string {
	return fmt.Sprintf("%d..%d Hz, %d steps x %d bins", r.FrequencyStart, r.FrequencyEnd, r.Steps, r.BinsPerStep)
}
